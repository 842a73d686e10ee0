// Package causal defines the wire-level delta and context types shared by
// the ORSet store and its anti-entropy protocol.
package causal

import (
	"sync"

	"github.com/cloudpeers/tlfs/crdtpath"
)

// Causal is a delta-state ORSet fragment: paths to add to store and
// dot-hashes to move from store into expired. A Causal produced by a
// single cursor call is joined atomically — no peer ever observes a
// partial transaction.
//
// A Causal owns its path buffers until it is applied to a Store, at which
// point the store absorbs them.
//
// SchemaVersion is the registered index of the schema version the
// authoring replica's document was pinned to when it produced Store.
// A receiving replica pinned to a different index runs the lens pipeline
// over Store before admitting it, rather than rejecting the whole delta
// outright.
type Causal struct {
	Store         []crdtpath.Path
	Expired       []crdtpath.DotHash
	SchemaVersion int
}

// Join combines two deltas into one larger atomic delta, letting an
// application compose several cursor calls into one transaction before
// submission. Both operands are expected to come from the same document
// at the same schema version; the combined delta keeps c's version.
func (c Causal) Join(other Causal) Causal {
	out := Causal{
		Store:         make([]crdtpath.Path, 0, len(c.Store)+len(other.Store)),
		Expired:       make([]crdtpath.DotHash, 0, len(c.Expired)+len(other.Expired)),
		SchemaVersion: c.SchemaVersion,
	}
	out.Store = append(out.Store, c.Store...)
	out.Store = append(out.Store, other.Store...)
	out.Expired = append(out.Expired, c.Expired...)
	out.Expired = append(out.Expired, other.Expired...)
	return out
}

// IsEmpty reports whether the delta carries nothing to apply. Anti-entropy
// uses this to move a document from Syncing to Idle.
func (c Causal) IsEmpty() bool {
	return len(c.Store) == 0 && len(c.Expired) == 0
}

// Context is a compact summary of a replica's known dot-hashes, used to
// compute a minimal unjoin delta.
//
//	CausalContext { active: Set<DotHash>, expired: Set<DotHash> }
type Context struct {
	mu      sync.RWMutex
	active  map[crdtpath.DotHash]struct{}
	expired map[crdtpath.DotHash]struct{}
}

// NewContext returns an empty causal context.
func NewContext() *Context {
	return &Context{
		active:  make(map[crdtpath.DotHash]struct{}),
		expired: make(map[crdtpath.DotHash]struct{}),
	}
}

// MarkActive records that h is present in the snapshotting replica's
// store.
func (c *Context) MarkActive(h crdtpath.DotHash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[h] = struct{}{}
}

// MarkExpired records that h is present in the snapshotting replica's
// expired set.
func (c *Context) MarkExpired(h crdtpath.DotHash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired[h] = struct{}{}
}

// HasActive reports whether h is known active.
func (c *Context) HasActive(h crdtpath.DotHash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.active[h]
	return ok
}

// HasExpired reports whether h is known expired.
func (c *Context) HasExpired(h crdtpath.DotHash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.expired[h]
	return ok
}

// ActiveHashes and ExpiredHashes return copies of the underlying sets, for
// encoding onto the wire.
func (c *Context) ActiveHashes() []crdtpath.DotHash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]crdtpath.DotHash, 0, len(c.active))
	for h := range c.active {
		out = append(out, h)
	}
	return out
}

func (c *Context) ExpiredHashes() []crdtpath.DotHash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]crdtpath.DotHash, 0, len(c.expired))
	for h := range c.expired {
		out = append(out, h)
	}
	return out
}

// Encode serializes the context to its wire format:
// { active: [DotHash], expired: [DotHash] }, each list length-prefixed.
func (c *Context) Encode() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return encodeHashLists(setKeys(c.active), setKeys(c.expired))
}

// Decode parses the wire format produced by Encode into a fresh Context.
func Decode(data []byte) (*Context, error) {
	active, expired, err := decodeHashLists(data)
	if err != nil {
		return nil, err
	}
	ctx := NewContext()
	for _, h := range active {
		ctx.active[h] = struct{}{}
	}
	for _, h := range expired {
		ctx.expired[h] = struct{}{}
	}
	return ctx, nil
}

func setKeys(m map[crdtpath.DotHash]struct{}) []crdtpath.DotHash {
	out := make([]crdtpath.DotHash, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	return out
}
