// Package orstore implements the path-structured ORSet store: the
// store/expired pair, delta join, unjoin anti-entropy, and the
// prefix-indexed trie the cursor engine scans.
//
// Store performs pure CRDT bookkeeping only. It trusts that the Causal it
// is asked to join has already passed signature, policy and schema
// validation — that pipeline is composed one layer up, in sdk.Doc, so
// that this package stays a small, independently testable CRDT core
// (mirroring how Khelechy-pearbook's ORSet keeps Add/Remove/Merge free of
// any higher-level authorization concern).
package orstore

import (
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/tlfsid"
)

var logger = logging.Logger("tlfs/orstore")

// Store holds one document's replicated state: the set of active paths
// and the set of tombstoned dot-hashes. Readers (PrefixScan, Exists,
// CausalContextSnapshot) take a read lock; Join takes the single writer
// lock for the duration of one delta.
type Store struct {
	mu sync.RWMutex

	doc tlfsid.DocID

	trie    *trieNode
	byHash  map[crdtpath.DotHash]crdtpath.Path
	expired map[crdtpath.DotHash]struct{}
}

// New creates an empty store for the given document.
func New(doc tlfsid.DocID) *Store {
	return &Store{
		doc:     doc,
		trie:    newTrieNode(),
		byHash:  make(map[crdtpath.DotHash]crdtpath.Path),
		expired: make(map[crdtpath.DotHash]struct{}),
	}
}

// DocID returns the document this store holds state for.
func (s *Store) DocID() tlfsid.DocID { return s.doc }

// Join merges a delta into the store:
//
//	for each t in delta.expired: remove the active path whose hash is t, add t to expired
//	for each p in delta.store: if hash(p) not in expired, insert p
//
// Tombstones are absorbed before new stores are considered so that a
// delta carrying both an add and a matching removal always converges to
// "removed" regardless of slice order — required for join to be
// commutative.
func (s *Store) Join(c causal.Causal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range c.Expired {
		if p, ok := s.byHash[t]; ok {
			key, err := crdtpath.EncodeUnsigned(p)
			if err != nil {
				return err
			}
			s.trie.remove(key)
			delete(s.byHash, t)
		}
		s.expired[t] = struct{}{}
	}

	for _, p := range c.Store {
		h, err := crdtpath.Hash(p)
		if err != nil {
			logger.Warnw("dropping path with unhashable encoding", "err", err)
			return err
		}
		if _, tombstoned := s.expired[h]; tombstoned {
			logger.Debugw("join absorbed by existing tombstone", "hash", h)
			continue
		}
		key, err := crdtpath.EncodeUnsigned(p)
		if err != nil {
			return err
		}
		s.trie.insert(key, p)
		s.byHash[h] = p
	}
	return nil
}

// Exists reports whether a path with the given hash is currently active.
func (s *Store) Exists(h crdtpath.DotHash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byHash[h]
	return ok
}

// IsExpired reports whether h has been tombstoned.
func (s *Store) IsExpired(h crdtpath.DotHash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.expired[h]
	return ok
}

// Get returns the active path with the given hash, if any.
func (s *Store) Get(h crdtpath.DotHash) (crdtpath.Path, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byHash[h]
	return p, ok
}

// PrefixScan returns every active path whose navigational labels start
// with prefix, in no particular order. The cursor engine uses this for
// flag/MVReg/map/array enumeration.
func (s *Store) PrefixScan(prefix []crdtpath.Label) ([]crdtpath.Path, error) {
	key, err := crdtpath.EncodePrefix(s.doc, prefix)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trie.scanPrefix(key), nil
}

// All returns every active path in the store, in no particular order.
func (s *Store) All() []crdtpath.Path {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trie.all()
}

// CausalContextSnapshot returns a point-in-time summary of every
// active/expired dot-hash known to this store.
func (s *Store) CausalContextSnapshot() *causal.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx := causal.NewContext()
	for h := range s.byHash {
		ctx.MarkActive(h)
	}
	for h := range s.expired {
		ctx.MarkExpired(h)
	}
	return ctx
}

// Unjoin computes the minimal delta that converges a peer holding ctx with
// this replica.
func (s *Store) Unjoin(ctx *causal.Context) causal.Causal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var delta causal.Causal
	for h, p := range s.byHash {
		if ctx.HasActive(h) || ctx.HasExpired(h) {
			continue
		}
		delta.Store = append(delta.Store, p)
	}
	for h := range s.expired {
		if ctx.HasExpired(h) {
			continue
		}
		delta.Expired = append(delta.Expired, h)
	}
	return delta
}

// Len returns the number of active paths and tombstones, for diagnostics.
func (s *Store) Len() (active, expired int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byHash), len(s.expired)
}
