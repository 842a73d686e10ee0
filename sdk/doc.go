package sdk

import (
	"context"
	"sync"

	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/cursor"
	"github.com/cloudpeers/tlfs/lens"
	"github.com/cloudpeers/tlfs/orstore"
	"github.com/cloudpeers/tlfs/policy"
	"github.com/cloudpeers/tlfs/schema"
	"github.com/cloudpeers/tlfs/sign"
	"github.com/cloudpeers/tlfs/tlfsid"
)

// Doc is one open document: its ORSet store, its saturated policy engine,
// the schema version it is currently shaped by, and the lifecycle state a
// caller can observe through State.
type Doc struct {
	sdk         *Sdk
	id          tlfsid.DocID
	schemaName  string
	schemaIndex int
	root        *schema.Node
	lenses      lens.Lenses

	store  *orstore.Store
	engine *policy.Engine

	mu    sync.Mutex
	state State

	bus   *broadcaster
	relay *redisRelay

	remoteCancel func()
}

// ID returns the document's identifier.
func (d *Doc) ID() tlfsid.DocID { return d.id }

// SchemaName returns the name this document was created or opened
// against, for Sdk.Docs grouping.
func (d *Doc) SchemaName() string { return d.schemaName }

// CreateCursor returns a fresh cursor at the document root, authoring
// every write with the owning Sdk's own peer keypair.
func (d *Doc) CreateCursor() *cursor.Cursor {
	return cursor.New(d.store, d.root, d.engine, d.sdk.keypair)
}

// ApplyCausal validates and joins a delta received from a cursor write or
// from the network: every stored path's signature, schema shape, and
// policy authorization are re-checked before anything reaches the store,
// so a malicious or out-of-date peer cannot smuggle a write in merely by
// relaying it. A path authored at a different schema version than this
// document is pinned to is carried across the gap by the lens pipeline
// before any of that, and silently dropped from the joined delta when the
// pipeline cannot represent it on this side. Tombstone hashes carry no
// signer of their own and so are trusted once their Causal's stored half
// has passed validation — the same trust boundary orstore.Store documents
// for its own Join.
func (d *Doc) ApplyCausal(c causal.Causal) error {
	d.transition(StateSyncing)

	joined, err := d.validate(c)
	if err != nil {
		d.transition(StateIdle)
		return err
	}
	if err := d.store.Join(joined); err != nil {
		d.transition(StateIdle)
		return err
	}
	if d.sdk.persistent != nil {
		if err := d.sdk.persistent.Persist(joined); err != nil {
			logger.Warnw("persist delta failed", "doc", d.id.String(), "err", err)
		}
	}
	for _, p := range joined.Store {
		term, ok := p.Terminal()
		if !ok || term.Kind != crdtpath.LabelPolicy {
			continue
		}
		stmt, err := policy.FromPath(p)
		if err != nil {
			continue
		}
		d.engine.AddStatement(stmt)
	}

	d.bus.publish(joined)
	d.relay.publish(d.id, joined)
	d.transition(StateIdle)
	return nil
}

// followRemote subscribes to this document's Redis channel, if one is
// configured, and joins every delta another process publishes to it. The
// returned goroutine exits once the document is closed.
func (d *Doc) followRemote() {
	if d.relay == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	deltas, unsubscribe, err := d.relay.subscribe(ctx, d.id)
	if err != nil {
		logger.Warnw("subscribe to redis relay failed", "doc", d.id.String(), "err", err)
		cancel()
		return
	}
	d.remoteCancel = func() {
		unsubscribe()
		cancel()
	}
	go func() {
		for c := range deltas {
			if err := d.ApplyCausal(c); err != nil {
				logger.Warnw("apply delta from redis relay failed", "doc", d.id.String(), "err", err)
			}
		}
	}()
}

// validate checks every stored path's signature, policy authorization,
// and, for ordinary data writes only, its shape against the document's
// schema. A policy grant's target can name any location in the document
// regardless of what that location's node kind is, so schema shape is
// never enforced on a policy-terminal path — the same exemption
// cursor.sign relies on by never calling schema.Validate at all.
//
// When c was authored at a schema version other than d.schemaIndex, every
// non-policy path is first carried across that gap by the lens pipeline
// (transformAcrossVersions). A path the pipeline cannot represent on this
// side is dropped from the returned Causal rather than failing the whole
// delta, matching scenario 5's expectation that a field unknown to an
// older schema is simply absent after sync rather than a rejected write.
func (d *Doc) validate(c causal.Causal) (causal.Causal, error) {
	out := causal.Causal{Expired: c.Expired, SchemaVersion: d.schemaIndex}
	for _, p := range c.Store {
		if err := sign.Verify(p); err != nil {
			return causal.Causal{}, err
		}
		term, hasTerminal := p.Terminal()
		isPolicy := hasTerminal && term.Kind == crdtpath.LabelPolicy

		if !isPolicy && c.SchemaVersion != d.schemaIndex {
			transformed, ok, err := transformAcrossVersions(d.sdk.registry, d.schemaName, d.lenses, c.SchemaVersion, p)
			if err != nil {
				logger.Warnw("dropping path whose source schema version is unknown here",
					"doc", d.id.String(), "from_version", c.SchemaVersion, "err", err)
				continue
			}
			if !ok {
				logger.Infow("lens pipeline dropped path crossing schema version boundary",
					"doc", d.id.String(), "from_version", c.SchemaVersion, "to_version", d.schemaIndex)
				continue
			}
			p = transformed
		}

		perm := crdtpath.PermWrite
		if isPolicy {
			perm = crdtpath.PermControl
		} else if err := schema.ValidatePath(d.root, p); err != nil {
			return causal.Causal{}, err
		}
		actor := crdtpath.PeerActor(p.Author)
		if err := d.engine.Authorize(actor, perm, p); err != nil {
			return causal.Causal{}, err
		}
		out.Store = append(out.Store, p)
	}
	return out, nil
}

// transformAcrossVersions carries p from the schema version registered at
// srcIndex to the version reached by dstLenses, per 4.7's longest-common-
// prefix composition: lens.Transform finds the chain that undoes src's
// tail and applies dst's tail, and Lenses.TransformLabels/TransformValue
// walk p's labels and (for an MVReg terminal) its value through that
// chain. ok is false when the chain drops the path outright.
func transformAcrossVersions(registry *schema.Registry, schemaName string, dstLenses lens.Lenses, srcIndex int, p crdtpath.Path) (crdtpath.Path, bool, error) {
	srcVersion, err := registry.Lookup(schemaName, srcIndex)
	if err != nil {
		return crdtpath.Path{}, false, err
	}
	chain := lens.Transform(srcVersion.Lenses, dstLenses)
	labels, ok := chain.TransformLabels(p.Labels)
	if !ok {
		return crdtpath.Path{}, false, nil
	}
	out := p.Clone()
	out.Labels = labels
	if term, hasTerminal := out.Terminal(); hasTerminal && term.Kind == crdtpath.LabelMVReg {
		term.Value = chain.TransformValue(term.Value)
		out.Labels[len(out.Labels)-1] = term
	}
	return out, true, nil
}

// Subscribe watches every stored path under prefix (and every tombstone,
// since a tombstone no longer carries a path to filter by) for as long as
// the returned cancel func has not been called.
func (d *Doc) Subscribe(prefix []crdtpath.Label) (<-chan causal.Causal, func()) {
	return d.bus.subscribe(prefix)
}

// Unjoin computes the minimal delta a peer holding ctx is missing,
// for a caller driving its own anti-entropy exchange loop. The returned
// delta is stamped with this document's own schema version, so the peer
// receiving it knows which lens chain to run if its own version differs.
func (d *Doc) Unjoin(ctx *causal.Context) causal.Causal {
	c := d.store.Unjoin(ctx)
	c.SchemaVersion = d.schemaIndex
	return c
}

// CausalContext snapshots this replica's known dot-hashes, for sending to
// a peer as the basis of its own Unjoin call.
func (d *Doc) CausalContext() *causal.Context {
	return d.store.CausalContextSnapshot()
}

// close tears down the document's subscriptions and marks it closed.
func (d *Doc) close() {
	d.bus.closeAll()
	if d.remoteCancel != nil {
		d.remoteCancel()
	}
	d.transition(StateClosed)
}
