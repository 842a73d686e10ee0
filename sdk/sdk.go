// Package sdk composes the path store, policy engine, cursor navigation
// and schema registry into the external interface a host application
// actually drives: named, persistent or in-memory documents, each with
// its own authorization state and change feed.
package sdk

import (
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/multiformats/go-multiaddr"

	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/orstore"
	"github.com/cloudpeers/tlfs/policy"
	"github.com/cloudpeers/tlfs/schema"
	"github.com/cloudpeers/tlfs/sign"
	"github.com/cloudpeers/tlfs/tlfserr"
	"github.com/cloudpeers/tlfs/tlfsid"
)

var logger = logging.Logger("tlfs/sdk")

// Sdk is one replica's handle onto a local-first store: a keypair
// identifying it as a peer, a schema registry shared by every document it
// opens, and the documents it currently holds open in memory.
type Sdk struct {
	cfg *config

	keypair    sign.Keypair
	registry   *schema.Registry
	persistent *orstore.Persistent

	mu   sync.RWMutex
	docs map[tlfsid.DocID]*Doc
}

func newSdk(registry *schema.Registry, persistent *orstore.Persistent, cfg *config) (*Sdk, error) {
	kp := cfg.keypair
	if kp == nil {
		generated, err := sign.Generate()
		if err != nil {
			return nil, err
		}
		kp = &generated
	}
	return &Sdk{
		cfg:        cfg,
		keypair:    *kp,
		registry:   registry,
		persistent: persistent,
		docs:       make(map[tlfsid.DocID]*Doc),
	}, nil
}

// CreateMemory returns an Sdk whose documents live only in memory:
// closing the process discards every document it holds.
func CreateMemory(registry *schema.Registry, opts ...Option) (*Sdk, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return newSdk(registry, nil, cfg)
}

// CreatePersistent returns an Sdk backed by a BadgerDB database at
// dbPath, reloading any documents OpenDoc is subsequently asked for from
// what was durably joined in a prior process.
func CreatePersistent(dbPath string, registry *schema.Registry, opts ...Option) (*Sdk, error) {
	cfg := defaultConfig()
	cfg.badgerPath = dbPath
	for _, opt := range opts {
		opt(cfg)
	}
	p, err := orstore.OpenPersistent(cfg.badgerPath)
	if err != nil {
		return nil, err
	}
	sdk, err := newSdk(registry, p, cfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	return sdk, nil
}

// PeerID returns this replica's own identity.
func (s *Sdk) PeerID() tlfsid.PeerID { return s.keypair.PeerID() }

// AddAddress records addr as reachable for peer.
func (s *Sdk) AddAddress(peer tlfsid.PeerID, addr multiaddr.Multiaddr) {
	s.cfg.addressBook.Add(peer, addr)
}

// RemoveAddress drops addr from peer's known addresses.
func (s *Sdk) RemoveAddress(peer tlfsid.PeerID, addr multiaddr.Multiaddr) {
	s.cfg.addressBook.Remove(peer, addr)
}

// Addresses returns every address currently known for peer.
func (s *Sdk) Addresses(peer tlfsid.PeerID) []multiaddr.Multiaddr {
	return s.cfg.addressBook.Addresses(peer)
}

// Docs returns the identifiers of every document currently open under
// schemaName.
func (s *Sdk) Docs(schemaName string) []tlfsid.DocID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []tlfsid.DocID
	for id, d := range s.docs {
		if d.schemaName == schemaName {
			out = append(out, id)
		}
	}
	return out
}

// CreateDoc creates a brand new document shaped by schemaName's latest
// registered version. The new document's root authority is granted to
// this Sdk's own peer identity by an ephemeral creation keypair whose
// secret is discarded immediately after signing that one grant.
func (s *Sdk) CreateDoc(schemaName string) (*Doc, error) {
	_, index, err := s.registry.Latest(schemaName)
	if err != nil {
		return nil, err
	}
	return s.CreateDocAtVersion(schemaName, index)
}

// CreateDocAtVersion creates a document pinned to schemaName's version at
// index rather than whatever is currently latest, for a replica that has
// not adopted a newer schema package yet. A peer pinned to a later
// version reaches this document's paths through the lens pipeline in
// Doc.ApplyCausal rather than rejecting them outright.
func (s *Sdk) CreateDocAtVersion(schemaName string, index int) (*Doc, error) {
	version, err := s.registry.Lookup(schemaName, index)
	if err != nil {
		return nil, err
	}

	creation, err := sign.Generate()
	if err != nil {
		return nil, err
	}
	docID := creation.DocID()

	atom := crdtpath.Says(crdtpath.PeerActor(s.keypair.PeerID()), crdtpath.PermOwn, crdtpath.Path{Doc: docID})
	rootGrant := crdtpath.Path{Doc: docID, Labels: []crdtpath.Label{crdtpath.PolicyLabel(atom)}}
	signed, err := creation.Sign(rootGrant)
	if err != nil {
		return nil, err
	}
	stmt, err := policy.FromPath(signed)
	if err != nil {
		return nil, err
	}

	store := orstore.New(docID)
	genesis := causal.Causal{Store: []crdtpath.Path{signed}, SchemaVersion: index}
	if err := store.Join(genesis); err != nil {
		return nil, err
	}
	if s.persistent != nil {
		if err := s.persistent.Persist(genesis); err != nil {
			return nil, err
		}
	}
	engine := policy.NewEngine(docID, []policy.Statement{stmt})

	doc := &Doc{
		sdk:         s,
		id:          docID,
		schemaName:  schemaName,
		schemaIndex: index,
		root:        version.Root,
		lenses:      version.Lenses,
		store:       store,
		engine:      engine,
		bus:         newBroadcaster(),
		relay:       s.relay(),
	}
	doc.transition(StateOpen)
	doc.followRemote()

	s.mu.Lock()
	s.docs[docID] = doc
	s.mu.Unlock()

	logger.Infow("created document", "doc", docID.String(), "schema", schemaName)
	return doc, nil
}

// relay returns this Sdk's Redis mirror, if WithRedisClient was given,
// shared by every document it opens.
func (s *Sdk) relay() *redisRelay {
	if s.cfg.redisClient == nil {
		return nil
	}
	return newRedisRelay(s.cfg.redisClient)
}

// OpenDoc returns a document this Sdk already holds open, reloading it
// from the persistent store under schemaName's latest registered version
// first if it is not yet in memory. schemaName must name the schema the
// document was created or added under; the on-disk store itself carries
// no schema metadata of its own.
func (s *Sdk) OpenDoc(id tlfsid.DocID, schemaName string) (*Doc, error) {
	return s.OpenDocAtVersion(id, schemaName, -1)
}

// OpenDocAtVersion is OpenDoc pinned to a specific registered version
// instead of schemaName's latest, for reloading a document that was
// created or added before the local schema package grew past that index.
// index of -1 means "latest", matching OpenDoc.
func (s *Sdk) OpenDocAtVersion(id tlfsid.DocID, schemaName string, index int) (*Doc, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if ok {
		return doc, nil
	}
	if s.persistent == nil {
		return nil, tlfserr.UnknownDoc{DocID: id.String()}
	}
	store, err := s.persistent.Load(id)
	if err != nil {
		return nil, err
	}
	return s.adoptStore(id, schemaName, index, store)
}

// AddDoc registers a document this Sdk has learned about from a peer but
// never opened before, under the given schema, joining the bootstrap
// delta that proves the peer granting it access. The document is pinned
// to whichever version genesis.SchemaVersion declares, not to this Sdk's
// own latest — the peer that produced genesis may be on an older or newer
// schema than this replica, and that gap is exactly what the lens
// pipeline in Doc.ApplyCausal later carries future deltas across.
func (s *Sdk) AddDoc(id tlfsid.DocID, schemaName string, genesis causal.Causal) (*Doc, error) {
	version, err := s.registry.Lookup(schemaName, genesis.SchemaVersion)
	if err != nil {
		return nil, err
	}
	index := genesis.SchemaVersion
	store := orstore.New(id)
	var statements []policy.Statement
	for _, p := range genesis.Store {
		if err := sign.Verify(p); err != nil {
			return nil, err
		}
		term, ok := p.Terminal()
		isPolicy := ok && term.Kind == crdtpath.LabelPolicy
		if isPolicy {
			stmt, err := policy.FromPath(p)
			if err != nil {
				return nil, err
			}
			statements = append(statements, stmt)
			continue
		}
		if err := schema.ValidatePath(version.Root, p); err != nil {
			return nil, err
		}
	}
	engine := policy.NewEngine(id, statements)
	for _, p := range genesis.Store {
		if term, ok := p.Terminal(); ok && term.Kind == crdtpath.LabelPolicy {
			continue
		}
		if err := engine.Authorize(crdtpath.PeerActor(p.Author), crdtpath.PermWrite, p); err != nil {
			return nil, err
		}
	}
	if err := store.Join(genesis); err != nil {
		return nil, err
	}
	if s.persistent != nil {
		if err := s.persistent.Persist(genesis); err != nil {
			return nil, err
		}
	}

	doc := &Doc{
		sdk:         s,
		id:          id,
		schemaName:  schemaName,
		schemaIndex: index,
		root:        version.Root,
		lenses:      version.Lenses,
		store:       store,
		engine:      engine,
		bus:         newBroadcaster(),
		relay:       s.relay(),
	}
	doc.transition(StateOpen)
	doc.followRemote()

	s.mu.Lock()
	s.docs[id] = doc
	s.mu.Unlock()
	return doc, nil
}

// RemoveDoc closes and forgets the document locally. It does not revoke
// any peer's access; use a cursor's policy methods to do that before
// removing a document you no longer want to track.
func (s *Sdk) RemoveDoc(id tlfsid.DocID) error {
	s.mu.Lock()
	doc, ok := s.docs[id]
	delete(s.docs, id)
	s.mu.Unlock()
	if !ok {
		return tlfserr.UnknownDoc{DocID: id.String()}
	}
	doc.close()
	return nil
}

// adoptStore rebuilds a Doc around a store reloaded from persistent
// storage. index of -1 resolves to schemaName's latest registered
// version; any other value pins to that exact version, for a document
// that was originally created or added before the schema package grew
// past it.
func (s *Sdk) adoptStore(id tlfsid.DocID, schemaName string, index int, store *orstore.Store) (*Doc, error) {
	var version schema.Version
	var err error
	if index < 0 {
		version, index, err = s.registry.Latest(schemaName)
	} else {
		version, err = s.registry.Lookup(schemaName, index)
	}
	if err != nil {
		return nil, err
	}

	var statements []policy.Statement
	for _, p := range store.All() {
		term, ok := p.Terminal()
		if !ok || term.Kind != crdtpath.LabelPolicy {
			continue
		}
		stmt, err := policy.FromPath(p)
		if err != nil {
			continue
		}
		statements = append(statements, stmt)
	}

	doc := &Doc{
		sdk:         s,
		id:          id,
		schemaName:  schemaName,
		schemaIndex: index,
		root:        version.Root,
		lenses:      version.Lenses,
		store:       store,
		engine:      policy.NewEngine(id, statements),
		bus:         newBroadcaster(),
		relay:       s.relay(),
	}
	doc.transition(StateOpen)
	doc.followRemote()

	s.mu.Lock()
	s.docs[id] = doc
	s.mu.Unlock()
	return doc, nil
}
