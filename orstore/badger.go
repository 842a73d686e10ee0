package orstore

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/tlfserr"
	"github.com/cloudpeers/tlfs/tlfsid"
)

// Persistent wraps a BadgerDB handle that durably mirrors a Store's
// active paths and tombstones. Active paths are keyed by their dot-hash
// under one prefix, with the signed canonical encoding as the value;
// tombstones are keyed by their dot-hash under a separate prefix, with an
// empty value. Keys are not the canonical path encoding the in-memory
// trie uses.
type Persistent struct {
	db *badger.DB
}

var (
	storeKeyPrefix   = []byte{0x01}
	expiredKeyPrefix = []byte{0x02}
)

// OpenPersistent opens (or creates) a BadgerDB database at dir.
func OpenPersistent(dir string) (*Persistent, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, tlfserr.Io{Reason: fmt.Sprintf("open badger db at %s", dir), Err: err}
	}
	go runGC(db)
	return &Persistent{db: db}, nil
}

// Close closes the underlying database.
func (p *Persistent) Close() error {
	return p.db.Close()
}

// Load rebuilds an in-memory Store for doc from everything persisted so
// far, for use on process restart.
func (p *Persistent) Load(doc tlfsid.DocID) (*Store, error) {
	s := New(doc)
	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(storeKeyPrefix); it.ValidForPrefix(storeKeyPrefix); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				path, err := crdtpath.Decode(val)
				if err != nil {
					return err
				}
				if path.Doc != doc {
					return nil
				}
				h, err := crdtpath.Hash(path)
				if err != nil {
					return err
				}
				key, err := crdtpath.EncodeUnsigned(path)
				if err != nil {
					return err
				}
				s.trie.insert(key, path)
				s.byHash[h] = path
				return nil
			}); err != nil {
				return err
			}
		}

		for it.Seek(expiredKeyPrefix); it.ValidForPrefix(expiredKeyPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			var h crdtpath.DotHash
			copy(h[:], key[len(expiredKeyPrefix):])
			s.expired[h] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, tlfserr.Io{Reason: "load store from badger", Err: err}
	}
	return s, nil
}

// Persist writes the effect of a single successful Join to disk: every
// newly active path and every newly tombstoned hash. Call this after
// Store.Join succeeds with the same Causal.
func (p *Persistent) Persist(c causal.Causal) error {
	return p.db.Update(func(txn *badger.Txn) error {
		for _, h := range c.Expired {
			key := append(append([]byte{}, expiredKeyPrefix...), h[:]...)
			if err := txn.Set(key, nil); err != nil {
				return err
			}
			if err := txn.Delete(append(append([]byte{}, storeKeyPrefix...), h[:]...)); err != nil {
				return err
			}
		}
		for _, path := range c.Store {
			h, err := crdtpath.Hash(path)
			if err != nil {
				return err
			}
			_, err = txn.Get(append(append([]byte{}, expiredKeyPrefix...), h[:]...))
			if err == nil {
				continue
			}
			if err != badger.ErrKeyNotFound {
				return err
			}
			storeKey := append(append([]byte{}, storeKeyPrefix...), h[:]...)
			enc, err := crdtpath.Encode(path)
			if err != nil {
				return err
			}
			if err := txn.Set(storeKey, enc); err != nil {
				return err
			}
		}
		return nil
	})
}

func runGC(db *badger.DB) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
	again:
		if err := db.RunValueLogGC(0.5); err == nil {
			goto again
		}
	}
}
