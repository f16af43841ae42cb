// SPDX-License-Identifier: MIT

package codec

import (
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Probing a full ffmpeg install takes hundreds of milliseconds, so results
// are cached on disk keyed by binary identity (path@version). A changed
// binary produces a new key; old entries age out via TTL.
const probeTTL = 24 * time.Hour

// Store persists codec probe results in a Badger database.
type Store struct {
	db *badger.DB
}

// OpenStore opens (or creates) the probe cache at path.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Load returns the cached probe result for the given binary identity.
func (s *Store) Load(identity string) (probeResult, bool) {
	var res probeResult
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(identity))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &res)
		})
	})
	return res, err == nil
}

// Save stores the probe result under the binary identity with a TTL.
func (s *Store) Save(identity string, res probeResult) error {
	buf, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(storeKey(identity), buf).WithTTL(probeTTL)
		return txn.SetEntry(e)
	})
}

func storeKey(identity string) []byte {
	return []byte("probe:" + identity)
}
