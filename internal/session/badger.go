package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "import_session:"

// BadgerStore persists sessions in an embedded Badger database so pending
// imports survive a restart. Expiry uses Badger's entry TTL.
type BadgerStore struct {
	db    *badger.DB
	ttl   time.Duration
	locks *localLocks
}

func NewBadgerStore(path string, ttl time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	return OpenBadgerStore(opts, ttl)
}

func OpenBadgerStore(opts badger.Options, ttl time.Duration) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", opts.Dir, err)
	}
	return &BadgerStore{db: db, ttl: ttl, locks: newLocalLocks()}, nil
}

func (s *BadgerStore) Save(_ context.Context, sess *ImportSession) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+sess.ID), payload).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

func (s *BadgerStore) Get(_ context.Context, id string) (*ImportSession, error) {
	var sess ImportSession
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}
	return &sess, nil
}

func (s *BadgerStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + id))
	})
}

// Lock is process-local: a Badger directory is owned by a single process.
func (s *BadgerStore) Lock(_ context.Context, id string) (func(), error) {
	return s.locks.tryLock(id)
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
