package prefs

import (
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// prefsBucket holds every preference key.
const prefsBucket = "prefs"

// lockTimeout bounds how long an operation waits for another process
// holding the file lock.
const lockTimeout = time.Second

// BoltStore implements the Store interface using BoltDB.
//
// The database is opened for each Get or Set and closed again, so several
// processes can share one preferences file.
type BoltStore struct {
	path string
	mu   sync.Mutex
}

// NewBoltStore creates the BoltDB file at path if needed and checks that it
// can be opened.
func NewBoltStore(path string) (*BoltStore, error) {
	s := &BoltStore{path: path}

	err := s.withDB(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			if _, err := tx.CreateBucketIfNotExists([]byte(prefsBucket)); err != nil {
				return fmt.Errorf("create prefs bucket: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *BoltStore) withDB(fn func(db *bolt.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return fmt.Errorf("failed to open boltdb at %s: %w", s.path, err)
	}

	if err := fn(db); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

// Get returns the value stored under key.
func (s *BoltStore) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key is required")
	}

	var (
		value string
		ok    bool
	)
	err := s.withDB(func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(prefsBucket))
			if b == nil {
				return nil
			}
			if data := b.Get([]byte(key)); data != nil {
				// data is only valid inside the transaction
				value, ok = string(data), true
			}
			return nil
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}

	return value, ok, nil
}

// Set stores value under key.
func (s *BoltStore) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	return s.withDB(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists([]byte(prefsBucket))
			if err != nil {
				return fmt.Errorf("create prefs bucket: %w", err)
			}
			if err := b.Put([]byte(key), []byte(value)); err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
			return nil
		})
	})
}

// Close is a no-op; the database is only open during an operation.
func (s *BoltStore) Close() error {
	return nil
}
