package store

import (
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/fswatch/pkg/watchkey"
)

var bucketRegistrations = []byte("watch_registrations") // Path -> Registration

// boltStore implements RegistrationStore using BoltDB.
type boltStore struct {
	db *bolt.DB
	mu sync.RWMutex
}

// NewBoltStore creates a BoltDB-backed registration store.
func NewBoltStore(db *bolt.DB) (RegistrationStore, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(bucketRegistrations)
		return createErr
	}); err != nil {
		return nil, fmt.Errorf("failed to create registrations bucket: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Save implements RegistrationStore.Save.
func (s *boltStore) Save(path string, kinds watchkey.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRegistrations)

		data, err := json.Marshal(Registration{Path: path, Kinds: kinds})
		if err != nil {
			return fmt.Errorf("failed to marshal registration: %w", err)
		}

		if putErr := b.Put([]byte(path), data); putErr != nil {
			return fmt.Errorf("failed to store registration: %w", putErr)
		}
		return nil
	})
}

// Delete implements RegistrationStore.Delete.
func (s *boltStore) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRegistrations).Delete([]byte(path))
	})
}

// All implements RegistrationStore.All.
func (s *boltStore) All() ([]Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var regs []Registration

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRegistrations).ForEach(func(_, v []byte) error {
			var reg Registration
			if unmarshalErr := json.Unmarshal(v, &reg); unmarshalErr != nil {
				return fmt.Errorf("failed to unmarshal registration: %w", unmarshalErr)
			}
			regs = append(regs, reg)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return regs, nil
}

// memoryStore implements RegistrationStore using an in-memory map.
// Useful for testing.
type memoryStore struct {
	regs map[string]watchkey.Kind
	mu   sync.RWMutex
}

// NewMemoryStore creates an in-memory registration store.
func NewMemoryStore() RegistrationStore {
	return &memoryStore{regs: make(map[string]watchkey.Kind)}
}

// Save implements RegistrationStore.Save.
func (s *memoryStore) Save(path string, kinds watchkey.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regs[path] = kinds
	return nil
}

// Delete implements RegistrationStore.Delete.
func (s *memoryStore) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.regs, path)
	return nil
}

// All implements RegistrationStore.All.
func (s *memoryStore) All() ([]Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	regs := make([]Registration, 0, len(s.regs))
	for path, kinds := range s.regs {
		regs = append(regs, Registration{Path: path, Kinds: kinds})
	}
	return regs, nil
}
