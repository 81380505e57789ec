// Package store keeps raw catalog responses on disk between runs.
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketPages = []byte("pages")

// headerSize is the length of the timestamp prefix on every record.
const headerSize = 8

// PageStore is a bbolt-backed cache of response bodies with a fixed TTL.
type PageStore struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (or creates) dir/cache.db.
func Open(dir string, ttl time.Duration) (*PageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, "cache.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPages)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}

	return &PageStore{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the database file.
func (s *PageStore) Close() error {
	return s.db.Close()
}

// Get returns the body stored under key if it has not expired.
func (s *PageStore) Get(key string) ([]byte, bool) {
	var body []byte
	var storedAt time.Time

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPages).Get([]byte(key))
		if len(v) < headerSize {
			return nil
		}
		storedAt = time.Unix(0, int64(binary.BigEndian.Uint64(v[:headerSize])))
		body = make([]byte, len(v)-headerSize)
		copy(body, v[headerSize:])
		return nil
	})
	if err != nil || body == nil {
		return nil, false
	}
	if s.expired(storedAt) {
		return nil, false
	}
	return body, true
}

// Put stores body under key, stamped with the current time.
func (s *PageStore) Put(key string, body []byte) error {
	record := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint64(record[:headerSize], uint64(s.now().UnixNano()))
	copy(record[headerSize:], body)

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPages).Put([]byte(key), record)
	})
}

// Purge deletes expired and malformed records and returns how many were removed.
func (s *PageStore) Purge() (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPages)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if len(v) < headerSize || s.expired(time.Unix(0, int64(binary.BigEndian.Uint64(v[:headerSize])))) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return removed, nil
}

// Len returns the number of stored records, expired or not.
func (s *PageStore) Len() int {
	n := 0
	s.db.View(func(tx *bolt.Tx) error { //nolint:errcheck // read-only count
		n = tx.Bucket(bucketPages).Stats().KeyN
		return nil
	})
	return n
}

func (s *PageStore) expired(storedAt time.Time) bool {
	return s.ttl > 0 && s.now().Sub(storedAt) > s.ttl
}
