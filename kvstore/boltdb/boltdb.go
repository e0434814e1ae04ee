// Package boltdb implements a DBM-style kvstore.Backend on top of bbolt, a
// single on-disk key-value file. Writes are retried with a bounded linear
// backoff, since the underlying file can be transiently unwritable under
// contention (spec §4.1/§5).
package boltdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/loqor/objectstore/kvstore"
)

var bucketName = []byte("kv")

const (
	maxRetries   = 5
	retryBackoff = 10 * time.Millisecond
)

// Store is a bbolt-backed kvstore.Backend. Keys are kept in a single
// bucket; bbolt's own byte-ordered B+tree gives HasOrdering for free.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if necessary) a bbolt database at path.
func New(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltdb: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("boltdb: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Capabilities() kvstore.Capability {
	return kvstore.HasRead | kvstore.HasWrite | kvstore.HasOrdering | kvstore.HasFile
}

// withRetry runs fn up to maxRetries times in total, sleeping with linear
// backoff after each transient bbolt error, and surfacing the final error
// once the attempts are exhausted.
func withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
		time.Sleep(retryBackoff * time.Duration(attempt+1))
	}
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, bbolt.ErrTimeout) || errors.Is(err, bbolt.ErrDatabaseNotOpen)
}

func (s *Store) Add(ctx context.Context, key string, data kvstore.Value) error {
	return withRetry(func() error {
		return s.db.Update(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucketName)
			if b.Get([]byte(key)) != nil {
				return kvstore.ErrExists
			}
			return b.Put([]byte(key), data)
		})
	})
}

func (s *Store) Update(ctx context.Context, key string, data kvstore.Value) error {
	return withRetry(func() error {
		return s.db.Update(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucketName)
			if b.Get([]byte(key)) == nil {
				return kvstore.ErrNotFound
			}
			return b.Put([]byte(key), data)
		})
	})
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return withRetry(func() error {
		return s.db.Update(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucketName)
			if b.Get([]byte(key)) == nil {
				return kvstore.ErrNotFound
			}
			return b.Delete([]byte(key))
		})
	})
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketName).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

func (s *Store) Get(ctx context.Context, key string) (kvstore.Value, error) {
	var out kvstore.Value
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v == nil {
			return kvstore.ErrNotFound
		}
		out = append(kvstore.Value(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Keys(ctx context.Context, prefix string, order kvstore.Order) (kvstore.KeyIterator, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if order == kvstore.OrderDescending {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}
	return kvstore.NewSliceKeyIterator(keys), nil
}

func (s *Store) List(ctx context.Context, prefix string) (kvstore.ValueIterator, error) {
	var values []kvstore.Value
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			values = append(values, append(kvstore.Value(nil), v...))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return kvstore.NewSliceValueIterator(values), nil
}

func (s *Store) Count(ctx context.Context, prefix string) (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) Clear(ctx context.Context) error {
	return withRetry(func() error {
		return s.db.Update(func(tx *bbolt.Tx) error {
			if err := tx.DeleteBucket(bucketName); err != nil {
				return err
			}
			_, err := tx.CreateBucket(bucketName)
			return err
		})
	})
}

// Sync requests a durable flush. bbolt fsyncs on every successful Update
// transaction, so this is a no-op kept for interface symmetry.
func (s *Store) Sync(ctx context.Context) error { return nil }

// Path implements kvstore.FileBackend, returning the backing database file.
func (s *Store) Path(ctx context.Context, key string) (string, error) {
	return s.db.Path(), nil
}
