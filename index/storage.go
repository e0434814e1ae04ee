package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loqor/objectstore/kvstore"
)

// metaLastUpdateKey is the single key Storage keeps in its meta backend,
// ported from the original index layer's "__index__.lastUpdate" sentinel:
// a reader can compare it against the source data's own last-modified time
// to decide whether the index is cold and needs a full rebuild.
const metaLastUpdateKey = "__index__.lastUpdate"

// Storage pairs a forward backend (key -> signatures) with a backward
// backend (signature -> keys) and a small meta backend tracking the last
// time either side changed. This is the direct port of the original
// IndexStorage.add/.remove algorithm: every add/update/remove keeps both
// directions consistent and prunes backward buckets that become empty.
type Storage struct {
	forward  kvstore.Backend
	backward kvstore.Backend
	meta     kvstore.Backend
}

// NewStorage returns a Storage backed by the three given backends. Callers
// typically point all three at the same underlying kvstore.Backend family
// (e.g. three fsstore.Stores rooted at sibling directories) but nothing
// requires that.
func NewStorage(forward, backward, meta kvstore.Backend) *Storage {
	return &Storage{forward: forward, backward: backward, meta: meta}
}

func encodeSigs(sigs []string) ([]byte, error) { return json.Marshal(sigs) }

func decodeSigs(data []byte) ([]string, error) {
	var sigs []string
	if err := json.Unmarshal(data, &sigs); err != nil {
		return nil, err
	}
	return sigs, nil
}

// forwardSigs returns the signatures currently recorded for key, or an
// empty slice if key has never been indexed.
func (s *Storage) forwardSigs(ctx context.Context, key string) ([]string, error) {
	data, err := s.forward.Get(ctx, key)
	if err != nil {
		if err == kvstore.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return decodeSigs(data)
}

func (s *Storage) backwardKeys(ctx context.Context, sig string) ([]string, error) {
	data, err := s.backward.Get(ctx, sig)
	if err != nil {
		if err == kvstore.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return decodeSigs(data)
}

func (s *Storage) putForward(ctx context.Context, key string, sigs []string) error {
	data, err := encodeSigs(sigs)
	if err != nil {
		return err
	}
	ok, err := s.forward.Has(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return s.forward.Update(ctx, key, data)
	}
	return s.forward.Add(ctx, key, data)
}

// addKeyToBucket appends key to the backward bucket for sig, creating the
// bucket if needed, and is a no-op if key is already present.
func (s *Storage) addKeyToBucket(ctx context.Context, sig, key string) error {
	keys, err := s.backwardKeys(ctx, sig)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	keys = append(keys, key)
	data, err := encodeSigs(keys)
	if err != nil {
		return err
	}
	ok, err := s.backward.Has(ctx, sig)
	if err != nil {
		return err
	}
	if ok {
		return s.backward.Update(ctx, sig, data)
	}
	return s.backward.Add(ctx, sig, data)
}

// removeKeyFromBucket drops key from sig's backward bucket, deleting the
// bucket entirely once it becomes empty rather than leaving an empty entry
// behind.
func (s *Storage) removeKeyFromBucket(ctx context.Context, sig, key string) error {
	keys, err := s.backwardKeys(ctx, sig)
	if err != nil {
		return err
	}
	idx := -1
	for i, k := range keys {
		if k == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	keys = append(keys[:idx], keys[idx+1:]...)
	if len(keys) == 0 {
		return s.backward.Remove(ctx, sig)
	}
	data, err := encodeSigs(keys)
	if err != nil {
		return err
	}
	return s.backward.Update(ctx, sig, data)
}

func stringSet(sigs []string) map[string]bool {
	m := make(map[string]bool, len(sigs))
	for _, s := range sigs {
		m[s] = true
	}
	return m
}

// Add records key under every signature in sigs, for a key that has never
// been indexed before.
func (s *Storage) Add(ctx context.Context, key string, sigs []string) error {
	if err := s.putForward(ctx, key, sigs); err != nil {
		return err
	}
	for _, sig := range sigs {
		if err := s.addKeyToBucket(ctx, sig, key); err != nil {
			return err
		}
	}
	return s.touch(ctx)
}

// Update rebuckets key: signatures it no longer carries are removed from
// their backward buckets, new ones are added, and unchanged ones are left
// alone. This is the core of the ported algorithm — a naive
// remove-then-add would needlessly rewrite every unaffected bucket.
func (s *Storage) Update(ctx context.Context, key string, sigs []string) error {
	old, err := s.forwardSigs(ctx, key)
	if err != nil {
		return err
	}
	oldSet, newSet := stringSet(old), stringSet(sigs)

	for _, sig := range old {
		if !newSet[sig] {
			if err := s.removeKeyFromBucket(ctx, sig, key); err != nil {
				return err
			}
		}
	}
	for _, sig := range sigs {
		if !oldSet[sig] {
			if err := s.addKeyToBucket(ctx, sig, key); err != nil {
				return err
			}
		}
	}
	if err := s.putForward(ctx, key, sigs); err != nil {
		return err
	}
	return s.touch(ctx)
}

// Remove drops key from every signature bucket it was recorded under and
// deletes its forward entry.
func (s *Storage) Remove(ctx context.Context, key string) error {
	old, err := s.forwardSigs(ctx, key)
	if err != nil {
		return err
	}
	for _, sig := range old {
		if err := s.removeKeyFromBucket(ctx, sig, key); err != nil {
			return err
		}
	}
	if err := s.forward.Remove(ctx, key); err != nil && err != kvstore.ErrNotFound {
		return err
	}
	return s.touch(ctx)
}

// Keys returns every key recorded under sig.
func (s *Storage) Keys(ctx context.Context, sig string) ([]string, error) {
	return s.backwardKeys(ctx, sig)
}

// Signatures returns every signature key is currently recorded under.
func (s *Storage) Signatures(ctx context.Context, key string) ([]string, error) {
	return s.forwardSigs(ctx, key)
}

// Count returns how many keys carry sig.
func (s *Storage) Count(ctx context.Context, sig string) (int, error) {
	keys, err := s.backwardKeys(ctx, sig)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Clear empties both directions and the meta timestamp, leaving the index
// cold.
func (s *Storage) Clear(ctx context.Context) error {
	if err := s.forward.Clear(ctx); err != nil {
		return err
	}
	if err := s.backward.Clear(ctx); err != nil {
		return err
	}
	return s.meta.Clear(ctx)
}

// LastUpdate returns the timestamp of the most recent Add/Update/Remove, or
// "" if the index has never been written to (cold).
func (s *Storage) LastUpdate(ctx context.Context) (string, error) {
	data, err := s.meta.Get(ctx, metaLastUpdateKey)
	if err != nil {
		if err == kvstore.ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// IsCold reports whether the index has never been built.
func (s *Storage) IsCold(ctx context.Context) (bool, error) {
	ts, err := s.LastUpdate(ctx)
	if err != nil {
		return false, err
	}
	return ts == "", nil
}

func (s *Storage) touch(ctx context.Context) error {
	ts := []byte(UpdateTime())
	ok, err := s.meta.Has(ctx, metaLastUpdateKey)
	if err != nil {
		return err
	}
	if ok {
		return s.meta.Update(ctx, metaLastUpdateKey, ts)
	}
	return s.meta.Add(ctx, metaLastUpdateKey, ts)
}

// Sync flushes all three underlying backends.
func (s *Storage) Sync(ctx context.Context) error {
	if err := s.forward.Sync(ctx); err != nil {
		return fmt.Errorf("index: sync forward: %w", err)
	}
	if err := s.backward.Sync(ctx); err != nil {
		return fmt.Errorf("index: sync backward: %w", err)
	}
	return s.meta.Sync(ctx)
}
