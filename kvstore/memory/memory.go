// Package memory implements an in-process kvstore.Backend backed by a map.
// Ordering is emulated by materializing and sorting keys, since a Go map
// carries no intrinsic order.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/loqor/objectstore/kvstore"
)

// Store is a thread-safe, non-durable kvstore.Backend. Sync is a no-op.
type Store struct {
	mu     sync.RWMutex
	data   map[string]kvstore.Value
	broker *kvstore.Broker
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		data:   map[string]kvstore.Value{},
		broker: kvstore.NewBroker(),
	}
}

func (s *Store) Capabilities() kvstore.Capability {
	return kvstore.HasRead | kvstore.HasWrite | kvstore.HasPublish
}

func (s *Store) Add(ctx context.Context, key string, data kvstore.Value) error {
	s.mu.Lock()
	if _, ok := s.data[key]; ok {
		s.mu.Unlock()
		return kvstore.ErrExists
	}
	s.data[key] = cloneValue(data)
	s.mu.Unlock()
	s.broker.Publish(kvstore.OpAdd, key, data)
	return nil
}

func (s *Store) Update(ctx context.Context, key string, data kvstore.Value) error {
	s.mu.Lock()
	if _, ok := s.data[key]; !ok {
		s.mu.Unlock()
		return kvstore.ErrNotFound
	}
	s.data[key] = cloneValue(data)
	s.mu.Unlock()
	s.broker.Publish(kvstore.OpUpdate, key, data)
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	if _, ok := s.data[key]; !ok {
		s.mu.Unlock()
		return kvstore.ErrNotFound
	}
	delete(s.data, key)
	s.mu.Unlock()
	s.broker.Publish(kvstore.OpRemove, key, nil)
	return nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *Store) Get(ctx context.Context, key string) (kvstore.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return cloneValue(v), nil
}

func (s *Store) Keys(ctx context.Context, prefix string, order kvstore.Order) (kvstore.KeyIterator, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	kvstore.SortKeys(keys, order)
	return kvstore.NewSliceKeyIterator(keys), nil
}

func (s *Store) List(ctx context.Context, prefix string) (kvstore.ValueIterator, error) {
	it, err := s.Keys(ctx, prefix, kvstore.OrderAscending)
	if err != nil {
		return nil, err
	}
	keys, err := kvstore.CollectKeys(it)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	values := make([]kvstore.Value, 0, len(keys))
	for _, k := range keys {
		values = append(values, cloneValue(s.data[k]))
	}
	s.mu.RUnlock()
	return kvstore.NewSliceValueIterator(values), nil
}

func (s *Store) Count(ctx context.Context, prefix string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.data = map[string]kvstore.Value{}
	s.mu.Unlock()
	return nil
}

func (s *Store) Sync(ctx context.Context) error { return nil }

func (s *Store) OnPublish(cb kvstore.PublishFunc)                    { s.broker.OnPublish(cb) }
func (s *Store) Subscribe(key string, cb kvstore.PublishFunc)        { s.broker.Subscribe(key, cb) }
func (s *Store) Unsubscribe(key string, cb kvstore.PublishFunc)      { s.broker.Unsubscribe(key, cb) }
func (s *Store) Notify(key string, op kvstore.PublishOp, v kvstore.Value) { s.broker.Notify(key, op, v) }
func (s *Store) Publish(op kvstore.PublishOp, key string, v kvstore.Value) { s.broker.Publish(op, key, v) }

// Process reapplies a mutation replayed from another MultiBackend member
// without re-publishing it, avoiding publish/process recursion.
func (s *Store) Process(ctx context.Context, op kvstore.PublishOp, key string, data kvstore.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch op {
	case kvstore.OpAdd, kvstore.OpUpdate:
		s.data[key] = cloneValue(data)
	case kvstore.OpRemove:
		delete(s.data, key)
	}
	return nil
}

func cloneValue(v kvstore.Value) kvstore.Value {
	if v == nil {
		return nil
	}
	out := make(kvstore.Value, len(v))
	copy(out, v)
	return out
}
