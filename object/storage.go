// Package object implements the identity-preserving object cache
// (ObjectStorage) and declarative StoredObject base on top of a
// kvstore.Backend.
package object

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"weak"

	"github.com/loqor/objectstore/codec"
	"github.com/loqor/objectstore/idgen"
	"github.com/loqor/objectstore/index"
	"github.com/loqor/objectstore/kvstore"
)

// Storage is the identity-preserving object cache and persistence
// coordinator. Every Get for a given (class, oid) returns the same Go
// pointer as long as some external reference (or the dirty-sync queue) has
// kept it reachable; once nothing does, the cache entry is cleared by the
// runtime's GC cleanup callback and the next Get reloads from the backend.
type Storage struct {
	backend  kvstore.Backend
	codec    codec.Codec
	ids      *idgen.Generator
	registry *Registry
	indexes  *index.Registry

	mu    sync.Mutex
	cache map[string]weak.Pointer[Base]
	dirty map[string]StoredObject
}

// NewStorage returns a Storage writing through backend, encoding with
// codec, minting oids with ids, and resolving class names through registry.
// indexes is consulted on every persist/Remove for each class's declared
// Schema.IndexBy fields (see maintainIndexes); pass nil to run without any
// index maintenance.
func NewStorage(backend kvstore.Backend, c codec.Codec, ids *idgen.Generator, registry *Registry, indexes *index.Registry) *Storage {
	return &Storage{
		backend:  backend,
		codec:    c,
		ids:      ids,
		registry: registry,
		indexes:  indexes,
		cache:    map[string]weak.Pointer[Base]{},
		dirty:    map[string]StoredObject{},
	}
}

func storageKey(class, oid string) string { return class + "." + oid }

// lookup returns the cached instance for key, if its weak reference is
// still live.
func (s *Storage) lookup(key string) StoredObject {
	s.mu.Lock()
	wp, ok := s.cache[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	b := wp.Value()
	if b == nil {
		return nil
	}
	return b.self
}

// register installs obj's Base into the cache under key and arms a
// GC-driven cleanup that clears the entry once obj becomes unreachable.
// Called before any restoration happens, so a reentrant Get for the same
// key during cyclic relation resolution observes the in-progress instance
// instead of recursing into the backend a second time.
//
// If a live entry already exists under key holding an instance of a
// different concrete Go type, register refuses to overwrite it and returns
// ErrCacheConflict: two factories racing to populate the same (class, oid)
// is a registry/schema mismatch, not ordinary cache reuse.
func (s *Storage) register(key string, b *Base) error {
	s.mu.Lock()
	if wp, ok := s.cache[key]; ok {
		if existing := wp.Value(); existing != nil && reflect.TypeOf(existing.self) != reflect.TypeOf(b.self) {
			s.mu.Unlock()
			return fmt.Errorf("object: %s: %w", key, ErrCacheConflict)
		}
	}
	s.cache[key] = weak.Make(b)
	s.mu.Unlock()
	runtime.AddCleanup(b, s.evict, key)
	return nil
}

func (s *Storage) evict(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, key)
}

func (s *Storage) markDirty(obj StoredObject) {
	b := obj.Base()
	s.mu.Lock()
	s.dirty[storageKey(b.class, b.oid)] = obj
	s.mu.Unlock()
}

func (s *Storage) clearDirty(key string) {
	s.mu.Lock()
	delete(s.dirty, key)
	s.mu.Unlock()
}

// Register declares class on this Storage's registry.
func (s *Storage) Register(class string, factory Factory, schema *Schema) {
	s.registry.Register(class, factory, schema)
}

// Create allocates a new oid, constructs and registers an instance of
// class, runs configure against it (typically a series of typed setter
// calls), and persists it immediately. The instance is cached before
// configure runs so relation targets created during configure can already
// reference it back.
func (s *Storage) Create(ctx context.Context, class string, configure func(StoredObject) error) (StoredObject, error) {
	return s.CreateAt(ctx, class, s.ids.New(), configure)
}

// CreateAt is Create with a caller-supplied oid, used by callers that must
// honor an externally assigned identifier (the web package's PUT-to-create
// semantics, or migration/import tooling replaying existing oids).
func (s *Storage) CreateAt(ctx context.Context, class, oid string, configure func(StoredObject) error) (StoredObject, error) {
	factory, schema, err := s.registry.Ensure(class)
	if err != nil {
		return nil, err
	}
	obj := factory()
	b := obj.Base()
	b.init(obj, s, class, oid, schema)
	key := storageKey(class, oid)
	if err := s.register(key, b); err != nil {
		return nil, err
	}

	if configure != nil {
		if err := configure(obj); err != nil {
			s.evict(key)
			return nil, err
		}
	}
	if err := s.persist(ctx, b, true); err != nil {
		s.evict(key)
		return nil, err
	}
	b.dirty = false
	s.clearDirty(key)
	return obj, nil
}

// Get returns the object identified by (class, oid), from cache if live,
// otherwise restoring it from the backend.
func (s *Storage) Get(ctx context.Context, class, oid string) (StoredObject, error) {
	key := storageKey(class, oid)
	if cached := s.lookup(key); cached != nil {
		return cached, nil
	}

	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var primitive codec.Primitive
	if err := s.codec.Unmarshal(raw, &primitive); err != nil {
		return nil, fmt.Errorf("object: decode %s: %w", key, err)
	}

	factory, schema, err := s.registry.Ensure(class)
	if err != nil {
		return nil, err
	}
	obj := factory()
	b := obj.Base()
	b.init(obj, s, class, oid, schema)
	if err := s.register(key, b); err != nil {
		return nil, err
	}
	b.restore(primitive)
	return obj, nil
}

// Has reports whether (class, oid) exists in the backend.
func (s *Storage) Has(ctx context.Context, class, oid string) (bool, error) {
	return s.backend.Has(ctx, storageKey(class, oid))
}

// Save persists obj's current state immediately and clears its dirty flag.
func (s *Storage) Save(ctx context.Context, obj StoredObject) error {
	b := obj.Base()
	if b.storage != s {
		return ErrNotBound
	}
	if err := s.persist(ctx, b, false); err != nil {
		return err
	}
	b.mu.Lock()
	b.dirty = false
	b.mu.Unlock()
	s.clearDirty(storageKey(b.class, b.oid))
	return nil
}

// Remove deletes (class, oid) from the backend and drops its cache entry.
func (s *Storage) Remove(ctx context.Context, class, oid string) error {
	key := storageKey(class, oid)
	if err := s.backend.Remove(ctx, key); err != nil {
		return err
	}
	if _, schema, err := s.registry.Ensure(class); err == nil {
		if err := s.removeIndexes(ctx, class, oid, schema); err != nil {
			return err
		}
	}
	s.evict(key)
	s.clearDirty(key)
	return nil
}

// Count returns the number of persisted instances of class.
func (s *Storage) Count(ctx context.Context, class string) (int, error) {
	return s.backend.Count(ctx, class+".")
}

// Keys iterates the oids of every persisted instance of class, in order.
func (s *Storage) Keys(ctx context.Context, class string, order kvstore.Order) ([]string, error) {
	it, err := s.backend.Keys(ctx, class+".", order)
	if err != nil {
		return nil, err
	}
	full, err := kvstore.CollectKeys(it)
	if err != nil {
		return nil, err
	}
	prefix := class + "."
	oids := make([]string, 0, len(full))
	for _, k := range full {
		oids = append(oids, k[len(prefix):])
	}
	return oids, nil
}

// List returns every persisted instance of class, restoring each through
// Get so identity and caching behave exactly as direct Get calls would.
func (s *Storage) List(ctx context.Context, class string) ([]StoredObject, error) {
	oids, err := s.Keys(ctx, class, kvstore.OrderAscending)
	if err != nil {
		return nil, err
	}
	out := make([]StoredObject, 0, len(oids))
	for _, oid := range oids {
		obj, err := s.Get(ctx, class, oid)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Sync saves every object queued as dirty since it was last persisted. The
// dirty queue holds strong references, so a mutated object stays cached
// until Save or Sync writes it; only clean objects are evicted by the GC
// once no caller references them.
func (s *Storage) Sync(ctx context.Context) error {
	s.mu.Lock()
	pending := make([]StoredObject, 0, len(s.dirty))
	for _, obj := range s.dirty {
		pending = append(pending, obj)
	}
	s.mu.Unlock()

	for _, obj := range pending {
		if err := s.Save(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) persist(ctx context.Context, b *Base, isNew bool) error {
	primitive := b.export()
	data, err := s.codec.Marshal(primitive)
	if err != nil {
		return fmt.Errorf("object: encode %s: %w", storageKey(b.class, b.oid), err)
	}
	key := storageKey(b.class, b.oid)
	if isNew {
		if err := s.backend.Add(ctx, key, data); err != nil {
			return err
		}
	} else if err := s.backend.Update(ctx, key, data); err != nil {
		return err
	}
	return s.maintainIndexes(ctx, b, b.oid)
}

// maintainIndexes brings every Index declared on s.indexes for b.class's
// Schema.IndexBy fields up to date with b's current values, keyed by oid
// (each class's indexes are already scoped by class via index.Registry.For).
// A field with no declared Index on the registry is skipped, so IndexBy can
// name fields before their Index is wired up without failing every write.
func (s *Storage) maintainIndexes(ctx context.Context, b *Base, oid string) error {
	if s.indexes == nil || len(b.schema.IndexBy) == 0 {
		return nil
	}
	ci := s.indexes.For(b.class)
	for _, field := range b.schema.IndexBy {
		idx := ci.By(field)
		if idx == nil {
			continue
		}
		if err := idx.Update(ctx, oid, b.indexSource(field)); err != nil {
			return fmt.Errorf("object: index %s.%s: %w", b.class, field, err)
		}
	}
	return nil
}

// removeIndexes drops oid from every Index declared for class's
// Schema.IndexBy fields, mirroring maintainIndexes for deletion.
func (s *Storage) removeIndexes(ctx context.Context, class, oid string, schema *Schema) error {
	if s.indexes == nil || schema == nil || len(schema.IndexBy) == 0 {
		return nil
	}
	ci := s.indexes.For(class)
	for _, field := range schema.IndexBy {
		idx := ci.By(field)
		if idx == nil {
			continue
		}
		if err := idx.Remove(ctx, oid); err != nil {
			return fmt.Errorf("object: unindex %s.%s: %w", class, field, err)
		}
	}
	return nil
}
