// Package kvstore defines the uniform key-value backend interface that
// object storage and index storage are built on top of.
package kvstore

import "context"

// Value is a wire-ready payload. Backends are free to interpret it as
// opaque bytes or as a decoded primitive, depending on their codec.
type Value = []byte

// Order controls the iteration direction of Keys/List when a backend
// advertises HasOrdering. Backends without native ordering must emulate it
// by materializing and sorting keys.
type Order int

const (
	OrderNone Order = iota
	OrderAscending
	OrderDescending
)

// Capability is a bitmask of operations a Backend implementation supports.
type Capability uint16

const (
	HasRead Capability = 1 << iota
	HasWrite
	HasStream
	HasFile
	HasPublish
	HasRaw
	HasOrdering
)

// Has reports whether the capability set includes all of want.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Item pairs a key with its stored value, used by range-style iteration.
type Item struct {
	Key   string
	Value Value
}

// Backend is the uniform key-value interface every storage layer in this
// module is built on. Keys and values are primitives convertible to the
// backend's chosen wire codec (JSON by default).
type Backend interface {
	// Add inserts a new key. Backends that enforce uniqueness return
	// ErrExists when the key is already present; others behave like Update.
	Add(ctx context.Context, key string, data Value) error
	// Update stores or replaces data at key. By convention it fails with
	// ErrNotFound when the key is missing, though not every backend
	// enforces this (see DESIGN.md Open Question #1).
	Update(ctx context.Context, key string, data Value) error
	// Remove deletes key, failing with ErrNotFound if it does not exist.
	Remove(ctx context.Context, key string) error
	// Has reports whether key is present.
	Has(ctx context.Context, key string) (bool, error)
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (Value, error)
	// Keys iterates keys sharing prefix in the requested order.
	Keys(ctx context.Context, prefix string, order Order) (KeyIterator, error)
	// List iterates the values of keys sharing prefix.
	List(ctx context.Context, prefix string) (ValueIterator, error)
	// Count returns the number of keys sharing prefix.
	Count(ctx context.Context, prefix string) (int, error)
	// Clear removes every key the backend holds.
	Clear(ctx context.Context) error
	// Sync requests a durable flush. May be a no-op for write-through backends.
	Sync(ctx context.Context) error
	// Capabilities advertises which optional operations this backend supports.
	Capabilities() Capability
}

// KeyIterator yields keys one at a time. Next returns false once exhausted
// or on error, at which point Err reports the cause (nil on clean exhaustion).
type KeyIterator interface {
	Next() bool
	Key() string
	Err() error
	Close() error
}

// ValueIterator yields values one at a time, analogous to KeyIterator.
type ValueIterator interface {
	Next() bool
	Value() Value
	Err() error
	Close() error
}

// StreamBackend is implemented by backends advertising HasStream.
type StreamBackend interface {
	Stream(ctx context.Context, key string, chunkSize int) (ByteIterator, error)
}

// ByteIterator yields successive chunks of a streamed value.
type ByteIterator interface {
	Next() bool
	Chunk() []byte
	Err() error
	Close() error
}

// FileBackend is implemented by backends advertising HasFile, giving
// direct filesystem access to a key's backing storage.
type FileBackend interface {
	Path(ctx context.Context, key string) (string, error)
}

// RawBackend is implemented by backends advertising HasRaw, used by the
// raw blob storage extension (see package raw).
type RawBackend interface {
	HasRawData(ctx context.Context, key, ext string) (bool, error)
	SaveRawData(ctx context.Context, key, ext string, data []byte) error
	StreamRawData(ctx context.Context, key, ext string, chunkSize int) (ByteIterator, error)
	GetRawDataPath(ctx context.Context, key, ext string) (string, error)
	RemoveRawData(ctx context.Context, key, ext string) error
}

// PublishOp identifies the kind of mutation a Publisher fans out.
type PublishOp string

const (
	OpAdd    PublishOp = "add"
	OpUpdate PublishOp = "update"
	OpRemove PublishOp = "remove"
)

// PublishFunc receives (operation, key, data) for every mutation a
// Publisher backend performs.
type PublishFunc func(op PublishOp, key string, data Value)

// Publisher is implemented by backends advertising HasPublish. It offers
// both a sink for every mutation (OnPublish) and a per-key subscription
// model (Subscribe/Unsubscribe), plus Process: the entry point used by
// MultiBackend to replay another member's mutation without re-publishing it.
type Publisher interface {
	OnPublish(cb PublishFunc)
	Subscribe(key string, cb PublishFunc)
	Unsubscribe(key string, cb PublishFunc)
	Notify(key string, op PublishOp, data Value)
	Publish(op PublishOp, key string, data Value)
	Process(ctx context.Context, op PublishOp, key string, data Value) error
}
