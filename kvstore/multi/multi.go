// Package multi implements kvstore.Backend as a fan-out composite over
// several member backends. Writes go to every member; reads are served by
// the first member that advertises the needed capability. There is no
// cross-member transaction: a write that fails partway through leaves
// earlier members mutated and later ones untouched (spec §4.2/§5 explicitly
// accepts this — no rollback).
package multi

import (
	"context"
	"fmt"

	"github.com/loqor/objectstore/kvstore"
)

// Backend fans reads and writes out across Members in order.
type Backend struct {
	Members []kvstore.Backend
	broker  *kvstore.Broker
	// replaying guards against re-entering Process while already replaying
	// a mutation onto other members, which would otherwise recurse forever
	// if two MultiBackend instances wrapped each other's members.
	replaying bool
}

// New returns a Backend fanning out across members, in the given order.
func New(members ...kvstore.Backend) *Backend {
	return &Backend{Members: members, broker: kvstore.NewBroker()}
}

func (b *Backend) Capabilities() kvstore.Capability {
	var c kvstore.Capability
	for _, m := range b.Members {
		c |= m.Capabilities()
	}
	return c | kvstore.HasPublish
}

// firstWith returns the first member advertising cap, or an error if none do.
func (b *Backend) firstWith(cap kvstore.Capability) (kvstore.Backend, error) {
	for _, m := range b.Members {
		if m.Capabilities().Has(cap) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("multi: no member supports capability %v: %w", cap, kvstore.ErrUnsupported)
}

// Add writes key/data to every member, stopping at the first error. Members
// already written are not rolled back.
func (b *Backend) Add(ctx context.Context, key string, data kvstore.Value) error {
	for _, m := range b.Members {
		if err := m.Add(ctx, key, data); err != nil {
			return err
		}
	}
	b.replay(ctx, kvstore.OpAdd, key, data)
	b.broker.Publish(kvstore.OpAdd, key, data)
	return nil
}

func (b *Backend) Update(ctx context.Context, key string, data kvstore.Value) error {
	for _, m := range b.Members {
		if err := m.Update(ctx, key, data); err != nil {
			return err
		}
	}
	b.replay(ctx, kvstore.OpUpdate, key, data)
	b.broker.Publish(kvstore.OpUpdate, key, data)
	return nil
}

func (b *Backend) Remove(ctx context.Context, key string) error {
	for _, m := range b.Members {
		if err := m.Remove(ctx, key); err != nil {
			return err
		}
	}
	b.replay(ctx, kvstore.OpRemove, key, nil)
	b.broker.Publish(kvstore.OpRemove, key, nil)
	return nil
}

// replay pushes the mutation into any member that itself implements
// kvstore.Publisher, via Process rather than Add/Update/Remove, so members
// that mirror each other's published events don't re-publish and recurse.
func (b *Backend) replay(ctx context.Context, op kvstore.PublishOp, key string, data kvstore.Value) {
	if b.replaying {
		return
	}
	b.replaying = true
	defer func() { b.replaying = false }()
	for _, m := range b.Members {
		if p, ok := m.(kvstore.Publisher); ok {
			_ = p.Process(ctx, op, key, data)
		}
	}
}

func (b *Backend) Has(ctx context.Context, key string) (bool, error) {
	m, err := b.firstWith(kvstore.HasRead)
	if err != nil {
		return false, err
	}
	return m.Has(ctx, key)
}

func (b *Backend) Get(ctx context.Context, key string) (kvstore.Value, error) {
	m, err := b.firstWith(kvstore.HasRead)
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, key)
}

func (b *Backend) Keys(ctx context.Context, prefix string, order kvstore.Order) (kvstore.KeyIterator, error) {
	m, err := b.firstWith(kvstore.HasRead)
	if err != nil {
		return nil, err
	}
	return m.Keys(ctx, prefix, order)
}

func (b *Backend) List(ctx context.Context, prefix string) (kvstore.ValueIterator, error) {
	m, err := b.firstWith(kvstore.HasRead)
	if err != nil {
		return nil, err
	}
	return m.List(ctx, prefix)
}

func (b *Backend) Count(ctx context.Context, prefix string) (int, error) {
	m, err := b.firstWith(kvstore.HasRead)
	if err != nil {
		return 0, err
	}
	return m.Count(ctx, prefix)
}

// Clear clears every member.
func (b *Backend) Clear(ctx context.Context) error {
	for _, m := range b.Members {
		if err := m.Clear(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Sync syncs every member, returning the first error encountered.
func (b *Backend) Sync(ctx context.Context) error {
	for _, m := range b.Members {
		if err := m.Sync(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) OnPublish(cb kvstore.PublishFunc)               { b.broker.OnPublish(cb) }
func (b *Backend) Subscribe(key string, cb kvstore.PublishFunc)   { b.broker.Subscribe(key, cb) }
func (b *Backend) Unsubscribe(key string, cb kvstore.PublishFunc) { b.broker.Unsubscribe(key, cb) }
func (b *Backend) Notify(key string, op kvstore.PublishOp, v kvstore.Value) {
	b.broker.Notify(key, op, v)
}
func (b *Backend) Publish(op kvstore.PublishOp, key string, v kvstore.Value) {
	b.broker.Publish(op, key, v)
}

// Process replays a mutation onto every member without re-publishing,
// matching the Publisher contract so a Backend can itself be nested inside
// another MultiBackend.
func (b *Backend) Process(ctx context.Context, op kvstore.PublishOp, key string, data kvstore.Value) error {
	if b.replaying {
		return nil
	}
	b.replaying = true
	defer func() { b.replaying = false }()
	for _, m := range b.Members {
		if p, ok := m.(kvstore.Publisher); ok {
			if err := p.Process(ctx, op, key, data); err != nil {
				return err
			}
			continue
		}
		switch op {
		case kvstore.OpAdd:
			if err := m.Add(ctx, key, data); err != nil && err != kvstore.ErrExists {
				return err
			}
		case kvstore.OpUpdate:
			if err := m.Update(ctx, key, data); err != nil && err != kvstore.ErrNotFound {
				return err
			}
		case kvstore.OpRemove:
			if err := m.Remove(ctx, key); err != nil && err != kvstore.ErrNotFound {
				return err
			}
		}
	}
	return nil
}

// Path implements kvstore.FileBackend by delegating to the first member
// that supports file-path access.
func (b *Backend) Path(ctx context.Context, key string) (string, error) {
	m, err := b.firstWith(kvstore.HasFile)
	if err != nil {
		return "", err
	}
	fb, ok := m.(kvstore.FileBackend)
	if !ok {
		return "", kvstore.ErrUnsupported
	}
	return fb.Path(ctx, key)
}

// Stream implements kvstore.StreamBackend by delegating to the first
// member that supports streaming.
func (b *Backend) Stream(ctx context.Context, key string, chunkSize int) (kvstore.ByteIterator, error) {
	m, err := b.firstWith(kvstore.HasStream)
	if err != nil {
		return nil, err
	}
	sb, ok := m.(kvstore.StreamBackend)
	if !ok {
		return nil, kvstore.ErrUnsupported
	}
	return sb.Stream(ctx, key, chunkSize)
}
