package object

import "context"

// Scope is the ergonomic allocation-scope variant of Storage: objects
// created through it are tracked and flushed together when the enclosing
// callback returns successfully, so callers building up a small object
// graph don't need to remember to Sync or Save each piece by hand.
type Scope struct {
	ctx     context.Context
	storage *Storage
	created []StoredObject
}

// WithScope runs fn against a fresh Scope bound to storage. Every object
// created through Scope.Create during fn is synced once fn returns nil; on
// error, created objects are left exactly as Create left them (already
// persisted, since Create itself writes immediately) and no extra Sync
// happens.
func WithScope(ctx context.Context, storage *Storage, fn func(*Scope) error) error {
	scope := &Scope{ctx: ctx, storage: storage}
	if err := fn(scope); err != nil {
		return err
	}
	return scope.storage.Sync(ctx)
}

// Create allocates an instance of class through the underlying Storage,
// recording it so the scope's closing Sync will include any further
// mutations made to it later in the same callback.
func (s *Scope) Create(class string, configure func(StoredObject) error) (StoredObject, error) {
	obj, err := s.storage.Create(s.ctx, class, configure)
	if err != nil {
		return nil, err
	}
	s.created = append(s.created, obj)
	return obj, nil
}

// Get delegates to the underlying Storage.
func (s *Scope) Get(class, oid string) (StoredObject, error) {
	return s.storage.Get(s.ctx, class, oid)
}

// Storage exposes the underlying Storage for operations Scope doesn't wrap.
func (s *Scope) Storage() *Storage { return s.storage }
