package kvstore

import "errors"

var (
	// ErrNotFound is returned by Get/Update/Remove when a key is absent.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrExists is returned by Add when a backend enforces key uniqueness
	// and the key is already present.
	ErrExists = errors.New("kvstore: key already exists")
	// ErrClosed signals an operation on a closed backend. None of the
	// backends in this module returns it; boltdb surfaces bbolt's own error
	// after Close.
	ErrClosed = errors.New("kvstore: backend closed")
	// ErrUnsupported is returned when an optional capability is invoked on
	// a backend that does not advertise it.
	ErrUnsupported = errors.New("kvstore: capability not supported")
)
