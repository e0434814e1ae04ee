package object

import "errors"

var (
	// ErrSchemaViolation is returned when a property or relation name is
	// used that the type's Schema never declared.
	ErrSchemaViolation = errors.New("object: schema violation")
	// ErrNotBound is returned when an operation needs a Storage (Save,
	// relation resolution) but the object was never registered into one.
	ErrNotBound = errors.New("object: not bound to a storage")
	// ErrUnknownType is returned when a class name has no registered factory.
	ErrUnknownType = errors.New("object: unknown type")
	// ErrCardinality is returned when a singular relation is appended to
	// twice without an intervening Clear/Set.
	ErrCardinality = errors.New("object: relation cardinality violation")
	// ErrCacheConflict is returned when restoring an oid whose cache entry
	// already holds an instance of a different concrete type.
	ErrCacheConflict = errors.New("object: cache identity conflict")
)
