// Package codec defines the pluggable wire format used to turn primitives
// (the plain maps/slices/scalars objects export to) into bytes a
// kvstore.Backend can store, and back.
package codec

// Primitive is the decoded shape a StoredObject exports to and restores
// from: JSON-like nested maps, slices, and scalars.
type Primitive = map[string]any

// Codec marshals and unmarshals primitives to a storage backend's wire
// format. The default implementation is codec/json; callers may swap in
// another (e.g. CBOR, msgpack) by implementing this interface.
type Codec interface {
	Marshal(v Primitive) ([]byte, error)
	Unmarshal(data []byte, v *Primitive) error
}
