package object

import "sync"

// Factory allocates a zero-value instance of a concrete stored type, ready
// for Base.init to wire up. Types register one in init().
type Factory func() StoredObject

type classEntry struct {
	factory Factory
	schema  *Schema
}

// Registry maps class names to their factory and Schema, the Go realization
// of the original DECLARED_CLASSES registry. Dynamic dispatch that Python
// gets from a live class object becomes an explicit map lookup here.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]classEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{classes: map[string]classEntry{}}
}

// Register declares class, associating it with factory and schema. Typically
// called once from a type's init().
func (r *Registry) Register(class string, factory Factory, schema *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[class] = classEntry{factory: factory, schema: schema}
}

// Recognizes reports whether class has been registered.
func (r *Registry) Recognizes(class string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.classes[class]
	return ok
}

// Ensure returns class's factory and schema, or ErrUnknownType.
func (r *Registry) Ensure(class string) (Factory, *Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.classes[class]
	if !ok {
		return nil, nil, ErrUnknownType
	}
	return e.factory, e.schema, nil
}

// Classes lists every registered class name.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.classes))
	for name := range r.classes {
		out = append(out, name)
	}
	return out
}

// Default is the process-wide registry used by Register/RegisterClass when
// callers don't need multiple independent type universes.
var Default = NewRegistry()

// RegisterClass registers class on the Default registry.
func RegisterClass(class string, factory Factory, schema *Schema) {
	Default.Register(class, factory, schema)
}
