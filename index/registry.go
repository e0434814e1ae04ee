package index

import "sync"

// Registry collects every Index declared across all stored classes,
// keyed first by class name and then by field name. It is the Go
// realization of the original Indexes registry's dynamic
// "registry.ClassName.by.field" attribute access, expressed here as
// registry.For(class).By(field) since Go cannot grow attributes on a
// struct at runtime.
type Registry struct {
	mu      sync.RWMutex
	byClass map[string]*ClassIndexes
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byClass: map[string]*ClassIndexes{}}
}

// ClassIndexes holds every Index declared for one class, by field name.
type ClassIndexes struct {
	mu      sync.RWMutex
	byField map[string]*Index
}

// By returns the Index declared for field, or nil if none was declared.
func (c *ClassIndexes) By(field string) *Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byField[field]
}

// Fields lists every field with a declared Index.
func (c *ClassIndexes) Fields() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.byField))
	for f := range c.byField {
		out = append(out, f)
	}
	return out
}

// For returns the ClassIndexes for class, creating an empty one if this is
// the first Index ever declared for it.
func (r *Registry) For(class string) *ClassIndexes {
	r.mu.Lock()
	defer r.mu.Unlock()
	ci, ok := r.byClass[class]
	if !ok {
		ci = &ClassIndexes{byField: map[string]*Index{}}
		r.byClass[class] = ci
	}
	return ci
}

// Declare registers idx as class's Index for field.
func (r *Registry) Declare(class, field string, idx *Index) {
	ci := r.For(class)
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.byField[field] = idx
}

// Classes lists every class with at least one declared Index.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byClass))
	for c := range r.byClass {
		out = append(out, c)
	}
	return out
}
