package object

import (
	"context"
	"fmt"
)

// ref is a stored pointer to another object: its class and oid. Resolution
// to a live *StoredObject happens lazily, through the owning Base's Storage.
type ref struct {
	class string
	oid   string
}

// Relation holds zero or more references to other stored objects. Singular
// relations (Plural == false) hold at most one; appending a second target
// to an already-populated singular relation is a cardinality violation.
type Relation struct {
	name   string
	plural bool
	base   *Base
	refs   []ref
}

func newRelation(name string, plural bool, base *Base) *Relation {
	return &Relation{name: name, plural: plural, base: base}
}

// Len returns the number of targets currently held.
func (r *Relation) Len() int {
	if r == nil {
		return 0
	}
	return len(r.refs)
}

// Has reports whether the relation holds any target.
func (r *Relation) Has() bool { return r.Len() > 0 }

// Append adds target to the relation. For a singular relation this fails
// with ErrCardinality once a target is already present; callers must Clear
// or Set first.
func (r *Relation) Append(target StoredObject) error {
	if !r.plural && r.Len() >= 1 {
		return fmt.Errorf("relation %q: %w", r.name, ErrCardinality)
	}
	b := target.Base()
	r.refs = append(r.refs, ref{class: b.class, oid: b.oid})
	r.base.touch(r.name)
	return nil
}

// Set replaces the relation's entire contents with target (or clears it if
// target is nil), valid for both singular and plural relations.
func (r *Relation) Set(target StoredObject) {
	if target == nil {
		r.refs = nil
	} else {
		b := target.Base()
		r.refs = []ref{{class: b.class, oid: b.oid}}
	}
	r.base.touch(r.name)
}

// Remove drops target from the relation if present.
func (r *Relation) Remove(target StoredObject) {
	b := target.Base()
	for i, rf := range r.refs {
		if rf.class == b.class && rf.oid == b.oid {
			r.refs = append(r.refs[:i], r.refs[i+1:]...)
			r.base.touch(r.name)
			return
		}
	}
}

// Contains reports whether target is already a member of the relation.
func (r *Relation) Contains(target StoredObject) bool {
	b := target.Base()
	for _, rf := range r.refs {
		if rf.class == b.class && rf.oid == b.oid {
			return true
		}
	}
	return false
}

// Clear removes every target.
func (r *Relation) Clear() {
	r.refs = nil
	r.base.touch(r.name)
}

// One resolves and returns the relation's single target. ok is false if the
// relation is empty; resolving a plural relation with One returns its first
// element.
func (r *Relation) One(ctx context.Context) (StoredObject, bool, error) {
	if r.Len() == 0 {
		return nil, false, nil
	}
	obj, err := r.resolve(ctx, r.refs[0])
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

// List resolves and returns every target, in append order.
func (r *Relation) List(ctx context.Context) ([]StoredObject, error) {
	out := make([]StoredObject, 0, len(r.refs))
	for _, rf := range r.refs {
		obj, err := r.resolve(ctx, rf)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// At resolves the i'th target.
func (r *Relation) At(ctx context.Context, i int) (StoredObject, error) {
	if i < 0 || i >= len(r.refs) {
		return nil, fmt.Errorf("relation %q: index %d out of range", r.name, i)
	}
	return r.resolve(ctx, r.refs[i])
}

// All returns a range-over-func iterator over the resolved targets. It stops
// early if resolution of any target fails; the error is not reported to the
// caller (use List to receive it).
func (r *Relation) All(ctx context.Context) func(yield func(StoredObject) bool) {
	return func(yield func(StoredObject) bool) {
		for _, rf := range r.refs {
			obj, err := r.resolve(ctx, rf)
			if err != nil {
				return
			}
			if !yield(obj) {
				return
			}
		}
	}
}

func (r *Relation) resolve(ctx context.Context, rf ref) (StoredObject, error) {
	if r.base.storage == nil {
		return nil, ErrNotBound
	}
	return r.base.storage.Get(ctx, rf.class, rf.oid)
}

// exportRefs renders the relation to its primitive wire shape: a single
// {oid,type} map for a singular relation, a list of them for a plural one,
// matching the {oid,type} shape Base.export uses at the top level.
func (r *Relation) exportRefs() any {
	toMap := func(rf ref) map[string]any {
		return map[string]any{"oid": rf.oid, "type": rf.class}
	}
	if !r.plural {
		if len(r.refs) == 0 {
			return nil
		}
		return toMap(r.refs[0])
	}
	out := make([]any, 0, len(r.refs))
	for _, rf := range r.refs {
		out = append(out, toMap(rf))
	}
	return out
}

// oids returns the oids of every current target, in append order, without
// resolving them — used by Storage to derive the value an IndexBy relation
// field is indexed on.
func (r *Relation) oids() []string {
	out := make([]string, len(r.refs))
	for i, rf := range r.refs {
		out[i] = rf.oid
	}
	return out
}

func refFromPrimitive(m map[string]any) (ref, bool) {
	class, _ := m["type"].(string)
	oid, _ := m["oid"].(string)
	if class == "" || oid == "" {
		return ref{}, false
	}
	return ref{class: class, oid: oid}, true
}

func (r *Relation) importRefs(v any) {
	r.refs = nil
	switch val := v.(type) {
	case nil:
		return
	case map[string]any:
		if rf, ok := refFromPrimitive(val); ok {
			r.refs = append(r.refs, rf)
		}
	case []any:
		for _, item := range val {
			if m, ok := item.(map[string]any); ok {
				if rf, ok := refFromPrimitive(m); ok {
					r.refs = append(r.refs, rf)
				}
			}
		}
	}
}
