package object

import "context"

// Property is a single named field's lazy holder. Most scalars restore
// eagerly (there is nothing to lazily resolve). A property set or restored
// from a {oid,type} reference shape — the same wire shape Relation uses —
// resolves lazily to its live target object on first Get, exactly as
// Relation.resolve does; the reference shape itself remains the value Raw
// (and therefore export) sees, so re-exporting a resolved property still
// writes back the reference, not the resolved object.
type Property struct {
	name     string
	value    any // raw stored value: the source of truth for export
	resolved any // cached resolution of value, when value is a reference
	base     *Base
}

func newProperty(name string, value any, base *Base) *Property {
	if obj, ok := value.(StoredObject); ok {
		b := obj.Base()
		value = map[string]any{"oid": b.oid, "type": b.class}
	}
	return &Property{name: name, value: value, base: base}
}

// Get returns the current value, resolving a stored object reference to its
// live target on first access and caching the result for subsequent calls.
func (p *Property) Get() any {
	if p == nil {
		return nil
	}
	if p.resolved != nil {
		return p.resolved
	}
	if resolved, ok := p.resolveReference(); ok {
		p.resolved = resolved
		return resolved
	}
	return p.value
}

// Raw returns the value exactly as stored, never resolving a reference —
// used by export so a reference property round-trips as {oid,type} rather
// than as whatever the resolved target happens to serialize to.
func (p *Property) Raw() any {
	if p == nil {
		return nil
	}
	return p.value
}

// resolveReference resolves value if it is a {oid,type} reference shape. ok
// is false for any other value, in which case callers fall back to it
// unchanged.
func (p *Property) resolveReference() (any, bool) {
	ref, ok := p.value.(map[string]any)
	if !ok {
		return nil, false
	}
	oid, _ := ref["oid"].(string)
	class, _ := ref["type"].(string)
	if oid == "" || class == "" || p.base == nil || p.base.storage == nil {
		return nil, false
	}
	obj, err := p.base.storage.Get(context.Background(), class, oid)
	if err != nil {
		return nil, false
	}
	return obj, true
}

// Set replaces the current value, clearing any cached resolution.
func (p *Property) Set(v any) {
	p.value = v
	p.resolved = nil
}
