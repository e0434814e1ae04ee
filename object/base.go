package object

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// StoredObject is implemented by every persisted type via struct embedding
// of Base. Base() exposes the embedded instance; factories return this
// interface so the registry and storage layers never need a concrete type.
type StoredObject interface {
	Base() *Base
}

// Base is embedded by every concrete stored type. It owns the schema-driven
// property/relation storage, the oid/class identity, and the bookkeeping
// (update timestamps, dirty tracking) that let Storage export, persist, and
// restore objects uniformly without per-type boilerplate beyond the type's
// own typed accessor methods.
type Base struct {
	mu      sync.Mutex
	self    StoredObject // set by Init; used for reflect-based hook lookup
	class   string
	oid     string
	schema  *Schema
	storage *Storage

	properties map[string]*Property
	relations  map[string]*Relation
	updates    map[string]string

	dirty bool
}

// Base implements StoredObject so embedding alone makes the outer type
// satisfy the interface: type Note struct { object.Base }.
func (b *Base) Base() *Base { return b }

// init wires a freshly allocated instance to its identity, schema, and
// owning storage. Called by Storage before the instance is handed back to
// any caller, and before relations are resolved, so a reentrant Get for the
// same oid during cyclic restoration finds a cached, already-identified
// (if not yet fully populated) instance.
func (b *Base) init(self StoredObject, storage *Storage, class, oid string, schema *Schema) {
	b.self = self
	b.storage = storage
	b.class = class
	b.oid = oid
	b.schema = schema
	b.properties = map[string]*Property{}
	b.relations = map[string]*Relation{}
	b.updates = map[string]string{}
	for _, r := range schema.Relations {
		b.relations[r.Name] = newRelation(r.Name, r.Plural, b)
	}
}

// OID returns the object's identifier.
func (b *Base) OID() string { return b.oid }

// Class returns the object's registered class/collection name.
func (b *Base) Class() string { return b.class }

// IsDirty reports whether any property or relation has changed since the
// object was last persisted by Create, Save or Sync.
func (b *Base) IsDirty() bool { return b.dirty }

// LastUpdate returns the timestamp of the most recently changed field, or
// "" for a never-modified object.
func (b *Base) LastUpdate() string { return b.updates["oid"] }

// Property returns the current value of a declared property, or nil if it
// was never set. It does not check the schema and returns no error (an
// undeclared name also yields nil), so typed accessors can call it without
// per-call error plumbing.
func (b *Base) Property(name string) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.properties[name].Get()
}

// SetProperty stores value under name, running an optional Filter<Name>
// hook declared on the concrete type (mirroring the original descriptor
// setter pattern): if the type defines
//
//	func (t *T) Filter<Name>(value any) any
//
// it is called and its result stored instead of value, unless the hook
// returns nil, in which case the raw value is kept unchanged.
func (b *Base) SetProperty(name string, value any) error {
	if !b.schema.hasProperty(name) {
		return ErrSchemaViolation
	}
	if filtered := b.runFilterHook("Filter", name, value); filtered != nil {
		value = filtered
	}
	b.mu.Lock()
	b.properties[name] = newProperty(name, value, b)
	b.mu.Unlock()
	b.touch(name)
	return nil
}

// Relation returns the named Relation holder, or nil if undeclared.
func (b *Base) Relation(name string) *Relation {
	return b.relations[name]
}

// touch stamps name and the object-level "oid" summary timestamp with the
// current time, and marks the object dirty and queued for Sync.
func (b *Base) touch(name string) {
	ts := nextTimestamp()
	b.updates[name] = ts
	b.updates["oid"] = ts
	b.dirty = true
	if b.storage != nil {
		b.storage.markDirty(b.self)
	}
}

// runFilterHook looks up prefix+Title(name) on b.self via reflection and,
// if found with the expected signature, calls it.
func (b *Base) runFilterHook(prefix, name string, value any) any {
	if b.self == nil {
		return nil
	}
	method := reflect.ValueOf(b.self).MethodByName(prefix + titleCase(name))
	if !method.IsValid() {
		return nil
	}
	mt := method.Type()
	if mt.NumIn() != 1 || mt.NumOut() != 1 {
		return nil
	}
	results := method.Call([]reflect.Value{reflect.ValueOf(value)})
	return results[0].Interface()
}

// Export renders the object to its primitive wire shape: oid, type,
// updates, every declared property, and every declared relation. Exposed
// for callers (e.g. package web) that need to serialize an object without
// going through Storage's own codec-based persistence path.
func (b *Base) Export() map[string]any { return b.export() }

// export renders the object to its primitive wire shape: oid, type,
// updates, every declared property, and every declared relation. Computed
// properties are never included; Schema.Reserved is not consulted.
func (b *Base) export() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[string]any{
		"oid":     b.oid,
		"type":    b.class,
		"updates": copyUpdates(b.updates),
	}
	for _, name := range b.schema.Properties {
		if p, ok := b.properties[name]; ok {
			out[name] = p.Raw()
		}
	}
	for name, rel := range b.relations {
		out[name] = rel.exportRefs()
	}
	return out
}

// restore populates the object from a primitive previously produced by
// export, without resolving any relation target (that happens lazily on
// first access via Relation.One/List/At/All).
func (b *Base) restore(data map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if updates, ok := data["updates"].(map[string]any); ok {
		for k, v := range updates {
			if s, ok := v.(string); ok {
				b.updates[k] = s
			}
		}
	}
	for _, name := range b.schema.Properties {
		if v, ok := data[name]; ok {
			b.properties[name] = newProperty(name, v, b)
		}
	}
	for name, rel := range b.relations {
		if v, ok := data[name]; ok {
			rel.importRefs(v)
		}
	}
	b.dirty = false
}

// indexSource returns the current value of a declared property or relation
// field, in the representation Storage's index maintenance should see: a
// property's raw stored value (never the resolved target of a reference),
// or a relation's current target oids.
func (b *Base) indexSource(field string) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.properties[field]; ok {
		return p.Raw()
	}
	if rel, ok := b.relations[field]; ok {
		return rel.oids()
	}
	return nil
}

// titleCase upper-cases name's first byte, enough for matching the
// Filter<Name> hook naming convention without pulling in golang.org/x/text.
func titleCase(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func copyUpdates(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var (
	tsMu   sync.Mutex
	tsLast int64
)

// nextTimestamp returns a strictly increasing YYYYMMDDhhmmssuuuuuu numeric
// timestamp string, matching the original storage layer's getTimestamp
// format: a plain 20-digit integer, so update times compare numerically as
// well as lexically, with no layout punctuation embedded in the digits.
func nextTimestamp() string {
	tsMu.Lock()
	defer tsMu.Unlock()
	now := time.Now().UnixMicro()
	if now <= tsLast {
		now = tsLast + 1
	}
	tsLast = now
	t := time.UnixMicro(now).UTC()
	micros := now % 1_000_000
	return fmt.Sprintf("%s%06d", t.Format("20060102150405"), micros)
}
