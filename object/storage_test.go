package object_test

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	jsoncodec "github.com/loqor/objectstore/codec/json"
	"github.com/loqor/objectstore/idgen"
	"github.com/loqor/objectstore/index"
	"github.com/loqor/objectstore/kvstore/memory"
	"github.com/loqor/objectstore/object"
)

// note is a minimal stored type used across this package's tests: a
// Title property and a singular Related relation, enough to exercise
// identity preservation, cardinality enforcement, and cyclic references.
type note struct {
	object.Base
}

func newNote() object.StoredObject { return &note{} }

var noteSchema = &object.Schema{
	Properties: []string{"title"},
	Relations:  []object.RelationDef{{Name: "related", Plural: false}},
}

func (n *note) Title() string     { s, _ := n.Property("title").(string); return s }
func (n *note) SetTitle(v string) { _ = n.SetProperty("title", v) }
func (n *note) Related() *object.Relation { return n.Relation("related") }

// taggedNote additionally carries a plural Tags relation, used by the
// cardinality test to contrast with note's singular Related.
type taggedNote struct {
	object.Base
}

func newTaggedNote() object.StoredObject { return &taggedNote{} }

var taggedNoteSchema = &object.Schema{
	Properties: []string{"title"},
	Relations:  []object.RelationDef{{Name: "tags", Plural: true}},
}

func (n *taggedNote) Tags() *object.Relation { return n.Relation("tags") }

func newTestStorage(t *testing.T) *object.Storage {
	t.Helper()
	registry := object.NewRegistry()
	registry.Register("note", newNote, noteSchema)
	registry.Register("taggedNote", newTaggedNote, taggedNoteSchema)
	backend := memory.New()
	return object.NewStorage(backend, jsoncodec.New(), idgen.New(0), registry, nil)
}

// bucket is a minimal stored type whose "value" property is declared in
// IndexBy, used to exercise Storage's index maintenance on persist/Remove.
type bucket struct {
	object.Base
}

func newBucket() object.StoredObject { return &bucket{} }

var bucketSchema = &object.Schema{
	Properties: []string{"value"},
	IndexBy:    []string{"value"},
}

func (n *bucket) Value() int { v, _ := n.Property("value").(int); return v }
func (n *bucket) SetValue(v int) { _ = n.SetProperty("value", v) }

// tensBucket extracts the bucket a value falls into by integer-dividing by
// ten, matching the kind of custom, non-keyword extractor a caller wires up
// for a numeric IndexBy field via index.New.
func tensBucket(value any) []string {
	n, ok := value.(int)
	if !ok {
		return nil
	}
	return []string{fmt.Sprintf("%d", n/10)}
}

func newIndexedTestStorage(t *testing.T) (*object.Storage, *index.Index) {
	t.Helper()
	registry := object.NewRegistry()
	registry.Register("bucket", newBucket, bucketSchema)

	indexStorage := index.NewStorage(memory.New(), memory.New(), memory.New())
	idx := index.New("bucket.value", indexStorage, tensBucket)
	indexes := index.NewRegistry()
	indexes.Declare("bucket", "value", idx)

	backend := memory.New()
	storage := object.NewStorage(backend, jsoncodec.New(), idgen.New(0), registry, indexes)
	return storage, idx
}

// TestCreateGetRemoveRoundTrip covers S1: create, read back by oid, delete,
// confirm it is gone.
func TestCreateGetRemoveRoundTrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := t.Context()

	obj, err := storage.Create(ctx, "note", func(o object.StoredObject) error {
		o.(*note).SetTitle("hello")
		return nil
	})
	require.NoError(t, err)
	oid := obj.Base().OID()
	require.NotEmpty(t, oid)

	got, err := storage.Get(ctx, "note", oid)
	require.NoError(t, err)
	require.Equal(t, "hello", got.(*note).Title())

	require.NoError(t, storage.Remove(ctx, "note", oid))
	ok, err := storage.Has(ctx, "note", oid)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestIdentityPreservedWhileReferenced covers S2: two Gets for the same oid
// while a strong reference is still held return the identical pointer.
func TestIdentityPreservedWhileReferenced(t *testing.T) {
	storage := newTestStorage(t)
	ctx := t.Context()

	obj, err := storage.Create(ctx, "note", func(o object.StoredObject) error {
		o.(*note).SetTitle("first")
		return nil
	})
	require.NoError(t, err)
	oid := obj.Base().OID()

	again, err := storage.Get(ctx, "note", oid)
	require.NoError(t, err)
	require.Same(t, obj, again)
}

// TestEvictedObjectReloadsFromBackend covers the GC-eviction half of S2:
// once nothing but the weak cache entry refers to an object, a later Get
// reloads a fresh instance from the backend rather than reusing stale state.
func TestEvictedObjectReloadsFromBackend(t *testing.T) {
	storage := newTestStorage(t)
	ctx := t.Context()

	obj, err := storage.Create(ctx, "note", func(o object.StoredObject) error {
		o.(*note).SetTitle("durable")
		return nil
	})
	require.NoError(t, err)
	oid := obj.Base().OID()

	obj = nil //nolint:ineffassign // drop the only strong reference before GC
	runtime.GC()
	runtime.GC()

	got, err := storage.Get(ctx, "note", oid)
	require.NoError(t, err)
	require.Equal(t, "durable", got.(*note).Title())
}

// TestSingularRelationCardinalityViolation covers S6: appending a second
// target to a singular relation fails without mutating the first.
func TestSingularRelationCardinalityViolation(t *testing.T) {
	storage := newTestStorage(t)
	ctx := t.Context()

	a, err := storage.Create(ctx, "note", nil)
	require.NoError(t, err)
	b, err := storage.Create(ctx, "note", nil)
	require.NoError(t, err)
	c, err := storage.Create(ctx, "note", nil)
	require.NoError(t, err)

	rel := a.(*note).Related()
	require.NoError(t, rel.Append(b))

	err = rel.Append(c)
	require.ErrorIs(t, err, object.ErrCardinality)

	one, ok, err := rel.One(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, b, one)
}

// TestPluralRelationRoundTrip exercises a relation surviving export/import
// through Save and a fresh Get.
func TestPluralRelationRoundTrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := t.Context()

	tag1, err := storage.Create(ctx, "note", func(o object.StoredObject) error {
		o.(*note).SetTitle("go")
		return nil
	})
	require.NoError(t, err)
	tag2, err := storage.Create(ctx, "note", func(o object.StoredObject) error {
		o.(*note).SetTitle("storage")
		return nil
	})
	require.NoError(t, err)

	owner, err := storage.Create(ctx, "taggedNote", nil)
	require.NoError(t, err)
	tagged := owner.(*taggedNote)
	require.NoError(t, tagged.Tags().Append(tag1))
	require.NoError(t, tagged.Tags().Append(tag2))
	require.NoError(t, storage.Save(ctx, owner))

	oid := owner.Base().OID()
	owner = nil
	runtime.GC()

	reloaded, err := storage.Get(ctx, "taggedNote", oid)
	require.NoError(t, err)
	list, err := reloaded.(*taggedNote).Tags().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

// TestCreateMaintainsDeclaredIndex covers S3: creating an object with a
// declared IndexBy field is immediately findable through its Index, with no
// separate rebuild step.
func TestCreateMaintainsDeclaredIndex(t *testing.T) {
	storage, idx := newIndexedTestStorage(t)
	ctx := t.Context()

	obj, err := storage.Create(ctx, "bucket", func(o object.StoredObject) error {
		o.(*bucket).SetValue(42)
		return nil
	})
	require.NoError(t, err)
	oid := obj.Base().OID()

	keys, err := idx.Keys(ctx, "4")
	require.NoError(t, err)
	require.Equal(t, []string{oid}, keys)
}

// TestSaveRebucketsDeclaredIndex covers S3's rebucketing step: updating an indexed field and
// Save rebuckets the object instead of leaving it filed under its old
// signature.
func TestSaveRebucketsDeclaredIndex(t *testing.T) {
	storage, idx := newIndexedTestStorage(t)
	ctx := t.Context()

	obj, err := storage.Create(ctx, "bucket", func(o object.StoredObject) error {
		o.(*bucket).SetValue(15)
		return nil
	})
	require.NoError(t, err)
	oid := obj.Base().OID()

	obj.(*bucket).SetValue(91)
	require.NoError(t, storage.Save(ctx, obj))

	oldKeys, err := idx.Keys(ctx, "1")
	require.NoError(t, err)
	require.Empty(t, oldKeys)

	newKeys, err := idx.Keys(ctx, "9")
	require.NoError(t, err)
	require.Equal(t, []string{oid}, newKeys)
}

// TestRemoveDropsDeclaredIndex covers S3's removal step: removing an object drops it from
// every Index its schema declares.
func TestRemoveDropsDeclaredIndex(t *testing.T) {
	storage, idx := newIndexedTestStorage(t)
	ctx := t.Context()

	obj, err := storage.Create(ctx, "bucket", func(o object.StoredObject) error {
		o.(*bucket).SetValue(57)
		return nil
	})
	require.NoError(t, err)
	oid := obj.Base().OID()

	require.NoError(t, storage.Remove(ctx, "bucket", oid))

	keys, err := idx.Keys(ctx, "5")
	require.NoError(t, err)
	require.Empty(t, keys)
}
