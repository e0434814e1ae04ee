// Package testsuite holds a backend-agnostic conformance suite, run by each
// concrete kvstore.Backend's own tests against a freshly constructed
// instance. Mirrors the original project's practice of exercising every
// storage driver through one shared CRUD/range contract.
package testsuite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loqor/objectstore/kvstore"
)

// Run exercises the full kvstore.Backend contract against backend, which
// must start out empty.
func Run(t *testing.T, backend kvstore.Backend) {
	t.Helper()
	t.Run("AddGetHas", func(t *testing.T) { testAddGetHas(t, backend) })
	t.Run("AddDuplicateFails", func(t *testing.T) { testAddDuplicateFails(t, backend) })
	t.Run("UpdateMissingFails", func(t *testing.T) { testUpdateMissingFails(t, backend) })
	t.Run("RemoveMissingFails", func(t *testing.T) { testRemoveMissingFails(t, backend) })
	t.Run("KeysPrefixAndOrder", func(t *testing.T) { testKeysPrefixAndOrder(t, backend) })
	t.Run("ListMatchesKeys", func(t *testing.T) { testListMatchesKeys(t, backend) })
	t.Run("Count", func(t *testing.T) { testCount(t, backend) })
	t.Run("Clear", func(t *testing.T) { testClear(t, backend) })
}

func testAddGetHas(t *testing.T, b kvstore.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Clear(ctx))

	ok, err := b.Has(ctx, "a1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Add(ctx, "a1", kvstore.Value("hello")))

	ok, err = b.Has(ctx, "a1")
	require.NoError(t, err)
	require.True(t, ok)

	v, err := b.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, kvstore.Value("hello"), v)

	require.NoError(t, b.Update(ctx, "a1", kvstore.Value("world")))
	v, err = b.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, kvstore.Value("world"), v)

	require.NoError(t, b.Remove(ctx, "a1"))
	_, err = b.Get(ctx, "a1")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func testAddDuplicateFails(t *testing.T, b kvstore.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Clear(ctx))
	require.NoError(t, b.Add(ctx, "dup", kvstore.Value("1")))
	err := b.Add(ctx, "dup", kvstore.Value("2"))
	require.ErrorIs(t, err, kvstore.ErrExists)
}

func testUpdateMissingFails(t *testing.T, b kvstore.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Clear(ctx))
	err := b.Update(ctx, "nope", kvstore.Value("x"))
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func testRemoveMissingFails(t *testing.T, b kvstore.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Clear(ctx))
	err := b.Remove(ctx, "nope")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func testKeysPrefixAndOrder(t *testing.T, b kvstore.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Clear(ctx))
	for _, k := range []string{"p.b", "p.a", "p.c", "q.z"} {
		require.NoError(t, b.Add(ctx, k, kvstore.Value(k)))
	}

	it, err := b.Keys(ctx, "p.", kvstore.OrderAscending)
	require.NoError(t, err)
	keys, err := kvstore.CollectKeys(it)
	require.NoError(t, err)
	require.Equal(t, []string{"p.a", "p.b", "p.c"}, keys)

	it, err = b.Keys(ctx, "p.", kvstore.OrderDescending)
	require.NoError(t, err)
	keys, err = kvstore.CollectKeys(it)
	require.NoError(t, err)
	require.Equal(t, []string{"p.c", "p.b", "p.a"}, keys)
}

func testListMatchesKeys(t *testing.T, b kvstore.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Clear(ctx))
	require.NoError(t, b.Add(ctx, "l.1", kvstore.Value("one")))
	require.NoError(t, b.Add(ctx, "l.2", kvstore.Value("two")))

	it, err := b.List(ctx, "l.")
	require.NoError(t, err)
	values, err := kvstore.CollectValues(it)
	require.NoError(t, err)
	require.Len(t, values, 2)
}

func testCount(t *testing.T, b kvstore.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Clear(ctx))
	require.NoError(t, b.Add(ctx, "c.1", kvstore.Value("x")))
	require.NoError(t, b.Add(ctx, "c.2", kvstore.Value("y")))
	require.NoError(t, b.Add(ctx, "other", kvstore.Value("z")))

	n, err := b.Count(ctx, "c.")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func testClear(t *testing.T, b kvstore.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Add(ctx, "gone", kvstore.Value("x")))
	require.NoError(t, b.Clear(ctx))
	n, err := b.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
