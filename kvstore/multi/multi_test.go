package multi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loqor/objectstore/kvstore"
	"github.com/loqor/objectstore/kvstore/memory"
	"github.com/loqor/objectstore/kvstore/testsuite"
)

func TestBackendConformance(t *testing.T) {
	testsuite.Run(t, New(memory.New(), memory.New()))
}

func TestWritesFanOutToAllMembers(t *testing.T) {
	a, b := memory.New(), memory.New()
	m := New(a, b)
	ctx := t.Context()

	require.NoError(t, m.Add(ctx, "k", kvstore.Value("v")))

	va, err := a.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, kvstore.Value("v"), va)

	vb, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, kvstore.Value("v"), vb)
}

func TestPartialWriteFailureLeavesEarlierMembersMutated(t *testing.T) {
	a, b := memory.New(), memory.New()
	ctx := t.Context()
	// Pre-seed b so its Add fails with ErrExists while a is untouched.
	require.NoError(t, b.Add(ctx, "k", kvstore.Value("old")))

	m := New(a, b)
	err := m.Add(ctx, "k", kvstore.Value("new"))
	require.ErrorIs(t, err, kvstore.ErrExists)

	ok, err := a.Has(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok, "earlier member should have been written despite later failure")
}

func TestReadsUseFirstCapableMember(t *testing.T) {
	a, b := memory.New(), memory.New()
	ctx := t.Context()
	require.NoError(t, a.Add(ctx, "only-in-a", kvstore.Value("v")))

	m := New(a, b)
	v, err := m.Get(ctx, "only-in-a")
	require.NoError(t, err)
	require.Equal(t, kvstore.Value("v"), v)
}
