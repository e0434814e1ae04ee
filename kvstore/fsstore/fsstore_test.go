package fsstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loqor/objectstore/kvstore/testsuite"
)

func TestStoreConformance(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	testsuite.Run(t, s)
}

func TestDottedKeysFanOutToDirectories(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := t.Context()

	require.NoError(t, s.Add(ctx, "Message.foo-fwd.deadbeef", []byte("v")))
	ok, err := s.Has(ctx, "Message.foo-fwd.deadbeef")
	require.NoError(t, err)
	require.True(t, ok)

	p, err := s.Path(ctx, "Message.foo-fwd.deadbeef")
	require.NoError(t, err)
	require.Contains(t, p, "Message")
	require.Contains(t, p, "foo-fwd")
}

func TestRemovePrunesEmptyParents(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)
	ctx := t.Context()

	require.NoError(t, s.Add(ctx, "a.b.c", []byte("v")))
	require.NoError(t, s.Remove(ctx, "a.b.c"))

	n, err := s.Count(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = os.Stat(filepath.Join(root, "a"))
	require.True(t, os.IsNotExist(err), "empty parent directory should have been pruned")
	_, err = os.Stat(root)
	require.NoError(t, err)
}
