package boltdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loqor/objectstore/kvstore/testsuite"
)

func TestStoreConformance(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "store.db"))
	require.NoError(t, err)
	defer s.Close()

	testsuite.Run(t, s)
}

func TestReopenPreservesData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Add(t.Context(), "k", []byte("v")))
	require.NoError(t, s.Close())

	s2, err := New(path)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.Get(t.Context(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}
