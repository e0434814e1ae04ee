package index_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loqor/objectstore/index"
	"github.com/loqor/objectstore/kvstore/boltdb"
	"github.com/loqor/objectstore/kvstore/memory"
)

func newMemoryIndex() *index.Index {
	storage := index.NewStorage(memory.New(), memory.New(), memory.New())
	return index.New("Note.title", storage, func(v any) []string {
		return index.Keywords(v.(string))
	})
}

// TestHundredObjectRoundTrip covers S3: indexing a batch of objects under a
// keyword extractor and looking every one of them back up by its words.
func TestHundredObjectRoundTrip(t *testing.T) {
	idx := newMemoryIndex()
	ctx := t.Context()

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("Note.%03d", i)
		title := fmt.Sprintf("note number %d about storage", i)
		require.NoError(t, idx.Add(ctx, key, title))
	}

	keys, err := idx.Keys(ctx, index.Keyword("storage"))
	require.NoError(t, err)
	require.Len(t, keys, 100)
}

// TestUpdateRebucketsOnPropertyChange covers the rest of S3: updating a
// key's value moves it out of signatures it no longer matches and into new
// ones, without disturbing other keys' buckets.
func TestUpdateRebucketsOnPropertyChange(t *testing.T) {
	idx := newMemoryIndex()
	ctx := t.Context()

	require.NoError(t, idx.Add(ctx, "Note.1", "alpha beta"))
	require.NoError(t, idx.Add(ctx, "Note.2", "alpha gamma"))

	keys, err := idx.Keys(ctx, index.Keyword("alpha"))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Note.1", "Note.2"}, keys)

	require.NoError(t, idx.Update(ctx, "Note.1", "delta beta"))

	keys, err = idx.Keys(ctx, index.Keyword("alpha"))
	require.NoError(t, err)
	require.Equal(t, []string{"Note.2"}, keys)

	keys, err = idx.Keys(ctx, index.Keyword("delta"))
	require.NoError(t, err)
	require.Equal(t, []string{"Note.1"}, keys)

	keys, err = idx.Keys(ctx, index.Keyword("beta"))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Note.1"}, keys)
}

// TestMultiKeyExtractor covers S4: a Paths-style extractor indexes one key
// under several signatures at once.
func TestMultiKeyExtractor(t *testing.T) {
	storage := index.NewStorage(memory.New(), memory.New(), memory.New())
	idx := index.New("Doc.path", storage, func(v any) []string {
		return index.Paths("/")(v.(string))
	})
	ctx := t.Context()

	require.NoError(t, idx.Add(ctx, "Doc.1", "a/b/c"))

	for _, sig := range []string{"a", "a/b", "a/b/c"} {
		keys, err := idx.Keys(ctx, sig)
		require.NoError(t, err)
		require.Equal(t, []string{"Doc.1"}, keys, "signature %q", sig)
	}

	keys, err := idx.Keys(ctx, "a/b/c/d")
	require.NoError(t, err)
	require.Empty(t, keys)
}

// TestPersistentIndexSurvivesReopen covers S5: a DBM-backed IndexStorage
// keeps its forward/backward state across a Close/reopen cycle.
func TestPersistentIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := t.Context()

	open := func() (*boltdb.Store, *boltdb.Store, *boltdb.Store, func()) {
		fwd, err := boltdb.New(dir + "/forward.db")
		require.NoError(t, err)
		bwd, err := boltdb.New(dir + "/backward.db")
		require.NoError(t, err)
		meta, err := boltdb.New(dir + "/meta.db")
		require.NoError(t, err)
		return fwd, bwd, meta, func() {
			fwd.Close()
			bwd.Close()
			meta.Close()
		}
	}

	fwd, bwd, meta, closeAll := open()
	storage := index.NewStorage(fwd, bwd, meta)
	idx := index.New("Note.title", storage, func(v any) []string {
		return index.Keywords(v.(string))
	})
	require.NoError(t, idx.Add(ctx, "Note.1", "persistent storage test"))
	closeAll()

	fwd2, bwd2, meta2, closeAll2 := open()
	defer closeAll2()
	storage2 := index.NewStorage(fwd2, bwd2, meta2)
	idx2 := index.New("Note.title", storage2, func(v any) []string {
		return index.Keywords(v.(string))
	})

	keys, err := idx2.Keys(ctx, index.Keyword("persistent"))
	require.NoError(t, err)
	require.Equal(t, []string{"Note.1"}, keys)

	cold, err := idx2.IsCold(ctx)
	require.NoError(t, err)
	require.False(t, cold)
}
