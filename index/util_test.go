package index_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loqor/objectstore/index"
)

func TestKeywordNormalizesCaseAndAccents(t *testing.T) {
	require.Equal(t, "cafe", index.Keyword("Café"))
	require.Equal(t, "hello", index.Keyword("  HELLO  "))
}

func TestKeywordsStripsPunctuation(t *testing.T) {
	require.Equal(t, []string{"hello", "world"}, index.Keywords("Hello, world!"))
}

func TestPathsReturnsEveryPrefix(t *testing.T) {
	require.Equal(t, []string{"a", "a/b", "a/b/c"}, index.Paths("/")("a/b/c"))
}

func TestUpdateTimeIsMonotonic(t *testing.T) {
	a := index.UpdateTime()
	b := index.UpdateTime()
	require.Less(t, a, b)
}
