package idgen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var oidPattern = regexp.MustCompile(`^[0-9A-Za-z]{14}-[0-9A-Za-z]{4}-[0-9A-Za-z]{4}$`)

func TestNewMatchesFormat(t *testing.T) {
	g := New(3)
	for i := 0; i < 100; i++ {
		id := g.New()
		require.Regexp(t, oidPattern, id)
	}
}

func TestNewIsUniqueUnderBurst(t *testing.T) {
	g := New(0)
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := g.New()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNodeComponentIsStable(t *testing.T) {
	g := New(7)
	a := g.New()
	b := g.New()
	require.Equal(t, a[15:19], b[15:19])
}

func TestResolveNodeIDFromEnv(t *testing.T) {
	t.Setenv("NODE_ID", "42")
	require.Equal(t, 42, ResolveNodeID())
}
