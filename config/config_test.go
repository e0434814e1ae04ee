package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadParsesBackendAndLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "objectstore.yaml")
	contents := "backend:\n  kind: boltdb\n  path: ./data/store.db\nlog:\n  level: debug\n  json: true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "boltdb", cfg.Backend.Kind)
	require.Equal(t, "./data/store.db", cfg.Backend.Path)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Log.JSON)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDefaultUsesMemoryBackend(t *testing.T) {
	cfg := Default()
	require.Equal(t, "memory", cfg.Backend.Kind)
	require.Equal(t, "info", cfg.Log.Level)
}
