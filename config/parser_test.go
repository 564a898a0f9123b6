package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFillsDefaultsFromYAML(t *testing.T) {
	cfg, err := Parse([]byte(`
storage:
  default: local
  roots:
    local: /var/spfs/repo
renderer:
  mode: copy
runtime:
  root: /var/spfs/runtimes
solver:
  repositories: [local, upstream]
`))
	require.NoError(t, err)
	require.Equal(t, "local", cfg.Storage.Default)
	require.Equal(t, "/var/spfs/repo", cfg.Storage.Roots["local"])
	require.Equal(t, "copy", cfg.Renderer.Mode)
	require.Equal(t, []string{"local", "upstream"}, cfg.Solver.Repositories)
	require.Equal(t, "info", cfg.Log.Level, "unspecified fields keep the Default() value")
}

func TestParseEnvOverlayOverridesNestedField(t *testing.T) {
	t.Setenv("SPFS_RENDERER_MODE", "hardlink-then-copy")
	t.Setenv("SPFS_LOG_LEVEL", "debug")

	cfg, err := Parse([]byte(`renderer:
  mode: copy
`))
	require.NoError(t, err)
	require.Equal(t, "hardlink-then-copy", cfg.Renderer.Mode)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestParseEnvOverlayOverridesMapEntry(t *testing.T) {
	t.Setenv("SPFS_STORAGE_ROOTS_UPSTREAM", "/mnt/upstream")

	cfg, err := Parse([]byte(`storage:
  roots:
    local: /var/spfs/repo
`))
	require.NoError(t, err)
	require.Equal(t, "/var/spfs/repo", cfg.Storage.Roots["local"])
	require.Equal(t, "/mnt/upstream", cfg.Storage.Roots["upstream"])
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  default: local\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "local", cfg.Storage.Default)
}
