package kconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverridesOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boot.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_processes = 16
tick_hz = 1000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 16, cfg.MaxProcesses)
	require.Equal(t, 1000, cfg.TickHz)
	// everything else still comes from Default()
	require.Equal(t, Default().HeapSizeBytes, cfg.HeapSizeBytes)
	require.Equal(t, Default().MaxOpenFiles, cfg.MaxOpenFiles)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}

func TestLoadMalformedTomlReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = valid = toml"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
