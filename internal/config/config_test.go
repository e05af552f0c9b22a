package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Format)
	assert.False(t, cfg.Verbose)
	assert.NotEmpty(t, cfg.Database)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := "database: /tmp/custom.db\nverbose: true\nformat: json\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bomrev.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.Database)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "json", cfg.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BOMREV_DATABASE", "/tmp/env.db")
	t.Setenv("BOMREV_FORMAT", "json")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database)
	assert.Equal(t, "json", cfg.Format)
}
