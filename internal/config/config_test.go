package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500, cfg.Index.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Index.LockTimeout)
	assert.Equal(t, "relevance", cfg.Search.DefaultSort)
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	content := `
version: 1
paths:
  database: custom/index.db
index:
  batch_size: 250
search:
  default_limit: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte(content), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Index.BatchSize)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, filepath.Join(root, "custom", "index.db"), cfg.Paths.Database)
	// Untouched values keep defaults
	assert.Equal(t, "relevance", cfg.Search.DefaultSort)
}

func TestLoad_EnvWins(t *testing.T) {
	root := t.TempDir()
	t.Setenv("BIBDEX_BATCH_SIZE", "100")
	t.Setenv("BIBDEX_DATABASE", "/tmp/elsewhere.db")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Index.BatchSize)
	assert.Equal(t, "/tmp/elsewhere.db", cfg.Paths.Database)
}

func TestLoad_InvalidYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("{not yaml"), 0o644))

	_, err := Load(root)
	assert.Error(t, err)
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.Index.BatchSize = 0 }},
		{"huge batch size", func(c *Config) { c.Index.BatchSize = 50000 }},
		{"negative lock timeout", func(c *Config) { c.Index.LockTimeout = -time.Second }},
		{"zero default limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"unknown sort", func(c *Config) { c.Search.DefaultSort = "shuffled" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFindProjectRoot_WalksUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("version: 1\n"), 0o644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindProjectRoot_FallsBackToStart(t *testing.T) {
	start := t.TempDir()
	got, err := FindProjectRoot(start)
	require.NoError(t, err)
	assert.Equal(t, start, got)
}

func TestSaveAndReload(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Index.BatchSize = 123
	require.NoError(t, cfg.Save(root))

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 123, loaded.Index.BatchSize)
}
