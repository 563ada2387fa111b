package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.InDelta(t, 0.7, cfg.RAG.MatchThreshold, 1e-9)
	assert.Equal(t, 5, cfg.RAG.MatchCount)
	assert.Equal(t, StorageMySQL, cfg.Storage.Driver)
	assert.ElementsMatch(t, []string{"text/plain", "text/markdown", "application/pdf"}, cfg.Upload.AllowedTypes)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[app]
port = 9090

[rag]
chunk_size = 500
match_count = 3

[storage]
driver = "memory"
vector_driver = "memory"

[redis]
enabled = true
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RAG_MATCH_COUNT", "8")
	t.Setenv("RAG_MATCH_THRESHOLD", "0.5")
	t.Setenv("UPLOAD_ALLOWED_TYPES", "text/plain, application/pdf")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 8, cfg.RAG.MatchCount)
	assert.InDelta(t, 0.5, cfg.RAG.MatchThreshold, 1e-9)
	assert.Equal(t, []string{"text/plain", "application/pdf"}, cfg.Upload.AllowedTypes)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadRejectsBadStorage(t *testing.T) {
	path := writeConfig(t, `
[storage]
driver = "memory"
vector_driver = "pgvector"
`)
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORAGE_VECTOR_DRIVER", "qdrant")
	_, err = Load()
	assert.ErrorContains(t, err, "unknown vector driver")
}

func TestLoadMalformedFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, "[app\nport ="))
	_, err := Load()
	assert.ErrorContains(t, err, "decode config file failed")
}
