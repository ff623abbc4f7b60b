package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_MissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "http://localhost:8000/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Models.CacheTTL.Duration)
	assert.False(t, cfg.Chat.AutoTitleOverridesRename)
}

func TestLoadFile_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
base_url = "https://rag.example.com/api"
timeout = "3s"

[store]
backend = "file"
path = "/tmp/ragchat-sessions"

[chat]
default_model = "llama3"
auto_title_overrides_rename = true

[models]
cache_ttl = "1m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rag.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout.Duration)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "llama3", cfg.Chat.DefaultModel)
	assert.True(t, cfg.Chat.AutoTitleOverridesRename)
	assert.Equal(t, time.Minute, cfg.Models.CacheTTL.Duration)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("RAGCHAT_API_URL", "http://10.0.0.2:8000/api")
	t.Setenv("RAGCHAT_STORE_BACKEND", "memory")
	t.Setenv("RAGCHAT_VERBOSE", "true")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.2:8000/api", cfg.API.BaseURL)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.True(t, cfg.Log.Verbose)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "etcd"
	assert.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Store.Backend = "redis"
	assert.Error(t, Validate(cfg), "redis backend needs a redis_url")

	cfg.Store.RedisURL = "redis://localhost:6379/0"
	assert.NoError(t, Validate(cfg))
}
