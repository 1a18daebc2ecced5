package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "backend", cfg.Catalog.Provider)
	assert.Equal(t, "backend", cfg.AI.Provider)
	assert.Equal(t, 30*time.Minute, cfg.Wizard.SessionTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.Wizard.DebounceDelay)
	assert.Equal(t, "*/10 * * * * *", cfg.Poll.Spec)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeYAML(t, `
server:
  port: "9090"
backend:
  base_url: http://market.local/api
catalog:
  provider: bgg
  memory_ttl: 10m
wizard:
  enrich_interval: 1s
`)
	t.Setenv("PM_SERVER_PORT", "7070")
	t.Setenv("PM_DATABASE_DSN", "host=localhost dbname=pm")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "http://market.local/api", cfg.Backend.BaseURL)
	assert.Equal(t, "bgg", cfg.Catalog.Provider)
	assert.Equal(t, 10*time.Minute, cfg.Catalog.MemoryTTL)
	assert.Equal(t, time.Second, cfg.Wizard.EnrichInterval)
	assert.True(t, cfg.Database.Enabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "未知桌游数据源",
			yaml:    "catalog:\n  provider: steam\n",
			wantErr: "catalog.provider",
		},
		{
			name:    "gemini 缺少密钥",
			yaml:    "ai:\n  provider: gemini\n",
			wantErr: "gemini_api_key",
		},
		{
			name:    "会话有效期为 0",
			yaml:    "wizard:\n  session_ttl: 0s\n",
			wantErr: "session_ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeYAML(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
