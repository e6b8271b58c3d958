package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// setRequired sets the minimum environment Load accepts
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/sercha?sslmode=disable")
	t.Setenv("GOOGLE_WEBHOOK_TOKEN", "secret-token")
	t.Setenv("WEBHOOK_URL", "https://drive.example.com/webhooks/drive")
	t.Setenv("CONFIG_FILE", "")
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ModeAll, cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, IndexPgvector, cfg.Index.Backend)
	assert.Equal(t, domain.DefaultChannelPrefix, cfg.Drive.ChannelPrefix)
	assert.Equal(t, 30*time.Minute, cfg.Sync.ScanWindow)
	assert.Equal(t, 6, cfg.Sync.RetryAttempts)
	assert.Equal(t, 3*time.Second, cfg.Sync.RetryBaseDelay)
	assert.Equal(t, time.Hour, cfg.Renewal.Interval)
	assert.Equal(t, 6*time.Hour, cfg.Renewal.Threshold)
	assert.Equal(t, 30, cfg.Retrieval.TopKPre)
	assert.Equal(t, 7, cfg.Retrieval.TopKPost)
	assert.True(t, cfg.Renewal.Enabled)
	assert.False(t, cfg.Archive.Enabled())
}

func TestLoadFrom_Environment(t *testing.T) {
	setRequired(t)
	t.Setenv("RUN_MODE", "worker")
	t.Setenv("PORT", "9090")
	t.Setenv("INDEX_BACKEND", "qdrant")
	t.Setenv("QDRANT_API_KEY", "qk")
	t.Setenv("WATCH_FOLDER_IDS", " f1, ,f2 ")
	t.Setenv("WATCH_RECURSIVE", "true")
	t.Setenv("SCAN_WINDOW", "45m")
	t.Setenv("RETRY_BASE_DELAY", "2")
	t.Setenv("RENEWAL_ENABLED", "off")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("EMBEDDING_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "gk")
	t.Setenv("EMBEDDING_API_KEY", "")

	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, ModeWorker, cfg.Mode)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.Equal(t, IndexQdrant, cfg.Index.Backend)
	assert.Equal(t, "qk", cfg.Index.QdrantAPIKey)
	assert.Equal(t, []string{"f1", "f2"}, cfg.Drive.WatchFolderIDs)
	assert.True(t, cfg.Drive.WatchRecursive)
	assert.Equal(t, 45*time.Minute, cfg.Sync.ScanWindow)
	assert.Equal(t, 2*time.Second, cfg.Sync.RetryBaseDelay)
	assert.False(t, cfg.Renewal.Enabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, domain.AIProviderGemini, cfg.AI.Embedding.Provider)
	assert.Equal(t, "gk", cfg.AI.Embedding.APIKey)
}

func TestLoadFrom_YAMLThenEnv(t *testing.T) {
	setRequired(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
mode: api
index:
  backend: vespa
  vespa_url: http://vespa:8080
sync:
  scan_window: 20m
  chunk_size: 400
retrieval:
  top_k_post: 5
drive:
  watch_folder_ids: [root-folder]
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHUNK_SIZE", "600")

	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, ModeAPI, cfg.Mode)
	assert.Equal(t, IndexVespa, cfg.Index.Backend)
	assert.Equal(t, "http://vespa:8080", cfg.Index.VespaURL)
	assert.Equal(t, 20*time.Minute, cfg.Sync.ScanWindow)
	assert.Equal(t, 600, cfg.Sync.ChunkSize, "environment wins over file")
	assert.Equal(t, 5, cfg.Retrieval.TopKPost)
	assert.Equal(t, 30, cfg.Retrieval.TopKPre, "unset keys keep defaults")
	assert.Equal(t, []string{"root-folder"}, cfg.Drive.WatchFolderIDs)
}

func TestLoadFrom_BadYAML(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: [unclosed"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := LoadFrom("")
	assert.Error(t, err)
}

func TestLoadFrom_MissingYAML(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := LoadFrom("")
	assert.Error(t, err)
}

func TestLoadFrom_DotEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_FORMAT", "")
	require.NoError(t, os.Unsetenv("LOG_FORMAT"))
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LOG_FORMAT=text\nGOOGLE_WEBHOOK_TOKEN=from-file\n"), 0o600))

	cfg, err := LoadFrom(envFile)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "secret-token", cfg.Drive.WebhookToken, "process env wins over .env")
}

func TestLoadFrom_MissingDotEnvIgnored(t *testing.T) {
	setRequired(t)

	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestValidate_Required(t *testing.T) {
	cfg := Default()

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigMissing)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "GOOGLE_WEBHOOK_TOKEN")
	assert.Contains(t, err.Error(), "WEBHOOK_URL")
}

func TestValidate_WebhookURLOptionalWithoutChannels(t *testing.T) {
	cfg := Default()
	cfg.Database.URL = "postgres://x"
	cfg.Drive.WebhookToken = "t"
	cfg.Renewal.Enabled = false

	assert.NoError(t, cfg.Validate())

	cfg.Drive.WatchFolderIDs = []string{"f1"}
	assert.ErrorIs(t, cfg.Validate(), domain.ErrConfigMissing)
}

func TestValidate_Enumerations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"bad mode", func(c *Config) { c.Mode = "batch" }, domain.ErrInvalidInput},
		{"bad index", func(c *Config) { c.Index.Backend = "elastic" }, domain.ErrInvalidInput},
		{"bad queue", func(c *Config) { c.Queue.Backend = "kafka" }, domain.ErrInvalidInput},
		{"bad port", func(c *Config) { c.Port = 0 }, domain.ErrInvalidInput},
		{"redis queue without url", func(c *Config) { c.Queue.Backend = QueueRedis }, domain.ErrConfigMissing},
		{"archive without region", func(c *Config) { c.Archive.Bucket = "b" }, domain.ErrConfigMissing},
		{"bad provider", func(c *Config) { c.AI.LLM.Provider = "acme" }, domain.ErrInvalidProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Database.URL = "postgres://x"
			cfg.Drive.WebhookToken = "t"
			cfg.Drive.WebhookURL = "https://x/webhooks/drive"
			tt.mutate(cfg)

			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestQueueBackend(t *testing.T) {
	cfg := Default()
	assert.Equal(t, QueuePostgres, cfg.QueueBackend())

	cfg.Redis.URL = "redis://localhost:6379"
	assert.Equal(t, QueueRedis, cfg.QueueBackend())

	cfg.Queue.Backend = QueueInline
	assert.Equal(t, QueueInline, cfg.QueueBackend())
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("T_INT", "bogus")
	assert.Equal(t, 3, getEnvInt("T_INT", 3))

	t.Setenv("T_BOOL", "maybe")
	assert.True(t, getEnvBool("T_BOOL", true))
	t.Setenv("T_BOOL", "YES")
	assert.True(t, getEnvBool("T_BOOL", false))

	t.Setenv("T_DUR", "nonsense")
	assert.Equal(t, time.Minute, getEnvDuration("T_DUR", time.Minute))
	t.Setenv("T_DUR", "90")
	assert.Equal(t, 90*time.Second, getEnvDuration("T_DUR", time.Minute))

	t.Setenv("T_LIST", ",,")
	assert.Nil(t, getEnvList("T_LIST", []string{"x"}))
}
