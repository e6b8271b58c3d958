package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
)

// Run modes
const (
	ModeAPI    = "api"
	ModeWorker = "worker"
	ModeAll    = "all"
)

// Index backends
const (
	IndexPgvector = "pgvector"
	IndexVespa    = "vespa"
	IndexQdrant   = "qdrant"
)

// Queue backends
const (
	QueueRedis    = "redis"
	QueuePostgres = "postgres"
	QueueInline   = "inline" // no queue; notifications run in goroutines
)

// Config is the full service configuration
type Config struct {
	Mode           string   `yaml:"mode"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"` // "json" or "text"
	AllowedOrigins []string `yaml:"allowed_origins"`

	Database  DatabaseConfig    `yaml:"database"`
	Redis     RedisConfig       `yaml:"redis"`
	Index     IndexConfig       `yaml:"index"`
	Queue     QueueConfig       `yaml:"queue"`
	Drive     DriveConfig       `yaml:"drive"`
	Sync      SyncConfig        `yaml:"sync"`
	Renewal   RenewalConfig     `yaml:"renewal"`
	Retrieval RetrievalConfig   `yaml:"retrieval"`
	Auth      AuthConfig        `yaml:"auth"`
	Archive   ArchiveConfig     `yaml:"archive"`
	AI        domain.AISettings `yaml:"ai"`
}

// DatabaseConfig configures the postgres pool
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig configures the optional redis client
type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// IndexConfig selects and configures the vector index
type IndexConfig struct {
	Backend          string `yaml:"backend"`
	VespaURL         string `yaml:"vespa_url"`
	VespaConfigURL   string `yaml:"vespa_config_url"` // config server; set to deploy the schema at boot
	QdrantURL        string `yaml:"qdrant_url"`
	QdrantAPIKey     string `yaml:"-"`
	QdrantCollection string `yaml:"qdrant_collection"`
}

// QueueConfig selects the background task queue
type QueueConfig struct {
	Backend        string `yaml:"backend"` // empty picks redis when configured, else postgres
	Concurrency    int    `yaml:"concurrency"`
	DequeueTimeout int    `yaml:"dequeue_timeout"` // seconds
}

// DriveConfig configures the Drive file store and push channels
type DriveConfig struct {
	CredentialsFile string        `yaml:"credentials_file"`
	WebhookToken    string        `yaml:"-"`
	WebhookURL      string        `yaml:"webhook_url"`
	ChannelPrefix   string        `yaml:"channel_prefix"`
	ChannelTTL      time.Duration `yaml:"channel_ttl"`
	WatchFolderIDs  []string      `yaml:"watch_folder_ids"`
	WatchRecursive  bool          `yaml:"watch_recursive"` // also watch every subfolder
}

// SyncConfig tunes notification processing and ingestion
type SyncConfig struct {
	ScanWindow     time.Duration `yaml:"scan_window"`
	PreDelay       time.Duration `yaml:"pre_delay"`
	DedupeTTL      time.Duration `yaml:"dedupe_ttl"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	Concurrency    int           `yaml:"concurrency"`
	TempDir        string        `yaml:"temp_dir"`
	ChunkSize      int           `yaml:"chunk_size"`
	ChunkOverlap   int           `yaml:"chunk_overlap"`
	EmbedBatchSize int           `yaml:"embed_batch_size"`
}

// RenewalConfig configures the channel renewal loop
type RenewalConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	Threshold time.Duration `yaml:"threshold"`
}

// RetrievalConfig tunes retrieval defaults
type RetrievalConfig struct {
	TopKPre      int `yaml:"top_k_pre"`
	TopKPost     int `yaml:"top_k_post"`
	SnippetChars int `yaml:"snippet_chars"`
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	JWTSecret string `yaml:"-"`
	Issuer    string `yaml:"issuer"`
}

// ArchiveConfig configures the optional S3 copy of ingested files
type ArchiveConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// Enabled reports whether an archive bucket is configured
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Default returns the built-in defaults
func Default() *Config {
	return &Config{
		Mode:           ModeAll,
		Host:           "0.0.0.0",
		Port:           8080,
		LogLevel:       "info",
		LogFormat:      "json",
		AllowedOrigins: []string{"*"},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: time.Minute,
		},
		Redis: RedisConfig{Prefix: "sercha-drive"},
		Index: IndexConfig{
			Backend:          IndexPgvector,
			VespaURL:         "http://localhost:8080",
			QdrantURL:        "http://localhost:6333",
			QdrantCollection: "drive_chunks",
		},
		Queue: QueueConfig{
			Concurrency:    4,
			DequeueTimeout: 5,
		},
		Drive: DriveConfig{
			ChannelPrefix: domain.DefaultChannelPrefix,
			ChannelTTL:    7 * 24 * time.Hour,
		},
		Sync: SyncConfig{
			ScanWindow:     30 * time.Minute,
			PreDelay:       5 * time.Second,
			DedupeTTL:      10 * time.Minute,
			RetryAttempts:  6,
			RetryBaseDelay: 3 * time.Second,
			Concurrency:    4,
			ChunkSize:      800,
			ChunkOverlap:   50,
			EmbedBatchSize: 32,
		},
		Renewal: RenewalConfig{
			Enabled:   true,
			Interval:  time.Hour,
			Threshold: 6 * time.Hour,
		},
		Retrieval: RetrievalConfig{
			TopKPre:      30,
			TopKPost:     7,
			SnippetChars: 800,
		},
		Auth: AuthConfig{Issuer: "sercha"},
	}
}

// Load reads configuration from defaults, the YAML file named by CONFIG_FILE,
// a .env file in the working directory and the environment, in increasing
// precedence.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit .env path. An empty path skips it.
func LoadFrom(envFile string) (*Config, error) {
	// godotenv never overrides variables already set, so the real
	// environment keeps precedence over the file.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Mode = getEnv("RUN_MODE", c.Mode)
	c.Host = getEnv("HOST", c.Host)
	c.Port = getEnvInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.ConnMaxIdleTime = getEnvDuration("DB_CONN_MAX_IDLE_TIME", c.Database.ConnMaxIdleTime)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Redis.Prefix = getEnv("REDIS_PREFIX", c.Redis.Prefix)

	c.Index.Backend = getEnv("INDEX_BACKEND", c.Index.Backend)
	c.Index.VespaURL = getEnv("VESPA_URL", c.Index.VespaURL)
	c.Index.VespaConfigURL = getEnv("VESPA_CONFIG_URL", c.Index.VespaConfigURL)
	c.Index.QdrantURL = getEnv("QDRANT_URL", c.Index.QdrantURL)
	c.Index.QdrantAPIKey = getEnv("QDRANT_API_KEY", c.Index.QdrantAPIKey)
	c.Index.QdrantCollection = getEnv("QDRANT_COLLECTION", c.Index.QdrantCollection)

	c.Queue.Backend = getEnv("QUEUE_BACKEND", c.Queue.Backend)
	c.Queue.Concurrency = getEnvInt("WORKER_CONCURRENCY", c.Queue.Concurrency)
	c.Queue.DequeueTimeout = getEnvInt("WORKER_DEQUEUE_TIMEOUT", c.Queue.DequeueTimeout)

	c.Drive.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.Drive.CredentialsFile)
	c.Drive.WebhookToken = getEnv("GOOGLE_WEBHOOK_TOKEN", c.Drive.WebhookToken)
	c.Drive.WebhookURL = getEnv("WEBHOOK_URL", c.Drive.WebhookURL)
	c.Drive.ChannelPrefix = getEnv("CHANNEL_PREFIX", c.Drive.ChannelPrefix)
	c.Drive.ChannelTTL = getEnvDuration("CHANNEL_TTL", c.Drive.ChannelTTL)
	c.Drive.WatchFolderIDs = getEnvList("WATCH_FOLDER_IDS", c.Drive.WatchFolderIDs)
	c.Drive.WatchRecursive = getEnvBool("WATCH_RECURSIVE", c.Drive.WatchRecursive)

	c.Sync.ScanWindow = getEnvDuration("SCAN_WINDOW", c.Sync.ScanWindow)
	c.Sync.PreDelay = getEnvDuration("NOTIFICATION_PRE_DELAY", c.Sync.PreDelay)
	c.Sync.DedupeTTL = getEnvDuration("DEDUPE_TTL", c.Sync.DedupeTTL)
	c.Sync.RetryAttempts = getEnvInt("RETRY_MAX_ATTEMPTS", c.Sync.RetryAttempts)
	c.Sync.RetryBaseDelay = getEnvDuration("RETRY_BASE_DELAY", c.Sync.RetryBaseDelay)
	c.Sync.Concurrency = getEnvInt("SYNC_CONCURRENCY", c.Sync.Concurrency)
	c.Sync.TempDir = getEnv("SYNC_TEMP_DIR", c.Sync.TempDir)
	c.Sync.ChunkSize = getEnvInt("CHUNK_SIZE", c.Sync.ChunkSize)
	c.Sync.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", c.Sync.ChunkOverlap)
	c.Sync.EmbedBatchSize = getEnvInt("EMBED_BATCH_SIZE", c.Sync.EmbedBatchSize)

	c.Renewal.Enabled = getEnvBool("RENEWAL_ENABLED", c.Renewal.Enabled)
	c.Renewal.Interval = getEnvDuration("RENEWAL_INTERVAL", c.Renewal.Interval)
	c.Renewal.Threshold = getEnvDuration("RENEWAL_THRESHOLD", c.Renewal.Threshold)

	c.Retrieval.TopKPre = getEnvInt("RETRIEVAL_TOP_K_PRE", c.Retrieval.TopKPre)
	c.Retrieval.TopKPost = getEnvInt("RETRIEVAL_TOP_K_POST", c.Retrieval.TopKPost)
	c.Retrieval.SnippetChars = getEnvInt("RETRIEVAL_SNIPPET_CHARS", c.Retrieval.SnippetChars)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Issuer = getEnv("JWT_ISSUER", c.Auth.Issuer)

	c.Archive.Bucket = getEnv("ARCHIVE_S3_BUCKET", c.Archive.Bucket)
	c.Archive.Region = getEnv("AWS_REGION", c.Archive.Region)
	c.Archive.Prefix = getEnv("ARCHIVE_S3_PREFIX", c.Archive.Prefix)
	c.Archive.Endpoint = getEnv("ARCHIVE_S3_ENDPOINT", c.Archive.Endpoint)
	c.Archive.AccessKey = getEnv("AWS_ACCESS_KEY_ID", c.Archive.AccessKey)
	c.Archive.SecretKey = getEnv("AWS_SECRET_ACCESS_KEY", c.Archive.SecretKey)

	emb := &c.AI.Embedding
	emb.Provider = domain.AIProvider(getEnv("EMBEDDING_PROVIDER", string(emb.Provider)))
	emb.Model = getEnv("EMBEDDING_MODEL", emb.Model)
	emb.BaseURL = getEnv("EMBEDDING_BASE_URL", emb.BaseURL)
	emb.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", emb.Dimensions)
	emb.APIKey = getEnv("EMBEDDING_API_KEY", providerKey(emb.Provider, emb.APIKey))

	llm := &c.AI.LLM
	llm.Provider = domain.AIProvider(getEnv("LLM_PROVIDER", string(llm.Provider)))
	llm.Model = getEnv("LLM_MODEL", llm.Model)
	llm.BaseURL = getEnv("LLM_BASE_URL", llm.BaseURL)
	llm.APIKey = getEnv("LLM_API_KEY", providerKey(llm.Provider, llm.APIKey))
}

// providerKey falls back to the provider's conventional API key variable
func providerKey(provider domain.AIProvider, current string) string {
	if current != "" {
		return current
	}
	switch provider {
	case domain.AIProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case domain.AIProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

// Validate checks required settings and enumerations
func (c *Config) Validate() error {
	var errs []error
	missing := func(name string) {
		errs = append(errs, fmt.Errorf("%s is required: %w", name, domain.ErrConfigMissing))
	}
	invalid := func(name, value string) {
		errs = append(errs, fmt.Errorf("%s %q: %w", name, value, domain.ErrInvalidInput))
	}

	switch c.Mode {
	case ModeAPI, ModeWorker, ModeAll:
	default:
		invalid("RUN_MODE", c.Mode)
	}
	switch c.Index.Backend {
	case IndexPgvector, IndexVespa, IndexQdrant:
	default:
		invalid("INDEX_BACKEND", c.Index.Backend)
	}
	switch c.Queue.Backend {
	case "", QueueRedis, QueuePostgres, QueueInline:
	default:
		invalid("QUEUE_BACKEND", c.Queue.Backend)
	}
	if c.Queue.Backend == QueueRedis && c.Redis.URL == "" {
		missing("REDIS_URL")
	}
	if c.Port <= 0 || c.Port > 65535 {
		invalid("PORT", strconv.Itoa(c.Port))
	}

	if c.Database.URL == "" {
		missing("DATABASE_URL")
	}
	if c.Drive.WebhookToken == "" {
		missing("GOOGLE_WEBHOOK_TOKEN")
	}
	if c.Drive.WebhookURL == "" && (len(c.Drive.WatchFolderIDs) > 0 || c.Renewal.Enabled) {
		missing("WEBHOOK_URL")
	}
	if c.Archive.Enabled() && c.Archive.Region == "" {
		missing("AWS_REGION")
	}
	if err := c.AI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ai settings: %w", err))
	}

	return errors.Join(errs...)
}

// QueueBackend resolves the effective queue backend
func (c *Config) QueueBackend() string {
	if c.Queue.Backend != "" {
		return c.Queue.Backend
	}
	if c.Redis.URL != "" {
		return QueueRedis
	}
	return QueuePostgres
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "1h") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
