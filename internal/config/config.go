// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Storage and search backends.
const (
	BackendGCS      = "gcs"
	BackendMinio    = "minio"
	BackendLocal    = "local"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBleve    = "bleve"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Extract ExtractConfig `mapstructure:"extract"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	Search  SearchConfig  `mapstructure:"search"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ArchiveConfig points at the archive index page.
type ArchiveConfig struct {
	URL           string `mapstructure:"url"`
	Extension     string `mapstructure:"extension"`
	RespectRobots bool   `mapstructure:"respect_robots"`
}

// IngestConfig governs ingestion runs.
type IngestConfig struct {
	StagingDir            string `mapstructure:"staging_dir"`
	SkipExisting          bool   `mapstructure:"skip_existing"`
	Schedule              string `mapstructure:"schedule"`
	UploadTimeoutSeconds  int    `mapstructure:"upload_timeout_seconds"`
	DBTimeoutSeconds      int    `mapstructure:"db_timeout_seconds"`
	ExtractTimeoutSeconds int    `mapstructure:"extract_timeout_seconds"`
}

// HTTPConfig configures outbound fetches.
type HTTPConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxBytes       int64   `mapstructure:"max_bytes"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
}

// ExtractConfig selects text extractors.
type ExtractConfig struct {
	Command []string `mapstructure:"command"`
	Native  bool     `mapstructure:"native"`
}

// StorageConfig sets the object store backend and key layout.
type StorageConfig struct {
	Backend       string      `mapstructure:"backend"`
	Prefix        string      `mapstructure:"prefix"`
	PublicBaseURL string      `mapstructure:"public_base_url"`
	GCSBucket     string      `mapstructure:"gcs_bucket"`
	LocalDir      string      `mapstructure:"local_dir"`
	Minio         MinioConfig `mapstructure:"minio"`
}

// MinioConfig configures an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// DBConfig controls access to the relational database. An empty DSN keeps
// issues in memory.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	MigrateOnStart         bool   `mapstructure:"migrate_on_start"`
}

// SearchConfig selects the full-text index backend.
type SearchConfig struct {
	Backend      string `mapstructure:"backend"`
	BlevePath    string `mapstructure:"bleve_path"`
	SnippetRunes int    `mapstructure:"snippet_runes"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID   string `mapstructure:"project_id"`
	RunsTopic   string `mapstructure:"runs_topic"`
	IssuesTopic string `mapstructure:"issues_topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MAGARCHIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Search.Backend = defaultSearchBackend(cfg.Search.Backend, cfg.DB.DSN)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultSearchBackend picks postgres when a database is configured and the
// in-memory index otherwise.
func defaultSearchBackend(backend, dsn string) string {
	if backend != "" {
		return backend
	}
	if dsn != "" {
		return BackendPostgres
	}
	return BackendMemory
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("archive.extension", ".pdf")
	v.SetDefault("archive.respect_robots", true)
	v.SetDefault("ingest.staging_dir", "staging")
	v.SetDefault("ingest.skip_existing", false)
	v.SetDefault("ingest.upload_timeout_seconds", 120)
	v.SetDefault("ingest.db_timeout_seconds", 30)
	v.SetDefault("ingest.extract_timeout_seconds", 120)
	v.SetDefault("http.user_agent", "magazine-archive-bot/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_bytes", 512<<20)
	v.SetDefault("http.rate_per_second", 1.0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("extract.command", []string{"pdftotext", "-layout", "-enc", "UTF-8", "{in}", "-"})
	v.SetDefault("extract.native", true)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.prefix", "magazines")
	v.SetDefault("storage.local_dir", "objects")
	v.SetDefault("storage.minio.region", "us-east-1")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	// Empty resolves from db.dsn in Load; the key stays registered for env overrides.
	v.SetDefault("search.backend", "")
	v.SetDefault("search.snippet_runes", 80)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RatePerSecond < 0 {
		return fmt.Errorf("http.rate_per_second must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Ingest.StagingDir == "" {
		return fmt.Errorf("ingest.staging_dir is required")
	}
	if c.Ingest.Schedule != "" {
		if _, err := cron.ParseStandard(c.Ingest.Schedule); err != nil {
			return fmt.Errorf("ingest.schedule is invalid: %w", err)
		}
	}
	switch c.Storage.Backend {
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	case BackendMinio:
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return fmt.Errorf("storage.minio.endpoint and storage.minio.bucket are required for the minio backend")
		}
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	switch c.Search.Backend {
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres search backend")
		}
	case BackendBleve:
	case BackendMemory:
		if c.DB.DSN != "" {
			return fmt.Errorf("search.backend memory requires the in-memory issue store; unset db.dsn")
		}
	default:
		return fmt.Errorf("search.backend %q is not supported", c.Search.Backend)
	}
	return nil
}

// HTTPTimeout returns the outbound request timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Seconds converts a seconds knob into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// DocumentURL returns the public URL of an object key, or "" when no public
// base URL is configured.
func (c Config) DocumentURL(key string) string {
	if c.Storage.PublicBaseURL == "" || key == "" {
		return ""
	}
	return strings.TrimRight(c.Storage.PublicBaseURL, "/") + "/" + strings.TrimLeft(key, "/")
}
