// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends accepted by storage.backend.
const (
	BackendLocal    = "local"
	BackendMemory   = "memory"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
)

// Event sinks accepted by events.sink.
const (
	SinkNone   = "none"
	SinkLog    = "log"
	SinkPubSub = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Limiter LimiterConfig `mapstructure:"limiter"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Storage StorageConfig `mapstructure:"storage"`
	Events  EventsConfig  `mapstructure:"events"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Host                   string   `mapstructure:"host"`
	Port                   int      `mapstructure:"port"`
	CORSAllowedOrigins     []string `mapstructure:"cors_allowed_origins"`
	RequestTimeoutSeconds  int      `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LimiterConfig sizes the process-wide outbound permit pool.
type LimiterConfig struct {
	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests"`
}

// FetchConfig governs the random-word client.
type FetchConfig struct {
	URL               string  `mapstructure:"url"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxWordCount      int     `mapstructure:"max_word_count"`
	UserAgent         string  `mapstructure:"user_agent"`
}

// StorageConfig selects and configures the artifact backend.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"`
	Local    LocalConfig    `mapstructure:"local"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// LocalConfig points the filesystem backend at a directory.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSConfig names the bucket and object prefix for artifacts.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PostgresConfig controls access to the relational backend.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// EventsConfig selects the lifecycle event sink.
type EventsConfig struct {
	Sink       string       `mapstructure:"sink"`
	BufferSize int          `mapstructure:"buffer_size"`
	PubSub     PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// legacyEnv maps keys to the bare environment names older deployments set.
var legacyEnv = map[string]string{
	"server.host":                     "HOST",
	"server.port":                     "PORT",
	"limiter.max_concurrent_requests": "MAX_CONCURRENT_REQUESTS",
}

// Load builds a Config from .env, disk and environment. An empty path skips
// the config file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("DICTGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "DICTGEN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8888)
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 30)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("limiter.max_concurrent_requests", 100)
	v.SetDefault("fetch.url", "https://random-words-api.vercel.app/word")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.requests_per_second", 0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("fetch.max_word_count", 10000)
	v.SetDefault("fetch.user_agent", "dictgen/0.1")
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.local.base_dir", ".temp")
	v.SetDefault("storage.gcs.prefix", "dictionaries")
	v.SetDefault("storage.postgres.table", "dictionaries")
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("events.sink", SinkLog)
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Limiter.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("limiter.max_concurrent_requests must be > 0")
	}
	if c.Fetch.URL == "" {
		return fmt.Errorf("fetch.url must be set")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.RequestsPerSecond < 0 {
		return fmt.Errorf("fetch.requests_per_second must be >= 0")
	}
	if c.Fetch.MaxWordCount <= 0 {
		return fmt.Errorf("fetch.max_word_count must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set for the local backend")
		}
	case BackendMemory:
	case BackendGCS:
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket must be set for the gcs backend")
		}
	case BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	switch c.Events.Sink {
	case SinkNone, SinkLog:
	case SinkPubSub:
		if c.Events.PubSub.ProjectID == "" || c.Events.PubSub.TopicID == "" {
			return fmt.Errorf("events.pubsub.project_id and events.pubsub.topic_id must be set for the pubsub sink")
		}
	default:
		return fmt.Errorf("events.sink %q is not supported", c.Events.Sink)
	}
	return nil
}

// Addr joins host and port for net/http.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// FetchTimeout is the per-request deadline for outbound word fetches.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds a single API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown, including outstanding runs.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
