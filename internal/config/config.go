// Package config provides configuration management for hookline.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure for hookline.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Logs      LogsConfig      `mapstructure:"logs"`
	Receiver  ReceiverConfig  `mapstructure:"receiver"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Seed      SeedConfig      `mapstructure:"seed"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind the server to
	Host string `mapstructure:"host"`

	// Port to listen on
	Port int `mapstructure:"port"`

	// Enable CORS
	CORS CORSConfig `mapstructure:"cors"`

	// Request timeouts
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Maximum request body size in bytes
	MaxBodySize int64 `mapstructure:"max_body_size"`

	// Capacity of the in-memory HTTP request log ring buffer
	RequestLogCapacity int `mapstructure:"request_log_capacity"`
}

// Address returns the host:port address to listen on.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	ExposedHeaders   []string      `mapstructure:"exposed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string `mapstructure:"path"`

	// Enable WAL mode (recommended)
	WALMode bool `mapstructure:"wal_mode"`

	// Cache size in KB (negative for KB, positive for pages)
	CacheSize int `mapstructure:"cache_size"`

	// Busy timeout
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	// Enable foreign keys (required for log cascade on webhook delete)
	ForeignKeys bool `mapstructure:"foreign_keys"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	JWT               JWTConfig      `mapstructure:"jwt"`
	Password          PasswordConfig `mapstructure:"password"`
	AllowRegistration bool           `mapstructure:"allow_registration"`
}

// JWTConfig holds JWT token settings.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

// PasswordConfig holds password policy settings.
type PasswordConfig struct {
	MinLength int `mapstructure:"min_length"`
}

// WebhooksConfig holds dispatch settings.
type WebhooksConfig struct {
	// DispatchTimeout bounds a single outgoing HTTP call. A dispatch that
	// exceeds it resolves as a transport failure.
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`

	// AllowedTargets is a list of glob patterns matched against outgoing
	// URLs. Empty means all targets are allowed.
	AllowedTargets []string `mapstructure:"allowed_targets"`

	// MaxResponseBody caps how many bytes of a response body are captured
	// into the execution log.
	MaxResponseBody int64 `mapstructure:"max_response_body"`
}

// LogsConfig holds execution log retention settings.
type LogsConfig struct {
	// MaxEntries caps the webhook_logs table. Oldest rows beyond the cap
	// are pruned after each append. Zero disables pruning.
	MaxEntries int `mapstructure:"max_entries"`
}

// ReceiverConfig holds settings for the public inbound endpoint.
type ReceiverConfig struct {
	RateLimit RateLimitRule `mapstructure:"rate_limit"`
}

// RateLimitRule is a token-bucket limit of Max requests per Window.
type RateLimitRule struct {
	Enabled bool          `mapstructure:"enabled"`
	Max     int           `mapstructure:"max"`
	Window  time.Duration `mapstructure:"window"`
}

// ArchiveConfig holds settings for archiving pruned log entries.
type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Bucket  string   `mapstructure:"bucket"`
	Prefix  string   `mapstructure:"prefix"`
	S3      S3Config `mapstructure:"s3"`
}

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// SchedulerConfig holds settings for schedule-driven dispatch.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RealtimeConfig holds WebSocket hub settings.
type RealtimeConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	SendBuffer int  `mapstructure:"send_buffer"`
}

// SeedConfig holds webhook definition seed-file settings.
type SeedConfig struct {
	// Path to a YAML file of webhook definitions loaded at startup.
	Path string `mapstructure:"path"`

	// Watch reloads the seed file when it changes on disk.
	Watch bool `mapstructure:"watch"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
