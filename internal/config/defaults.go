package config

import "time"

// Default configuration values.
const (
	// Server defaults.
	DefaultHost               = "localhost"
	DefaultPort               = 8090
	DefaultReadTimeout        = 30 * time.Second
	DefaultWriteTimeout       = 30 * time.Second
	DefaultIdleTimeout        = 120 * time.Second
	DefaultMaxBodySize        = 10 * 1024 * 1024 // 10MB
	DefaultRequestLogCapacity = 1000

	// Database defaults.
	DefaultDBPath       = "hookline.db"
	DefaultCacheSize    = -64000 // 64MB
	DefaultBusyTimeout  = 5 * time.Second
	DefaultMaxOpenConns = 1 // SQLite works best with single writer
	DefaultMaxIdleConns = 1

	// Auth defaults.
	DefaultAccessTTL   = 15 * time.Minute
	DefaultRefreshTTL  = 7 * 24 * time.Hour
	DefaultJWTIssuer   = "hookline"
	DefaultMinPassword = 8

	// Webhook dispatch defaults.
	DefaultDispatchTimeout = 30 * time.Second
	DefaultMaxResponseBody = 1024 * 1024 // 1MB

	// Execution log defaults.
	DefaultLogMaxEntries = 10000

	// Receiver rate limit defaults.
	DefaultReceiverRateMax    = 60
	DefaultReceiverRateWindow = time.Minute

	// Realtime defaults.
	DefaultSendBuffer = 256

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               DefaultHost,
			Port:               DefaultPort,
			ReadTimeout:        DefaultReadTimeout,
			WriteTimeout:       DefaultWriteTimeout,
			IdleTimeout:        DefaultIdleTimeout,
			MaxBodySize:        DefaultMaxBodySize,
			RequestLogCapacity: DefaultRequestLogCapacity,
			CORS: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
				ExposedHeaders:   []string{"X-Request-ID"},
				AllowCredentials: false,
				MaxAge:           12 * time.Hour,
			},
		},
		Database: DatabaseConfig{
			Path:            DefaultDBPath,
			WALMode:         true,
			CacheSize:       DefaultCacheSize,
			BusyTimeout:     DefaultBusyTimeout,
			ForeignKeys:     true,
			MaxOpenConns:    DefaultMaxOpenConns,
			MaxIdleConns:    DefaultMaxIdleConns,
			ConnMaxLifetime: 0, // No limit
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				Issuer:     DefaultJWTIssuer,
				AccessTTL:  DefaultAccessTTL,
				RefreshTTL: DefaultRefreshTTL,
			},
			Password: PasswordConfig{
				MinLength: DefaultMinPassword,
			},
			AllowRegistration: true,
		},
		Webhooks: WebhooksConfig{
			DispatchTimeout: DefaultDispatchTimeout,
			MaxResponseBody: DefaultMaxResponseBody,
		},
		Logs: LogsConfig{
			MaxEntries: DefaultLogMaxEntries,
		},
		Receiver: ReceiverConfig{
			RateLimit: RateLimitRule{
				Enabled: true,
				Max:     DefaultReceiverRateMax,
				Window:  DefaultReceiverRateWindow,
			},
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Prefix:  "webhook-logs",
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
		},
		Realtime: RealtimeConfig{
			Enabled:    true,
			SendBuffer: DefaultSendBuffer,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
