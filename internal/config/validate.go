package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateWebhooks(&cfg.Webhooks)...)
	errs = append(errs, validateLogs(&cfg.Logs)...)
	errs = append(errs, validateReceiver(&cfg.Receiver)...)
	errs = append(errs, validateArchive(&cfg.Archive)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateServer(cfg *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "must be between 1 and 65535",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.read_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.WriteTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.write_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.MaxBodySize < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.max_body_size",
			Message: "must be non-negative",
		})
	}

	if cfg.RequestLogCapacity < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.request_log_capacity",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateDatabase(cfg *DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "database.path",
			Message: "must not be empty",
		})
	}

	if cfg.MaxOpenConns < 1 {
		errs = append(errs, ValidationError{
			Field:   "database.max_open_conns",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateWebhooks(cfg *WebhooksConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.DispatchTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "webhooks.dispatch_timeout",
			Message: "must be positive",
		})
	}

	for _, pattern := range cfg.AllowedTargets {
		if _, err := glob.Compile(pattern); err != nil {
			errs = append(errs, ValidationError{
				Field:   "webhooks.allowed_targets",
				Message: fmt.Sprintf("invalid glob pattern %q: %v", pattern, err),
			})
		}
	}

	if cfg.MaxResponseBody < 0 {
		errs = append(errs, ValidationError{
			Field:   "webhooks.max_response_body",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateLogs(cfg *LogsConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.MaxEntries < 0 {
		errs = append(errs, ValidationError{
			Field:   "logs.max_entries",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateReceiver(cfg *ReceiverConfig) ValidationErrors {
	var errs ValidationErrors

	if !cfg.RateLimit.Enabled {
		return errs
	}

	if cfg.RateLimit.Max < 1 {
		errs = append(errs, ValidationError{
			Field:   "receiver.rate_limit.max",
			Message: "must be at least 1",
		})
	}
	if cfg.RateLimit.Window <= 0 {
		errs = append(errs, ValidationError{
			Field:   "receiver.rate_limit.window",
			Message: "must be positive",
		})
	}

	return errs
}

func validateArchive(cfg *ArchiveConfig) ValidationErrors {
	var errs ValidationErrors

	if !cfg.Enabled {
		return errs
	}

	if cfg.Bucket == "" {
		errs = append(errs, ValidationError{
			Field:   "archive.bucket",
			Message: "required when archive is enabled",
		})
	}
	if cfg.S3.Region == "" {
		errs = append(errs, ValidationError{
			Field:   "archive.s3.region",
			Message: "required when archive is enabled",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch cfg.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be one of: trace, debug, info, warn, error",
		})
	}

	switch cfg.Format {
	case "", "console", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be console or json",
		})
	}

	return errs
}
