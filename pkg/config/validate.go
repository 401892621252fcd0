package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "sweep.schedule").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All validation errors are
// collected and returned together; nil means the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.Storage.Path == "" {
		errs = append(errs, FieldError{"storage.path", "must not be empty"})
	}
	if cfg.Storage.MaxOpenConns < 1 {
		errs = append(errs, FieldError{"storage.max_open_conns", "must be at least 1"})
	}
	if cfg.Storage.MaxIdleConns < 0 {
		errs = append(errs, FieldError{"storage.max_idle_conns", "must not be negative"})
	}
	if cfg.Storage.BusyTimeoutSeconds < 0 {
		errs = append(errs, FieldError{"storage.busy_timeout_seconds", "must not be negative"})
	}

	if cfg.Outbox.Path == "" {
		errs = append(errs, FieldError{"outbox.path", "must not be empty"})
	}
	if cfg.Outbox.DispatchIntervalSeconds < 1 {
		errs = append(errs, FieldError{"outbox.dispatch_interval_seconds", "must be at least 1"})
	}
	if cfg.Outbox.MaxAttempts < 0 {
		errs = append(errs, FieldError{"outbox.max_attempts", "must not be negative"})
	}
	if cfg.Outbox.BatchSize < 1 {
		errs = append(errs, FieldError{"outbox.batch_size", "must be at least 1"})
	}

	if cfg.Sweep.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Sweep.Schedule); err != nil {
			errs = append(errs, FieldError{"sweep.schedule",
				fmt.Sprintf("invalid cron expression %q: %v", cfg.Sweep.Schedule, err)})
		}
	}
	if cfg.Sweep.BatchSize < 1 {
		errs = append(errs, FieldError{"sweep.batch_size", "must be at least 1"})
	}
	if cfg.Sweep.ReminderLeadHours < 0 {
		errs = append(errs, FieldError{"sweep.reminder_lead_hours", "must not be negative"})
	}

	if cfg.SLA.MaxGracePeriodDays < 0 {
		errs = append(errs, FieldError{"sla.max_grace_period_days", "must not be negative"})
	}

	if cfg.Directory.CacheTTLSeconds < 0 {
		errs = append(errs, FieldError{"directory.cache_ttl_seconds", "must not be negative"})
	}

	switch strings.ToLower(cfg.Telemetry.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			fmt.Sprintf("unknown level %q", cfg.Telemetry.Logging.Level)})
	}
	switch strings.ToLower(cfg.Telemetry.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			fmt.Sprintf("unknown format %q", cfg.Telemetry.Logging.Format)})
	}
	if cfg.Telemetry.Metrics.Enabled && cfg.Telemetry.Metrics.ListenAddress == "" {
		errs = append(errs, FieldError{"telemetry.metrics.listen_address", "must not be empty when metrics are enabled"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
