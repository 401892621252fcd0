package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Use LoadConfigWithEnvOverrides for environment variable support.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// THEMIS_SECTION_FIELD (e.g. THEMIS_STORAGE_PATH) and always take precedence
// over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	overrideString("THEMIS_STORAGE_PATH", &cfg.Storage.Path)
	overrideInt("THEMIS_STORAGE_MAX_OPEN_CONNS", &cfg.Storage.MaxOpenConns)
	overrideInt("THEMIS_STORAGE_MAX_IDLE_CONNS", &cfg.Storage.MaxIdleConns)
	overrideBool("THEMIS_STORAGE_WAL_MODE", &cfg.Storage.WALMode)
	overrideInt("THEMIS_STORAGE_BUSY_TIMEOUT_SECONDS", &cfg.Storage.BusyTimeoutSeconds)

	overrideString("THEMIS_OUTBOX_PATH", &cfg.Outbox.Path)
	overrideInt("THEMIS_OUTBOX_DISPATCH_INTERVAL_SECONDS", &cfg.Outbox.DispatchIntervalSeconds)
	overrideInt("THEMIS_OUTBOX_MAX_ATTEMPTS", &cfg.Outbox.MaxAttempts)
	overrideInt("THEMIS_OUTBOX_BATCH_SIZE", &cfg.Outbox.BatchSize)

	overrideString("THEMIS_SWEEP_SCHEDULE", &cfg.Sweep.Schedule)
	overrideInt("THEMIS_SWEEP_BATCH_SIZE", &cfg.Sweep.BatchSize)
	overrideInt("THEMIS_SWEEP_REMINDER_LEAD_HOURS", &cfg.Sweep.ReminderLeadHours)

	overrideString("THEMIS_SLA_MATRIX_PATH", &cfg.SLA.MatrixPath)
	overrideBool("THEMIS_SLA_WATCH", &cfg.SLA.Watch)
	overrideInt("THEMIS_SLA_MAX_GRACE_PERIOD_DAYS", &cfg.SLA.MaxGracePeriodDays)

	overrideString("THEMIS_DIRECTORY_PATH", &cfg.Directory.Path)
	overrideInt("THEMIS_DIRECTORY_CACHE_TTL_SECONDS", &cfg.Directory.CacheTTLSeconds)

	overrideString("THEMIS_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	overrideString("THEMIS_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	overrideBool("THEMIS_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	overrideString("THEMIS_METRICS_NAMESPACE", &cfg.Telemetry.Metrics.Namespace)
	overrideString("THEMIS_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
}

func overrideString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func overrideInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func overrideBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
