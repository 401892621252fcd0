package config

// Default values for configuration fields.
const (
	// Storage defaults
	DefaultStoragePath           = "data/compliance.db"
	DefaultStorageMaxOpenConns   = 10
	DefaultStorageMaxIdleConns   = 5
	DefaultStorageWALMode        = true
	DefaultStorageBusyTimeoutSec = 5

	// Outbox defaults
	DefaultOutboxPath            = "data/outbox.db"
	DefaultOutboxDispatchSeconds = 15
	DefaultOutboxMaxAttempts     = 10
	DefaultOutboxBatchSize       = 100

	// Sweep defaults
	DefaultSweepSchedule     = "*/15 * * * *"
	DefaultSweepBatchSize    = 500
	DefaultReminderLeadHours = 48

	// SLA defaults
	DefaultMaxGracePeriodDays = 90

	// Directory defaults
	DefaultDirectoryCacheTTLSec = 60

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "text"
	DefaultMetricsEnabled       = true
	DefaultMetricsNamespace     = "themis"
	DefaultMetricsSubsystem     = "engine"
	DefaultMetricsListenAddress = "127.0.0.1:9464"
)

// ApplyDefaults fills in default values for any unset configuration fields.
// It only sets fields that have zero values, preserving explicit settings.
func ApplyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.MaxOpenConns == 0 {
		cfg.Storage.MaxOpenConns = DefaultStorageMaxOpenConns
	}
	if cfg.Storage.MaxIdleConns == 0 {
		cfg.Storage.MaxIdleConns = DefaultStorageMaxIdleConns
	}
	if cfg.Storage.BusyTimeoutSeconds == 0 {
		cfg.Storage.BusyTimeoutSeconds = DefaultStorageBusyTimeoutSec
	}

	if cfg.Outbox.Path == "" {
		cfg.Outbox.Path = DefaultOutboxPath
	}
	if cfg.Outbox.DispatchIntervalSeconds == 0 {
		cfg.Outbox.DispatchIntervalSeconds = DefaultOutboxDispatchSeconds
	}
	if cfg.Outbox.MaxAttempts == 0 {
		cfg.Outbox.MaxAttempts = DefaultOutboxMaxAttempts
	}
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = DefaultOutboxBatchSize
	}

	if cfg.Sweep.Schedule == "" {
		cfg.Sweep.Schedule = DefaultSweepSchedule
	}
	if cfg.Sweep.BatchSize == 0 {
		cfg.Sweep.BatchSize = DefaultSweepBatchSize
	}
	if cfg.Sweep.ReminderLeadHours == 0 {
		cfg.Sweep.ReminderLeadHours = DefaultReminderLeadHours
	}

	if cfg.SLA.MaxGracePeriodDays == 0 {
		cfg.SLA.MaxGracePeriodDays = DefaultMaxGracePeriodDays
	}

	if cfg.Directory.CacheTTLSeconds == 0 {
		cfg.Directory.CacheTTLSeconds = DefaultDirectoryCacheTTLSec
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
}

// NewDefault returns a configuration populated entirely with defaults.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.SLA.Watch = true
	ApplyDefaults(cfg)
	return cfg
}
