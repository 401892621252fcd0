package config

// Config is the root configuration structure for Themis.
// It contains all configuration sections for storage, the notification
// outbox, the SLA sweep, escalation matrices, the employee directory, and
// telemetry.
type Config struct {
	// Storage contains configuration for the primary compliance store.
	Storage StorageConfig `yaml:"storage"`

	// Outbox contains configuration for the durable notification outbox.
	Outbox OutboxConfig `yaml:"outbox"`

	// Sweep contains configuration for the periodic SLA sweep.
	Sweep SweepConfig `yaml:"sweep"`

	// SLA contains configuration for escalation matrices.
	SLA SLAConfig `yaml:"sla"`

	// Directory contains configuration for the employee directory.
	Directory DirectoryConfig `yaml:"directory"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StorageConfig contains configuration for the primary SQLite store.
type StorageConfig struct {
	// Path is the database file path.
	// Default: "data/compliance.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeoutSeconds is how long to wait when the database is locked.
	// Default: 5
	BusyTimeoutSeconds int `yaml:"busy_timeout_seconds"`
}

// OutboxConfig contains configuration for the notification outbox.
type OutboxConfig struct {
	// Path is the outbox database file path.
	// Default: "data/outbox.db"
	Path string `yaml:"path"`

	// DispatchIntervalSeconds is how often the dispatch loop drains pending
	// messages to the sender.
	// Default: 15
	DispatchIntervalSeconds int `yaml:"dispatch_interval_seconds"`

	// MaxAttempts is how many delivery attempts a message gets before it is
	// marked failed. 0 means retry forever.
	// Default: 10
	MaxAttempts int `yaml:"max_attempts"`

	// BatchSize is the maximum number of messages drained per dispatch pass.
	// Default: 100
	BatchSize int `yaml:"batch_size"`
}

// SweepConfig contains configuration for the periodic SLA sweep.
type SweepConfig struct {
	// Schedule is a cron expression for the sweep cadence.
	// Example: "*/15 * * * *" (every 15 minutes).
	// Empty disables the scheduler; sweeps can still be run one-shot.
	// Default: "*/15 * * * *"
	Schedule string `yaml:"schedule"`

	// BatchSize is the number of open requests fetched per page.
	// Default: 500
	BatchSize int `yaml:"batch_size"`

	// ReminderLeadHours sends one reminder this many hours before a pending
	// request's due date. 0 disables reminders.
	// Default: 48
	ReminderLeadHours int `yaml:"reminder_lead_hours"`
}

// SLAConfig contains configuration for escalation matrices.
type SLAConfig struct {
	// MatrixPath is an optional YAML file of SLA configurations. Entries in
	// the file take precedence over rows persisted in the store.
	MatrixPath string `yaml:"matrix_path"`

	// Watch reloads the matrix file on change.
	// Default: true when MatrixPath is set
	Watch bool `yaml:"watch"`

	// MaxGracePeriodDays is the ceiling for a campaign's grace period.
	// Default: 90
	MaxGracePeriodDays int `yaml:"max_grace_period_days"`
}

// DirectoryConfig contains configuration for the employee directory.
type DirectoryConfig struct {
	// Path is a YAML file of employee records for file-backed deployments.
	Path string `yaml:"path"`

	// CacheTTLSeconds bounds how stale the role-policy resolver's cache may
	// get before it re-reads mappings.
	// Default: 60
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "themis"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem.
	// Default: "engine"
	Subsystem string `yaml:"subsystem"`

	// ListenAddress is the address for the metrics HTTP endpoint.
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`
}
