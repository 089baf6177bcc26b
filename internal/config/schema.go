// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for inlet.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Server configures the HTTP gateway.
	Server ServerConfig `yaml:"server"`

	// Queue configures buffering behavior, globally and per channel.
	Queue QueueConfig `yaml:"queue"`

	// Forward configures the downstream agent runner that executes batches.
	Forward ForwardConfig `yaml:"forward"`

	// Summary configures the summarizer used by the summarize drop policy.
	Summary SummaryConfig `yaml:"summary"`

	// Hooks configures lifecycle event handling.
	Hooks HooksConfig `yaml:"hooks"`

	// Journal configures the on-disk decision journal.
	Journal JournalConfig `yaml:"journal"`

	// Maintenance configures background cron jobs.
	Maintenance MaintenanceConfig `yaml:"maintenance"`

	// Tracing configures OTLP trace export.
	Tracing TracingConfig `yaml:"tracing"`

	// Reload configures config file watching.
	Reload ReloadConfig `yaml:"reload"`
}

// ServerConfig holds HTTP gateway configuration. InboundSecrets maps
// channel names to shared HMAC secrets for the inbound webhook endpoint;
// channels without an entry accept unsigned requests.
type ServerConfig struct {
	Listen          string            `yaml:"listen"`
	AdminToken      string            `yaml:"admin_token"`
	InboundSecrets  map[string]string `yaml:"inbound_secrets,omitempty"`
	ReadTimeout     time.Duration     `yaml:"read_timeout"`
	WriteTimeout    time.Duration     `yaml:"write_timeout"`
	ShutdownTimeout time.Duration     `yaml:"shutdown_timeout"`
}

func (c *ServerConfig) defaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// QueueConfig holds the global queue settings and per-channel overrides.
// Unset fields inherit built-in defaults; pointer fields distinguish an
// explicit zero (cap: 0 disables buffering, debounce: 0 flushes at submit)
// from an absent key.
type QueueConfig struct {
	Mode       string                     `yaml:"mode"`
	DropPolicy string                     `yaml:"drop_policy"`
	Debounce   *time.Duration             `yaml:"debounce"`
	Cap        *int                       `yaml:"cap"`
	MaxIdle    time.Duration              `yaml:"max_idle"`
	Channels   map[string]ChannelOverride `yaml:"channels,omitempty"`
}

func (c *QueueConfig) defaults() {
	if c.MaxIdle <= 0 {
		c.MaxIdle = 30 * time.Minute
	}
}

// ChannelOverride overrides a subset of queue settings for one channel.
// Absent fields inherit the global queue section.
type ChannelOverride struct {
	Mode       string         `yaml:"mode"`
	DropPolicy string         `yaml:"drop_policy"`
	Debounce   *time.Duration `yaml:"debounce"`
	Cap        *int           `yaml:"cap"`
}

// ForwardConfig identifies the downstream runner that executes flushed
// batches. BaseURL is required.
type ForwardConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *ForwardConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

// SummaryConfig selects the summarizer implementation. Provider is
// "truncate" (default, no credentials needed) or "anthropic".
type SummaryConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	MaxChars int    `yaml:"max_chars"`
}

func (c *SummaryConfig) defaults() {
	if c.Provider == "" {
		c.Provider = "truncate"
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 480
	}
}

// HooksConfig configures lifecycle event handling. An empty AuditLog
// disables the audit file handler.
type HooksConfig struct {
	AuditLog string `yaml:"audit_log"`
}

// JournalConfig configures the SQLite decision journal. An empty Path
// disables journaling.
type JournalConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

func (c *JournalConfig) defaults() {
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
}

// Enabled reports whether journaling is configured.
func (c JournalConfig) Enabled() bool {
	return c.Path != ""
}

// MaintenanceConfig holds cron expressions for background jobs.
type MaintenanceConfig struct {
	Prune        string `yaml:"prune"`
	JournalSweep string `yaml:"journal_sweep"`
}

func (c *MaintenanceConfig) defaults() {
	if c.Prune == "" {
		c.Prune = "*/5 * * * *"
	}
	if c.JournalSweep == "" {
		c.JournalSweep = "0 3 * * *"
	}
}

// TracingConfig configures OTLP trace export. An empty Endpoint disables
// tracing entirely; set Sample below 1.0 to sample a fraction of flushes.
type TracingConfig struct {
	Endpoint string  `yaml:"endpoint"`
	Insecure bool    `yaml:"insecure"`
	Sample   float64 `yaml:"sample"`
}

func (c *TracingConfig) defaults() {
	if c.Sample <= 0 {
		c.Sample = 1
	}
}

// Enabled reports whether trace export is configured.
func (c TracingConfig) Enabled() bool {
	return c.Endpoint != ""
}

// ReloadConfig configures config file watching. Watching is on unless
// watch is explicitly false.
type ReloadConfig struct {
	Watch    *bool         `yaml:"watch"`
	Interval time.Duration `yaml:"interval"`
}

func (c *ReloadConfig) defaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
}

// Enabled reports whether the config file should be watched for changes.
func (c ReloadConfig) Enabled() bool {
	return c.Watch == nil || *c.Watch
}

// defaults fills zero values with sensible defaults across all sections.
func (c *Config) defaults() {
	c.Server.defaults()
	c.Queue.defaults()
	c.Forward.defaults()
	c.Summary.defaults()
	c.Journal.defaults()
	c.Maintenance.defaults()
	c.Tracing.defaults()
	c.Reload.defaults()
}
