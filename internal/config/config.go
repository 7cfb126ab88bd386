package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main ezoverthinking configuration
type Config struct {
	// Chat backend
	Chat ChatConfig `json:"chat" mapstructure:"chat"`

	// Session storage and expiry
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Prometheus endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// OpenTelemetry
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Audit log file, empty disables auditing
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ChatConfig holds the agent backend connection settings
type ChatConfig struct {
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	AuthToken      string `json:"auth_token" mapstructure:"auth_token"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// Timeout returns the request bound as a duration.
func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SessionConfig holds session store settings
type SessionConfig struct {
	Backend         string `json:"backend" mapstructure:"backend"` // memory, file, sqlite
	Dir             string `json:"dir" mapstructure:"dir"`
	DBPath          string `json:"db_path" mapstructure:"db_path"`
	MaxAgeHours     int    `json:"max_age_hours" mapstructure:"max_age_hours"`
	StoreTTLSeconds int    `json:"store_ttl_seconds" mapstructure:"store_ttl_seconds"` // 0 keeps records until swept
	SweepSchedule   string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// MaxAge returns the idle limit as a duration.
func (s SessionConfig) MaxAge() time.Duration {
	return time.Duration(s.MaxAgeHours) * time.Hour
}

// StoreTTL returns the store-level expiry as a duration.
func (s SessionConfig) StoreTTL() time.Duration {
	return time.Duration(s.StoreTTLSeconds) * time.Second
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`

	RedactPatterns []string `json:"redact_patterns,omitempty" mapstructure:"redact_patterns"`
}

// MetricsConfig holds the Prometheus listener settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
	// Endpoint is an OTLP/HTTP collector host:port. Empty keeps spans in-process.
	Endpoint string `json:"endpoint,omitempty" mapstructure:"endpoint"`
	Insecure bool   `json:"insecure,omitempty" mapstructure:"insecure"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			BaseURL:        "http://localhost:8000",
			AuthToken:      "demo_token",
			TimeoutSeconds: 30,
		},
		Session: SessionConfig{
			Backend:         "file",
			MaxAgeHours:     24,
			StoreTTLSeconds: 0,
			SweepSchedule:   "@every 1h",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "ezoverthinking",
			SampleRatio: 1.0,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Chat.BaseURL == "" {
		return fmt.Errorf("chat.base_url is required")
	}
	if c.Chat.TimeoutSeconds <= 0 {
		return fmt.Errorf("chat.timeout_seconds must be positive")
	}

	switch c.Session.Backend {
	case "memory", "file", "sqlite":
	default:
		return fmt.Errorf("invalid session backend %s (must be: memory, file, sqlite)", c.Session.Backend)
	}
	if c.Session.MaxAgeHours <= 0 {
		return fmt.Errorf("session.max_age_hours must be positive")
	}
	if c.Session.StoreTTLSeconds < 0 {
		return fmt.Errorf("session.store_ttl_seconds must be >= 0")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}

	return nil
}
