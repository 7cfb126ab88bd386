package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateBaseURL checks the chat backend URL is absolute http(s).
func (v *Validator) ValidateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("chat base URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid chat base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("chat base URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("chat base URL must include a host")
	}
	return nil
}

// ValidateAuthToken rejects tokens that would break the Authorization header.
func (v *Validator) ValidateAuthToken(token string) error {
	if token == "" {
		return fmt.Errorf("chat auth token cannot be empty")
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return fmt.Errorf("chat auth token cannot contain whitespace")
	}
	return nil
}

// ValidateBackend validates the session store backend name
func (v *Validator) ValidateBackend(backend string) error {
	validBackends := []string{"memory", "file", "sqlite"}
	if slices.Contains(validBackends, backend) {
		return nil
	}
	return fmt.Errorf("invalid session backend: %s (must be one of: %s)", backend, strings.Join(validBackends, ", "))
}

// ValidateSweepSchedule checks the sweeper cron expression.
func (v *Validator) ValidateSweepSchedule(schedule string) error {
	if schedule == "" {
		return nil // Use default
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if slices.Contains(validLevels, level) {
		return nil
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := cfg.Validate(); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateBaseURL(cfg.Chat.BaseURL); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateAuthToken(cfg.Chat.AuthToken); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateBackend(cfg.Session.Backend); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateSweepSchedule(cfg.Session.SweepSchedule); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
