// Package config holds the publisher's startup configuration and the
// loaders that fill it from a TOML file, environment variables, and CLI
// flags, with explicitly-set flags taking precedence.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/pubship/internal/domain"
)

// Default thresholds. A batch is flushed when it reaches MaxBytes or
// MaxCount, or when its first message is MaxDelay old.
const (
	DefaultMaxBytes = 1_000_000
	DefaultMaxCount = 100
	DefaultMaxDelay = 5 * time.Second
)

// Default retry knobs for transient send failures.
const (
	DefaultMaxAttempts    = 5
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
)

// Config is the immutable configuration snapshot taken at startup.
type Config struct {
	// ProjectID and TopicID identify the destination topic.
	ProjectID string
	TopicID   string

	// CredentialsFile is the path to a service account key file. When
	// empty, application default credentials are used.
	CredentialsFile string

	// Batch thresholds.
	MaxBytes int
	MaxCount int
	MaxDelay time.Duration

	// Retry policy for transient send failures.
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Attributes is the static attribute map applied to every message.
	// Values arrive untyped from file config; Start() validates that
	// every value is a string before the first message flows.
	Attributes map[string]any

	// MetricsAddr, when set, serves Prometheus metrics on this address.
	MetricsAddr string
}

// DefaultConfig returns a Config with default values. ProjectID and
// TopicID must be set before Start.
func DefaultConfig() Config {
	return Config{
		MaxBytes:       DefaultMaxBytes,
		MaxCount:       DefaultMaxCount,
		MaxDelay:       DefaultMaxDelay,
		MaxAttempts:    DefaultMaxAttempts,
		BackoffInitial: DefaultBackoffInitial,
		BackoffMax:     DefaultBackoffMax,
	}
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	if c.MaxBytes == 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.MaxCount == 0 {
		c.MaxCount = DefaultMaxCount
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffInitial == 0 {
		c.BackoffInitial = DefaultBackoffInitial
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = DefaultBackoffMax
	}
}

// Validate checks the threshold and retry invariants. Destination fields
// are checked at Start, where it is known whether a custom transport was
// injected.
func (c *Config) Validate() error {
	if c.MaxBytes <= 0 {
		return fmt.Errorf("%w: max-bytes must be > 0, got %d", domain.ErrInvalidConfig, c.MaxBytes)
	}
	if c.MaxCount < 1 {
		return fmt.Errorf("%w: max-count must be >= 1, got %d", domain.ErrInvalidConfig, c.MaxCount)
	}
	if c.MaxDelay <= 0 {
		return fmt.Errorf("%w: max-delay must be > 0, got %v", domain.ErrInvalidConfig, c.MaxDelay)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max-attempts must be >= 1, got %d", domain.ErrInvalidConfig, c.MaxAttempts)
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("%w: backoff range %v..%v is invalid", domain.ErrInvalidConfig, c.BackoffInitial, c.BackoffMax)
	}
	return nil
}

// configSetter applies configuration values while respecting flag
// precedence: a value is only applied if the corresponding flag was not
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables, which come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
