package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly. Attribute values stay untyped so the startup self-test can
// reject non-string values with a useful error instead of a decode error.
type FileConfig struct {
	ProjectID       string         `toml:"project_id"`
	TopicID         string         `toml:"topic_id"`
	CredentialsFile string         `toml:"credentials_file"`
	MaxBytes        int            `toml:"max_bytes"`
	MaxCount        int            `toml:"max_count"`
	MaxDelay        string         `toml:"max_delay"`
	MaxAttempts     int            `toml:"max_attempts"`
	BackoffInitial  string         `toml:"backoff_initial"`
	BackoffMax      string         `toml:"backoff_max"`
	MetricsAddr     string         `toml:"metrics_addr"`
	Attributes      map[string]any `toml:"attributes"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path,
// ~/.pubship/config.toml, if the home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pubship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("project", fc.ProjectID, &cfg.ProjectID)
	s.setString("topic", fc.TopicID, &cfg.TopicID)
	s.setString("credentials", fc.CredentialsFile, &cfg.CredentialsFile)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	s.setInt("max-bytes", fc.MaxBytes, &cfg.MaxBytes)
	s.setInt("max-count", fc.MaxCount, &cfg.MaxCount)
	s.setInt("max-attempts", fc.MaxAttempts, &cfg.MaxAttempts)

	if err := s.setDuration("max-delay", fc.MaxDelay, &cfg.MaxDelay); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", fc.BackoffInitial, &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", fc.BackoffMax, &cfg.BackoffMax); err != nil {
		return err
	}

	// Static attributes only come from the file; there is no flag form.
	if len(fc.Attributes) > 0 {
		cfg.Attributes = fc.Attributes
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
