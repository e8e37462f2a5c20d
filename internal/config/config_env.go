package config

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (PUBSHIP_*). It respects flags that have been explicitly set (changed
// map). Returns an error if a variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("project", os.Getenv("PUBSHIP_PROJECT_ID"), &cfg.ProjectID)
	s.setString("topic", os.Getenv("PUBSHIP_TOPIC_ID"), &cfg.TopicID)
	s.setString("credentials", os.Getenv("PUBSHIP_CREDENTIALS_FILE"), &cfg.CredentialsFile)
	s.setString("metrics-addr", os.Getenv("PUBSHIP_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setIntFromString("max-bytes", os.Getenv("PUBSHIP_MAX_BYTES"), &cfg.MaxBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("max-count", os.Getenv("PUBSHIP_MAX_COUNT"), &cfg.MaxCount); err != nil {
		return err
	}
	if err := s.setIntFromString("max-attempts", os.Getenv("PUBSHIP_MAX_ATTEMPTS"), &cfg.MaxAttempts); err != nil {
		return err
	}

	if err := s.setDuration("max-delay", os.Getenv("PUBSHIP_MAX_DELAY"), &cfg.MaxDelay); err != nil {
		return err
	}
	if err := s.setDuration("backoff-initial", os.Getenv("PUBSHIP_BACKOFF_INITIAL"), &cfg.BackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("backoff-max", os.Getenv("PUBSHIP_BACKOFF_MAX"), &cfg.BackoffMax); err != nil {
		return err
	}

	return nil
}
