package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfig(t, `
project_id = "my-project"
topic_id = "events"
credentials_file = "/etc/pubship/key.json"
max_bytes = 500000
max_count = 50
max_delay = "2s"
max_attempts = 3
backoff_initial = "250ms"
backoff_max = "4s"
metrics_addr = ":9090"

[attributes]
env = "prod"
region = "us-east1"
`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.ProjectID != "my-project" {
		t.Errorf("ProjectID = %q, want my-project", fc.ProjectID)
	}
	if fc.MaxBytes != 500000 {
		t.Errorf("MaxBytes = %d, want 500000", fc.MaxBytes)
	}
	if fc.MaxDelay != "2s" {
		t.Errorf("MaxDelay = %q, want 2s", fc.MaxDelay)
	}
	if fc.Attributes["env"] != "prod" {
		t.Errorf("Attributes[env] = %v, want prod", fc.Attributes["env"])
	}
}

func TestApplyFileConfig(t *testing.T) {
	cfg := DefaultConfig()
	fc := FileConfig{
		ProjectID:  "file-project",
		TopicID:    "file-topic",
		MaxCount:   25,
		MaxDelay:   "3s",
		Attributes: map[string]any{"env": "staging"},
	}

	if err := ApplyFileConfig(&cfg, fc, nil); err != nil {
		t.Fatalf("ApplyFileConfig() error = %v", err)
	}
	if cfg.ProjectID != "file-project" {
		t.Errorf("ProjectID = %q, want file-project", cfg.ProjectID)
	}
	if cfg.MaxCount != 25 {
		t.Errorf("MaxCount = %d, want 25", cfg.MaxCount)
	}
	if cfg.MaxDelay != 3*time.Second {
		t.Errorf("MaxDelay = %v, want 3s", cfg.MaxDelay)
	}
	if cfg.Attributes["env"] != "staging" {
		t.Errorf("Attributes[env] = %v, want staging", cfg.Attributes["env"])
	}
	// Untouched fields keep defaults.
	if cfg.MaxBytes != DefaultMaxBytes {
		t.Errorf("MaxBytes = %d, want default %d", cfg.MaxBytes, DefaultMaxBytes)
	}
}

func TestApplyFileConfig_RespectsChangedFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectID = "flag-project"
	cfg.MaxCount = 7

	fc := FileConfig{ProjectID: "file-project", MaxCount: 99}
	changed := map[string]bool{"project": true, "max-count": true}

	if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
		t.Fatalf("ApplyFileConfig() error = %v", err)
	}
	if cfg.ProjectID != "flag-project" {
		t.Errorf("ProjectID = %q, flag value should win", cfg.ProjectID)
	}
	if cfg.MaxCount != 7 {
		t.Errorf("MaxCount = %d, flag value should win", cfg.MaxCount)
	}
}

func TestApplyFileConfig_InvalidDuration(t *testing.T) {
	cfg := DefaultConfig()
	fc := FileConfig{MaxDelay: "not-a-duration"}

	if err := ApplyFileConfig(&cfg, fc, nil); err == nil {
		t.Fatal("ApplyFileConfig() succeeded with invalid duration")
	}
}

// Non-string attribute values must survive file loading untouched so the
// startup self-test can reject them with an error naming the key.
func TestLoadFileConfig_KeepsNonStringAttributes(t *testing.T) {
	path := writeConfig(t, `
[attributes]
k = 123
`)

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if _, isString := fc.Attributes["k"].(string); isString {
		t.Error("Attributes[k] decoded as string, want original numeric type")
	}
}

func TestFileExists(t *testing.T) {
	path := writeConfig(t, "")
	if !FileExists(path) {
		t.Errorf("FileExists(%q) = false, want true", path)
	}
	if FileExists(filepath.Join(t.TempDir(), "missing.toml")) {
		t.Error("FileExists() = true for missing file")
	}
}
