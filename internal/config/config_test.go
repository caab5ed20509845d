package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grantiva/grantiva-go/internal/model"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GRANTIVA_CONFIG_FILE", "")
	t.Setenv("GRANTIVA_TIMEOUT_SECONDS", "")
	t.Setenv("GRANTIVA_RETRY_ATTEMPTS", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout())
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.RetryAttempts)
	}
	if cfg.SandboxTokenTTL() != time.Hour {
		t.Errorf("SandboxTokenTTL = %v, want 1h", cfg.SandboxTokenTTL())
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	// ARRANGE
	dir := t.TempDir()
	path := filepath.Join(dir, "grantiva.yaml")
	yamlDoc := "team_id: TEAMFILE\nbundle_id: com.file.app\ntimeout_seconds: 12\nstorage: redis\n"
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GRANTIVA_CONFIG_FILE", path)
	t.Setenv("GRANTIVA_TEAM_ID", "TEAMENV")
	t.Setenv("GRANTIVA_BUNDLE_ID", "")
	t.Setenv("GRANTIVA_TIMEOUT_SECONDS", "")
	t.Setenv("GRANTIVA_STORAGE", "")

	// ACT
	cfg, err := LoadConfig()

	// ASSERT
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.TeamID != "TEAMENV" {
		t.Errorf("TeamID = %q, env should override file", cfg.TeamID)
	}
	if cfg.BundleID != "com.file.app" {
		t.Errorf("BundleID = %q, want value from file", cfg.BundleID)
	}
	if cfg.TimeoutSeconds != 12 {
		t.Errorf("TimeoutSeconds = %d, want 12", cfg.TimeoutSeconds)
	}
	if cfg.Storage != StorageRedis {
		t.Errorf("Storage = %q, want redis", cfg.Storage)
	}
}

func TestLoadConfig_BadFile(t *testing.T) {
	t.Setenv("GRANTIVA_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"team and bundle", func(c *Config) { c.TeamID, c.BundleID = "T", "B" }, false},
		{"api key alone", func(c *Config) { c.APIKey = "gk_live_x" }, false},
		{"missing bundle", func(c *Config) { c.TeamID = "T" }, true},
		{"nothing set", func(c *Config) {}, true},
		{"bad storage", func(c *Config) { c.APIKey, c.Storage = "k", "sqlite" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && !errors.Is(err, model.ErrConfiguration) {
				t.Errorf("Validate() = %v, want configuration error", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}
