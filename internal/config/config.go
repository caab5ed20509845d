package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/grantiva/grantiva-go/internal/model"
)

const DefaultBaseURL = "https://grantiva.io"

// Storage backends for the secure store.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

type Config struct {
	BaseURL        string `yaml:"base_url"`
	TeamID         string `yaml:"team_id"`
	BundleID       string `yaml:"bundle_id"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryAttempts  int    `yaml:"retry_attempts"`
	DeviceID       string `yaml:"device_id"`

	Storage       string `yaml:"storage"`
	StorageSecret string `yaml:"storage_secret"`

	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBSSLMode  string `yaml:"db_sslmode"`

	RedisURL string `yaml:"redis_url"`

	SandboxPort            string `yaml:"sandbox_port"`
	SandboxJWTSecret       string `yaml:"sandbox_jwt_secret"`
	SandboxTokenTTLSeconds int    `yaml:"sandbox_token_ttl_seconds"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	return &Config{
		BaseURL:                DefaultBaseURL,
		TimeoutSeconds:         30,
		RetryAttempts:          3,
		Storage:                StorageMemory,
		DBPort:                 "5432",
		DBSSLMode:              "require",
		RedisURL:               "redis://localhost:6379",
		SandboxPort:            "8080",
		SandboxTokenTTLSeconds: 3600,
	}
}

// LoadConfig reads .env (if present), an optional YAML file named by
// GRANTIVA_CONFIG_FILE, and then environment variables, which win.
func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	cfg := Default()
	if path := os.Getenv("GRANTIVA_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.BaseURL, "GRANTIVA_BASE_URL")
	setString(&c.TeamID, "GRANTIVA_TEAM_ID")
	setString(&c.BundleID, "GRANTIVA_BUNDLE_ID")
	setString(&c.APIKey, "GRANTIVA_API_KEY")
	setString(&c.DeviceID, "GRANTIVA_DEVICE_ID")
	setString(&c.Storage, "GRANTIVA_STORAGE")
	setString(&c.StorageSecret, "GRANTIVA_STORAGE_SECRET")

	setString(&c.DBHost, "DB_HOST")
	setString(&c.DBPort, "DB_PORT")
	setString(&c.DBUser, "DB_USER")
	setString(&c.DBPassword, "DB_PASSWORD")
	setString(&c.DBName, "DB_NAME")
	setString(&c.DBSSLMode, "DB_SSLMODE")
	setString(&c.RedisURL, "REDIS_URL")

	setString(&c.SandboxPort, "SANDBOX_PORT")
	setString(&c.SandboxJWTSecret, "SANDBOX_JWT_SECRET")

	setPositiveInt(&c.TimeoutSeconds, "GRANTIVA_TIMEOUT_SECONDS")
	setPositiveInt(&c.RetryAttempts, "GRANTIVA_RETRY_ATTEMPTS")
	setPositiveInt(&c.SandboxTokenTTLSeconds, "SANDBOX_TOKEN_TTL_SECONDS")

	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.SandboxTokenTTLSeconds <= 0 {
		c.SandboxTokenTTLSeconds = 3600
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setPositiveInt(dst *int, key string) {
	n, err := strconv.Atoi(os.Getenv(key))
	if err == nil && n > 0 {
		*dst = n
	}
}

// Timeout is the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *Config) SandboxTokenTTL() time.Duration {
	return time.Duration(c.SandboxTokenTTLSeconds) * time.Second
}

// UsesAPIKey reports whether attestation is bypassed.
func (c *Config) UsesAPIKey() bool {
	return c.APIKey != ""
}

// Validate checks the SDK settings. Team and bundle ids are required
// unless an API key is configured.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base url is empty"))
	}
	if !c.UsesAPIKey() {
		if c.TeamID == "" {
			errs = append(errs, errors.New("team id is required without an api key"))
		}
		if c.BundleID == "" {
			errs = append(errs, errors.New("bundle id is required without an api key"))
		}
	}
	switch c.Storage {
	case StorageMemory, StoragePostgres, StorageRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage))
	}
	if len(errs) > 0 {
		return model.NewError(model.KindConfigurationError, errors.Join(errs...))
	}
	return nil
}
