// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	clearing := cfg.Mollie.ClearingAccount
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Mollie         MollieConfig         `yaml:"mollie"`
	Storage        StorageConfig        `yaml:"storage"`
	API            APIConfig            `yaml:"api"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

// ReconciliationConfig holds matching thresholds. Defaults mirror the
// hand-tuned production constants; override per deployment.
type ReconciliationConfig struct {
	AcceptanceThreshold        float64 `yaml:"acceptance_threshold"`
	BatchDateWindowDays        int     `yaml:"batch_date_window_days"`
	SettlementDateWindowDays   int     `yaml:"settlement_date_window_days"`
	SettlementTolerancePercent float64 `yaml:"settlement_tolerance_percent"`
	PaymentTolerancePercent    float64 `yaml:"payment_tolerance_percent"`
	FuzzyMinScore              float64 `yaml:"fuzzy_min_score"`
}

// MollieConfig holds payment-provider integration settings
type MollieConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	BankAccount     string `yaml:"bank_account"`
	ClearingAccount string `yaml:"clearing_account"`
	FeesAccount     string `yaml:"fees_account"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${MOLLIE_API_KEY})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("RECONCILE_DB_PATH", "reconcile.db"),
		},
		Mollie: MollieConfig{
			APIKey:          os.Getenv("MOLLIE_API_KEY"),
			BaseURL:         getEnv("MOLLIE_BASE_URL", "https://api.mollie.com"),
			BankAccount:     os.Getenv("MOLLIE_BANK_ACCOUNT"),
			ClearingAccount: os.Getenv("MOLLIE_CLEARING_ACCOUNT"),
			FeesAccount:     os.Getenv("MOLLIE_FEES_ACCOUNT"),
			TimeoutSeconds:  getEnvInt("MOLLIE_TIMEOUT_SECONDS", 30),
		},
		API: APIConfig{
			Port: getEnvInt("API_PORT", 8080),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from the specified path, falls back
// to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills unset reconciliation thresholds with the
// production constants.
func (c *Config) applyDefaults() {
	r := &c.Reconciliation
	if r.AcceptanceThreshold == 0 {
		r.AcceptanceThreshold = 0.85
	}
	if r.BatchDateWindowDays == 0 {
		r.BatchDateWindowDays = 7
	}
	if r.SettlementDateWindowDays == 0 {
		r.SettlementDateWindowDays = 3
	}
	if r.SettlementTolerancePercent == 0 {
		r.SettlementTolerancePercent = 0.1
	}
	if r.PaymentTolerancePercent == 0 {
		r.PaymentTolerancePercent = 1.0
	}
	if r.FuzzyMinScore == 0 {
		r.FuzzyMinScore = 0.6
	}
	if c.Mollie.BaseURL == "" {
		c.Mollie.BaseURL = "https://api.mollie.com"
	}
	if c.Mollie.TimeoutSeconds == 0 {
		c.Mollie.TimeoutSeconds = 30
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
