// Package config loads runtime configuration for the oracle attestation
// service and the validator policy, from the environment with optional YAML
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// StoreBackend selects which spot-price store serves the oracle.
type StoreBackend string

const (
	BackendMemory   StoreBackend = "memory"
	BackendRedis    StoreBackend = "redis"
	BackendSQLite   StoreBackend = "sqlite"
	BackendPostgres StoreBackend = "postgres"
)

// Config holds oracle service configuration.
type Config struct {
	// OracleKeyID names the oracle signing key; OracleKeySeed (hex or raw,
	// >=16 bytes) deterministically derives it.
	OracleKeyID   string `yaml:"oracle_key_id"`
	OracleKeySeed string `yaml:"oracle_key_seed"`

	StoreBackend  StoreBackend `yaml:"store_backend"`
	RedisAddr     string       `yaml:"redis_addr"`
	RedisPassword string       `yaml:"redis_password"`
	RedisDB       int          `yaml:"redis_db"`
	SQLitePath    string       `yaml:"sqlite_path"`
	PostgresDSN   string       `yaml:"postgres_dsn"`

	// AttestRatePerSec bounds attestation requests; 0 disables the limiter.
	AttestRatePerSec float64 `yaml:"attest_rate_per_sec"`
	AttestBurst      int     `yaml:"attest_burst"`

	Policy PolicyConfig `yaml:"policy"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
	LogLevel     string `yaml:"log_level"`
}

// PolicyConfig mirrors validator.Policy for configuration files.
type PolicyConfig struct {
	RequireFutureMaturity  bool `yaml:"require_future_maturity"`
	FullExtinguishmentOnly bool `yaml:"full_extinguishment_only"`
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	cfg := &Config{
		OracleKeyID:      getenv("ORACLE_KEY_ID", "oracle-1"),
		OracleKeySeed:    os.Getenv("ORACLE_KEY_SEED"),
		StoreBackend:     StoreBackend(getenv("SPOT_STORE_BACKEND", string(BackendMemory))),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getenvInt("REDIS_DB", 0),
		SQLitePath:       getenv("SQLITE_PATH", "spots.db"),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),
		LogLevel:         getenv("LOG_LEVEL", "INFO"),
		AttestRatePerSec: getenvFloat("ATTEST_RATE_PER_SEC", 0),
		AttestBurst:      getenvInt("ATTEST_BURST", 1),
		Policy: PolicyConfig{
			RequireFutureMaturity: true,
		},
	}
	if os.Getenv("FULL_EXTINGUISHMENT_ONLY") == "true" {
		cfg.Policy.FullExtinguishmentOnly = true
	}
	if os.Getenv("REQUIRE_FUTURE_MATURITY") == "false" {
		cfg.Policy.RequireFutureMaturity = false
	}
	return cfg
}

// LoadFile reads a YAML configuration file over the environment defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
