package config

import (
	"fmt"
	"os"
	"time"
)

// State backends supported by STATE_BACKEND.
const (
	StateBackendFile     = "file"
	StateBackendPostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Telegram configuration
	TelegramBotToken string

	// Solana configuration
	SolanaRPCURL string
	RPCTimeout   time.Duration

	// Token registry configuration
	LookupTimeout time.Duration

	// Watch state configuration
	StateBackend string // "file" or "postgres"
	StateFile    string // snapshot path when StateBackend == "file"
	DatabaseURL  string // required when StateBackend == "postgres"

	// NATS configuration (optional; empty disables the event fan-out)
	NATSURL string

	// Monitor loop configuration
	PollInterval time.Duration
	ErrorBackoff time.Duration

	// Observability
	MetricsAddr string
	LogLevel    string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if cfg.TelegramBotToken == "" {
		errs = append(errs, fmt.Errorf("TELEGRAM_BOT_TOKEN is required"))
	}

	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	cfg.StateBackend = getEnvOrDefault("STATE_BACKEND", StateBackendFile)
	switch cfg.StateBackend {
	case StateBackendFile:
		cfg.StateFile = getEnvOrDefault("STATE_FILE", "wallet_data.json")
	case StateBackendPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required when STATE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STATE_BACKEND must be %q or %q, got %q",
			StateBackendFile, StateBackendPostgres, cfg.StateBackend))
	}

	cfg.NATSURL = os.Getenv("NATS_URL")

	var err error
	if cfg.PollInterval, err = parseDuration("POLL_INTERVAL", "15s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.ErrorBackoff, err = parseDuration("ERROR_BACKOFF", "30s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.RPCTimeout, err = parseDuration("RPC_TIMEOUT", "10s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.LookupTimeout, err = parseDuration("LOOKUP_TIMEOUT", "5s"); err != nil {
		errs = append(errs, err)
	}

	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for daemon initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.TelegramBotToken == "" {
		errs = append(errs, fmt.Errorf("TelegramBotToken is required"))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.StateBackend == StateBackendFile && c.StateFile == "" {
		errs = append(errs, fmt.Errorf("StateFile is required for the file backend"))
	}

	if c.StateBackend == StateBackendPostgres && c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required for the postgres backend"))
	}

	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("PollInterval must be at least 1 second"))
	}

	if c.ErrorBackoff < c.PollInterval {
		errs = append(errs, fmt.Errorf("ErrorBackoff (%v) cannot be shorter than PollInterval (%v)",
			c.ErrorBackoff, c.PollInterval))
	}

	if c.RPCTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RPCTimeout must be positive"))
	}

	if c.LookupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("LookupTimeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}
