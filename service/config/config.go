package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	LogLevel string

	// Solana RPC endpoint. For premium providers the API key is part of the URL.
	SolanaRPCURL string

	// Jupiter aggregator configuration
	JupiterAPIURL   string
	JupiterRelayURL string
	HTTPTimeout     time.Duration

	// Swap build parameters
	MaxSlippageBps         int
	MaxPriorityFeeLamports uint64
	PriorityLevel          string

	// Confirmation polling
	ConfirmMaxAttempts  int
	ConfirmPollInterval time.Duration
	SettleDelay         time.Duration

	// MinFeeBalance is the SOL balance a sell requires to cover fees.
	MinFeeBalance decimal.Decimal

	ExplorerTxURL string

	// Optional integrations; empty disables them.
	DatabaseURL string
	NATSURL     string
	MetricsAddr string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	return LoadWith(nil)
}

// LoadWith is like Load but lets override adjust the environment values
// (e.g. from command-line flags) before validation.
func LoadWith(override func(*Config)) (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "warn")

	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")

	cfg.JupiterAPIURL = getEnvOrDefault("JUPITER_API_URL", "https://quote-api.jup.ag/v6")
	cfg.JupiterRelayURL = getEnvOrDefault("JUPITER_RELAY_URL", "https://worker.jup.ag/send-transaction")
	cfg.ExplorerTxURL = getEnvOrDefault("EXPLORER_TX_URL", "https://solscan.io/tx")
	cfg.PriorityLevel = getEnvOrDefault("PRIORITY_LEVEL", "veryHigh")

	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.HTTPTimeout = httpTimeout
	}

	slippage, err := parseInt("MAX_SLIPPAGE_BPS", 300)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxSlippageBps = slippage
	}

	maxFee, err := parseUint("MAX_PRIORITY_FEE_LAMPORTS", 10_000_000)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxPriorityFeeLamports = maxFee
	}

	attempts, err := parseInt("CONFIRM_MAX_ATTEMPTS", 30)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmMaxAttempts = attempts
	}

	pollInterval, err := parseDuration("CONFIRM_POLL_INTERVAL", "1s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = pollInterval
	}

	settle, err := parseDuration("SETTLE_DELAY", "2s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SettleDelay = settle
	}

	minFee, err := parseDecimal("MIN_FEE_BALANCE", "0.002")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MinFeeBalance = minFee
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	if override != nil {
		override(cfg)
	}

	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env, and
// after CLI flags have overridden values loaded from the environment.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.JupiterAPIURL == "" {
		errs = append(errs, fmt.Errorf("JupiterAPIURL is required"))
	}

	if c.JupiterRelayURL == "" {
		errs = append(errs, fmt.Errorf("JupiterRelayURL is required"))
	}

	if c.MaxSlippageBps <= 0 || c.MaxSlippageBps > 10_000 {
		errs = append(errs, fmt.Errorf("MaxSlippageBps must be between 1 and 10000, got %d", c.MaxSlippageBps))
	}

	if c.ConfirmMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmMaxAttempts must be positive, got %d", c.ConfirmMaxAttempts))
	}

	if c.ConfirmPollInterval < time.Millisecond {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be at least 1ms"))
	}

	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("SettleDelay cannot be negative"))
	}

	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTPTimeout must be positive"))
	}

	if c.MinFeeBalance.IsNegative() {
		errs = append(errs, fmt.Errorf("MinFeeBalance cannot be negative"))
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

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid unsigned integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnvOrDefault(key, defaultValue)
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q: %w", key, value, err)
	}
	return d, nil
}
