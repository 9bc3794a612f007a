package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the coordinator's runtime settings, loaded from the
// environment with sane defaults.
type Config struct {
	Port string

	// DatabaseURL, when set, switches the state store from memory to
	// Postgres. Empty means in-memory.
	DatabaseURL string

	// AntiSnipeThreshold is the remaining-time window inside which an
	// accepted bid extends the deadline.
	AntiSnipeThreshold time.Duration
	// ExtensionWindow is how far past "now" an anti-snipe extension pushes
	// the deadline.
	ExtensionWindow time.Duration
	// MaxExtensions caps the number of anti-snipe extensions per auction.
	// Once exhausted, late bids are still admitted but no longer move the
	// deadline.
	MaxExtensions int

	// LedgerTimeout bounds every lock/unlock/settle call.
	LedgerTimeout time.Duration
	// CASMaxRetries bounds internal retries on state-store conflicts before
	// the pipeline reports Contention.
	CASMaxRetries int

	// MinIncrement is the smallest step an auto-bid raises (or, for reverse
	// auctions, lowers) the price by to displace the leader.
	MinIncrement decimal.Decimal
}

// Default returns the configuration used when no environment overrides are
// present.
func Default() Config {
	return Config{
		Port:               ":8080",
		AntiSnipeThreshold: 2 * time.Minute,
		ExtensionWindow:    2 * time.Minute,
		MaxExtensions:      3,
		LedgerTimeout:      5 * time.Second,
		CASMaxRetries:      3,
		MinIncrement:       decimal.NewFromInt(1),
	}
}

// Load reads overrides from the environment on top of Default.
func Load() Config {
	cfg := Default()
	if p := os.Getenv("PORT"); p != "" {
		cfg.Port = fmt.Sprintf(":%s", p)
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.AntiSnipeThreshold = durationEnv("ANTISNIPE_THRESHOLD", cfg.AntiSnipeThreshold)
	cfg.ExtensionWindow = durationEnv("EXTENSION_WINDOW", cfg.ExtensionWindow)
	cfg.MaxExtensions = intEnv("MAX_EXTENSIONS", cfg.MaxExtensions)
	cfg.LedgerTimeout = durationEnv("LEDGER_TIMEOUT", cfg.LedgerTimeout)
	cfg.CASMaxRetries = intEnv("CAS_MAX_RETRIES", cfg.CASMaxRetries)
	if v := os.Getenv("MIN_INCREMENT"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.GreaterThan(decimal.Zero) {
			cfg.MinIncrement = d
		}
	}
	return cfg
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
