// Package config loads engine configuration from the environment and
// from YAML governance profiles. The verification threshold ordering is
// validated at startup; a violation is fatal.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/concord-labs/concord/pkg/verification"
)

// Config holds server configuration.
type Config struct {
	Port           string
	LogLevel       string
	AuditDBPath    string
	ProfilePath    string
	SolverEndpoint string
	OTLPEndpoint   string
	RateLimitRPS   float64
	RateLimitBurst int
	DecisionWait   time.Duration
	Verification   verification.Config
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		Port:           envOr("PORT", "8080"),
		LogLevel:       envOr("LOG_LEVEL", "INFO"),
		AuditDBPath:    envOr("AUDIT_DB_PATH", "concord_audit.db"),
		ProfilePath:    os.Getenv("GOVERNANCE_PROFILE"),
		SolverEndpoint: os.Getenv("SOLVER_ENDPOINT"),
		OTLPEndpoint:   envOr("OTLP_ENDPOINT", "localhost:4317"),
		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 100),
		DecisionWait:   envDuration("DECISION_WAIT", 30*time.Second),
		Verification:   verification.DefaultConfig(),
	}
	return cfg
}

// Validate checks the invariants that must hold before serving.
func (c *Config) Validate() error {
	return c.Verification.Validate()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
