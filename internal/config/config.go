package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL       string
	HTTPListenAddr    string
	MetricsListenAddr string
	LogLevel          string
	ServiceName       string
	AdminAPIKey       string
	// TierConfigPath optionally overrides the embedded tier tables.
	TierConfigPath string
	// EvaluateInterval is the control loop tick for scaling evaluation.
	EvaluateInterval time.Duration
	// EvaluateTimeout bounds a single tenant's evaluation within a tick.
	EvaluateTimeout time.Duration
	// PeriodResetSchedule is a cron expression for the billing period
	// boundary sweep.
	PeriodResetSchedule string
	// AllocateRetries is how many times the orchestrator retries a
	// failed provisioning call before giving up.
	AllocateRetries int
	// AllocateBackoff is the initial backoff between retries; it doubles
	// per attempt.
	AllocateBackoff time.Duration
	// ProvisionTimeout is the per-call deadline for external
	// provisioning when the caller did not set one.
	ProvisionTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		HTTPListenAddr:      getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr:   getEnv("METRICS_LISTEN_ADDR", ":9090"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		ServiceName:         getEnv("SERVICE_NAME", "controlplane"),
		AdminAPIKey:         getEnv("ADMIN_API_KEY", ""),
		TierConfigPath:      getEnv("TIER_CONFIG_PATH", ""),
		EvaluateInterval:    getDuration("EVALUATE_INTERVAL", 30*time.Second),
		EvaluateTimeout:     getDuration("EVALUATE_TIMEOUT", 5*time.Second),
		PeriodResetSchedule: getEnv("PERIOD_RESET_SCHEDULE", "@monthly"),
		AllocateRetries:     getInt("ALLOCATE_RETRIES", 3),
		AllocateBackoff:     getDuration("ALLOCATE_BACKOFF", 250*time.Millisecond),
		ProvisionTimeout:    getDuration("PROVISION_TIMEOUT", 10*time.Second),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
