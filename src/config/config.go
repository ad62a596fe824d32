package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	JWTSecret string

	// CronSecret is compared in constant time; CronSecretHash, a bcrypt hash,
	// takes precedence when both are set.
	CronSecret     string
	CronSecretHash string

	SchedulerEnabled bool
	SyncInterval     time.Duration
	SyncOnStartup    bool
	FleetConcurrency int
	FleetAudit       bool
	RemoteTimeout    time.Duration
	CacheTTL         time.Duration

	DemoMode       bool
	AllowedOrigins []string

	// OTLPEndpoint enables trace export when set.
	OTLPEndpoint string
}

func Load() Config {
	// Load .env file if present
	_ = godotenv.Load()

	cfg, err := parse(os.LookupEnv)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func parse(lookup func(string) (string, bool)) (Config, error) {
	env := func(key, fallback string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return fallback
	}

	var errs []error
	duration := func(key, fallback string) time.Duration {
		d, err := time.ParseDuration(env(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	boolean := func(key string, fallback bool) bool {
		b, err := strconv.ParseBool(env(key, strconv.FormatBool(fallback)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return b
	}

	cfg := Config{
		Port:             env("PORT", "8080"),
		DatabaseURL:      env("DATABASE_URL", ""),
		PlaidClientID:    env("PLAID_CLIENT_ID", ""),
		PlaidSecret:      env("PLAID_SECRET", ""),
		PlaidEnv:         env("PLAID_ENV", "sandbox"),
		JWTSecret:        env("JWT_SECRET", ""),
		CronSecret:       env("CRON_SECRET", ""),
		CronSecretHash:   env("CRON_SECRET_HASH", ""),
		SchedulerEnabled: boolean("SCHEDULER_ENABLED", true),
		SyncInterval:     duration("SYNC_INTERVAL", "6h"),
		SyncOnStartup:    boolean("SYNC_ON_STARTUP", false),
		FleetAudit:       boolean("FLEET_AUDIT", true),
		RemoteTimeout:    duration("REMOTE_TIMEOUT", "30s"),
		CacheTTL:         duration("CACHE_TTL", "10m"),
		DemoMode:         boolean("DEMO_MODE", false),
		AllowedOrigins:   splitList(env("ALLOWED_ORIGINS", "http://localhost:5173")),
		OTLPEndpoint:     env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	concurrency, err := strconv.Atoi(env("FLEET_CONCURRENCY", "4"))
	if err != nil || concurrency < 1 {
		errs = append(errs, fmt.Errorf("FLEET_CONCURRENCY must be a positive integer, got %q", env("FLEET_CONCURRENCY", "4")))
	}
	cfg.FleetConcurrency = concurrency

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if cfg.PlaidEnv != "sandbox" && cfg.PlaidEnv != "production" {
		errs = append(errs, fmt.Errorf("PLAID_ENV must be sandbox or production, got %q", cfg.PlaidEnv))
	}
	if cfg.SchedulerEnabled && cfg.SyncInterval <= 0 {
		errs = append(errs, errors.New("SYNC_INTERVAL must be positive"))
	}

	return cfg, errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
