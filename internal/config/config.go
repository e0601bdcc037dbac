// Package config loads Trans-Hub's runtime configuration from TH_-prefixed
// environment variables, double-underscore denoting nesting, per spec §6.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	AppName    = "Trans-Hub"
	AppVersion = "1.0.0"
)

// RetryPolicy bounds the Processing Policy's retry/backoff loop (§4.7).
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// CacheConfig bounds the in-memory translation cache (§4.5).
type CacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

// RateLimiterConfig configures the optional token-bucket limiter (§4.6).
// Capacity <= 0 means "unconfigured" — the Coordinator installs a
// null-object limiter in that case.
type RateLimiterConfig struct {
	RefillRate float64
	Capacity   int
}

type Config struct {
	Addr             string
	DataDir          string
	DBPath           string
	ActiveEngine     string
	DefaultSourceLang string
	BatchSize        int
	GCRetentionDays  int
	RetryPolicy      RetryPolicy
	CacheConfig      CacheConfig
	RateLimiter      RateLimiterConfig
	LogLevel         string
	LogFormat        string
}

// Load reads configuration from the environment, applying the same
// sane-default-then-clean-path discipline the teacher's config.Load uses.
func Load() Config {
	dataDir := getEnv("TH_DATA_DIR", "./data")
	dbPath := getEnv("TH_DATABASE_URL", filepath.Join(dataDir, "transhub.db"))

	return Config{
		Addr:              getEnv("TH_ADDR", ":8080"),
		DataDir:           filepath.Clean(dataDir),
		DBPath:            dbPath,
		ActiveEngine:      getEnv("TH_ACTIVE_ENGINE", "debug"),
		DefaultSourceLang: getEnv("TH_SOURCE_LANG", ""),
		BatchSize:         getEnvInt("TH_BATCH_SIZE", 20),
		GCRetentionDays:   getEnvInt("TH_GC_RETENTION_DAYS", 90),
		RetryPolicy: RetryPolicy{
			MaxAttempts:    getEnvInt("TH_RETRY_POLICY__MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvDuration("TH_RETRY_POLICY__INITIAL_BACKOFF", 500*time.Millisecond),
			MaxBackoff:     getEnvDuration("TH_RETRY_POLICY__MAX_BACKOFF", 30*time.Second),
		},
		CacheConfig: CacheConfig{
			MaxSize: getEnvInt("TH_CACHE_CONFIG__MAXSIZE", 10_000),
			TTL:     getEnvDuration("TH_CACHE_CONFIG__TTL", time.Hour),
		},
		RateLimiter: RateLimiterConfig{
			RefillRate: getEnvFloat("TH_RATE_LIMITER__REFILL_RATE", 0),
			Capacity:   getEnvInt("TH_RATE_LIMITER__CAPACITY", 0),
		},
		LogLevel:  getEnv("TH_LOGGING__LEVEL", "info"),
		LogFormat: getEnv("TH_LOGGING__FORMAT", "console"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}
