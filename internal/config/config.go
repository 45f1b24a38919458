package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MirrorDriver selects the backend of the durable exam mirror.
type MirrorDriver string

const (
	MirrorDriverFile     MirrorDriver = "file"
	MirrorDriverRedis    MirrorDriver = "redis"
	MirrorDriverSQLite   MirrorDriver = "sqlite"
	MirrorDriverPostgres MirrorDriver = "postgres"
)

// FailurePolicy decides what happens to submissions whose sync failed.
type FailurePolicy string

const (
	// FailurePolicyDiscard clears the whole batch after it settled,
	// whatever the outcome of the single requests.
	FailurePolicyDiscard FailurePolicy = "discard"
	// FailurePolicyRequeue puts failed submissions back into the queue
	// unless a newer local edit replaced them meanwhile.
	FailurePolicyRequeue FailurePolicy = "requeue"
)

// Config holds all agent configuration.
type Config struct {
	LogLevel  string
	LogFormat string

	ServerURL      string
	AuthToken      string
	LiveURL        string
	CourseID       int64
	ExamID         int64
	RequestTimeout time.Duration

	SyncTick          time.Duration
	SyncThreshold     int
	SyncConcurrency   int
	SyncFailurePolicy FailurePolicy

	MirrorDriver MirrorDriver
	MirrorDSN    string
	MirrorDir    string
	RedisURL     string

	BridgePort string
	GinMode    string
	// AllowedOrigins controls CORS and WebSocket origin validation of the
	// local bridge. Empty means all origins are permitted.
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "pretty"),
		ServerURL:         strings.TrimRight(getEnv("ARTEMIS_URL", "http://localhost:8080"), "/"),
		AuthToken:         getEnv("ARTEMIS_TOKEN", ""),
		LiveURL:           getEnv("ARTEMIS_LIVE_URL", ""),
		CourseID:          getEnvInt64("COURSE_ID", 0),
		ExamID:            getEnvInt64("EXAM_ID", 0),
		RequestTimeout:    time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		SyncTick:          time.Second,
		SyncThreshold:     getEnvInt("SYNC_THRESHOLD_SECONDS", 60),
		SyncConcurrency:   getEnvInt("SYNC_CONCURRENCY", 4),
		SyncFailurePolicy: parseFailurePolicy(getEnv("SYNC_FAILURE_POLICY", string(FailurePolicyDiscard))),
		MirrorDriver:      MirrorDriver(strings.ToLower(getEnv("MIRROR_DRIVER", string(MirrorDriverFile)))),
		MirrorDSN:         getEnv("MIRROR_DSN", ""),
		MirrorDir:         getEnv("MIRROR_DIR", "./.exam-mirror"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		BridgePort:        getEnv("BRIDGE_PORT", "9090"),
		GinMode:           getEnv("GIN_MODE", "release"),
		AllowedOrigins:    parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
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
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// parseFailurePolicy falls back to discard for unknown values.
func parseFailurePolicy(raw string) FailurePolicy {
	if FailurePolicy(strings.ToLower(raw)) == FailurePolicyRequeue {
		return FailurePolicyRequeue
	}
	return FailurePolicyDiscard
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
