package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	AdminAPIKey string

	ProverBackend string
	ProverWorkers int
	ProverQueue   int
	ParamsDir     string

	RegistryCacheTTLSeconds int
	NullifierLedger         string
	AuditLinkable           bool

	PolicyBundlePath string

	RateLimitRequests       int
	RateLimitClientRequests int
	RateLimitWindowSeconds  int
	RateLimitMaxKeys        int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

const (
	ProverBackendSoftware = "software"
	ProverBackendIcicle   = "icicle"

	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                addr,
		PostgresDSN:             os.Getenv("POSTGRES_DSN"),
		LogLevel:                envDefault("LOG_LEVEL", "info"),
		AdminAPIKey:             os.Getenv("ADMIN_API_KEY"),
		ProverBackend:           strings.ToLower(envDefault("PROVER_BACKEND", ProverBackendSoftware)),
		ProverWorkers:           envIntDefault("PROVER_WORKERS", runtime.NumCPU()),
		ProverQueue:             envIntDefault("PROVER_QUEUE", 64),
		ParamsDir:               envDefault("PARAMS_DIR", "params"),
		RegistryCacheTTLSeconds: envIntDefault("REGISTRY_CACHE_TTL_SECONDS", 300),
		NullifierLedger:         strings.ToLower(envDefault("NULLIFIER_LEDGER", LedgerMemory)),
		AuditLinkable:           envBoolDefault("NULLIFIER_AUDIT_LINKABLE", false),
		PolicyBundlePath:        os.Getenv("POLICY_BUNDLE_PATH"),
		RateLimitRequests:       envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitClientRequests: envIntDefault("RATE_LIMIT_CLIENT_REQUESTS", 0),
		RateLimitWindowSeconds:  envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:        envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func (c Config) RegistryCacheTTL() time.Duration {
	if c.RegistryCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RegistryCacheTTLSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// ClientRateLimit is the per-client budget shared by every verifier id the
// client claims. It defaults to four verifier windows.
func (c Config) ClientRateLimit() int {
	if c.RateLimitClientRequests > 0 {
		return c.RateLimitClientRequests
	}
	return 4 * c.RateLimitRequests
}
