// Package config loads the engine's runtime configuration from the
// environment (with an optional .env file for local development).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the umbrella configuration object threaded through the
// composition root in cmd/loomd.
type Config struct {
	HTTPAddr string

	DB DBConfig

	JWTHS256Secret string // empty disables HS256 verification
	JWKSURL        string // empty disables ES256/JWKS verification
	JWKSCacheTTL   time.Duration
	DevBypassAuth  bool // lets Load accept a config with no JWT method; no request header is read

	VaultKeyHex string // 64 hex chars = 32 bytes for AES-256-GCM; empty falls back to plain: storage

	ModelRouterMode   string // "hosted" or "self_hosted"
	ModelProviderURL  string
	ModelProviderKey  string
	EmbeddingBatchMax int

	WorkspaceRoot string

	NATSEmbeddedPort int

	MetricsAddr string

	CORSOrigins []string // empty disables the CORS middleware entirely
	HostedMode  bool     // true when running as the managed multi-tenant service rather than self-hosted
}

// DBConfig mirrors store.Config; kept separate so pkg/config never imports
// pkg/store.
type DBConfig struct {
	Host, User, Password, Database, SSLMode string
	Port                                     int
}

// Load reads configuration from the process environment, loading a .env
// file first if one is present (ignored silently if absent).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr: getEnv("LOOM_HTTP_ADDR", ":8080"),
		DB: DBConfig{
			Host:     getEnv("LOOM_DB_HOST", "localhost"),
			Port:     getEnvInt("LOOM_DB_PORT", 5432),
			User:     getEnv("LOOM_DB_USER", "loom"),
			Password: getEnv("LOOM_DB_PASSWORD", ""),
			Database: getEnv("LOOM_DB_NAME", "loom"),
			SSLMode:  getEnv("LOOM_DB_SSLMODE", "disable"),
		},
		JWTHS256Secret:    os.Getenv("LOOM_JWT_HS256_SECRET"),
		JWKSURL:           os.Getenv("LOOM_JWKS_URL"),
		JWKSCacheTTL:      getEnvDuration("LOOM_JWKS_CACHE_TTL", time.Hour),
		DevBypassAuth:     getEnvBool("LOOM_DEV_BYPASS_AUTH", false),
		VaultKeyHex:       os.Getenv("LOOM_VAULT_KEY"),
		ModelRouterMode:   getEnv("LOOM_MODEL_MODE", "hosted"),
		ModelProviderURL:  getEnv("LOOM_MODEL_PROVIDER_URL", ""),
		ModelProviderKey:  os.Getenv("LOOM_MODEL_PROVIDER_KEY"),
		EmbeddingBatchMax: getEnvInt("LOOM_EMBED_BATCH_MAX", 32),
		WorkspaceRoot:     getEnv("LOOM_WORKSPACE_ROOT", "./data/workspace"),
		NATSEmbeddedPort:  getEnvInt("LOOM_NATS_PORT", 4222),
		MetricsAddr:       getEnv("LOOM_METRICS_ADDR", ":9090"),
		CORSOrigins:       getEnvList("LOOM_CORS_ORIGINS"),
		HostedMode:        getEnvBool("LOOM_HOSTED_MODE", false),
	}

	if cfg.JWTHS256Secret == "" && cfg.JWKSURL == "" && !cfg.DevBypassAuth {
		return nil, fmt.Errorf("config: one of LOOM_JWT_HS256_SECRET, LOOM_JWKS_URL, or LOOM_DEV_BYPASS_AUTH must be set")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
