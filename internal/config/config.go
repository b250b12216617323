// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// GitHub App
	GitHubAPIBaseURL     string
	GitHubAppID          string
	GitHubPrivateKeyPath string

	// Snapshot store backend ("postgres", "local" or "s3")
	StoreBackend   string
	DatabaseURL    string
	LocalStorePath string

	// S3 snapshot store
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// Workspace persistence
	SaveDebounce time.Duration

	// Binary asset policy
	AssetSizeLimit    int64
	AssetMaxDimension int
	AssetQuality      int
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr: envOr("METRICS_ADDR", ":9090"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "json"),

		GitHubAPIBaseURL:     envOr("GITHUB_API_BASE_URL", "https://api.github.com"),
		GitHubAppID:          envOr("GITHUB_APP_ID", ""),
		GitHubPrivateKeyPath: envOr("GITHUB_PRIVATE_KEY_PATH", ""),

		StoreBackend:   envOr("STORE_BACKEND", "postgres"),
		DatabaseURL:    envOr("DATABASE_URL", ""),
		LocalStorePath: envOr("LOCAL_STORE_PATH", "/data/workspaces"),

		S3Endpoint:  envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:    envOr("S3_BUCKET", "siteforge-workspaces"),
		S3AccessKey: envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey: envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:    envOr("S3_REGION", "us-east-1"),
		S3UseSSL:    envBool("S3_USE_SSL", false),

		SaveDebounce: envDuration("SAVE_DEBOUNCE", 2*time.Second),

		AssetSizeLimit:    envInt64("ASSET_SIZE_LIMIT", 800*1024),
		AssetMaxDimension: envInt("ASSET_MAX_DIMENSION", 1600),
		AssetQuality:      envInt("ASSET_QUALITY", 80),
	}

	if cfg.GitHubAppID == "" {
		return nil, fmt.Errorf("GITHUB_APP_ID is required")
	}
	if cfg.GitHubPrivateKeyPath == "" {
		return nil, fmt.Errorf("GITHUB_PRIVATE_KEY_PATH is required")
	}
	if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
