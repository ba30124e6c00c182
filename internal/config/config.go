// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/msomdec/internsync/internal/catalog"
)

type Config struct {
	// Server
	Port         string
	PublicURL    string // origin reported to the identity provider
	DatabasePath string
	LogLevel     slog.Level

	// Sessions
	JWTSecret    string
	CookieSecure bool // default true; disable only for local development
	BcryptCost   int

	// Catalog
	ListingsURL    string
	CatalogPageTTL time.Duration

	// Rate limiting
	LoginRatePerMinute int

	// Remote document store (optional, SQLite otherwise)
	RedisURL string

	// Remote identity (optional, builtin accounts otherwise)
	FirebaseAPIKey   string
	FirebaseAuthURL  string
	FirebaseTokenURL string
	GoogleClientID   string
}

// FirebaseConfigured reports whether the Firebase identity provider is enabled.
func (c *Config) FirebaseConfigured() bool {
	return c.FirebaseAPIKey != ""
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "internsync.db"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		CookieSecure: getEnvBool("COOKIE_SECURE", true),
		BcryptCost:   getEnvInt("BCRYPT_COST", 12),

		ListingsURL:    getEnv("LISTINGS_URL", catalog.DefaultURL),
		CatalogPageTTL: getEnvDuration("CATALOG_PAGE_TTL", 30*time.Minute),

		LoginRatePerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 10),

		RedisURL: os.Getenv("REDIS_URL"),

		FirebaseAPIKey:   os.Getenv("FIREBASE_API_KEY"),
		FirebaseAuthURL:  os.Getenv("FIREBASE_AUTH_URL"),
		FirebaseTokenURL: os.Getenv("FIREBASE_TOKEN_URL"),
		GoogleClientID:   os.Getenv("GOOGLE_CLIENT_ID"),
	}

	cfg.PublicURL = getEnv("PUBLIC_URL", "http://localhost:"+cfg.Port)

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 14 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", cfg.BcryptCost)
	}
	if cfg.LoginRatePerMinute < 1 || cfg.LoginRatePerMinute > 10000 {
		return nil, fmt.Errorf("LOGIN_RATE_PER_MINUTE must be between 1 and 10000, got %d", cfg.LoginRatePerMinute)
	}
	if cfg.CatalogPageTTL <= 0 {
		return nil, fmt.Errorf("CATALOG_PAGE_TTL must be positive, got %s", cfg.CatalogPageTTL)
	}

	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
