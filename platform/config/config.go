// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// MigrationConfig controls schema migrations at startup.
type MigrationConfig interface {
	GetRunMigrations() bool
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitRPS() float64
}

// CacheConfig provides settings for the catalog read-through cache.
type CacheConfig interface {
	GetRedisURL() string
	GetCatalogCacheTTL() time.Duration
}

// CultivationConfig provides the provisioning and lifecycle engine settings.
type CultivationConfig interface {
	GetDefaultFarmID() string
	GetFarmLocation() *time.Location
	GetMaxBagletsPerBatch() int
	GetOperationTimeout() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	RunMigrations      bool
	JWTAccessSecret    string
	CORSAllowAll       bool
	CORSOrigins        []string
	CORSAllowCreds     bool
	RateLimitRPS       float64
	RedisURL           string
	CatalogCacheTTL    time.Duration
	DefaultFarmID      string
	FarmLocation       *time.Location
	MaxBagletsPerBatch int
	OperationTimeout   time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// MigrationConfig implementation
func (c *Config) GetRunMigrations() bool { return c.RunMigrations }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }

// CacheConfig implementation
func (c *Config) GetRedisURL() string               { return c.RedisURL }
func (c *Config) GetCatalogCacheTTL() time.Duration { return c.CatalogCacheTTL }

// CultivationConfig implementation
func (c *Config) GetDefaultFarmID() string           { return c.DefaultFarmID }
func (c *Config) GetFarmLocation() *time.Location    { return c.FarmLocation }
func (c *Config) GetMaxBagletsPerBatch() int         { return c.MaxBagletsPerBatch }
func (c *Config) GetOperationTimeout() time.Duration { return c.OperationTimeout }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	location, err := time.LoadLocation(getEnv("FARM_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("FARM_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RunMigrations:      !strings.EqualFold(getEnv("RUN_MIGRATIONS", "true"), "false"),
		JWTAccessSecret:    getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:       corsAllowAll,
		CORSOrigins:        corsOrigins,
		CORSAllowCreds:     strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RateLimitRPS:       mustFloat(getEnv("RATE_LIMIT_RPS", "20")),
		RedisURL:           getEnv("REDIS_URL", ""),
		CatalogCacheTTL:    mustDuration(getEnv("CATALOG_CACHE_TTL", "10m")),
		DefaultFarmID:      strings.ToUpper(strings.TrimSpace(getEnv("DEFAULT_FARM_ID", "FPR"))),
		FarmLocation:       location,
		MaxBagletsPerBatch: mustInt(getEnv("MAX_BAGLETS_PER_BATCH", "500")),
		OperationTimeout:   mustDuration(getEnv("OPERATION_TIMEOUT", "5s")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.MaxBagletsPerBatch < 1 {
		return nil, fmt.Errorf("MAX_BAGLETS_PER_BATCH must be a positive integer")
	}
	if cfg.OperationTimeout <= 0 {
		return nil, fmt.Errorf("OPERATION_TIMEOUT must be a positive duration")
	}
	if cfg.CatalogCacheTTL <= 0 {
		return nil, fmt.Errorf("CATALOG_CACHE_TTL must be a positive duration")
	}
	if cfg.DefaultFarmID == "" {
		return nil, fmt.Errorf("DEFAULT_FARM_ID cannot be empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
