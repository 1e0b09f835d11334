package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the bugboard server.
type Config struct {
	Server    ServerConfig
	Store     string
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Submit    SubmitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

// SubmitConfig controls how incoming reports are checked for duplicates.
type SubmitConfig struct {
	// Scope is "team_url" (candidates share team and URL) or "url".
	Scope string
	// Consistency is "none", "local" or "redis".
	Consistency string
	LockTTL     time.Duration
	LockWait    time.Duration
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

var validStores = map[string]bool{
	StorePostgres: true,
	StoreMemory:   true,
}

var validScopes = map[string]bool{
	"team_url": true,
	"url":      true,
}

var validConsistency = map[string]bool{
	"none":  true,
	"local": true,
	"redis": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("BUGBOARD_PORT", 8080),
			Env:  envString("BUGBOARD_ENV", "development"),
		},
		Store:    envString("BUGBOARD_STORE", StorePostgres),
		Database: loadDatabase(),
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Submit: SubmitConfig{
			Scope:       envString("DUPLICATE_SCOPE", "team_url"),
			Consistency: envString("SUBMIT_CONSISTENCY", "none"),
			LockTTL:     envDuration("SUBMIT_LOCK_TTL", 10*time.Second),
			LockWait:    envDuration("SUBMIT_LOCK_WAIT", 5*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the database settings. Used by tools that do not
// need the rest of the server configuration.
func LoadDatabase() (DatabaseConfig, error) {
	db := loadDatabase()
	if db.URL == "" {
		return db, fmt.Errorf("DATABASE_URL is required")
	}
	return db, nil
}

func loadDatabase() DatabaseConfig {
	return DatabaseConfig{
		URL:             os.Getenv("DATABASE_URL"),
		MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

func (c *Config) validate() error {
	if !validStores[c.Store] {
		return fmt.Errorf("BUGBOARD_STORE must be one of postgres, memory; got %q", c.Store)
	}
	if c.Store == StorePostgres && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}

	if !validScopes[c.Submit.Scope] {
		return fmt.Errorf("DUPLICATE_SCOPE must be one of team_url, url; got %q", c.Submit.Scope)
	}
	if !validConsistency[c.Submit.Consistency] {
		return fmt.Errorf("SUBMIT_CONSISTENCY must be one of none, local, redis; got %q", c.Submit.Consistency)
	}
	if c.Submit.Consistency == "redis" && c.Submit.LockTTL <= 0 {
		return fmt.Errorf("SUBMIT_LOCK_TTL must be positive when SUBMIT_CONSISTENCY is redis")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
