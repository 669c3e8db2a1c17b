// Package config provides configuration management for the push relay standalone server.
// It loads settings from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the push relay server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Push     PushConfig
	VAPID    VAPIDConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver   string // mysql, postgres, sqlite3
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Prefix   string // Table prefix (default: "push_")
}

// PushConfig holds dispatch tuning configuration.
type PushConfig struct {
	Concurrency    int // Parallel deliveries per dispatch batch
	AttemptTimeout int // Per-recipient delivery timeout in seconds
	TTL            int // Push message TTL in seconds
}

// VAPIDConfig holds the optional VAPID seed. When the database already holds
// a key pair these are ignored; when it doesn't and these are empty, the
// server generates and persists a fresh pair on startup.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// Load loads configuration from environment variables.
// Follows 12-factor app principles - configuration via environment.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "mysql"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", "pushrelay"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "pushrelay"),
			Prefix:   getEnv("DB_PREFIX", "push_"),
		},
		Push: PushConfig{
			Concurrency:    getEnvInt("PUSH_CONCURRENCY", 8),
			AttemptTimeout: getEnvInt("PUSH_ATTEMPT_TIMEOUT", 30),
			TTL:            getEnvInt("PUSH_TTL", 86400),
		},
		VAPID: VAPIDConfig{
			PublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
			PrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
			Subject:    getEnv("VAPID_SUBJECT", "mailto:admin@localhost"),
		},
	}

	// Validate required fields
	if cfg.Database.Driver != "sqlite3" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable is required")
	}
	if (cfg.VAPID.PublicKey == "") != (cfg.VAPID.PrivateKey == "") {
		return nil, fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}

	return cfg, nil
}

// GetDSN returns the database connection string based on driver.
func (c *DatabaseConfig) GetDSN() string {
	switch strings.ToLower(c.Driver) {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database)
	case "sqlite3":
		return c.Database // SQLite uses file path as DSN
	default:
		return ""
	}
}

// getEnv retrieves environment variable or returns default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
