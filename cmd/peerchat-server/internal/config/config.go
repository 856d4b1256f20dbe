// Package config provides configuration management for the peerchat server.
// It loads settings from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the peerchat server.
type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Chat     ChatConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds message store configuration.
type DatabaseConfig struct {
	Driver   string // mysql, postgres, sqlite3, redis, memory
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Prefix   string // Table or key prefix (default: "peerchat_")
	RedisURL string
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string
}

// ChatConfig holds delivery tuning.
type ChatConfig struct {
	PushTimeout    time.Duration
	MaxTextLength  int
	WSPingInterval time.Duration
	WSWriteTimeout time.Duration
	WSSendBuffer   int
}

// Load loads configuration from environment variables.
// A .env file in the working directory is read first if present; real
// environment variables take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	driver := strings.ToLower(getEnv("DB_DRIVER", "sqlite3"))

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Driver:   driver,
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", defaultPort(driver)),
			User:     getEnv("DB_USER", "peerchat"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "peerchat.db"),
			Prefix:   getEnv("DB_PREFIX", "peerchat_"),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		},
		Chat: ChatConfig{
			PushTimeout:    time.Duration(getEnvInt("CHAT_PUSH_TIMEOUT_MS", 5000)) * time.Millisecond,
			MaxTextLength:  getEnvInt("CHAT_MAX_TEXT_LENGTH", 4096),
			WSPingInterval: time.Duration(getEnvInt("CHAT_WS_PING_INTERVAL_S", 30)) * time.Second,
			WSWriteTimeout: time.Duration(getEnvInt("CHAT_WS_WRITE_TIMEOUT_S", 10)) * time.Second,
			WSSendBuffer:   getEnvInt("CHAT_WS_SEND_BUFFER", 64),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET environment variable is required")
	}

	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD environment variable is required for %s", c.Database.Driver)
		}
	case "sqlite3", "redis", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Chat.PushTimeout <= 0 || c.Chat.WSPingInterval <= 0 || c.Chat.WSWriteTimeout <= 0 {
		return fmt.Errorf("chat timeouts must be positive")
	}
	if c.Chat.MaxTextLength <= 0 || c.Chat.WSSendBuffer <= 0 {
		return fmt.Errorf("CHAT_MAX_TEXT_LENGTH and CHAT_WS_SEND_BUFFER must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsSQL reports whether the configured driver is backed by database/sql.
func (c *DatabaseConfig) IsSQL() bool {
	switch c.Driver {
	case "mysql", "postgres", "sqlite3":
		return true
	}
	return false
}

// GetDSN returns the database connection string based on driver.
func (c *DatabaseConfig) GetDSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
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

func defaultPort(driver string) int {
	if driver == "postgres" {
		return 5432
	}
	return 3306
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
