// Package config loads the pooldemo configuration from a YAML file with
// environment variable overrides. The pool core itself never reads
// configuration; everything it needs is passed as explicit parameters.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the full demo configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Pool     PoolConfig     `yaml:"pool"`
	Logging  LoggingConfig  `yaml:"logging"`
	Admin    AdminConfig    `yaml:"admin"`
}

// DatabaseConfig represents database connection settings
type DatabaseConfig struct {
	Type       string   `yaml:"type"` // mysql | sqlite
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	User       string   `yaml:"user"`
	Password   string   `yaml:"password"`
	Database   string   `yaml:"database"`
	UnixSocket string   `yaml:"unix_socket"`
	Flags      []string `yaml:"flags"` // found_rows, multi_statements, interpolate_params, parse_time
	Autocommit bool     `yaml:"autocommit"`
}

// PoolConfig represents connection pool settings
type PoolConfig struct {
	Capacity               int `yaml:"capacity"`
	SlotLockTimeoutSeconds int `yaml:"slot_lock_timeout_seconds"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AdminConfig represents the admin HTTP surface settings
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type:       "mysql",
			Host:       "localhost",
			Port:       3306,
			User:       "user",
			Password:   "pass",
			Database:   "test",
			Autocommit: true,
		},
		Pool: PoolConfig{
			Capacity:               8,
			SlotLockTimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Admin: AdminConfig{
			Enabled: true,
			Address: ":8080",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		config.Database.Host = host
	}

	if user := os.Getenv("DB_USER"); user != "" {
		config.Database.User = user
	}

	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}

	if name := os.Getenv("DB_NAME"); name != "" {
		config.Database.Database = name
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		if val, err := strconv.Atoi(port); err == nil {
			config.Database.Port = val
		}
	}

	if capacity := os.Getenv("POOL_CAPACITY"); capacity != "" {
		if val, err := strconv.Atoi(capacity); err == nil {
			config.Pool.Capacity = val
		}
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}

	if addr := os.Getenv("ADMIN_ADDR"); addr != "" {
		config.Admin.Address = addr
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.Database.Type == "mysql" {
		if c.Database.Host == "" && c.Database.UnixSocket == "" {
			return fmt.Errorf("database host or unix socket must be set")
		}
		if c.Database.Port < 0 || c.Database.Port > 65535 {
			return fmt.Errorf("database port out of range: %d", c.Database.Port)
		}
	}

	if c.Database.Type == "sqlite" && c.Database.Database == "" {
		return fmt.Errorf("sqlite database path cannot be empty")
	}

	if c.Pool.Capacity < 1 {
		return fmt.Errorf("pool capacity must be at least 1")
	}

	if c.Pool.SlotLockTimeoutSeconds < 1 {
		return fmt.Errorf("slot lock timeout must be at least 1 second")
	}

	for _, f := range c.Database.Flags {
		if !isValidFlag(f) {
			return fmt.Errorf("unknown database flag: %s", f)
		}
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Admin.Enabled && c.Admin.Address == "" {
		return fmt.Errorf("admin address cannot be empty when enabled")
	}

	return nil
}

// isValidFlag checks if a database flag name is known
func isValidFlag(flag string) bool {
	switch strings.ToLower(flag) {
	case "found_rows", "multi_statements", "interpolate_params", "parse_time":
		return true
	}
	return false
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	valid := []string{"debug", "info", "warn", "error"}
	level = strings.ToLower(level)
	for _, v := range valid {
		if level == v {
			return true
		}
	}
	return false
}

// String returns a string representation of the configuration (for logging)
func (c *Config) String() string {
	return fmt.Sprintf("Config{DB: %s@%s/%s, PoolCapacity: %d, LogLevel: %s}",
		c.Database.Type, c.Database.Host, c.Database.Database,
		c.Pool.Capacity, c.Logging.Level)
}
