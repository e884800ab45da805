// Package config holds configuration for the chatmail client binary and the
// local development server.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the chatmail client.
type Config struct {
	// BaseURL is the address of the remote resource service. Both
	// controllers receive it at construction; there is no module-level
	// default address.
	BaseURL string `json:"base_url"`

	// LogFile receives debug output when set; empty disables logging.
	LogFile string `json:"log_file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:8000",
	}
}

// LoadConfig reads a JSON config file over the defaults. A missing file is
// not an error; a malformed one is.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("CHATMAIL_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}

	return cfg, nil
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("CHATMAIL_CONFIG")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "chatmail", "config.json")
}

// ServerConfig configures the chatmaild development server. It is populated
// from the environment so the server can run from a plain .env file.
type ServerConfig struct {
	HTTPPort int
	DBPath   string
}

// LoadServer reads the server configuration from the environment.
func LoadServer() ServerConfig {
	return ServerConfig{
		HTTPPort: getEnvInt("HTTP_PORT", 8000),
		DBPath:   getEnvString("DB_PATH", ""),
	}
}

func getEnvString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return fallback
}
