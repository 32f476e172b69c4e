// Package config contains everything related to configuration
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process-level configuration loaded from the environment.
type Config struct {
	DatabasePath     string
	OptionsPath      string
	LogPath          string
	LogLevel         string
	LogFormat        string
	ClientID         string
	AuthURL          string
	TokenURL         string
	HopsURL          string
	MyURL            string
	MinderURL        string
	EIQURL           string
	HTTPAddr         string
	MQTTBroker       string
	MQTTTopicPrefix  string
	MQTTClientID     string
	HTTPTimeout      time.Duration
	QuotaWarnPercent int
}

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		DatabasePath:     getEnvString("DATABASE_PATH", defaultPath("tadox.db")),
		OptionsPath:      getEnvString("OPTIONS_PATH", defaultPath("options.json")),
		LogPath:          getEnvString("LOG_PATH", defaultPath("tadox.log")),
		LogLevel:         getEnvString("LOG_LEVEL", defaultLogLevel),
		LogFormat:        getEnvString("LOG_FORMAT", defaultLogFormat),
		ClientID:         getEnvString("TADO_CLIENT_ID", DefaultClientID),
		AuthURL:          getEnvString("TADO_AUTH_URL", DefaultAuthURL),
		TokenURL:         getEnvString("TADO_TOKEN_URL", DefaultTokenURL),
		HopsURL:          getEnvString("TADO_HOPS_URL", DefaultHopsURL),
		MyURL:            getEnvString("TADO_MY_URL", DefaultMyURL),
		MinderURL:        getEnvString("TADO_MINDER_URL", DefaultMinderURL),
		EIQURL:           getEnvString("TADO_EIQ_URL", DefaultEIQURL),
		HTTPAddr:         getEnvString("HTTP_ADDR", ""),
		MQTTBroker:       getEnvString("MQTT_BROKER", ""),
		MQTTTopicPrefix:  getEnvString("MQTT_TOPIC_PREFIX", defaultMQTTTopicPrefix),
		MQTTClientID:     getEnvString("MQTT_CLIENT_ID", ""),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", defaultHTTPTimeout),
		QuotaWarnPercent: getEnvInt("QUOTA_WARN_PERCENT", defaultQuotaWarnPercent),
	}

	for _, p := range []string{cfg.DatabasePath, cfg.OptionsPath, cfg.LogPath} {
		if err := ensureDir(filepath.Dir(p)); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", appDirName, ".env"),
			filepath.Join(home, ".tadox", ".env"),
		)
	}

	// Parent directory (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(cwd), ".env"))
	}

	return paths
}

// defaultPath returns name inside the per-user config directory.
func defaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".config", appDirName, name)
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
