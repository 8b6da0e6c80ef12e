package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the terminal agent configuration
type Config struct {
	Server   ServerConfig
	Cache    CacheConfig
	Database DatabaseConfig
	Backend  BackendConfig
	Device   DeviceConfig
	Log      LogConfig
	Metrics  MetricsConfig
	Terminal TerminalConfig
}

// ServerConfig holds the local HTTP surface configuration
type ServerConfig struct {
	Host string
	Port string
	Env  string
}

// CacheConfig selects the local cache backend
type CacheConfig struct {
	Driver string
	Path   string
}

// DatabaseConfig holds connection and pool settings for the cache database
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
}

// BackendConfig holds the connection defaults used until the operator saves their own
type BackendConfig struct {
	ServerURL string
	Port      string
	APIKey    string
	Timeout   time.Duration
}

// DeviceConfig describes the terminal for device registration
type DeviceConfig struct {
	InstallID       string
	Name            string
	Model           string
	PlatformVersion string
	AppVersion      string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
	// Format is "json" or "console"; empty picks by environment
	Format string
	// File receives log output in addition to stderr when set
	File string
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	Prefix string
}

// TerminalConfig guards the local HTTP surface
type TerminalConfig struct {
	AccessKey string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	hostname, _ := os.Hostname()

	return &Config{
		// Local API served to the terminal UI
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "127.0.0.1"),
			Port: getEnv("SERVER_PORT", "8090"),
			Env:  getEnv("APP_ENV", "development"),
		},
		// sqlite on the device, postgres for shared test benches
		Cache: CacheConfig{
			Driver: strings.ToLower(getEnv("CACHE_DRIVER", "sqlite")),
			Path:   getEnv("CACHE_PATH", "tsd_cache.db"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "tsd_cache"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnv("DB_LOG_LEVEL", "warn"),
		},
		// Defaults for the connection settings until the operator saves their own
		Backend: BackendConfig{
			ServerURL: getEnv("BACKEND_SERVER_URL", "localhost"),
			Port:      getEnv("BACKEND_PORT", "8001"),
			APIKey:    getEnv("BACKEND_API_KEY", ""),
			Timeout:   getEnvAsDuration("BACKEND_TIMEOUT", 0),
		},
		// Reported on registration
		Device: DeviceConfig{
			InstallID:       getEnv("DEVICE_INSTALL_ID", ""),
			Name:            getEnv("DEVICE_NAME", hostname),
			Model:           getEnv("DEVICE_MODEL", "generic"),
			PlatformVersion: getEnv("DEVICE_PLATFORM_VERSION", "unknown"),
			AppVersion:      getEnv("APP_VERSION", "1.0.0"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "")),
			File:   getEnv("LOG_FILE", ""),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "tsd"),
		},
		Terminal: TerminalConfig{
			AccessKey: getEnv("TERMINAL_ACCESS_KEY", ""),
		},
	}, nil
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
