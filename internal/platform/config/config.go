// Package config loads client configuration from environment variables.
// All variables use the WB_ prefix. A .env file in the working directory is
// read first when present; real environment variables take precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds all client configuration.
type Config struct {
	API      APIConfig
	Socket   SocketConfig
	Session  SessionConfig
	Cache    CacheConfig
	Database DatabaseConfig
	Monitor  MonitorConfig
	Log      LogConfig
}

// APIConfig holds backend HTTP settings.
type APIConfig struct {
	BaseURL      string
	Timeout      time.Duration
	ProgressPath string
}

// SocketConfig holds realtime connection settings.
type SocketConfig struct {
	URL string
}

// SessionConfig selects where the session token is persisted.
type SessionConfig struct {
	Store  string // "memory", "file" or "redis"
	File   string
	Secret string
	Key    string
}

// CacheConfig holds Redis connection settings.
type CacheConfig struct {
	URL string
}

// DatabaseConfig holds PostgreSQL settings for the monitor event journal.
// An empty URL disables the journal.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// MonitorConfig holds monitor daemon settings.
type MonitorConfig struct {
	Port    int
	History int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with the WB_ prefix.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	baseURL := strings.TrimRight(envStr("WB_API_BASE_URL", "http://localhost:5000"), "/")

	cfg := &Config{
		API: APIConfig{
			BaseURL:      baseURL,
			Timeout:      envDuration("WB_HTTP_TIMEOUT", 15*time.Second),
			ProgressPath: envStr("WB_PROGRESS_PATH", "/api/user/progress"),
		},
		Socket: SocketConfig{
			URL: strings.TrimRight(envStr("WB_SOCKET_URL", baseURL), "/"),
		},
		Session: SessionConfig{
			Store:  envStr("WB_SESSION_STORE", StoreFile),
			File:   envStr("WB_SESSION_FILE", ".wealthbuilder/session"),
			Secret: envStr("WB_SESSION_SECRET", ""),
			Key:    envStr("WB_SESSION_KEY", "default"),
		},
		Cache: CacheConfig{
			URL: envStr("WB_CACHE_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			URL:      envStr("WB_DATABASE_URL", ""),
			MaxConns: envInt("WB_DATABASE_MAX_CONNS", 5),
			MinConns: envInt("WB_DATABASE_MIN_CONNS", 1),
		},
		Monitor: MonitorConfig{
			Port:    envInt("WB_MONITOR_PORT", 8090),
			History: envInt("WB_MONITOR_HISTORY", 50),
		},
		Log: LogConfig{
			Level:  envStr("WB_LOG_LEVEL", "info"),
			Format: envStr("WB_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validURL(c.API.BaseURL); err != nil {
		return fmt.Errorf("WB_API_BASE_URL: %w", err)
	}
	if err := validURL(c.Socket.URL); err != nil {
		return fmt.Errorf("WB_SOCKET_URL: %w", err)
	}
	if !strings.HasPrefix(c.API.ProgressPath, "/") {
		return fmt.Errorf("WB_PROGRESS_PATH must start with '/', got %q", c.API.ProgressPath)
	}

	switch c.Session.Store {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("WB_SESSION_STORE must be 'memory', 'file' or 'redis', got %q", c.Session.Store)
	}

	if c.Monitor.History <= 0 {
		return fmt.Errorf("WB_MONITOR_HISTORY must be positive, got %d", c.Monitor.History)
	}

	return nil
}

// JournalEnabled reports whether monitor events should be written to PostgreSQL.
func (c *Config) JournalEnabled() bool {
	return c.Database.URL != ""
}

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("20s") or plain seconds ("20").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
