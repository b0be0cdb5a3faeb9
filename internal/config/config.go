// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/JonMunkholm/sleepimport/internal/analysis"
	"github.com/JonMunkholm/sleepimport/internal/notify"
	"github.com/JonMunkholm/sleepimport/internal/store"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Notify   NotifyConfig
	Analysis AnalysisConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 5m)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"5m"`

	// WriteTimeout is the maximum duration for writing response (default: 0, bounded by RequestTimeout)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-upload requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the backend: postgres or sqlite (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string or the SQLite file path (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaintenanceDB is the database used to create or drop the target (default: postgres)
	MaintenanceDB string `env:"DB_MAINTENANCE_NAME" default:"postgres"`

	// Table holds the sleep sessions (default: sleep_records)
	Table string `env:"DB_TABLE" default:"sleep_records"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// DropTimeout bounds dropping the database (default: 30s)
	DropTimeout time.Duration `env:"DB_DROP_TIMEOUT" default:"30s"`
}

// UploadConfig holds archive upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed archive size; units such as 512MiB are accepted (default: 1GiB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"1073741824"`

	// MaxConcurrent is the maximum number of parallel imports (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for an import slot (default: 10s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"10s"`

	// Timeout is the maximum duration for a single import (default: 10m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for the upload endpoint (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// NotifyConfig holds outbound webhook settings.
type NotifyConfig struct {
	// WebhookURL receives import results and reports; empty disables notifications
	WebhookURL string `env:"DISCORD_WEBHOOK" envAlt:"NOTIFY_WEBHOOK_URL"`

	// Timeout is the per-attempt HTTP timeout (default: 10s)
	Timeout time.Duration `env:"NOTIFY_TIMEOUT" default:"10s"`

	// Retries is the number of extra attempts on transient failures (default: 2)
	Retries int `env:"NOTIFY_RETRIES" default:"2"`

	// RetryWait is the initial backoff between attempts (default: 1s)
	RetryWait time.Duration `env:"NOTIFY_RETRY_WAIT" default:"1s"`

	// FailureThreshold is how many consecutive failures open the breaker (default: 5)
	FailureThreshold int `env:"NOTIFY_FAILURE_THRESHOLD" default:"5"`

	// OpenTimeout is how long the breaker stays open (default: 1m)
	OpenTimeout time.Duration `env:"NOTIFY_OPEN_TIMEOUT" default:"1m"`
}

// AnalysisConfig holds sleep report settings.
type AnalysisConfig struct {
	// Periods are the report windows in days (default: 1,3,7)
	Periods []string `env:"ANALYSIS_PERIODS" default:"1,3,7"`

	// ReportInterval posts the report periodically; 0 disables (default: 0)
	ReportInterval time.Duration `env:"ANALYSIS_REPORT_INTERVAL" default:"0s"`

	// ReportTimeout bounds one scheduled report (default: 30s)
	ReportTimeout time.Duration `env:"ANALYSIS_REPORT_TIMEOUT" default:"30s"`

	// ReportAfterImport also posts the report after every successful upload (default: false)
	ReportAfterImport bool `env:"ANALYSIS_REPORT_AFTER_IMPORT" default:"false"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StoreConfig converts the database section for the store package.
func (c *DatabaseConfig) StoreConfig() store.Config {
	return store.Config{
		Driver:          store.Driver(c.Driver),
		URL:             c.URL,
		MaintenanceDB:   c.MaintenanceDB,
		Table:           c.Table,
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime,
		MaxConnIdleTime: c.MaxConnIdleTime,
	}
}

// NotifierConfig converts the notify section for the notify package.
func (c *NotifyConfig) NotifierConfig() notify.Config {
	return notify.Config{
		WebhookURL:       c.WebhookURL,
		Timeout:          c.Timeout,
		Retries:          c.Retries,
		RetryWait:        c.RetryWait,
		FailureThreshold: uint32(c.FailureThreshold),
		OpenTimeout:      c.OpenTimeout,
	}
}

// ReportPeriods parses the configured report windows.
func (c *AnalysisConfig) ReportPeriods() ([]analysis.Period, error) {
	if len(c.Periods) == 0 {
		return analysis.DefaultPeriods, nil
	}
	return analysis.ParsePeriods(c.Periods)
}
