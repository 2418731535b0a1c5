// Package config loads ExamSeat settings from environment variables, applies
// defaults and validates everything before the server or CLI starts.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Seating  SeatingConfig
	Mail     MailConfig
	Reminder ReminderConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout also bounds the wait for in-flight imports to drain.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds PostgreSQL pool settings.
type DatabaseConfig struct {
	// URL accepts DATABASE_URL or DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true" secret:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds spreadsheet import settings.
type ImportConfig struct {
	// MaxFileSize is the upload limit in bytes (default: 20MB).
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent imports. One keeps composite session keys from racing.
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long a request waits for an import slot.
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// DefaultAntiCheat is used when a request omits anti_cheat_level.
	DefaultAntiCheat string `env:"IMPORT_DEFAULT_ANTI_CHEAT" default:"basic"`

	// LookupConcurrency caps the per-exam fallback seat lookups.
	LookupConcurrency int `env:"IMPORT_LOOKUP_CONCURRENCY" default:"4"`
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// ImportLimit is requests per minute for the import endpoint.
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"6"`
}

// SecurityConfig holds proxy trust and API key settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	APIKeys       []string `env:"API_KEYS" secret:"true"`
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json.
	Format string `env:"LOG_FORMAT" default:"text"`
}

// SeatingConfig points at the seat generator. Seat generation is disabled
// when URL is empty.
type SeatingConfig struct {
	URL     string        `env:"SEATGEN_URL"`
	APIKey  string        `env:"SEATGEN_API_KEY" secret:"true"`
	Timeout time.Duration `env:"SEATGEN_TIMEOUT" default:"60s"`
}

// MailConfig configures reminder delivery. Without an API key, or with
// DryRun set, messages are only logged.
type MailConfig struct {
	SendGridKey string `env:"SENDGRID_API_KEY" secret:"true"`
	FromAddress string `env:"MAIL_FROM" default:"noreply@examseat.local"`
	AppName     string `env:"APP_NAME" default:"ExamSeat"`
	DryRun      bool   `env:"MAIL_DRY_RUN" default:"false"`
}

// ReminderConfig controls the server's reminder loop.
type ReminderConfig struct {
	Enabled  bool          `env:"REMINDER_ENABLED" default:"false"`
	Interval time.Duration `env:"REMINDER_INTERVAL" default:"24h"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SendsMail reports whether reminders go through SendGrid.
func (c *MailConfig) SendsMail() bool {
	return c.SendGridKey != "" && !c.DryRun
}
