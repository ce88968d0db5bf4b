// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Upload      UploadConfig
	Contacts    ContactsConfig
	Messaging   MessagingConfig
	Rate        RateLimitConfig
	Security    SecurityConfig
	Logging     LoggingConfig
	Maintenance MaintenanceConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is 0 because batch sends hold the response open for their whole run.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds non-send API requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
// The database is only used when CONTACTS_METADATA_BACKEND=postgres.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds request body limits.
type UploadConfig struct {
	// MaxFileSize is the maximum request body in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" envAlt:"MAX_CONTENT_LENGTH" default:"52428800"`
}

// ContactsConfig holds contact file storage and preview settings.
type ContactsConfig struct {
	// Dir is where uploaded contact files are stored.
	Dir string `env:"CONTACTS_UPLOAD_DIR" default:"data/contacts_uploads"`

	// TemplateFile holds the operator's default message template.
	TemplateFile string `env:"MESSAGE_TEMPLATE_FILE" default:"template.txt"`

	// MetadataBackend selects where display names and descriptions live: file or postgres.
	MetadataBackend string `env:"CONTACTS_METADATA_BACKEND" default:"file"`

	// PreviewRowLimit caps rows returned by the preview endpoint (default: 20)
	PreviewRowLimit int `env:"CONTACTS_PREVIEW_ROW_LIMIT" default:"20"`

	// PreviewColumnLimit caps columns returned by the preview endpoint (default: 15)
	PreviewColumnLimit int `env:"CONTACTS_PREVIEW_COLUMN_LIMIT" default:"15"`
}

// MessagingConfig holds delivery backend and dispatch settings.
type MessagingConfig struct {
	// BackendURL is the base URL of the WhatsApp automation backend.
	BackendURL string `env:"WHATSAPP_API_URL" envAlt:"NODE_API_URL" default:"http://localhost:3000"`

	// DefaultCountryCode is prepended to numbers written in local form.
	DefaultCountryCode string `env:"DEFAULT_COUNTRY_CODE" default:"961"`

	// BatchSendDelay is the pause between consecutive batch rows (default: 800ms).
	// Plain numbers are read as seconds.
	BatchSendDelay time.Duration `env:"BATCH_SEND_DELAY" envAlt:"BATCH_SEND_DELAY_SECONDS" default:"800ms"`

	TextTimeout   time.Duration `env:"WHATSAPP_TEXT_TIMEOUT" default:"10s"`
	MediaTimeout  time.Duration `env:"WHATSAPP_MEDIA_TIMEOUT" default:"120s"`
	LogoutTimeout time.Duration `env:"WHATSAPP_LOGOUT_TIMEOUT" default:"20s"`
	AuthTimeout   time.Duration `env:"WHATSAPP_AUTH_TIMEOUT" default:"10s"`

	// BusyWait is how long a send waits for the backend session to free up (default: 5s)
	BusyWait time.Duration `env:"SEND_BUSY_WAIT" default:"5s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// SendLimit is requests per minute for send and upload endpoints (default: 10)
	SendLimit int `env:"RATE_LIMIT_SEND" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MaintenanceConfig holds background job settings.
type MaintenanceConfig struct {
	// MetadataReconcileInterval is how often stale contact metadata is pruned (default: 1h)
	MetadataReconcileInterval time.Duration `env:"METADATA_RECONCILE_INTERVAL" default:"1h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// UsesPostgres reports whether contact metadata is stored in PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.Contacts.MetadataBackend == "postgres"
}
