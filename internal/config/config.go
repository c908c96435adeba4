// Package config provides centralized configuration management for the
// ingestion service. Settings come from environment variables with defaults
// and are validated on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Import   ImportConfig
	Cleanup  CleanupConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 9099)
	Port int `env:"SERVER_PORT" default:"9099"`

	// ReadTimeout is the maximum duration for reading the request (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is 0 so large downloads are not cut off mid-stream.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// Schema is the schema searched for importable tables (default: public)
	Schema string `env:"DB_SCHEMA" default:"public"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate creates registered tables that do not exist yet.
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"false"`
}

// StorageConfig holds file gateway settings.
type StorageConfig struct {
	// UploadRoot is the physical directory uploads are written under.
	UploadRoot string `env:"UPLOAD_PATH" default:"vf_admin/upload_path"`

	// URLPrefix translates physical upload paths into logical URLs.
	URLPrefix string `env:"UPLOAD_PREFIX" default:"/profile"`

	// DownloadRoot holds generated files offered for one-off download.
	DownloadRoot string `env:"DOWNLOAD_PATH" default:"vf_admin/download_path"`

	// MachineID is embedded in every generated file name and checked on retrieval.
	MachineID string `env:"UPLOAD_MACHINE" default:"A"`

	// AllowedExtensions is the upload allow-list (comma-separated, no dots).
	AllowedExtensions []string `env:"UPLOAD_ALLOWED_EXTENSIONS" default:"bmp,gif,jpg,jpeg,png,doc,docx,xls,xlsx,ppt,pptx,html,htm,txt,csv,rar,zip,gz,bz2,mp4,avi,rmvb,pdf"`

	// ChunkSize is the streaming buffer size; accepts KiB/MiB/GiB suffixes (default: 10MiB)
	ChunkSize int64 `env:"UPLOAD_CHUNK_SIZE" default:"10MiB" unit:"bytes"`

	// MaxFileSize caps a single upload (default: 100MiB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"100MiB" unit:"bytes"`
}

// ImportConfig holds batch importer settings.
type ImportConfig struct {
	// MaxConcurrent is the maximum number of imports executing at once (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single import execution (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// BatchSize is the number of rows queued per round trip (default: 500)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"500"`
}

// CleanupConfig controls the stale download sweeper.
type CleanupConfig struct {
	Enabled bool `env:"CLEANUP_ENABLED" default:"true"`

	// DownloadRetention is how long an undownloaded file may linger (default: 24h)
	DownloadRetention time.Duration `env:"CLEANUP_DOWNLOAD_RETENTION" default:"24h"`

	// Interval is how often the sweeper runs (default: 1h)
	Interval time.Duration `env:"CLEANUP_INTERVAL" default:"1h"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key validation on /api routes.
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys.
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
