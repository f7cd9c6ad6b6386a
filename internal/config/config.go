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
	Server   ServerConfig
	Matcher  MatcherConfig
	Upload   UploadConfig
	Session  SessionConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response. It must
	// cover MATCHER_MAX_WAIT plus MATCHER_TIMEOUT (default: 120s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests. Like
	// WriteTimeout it must cover a queued matcher call (default: 100s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"100s"`
}

// MatcherConfig holds settings for the remote matching service.
type MatcherConfig struct {
	// URL is the matcher base URL; requests go to {URL}/api/psm
	URL string `env:"MATCHER_URL" envAlt:"PSM_API_URL" default:"http://localhost:8000"`

	// Timeout bounds a single matcher call (default: 60s)
	Timeout time.Duration `env:"MATCHER_TIMEOUT" default:"60s"`

	// MaxConcurrent is the maximum number of matcher calls in flight across
	// all sessions (default: 4)
	MaxConcurrent int `env:"MATCHER_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long a match waits for a free slot (default: 30s)
	MaxWait time.Duration `env:"MATCHER_MAX_WAIT" default:"30s"`

	// RateLimit is outbound requests per second; 0 disables (default: 5)
	RateLimit float64 `env:"MATCHER_RATE_LIMIT" default:"5"`

	// RateBurst is the outbound token bucket size (default: 5)
	RateBurst int `env:"MATCHER_RATE_BURST" default:"5"`

	// UserAgent is sent with every matcher request
	UserAgent string `env:"MATCHER_USER_AGENT" default:"psm-client/1.0"`
}

// UploadConfig holds cohort file upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`
}

// SessionConfig holds in-memory session settings.
type SessionConfig struct {
	// TTL is how long an inactive session is kept (default: 2h)
	TTL time.Duration `env:"SESSION_TTL" default:"2h"`

	// SweepInterval is how often idle sessions are evicted (default: 10m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"10m"`

	// CookieName is the session cookie name (default: psm_session)
	CookieName string `env:"SESSION_COOKIE_NAME" default:"psm_session"`

	// MaxSessions caps live sessions; the least recently used idle session
	// is evicted beyond it (default: 1000)
	MaxSessions int `env:"SESSION_MAX" default:"1000"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// MatchLimit is requests per minute for upload and match endpoints (default: 20)
	MatchLimit int `env:"RATE_LIMIT_MATCH" default:"20"`
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

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
