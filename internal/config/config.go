// Package config provides configuration management for the documentation
// server: command-line flags, a YAML config file, environment variables, and
// defaults, layered with flags taking precedence over file over env over
// defaults, per SPEC_FULL.md's ambient-stack section (kept from the
// teacher's layered NewConfig/loadFromEnv/LoadWithFlags shape, retargeted
// from NATS/Synadia settings to the fetch-process-cache core's retry,
// rate-limit, and circuit-breaker knobs named in spec.md §6).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the fetch-process-cache core and its transport
// need at startup.
type Config struct {
	// Server settings
	LogLevel string // debug, info, warn, error (default: info)
	Debug    bool   // DEBUG env var; enables verbose (debug-level) logging regardless of LogLevel

	// Transport settings, consumed by internal/server.NewTransport's
	// transportConfig interface.
	TransportType string // stdio, sse, streamablehttp (default: stdio)
	Host          string // bind host for network transports (default: localhost)
	Port          int    // bind port for network transports (0 for stdio)

	// Cache settings
	CacheDir string // override for the platform cache directory (spec.md §6 CACHE_DIR)

	// Retry/backoff settings (internal/httpclient.Policy), spec.md §6
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration

	// Rate limit settings (internal/ratelimit), spec.md §6
	RequestsPerSecond float64

	// Circuit breaker settings (internal/breaker), spec.md §6
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// NewConfig returns a Config populated with the defaults spec.md §4.A/§4.B/
// §4.C name explicitly.
func NewConfig() *Config {
	return &Config{
		LogLevel:      "info",
		Debug:         false,
		TransportType: "stdio",
		Host:          "localhost",
		Port:          0,

		CacheDir: "",

		MaxRetries:     3,
		BaseRetryDelay: 1 * time.Second,
		MaxRetryDelay:  16 * time.Second,

		RequestsPerSecond: 2,

		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Load loads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := NewConfig()
	loadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file, with environment
// variables and defaults as fallback (file > env > defaults).
func LoadFromFile(configPath string) (*Config, error) {
	cfg := NewConfig()
	loadFromEnv(cfg)

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	applyViper(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithFlags layers command-line flags, an optional config file,
// environment variables, and defaults, in that order of precedence.
func LoadWithFlags(configPath string, flags map[string]interface{}) (*Config, error) {
	cfg := NewConfig()
	loadFromEnv(cfg)

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		applyViper(cfg, v)
	}

	applyFlags(cfg, flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyViper(cfg *Config, v *viper.Viper) {
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("debug") {
		cfg.Debug = v.GetBool("debug")
	}
	if v.IsSet("transport_type") {
		cfg.TransportType = v.GetString("transport_type")
	}
	if v.IsSet("host") {
		cfg.Host = v.GetString("host")
	}
	if v.IsSet("port") {
		cfg.Port = v.GetInt("port")
	}
	if v.IsSet("cache_dir") {
		cfg.CacheDir = v.GetString("cache_dir")
	}
	if v.IsSet("max_retries") {
		cfg.MaxRetries = v.GetInt("max_retries")
	}
	if v.IsSet("base_retry_delay_ms") {
		cfg.BaseRetryDelay = time.Duration(v.GetInt64("base_retry_delay_ms")) * time.Millisecond
	}
	if v.IsSet("max_retry_delay_ms") {
		cfg.MaxRetryDelay = time.Duration(v.GetInt64("max_retry_delay_ms")) * time.Millisecond
	}
	if v.IsSet("requests_per_second") {
		cfg.RequestsPerSecond = v.GetFloat64("requests_per_second")
	}
	if v.IsSet("failure_threshold") {
		cfg.FailureThreshold = v.GetInt("failure_threshold")
	}
	if v.IsSet("recovery_timeout_ms") {
		cfg.RecoveryTimeout = time.Duration(v.GetInt64("recovery_timeout_ms")) * time.Millisecond
	}
}

func applyFlags(cfg *Config, flags map[string]interface{}) {
	if val, ok := flags["log_level"]; ok && val != nil {
		if s, ok := val.(string); ok {
			cfg.LogLevel = s
		}
	}
	if val, ok := flags["transport_type"]; ok && val != nil {
		if s, ok := val.(string); ok {
			cfg.TransportType = s
		}
	}
	if val, ok := flags["host"]; ok && val != nil {
		if s, ok := val.(string); ok {
			cfg.Host = s
		}
	}
	if val, ok := flags["port"]; ok && val != nil {
		if i, ok := val.(int); ok {
			cfg.Port = i
		}
	}
	if val, ok := flags["cache_dir"]; ok && val != nil {
		if s, ok := val.(string); ok {
			cfg.CacheDir = s
		}
	}
}

// loadFromEnv applies the environment variables spec.md §6 names.
func loadFromEnv(cfg *Config) {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv("DEBUG"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = b
		}
	}
	if val := os.Getenv("CACHE_DIR"); val != "" {
		cfg.CacheDir = val
	}
	if val := os.Getenv("MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.MaxRetries = i
		}
	}
	if val := os.Getenv("BASE_RETRY_DELAY"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			cfg.BaseRetryDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if val := os.Getenv("MAX_RETRY_DELAY"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			cfg.MaxRetryDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if val := os.Getenv("REQUESTS_PER_SECOND"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.RequestsPerSecond = f
		}
	}
	if val := os.Getenv("FAILURE_THRESHOLD"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.FailureThreshold = i
		}
	}
	if val := os.Getenv("RECOVERY_TIMEOUT"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			cfg.RecoveryTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if val := os.Getenv("MCP_TRANSPORT"); val != "" {
		cfg.TransportType = val
	}
	if val := os.Getenv("MCP_HOST"); val != "" {
		cfg.Host = val
	}
	if val := os.Getenv("MCP_PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Port = i
		}
	}
}

// GetTransportType implements internal/server's transportConfig interface.
func (c *Config) GetTransportType() string { return c.TransportType }

// GetPort implements internal/server's transportConfig interface.
func (c *Config) GetPort() int { return c.Port }

// GetTransportAddress implements internal/server's transportConfig
// interface: empty for stdio, "host:port" for network transports.
func (c *Config) GetTransportAddress() string {
	if c.TransportType == "stdio" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks every setting and reports every problem found, rather
// than failing fast on the first one, so a misconfigured deployment gets a
// complete picture in one error.
func (c *Config) Validate() error {
	var errs []string

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel))
	}

	validTransports := map[string]bool{"stdio": true, "sse": true, "streamablehttp": true}
	if !validTransports[c.TransportType] {
		errs = append(errs, fmt.Sprintf("invalid transport type: %s (must be one of: stdio, sse, streamablehttp)", c.TransportType))
	}
	if (c.TransportType == "sse" || c.TransportType == "streamablehttp") && c.Port == 0 {
		errs = append(errs, fmt.Sprintf("port must be configured for %s transport", c.TransportType))
	}

	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("max_retries must be non-negative, got: %d", c.MaxRetries))
	}
	if c.BaseRetryDelay <= 0 {
		errs = append(errs, fmt.Sprintf("base_retry_delay must be positive, got: %s", c.BaseRetryDelay))
	}
	if c.MaxRetryDelay < c.BaseRetryDelay {
		errs = append(errs, fmt.Sprintf("max_retry_delay (%s) must be >= base_retry_delay (%s)", c.MaxRetryDelay, c.BaseRetryDelay))
	}
	if c.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Sprintf("requests_per_second must be positive, got: %v", c.RequestsPerSecond))
	}
	if c.FailureThreshold <= 0 {
		errs = append(errs, fmt.Sprintf("failure_threshold must be positive, got: %d", c.FailureThreshold))
	}
	if c.RecoveryTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("recovery_timeout must be positive, got: %s", c.RecoveryTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
