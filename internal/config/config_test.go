package config

import (
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
	if cfg.TransportType != "stdio" {
		t.Errorf("expected default transport stdio, got %s", cfg.TransportType)
	}
	if cfg.FailureThreshold != 5 || cfg.RecoveryTimeout != 60*time.Second {
		t.Errorf("expected spec.md §4.B defaults, got threshold=%d recovery=%s", cfg.FailureThreshold, cfg.RecoveryTimeout)
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("MAX_RETRIES", "7")
	t.Setenv("REQUESTS_PER_SECOND", "25.5")
	t.Setenv("FAILURE_THRESHOLD", "3")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRetries != 7 {
		t.Errorf("expected MaxRetries=7, got %d", cfg.MaxRetries)
	}
	if cfg.RequestsPerSecond != 25.5 {
		t.Errorf("expected RequestsPerSecond=25.5, got %v", cfg.RequestsPerSecond)
	}
	if cfg.FailureThreshold != 3 {
		t.Errorf("expected FailureThreshold=3, got %d", cfg.FailureThreshold)
	}
	if !cfg.Debug {
		t.Error("expected Debug=true")
	}
}

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestValidateRejectsNetworkTransportWithoutPort(t *testing.T) {
	cfg := NewConfig()
	cfg.TransportType = "sse"
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for sse transport without a port")
	}
}

func TestValidateAccumulatesMultipleErrors(t *testing.T) {
	cfg := NewConfig()
	cfg.LogLevel = "bogus"
	cfg.FailureThreshold = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadWithFlagsPrecedenceOverEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	cfg, err := LoadWithFlags("", map[string]interface{}{"log_level": "debug"})
	if err != nil {
		t.Fatalf("LoadWithFlags: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected flag to win over env, got %s", cfg.LogLevel)
	}
}
