package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/sessions")
	t.Setenv("AUTH_DOMAIN", "https://example.auth0.com/")
	t.Setenv("AUTH_AUDIENCE", "https://api.example.com")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Session.DeviceLimit != 3 {
		t.Errorf("Session.DeviceLimit = %d, want 3", cfg.Session.DeviceLimit)
	}
	if cfg.Session.NotifyTimeout != 5*time.Second {
		t.Errorf("Session.NotifyTimeout = %v, want 5s", cfg.Session.NotifyTimeout)
	}
	if cfg.Kafka.Topic != "session-events" {
		t.Errorf("Kafka.Topic = %q, want session-events", cfg.Kafka.Topic)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("CORS.AllowedOrigins = %v, want [http://localhost:3000]", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("N_DEVICES_LIMIT", "5")
	t.Setenv("NOTIFY_TIMEOUT", "2s")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
	if cfg.Session.DeviceLimit != 5 {
		t.Errorf("Session.DeviceLimit = %d, want 5", cfg.Session.DeviceLimit)
	}
	if cfg.Session.NotifyTimeout != 2*time.Second {
		t.Errorf("Session.NotifyTimeout = %v, want 2s", cfg.Session.NotifyTimeout)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "broker-2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing database url", "DATABASE_URL"},
		{"missing auth domain", "AUTH_DOMAIN"},
		{"missing auth audience", "AUTH_AUDIENCE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.unset, "")

			if _, err := LoadConfig(); err == nil {
				t.Fatal("LoadConfig succeeded, want error")
			}
		})
	}
}

func TestLoadConfigRejectsZeroDeviceLimit(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("N_DEVICES_LIMIT", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig succeeded, want error")
	}
}

func TestJWKSURL(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Domain: "https://example.auth0.com/"}}
	want := "https://example.auth0.com/.well-known/jwks.json"
	if got := cfg.JWKSURL(); got != want {
		t.Errorf("JWKSURL() = %q, want %q", got, want)
	}

	cfg.Auth.Domain = "https://example.auth0.com"
	if got := cfg.JWKSURL(); got != want {
		t.Errorf("JWKSURL() without trailing slash = %q, want %q", got, want)
	}
}
