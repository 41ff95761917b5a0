package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.API.BaseURL != "http://localhost:8080/api/" {
		t.Errorf("API.BaseURL = %q, want trailing slash default", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("API.Timeout = %v, want 10s", cfg.API.Timeout)
	}
	if cfg.API.AuthHeader != "glhmauth" || cfg.Auth.TokenKey != "glhmauth" {
		t.Errorf("auth header/key = %q/%q, want glhmauth", cfg.API.AuthHeader, cfg.Auth.TokenKey)
	}
	if cfg.Auth.CookieMaxAge != 24*time.Hour {
		t.Errorf("Auth.CookieMaxAge = %v, want 24h", cfg.Auth.CookieMaxAge)
	}
	if cfg.Auth.KeyCacheEnabled() {
		t.Error("public key cache should be disabled by default")
	}
	if cfg.Auth.RequireProfile {
		t.Error("RequireProfile should default to false")
	}
	if cfg.Auth.PublicRoute != "/public" || cfg.Auth.LoginRoute != "/public" || cfg.Auth.RootRoute != "/" {
		t.Errorf("unexpected routes: %+v", cfg.Auth)
	}
	if cfg.Store.Backend != StoreBackendFile {
		t.Errorf("Store.Backend = %q, want file", cfg.Store.Backend)
	}
	if !strings.HasSuffix(cfg.Store.Path, "storage.json") {
		t.Errorf("Store.Path = %q, want default storage file", cfg.Store.Path)
	}
	if cfg.Console.Addr != "127.0.0.1:8090" {
		t.Errorf("Console.Addr = %q", cfg.Console.Addr)
	}
	if !cfg.Console.CSRF {
		t.Error("Console.CSRF should default to true")
	}
	if cfg.RequiresRedis() {
		t.Error("default config should not require redis")
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_TOKEN_KEY", "token")
	t.Setenv("AUTH_COOKIE_MAX_AGE", "1h")
	t.Setenv("AUTH_PUBLIC_KEY_CACHE_TTL", "5m")
	t.Setenv("AUTH_PUBLIC_KEY_CACHE", "redis")
	t.Setenv("AUTH_REQUIRE_PROFILE", "true")
	t.Setenv("AUTH_PUBLIC_ROUTE", "/welcome")
	t.Setenv("AUTH_LOGIN_ROUTE", "login")
	t.Setenv("AUTH_ROOT_ROUTE", "/")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	expected := AuthConfig{
		TokenKey:          "token",
		CookieMaxAge:      time.Hour,
		PublicKeyCacheTTL: 5 * time.Minute,
		PublicKeyCache:    KeyCacheRedis,
		RequireProfile:    true,
		PublicRoute:       "/welcome",
		LoginRoute:        "/login",
		RootRoute:         "/",
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
	if !cfg.RequiresRedis() {
		t.Error("redis key cache should require redis")
	}
}

func TestStoreBackend_UnmarshalText(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    StoreBackend
		expectError bool
	}{
		{name: "file", input: "file", expected: StoreBackendFile},
		{name: "redis uppercase", input: "REDIS", expected: StoreBackendRedis},
		{name: "memory with spaces", input: " memory ", expected: StoreBackendMemory},
		{name: "invalid", input: "sqlite", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b StoreBackend
			err := b.UnmarshalText([]byte(tt.input))
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, b)
			}
		})
	}
}

func TestAppConfig_InvalidEnumRejected(t *testing.T) {
	t.Setenv("METRICS_BACKEND", "graphite")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatal("expected parse error for invalid metrics backend")
	}
}

func TestAPIConfig_Sanitize(t *testing.T) {
	cfg := APIConfig{BaseURL: " https://glhm.example.com/api ", Timeout: -1, AuthHeader: " "}
	cfg.Sanitize()

	if cfg.BaseURL != "https://glhm.example.com/api/" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.AuthHeader != DefaultAuthHeader {
		t.Errorf("AuthHeader = %q", cfg.AuthHeader)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Backend:       MetricsStatsd,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.IsEnabled() {
		t.Fatalf("expected metrics to be disabled when statsd address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Backend:       MetricsStatsd,
		StatsdAddress: " statsd:1234 ",
		StatsdPrefix:  ".glhm.",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.StatsdPrefix != "glhm" {
		t.Fatalf("expected prefix to be trimmed, got %q", cfg.StatsdPrefix)
	}
}

func TestObservabilityConfig_SanitizeLogging(t *testing.T) {
	cfg := ObservabilityConfig{LogLevel: "LOUD", LogFormat: "TEXT"}
	cfg.Sanitize()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
}
