package config

import (
	"fmt"
	"strings"
	"time"
)

// KeyCacheMode selects where fetched RSA public keys are cached.
type KeyCacheMode string

const (
	// KeyCacheMemory keeps the key in process memory.
	KeyCacheMemory KeyCacheMode = "memory"
	// KeyCacheRedis shares the key across processes through Redis.
	KeyCacheRedis KeyCacheMode = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for KeyCacheMode.
func (m *KeyCacheMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*m = KeyCacheMode(v)
		return nil
	default:
		return fmt.Errorf("invalid KeyCacheMode: %q (valid options: memory, redis)", v)
	}
}

// AuthConfig groups credential storage and route guard configuration.
type AuthConfig struct {
	// TokenKey is the durable storage key and cookie name for the credential.
	TokenKey string `env:"AUTH_TOKEN_KEY" envDefault:"glhmauth"`

	// CookieMaxAge is the lifetime of the credential cookie.
	CookieMaxAge time.Duration `env:"AUTH_COOKIE_MAX_AGE" envDefault:"24h"`

	// PublicKeyCacheTTL enables caching of the login public key when positive.
	// Zero fetches the key before every encryption.
	PublicKeyCacheTTL time.Duration `env:"AUTH_PUBLIC_KEY_CACHE_TTL" envDefault:"0"`
	PublicKeyCache    KeyCacheMode  `env:"AUTH_PUBLIC_KEY_CACHE"     envDefault:"memory"`

	// RequireProfile rolls a login back when the profile fetch fails.
	RequireProfile bool `env:"AUTH_REQUIRE_PROFILE" envDefault:"false"`

	PublicRoute string `env:"AUTH_PUBLIC_ROUTE" envDefault:"/public"`
	LoginRoute  string `env:"AUTH_LOGIN_ROUTE"  envDefault:"/public"`
	RootRoute   string `env:"AUTH_ROOT_ROUTE"   envDefault:"/"`
}

// Sanitize applies guardrails to auth configuration values.
func (c *AuthConfig) Sanitize() {
	if c.TokenKey = strings.TrimSpace(c.TokenKey); c.TokenKey == "" {
		c.TokenKey = DefaultAuthHeader
	}
	if c.CookieMaxAge <= 0 {
		c.CookieMaxAge = 24 * time.Hour
	}
	if c.PublicKeyCacheTTL < 0 {
		c.PublicKeyCacheTTL = 0
	}
	if c.PublicKeyCache == "" {
		c.PublicKeyCache = KeyCacheMemory
	}
	c.PublicRoute = normalizeRoute(c.PublicRoute, "/public")
	c.LoginRoute = normalizeRoute(c.LoginRoute, c.PublicRoute)
	c.RootRoute = normalizeRoute(c.RootRoute, "/")
}

// KeyCacheEnabled reports whether fetched public keys are cached.
func (c *AuthConfig) KeyCacheEnabled() bool {
	return c.PublicKeyCacheTTL > 0
}

func normalizeRoute(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	return v
}
