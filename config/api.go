package config

import (
	"strings"
	"time"
)

const (
	defaultAPIBaseURL = "http://localhost:8080/api"
	defaultAPITimeout = 10 * time.Second
	// DefaultAuthHeader is the header (and cookie) name carrying the credential.
	DefaultAuthHeader = "glhmauth"
)

// APIConfig contains backend API client configuration.
type APIConfig struct {
	// BaseURL is the root every backend path is resolved against.
	BaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8080/api"`

	// Timeout bounds every backend call.
	Timeout time.Duration `env:"API_TIMEOUT" envDefault:"10s"`

	// AuthHeader is the request header the credential is attached under.
	AuthHeader string `env:"API_AUTH_HEADER" envDefault:"glhmauth"`

	UserAgent string `env:"API_USER_AGENT" envDefault:"glhm-console"`
}

// Sanitize applies guardrails to API configuration values.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.BaseURL == "" {
		c.BaseURL = defaultAPIBaseURL
	}
	// Paths are joined relative to the base, which must end with a slash.
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultAPITimeout
	}
	if c.AuthHeader = strings.TrimSpace(c.AuthHeader); c.AuthHeader == "" {
		c.AuthHeader = DefaultAuthHeader
	}
}
