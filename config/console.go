package config

import (
	"strings"
	"time"
)

// ConsoleConfig contains local console server configuration.
type ConsoleConfig struct {
	// Addr is the address to bind the console server to.
	// Keep it on loopback: the console acts with the stored credential.
	Addr string `env:"CONSOLE_ADDR" envDefault:"127.0.0.1:8090"`

	// ShutdownTimeout bounds graceful shutdown of the console server.
	ShutdownTimeout time.Duration `env:"CONSOLE_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// CSRF enables double-submit cookie checks on state-changing requests.
	CSRF bool `env:"CONSOLE_CSRF" envDefault:"true"`

	// CSRFCookieDomain sets the domain attribute on the CSRF cookie.
	CSRFCookieDomain string `env:"CONSOLE_CSRF_COOKIE_DOMAIN"`
}

// Sanitize applies guardrails to console configuration values.
func (c *ConsoleConfig) Sanitize() {
	if c.Addr = strings.TrimSpace(c.Addr); c.Addr == "" {
		c.Addr = "127.0.0.1:8090"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}
