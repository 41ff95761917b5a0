package config

import (
	"fmt"
	"strings"
)

const defaultMetricsPrefix = "glhm"

// MetricsBackend selects the metrics sink.
type MetricsBackend string

const (
	// MetricsPrometheus exposes metrics on the console /metrics endpoint.
	MetricsPrometheus MetricsBackend = "prometheus"
	// MetricsStatsd pushes metrics to a StatsD agent over UDP.
	MetricsStatsd MetricsBackend = "statsd"
	// MetricsNone disables metrics emission.
	MetricsNone MetricsBackend = "none"
)

// UnmarshalText implements encoding.TextUnmarshaler for MetricsBackend.
func (m *MetricsBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "prometheus", "statsd", "none":
		*m = MetricsBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid MetricsBackend: %q (valid options: prometheus, statsd, none)", v)
	}
}

// ObservabilityConfig groups configuration that controls logging and metrics.
type ObservabilityConfig struct {
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Metrics ObservabilityMetricsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat != "text" {
		c.LogFormat = "json"
	}
	c.Metrics.Sanitize()
}

// ObservabilityMetricsConfig controls emission of metrics to Prometheus or StatsD.
type ObservabilityMetricsConfig struct {
	Backend       MetricsBackend `env:"METRICS_BACKEND" envDefault:"prometheus"`
	StatsdAddress string         `env:"STATSD_ADDRESS"  envDefault:"127.0.0.1:8125"`
	StatsdPrefix  string         `env:"STATSD_PREFIX"   envDefault:"glhm"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	if c.Backend == "" {
		c.Backend = MetricsPrometheus
	}
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.Backend == MetricsStatsd && c.StatsdAddress == "" {
		c.Backend = MetricsNone
	}
	if c.StatsdPrefix = strings.Trim(strings.TrimSpace(c.StatsdPrefix), "."); c.StatsdPrefix == "" {
		c.StatsdPrefix = defaultMetricsPrefix
	}
}

// IsEnabled returns true when metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Backend != MetricsNone
}
