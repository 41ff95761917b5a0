package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/glhm/console/config"
	"github.com/glhm/console/internal/observability/prom"
	"github.com/glhm/console/internal/observability/statsd"
)

// Metrics bundles the configured sink with the resources behind it.
type Metrics struct {
	Sink statsd.Sink
	// Handler serves /metrics when the Prometheus backend is active.
	Handler http.Handler

	client *statsd.Client
}

// Close releases the StatsD connection, if any.
func (m *Metrics) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

// serviceTag identifies this client on a StatsD agent shared with other services.
var serviceTag = map[string]string{"service": "glhm-console"}

// BuildMetrics creates the metrics sink selected by cfg.
func BuildMetrics(ctx context.Context, cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*Metrics, error) {
	switch cfg.Backend {
	case config.MetricsPrometheus:
		sink := prom.NewSink(cfg.StatsdPrefix)
		return &Metrics{Sink: sink, Handler: sink.Handler()}, nil

	case config.MetricsStatsd:
		client, err := statsd.NewClient(ctx, statsd.Config{
			Address: cfg.StatsdAddress,
			Prefix:  cfg.StatsdPrefix,
			Tags:    serviceTag,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create statsd client: %w", err)
		}
		return &Metrics{Sink: client, client: client}, nil

	default:
		return &Metrics{Sink: statsd.Discard{}}, nil
	}
}
