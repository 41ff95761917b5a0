// Package prom exposes session and API client metrics to Prometheus.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glhm/console/internal/observability/metrics"
	"github.com/glhm/console/internal/observability/statsd"
)

// Sink implements statsd.Sink on top of a fixed set of Prometheus collectors.
// Metric names it does not know are dropped.
type Sink struct {
	gatherer prometheus.Gatherer

	transitions   *prometheus.CounterVec
	operations    *prometheus.CounterVec
	operationTime *prometheus.HistogramVec
	requests      *prometheus.CounterVec
	requestTime   *prometheus.HistogramVec
	rejected      prometheus.Counter
}

var _ statsd.Sink = (*Sink)(nil)

// NewSink registers the collectors on a fresh registry.
func NewSink(namespace string) *Sink {
	reg := prometheus.NewRegistry()
	return NewSinkWith(reg, reg, namespace)
}

// NewSinkWith registers the collectors on reg and serves them from g.
func NewSinkWith(reg prometheus.Registerer, g prometheus.Gatherer, namespace string) *Sink {
	factory := promauto.With(reg)

	return &Sink{
		gatherer: g,
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_transitions_total",
				Help:      "Session state transitions",
			},
			[]string{"from", "to"},
		),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_operations_total",
				Help:      "Session operations by outcome",
			},
			[]string{"op", "result", "error_class"},
		),
		operationTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "auth_operation_duration_seconds",
				Help:      "Duration of session operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Backend API calls by method and HTTP status",
			},
			[]string{"method", "status"},
		),
		requestTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Latency of backend API calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
		rejected: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_rejected_total",
				Help:      "Backend responses with HTTP 401",
			},
		),
	}
}

// Count increments the counter matching name.
func (s *Sink) Count(name string, value int64, tags map[string]string) {
	v := float64(value)
	switch name {
	case metrics.NameAuthTransition:
		s.transitions.WithLabelValues(tags["from"], tags["to"]).Add(v)
	case metrics.NameAuthOperation:
		s.operations.WithLabelValues(tags["op"], tags["result"], tags["error_class"]).Add(v)
	case metrics.NameAPIRequest:
		s.requests.WithLabelValues(tags["method"], tags["status"]).Add(v)
	case metrics.NameAuthRejected:
		s.rejected.Add(v)
	}
}

// Timing observes the histogram matching name.
func (s *Sink) Timing(name string, value time.Duration, tags map[string]string) {
	switch name {
	case metrics.NameAuthOperationTime:
		s.operationTime.WithLabelValues(tags["op"]).Observe(value.Seconds())
	case metrics.NameAPIRequestTime:
		s.requestTime.WithLabelValues(tags["method"], tags["status"]).Observe(value.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}
