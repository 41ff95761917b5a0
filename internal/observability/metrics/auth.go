// Package metrics emits standardised session and API client metrics through a statsd.Sink.
package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/glhm/console/internal/observability/errors"
	"github.com/glhm/console/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Metric names. Sinks that need a fixed schema (Prometheus) switch on these.
const (
	NameAuthTransition    = "auth.transition"
	NameAuthOperation     = "auth.operation"
	NameAuthOperationTime = "auth.operation.duration"
	NameAPIRequest        = "api.request"
	NameAPIRequestTime    = "api.request.duration"
	NameAuthRejected      = "auth.rejected"
)

// EmitTransition records a session state transition.
func EmitTransition(sink statsd.Sink, from, to string) {
	if sink == nil || from == to {
		return
	}
	sink.Count(NameAuthTransition, 1, map[string]string{"from": from, "to": to})
}

// OperationMetric captures one session operation (init, login, register, logout).
type OperationMetric struct {
	Op       string
	Duration time.Duration
	Err      error
}

// EmitOperation emits the outcome and duration of a session operation.
func EmitOperation(sink statsd.Sink, in OperationMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"op":     in.Op,
		"result": ResultSuccess,
	}
	if in.Err != nil {
		tags["result"] = ResultError
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count(NameAuthOperation, 1, tags)

	if in.Duration > 0 {
		sink.Timing(NameAuthOperationTime, in.Duration, map[string]string{"op": in.Op})
	}
}

// RequestMetric captures one backend call made by the API client.
type RequestMetric struct {
	Method   string
	Status   int
	Duration time.Duration
	Err      error
}

// EmitRequest emits backend call counters and latency.
// Status 0 means the call failed before a response arrived.
func EmitRequest(sink statsd.Sink, in RequestMetric) {
	if sink == nil {
		return
	}
	status := "none"
	if in.Status > 0 {
		status = strconv.Itoa(in.Status)
	}
	tags := map[string]string{
		"method": in.Method,
		"status": status,
	}
	sink.Count(NameAPIRequest, 1, tags)
	if in.Duration > 0 {
		sink.Timing(NameAPIRequestTime, in.Duration, CloneTags(tags))
	}
}

// EmitAuthRejected counts 401 responses.
func EmitAuthRejected(sink statsd.Sink) {
	if sink == nil {
		return
	}
	sink.Count(NameAuthRejected, 1, nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
