package statsd

import (
	"sync"
	"time"
)

// Sink receives session and API client metrics. Every metric this client emits
// is either a counter or a latency, so there is no gauge.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Discard is a Sink that drops every metric.
type Discard struct{}

var _ Sink = Discard{}

func (Discard) Count(string, int64, map[string]string)          {}
func (Discard) Timing(string, time.Duration, map[string]string) {}

// Fanout forwards every metric to each of its sinks.
type Fanout []Sink

var _ Sink = Fanout(nil)

// Count increments a counter on every sink.
func (f Fanout) Count(name string, value int64, tags map[string]string) {
	for _, s := range f {
		if s != nil {
			s.Count(name, value, tags)
		}
	}
}

// Timing records a timing on every sink.
func (f Fanout) Timing(name string, value time.Duration, tags map[string]string) {
	for _, s := range f {
		if s != nil {
			s.Timing(name, value, tags)
		}
	}
}

// Recorder is an in-memory Sink for tests and diagnostics.
type Recorder struct {
	mu      sync.Mutex
	Counts  map[string]int64
	Timings map[string]int
	Tags    map[string][]map[string]string
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Counts:  make(map[string]int64),
		Timings: make(map[string]int),
		Tags:    make(map[string][]map[string]string),
	}
}

func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counts[name] += value
	r.Tags[name] = append(r.Tags[name], copyTags(tags))
}

func (r *Recorder) Timing(name string, _ time.Duration, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Timings[name]++
}

// CountOf returns the accumulated count for name.
func (r *Recorder) CountOf(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Counts[name]
}

// TagsOf returns the tag sets recorded for name.
func (r *Recorder) TagsOf(name string) []map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]string(nil), r.Tags[name]...)
}

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
