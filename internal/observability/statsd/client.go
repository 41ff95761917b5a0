// Package statsd ships session and API client metrics to a StatsD agent using
// the DogStatsD tag extension, and provides in-process sinks.
package statsd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const dialTimeout = 5 * time.Second

// Config describes the StatsD endpoint.
type Config struct {
	Address string
	// Prefix is prepended to every metric name, e.g. "glhm".
	Prefix string
	// Tags are attached to every line; per-metric tags override them.
	Tags   map[string]string
	Logger *slog.Logger
}

// Client writes one UDP datagram per metric. It is safe for concurrent use;
// writes after Close are dropped.
type Client struct {
	prefix string
	tags   map[string]string
	logger *slog.Logger

	mu      sync.Mutex
	conn    net.Conn
	dropped atomic.Int64
}

var _ Sink = (*Client)(nil)

// NewClient dials cfg.Address over UDP.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	addr := strings.TrimSpace(cfg.Address)
	if addr == "" {
		return nil, errors.New("statsd address is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dctx, "udp", addr)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", addr, err)
	}

	return newClient(conn, cfg.Prefix, cfg.Tags, logger), nil
}

func newClient(conn net.Conn, prefix string, tags map[string]string, logger *slog.Logger) *Client {
	fixed := make(map[string]string, len(tags))
	for k, v := range tags {
		if k = cleanToken(k); k != "" {
			fixed[k] = cleanToken(v)
		}
	}
	return &Client{
		prefix: cleanName(prefix),
		tags:   fixed,
		logger: logger.With("component", "statsd"),
		conn:   conn,
	}
}

// Count sends a counter.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.send(c.line(name, strconv.FormatInt(value, 10), "c", tags))
}

// Timing sends a latency in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	ms := strconv.FormatFloat(float64(value)/float64(time.Millisecond), 'f', -1, 64)
	c.send(c.line(name, ms, "ms", tags))
}

// Dropped reports how many lines failed to send.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// Close releases the socket. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if n := c.dropped.Load(); n > 0 {
		c.logger.Warn("statsd lines dropped", "count", n)
	}
	return err
}

func (c *Client) send(line string) {
	if line == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		c.dropped.Add(1)
		return
	}
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.dropped.Add(1)
		c.logger.Debug("statsd write failed", "error", err)
	}
}

// line renders name:value|kind|#k:v,... with tags sorted by key.
func (c *Client) line(name, value, kind string, tags map[string]string) string {
	metric := cleanName(name)
	if metric == "" {
		return ""
	}
	if c.prefix != "" {
		metric = c.prefix + "." + metric
	}

	merged := make(map[string]string, len(c.tags)+len(tags))
	for k, v := range c.tags {
		merged[k] = v
	}
	for k, v := range tags {
		if k = cleanToken(k); k != "" {
			merged[k] = cleanToken(v)
		}
	}

	var b strings.Builder
	b.WriteString(metric)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('|')
	b.WriteString(kind)
	if len(merged) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("|#")
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		if v := merged[k]; v != "" {
			b.WriteByte(':')
			b.WriteString(v)
		}
	}
	return b.String()
}

// cleanName keeps [A-Za-z0-9_.-], maps anything else to '_' and collapses dots.
func cleanName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(s))
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	return strings.Trim(s, ".")
}

// cleanToken strips the separators of the line protocol from a tag key or value.
func cleanToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '|', ',', '#', '@', ' ', '\n', '\r', '\t':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}
