// Package apiclient is the shared HTTP client for the backend API. It attaches
// the credential to every call, unwraps the {code, message, data} envelope and
// publishes an event when the backend rejects the credential.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/glhm/console/internal/domain/auth"
	apperrors "github.com/glhm/console/internal/errors"
	"github.com/glhm/console/internal/observability/metrics"
	"github.com/glhm/console/internal/observability/statsd"
	"github.com/glhm/console/internal/ports"
)

const (
	// DefaultAuthHeader carries the credential on stamped requests.
	DefaultAuthHeader = "glhmauth"
	// RequestIDHeader correlates client and backend logs.
	RequestIDHeader = "X-Request-ID"

	defaultTimeout     = 10 * time.Second
	defaultUserAgent   = "glhm-console"
	contentTypeForm    = "application/x-www-form-urlencoded"
	contentTypeJSON    = "application/json"
	maxDrainBytes      = 64 << 10
	maxEnvelopeBytes   = 8 << 20
	maxBlobBytes int64 = 32 << 20
)

// RequestInterceptor runs on every stamped request before it is sent.
type RequestInterceptor func(ctx context.Context, req *http.Request) error

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	AuthHeader string
	UserAgent  string

	// Credentials supplies the token for the request stage. Optional.
	Credentials ports.CredentialSource
	// Jar is the process cookie jar shared with the credential cookie channel.
	Jar http.CookieJar
	// HTTPClient overrides the underlying client. Its Jar is replaced by Jar when set.
	HTTPClient *http.Client
	// Interceptors run after the built-in credential and request-id stages.
	Interceptors []RequestInterceptor

	Metrics statsd.Sink
	Logger  *slog.Logger
}

// Client is the single HTTP client every backend call goes through.
type Client struct {
	base         *url.URL
	hc           *http.Client
	authHeader   string
	userAgent    string
	creds        ports.CredentialSource
	interceptors []RequestInterceptor
	metrics      statsd.Sink
	logger       *slog.Logger

	mu     sync.RWMutex
	subs   map[uint64]func(context.Context, domainauth.AuthRejectedEvent)
	nextID uint64
}

var _ ports.AuthRejectedSource = (*Client)(nil)

// New builds a Client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("api base url is required")
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var hc *http.Client
	if opts.HTTPClient != nil {
		cp := *opts.HTTPClient
		if cp.Timeout == 0 {
			cp.Timeout = timeout
		}
		hc = &cp
	} else {
		hc = &http.Client{Timeout: timeout}
	}
	if opts.Jar != nil {
		hc.Jar = opts.Jar
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Metrics
	if sink == nil {
		sink = statsd.Discard{}
	}

	c := &Client{
		base:       base,
		hc:         hc,
		authHeader: fallback(strings.TrimSpace(opts.AuthHeader), DefaultAuthHeader),
		userAgent:  fallback(strings.TrimSpace(opts.UserAgent), defaultUserAgent),
		creds:      opts.Credentials,
		metrics:    sink,
		logger:     logger.With("component", "api_client"),
		subs:       make(map[uint64]func(context.Context, domainauth.AuthRejectedEvent)),
	}
	c.interceptors = append([]RequestInterceptor{c.stampRequestID, c.stampCredential}, opts.Interceptors...)
	return c, nil
}

// BaseURL returns the resolved API base.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// HTTPClient exposes the underlying client (shared jar, timeout).
func (c *Client) HTTPClient() *http.Client { return c.hc }

// OnAuthRejected registers fn to run whenever a request receives HTTP 401.
// Handlers run synchronously, in registration order, before the failing call returns.
func (c *Client) OnAuthRejected(fn func(ctx context.Context, ev domainauth.AuthRejectedEvent)) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) publishAuthRejected(ctx context.Context, ev domainauth.AuthRejectedEvent) {
	c.mu.RLock()
	ids := make([]uint64, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		c.mu.RLock()
		fn, ok := c.subs[id]
		c.mu.RUnlock()
		if ok {
			fn(ctx, ev)
		}
	}
}

// Resolve joins a backend path (optionally carrying a query) onto the base URL.
func (c *Client) Resolve(path string, params url.Values) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, apperrors.ValidationField("path", fmt.Sprintf("invalid path %q", path))
	}
	u := c.base.ResolveReference(ref)
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

type request struct {
	method      string
	path        string
	params      url.Values
	body        io.Reader
	contentType string
	// native requests skip the request stage: no header, no cookie sync.
	native bool
}

// send runs the request stage, performs the call and applies the response stage.
// On success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	u, err := c.Resolve(r.path, r.params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "create request %s %s", r.method, r.path)
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", c.userAgent)
	if r.body != nil {
		req.Header.Set("Content-Type", fallback(r.contentType, contentTypeForm))
	}

	if r.native {
		if err := c.stampRequestID(ctx, req); err != nil {
			return nil, err
		}
	} else {
		for _, ic := range c.interceptors {
			if err := ic(ctx, req); err != nil {
				return nil, err
			}
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	elapsed := time.Since(start)
	reqID := req.Header.Get(RequestIDHeader)

	if err != nil {
		metrics.EmitRequest(c.metrics, metrics.RequestMetric{Method: r.method, Duration: elapsed, Err: err})
		c.logger.WarnContext(ctx, "api request failed",
			"method", r.method, "path", r.path, "request_id", reqID, "duration", elapsed, "error", err)
		return nil, apperrors.Transport(fmt.Sprintf("%s %s", r.method, r.path), err)
	}

	metrics.EmitRequest(c.metrics, metrics.RequestMetric{Method: r.method, Status: resp.StatusCode, Duration: elapsed})
	c.logger.DebugContext(ctx, "api request",
		"method", r.method, "path", r.path, "status", resp.StatusCode, "request_id", reqID, "duration", elapsed)

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusUnauthorized:
		drainAndClose(resp.Body)
		metrics.EmitAuthRejected(c.metrics)
		c.logger.InfoContext(ctx, "credential rejected", "method", r.method, "path", r.path, "request_id", reqID)
		c.publishAuthRejected(ctx, domainauth.AuthRejectedEvent{Method: r.method, Path: r.path, RequestID: reqID})
		return nil, apperrors.AuthRejected(r.path)
	default:
		drainAndClose(resp.Body)
		return nil, apperrors.UnexpectedStatus(resp.StatusCode)
	}
}

func (c *Client) stampRequestID(_ context.Context, req *http.Request) error {
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return nil
}

// stampCredential attaches the stored credential as a header and refreshes the
// cookie mirror. A storage read failure sends the request unauthenticated.
func (c *Client) stampCredential(ctx context.Context, req *http.Request) error {
	if c.creds == nil {
		return nil
	}
	token, err := c.creds.Get(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "read credential failed, sending unauthenticated", "error", err)
		return nil
	}
	if token == "" {
		return nil
	}
	req.Header.Set(c.authHeader, token)
	if err := c.creds.Sync(ctx); err != nil {
		c.logger.WarnContext(ctx, "sync credential cookie failed", "error", err)
	}
	return nil
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
	_ = body.Close()
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
