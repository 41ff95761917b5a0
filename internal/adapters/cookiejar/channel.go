// Package cookiejar mirrors the credential into the process-wide cookie jar.
package cookiejar

import (
	"errors"
	"fmt"
	"net/http"
	stdjar "net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Channel writes the credential cookie into a jar scoped to the API origin.
// Every HTTP client built on Jar() sends the cookie, including requests
// that bypass header stamping.
type Channel struct {
	mu     sync.Mutex
	jar    *stdjar.Jar
	origin *url.URL
	name   string
	maxAge time.Duration
}

// Options configures a Channel.
type Options struct {
	// BaseURL is the API base; the cookie is scoped to its host.
	BaseURL string
	// Name is the cookie name.
	Name string
	// MaxAge is the cookie lifetime.
	MaxAge time.Duration
	// Jar overrides the jar; a new public-suffix aware jar is created when nil.
	Jar *stdjar.Jar
}

// NewChannel builds a cookie channel for the given API origin.
func NewChannel(opts Options) (*Channel, error) {
	if opts.Name == "" {
		return nil, errors.New("cookie name is required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", opts.BaseURL)
	}
	jar := opts.Jar
	if jar == nil {
		jar, err = stdjar.New(&stdjar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	// Cookies are keyed on the origin; path "/" covers every API route.
	origin := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	return &Channel{jar: jar, origin: origin, name: opts.Name, maxAge: maxAge}, nil
}

// Set writes the credential cookie (path /, SameSite=Lax, Max-Age from options).
func (c *Channel) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jar.SetCookies(c.origin, []*http.Cookie{{
		Name:     c.name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.maxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
	}})
}

// Clear expires the credential cookie.
func (c *Channel) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jar.SetCookies(c.origin, []*http.Cookie{{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	}})
}

// Get returns the current cookie value as the jar would send it.
func (c *Channel) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ck := range c.jar.Cookies(c.origin) {
		if ck.Name == c.name {
			return ck.Value, true
		}
	}
	return "", false
}

// Jar returns the shared jar for HTTP clients.
func (c *Channel) Jar() http.CookieJar { return c.jar }

// Name returns the cookie name.
func (c *Channel) Name() string { return c.name }
