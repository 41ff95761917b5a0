package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/glhm/console/internal/domain/auth"
	apperrors "github.com/glhm/console/internal/errors"
	"github.com/glhm/console/internal/ports"
)

// DefaultMaxHops bounds redirect chains.
const DefaultMaxHops = 8

// Options configures a Router.
type Options struct {
	Session ports.SessionView
	// Routes defaults to DefaultRoutes.
	Routes      []domainauth.Route
	PublicRoute string
	RootRoute   string
	MaxHops     int
	Logger      *slog.Logger
}

// Router resolves navigations through the guard and tracks the current route.
type Router struct {
	table   *Table
	guard   *Guard
	maxHops int
	logger  *slog.Logger

	mu         sync.Mutex
	current    domainauth.Navigation
	navigating bool
	queued     string
	hasQueued  bool
}

var _ ports.Navigator = (*Router)(nil)

// New builds a Router.
func New(opts Options) (*Router, error) {
	if opts.Session == nil {
		return nil, errors.New("router requires a session")
	}
	routes := opts.Routes
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}
	table, err := NewTable(routes)
	if err != nil {
		return nil, fmt.Errorf("build route table: %w", err)
	}
	public := opts.PublicRoute
	if public == "" {
		public = "/public"
	}
	root := opts.RootRoute
	if root == "" {
		root = "/"
	}
	maxHops := opts.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		table:   table,
		guard:   NewGuard(opts.Session, public, root, logger),
		maxHops: maxHops,
		logger:  logger.With("component", "router"),
	}, nil
}

// Table exposes the route table.
func (r *Router) Table() *Table { return r.table }

// Current returns the last settled navigation.
func (r *Router) Current() domainauth.Navigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Title returns the current document title.
func (r *Router) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Title
}

// Navigate moves to fullPath, following guard redirects. A call made while
// another navigation is resolving is queued and applied when that one settles;
// the last queued path wins.
func (r *Router) Navigate(ctx context.Context, fullPath string) (domainauth.Navigation, error) {
	r.mu.Lock()
	if r.navigating {
		r.queued, r.hasQueued = fullPath, true
		r.mu.Unlock()
		return domainauth.Navigation{Path: fullPath, Queued: true}, nil
	}
	r.navigating = true
	r.mu.Unlock()

	for {
		nav, err := r.resolve(ctx, fullPath)

		r.mu.Lock()
		if err == nil {
			r.current = nav
		}
		if r.hasQueued {
			fullPath = r.queued
			r.queued, r.hasQueued = "", false
			r.mu.Unlock()
			continue
		}
		r.navigating = false
		r.mu.Unlock()

		if err != nil {
			return domainauth.Navigation{}, err
		}
		r.logger.DebugContext(ctx, "navigated", "path", nav.Path, "route", nav.Route, "redirected", nav.Redirected)
		return nav, nil
	}
}

func (r *Router) resolve(ctx context.Context, fullPath string) (domainauth.Navigation, error) {
	var (
		hops       []string
		redirected bool
		prompt     bool
	)
	path := fullPath
	for range r.maxHops {
		route, params, err := r.table.Match(path)
		if err != nil {
			return domainauth.Navigation{}, err
		}
		d := r.guard.Check(ctx, route, path)
		prompt = prompt || d.PromptLogin
		if d.Allow {
			return domainauth.Navigation{
				Path:        path,
				Route:       route.Name,
				Title:       route.Title,
				Params:      params,
				Redirected:  redirected,
				Hops:        hops,
				LoginPrompt: prompt,
			}, nil
		}
		hops = append(hops, path)
		path = d.RedirectTo
		redirected = true
	}
	return domainauth.Navigation{}, apperrors.Internal(fmt.Sprintf("navigation to %q exceeded %d redirects", fullPath, r.maxHops))
}
