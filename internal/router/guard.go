package router

import (
	"context"
	"log/slog"
	"net/url"
	"sync/atomic"

	domainauth "github.com/glhm/console/internal/domain/auth"
	"github.com/glhm/console/internal/ports"
)

// Guard decides, per hop, whether a navigation may proceed.
type Guard struct {
	session     ports.SessionView
	publicRoute string
	rootRoute   string
	logger      *slog.Logger
	initialized atomic.Bool
}

// NewGuard constructs a Guard.
func NewGuard(session ports.SessionView, publicRoute, rootRoute string, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		session:     session,
		publicRoute: publicRoute,
		rootRoute:   rootRoute,
		logger:      logger.With("component", "route_guard"),
	}
}

// Check evaluates route for fullPath.
func (g *Guard) Check(ctx context.Context, route domainauth.Route, fullPath string) domainauth.Decision {
	if !g.initialized.Load() {
		if err := g.session.EnsureInitialized(ctx); err != nil {
			g.logger.WarnContext(ctx, "session init failed, treating as logged out", "error", err)
		}
		g.initialized.Store(true)
	}

	loggedIn := g.session.IsLoggedIn()
	req := route.Requires

	if req.RequiresAuth && !loggedIn {
		g.session.SetOriginalRoute(fullPath)
		g.session.OpenLoginPrompt()
		if pathOf(fullPath) != g.publicRoute {
			d := domainauth.Redirect(g.publicRoute)
			d.PromptLogin = true
			return d
		}
		d := domainauth.Allow()
		d.PromptLogin = true
		return d
	}

	if req.RequiresOrganization && loggedIn && !g.session.User().HasOrganization() {
		g.logger.InfoContext(ctx, "route requires an organization", "path", fullPath)
		return domainauth.Redirect(g.rootRoute)
	}

	if req.RequiresAdmin && loggedIn && !g.session.User().IsAdmin() {
		g.logger.InfoContext(ctx, "route requires admin permission", "path", fullPath)
		return domainauth.Redirect(g.rootRoute)
	}

	return domainauth.Allow()
}

func pathOf(fullPath string) string {
	u, err := url.Parse(fullPath)
	if err != nil {
		return fullPath
	}
	return u.Path
}
