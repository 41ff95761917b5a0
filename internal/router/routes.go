// Package router maps console paths to routes and runs every navigation
// through the session guard.
package router

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	domainauth "github.com/glhm/console/internal/domain/auth"
	apperrors "github.com/glhm/console/internal/errors"
)

// DefaultRoutes is the console route table.
func DefaultRoutes() []domainauth.Route {
	auth := domainauth.RouteRequirement{RequiresAuth: true}
	org := domainauth.RouteRequirement{RequiresAuth: true, RequiresOrganization: true}
	admin := domainauth.RouteRequirement{RequiresAuth: true, RequiresAdmin: true}

	return []domainauth.Route{
		{Name: "index", Path: "/", Title: "Home", Requires: auth},
		{Name: "public", Path: "/public", Title: "Login"},
		{Name: "profile", Path: "/profile", Title: "Profile", Requires: auth},
		{Name: "organization", Path: "/organization", Title: "My Organization", Requires: org},
		{Name: "organization-management", Path: "/organization-management", Title: "Organization Management", Requires: admin},
		{Name: "user-management", Path: "/user-management", Title: "User Management", Requires: admin},
		{Name: "devices", Path: "/devices", Title: "Device Management", Requires: org},
		{Name: "device-detail", Path: "/device/{id}", Title: "Device Detail", Requires: org},
		{Name: "image-management", Path: "/image-management", Title: "Image Management", Requires: admin},
	}
}

// Table resolves paths against a set of routes.
type Table struct {
	matcher *mux.Router
	byName  map[string]domainauth.Route
}

// NewTable builds a Table. Route names must be unique.
func NewTable(routes []domainauth.Route) (*Table, error) {
	t := &Table{matcher: mux.NewRouter(), byName: make(map[string]domainauth.Route, len(routes))}
	for _, r := range routes {
		if r.Name == "" || r.Path == "" {
			return nil, fmt.Errorf("route %q: name and path are required", r.Name)
		}
		if _, dup := t.byName[r.Name]; dup {
			return nil, fmt.Errorf("route %q registered twice", r.Name)
		}
		mr := t.matcher.NewRoute().Path(r.Path).Name(r.Name)
		if err := mr.GetError(); err != nil {
			return nil, fmt.Errorf("route %q: %w", r.Name, err)
		}
		t.byName[r.Name] = r
	}
	return t, nil
}

// Match finds the route for fullPath (a path with optional query).
func (t *Table) Match(fullPath string) (domainauth.Route, domainauth.Params, error) {
	u, err := url.Parse(fullPath)
	if err != nil || u.Path == "" {
		return domainauth.Route{}, nil, apperrors.NotFoundf("no route for %q", fullPath)
	}
	req := &http.Request{Method: http.MethodGet, URL: u}
	var m mux.RouteMatch
	if !t.matcher.Match(req, &m) || m.Route == nil {
		return domainauth.Route{}, nil, apperrors.NotFoundf("no route for %q", u.Path)
	}
	route, ok := t.byName[m.Route.GetName()]
	if !ok {
		return domainauth.Route{}, nil, apperrors.NotFoundf("no route for %q", u.Path)
	}
	var params domainauth.Params
	if len(m.Vars) > 0 {
		params = domainauth.Params(m.Vars)
	}
	return route, params, nil
}

// Lookup returns the route registered under name.
func (t *Table) Lookup(name string) (domainauth.Route, bool) {
	r, ok := t.byName[name]
	return r, ok
}
