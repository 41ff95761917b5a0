package auth

// RouteRequirement is the static access requirement attached to a route.
type RouteRequirement struct {
	RequiresAuth         bool `json:"requires_auth"`
	RequiresOrganization bool `json:"requires_organization"`
	RequiresAdmin        bool `json:"requires_admin"`
}

// Route describes one navigable destination.
type Route struct {
	Name     string
	Path     string // gorilla/mux pattern, e.g. /device/{id}
	Title    string
	Requires RouteRequirement
}

// Decision is the outcome of evaluating the guard for one hop.
type Decision struct {
	Allow      bool
	RedirectTo string
	// PromptLogin is set when the user must authenticate before proceeding.
	PromptLogin bool
}

// Allow returns an allowing decision.
func Allow() Decision { return Decision{Allow: true} }

// Redirect returns a decision that sends navigation to path.
func Redirect(path string) Decision { return Decision{RedirectTo: path} }

// Navigation is the result of a resolved navigation.
type Navigation struct {
	Path        string   `json:"path"`
	Route       string   `json:"route"`
	Title       string   `json:"title"`
	Params      Params   `json:"params,omitempty"`
	Redirected  bool     `json:"redirected"`
	Hops        []string `json:"hops,omitempty"`
	LoginPrompt bool     `json:"login_prompt"`
	// Queued is set when the request arrived while another navigation was
	// resolving; it is applied once that one settles.
	Queued bool `json:"queued,omitempty"`
}

// Params holds path variables captured by a route pattern.
type Params map[string]string

// AuthRejectedEvent is published when the backend answers 401 to a request.
type AuthRejectedEvent struct {
	Method    string
	Path      string
	RequestID string
}
