package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds everything the console HTTP router needs.
type RouterServices struct {
	Session *SessionHandlers
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// CSRF enables double-submit protection when set.
	CSRF   *CSRFConfig
	Logger *slog.Logger
}

// NewRouter creates the console router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics)
	}

	if h := services.Session; h != nil {
		registerSessionRoutes(mux, h)
	}

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mws := []func(http.Handler) http.Handler{Recover(logger), Logging(logger)}
	if services.CSRF != nil {
		mws = append(mws, CSRFProtection(*services.CSRF))
	}
	return Chain(mux, mws...)
}

func registerSessionRoutes(mux *http.ServeMux, h *SessionHandlers) {
	mux.HandleFunc("GET /api/session", h.Get)
	mux.HandleFunc("POST /api/session/login", h.Login)
	mux.HandleFunc("POST /api/session/register", h.Register)
	mux.HandleFunc("POST /api/session/logout", h.Logout)
	mux.HandleFunc("GET /api/session/can-register", h.CanRegister)
	if h.Router != nil {
		mux.HandleFunc("POST /api/navigate", h.Navigate)
	}
	if h.Images != nil {
		mux.Handle("GET /images/{id}", RequireSession(h.Svc)(http.HandlerFunc(h.Image)))
	}
}
