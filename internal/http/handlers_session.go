package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/glhm/console/internal/apiclient"
	"github.com/glhm/console/internal/credential"
	domainauth "github.com/glhm/console/internal/domain/auth"
	apperrors "github.com/glhm/console/internal/errors"
	"github.com/glhm/console/internal/ports"
	"github.com/glhm/console/internal/service"
)

const healthResponse = `{"status":"ok"}`

// SessionService defines the session operations the console exposes.
type SessionService interface {
	EnsureInitialized(ctx context.Context) error
	Snapshot() domainauth.Session
	IsLoggedIn() bool
	Login(ctx context.Context, username, password string, remember bool) error
	Register(ctx context.Context, in domainauth.RegisterInput) error
	Logout(ctx context.Context) error
	CheckCanRegister(ctx context.Context) bool
}

// ImageSource loads images through the cookie channel.
type ImageSource interface {
	GetNative(ctx context.Context, id string) (apiclient.Blob, error)
}

var _ SessionService = (*service.SessionService)(nil)

// SessionHandlers provides HTTP handlers for the console session.
type SessionHandlers struct {
	Svc    SessionService
	Router ports.Navigator
	Images ImageSource
	Logger *slog.Logger
}

func (h *SessionHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// healthHandler returns a simple 200 OK status for readiness/liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		return
	}
}

type sessionResponse struct {
	domainauth.Session
	Token *domainauth.TokenInfo `json:"token,omitempty"`
}

func newSessionResponse(s domainauth.Session) sessionResponse {
	resp := sessionResponse{Session: s}
	if info, ok := credential.Inspect(s.Credential); ok {
		resp.Token = &info
	}
	return resp
}

// Get returns the session snapshot, initializing the session on first use.
// GET /api/session.
func (h *SessionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.EnsureInitialized(r.Context()); err != nil {
		h.logger().WarnContext(r.Context(), "session init failed", "error", err)
	}
	WriteJSON(w, http.StatusOK, newSessionResponse(h.Svc.Snapshot()))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// Login authenticates the console against the backend.
// POST /api/session/login.
func (h *SessionHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.Svc.Login(r.Context(), strings.TrimSpace(req.Username), req.Password, req.Remember); err != nil {
		WriteAppError(w, err, service.MsgLoginFailed)
		return
	}
	WriteJSON(w, http.StatusOK, newSessionResponse(h.Svc.Snapshot()))
}

// Register creates an account and logs into it.
// POST /api/session/register.
func (h *SessionHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domainauth.RegisterInput
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := h.Svc.Register(r.Context(), req); err != nil {
		WriteAppError(w, err, service.MsgRegisterFailed)
		return
	}
	WriteJSON(w, http.StatusOK, newSessionResponse(h.Svc.Snapshot()))
}

// Logout ends the session. It always succeeds locally.
// POST /api/session/logout.
func (h *SessionHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Logout(r.Context()); err != nil {
		WriteAppError(w, err, "logout failed")
		return
	}
	WriteJSON(w, http.StatusOK, newSessionResponse(h.Svc.Snapshot()))
}

// CanRegister reports whether self registration is open.
// GET /api/session/can-register.
func (h *SessionHandlers) CanRegister(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]bool{"can_register": h.Svc.CheckCanRegister(r.Context())})
}

type navigateRequest struct {
	To string `json:"to"`
}

// Navigate resolves a console path through the route guard.
// POST /api/navigate.
func (h *SessionHandlers) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	to := strings.TrimSpace(req.To)
	if !strings.HasPrefix(to, "/") {
		WriteAppError(w, apperrors.ValidationField("to", "path must start with /"), "")
		return
	}
	nav, err := h.Router.Navigate(r.Context(), to)
	if err != nil {
		WriteAppError(w, err, "navigation failed")
		return
	}
	WriteJSON(w, http.StatusOK, nav)
}

// Image proxies an image using only the credential cookie.
// GET /images/{id}.
func (h *SessionHandlers) Image(w http.ResponseWriter, r *http.Request) {
	blob, err := h.Images.GetNative(r.Context(), r.PathValue("id"))
	if err != nil {
		if !apperrors.IsValidation(err) {
			h.logger().WarnContext(r.Context(), "image proxy failed", "id", r.PathValue("id"), "error", err)
		}
		WriteAppError(w, err, "image unavailable")
		return
	}
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}
