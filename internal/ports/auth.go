// Package ports defines interfaces (hexagonal ports) for session and credential behavior.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"
	"net/http"
	"time"

	domainauth "github.com/glhm/console/internal/domain/auth"
)

// DurableStorage is a string key/value store that survives process restarts.
// A missing key reads as ("", false, nil).
type DurableStorage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// CookieChannel mirrors the credential into the cookie jar shared by every HTTP client.
type CookieChannel interface {
	Set(token string)
	Clear()
	Get() (string, bool)
	Jar() http.CookieJar
}

// CredentialSource is the read side of the credential store used by request interceptors.
type CredentialSource interface {
	Get(ctx context.Context) (string, error)
	Sync(ctx context.Context) error
}

// CredentialStore owns both credential channels. Callers never touch either channel directly.
type CredentialStore interface {
	CredentialSource
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// PublicKeySource fetches the RSA public key used to encrypt passwords.
type PublicKeySource interface {
	PublicKey(ctx context.Context) (string, error)
}

// KeyCache optionally holds a fetched public key between encryptions.
type KeyCache interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, key string, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// Encryptor encrypts a plaintext secret for transport to the backend.
type Encryptor interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
}

// AuthAPI is the backend surface the session service consumes.
type AuthAPI interface {
	PublicKeySource
	Login(ctx context.Context, username, encryptedPassword string, remember bool) (string, error)
	Register(ctx context.Context, username, encryptedPassword, email string) (string, error)
	IsLogin(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error
	CanRegister(ctx context.Context) (bool, error)
	CurrentUser(ctx context.Context) (*domainauth.UserProfile, error)
}

// AuthRejectedSource publishes 401 events. Handlers run synchronously on the
// goroutine that observed the 401, before the failing call returns.
type AuthRejectedSource interface {
	OnAuthRejected(fn func(ctx context.Context, ev domainauth.AuthRejectedEvent)) (unsubscribe func())
}

// Navigator moves the client to a new route through the guard.
type Navigator interface {
	Navigate(ctx context.Context, fullPath string) (domainauth.Navigation, error)
}

// SessionView is the session surface the route guard reads and nudges.
type SessionView interface {
	EnsureInitialized(ctx context.Context) error
	IsLoggedIn() bool
	User() *domainauth.UserProfile
	SetOriginalRoute(path string)
	OpenLoginPrompt()
}
