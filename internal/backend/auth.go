// Package backend wraps the GLHM REST endpoints the console uses on top of the
// shared API client. Wrappers only shape requests and responses; session state
// lives in the service layer.
package backend

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/glhm/console/internal/apiclient"
	domainauth "github.com/glhm/console/internal/domain/auth"
	"github.com/glhm/console/internal/ports"
)

// Endpoint paths, relative to the API base URL.
const (
	PathPublicKey   = "auth/publicKey"
	PathLogin       = "auth/login"
	PathRegister    = "auth/register"
	PathIsLogin     = "auth/isLogin"
	PathLogout      = "auth/logout"
	PathCanRegister = "auth/can-register"
	PathCurrentUser = "view/user/this"
)

// Auth implements ports.AuthAPI over the API client.
type Auth struct {
	client *apiclient.Client
}

var _ ports.AuthAPI = (*Auth)(nil)

// NewAuth constructs Auth.
func NewAuth(client *apiclient.Client) (*Auth, error) {
	if client == nil {
		return nil, errors.New("backend auth requires an api client")
	}
	return &Auth{client: client}, nil
}

// PublicKey returns the backend's RSA public key.
func (a *Auth) PublicKey(ctx context.Context) (string, error) {
	return apiclient.Get[string](ctx, a.client, PathPublicKey, nil)
}

// Login submits an already encrypted password and returns the issued token.
func (a *Auth) Login(ctx context.Context, username, encryptedPassword string, remember bool) (string, error) {
	return apiclient.PostForm[string](ctx, a.client, PathLogin, url.Values{
		"username": {username},
		"password": {encryptedPassword},
		"remember": {strconv.FormatBool(remember)},
	})
}

// Register creates an account and returns the issued token. An empty email is omitted.
func (a *Auth) Register(ctx context.Context, username, encryptedPassword, email string) (string, error) {
	return apiclient.PostForm[string](ctx, a.client, PathRegister, url.Values{
		"username": {username},
		"password": {encryptedPassword},
		"email":    {email},
	})
}

// IsLogin asks the backend whether the current credential is valid.
func (a *Auth) IsLogin(ctx context.Context) (bool, error) {
	return apiclient.Get[bool](ctx, a.client, PathIsLogin, nil)
}

// Logout invalidates the credential server side.
func (a *Auth) Logout(ctx context.Context) error {
	_, err := apiclient.Get[any](ctx, a.client, PathLogout, nil)
	return err
}

// CanRegister reports whether self registration is open.
func (a *Auth) CanRegister(ctx context.Context) (bool, error) {
	return apiclient.Get[bool](ctx, a.client, PathCanRegister, nil)
}

// CurrentUser fetches the profile bound to the current credential.
func (a *Auth) CurrentUser(ctx context.Context) (*domainauth.UserProfile, error) {
	return apiclient.Get[*domainauth.UserProfile](ctx, a.client, PathCurrentUser, nil)
}
