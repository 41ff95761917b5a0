package auth

// Package auth contains domain-level types for the client session and route guard.
// It is pure and free of framework/adapter concerns.

import (
	"encoding/json"
	"strconv"
	"time"
)

// State is the session lifecycle state.
type State string

const (
	StateUnknown      State = "unknown"
	StateInitializing State = "initializing"
	StateLoggedOut    State = "logged_out"
	StateLoggedIn     State = "logged_in"
)

// CanTransition reports whether the session may move from s to next.
// Login from Unknown is allowed so one-shot CLI flows can skip Init.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateUnknown:
		return next == StateInitializing || next == StateLoggedIn || next == StateLoggedOut
	case StateInitializing:
		return next == StateLoggedIn || next == StateLoggedOut
	case StateLoggedIn:
		return next == StateLoggedOut || next == StateLoggedIn
	case StateLoggedOut:
		return next == StateLoggedIn || next == StateLoggedOut || next == StateInitializing
	default:
		return false
	}
}

// PermissionAdmin is the permission level granted to administrators.
const PermissionAdmin = 4

// UserProfile is the current user's view data as returned by view/user/this.
type UserProfile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	OrganizationID string `json:"organizationID,omitempty"`
	Avatar         string `json:"avatar,omitempty"`
	Permission     int    `json:"permission"`
}

// HasOrganization reports whether the user belongs to an organization.
// The backend serializes a missing organization as "" or the literal "null".
func (u *UserProfile) HasOrganization() bool {
	if u == nil {
		return false
	}
	return u.OrganizationID != "" && u.OrganizationID != "null"
}

// IsAdmin reports whether the user holds the admin permission level.
func (u *UserProfile) IsAdmin() bool {
	return u != nil && u.Permission == PermissionAdmin
}

// Clone returns a copy safe to hand out of a locked section.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Session is a point-in-time snapshot of the client session.
type Session struct {
	State         State        `json:"state"`
	IsLoggedIn    bool         `json:"is_logged_in"`
	User          *UserProfile `json:"user,omitempty"`
	Credential    string       `json:"-"`
	Loading       bool         `json:"loading"`
	Error         string       `json:"error,omitempty"`
	CanRegister   bool         `json:"can_register"`
	OriginalRoute string       `json:"original_route,omitempty"`
	LoginPrompt   bool         `json:"login_prompt"`
}

// HasCredential reports whether a credential is held.
func (s Session) HasCredential() bool { return s.Credential != "" }

// RegisterInput carries the fields submitted on registration.
type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// TokenInfo is display-only metadata decoded from a JWT-shaped credential.
// It is never used for authorization.
type TokenInfo struct {
	Subject   string    `json:"subject,omitempty"`
	Issuer    string    `json:"issuer,omitempty"`
	IssuedAt  time.Time `json:"issued_at,omitzero"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Expired reports whether the token carries an expiry that has passed.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// UnmarshalJSON accepts organizationID as either a string or a number.
func (u *UserProfile) UnmarshalJSON(data []byte) error {
	type alias UserProfile
	aux := struct {
		OrganizationID any `json:"organizationID"`
		*alias
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch v := aux.OrganizationID.(type) {
	case nil:
		u.OrganizationID = ""
	case string:
		u.OrganizationID = v
	case float64:
		u.OrganizationID = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		u.OrganizationID = ""
	}
	return nil
}
