// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"net/http"
	"sync"

	domainauth "github.com/glhm/console/internal/domain/auth"
	"github.com/glhm/console/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.DurableStorage  = (*MapStorage)(nil)
	_ ports.CookieChannel   = (*RecordingCookieChannel)(nil)
	_ ports.CredentialStore = (*FakeCredentialStore)(nil)
	_ ports.Navigator       = (*RecordingNavigator)(nil)
	_ ports.SessionView     = (*StaticSession)(nil)
)

// MapStorage is an in-memory DurableStorage with injectable failures.
type MapStorage struct {
	mu    sync.Mutex
	items map[string]string

	GetErr    error
	SetErr    error
	RemoveErr error
}

// NewMapStorage creates an empty MapStorage.
func NewMapStorage() *MapStorage {
	return &MapStorage{items: make(map[string]string)}
}

func (m *MapStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MapStorage) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.items == nil {
		m.items = make(map[string]string)
	}
	m.items[key] = value
	return nil
}

func (m *MapStorage) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	delete(m.items, key)
	return nil
}

// Peek returns the raw stored value without going through the port.
func (m *MapStorage) Peek(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok
}

// RecordingCookieChannel keeps the cookie value in memory and counts writes.
type RecordingCookieChannel struct {
	mu      sync.Mutex
	value   string
	present bool

	Sets   int
	Clears int
}

func (c *RecordingCookieChannel) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value, c.present = token, true
	c.Sets++
}

func (c *RecordingCookieChannel) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value, c.present = "", false
	c.Clears++
}

func (c *RecordingCookieChannel) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.present
}

// Jar returns nil; requests made with this channel carry no cookies.
func (c *RecordingCookieChannel) Jar() http.CookieJar { return nil }

// FakeCredentialStore holds a token in memory.
type FakeCredentialStore struct {
	mu    sync.Mutex
	Token string
	Syncs int

	SetFunc func(ctx context.Context, token string) error
}

func (f *FakeCredentialStore) Get(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Token, nil
}

func (f *FakeCredentialStore) Sync(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Syncs++
	return nil
}

func (f *FakeCredentialStore) Set(ctx context.Context, token string) error {
	if f.SetFunc != nil {
		if err := f.SetFunc(ctx, token); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Token = token
	return nil
}

func (f *FakeCredentialStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Token = ""
	return nil
}

// Current returns the held token.
func (f *FakeCredentialStore) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Token
}

// RecordingNavigator records requested paths and resolves them unconditionally.
type RecordingNavigator struct {
	mu    sync.Mutex
	Paths []string

	NavigateFunc func(ctx context.Context, fullPath string) (domainauth.Navigation, error)
}

func (n *RecordingNavigator) Navigate(ctx context.Context, fullPath string) (domainauth.Navigation, error) {
	n.mu.Lock()
	n.Paths = append(n.Paths, fullPath)
	n.mu.Unlock()
	if n.NavigateFunc != nil {
		return n.NavigateFunc(ctx, fullPath)
	}
	return domainauth.Navigation{Path: fullPath}, nil
}

// Calls returns a copy of the recorded paths.
func (n *RecordingNavigator) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.Paths...)
}

// StaticSession is a SessionView with fixed answers, for guard tests.
type StaticSession struct {
	mu            sync.Mutex
	LoggedIn      bool
	Profile       *domainauth.UserProfile
	InitErr       error
	Inits         int
	OriginalRoute string
	Prompted      bool
}

func (s *StaticSession) EnsureInitialized(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Inits++
	return s.InitErr
}

func (s *StaticSession) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LoggedIn
}

func (s *StaticSession) User() *domainauth.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Profile.Clone()
}

func (s *StaticSession) SetOriginalRoute(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OriginalRoute = path
}

func (s *StaticSession) OpenLoginPrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompted = true
}
