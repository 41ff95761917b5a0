// Package credential owns the client credential and keeps its two channels,
// durable storage and the cookie jar, consistent.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/glhm/console/internal/errors"
	"github.com/glhm/console/internal/ports"
)

// DefaultKey is the storage key and cookie name used when none is configured.
const DefaultKey = "glhmauth"

// Store is the single writer of the credential. Durable storage is the source
// of truth; the cookie is a mirror refreshed on every write and on Sync.
type Store struct {
	mu      sync.Mutex
	storage ports.DurableStorage
	cookie  ports.CookieChannel
	key     string
	logger  *slog.Logger
}

// StoreOptions groups dependencies for Store.
type StoreOptions struct {
	Storage ports.DurableStorage
	Cookie  ports.CookieChannel
	Key     string
	Logger  *slog.Logger
}

// NewStore constructs a Store.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Storage == nil {
		return nil, errors.New("credential store requires durable storage")
	}
	if opts.Cookie == nil {
		return nil, errors.New("credential store requires a cookie channel")
	}
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage: opts.Storage,
		cookie:  opts.Cookie,
		key:     key,
		logger:  logger.With("component", "credential_store"),
	}, nil
}

// Set writes the credential to durable storage, then to the cookie.
// When the storage write fails neither channel changes.
func (s *Store) Set(ctx context.Context, token string) error {
	if token == "" {
		return apperrors.ValidationField("token", "credential cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.SetItem(ctx, s.key, token); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	s.cookie.Set(token)
	return nil
}

// Clear removes the credential from durable storage and expires the cookie.
// The cookie is expired even when the storage delete fails.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.storage.RemoveItem(ctx, s.key)
	s.cookie.Clear()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to remove stored credential", "error", err)
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}

// Get reads the credential from durable storage. An absent credential is "".
func (s *Store) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

// Sync re-writes the cookie from durable storage, so an expired cookie is
// revived while a stored credential exists and dropped when none does.
func (s *Store) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.read(ctx)
	if err != nil {
		return err
	}
	current, present := s.cookie.Get()
	switch {
	case token == "" && present:
		s.cookie.Clear()
	case token != "" && (!present || current != token):
		s.cookie.Set(token)
	}
	return nil
}

func (s *Store) read(ctx context.Context) (string, error) {
	token, ok, err := s.storage.GetItem(ctx, s.key)
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}
