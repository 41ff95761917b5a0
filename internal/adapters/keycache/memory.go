// Package keycache holds the login public key between encryptions.
package keycache

import (
	"context"
	"sync"
	"time"
)

// Memory caches the public key in process memory.
type Memory struct {
	mu      sync.Mutex
	key     string
	expires time.Time
	now     func() time.Time
}

// NewMemory creates an empty in-memory key cache.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// NewMemoryWithClock creates an in-memory key cache using a custom clock (tests).
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{now: now}
}

func (m *Memory) Get(_ context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == "" || !m.now().Before(m.expires) {
		m.key = ""
		return "", false, nil
	}
	return m.key, true, nil
}

func (m *Memory) Set(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl <= 0 || key == "" {
		m.key = ""
		return nil
	}
	m.key = key
	m.expires = m.now().Add(ttl)
	return nil
}

func (m *Memory) Invalidate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = ""
	return nil
}
