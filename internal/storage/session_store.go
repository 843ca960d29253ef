package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Session is the signed-in account as last reported by the identity platform.
type Session struct {
	UserID        string
	Email         string
	EmailVerified bool
	DisplayName   string
	ProviderID    string
	IDToken       string
	RefreshToken  string
	ExpiresAt     time.Time
	CreatedAt     *time.Time
	LastSignInAt  *time.Time
}

// ErrNotFound indicates that no session is currently held.
var ErrNotFound = errors.New("session not found")

// SessionStore holds the current session so it can be read, refreshed and cleared.
type SessionStore interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, session Session) error
	Clear(ctx context.Context) error
}

// MemorySessionStore keeps the session in process memory only.
type MemorySessionStore struct {
	mu      sync.RWMutex
	session *Session
}

// NewMemorySessionStore returns an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

// Load returns the held session, or ErrNotFound.
func (s *MemorySessionStore) Load(_ context.Context) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return Session{}, ErrNotFound
	}
	return *s.session, nil
}

// Save stores (or overwrites) the session.
func (s *MemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &session
	return nil
}

// Clear drops the held session. Clearing an empty store is not an error.
func (s *MemorySessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
