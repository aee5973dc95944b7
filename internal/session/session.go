// Package session holds the process-wide authentication state: the current
// user, the bearer token and its persisted copy.
//
// A Session is created once at start-up and passed explicitly to everything
// that needs it. It is the only source the route guard consults.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
)

// ErrEmptyToken is returned by Login when the backend handed back no token.
var ErrEmptyToken = errors.New("session token is empty")

// Session is the authentication state shared by the whole client.
type Session struct {
	store Store
	now   func() time.Time

	mu    sync.RWMutex
	token string
	user  *api.User
}

// New creates a session persisted in store. It panics on a nil store.
func New(store Store) *Session {
	if store == nil {
		panic("session: nil store")
	}
	return &Session{store: store, now: time.Now}
}

// Restore loads the persisted session, if any. An expired token or an
// unreadable record is discarded and the session starts signed out.
func (s *Session) Restore(ctx context.Context) error {
	rec, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoRecord) {
		return nil
	}
	if errors.Is(err, ErrUnreadable) {
		slog.Warn("discarding unreadable session", "error", err)
		if err := s.store.Clear(ctx); err != nil {
			return fmt.Errorf("clear unreadable session: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	if rec.Token == "" || tokenExpired(rec.Token, s.now()) {
		slog.Info("discarding stale session")
		if err := s.store.Clear(ctx); err != nil {
			return fmt.Errorf("clear stale session: %w", err)
		}
		return nil
	}

	user := rec.User
	if user.Name == "" {
		user.Name = rec.DisplayName
	}

	s.mu.Lock()
	s.token = rec.Token
	s.user = &user
	s.mu.Unlock()
	return nil
}

// Login persists token and then adopts token and user as the current session.
// If persisting fails the in-memory state is left untouched.
func (s *Session) Login(ctx context.Context, token string, user api.User) error {
	if token == "" {
		return ErrEmptyToken
	}
	rec := Record{
		Token:       token,
		DisplayName: user.DisplayName(),
		User:        user,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()

	slog.Info("session started", "email", user.Email)
	return nil
}

// Logout clears the in-memory state and the persisted record. State is
// cleared even when the store fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	slog.Info("session ended")
	return nil
}

// User returns the current user.
func (s *Session) User() (api.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return api.User{}, false
	}
	return *s.user, true
}

// IsAuthenticated reports whether a non-expired token is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	return token != "" && !tokenExpired(token, s.now())
}

// Token returns the bearer token, or "" when logged out. It satisfies
// api.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}
