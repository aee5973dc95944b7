package session

import (
	"context"
	"errors"
	"sync"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
)

var (
	// ErrNoRecord is returned by Store.Load when nothing is persisted.
	ErrNoRecord = errors.New("no persisted session")
	// ErrUnreadable is returned by Store.Load when a record exists but cannot
	// be decoded, for example after the session secret changed.
	ErrUnreadable = errors.New("persisted session is unreadable")
)

// Record is the persisted part of a session.
type Record struct {
	Token       string   `json:"token"`
	DisplayName string   `json:"displayName,omitempty"`
	User        api.User `json:"user"`
}

// Store persists the session record between runs.
type Store interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the record in memory. Useful for tests and for
// one-shot runs that should not leave a token behind.
type MemoryStore struct {
	mu  sync.Mutex
	rec *Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return Record{}, ErrNoRecord
	}
	return *m.rec, nil
}

func (m *MemoryStore) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &rec
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}
