package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-training/spotify-oauth/pkg/core"
)

var (
	// ErrPendingNotFound is returned when no pending authorization exists for
	// a state, including when it has expired or was already taken.
	ErrPendingNotFound = errors.New("pending authorization not found")
	// ErrNilPending is returned when attempting to save a nil pending authorization.
	ErrNilPending = errors.New("pending authorization cannot be nil")
	// ErrEmptyState is returned when the state string is empty.
	ErrEmptyState = errors.New("state cannot be empty")
	// ErrAlreadyExpired is returned when saving a pending authorization whose
	// deadline has passed.
	ErrAlreadyExpired = errors.New("pending authorization is already expired")
)

// MemoryStore implements the core.Store interface using an in-memory map.
// It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	pending map[string]*core.PendingAuthorization
	now     func() time.Time
}

// NewMemoryStore creates a new instance of MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending: make(map[string]*core.PendingAuthorization),
		now:     time.Now,
	}
}

// SavePending stores a pending authorization in memory. Expired entries
// are swept on every save.
func (m *MemoryStore) SavePending(ctx context.Context, p *core.PendingAuthorization) error {
	if p == nil {
		return ErrNilPending
	}
	if p.State == "" {
		return ErrEmptyState
	}
	now := m.now()
	if p.Expired(now) {
		return ErrAlreadyExpired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for state, old := range m.pending {
		if old.Expired(now) {
			delete(m.pending, state)
		}
	}
	cp := *p
	m.pending[p.State] = &cp
	return nil
}

// TakePending removes and returns the pending authorization for state.
func (m *MemoryStore) TakePending(ctx context.Context, state string) (*core.PendingAuthorization, error) {
	if state == "" {
		return nil, ErrEmptyState
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.pending[state]
	if !exists {
		return nil, ErrPendingNotFound
	}
	delete(m.pending, state)

	if p.Expired(m.now()) {
		return nil, ErrPendingNotFound
	}
	return p, nil
}

// DeletePending removes the pending authorization for state.
// It returns ErrPendingNotFound if none exists.
func (m *MemoryStore) DeletePending(ctx context.Context, state string) error {
	if state == "" {
		return ErrEmptyState
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pending[state]; !exists {
		return ErrPendingNotFound
	}
	delete(m.pending, state)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending)
}
