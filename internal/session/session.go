// Package session keeps per-session conversation context so pronouns in
// follow-up questions resolve against the drug last mentioned in the same
// session and never another.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

// DefaultID is used when a caller supplies no session id
const DefaultID = "default"

var ErrStoreClosed = errors.New("session store is closed")

// Store persists ConversationContext by session id. Get of an unknown id
// returns the zero context.
type Store interface {
	Get(ctx context.Context, id string) (types.ConversationContext, error)
	Put(ctx context.Context, id string, cc types.ConversationContext) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]types.ConversationContext
	closed   bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]types.ConversationContext)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (types.ConversationContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return types.ConversationContext{}, ErrStoreClosed
	}
	return m.sessions[normalizeID(id)], nil
}

func (m *MemoryStore) Put(_ context.Context, id string, cc types.ConversationContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.sessions[normalizeID(id)] = cc
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.sessions, normalizeID(id))
	return nil
}

// Len returns the number of stored sessions
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.sessions = nil
	return nil
}

func normalizeID(id string) string {
	if id == "" {
		return DefaultID
	}
	return id
}
