// Package sessions holds in-memory grocery list sessions keyed by UUID.
// State is per-process by design; callers hold a session ID and read back
// snapshots, never live references.
package sessions

import (
	"fmt"
	"sync"
	"time"

	"github.com/CartMateCo/grocery-service/internal/core/grocery"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or deleted session IDs.
var ErrNotFound = fmt.Errorf("session not found")

// Session is one live grocery list with its bookkeeping.
type Session struct {
	ID        uuid.UUID             `json:"id"`
	Items     []grocery.GroceryItem `json:"items"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Store is a threadsafe in-memory session registry.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[uuid.UUID]*Session)}
}

// Create opens a new empty session and returns its snapshot.
func (s *Store) Create() Session {
	now := time.Now().UTC()
	session := &Session{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return snapshot(session)
}

// Get returns a snapshot of the session.
func (s *Store) Get(id uuid.UUID) (Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	return snapshot(session), nil
}

// Replace swaps the session's list for a new snapshot, as produced by the
// reconciler, and returns the updated session.
func (s *Store) Replace(id uuid.UUID, items []grocery.GroceryItem) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}

	session.Items = grocery.CloneList(items)
	session.UpdatedAt = time.Now().UTC()
	return snapshot(session), nil
}

// Delete removes the session. Deleting an unknown ID is an error so callers
// can distinguish a double delete.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func snapshot(session *Session) Session {
	return Session{
		ID:        session.ID,
		Items:     grocery.CloneList(session.Items),
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}
