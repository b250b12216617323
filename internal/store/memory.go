package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/siteforge/siteforge/pkg/models"
)

// MemoryStore is an in-memory Store used in tests. Snapshots round-trip
// through JSON so tests observe the same serialization as the real backends.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
	puts int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func memKey(userID, workspaceID string) string {
	return userID + "/" + workspaceID
}

// Put overwrites the snapshot document.
func (s *MemoryStore) Put(_ context.Context, userID, workspaceID string, state *models.WorkspaceState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[memKey(userID, workspaceID)] = data
	s.puts++
	s.mu.Unlock()
	return nil
}

// Get returns the stored snapshot or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, userID, workspaceID string) (*models.WorkspaceState, error) {
	s.mu.Lock()
	data, ok := s.docs[memKey(userID, workspaceID)]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var state models.WorkspaceState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Delete removes the snapshot document.
func (s *MemoryStore) Delete(_ context.Context, userID, workspaceID string) error {
	s.mu.Lock()
	delete(s.docs, memKey(userID, workspaceID))
	s.mu.Unlock()
	return nil
}

// Puts returns how many writes the store has seen.
func (s *MemoryStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
