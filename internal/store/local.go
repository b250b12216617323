package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/siteforge/siteforge/pkg/models"
)

// LocalStore keeps one JSON file per (user, workspace) under a root
// directory. Intended for development and tests.
type LocalStore struct {
	root string
}

// NewLocal creates a local filesystem store rooted at root.
func NewLocal(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local store root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(userID, workspaceID string) string {
	return filepath.Join(s.root, userID, workspaceID+".json")
}

// Put writes the snapshot atomically (temp file then rename).
func (s *LocalStore) Put(_ context.Context, userID, workspaceID string, state *models.WorkspaceState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	path := s.path(userID, workspaceID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Get returns the stored snapshot or ErrNotFound.
func (s *LocalStore) Get(_ context.Context, userID, workspaceID string) (*models.WorkspaceState, error) {
	data, err := os.ReadFile(s.path(userID, workspaceID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var state models.WorkspaceState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &state, nil
}

// Delete removes the snapshot file.
func (s *LocalStore) Delete(_ context.Context, userID, workspaceID string) error {
	err := os.Remove(s.path(userID, workspaceID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Close is a no-op for the local store.
func (s *LocalStore) Close() error {
	return nil
}
