package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/siteforge/siteforge/pkg/models"
)

// PostgresStore keeps one JSONB snapshot document per (user, workspace).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens a postgres-backed store and prepares its schema.
func NewPostgres(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workspaces (
			user_id      TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			state        JSONB NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, workspace_id)
		)`)
	if err != nil {
		return fmt.Errorf("create workspaces table: %w", err)
	}
	return nil
}

// Put overwrites the snapshot document.
func (s *PostgresStore) Put(ctx context.Context, userID, workspaceID string, state *models.WorkspaceState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workspaces (user_id, workspace_id, state, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, workspace_id)
		DO UPDATE SET state = $3, updated_at = NOW()`,
		userID, workspaceID, data)
	if err != nil {
		return fmt.Errorf("upsert workspace %s/%s: %w", userID, workspaceID, err)
	}
	return nil
}

// Get returns the stored snapshot or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, userID, workspaceID string) (*models.WorkspaceState, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT state FROM workspaces WHERE user_id = $1 AND workspace_id = $2`,
		userID, workspaceID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load workspace %s/%s: %w", userID, workspaceID, err)
	}

	var state models.WorkspaceState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot %s/%s: %w", userID, workspaceID, err)
	}
	return &state, nil
}

// Delete removes the snapshot document.
func (s *PostgresStore) Delete(ctx context.Context, userID, workspaceID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM workspaces WHERE user_id = $1 AND workspace_id = $2`,
		userID, workspaceID)
	if err != nil {
		return fmt.Errorf("delete workspace %s/%s: %w", userID, workspaceID, err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
