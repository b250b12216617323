// Package store persists workspace snapshots in a durable key-value store
// keyed by (userID, workspaceID), with postgres, local-filesystem and S3
// backends behind one interface.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/siteforge/siteforge/pkg/models"
)

// ErrNotFound is returned when no snapshot exists for a key.
var ErrNotFound = errors.New("workspace not found")

// Store is the durable snapshot store. Put is a whole-document overwrite;
// get/set are atomic per document.
type Store interface {
	Put(ctx context.Context, userID, workspaceID string, state *models.WorkspaceState) error
	Get(ctx context.Context, userID, workspaceID string) (*models.WorkspaceState, error)
	Delete(ctx context.Context, userID, workspaceID string) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string // "postgres", "local" or "s3"

	DatabaseURL string

	LocalPath string

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
}

// New creates a Store from config.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "postgres":
		return NewPostgres(cfg.DatabaseURL)
	case "local":
		return NewLocal(cfg.LocalPath)
	case "s3":
		return NewS3(ctx, S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
