package github

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/siteforge/siteforge/internal/assets"
	"github.com/siteforge/siteforge/internal/logging"
	"github.com/siteforge/siteforge/internal/metrics"
	"github.com/siteforge/siteforge/pkg/models"
	"github.com/siteforge/siteforge/pkg/tree"
)

// Importer performs one-shot recursive imports of a branch's full file tree.
type Importer struct {
	client *Client
}

// NewImporter creates an Importer on top of a Client.
func NewImporter(client *Client) *Importer {
	return &Importer{client: client}
}

// ImportResult is the outcome of an import: the FileNode forest plus the
// content map. Binary assets appear in the forest but are absent from the
// content map — their bytes stay remote-only to bound memory.
type ImportResult struct {
	FileStructure []*models.FileNode
	FileContents  map[string]string
}

// ImportRepository resolves the branch head, lists the full recursive tree
// and fetches every non-binary blob's content.
func (im *Importer) ImportRepository(ctx context.Context, repo, branch string, installationID int64) (*ImportResult, error) {
	start := time.Now()

	ref, err := im.client.GetRef(ctx, repo, branch, installationID)
	if err != nil {
		return nil, &ImportError{Repo: repo, Branch: branch, Stage: "ref", Err: err}
	}

	listing, err := im.client.GetTree(ctx, repo, ref.Object.SHA, installationID)
	if err != nil {
		return nil, &ImportError{Repo: repo, Branch: branch, Stage: "tree", Err: err}
	}
	if listing.Truncated {
		logging.Warn("tree listing truncated by provider",
			zap.String("repo", repo),
			zap.String("branch", branch))
	}

	result := &ImportResult{FileContents: make(map[string]string)}
	// Path-keyed memo so intermediate folders are created once and siblings
	// are never duplicated.
	folders := make(map[string]*models.FileNode)
	fileCount := 0

	for _, entry := range listing.Tree {
		switch entry.Type {
		case "tree":
			im.ensureFolder(result, folders, entry.Path)
		case "blob":
			parent := tree.ParentPath(entry.Path)
			node := &models.FileNode{
				Name: tree.BaseName(entry.Path),
				Path: entry.Path,
				Type: models.NodeFile,
			}
			im.attach(result, folders, parent, node)
			fileCount++

			if assets.IsBinaryPath(entry.Path) {
				continue
			}

			blob, err := im.client.GetBlob(ctx, repo, entry.SHA, installationID)
			if err != nil {
				return nil, &ImportError{Repo: repo, Branch: branch, Stage: "blob", Err: err}
			}
			content, err := decodeBlob(blob)
			if err != nil {
				return nil, &ImportError{Repo: repo, Branch: branch, Stage: "blob", Err: err}
			}
			result.FileContents[entry.Path] = content
		}
	}

	metrics.RecordImport(time.Since(start), fileCount)
	logging.Info("repository imported",
		zap.String("repo", repo),
		zap.String("branch", branch),
		zap.String("head", ref.Object.SHA),
		zap.Int("files", fileCount),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// ensureFolder returns the folder node for path, creating it (and any
// missing ancestors) on first sight.
func (im *Importer) ensureFolder(result *ImportResult, folders map[string]*models.FileNode, path string) *models.FileNode {
	if node, ok := folders[path]; ok {
		return node
	}
	node := &models.FileNode{
		Name: tree.BaseName(path),
		Path: path,
		Type: models.NodeFolder,
	}
	folders[path] = node
	im.attach(result, folders, tree.ParentPath(path), node)
	return node
}

// attach inserts node under parentPath (forest roots for "").
func (im *Importer) attach(result *ImportResult, folders map[string]*models.FileNode, parentPath string, node *models.FileNode) {
	if parentPath == "" {
		result.FileStructure = append(result.FileStructure, node)
		return
	}
	parent := im.ensureFolder(result, folders, parentPath)
	parent.Children = append(parent.Children, node)
}

func decodeBlob(blob *Blob) (string, error) {
	if blob.Encoding != "base64" {
		return blob.Content, nil
	}
	// The API wraps base64 payloads in newlines.
	raw := strings.ReplaceAll(blob.Content, "\n", "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
