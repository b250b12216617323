package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/siteforge/siteforge/internal/assets"
	"github.com/siteforge/siteforge/internal/logging"
	"github.com/siteforge/siteforge/internal/metrics"
	"github.com/siteforge/siteforge/pkg/models"
)

// Publisher flattens a virtual tree and commits it to a remote repository,
// either directly onto a branch or through a new branch plus pull request.
type Publisher struct {
	client *Client
	policy assets.Policy
}

// NewPublisher creates a Publisher.
func NewPublisher(client *Client, policy assets.Policy) *Publisher {
	return &Publisher{client: client, policy: policy}
}

// CollectFiles flattens the forest into commit entries in depth-first order.
// Empty folders are materialized as a zero-byte .gitkeep placeholder since the
// remote store only tracks files. Binary nodes without a content entry are
// imported assets whose bytes stayed remote-only; the remote copy is already
// authoritative, so they are excluded rather than committed as empty files.
func CollectFiles(roots []*models.FileNode, contents map[string]string) []CommitFile {
	var files []CommitFile
	for _, node := range roots {
		if node.IsFolder() {
			if len(node.Children) == 0 {
				files = append(files, CommitFile{Path: node.Path + "/.gitkeep"})
				continue
			}
			files = append(files, CollectFiles(node.Children, contents)...)
			continue
		}
		content, ok := contents[node.Path]
		if !ok && assets.IsBinaryPath(node.Path) {
			continue
		}
		files = append(files, CommitFile{
			Path:     node.Path,
			Content:  content,
			IsBinary: assets.IsBinaryPath(node.Path),
		})
	}
	return files
}

// prepare applies the binary-asset policy to every file, fail-fast: a policy
// violation aborts the batch before any commit is attempted.
func (p *Publisher) prepare(files []CommitFile) ([]CommitFile, error) {
	prepared := make([]CommitFile, 0, len(files))
	for _, f := range files {
		if f.IsBinary {
			content, err := p.policy.Apply(f.Path, f.Content)
			if err != nil {
				return nil, err
			}
			f.Content = content
		}
		prepared = append(prepared, f)
	}
	return prepared, nil
}

// commitOne fetches the current blob SHA (404 means new file; anything else
// propagates) and writes the content. A single create-or-update operation:
// the SHA is included only for updates.
func (p *Publisher) commitOne(ctx context.Context, repo, branch, message string, f CommitFile, installationID int64) error {
	var sha string
	existing, err := p.client.GetContents(ctx, repo, f.Path, branch, installationID)
	switch {
	case err == nil:
		sha = existing.SHA
	case IsNotFound(err):
		// New file.
	default:
		return fmt.Errorf("resolve blob sha for %s: %w", f.Path, err)
	}

	content := f.Content
	if f.IsBinary {
		if _, data, ok := assets.DecodeDataURI(content); ok {
			content = base64.StdEncoding.EncodeToString(data)
		} else {
			content = base64.StdEncoding.EncodeToString([]byte(content))
		}
	} else {
		content = base64.StdEncoding.EncodeToString([]byte(content))
	}

	return p.client.PutContents(ctx, repo, f.Path, putContentsRequest{
		Message: message,
		Content: content,
		Branch:  branch,
		SHA:     sha,
	}, installationID)
}

// PublishDirect commits files sequentially onto branch. Sequential on
// purpose: parallel commits race on the branch ref. The first failure aborts
// the remaining commits with no rollback; partial publish is a possible,
// user-visible end state.
func (p *Publisher) PublishDirect(ctx context.Context, repo, branch, message string, files []CommitFile, installationID int64) error {
	prepared, err := p.prepare(files)
	if err != nil {
		return err
	}

	for i, f := range prepared {
		if err := p.commitOne(ctx, repo, branch, message, f, installationID); err != nil {
			metrics.RecordPublishedCommit(false)
			return &PartialPublishError{
				Committed: i,
				Total:     len(prepared),
				Path:      f.Path,
				Err:       err,
			}
		}
		metrics.RecordPublishedCommit(true)
	}

	logging.Info("published",
		zap.String("repo", repo),
		zap.String("branch", branch),
		zap.Int("files", len(prepared)))
	return nil
}

// PublishPullRequest resolves the base head, creates a uniquely-named branch
// from it, commits all files to that branch and opens a pull request into
// base. A failure after branch creation can leave the branch behind without
// a PR; that side effect is accepted.
func (p *Publisher) PublishPullRequest(ctx context.Context, repo, base, title, body, message string, files []CommitFile, installationID int64) (*PullRequest, error) {
	ref, err := p.client.GetRef(ctx, repo, base, installationID)
	if err != nil {
		return nil, fmt.Errorf("resolve base branch %s: %w", base, err)
	}

	branch := fmt.Sprintf("publish/%d", time.Now().UnixNano())
	if err := p.client.CreateRef(ctx, repo, branch, ref.Object.SHA, installationID); err != nil {
		return nil, fmt.Errorf("create branch %s: %w", branch, err)
	}

	if err := p.PublishDirect(ctx, repo, branch, message, files, installationID); err != nil {
		return nil, err
	}

	pr, err := p.client.CreatePullRequest(ctx, repo, title, body, branch, base, installationID)
	if err != nil {
		return nil, fmt.Errorf("open pull request from %s: %w", branch, err)
	}

	logging.Info("pull request opened",
		zap.String("repo", repo),
		zap.String("head", branch),
		zap.String("base", base),
		zap.Int("number", pr.Number))
	return pr, nil
}
