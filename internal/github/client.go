package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/siteforge/siteforge/internal/logging"
	"github.com/siteforge/siteforge/internal/metrics"
	"github.com/siteforge/siteforge/pkg/retry"
)

// Client is an authenticated GitHub API request wrapper with retry.
//
// Classification: 2xx succeeds (zero-length body leaves out untouched);
// 4xx except 429 fails immediately; 429, 5xx and transient network errors
// are retried with linear backoff until MaxAttempts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *Authenticator
	retryCfg   retry.Config
}

// ClientConfig holds client settings.
type ClientConfig struct {
	BaseURL     string
	Auth        *Authenticator
	MaxAttempts int
	InitialWait time.Duration // wait after the first failed attempt
	HTTPClient  *http.Client
}

// NewClient creates a Client layered on the Authenticator.
func NewClient(cfg ClientConfig) *Client {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialWait == 0 {
		cfg.InitialWait = time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		auth:       cfg.Auth,
		retryCfg: retry.Config{
			MaxAttempts: cfg.MaxAttempts,
			InitialWait: cfg.InitialWait,
			Strategy:    retry.Linear,
		},
	}
}

// Do performs an authenticated request against path. A non-nil body is
// JSON-encoded; a non-nil out is JSON-decoded from the response (left
// untouched for empty bodies and 204s).
func (c *Client) Do(ctx context.Context, method, path string, installationID int64, body, out interface{}) error {
	var attempts int

	err := retry.Do(ctx, c.retryCfg, func(attempt int) error {
		attempts = attempt
		if attempt > 1 {
			metrics.RecordGitHubRetry()
		}
		return c.doOnce(ctx, method, path, installationID, body, out)
	})
	if err == nil {
		return nil
	}

	if apiErr, ok := AsAPIError(err); ok {
		apiErr.Attempts = attempts
		logging.Error("github request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", apiErr.Status),
			zap.Int("attempts", attempts),
			zap.Bool("retryable", apiErr.Retryable))
		return apiErr
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, installationID int64, body, out interface{}) error {
	token, err := c.auth.AccessToken(ctx, installationID)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transient network failure.
		return retry.Retryable(&APIError{Message: err.Error(), Retryable: true, Err: err})
	}
	defer resp.Body.Close()

	metrics.RecordGitHubRequest(method, resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.Retryable(&APIError{Message: "read response: " + err.Error(), Retryable: true, Err: err})
		}
		if len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		apiErr.Retryable = true
		return retry.Retryable(apiErr)
	}
	return apiErr
}

func readErrorMessage(r io.Reader) string {
	var body apiErrorBody
	if err := json.NewDecoder(r).Decode(&body); err == nil && body.Message != "" {
		return body.Message
	}
	return "request failed"
}

// GetRef returns the head of a branch.
func (c *Client) GetRef(ctx context.Context, repo, branch string, installationID int64) (*Ref, error) {
	var ref Ref
	path := fmt.Sprintf("/repos/%s/git/ref/heads/%s", repo, url.PathEscape(branch))
	if err := c.Do(ctx, http.MethodGet, path, installationID, nil, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetTree returns the full recursive tree listing at a commit or tree SHA.
func (c *Client) GetTree(ctx context.Context, repo, sha string, installationID int64) (*Tree, error) {
	var tree Tree
	path := fmt.Sprintf("/repos/%s/git/trees/%s?recursive=1", repo, sha)
	if err := c.Do(ctx, http.MethodGet, path, installationID, nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// GetBlob fetches a blob by SHA.
func (c *Client) GetBlob(ctx context.Context, repo, sha string, installationID int64) (*Blob, error) {
	var blob Blob
	path := fmt.Sprintf("/repos/%s/git/blobs/%s", repo, sha)
	if err := c.Do(ctx, http.MethodGet, path, installationID, nil, &blob); err != nil {
		return nil, err
	}
	return &blob, nil
}

// GetContents returns the current contents metadata (blob SHA) for a path on
// a branch. Callers treat a 404 as "new file".
func (c *Client) GetContents(ctx context.Context, repo, filePath, branch string, installationID int64) (*Contents, error) {
	var contents Contents
	path := fmt.Sprintf("/repos/%s/contents/%s?ref=%s", repo, escapePath(filePath), url.QueryEscape(branch))
	if err := c.Do(ctx, http.MethodGet, path, installationID, nil, &contents); err != nil {
		return nil, err
	}
	return &contents, nil
}

// PutContents creates or updates a file. sha must be the current blob SHA
// for updates and empty for creates.
func (c *Client) PutContents(ctx context.Context, repo, filePath string, req putContentsRequest, installationID int64) error {
	path := fmt.Sprintf("/repos/%s/contents/%s", repo, escapePath(filePath))
	return c.Do(ctx, http.MethodPut, path, installationID, req, nil)
}

// CreateRef creates a new branch ref pointing at sha.
func (c *Client) CreateRef(ctx context.Context, repo, branch, sha string, installationID int64) error {
	req := createRefRequest{Ref: "refs/heads/" + branch, SHA: sha}
	return c.Do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/git/refs", repo), installationID, req, nil)
}

// CreatePullRequest opens a pull request from head into base.
func (c *Client) CreatePullRequest(ctx context.Context, repo, title, body, head, base string, installationID int64) (*PullRequest, error) {
	var pr PullRequest
	req := createPullRequest{Title: title, Body: body, Head: head, Base: base}
	if err := c.Do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/pulls", repo), installationID, req, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// escapePath escapes each path segment while keeping separators.
func escapePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}
