package github

import (
	"errors"
	"fmt"
)

// AuthError indicates a credential or token exchange failure.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Message, e.Err)
	}
	return "auth: " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError is a failed GitHub API call. Retryable marks transient failures
// (429, 5xx, network errors); everything else is permanent. Attempts is the
// number of attempts consumed before giving up.
type APIError struct {
	Status    int
	Message   string
	Attempts  int
	Retryable bool
	Err       error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("github api: %d %s (attempts=%d)", e.Status, e.Message, e.Attempts)
	}
	return fmt.Sprintf("github api: %s (attempts=%d)", e.Message, e.Attempts)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AsAPIError checks if an error is an APIError and returns it.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports whether the error is a 404 APIError.
func IsNotFound(err error) bool {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Status == 404
	}
	return false
}

// ImportError wraps a failure while importing a repository tree.
type ImportError struct {
	Repo   string
	Branch string
	Stage  string // "ref", "tree" or "blob"
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s@%s: %s: %v", e.Repo, e.Branch, e.Stage, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// PartialPublishError is a publish batch aborted mid-way. Committed files
// stay committed; there is no rollback.
type PartialPublishError struct {
	Committed int // files successfully committed before the failure
	Total     int
	Path      string // file that failed
	Err       error
}

func (e *PartialPublishError) Error() string {
	return fmt.Sprintf("publish aborted at %q after %d/%d commits: %v", e.Path, e.Committed, e.Total, e.Err)
}

func (e *PartialPublishError) Unwrap() error {
	return e.Err
}
