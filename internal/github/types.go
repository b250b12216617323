package github

import "time"

// accessTokenResponse is returned by POST /app/installations/{id}/access_tokens.
type accessTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Ref is returned by GET /repos/{repo}/git/ref/{ref}.
type Ref struct {
	Ref    string `json:"ref"`
	Object struct {
		Type string `json:"type"`
		SHA  string `json:"sha"`
	} `json:"object"`
}

// TreeEntry is one entry of a git tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"` // "blob" or "tree"
	SHA  string `json:"sha"`
	Size int64  `json:"size,omitempty"`
}

// Tree is returned by GET /repos/{repo}/git/trees/{sha}?recursive=1.
type Tree struct {
	SHA       string      `json:"sha"`
	Tree      []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// Blob is returned by GET /repos/{repo}/git/blobs/{sha}.
type Blob struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"` // "base64" or "utf-8"
	Size     int64  `json:"size"`
}

// Contents is the subset of GET /repos/{repo}/contents/{path} we use:
// the current blob SHA needed to update an existing file.
type Contents struct {
	SHA  string `json:"sha"`
	Path string `json:"path"`
}

// putContentsRequest is the body of PUT /repos/{repo}/contents/{path}.
// SHA is set only when updating an existing file.
type putContentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // base64
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

// createRefRequest is the body of POST /repos/{repo}/git/refs.
type createRefRequest struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// createPullRequest is the body of POST /repos/{repo}/pulls.
type createPullRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// PullRequest is the relevant subset of the pull request response.
type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	Head    struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

// apiErrorBody is GitHub's error response shape.
type apiErrorBody struct {
	Message string `json:"message"`
}

// CommitFile is one file of a publish batch, flattened from the virtual tree.
type CommitFile struct {
	Path     string
	Content  string // text, or data-URI for binary assets
	IsBinary bool
}
