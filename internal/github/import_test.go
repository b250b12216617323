package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/siteforge/siteforge/pkg/models"
	"github.com/siteforge/siteforge/pkg/tree"
)

// fakeRepo serves the minimal read-side of the git data API: one branch ref,
// one recursive tree listing and base64 blobs.
type fakeRepo struct {
	headSHA string
	entries []TreeEntry
	blobs   map[string]string // sha -> raw content
}

func (f *fakeRepo) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/site/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ref":    "refs/heads/main",
			"object": map[string]string{"type": "commit", "sha": f.headSHA},
		})
	})
	mux.HandleFunc("GET /repos/acme/site/git/trees/"+f.headSHA, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recursive") != "1" {
			t.Error("tree listing not recursive")
		}
		json.NewEncoder(w).Encode(Tree{SHA: f.headSHA, Tree: f.entries})
	})
	mux.HandleFunc("GET /repos/acme/site/git/blobs/{sha}", func(w http.ResponseWriter, r *http.Request) {
		raw, ok := f.blobs[r.PathValue("sha")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
			return
		}
		// Wrapped base64, as the API produces.
		encoded := base64.StdEncoding.EncodeToString([]byte(raw))
		json.NewEncoder(w).Encode(Blob{
			SHA:      r.PathValue("sha"),
			Content:  encoded + "\n",
			Encoding: "base64",
		})
	})
	return mux
}

func TestImportRepository(t *testing.T) {
	repo := &fakeRepo{
		headSHA: "head1",
		entries: []TreeEntry{
			{Path: "index.html", Type: "blob", SHA: "b1"},
			{Path: "posts", Type: "tree", SHA: "t1"},
			{Path: "posts/hello.md", Type: "blob", SHA: "b2"},
			{Path: "posts/drafts", Type: "tree", SHA: "t2"},
			{Path: "posts/drafts/wip.md", Type: "blob", SHA: "b3"},
			{Path: "assets/logo.png", Type: "blob", SHA: "b4"},
		},
		blobs: map[string]string{
			"b1": "<html></html>",
			"b2": "# Hello",
			"b3": "draft",
		},
	}
	ts := httptest.NewServer(repo.handler(t))
	defer ts.Close()

	im := NewImporter(newTestClient(t, ts.URL))
	result, err := im.ImportRepository(context.Background(), "acme/site", "main", testInstallation)
	if err != nil {
		t.Fatalf("ImportRepository: %v", err)
	}

	// Forest shape: every listed path resolves to a node of the right kind.
	for _, entry := range repo.entries {
		node := tree.FindByPath(result.FileStructure, entry.Path)
		if node == nil {
			t.Fatalf("path %q missing from imported tree", entry.Path)
		}
		wantFolder := entry.Type == "tree"
		if node.IsFolder() != wantFolder {
			t.Errorf("path %q: folder = %v, want %v", entry.Path, node.IsFolder(), wantFolder)
		}
	}

	// "assets" was implied by its blob, never listed as a tree entry.
	if node := tree.FindByPath(result.FileStructure, "assets"); node == nil || !node.IsFolder() {
		t.Error("implied folder assets not created")
	}

	// Text contents decoded; binary asset bytes stay remote.
	if got := result.FileContents["posts/hello.md"]; got != "# Hello" {
		t.Errorf("posts/hello.md = %q", got)
	}
	if _, ok := result.FileContents["assets/logo.png"]; ok {
		t.Error("binary asset content was fetched")
	}

	// No duplicate siblings anywhere.
	tree.Walk(result.FileStructure, func(node *models.FileNode) {
		seen := make(map[string]bool)
		for _, child := range node.Children {
			if seen[child.Name] {
				t.Errorf("duplicate child %q under %q", child.Name, node.Path)
			}
			seen[child.Name] = true
		}
	})
}

func TestImportRepositoryRefFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "Branch not found"})
	}))
	defer ts.Close()

	im := NewImporter(newTestClient(t, ts.URL))
	_, err := im.ImportRepository(context.Background(), "acme/site", "gone", testInstallation)

	var importErr *ImportError
	if !errors.As(err, &importErr) {
		t.Fatalf("err = %T, want ImportError", err)
	}
	if importErr.Stage != "ref" {
		t.Errorf("stage = %q, want ref", importErr.Stage)
	}
	if !IsNotFound(importErr.Err) {
		t.Errorf("wrapped err = %v, want not-found", importErr.Err)
	}
}

func TestDecodeBlob(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("line one\nline two"))
	// Simulate the API's 60-column wrapping.
	wrapped := encoded[:10] + "\n" + encoded[10:] + "\n"

	got, err := decodeBlob(&Blob{Content: wrapped, Encoding: "base64"})
	if err != nil {
		t.Fatalf("decodeBlob: %v", err)
	}
	if got != "line one\nline two" {
		t.Errorf("decoded = %q", got)
	}

	got, err = decodeBlob(&Blob{Content: "plain", Encoding: "utf-8"})
	if err != nil || got != "plain" {
		t.Errorf("utf-8 blob = %q, %v", got, err)
	}

	if _, err := decodeBlob(&Blob{Content: "!!not base64!!", Encoding: "base64"}); err == nil {
		t.Error("invalid base64 accepted")
	}
}

func TestImportErrorMessage(t *testing.T) {
	err := &ImportError{Repo: "acme/site", Branch: "main", Stage: "tree", Err: context.DeadlineExceeded}
	if msg := err.Error(); !strings.Contains(msg, "acme/site") || !strings.Contains(msg, "tree") {
		t.Errorf("message = %q", msg)
	}
}
