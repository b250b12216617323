// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/siteforge/siteforge/internal/assets"
	"github.com/siteforge/siteforge/internal/github"
	"github.com/siteforge/siteforge/internal/logging"
	"github.com/siteforge/siteforge/internal/metrics"
	"github.com/siteforge/siteforge/internal/store"
	"github.com/siteforge/siteforge/internal/workspace"
	"github.com/siteforge/siteforge/pkg/models"
)

// Server is the HTTP server. Each workspace is edited through an in-memory
// session; mutations on one session are serialized by its mutex, matching
// the one-logical-edit-at-a-time model.
type Server struct {
	store     store.Store
	saver     *workspace.Saver
	importer  *github.Importer
	publisher *github.Publisher

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu sync.Mutex
	ws *workspace.Workspace
}

// NewServer creates a new server.
func NewServer(st store.Store, saver *workspace.Saver, importer *github.Importer, publisher *github.Publisher) *Server {
	return &Server{
		store:     st,
		saver:     saver,
		importer:  importer,
		publisher: publisher,
		sessions:  make(map[string]*session),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/v1/workspaces/{id}", s.handleGetWorkspace)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/template", s.handleTemplate)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/import", s.handleImport)

	mux.HandleFunc("POST /api/v1/workspaces/{id}/files", s.handleCreate)
	mux.HandleFunc("PATCH /api/v1/workspaces/{id}/files", s.handleRename)
	mux.HandleFunc("DELETE /api/v1/workspaces/{id}/files", s.handleDelete)
	mux.HandleFunc("PUT /api/v1/workspaces/{id}/contents", s.handleSetContent)
	mux.HandleFunc("PUT /api/v1/workspaces/{id}/expanded", s.handleSetExpanded)

	mux.HandleFunc("POST /api/v1/workspaces/{id}/publish", s.handlePublish)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/publish-pr", s.handlePublishPR)

	return metrics.Middleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// sessionFor returns (loading from the store if needed) the session for a
// workspace. found is false when no snapshot exists and create is false.
func (s *Server) sessionFor(r *http.Request, create bool) (*session, string, string, bool, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = "anonymous"
	}
	workspaceID := r.PathValue("id")
	key := userID + "/" + workspaceID

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		return sess, userID, workspaceID, true, nil
	}

	state, err := s.store.Get(r.Context(), userID, workspaceID)
	if err == nil {
		sess := &session{ws: workspace.FromSnapshot(state)}
		s.sessions[key] = sess
		return sess, userID, workspaceID, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, userID, workspaceID, false, err
	}
	if !create {
		return nil, userID, workspaceID, false, nil
	}

	sess := &session{ws: workspace.New()}
	s.sessions[key] = sess
	return sess, userID, workspaceID, true, nil
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	sess, _, _, found, err := s.sessionFor(r, false)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.sendError(w, http.StatusNotFound, "workspace not found")
		return
	}

	sess.mu.Lock()
	snapshot := sess.ws.Snapshot()
	sess.mu.Unlock()
	s.sendJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	sess, userID, workspaceID, _, err := s.sessionFor(r, true)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess.mu.Lock()
	sess.ws = workspace.DefaultTemplate()
	snapshot := sess.ws.Snapshot()
	sess.mu.Unlock()

	s.saver.Save(userID, workspaceID, snapshot)
	s.sendJSON(w, http.StatusCreated, snapshot)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Repo           string `json:"repo"`
		Branch         string `json:"branch"`
		InstallationID int64  `json:"installation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Repo == "" || req.Branch == "" {
		s.sendError(w, http.StatusBadRequest, "repo and branch required")
		return
	}

	// Import before touching the session table: a failed import must not
	// leave a phantom empty workspace behind.
	result, err := s.importer.ImportRepository(r.Context(), req.Repo, req.Branch, req.InstallationID)
	if err != nil {
		logging.Error("import failed",
			zap.String("repo", req.Repo),
			zap.String("branch", req.Branch),
			zap.Error(err))
		s.sendError(w, http.StatusBadGateway, err.Error())
		return
	}

	sess, userID, workspaceID, _, err := s.sessionFor(r, true)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess.mu.Lock()
	sess.ws = workspace.FromImport(result.FileStructure, result.FileContents)
	snapshot := sess.ws.Snapshot()
	sess.mu.Unlock()

	s.saver.Save(userID, workspaceID, snapshot)
	s.sendJSON(w, http.StatusCreated, snapshot)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParentPath string          `json:"parent_path"`
		Type       models.NodeType `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type != models.NodeFile && req.Type != models.NodeFolder {
		s.sendError(w, http.StatusBadRequest, "type must be file or folder")
		return
	}

	s.mutate(w, r, func(ws *workspace.Workspace) (interface{}, error) {
		return ws.Create(req.ParentPath, req.Type)
	})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path    string `json:"path"`
		NewName string `json:"new_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mutate(w, r, func(ws *workspace.Workspace) (interface{}, error) {
		return nil, ws.Rename(req.Path, req.NewName)
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.sendError(w, http.StatusBadRequest, "path required")
		return
	}

	s.mutate(w, r, func(ws *workspace.Workspace) (interface{}, error) {
		return nil, ws.Delete(path)
	})
}

func (s *Server) handleSetContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mutate(w, r, func(ws *workspace.Workspace) (interface{}, error) {
		return nil, ws.SetContent(req.Path, req.Content)
	})
}

func (s *Server) handleSetExpanded(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path     string `json:"path"`
		Expanded bool   `json:"expanded"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mutate(w, r, func(ws *workspace.Workspace) (interface{}, error) {
		ws.SetExpanded(req.Path, req.Expanded)
		return nil, nil
	})
}

// mutate runs one edit against the session's workspace, schedules the
// debounced save and writes the response.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(*workspace.Workspace) (interface{}, error)) {
	sess, userID, workspaceID, found, err := s.sessionFor(r, false)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.sendError(w, http.StatusNotFound, "workspace not found")
		return
	}

	sess.mu.Lock()
	result, err := fn(sess.ws)
	var snapshot *models.WorkspaceState
	if err == nil {
		snapshot = sess.ws.Snapshot()
	}
	sess.mu.Unlock()

	if err != nil {
		var conflict *workspace.NameConflictError
		if errors.As(err, &conflict) {
			s.sendError(w, http.StatusConflict, conflict.Error())
			return
		}
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.saver.Save(userID, workspaceID, snapshot)
	if result == nil {
		result = map[string]string{"status": "ok"}
	}
	s.sendJSON(w, http.StatusOK, result)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Repo           string `json:"repo"`
		Branch         string `json:"branch"`
		Message        string `json:"message"`
		InstallationID int64  `json:"installation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, _, _, found, err := s.sessionFor(r, false)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.sendError(w, http.StatusNotFound, "workspace not found")
		return
	}

	sess.mu.Lock()
	files := github.CollectFiles(sess.ws.Roots, sess.ws.Contents)
	sess.mu.Unlock()

	if err := s.publisher.PublishDirect(r.Context(), req.Repo, req.Branch, req.Message, files, req.InstallationID); err != nil {
		s.sendPublishError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{"status": "published", "files": len(files)})
}

func (s *Server) handlePublishPR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Repo           string `json:"repo"`
		BaseBranch     string `json:"base_branch"`
		Title          string `json:"title"`
		Body           string `json:"body"`
		Message        string `json:"message"`
		InstallationID int64  `json:"installation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, _, _, found, err := s.sessionFor(r, false)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.sendError(w, http.StatusNotFound, "workspace not found")
		return
	}

	sess.mu.Lock()
	files := github.CollectFiles(sess.ws.Roots, sess.ws.Contents)
	sess.mu.Unlock()

	pr, err := s.publisher.PublishPullRequest(r.Context(), req.Repo, req.BaseBranch, req.Title, req.Body, req.Message, files, req.InstallationID)
	if err != nil {
		s.sendPublishError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"status": "pull request opened",
		"number": pr.Number,
		"url":    pr.HTMLURL,
	})
}

func (s *Server) sendPublishError(w http.ResponseWriter, err error) {
	var sizeErr *assets.SizeLimitError
	if errors.As(err, &sizeErr) {
		s.sendError(w, http.StatusRequestEntityTooLarge, sizeErr.Error())
		return
	}
	var partial *github.PartialPublishError
	if errors.As(err, &partial) {
		s.sendJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":     partial.Error(),
			"committed": partial.Committed,
			"total":     partial.Total,
			"path":      partial.Path,
		})
		return
	}
	s.sendError(w, http.StatusBadGateway, err.Error())
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
		"code":  status,
	})
}
