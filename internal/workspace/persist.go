package workspace

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/siteforge/siteforge/internal/logging"
	"github.com/siteforge/siteforge/internal/metrics"
	"github.com/siteforge/siteforge/internal/store"
	"github.com/siteforge/siteforge/pkg/models"
)

// Saver debounces snapshot writes: rapid saves for one workspace collapse
// into a single write of the latest snapshot once the quiescence window
// passes. Writes for one key never interleave out of order; a crash inside
// the window loses at most that window's edits.
type Saver struct {
	store  store.Store
	window time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]pendingSave
}

type pendingSave struct {
	userID      string
	workspaceID string
	state       *models.WorkspaceState
}

// NewSaver creates a Saver with the given quiescence window.
func NewSaver(s store.Store, window time.Duration) *Saver {
	if window == 0 {
		window = 2 * time.Second
	}
	return &Saver{
		store:   s,
		window:  window,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]pendingSave),
	}
}

// Save schedules a debounced write of state. A save already pending for the
// same key is replaced by this newer snapshot and its timer restarted.
func (s *Saver) Save(userID, workspaceID string, state *models.WorkspaceState) {
	key := userID + "/" + workspaceID

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[key]; ok {
		metrics.RecordSnapshotCoalesced()
	}
	s.pending[key] = pendingSave{userID: userID, workspaceID: workspaceID, state: state}

	if timer, ok := s.timers[key]; ok {
		timer.Reset(s.window)
		return
	}
	s.timers[key] = time.AfterFunc(s.window, func() {
		s.flushKey(key)
	})
}

func (s *Saver) flushKey(key string) {
	s.mu.Lock()
	save, ok := s.pending[key]
	delete(s.pending, key)
	delete(s.timers, key)
	s.mu.Unlock()

	if !ok {
		return
	}
	s.write(save)
}

func (s *Saver) write(save pendingSave) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.store.Put(ctx, save.userID, save.workspaceID, save.state)
	metrics.RecordSnapshotSave(err == nil)
	if err != nil {
		logging.Error("snapshot save failed",
			zap.String("user_id", save.userID),
			zap.String("workspace_id", save.workspaceID),
			zap.Error(err))
		return
	}
	logging.Debug("snapshot saved",
		zap.String("user_id", save.userID),
		zap.String("workspace_id", save.workspaceID))
}

// Flush writes every pending snapshot immediately. Used at shutdown so the
// debounce window does not become a data-loss window.
func (s *Saver) Flush() {
	s.mu.Lock()
	saves := make([]pendingSave, 0, len(s.pending))
	for key, save := range s.pending {
		if timer, ok := s.timers[key]; ok {
			timer.Stop()
		}
		saves = append(saves, save)
		delete(s.pending, key)
		delete(s.timers, key)
	}
	s.mu.Unlock()

	for _, save := range saves {
		s.write(save)
	}
}
