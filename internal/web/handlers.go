package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"

	"github.com/justestif/scrobble-archiver/internal/db"
	"github.com/justestif/scrobble-archiver/internal/shared"
	archive "github.com/justestif/scrobble-archiver/internal/sync"
)

const (
	defaultRunsLimit       = 20
	defaultUnresolvedLimit = 50
	maxLimit               = 500
)

// ErrInvalidLimit is returned for a limit query parameter that is not a
// positive integer.
var ErrInvalidLimit = errors.New("limit must be a positive integer")

// Syncer runs one sync.
type Syncer interface {
	Run(ctx context.Context) (*archive.SyncResult, error)
}

// RunLister lists recent sync runs.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]db.SyncRun, error)
}

// UnresolvedLister lists recent unresolved listens.
type UnresolvedLister interface {
	Recent(ctx context.Context, limit int) ([]db.UnresolvedEvent, error)
}

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains the HTTP handlers. At most one sync runs at a time.
type Handlers struct {
	syncer     Syncer
	runs       RunLister
	unresolved UnresolvedLister
	health     Pinger
	logger     *log.Logger

	// syncs run detached from the triggering request and stop on Close
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(syncer Syncer, runs RunLister, unresolved UnresolvedLister, health Pinger, logger *log.Logger) *Handlers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		syncer:     syncer,
		runs:       runs,
		unresolved: unresolved,
		health:     health,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Close cancels a running sync and waits for it to return.
func (h *Handlers) Close() {
	h.cancel()
	h.wg.Wait()
}

// Health reports storage reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("database unreachable: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"syncing": h.running.Load(),
	})
}

// TriggerSync starts a sync in the background. Responds 409 while one is running.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if !h.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, shared.ErrSyncInProgress)
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.running.Store(false)

		result, err := h.syncer.Run(h.ctx)
		if err != nil {
			h.logger.Error("triggered sync failed", "err", err)
			return
		}
		h.logger.Info("triggered sync finished", "run", result.RunID, "state", result.State, "listens", result.Listens)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// ListRuns returns the most recent sync runs.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultRunsLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	runs, err := h.runs.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing runs", "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("listing runs failed"))
		return
	}

	out := make([]runJSON, len(runs))
	for i, run := range runs {
		out[i] = toRunJSON(run)
	}
	writeJSON(w, http.StatusOK, out)
}

// ListUnresolved returns the most recent unresolved listens.
func (h *Handlers) ListUnresolved(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultUnresolvedLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := h.unresolved.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing unresolved events", "err", err)
		writeError(w, http.StatusInternalServerError, errors.New("listing unresolved events failed"))
		return
	}

	out := make([]unresolvedJSON, len(events))
	for i, e := range events {
		out[i] = toUnresolvedJSON(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// parseLimit reads the limit query parameter, capped at maxLimit.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLimit, raw)
	}
	return min(n, maxLimit), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
