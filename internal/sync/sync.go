// Package sync archives new listens: it pages backward through the listening
// history until it reaches the newest listen already stored, resolving every
// event to a track and committing each page in one transaction.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/justestif/scrobble-archiver/internal/db"
	"github.com/justestif/scrobble-archiver/internal/lastfm"
	"github.com/justestif/scrobble-archiver/internal/metrics"
	"github.com/justestif/scrobble-archiver/internal/resolve"
	"github.com/justestif/scrobble-archiver/internal/shared"
)

// DefaultPageSize is the number of listens requested per history page.
const DefaultPageSize = 200

// State is a step of a sync run.
type State string

// Run states. CaughtUp, Exhausted and Failed are terminal.
const (
	StateIdle       State = "idle"
	StatePaging     State = "paging"
	StateResolving  State = "resolving"
	StateCommitting State = "committing"
	StateCaughtUp   State = "caught_up"
	StateExhausted  State = "exhausted"
	StateFailed     State = "failed"
)

// HistorySource fetches pages of listening history, newest first.
type HistorySource interface {
	FetchPage(ctx context.Context, page, pageSize int) (*lastfm.Page, error)
}

// TrackResolver maps an event to a stored track.
type TrackResolver interface {
	Resolve(ctx context.Context, store resolve.Store, ev lastfm.ListenEvent) (*db.Track, error)
}

// SyncResult describes a finished run.
type SyncResult struct {
	RunID      uuid.UUID
	State      State
	Watermark  time.Time
	Pages      int
	Listens    int
	Unresolved int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Engine runs syncs.
type Engine struct {
	history  HistorySource
	resolver TrackResolver
	store    Store
	pageSize int
	logger   *log.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPageSize sets the number of listens requested per page.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates a sync engine.
func New(history HistorySource, resolver TrackResolver, store Store, opts ...Option) *Engine {
	e := &Engine{
		history:  history,
		resolver: resolver,
		store:    store,
		pageSize: DefaultPageSize,
		logger:   shared.DiscardLogger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run archives every listen newer than the watermark.
//
// An event at or before the watermark is already archived, so reaching one
// ends the run as CaughtUp. A page with no events, or the last page reported
// by the history service, ends it as Exhausted. Events the resolver cannot
// match go to the unresolved table without stopping the run.
//
// Upstream, storage and context errors stop the run. Pages committed before
// the failure stay committed; the returned result is non-nil and reports
// StateFailed.
func (e *Engine) Run(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{
		RunID:     shared.NewRunID(),
		State:     StateIdle,
		StartedAt: e.now(),
	}
	logger := e.logger.With("run", result.RunID)

	watermark, err := e.store.Watermark(ctx)
	if err != nil {
		return e.fail(ctx, logger, result, fmt.Errorf("reading watermark: %w", err))
	}
	result.Watermark = watermark
	metrics.SetWatermark(watermark)

	if err := e.store.StartRun(ctx, &db.SyncRun{
		ID:        result.RunID,
		StartedAt: result.StartedAt,
		Watermark: watermark,
		State:     string(StatePaging),
	}); err != nil {
		return e.fail(ctx, logger, result, fmt.Errorf("recording run start: %w", err))
	}

	logger.Info("sync started", "watermark", watermark.Format(time.RFC3339), "page_size", e.pageSize)

	for page := 1; ; page++ {
		result.State = StatePaging
		p, err := e.history.FetchPage(ctx, page, e.pageSize)
		if err != nil {
			return e.fail(ctx, logger, result, fmt.Errorf("fetching page %d: %w", page, err))
		}

		if len(p.Events) == 0 {
			result.State = StateExhausted
			break
		}

		caughtUp, err := e.processPage(ctx, logger, result, page, p.Events)
		if err != nil {
			return e.fail(ctx, logger, result, err)
		}

		if caughtUp {
			result.State = StateCaughtUp
			break
		}
		if p.CurrentPage >= p.TotalPages {
			result.State = StateExhausted
			break
		}
	}

	result.FinishedAt = e.now()
	if err := e.finishRun(ctx, result, nil); err != nil {
		return e.fail(ctx, logger, result, fmt.Errorf("recording run finish: %w", err))
	}
	metrics.RecordSyncRun(string(result.State), result.FinishedAt.Sub(result.StartedAt))

	logger.Info("sync finished",
		"state", result.State,
		"pages", result.Pages,
		"listens", result.Listens,
		"unresolved", result.Unresolved,
		"took", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond),
	)
	return result, nil
}

// processPage resolves the events of one page and commits them together.
// It reports whether an already archived event was reached.
func (e *Engine) processPage(ctx context.Context, logger *log.Logger, result *SyncResult, page int, events []lastfm.ListenEvent) (bool, error) {
	var (
		caughtUp   bool
		inserted   int64
		unresolved []db.UnresolvedEvent
	)

	err := e.store.InPage(ctx, func(tx PageTx) error {
		var listens []db.Listen

		result.State = StateResolving
		for _, ev := range events {
			if !ev.ListenedAt.After(result.Watermark) {
				caughtUp = true
				break
			}

			track, err := e.resolver.Resolve(ctx, tx, ev)
			if err != nil {
				if isFatal(err) {
					return fmt.Errorf("page %d: %s: %w", page, describe(ev), err)
				}
				logger.Warn("unresolved listen", "page", page, "event", describe(ev), "err", err)
				unresolved = append(unresolved, unresolvedFrom(result.RunID, ev, err))
				continue
			}
			listens = append(listens, db.Listen{TrackID: track.ID, ListenedAt: ev.ListenedAt})
		}

		result.State = StateCommitting
		n, err := tx.InsertListens(ctx, listens)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		inserted = n

		if err := tx.InsertUnresolved(ctx, unresolved); err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	result.Pages++
	result.Listens += int(inserted)
	result.Unresolved += len(unresolved)
	metrics.RecordPage(int(inserted), len(unresolved))

	logger.Debug("page committed", "page", page, "events", len(events), "listens", inserted, "unresolved", len(unresolved))
	return caughtUp, nil
}

// fail finishes a run in StateFailed, recording the error in the ledger when possible.
func (e *Engine) fail(ctx context.Context, logger *log.Logger, result *SyncResult, err error) (*SyncResult, error) {
	result.State = StateFailed
	result.FinishedAt = e.now()
	metrics.RecordSyncRun(string(StateFailed), result.FinishedAt.Sub(result.StartedAt))

	// the run context may be what failed
	ledgerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if ferr := e.finishRun(ledgerCtx, result, err); ferr != nil {
		logger.Warn("could not record failed run", "err", ferr)
	}

	logger.Error("sync failed", "pages", result.Pages, "listens", result.Listens, "err", err)
	return result, err
}

func (e *Engine) finishRun(ctx context.Context, result *SyncResult, runErr error) error {
	finished := result.FinishedAt
	run := &db.SyncRun{
		ID:         result.RunID,
		FinishedAt: &finished,
		State:      string(result.State),
		Pages:      result.Pages,
		Listens:    result.Listens,
		Unresolved: result.Unresolved,
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}
	return e.store.FinishRun(ctx, run)
}

// isFatal reports whether err must stop the run rather than route the event
// to the unresolved table.
func isFatal(err error) bool {
	var pe *db.PersistenceError
	return errors.Is(err, shared.ErrUpstreamUnavailable) ||
		errors.As(err, &pe) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func describe(ev lastfm.ListenEvent) string {
	return fmt.Sprintf("%s - %s @ %s", ev.ArtistName, ev.TrackName, ev.ListenedAt.Format(time.RFC3339))
}

func unresolvedFrom(runID uuid.UUID, ev lastfm.ListenEvent, reason error) db.UnresolvedEvent {
	return db.UnresolvedEvent{
		RunID:      &runID,
		TrackName:  ev.TrackName,
		ArtistName: ev.ArtistName,
		AlbumName:  ev.AlbumName,
		TrackMBID:  optional(ev.TrackMBID),
		ArtistMBID: optional(ev.ArtistMBID),
		AlbumMBID:  optional(ev.AlbumMBID),
		ListenedAt: ev.ListenedAt,
		Reason:     reason.Error(),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
