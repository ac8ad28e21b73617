package sync

import (
	"context"
	"time"

	"github.com/justestif/scrobble-archiver/internal/db"
	"github.com/justestif/scrobble-archiver/internal/resolve"
)

// PageTx is the write surface of one page transaction.
type PageTx interface {
	resolve.Store
	InsertListens(ctx context.Context, listens []db.Listen) (int64, error)
	InsertUnresolved(ctx context.Context, events []db.UnresolvedEvent) error
}

// Store is the persistent state a sync run reads and writes.
type Store interface {
	Watermark(ctx context.Context) (time.Time, error)
	InPage(ctx context.Context, fn func(PageTx) error) error
	StartRun(ctx context.Context, run *db.SyncRun) error
	FinishRun(ctx context.Context, run *db.SyncRun) error
}

// NewStore adapts a database to Store.
func NewStore(database *db.DB) Store {
	return &dbStore{db: database}
}

type dbStore struct {
	db *db.DB
}

func (s *dbStore) Watermark(ctx context.Context) (time.Time, error) {
	return s.db.Watermark(ctx)
}

func (s *dbStore) InPage(ctx context.Context, fn func(PageTx) error) error {
	return s.db.InPage(ctx, func(tx *db.Tx) error {
		return fn(tx)
	})
}

func (s *dbStore) StartRun(ctx context.Context, run *db.SyncRun) error {
	if err := s.db.SyncRuns().Start(ctx, run); err != nil {
		return &db.PersistenceError{Op: "start run", Err: err}
	}
	return nil
}

func (s *dbStore) FinishRun(ctx context.Context, run *db.SyncRun) error {
	if err := s.db.SyncRuns().Finish(ctx, run); err != nil {
		return &db.PersistenceError{Op: "finish run", Err: err}
	}
	return nil
}
