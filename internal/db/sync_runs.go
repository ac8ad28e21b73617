package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SyncRunRepository handles the sync run ledger.
type SyncRunRepository struct {
	q DBTX
}

// Start records the beginning of a run.
func (r *SyncRunRepository) Start(ctx context.Context, run *SyncRun) error {
	query := `
		INSERT INTO sync_runs (id, started_at, watermark, state)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.q.Exec(ctx, query, run.ID, run.StartedAt, run.Watermark, run.State); err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}
	return nil
}

// Finish records the outcome of a run.
func (r *SyncRunRepository) Finish(ctx context.Context, run *SyncRun) error {
	query := `
		UPDATE sync_runs
		SET finished_at = $2, state = $3, pages = $4, listens = $5, unresolved = $6, error = $7
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query,
		run.ID, run.FinishedAt, run.State, run.Pages, run.Listens, run.Unresolved, run.Error)
	if err != nil {
		return fmt.Errorf("updating sync run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get retrieves a run by ID.
func (r *SyncRunRepository) Get(ctx context.Context, id uuid.UUID) (*SyncRun, error) {
	query := `
		SELECT id, started_at, finished_at, watermark, state, pages, listens, unresolved, error
		FROM sync_runs
		WHERE id = $1
	`
	var run SyncRun
	err := r.q.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Watermark,
		&run.State,
		&run.Pages,
		&run.Listens,
		&run.Unresolved,
		&run.Error,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync run: %w", err)
	}
	return &run, nil
}

// Recent returns the most recently started runs.
func (r *SyncRunRepository) Recent(ctx context.Context, limit int) ([]SyncRun, error) {
	query := `
		SELECT id, started_at, finished_at, watermark, state, pages, listens, unresolved, error
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		if err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Watermark,
			&run.State,
			&run.Pages,
			&run.Listens,
			&run.Unresolved,
			&run.Error,
		); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
