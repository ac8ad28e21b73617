package db

import (
	"context"
	"fmt"
	"time"
)

// ListenRepository handles listen database operations.
type ListenRepository struct {
	q DBTX
}

// Latest returns the newest listen timestamp. Returns ErrNotFound when the
// archive is empty.
func (r *ListenRepository) Latest(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	if err := r.q.QueryRow(ctx, `SELECT MAX(listened_at) FROM listens`).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("querying latest listen: %w", err)
	}
	if latest == nil {
		return time.Time{}, ErrNotFound
	}
	return latest.UTC(), nil
}

// InsertBatch inserts listens efficiently and returns how many rows were new.
// A listen already archived for the same track and instant is skipped.
func (r *ListenRepository) InsertBatch(ctx context.Context, listens []Listen) (int64, error) {
	if len(listens) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO listens (track_id, listened_at)
		SELECT * FROM unnest($1::bigint[], $2::timestamptz[])
		ON CONFLICT (track_id, listened_at) DO NOTHING
	`

	trackIDs := make([]int64, len(listens))
	listenedAts := make([]time.Time, len(listens))
	for i, l := range listens {
		trackIDs[i] = l.TrackID
		listenedAts[i] = l.ListenedAt
	}

	tag, err := r.q.Exec(ctx, query, trackIDs, listenedAts)
	if err != nil {
		return 0, fmt.Errorf("batch inserting listens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of archived listens.
func (r *ListenRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM listens`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting listens: %w", err)
	}
	return n, nil
}
