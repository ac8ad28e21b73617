package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UnresolvedRepository handles the side table of listens that could not be
// matched to a track.
type UnresolvedRepository struct {
	q DBTX
}

// InsertBatch queues every event in one round trip.
func (r *UnresolvedRepository) InsertBatch(ctx context.Context, events []UnresolvedEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO unresolved_events
			(run_id, track_name, artist_name, album_name, track_mbid, artist_mbid, album_mbid, listened_at, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	b := &pgx.Batch{}
	for _, e := range events {
		b.Queue(query,
			e.RunID, e.TrackName, e.ArtistName, e.AlbumName,
			e.TrackMBID, e.ArtistMBID, e.AlbumMBID, e.ListenedAt, e.Reason,
		)
	}

	br := r.q.SendBatch(ctx, b)
	for range events {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("inserting unresolved event: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("closing unresolved batch: %w", err)
	}
	return nil
}

// Recent returns the newest unresolved events, newest listen first.
func (r *UnresolvedRepository) Recent(ctx context.Context, limit int) ([]UnresolvedEvent, error) {
	query := `
		SELECT id, run_id, track_name, artist_name, album_name,
			track_mbid, artist_mbid, album_mbid, listened_at, reason, created_at
		FROM unresolved_events
		ORDER BY listened_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unresolved events: %w", err)
	}
	defer rows.Close()

	var events []UnresolvedEvent
	for rows.Next() {
		var e UnresolvedEvent
		if err := rows.Scan(
			&e.ID,
			&e.RunID,
			&e.TrackName,
			&e.ArtistName,
			&e.AlbumName,
			&e.TrackMBID,
			&e.ArtistMBID,
			&e.AlbumMBID,
			&e.ListenedAt,
			&e.Reason,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning unresolved event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of unresolved events.
func (r *UnresolvedRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM unresolved_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting unresolved events: %w", err)
	}
	return n, nil
}
