package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TrackRepository handles track database operations.
type TrackRepository struct {
	q DBTX
}

const trackColumns = `id, name, catalog_id, external_id, fingerprint, artist_id, album_id, popularity, duration_ms, created_at`

// GetByExternalID retrieves a track by its upstream stable id.
func (r *TrackRepository) GetByExternalID(ctx context.Context, externalID string) (*Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE external_id = $1`
	return r.getOne(ctx, query, externalID)
}

// GetByFingerprint retrieves a track by its derived fingerprint.
func (r *TrackRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE fingerprint = $1`
	return r.getOne(ctx, query, fingerprint)
}

// Get retrieves a track by ID.
func (r *TrackRepository) Get(ctx context.Context, id int64) (*Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *TrackRepository) getOne(ctx context.Context, query string, arg any) (*Track, error) {
	var track Track
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&track.ID,
		&track.Name,
		&track.CatalogID,
		&track.ExternalID,
		&track.Fingerprint,
		&track.ArtistID,
		&track.AlbumID,
		&track.Popularity,
		&track.DurationMs,
		&track.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying track: %w", err)
	}
	return &track, nil
}

// Create inserts a track and sets ID and CreatedAt.
func (r *TrackRepository) Create(ctx context.Context, track *Track) error {
	query := `
		INSERT INTO tracks (name, catalog_id, external_id, fingerprint, artist_id, album_id, popularity, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query,
		track.Name,
		track.CatalogID,
		track.ExternalID,
		track.Fingerprint,
		track.ArtistID,
		track.AlbumID,
		track.Popularity,
		track.DurationMs,
	).Scan(&track.ID, &track.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting track: %w", err)
	}
	return nil
}

// Count returns the number of archived tracks.
func (r *TrackRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tracks: %w", err)
	}
	return n, nil
}
