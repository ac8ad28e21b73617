package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ArtistRepository handles artist database operations.
type ArtistRepository struct {
	q DBTX
}

// GetByCatalogID retrieves an artist and its genres by catalog id.
func (r *ArtistRepository) GetByCatalogID(ctx context.Context, catalogID string) (*Artist, error) {
	query := `
		SELECT a.id, a.catalog_id, a.name, a.popularity, a.created_at,
			COALESCE(array_agg(g.genre ORDER BY g.position) FILTER (WHERE g.genre IS NOT NULL), '{}')
		FROM artists a
		LEFT JOIN artist_genres g ON g.artist_id = a.id
		WHERE a.catalog_id = $1
		GROUP BY a.id
	`
	var artist Artist
	err := r.q.QueryRow(ctx, query, catalogID).Scan(
		&artist.ID,
		&artist.CatalogID,
		&artist.Name,
		&artist.Popularity,
		&artist.CreatedAt,
		&artist.Genres,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying artist: %w", err)
	}
	return &artist, nil
}

// Create inserts an artist with its ordered genres and sets ID and CreatedAt.
func (r *ArtistRepository) Create(ctx context.Context, artist *Artist) error {
	query := `
		INSERT INTO artists (catalog_id, name, popularity)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query, artist.CatalogID, artist.Name, artist.Popularity).
		Scan(&artist.ID, &artist.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting artist: %w", err)
	}

	if len(artist.Genres) == 0 {
		return nil
	}

	genres := `
		INSERT INTO artist_genres (artist_id, position, genre)
		SELECT $1, g.position, g.genre
		FROM unnest($2::text[]) WITH ORDINALITY AS g(genre, position)
	`
	if _, err := r.q.Exec(ctx, genres, artist.ID, artist.Genres); err != nil {
		return fmt.Errorf("inserting artist genres: %w", err)
	}
	return nil
}
