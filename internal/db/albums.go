package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// AlbumRepository handles album database operations.
type AlbumRepository struct {
	q DBTX
}

// GetByCatalogID retrieves an album and its genres by catalog id.
func (r *AlbumRepository) GetByCatalogID(ctx context.Context, catalogID string) (*Album, error) {
	query := `
		SELECT a.id, a.catalog_id, a.name, a.popularity, a.release_date, a.created_at,
			COALESCE(array_agg(g.genre ORDER BY g.position) FILTER (WHERE g.genre IS NOT NULL), '{}')
		FROM albums a
		LEFT JOIN album_genres g ON g.album_id = a.id
		WHERE a.catalog_id = $1
		GROUP BY a.id
	`
	var album Album
	err := r.q.QueryRow(ctx, query, catalogID).Scan(
		&album.ID,
		&album.CatalogID,
		&album.Name,
		&album.Popularity,
		&album.ReleaseDate,
		&album.CreatedAt,
		&album.Genres,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying album: %w", err)
	}
	return &album, nil
}

// Create inserts an album with its genres and sets ID and CreatedAt.
func (r *AlbumRepository) Create(ctx context.Context, album *Album) error {
	query := `
		INSERT INTO albums (catalog_id, name, popularity, release_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query, album.CatalogID, album.Name, album.Popularity, album.ReleaseDate).
		Scan(&album.ID, &album.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting album: %w", err)
	}

	if len(album.Genres) == 0 {
		return nil
	}

	genres := `
		INSERT INTO album_genres (album_id, position, genre)
		SELECT $1, g.position, g.genre
		FROM unnest($2::text[]) WITH ORDINALITY AS g(genre, position)
	`
	if _, err := r.q.Exec(ctx, genres, album.ID, album.Genres); err != nil {
		return fmt.Errorf("inserting album genres: %w", err)
	}
	return nil
}
