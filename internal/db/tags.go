package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// TagRepository stores the Last.fm tags fetched for archived tracks.
type TagRepository struct {
	q DBTX
}

// UpsertBatch writes tags in one statement. A tag already stored for the
// track is refreshed with the new count, source and fetch time.
func (r *TagRepository) UpsertBatch(ctx context.Context, tags []TrackTag) error {
	if len(tags) == 0 {
		return nil
	}

	var cols struct {
		trackIDs []int64
		names    []string
		counts   []int
		sources  []string
		fetched  []time.Time
	}
	for _, t := range tags {
		cols.trackIDs = append(cols.trackIDs, t.TrackID)
		cols.names = append(cols.names, t.TagName)
		cols.counts = append(cols.counts, t.TagCount)
		cols.sources = append(cols.sources, t.Source)
		cols.fetched = append(cols.fetched, t.FetchedAt)
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO track_tags (track_id, tag_name, tag_count, source, fetched_at)
		SELECT * FROM unnest($1::bigint[], $2::text[], $3::int[], $4::text[], $5::timestamptz[])
		ON CONFLICT (track_id, tag_name) DO UPDATE
		SET tag_count = EXCLUDED.tag_count, source = EXCLUDED.source, fetched_at = EXCLUDED.fetched_at
	`, cols.trackIDs, cols.names, cols.counts, cols.sources, cols.fetched)
	return persist("upsert track tags", err)
}

// GetForTrack lists a track's tags, strongest first.
func (r *TagRepository) GetForTrack(ctx context.Context, trackID int64) ([]TrackTag, error) {
	rows, err := r.q.Query(ctx, `
		SELECT track_id, tag_name, tag_count, source, fetched_at
		FROM track_tags
		WHERE track_id = $1
		ORDER BY tag_count DESC, tag_name
	`, trackID)
	if err != nil {
		return nil, persist("query track tags", err)
	}

	tags, err := pgx.CollectRows(rows, pgx.RowToStructByPos[TrackTag])
	if err != nil {
		return nil, persist("scan track tags", err)
	}
	return tags, nil
}

// GetTracksWithoutTags pages through untagged tracks by id: it returns up to
// limit tracks with an id above afterID, each with its artist name.
func (r *TagRepository) GetTracksWithoutTags(ctx context.Context, afterID int64, limit int) ([]TrackRef, error) {
	rows, err := r.q.Query(ctx, `
		SELECT t.id, t.name, a.name
		FROM tracks t
		JOIN artists a ON a.id = t.artist_id
		WHERE t.id > $1
			AND NOT EXISTS (SELECT 1 FROM track_tags tt WHERE tt.track_id = t.id)
		ORDER BY t.id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, persist("query untagged tracks", err)
	}

	refs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[TrackRef])
	if err != nil {
		return nil, persist("scan untagged tracks", err)
	}
	return refs, nil
}
