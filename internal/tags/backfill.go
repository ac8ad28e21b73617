package tags

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/justestif/scrobble-archiver/internal/db"
	"github.com/justestif/scrobble-archiver/internal/shared"
)

const (
	// DefaultBatchSize is the number of tracks loaded per backfill round.
	DefaultBatchSize = 500

	// maxTagsPerTrack caps how many of a track's top tags are stored.
	maxTagsPerTrack = 10
)

// Store is the tag storage used by the backfill.
type Store interface {
	GetTracksWithoutTags(ctx context.Context, afterID int64, limit int) ([]db.TrackRef, error)
	UpsertBatch(ctx context.Context, tags []db.TrackTag) error
}

// BackfillResult summarises a backfill run.
type BackfillResult struct {
	Tracks   int // tracks looked up
	Tagged   int // tracks that got at least one tag
	Untagged int // tracks with no tags on track or artist
	Failed   int // lookups that errored
}

// Backfiller stores tags for archived tracks that have none.
type Backfiller struct {
	store     Store
	service   *Service
	batchSize int
	logger    *log.Logger
	now       func() time.Time
}

// BackfillOption configures a Backfiller.
type BackfillOption func(*Backfiller)

// WithBatchSize sets the number of tracks loaded per round.
func WithBatchSize(n int) BackfillOption {
	return func(b *Backfiller) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) BackfillOption {
	return func(b *Backfiller) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackfiller creates a Backfiller.
func NewBackfiller(store Store, service *Service, opts ...BackfillOption) *Backfiller {
	b := &Backfiller{
		store:     store,
		service:   service,
		batchSize: DefaultBatchSize,
		logger:    shared.DiscardLogger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run walks every untagged track once, in id order. Tracks whose lookup fails
// or returns no tags are left untagged for a later run.
func (b *Backfiller) Run(ctx context.Context) (*BackfillResult, error) {
	var result BackfillResult
	var cursor int64

	for {
		refs, err := b.store.GetTracksWithoutTags(ctx, cursor, b.batchSize)
		if err != nil {
			return &result, fmt.Errorf("loading untagged tracks: %w", err)
		}
		if len(refs) == 0 {
			break
		}
		cursor = refs[len(refs)-1].ID

		tracks := make([]Track, len(refs))
		for i, r := range refs {
			tracks[i] = Track{ID: r.ID, Name: r.Name, Artist: r.Artist}
		}

		fetched, err := b.service.FetchTagsForTracks(ctx, tracks)
		if err != nil {
			return &result, err
		}

		rows := b.collect(fetched, &result)
		if err := b.store.UpsertBatch(ctx, rows); err != nil {
			return &result, fmt.Errorf("storing tags: %w", err)
		}

		b.logger.Info("tag batch stored", "tracks", len(refs), "tags", len(rows), "through_id", cursor)
	}

	return &result, nil
}

// collect converts fetched tags to rows, keeping each track's strongest tags.
func (b *Backfiller) collect(fetched []TrackTags, result *BackfillResult) []db.TrackTag {
	now := b.now()
	var rows []db.TrackTag

	for _, f := range fetched {
		result.Tracks++
		switch {
		case f.Err != nil:
			result.Failed++
			b.logger.Warn("tag lookup failed", "track_id", f.TrackID, "err", f.Err)
			continue
		case len(f.Tags) == 0:
			result.Untagged++
			continue
		}
		result.Tagged++

		tags := append(f.Tags[:0:0], f.Tags...)
		sort.SliceStable(tags, func(i, j int) bool { return tags[i].Count > tags[j].Count })

		// one row per tag name, or the upsert would touch a row twice
		seen := make(map[string]bool, maxTagsPerTrack)
		for _, t := range tags {
			if len(seen) == maxTagsPerTrack {
				break
			}
			if seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			rows = append(rows, db.TrackTag{
				TrackID:   f.TrackID,
				TagName:   t.Name,
				TagCount:  t.Count,
				Source:    f.Source,
				FetchedAt: now,
			})
		}
	}
	return rows
}
