// Package tags backfills Last.fm tags for archived tracks.
package tags

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/justestif/scrobble-archiver/internal/lastfm"
)

// DefaultConcurrency is the number of tag lookups run in parallel.
const DefaultConcurrency = 5

// Track is the minimal track info needed for a tag lookup.
type Track struct {
	ID     int64
	Name   string
	Artist string
}

// TrackTags holds the tags fetched for one track.
type TrackTags struct {
	TrackID int64
	Tags    []lastfm.Tag
	Source  string // lastfm.TagSourceTrack or lastfm.TagSourceArtist, empty on error
	Err     error
}

// TagFetcher looks up the top tags of a track.
type TagFetcher interface {
	TopTags(ctx context.Context, artist, track string) (*lastfm.TagResult, error)
}

// Service fetches tags with a bounded worker pool.
type Service struct {
	fetcher     TagFetcher
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency sets the number of concurrent lookups.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService creates a tag service.
func NewService(fetcher TagFetcher, opts ...Option) *Service {
	s := &Service{
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchTagsForTracks fetches tags for every track, keeping input order.
// A failed lookup is reported in that track's Err and does not stop the
// others; the returned error is only set when ctx is done.
func (s *Service) FetchTagsForTracks(ctx context.Context, tracks []Track) ([]TrackTags, error) {
	results := make([]TrackTags, len(tracks))
	if len(tracks) == 0 {
		return results, nil
	}

	// lookups never fail the group; errors stay with their track
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, t := range tracks {
		g.Go(func() error {
			results[i] = s.fetch(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

func (s *Service) fetch(ctx context.Context, t Track) TrackTags {
	if err := ctx.Err(); err != nil {
		return TrackTags{TrackID: t.ID, Tags: []lastfm.Tag{}, Err: err}
	}

	result, err := s.fetcher.TopTags(ctx, t.Artist, t.Name)
	if err != nil {
		return TrackTags{TrackID: t.ID, Tags: []lastfm.Tag{}, Err: err}
	}
	return TrackTags{TrackID: t.ID, Tags: result.Tags, Source: result.Source}
}
