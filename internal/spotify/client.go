// Package spotify provides the catalog lookups used to enrich listens:
// artist and album metadata by id, and a forgiving track search.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"github.com/justestif/scrobble-archiver/internal/metrics"
	"github.com/justestif/scrobble-archiver/internal/shared"
)

const (
	// DefaultRequestsPerSecond keeps well under the catalog's rolling rate limit.
	DefaultRequestsPerSecond = 5

	cacheTTL = 24 * time.Hour
)

// Client wraps the Spotify API client with the lookups the resolver needs.
type Client struct {
	api        *spotify.Client
	normalizer *Normalizer
	limiter    *rate.Limiter
	artists    *cache.Cache
	albums     *cache.Cache
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit sets the maximum catalog requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger sets the logger used for query tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a new catalog client.
// The underlying client should already be authenticated.
func New(api *spotify.Client, normalizer *Normalizer, opts ...Option) *Client {
	c := &Client{
		api:        api,
		normalizer: normalizer,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		artists:    cache.New(cacheTTL, 2*cacheTTL),
		albums:     cache.New(cacheTTL, 2*cacheTTL),
		logger:     shared.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalizer returns the normalizer applied to query input.
func (c *Client) Normalizer() *Normalizer {
	return c.normalizer
}

// throttle waits for the rate limiter. A wait that cannot finish before the
// context deadline counts as the catalog being unavailable, not as a miss.
func (c *Client) throttle(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: rate limit wait: %v", shared.ErrUpstreamUnavailable, err)
	}
	return nil
}

// FindArtist looks up an artist by catalog id.
// Returns shared.ErrNotFound if the catalog does not know the id.
func (c *Client) FindArtist(ctx context.Context, id string) (*ArtistInfo, error) {
	if cached, ok := c.artists.Get(id); ok {
		metrics.CatalogCacheHits.WithLabelValues("artist").Inc()
		return cached.(*ArtistInfo), nil
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	artist, err := c.api.GetArtist(ctx, spotify.ID(id))
	if err != nil {
		return nil, c.classify("get_artist", fmt.Sprintf("artist %s", id), err)
	}
	metrics.RecordCatalogRequest("get_artist", metrics.ResultOK)

	info := &ArtistInfo{
		ID:         artist.ID.String(),
		Name:       artist.Name,
		Popularity: int(artist.Popularity),
		Genres:     artist.Genres,
	}
	c.artists.SetDefault(id, info)
	return info, nil
}

// FindAlbum looks up an album by catalog id.
// Returns shared.ErrNotFound if the catalog does not know the id.
func (c *Client) FindAlbum(ctx context.Context, id string) (*AlbumInfo, error) {
	if cached, ok := c.albums.Get(id); ok {
		metrics.CatalogCacheHits.WithLabelValues("album").Inc()
		return cached.(*AlbumInfo), nil
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	album, err := c.api.GetAlbum(ctx, spotify.ID(id))
	if err != nil {
		return nil, c.classify("get_album", fmt.Sprintf("album %s", id), err)
	}
	metrics.RecordCatalogRequest("get_album", metrics.ResultOK)

	info := &AlbumInfo{
		ID:         album.ID.String(),
		Name:       album.Name,
		Popularity: int(album.Popularity),
		Genres:     album.Genres,
	}
	if released, err := ReleaseDate(album.ReleaseDate, album.ReleaseDatePrecision); err == nil {
		info.ReleaseDate = &released
	} else {
		c.logger.Debug("unusable release date", "album", id, "date", album.ReleaseDate, "precision", album.ReleaseDatePrecision)
	}

	c.albums.SetDefault(id, info)
	return info, nil
}

// SearchTrack finds the catalog track for a track name and artist.
//
// The first query uses the whole normalised track name. While a query returns
// nothing, the leading word is dropped and the query rebuilt from the remaining
// trailing words; the artist filter is never shortened. Returns shared.ErrNotFound
// only after every truncation came back empty.
func (c *Client) SearchTrack(ctx context.Context, name, artist string) (*TrackInfo, error) {
	words := strings.Fields(c.normalizer.Normalize(name))
	normArtist := c.normalizer.Normalize(artist)

	for i := range words {
		query := buildQuery(strings.Join(words[i:], " "), normArtist)

		if err := c.throttle(ctx); err != nil {
			return nil, err
		}

		c.logger.Debug("searching catalog", "query", query, "attempt", i+1, "of", len(words))
		result, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
		if err != nil {
			return nil, c.classify("search_track", fmt.Sprintf("query %q", query), err)
		}

		if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
			continue
		}

		metrics.RecordCatalogRequest("search_track", metrics.ResultOK)
		return convertTrack(result.Tracks.Tracks[0]), nil
	}

	metrics.RecordCatalogRequest("search_track", metrics.ResultNotFound)
	return nil, fmt.Errorf("%w: track %q by %q", shared.ErrNotFound, name, artist)
}

// buildQuery combines the track words with the catalog's artist filter.
func buildQuery(track, artist string) string {
	if artist == "" {
		return track
	}
	return track + " artist:" + artist
}

// convertTrack converts a catalog FullTrack to TrackInfo.
func convertTrack(t spotify.FullTrack) *TrackInfo {
	info := &TrackInfo{
		ID:         t.ID.String(),
		Name:       t.Name,
		AlbumID:    t.Album.ID.String(),
		Popularity: int(t.Popularity),
		DurationMs: int(t.Duration),
	}
	if len(t.Artists) > 0 {
		info.ArtistID = t.Artists[0].ID.String()
	}
	return info
}

// classify maps a catalog client error onto the shared taxonomy: unknown ids
// become ErrNotFound, everything else is ErrUpstreamUnavailable. Context
// errors pass through unchanged.
func (c *Client) classify(operation, subject string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		metrics.RecordCatalogRequest(operation, metrics.ResultError)
		return err
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusBadRequest) {
		metrics.RecordCatalogRequest(operation, metrics.ResultNotFound)
		return fmt.Errorf("%w: %s: %s", shared.ErrNotFound, subject, apiErr.Message)
	}

	metrics.RecordCatalogRequest(operation, metrics.ResultError)
	return fmt.Errorf("%w: %s: %v", shared.ErrUpstreamUnavailable, subject, err)
}
