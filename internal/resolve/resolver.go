// Package resolve maps raw listen events to canonical track rows, creating
// artists, albums and tracks the first time they are seen.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/justestif/scrobble-archiver/internal/db"
	"github.com/justestif/scrobble-archiver/internal/lastfm"
	"github.com/justestif/scrobble-archiver/internal/shared"
	"github.com/justestif/scrobble-archiver/internal/spotify"
)

// ErrTrackNotFound is returned when the catalog has no match for an event.
var ErrTrackNotFound = errors.New("track not found")

// Store is the storage the resolver reads and writes. Lookups return
// db.ErrNotFound when nothing matches.
type Store interface {
	FindTrackByExternalID(ctx context.Context, externalID string) (*db.Track, error)
	FindTrackByFingerprint(ctx context.Context, fingerprint string) (*db.Track, error)
	FindArtistByCatalogID(ctx context.Context, catalogID string) (*db.Artist, error)
	FindAlbumByCatalogID(ctx context.Context, catalogID string) (*db.Album, error)
	CreateArtist(ctx context.Context, artist *db.Artist) error
	CreateAlbum(ctx context.Context, album *db.Album) error
	CreateTrack(ctx context.Context, track *db.Track) error
}

// Catalog is the subset of the catalog client used for resolution.
type Catalog interface {
	FindArtist(ctx context.Context, id string) (*spotify.ArtistInfo, error)
	FindAlbum(ctx context.Context, id string) (*spotify.AlbumInfo, error)
	SearchTrack(ctx context.Context, name, artist string) (*spotify.TrackInfo, error)
}

// Resolver turns listen events into tracks.
type Resolver struct {
	catalog    Catalog
	normalizer *spotify.Normalizer
	logger     *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver.
func New(catalog Catalog, normalizer *spotify.Normalizer, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:    catalog,
		normalizer: normalizer,
		logger:     shared.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the track for ev, creating it and its artist and album when
// they are not yet stored. Tracks are found first by the event's external id,
// then by fingerprint, and only then searched for in the catalog.
//
// Returns ErrTrackNotFound when the catalog has no match. Upstream and storage
// failures are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, store Store, ev lastfm.ListenEvent) (*db.Track, error) {
	fingerprint := Fingerprint(
		r.normalizer.Normalize(ev.TrackName),
		r.normalizer.Normalize(ev.ArtistName),
		r.normalizer.Normalize(ev.AlbumName),
	)

	if ev.TrackMBID != "" {
		track, err := store.FindTrackByExternalID(ctx, ev.TrackMBID)
		if err == nil {
			return track, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}

	return getOrCreate(ctx, fingerprint,
		store.FindTrackByFingerprint,
		func(ctx context.Context, fingerprint string) (*db.Track, error) {
			return r.newTrack(ctx, store, ev, fingerprint)
		},
		store.CreateTrack,
	)
}

// newTrack searches the catalog for ev and prepares its track row, storing the
// owning artist and album if needed.
func (r *Resolver) newTrack(ctx context.Context, store Store, ev lastfm.ListenEvent, fingerprint string) (*db.Track, error) {
	info, err := r.catalog.SearchTrack(ctx, ev.TrackName, ev.ArtistName)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s - %s: %v", ErrTrackNotFound, ev.ArtistName, ev.TrackName, err)
	}
	if err != nil {
		return nil, err
	}

	artist, err := getOrCreate(ctx, info.ArtistID,
		store.FindArtistByCatalogID,
		r.newArtist,
		store.CreateArtist,
	)
	if err != nil {
		return nil, fmt.Errorf("resolving artist %s: %w", info.ArtistID, err)
	}

	album, err := getOrCreate(ctx, info.AlbumID,
		store.FindAlbumByCatalogID,
		r.newAlbum,
		store.CreateAlbum,
	)
	if err != nil {
		return nil, fmt.Errorf("resolving album %s: %w", info.AlbumID, err)
	}

	r.logger.Debug("new track", "track", info.Name, "catalog_id", info.ID, "fingerprint", fingerprint)

	track := &db.Track{
		Name:        info.Name,
		CatalogID:   optional(info.ID),
		ExternalID:  optional(ev.TrackMBID),
		Fingerprint: fingerprint,
		ArtistID:    artist.ID,
		AlbumID:     album.ID,
		Popularity:  info.Popularity,
	}
	if info.DurationMs > 0 {
		d := info.DurationMs
		track.DurationMs = &d
	}
	return track, nil
}

func (r *Resolver) newArtist(ctx context.Context, catalogID string) (*db.Artist, error) {
	info, err := r.catalog.FindArtist(ctx, catalogID)
	if err != nil {
		return nil, err
	}
	return &db.Artist{
		CatalogID:  optional(catalogID),
		Name:       info.Name,
		Popularity: info.Popularity,
		Genres:     info.Genres,
	}, nil
}

func (r *Resolver) newAlbum(ctx context.Context, catalogID string) (*db.Album, error) {
	info, err := r.catalog.FindAlbum(ctx, catalogID)
	if err != nil {
		return nil, err
	}
	return &db.Album{
		CatalogID:   catalogID,
		Name:        info.Name,
		Popularity:  info.Popularity,
		ReleaseDate: info.ReleaseDate,
		Genres:      info.Genres,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
