package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Tx is an open page transaction. Its methods wrap storage failures in
// PersistenceError; lookups that match nothing return ErrNotFound.
type Tx struct {
	tx pgx.Tx
}

// FindTrackByExternalID looks up a track by upstream stable id.
func (t *Tx) FindTrackByExternalID(ctx context.Context, externalID string) (*Track, error) {
	track, err := (&TrackRepository{q: t.tx}).GetByExternalID(ctx, externalID)
	return track, persist("find track by external id", err)
}

// FindTrackByFingerprint looks up a track by fingerprint.
func (t *Tx) FindTrackByFingerprint(ctx context.Context, fingerprint string) (*Track, error) {
	track, err := (&TrackRepository{q: t.tx}).GetByFingerprint(ctx, fingerprint)
	return track, persist("find track by fingerprint", err)
}

// FindArtistByCatalogID looks up an artist by catalog id.
func (t *Tx) FindArtistByCatalogID(ctx context.Context, catalogID string) (*Artist, error) {
	artist, err := (&ArtistRepository{q: t.tx}).GetByCatalogID(ctx, catalogID)
	return artist, persist("find artist", err)
}

// FindAlbumByCatalogID looks up an album by catalog id.
func (t *Tx) FindAlbumByCatalogID(ctx context.Context, catalogID string) (*Album, error) {
	album, err := (&AlbumRepository{q: t.tx}).GetByCatalogID(ctx, catalogID)
	return album, persist("find album", err)
}

// CreateArtist inserts an artist.
func (t *Tx) CreateArtist(ctx context.Context, artist *Artist) error {
	return persist("create artist", (&ArtistRepository{q: t.tx}).Create(ctx, artist))
}

// CreateAlbum inserts an album.
func (t *Tx) CreateAlbum(ctx context.Context, album *Album) error {
	return persist("create album", (&AlbumRepository{q: t.tx}).Create(ctx, album))
}

// CreateTrack inserts a track.
func (t *Tx) CreateTrack(ctx context.Context, track *Track) error {
	return persist("create track", (&TrackRepository{q: t.tx}).Create(ctx, track))
}

// InsertListens writes the page's resolved listens and returns how many were new.
func (t *Tx) InsertListens(ctx context.Context, listens []Listen) (int64, error) {
	n, err := (&ListenRepository{q: t.tx}).InsertBatch(ctx, listens)
	return n, persist("insert listens", err)
}

// InsertUnresolved writes the page's unresolved events.
func (t *Tx) InsertUnresolved(ctx context.Context, events []UnresolvedEvent) error {
	return persist("insert unresolved events", (&UnresolvedRepository{q: t.tx}).InsertBatch(ctx, events))
}
