package db

import (
	"time"

	"github.com/google/uuid"
)

// Artist is a catalog artist. CatalogID is nil only for rows created before
// the artist was resolved against the catalog.
type Artist struct {
	ID         int64
	CatalogID  *string // nullable
	Name       string
	Popularity int
	Genres     []string // ordered, most specific first
	CreatedAt  time.Time
}

// Album is a catalog album.
type Album struct {
	ID          int64
	CatalogID   string
	Name        string
	Popularity  int
	ReleaseDate *time.Time // nullable
	Genres      []string
	CreatedAt   time.Time
}

// Track is the canonical identity of a listened-to track.
type Track struct {
	ID          int64
	Name        string
	CatalogID   *string // nullable
	ExternalID  *string // nullable, upstream MusicBrainz id
	Fingerprint string
	ArtistID    int64
	AlbumID     int64
	Popularity  int
	DurationMs  *int // nullable
	CreatedAt   time.Time
}

// Listen is one archived play of a track.
type Listen struct {
	ID         int64
	TrackID    int64
	ListenedAt time.Time
}

// UnresolvedEvent is a listen that could not be matched to a track, kept
// verbatim for offline reprocessing.
type UnresolvedEvent struct {
	ID         int64
	RunID      *uuid.UUID // nullable
	TrackName  string
	ArtistName string
	AlbumName  string
	TrackMBID  *string // nullable
	ArtistMBID *string // nullable
	AlbumMBID  *string // nullable
	ListenedAt time.Time
	Reason     string
	CreatedAt  time.Time
}

// SyncRun is the ledger entry for one sync invocation.
type SyncRun struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt *time.Time // nullable while running
	Watermark  time.Time
	State      string
	Pages      int
	Listens    int
	Unresolved int
	Error      *string // nullable
}

// TrackTag represents a Last.fm tag for a track.
type TrackTag struct {
	TrackID   int64
	TagName   string
	TagCount  int
	Source    string // "track" or "artist"
	FetchedAt time.Time
}

// TrackRef is the minimal track description needed to query tags.
type TrackRef struct {
	ID     int64
	Name   string
	Artist string
}
