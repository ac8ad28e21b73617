package spotify

import "time"

// ArtistInfo is catalog metadata for an artist.
type ArtistInfo struct {
	ID         string
	Name       string
	Popularity int
	Genres     []string
}

// AlbumInfo is catalog metadata for an album. ReleaseDate is nil when the
// catalog date could not be interpreted.
type AlbumInfo struct {
	ID          string
	Name        string
	Popularity  int
	Genres      []string
	ReleaseDate *time.Time
}

// TrackInfo is the best catalog match for a track search.
type TrackInfo struct {
	ID         string
	Name       string
	ArtistID   string
	AlbumID    string
	Popularity int
	DurationMs int
}
