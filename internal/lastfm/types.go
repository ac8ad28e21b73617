package lastfm

import (
	"bytes"
	"time"

	json "github.com/goccy/go-json"
)

// ListenEvent is one scrobble as reported by user.getRecentTracks. The MBID
// fields are empty when Last.fm has no MusicBrainz identifier for the entity.
type ListenEvent struct {
	TrackName  string
	TrackMBID  string
	ArtistName string
	ArtistMBID string
	AlbumName  string
	AlbumMBID  string
	ListenedAt time.Time
}

// Page is one page of listening history, newest listen first.
type Page struct {
	CurrentPage int
	PerPage     int
	TotalPages  int
	Total       int
	Events      []ListenEvent
}

// Tag represents a Last.fm tag with popularity count.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"` // Present in track.getTopTags, absent in artist.getTopTags
	URL   string `json:"url"`
}

// recentTracksResponse is the JSON response for user.getRecentTracks.
// Numeric attributes arrive as strings.
type recentTracksResponse struct {
	RecentTracks struct {
		Track trackList `json:"track"`
		Attr  struct {
			User       string `json:"user"`
			Page       string `json:"page"`
			PerPage    string `json:"perPage"`
			TotalPages string `json:"totalPages"`
			Total      string `json:"total"`
		} `json:"@attr"`
	} `json:"recenttracks"`
}

type textWithMBID struct {
	MBID string `json:"mbid"`
	Text string `json:"#text"`
}

type recentTrack struct {
	Name   string       `json:"name"`
	MBID   string       `json:"mbid"`
	Artist textWithMBID `json:"artist"`
	Album  textWithMBID `json:"album"`
	Date   *struct {
		UTS  string `json:"uts"`
		Text string `json:"#text"`
	} `json:"date"`
	Attr *struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

// trackList accepts both a JSON array and the single object Last.fm sends
// when a page holds exactly one track.
type trackList []recentTrack

func (l *trackList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var single recentTrack
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*l = trackList{single}
		return nil
	}
	var many []recentTrack
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// topTagsResponse is the JSON response for track.getTopTags and artist.getTopTags.
type topTagsResponse struct {
	TopTags struct {
		Tag []Tag `json:"tag"`
	} `json:"toptags"`
}

// apiError represents a Last.fm API error response.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
