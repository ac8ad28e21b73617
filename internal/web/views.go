package web

import (
	"time"

	"github.com/justestif/scrobble-archiver/internal/db"
)

type runJSON struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Watermark  time.Time  `json:"watermark"`
	State      string     `json:"state"`
	Pages      int        `json:"pages"`
	Listens    int        `json:"listens"`
	Unresolved int        `json:"unresolved"`
	Error      *string    `json:"error,omitempty"`
}

func toRunJSON(r db.SyncRun) runJSON {
	return runJSON{
		ID:         r.ID.String(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Watermark:  r.Watermark,
		State:      r.State,
		Pages:      r.Pages,
		Listens:    r.Listens,
		Unresolved: r.Unresolved,
		Error:      r.Error,
	}
}

type unresolvedJSON struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id,omitempty"`
	Track      string    `json:"track"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album"`
	TrackMBID  *string   `json:"track_mbid,omitempty"`
	ArtistMBID *string   `json:"artist_mbid,omitempty"`
	AlbumMBID  *string   `json:"album_mbid,omitempty"`
	ListenedAt time.Time `json:"listened_at"`
	Reason     string    `json:"reason"`
}

func toUnresolvedJSON(e db.UnresolvedEvent) unresolvedJSON {
	out := unresolvedJSON{
		ID:         e.ID,
		Track:      e.TrackName,
		Artist:     e.ArtistName,
		Album:      e.AlbumName,
		TrackMBID:  e.TrackMBID,
		ArtistMBID: e.ArtistMBID,
		AlbumMBID:  e.AlbumMBID,
		ListenedAt: e.ListenedAt,
		Reason:     e.Reason,
	}
	if e.RunID != nil {
		out.RunID = e.RunID.String()
	}
	return out
}
