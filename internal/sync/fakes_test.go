package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/scrobble-archiver/internal/db"
	"github.com/justestif/scrobble-archiver/internal/lastfm"
	"github.com/justestif/scrobble-archiver/internal/resolve"
	"github.com/justestif/scrobble-archiver/internal/shared"
)

// memState is the committed content of memStore.
type memState struct {
	tracks     []db.Track
	listens    []db.Listen
	unresolved []db.UnresolvedEvent
}

func (s memState) clone() memState {
	return memState{
		tracks:     append([]db.Track(nil), s.tracks...),
		listens:    append([]db.Listen(nil), s.listens...),
		unresolved: append([]db.UnresolvedEvent(nil), s.unresolved...),
	}
}

// memStore is a transactional in-memory Store: writes made through a page
// transaction only become visible when the page function succeeds.
type memStore struct {
	state memState
	runs  map[uuid.UUID]*db.SyncRun

	insertListensErr error
	pages            int
}

func newMemStore() *memStore {
	return &memStore{runs: map[uuid.UUID]*db.SyncRun{}}
}

func (s *memStore) Watermark(context.Context) (time.Time, error) {
	wm := time.Unix(0, 0).UTC()
	for _, l := range s.state.listens {
		if l.ListenedAt.After(wm) {
			wm = l.ListenedAt
		}
	}
	return wm, nil
}

func (s *memStore) InPage(_ context.Context, fn func(PageTx) error) error {
	tx := &memTx{state: s.state.clone(), insertListensErr: s.insertListensErr}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	s.pages++
	return nil
}

func (s *memStore) StartRun(_ context.Context, run *db.SyncRun) error {
	stored := *run
	s.runs[run.ID] = &stored
	return nil
}

func (s *memStore) FinishRun(_ context.Context, run *db.SyncRun) error {
	stored, ok := s.runs[run.ID]
	if !ok {
		return &db.PersistenceError{Op: "finish run", Err: db.ErrNotFound}
	}
	stored.FinishedAt = run.FinishedAt
	stored.State = run.State
	stored.Pages = run.Pages
	stored.Listens = run.Listens
	stored.Unresolved = run.Unresolved
	stored.Error = run.Error
	return nil
}

func (s *memStore) listenTimes() []time.Time {
	times := make([]time.Time, len(s.state.listens))
	for i, l := range s.state.listens {
		times[i] = l.ListenedAt
	}
	sort.Slice(times, func(i, j int) bool { return times[i].After(times[j]) })
	return times
}

type memTx struct {
	state            memState
	insertListensErr error
}

var _ resolve.Store = (*memTx)(nil)

func (t *memTx) FindTrackByExternalID(context.Context, string) (*db.Track, error) {
	return nil, db.ErrNotFound
}

func (t *memTx) FindTrackByFingerprint(_ context.Context, fp string) (*db.Track, error) {
	for i := range t.state.tracks {
		if t.state.tracks[i].Fingerprint == fp {
			return &t.state.tracks[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func (t *memTx) FindArtistByCatalogID(context.Context, string) (*db.Artist, error) {
	return nil, db.ErrNotFound
}

func (t *memTx) FindAlbumByCatalogID(context.Context, string) (*db.Album, error) {
	return nil, db.ErrNotFound
}

func (t *memTx) CreateArtist(context.Context, *db.Artist) error { return nil }

func (t *memTx) CreateAlbum(context.Context, *db.Album) error { return nil }

func (t *memTx) CreateTrack(_ context.Context, track *db.Track) error {
	track.ID = int64(len(t.state.tracks) + 1)
	t.state.tracks = append(t.state.tracks, *track)
	return nil
}

func (t *memTx) InsertListens(_ context.Context, listens []db.Listen) (int64, error) {
	if t.insertListensErr != nil {
		return 0, t.insertListensErr
	}
	t.state.listens = append(t.state.listens, listens...)
	return int64(len(listens)), nil
}

func (t *memTx) InsertUnresolved(_ context.Context, events []db.UnresolvedEvent) error {
	t.state.unresolved = append(t.state.unresolved, events...)
	return nil
}

// fakeHistory serves fixed pages and records which were requested.
type fakeHistory struct {
	pages     map[int]*lastfm.Page
	errs      map[int]error
	requested []int
}

func (h *fakeHistory) FetchPage(_ context.Context, page, _ int) (*lastfm.Page, error) {
	h.requested = append(h.requested, page)
	if err, ok := h.errs[page]; ok {
		return nil, err
	}
	if p, ok := h.pages[page]; ok {
		return p, nil
	}
	return &lastfm.Page{CurrentPage: page}, nil
}

// fakeResolver resolves every event by track name, creating the track in the
// page transaction on first sight. Names listed in errs fail with that error.
type fakeResolver struct {
	errs map[string]error
}

func (r *fakeResolver) Resolve(ctx context.Context, store resolve.Store, ev lastfm.ListenEvent) (*db.Track, error) {
	if err, ok := r.errs[ev.TrackName]; ok {
		return nil, err
	}
	fp := ev.ArtistName + "|" + ev.TrackName
	track, err := store.FindTrackByFingerprint(ctx, fp)
	if err == nil {
		return track, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	track = &db.Track{Name: ev.TrackName, Fingerprint: fp}
	if err := store.CreateTrack(ctx, track); err != nil {
		return nil, err
	}
	return track, nil
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", resolve.ErrTrackNotFound, name)
}

func upstream(msg string) error {
	return fmt.Errorf("%w: %s", shared.ErrUpstreamUnavailable, msg)
}

func day(d int) time.Time {
	return time.Date(2020, 2, d, 0, 0, 0, 0, time.UTC)
}

func listen(track string, at time.Time) lastfm.ListenEvent {
	return lastfm.ListenEvent{TrackName: track, ArtistName: "Artist", AlbumName: "Album", ListenedAt: at}
}
