package lastfm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/justestif/scrobble-archiver/internal/shared"
)

// Trimmed user.getrecenttracks response: one now-playing entry followed by two scrobbles.
const recentTracksJSON = `{
  "recenttracks": {
    "track": [
      {
        "artist": {"mbid": "", "#text": "Fleetwood Mac"},
        "album": {"mbid": "02ac7ce7-4f21-4010-8210-e682085c58ab", "#text": "Rumours"},
        "name": "Dreams - 2004 Remaster",
        "mbid": "",
        "@attr": {"nowplaying": "true"}
      },
      {
        "artist": {"mbid": "", "#text": "Fleetwood Mac"},
        "album": {"mbid": "02ac7ce7-4f21-4010-8210-e682085c58ab", "#text": "Rumours"},
        "name": "Go Your Own Way - 2004 Remaster",
        "mbid": "",
        "date": {"uts": "1581873452", "#text": "16 Feb 2020, 17:17"}
      },
      {
        "artist": {"mbid": "bd13909f-1c29-4c27-a874-d4aaf27c5b1a", "#text": "Fleetwood Mac"},
        "album": {"mbid": "", "#text": "Tusk"},
        "name": "Sara",
        "mbid": "5cbc6e5f-1d66-4a40-8a4c-2c1e8a8b3d61",
        "date": {"uts": "1581787052", "#text": "15 Feb 2020, 17:17"}
      }
    ],
    "@attr": {"page": "1", "total": "132403", "user": "RJ", "perPage": "2", "totalPages": "66202"}
  }
}`

// Last.fm collapses a one-element track array into a bare object.
const singleTrackJSON = `{
  "recenttracks": {
    "track": {
      "artist": {"mbid": "", "#text": "Portishead"},
      "album": {"mbid": "", "#text": "Dummy"},
      "name": "Roads",
      "mbid": "",
      "date": {"uts": "1581700652", "#text": "14 Feb 2020, 17:17"}
    },
    "@attr": {"page": "2", "total": "3", "user": "RJ", "perPage": "2", "totalPages": "2"}
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &Client{
		apiKey:     "test-api-key",
		username:   "rj",
		httpClient: server.Client(),
		baseURL:    server.URL + "/",
		artistTags: cache.New(time.Minute, time.Minute),
	}
}

func TestFetchPage(t *testing.T) {
	var gotQuery atomic.Value
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(recentTracksJSON))
	})

	page, err := client.FetchPage(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	q := gotQuery.Load().(interface{ Get(string) string })
	if q.Get("method") != "user.getrecenttracks" || q.Get("user") != "rj" || q.Get("limit") != "2" || q.Get("page") != "1" {
		t.Errorf("unexpected query: %v", q)
	}

	if page.CurrentPage != 1 || page.PerPage != 2 || page.TotalPages != 66202 || page.Total != 132403 {
		t.Errorf("page metadata = %+v", page)
	}

	if len(page.Events) != 2 {
		t.Fatalf("got %d events, want 2 (now playing dropped)", len(page.Events))
	}

	first := page.Events[0]
	want := ListenEvent{
		TrackName:  "Go Your Own Way - 2004 Remaster",
		ArtistName: "Fleetwood Mac",
		AlbumName:  "Rumours",
		AlbumMBID:  "02ac7ce7-4f21-4010-8210-e682085c58ab",
		ListenedAt: time.Date(2020, 2, 16, 17, 17, 32, 0, time.UTC),
	}
	if first != want {
		t.Errorf("Events[0] = %+v, want %+v", first, want)
	}

	second := page.Events[1]
	if second.TrackMBID != "5cbc6e5f-1d66-4a40-8a4c-2c1e8a8b3d61" || second.ArtistMBID == "" {
		t.Errorf("Events[1] ids not carried over: %+v", second)
	}
	if !second.ListenedAt.Before(first.ListenedAt) {
		t.Errorf("events not newest-first: %v then %v", first.ListenedAt, second.ListenedAt)
	}
}

func TestFetchPage_SingleTrackObject(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(singleTrackJSON))
	})

	page, err := client.FetchPage(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].TrackName != "Roads" {
		t.Errorf("Events = %+v", page.Events)
	}
	if page.CurrentPage != 2 || page.TotalPages != 2 {
		t.Errorf("page metadata = %+v", page)
	}
}

func TestFetchPage_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"recenttracks":{"track":[],"@attr":{"page":"1","perPage":"200","totalPages":"0","total":"0"}}}`))
	})

	page, err := client.FetchPage(context.Background(), 1, 200)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(page.Events) != 0 {
		t.Errorf("got %d events, want 0", len(page.Events))
	}
}

func TestFetchPage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `oops`, shared.ErrUpstreamUnavailable},
		{"bad gateway with html", http.StatusBadGateway, `<html>bad gateway</html>`, shared.ErrUpstreamUnavailable},
		{"non json success", http.StatusOK, `<html>maintenance</html>`, shared.ErrUpstreamUnavailable},
		{"invalid api key", http.StatusForbidden, `{"error":10,"message":"Invalid API key"}`, ErrInvalidAPIKey},
		{"rate limited", http.StatusTooManyRequests, `{"error":29,"message":"Rate limit exceeded"}`, ErrRateLimited},
		{"user not found", http.StatusNotFound, `{"error":6,"message":"User not found"}`, shared.ErrUpstreamUnavailable},
		{"bad timestamp", http.StatusOK, `{"recenttracks":{"track":[{"name":"x","artist":{"#text":"y"},"album":{"#text":"z"},"date":{"uts":"soon"}}],"@attr":{"page":"1","perPage":"1","totalPages":"1","total":"1"}}}`, shared.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.FetchPage(context.Background(), 1, 10)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchPage() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, shared.ErrUpstreamUnavailable) {
				t.Errorf("FetchPage() error = %v, want it to wrap ErrUpstreamUnavailable", err)
			}
			// single attempt per page, no automatic retry
			if n := calls.Load(); n != 1 {
				t.Errorf("made %d requests, want 1", n)
			}
		})
	}
}

func TestFetchPage_InvalidArguments(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	for _, args := range [][2]int{{0, 10}, {1, 0}, {-1, 5}} {
		if _, err := client.FetchPage(context.Background(), args[0], args[1]); !errors.Is(err, ErrInvalidPage) {
			t.Errorf("FetchPage(%d, %d) error = %v, want ErrInvalidPage", args[0], args[1], err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("invalid arguments must not reach the API")
	}
}

func TestFetchPage_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(recentTracksJSON))
	})
	client.httpClient.Timeout = 20 * time.Millisecond

	_, err := client.FetchPage(context.Background(), 1, 2)
	if !errors.Is(err, shared.ErrUpstreamUnavailable) {
		t.Errorf("FetchPage() error = %v, want ErrUpstreamUnavailable on timeout", err)
	}
}

func TestTopTags(t *testing.T) {
	tests := []struct {
		name          string
		trackBody     string
		artistBody    string
		wantTags      []string
		wantSource    string
		wantErr       error
		wantArtistHit bool
	}{
		{
			name:       "track has tags",
			trackBody:  `{"toptags":{"tag":[{"name":"alternative","count":100},{"name":"rock","count":80}]}}`,
			wantTags:   []string{"alternative", "rock"},
			wantSource: TagSourceTrack,
		},
		{
			name:          "track empty falls back to artist",
			trackBody:     `{"toptags":{"tag":[]}}`,
			artistBody:    `{"toptags":{"tag":[{"name":"pop"},{"name":"dance"}]}}`,
			wantTags:      []string{"pop", "dance"},
			wantSource:    TagSourceArtist,
			wantArtistHit: true,
		},
		{
			name:          "both empty returns empty slice",
			trackBody:     `{"toptags":{"tag":[]}}`,
			artistBody:    `{"toptags":{}}`,
			wantTags:      []string{},
			wantSource:    TagSourceArtist,
			wantArtistHit: true,
		},
		{
			name:      "invalid API key",
			trackBody: `{"error":10,"message":"Invalid API key"}`,
			wantErr:   ErrInvalidAPIKey,
		},
		{
			name:      "malformed track response",
			trackBody: `{"toptags":`,
			wantErr:   shared.ErrUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var artistHit atomic.Bool
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				switch method := r.URL.Query().Get("method"); method {
				case "track.getTopTags":
					w.Write([]byte(tt.trackBody))
				case "artist.getTopTags":
					artistHit.Store(true)
					w.Write([]byte(tt.artistBody))
				default:
					t.Errorf("unexpected method: %s", method)
				}
			})

			result, err := client.TopTags(context.Background(), "Radiohead", "Paranoid Android")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("TopTags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			if result.Tags == nil {
				t.Fatal("TopTags() returned nil slice")
			}
			if result.Source != tt.wantSource {
				t.Errorf("TopTags() source = %q, want %q", result.Source, tt.wantSource)
			}
			if len(result.Tags) != len(tt.wantTags) {
				t.Fatalf("TopTags() got %d tags, want %d", len(result.Tags), len(tt.wantTags))
			}
			for i, tag := range result.Tags {
				if tag.Name != tt.wantTags[i] {
					t.Errorf("TopTags() tag[%d].Name = %s, want %s", i, tag.Name, tt.wantTags[i])
				}
			}
			if artistHit.Load() != tt.wantArtistHit {
				t.Errorf("artist fallback called = %v, want %v", artistHit.Load(), tt.wantArtistHit)
			}
		})
	}
}

func TestTopTags_ArtistCaching(t *testing.T) {
	var artistRequests atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("method") == "artist.getTopTags" {
			artistRequests.Add(1)
			w.Write([]byte(`{"toptags":{"tag":[{"name":"trip-hop"}]}}`))
			return
		}
		w.Write([]byte(`{"toptags":{"tag":[]}}`))
	})

	for _, track := range []string{"Roads", "Glory Box", "Sour Times"} {
		result, err := client.TopTags(context.Background(), "Portishead", track)
		if err != nil {
			t.Fatalf("TopTags(%q) error = %v", track, err)
		}
		if len(result.Tags) != 1 {
			t.Fatalf("TopTags(%q) got %d tags, want 1", track, len(result.Tags))
		}
	}

	if n := artistRequests.Load(); n != 1 {
		t.Errorf("Expected 1 artist request, got %d", n)
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(&Config{APIKey: "test-key", Username: "rj"})

	if client.apiKey != "test-key" || client.username != "rj" {
		t.Errorf("NewClient() credentials = %s/%s", client.apiKey, client.username)
	}
	if client.httpClient == nil || client.httpClient.Timeout != DefaultTimeout {
		t.Error("NewClient() must set an explicit request timeout")
	}
	if client.baseURL != baseURL {
		t.Errorf("NewClient() baseURL = %s, want %s", client.baseURL, baseURL)
	}
}
