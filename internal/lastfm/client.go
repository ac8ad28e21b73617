package lastfm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"

	"github.com/justestif/scrobble-archiver/internal/shared"
)

const (
	baseURL   = "https://ws.audioscrobbler.com/2.0/"
	userAgent = "scrobble-archiver/1.0"

	artistTagTTL = 6 * time.Hour
)

// Last.fm API error codes.
const (
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrRateLimited is returned when the API rate limit is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrInvalidPage is returned for a non-positive page number or page size.
	ErrInvalidPage = errors.New("page and page size must be positive")
)

// Client is a Last.fm API client bound to one user's history.
type Client struct {
	apiKey     string
	username   string
	httpClient *http.Client
	baseURL    string

	// artist tags are shared by many tracks, so they are cached in memory
	artistTags *cache.Cache
}

// NewClient creates a new Last.fm API client from the provided configuration.
func NewClient(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiKey:   cfg.APIKey,
		username: cfg.Username,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:    baseURL,
		artistTags: cache.New(artistTagTTL, 2*artistTagTTL),
	}
}

// FetchPage fetches one page of the user's recent tracks, newest first.
// The currently playing track, which has no timestamp yet, is dropped.
// Any transport, status or decoding failure wraps shared.ErrUpstreamUnavailable;
// the request is attempted exactly once.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int) (*Page, error) {
	if page <= 0 || pageSize <= 0 {
		return nil, fmt.Errorf("%w: page=%d pageSize=%d", ErrInvalidPage, page, pageSize)
	}

	params := url.Values{
		"method":  {"user.getrecenttracks"},
		"user":    {c.username},
		"limit":   {strconv.Itoa(pageSize)},
		"page":    {strconv.Itoa(page)},
		"format":  {"json"},
		"api_key": {c.apiKey},
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching recent tracks page %d: %w", page, err)
	}

	var resp recentTracksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing recent tracks page %d: %v", shared.ErrUpstreamUnavailable, page, err)
	}

	result, err := convertPage(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", shared.ErrUpstreamUnavailable, page, err)
	}
	return result, nil
}

// convertPage turns the raw response into a Page, dropping now-playing entries.
func convertPage(resp recentTracksResponse) (*Page, error) {
	attr := resp.RecentTracks.Attr
	var page Page
	var err error
	if page.CurrentPage, err = atoi("page", attr.Page); err != nil {
		return nil, err
	}
	if page.PerPage, err = atoi("perPage", attr.PerPage); err != nil {
		return nil, err
	}
	if page.TotalPages, err = atoi("totalPages", attr.TotalPages); err != nil {
		return nil, err
	}
	if page.Total, err = atoi("total", attr.Total); err != nil {
		return nil, err
	}

	page.Events = make([]ListenEvent, 0, len(resp.RecentTracks.Track))
	for _, t := range resp.RecentTracks.Track {
		if t.Attr != nil && t.Attr.NowPlaying == "true" {
			continue
		}
		if t.Date == nil || t.Date.UTS == "" {
			continue
		}
		uts, err := strconv.ParseInt(t.Date.UTS, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q for %q: %w", t.Date.UTS, t.Name, err)
		}
		page.Events = append(page.Events, ListenEvent{
			TrackName:  t.Name,
			TrackMBID:  t.MBID,
			ArtistName: t.Artist.Text,
			ArtistMBID: t.Artist.MBID,
			AlbumName:  t.Album.Text,
			AlbumMBID:  t.Album.MBID,
			ListenedAt: time.Unix(uts, 0).UTC(),
		})
	}
	return &page, nil
}

func atoi(field, value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, value)
	}
	return n, nil
}

// Tag sources reported by TopTags.
const (
	TagSourceTrack  = "track"
	TagSourceArtist = "artist"
)

// TagResult is the outcome of a tag lookup and where the tags came from.
type TagResult struct {
	Tags   []Tag
	Source string
}

// TopTags fetches tags for a track, falling back to the artist's tags when
// the track has none. Tags is empty (not nil) when neither has any.
func (c *Client) TopTags(ctx context.Context, artist, track string) (*TagResult, error) {
	tags, err := c.topTags(ctx, url.Values{
		"method": {"track.getTopTags"},
		"artist": {artist},
		"track":  {track},
	})
	if err != nil {
		return nil, fmt.Errorf("track tags for %q by %q: %w", track, artist, err)
	}
	if len(tags) > 0 {
		return &TagResult{Tags: tags, Source: TagSourceTrack}, nil
	}

	if cached, ok := c.artistTags.Get(artist); ok {
		return &TagResult{Tags: cached.([]Tag), Source: TagSourceArtist}, nil
	}
	tags, err = c.topTags(ctx, url.Values{
		"method": {"artist.getTopTags"},
		"artist": {artist},
	})
	if err != nil {
		return nil, fmt.Errorf("artist tags for %q: %w", artist, err)
	}
	c.artistTags.SetDefault(artist, tags)
	return &TagResult{Tags: tags, Source: TagSourceArtist}, nil
}

// topTags runs one of the *.getTopTags methods. Both share a response shape.
func (c *Client) topTags(ctx context.Context, params url.Values) ([]Tag, error) {
	params.Set("autocorrect", "1")
	params.Set("format", "json")
	params.Set("api_key", c.apiKey)

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp topTagsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing tags: %v", shared.ErrUpstreamUnavailable, err)
	}
	if resp.TopTags.Tag == nil {
		return []Tag{}, nil
	}
	return resp.TopTags.Tag, nil
}

// doRequest performs a single HTTP GET request against the API.
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %v", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", shared.ErrUpstreamUnavailable, err)
	}

	// Last.fm reports failures in a JSON envelope, usually alongside a 4xx/5xx status
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, fmt.Errorf("%w: %w", shared.ErrUpstreamUnavailable, ErrRateLimited)
		case errCodeInvalidAPIKey:
			return nil, fmt.Errorf("%w: %w", shared.ErrUpstreamUnavailable, ErrInvalidAPIKey)
		default:
			return nil, fmt.Errorf("%w: API error %d: %s", shared.ErrUpstreamUnavailable, apiErr.Error, apiErr.Message)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", shared.ErrUpstreamUnavailable, resp.StatusCode)
	}

	return body, nil
}
