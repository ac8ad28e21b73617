package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/justestif/scrobble-archiver/internal/shared"
)

// ErrMissingCredentials is returned when the client id or secret is empty.
var ErrMissingCredentials = errors.New("missing spotify client id or secret")

// Authenticator obtains app-level catalog tokens with the client credentials
// grant. Tokens are persisted through a TokenCache so that short-lived CLI runs
// reuse a still-valid token instead of requesting a new one.
type Authenticator struct {
	config  *clientcredentials.Config
	cache   *TokenCache
	timeout time.Duration
	logger  *log.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(url string) Option {
	return func(a *Authenticator) {
		a.config.TokenURL = url
	}
}

// WithTimeout sets the HTTP timeout of the returned catalog client.
func WithTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		a.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Authenticator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Authenticator for the given app credentials.
// A nil cache disables token persistence.
func New(clientID, clientSecret string, cache *TokenCache, opts ...Option) (*Authenticator, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}

	a := &Authenticator{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyauth.TokenURL,
		},
		cache:   cache,
		timeout: 30 * time.Second,
		logger:  shared.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// TokenSource returns a token source that starts from the cached token, if it
// is still valid, and saves every newly fetched token back to the cache.
func (a *Authenticator) TokenSource(ctx context.Context) oauth2.TokenSource {
	var initial *oauth2.Token
	if a.cache != nil {
		cached, err := a.cache.Lookup(a.config.ClientID)
		switch {
		case err != nil:
			a.logger.Warn("discarding unreadable token cache", "path", a.cache.Path(), "err", err)
			if err := a.cache.Clear(); err != nil {
				a.logger.Warn("failed to clear token cache", "err", err)
			}
		case cached.Valid():
			initial = cached
		}
	}

	base := &savingSource{
		src:      a.config.TokenSource(ctx),
		clientID: a.config.ClientID,
		cache:    a.cache,
		logger:   a.logger,
	}
	return oauth2.ReuseTokenSource(initial, base)
}

// HTTPClient returns an HTTP client that authorizes every request.
func (a *Authenticator) HTTPClient(ctx context.Context) *http.Client {
	return &http.Client{
		Timeout: a.timeout,
		Transport: &oauth2.Transport{
			Source: a.TokenSource(ctx),
		},
	}
}

// Client returns an authenticated catalog client. Requests are attempted once;
// throttling is the caller's job.
func (a *Authenticator) Client(ctx context.Context, opts ...spotify.ClientOption) *spotify.Client {
	return spotify.New(a.HTTPClient(ctx), opts...)
}

// savingSource persists each token fetched from src.
type savingSource struct {
	src      oauth2.TokenSource
	clientID string
	cache    *TokenCache
	logger   *log.Logger

	mu sync.Mutex
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Store(s.clientID, token); err != nil {
			// auth succeeded; a stale cache only costs a token request next run
			s.logger.Warn("failed to cache token", "err", err)
		}
	}
	return token, nil
}
