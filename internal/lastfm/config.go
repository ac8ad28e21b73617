// Package lastfm provides the Last.fm API client used to page through a user's
// listening history and to look up track tags.
package lastfm

import (
	"errors"
	"time"
)

// Configuration errors.
var (
	// ErrMissingAPIKey is returned when no Last.fm API key is configured.
	ErrMissingAPIKey = errors.New("missing Last.fm API key")

	// ErrMissingUsername is returned when no Last.fm username is configured.
	ErrMissingUsername = errors.New("missing Last.fm username")
)

// DefaultTimeout bounds every Last.fm request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Config holds Last.fm API configuration.
type Config struct {
	APIKey   string
	Username string
	Timeout  time.Duration
}

// Validate checks that the credentials needed for user.getRecentTracks are present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Username == "" {
		return ErrMissingUsername
	}
	return nil
}
