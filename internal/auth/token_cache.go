package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

const (
	appDirName    = "scrobble-archiver"
	tokenFileName = "token.json"
)

// ErrNilToken is returned when Store is handed a nil token.
var ErrNilToken = errors.New("cannot store nil token")

// storedToken is the on-disk record. A token is only handed back to the
// client id that fetched it.
type storedToken struct {
	ClientID string        `json:"client_id"`
	Token    *oauth2.Token `json:"token"`
	StoredAt time.Time     `json:"stored_at"`
}

// TokenCache keeps the last catalog token in a file between runs.
type TokenCache struct {
	path string
	now  func() time.Time
}

// DefaultTokenCache returns a TokenCache under the user config directory,
// e.g. ~/.config/scrobble-archiver/token.json.
func DefaultTokenCache() (*TokenCache, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locating user config dir: %w", err)
	}
	return NewTokenCache(filepath.Join(dir, appDirName, tokenFileName)), nil
}

// NewTokenCache creates a TokenCache backed by the file at path.
func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path, now: time.Now}
}

// Path returns the backing file.
func (c *TokenCache) Path() string {
	return c.path
}

// Lookup returns the token stored for clientID. A missing file, or a token
// stored for another client, yields (nil, nil).
func (c *TokenCache) Lookup(clientID string) (*oauth2.Token, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token cache: %w", err)
	}

	var rec storedToken
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding token cache %s: %w", c.path, err)
	}
	if rec.ClientID != clientID || rec.Token == nil {
		return nil, nil
	}
	return rec.Token, nil
}

// Store replaces the cached token with token, bound to clientID.
// The file is private to the user and swapped in atomically.
func (c *TokenCache) Store(clientID string, token *oauth2.Token) error {
	if token == nil {
		return ErrNilToken
	}

	data, err := json.Marshal(storedToken{ClientID: clientID, Token: token, StoredAt: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating token cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".token-*")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replacing token cache: %w", err)
	}
	return nil
}

// Clear removes the cache file, if any.
func (c *TokenCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token cache: %w", err)
	}
	return nil
}
