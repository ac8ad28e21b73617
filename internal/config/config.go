// Package config loads the archiver configuration from a TOML file with
// environment variable overrides.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/justestif/scrobble-archiver/internal/shared"
)

//go:embed config.example.toml
var exampleConf []byte

// Config is the full application configuration.
type Config struct {
	LastFM   LastFMConfig   `toml:"lastfm"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	Database DatabaseConfig `toml:"database"`
	Sync     SyncConfig     `toml:"sync"`
	Server   ServerConfig   `toml:"server"`
	Tags     TagsConfig     `toml:"tags"`
}

// LastFMConfig holds listening-history API credentials.
type LastFMConfig struct {
	APIKey   string   `toml:"api_key"`
	Username string   `toml:"username"`
	Timeout  Duration `toml:"timeout"`
}

// SpotifyConfig holds catalog API credentials and throttling settings.
type SpotifyConfig struct {
	ClientID          string   `toml:"client_id"`
	ClientSecret      string   `toml:"client_secret"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Timeout           Duration `toml:"timeout"`
	TokenCache        string   `toml:"token_cache"`
}

// DatabaseConfig holds the PostgreSQL connection string.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

// SyncConfig controls paging and name normalisation.
type SyncConfig struct {
	PageSize         int    `toml:"page_size"`
	ReplacementsPath string `toml:"replacements_path"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr      string `toml:"addr"`
	RateLimit int    `toml:"rate_limit"` // requests per client IP per minute, 0 disables
}

// TagsConfig controls the tag backfill worker pool.
type TagsConfig struct {
	Concurrency int `toml:"concurrency"`
	BatchSize   int `toml:"batch_size"`
}

// Duration is a [time.Duration] decoded from strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Environment variables that override file values.
const (
	EnvLastFMAPIKey   = "LASTFM_API_KEY"
	EnvLastFMUsername = "LASTFM_USERNAME"
	EnvSpotifyID      = "SPOTIFY_ID"
	EnvSpotifySecret  = "SPOTIFY_SECRET"
	EnvDatabaseURL    = "DATABASE_URL"
)

// Default returns a Config populated from the embedded example file.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// Load reads the TOML file at path on top of the defaults, applies environment
// overrides and validates the result. A missing file is not an error as long as
// the environment supplies every required value.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", shared.ErrInvalidConfig, path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.LastFM.APIKey, EnvLastFMAPIKey)
	override(&c.LastFM.Username, EnvLastFMUsername)
	override(&c.Spotify.ClientID, EnvSpotifyID)
	override(&c.Spotify.ClientSecret, EnvSpotifySecret)
	override(&c.Database.URL, EnvDatabaseURL)
}

// Validate reports every missing or invalid required value in one error.
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		key   string
		value string
	}{
		{"lastfm.api_key", c.LastFM.APIKey},
		{"lastfm.username", c.LastFM.Username},
		{"spotify.client_id", c.Spotify.ClientID},
		{"spotify.client_secret", c.Spotify.ClientSecret},
		{"database.url", c.Database.URL},
		{"sync.replacements_path", c.Sync.ReplacementsPath},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrMissingConfig, strings.Join(missing, ", "))
	}

	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("%w: sync.page_size must be positive", shared.ErrInvalidConfig)
	}
	if c.Spotify.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: spotify.requests_per_second must be positive", shared.ErrInvalidConfig)
	}
	return nil
}

// WriteExample creates a config file at path from the embedded example.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
