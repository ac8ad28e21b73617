package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/justestif/scrobble-archiver/internal/auth"
	"github.com/justestif/scrobble-archiver/internal/config"
	"github.com/justestif/scrobble-archiver/internal/db"
	"github.com/justestif/scrobble-archiver/internal/lastfm"
	"github.com/justestif/scrobble-archiver/internal/resolve"
	"github.com/justestif/scrobble-archiver/internal/shared"
	"github.com/justestif/scrobble-archiver/internal/spotify"
	archive "github.com/justestif/scrobble-archiver/internal/sync"
)

// Runner holds the dependencies shared by every command and provides one
// method per command action.
type Runner struct {
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided options.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{logger: opts.Logger, output: opts.Output}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, serveCommand, tagsCommand, runsCommand, unresolvedCommand, initConfigCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	shared.SetDebug(r.logger, cmd.Bool("debug"))
	return ctx, nil
}

// loadConfig reads and validates the file named by --config.
func (r *Runner) loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	r.logger.Debug("config loaded", "path", path)
	return cfg, nil
}

func (r *Runner) openDB(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	database, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

func (r *Runner) historyClient(cfg *config.Config) (*lastfm.Client, error) {
	lfmCfg := &lastfm.Config{
		APIKey:   cfg.LastFM.APIKey,
		Username: cfg.LastFM.Username,
		Timeout:  cfg.LastFM.Timeout.Duration,
	}
	if err := lfmCfg.Validate(); err != nil {
		return nil, err
	}
	return lastfm.NewClient(lfmCfg), nil
}

// catalogClient builds an authenticated, throttled catalog client.
func (r *Runner) catalogClient(ctx context.Context, cfg *config.Config) (*spotify.Client, error) {
	replacements, err := config.LoadReplacements(cfg.Sync.ReplacementsPath)
	if err != nil {
		return nil, err
	}

	tokenCache := auth.NewTokenCache(cfg.Spotify.TokenCache)
	if cfg.Spotify.TokenCache == "" {
		if tokenCache, err = auth.DefaultTokenCache(); err != nil {
			return nil, err
		}
	}

	opts := []auth.Option{auth.WithLogger(r.logger.With("component", "auth"))}
	if cfg.Spotify.Timeout.Duration > 0 {
		opts = append(opts, auth.WithTimeout(cfg.Spotify.Timeout.Duration))
	}
	authenticator, err := auth.New(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, tokenCache, opts...)
	if err != nil {
		return nil, err
	}

	return spotify.New(
		authenticator.Client(ctx),
		spotify.NewNormalizer(replacements),
		spotify.WithRateLimit(cfg.Spotify.RequestsPerSecond),
		spotify.WithLogger(r.logger.With("component", "catalog")),
	), nil
}

// engine wires the sync engine against database.
func (r *Runner) engine(ctx context.Context, cfg *config.Config, database *db.DB) (*archive.Engine, error) {
	history, err := r.historyClient(cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := r.catalogClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	resolver := resolve.New(catalog, catalog.Normalizer(), resolve.WithLogger(r.logger.With("component", "resolver")))
	return archive.New(history, resolver, archive.NewStore(database),
		archive.WithPageSize(cfg.Sync.PageSize),
		archive.WithLogger(r.logger.With("component", "sync")),
	), nil
}

func (r *Runner) writeJSON(data any) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
