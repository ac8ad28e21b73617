package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/justestif/scrobble-archiver/internal/config"
	"github.com/justestif/scrobble-archiver/internal/tags"
	"github.com/justestif/scrobble-archiver/internal/web"
)

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Archive every listen newer than the stored watermark",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output the run summary as JSON"},
		},
		Action: r.Sync,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve health, metrics and sync endpoints over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides server.addr)"},
		},
		Action: r.Serve,
	}
}

func tagsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "Fetch Last.fm tags for archived tracks that have none",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "concurrency", Usage: "Parallel tag lookups (overrides tags.concurrency)"},
		},
		Action: r.Tags,
	}
}

func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recent sync runs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs to show", Value: 10},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.Runs,
	}
}

func unresolvedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "unresolved",
		Usage: "List recent listens that could not be matched to a track",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of events to show", Value: 20},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.Unresolved,
	}
}

func initConfigCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "init-config",
		Usage:  "Write an example configuration file to the --config path",
		Action: r.InitConfig,
	}
}

// Sync runs one incremental sync.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := r.openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	engine, err := r.engine(ctx, cfg, database)
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result)
	}
	return r.writePlain("run %s %s: %d listens archived, %d unresolved over %d pages in %s\n",
		result.RunID, result.State, result.Listens, result.Unresolved, result.Pages,
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
}

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := r.openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	engine, err := r.engine(ctx, cfg, database)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if cmd.IsSet("addr") {
		addr = cmd.String("addr")
	}

	server := web.NewServer(web.ServerConfig{
		Addr:       addr,
		RateLimit:  cfg.Server.RateLimit,
		Syncer:     engine,
		Runs:       database.SyncRuns(),
		Unresolved: database.Unresolved(),
		Health:     database,
		Logger:     r.logger.With("component", "web"),
	})
	return server.Run(ctx)
}

// Tags backfills tags for untagged tracks.
func (r *Runner) Tags(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := r.openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	history, err := r.historyClient(cfg)
	if err != nil {
		return err
	}

	concurrency := cfg.Tags.Concurrency
	if cmd.IsSet("concurrency") {
		concurrency = cmd.Int("concurrency")
	}

	service := tags.NewService(history, tags.WithConcurrency(concurrency))
	backfiller := tags.NewBackfiller(database.Tags(), service,
		tags.WithBatchSize(cfg.Tags.BatchSize),
		tags.WithLogger(r.logger.With("component", "tags")),
	)

	result, err := backfiller.Run(ctx)
	if err != nil {
		return fmt.Errorf("tag backfill: %w", err)
	}
	return r.writePlain("%d tracks checked: %d tagged, %d without tags, %d failed\n",
		result.Tracks, result.Tagged, result.Untagged, result.Failed)
}

// Runs prints the sync run ledger.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := r.openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.SyncRuns().Recent(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(runs)
	}

	w := tabwriter.NewWriter(r.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATE\tPAGES\tLISTENS\tUNRESOLVED\tERROR")
	for _, run := range runs {
		errText := ""
		if run.Error != nil {
			errText = *run.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			run.StartedAt.Local().Format(time.DateTime), run.State, run.Pages, run.Listens, run.Unresolved, errText)
	}
	return w.Flush()
}

// Unresolved prints the most recent unresolved listens for manual review.
func (r *Runner) Unresolved(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := r.openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	events, err := database.Unresolved().Recent(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(events)
	}
	if len(events) == 0 {
		return r.writePlain("no unresolved listens\n")
	}

	w := tabwriter.NewWriter(r.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LISTENED\tARTIST\tTRACK\tALBUM\tREASON")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.ListenedAt.Local().Format(time.DateTime), e.ArtistName, e.TrackName, e.AlbumName, e.Reason)
	}
	return w.Flush()
}

// InitConfig writes the example configuration.
func (r *Runner) InitConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := config.WriteExample(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return nil
}
