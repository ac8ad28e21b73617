// Package db provides PostgreSQL storage for the scrobble archive.
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Common errors.
var (
	ErrNotFound = errors.New("not found")
)

// DBTX is the query surface shared by the pool and an open transaction,
// so repositories work the same inside and outside a page commit.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool and creates any missing tables.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &PersistenceError{Op: "ping", Err: err}
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, &PersistenceError{Op: "create schema", Err: err}
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Artists returns an ArtistRepository.
func (db *DB) Artists() *ArtistRepository {
	return &ArtistRepository{q: db.pool}
}

// Albums returns an AlbumRepository.
func (db *DB) Albums() *AlbumRepository {
	return &AlbumRepository{q: db.pool}
}

// Tracks returns a TrackRepository.
func (db *DB) Tracks() *TrackRepository {
	return &TrackRepository{q: db.pool}
}

// Listens returns a ListenRepository.
func (db *DB) Listens() *ListenRepository {
	return &ListenRepository{q: db.pool}
}

// Unresolved returns an UnresolvedRepository.
func (db *DB) Unresolved() *UnresolvedRepository {
	return &UnresolvedRepository{q: db.pool}
}

// SyncRuns returns a SyncRunRepository.
func (db *DB) SyncRuns() *SyncRunRepository {
	return &SyncRunRepository{q: db.pool}
}

// Tags returns a TagRepository.
func (db *DB) Tags() *TagRepository {
	return &TagRepository{q: db.pool}
}

// Watermark returns the timestamp of the newest archived listen, or the Unix
// epoch when nothing has been archived yet.
func (db *DB) Watermark(ctx context.Context) (time.Time, error) {
	latest, err := db.Listens().Latest(ctx)
	if errors.Is(err, ErrNotFound) {
		return time.Unix(0, 0).UTC(), nil
	}
	if err != nil {
		return time.Time{}, &PersistenceError{Op: "read watermark", Err: err}
	}
	return latest, nil
}

// InPage runs fn inside one transaction. Everything fn writes through the Tx
// is committed together, or not at all when fn or the commit fails.
func (db *DB) InPage(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return &PersistenceError{Op: "begin page", Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "commit page", Err: err}
	}
	return nil
}
