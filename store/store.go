// Package store is the SQLite persistence layer: the summary, detail,
// geo-cache, and station tables for one city, addressed by the city
// identifier. Writes are idempotent so a crash between batch commits
// re-processes at most one uncommitted batch safely.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, letting stage code run
// the same statements inside or outside a batch transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the city database.
type Store struct {
	DB   *sql.DB
	city string
}

// Open opens (creating if needed) the SQLite database at path with
// production pragmas applied and binds it to the given city identifier.
func Open(path, city string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Store{DB: db, city: city}, nil
}

// OpenMemory opens an in-memory store for tests. A single connection is
// enforced because every connection to ":memory:" is a separate database.
func OpenMemory(city string) (*Store, error) {
	s, err := Open(":memory:", city)
	if err != nil {
		return nil, err
	}
	s.DB.SetMaxOpenConns(1)
	return s, nil
}

// Begin starts a batch transaction.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	return tx, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (s *Store) summaryTable() string { return "`" + s.city + "`" }
func (s *Store) detailTable() string  { return "`" + s.city + "-detail`" }
func (s *Store) geoTable() string     { return "`" + s.city + "-community`" }
func (s *Store) stationTable() string { return "`" + s.city + "-metro`" }
