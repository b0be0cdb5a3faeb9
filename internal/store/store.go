// Package store persists sleep records with start_time as the natural key.
//
// Both backends are reached through database/sql. Postgres goes through a pgx
// connection pool wrapped by pgx's stdlib adapter; SQLite uses the pure-Go
// modernc driver and is meant for local use and tests. Uniqueness is enforced
// by the table's primary key, never by a read-then-write check, so concurrent
// imports of the same export cannot produce duplicates.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/sleepimport/internal/sleep"
)

// UpsertResult reports the outcome of UpsertAll.
type UpsertResult struct {
	Attempted int
	// Inserted holds the records that were not already stored, in input order.
	Inserted []sleep.Record
}

// Store reads and writes sleep records in one table.
type Store struct {
	db     *sql.DB
	pool   *pgxpool.Pool
	driver Driver
	d      dialect
	q      queries
}

// Open connects to the configured database. EnsureSchema should have been
// called first; Open does not create anything.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, newError(ConnectionFailed, "open", err)
	}

	if cfg.Driver == DriverSQLite {
		db, err := openSQLite(cfg.URL)
		if err != nil {
			return nil, newError(ConnectionFailed, "open", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, newError(ConnectionFailed, "ping", err)
		}
		return FromDB(db, DriverSQLite, cfg.Table), nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, newError(ConnectionFailed, "parse url", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, newError(ConnectionFailed, "connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, newError(ConnectionFailed, "ping", err)
	}

	s := FromDB(stdlib.OpenDBFromPool(pool), DriverPostgres, cfg.Table)
	s.pool = pool
	return s, nil
}

// FromDB wraps an existing handle. The caller keeps ownership of schema setup.
func FromDB(db *sql.DB, driver Driver, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	d := dialectFor(driver)
	return &Store{db: db, driver: driver, d: d, q: buildQueries(d, table)}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return newError(ConnectionFailed, "ping", err)
	}
	return nil
}

// UpsertAll inserts every record whose start_time is not yet stored.
//
// All inserts run in one transaction: on any error nothing from this call is
// kept. Records that already exist are skipped without being modified. A
// duplicate start_time inside the batch counts as new only once.
func (s *Store) UpsertAll(ctx context.Context, records []sleep.Record) (UpsertResult, error) {
	result := UpsertResult{Attempted: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, newError(WriteFailed, "begin", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	inserted := make([]sleep.Record, 0, len(records))
	for i, r := range records {
		res, err := tx.ExecContext(ctx, s.q.insert, s.args(r)...)
		if err != nil {
			return UpsertResult{}, newError(WriteFailed, fmt.Sprintf("insert record %d", i+1), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return UpsertResult{}, newError(WriteFailed, "rows affected", err)
		}
		if n == 1 {
			inserted = append(inserted, r)
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, newError(WriteFailed, "commit", err)
	}

	result.Inserted = inserted
	return result, nil
}

func (s *Store) args(r sleep.Record) []any {
	return []any{
		s.d.timeArg(r.StartTime),
		s.d.timeArg(r.EndTime),
		r.SleepDuration,
		r.Cycles,
		r.DeepSleep,
		r.TimeAwake,
		r.LocationHash,
		r.Comment,
	}
}

// Get returns the record starting at start, or ErrNotFound.
func (s *Store) Get(ctx context.Context, start time.Time) (sleep.Record, error) {
	row := s.db.QueryRowContext(ctx, s.q.get, s.d.timeArg(start))
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sleep.Record{}, ErrNotFound
	}
	if err != nil {
		return sleep.Record{}, newError(ReadFailed, "get", err)
	}
	return r, nil
}

// ListSince returns records starting at or after since, oldest first.
func (s *Store) ListSince(ctx context.Context, since time.Time) ([]sleep.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.q.listSince, s.d.timeArg(since))
	if err != nil {
		return nil, newError(ReadFailed, "list", err)
	}
	defer rows.Close()

	var out []sleep.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, newError(ReadFailed, "list scan", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, newError(ReadFailed, "list", err)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, s.q.count).Scan(&n); err != nil {
		return 0, newError(ReadFailed, "count", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (sleep.Record, error) {
	var r sleep.Record
	err := sc.Scan(
		timeValue{&r.StartTime},
		timeValue{&r.EndTime},
		&r.SleepDuration,
		&r.Cycles,
		&r.DeepSleep,
		&r.TimeAwake,
		&r.LocationHash,
		&r.Comment,
	)
	return r, err
}

// timeValue scans timestamps from either backend into UTC.
type timeValue struct {
	t *time.Time
}

func (v timeValue) Scan(src any) error {
	switch s := src.(type) {
	case time.Time:
		*v.t = s.UTC()
	case string:
		return v.parse(s)
	case []byte:
		return v.parse(string(s))
	case nil:
		*v.t = time.Time{}
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
	return nil
}

func (v timeValue) parse(s string) error {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse stored time %q: %w", s, err)
		}
	}
	*v.t = t.UTC()
	return nil
}

func openSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	return db, nil
}
