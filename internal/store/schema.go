package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
)

// SQLSTATE codes handled explicitly.
const (
	codeDuplicateDatabase = "42P04"
	codeInvalidCatalog    = "3D000"
)

// SchemaReport says what EnsureSchema had to create.
type SchemaReport struct {
	Database        string
	DatabaseCreated bool
	TableCreated    bool
}

// EnsureSchema creates the namespace (Postgres database or SQLite file) and
// the records table when they do not exist. It is idempotent and safe to run
// on every start.
func EnsureSchema(ctx context.Context, cfg Config) (SchemaReport, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return SchemaReport{}, newError(SchemaSetupFailed, "config", err)
	}
	if cfg.Driver == DriverSQLite {
		return ensureSQLite(ctx, cfg)
	}
	return ensurePostgres(ctx, cfg)
}

func ensurePostgres(ctx context.Context, cfg Config) (SchemaReport, error) {
	connConfig, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return SchemaReport{}, newError(ConnectionFailed, "parse url", err)
	}
	report := SchemaReport{Database: connConfig.Database}
	if report.Database == "" {
		return report, newError(SchemaSetupFailed, "parse url", errors.New("database name missing from URL"))
	}

	maintConfig := connConfig.Copy()
	maintConfig.Database = cfg.MaintenanceDB
	maint := stdlib.OpenDB(*maintConfig)
	defer maint.Close()

	if err := maint.PingContext(ctx); err != nil {
		return report, newError(ConnectionFailed, "connect maintenance db", err)
	}
	report.DatabaseCreated, err = ensureDatabase(ctx, maint, report.Database)
	if err != nil {
		return report, err
	}
	if report.DatabaseCreated {
		slog.Info("database created", "database", report.Database)
	}

	db := stdlib.OpenDB(*connConfig)
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return report, newError(ConnectionFailed, "connect", err)
	}
	report.TableCreated, err = ensureTable(ctx, db, postgresDialect{}, cfg.Table)
	return report, err
}

func ensureSQLite(ctx context.Context, cfg Config) (SchemaReport, error) {
	report := SchemaReport{Database: cfg.URL}

	_, statErr := os.Stat(cfg.URL)
	report.DatabaseCreated = errors.Is(statErr, os.ErrNotExist)

	db, err := openSQLite(cfg.URL)
	if err != nil {
		return report, newError(ConnectionFailed, "open", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return report, newError(ConnectionFailed, "ping", err)
	}
	report.TableCreated, err = ensureTable(ctx, db, sqliteDialect{}, cfg.Table)
	return report, err
}

// ensureDatabase creates name through the maintenance connection. A database
// created concurrently by someone else counts as already present.
func ensureDatabase(ctx context.Context, maint *sql.DB, name string) (bool, error) {
	exists, err := databaseExists(ctx, maint, name)
	if err != nil {
		return false, newError(SchemaSetupFailed, "check database", err)
	}
	if exists {
		return false, nil
	}

	_, err = maint.ExecContext(ctx, "CREATE DATABASE "+quote(name))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeDuplicateDatabase {
			return false, nil
		}
		return false, newError(SchemaSetupFailed, "create database", err)
	}
	return true, nil
}

func databaseExists(ctx context.Context, maint *sql.DB, name string) (bool, error) {
	var one int
	err := maint.QueryRowContext(ctx, "SELECT 1 FROM pg_catalog.pg_database WHERE datname = $1", name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func ensureTable(ctx context.Context, db *sql.DB, d dialect, table string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, d.tableExists(), table).Scan(&one)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, newError(SchemaSetupFailed, "check table", err)
	}

	if _, err := db.ExecContext(ctx, d.createTable(table)); err != nil {
		return false, newError(SchemaSetupFailed, "create table", err)
	}
	return true, nil
}

// Drop removes the namespace EnsureSchema creates, with everything in it.
// It reports whether anything was there to drop.
func Drop(ctx context.Context, cfg Config) (bool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return false, newError(DropFailed, "config", err)
	}

	if cfg.Driver == DriverSQLite {
		return dropSQLite(cfg.URL)
	}

	connConfig, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return false, newError(ConnectionFailed, "parse url", err)
	}
	if connConfig.Database == "" {
		return false, newError(DropFailed, "parse url", errors.New("database name missing from URL"))
	}
	if connConfig.Database == cfg.MaintenanceDB {
		return false, newError(DropFailed, "drop database", fmt.Errorf("refusing to drop maintenance database %q", cfg.MaintenanceDB))
	}

	maintConfig := connConfig.Copy()
	maintConfig.Database = cfg.MaintenanceDB
	maint := stdlib.OpenDB(*maintConfig)
	defer maint.Close()

	if err := maint.PingContext(ctx); err != nil {
		return false, newError(ConnectionFailed, "connect maintenance db", err)
	}
	return dropDatabase(ctx, maint, connConfig.Database)
}

// dropDatabase terminates other sessions on name and drops it.
func dropDatabase(ctx context.Context, maint *sql.DB, name string) (bool, error) {
	exists, err := databaseExists(ctx, maint, name)
	if err != nil {
		return false, newError(DropFailed, "check database", err)
	}
	if !exists {
		return false, nil
	}

	_, err = maint.ExecContext(ctx, `SELECT pg_terminate_backend(pid)
FROM pg_stat_activity
WHERE datname = $1 AND pid <> pg_backend_pid()`, name)
	if err != nil {
		return false, newError(DropFailed, "terminate sessions", err)
	}

	_, err = maint.ExecContext(ctx, "DROP DATABASE "+quote(name))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeInvalidCatalog {
			return false, nil
		}
		return false, newError(DropFailed, "drop database", err)
	}
	slog.Info("database dropped", "database", name)
	return true, nil
}

func dropSQLite(path string) (bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, newError(DropFailed, "remove file", err)
		}
	}
	return true, nil
}
