package store

import (
	"fmt"
	"time"
)

// Driver selects the database backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultTable         = "sleep_records"
	DefaultMaintenanceDB = "postgres"
)

// Config describes where sleep records live. It is built by the caller,
// usually from config.DatabaseConfig.
type Config struct {
	Driver Driver

	// URL is a PostgreSQL connection string, or a file path for SQLite.
	// For Postgres the database named in the URL is the namespace that
	// EnsureSchema creates when missing.
	URL string

	// MaintenanceDB is the Postgres database used to check for and create
	// the target database.
	MaintenanceDB string

	Table string

	// Pool settings (Postgres only).
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	if c.MaintenanceDB == "" {
		c.MaintenanceDB = DefaultMaintenanceDB
	}
	if c.Table == "" {
		c.Table = DefaultTable
	}
	return c
}

func (c Config) validate() error {
	if c.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	switch c.Driver {
	case DriverPostgres, DriverSQLite:
		return nil
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
}
