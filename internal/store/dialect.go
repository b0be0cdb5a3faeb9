package store

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// sqliteTimeLayout is fixed-width so text comparison orders like time.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// columns in insert and select order.
var columns = []string{
	"start_time", "end_time", "sleep_duration", "cycles",
	"deep_sleep", "time_awake", "location_hash", "comment",
}

// dialect hides the SQL differences between the supported backends.
type dialect interface {
	placeholder(n int) string
	timeArg(t time.Time) driver.Value
	createTable(table string) string
	tableExists() string
}

func dialectFor(d Driver) dialect {
	if d == DriverSQLite {
		return sqliteDialect{}
	}
	return postgresDialect{}
}

type postgresDialect struct{}

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) timeArg(t time.Time) driver.Value { return t }

func (postgresDialect) createTable(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + quote(table) + ` (
	start_time TIMESTAMP WITH TIME ZONE PRIMARY KEY,
	end_time TIMESTAMP WITH TIME ZONE NOT NULL,
	sleep_duration DOUBLE PRECISION NOT NULL,
	cycles INTEGER,
	deep_sleep DOUBLE PRECISION,
	time_awake INTEGER,
	location_hash TEXT NOT NULL,
	comment TEXT NOT NULL
)`
}

func (postgresDialect) tableExists() string {
	return `SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`
}

type sqliteDialect struct{}

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) timeArg(t time.Time) driver.Value {
	return t.UTC().Format(sqliteTimeLayout)
}

func (sqliteDialect) createTable(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + quote(table) + ` (
	start_time TEXT PRIMARY KEY,
	end_time TEXT NOT NULL,
	sleep_duration REAL NOT NULL,
	cycles INTEGER,
	deep_sleep REAL,
	time_awake INTEGER,
	location_hash TEXT NOT NULL,
	comment TEXT NOT NULL
)`
}

func (sqliteDialect) tableExists() string {
	return `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`
}

// quote sanitizes an identifier; the double-quote form is valid in both backends.
func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// queries holds the statements a Store issues, rendered once per table.
type queries struct {
	insert    string
	get       string
	listSince string
	count     string
}

func buildQueries(d dialect, table string) queries {
	t := quote(table)
	cols := strings.Join(columns, ", ")

	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = d.placeholder(i + 1)
	}

	return queries{
		insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (start_time) DO NOTHING",
			t, cols, strings.Join(marks, ", ")),
		get:       fmt.Sprintf("SELECT %s FROM %s WHERE start_time = %s", cols, t, d.placeholder(1)),
		listSince: fmt.Sprintf("SELECT %s FROM %s WHERE start_time >= %s ORDER BY start_time", cols, t, d.placeholder(1)),
		count:     fmt.Sprintf("SELECT COUNT(*) FROM %s", t),
	}
}
