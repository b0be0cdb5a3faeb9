package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sleepimport/internal/sleep"
)

func sqliteConfig(t *testing.T) Config {
	t.Helper()
	return Config{Driver: DriverSQLite, URL: filepath.Join(t.TempDir(), "data", "sleep.db")}
}

func openSQLiteStore(t *testing.T) (*Store, Config) {
	t.Helper()
	cfg := sqliteConfig(t)
	_, err := EnsureSchema(context.Background(), cfg)
	require.NoError(t, err)

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, cfg
}

func TestEnsureSchema_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)

	report, err := EnsureSchema(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, report.DatabaseCreated)
	assert.True(t, report.TableCreated)

	report, err = EnsureSchema(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, report.DatabaseCreated, "second run must find the database")
	assert.False(t, report.TableCreated, "second run must find the table")
}

func TestUpsertAll_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := openSQLiteStore(t)

	prague, err := time.LoadLocation("Europe/Prague")
	require.NoError(t, err)

	full := sample(time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC))
	full.EndTime = full.EndTime.In(prague)
	sparse := sleep.Record{
		StartTime:     time.Date(2023, 11, 15, 21, 0, 0, 0, time.UTC),
		EndTime:       time.Date(2023, 11, 16, 5, 0, 0, 0, time.UTC),
		SleepDuration: 8,
		LocationHash:  "",
		Comment:       "",
	}

	res, err := s.UpsertAll(ctx, []sleep.Record{full, sparse})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempted)
	require.Len(t, res.Inserted, 2)

	for _, want := range []sleep.Record{full, sparse} {
		got, err := s.Get(ctx, want.StartTime)
		require.NoError(t, err)
		assert.True(t, got.StartTime.Equal(want.StartTime), "start %v != %v", got.StartTime, want.StartTime)
		assert.True(t, got.EndTime.Equal(want.EndTime), "end %v != %v", got.EndTime, want.EndTime)
		assert.Equal(t, want.SleepDuration, got.SleepDuration)
		assert.Equal(t, want.Cycles, got.Cycles)
		assert.Equal(t, want.DeepSleep, got.DeepSleep)
		assert.Equal(t, want.TimeAwake, got.TimeAwake)
		assert.Equal(t, want.LocationHash, got.LocationHash)
		assert.Equal(t, want.Comment, got.Comment)
	}
}

func TestUpsertAll_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := openSQLiteStore(t)

	base := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	batch := []sleep.Record{sample(base), sample(base.Add(24 * time.Hour)), sample(base.Add(48 * time.Hour))}

	first, err := s.UpsertAll(ctx, batch)
	require.NoError(t, err)
	assert.Len(t, first.Inserted, 3)

	before, err := s.Count(ctx)
	require.NoError(t, err)

	// Same start times with different payloads: stored rows must not change.
	changed := make([]sleep.Record, len(batch))
	copy(changed, batch)
	for i := range changed {
		changed[i].Comment = "edited"
	}

	second, err := s.UpsertAll(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Attempted)
	assert.Empty(t, second.Inserted)

	after, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	got, err := s.Get(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, "#home", got.Comment)
}

func TestUpsertAll_DuplicateInsideBatch(t *testing.T) {
	ctx := context.Background()
	s, _ := openSQLiteStore(t)

	r := sample(time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC))
	res, err := s.UpsertAll(ctx, []sleep.Record{r, r})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempted)
	assert.Len(t, res.Inserted, 1)
}

func TestUpsertAll_CancelledContextWritesNothing(t *testing.T) {
	s, _ := openSQLiteStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	base := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	_, err := s.UpsertAll(ctx, []sleep.Record{sample(base), sample(base.Add(time.Hour))})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteFailed)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListSince(t *testing.T) {
	ctx := context.Background()
	s, _ := openSQLiteStore(t)

	base := time.Date(2023, 11, 10, 22, 0, 0, 0, time.UTC)
	var batch []sleep.Record
	for i := 4; i >= 0; i-- {
		batch = append(batch, sample(base.Add(time.Duration(i)*24*time.Hour)))
	}
	_, err := s.UpsertAll(ctx, batch)
	require.NoError(t, err)

	got, err := s.ListSince(ctx, base.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].StartTime.Before(got[i].StartTime), "results must be ordered by start_time")
	}
	assert.True(t, got[0].StartTime.Equal(base.Add(48*time.Hour)))
}

func TestGet_NotFound(t *testing.T) {
	s, _ := openSQLiteStore(t)

	_, err := s.Get(context.Background(), time.Unix(0, 0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOptionalFieldsStayNull(t *testing.T) {
	ctx := context.Background()
	s, _ := openSQLiteStore(t)

	r := sample(time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC))
	r.Cycles = pgtype.Int4{}
	r.DeepSleep = pgtype.Float8{}
	_, err := s.UpsertAll(ctx, []sleep.Record{r})
	require.NoError(t, err)

	got, err := s.Get(ctx, r.StartTime)
	require.NoError(t, err)
	assert.False(t, got.Cycles.Valid)
	assert.False(t, got.DeepSleep.Valid)
	assert.True(t, got.TimeAwake.Valid)
}

func TestDrop_SQLite(t *testing.T) {
	ctx := context.Background()
	s, cfg := openSQLiteStore(t)
	require.NoError(t, s.Close())

	dropped, err := Drop(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, dropped)

	_, err = os.Stat(cfg.URL)
	assert.True(t, os.IsNotExist(err), "database file should be gone")

	dropped, err = Drop(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, dropped)
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", URL: "x"})
	assert.ErrorIs(t, err, ErrConnectionFailed)

	_, err = Open(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrConnectionFailed)
}
