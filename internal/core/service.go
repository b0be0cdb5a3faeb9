package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sleepimport/internal/archive"
	"github.com/JonMunkholm/sleepimport/internal/logging"
	"github.com/JonMunkholm/sleepimport/internal/metrics"
	"github.com/JonMunkholm/sleepimport/internal/sleep"
	"github.com/JonMunkholm/sleepimport/internal/store"
)

// Persister stores parsed records. *store.Store satisfies it.
type Persister interface {
	UpsertAll(ctx context.Context, records []sleep.Record) (store.UpsertResult, error)
}

// Options tunes a Service. The zero value is usable.
type Options struct {
	// Timeout bounds a whole RunImport call. Zero means the caller's context
	// is the only deadline.
	Timeout time.Duration

	// MaxConcurrent and MaxWait size the limiter used by network callers.
	MaxConcurrent int
	MaxWait       time.Duration
}

// Service runs imports. It holds no per-run state, so RunImport may be called
// concurrently with independent inputs.
type Service struct {
	persister Persister
	opts      Options
	limiter   *UploadLimiter
}

// NewService creates a Service that writes through p.
func NewService(p Persister, opts Options) *Service {
	return &Service{
		persister: p,
		opts:      opts,
		limiter:   NewUploadLimiter(opts.MaxConcurrent, opts.MaxWait),
	}
}

// Limiter returns the limiter callers should hold while running an import
// on behalf of a remote client.
func (s *Service) Limiter() *UploadLimiter {
	return s.limiter
}

// WaitForImports blocks until every limited import has finished.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// RunImport extracts the export from src, parses every record and stores
// the new ones.
//
// Every record is parsed before anything is written, so a bad row leaves the
// store untouched. The returned error is always an *ImportError.
func (s *Service) RunImport(ctx context.Context, src archive.Source) (*ImportResult, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	r := newRun(ctx)
	r.logger.Info("import started", "source", src.Name)

	r.advance(StageExtracting)
	payload, err := archive.Extract(ctx, src)
	if err != nil {
		return nil, r.fail(err)
	}
	defer func() {
		if err := payload.Close(); err != nil {
			r.logger.Warn("failed to clean up extraction area", "error", err)
		}
	}()

	r.advance(StageParsing)
	records, err := sleep.ParseAll(payload)
	if err != nil {
		return nil, r.fail(err)
	}
	r.logger.Debug("records parsed", "payload", payload.Name, "records", len(records))

	r.advance(StagePersisting)
	upserted, err := s.persister.UpsertAll(ctx, records)
	if err != nil {
		return nil, r.fail(err)
	}

	r.advance(StageDone)
	result := &ImportResult{
		ImportID:           r.id,
		Success:            true,
		Payload:            payload.Name,
		TotalRecords:       upserted.Attempted,
		NewRecords:         len(upserted.Inserted),
		NewRecordSummaries: make([]RecordSummary, 0, len(upserted.Inserted)),
		StartedAt:          r.started,
	}
	for _, rec := range upserted.Inserted {
		result.NewRecordSummaries = append(result.NewRecordSummaries, Summarize(rec))
	}
	result.Duration = time.Since(r.started)
	result.DurationMS = result.Duration.Milliseconds()

	metrics.RecordImport(result.Duration, result.TotalRecords, result.NewRecords, "", nil)
	r.logger.Info("import completed",
		"total_records", result.TotalRecords,
		"new_records", result.NewRecords,
		"duration", result.Duration,
	)
	return result, nil
}

// run tracks one pass through the state machine.
type run struct {
	ctx     context.Context
	id      string
	stage   Stage
	started time.Time
	logger  *slog.Logger
}

func newRun(ctx context.Context) *run {
	id := uuid.New().String()
	return &run{
		ctx:     ctx,
		id:      id,
		started: time.Now(),
		logger:  logging.WithFields(ctx, "import_id", id),
	}
}

func (r *run) advance(next Stage) {
	r.logger.Debug("import stage", "from", r.stage, "to", next)
	r.stage = next
}

// fail ends the run. When the run's deadline or cancellation caused the
// failure, the context error is attached so the kind reports it.
func (r *run) fail(err error) error {
	if ctxErr := r.ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	ie := &ImportError{
		ImportID: r.id,
		Stage:    r.stage,
		Kind:     kindOf(err),
		Err:      err,
	}
	r.stage = StageFailed

	metrics.RecordImport(time.Since(r.started), 0, 0, string(ie.Stage), err)
	r.logger.Error("import failed",
		"stage", ie.Stage,
		"kind", ie.Kind,
		"error", err,
	)
	return ie
}

// String implements fmt.Stringer for log output.
func (r *ImportResult) String() string {
	return fmt.Sprintf("import %s: %d records, %d new", r.ImportID, r.TotalRecords, r.NewRecords)
}
