// Package admin provides destructive maintenance operations for the sleep
// database.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/sleepimport/internal/store"
)

// DefaultTimeout is the maximum duration for a reset when none is configured.
const DefaultTimeout = 30 * time.Second

// Reset drops the sleep database and optionally recreates an empty one.
// This is a destructive operation - use with caution.
type Reset struct {
	Config   store.Config
	Timeout  time.Duration
	Recreate bool

	drop   func(context.Context, store.Config) (bool, error)
	ensure func(context.Context, store.Config) (store.SchemaReport, error)
}

// NewReset creates a Reset for cfg.
func NewReset(cfg store.Config, timeout time.Duration, recreate bool) *Reset {
	return &Reset{
		Config:   cfg,
		Timeout:  timeout,
		Recreate: recreate,
		drop:     store.Drop,
		ensure:   store.EnsureSchema,
	}
}

// Result reports what a reset did.
type Result struct {
	Dropped   bool // false when the database did not exist
	Recreated bool
}

type resetStep func(ctx context.Context, res *Result) error

// Run performs the reset within the configured timeout.
func (r *Reset) Run(ctx context.Context) (Result, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	steps := []resetStep{r.dropStep}
	if r.Recreate {
		steps = append(steps, r.recreateStep)
	}

	var res Result
	if err := r.runSteps(ctx, &res, steps); err != nil {
		return res, err
	}
	slog.Info("database reset", "dropped", res.Dropped, "recreated", res.Recreated)
	return res, nil
}

func (r *Reset) runSteps(ctx context.Context, res *Result, steps []resetStep) error {
	for _, step := range steps {
		if err := step(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reset) dropStep(ctx context.Context, res *Result) error {
	dropped, err := r.drop(ctx, r.Config)
	if err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	res.Dropped = dropped
	return nil
}

func (r *Reset) recreateStep(ctx context.Context, res *Result) error {
	if _, err := r.ensure(ctx, r.Config); err != nil {
		return fmt.Errorf("recreate schema: %w", err)
	}
	res.Recreated = true
	return nil
}
