package analysis

// scheduler.go posts the sleep quantity report on a fixed interval.
//
// The scheduler is long-running and context-aware for graceful shutdown. A
// failed run is logged and retried on the next tick; it never stops the
// server.

import (
	"context"
	"log/slog"
	"time"
)

// Sender delivers a rendered report. *notify.Notifier satisfies it.
type Sender interface {
	Send(ctx context.Context, content string) error
}

// SchedulerConfig holds configuration for the report scheduler.
type SchedulerConfig struct {
	Periods  []Period      // Windows to report (default: DefaultPeriods)
	Interval time.Duration // How often to run; zero disables the scheduler
	Timeout  time.Duration // Bound for one run (default: 30s)
}

// Scheduler periodically analyzes stored sessions and sends the report.
type Scheduler struct {
	src  Lister
	send Sender
	cfg  SchedulerConfig
	now  func() time.Time
}

// NewScheduler creates a scheduler reading from src and delivering to send.
func NewScheduler(src Lister, send Sender, cfg SchedulerConfig) *Scheduler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Scheduler{src: src, send: send, cfg: cfg, now: time.Now}
}

// Start runs a report immediately, then every Interval, until ctx is
// cancelled. It returns at once when Interval is zero.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		slog.Info("report scheduler disabled")
		return
	}
	slog.Info("report scheduler started", "interval", s.cfg.Interval)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("report scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one analyze and send cycle and reports whether it
// succeeded.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	a, err := Run(ctx, s.src, s.now(), s.cfg.Periods)
	if err != nil {
		slog.Error("report analysis failed", "error", err)
		return false
	}
	if err := s.send.Send(ctx, Report(a)); err != nil {
		slog.Error("report delivery failed", "error", err)
		return false
	}

	slog.Info("report sent", "windows", len(a.Windows), "duration_ms", time.Since(start).Milliseconds())
	return true
}
