package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sleepimport/internal/analysis"
	"github.com/JonMunkholm/sleepimport/internal/config"
	"github.com/JonMunkholm/sleepimport/internal/core"
	"github.com/JonMunkholm/sleepimport/internal/logging"
	"github.com/JonMunkholm/sleepimport/internal/notify"
	"github.com/JonMunkholm/sleepimport/internal/store"
	"github.com/JonMunkholm/sleepimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"notifications", cfg.Notify.WebhookURL != "",
	)

	periods, err := cfg.Analysis.ReportPeriods()
	if err != nil {
		slog.Error("invalid report periods", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	storeCfg := cfg.Database.StoreConfig()

	// Create the database and table on first start
	report, err := store.EnsureSchema(ctx, storeCfg)
	if err != nil {
		slog.Error("failed to prepare database", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready",
		"name", report.Database,
		"database_created", report.DatabaseCreated,
		"table_created", report.TableCreated,
	)

	st, err := store.Open(ctx, storeCfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	service := core.NewService(st, core.Options{
		Timeout:       cfg.Upload.Timeout,
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
	})
	notifier := notify.New(cfg.Notify.NotifierConfig())

	server := web.NewServer(service, st, notifier, web.Options{
		Server:            cfg.Server,
		Upload:            cfg.Upload,
		Rate:              cfg.Rate,
		Security:          cfg.Security,
		Periods:           periods,
		ReportAfterImport: cfg.Analysis.ReportAfterImport,
		NotifyTimeout:     cfg.Notify.Timeout * time.Duration(cfg.Notify.Retries+2),
	})

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	if notifier.Enabled() {
		go analysis.NewScheduler(st, notifier, analysis.SchedulerConfig{
			Periods:  periods,
			Interval: cfg.Analysis.ReportInterval,
			Timeout:  cfg.Analysis.ReportTimeout,
		}).Start(jobCtx)
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
