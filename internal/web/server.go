// Package web provides the HTTP server that accepts sleep export uploads.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/sleepimport/internal/analysis"
	"github.com/JonMunkholm/sleepimport/internal/archive"
	"github.com/JonMunkholm/sleepimport/internal/config"
	"github.com/JonMunkholm/sleepimport/internal/core"
	sleepmw "github.com/JonMunkholm/sleepimport/internal/web/middleware"
)

// Importer runs imports. *core.Service satisfies it.
type Importer interface {
	RunImport(ctx context.Context, src archive.Source) (*core.ImportResult, error)
	Limiter() *core.UploadLimiter
}

// Records gives read access to stored sessions. *store.Store satisfies it.
type Records interface {
	analysis.Lister
	Ping(ctx context.Context) error
}

// Notifier relays messages to the notification channel. *notify.Notifier
// satisfies it.
type Notifier interface {
	Send(ctx context.Context, content string) error
	State() string
}

// Options carries the configuration sections the server uses.
type Options struct {
	Server            config.ServerConfig
	Upload            config.UploadConfig
	Rate              config.RateLimitConfig
	Security          config.SecurityConfig
	Periods           []analysis.Period
	ReportAfterImport bool
	NotifyTimeout     time.Duration
}

// Server is the HTTP server for the importer.
type Server struct {
	importer Importer
	records  Records
	notifier Notifier
	opts     Options
	router   *chi.Mux
	server   *http.Server
	now      func() time.Time

	// pending tracks notifications still being delivered.
	pending sync.WaitGroup
}

// NewServer creates a new Server instance.
func NewServer(importer Importer, records Records, notifier Notifier, opts Options) *Server {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = time.Minute
	}
	s := &Server{
		importer: importer,
		records:  records,
		notifier: notifier,
		opts:     opts,
		router:   chi.NewRouter(),
		now:      time.Now,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(sleepmw.TrustedRealIP(s.opts.Security.TrustedProxies))
	s.router.Use(sleepmw.Logger)
	s.router.Use(middleware.Recoverer)

	// Security hardening
	s.router.Use(securityHeaders(s.opts.Security.EnableCSP))

	if s.opts.Rate.Enabled {
		s.router.Use(s.rateLimit(s.opts.Rate.RequestsPerMinute))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Upload runs under the import timeout rather than the request timeout.
	s.router.Group(func(r chi.Router) {
		if s.opts.Rate.Enabled {
			r.Use(s.rateLimit(s.opts.Rate.UploadLimit))
		}
		r.Post("/upload", s.handleUpload)
	})

	s.router.Group(func(r chi.Router) {
		if s.opts.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.opts.Server.RequestTimeout))
		}
		r.Get("/", s.handleStatusPage)
		r.Get("/report", s.handleReport)
		r.Get("/healthz", s.handleHealth)
		r.Handle("/metrics", promhttp.Handler())
	})
}

func (s *Server) rateLimit(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			s.respondError(w, r, errRateLimited, http.StatusTooManyRequests)
		}),
	)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.Server.ReadTimeout,
		WriteTimeout: s.opts.Server.WriteTimeout,
		IdleTimeout:  s.opts.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for imports and pending
// notifications until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	if err := s.importer.Limiter().WaitForDrain(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			// The status page is self-contained: inline styles, no scripts.
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; img-src 'self' data:")
			}

			// Control referrer information
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
