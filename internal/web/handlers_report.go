package web

import (
	"bytes"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/JonMunkholm/sleepimport/internal/analysis"
	"github.com/JonMunkholm/sleepimport/internal/core"
	"github.com/JonMunkholm/sleepimport/internal/logging"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// handleReport serves the sleep quantity report.
// ?format=json returns the analysis, ?format=markdown the markdown table,
// anything else the plain text report sent to the webhook.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	a, err := analysis.Run(r.Context(), s.records, s.now(), s.opts.Periods)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	switch r.URL.Query().Get("format") {
	case "json":
		writeJSON(w, http.StatusOK, a)
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(analysis.Markdown(a)))
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(analysis.Report(a)))
	}
}

// handleStatusPage renders the HTML overview: the report table, import slots
// and notifier state.
func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	data := statusData{
		Limiter:  s.importer.Limiter().Status(),
		Notifier: "disabled",
	}
	if s.notifier != nil {
		data.Notifier = s.notifier.State()
	}

	a, err := analysis.Run(r.Context(), s.records, s.now(), s.opts.Periods)
	if err != nil {
		logging.FromContext(r.Context()).Error("status page analysis failed", "error", err)
		data.ReportError = "Stored sessions could not be read."
	} else {
		var buf bytes.Buffer
		if err := markdown.Convert([]byte(analysis.Markdown(a)), &buf); err != nil {
			s.respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		data.ReportHTML = buf.String()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPage(data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render status page", "error", err)
	}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string                   `json:"status"`
	Database string                   `json:"database"`
	Notifier string                   `json:"notifier"`
	Imports  core.UploadLimiterStatus `json:"imports"`
}

// handleHealth reports 200 when the database answers and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Database: "ok",
		Notifier: "disabled",
		Imports:  s.importer.Limiter().Status(),
	}
	if s.notifier != nil {
		resp.Notifier = s.notifier.State()
	}

	status := http.StatusOK
	if err := s.records.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		resp.Status, resp.Database = "degraded", "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
