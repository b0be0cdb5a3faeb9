package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"

	"github.com/JonMunkholm/sleepimport/internal/analysis"
	"github.com/JonMunkholm/sleepimport/internal/archive"
	"github.com/JonMunkholm/sleepimport/internal/core"
	"github.com/JonMunkholm/sleepimport/internal/logging"
	"github.com/JonMunkholm/sleepimport/internal/notify"
)

// archiveMediaTypes are the Content-Type values accepted by POST /upload.
// octet-stream is allowed because many HTTP clients send it for any file;
// the extractor decides whether the bytes are an archive.
var archiveMediaTypes = map[string]bool{
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/gzip":             true,
	"application/x-gzip":           true,
	"application/x-tar":            true,
	"application/x-7z-compressed":  true,
	"application/octet-stream":     true,
}

// handleUpload imports the archive sent as the raw request body.
//
// 400 unsupported Content-Type or empty body, 413 body over the size limit,
// 503 all import slots busy, 500 import failed, 200 with the ImportResult.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !archiveMediaTypes[mediaType] {
		s.respondError(w, r, fmt.Errorf("%w: %q", core.ErrUnsupportedContentType, r.Header.Get("Content-Type")), http.StatusBadRequest)
		return
	}

	limiter := s.importer.Limiter()
	if err := limiter.Acquire(r.Context()); err != nil {
		w.Header().Set("Retry-After", "30")
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	defer limiter.Release()

	path, size, err := s.spoolBody(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			s.respondError(w, r, fmt.Errorf("%w: limit is %d bytes", core.ErrFileTooLarge, maxErr.Limit), http.StatusRequestEntityTooLarge)
		case errors.Is(err, core.ErrEmptyUpload):
			s.respondError(w, r, err, http.StatusBadRequest)
		default:
			s.respondError(w, r, err, http.StatusInternalServerError)
		}
		return
	}
	defer os.Remove(path)

	logger := logging.FromContext(r.Context())
	logger.Info("upload received", "bytes", size, "content_type", mediaType)

	src := archive.FromPath(path)
	if name := uploadName(r); name != "" {
		src.Name = name
	}

	// The body is already spooled, so a client that disconnects now does not
	// abort the import; the service timeout still bounds it.
	result, err := s.importer.RunImport(context.WithoutCancel(r.Context()), src)
	if err != nil {
		s.notifyAsync(r.Context(), notify.FailureMessage(err), false)
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	s.notifyAsync(r.Context(), notify.ImportMessage(result), s.opts.ReportAfterImport)
	writeJSON(w, http.StatusOK, result)
}

// spoolBody copies the request body to a temporary file so that archive
// formats needing random access can be read without holding the upload in
// memory. The caller removes the file.
func (s *Server) spoolBody(w http.ResponseWriter, r *http.Request) (string, int64, error) {
	body := io.Reader(r.Body)
	if s.opts.Upload.MaxFileSize > 0 {
		body = http.MaxBytesReader(w, r.Body, s.opts.Upload.MaxFileSize)
	}

	f, err := os.CreateTemp("", "sleep-upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}

	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = core.ErrEmptyUpload
	}
	if err != nil {
		os.Remove(f.Name())
		return "", 0, err
	}
	return f.Name(), n, nil
}

// uploadName is a format hint for the extractor taken from the client's
// file name, if it sent one.
func uploadName(r *http.Request) string {
	if cd := r.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	return ""
}

// notifyAsync delivers content in the background so the upload response does
// not wait on the webhook. With withReport the sleep report follows it.
func (s *Server) notifyAsync(parent context.Context, content string, withReport bool) {
	if s.notifier == nil {
		return
	}
	logger := logging.FromContext(parent)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.opts.NotifyTimeout)
		defer cancel()

		if err := s.notifier.Send(ctx, content); err != nil {
			logger.Warn("notification failed", "error", err)
			return
		}
		if !withReport {
			return
		}
		a, err := analysis.Run(ctx, s.records, s.now(), s.opts.Periods)
		if err != nil {
			logger.Warn("report after import failed", "error", err)
			return
		}
		if err := s.notifier.Send(ctx, analysis.Report(a)); err != nil {
			logger.Warn("report delivery failed", "error", err)
		}
	}()
}
