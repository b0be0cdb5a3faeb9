package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as coded user-friendly messages with an action
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusCode)
//  3. Error is mapped via core.MapError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is returned as JSON, or as plain text to browsers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/sleepimport/internal/core"
	"github.com/JonMunkholm/sleepimport/internal/logging"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Action   string `json:"action,omitempty"`
	Code     string `json:"code"`
	ImportID string `json:"import_id,omitempty"`
	Stage    string `json:"stage,omitempty"`
}

// respondError logs the technical error server-side and returns the mapped
// user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if prefersText(r) {
		http.Error(w, core.FormatUserError(err), statusCode)
		return
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	var ie *core.ImportError
	if errors.As(err, &ie) {
		resp.ImportID = ie.ImportID
		resp.Stage = string(ie.Stage)
	}
	writeJSON(w, statusCode, resp)
}

// prefersText reports whether the client asked for plain text or HTML and not
// JSON, as a browser or curl -H 'Accept: text/plain' would.
func prefersText(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return false
	}
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "text/plain")
}
