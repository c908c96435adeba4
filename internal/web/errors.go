package web

// errors.go renders every failure the same way: the technical error is
// logged with the request id, and the client receives core.MapError's
// user message as JSON, an HTMX fragment or plain text.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/JonMunkholm/ingest/internal/filegate"
	"github.com/JonMunkholm/ingest/internal/logging"
	"github.com/JonMunkholm/ingest/internal/spreadsheet"
	"github.com/JonMunkholm/ingest/internal/web/views"
)

// ErrorResponse is the JSON body of a failed API request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	errNoFile     = errors.New("no file provided")
	errBadRequest = errors.New("malformed request")
)

type statusRule struct {
	target error
	status int
}

// statusRules is checked in order; the first errors.Is match wins.
var statusRules = []statusRule{
	{errNoFile, http.StatusBadRequest},
	{errBadRequest, http.StatusBadRequest},
	{filegate.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{filegate.ErrInvalidFileType, http.StatusUnsupportedMediaType},
	{filegate.ErrInvalidResourceName, http.StatusBadRequest},
	{filegate.ErrFileNotFound, http.StatusNotFound},
	{core.ErrUnknownTable, http.StatusNotFound},
	{spreadsheet.ErrMalformedSpreadsheet, http.StatusUnprocessableEntity},
	{core.ErrInvalidMapping, http.StatusUnprocessableEntity},
	{core.ErrMissingColumn, http.StatusUnprocessableEntity},
	{core.ErrPartialImport, http.StatusUnprocessableEntity},
	{core.ErrPlanExecuted, http.StatusConflict},
	{core.ErrTooManyUploads, http.StatusServiceUnavailable},
	{core.ErrStorageUnavailable, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
	{context.Canceled, http.StatusRequestTimeout},
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	for _, rule := range statusRules {
		if errors.Is(err, rule.target) {
			return rule.status
		}
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)
	if status == http.StatusRequestEntityTooLarge {
		msg = core.MapError(filegate.ErrFileTooLarge)
	}

	log := logging.FromContext(r.Context())
	level := log.Warn
	if status >= http.StatusInternalServerError {
		level = log.Error
	}
	level("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := views.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
			log.Warn("render error fragment failed", "error", err)
		}
	case wantsJSON(r):
		writeJSON(w, r, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
	default:
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client asked for JSON. API routes default
// to JSON.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
