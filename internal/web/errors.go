package web

// errors.go turns handler errors into JSON responses.
//
// The technical error is logged with the request ID; the client gets the
// user message, action and support code from core.MapError.

import (
	"errors"
	"net"
	"net/http"

	"github.com/JonMunkholm/csvsql/internal/core"
	"github.com/JonMunkholm/csvsql/internal/logging"
	"github.com/JonMunkholm/csvsql/internal/store"
	"github.com/goccy/go-json"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// respondError logs err and writes its mapped user message with the status
// that fits its type.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSON(w, r, status, ErrorResponse{
		Error:  msg.Message,
		Action: msg.Action,
		Code:   msg.Code,
	})
}

// statusFor picks the HTTP status for an error from the core and store
// taxonomies.
func statusFor(err error) int {
	var (
		ambiguous *core.AmbiguousDelimiterError
		conflict  *core.SchemaConflictError
		source    *core.SourceReadError
		row       *core.RowCoercionError
		maxBytes  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, core.ErrImportNotFound), errors.Is(err, store.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNoTable):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &ambiguous), errors.As(err, &source), errors.As(err, &row),
		errors.Is(err, core.ErrEmptySource):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error that did not come from core, such as a bad
// query parameter.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	logging.FromContext(r.Context()).Warn("request rejected",
		"path", r.URL.Path,
		"status", status,
		"code", code,
		"error", message,
	)
	writeJSON(w, r, status, ErrorResponse{Error: message, Code: code})
}

// writeJSON encodes v as the response body. Encoding errors are only logged
// since the header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// clientIP returns the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
