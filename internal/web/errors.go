package web

// errors.go provides unified error responses for the API.
//
// Every error is logged with its technical detail and the request id, then
// returned as a core.UserMessage so clients see the same codes the CLI
// prints.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/rosterload/internal/core"
	"github.com/JonMunkholm/rosterload/internal/logging"
)

var (
	errNoFile   = errors.New("no file provided")
	errTooLarge = errors.New("file too large")
)

// ErrorResponse is the JSON body of an error. Error repeats Message for
// clients that only read one field.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user message with a status derived
// from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var (
		shape *core.InputShapeError
		parse *core.ParseError
	)
	switch {
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrImportNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrImportInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.As(err, &shape), errors.As(err, &parse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
