package apierrors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/isafetyrobo/safety-agent/internal/logger"
)

type RequestError interface {
	Error() string
	ExternalError() string
	GetStatusCode() int
}

type errWithStatus struct {
	err        error
	external   string
	statusCode int
}

func (e *errWithStatus) Error() string {
	return e.err.Error()
}

func (e *errWithStatus) Unwrap() error {
	return e.err
}

func (e *errWithStatus) ExternalError() string {
	return e.external
}

func (e *errWithStatus) GetStatusCode() int {
	return e.statusCode
}

// NewErrInternal hides err from the client behind a generic message.
func NewErrInternal(err error) RequestError {
	return &errWithStatus{
		err:        err,
		external:   "An internal error occurred.",
		statusCode: http.StatusInternalServerError,
	}
}

// NewErrPassThroughToClient shows err to the client with the given status.
func NewErrPassThroughToClient(err error, statusCode int) RequestError {
	return &errWithStatus{
		err:        err,
		external:   err.Error(),
		statusCode: statusCode,
	}
}

func NewErrNotFound(err error) RequestError {
	return NewErrPassThroughToClient(err, http.StatusNotFound)
}

func NewErrBadGateway(err error) RequestError {
	return &errWithStatus{
		err:        err,
		external:   fmt.Sprintf("upstream request failed: %v", err),
		statusCode: http.StatusBadGateway,
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// HandleAPIError logs err and, if writeErr is set, writes it as
// {"error": ..., "status": ...}.
func HandleAPIError(l *logger.Logger, w http.ResponseWriter, r *http.Request, err RequestError, writeErr bool) {
	status := err.GetStatusCode()

	event := l.Warn()

	if status >= http.StatusInternalServerError {
		event = l.Error()
	}

	event.Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msgf("API error: %v", err)

	if !writeErr {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(&errorResponse{
		Error:  err.ExternalError(),
		Status: status,
	})
}
