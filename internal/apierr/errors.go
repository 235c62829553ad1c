// Package apierr renders structured JSON error responses.
package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onnwee/forcegraph/backend/internal/force"
	"github.com/onnwee/forcegraph/backend/internal/graph"
	"github.com/onnwee/forcegraph/backend/internal/logger"
	"github.com/onnwee/forcegraph/backend/internal/quadtree"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	// LAYOUT_
	ErrLayoutTooLarge      ErrorCode = "LAYOUT_TOO_LARGE"
	ErrLayoutInvalidGraph  ErrorCode = "LAYOUT_INVALID_GRAPH"
	ErrLayoutInvalidParams ErrorCode = "LAYOUT_INVALID_PARAMS"
	ErrLayoutTimeout       ErrorCode = "LAYOUT_TIMEOUT"
	ErrLayoutCancelled     ErrorCode = "LAYOUT_CANCELLED"
	ErrLayoutFailed        ErrorCode = "LAYOUT_FAILED"

	// VALIDATION_
	ErrValidationInvalidJSON  ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationBodyTooLarge ErrorCode = "VALIDATION_BODY_TOO_LARGE"
	ErrValidationInvalidValue ErrorCode = "VALIDATION_INVALID_VALUE"

	// SYSTEM_
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"

	// RESOURCE_
	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// RATE_LIMIT_
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error is the body of every non-2xx API response.
type Error struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	status    int
}

// ErrorResponse wraps Error as {"error": {...}}.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

func New(code ErrorCode, message string, status int) *Error {
	return &Error{Code: code, Message: message, status: status}
}

func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func (e *Error) WithRequestID(id string) *Error {
	e.RequestID = id
	return e
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// Status is the HTTP status code the error is written with.
func (e *Error) Status() int { return e.status }

// WriteError writes err as JSON with its status code.
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{Error: err}); encErr != nil {
		logger.WithComponent("apierr").Warn("failed to write error body", "error", encErr)
	}
}

// GetRequestID returns the request id stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(logger.RequestIDKey).(string)
	return id
}

// WriteErrorWithContext is WriteError with the request id filled in.
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if id := GetRequestID(r.Context()); id != "" {
		err = err.WithRequestID(id)
	}
	WriteError(w, err)
}

func orDefault(msg, def string) string {
	if msg == "" {
		return def
	}
	return msg
}

func LayoutTooLarge(limit int) *Error {
	return New(ErrLayoutTooLarge, "Graph has too many nodes for layout", http.StatusRequestEntityTooLarge).
		WithDetails(map[string]any{"max_nodes": limit})
}

func LayoutInvalidGraph(message string) *Error {
	return New(ErrLayoutInvalidGraph, orDefault(message, "Invalid graph"), http.StatusUnprocessableEntity)
}

func LayoutInvalidParams(message string) *Error {
	return New(ErrLayoutInvalidParams, orDefault(message, "Invalid layout parameters"), http.StatusBadRequest)
}

func LayoutTimeout() *Error {
	return New(ErrLayoutTimeout, "Layout computation timed out", http.StatusGatewayTimeout)
}

func LayoutCancelled() *Error {
	// 499 is the de facto "client closed request" status.
	return New(ErrLayoutCancelled, "Layout computation cancelled", 499)
}

func LayoutFailed(message string) *Error {
	return New(ErrLayoutFailed, orDefault(message, "Layout computation failed"), http.StatusInternalServerError)
}

func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

func ValidationBodyTooLarge(limit int64) *Error {
	return New(ErrValidationBodyTooLarge, "Request body too large", http.StatusRequestEntityTooLarge).
		WithDetails(map[string]any{"max_bytes": limit})
}

func ValidationInvalidValue(field, message string) *Error {
	return New(ErrValidationInvalidValue, orDefault(message, "Invalid value for field: "+field), http.StatusBadRequest).
		WithDetails(map[string]any{"field": field})
}

func SystemInternal(message string) *Error {
	return New(ErrSystemInternal, orDefault(message, "Internal server error"), http.StatusInternalServerError)
}

func SystemUnavailable(message string) *Error {
	return New(ErrSystemUnavailable, orDefault(message, "Service unavailable"), http.StatusServiceUnavailable)
}

func ResourceNotFound(resource string) *Error {
	return New(ErrResourceNotFound, resource+" not found", http.StatusNotFound).
		WithDetails(map[string]any{"resource_type": resource})
}

func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// FromLayoutError maps errors returned by the layout service onto API errors.
// The second result is false for errors that are the server's fault.
func FromLayoutError(err error, maxNodes int) (*Error, bool) {
	switch {
	case errors.Is(err, graph.ErrTooManyNodes):
		return LayoutTooLarge(maxNodes), true
	case errors.Is(err, graph.ErrDuplicateNode),
		errors.Is(err, graph.ErrUnknownNode),
		errors.Is(err, graph.ErrEmptyNodeID),
		errors.Is(err, graph.ErrInvalidPosition),
		errors.Is(err, quadtree.ErrInvalidPoint):
		return LayoutInvalidGraph(err.Error()), true
	case errors.Is(err, graph.ErrInvalidConfig),
		errors.Is(err, force.ErrInvalidConfig),
		errors.Is(err, quadtree.ErrInvalidOption):
		return LayoutInvalidParams(err.Error()), true
	case errors.Is(err, context.DeadlineExceeded):
		return LayoutTimeout(), true
	case errors.Is(err, context.Canceled):
		return LayoutCancelled(), true
	}
	return LayoutFailed(""), false
}
