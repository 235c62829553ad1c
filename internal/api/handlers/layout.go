package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/onnwee/forcegraph/backend/internal/apierr"
	"github.com/onnwee/forcegraph/backend/internal/errorreporting"
	"github.com/onnwee/forcegraph/backend/internal/graph"
	"github.com/onnwee/forcegraph/backend/internal/logger"
)

// LayoutComputer is the part of graph.Service the layout handler needs.
type LayoutComputer interface {
	ComputeLayout(ctx context.Context, req graph.LayoutRequest) (*graph.LayoutResult, error)
	Options() graph.ServiceOptions
}

// LayoutHandler serves synchronous layout requests.
type LayoutHandler struct {
	svc     LayoutComputer
	timeout time.Duration
}

// NewLayoutHandler returns a handler that gives each request at most timeout
// to settle. A zero timeout relies on the request context alone.
func NewLayoutHandler(svc LayoutComputer, timeout time.Duration) *LayoutHandler {
	return &LayoutHandler{svc: svc, timeout: timeout}
}

// PostLayout handles POST /api/layout.
func (h *LayoutHandler) PostLayout(w http.ResponseWriter, r *http.Request) {
	req, apiErr := decodeLayoutRequest(r.Body)
	if apiErr != nil {
		apierr.WriteErrorWithContext(w, r, apiErr)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.svc.ComputeLayout(ctx, req)
	if err != nil {
		writeLayoutError(w, r, err, h.svc.Options().MaxNodes)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if res.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	_ = json.NewEncoder(w).Encode(res)
}

// GetLimits handles GET /api/layout/limits so clients can size requests
// before sending them.
func (h *LayoutHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	opts := h.svc.Options()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"max_nodes":          opts.MaxNodes,
		"default_iterations": opts.DefaultIterations,
		"max_iterations":     opts.MaxIterations,
		"timeout_ms":         h.timeout.Milliseconds(),
		"theta":              opts.Simulation.Force.Theta,
	})
}

func decodeLayoutRequest(body io.Reader) (graph.LayoutRequest, *apierr.Error) {
	var req graph.LayoutRequest
	if body == nil {
		return req, apierr.ValidationInvalidJSON()
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, apierr.ValidationBodyTooLarge(tooLarge.Limit)
		}
		return req, apierr.ValidationInvalidJSON()
	}
	return req, nil
}

func writeLayoutError(w http.ResponseWriter, r *http.Request, err error, maxNodes int) {
	apiErr, clientSide := apierr.FromLayoutError(err, maxNodes)
	if clientSide {
		logger.DebugContext(r.Context(), "layout rejected", "error", err, "code", apiErr.Code)
	} else {
		logger.ErrorContext(r.Context(), "layout failed", "error", err)
		errorreporting.CaptureErrorWithContext(r.Context(), err, map[string]string{"handler": "layout"})
	}
	apierr.WriteErrorWithContext(w, r, apiErr)
}
