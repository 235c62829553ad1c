package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

var startedAt = time.Now()

// Health reports liveness along with process uptime and the worker budget the
// force engine can draw on.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
		"gomaxprocs":     runtime.GOMAXPROCS(0),
	})
}
