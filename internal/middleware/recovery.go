package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"

	"github.com/onnwee/forcegraph/backend/internal/apierr"
	"github.com/onnwee/forcegraph/backend/internal/errorreporting"
	"github.com/onnwee/forcegraph/backend/internal/logger"
)

// RecoverWithSentry turns a handler panic into a 500 and reports it.
func RecoverWithSentry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.ErrorContext(r.Context(), "panic recovered",
				"error", rec,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			if errorreporting.Enabled() {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(r)
				hub.Scope().SetLevel(sentry.LevelFatal)
				hub.Scope().SetTag("path", r.URL.Path)
				hub.Scope().SetTag("request_id", apierr.GetRequestID(r.Context()))
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %s", errorreporting.ScrubPII(fmt.Sprint(rec)))
				}
				hub.CaptureException(err)
			}

			apierr.WriteErrorWithContext(w, r, apierr.SystemInternal(""))
		}()
		next.ServeHTTP(w, r)
	})
}
