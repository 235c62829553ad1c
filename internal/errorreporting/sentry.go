// Package errorreporting forwards unexpected failures to Sentry with PII
// removed.
package errorreporting

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)["\s:=]+[a-zA-Z0-9_-]{16,}`),
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
}

// Options configures the Sentry client. An empty DSN disables reporting.
type Options struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

var enabled atomic.Bool

// Init starts the Sentry client.
func Init(opts Options) error {
	if opts.DSN == "" {
		enabled.Store(false)
		return nil
	}
	if opts.Release == "" {
		opts.Release = getRelease()
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Release:          opts.Release,
		SampleRate:       opts.SampleRate,
		BeforeSend:       beforeSend,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("initialize sentry: %w", err)
	}
	enabled.Store(true)
	return nil
}

func getRelease() string {
	if v := os.Getenv("SERVICE_VERSION"); v != "" {
		return v
	}
	return "dev"
}

func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	for i := range event.Exception {
		event.Exception[i].Value = ScrubPII(event.Exception[i].Value)
	}
	event.Message = ScrubPII(event.Message)
	for k, v := range event.Extra {
		if s, ok := v.(string); ok {
			event.Extra[k] = ScrubPII(s)
		}
	}
	if event.Request != nil {
		for _, h := range []string{"Authorization", "Cookie", "X-Api-Key"} {
			delete(event.Request.Headers, h)
		}
		event.Request.QueryString = ""
	}
	return event
}

// ScrubPII replaces emails, bearer tokens, API keys and IPv4 addresses.
func ScrubPII(text string) string {
	for _, p := range piiPatterns {
		text = p.ReplaceAllString(text, "[REDACTED]")
	}
	return text
}

// CaptureError reports err. Nil errors are ignored.
func CaptureError(err error) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.CaptureException(err)
}

// CaptureErrorWithContext reports err on the hub attached to ctx, if any,
// with the given tags.
func CaptureErrorWithContext(ctx context.Context, err error, tags map[string]string) {
	if err == nil || !enabled.Load() {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// Flush blocks until queued events are sent or timeout elapses.
func Flush(timeout time.Duration) bool {
	if !enabled.Load() {
		return true
	}
	return sentry.Flush(timeout)
}

// Enabled reports whether Init configured a client.
func Enabled() bool { return enabled.Load() }
