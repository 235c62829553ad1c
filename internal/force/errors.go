package force

import "errors"

var (
	// ErrDisposed is returned by every Calculator method after Dispose.
	ErrDisposed = errors.New("force: use of disposed calculator")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("force: invalid config")
)
