package quadtree

import "errors"

var (
	// ErrDisposed is returned by every operation on a tree after Dispose.
	ErrDisposed = errors.New("quadtree: use of disposed tree")
	// ErrInvalidBoundary is returned when the root boundary has a non-positive or
	// non-finite width, or a non-finite center.
	ErrInvalidBoundary = errors.New("quadtree: invalid boundary")
	// ErrInvalidOption is returned for negative depth or size caps.
	ErrInvalidOption = errors.New("quadtree: invalid option")
	// ErrInvalidPoint is returned for points with NaN/Inf coordinates or a
	// negative mass.
	ErrInvalidPoint = errors.New("quadtree: invalid point")
)
