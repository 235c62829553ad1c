package force

import (
	"math"

	"github.com/onnwee/forcegraph/backend/internal/quadtree"
)

// Force is a 2-D force or velocity delta.
type Force struct {
	FX float64 `json:"fx"`
	FY float64 `json:"fy"`
}

// Add returns the component-wise sum.
func (f Force) Add(o Force) Force {
	return Force{FX: f.FX + o.FX, FY: f.FY + o.FY}
}

// Scale multiplies both components by s.
func (f Force) Scale(s float64) Force {
	return Force{FX: f.FX * s, FY: f.FY * s}
}

// Neg is the opposite force.
func (f Force) Neg() Force {
	return Force{FX: -f.FX, FY: -f.FY}
}

// Magnitude is the Euclidean length.
func (f Force) Magnitude() float64 {
	return math.Hypot(f.FX, f.FY)
}

// Edge is a spring between two points.
type Edge struct {
	Source quadtree.Point
	Target quadtree.Point
}
