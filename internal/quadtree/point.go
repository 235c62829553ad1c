package quadtree

import "math"

// SubdivisionOverlap inflates every child boundary beyond the exact half width so
// points that sit on a split line always land in at least one child.
const SubdivisionOverlap = 1e-4

// Point is a mass-bearing sample: a graph node or an aggregated cluster centroid.
type Point struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Mass float64 `json:"mass"`
}

// Merge returns the mass-weighted average of a and b carrying their summed mass.
func Merge(a, b Point) Point {
	total := a.Mass + b.Mass
	if total == 0 {
		return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	}
	return Point{
		X:    (a.X*a.Mass + b.X*b.Mass) / total,
		Y:    (a.Y*a.Mass + b.Y*b.Mass) / total,
		Mass: total,
	}
}

func (p Point) valid() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Mass) && p.Mass >= 0
}

// Boundary is an axis-aligned square centered on (X, Y).
type Boundary struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Width float64 `json:"width"`
}

// Validate reports whether b describes a usable region.
func (b Boundary) Validate() error {
	if !isFinite(b.X) || !isFinite(b.Y) {
		return ErrInvalidBoundary
	}
	if !isFinite(b.Width) || b.Width <= 0 {
		return ErrInvalidBoundary
	}
	return nil
}

// Contains is inclusive on all four edges.
func (b Boundary) Contains(p Point) bool {
	half := b.Width / 2
	return p.X >= b.X-half &&
		p.X <= b.X+half &&
		p.Y >= b.Y-half &&
		p.Y <= b.Y+half
}

// Quadrants splits b into NW, NE, SW, SE children.
func (b Boundary) Quadrants() [4]Boundary {
	quarter := b.Width / 4
	width := b.Width/2 + SubdivisionOverlap
	return [4]Boundary{
		{X: b.X - quarter, Y: b.Y - quarter, Width: width}, // NW
		{X: b.X + quarter, Y: b.Y - quarter, Width: width}, // NE
		{X: b.X - quarter, Y: b.Y + quarter, Width: width}, // SW
		{X: b.X + quarter, Y: b.Y + quarter, Width: width}, // SE
	}
}

// distanceSq is the squared distance from the center of b to p.
func (b Boundary) distanceSq(p Point) float64 {
	dx := b.X - p.X
	dy := b.Y - p.Y
	return dx*dx + dy*dy
}

// BoundaryFor returns the smallest square containing every point, padded by
// padding (a fraction of the larger extent). A single point or fully coincident
// input gets a unit-width square.
func BoundaryFor(points []Point, padding float64) Boundary {
	if len(points) == 0 {
		return Boundary{Width: 1}
	}
	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	extent := math.Max(maxX-minX, maxY-minY)
	if extent == 0 {
		extent = 1
	}
	return Boundary{
		X:     (minX + maxX) / 2,
		Y:     (minY + maxY) / 2,
		Width: extent * (1 + 2*padding),
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
