// Package quadtree is the spatial index behind the Barnes-Hut force engine. It
// partitions a square region into a recursive quadtree and keeps, per cell, the
// aggregate mass and center of mass of every point under it.
//
// A tree is built for one simulation tick and then only read. Building is not
// safe for concurrent use; once Root has been called after the last insert the
// tree may be shared by any number of readers.
package quadtree

import "fmt"

const (
	DefaultMaxDepth = 10
	DefaultMinSize  = 1.0
)

// Option configures a QuadTree.
type Option func(*QuadTree) error

// WithMaxDepth caps the subdivision depth. Points that reach the cap are merged.
func WithMaxDepth(depth int) Option {
	return func(t *QuadTree) error {
		if depth < 0 {
			return fmt.Errorf("%w: max depth %d", ErrInvalidOption, depth)
		}
		t.maxDepth = depth
		return nil
	}
}

// WithMinSize stops subdivision once a cell is this narrow or narrower.
func WithMinSize(size float64) Option {
	return func(t *QuadTree) error {
		if !isFinite(size) || size < 0 {
			return fmt.Errorf("%w: min size %v", ErrInvalidOption, size)
		}
		t.minSize = size
		return nil
	}
}

// QuadTree owns the root node and the subdivision caps.
type QuadTree struct {
	boundary    Boundary
	root        *Node
	maxDepth    int
	minSize     float64
	totalPoints int
	dirty       bool
	disposed    bool
}

// New creates an empty tree over boundary.
func New(boundary Boundary, opts ...Option) (*QuadTree, error) {
	if err := boundary.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %+v", err, boundary)
	}
	t := &QuadTree{
		boundary: boundary,
		root:     newNode(boundary),
		maxDepth: DefaultMaxDepth,
		minSize:  DefaultMinSize,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MaxDepth is the configured depth cap.
func (t *QuadTree) MaxDepth() int { return t.maxDepth }

// MinSize is the configured minimum cell width.
func (t *QuadTree) MinSize() float64 { return t.minSize }

// Boundary is the root region.
func (t *QuadTree) Boundary() Boundary { return t.boundary }

// TotalPoints counts accepted insertions, merged points included.
func (t *QuadTree) TotalPoints() (int, error) {
	if t.disposed {
		return 0, ErrDisposed
	}
	return t.totalPoints, nil
}

// Insert adds one point. It reports false, leaving the tree untouched, when p lies
// outside the root boundary; deciding whether that matters is up to the caller.
func (t *QuadTree) Insert(p Point) (bool, error) {
	if t.disposed {
		return false, ErrDisposed
	}
	if !p.valid() {
		return false, fmt.Errorf("%w: %+v", ErrInvalidPoint, p)
	}
	if !t.root.boundary.Contains(p) {
		return false, nil
	}
	t.insert(t.root, p, 0)
	t.totalPoints++
	t.dirty = true
	return true, nil
}

// InsertBatch inserts points and aggregates mass once at the end. It returns how
// many points were inside the boundary. An invalid point aborts the batch; points
// accepted before it stay in the tree.
func (t *QuadTree) InsertBatch(points []Point) (int, error) {
	if t.disposed {
		return 0, ErrDisposed
	}
	accepted := 0
	for _, p := range points {
		if !p.valid() {
			t.root.aggregate()
			t.dirty = false
			return accepted, fmt.Errorf("%w: %+v", ErrInvalidPoint, p)
		}
		if !t.root.boundary.Contains(p) {
			continue
		}
		t.insert(t.root, p, 0)
		t.totalPoints++
		accepted++
	}
	t.root.aggregate()
	t.dirty = false
	return accepted, nil
}

func (t *QuadTree) insert(n *Node, p Point, depth int) {
	switch n.kind {
	case Empty:
		n.point = p
		n.kind = Leaf
	case Leaf:
		if depth >= t.maxDepth || n.boundary.Width <= t.minSize {
			n.point = Merge(n.point, p)
			return
		}
		held := n.subdivide()
		t.insert(n.childFor(held), held, depth+1)
		t.insert(n.childFor(p), p, depth+1)
	case Internal:
		t.insert(n.childFor(p), p, depth+1)
	}
}

// Root returns the root node with mass and center of mass up to date.
func (t *QuadTree) Root() (*Node, error) {
	if t.disposed {
		return nil, ErrDisposed
	}
	if t.dirty {
		t.root.aggregate()
		t.dirty = false
	}
	return t.root, nil
}

// Depth is the depth of the deepest node; a tree that never subdivided has depth 0.
func (t *QuadTree) Depth() (int, error) {
	if t.disposed {
		return 0, ErrDisposed
	}
	deepest := 0
	t.root.walk(0, func(_ *Node, depth int) bool {
		if depth > deepest {
			deepest = depth
		}
		return true
	})
	return deepest, nil
}

// Walk visits nodes pre-order, children in NW, NE, SW, SE order, and stops as soon
// as fn returns false. Aggregates are refreshed first.
func (t *QuadTree) Walk(fn func(n *Node, depth int) bool) error {
	root, err := t.Root()
	if err != nil {
		return err
	}
	root.walk(0, fn)
	return nil
}

// Reset empties the tree over the same boundary. The tree stays usable.
func (t *QuadTree) Reset() error {
	if t.disposed {
		return ErrDisposed
	}
	t.root = newNode(t.boundary)
	t.totalPoints = 0
	t.dirty = false
	return nil
}

// Dispose releases the tree. Any later call other than Dispose fails with
// ErrDisposed. Calling it more than once is harmless.
func (t *QuadTree) Dispose() {
	t.root = newNode(t.boundary)
	t.totalPoints = 0
	t.dirty = false
	t.disposed = true
}

// Disposed reports whether Dispose has been called.
func (t *QuadTree) Disposed() bool { return t.disposed }
