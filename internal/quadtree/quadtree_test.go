package quadtree

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func newTestTree(t *testing.T, opts ...Option) *QuadTree {
	t.Helper()
	tree, err := New(Boundary{X: 0, Y: 0, Width: 100}, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tree
}

func mustInsert(t *testing.T, tree *QuadTree, p Point) {
	t.Helper()
	ok, err := tree.Insert(p)
	if err != nil {
		t.Fatalf("Insert(%+v) failed: %v", p, err)
	}
	if !ok {
		t.Fatalf("Insert(%+v) rejected an in-bounds point", p)
	}
}

func mustDepth(t *testing.T, tree *QuadTree) int {
	t.Helper()
	d, err := tree.Depth()
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	return d
}

func mustTotal(t *testing.T, tree *QuadTree) int {
	t.Helper()
	n, err := tree.TotalPoints()
	if err != nil {
		t.Fatalf("TotalPoints failed: %v", err)
	}
	return n
}

func mustRoot(t *testing.T, tree *QuadTree) *Node {
	t.Helper()
	root, err := tree.Root()
	if err != nil {
		t.Fatalf("Root failed: %v", err)
	}
	return root
}

func TestNewEmptyTree(t *testing.T) {
	tree := newTestTree(t)
	root := mustRoot(t, tree)

	if root.Kind() != Empty {
		t.Errorf("expected empty root, got %s", root.Kind())
	}
	if !root.IsLeaf() {
		t.Error("new root should be a leaf")
	}
	if root.Mass() != 0 {
		t.Errorf("expected zero mass, got %f", root.Mass())
	}
	if tree.MaxDepth() != DefaultMaxDepth || tree.MinSize() != DefaultMinSize {
		t.Errorf("unexpected defaults: depth=%d size=%f", tree.MaxDepth(), tree.MinSize())
	}
}

func TestNewRejectsInvalidBoundary(t *testing.T) {
	tests := []struct {
		name     string
		boundary Boundary
	}{
		{"zero width", Boundary{Width: 0}},
		{"negative width", Boundary{Width: -10}},
		{"nan width", Boundary{Width: math.NaN()}},
		{"infinite width", Boundary{Width: math.Inf(1)}},
		{"nan center", Boundary{X: math.NaN(), Width: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.boundary)
			if !errors.Is(err, ErrInvalidBoundary) {
				t.Errorf("expected ErrInvalidBoundary, got %v", err)
			}
		})
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	if _, err := New(Boundary{Width: 10}, WithMaxDepth(-1)); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption for negative depth, got %v", err)
	}
	if _, err := New(Boundary{Width: 10}, WithMinSize(-0.5)); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption for negative size, got %v", err)
	}
}

func TestInsertSingle(t *testing.T) {
	tree := newTestTree(t)
	p := Point{X: 0, Y: 0, Mass: 1}
	mustInsert(t, tree, p)

	root := mustRoot(t, tree)
	got, ok := root.Point()
	if !ok || got != p {
		t.Errorf("expected root to hold %+v, got %+v (ok=%v)", p, got, ok)
	}
	if root.Mass() != 1 {
		t.Errorf("expected mass=1, got %f", root.Mass())
	}
	if mustTotal(t, tree) != 1 {
		t.Errorf("expected 1 point, got %d", mustTotal(t, tree))
	}
}

func TestInsertOnBoundaryEdges(t *testing.T) {
	edges := []Point{
		{X: 50, Y: 50, Mass: 1},
		{X: -50, Y: -50, Mass: 1},
		{X: 50, Y: -50, Mass: 1},
		{X: -50, Y: 50, Mass: 1},
		{X: 0, Y: 50, Mass: 1},
	}
	tree := newTestTree(t)
	for _, p := range edges {
		mustInsert(t, tree, p)
	}
	if got := mustRoot(t, tree).Mass(); got != float64(len(edges)) {
		t.Errorf("expected mass=%d, got %f", len(edges), got)
	}
}

func TestInsertOutsideBoundary(t *testing.T) {
	tree := newTestTree(t)
	mustInsert(t, tree, Point{X: 1, Y: 1, Mass: 2})

	ok, err := tree.Insert(Point{X: 1000, Y: 1000, Mass: 1})
	if err != nil {
		t.Fatalf("out-of-bounds insert should not error: %v", err)
	}
	if ok {
		t.Error("expected out-of-bounds point to be rejected")
	}
	if got := mustRoot(t, tree).Mass(); got != 2 {
		t.Errorf("mass changed after rejected insert: %f", got)
	}
	if mustTotal(t, tree) != 1 {
		t.Errorf("point count changed after rejected insert: %d", mustTotal(t, tree))
	}
}

func TestInsertInvalidPoint(t *testing.T) {
	tree := newTestTree(t)
	bad := []Point{
		{X: math.NaN(), Y: 0, Mass: 1},
		{X: 0, Y: math.Inf(-1), Mass: 1},
		{X: 0, Y: 0, Mass: -1},
	}
	for _, p := range bad {
		if _, err := tree.Insert(p); !errors.Is(err, ErrInvalidPoint) {
			t.Errorf("Insert(%+v): expected ErrInvalidPoint, got %v", p, err)
		}
	}
}

func TestSubdivideOnSecondPoint(t *testing.T) {
	tree := newTestTree(t)
	mustInsert(t, tree, Point{X: -25, Y: -25, Mass: 1})
	mustInsert(t, tree, Point{X: 25, Y: 25, Mass: 1})

	root := mustRoot(t, tree)
	if root.IsLeaf() {
		t.Fatal("root should be internal after a second distinct point")
	}
	if len(root.Children()) != 4 {
		t.Errorf("expected 4 children, got %d", len(root.Children()))
	}
	if _, ok := root.Point(); ok {
		t.Error("internal node must not hold a point")
	}
}

func TestInsertQuadrants(t *testing.T) {
	tree := newTestTree(t)
	points := []Point{
		{X: -25, Y: -25, Mass: 1}, // NW
		{X: 25, Y: -25, Mass: 1},  // NE
		{X: -25, Y: 25, Mass: 1},  // SW
		{X: 25, Y: 25, Mass: 1},   // SE
	}
	for _, p := range points {
		mustInsert(t, tree, p)
	}

	root := mustRoot(t, tree)
	for i, child := range root.Children() {
		got, ok := child.Point()
		if !ok {
			t.Errorf("child %d should hold a point", i)
			continue
		}
		if got != points[i] {
			t.Errorf("child %d: expected %+v, got %+v", i, points[i], got)
		}
		if child.Mass() != 1 {
			t.Errorf("child %d: expected mass=1, got %f", i, child.Mass())
		}
	}
	com := root.CenterOfMass()
	if math.Abs(com.X) > 1e-9 || math.Abs(com.Y) > 1e-9 {
		t.Errorf("expected center at origin, got (%f,%f)", com.X, com.Y)
	}
	if root.Mass() != 4 || com.Mass != 4 {
		t.Errorf("expected mass=4, got %f (center mass %f)", root.Mass(), com.Mass)
	}
}

func TestCenterOfMass(t *testing.T) {
	tests := []struct {
		name     string
		points   []Point
		wantX    float64
		wantMass float64
	}{
		{
			name:     "equal masses",
			points:   []Point{{X: -10, Y: 0, Mass: 1}, {X: 10, Y: 0, Mass: 1}},
			wantX:    0,
			wantMass: 2,
		},
		{
			name:     "uneven masses",
			points:   []Point{{X: -10, Y: 0, Mass: 1}, {X: 10, Y: 0, Mass: 3}},
			wantX:    5,
			wantMass: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := newTestTree(t)
			for _, p := range tt.points {
				mustInsert(t, tree, p)
			}
			root := mustRoot(t, tree)
			com := root.CenterOfMass()
			if com.X != tt.wantX || com.Y != 0 {
				t.Errorf("expected center (%f,0), got (%f,%f)", tt.wantX, com.X, com.Y)
			}
			if root.Mass() != tt.wantMass {
				t.Errorf("expected mass=%f, got %f", tt.wantMass, root.Mass())
			}
		})
	}
}

func TestCoincidentPointsMerge(t *testing.T) {
	tree := newTestTree(t)
	mustInsert(t, tree, Point{X: 0, Y: 0, Mass: 1})
	mustInsert(t, tree, Point{X: 0, Y: 0, Mass: 1})

	root := mustRoot(t, tree)
	if root.Mass() != 2 {
		t.Errorf("expected mass=2, got %f", root.Mass())
	}
	if mustDepth(t, tree) > tree.MaxDepth() {
		t.Errorf("depth %d exceeds max depth %d", mustDepth(t, tree), tree.MaxDepth())
	}
}

func TestMaxDepthRespected(t *testing.T) {
	tree := newTestTree(t)
	for i := 0; i < 20; i++ {
		mustInsert(t, tree, Point{X: 0.001 * float64(i), Y: 0.001 * float64(i), Mass: 1})
	}

	if mustDepth(t, tree) > tree.MaxDepth() {
		t.Errorf("depth %d exceeds max depth %d", mustDepth(t, tree), tree.MaxDepth())
	}
	if got := mustRoot(t, tree).Mass(); got != 20 {
		t.Errorf("expected mass=20 after merging, got %f", got)
	}
}

func TestMaxDepthWithoutSizeCap(t *testing.T) {
	tree := newTestTree(t, WithMaxDepth(3), WithMinSize(0))
	for i := 0; i < 50; i++ {
		mustInsert(t, tree, Point{X: 1e-6 * float64(i), Y: 0, Mass: 0.5})
	}
	if mustDepth(t, tree) > 3 {
		t.Errorf("depth %d exceeds max depth 3", mustDepth(t, tree))
	}
	if got := mustRoot(t, tree).Mass(); math.Abs(got-25) > 1e-9 {
		t.Errorf("expected mass=25, got %f", got)
	}
}

func TestMergedLeafIsWeightedAverage(t *testing.T) {
	tree := newTestTree(t, WithMaxDepth(0))
	mustInsert(t, tree, Point{X: -10, Y: 4, Mass: 1})
	mustInsert(t, tree, Point{X: 10, Y: 4, Mass: 3})

	root := mustRoot(t, tree)
	if !root.IsLeaf() {
		t.Fatal("root must not subdivide at max depth 0")
	}
	got, _ := root.Point()
	want := Point{X: 5, Y: 4, Mass: 4}
	if got != want {
		t.Errorf("expected merged point %+v, got %+v", want, got)
	}
}

func TestMassConservationRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tree := newTestTree(t)

	var want float64
	for i := 0; i < 2000; i++ {
		p := Point{
			X:    rng.Float64()*100 - 50,
			Y:    rng.Float64()*100 - 50,
			Mass: rng.Float64() * 3,
		}
		mustInsert(t, tree, p)
		want += p.Mass
	}

	root := mustRoot(t, tree)
	if math.Abs(root.Mass()-want) > 1e-6 {
		t.Errorf("expected mass=%f, got %f", want, root.Mass())
	}
	if mustTotal(t, tree) != 2000 {
		t.Errorf("expected 2000 points, got %d", mustTotal(t, tree))
	}
}

func TestInsertBatchMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points := make([]Point, 500)
	for i := range points {
		points[i] = Point{X: rng.Float64()*100 - 50, Y: rng.Float64()*100 - 50, Mass: 1}
	}
	points = append(points, Point{X: 500, Y: 500, Mass: 1})

	seq := newTestTree(t)
	for _, p := range points {
		if _, err := seq.Insert(p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	batch := newTestTree(t)
	accepted, err := batch.InsertBatch(points)
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if accepted != 500 {
		t.Errorf("expected 500 accepted, got %d", accepted)
	}

	a, b := mustRoot(t, seq), mustRoot(t, batch)
	if a.Mass() != b.Mass() || a.CenterOfMass() != b.CenterOfMass() {
		t.Errorf("batch and sequential trees differ: %+v vs %+v", a.CenterOfMass(), b.CenterOfMass())
	}
	if mustDepth(t, seq) != mustDepth(t, batch) {
		t.Errorf("depth differs: %d vs %d", mustDepth(t, seq), mustDepth(t, batch))
	}
}

func TestInternalNodesAreConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	tree := newTestTree(t)
	for i := 0; i < 300; i++ {
		mustInsert(t, tree, Point{X: rng.NormFloat64() * 10, Y: rng.NormFloat64() * 10, Mass: 1 + rng.Float64()})
	}

	err := tree.Walk(func(n *Node, _ int) bool {
		if n.Kind() != Internal {
			return true
		}
		var mass float64
		for _, c := range n.Children() {
			mass += c.Mass()
		}
		if math.Abs(mass-n.Mass()) > 1e-9 {
			t.Errorf("node mass %f differs from children sum %f", n.Mass(), mass)
		}
		if n.CenterOfMass().Mass != n.Mass() {
			t.Errorf("center mass %f does not mirror node mass %f", n.CenterOfMass().Mass, n.Mass())
		}
		return true
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
}

func TestWalkOrderAndStop(t *testing.T) {
	tree := newTestTree(t)
	for _, p := range []Point{{X: -25, Y: -25, Mass: 1}, {X: 25, Y: -25, Mass: 1}, {X: -25, Y: 25, Mass: 1}} {
		mustInsert(t, tree, p)
	}

	var kinds []Kind
	_ = tree.Walk(func(n *Node, _ int) bool {
		kinds = append(kinds, n.Kind())
		return true
	})
	want := []Kind{Internal, Leaf, Leaf, Leaf, Empty}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d visits, got %d", len(want), len(kinds))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("visit %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}

	visits := 0
	_ = tree.Walk(func(*Node, int) bool {
		visits++
		return visits < 2
	})
	if visits != 2 {
		t.Errorf("expected walk to stop after 2 visits, got %d", visits)
	}
}

func TestReset(t *testing.T) {
	tree := newTestTree(t)
	mustInsert(t, tree, Point{X: 1, Y: 1, Mass: 1})
	mustInsert(t, tree, Point{X: -1, Y: -1, Mass: 1})

	if err := tree.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	root := mustRoot(t, tree)
	if root.Kind() != Empty || root.Mass() != 0 || mustTotal(t, tree) != 0 {
		t.Errorf("expected empty tree after reset, got kind=%s mass=%f points=%d", root.Kind(), root.Mass(), mustTotal(t, tree))
	}
	if root.Boundary() != tree.Boundary() {
		t.Errorf("reset changed boundary: %+v", root.Boundary())
	}
	mustInsert(t, tree, Point{X: 3, Y: 3, Mass: 1})
}

func TestDispose(t *testing.T) {
	tree := newTestTree(t)
	mustInsert(t, tree, Point{X: 1, Y: 1, Mass: 1})

	tree.Dispose()
	tree.Dispose()

	if !tree.Disposed() {
		t.Error("expected tree to report disposed")
	}
	if _, err := tree.TotalPoints(); !errors.Is(err, ErrDisposed) {
		t.Errorf("TotalPoints after dispose: expected ErrDisposed, got %v", err)
	}
	if _, err := tree.Depth(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Depth after dispose: expected ErrDisposed, got %v", err)
	}
	if _, err := tree.Insert(Point{Mass: 1}); !errors.Is(err, ErrDisposed) {
		t.Errorf("Insert after dispose: expected ErrDisposed, got %v", err)
	}
	if _, err := tree.InsertBatch([]Point{{Mass: 1}}); !errors.Is(err, ErrDisposed) {
		t.Errorf("InsertBatch after dispose: expected ErrDisposed, got %v", err)
	}
	if _, err := tree.Root(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Root after dispose: expected ErrDisposed, got %v", err)
	}
	if err := tree.Reset(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Reset after dispose: expected ErrDisposed, got %v", err)
	}
}

func TestMerge(t *testing.T) {
	got := Merge(Point{X: 0, Y: 0, Mass: 1}, Point{X: 4, Y: 8, Mass: 3})
	want := Point{X: 3, Y: 6, Mass: 4}
	if got != want {
		t.Errorf("Merge = %+v, want %+v", got, want)
	}

	zero := Merge(Point{X: 2, Y: 2}, Point{X: 4, Y: 4})
	if zero.Mass != 0 || zero.X != 3 || zero.Y != 3 {
		t.Errorf("zero-mass merge = %+v", zero)
	}
}

func TestBoundaryFor(t *testing.T) {
	b := BoundaryFor([]Point{{X: 0, Y: 0}, {X: 10, Y: 4}}, 0.1)
	if b.X != 5 || b.Y != 2 {
		t.Errorf("expected center (5,2), got (%f,%f)", b.X, b.Y)
	}
	if math.Abs(b.Width-12) > 1e-9 {
		t.Errorf("expected width 12, got %f", b.Width)
	}
	for _, p := range []Point{{X: 0, Y: 0}, {X: 10, Y: 4}} {
		if !b.Contains(p) {
			t.Errorf("boundary %+v should contain %+v", b, p)
		}
	}

	single := BoundaryFor([]Point{{X: 3, Y: 3}}, 0.1)
	if single.Width <= 0 || !single.Contains(Point{X: 3, Y: 3}) {
		t.Errorf("degenerate boundary is unusable: %+v", single)
	}
	if err := BoundaryFor(nil, 0).Validate(); err != nil {
		t.Errorf("empty input should still yield a valid boundary: %v", err)
	}
}
