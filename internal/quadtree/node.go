package quadtree

// Kind is the state of a Node. A node only moves forward: Empty -> Leaf -> Internal.
type Kind uint8

const (
	Empty Kind = iota
	Leaf
	Internal
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Leaf:
		return "leaf"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Node is one cell of the partition. Which fields are meaningful depends on kind:
// point only for Leaf, children only for Internal.
type Node struct {
	boundary Boundary
	kind     Kind
	point    Point
	children *[4]*Node

	mass   float64
	center Point
}

func newNode(b Boundary) *Node {
	return &Node{boundary: b}
}

// Kind reports the node state.
func (n *Node) Kind() Kind { return n.kind }

// IsLeaf reports whether the node has no children (empty or holding a point).
func (n *Node) IsLeaf() bool { return n.kind != Internal }

// Boundary is the square region this node governs.
func (n *Node) Boundary() Boundary { return n.boundary }

// Point returns the contained point of a Leaf.
func (n *Node) Point() (Point, bool) {
	if n.kind != Leaf {
		return Point{}, false
	}
	return n.point, true
}

// Children returns the NW, NE, SW, SE children of an Internal node, nil otherwise.
func (n *Node) Children() []*Node {
	if n.kind != Internal {
		return nil
	}
	return n.children[:]
}

// Mass is the total mass transitively contained in the node.
func (n *Node) Mass() float64 { return n.mass }

// CenterOfMass is the mass-weighted position of everything under the node. Its
// Mass field mirrors Mass().
func (n *Node) CenterOfMass() Point { return n.center }

// subdivide turns a Leaf into an Internal node and hands back the point it held.
func (n *Node) subdivide() Point {
	held := n.point
	quads := n.boundary.Quadrants()
	n.children = &[4]*Node{
		newNode(quads[0]),
		newNode(quads[1]),
		newNode(quads[2]),
		newNode(quads[3]),
	}
	n.point = Point{}
	n.kind = Internal
	return held
}

// childFor picks the first child containing p, falling back to the child whose
// center is nearest.
func (n *Node) childFor(p Point) *Node {
	for _, c := range n.children {
		if c.boundary.Contains(p) {
			return c
		}
	}
	nearest := n.children[0]
	best := nearest.boundary.distanceSq(p)
	for _, c := range n.children[1:] {
		if d := c.boundary.distanceSq(p); d < best {
			best = d
			nearest = c
		}
	}
	return nearest
}

// aggregate recomputes mass and center of mass bottom-up.
func (n *Node) aggregate() {
	switch n.kind {
	case Empty:
		n.mass = 0
		n.center = Point{}
	case Leaf:
		n.mass = n.point.Mass
		n.center = n.point
	case Internal:
		var mass, wx, wy float64
		for _, c := range n.children {
			c.aggregate()
			mass += c.mass
			wx += c.center.X * c.mass
			wy += c.center.Y * c.mass
		}
		n.mass = mass
		if mass > 0 {
			n.center = Point{X: wx / mass, Y: wy / mass, Mass: mass}
		} else {
			n.center = Point{}
		}
	}
}

func (n *Node) walk(depth int, fn func(*Node, int) bool) bool {
	if !fn(n, depth) {
		return false
	}
	if n.kind != Internal {
		return true
	}
	for _, c := range n.children {
		if !c.walk(depth+1, fn) {
			return false
		}
	}
	return true
}
