package graph

import "errors"

var (
	ErrDuplicateNode = errors.New("graph: duplicate node id")
	ErrUnknownNode   = errors.New("graph: link references unknown node")
	ErrEmptyNodeID   = errors.New("graph: node id is empty")
	ErrTooManyNodes  = errors.New("graph: too many nodes for layout")
	ErrInvalidConfig = errors.New("graph: invalid simulation config")
	ErrClosed        = errors.New("graph: simulation closed")

	ErrInvalidPosition = errors.New("graph: node position out of range")
)

// MaxCoordinate bounds the magnitude of a supplied node position. Beyond it the
// tree boundary spanning the nodes can overflow to infinity.
const MaxCoordinate = 1e12

// Node is a layout input. Nodes without a position are seeded by the simulation.
type Node struct {
	ID    string   `json:"id"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Mass  float64  `json:"mass,omitempty"`
	Fixed bool     `json:"fixed,omitempty"`
}

// Link connects two nodes by id.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is a topology snapshot.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Position is a node's state after a tick.
type Position struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
}
