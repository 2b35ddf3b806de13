package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyNodeID     = errors.New("node id must not be empty")
	ErrDuplicateNodeID = errors.New("duplicate node id")
	ErrUnknownNode     = errors.New("unknown node")
)

// Node is one workflow step: a service call plus its ordered successors.
type Node struct {
	ID         string
	Service    string
	Function   string
	Successors []string // "run next" targets, order is significant
}

func (n Node) clone() Node {
	n.Successors = append([]string(nil), n.Successors...)
	return n
}

// Graph is a snapshot of the editor's workflow graph.
// Nodes are kept in insertion order; that order is the canonical order of the
// serialized workflow body.
type Graph struct {
	Name    string
	Version string

	order []string
	nodes map[string]*Node
}

// NewGraph creates an empty graph.
func NewGraph(name, version string) *Graph {
	return &Graph{
		Name:    name,
		Version: version,
		nodes:   make(map[string]*Node),
	}
}

// AddNode appends n to the graph. The node is copied.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrEmptyNodeID
	}
	if g.nodes == nil {
		g.nodes = make(map[string]*Node)
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateNodeID, n.ID)
	}
	c := n.clone()
	g.nodes[n.ID] = &c
	g.order = append(g.order, n.ID)
	return nil
}

// Connect appends to as a successor of from. The target is not required to
// exist yet; unresolved targets are reported by Validate.
func (g *Graph) Connect(from, to string) error {
	n, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("connect %q -> %q: %w %q", from, to, ErrUnknownNode, from)
	}
	n.Successors = append(n.Successors, to)
	return nil
}

// SetCall updates the service/function pair of an existing node.
func (g *Graph) SetCall(id, service, function string) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownNode, id)
	}
	n.Service, n.Function = service, function
	return nil
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].clone())
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// EdgeCount returns the total number of successor references.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, n := range g.nodes {
		total += len(n.Successors)
	}
	return total
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	out := NewGraph(g.Name, g.Version)
	for _, id := range g.order {
		c := g.nodes[id].clone()
		out.nodes[id] = &c
		out.order = append(out.order, id)
	}
	return out
}

// ─── iteration helpers ───────────────────────────────────────────────────────

func (g *Graph) each(fn func(n *Node)) {
	for _, id := range g.order {
		fn(g.nodes[id])
	}
}

func (g *Graph) has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}
