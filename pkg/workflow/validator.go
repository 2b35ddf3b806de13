package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Validation error kinds. Every ValidationError unwraps to one of these.
var (
	ErrEmptyNameOrVersion  = errors.New("empty name or version")
	ErrUnknownService      = errors.New("unknown service")
	ErrUnknownFunction     = errors.New("unknown function")
	ErrDanglingEdge        = errors.New("dangling edge")
	ErrDuplicateEdge       = errors.New("duplicate edge")
	ErrDescriptorCollision = errors.New("descriptor collision")
	ErrNilInput            = errors.New("nil input")
)

// Catalog is the read side of a service catalog needed by the validator.
// *catalog.Catalog satisfies it.
type Catalog interface {
	HasService(service string) bool
	Supports(service, function string) bool
	FunctionsFor(service string) []string
}

// ValidationError describes one problem that prevents a graph from being
// serialized. Only the fields relevant to Kind are set.
type ValidationError struct {
	Kind     error
	NodeID   string
	Field    string // "name" or "version" for ErrEmptyNameOrVersion, "graph" or "catalog" for ErrNilInput
	Service  string
	Function string
	TargetID string // successor id, or the earlier node for ErrDescriptorCollision
}

func (e ValidationError) Error() string {
	switch e.Kind {
	case ErrEmptyNameOrVersion:
		return fmt.Sprintf("workflow %s must not be empty", e.Field)
	case ErrNilInput:
		return fmt.Sprintf("%s must not be nil", e.Field)
	case ErrUnknownService:
		return fmt.Sprintf("node %q: unknown service %q", e.NodeID, e.Service)
	case ErrUnknownFunction:
		return fmt.Sprintf("node %q: service %q has no function %q", e.NodeID, e.Service, e.Function)
	case ErrDanglingEdge:
		return fmt.Sprintf("node %q: successor %q does not exist", e.NodeID, e.TargetID)
	case ErrDuplicateEdge:
		return fmt.Sprintf("node %q: successor %q listed more than once", e.NodeID, e.TargetID)
	case ErrDescriptorCollision:
		d := Descriptor{Service: strings.ToLower(e.Service), Function: e.Function}
		return fmt.Sprintf("node %q: descriptor %s already used by node %q", e.NodeID, d, e.TargetID)
	}
	if e.NodeID != "" {
		return fmt.Sprintf("node %q: %v", e.NodeID, e.Kind)
	}
	return fmt.Sprint(e.Kind)
}

func (e ValidationError) Unwrap() error { return e.Kind }

// ValidationErrors is the complete list of problems found in one graph.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("workflow validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

// Unwrap exposes every entry to errors.Is / errors.As.
func (es ValidationErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// CollisionPolicy decides what happens when two nodes share a descriptor.
type CollisionPolicy int

const (
	// RejectCollisions reports ErrDescriptorCollision for the later node.
	RejectCollisions CollisionPolicy = iota
	// LastWriteWins accepts the graph; the serialized entry keeps the position
	// of the first such node and the successors of the last one.
	LastWriteWins
)

func (p CollisionPolicy) String() string {
	switch p {
	case RejectCollisions:
		return "reject"
	case LastWriteWins:
		return "last-write-wins"
	}
	return fmt.Sprintf("CollisionPolicy(%d)", int(p))
}

// ParseCollisionPolicy maps "reject" and "last-write-wins" to a policy.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return RejectCollisions, nil
	case "last-write-wins", "lww":
		return LastWriteWins, nil
	}
	return 0, fmt.Errorf("unknown collision policy %q: use reject or last-write-wins", s)
}

type options struct {
	collisions CollisionPolicy
}

// Option configures validation.
type Option func(*options)

// WithCollisionPolicy selects how descriptor collisions are handled.
func WithCollisionPolicy(p CollisionPolicy) Option {
	return func(o *options) { o.collisions = p }
}

// Validated is a frozen, validated copy of a graph. It can only be obtained
// from Validate and is the sole input accepted by Serialize.
type Validated struct {
	graph  *Graph
	policy CollisionPolicy
}

// Name returns the workflow name.
func (v *Validated) Name() string { return v.graph.Name }

// Version returns the workflow version label.
func (v *Validated) Version() string { return v.graph.Version }

// Len returns the number of nodes.
func (v *Validated) Len() int { return v.graph.Len() }

// EdgeCount returns the number of successor references.
func (v *Validated) EdgeCount() int { return v.graph.EdgeCount() }

// Policy returns the collision policy the graph was validated under.
func (v *Validated) Policy() CollisionPolicy { return v.policy }

// Validate checks g against c and, if no problems are found, returns a frozen
// copy of g ready for serialization. Later changes to g do not affect it.
// On failure the error is a ValidationErrors listing every problem.
func Validate(g *Graph, c Catalog, opts ...Option) (*Validated, error) {
	if err := checkInputs(g, c); err != nil {
		return nil, *err
	}
	o := buildOptions(opts)
	if errs := lint(g, c, o); len(errs) > 0 {
		return nil, errs
	}
	return &Validated{graph: g.Clone(), policy: o.collisions}, nil
}

// Lint returns every validation problem in g, in check order:
// name/version, unknown services, unknown functions, dangling edges,
// duplicate edges, descriptor collisions. Within a check, nodes are visited in
// insertion order. A nil graph or catalog is reported as a single error of
// kind ErrNilInput.
func Lint(g *Graph, c Catalog, opts ...Option) []ValidationError {
	if err := checkInputs(g, c); err != nil {
		return []ValidationError{*err}
	}
	return lint(g, c, buildOptions(opts))
}

func checkInputs(g *Graph, c Catalog) *ValidationError {
	switch {
	case g == nil:
		return &ValidationError{Kind: ErrNilInput, Field: "graph"}
	case c == nil:
		return &ValidationError{Kind: ErrNilInput, Field: "catalog"}
	}
	return nil
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func lint(g *Graph, c Catalog, o options) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(g.Name) == "" {
		errs = append(errs, ValidationError{Kind: ErrEmptyNameOrVersion, Field: "name"})
	}
	if strings.TrimSpace(g.Version) == "" {
		errs = append(errs, ValidationError{Kind: ErrEmptyNameOrVersion, Field: "version"})
	}

	knownService := make(map[string]bool, g.Len())
	g.each(func(n *Node) {
		if c.HasService(n.Service) {
			knownService[n.ID] = true
			return
		}
		errs = append(errs, ValidationError{Kind: ErrUnknownService, NodeID: n.ID, Service: n.Service})
	})

	// A node with an unknown service already has an error; its function is not
	// checked again.
	g.each(func(n *Node) {
		if knownService[n.ID] && !c.Supports(n.Service, n.Function) {
			errs = append(errs, ValidationError{
				Kind:     ErrUnknownFunction,
				NodeID:   n.ID,
				Service:  n.Service,
				Function: n.Function,
			})
		}
	})

	g.each(func(n *Node) {
		reported := map[string]bool{}
		for _, to := range n.Successors {
			if !g.has(to) && !reported[to] {
				reported[to] = true
				errs = append(errs, ValidationError{Kind: ErrDanglingEdge, NodeID: n.ID, TargetID: to})
			}
		}
	})

	g.each(func(n *Node) {
		count := make(map[string]int, len(n.Successors))
		for _, to := range n.Successors {
			count[to]++
			if count[to] == 2 {
				errs = append(errs, ValidationError{Kind: ErrDuplicateEdge, NodeID: n.ID, TargetID: to})
			}
		}
	})

	if o.collisions == RejectCollisions {
		firstByDescriptor := make(map[Descriptor]string, g.Len())
		g.each(func(n *Node) {
			d := DescriptorOf(*n)
			first, taken := firstByDescriptor[d]
			if !taken {
				firstByDescriptor[d] = n.ID
				return
			}
			errs = append(errs, ValidationError{
				Kind:     ErrDescriptorCollision,
				NodeID:   n.ID,
				Service:  n.Service,
				Function: n.Function,
				TargetID: first,
			})
		})
	}

	return errs
}
