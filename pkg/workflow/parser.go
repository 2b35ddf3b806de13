package workflow

import (
	"fmt"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

// ParseDOT reads a workflow graph authored as a Graphviz digraph:
//
//	digraph user_registration {
//		version = "v0.1.0"
//		a [service=User, function=create_user]
//		b [service=License, function=add_license]
//		a -> b
//	}
//
// The graph id is the workflow name unless a graph-level name attribute is
// set. Nodes are ordered by first mention; each node's successors follow edge
// definition order. An edge endpoint written as a subgraph, as in a -> {b c},
// stands for every node of that subgraph in declaration order.
func ParseDOT(src string) (*Graph, error) {
	graphAst, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("dot parse error: %w", err)
	}

	collector := newDOTCollector()
	if err := gographviz.Analyse(graphAst, collector); err != nil {
		return nil, fmt.Errorf("dot analyse error: %w", err)
	}
	if !collector.directed {
		return nil, fmt.Errorf("workflow graph must be a digraph")
	}

	name := collector.name
	if n, ok := collector.graphAttrs["name"]; ok {
		name = n
	}
	g := NewGraph(name, collector.graphAttrs["version"])

	collector.resolveEndpoints()
	for _, id := range collector.order {
		attrs := collector.nodes[id]
		if err := g.AddNode(Node{ID: id, Service: attrs["service"], Function: attrs["function"]}); err != nil {
			return nil, fmt.Errorf("dot node %q: %w", id, err)
		}
	}
	for _, e := range collector.edges {
		for _, from := range collector.expand(e.from) {
			for _, to := range collector.expand(e.to) {
				if err := g.Connect(from, to); err != nil {
					return nil, fmt.Errorf("dot edge: %w", err)
				}
			}
		}
	}
	return g, nil
}

// ─── permissive DOT collector ─────────────────────────────────────────────────

type rawEdge struct {
	from, to string
}

// dotCollector implements gographviz.Interface without attribute validation.
type dotCollector struct {
	name       string
	directed   bool
	order      []string
	nodes      map[string]map[string]string // id → attrs
	edges      []rawEdge
	graphAttrs map[string]string
	rawName    string
	subgraphs  map[string][]string // id → member node and subgraph ids
}

func newDOTCollector() *dotCollector {
	return &dotCollector{
		nodes:      make(map[string]map[string]string),
		graphAttrs: make(map[string]string),
		subgraphs:  make(map[string][]string),
	}
}

func (c *dotCollector) SetStrict(_ bool) error { return nil }
func (c *dotCollector) SetDir(d bool) error    { c.directed = d; return nil }
func (c *dotCollector) SetName(n string) error { c.rawName, c.name = n, unquote(n); return nil }
func (c *dotCollector) String() string         { return c.name }

func (c *dotCollector) ensureNode(id string) map[string]string {
	attrs, ok := c.nodes[id]
	if !ok {
		attrs = make(map[string]string)
		c.nodes[id] = attrs
		c.order = append(c.order, id)
	}
	return attrs
}

func (c *dotCollector) AddNode(parent string, name string, attrs map[string]string) error {
	id := unquote(name)
	node := c.ensureNode(id)
	for k, v := range attrs {
		node[k] = unquote(v)
	}
	c.addMember(parent, id)
	return nil
}

// AddEdge records the edge only. Endpoints may name a subgraph whose members
// are not known yet, so they are resolved once analysis is done.
func (c *dotCollector) AddEdge(src, dst string, _ bool, _ map[string]string) error {
	c.edges = append(c.edges, rawEdge{from: unquote(src), to: unquote(dst)})
	return nil
}

func (c *dotCollector) AddPortEdge(src, _, dst, _ string, directed bool, attrs map[string]string) error {
	return c.AddEdge(src, dst, directed, attrs)
}

func (c *dotCollector) AddAttr(parent string, field, value string) error {
	if parent != c.rawName {
		return nil // subgraph attributes do not describe the workflow
	}
	c.graphAttrs[field] = unquote(value)
	return nil
}

func (c *dotCollector) AddSubGraph(parent, name string, _ map[string]string) error {
	id := unquote(name)
	if _, ok := c.subgraphs[id]; !ok {
		c.subgraphs[id] = nil
	}
	c.addMember(parent, id)
	return nil
}

func (c *dotCollector) addMember(parent, id string) {
	if parent == c.rawName {
		return
	}
	p := unquote(parent)
	for _, m := range c.subgraphs[p] {
		if m == id {
			return
		}
	}
	c.subgraphs[p] = append(c.subgraphs[p], id)
}

// resolveEndpoints adds edge endpoints that were never declared as nodes.
func (c *dotCollector) resolveEndpoints() {
	for _, e := range c.edges {
		for _, id := range []string{e.from, e.to} {
			if _, ok := c.subgraphs[id]; !ok {
				c.ensureNode(id)
			}
		}
	}
}

// expand returns the node ids an edge endpoint stands for.
func (c *dotCollector) expand(id string) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		members, ok := c.subgraphs[id]
		if !ok {
			out = append(out, id)
			return
		}
		for _, m := range members {
			walk(m)
		}
	}
	walk(id)
	return out
}

// unquote strips surrounding double-quotes from a DOT identifier or value.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}
