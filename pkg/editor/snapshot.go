// Package editor decodes graph snapshots exported by the workflow editor into
// workflow.Graph values.
package editor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ravi-parthasarathy/forge/pkg/workflow"
)

// snapshot is the native JSON snapshot form.
type snapshot struct {
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Nodes   []snapshotNode `json:"nodes"`
}

type snapshotNode struct {
	ID         string   `json:"id"`
	Service    string   `json:"service"`
	Function   string   `json:"function"`
	Successors []string `json:"successors"`
}

// DecodeJSON reads a native snapshot:
//
//	{"name": "...", "version": "...", "nodes": [{"id", "service", "function", "successors"}]}
//
// Node order in the array is the graph's insertion order.
func DecodeJSON(r io.Reader) (*workflow.Graph, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var s snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("snapshot decode: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("snapshot decode: trailing data after snapshot object")
	}
	g := workflow.NewGraph(s.Name, s.Version)
	for _, n := range s.Nodes {
		if err := g.AddNode(workflow.Node{
			ID:         n.ID,
			Service:    n.Service,
			Function:   n.Function,
			Successors: n.Successors,
		}); err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
	}
	return g, nil
}

// EncodeJSON writes g in the native snapshot form.
func EncodeJSON(w io.Writer, g *workflow.Graph) error {
	s := snapshot{Name: g.Name, Version: g.Version, Nodes: []snapshotNode{}}
	for _, n := range g.Nodes() {
		next := n.Successors
		if next == nil {
			next = []string{}
		}
		s.Nodes = append(s.Nodes, snapshotNode{ID: n.ID, Service: n.Service, Function: n.Function, Successors: next})
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot marshal: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("snapshot write: %w", err)
	}
	return nil
}

// ─── node editor export ──────────────────────────────────────────────────────

// flumeNode is one entry of the node editor's getNodes() export.
type flumeNode struct {
	ID        string `json:"id"`
	InputData struct {
		MultiSelect struct {
			ServiceName  string `json:"service_name"`
			FunctionName string `json:"function_name"`
		} `json:"multiSelect"`
	} `json:"inputData"`
	Connections struct {
		Outputs struct {
			WorkflowNext []struct {
				NodeID string `json:"nodeId"`
			} `json:"workflowNext"`
		} `json:"outputs"`
	} `json:"connections"`
}

// DecodeFlume reads the node editor's state export: an object keyed by node
// id. Object key order is kept as insertion order, so the document body
// matches the order the editor reports nodes in. The export carries no name or
// version; the caller supplies them.
func DecodeFlume(r io.Reader, name, version string) (*workflow.Graph, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	g := workflow.NewGraph(name, version)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("flume decode: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("flume decode: expected node id, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("flume node %q: %w", key, err)
		}
		var fn flumeNode
		if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&fn); err != nil {
			return nil, fmt.Errorf("flume node %q: %w", key, err)
		}
		if fn.ID != "" && fn.ID != key {
			return nil, fmt.Errorf("flume node %q: id field %q does not match key", key, fn.ID)
		}

		var next []string
		for _, c := range fn.Connections.Outputs.WorkflowNext {
			next = append(next, c.NodeID)
		}
		if err := g.AddNode(workflow.Node{
			ID:         key,
			Service:    fn.InputData.MultiSelect.ServiceName,
			Function:   fn.InputData.MultiSelect.FunctionName,
			Successors: next,
		}); err != nil {
			return nil, fmt.Errorf("flume: %w", err)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return g, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("flume decode: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("flume decode: expected %q, got %v", want, tok)
	}
	return nil
}
