package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SchemaVersion is the fixed schema tag written into every document.
const SchemaVersion = "v0.1.0"

// Document is a serialized workflow definition in canonical form.
// It is immutable; Bytes returns a fresh copy on every call.
type Document struct {
	name    string
	version string
	text    string
}

// Name returns the workflow name recorded in the document.
func (d Document) Name() string { return d.name }

// Version returns the workflow version recorded in the document.
func (d Document) Version() string { return d.version }

// String returns the canonical text.
func (d Document) String() string { return d.text }

// Bytes returns the canonical text as raw bytes for transport.
func (d Document) Bytes() []byte { return []byte(d.text) }

// Len returns the document size in bytes.
func (d Document) Len() int { return len(d.text) }

// Digest returns the hex-encoded sha256 of the canonical bytes.
func (d Document) Digest() string {
	sum := sha256.Sum256([]byte(d.text))
	return hex.EncodeToString(sum[:])
}

// Serialize renders a validated graph into its canonical document.
// Body entries follow node insertion order; successor order is preserved.
func Serialize(v *Validated) Document {
	if v == nil || v.graph == nil {
		panic("workflow: Serialize requires a graph returned by Validate")
	}
	def := &Definition{
		Name:    v.graph.Name,
		Version: v.graph.Version,
		Schema:  SchemaVersion,
		Entries: buildEntries(v.graph),
	}
	return def.Document()
}

// buildEntries resolves every node and its successors to descriptors.
// When two nodes share a descriptor (only possible under LastWriteWins) the
// entry stays where it was first seen and takes the later node's successors.
func buildEntries(g *Graph) []Entry {
	entries := make([]Entry, 0, g.Len())
	index := make(map[Descriptor]int, g.Len())

	g.each(func(n *Node) {
		key := DescriptorOf(*n)
		next := make([]Descriptor, 0, len(n.Successors))
		for _, id := range n.Successors {
			next = append(next, DescriptorOf(*g.nodes[id]))
		}
		if i, seen := index[key]; seen {
			entries[i].Next = next
			return
		}
		index[key] = len(entries)
		entries = append(entries, Entry{Process: key, Next: next})
	})
	return entries
}

// Document renders d in canonical form. It is used both by Serialize and to
// re-canonicalize a decoded document.
func (d *Definition) Document() Document {
	return Document{
		name:    d.Name,
		version: d.Version,
		text:    Canonicalize(d.layout()),
	}
}

// layout assembles the document with line breaks and indentation; the
// canonical pass then strips every whitespace run outside string literals.
func (d *Definition) layout() string {
	var sb strings.Builder

	sb.WriteString("(\n  name: ")
	writeQuoted(&sb, d.Name)
	sb.WriteString(",\n  version: ")
	writeQuoted(&sb, d.Version)
	sb.WriteString(",\n  schema: ")
	writeQuoted(&sb, d.Schema)
	sb.WriteString(",\n  workflow: {")

	for i, e := range d.Entries {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("\n    ")
		e.Process.writeTo(&sb)
		sb.WriteString(": [")
		for j, next := range e.Next {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString("\n      ")
			next.writeTo(&sb)
		}
		if len(e.Next) > 0 {
			sb.WriteString("\n    ")
		}
		sb.WriteByte(']')
	}
	if len(d.Entries) > 0 {
		sb.WriteString("\n  ")
	}
	sb.WriteString("}\n)")
	return sb.String()
}
