package editor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ravi-parthasarathy/forge/pkg/workflow"
)

// Format names a graph snapshot encoding.
type Format string

const (
	FormatAuto  Format = "auto"
	FormatDOT   Format = "dot"
	FormatJSON  Format = "json"
	FormatFlume Format = "flume"
)

// DefaultName is used for node editor exports when no name is given.
const DefaultName = "user_registration"

// DefaultVersion is used for node editor exports when no version is given.
const DefaultVersion = "v0.1.0"

// LoadOptions control how a snapshot file is read.
type LoadOptions struct {
	Format Format
	// Name and Version, when set, replace whatever the snapshot carries.
	Name    string
	Version string
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatDOT, FormatJSON, FormatFlume:
		return f, nil
	}
	return "", fmt.Errorf("unknown input format %q: use auto, dot, json or flume", s)
}

// detect resolves FormatAuto from the file extension.
func detect(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dot", ".gv":
		return FormatDOT, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("cannot infer input format from %q: pass an explicit format", path)
}

// Load reads a graph snapshot from path.
func Load(path string, opts LoadOptions) (*workflow.Graph, error) {
	format := opts.Format
	if format == "" || format == FormatAuto {
		var err error
		if format, err = detect(path); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	g, err := Decode(data, format, opts.Name, opts.Version)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Decode parses data in an explicit format and applies name/version
// overrides.
func Decode(data []byte, format Format, name, version string) (*workflow.Graph, error) {
	var (
		g   *workflow.Graph
		err error
	)
	switch format {
	case FormatDOT:
		g, err = workflow.ParseDOT(string(data))
	case FormatJSON:
		g, err = DecodeJSON(bytes.NewReader(data))
	case FormatFlume:
		g, err = DecodeFlume(bytes.NewReader(data), DefaultName, DefaultVersion)
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if name != "" {
		g.Name = name
	}
	if version != "" {
		g.Version = version
	}
	return g, nil
}
