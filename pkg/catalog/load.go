package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// Format identifies a catalog file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// FormatFromPath picks a Format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("unsupported catalog extension %q: use .yaml, .yml or .hcl", filepath.Ext(path))
	}
}

// Load reads a catalog file, choosing the decoder by extension.
func Load(path string) (*Catalog, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := parse(data, format, path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes catalog data in the given format.
func Parse(data []byte, format Format) (*Catalog, error) {
	return parse(data, format, "catalog."+string(format))
}

func parse(data []byte, format Format, filename string) (*Catalog, error) {
	switch format {
	case FormatYAML:
		return parseYAML(data)
	case FormatHCL:
		return parseHCL(data, filename)
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
}

// ─── YAML ─────────────────────────────────────────────────────────────────────

type yamlCatalog struct {
	Services []yamlService `yaml:"services"`
}

type yamlService struct {
	Name      string   `yaml:"name"`
	Functions []string `yaml:"functions"`
}

func parseYAML(data []byte) (*Catalog, error) {
	var doc yamlCatalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	services := make([]Service, 0, len(doc.Services))
	for _, s := range doc.Services {
		services = append(services, Service{Name: s.Name, Functions: s.Functions})
	}
	return New(services...)
}

// ─── HCL ──────────────────────────────────────────────────────────────────────

type hclCatalog struct {
	Services []*hclService `hcl:"service,block"`
}

type hclService struct {
	Name      string   `hcl:"name,label"`
	Functions []string `hcl:"functions,optional"`
}

func parseHCL(data []byte, filename string) (*Catalog, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hcl parse: %w", diags)
	}
	var doc hclCatalog
	diags = gohcl.DecodeBody(file.Body, nil, &doc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("hcl decode: %w", diags)
	}
	services := make([]Service, 0, len(doc.Services))
	for _, s := range doc.Services {
		services = append(services, Service{Name: s.Name, Functions: s.Functions})
	}
	return New(services...)
}
