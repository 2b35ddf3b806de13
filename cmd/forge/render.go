package main

import (
	"fmt"
	"strings"

	"github.com/ravi-parthasarathy/forge/pkg/catalog"
	"github.com/ravi-parthasarathy/forge/pkg/workflow"
)

// processName is the short service.function form used in listings.
func processName(d workflow.Descriptor) string {
	return d.Service + "." + d.Function
}

func joinProcesses(ds []workflow.Descriptor) string {
	if len(ds) == 0 {
		return "(end)"
	}
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = processName(d)
	}
	return strings.Join(names, ", ")
}

// writeEntries prints one aligned line per entry.
func writeEntries(sb *strings.Builder, entries []workflow.Entry) {
	maxLen := 7 // minimum "process"
	for _, e := range entries {
		if l := len(processName(e.Process)); l > maxLen {
			maxLen = l
		}
	}
	for _, e := range entries {
		fmt.Fprintf(sb, "  %-*s  →  %s\n", maxLen, processName(e.Process), joinProcesses(e.Next))
	}
}

// renderDefinition produces the human-readable summary of a document.
func renderDefinition(def *workflow.Definition) string {
	var sb strings.Builder

	edges := 0
	for _, e := range def.Entries {
		edges += len(e.Next)
	}
	fmt.Fprintf(&sb, "Workflow: %s  version %s  schema %s  (%d processes, %d edges)\n",
		def.Name, def.Version, def.Schema, len(def.Entries), edges)

	fmt.Fprintf(&sb, "\nNext:\n")
	writeEntries(&sb, def.Entries)

	fmt.Fprintf(&sb, "\nRollback:\n")
	writeEntries(&sb, def.Rollback())

	return sb.String()
}

// renderCatalog lists every service and its functions.
func renderCatalog(c *catalog.Catalog) string {
	var sb strings.Builder
	maxLen := 7 // minimum "service"
	for _, s := range c.Services() {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	for _, s := range c.Services() {
		fmt.Fprintf(&sb, "%-*s  %s\n", maxLen, s, strings.Join(c.FunctionsFor(s), ", "))
	}
	return sb.String()
}
