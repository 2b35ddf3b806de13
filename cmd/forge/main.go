package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/forge/pkg/catalog"
	"github.com/ravi-parthasarathy/forge/pkg/editor"
	"github.com/ravi-parthasarathy/forge/pkg/transport"
	"github.com/ravi-parthasarathy/forge/pkg/workflow"
)

const defaultRelayURL = "http://localhost:5000/send-to-kafka"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		logLevel    string
		logFormat   string
		catalogPath string
	)

	root := &cobra.Command{
		Use:   "forge",
		Short: "Forge — workflow graph serializer",
		Long: `Forge turns a workflow graph of service calls into the canonical
workflow document consumed by the workflow manager.

Graphs are read from DOT files, native JSON snapshots or node editor exports,
validated against a service catalog and rendered without whitespace.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initLogger(logLevel, logFormat)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	root.PersistentFlags().StringVar(&catalogPath, "catalog", os.Getenv("FORGE_CATALOG"), "service catalog file (.yaml or .hcl); built-in catalog when empty")

	loadCatalog := func() (*catalog.Catalog, error) {
		if catalogPath == "" {
			return catalog.Default(), nil
		}
		c, err := catalog.Load(catalogPath)
		if err != nil {
			return nil, err
		}
		slog.Debug("catalog loaded", "path", catalogPath, "services", c.Len())
		return c, nil
	}

	root.AddCommand(lintCmd(loadCatalog))
	root.AddCommand(serializeCmd(loadCatalog))
	root.AddCommand(sendCmd(loadCatalog))
	root.AddCommand(catalogCmd(loadCatalog))
	root.AddCommand(inspectCmd())
	return root
}

// initLogger installs the default slog logger writing to stderr.
func initLogger(level, format string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

type catalogLoader func() (*catalog.Catalog, error)

// ─── shared graph flags ───────────────────────────────────────────────────────

type graphFlags struct {
	inputFormat string
	name        string
	version     string
	collisions  string
}

func (f *graphFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.inputFormat, "input-format", "auto", "graph format: auto, dot, json or flume")
	cmd.Flags().StringVar(&f.name, "name", "", "override the workflow name")
	cmd.Flags().StringVar(&f.version, "version", "", "override the workflow version")
	cmd.Flags().StringVar(&f.collisions, "collisions", "reject", "descriptor collisions: reject or last-write-wins")
}

// load reads the graph at path and lints it, returning the graph, the
// options used, and any validation problems.
func (f *graphFlags) load(path string, loadCatalog catalogLoader) (*workflow.Graph, *catalog.Catalog, []workflow.Option, error) {
	format, err := editor.ParseFormat(f.inputFormat)
	if err != nil {
		return nil, nil, nil, err
	}
	policy, err := workflow.ParseCollisionPolicy(f.collisions)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := loadCatalog()
	if err != nil {
		return nil, nil, nil, err
	}
	g, err := editor.Load(path, editor.LoadOptions{Format: format, Name: f.name, Version: f.version})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load graph: %w", err)
	}
	slog.Debug("graph loaded", "path", path, "name", g.Name, "version", g.Version, "nodes", g.Len())
	return g, c, []workflow.Option{workflow.WithCollisionPolicy(policy)}, nil
}

func (f *graphFlags) document(path string, loadCatalog catalogLoader) (workflow.Document, error) {
	g, c, opts, err := f.load(path, loadCatalog)
	if err != nil {
		return workflow.Document{}, err
	}
	v, err := workflow.Validate(g, c, opts...)
	if err != nil {
		return workflow.Document{}, err
	}
	doc := workflow.Serialize(v)
	slog.Info("workflow serialized", "name", doc.Name(), "version", doc.Version(), "nodes", v.Len(), "bytes", doc.Len(), "digest", doc.Digest())
	return doc, nil
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd(loadCatalog catalogLoader) *cobra.Command {
	var flags graphFlags
	cmd := &cobra.Command{
		Use:   "lint <graph>",
		Short: "Validate a workflow graph without serializing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, c, opts, err := flags.load(args[0], loadCatalog)
			if err != nil {
				return err
			}
			if _, err := workflow.Validate(g, c, opts...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: workflow %q (%s) is valid (%d nodes, %d edges)\n",
				g.Name, g.Version, g.Len(), g.EdgeCount())
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// ─── serialize ────────────────────────────────────────────────────────────────

func serializeCmd(loadCatalog catalogLoader) *cobra.Command {
	var (
		flags   graphFlags
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "serialize <graph>",
		Short: "Render a workflow graph as its canonical document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := flags.document(args[0], loadCatalog)
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, doc.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write document: %w", err)
				}
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), doc.String())
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the document to a file instead of stdout")
	return cmd
}

// ─── send ─────────────────────────────────────────────────────────────────────

func sendCmd(loadCatalog catalogLoader) *cobra.Command {
	var (
		flags       graphFlags
		relayURL    string
		timeout     time.Duration
		retries     int
		receiptPath string
		dryRun      bool
	)

	defaultURL := os.Getenv("FORGE_RELAY_URL")
	if defaultURL == "" {
		defaultURL = defaultRelayURL
	}

	cmd := &cobra.Command{
		Use:   "send <graph>",
		Short: "Serialize a workflow graph and deliver it to the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := flags.document(args[0], loadCatalog)
			if err != nil {
				return err
			}

			var (
				adapter transport.Adapter
				dest    string
			)
			if dryRun {
				adapter, dest = &transport.WriterAdapter{W: cmd.OutOrStdout()}, "stdout"
			} else {
				adapter = &transport.HTTPRelay{URL: relayURL, Timeout: timeout, Attempts: retries + 1}
				dest = relayURL
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			sub, err := transport.Submit(ctx, adapter, doc)
			if err != nil {
				return err
			}
			slog.Info("workflow delivered", "submission", sub.ID, "destination", dest, "digest", sub.Digest)

			if receiptPath != "" {
				r := transport.NewReceipt(sub, doc.Len(), dest, time.Now())
				if err := transport.SaveReceipt(receiptPath, r); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&relayURL, "relay-url", defaultURL, "relay endpoint that forwards documents to the edits queue")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-attempt request timeout")
	cmd.Flags().IntVar(&retries, "retries", 2, "retries after a transient delivery failure")
	cmd.Flags().StringVar(&receiptPath, "receipt", "", "write a JSON delivery receipt to this path")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the document instead of sending it")
	return cmd
}

// ─── catalog ──────────────────────────────────────────────────────────────────

func catalogCmd(loadCatalog catalogLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the services and functions of the active catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadCatalog()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderCatalog(c))
			return nil
		},
	}
}

// ─── inspect ──────────────────────────────────────────────────────────────────

func inspectCmd() *cobra.Command {
	var canonical bool
	cmd := &cobra.Command{
		Use:   "inspect <document>",
		Short: "Decode a workflow document and print its entries and rollback graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			def, err := workflow.ParseDocument(src)
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			if canonical {
				fmt.Fprintln(cmd.OutOrStdout(), def.Document().String())
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderDefinition(def))
			return nil
		},
	}
	cmd.Flags().BoolVar(&canonical, "canonical", false, "print the document in canonical form only")
	return cmd
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
// Calling the returned func releases the signal watcher.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		select {
		case <-ch:
			fmt.Fprintln(os.Stderr, "\n[forge] interrupted — cancelling delivery")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
