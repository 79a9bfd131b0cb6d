package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/medcontext-mcp/internal/config"
	"github.com/dshills/medcontext-mcp/internal/mcp"
	"github.com/dshills/medcontext-mcp/internal/metrics"
	"github.com/dshills/medcontext-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const configKey = "config"

func main() {
	if err := newCLI(os.Stdout).Run(os.Args); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newCLI(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "medcontext",
		Usage:     "Drug information retrieval and question answering over MCP",
		Version:   version,
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Path to the drug CSV file",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory for the index database and sessions",
			},
			&cli.StringFlag{
				Name:  "embedding-provider",
				Usage: "Embedding provider (ollama, openai, local)",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
			&cli.StringFlag{
				Name:  "llm-provider",
				Usage: "Language model provider (ollama, openai)",
			},
			&cli.StringFlag{
				Name:  "llm-model",
				Usage: "Language model name",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Build the indices and serve MCP tools on stdio",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Listen address for /metrics and /healthz (empty disables)",
					},
				},
			},
			{
				Name:   "index",
				Usage:  "Build the dense and sparse indices",
				Action: indexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-embed every document even if the stored vectors match",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a single question",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "session",
						Usage: "Conversation id for pronoun resolution",
						Value: "cli",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show index statistics",
				Action: statusCommand,
			},
			{
				Name:   "version",
				Usage:  "Show build information",
				Action: versionCommand,
			},
		},
	}
}

// setup loads configuration, applies flag overrides and configures slog.
// stderr is used for logs since stdout carries the MCP protocol.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return err
	}

	override := func(flag string, dst *string) {
		if c.IsSet(flag) {
			*dst = strings.ToLower(c.String(flag))
		}
	}
	override("log-level", &cfg.LogLevel)
	override("embedding-provider", &cfg.EmbeddingProvider)
	override("llm-provider", &cfg.LLMProvider)
	if c.IsSet("csv") {
		cfg.CSVPath = c.String("csv")
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("embedding-model") {
		cfg.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("llm-model") {
		cfg.LLMModel = c.String("llm-model")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata[configKey].(*config.Config)
}

func serveCommand(c *cli.Context) error {
	cfg := configFrom(c)
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(cfg, true)
	if err != nil {
		return err
	}
	defer app.close()

	slog.Info("MedContext MCP server starting",
		"version", version,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName,
		"embedding_provider", app.embedder.Provider(),
		"embedding_model", app.embedder.Model())

	if _, err := app.buildIndices(ctx, false); err != nil {
		return err
	}

	server := mcp.NewServer(mcp.Deps{
		Assistant: app.assistant,
		Searcher:  app.searcher,
		Status:    app.store,
		Builds:    app.indexer,
		Metrics:   app.metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		ms := metrics.NewServer(cfg.MetricsAddr, app.metrics, app.health)
		g.Go(func() error { return ms.Run(gctx) })
	}
	g.Go(func() error {
		slog.Info("MCP server ready, listening on stdio")
		err := server.Serve(gctx)
		stop() // also stops the metrics server
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	slog.Info("server stopped")
	return err
}

func indexCommand(c *cli.Context) error {
	app, err := newApplication(configFrom(c), false)
	if err != nil {
		return err
	}
	defer app.close()

	stats, err := app.buildIndices(c.Context, c.Bool("force"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Records:           %d\n", stats.Records)
	fmt.Fprintf(w, "Full documents:    %d\n", stats.FullDocuments)
	fmt.Fprintf(w, "Compact documents: %d\n", stats.CompactDocuments)
	fmt.Fprintf(w, "Dense reused:      %v\n", stats.DenseReused)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("a question is required")
	}

	app, err := newApplication(configFrom(c), true)
	if err != nil {
		return err
	}
	defer app.close()

	if _, err := app.buildIndices(c.Context, false); err != nil {
		return err
	}

	ans, err := app.assistant.Ask(c.Context, c.String("session"), question)
	if err != nil {
		return err
	}

	w := c.App.Writer
	if ans.Resolved {
		fmt.Fprintf(w, "Interpreting the question as referring to %s.\n\n", ans.Drug)
	}
	fmt.Fprintln(w, ans.Text)
	if len(ans.FollowUps) > 0 {
		fmt.Fprintln(w, "\nYou can also ask:")
		for _, q := range ans.FollowUps {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	store, err := openStorage(configFrom(c))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	status, err := store.GetStatus(c.Context)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Full documents:    %d\n", status.FullDocuments)
	fmt.Fprintf(w, "Compact documents: %d\n", status.CompactDocuments)
	fmt.Fprintf(w, "Embeddings:        %d\n", status.Embeddings)
	if len(status.States) == 0 {
		fmt.Fprintln(w, "Indices:           not built")
	}
	for _, st := range status.States {
		fmt.Fprintf(w, "Index %-6s       %d documents, built %s", st.Name, st.Documents, st.BuiltAt.Format("2006-01-02 15:04:05"))
		if st.Model != "" {
			fmt.Fprintf(w, ", model %s", st.Model)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func versionCommand(c *cli.Context) error {
	w := c.App.Writer
	fmt.Fprintf(w, "MedContext MCP Server\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Build Mode: %s\n", storage.BuildMode)
	fmt.Fprintf(w, "SQLite Driver: %s\n", storage.DriverName)
	return nil
}
