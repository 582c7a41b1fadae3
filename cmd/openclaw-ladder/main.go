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

	"github.com/ajitpratap0/openclaw-ladder/internal/config"
	"github.com/ajitpratap0/openclaw-ladder/internal/corpus"
	"github.com/ajitpratap0/openclaw-ladder/internal/graph"
	"github.com/ajitpratap0/openclaw-ladder/internal/ingest"
	"github.com/ajitpratap0/openclaw-ladder/internal/loader"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/search"
	"github.com/ajitpratap0/openclaw-ladder/internal/store"
	"github.com/ajitpratap0/openclaw-ladder/internal/validate"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfg        *config.Config
	configPath string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "openclaw-ladder",
		Short: "OpenClaw Ladder: multi-level medical education content corpus",
		Long: "Ladder stores medical topics as explanation ladders (8th-grade summary up to clinical practice), " +
			"validates them, indexes them by tag and cross-reference, and serves the right rung to each reader.",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadFile(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.openclaw-ladder/config.yaml)")

	rootCmd.AddCommand(
		validateCmd(),
		ingestCmd(),
		getCmd(),
		listCmd(),
		refsCmd(),
		graphCmd(),
		searchCmd(),
		reviewCmd(),
		promoteCmd(),
		deprecateCmd(),
		exportCmd(),
		statsCmd(),
		healthCmd(),
		serveCmd(),
		mcpCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch strings.ToLower(cfg.Logging.Level) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newStore(logger *slog.Logger) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.Store.SQLitePath, logger)
}

// loadCorpus opens the durable store and copies it into a fresh in-memory corpus.
// The caller owns the returned store.
func loadCorpus(ctx context.Context, logger *slog.Logger) (*corpus.Corpus, *store.SQLiteStore, error) {
	st, err := newStore(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	c := corpus.New(logger)
	if _, err := c.Load(ctx, st); err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return c, st, nil
}

func newLoader(logger *slog.Logger) *loader.Loader {
	return loader.New(cfg.Content.Extensions, cfg.Content.LoadWorkers, logger)
}

func newValidator() *validate.Validator {
	return validate.New(validate.Options{AllowSparseLevels: cfg.Content.AllowSparseLevels})
}

func newPipeline(logger *slog.Logger, sinks ...store.Store) *ingest.Pipeline {
	return ingest.New(newLoader(logger), newValidator(), logger, sinks...)
}

func openIndex(logger *slog.Logger) (*search.Index, error) {
	return search.Open(cfg.Search.IndexPath, logger)
}

func newNeo4jClient(ctx context.Context, logger *slog.Logger) (*graph.Neo4jClient, error) {
	return graph.NewNeo4jClient(ctx, graph.Neo4jConfig{
		URI:      cfg.Neo4j.URI,
		User:     cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
		Timeout:  10 * time.Second,
	}, logger)
}

// contentPaths falls back to the configured content directory when no paths are given.
func contentPaths(args []string) []string {
	if len(args) > 0 {
		return args
	}
	return []string{cfg.Content.Dir}
}

// parseTag splits a facet=value flag.
func parseTag(raw string) (*store.TagFilter, error) {
	facet, value, ok := strings.Cut(raw, "=")
	facet, value = strings.TrimSpace(facet), strings.TrimSpace(value)
	if !ok || facet == "" || value == "" {
		return nil, fmt.Errorf("tag filter %q must look like facet=value", raw)
	}
	f := models.Facet(facet)
	if !f.IsValid() {
		return nil, fmt.Errorf("unknown tag facet %q", facet)
	}
	return &store.TagFilter{Facet: f, Value: value}, nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
