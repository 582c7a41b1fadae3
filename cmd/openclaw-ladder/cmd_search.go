package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/search"
)

func searchCmd() *cobra.Command {
	var (
		entryType string
		limit     int
		fuzzy     bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Full-text search over names, alternate names, key terms and tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			opts := search.Options{Fuzzy: fuzzy || cfg.Search.Fuzzy}
			if entryType != "" {
				et := models.EntryType(entryType)
				if !et.IsValid() {
					return fmt.Errorf("search: invalid type %q", entryType)
				}
				opts.Types = []models.EntryType{et}
			}
			if limit <= 0 {
				limit = cfg.Search.DefaultLimit
			}

			c, st, err := loadCorpus(ctx, logger)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer func() { _ = st.Close() }()

			idx, err := openIndex(logger)
			if err != nil {
				return fmt.Errorf("search: opening index: %w", err)
			}
			defer func() { _ = idx.Close() }()

			snap := c.Snapshot()
			if _, err := idx.Rebuild(ctx, snap); err != nil {
				return fmt.Errorf("search: refreshing index: %w", err)
			}

			hits, err := idx.Search(ctx, strings.Join(args, " "), limit, opts)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			for i, h := range hits {
				e, ok := snap.Lookup(h.ID)
				if !ok {
					continue
				}
				fmt.Printf("[%d] (%.4f) [%s] %s\n", i+1, h.Score, e.Type, e.Name)
				if lc, ok := e.Levels[e.MinLevel()]; ok {
					fmt.Printf("    ID: %s | %s\n", e.ID, truncate(lc.Summary, 100))
				}
			}

			if len(hits) == 0 {
				fmt.Println("No results found.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&entryType, "type", "", "filter by entry type")
	cmd.Flags().IntVar(&limit, "limit", 0, "max results (default: search.default_limit)")
	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "tolerate one-letter typos in names")
	return cmd
}
