package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/render"
	"github.com/ajitpratap0/openclaw-ladder/internal/store"
)

func getCmd() *cobra.Command {
	var (
		outputJSON bool
		level      int
	)

	cmd := &cobra.Command{
		Use:   "get [entry-id]",
		Short: "Show an entry, or render it at a reader level with --level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			c, st, err := loadCorpus(ctx, logger)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			defer func() { _ = st.Close() }()

			if level > 0 {
				page := render.Render(c.Snapshot(), args[0], level)
				if outputJSON {
					return printJSON(page)
				}
				if err := render.WriteText(os.Stdout, page); err != nil {
					return fmt.Errorf("get: rendering: %w", err)
				}
				if !page.Available {
					return fmt.Errorf("get: %w: %s", store.ErrNotFound, args[0])
				}
				return nil
			}

			e, err := c.Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			if outputJSON {
				return printJSON(e)
			}

			fmt.Printf("ID:         %s\n", e.ID)
			fmt.Printf("Name:       %s\n", e.Name)
			if len(e.AlternateNames) > 0 {
				fmt.Printf("Also:       %s\n", strings.Join(e.AlternateNames, ", "))
			}
			fmt.Printf("Type:       %s\n", e.Type)
			fmt.Printf("Status:     %s\n", e.Status)
			fmt.Printf("Version:    %d\n", e.Version)
			fmt.Printf("Levels:     %v\n", e.LevelNumbers())
			for _, f := range models.ValidFacets {
				if vals := e.Tags.Values(f); len(vals) > 0 {
					fmt.Printf("%-11s %s\n", string(f)+":", strings.Join(vals, ", "))
				}
			}
			if !e.UpdatedAt.IsZero() {
				fmt.Printf("Updated:    %s\n", e.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			for _, n := range e.LevelNumbers() {
				fmt.Printf("\n[%d] %s\n", n, truncate(e.Levels[n].Summary, 160))
			}
			if len(e.CrossReferences) > 0 {
				fmt.Println("\nCross-references:")
				for _, ref := range e.CrossReferences {
					fmt.Printf("  %-9s %s\n", ref.Relationship, ref.TargetID)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().IntVar(&level, "level", 0, "render at this reader level (1 = 8th grade)")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		entryType string
		status    string
		tag       string
		minLevel  int
		all       bool
		limit     uint64
		cursor    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			filters := &store.Filters{MinLevel: minLevel, IncludeDeprecated: all}
			if entryType != "" {
				et := models.EntryType(entryType)
				if !et.IsValid() {
					return fmt.Errorf("list: invalid type %q", entryType)
				}
				filters.Type = &et
			}
			if status != "" {
				s := models.Status(status)
				if !s.IsValid() {
					return fmt.Errorf("list: invalid status %q", status)
				}
				filters.Status = &s
			}
			if tag != "" {
				tf, err := parseTag(tag)
				if err != nil {
					return fmt.Errorf("list: %w", err)
				}
				filters.Tag = tf
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("list: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			entries, next, err := st.List(ctx, filters, limit, cursor)
			if err != nil {
				return fmt.Errorf("list: fetching entries: %w", err)
			}

			for i := range entries {
				e := &entries[i]
				fmt.Printf("[%d] [%s/%s] %s\n", i+1, e.Type, e.Status, e.Name)
				fmt.Printf("    ID: %s | Levels: %v | Version: %d\n", e.ID, e.LevelNumbers(), e.Version)
			}

			if len(entries) == 0 {
				fmt.Println("No entries found.")
			}
			if next != "" {
				fmt.Printf("\nMore results: --cursor %s\n", next)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&entryType, "type", "", "filter by type (concept|condition|topic|process|system)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (draft|published|deprecated)")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag, e.g. clinicalRelevance=critical")
	cmd.Flags().IntVar(&minLevel, "min-level", 0, "only entries whose ladder reaches this level")
	cmd.Flags().BoolVar(&all, "all", false, "include deprecated entries")
	cmd.Flags().Uint64Var(&limit, "limit", 50, "max results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "resume after this entry id")
	return cmd
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
