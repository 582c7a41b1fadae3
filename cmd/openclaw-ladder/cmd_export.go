package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/store"
)

func exportCmd() *cobra.Command {
	var (
		format string
		output string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored entries as JSON or JSON lines",
		Long: `Writes entries in the same shape ingest reads, so an export can be
re-ingested elsewhere. Deprecated entries are skipped unless --all is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if format != "json" && format != "jsonl" {
				return fmt.Errorf("export: unsupported format %q (use json or jsonl)", format)
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("export: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			filters := &store.Filters{IncludeDeprecated: all}
			entries := []models.Entry{}
			cursor := ""
			for {
				page, next, listErr := st.List(ctx, filters, 500, cursor)
				if listErr != nil {
					return fmt.Errorf("export: listing entries: %w", listErr)
				}
				entries = append(entries, page...)
				if next == "" {
					break
				}
				cursor = next
			}

			var w *os.File
			if output == "" || output == "-" {
				w = os.Stdout
			} else {
				w, err = os.Create(output)
				if err != nil {
					return fmt.Errorf("export: creating output file: %w", err)
				}
				defer func() { _ = w.Close() }()
			}

			enc := json.NewEncoder(w)
			switch format {
			case "json":
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(entries); encErr != nil {
					return fmt.Errorf("export: encoding JSON: %w", encErr)
				}
			case "jsonl":
				for i := range entries {
					if encErr := enc.Encode(&entries[i]); encErr != nil {
						return fmt.Errorf("export: encoding %s: %w", entries[i].ID, encErr)
					}
				}
			}

			if output != "" && output != "-" {
				fmt.Fprintf(os.Stderr, "Exported %d entries to %s\n", len(entries), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format: json or jsonl")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file path (- for stdout)")
	cmd.Flags().BoolVar(&all, "all", false, "include deprecated entries")
	return cmd
}
