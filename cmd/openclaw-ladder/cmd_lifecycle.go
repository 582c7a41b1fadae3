package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/openclaw-ladder/internal/lifecycle"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
)

func promoteCmd() *cobra.Command {
	return transitionCmd("promote", "Publish draft entries", models.StatusPublished)
}

func deprecateCmd() *cobra.Command {
	return transitionCmd("deprecate", "Retire entries; a deprecated id cannot be reused", models.StatusDeprecated)
}

func transitionCmd(use, short string, next models.Status) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   use + " [entry-id...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("%s: opening store: %w", use, err)
			}
			defer func() { _ = st.Close() }()

			report := lifecycle.NewManager(logger, st).Apply(ctx, args, next, dryRun)

			fmt.Printf("Lifecycle report (%s):\n", next)
			fmt.Printf("  Changed:  %d\n", len(report.Changed))
			fmt.Printf("  Skipped:  %d\n", len(report.Skipped))
			fmt.Printf("  Failed:   %d\n", len(report.Failed))
			ids := make([]string, 0, len(report.Failed))
			for id := range report.Failed {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Printf("    %s: %s\n", id, report.Failed[id])
			}
			if dryRun {
				fmt.Println("  (dry run, no changes applied)")
			}

			if len(report.Failed) > 0 {
				return fmt.Errorf("%s: %d entr(ies) failed", use, len(report.Failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without applying")
	return cmd
}
