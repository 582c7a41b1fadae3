package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/openclaw-ladder/internal/review"
)

func reviewCmd() *cobra.Command {
	var (
		useClaude  bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "review [entry-id]",
		Short: "Check that an entry's ladder gets harder level by level",
		Long: `Estimates the reading grade of every rung and flags rungs that read easier than
the one below. With --claude each rung is also rated by the configured Claude model;
if the API call fails the heuristic review is returned instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("review: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			e, err := st.Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("review: %w", err)
			}

			var reviewer review.Reviewer = review.HeuristicReviewer{}
			if useClaude {
				if cfg.Claude.APIKey == "" {
					return fmt.Errorf("review: --claude needs claude.api_key or ANTHROPIC_API_KEY")
				}
				reviewer = review.NewClaudeReviewer(cfg.Claude.APIKey, cfg.Claude.Model, logger)
			}

			rev, err := reviewer.Review(ctx, e)
			if err != nil {
				return fmt.Errorf("review: %w", err)
			}
			if outputJSON {
				return printJSON(rev)
			}

			fmt.Printf("%s (%s reviewer)\n\n", e.Name, rev.Reviewer)
			fmt.Println("Level  Grade  Words  Rating")
			for _, r := range rev.Rungs {
				rating := "-"
				if r.Rating > 0 {
					rating = fmt.Sprintf("%d/5", r.Rating)
				}
				fmt.Printf("%5d  %5.1f  %5d  %s\n", r.Level, r.Grade, r.Words, rating)
				if r.Comment != "" {
					fmt.Printf("       %s\n", truncate(r.Comment, 100))
				}
			}
			if len(rev.Findings) > 0 {
				fmt.Println()
			}
			for _, f := range rev.Findings {
				fmt.Printf("[%s] level %d: %s\n", f.Severity, f.Level, f.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useClaude, "claude", false, "rate each rung with Claude")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}
