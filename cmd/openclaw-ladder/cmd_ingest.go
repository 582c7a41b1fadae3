package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/openclaw-ladder/internal/corpus"
	"github.com/ajitpratap0/openclaw-ladder/internal/ingest"
	"github.com/ajitpratap0/openclaw-ladder/internal/validate"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [paths...]",
		Short: "Check content files against the entry schema without storing anything",
		Long: `Validates every record under the given files or directories (default: content.dir)
and lists all violations per record. Records that pass are also checked for
cross-references that point outside the validated set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			res, err := newLoader(logger).Load(ctx, contentPaths(args))
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}

			v := newValidator()
			scratch := corpus.New(logger)
			invalid := 0
			for _, fe := range res.Errors {
				fmt.Printf("FAIL %s: %v\n", fe.Path, fe.Err)
				invalid++
			}
			for _, rec := range res.Records {
				e, vErr := v.Validate(rec.Raw)
				if vErr != nil {
					invalid++
					fmt.Printf("FAIL %s[%d]\n", rec.Source, rec.Index)
					var ve *validate.ValidationError
					if errors.As(vErr, &ve) {
						for _, viol := range ve.Violations {
							fmt.Printf("    %s\n", viol)
						}
					} else {
						fmt.Printf("    %v\n", vErr)
					}
					continue
				}
				if putErr := scratch.Put(ctx, *e); putErr != nil {
					invalid++
					fmt.Printf("FAIL %s[%d] %s: %v\n", rec.Source, rec.Index, e.ID, putErr)
				}
			}

			for _, d := range scratch.ResolveReferences() {
				fmt.Printf("WARN %s -> %s (%s): target not in validated set\n", d.SourceID, d.TargetID, d.Relationship)
			}

			fmt.Printf("\n%d record(s), %d valid, %d invalid\n", len(res.Records), scratch.Len(), invalid)
			if invalid > 0 {
				return fmt.Errorf("validate: %d problem(s) found", invalid)
			}
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Validate content files and admit them into the entry store",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("ingest: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			report, err := newPipeline(logger, st).Run(ctx, contentPaths(args))
			if err != nil {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(report); encErr != nil {
					return fmt.Errorf("ingest: encoding report: %w", encErr)
				}
			} else {
				printReport(report)
			}

			if !report.OK() {
				return fmt.Errorf("ingest: %d record(s) not admitted", len(report.Problems))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output the run report as JSON")
	return cmd
}

func printReport(r *ingest.Report) {
	fmt.Printf("Ingest run %s\n", r.RunID)
	fmt.Printf("  Admitted:   %d\n", len(r.Admitted))
	fmt.Printf("  Unchanged:  %d\n", len(r.Unchanged))
	fmt.Printf("  Rejected:   %d\n", r.Count(ingest.OutcomeRejected))
	fmt.Printf("  Stale:      %d\n", r.Count(ingest.OutcomeStale))
	fmt.Printf("  Failed:     %d\n", r.Count(ingest.OutcomeFailed))
	for _, p := range r.Problems {
		label := p.Source
		if p.Index >= 0 {
			label = fmt.Sprintf("%s[%d]", p.Source, p.Index)
		}
		if p.ID != "" {
			label += " " + p.ID
		}
		fmt.Printf("\n  [%s] %s\n", p.Outcome, label)
		if len(p.Violations) == 0 {
			fmt.Printf("    %s\n", p.Error)
		}
		for _, v := range p.Violations {
			fmt.Printf("    %s\n", v)
		}
	}
}
