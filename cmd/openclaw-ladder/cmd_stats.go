package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("stats: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			stats, err := st.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: fetching statistics: %w", err)
			}

			fmt.Printf("Total entries: %d\n\n", stats.TotalEntries)

			fmt.Println("By type:")
			for _, k := range sortedKeys(stats.ByType) {
				fmt.Printf("  %-12s %d\n", k, stats.ByType[k])
			}

			fmt.Println("\nBy status:")
			for _, k := range sortedKeys(stats.ByStatus) {
				fmt.Printf("  %-12s %d\n", k, stats.ByStatus[k])
			}

			fmt.Println("\nBy number of levels:")
			counts := make([]int, 0, len(stats.ByLevelCount))
			for n := range stats.ByLevelCount {
				counts = append(counts, n)
			}
			sort.Ints(counts)
			for _, n := range counts {
				fmt.Printf("  %-12d %d\n", n, stats.ByLevelCount[n])
			}

			return nil
		},
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
