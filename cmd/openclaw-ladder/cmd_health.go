package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the store, index, content directory and optional services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			// Check SQLite
			st, err := newStore(logger)
			if err != nil {
				fmt.Printf("Store: FAIL (%v)\n", err)
				allOK = false
			} else {
				defer func() { _ = st.Close() }()
				if err := st.Ping(ctx); err != nil {
					fmt.Printf("Store: FAIL (%v)\n", err)
					allOK = false
				} else {
					fmt.Println("Store: OK")
				}
			}

			// Check search index
			idx, err := openIndex(logger)
			if err != nil {
				fmt.Printf("Search index: FAIL (%v)\n", err)
				allOK = false
			} else {
				n, _ := idx.DocCount()
				_ = idx.Close()
				fmt.Printf("Search index: OK (%d documents)\n", n)
			}

			// Check content directory
			if info, err := os.Stat(cfg.Content.Dir); err != nil || !info.IsDir() {
				fmt.Printf("Content dir: MISSING (%s)\n", cfg.Content.Dir)
			} else {
				fmt.Println("Content dir: OK")
			}

			// Check Neo4j
			if cfg.Neo4j.URI == "" {
				fmt.Println("Neo4j: not configured")
			} else {
				client, err := newNeo4jClient(ctx, logger)
				if err != nil {
					fmt.Printf("Neo4j: FAIL (%v)\n", err)
					allOK = false
				} else {
					_ = client.Close(ctx)
					fmt.Println("Neo4j: OK")
				}
			}

			// Check Claude API key
			if cfg.Claude.APIKey == "" {
				fmt.Println("Claude API: not configured (heuristic review only)")
			} else {
				fmt.Println("Claude API: OK")
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
