package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	laddermcp "github.com/ajitpratap0/openclaw-ladder/internal/mcp"
	"github.com/ajitpratap0/openclaw-ladder/internal/search"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed (all read-only):
  get_entry            full entry by id
  select_level         best rung for a reader level
  render_entry         plain-text page at a reader level
  by_tag               published entries under a facet value
  level_coverage       entries whose ladder reaches a level
  neighbors            outgoing cross-references
  ancestors            parent chain
  dangling_references  references to missing entries
  search               full-text search
  stats                corpus statistics

The corpus is loaded once at startup. The search index is built in memory so it
does not contend with a running serve process for the on-disk index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			c, st, err := loadCorpus(ctx, logger)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			// The MCP server only reads, so the store can go once the corpus is loaded.
			_ = st.Close()
			c.Freeze()

			idx, idxErr := search.Open("", logger)
			if idxErr == nil {
				if _, idxErr = idx.Rebuild(ctx, c.Snapshot()); idxErr != nil {
					_ = idx.Close()
				}
			}
			if idxErr != nil {
				// Tool calls to search will return per-call errors rather than crashing.
				logger.Error("mcp: search index unavailable", "error", idxErr)
				idx = nil
			} else {
				defer func() { _ = idx.Close() }()
			}

			srv := laddermcp.NewServer(c, idx, version, logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: openclaw-ladder MCP server starting", "transport", "stdio", "entries", c.Len())

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
