package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/openclaw-ladder/internal/graph"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
)

func refsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refs",
		Short: "Report cross-references whose target is not in the corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			c, st, err := loadCorpus(ctx, logger)
			if err != nil {
				return fmt.Errorf("refs: %w", err)
			}
			defer func() { _ = st.Close() }()

			dangling := c.ResolveReferences()
			for _, d := range dangling {
				fmt.Printf("%s -> %s (%s)\n", d.SourceID, d.TargetID, d.Relationship)
			}
			fmt.Printf("\n%d dangling reference(s) across %d entries\n", len(dangling), c.Len())
			return nil
		},
	}
}

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Walk the cross-reference graph",
	}
	cmd.AddCommand(
		neighborsCmd(),
		backlinksCmd(),
		ancestorsCmd(),
		reciprocalsCmd(),
		graphSyncCmd(),
	)
	return cmd
}

func parseRelationships(raw string) ([]models.Relationship, error) {
	if raw == "" {
		return nil, nil
	}
	var out []models.Relationship
	for _, part := range strings.Split(raw, ",") {
		rel := models.Relationship(strings.TrimSpace(part))
		if !rel.IsValid() {
			return nil, fmt.Errorf("invalid relationship %q", rel)
		}
		out = append(out, rel)
	}
	return out, nil
}

func printEdges(edges []graph.Edge, outgoing bool) {
	for _, e := range edges {
		other := e.TargetID
		if !outgoing {
			other = e.SourceID
		}
		mark := ""
		if !e.Resolved {
			mark = "  (missing)"
		}
		fmt.Printf("  %-9s %s%s\n", e.Relationship, other, mark)
	}
	if len(edges) == 0 {
		fmt.Println("  none")
	}
}

func neighborsCmd() *cobra.Command {
	var rel string

	cmd := &cobra.Command{
		Use:   "neighbors [entry-id]",
		Short: "List outgoing cross-references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rels, err := parseRelationships(rel)
			if err != nil {
				return fmt.Errorf("neighbors: %w", err)
			}
			logger := newLogger()
			c, st, err := loadCorpus(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("neighbors: %w", err)
			}
			defer func() { _ = st.Close() }()

			edges, err := graph.Neighbors(c.Snapshot(), args[0], rels...)
			if err != nil {
				return fmt.Errorf("neighbors: %w", err)
			}
			fmt.Printf("%s ->\n", args[0])
			printEdges(edges, true)
			return nil
		},
	}

	cmd.Flags().StringVar(&rel, "rel", "", "comma-separated relationship filter (parent,sibling,related,see-also)")
	return cmd
}

func backlinksCmd() *cobra.Command {
	var rel string

	cmd := &cobra.Command{
		Use:   "backlinks [entry-id]",
		Short: "List entries that reference an id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rels, err := parseRelationships(rel)
			if err != nil {
				return fmt.Errorf("backlinks: %w", err)
			}
			logger := newLogger()
			c, st, err := loadCorpus(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("backlinks: %w", err)
			}
			defer func() { _ = st.Close() }()

			fmt.Printf("-> %s\n", args[0])
			printEdges(graph.Backlinks(c.Snapshot(), args[0], rels...), false)
			return nil
		},
	}

	cmd.Flags().StringVar(&rel, "rel", "", "comma-separated relationship filter")
	return cmd
}

func ancestorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ancestors [entry-id]",
		Short: "Follow parent links upward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			c, st, err := loadCorpus(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("ancestors: %w", err)
			}
			defer func() { _ = st.Close() }()

			chain, err := graph.Ancestors(c.Snapshot(), args[0])
			if err != nil {
				return fmt.Errorf("ancestors: %w", err)
			}
			path := append([]string{chain.Start}, chain.IDs...)
			fmt.Println(strings.Join(path, " -> "))
			if chain.Dangling != "" {
				fmt.Printf("stopped: parent %s is not in the corpus\n", chain.Dangling)
			}
			if chain.CycleDetected {
				fmt.Println("stopped: cycle detected")
			}
			return nil
		},
	}
}

func reciprocalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reciprocals",
		Short: "List parent and sibling links that are not mirrored by their target",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			c, st, err := loadCorpus(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("reciprocals: %w", err)
			}
			defer func() { _ = st.Close() }()

			missing := graph.MissingReciprocals(c.Snapshot())
			for _, m := range missing {
				fmt.Printf("%s -> %s (%s): no link back\n", m.SourceID, m.TargetID, m.Relationship)
			}
			fmt.Printf("\n%d missing reciprocal(s)\n", len(missing))
			return nil
		},
	}
}

func graphSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Mirror the corpus graph into Neo4j",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if cfg.Neo4j.URI == "" {
				return fmt.Errorf("sync: neo4j.uri is not configured")
			}
			c, st, err := loadCorpus(ctx, logger)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			defer func() { _ = st.Close() }()

			client, err := newNeo4jClient(ctx, logger)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			defer func() { _ = client.Close(ctx) }()

			res, err := graph.Neo4jSync(ctx, client, c.Snapshot())
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			fmt.Printf("Synced %d node(s) and %d edge(s) to %s\n", res.Nodes, res.Edges, cfg.Neo4j.URI)
			return nil
		},
	}
}
