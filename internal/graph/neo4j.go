package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajitpratap0/openclaw-ladder/internal/corpus"
)

// Neo4jConfig holds connection settings for the graph mirror.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
}

// Neo4jClient wraps a driver bound to one database.
type Neo4jClient struct {
	Driver   neo4j.DriverWithContext
	Database string
	logger   *slog.Logger
}

// NewNeo4jClient connects and verifies connectivity. An empty URI disables the
// mirror and yields a nil client with no error.
func NewNeo4jClient(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jClient, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, nil
	}
	user := cfg.User
	if user == "" {
		user = "neo4j"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, cfg.Password, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return &Neo4jClient{Driver: driver, Database: cfg.Database, logger: logger}, nil
}

// Close releases the driver. Safe on a nil client.
func (c *Neo4jClient) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}

// SyncResult counts what a sync wrote.
type SyncResult struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Neo4jSync mirrors a snapshot into Neo4j as (:Entry) nodes joined by
// [:REFERENCES] edges. Targets missing from the snapshot become placeholder nodes
// flagged missing=true. A nil client is a no-op.
func Neo4jSync(ctx context.Context, client *Neo4jClient, snap *corpus.Snapshot) (SyncResult, error) {
	if client == nil || client.Driver == nil {
		return SyncResult{}, nil
	}
	nodes, edges := syncPayload(snap, time.Now().UTC())

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	if res, err := session.Run(ctx, `CREATE CONSTRAINT entry_id_unique IF NOT EXISTS FOR (e:Entry) REQUIRE e.id IS UNIQUE`, nil); err != nil {
		client.logger.Warn("neo4j schema init failed (continuing)", "error", err)
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (e:Entry {id: n.id})
SET e += n, e.missing = false
`, map[string]any{"nodes": nodes})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		if len(edges) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $edges AS r
MATCH (a:Entry {id: r.from_id})
MERGE (b:Entry {id: r.to_id})
ON CREATE SET b.missing = true
MERGE (a)-[x:REFERENCES {relationship: r.relationship}]->(b)
SET x.label = r.label, x.synced_at = r.synced_at
`, map[string]any{"edges": edges})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("neo4j sync: %w", err)
	}
	client.logger.Info("neo4j sync complete", "nodes", len(nodes), "edges", len(edges))
	return SyncResult{Nodes: len(nodes), Edges: len(edges)}, nil
}

// syncPayload flattens a snapshot into Cypher parameters.
func syncPayload(snap *corpus.Snapshot, now time.Time) (nodes, edges []map[string]any) {
	syncedAt := now.Format(time.RFC3339Nano)
	for _, id := range snap.IDs() {
		e, _ := snap.Lookup(id)
		nodes = append(nodes, map[string]any{
			"id":          e.ID,
			"type":        string(e.Type),
			"name":        e.Name,
			"status":      string(e.Status),
			"version":     int64(e.Version),
			"max_level":   int64(e.MaxLevel()),
			"systems":     append([]string{}, e.Tags.Systems...),
			"clinical":    e.Tags.ClinicalRelevance,
			"synced_at":   syncedAt,
			"level_count": int64(len(e.Levels)),
		})
		for _, ref := range e.CrossReferences {
			edges = append(edges, map[string]any{
				"from_id":      e.ID,
				"to_id":        ref.TargetID,
				"relationship": string(ref.Relationship),
				"label":        ref.Label,
				"synced_at":    syncedAt,
			})
		}
	}
	return nodes, edges
}
