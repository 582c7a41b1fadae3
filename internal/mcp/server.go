// Package mcp implements the Model Context Protocol server for openclaw-ladder.
// Every tool is read-only; content changes go through ingestion.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/openclaw-ladder/internal/corpus"
	"github.com/ajitpratap0/openclaw-ladder/internal/graph"
	"github.com/ajitpratap0/openclaw-ladder/internal/ladder"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/render"
	"github.com/ajitpratap0/openclaw-ladder/internal/search"
)

// defaultSearchLimit is the default number of results for search.
const defaultSearchLimit = 10

// Server wraps an MCPServer with openclaw-ladder dependencies.
type Server struct {
	mcp    *mcpserver.MCPServer
	corpus *corpus.Corpus
	index  *search.Index
	logger *slog.Logger
}

// NewServer creates a new MCP server. If index is nil the search tool returns
// an error result instead of panicking.
func NewServer(c *corpus.Corpus, index *search.Index, version string, logger *slog.Logger) *Server {
	s := &Server{corpus: c, index: index, logger: logger}

	mcpSrv := mcpserver.NewMCPServer("openclaw-ladder", version, mcpserver.WithToolCapabilities(false))

	mcpSrv.AddTool(buildGetEntryTool(), s.handleGetEntry)
	mcpSrv.AddTool(buildSelectLevelTool(), s.handleSelectLevel)
	mcpSrv.AddTool(buildRenderTool(), s.handleRender)
	mcpSrv.AddTool(buildByTagTool(), s.handleByTag)
	mcpSrv.AddTool(buildLevelCoverageTool(), s.handleLevelCoverage)
	mcpSrv.AddTool(buildNeighborsTool(), s.handleNeighbors)
	mcpSrv.AddTool(buildAncestorsTool(), s.handleAncestors)
	mcpSrv.AddTool(buildDanglingTool(), s.handleDangling)
	mcpSrv.AddTool(buildSearchTool(), s.handleSearch)
	mcpSrv.AddTool(buildStatsTool(), s.handleStats)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

func requiredID(req mcpgo.CallToolRequest) (string, *mcpgo.CallToolResult) {
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return "", mcpgo.NewToolResultError("id is required and must not be empty")
	}
	return id, nil
}

func relationships(req mcpgo.CallToolRequest) ([]models.Relationship, error) {
	raw := req.GetString("relationship", "")
	if raw == "" {
		return nil, nil
	}
	var out []models.Relationship
	for _, part := range strings.Split(raw, ",") {
		rel := models.Relationship(strings.TrimSpace(part))
		if !rel.IsValid() {
			return nil, fmt.Errorf("invalid relationship %q: must be one of parent, sibling, related, see-also", rel)
		}
		out = append(out, rel)
	}
	return out, nil
}

// summary is the compact entry shape returned by list-style tools.
type summary struct {
	ID     string           `json:"id"`
	Type   models.EntryType `json:"type"`
	Name   string           `json:"name"`
	Levels []int            `json:"levels"`
}

func summarize(entries []models.Entry) []summary {
	out := make([]summary, 0, len(entries))
	for i := range entries {
		out = append(out, summary{
			ID:     entries[i].ID,
			Type:   entries[i].Type,
			Name:   entries[i].Name,
			Levels: entries[i].LevelNumbers(),
		})
	}
	return out
}

// --- tool definitions ---

func buildGetEntryTool() mcpgo.Tool {
	return mcpgo.NewTool("get_entry",
		mcpgo.WithDescription("Fetch a complete content entry by id, including every level, tags and cross-references."),
		mcpgo.WithString("id", mcpgo.Required(), mcpgo.Description("Entry id, e.g. copd-management")),
	)
}

func buildSelectLevelTool() mcpgo.Tool {
	return mcpgo.NewTool("select_level",
		mcpgo.WithDescription("Return the level of an entry best suited to a reader level. "+
			"Falls back to the nearest lower level, or the lowest level when none is lower."),
		mcpgo.WithString("id", mcpgo.Required(), mcpgo.Description("Entry id")),
		mcpgo.WithNumber("level", mcpgo.Required(), mcpgo.Description("Requested reader level, 1 = 8th grade")),
	)
}

func buildRenderTool() mcpgo.Tool {
	return mcpgo.NewTool("render_entry",
		mcpgo.WithDescription("Render an entry at a reader level as plain text with key terms and links."),
		mcpgo.WithString("id", mcpgo.Required(), mcpgo.Description("Entry id")),
		mcpgo.WithNumber("level", mcpgo.Description("Requested reader level (default: 1)")),
	)
}

func buildByTagTool() mcpgo.Tool {
	return mcpgo.NewTool("by_tag",
		mcpgo.WithDescription("List published entries tagged with value under a facet."),
		mcpgo.WithString("facet", mcpgo.Required(),
			mcpgo.Description("One of systems, topics, keywords, clinicalRelevance, examRelevance")),
		mcpgo.WithString("value", mcpgo.Required(), mcpgo.Description("Tag value, e.g. critical")),
	)
}

func buildLevelCoverageTool() mcpgo.Tool {
	return mcpgo.NewTool("level_coverage",
		mcpgo.WithDescription("List entries that define at least the given level."),
		mcpgo.WithNumber("level", mcpgo.Required(), mcpgo.Description("Minimum highest level")),
	)
}

func buildNeighborsTool() mcpgo.Tool {
	return mcpgo.NewTool("neighbors",
		mcpgo.WithDescription("List outgoing cross-references of an entry. Unresolved targets are flagged."),
		mcpgo.WithString("id", mcpgo.Required(), mcpgo.Description("Entry id")),
		mcpgo.WithString("relationship", mcpgo.Description("Comma-separated relationship filter")),
	)
}

func buildAncestorsTool() mcpgo.Tool {
	return mcpgo.NewTool("ancestors",
		mcpgo.WithDescription("Follow parent links upward from an entry, stopping at cycles and missing parents."),
		mcpgo.WithString("id", mcpgo.Required(), mcpgo.Description("Entry id")),
	)
}

func buildDanglingTool() mcpgo.Tool {
	return mcpgo.NewTool("dangling_references",
		mcpgo.WithDescription("List cross-references whose target is not in the corpus."),
	)
}

func buildSearchTool() mcpgo.Tool {
	return mcpgo.NewTool("search",
		mcpgo.WithDescription("Full-text search over entry names, alternate names, key terms and tags."),
		mcpgo.WithString("query", mcpgo.Required(), mcpgo.Description("Search text")),
		mcpgo.WithNumber("limit", mcpgo.Description("Maximum number of results (default: 10)")),
		mcpgo.WithString("type", mcpgo.Description("Restrict to one entry type")),
	)
}

func buildStatsTool() mcpgo.Tool {
	return mcpgo.NewTool("stats",
		mcpgo.WithDescription("Corpus statistics: totals by type, status and level count."),
	)
}

// --- tool handlers ---

func (s *Server) handleGetEntry(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	id, bad := requiredID(req)
	if bad != nil {
		return bad, nil
	}
	e, err := s.corpus.Get(ctx, id)
	if err != nil {
		return mcpgo.NewToolResultErrorf("get failed: %s", err.Error()), nil
	}
	return toolResultJSON(e)
}

func (s *Server) handleSelectLevel(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	id, bad := requiredID(req)
	if bad != nil {
		return bad, nil
	}
	e, err := s.corpus.Get(ctx, id)
	if err != nil {
		return mcpgo.NewToolResultErrorf("get failed: %s", err.Error()), nil
	}
	requested := req.GetInt("level", 1)
	lc, ok := ladder.Select(e, requested)
	if !ok {
		return mcpgo.NewToolResultErrorf("entry %s has no levels", id), nil
	}
	return toolResultJSON(map[string]any{
		"entryId":        e.ID,
		"requestedLevel": requested,
		"level":          lc.Level,
		"content":        lc,
	})
}

func (s *Server) handleRender(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	id, bad := requiredID(req)
	if bad != nil {
		return bad, nil
	}
	page := render.Render(s.corpus.Snapshot(), id, req.GetInt("level", 1))
	var b strings.Builder
	if err := render.WriteText(&b, page); err != nil {
		return nil, fmt.Errorf("mcp: rendering %s: %w", id, err)
	}
	if !page.Available {
		return mcpgo.NewToolResultError(b.String()), nil
	}
	return mcpgo.NewToolResultText(b.String()), nil
}

func (s *Server) handleByTag(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	facet := req.GetString("facet", "")
	value := req.GetString("value", "")
	entries, err := s.corpus.Snapshot().ByTag(models.Facet(facet), value)
	if err != nil {
		return mcpgo.NewToolResultErrorf("by_tag failed: %s", err.Error()), nil
	}
	return toolResultJSON(map[string]any{"entries": summarize(entries)})
}

func (s *Server) handleLevelCoverage(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	level := req.GetInt("level", 0)
	if level < 1 {
		return mcpgo.NewToolResultError("level must be >= 1"), nil
	}
	return toolResultJSON(map[string]any{"entries": summarize(s.corpus.Snapshot().ByLevelCoverage(level))})
}

func (s *Server) handleNeighbors(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	id, bad := requiredID(req)
	if bad != nil {
		return bad, nil
	}
	rels, err := relationships(req)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	edges, err := graph.Neighbors(s.corpus.Snapshot(), id, rels...)
	if err != nil {
		return mcpgo.NewToolResultErrorf("neighbors failed: %s", err.Error()), nil
	}
	if edges == nil {
		edges = []graph.Edge{}
	}
	return toolResultJSON(map[string]any{"edges": edges})
}

func (s *Server) handleAncestors(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	id, bad := requiredID(req)
	if bad != nil {
		return bad, nil
	}
	chain, err := graph.Ancestors(s.corpus.Snapshot(), id)
	if err != nil {
		return mcpgo.NewToolResultErrorf("ancestors failed: %s", err.Error()), nil
	}
	return toolResultJSON(chain)
}

func (s *Server) handleDangling(_ context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	refs := s.corpus.Snapshot().ResolveReferences()
	if refs == nil {
		refs = []corpus.DanglingReference{}
	}
	return toolResultJSON(map[string]any{"dangling": refs})
}

func (s *Server) handleSearch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.index == nil {
		return mcpgo.NewToolResultError("search index is unavailable"), nil
	}
	query := req.GetString("query", "")
	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	var opts search.Options
	if t := req.GetString("type", ""); t != "" {
		et := models.EntryType(t)
		if !et.IsValid() {
			return mcpgo.NewToolResultErrorf("invalid type %q", t), nil
		}
		opts.Types = []models.EntryType{et}
	}

	hits, err := s.index.Search(ctx, query, limit, opts)
	if errors.Is(err, search.ErrEmptyQuery) {
		return mcpgo.NewToolResultError("query is required and must not be empty"), nil
	}
	if err != nil {
		return mcpgo.NewToolResultErrorf("search failed: %s", err.Error()), nil
	}

	snap := s.corpus.Snapshot()
	type result struct {
		search.Hit
		Name string `json:"name"`
	}
	results := make([]result, 0, len(hits))
	for _, h := range hits {
		r := result{Hit: h}
		if e, ok := snap.Lookup(h.ID); ok {
			r.Name = e.Name
		}
		results = append(results, r)
	}
	return toolResultJSON(map[string]any{"results": results})
}

func (s *Server) handleStats(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	stats, err := s.corpus.Stats(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("stats failed: %s", err.Error()), nil
	}
	return toolResultJSON(stats)
}
