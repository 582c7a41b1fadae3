// Package search keeps a Bleve full-text index over entry names, alternate
// names, key terms and tags.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/ajitpratap0/openclaw-ladder/internal/corpus"
	"github.com/ajitpratap0/openclaw-ladder/internal/metrics"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
)

// ErrEmptyQuery is returned by Search for a blank query string.
var ErrEmptyQuery = errors.New("empty search query")

const (
	docType        = "entry"
	nameBoost      = 4.0
	alternateBoost = 3.0
	keyTermBoost   = 2.0
	fuzziness      = 1
	minFuzzyChars  = 5
)

// Hit is one search result.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Options tune query construction.
type Options struct {
	// Fuzzy adds edit-distance matching for longer terms so small typos still hit.
	Fuzzy bool
	// Types restricts hits to the given entry types.
	Types []models.EntryType
}

// document is what gets indexed for one entry.
type document struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Name       string   `json:"name"`
	Alternates []string `json:"alternates"`
	KeyTerms   []string `json:"keyTerms"`
	Summary    string   `json:"summary"`
	Tags       []string `json:"tags"`
}

// Index wraps a Bleve index. An empty path keeps it in memory.
type Index struct {
	// mu serializes Rebuild so two diffs against the same indexed set never interleave.
	mu     sync.Mutex
	index  bleve.Index
	logger *slog.Logger
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	for _, f := range []string{"name", "alternates", "keyTerms", "summary", "tags"} {
		docMapping.AddFieldMappingsAt(f, text)
	}
	kw := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("id", kw)
	docMapping.AddFieldMappingsAt("type", kw)

	im.AddDocumentMapping(docType, docMapping)
	im.DefaultType = docType
	im.DefaultMapping = docMapping
	return im
}

// Open creates or opens the index at path.
func Open(path string, logger *slog.Logger) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("search: creating in-memory index: %w", err)
		}
		return &Index{index: idx, logger: logger}, nil
	}
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("search: opening index %s: %w", path, openErr)
		}
		return &Index{index: idx, logger: logger}, nil
	}
	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("search: creating index %s: %w", path, err)
	}
	return &Index{index: idx, logger: logger}, nil
}

// Rebuild makes the index mirror snap: non-deprecated entries are (re)indexed and
// anything else that was indexed before is removed.
// Concurrent calls run one at a time.
func (ix *Index) Rebuild(ctx context.Context, snap *corpus.Snapshot) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	existing, err := ix.indexedIDs()
	if err != nil {
		return 0, err
	}

	batch := ix.index.NewBatch()
	indexed := 0
	for _, id := range snap.IDs() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		e, _ := snap.Lookup(id)
		if e.Status == models.StatusDeprecated {
			continue
		}
		if err := batch.Index(id, toDocument(e)); err != nil {
			return 0, fmt.Errorf("search: indexing %s: %w", id, err)
		}
		delete(existing, id)
		indexed++
	}
	for id := range existing {
		batch.Delete(id)
	}
	if err := ix.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("search: applying batch: %w", err)
	}
	ix.logger.Debug("search index rebuilt", "indexed", indexed, "removed", len(existing))
	return indexed, nil
}

func (ix *Index) indexedIDs() (map[string]struct{}, error) {
	count, err := ix.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("search: counting documents: %w", err)
	}
	out := make(map[string]struct{}, count)
	if count == 0 {
		return out, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: listing documents: %w", err)
	}
	for _, hit := range res.Hits {
		out[hit.ID] = struct{}{}
	}
	return out, nil
}

func toDocument(e *models.Entry) document {
	doc := document{
		ID:         e.ID,
		Type:       string(e.Type),
		Name:       e.Name,
		Alternates: e.AlternateNames,
	}
	seen := make(map[string]struct{})
	for _, n := range e.LevelNumbers() {
		for _, kt := range e.Levels[n].KeyTerms {
			if _, dup := seen[kt.Term]; dup {
				continue
			}
			seen[kt.Term] = struct{}{}
			doc.KeyTerms = append(doc.KeyTerms, kt.Term)
		}
	}
	if lc, ok := e.Levels[e.MinLevel()]; ok {
		doc.Summary = lc.Summary
	}
	for _, f := range models.ValidFacets {
		doc.Tags = append(doc.Tags, e.Tags.Values(f)...)
	}
	return doc
}

// Search runs q against the index and returns up to limit hits, best first.
func (ix *Index) Search(_ context.Context, q string, limit int, opts Options) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 10
	}
	metrics.SearchQueriesTotal.Inc()

	req := bleve.NewSearchRequest(buildQuery(q, opts))
	req.Size = limit
	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]Hit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = Hit{ID: h.ID, Score: h.Score}
	}
	return hits, nil
}

func buildQuery(q string, opts Options) blevequery.Query {
	fields := []struct {
		name  string
		boost float64
	}{
		{"name", nameBoost},
		{"alternates", alternateBoost},
		{"keyTerms", keyTermBoost},
		{"tags", 1},
		{"summary", 1},
	}
	should := make([]blevequery.Query, 0, len(fields)*2)
	for _, f := range fields {
		mq := bleve.NewMatchQuery(q)
		mq.SetField(f.name)
		mq.SetBoost(f.boost)
		should = append(should, mq)
	}
	if opts.Fuzzy {
		for _, term := range strings.Fields(strings.ToLower(q)) {
			if len(term) < minFuzzyChars {
				continue
			}
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(fuzziness)
			fq.SetField("name")
			should = append(should, fq)
		}
	}
	var query blevequery.Query = bleve.NewDisjunctionQuery(should...)
	if len(opts.Types) == 0 {
		return query
	}
	types := make([]blevequery.Query, 0, len(opts.Types))
	for _, t := range opts.Types {
		tq := bleve.NewTermQuery(string(t))
		tq.SetField("type")
		types = append(types, tq)
	}
	return bleve.NewConjunctionQuery(query, bleve.NewDisjunctionQuery(types...))
}

// DocCount returns the number of indexed entries.
func (ix *Index) DocCount() (uint64, error) {
	return ix.index.DocCount()
}

// Close closes the underlying index.
func (ix *Index) Close() error {
	return ix.index.Close()
}
