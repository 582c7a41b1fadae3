// Package corpus holds the authoritative in-memory collection of admitted entries
// and the immutable snapshots that readers query.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/store"
)

// ErrFrozen is returned by writes after Freeze.
var ErrFrozen = errors.New("corpus is frozen")

// loadPageSize is how many entries Load requests per List call.
const loadPageSize = 500

// Corpus is the single-writer, many-reader entry collection for one deployment.
// It implements store.Store so ingestion and serving code can treat it like any
// other backend.
type Corpus struct {
	mu      sync.RWMutex
	entries map[string]*models.Entry
	frozen  bool
	snap    *Snapshot
	logger  *slog.Logger
}

var _ store.Store = (*Corpus)(nil)

// New creates an empty, writable corpus.
func New(logger *slog.Logger) *Corpus {
	return &Corpus{
		entries: make(map[string]*models.Entry),
		logger:  logger,
	}
}

// Put inserts or replaces an entry by ID. A replacement must carry a strictly
// greater version; on any failure the corpus is left unchanged.
func (c *Corpus) Put(_ context.Context, entry models.Entry) error {
	if err := entry.Check(); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	stored := entry.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return fmt.Errorf("put %s: %w", entry.ID, ErrFrozen)
	}
	if err := store.CheckReplace(c.entries[entry.ID], &stored); err != nil {
		return err
	}
	// Stored pointers are never mutated after this point, so snapshots may share them.
	c.entries[entry.ID] = &stored
	c.snap = nil
	c.logger.Debug("corpus put", "id", entry.ID, "version", entry.Version)
	return nil
}

// Get returns a deep copy of the entry with the given ID.
func (c *Corpus) Get(_ context.Context, id string) (*models.Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	out := e.Clone()
	return &out, nil
}

// List returns entries matching filters in ID order with cursor pagination.
func (c *Corpus) List(_ context.Context, filters *store.Filters, limit uint64, cursor string) ([]models.Entry, string, error) {
	snap := c.Snapshot()
	var matched []models.Entry
	for _, id := range snap.ids {
		e := snap.entries[id]
		if filters.Match(e) {
			matched = append(matched, e.Clone())
		}
	}
	page, next := store.Paginate(matched, limit, cursor)
	return page, next, nil
}

// Stats summarises every entry, deprecated ones included.
func (c *Corpus) Stats(_ context.Context) (*models.CorpusStats, error) {
	snap := c.Snapshot()
	stats := store.NewStats()
	for _, id := range snap.ids {
		store.AddToStats(stats, snap.entries[id])
	}
	return stats, nil
}

// Close is a no-op; the corpus owns no external resources.
func (c *Corpus) Close() error {
	return nil
}

// Len returns the number of entries.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Freeze makes the corpus read-only. It cannot be undone.
func (c *Corpus) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (c *Corpus) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

// Snapshot returns an immutable view of the current contents. The same snapshot
// is handed out until the next successful Put.
func (c *Corpus) Snapshot() *Snapshot {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil {
		return snap
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		c.snap = newSnapshot(c.entries)
	}
	return c.snap
}

// Load copies every entry from st, deprecated ones included, into the corpus.
// It returns the number of entries loaded.
func (c *Corpus) Load(ctx context.Context, st store.Store) (int, error) {
	filters := &store.Filters{IncludeDeprecated: true}
	loaded := 0
	cursor := ""
	for {
		page, next, err := st.List(ctx, filters, loadPageSize, cursor)
		if err != nil {
			return loaded, fmt.Errorf("load: listing entries: %w", err)
		}
		for i := range page {
			if err := c.Put(ctx, page[i]); err != nil {
				return loaded, fmt.Errorf("load: %w", err)
			}
			loaded++
		}
		if next == "" {
			break
		}
		cursor = next
	}
	c.logger.Info("corpus loaded", "entries", loaded)
	return loaded, nil
}

// ByTag is shorthand for Snapshot().ByTag.
func (c *Corpus) ByTag(f models.Facet, value string) ([]models.Entry, error) {
	return c.Snapshot().ByTag(f, value)
}

// ByLevelCoverage is shorthand for Snapshot().ByLevelCoverage.
func (c *Corpus) ByLevelCoverage(n int) []models.Entry {
	return c.Snapshot().ByLevelCoverage(n)
}

// ResolveReferences is shorthand for Snapshot().ResolveReferences.
func (c *Corpus) ResolveReferences() []DanglingReference {
	return c.Snapshot().ResolveReferences()
}

func sortedIDs(entries map[string]*models.Entry) []string {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
