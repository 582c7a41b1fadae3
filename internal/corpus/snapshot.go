package corpus

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/store"
)

// ErrUnknownFacet is returned by ByTag for a facet outside models.ValidFacets.
var ErrUnknownFacet = errors.New("unknown tag facet")

// DanglingReference is a cross-reference whose target is not in the corpus.
// It is a finding, not an error.
type DanglingReference struct {
	SourceID     string              `json:"sourceId"`
	TargetID     string              `json:"targetId"`
	Relationship models.Relationship `json:"relationship"`
}

// Snapshot is a read-only view of a corpus at one point in time. It is safe for
// concurrent use and never changes after construction.
type Snapshot struct {
	entries map[string]*models.Entry
	ids     []string
	// facet -> value -> ids of published entries, sorted.
	tags map[models.Facet]map[string][]string
}

func newSnapshot(src map[string]*models.Entry) *Snapshot {
	s := &Snapshot{
		entries: make(map[string]*models.Entry, len(src)),
		tags:    make(map[models.Facet]map[string][]string, len(models.ValidFacets)),
	}
	for id, e := range src {
		s.entries[id] = e
	}
	s.ids = sortedIDs(s.entries)

	for _, f := range models.ValidFacets {
		s.tags[f] = make(map[string][]string)
	}
	for _, id := range s.ids {
		e := s.entries[id]
		if e.Status != models.StatusPublished {
			continue
		}
		for _, f := range models.ValidFacets {
			seen := make(map[string]bool)
			for _, v := range e.Tags.Values(f) {
				if seen[v] {
					continue
				}
				seen[v] = true
				s.tags[f][v] = append(s.tags[f][v], id)
			}
		}
	}
	return s
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int { return len(s.ids) }

// IDs returns every entry ID in ascending order.
func (s *Snapshot) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Get returns a deep copy of the entry, or store.ErrNotFound.
func (s *Snapshot) Get(id string) (*models.Entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	out := e.Clone()
	return &out, nil
}

// Lookup returns the shared, read-only entry for id without copying.
// Callers must not modify the result.
func (s *Snapshot) Lookup(id string) (*models.Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Entries returns deep copies of every entry in ID order, deprecated ones included.
func (s *Snapshot) Entries() []models.Entry {
	out := make([]models.Entry, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.entries[id].Clone())
	}
	return out
}

// ByTag returns the published entries whose tags record value under facet f,
// ordered by ID.
func (s *Snapshot) ByTag(f models.Facet, value string) ([]models.Entry, error) {
	if !f.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFacet, f)
	}
	ids := s.tags[f][value]
	out := make([]models.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entries[id].Clone())
	}
	return out, nil
}

// TagValues returns the distinct values recorded under facet f across published
// entries, sorted.
func (s *Snapshot) TagValues(f models.Facet) []string {
	vals := make([]string, 0, len(s.tags[f]))
	for v := range s.tags[f] {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return vals
}

// ByLevelCoverage returns every non-deprecated entry whose ladder reaches level n,
// ordered by ID.
func (s *Snapshot) ByLevelCoverage(n int) []models.Entry {
	var out []models.Entry
	for _, id := range s.ids {
		e := s.entries[id]
		if e.Status == models.StatusDeprecated {
			continue
		}
		if e.MaxLevel() >= n {
			out = append(out, e.Clone())
		}
	}
	return out
}

// ResolveReferences checks every cross-reference in the snapshot and returns the
// ones whose target is absent, ordered by source then target. Deprecated targets
// still resolve.
func (s *Snapshot) ResolveReferences() []DanglingReference {
	var out []DanglingReference
	for _, id := range s.ids {
		for _, ref := range s.entries[id].CrossReferences {
			if _, ok := s.entries[ref.TargetID]; ok {
				continue
			}
			out = append(out, DanglingReference{
				SourceID:     id,
				TargetID:     ref.TargetID,
				Relationship: ref.Relationship,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}
