package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
)

// ErrNotFound is returned by Get when the requested entry does not exist.
var ErrNotFound = errors.New("entry not found")

// ErrStaleVersion is matched by every StaleVersionError.
var ErrStaleVersion = errors.New("stale entry version")

// ErrRetired is returned when a put tries to bring a deprecated id back to life
// or otherwise move an entry backwards through its lifecycle.
var ErrRetired = errors.New("illegal status transition")

// StaleVersionError reports a put whose version does not exceed the stored one.
// The store is left unchanged.
type StaleVersionError struct {
	ID        string
	Stored    int
	Attempted int
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("entry %s: version %d is not newer than stored version %d", e.ID, e.Attempted, e.Stored)
}

// Is lets errors.Is(err, ErrStaleVersion) match.
func (e *StaleVersionError) Is(target error) bool {
	return target == ErrStaleVersion
}

// Store defines the interface for entry persistence.
type Store interface {
	// Put inserts or replaces an entry by ID. Replacing requires a strictly greater
	// version, otherwise a *StaleVersionError is returned.
	Put(ctx context.Context, entry models.Entry) error

	// Get retrieves a single entry by ID.
	Get(ctx context.Context, id string) (*models.Entry, error)

	// List returns entries matching the given filters, ordered by ID.
	// The cursor parameter is opaque; pass "" for the first page.
	// The returned cursor is empty when no more results remain.
	List(ctx context.Context, filters *Filters, limit uint64, cursor string) ([]models.Entry, string, error)

	// Stats returns corpus statistics.
	Stats(ctx context.Context) (*models.CorpusStats, error)

	// Close cleans up resources.
	Close() error
}

// CheckReplace decides whether next may replace stored. Every Store implementation
// runs it inside its write critical section.
func CheckReplace(stored *models.Entry, next *models.Entry) error {
	if stored == nil {
		return nil
	}
	if next.Version <= stored.Version {
		return &StaleVersionError{ID: next.ID, Stored: stored.Version, Attempted: next.Version}
	}
	if !stored.Status.CanBecome(next.Status) {
		return fmt.Errorf("%w: entry %s cannot go from %s to %s", ErrRetired, next.ID, stored.Status, next.Status)
	}
	return nil
}

// TagFilter selects entries whose tags record Value under Facet.
type TagFilter struct {
	Facet models.Facet `json:"facet"`
	Value string       `json:"value"`
}

// Filters narrows List results. Deprecated entries are excluded unless
// IncludeDeprecated is set or Status asks for them explicitly.
type Filters struct {
	Type              *models.EntryType `json:"type,omitempty"`
	Status            *models.Status    `json:"status,omitempty"`
	Tag               *TagFilter        `json:"tag,omitempty"`
	MinLevel          int               `json:"minLevel,omitempty"`
	IncludeDeprecated bool              `json:"includeDeprecated,omitempty"`
}

// Match reports whether e passes the filters. A nil receiver matches every
// non-deprecated entry.
func (f *Filters) Match(e *models.Entry) bool {
	if e.Status == models.StatusDeprecated {
		explicit := f != nil && (f.IncludeDeprecated || (f.Status != nil && *f.Status == models.StatusDeprecated))
		if !explicit {
			return false
		}
	}
	if f == nil {
		return true
	}
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	if f.Tag != nil && !e.Tags.Contains(f.Tag.Facet, f.Tag.Value) {
		return false
	}
	if f.MinLevel > 0 && e.MaxLevel() < f.MinLevel {
		return false
	}
	return true
}

// Paginate applies cursor and limit to entries already sorted by ID.
// A cursor that no longer exists yields an empty page.
func Paginate(all []models.Entry, limit uint64, cursor string) ([]models.Entry, string) {
	if cursor != "" {
		found := false
		for i := range all {
			if all[i].ID == cursor {
				all = all[i+1:]
				found = true
				break
			}
		}
		if !found {
			return nil, ""
		}
	}

	var next string
	if limit > 0 && uint64(len(all)) > limit {
		all = all[:limit]
		next = all[len(all)-1].ID
	}
	return all, next
}

// NewStats returns an empty statistics record with its maps allocated.
func NewStats() *models.CorpusStats {
	return &models.CorpusStats{
		ByType:       make(map[string]int64),
		ByStatus:     make(map[string]int64),
		ByLevelCount: make(map[int]int64),
	}
}

// AddToStats counts e into stats.
func AddToStats(stats *models.CorpusStats, e *models.Entry) {
	stats.TotalEntries++
	stats.ByType[string(e.Type)]++
	stats.ByStatus[string(e.Status)]++
	stats.ByLevelCount[len(e.Levels)]++
}
