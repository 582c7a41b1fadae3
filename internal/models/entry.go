package models

import (
	"fmt"
	"sort"
	"time"
)

// EntryType classifies the kind of topic an entry covers.
type EntryType string

const (
	EntryTypeConcept   EntryType = "concept"
	EntryTypeCondition EntryType = "condition"
	EntryTypeTopic     EntryType = "topic"
	EntryTypeProcess   EntryType = "process"
	EntryTypeSystem    EntryType = "system"
)

// ValidEntryTypes is the set of all valid entry types.
var ValidEntryTypes = []EntryType{
	EntryTypeConcept,
	EntryTypeCondition,
	EntryTypeTopic,
	EntryTypeProcess,
	EntryTypeSystem,
}

// IsValid returns true if the entry type is recognized.
func (et EntryType) IsValid() bool {
	for _, v := range ValidEntryTypes {
		if et == v {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPublished  Status = "published"
	StatusDeprecated Status = "deprecated"
)

// ValidStatuses is the set of all valid lifecycle states.
var ValidStatuses = []Status{
	StatusDraft,
	StatusPublished,
	StatusDeprecated,
}

// IsValid returns true if the status is recognized.
func (s Status) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// CanBecome reports whether an entry in status s may be replaced by one in status next.
// Deprecated is terminal so a retired id can never come back as new content.
func (s Status) CanBecome(next Status) bool {
	switch s {
	case StatusDraft:
		return next.IsValid()
	case StatusPublished:
		return next == StatusPublished || next == StatusDeprecated
	case StatusDeprecated:
		return next == StatusDeprecated
	}
	return false
}

// Entry is one topic's complete record: identity, metadata, the level ladder and links.
type Entry struct {
	ID              string               `json:"id"`
	Type            EntryType            `json:"type"`
	Name            string               `json:"name"`
	AlternateNames  []string             `json:"alternateNames"`
	Levels          map[int]LevelContent `json:"levels"`
	Media           []MediaRef           `json:"media"`
	Citations       []Citation           `json:"citations"`
	CrossReferences []CrossReference     `json:"crossReferences"`
	Tags            Tags                 `json:"tags"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	Version         int                  `json:"version"`
	Status          Status               `json:"status"`
}

// LevelNumbers returns the defined level keys in ascending order.
func (e *Entry) LevelNumbers() []int {
	nums := make([]int, 0, len(e.Levels))
	for k := range e.Levels {
		nums = append(nums, k)
	}
	sort.Ints(nums)
	return nums
}

// MinLevel returns the lowest defined level, or 0 for an empty ladder.
func (e *Entry) MinLevel() int {
	nums := e.LevelNumbers()
	if len(nums) == 0 {
		return 0
	}
	return nums[0]
}

// MaxLevel returns the highest defined level, or 0 for an empty ladder.
func (e *Entry) MaxLevel() int {
	nums := e.LevelNumbers()
	if len(nums) == 0 {
		return 0
	}
	return nums[len(nums)-1]
}

// Check verifies the invariants that can be decided from the entry alone and that
// every stored entry must satisfy regardless of how it was admitted.
func (e *Entry) Check() error {
	if e.ID == "" {
		return fmt.Errorf("entry id must not be empty")
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("entry %s: invalid type %q", e.ID, e.Type)
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("entry %s: invalid status %q", e.ID, e.Status)
	}
	if e.Version < 1 {
		return fmt.Errorf("entry %s: version must be >= 1, got %d", e.ID, e.Version)
	}
	if !e.CreatedAt.IsZero() && !e.UpdatedAt.IsZero() && e.UpdatedAt.Before(e.CreatedAt) {
		return fmt.Errorf("entry %s: updatedAt %s is before createdAt %s", e.ID,
			e.UpdatedAt.Format(time.RFC3339), e.CreatedAt.Format(time.RFC3339))
	}
	if len(e.Levels) == 0 {
		return fmt.Errorf("entry %s: levels must not be empty", e.ID)
	}
	for k, lc := range e.Levels {
		if k < 1 {
			return fmt.Errorf("entry %s: level numbers must be >= 1, got %d", e.ID, k)
		}
		if lc.Level != k {
			return fmt.Errorf("entry %s: levels[%d] declares level %d", e.ID, k, lc.Level)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can never mutate stored data.
func (e *Entry) Clone() Entry {
	out := *e
	out.AlternateNames = cloneSlice(e.AlternateNames)
	if e.Levels != nil {
		out.Levels = make(map[int]LevelContent, len(e.Levels))
		for k, lc := range e.Levels {
			out.Levels[k] = lc.Clone()
		}
	}
	out.Media = cloneSlice(e.Media)
	if e.Citations != nil {
		out.Citations = make([]Citation, len(e.Citations))
		for i, c := range e.Citations {
			c.Authors = cloneSlice(c.Authors)
			out.Citations[i] = c
		}
	}
	out.CrossReferences = cloneSlice(e.CrossReferences)
	out.Tags = e.Tags.clone()
	return out
}

// cloneSlice copies in, keeping nil and empty distinct so a clone compares equal
// to its source.
func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// CorpusStats holds summary statistics about a corpus.
type CorpusStats struct {
	TotalEntries int64            `json:"totalEntries"`
	ByType       map[string]int64 `json:"byType"`
	ByStatus     map[string]int64 `json:"byStatus"`
	ByLevelCount map[int]int64    `json:"byLevelCount"`
}
