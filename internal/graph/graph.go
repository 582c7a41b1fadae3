// Package graph answers "what is related to X" questions over a corpus snapshot.
// Cross-references form a directed graph, not a tree: inverse edges may be missing
// and parent chains may loop.
package graph

import (
	"fmt"
	"sort"

	"github.com/ajitpratap0/openclaw-ladder/internal/corpus"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/store"
)

// Edge is one cross-reference seen from the graph.
type Edge struct {
	SourceID     string              `json:"sourceId"`
	TargetID     string              `json:"targetId"`
	Relationship models.Relationship `json:"relationship"`
	Label        string              `json:"label,omitempty"`
	// Resolved is false when the other end is not in the snapshot.
	Resolved bool `json:"resolved"`
}

// Chain is the result of an ancestor walk. IDs excludes the starting entry and
// lists the nearest parent first.
type Chain struct {
	Start         string   `json:"start"`
	IDs           []string `json:"ids"`
	CycleDetected bool     `json:"cycleDetected"`
	// Dangling is the parent id the walk could not follow, if any.
	Dangling string `json:"dangling,omitempty"`
}

// Neighbors returns the outgoing edges of id in declaration order, optionally
// restricted to the given relationships.
func Neighbors(snap *corpus.Snapshot, id string, rels ...models.Relationship) ([]Edge, error) {
	e, ok := snap.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	var out []Edge
	for _, ref := range e.CrossReferences {
		if !wanted(ref.Relationship, rels) {
			continue
		}
		_, resolved := snap.Lookup(ref.TargetID)
		out = append(out, Edge{
			SourceID:     id,
			TargetID:     ref.TargetID,
			Relationship: ref.Relationship,
			Label:        ref.Label,
			Resolved:     resolved,
		})
	}
	return out, nil
}

// Backlinks returns the edges that point at id, ordered by source. id need not
// exist, which makes it useful for finding who references unwritten content.
func Backlinks(snap *corpus.Snapshot, id string, rels ...models.Relationship) []Edge {
	var out []Edge
	for _, src := range snap.IDs() {
		e, _ := snap.Lookup(src)
		for _, ref := range e.CrossReferences {
			if ref.TargetID != id || !wanted(ref.Relationship, rels) {
				continue
			}
			out = append(out, Edge{
				SourceID:     src,
				TargetID:     id,
				Relationship: ref.Relationship,
				Label:        ref.Label,
				Resolved:     true,
			})
		}
	}
	return out
}

// Ancestors follows the first parent edge of each entry until none remains.
// It stops at a parent missing from the snapshot and at the first repeated id,
// setting Dangling or CycleDetected instead of failing.
func Ancestors(snap *corpus.Snapshot, id string) (Chain, error) {
	chain := Chain{Start: id, IDs: []string{}}
	cur, ok := snap.Lookup(id)
	if !ok {
		return chain, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	visited := map[string]bool{id: true}
	for {
		parent, ok := firstParent(cur)
		if !ok {
			return chain, nil
		}
		if visited[parent] {
			chain.CycleDetected = true
			return chain, nil
		}
		next, ok := snap.Lookup(parent)
		if !ok {
			chain.Dangling = parent
			return chain, nil
		}
		visited[parent] = true
		chain.IDs = append(chain.IDs, parent)
		cur = next
	}
}

func firstParent(e *models.Entry) (string, bool) {
	for _, ref := range e.CrossReferences {
		if ref.Relationship == models.RelationshipParent {
			return ref.TargetID, true
		}
	}
	return "", false
}

// MissingReciprocal is a parent or sibling edge whose target does not point back.
type MissingReciprocal struct {
	SourceID     string              `json:"sourceId"`
	TargetID     string              `json:"targetId"`
	Relationship models.Relationship `json:"relationship"`
}

// MissingReciprocals lists sibling edges without a sibling edge back, and parent
// edges whose parent has no edge of any kind back to the child. Dangling edges are
// left to corpus.ResolveReferences. This is a report; nothing enforces reciprocity.
func MissingReciprocals(snap *corpus.Snapshot) []MissingReciprocal {
	var out []MissingReciprocal
	for _, src := range snap.IDs() {
		e, _ := snap.Lookup(src)
		for _, ref := range e.CrossReferences {
			var want []models.Relationship
			switch ref.Relationship {
			case models.RelationshipSibling:
				want = []models.Relationship{models.RelationshipSibling}
			case models.RelationshipParent:
				want = nil
			default:
				continue
			}
			target, ok := snap.Lookup(ref.TargetID)
			if !ok || pointsAt(target, src, want) {
				continue
			}
			out = append(out, MissingReciprocal{SourceID: src, TargetID: ref.TargetID, Relationship: ref.Relationship})
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

func pointsAt(e *models.Entry, id string, rels []models.Relationship) bool {
	for _, ref := range e.CrossReferences {
		if ref.TargetID == id && wanted(ref.Relationship, rels) {
			return true
		}
	}
	return false
}

// wanted reports whether rel passes the filter; an empty filter passes everything.
func wanted(rel models.Relationship, filter []models.Relationship) bool {
	if len(filter) == 0 {
		return true
	}
	for _, r := range filter {
		if r == rel {
			return true
		}
	}
	return false
}
