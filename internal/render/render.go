// Package render builds display-ready pages from a corpus snapshot. It is the
// consuming side of the content model: a missing rung falls back through the level
// selector, a dangling link is marked unavailable, and an unknown id yields a
// "content not available" page instead of an error.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/ajitpratap0/openclaw-ladder/internal/corpus"
	"github.com/ajitpratap0/openclaw-ladder/internal/ladder"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
)

// Link is a cross-reference prepared for display.
type Link struct {
	TargetID     string              `json:"targetId"`
	TargetType   models.EntryType    `json:"targetType,omitempty"`
	Relationship models.Relationship `json:"relationship"`
	Label        string              `json:"label"`
	Available    bool                `json:"available"`
}

// Page is one entry rendered at one reader level. Level is the rung actually
// shown, which differs from RequestedLevel when the ladder has no exact match.
type Page struct {
	Available               bool              `json:"available"`
	ID                      string            `json:"id"`
	Name                    string            `json:"name,omitempty"`
	RequestedLevel          int               `json:"requestedLevel"`
	Level                   int               `json:"level,omitempty"`
	Levels                  []int             `json:"levels,omitempty"`
	Type                    models.EntryType  `json:"type,omitempty"`
	Status                  models.Status     `json:"status,omitempty"`
	Summary                 string            `json:"summary,omitempty"`
	Explanation             string            `json:"explanation,omitempty"`
	Outline                 Outline           `json:"outline"`
	KeyTerms                []models.KeyTerm  `json:"keyTerms,omitempty"`
	Analogies               []string          `json:"analogies,omitempty"`
	Examples                []string          `json:"examples,omitempty"`
	PatientCounselingPoints []string          `json:"patientCounselingPoints,omitempty"`
	ClinicalNotes           string            `json:"clinicalNotes,omitempty"`
	Links                   []Link            `json:"links,omitempty"`
	Media                   []models.MediaRef `json:"media,omitempty"`
	Citations               []models.Citation `json:"citations,omitempty"`
}

// Render prepares entry id at the requested level.
func Render(snap *corpus.Snapshot, id string, level int) Page {
	page := Page{ID: id, RequestedLevel: level}
	e, ok := snap.Lookup(id)
	if !ok {
		return page
	}
	lc, ok := ladder.Select(e, level)
	if !ok {
		return page
	}

	page.Available = true
	page.Name = e.Name
	page.Type = e.Type
	page.Status = e.Status
	page.Levels = e.LevelNumbers()
	page.Level = lc.Level
	page.Summary = lc.Summary
	page.Explanation = lc.Explanation
	page.Outline = ParseOutline(lc.Explanation)
	page.KeyTerms = lc.KeyTerms
	page.Analogies = lc.Analogies
	page.Examples = lc.Examples
	page.PatientCounselingPoints = lc.PatientCounselingPoints
	page.ClinicalNotes = lc.ClinicalNotes

	clone := e.Clone()
	page.Media = clone.Media
	page.Citations = clone.Citations
	for _, ref := range e.CrossReferences {
		link := Link{
			TargetID:     ref.TargetID,
			TargetType:   ref.TargetType,
			Relationship: ref.Relationship,
			Label:        ref.Label,
		}
		if target, ok := snap.Lookup(ref.TargetID); ok {
			link.Available = true
			link.TargetType = target.Type
			if link.Label == "" {
				link.Label = target.Name
			}
		}
		if link.Label == "" {
			link.Label = ref.TargetID
		}
		page.Links = append(page.Links, link)
	}
	return page
}

// WriteText writes a plain-text rendition of p for terminals.
func WriteText(w io.Writer, p Page) error {
	var b strings.Builder
	if !p.Available {
		fmt.Fprintf(&b, "%s: content not available\n", p.ID)
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "%s (%s)\n", p.Name, p.ID)
	if p.Level != p.RequestedLevel {
		fmt.Fprintf(&b, "Level %d (requested %d, available %v)\n", p.Level, p.RequestedLevel, p.Levels)
	} else {
		fmt.Fprintf(&b, "Level %d of %v\n", p.Level, p.Levels)
	}
	fmt.Fprintf(&b, "\n%s\n\n%s\n", p.Summary, p.Explanation)

	if len(p.KeyTerms) > 0 {
		b.WriteString("\nKey terms:\n")
		for _, kt := range p.KeyTerms {
			if kt.Pronunciation != "" {
				fmt.Fprintf(&b, "  %s (%s): %s\n", kt.Term, kt.Pronunciation, kt.Definition)
			} else {
				fmt.Fprintf(&b, "  %s: %s\n", kt.Term, kt.Definition)
			}
		}
	}
	writeList(&b, "Analogies", p.Analogies)
	writeList(&b, "Examples", p.Examples)
	writeList(&b, "Patient counseling", p.PatientCounselingPoints)
	if p.ClinicalNotes != "" {
		fmt.Fprintf(&b, "\nClinical notes: %s\n", p.ClinicalNotes)
	}
	if len(p.Links) > 0 {
		b.WriteString("\nSee also:\n")
		for _, l := range p.Links {
			mark := ""
			if !l.Available {
				mark = " [unavailable]"
			}
			fmt.Fprintf(&b, "  %s -> %s%s\n", l.Relationship, l.Label, mark)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
}
