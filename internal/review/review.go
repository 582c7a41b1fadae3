// Package review grades how well each rung of an entry's ladder fits its level.
package review

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/ajitpratap0/openclaw-ladder/internal/ladder"
	"github.com/ajitpratap0/openclaw-ladder/internal/metrics"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
)

// Severity grades a finding.
type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
)

const (
	// entryGradeCeiling is the highest reading grade the first rung should need.
	entryGradeCeiling   = 9.0
	minExplanationWords = 15
)

// Finding is one observation about a rung.
type Finding struct {
	Level    int      `json:"level"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Rung is the per-level part of a review. Rating is 1-5 when a model rated the
// rung and 0 otherwise.
type Rung struct {
	Level   int     `json:"level"`
	Grade   float64 `json:"grade"`
	Words   int     `json:"words"`
	Rating  int     `json:"rating,omitempty"`
	Comment string  `json:"comment,omitempty"`
}

// Review is the result of reviewing one entry.
type Review struct {
	EntryID  string    `json:"entryId"`
	Reviewer string    `json:"reviewer"`
	Rungs    []Rung    `json:"rungs"`
	Findings []Finding `json:"findings"`
}

// Warnings counts findings at warn severity.
func (r *Review) Warnings() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityWarn {
			n++
		}
	}
	return n
}

// Reviewer produces a Review for one entry.
type Reviewer interface {
	Review(ctx context.Context, e *models.Entry) (*Review, error)
	Name() string
}

// HeuristicReviewer grades rungs with a readability formula. It needs no network.
type HeuristicReviewer struct{}

var _ Reviewer = HeuristicReviewer{}

// Name implements Reviewer.
func (HeuristicReviewer) Name() string { return "heuristic" }

// Review implements Reviewer.
func (h HeuristicReviewer) Review(_ context.Context, e *models.Entry) (*Review, error) {
	r := heuristic(e)
	metrics.ReviewsTotal.WithLabelValues(h.Name(), outcome(r)).Inc()
	return r, nil
}

func heuristic(e *models.Entry) *Review {
	r := &Review{EntryID: e.ID, Reviewer: "heuristic", Rungs: []Rung{}, Findings: []Finding{}}
	for i, g := range ladder.Grades(e) {
		r.Rungs = append(r.Rungs, Rung{Level: g.Level, Grade: g.Grade, Words: g.Words})
		if i == 0 && g.Grade > entryGradeCeiling {
			r.Findings = append(r.Findings, Finding{
				Level:    g.Level,
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("entry rung reads at grade %.1f, above %.0f", g.Grade, entryGradeCeiling),
			})
		}
		if g.Words < minExplanationWords {
			r.Findings = append(r.Findings, Finding{
				Level:    g.Level,
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("explanation has only %d words", g.Words),
			})
		}
	}
	for _, reg := range ladder.CheckMonotonic(e) {
		r.Findings = append(r.Findings, Finding{
			Level:    reg.Level,
			Severity: SeverityWarn,
			Message: fmt.Sprintf("reads easier (grade %.1f) than level %d (grade %.1f)",
				reg.Grade, reg.PreviousLevel, reg.PreviousGrade),
		})
	}
	return r
}

func outcome(r *Review) string {
	if r.Warnings() > 0 {
		return "warn"
	}
	return "ok"
}

// escapeXML makes text safe to embed between XML tags in a prompt.
func escapeXML(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}
