// Package ingest funnels raw records through the schema validator into one or
// more stores. It is the single writer path: every admitted entry goes through Admit.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/openclaw-ladder/internal/loader"
	"github.com/ajitpratap0/openclaw-ladder/internal/metrics"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/store"
	"github.com/ajitpratap0/openclaw-ladder/internal/validate"
)

// Outcome classifies what happened to one record.
type Outcome string

const (
	OutcomeAdmitted  Outcome = "admitted"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeRejected  Outcome = "rejected"
	OutcomeStale     Outcome = "stale"
	OutcomeFailed    Outcome = "failed"
)

// Problem describes a record or file that did not make it into the stores.
type Problem struct {
	Source     string               `json:"source"`
	Index      int                  `json:"index"`
	ID         string               `json:"id,omitempty"`
	Outcome    Outcome              `json:"outcome"`
	Violations []validate.Violation `json:"violations,omitempty"`
	Error      string               `json:"error"`
}

// Report summarises one ingestion run.
type Report struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Admitted   []string  `json:"admitted"`
	Unchanged  []string  `json:"unchanged"`
	Problems   []Problem `json:"problems"`
}

// OK reports whether every record was admitted or already current.
func (r *Report) OK() bool { return len(r.Problems) == 0 }

// Count returns how many problems carry the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, p := range r.Problems {
		if p.Outcome == o {
			n++
		}
	}
	return n
}

// Pipeline validates records and writes admitted entries to its sinks in order.
type Pipeline struct {
	loader    *loader.Loader
	validator *validate.Validator
	sinks     []store.Store
	logger    *slog.Logger
}

// New creates a pipeline. Sinks are written in the order given; a failure at one
// sink stops the record from reaching later ones.
func New(l *loader.Loader, v *validate.Validator, logger *slog.Logger, sinks ...store.Store) *Pipeline {
	return &Pipeline{loader: l, validator: v, sinks: sinks, logger: logger}
}

// Run loads every content file under paths and admits the records it finds.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*Report, error) {
	res, err := p.loader.Load(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	report := p.Admit(ctx, res.Records)
	for _, fe := range res.Errors {
		report.Problems = append(report.Problems, Problem{
			Source:  fe.Path,
			Index:   -1,
			Outcome: OutcomeFailed,
			Error:   fe.Err.Error(),
		})
	}
	return report, nil
}

// Admit validates and stores records in order and reports the outcome of each.
func (p *Pipeline) Admit(ctx context.Context, records []loader.Record) *Report {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Admitted:  []string{},
		Unchanged: []string{},
		Problems:  []Problem{},
	}
	for _, rec := range records {
		e, outcome, err := p.admit(ctx, rec.Raw)
		switch outcome {
		case OutcomeAdmitted:
			report.Admitted = append(report.Admitted, e.ID)
		case OutcomeUnchanged:
			report.Unchanged = append(report.Unchanged, e.ID)
		default:
			prob := Problem{Source: rec.Source, Index: rec.Index, Outcome: outcome, Error: err.Error()}
			var ve *validate.ValidationError
			if errors.As(err, &ve) {
				prob.ID = ve.ID
				prob.Violations = ve.Violations
			} else if e != nil {
				prob.ID = e.ID
			}
			report.Problems = append(report.Problems, prob)
			p.logger.Warn("ingest: record not admitted",
				"run_id", report.RunID, "source", rec.Source, "index", rec.Index,
				"id", prob.ID, "outcome", outcome, "error", err)
		}
	}
	report.FinishedAt = time.Now().UTC()
	metrics.IngestRunsTotal.Inc()
	p.logger.Info("ingest complete",
		"run_id", report.RunID,
		"records", len(records),
		"admitted", len(report.Admitted),
		"unchanged", len(report.Unchanged),
		"problems", len(report.Problems),
	)
	return report
}

// AdmitOne validates raw and writes it to every sink. The returned error is a
// *validate.ValidationError, a store.ErrStaleVersion match, or a sink failure.
// Re-submitting an entry identical to the stored one succeeds without a write.
func (p *Pipeline) AdmitOne(ctx context.Context, raw map[string]any) (*models.Entry, error) {
	e, _, err := p.admit(ctx, raw)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (p *Pipeline) admit(ctx context.Context, raw map[string]any) (*models.Entry, Outcome, error) {
	e, err := p.validator.Validate(raw)
	if err != nil {
		metrics.RejectedTotal.Inc()
		return nil, OutcomeRejected, err
	}

	unchanged := 0
	for _, sink := range p.sinks {
		err := sink.Put(ctx, *e)
		if err == nil {
			continue
		}
		if errors.Is(err, store.ErrStaleVersion) {
			if same, _ := sameAsStored(ctx, sink, e); same {
				unchanged++
				continue
			}
			metrics.StaleTotal.Inc()
			return e, OutcomeStale, err
		}
		if errors.Is(err, store.ErrRetired) {
			return e, OutcomeRejected, err
		}
		return e, OutcomeFailed, fmt.Errorf("ingest: writing %s: %w", e.ID, err)
	}
	if len(p.sinks) > 0 && unchanged == len(p.sinks) {
		return e, OutcomeUnchanged, nil
	}
	metrics.AdmittedTotal.Inc()
	return e, OutcomeAdmitted, nil
}

// sameAsStored compares by canonical JSON so nil and empty slices are equal.
func sameAsStored(ctx context.Context, sink store.Store, e *models.Entry) (bool, error) {
	stored, err := sink.Get(ctx, e.ID)
	if err != nil {
		return false, err
	}
	if stored.Version != e.Version {
		return false, nil
	}
	a, err := json.Marshal(stored)
	if err != nil {
		return false, err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}
