// Package lifecycle moves entries between draft, published and deprecated.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/store"
)

// ErrInvalidTransition is returned when an entry cannot move to the requested status.
var ErrInvalidTransition = errors.New("invalid status transition")

// Report summarizes the results of a batch transition.
type Report struct {
	Changed []string          `json:"changed"`
	Skipped []string          `json:"skipped"`
	Failed  map[string]string `json:"failed"`
}

// Manager applies status transitions. The first store is the source of truth;
// the rest receive the same write in order.
type Manager struct {
	stores []store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a new lifecycle manager.
func NewManager(logger *slog.Logger, primary store.Store, mirrors ...store.Store) *Manager {
	return &Manager{
		stores: append([]store.Store{primary}, mirrors...),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Promote publishes a draft entry.
func (m *Manager) Promote(ctx context.Context, id string) (*models.Entry, error) {
	return m.Transition(ctx, id, models.StatusPublished)
}

// Deprecate retires an entry. It stays resolvable by id but drops out of listings.
func (m *Manager) Deprecate(ctx context.Context, id string) (*models.Entry, error) {
	return m.Transition(ctx, id, models.StatusDeprecated)
}

// Transition moves id to status next, bumping its version and updatedAt.
// Moving an entry to the status it already has is a no-op that returns it unchanged.
func (m *Manager) Transition(ctx context.Context, id string, next models.Status) (*models.Entry, error) {
	cur, err := m.stores[0].Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: %w", err)
	}
	if cur.Status == next {
		return cur, nil
	}
	if !cur.Status.CanBecome(next) {
		return nil, fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, id, cur.Status, next)
	}

	updated := cur.Clone()
	updated.Status = next
	updated.Version = cur.Version + 1
	updated.UpdatedAt = m.now()
	if !updated.CreatedAt.IsZero() && updated.UpdatedAt.Before(updated.CreatedAt) {
		updated.UpdatedAt = updated.CreatedAt
	}

	for _, st := range m.stores {
		if err := st.Put(ctx, updated); err != nil {
			return nil, fmt.Errorf("lifecycle: writing %s: %w", id, err)
		}
	}
	m.logger.Info("entry status changed", "id", id, "from", cur.Status, "to", next, "version", updated.Version)
	return &updated, nil
}

// Apply runs Transition for every id. With dryRun set nothing is written and the
// report lists the ids that would change.
func (m *Manager) Apply(ctx context.Context, ids []string, next models.Status, dryRun bool) *Report {
	report := &Report{Changed: []string{}, Skipped: []string{}, Failed: map[string]string{}}
	for _, id := range ids {
		if dryRun {
			cur, err := m.stores[0].Get(ctx, id)
			switch {
			case err != nil:
				report.Failed[id] = err.Error()
			case cur.Status == next:
				report.Skipped = append(report.Skipped, id)
			case !cur.Status.CanBecome(next):
				report.Failed[id] = fmt.Sprintf("%s: %s cannot become %s", ErrInvalidTransition, cur.Status, next)
			default:
				report.Changed = append(report.Changed, id)
			}
			continue
		}

		before, err := m.stores[0].Get(ctx, id)
		if err != nil {
			report.Failed[id] = err.Error()
			continue
		}
		if before.Status == next {
			report.Skipped = append(report.Skipped, id)
			continue
		}
		if _, err := m.Transition(ctx, id, next); err != nil {
			m.logger.Error("status transition failed", "id", id, "to", next, "error", err)
			report.Failed[id] = err.Error()
			continue
		}
		report.Changed = append(report.Changed, id)
	}
	return report
}
