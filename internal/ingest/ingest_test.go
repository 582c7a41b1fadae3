package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/openclaw-ladder/internal/corpus"
	"github.com/ajitpratap0/openclaw-ladder/internal/loader"
	"github.com/ajitpratap0/openclaw-ladder/internal/store"
	"github.com/ajitpratap0/openclaw-ladder/internal/validate"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newPipeline(sinks ...store.Store) *Pipeline {
	return New(loader.New(nil, 2, discard()), validate.New(validate.Options{}), discard(), sinks...)
}

func raw(id string, version int) map[string]any {
	return map[string]any{
		"id":      id,
		"type":    "condition",
		"name":    id,
		"version": version,
		"status":  "published",
		"levels": map[string]any{
			"1": map[string]any{"level": 1, "summary": "s1", "explanation": "e1"},
			"2": map[string]any{"level": 2, "summary": "s2", "explanation": "e2"},
		},
	}
}

func TestAdmit_Outcomes(t *testing.T) {
	ctx := context.Background()
	c := corpus.New(discard())
	p := newPipeline(c)

	bad := raw("bad", 1)
	delete(bad, "name")

	report := p.Admit(ctx, []loader.Record{
		{Source: "a.json", Raw: raw("copd", 1)},
		{Source: "b.json", Raw: bad},
		{Source: "c.json", Raw: raw("asthma", 1)},
	})
	_, err := uuid.Parse(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"copd", "asthma"}, report.Admitted)
	require.Len(t, report.Problems, 1)
	assert.Equal(t, OutcomeRejected, report.Problems[0].Outcome)
	assert.Equal(t, "bad", report.Problems[0].ID)
	assert.Equal(t, "name", report.Problems[0].Violations[0].Field)
	assert.False(t, report.OK())
	assert.Equal(t, 2, c.Len())
}

func TestAdmit_UnchangedAndStale(t *testing.T) {
	ctx := context.Background()
	c := corpus.New(discard())
	p := newPipeline(c)

	first := p.Admit(ctx, []loader.Record{{Source: "a.json", Raw: raw("copd", 1)}})
	require.True(t, first.OK())

	again := p.Admit(ctx, []loader.Record{{Source: "a.json", Raw: raw("copd", 1)}})
	assert.True(t, again.OK())
	assert.Equal(t, []string{"copd"}, again.Unchanged)
	assert.Empty(t, again.Admitted)

	edited := raw("copd", 1)
	edited["name"] = "COPD edited without a version bump"
	stale := p.Admit(ctx, []loader.Record{{Source: "a.json", Raw: edited}})
	require.Len(t, stale.Problems, 1)
	assert.Equal(t, OutcomeStale, stale.Problems[0].Outcome)
	assert.Equal(t, 1, stale.Count(OutcomeStale))

	got, err := c.Get(ctx, "copd")
	require.NoError(t, err)
	assert.Equal(t, "copd", got.Name)

	bumped := raw("copd", 2)
	bumped["name"] = "COPD v2"
	ok := p.Admit(ctx, []loader.Record{{Source: "a.json", Raw: bumped}})
	assert.Equal(t, []string{"copd"}, ok.Admitted)
}

func TestAdmitOne_ErrorKinds(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(corpus.New(discard()))

	_, err := p.AdmitOne(ctx, map[string]any{"id": "x"})
	var ve *validate.ValidationError
	assert.True(t, errors.As(err, &ve))

	e, err := p.AdmitOne(ctx, raw("x", 2))
	require.NoError(t, err)
	assert.Equal(t, 2, e.Version)

	changed := raw("x", 1)
	changed["name"] = "older"
	_, err = p.AdmitOne(ctx, changed)
	assert.True(t, errors.Is(err, store.ErrStaleVersion))

	retired := raw("x", 3)
	retired["status"] = "deprecated"
	_, err = p.AdmitOne(ctx, retired)
	require.NoError(t, err)

	revived := raw("x", 4)
	_, err = p.AdmitOne(ctx, revived)
	assert.True(t, errors.Is(err, store.ErrRetired))
}

func TestAdmit_MultipleSinksInOrder(t *testing.T) {
	ctx := context.Background()
	primary := corpus.New(discard())
	replica := corpus.New(discard())
	p := newPipeline(primary, replica)

	report := p.Admit(ctx, []loader.Record{{Source: "a.json", Raw: raw("a", 1)}})
	require.True(t, report.OK())
	assert.Equal(t, 1, primary.Len())
	assert.Equal(t, 1, replica.Len())

	replica.Freeze()
	report = p.Admit(ctx, []loader.Record{{Source: "b.json", Raw: raw("b", 1)}})
	require.Len(t, report.Problems, 1)
	assert.Equal(t, OutcomeFailed, report.Problems[0].Outcome)
	assert.Contains(t, report.Problems[0].Error, "frozen")
}

func TestRun_FromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(`
id: sepsis
type: condition
name: Sepsis
status: published
levels:
  1: {level: 1, summary: s, explanation: e}
  2: {level: 2, summary: s, explanation: e}
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{not json`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"),
		[]byte(`[{"id":"gap","type":"concept","name":"Gap","levels":{"1":{"level":1,"summary":"s","explanation":"e"},"3":{"level":3,"summary":"s","explanation":"e"}}}]`), 0o600))

	c := corpus.New(discard())
	report, err := newPipeline(c).Run(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"sepsis"}, report.Admitted)
	assert.Equal(t, 1, report.Count(OutcomeRejected))
	assert.Equal(t, 1, report.Count(OutcomeFailed))
	for _, prob := range report.Problems {
		if prob.Outcome == OutcomeRejected {
			assert.Equal(t, "gap", prob.ID)
			assert.Equal(t, validate.RuleContiguous, prob.Violations[0].Rule)
		}
	}
}
