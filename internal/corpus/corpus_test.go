package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/store"
	"github.com/ajitpratap0/openclaw-ladder/internal/validate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEntry(id string, levels ...int) models.Entry {
	if len(levels) == 0 {
		levels = []int{1, 2, 3}
	}
	created := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	lv := make(map[int]models.LevelContent, len(levels))
	for _, n := range levels {
		lv[n] = models.LevelContent{
			Level:       n,
			Summary:     fmt.Sprintf("%s level %d summary", id, n),
			Explanation: fmt.Sprintf("%s level %d explanation", id, n),
		}
	}
	return models.Entry{
		ID:        id,
		Type:      models.EntryTypeConcept,
		Name:      id,
		Levels:    lv,
		CreatedAt: created,
		UpdatedAt: created,
		Version:   1,
		Status:    models.StatusPublished,
	}
}

func ids(entries []models.Entry) []string {
	out := make([]string, 0, len(entries))
	for i := range entries {
		out = append(out, entries[i].ID)
	}
	return out
}

func TestCorpus_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := New(testLogger())

	e := newEntry("copd-management")
	e.AlternateNames = []string{"COPD"}
	e.Citations = []models.Citation{{ID: "gold", Title: "GOLD Report", Authors: []string{"GOLD Committee"}}}
	e.Tags = models.Tags{Systems: []string{"respiratory"}, ExamRelevance: []string{"NCLEX"}}
	require.NoError(t, c.Put(ctx, e))

	got, err := c.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, *got)

	// Mutating the caller's copy or the returned copy must not reach the corpus.
	e.AlternateNames[0] = "mutated"
	got.Tags.Systems[0] = "mutated"
	again, err := c.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "COPD", again.AlternateNames[0])
	assert.Equal(t, "respiratory", again.Tags.Systems[0])
}

// emptyListsRecord decodes to an entry whose list fields are empty but not nil.
func emptyListsRecord() map[string]any {
	return map[string]any{
		"id": "empty-lists", "type": "concept", "name": "Empty lists",
		"alternateNames": []any{},
		"levels": map[string]any{
			"1": map[string]any{"level": 1, "summary": "s", "explanation": "e", "keyTerms": []any{}, "analogies": []any{}},
		},
		"media":           []any{},
		"citations":       []any{},
		"crossReferences": []any{},
		"tags":            map[string]any{"systems": []any{}},
		"createdAt":       "2024-01-15T08:00:00Z",
		"updatedAt":       "2024-01-15T08:00:00Z",
	}
}

func TestCorpus_RoundTripKeepsEmptyLists(t *testing.T) {
	ctx := context.Background()
	e, err := validate.Validate(emptyListsRecord())
	require.NoError(t, err)
	require.NotNil(t, e.Media)
	require.NotNil(t, e.Levels[1].KeyTerms)

	c := New(testLogger())
	require.NoError(t, c.Put(ctx, *e))
	got, err := c.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, *e, *got)
	assert.NotNil(t, got.CrossReferences)
}

func TestCorpus_GetNotFound(t *testing.T) {
	c := New(testLogger())
	_, err := c.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestCorpus_StaleVersion(t *testing.T) {
	ctx := context.Background()
	c := New(testLogger())

	a := newEntry("a")
	require.NoError(t, c.Put(ctx, a))

	dup := newEntry("a")
	dup.Name = "should not land"
	err := c.Put(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStaleVersion))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, a, *got)

	v2 := newEntry("a")
	v2.Version = 2
	v2.Name = "second"
	require.NoError(t, c.Put(ctx, v2))
	got, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "second", got.Name)

	older := newEntry("a")
	older.Version = 1
	assert.True(t, errors.Is(c.Put(ctx, older), store.ErrStaleVersion))
}

func TestCorpus_RejectsMalformed(t *testing.T) {
	c := New(testLogger())
	e := newEntry("bad")
	e.Levels[2] = models.LevelContent{Level: 7, Summary: "x", Explanation: "y"}
	assert.Error(t, c.Put(context.Background(), e))
	assert.Equal(t, 0, c.Len())

	e = newEntry("bad")
	e.Levels[0] = models.LevelContent{Level: 0, Summary: "x", Explanation: "y"}
	assert.ErrorContains(t, c.Put(context.Background(), e), ">= 1")
	assert.Equal(t, 0, c.Len())
}

func TestCorpus_DanglingReference(t *testing.T) {
	ctx := context.Background()
	c := New(testLogger())

	copd := newEntry("copd-management")
	copd.CrossReferences = []models.CrossReference{
		{TargetID: "chronic-disease-copd-overview", Relationship: models.RelationshipParent},
		{TargetID: "asthma", Relationship: models.RelationshipRelated},
	}
	require.NoError(t, c.Put(ctx, copd))
	require.NoError(t, c.Put(ctx, newEntry("asthma")))

	dangling := c.ResolveReferences()
	require.Len(t, dangling, 1)
	assert.Equal(t, DanglingReference{
		SourceID:     "copd-management",
		TargetID:     "chronic-disease-copd-overview",
		Relationship: models.RelationshipParent,
	}, dangling[0])

	for _, d := range dangling {
		_, err := c.Get(ctx, d.TargetID)
		assert.True(t, errors.Is(err, store.ErrNotFound), "reported target %s must not resolve", d.TargetID)
	}
}

func TestCorpus_DeprecatedTargetsResolve(t *testing.T) {
	ctx := context.Background()
	c := New(testLogger())

	old := newEntry("old-guideline")
	old.Status = models.StatusDeprecated
	require.NoError(t, c.Put(ctx, old))

	src := newEntry("new-guideline")
	src.CrossReferences = []models.CrossReference{{TargetID: "old-guideline", Relationship: models.RelationshipSeeAlso}}
	require.NoError(t, c.Put(ctx, src))

	assert.Empty(t, c.ResolveReferences())
}

func TestCorpus_ByTagCriticalRegardlessOfOrder(t *testing.T) {
	marked := map[int]bool{1: true, 2: true, 4: true, 6: true, 7: true, 8: true}
	var entries []models.Entry
	var critical []string
	for i := 0; i < 10; i++ {
		e := newEntry(fmt.Sprintf("entry-%02d", i))
		if marked[i] {
			e.Tags.ClinicalRelevance = "critical"
			critical = append(critical, e.ID)
		} else {
			e.Tags.ClinicalRelevance = "moderate"
		}
		entries = append(entries, e)
	}
	require.Len(t, critical, 6)

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 3; round++ {
		rng.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
		c := New(testLogger())
		for _, e := range entries {
			require.NoError(t, c.Put(context.Background(), e))
		}
		got, err := c.ByTag(models.FacetClinicalRelevance, "critical")
		require.NoError(t, err)
		assert.Equal(t, critical, ids(got))
	}
}

func TestCorpus_ByTagSoundness(t *testing.T) {
	ctx := context.Background()
	c := New(testLogger())

	pub := newEntry("pub")
	pub.Tags.Systems = []string{"cardiovascular", "respiratory", "respiratory"}
	require.NoError(t, c.Put(ctx, pub))

	draft := newEntry("draft")
	draft.Status = models.StatusDraft
	draft.Tags.Systems = []string{"respiratory"}
	require.NoError(t, c.Put(ctx, draft))

	dep := newEntry("dep")
	dep.Status = models.StatusDeprecated
	dep.Tags.Systems = []string{"respiratory"}
	require.NoError(t, c.Put(ctx, dep))

	other := newEntry("other")
	other.Tags.Topics = []string{"respiratory"}
	require.NoError(t, c.Put(ctx, other))

	got, err := c.ByTag(models.FacetSystems, "respiratory")
	require.NoError(t, err)
	assert.Equal(t, []string{"pub"}, ids(got))

	got, err = c.ByTag(models.FacetKeywords, "respiratory")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = c.ByTag(models.Facet("organ"), "lung")
	assert.True(t, errors.Is(err, ErrUnknownFacet))

	assert.Equal(t, []string{"cardiovascular", "respiratory"}, c.Snapshot().TagValues(models.FacetSystems))
}

func TestCorpus_ByLevelCoverage(t *testing.T) {
	ctx := context.Background()
	c := New(testLogger())

	require.NoError(t, c.Put(ctx, newEntry("three", 1, 2, 3)))
	require.NoError(t, c.Put(ctx, newEntry("five", 1, 2, 3, 4, 5)))
	require.NoError(t, c.Put(ctx, newEntry("one", 1)))
	dep := newEntry("six", 1, 2, 3, 4, 5, 6)
	dep.Status = models.StatusDeprecated
	require.NoError(t, c.Put(ctx, dep))

	assert.Equal(t, []string{"five", "one", "three"}, ids(c.ByLevelCoverage(1)))
	assert.Equal(t, []string{"five", "three"}, ids(c.ByLevelCoverage(3)))
	assert.Equal(t, []string{"five"}, ids(c.ByLevelCoverage(5)))
	assert.Empty(t, c.ByLevelCoverage(6))
}

func TestCorpus_FreezeRejectsWrites(t *testing.T) {
	ctx := context.Background()
	c := New(testLogger())
	require.NoError(t, c.Put(ctx, newEntry("a")))

	c.Freeze()
	assert.True(t, c.Frozen())

	b := newEntry("b")
	err := c.Put(ctx, b)
	assert.True(t, errors.Is(err, ErrFrozen))

	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestCorpus_SnapshotIsStable(t *testing.T) {
	ctx := context.Background()
	c := New(testLogger())
	require.NoError(t, c.Put(ctx, newEntry("a")))

	s1 := c.Snapshot()
	assert.Same(t, s1, c.Snapshot())

	require.NoError(t, c.Put(ctx, newEntry("b")))
	s2 := c.Snapshot()
	assert.NotSame(t, s1, s2)
	assert.Equal(t, 1, s1.Len())
	assert.Equal(t, []string{"a", "b"}, s2.IDs())
}

func TestCorpus_ConcurrentPutsKeepHighestVersion(t *testing.T) {
	ctx := context.Background()
	c := New(testLogger())

	var wg sync.WaitGroup
	for v := 1; v <= 50; v++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			e := newEntry("contended")
			e.Version = v
			_ = c.Put(ctx, e)
			_ = c.Snapshot().Len()
		}(v)
	}
	wg.Wait()

	got, err := c.Get(ctx, "contended")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Version)
}

func TestCorpus_ListAndStats(t *testing.T) {
	ctx := context.Background()
	c := New(testLogger())

	require.NoError(t, c.Put(ctx, newEntry("b", 1, 2)))
	require.NoError(t, c.Put(ctx, newEntry("a", 1, 2, 3)))
	dep := newEntry("c", 1)
	dep.Status = models.StatusDeprecated
	require.NoError(t, c.Put(ctx, dep))

	page, next, err := c.List(ctx, nil, 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(page))
	assert.Equal(t, "a", next)

	page, next, err = c.List(ctx, nil, 1, next)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(page))
	assert.Empty(t, next)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.ByStatus["deprecated"])
	assert.Equal(t, int64(1), stats.ByLevelCount[3])
}

func TestCorpus_LoadFromStore(t *testing.T) {
	ctx := context.Background()
	src := New(testLogger())
	for i := 0; i < 1200; i++ {
		require.NoError(t, src.Put(ctx, newEntry(fmt.Sprintf("e-%04d", i), 1)))
	}
	dep := newEntry("retired", 1)
	dep.Status = models.StatusDeprecated
	require.NoError(t, src.Put(ctx, dep))

	dst := New(testLogger())
	n, err := dst.Load(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1201, n)
	assert.Equal(t, 1201, dst.Len())

	_, err = dst.Get(ctx, "retired")
	assert.NoError(t, err)
}
