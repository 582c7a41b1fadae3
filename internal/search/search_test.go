package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/openclaw-ladder/internal/corpus"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func entry(id, name string, et models.EntryType, status models.Status) models.Entry {
	return models.Entry{
		ID:      id,
		Type:    et,
		Name:    name,
		Version: 1,
		Status:  status,
		Levels: map[int]models.LevelContent{
			1: {Level: 1, Summary: "A short summary", Explanation: "e"},
		},
	}
}

func testCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	c := corpus.New(testLogger())
	ctx := context.Background()

	copd := entry("copd", "Chronic Obstructive Pulmonary Disease", models.EntryTypeCondition, models.StatusPublished)
	copd.AlternateNames = []string{"COPD", "emphysema"}
	copd.Tags.Systems = []string{"respiratory"}
	copd.Levels[1] = models.LevelContent{
		Level: 1, Summary: "Lungs have trouble moving air", Explanation: "e",
		KeyTerms: []models.KeyTerm{{Term: "bronchodilator", Definition: "opens airways"}},
	}
	require.NoError(t, c.Put(ctx, copd))

	asthma := entry("asthma", "Asthma", models.EntryTypeCondition, models.StatusPublished)
	asthma.Tags.Systems = []string{"respiratory"}
	require.NoError(t, c.Put(ctx, asthma))

	require.NoError(t, c.Put(ctx, entry("gas-exchange", "Gas Exchange", models.EntryTypeProcess, models.StatusPublished)))
	require.NoError(t, c.Put(ctx, entry("old-copd", "Chronic Bronchitis", models.EntryTypeCondition, models.StatusDeprecated)))
	return c
}

func hitIDs(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func TestIndex_SearchMatchesNamesAndTerms(t *testing.T) {
	ctx := context.Background()
	idx, err := Open("", testLogger())
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	n, err := idx.Rebuild(ctx, testCorpus(t).Snapshot())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := idx.Search(ctx, "emphysema", 10, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"copd"}, hitIDs(hits))

	hits, err = idx.Search(ctx, "bronchodilator", 10, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"copd"}, hitIDs(hits))

	hits, err = idx.Search(ctx, "respiratory", 10, Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"copd", "asthma"}, hitIDs(hits))
}

func TestIndex_DeprecatedExcluded(t *testing.T) {
	ctx := context.Background()
	idx, err := Open("", testLogger())
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	_, err = idx.Rebuild(ctx, testCorpus(t).Snapshot())
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "bronchitis", 10, Options{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_TypeFilterAndFuzzy(t *testing.T) {
	ctx := context.Background()
	idx, err := Open("", testLogger())
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	_, err = idx.Rebuild(ctx, testCorpus(t).Snapshot())
	require.NoError(t, err)

	hits, err := idx.Search(ctx, "summary", 10, Options{Types: []models.EntryType{models.EntryTypeProcess}})
	require.NoError(t, err)
	assert.Equal(t, []string{"gas-exchange"}, hitIDs(hits))

	hits, err = idx.Search(ctx, "asthmaa", 10, Options{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, "asthmaa", 10, Options{Fuzzy: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"asthma"}, hitIDs(hits))
}

func TestIndex_RebuildRemovesVanishedEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "search.bleve")
	idx, err := Open(path, testLogger())
	require.NoError(t, err)

	c := testCorpus(t)
	_, err = idx.Rebuild(ctx, c.Snapshot())
	require.NoError(t, err)

	retired := entry("asthma", "Asthma", models.EntryTypeCondition, models.StatusDeprecated)
	retired.Version = 2
	require.NoError(t, c.Put(ctx, retired))
	_, err = idx.Rebuild(ctx, c.Snapshot())
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	reopened, err := Open(path, testLogger())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	count, err := reopened.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	hits, err := reopened.Search(ctx, "asthma", 10, Options{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_ConcurrentRebuilds(t *testing.T) {
	ctx := context.Background()
	idx, err := Open("", testLogger())
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	c := testCorpus(t)
	before := c.Snapshot()
	retired := entry("asthma", "Asthma", models.EntryTypeCondition, models.StatusDeprecated)
	retired.Version = 2
	require.NoError(t, c.Put(ctx, retired))
	after := c.Snapshot()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		snap := before
		if i%2 == 1 {
			snap = after
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := idx.Rebuild(ctx, snap)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := idx.Rebuild(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestIndex_EmptyQuery(t *testing.T) {
	idx, err := Open("", testLogger())
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	_, err = idx.Search(context.Background(), "  ", 10, Options{})
	assert.True(t, errors.Is(err, ErrEmptyQuery))
}
