package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
)

func heartEntry() *models.Entry {
	return &models.Entry{
		ID:   "heart",
		Name: "Heart <pump> & vessels",
		Levels: map[int]models.LevelContent{
			1: {Level: 1, Summary: "A pump", Explanation: "Your heart pumps blood. It has four rooms."},
			2: {Level: 2, Summary: "Cardiac output", Explanation: "The myocardium contracts rhythmically, propelling oxygenated blood " +
				"through the systemic circulation via the aorta and its arterial branches."},
			3: {Level: 3, Summary: "Pump", Explanation: "The heart is a pump. It moves blood."},
		},
	}
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHeuristicReviewer_FlagsRegression(t *testing.T) {
	r, err := HeuristicReviewer{}.Review(context.Background(), heartEntry())
	require.NoError(t, err)

	assert.Equal(t, "heuristic", r.Reviewer)
	require.Len(t, r.Rungs, 3)
	assert.Equal(t, 1, r.Rungs[0].Level)
	assert.Equal(t, 1, r.Warnings())

	var warned []int
	for _, f := range r.Findings {
		if f.Severity == SeverityWarn {
			warned = append(warned, f.Level)
		}
	}
	assert.Equal(t, []int{3}, warned)
}

func TestHeuristicReviewer_EntryRungTooHard(t *testing.T) {
	e := &models.Entry{ID: "pk", Levels: map[int]models.LevelContent{
		1: {Level: 1, Explanation: "Pharmacokinetic variability necessitates individualized dosing regimens."},
	}}
	r, err := HeuristicReviewer{}.Review(context.Background(), e)
	require.NoError(t, err)
	require.NotEmpty(t, r.Findings)
	assert.Equal(t, SeverityWarn, r.Findings[0].Severity)
	assert.Contains(t, r.Findings[0].Message, "above 9")
}

func TestClaudeReviewer_MergesRatings(t *testing.T) {
	c := NewClaudeReviewer("test-key", "claude-haiku-4-5", testLogger())
	var prompt string
	c.complete = func(_ context.Context, _, p string) (string, error) {
		prompt = p
		return "Here you go:\n```json\n[{\"level\":1,\"rating\":5,\"comment\":\"clear\"}," +
			"{\"level\":3,\"rating\":2,\"comment\":\"too simple\"},{\"level\":9,\"rating\":1}]\n```", nil
	}

	r, err := c.Review(context.Background(), heartEntry())
	require.NoError(t, err)
	assert.Equal(t, "claude", r.Reviewer)
	assert.Equal(t, 5, r.Rungs[0].Rating)
	assert.Equal(t, 0, r.Rungs[1].Rating)
	assert.Equal(t, 2, r.Rungs[2].Rating)
	assert.Equal(t, 2, r.Warnings())

	assert.Contains(t, prompt, "Heart &lt;pump&gt; &amp; vessels")
	assert.Equal(t, 3, strings.Count(prompt, "<level n="))
}

func TestClaudeReviewer_FallsBackToHeuristic(t *testing.T) {
	c := NewClaudeReviewer("test-key", "claude-haiku-4-5", testLogger())
	c.complete = func(context.Context, string, string) (string, error) {
		return "", errors.New("rate limited")
	}
	r, err := c.Review(context.Background(), heartEntry())
	require.NoError(t, err)
	assert.Equal(t, "heuristic", r.Reviewer)
	assert.Len(t, r.Rungs, 3)

	c.complete = func(context.Context, string, string) (string, error) { return "I cannot help", nil }
	r, err = c.Review(context.Background(), heartEntry())
	require.NoError(t, err)
	assert.Equal(t, "heuristic", r.Reviewer)
}

func TestParseRatings(t *testing.T) {
	out, err := parseRatings(`[{"level":2,"rating":3,"comment":"ok"}]`)
	require.NoError(t, err)
	assert.Equal(t, []rating{{Level: 2, Rating: 3, Comment: "ok"}}, out)

	_, err = parseRatings(`{"level":2}`)
	assert.Error(t, err)
	_, err = parseRatings(`[not json]`)
	assert.Error(t, err)
}

func TestEscapeXML(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; c", escapeXML("a <b> & c"))
}
