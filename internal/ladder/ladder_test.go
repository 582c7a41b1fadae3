package ladder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
)

func entryWithLevels(levels ...int) *models.Entry {
	lv := make(map[int]models.LevelContent, len(levels))
	for _, n := range levels {
		lv[n] = models.LevelContent{Level: n, Summary: "summary", Explanation: "explanation"}
	}
	return &models.Entry{ID: "e", Levels: lv}
}

func TestSelect_RoundsDownToNearestRung(t *testing.T) {
	e := entryWithLevels(1, 2, 3)
	lc, ok := Select(e, 5)
	require.True(t, ok)
	assert.Equal(t, 3, lc.Level)
}

func TestSelect_RoundsUpBelowMinimum(t *testing.T) {
	e := entryWithLevels(2, 4)
	lc, ok := Select(e, 1)
	require.True(t, ok)
	assert.Equal(t, 2, lc.Level)
}

func TestSelect_Policy(t *testing.T) {
	e := entryWithLevels(1, 3, 5)
	tests := []struct {
		requested, want int
	}{
		{1, 1}, {2, 1}, {3, 3}, {4, 3}, {5, 5}, {6, 5}, {0, 1},
	}
	for _, tt := range tests {
		lc, ok := Select(e, tt.requested)
		require.True(t, ok)
		assert.Equal(t, tt.want, lc.Level, "requested %d", tt.requested)
	}
}

func TestSelect_Totality(t *testing.T) {
	ladders := [][]int{{1}, {1, 2, 3, 4, 5, 6}, {2, 4}, {7}}
	requests := []int{math.MinInt, -100, -1, 0, 1, 3, 6, 100, math.MaxInt}
	for _, levels := range ladders {
		e := entryWithLevels(levels...)
		for _, r := range requests {
			lc, ok := Select(e, r)
			require.True(t, ok)
			_, defined := e.Levels[lc.Level]
			assert.True(t, defined, "levels %v, request %d returned undefined rung %d", levels, r, lc.Level)
		}
	}
}

func TestSelect_EmptyLadder(t *testing.T) {
	_, ok := Select(&models.Entry{}, 1)
	assert.False(t, ok)
	_, ok = Select(nil, 1)
	assert.False(t, ok)
}

func TestSelect_ReturnsCopy(t *testing.T) {
	e := entryWithLevels(1)
	e.Levels[1] = models.LevelContent{Level: 1, Summary: "s", Explanation: "e", Analogies: []string{"original"}}

	lc, _ := Select(e, 1)
	lc.Analogies[0] = "changed"
	assert.Equal(t, "original", e.Levels[1].Analogies[0])
}

func TestCheckMonotonic(t *testing.T) {
	e := &models.Entry{Levels: map[int]models.LevelContent{
		1: {Level: 1, Explanation: "Your heart pumps blood. It has four rooms."},
		2: {Level: 2, Explanation: "The myocardium contracts rhythmically, propelling oxygenated blood " +
			"through the systemic circulation via the aorta and its arterial branches."},
		3: {Level: 3, Explanation: "The heart is a pump. It moves blood."},
	}}

	grades := Grades(e)
	require.Len(t, grades, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{grades[0].Level, grades[1].Level, grades[2].Level})

	regs := CheckMonotonic(e)
	require.Len(t, regs, 1)
	assert.Equal(t, 3, regs[0].Level)
	assert.Equal(t, 2, regs[0].PreviousLevel)
	assert.Less(t, regs[0].Grade, regs[0].PreviousGrade)
}

func TestReadability(t *testing.T) {
	assert.Equal(t, 0.0, Readability(""))
	assert.Greater(t, Readability("Pharmacokinetic variability necessitates individualized dosing regimens."), 10.0)
}
