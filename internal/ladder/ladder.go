// Package ladder picks the rung of an entry's explanation ladder that best fits a
// requested reader level, and estimates how difficulty climbs across rungs.
package ladder

import (
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/pkg/textstat"
)

// monotonicSlack is how far a rung's grade may dip below the rung under it before
// it is reported. Readability formulas are noisy on short texts.
const monotonicSlack = 0.5

// Select returns the rung for requested level r: the exact rung when it exists,
// otherwise the greatest defined level below r, otherwise the lowest defined level.
// The bool is false only when the ladder is empty.
func Select(e *models.Entry, r int) (models.LevelContent, bool) {
	if e == nil || len(e.Levels) == 0 {
		return models.LevelContent{}, false
	}
	if lc, ok := e.Levels[r]; ok {
		return lc.Clone(), true
	}

	below, lowest := 0, 0
	haveBelow, haveLowest := false, false
	for k := range e.Levels {
		if k <= r && (!haveBelow || k > below) {
			below, haveBelow = k, true
		}
		if !haveLowest || k < lowest {
			lowest, haveLowest = k, true
		}
	}
	if haveBelow {
		return e.Levels[below].Clone(), true
	}
	return e.Levels[lowest].Clone(), true
}

// Readability returns the Flesch-Kincaid grade estimate of text.
func Readability(text string) float64 {
	return textstat.FleschKincaidGrade(text)
}

// RungGrade is the estimated reading grade of one rung.
type RungGrade struct {
	Level int     `json:"level"`
	Grade float64 `json:"grade"`
	Words int     `json:"words"`
}

// Grades estimates every rung's explanation in ascending level order.
func Grades(e *models.Entry) []RungGrade {
	out := make([]RungGrade, 0, len(e.Levels))
	for _, k := range e.LevelNumbers() {
		st := textstat.Analyze(e.Levels[k].Explanation)
		out = append(out, RungGrade{Level: k, Grade: st.Grade, Words: st.Words})
	}
	return out
}

// Regression marks a rung that reads easier than the rung below it.
type Regression struct {
	Level         int     `json:"level"`
	Grade         float64 `json:"grade"`
	PreviousLevel int     `json:"previousLevel"`
	PreviousGrade float64 `json:"previousGrade"`
}

// CheckMonotonic reports rungs whose estimated grade falls below the previous
// rung's. The result is advisory; complexity is not mechanically checkable.
func CheckMonotonic(e *models.Entry) []Regression {
	grades := Grades(e)
	var out []Regression
	for i := 1; i < len(grades); i++ {
		prev, cur := grades[i-1], grades[i]
		if cur.Grade+monotonicSlack < prev.Grade {
			out = append(out, Regression{
				Level:         cur.Level,
				Grade:         cur.Grade,
				PreviousLevel: prev.Level,
				PreviousGrade: prev.Grade,
			})
		}
	}
	return out
}
