// Package textstat provides rough readability and size estimates for English prose.
package textstat

import (
	"math"
	"strings"
	"unicode"
)

// Stats summarises a block of text.
type Stats struct {
	Words     int     `json:"words"`
	Sentences int     `json:"sentences"`
	Syllables int     `json:"syllables"`
	Grade     float64 `json:"grade"`
}

// Analyze counts words, sentences and syllables and derives the Flesch-Kincaid grade.
func Analyze(text string) Stats {
	words := Words(text)
	st := Stats{Words: len(words), Sentences: CountSentences(text)}
	for _, w := range words {
		st.Syllables += CountSyllables(w)
	}
	st.Grade = grade(st)
	return st
}

// FleschKincaidGrade estimates the US school grade needed to read text.
// Empty text scores 0.
func FleschKincaidGrade(text string) float64 {
	return Analyze(text).Grade
}

func grade(st Stats) float64 {
	if st.Words == 0 {
		return 0
	}
	sentences := st.Sentences
	if sentences == 0 {
		sentences = 1
	}
	g := 0.39*float64(st.Words)/float64(sentences) + 11.8*float64(st.Syllables)/float64(st.Words) - 15.59
	if g < 0 {
		g = 0
	}
	return math.Round(g*10) / 10
}

// Words splits text into words, dropping surrounding punctuation and markup.
func Words(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// CountSentences counts runs of sentence-ending punctuation and blank-line breaks.
// Text without terminal punctuation counts as one sentence.
func CountSentences(text string) int {
	n := 0
	inEnd := false
	for _, r := range text {
		switch r {
		case '.', '!', '?', ';':
			if !inEnd {
				n++
			}
			inEnd = true
		default:
			if !unicode.IsSpace(r) {
				inEnd = false
			}
		}
	}
	if n == 0 && strings.TrimSpace(text) != "" {
		return 1
	}
	return n
}

// CountSyllables estimates syllables in a single word by counting vowel groups.
func CountSyllables(word string) int {
	w := strings.ToLower(word)
	if w == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range w {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

// EstimateTokens provides a rough token count estimate.
// Uses the heuristic of ~4 characters per token for English text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	wordEstimate := int(float64(words) * 1.3)
	charEstimate := len(text) / 4
	return (wordEstimate + charEstimate) / 2
}

// TruncateToTokenBudget cuts text at a word boundary so it fits roughly within budget tokens.
func TruncateToTokenBudget(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if EstimateTokens(text) <= budget {
		return text
	}
	maxChars := budget * 4
	if maxChars >= len(text) {
		return text
	}
	truncated := text[:maxChars]
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > maxChars/2 {
		truncated = truncated[:lastSpace]
	}
	return truncated + "..."
}
