package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ajitpratap0/openclaw-ladder/internal/metrics"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/pkg/textstat"
)

// rungTokenBudget caps how much of one explanation is sent to the model.
const rungTokenBudget = 1500

const reviewSystemPrompt = "You review graded medical education content. Output only valid JSON."

const reviewPromptTemplate = `An entry explains one topic at several levels, from level 1 (an 8th-grade reader)
up to the highest level (a practising clinician). Rate how well each level's text fits its
intended reader on a 1-5 scale and add a one-sentence comment.

Return a JSON array like [{"level":1,"rating":4,"comment":"..."}] with one object per level.

<entry name="%s">
%s</entry>`

// ClaudeReviewer asks Claude to rate each rung. Readability grades and findings
// come from the heuristic reviewer; when the model call fails the heuristic
// review is returned on its own.
type ClaudeReviewer struct {
	client   *anthropic.Client
	model    string
	logger   *slog.Logger
	complete func(ctx context.Context, system, prompt string) (string, error)
}

var _ Reviewer = (*ClaudeReviewer)(nil)

// NewClaudeReviewer creates a Claude-backed reviewer.
func NewClaudeReviewer(apiKey, model string, logger *slog.Logger) *ClaudeReviewer {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	c := &ClaudeReviewer{client: &client, model: model, logger: logger}
	c.complete = c.messages
	return c
}

// Name implements Reviewer.
func (c *ClaudeReviewer) Name() string { return "claude" }

type rating struct {
	Level   int    `json:"level"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Review implements Reviewer.
func (c *ClaudeReviewer) Review(ctx context.Context, e *models.Entry) (*Review, error) {
	r := heuristic(e)

	text, err := c.complete(ctx, reviewSystemPrompt, buildPrompt(e))
	if err != nil {
		c.logger.Warn("claude review failed, using heuristic review", "id", e.ID, "error", err)
		metrics.ReviewsTotal.WithLabelValues(c.Name(), "fallback").Inc()
		return r, nil
	}
	ratings, err := parseRatings(text)
	if err != nil {
		c.logger.Warn("unparseable claude review, using heuristic review", "id", e.ID, "error", err)
		metrics.ReviewsTotal.WithLabelValues(c.Name(), "fallback").Inc()
		return r, nil
	}

	byLevel := make(map[int]rating, len(ratings))
	for _, rt := range ratings {
		byLevel[rt.Level] = rt
	}
	for i := range r.Rungs {
		rt, ok := byLevel[r.Rungs[i].Level]
		if !ok || rt.Rating < 1 || rt.Rating > 5 {
			continue
		}
		r.Rungs[i].Rating = rt.Rating
		r.Rungs[i].Comment = rt.Comment
		if rt.Rating <= 2 {
			r.Findings = append(r.Findings, Finding{
				Level:    rt.Level,
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("rated %d/5 for its level: %s", rt.Rating, rt.Comment),
			})
		}
	}
	r.Reviewer = c.Name()
	metrics.ReviewsTotal.WithLabelValues(c.Name(), outcome(r)).Inc()
	c.logger.Info("claude review complete", "id", e.ID, "rungs", len(r.Rungs), "warnings", r.Warnings())
	return r, nil
}

func (c *ClaudeReviewer) messages(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		System: []anthropic.TextBlockParam{{Text: system}},
	})
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from Claude")
}

func buildPrompt(e *models.Entry) string {
	var b strings.Builder
	for _, n := range e.LevelNumbers() {
		lc := e.Levels[n]
		fmt.Fprintf(&b, "<level n=\"%d\">\n<summary>%s</summary>\n<explanation>%s</explanation>\n</level>\n",
			n, escapeXML(lc.Summary), escapeXML(textstat.TruncateToTokenBudget(lc.Explanation, rungTokenBudget)))
	}
	return fmt.Sprintf(reviewPromptTemplate, escapeXML(e.Name), b.String())
}

// parseRatings accepts a bare array or one wrapped in prose or a code fence.
func parseRatings(text string) ([]rating, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in response")
	}
	var out []rating
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("parsing review response: %w", err)
	}
	return out, nil
}
