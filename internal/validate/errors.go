package validate

import (
	"fmt"
	"strings"
)

// Rule names reported in Violation.Rule.
const (
	RuleRequired      = "required"
	RuleEnum          = "enum"
	RuleFormat        = "format"
	RuleRange         = "range"
	RuleOrder         = "order"
	RuleContiguous    = "contiguous"
	RuleDuplicate     = "duplicate-level"
	RuleLevelMismatch = "level-mismatch"
	RuleDecode        = "decode"
)

// Violation is one broken rule.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// ValidationError lists every rule a candidate entry broke. No part of a rejected
// entry is ever admitted.
type ValidationError struct {
	ID         string      `json:"id,omitempty"`
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	subject := "entry"
	if e.ID != "" {
		subject = fmt.Sprintf("entry %s", e.ID)
	}
	return fmt.Sprintf("%s: %d violation(s): %s", subject, len(e.Violations), strings.Join(parts, "; "))
}

// Has reports whether any violation carries the given rule name.
func (e *ValidationError) Has(rule string) bool {
	for _, v := range e.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

// Fields returns the field of every violation in report order.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.Field)
	}
	return out
}

type collector struct {
	violations []Violation
}

func (c *collector) add(field, rule, format string, args ...any) {
	c.violations = append(c.violations, Violation{Field: field, Rule: rule, Message: fmt.Sprintf(format, args...)})
}
