// Package validate decides whether a loosely-typed candidate record may enter the
// corpus. It is a pure function over its input: it never touches a store and
// reports every broken rule at once.
package validate

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/ajitpratap0/openclaw-ladder/internal/models"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._~-]*$`)

var timeType = reflect.TypeOf(time.Time{})

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

// Options tunes admission.
type Options struct {
	// AllowSparseLevels accepts ladders such as {2, 4} whose keys are positive and
	// unique but not exactly 1..N.
	AllowSparseLevels bool
}

// Validator turns raw records into typed entries.
type Validator struct {
	opts Options
}

// New creates a validator with the given options.
func New(opts Options) *Validator {
	return &Validator{opts: opts}
}

// Validate runs a strict validator over raw.
func Validate(raw map[string]any) (*models.Entry, error) {
	return New(Options{}).Validate(raw)
}

// Validate decodes raw into an entry and checks every admission rule. On failure
// it returns a *ValidationError listing all violations and no entry.
// Missing status defaults to draft and missing version to 1.
func (v *Validator) Validate(raw map[string]any) (*models.Entry, error) {
	c := &collector{}

	rec, _ := normalizeValue(withoutKey(raw, "levels")).(map[string]any)

	var e models.Entry
	if err := decode(rec, &e); err != nil {
		c.add("", RuleDecode, "%v", err)
	}

	switch {
	case strings.TrimSpace(e.ID) == "":
		c.add("id", RuleRequired, "id is required")
	case !idPattern.MatchString(e.ID):
		c.add("id", RuleFormat, "id %q must be URL-safe (letters, digits, '.', '_', '~', '-')", e.ID)
	}

	switch {
	case e.Type == "":
		c.add("type", RuleRequired, "type is required")
	case !e.Type.IsValid():
		c.add("type", RuleEnum, "type %q must be one of %v", e.Type, models.ValidEntryTypes)
	}

	if strings.TrimSpace(e.Name) == "" {
		c.add("name", RuleRequired, "name is required")
	}

	if e.Status == "" {
		e.Status = models.StatusDraft
	} else if !e.Status.IsValid() {
		c.add("status", RuleEnum, "status %q must be one of %v", e.Status, models.ValidStatuses)
	}

	if _, ok := rec["version"]; !ok {
		e.Version = 1
	} else if e.Version < 1 {
		c.add("version", RuleRange, "version must be >= 1, got %d", e.Version)
	}

	if !e.CreatedAt.IsZero() && !e.UpdatedAt.IsZero() && e.UpdatedAt.Before(e.CreatedAt) {
		c.add("updatedAt", RuleOrder, "updatedAt %s is before createdAt %s",
			e.UpdatedAt.Format(time.RFC3339), e.CreatedAt.Format(time.RFC3339))
	}

	e.Levels = v.levels(raw["levels"], c)

	for i, ref := range e.CrossReferences {
		field := fmt.Sprintf("crossReferences[%d]", i)
		if strings.TrimSpace(ref.TargetID) == "" {
			c.add(field+".targetId", RuleRequired, "targetId is required")
		}
		if !ref.Relationship.IsValid() {
			c.add(field+".relationship", RuleEnum, "relationship %q must be one of %v", ref.Relationship, models.ValidRelationships)
		}
	}

	for i, cit := range e.Citations {
		field := fmt.Sprintf("citations[%d]", i)
		if strings.TrimSpace(cit.ID) == "" {
			c.add(field+".id", RuleRequired, "citation id is required")
		}
		if strings.TrimSpace(cit.Title) == "" {
			c.add(field+".title", RuleRequired, "citation title is required")
		}
	}

	for i, m := range e.Media {
		field := fmt.Sprintf("media[%d]", i)
		if strings.TrimSpace(m.ID) == "" {
			c.add(field+".id", RuleRequired, "media id is required")
		}
		if strings.TrimSpace(m.Filename) == "" {
			c.add(field+".filename", RuleRequired, "media filename is required")
		}
	}

	if len(c.violations) > 0 {
		return nil, &ValidationError{ID: e.ID, Violations: c.violations}
	}
	if err := e.Check(); err != nil {
		return nil, &ValidationError{ID: e.ID, Violations: []Violation{{Rule: RuleFormat, Message: err.Error()}}}
	}
	return &e, nil
}

func (v *Validator) levels(raw any, c *collector) map[int]models.LevelContent {
	if raw == nil {
		c.add("levels", RuleRequired, "levels is required")
		return nil
	}
	rl := normalizeLevels(raw, c)
	keys := rl.keys()
	if len(keys) == 0 {
		c.add("levels", RuleRequired, "at least one level is required")
		return nil
	}
	checkLadderShape(keys, v.opts.AllowSparseLevels, c)

	out := make(map[int]models.LevelContent, len(keys))
	for _, k := range keys {
		field := fmt.Sprintf("levels[%d]", k)
		r := rl.records[k]

		if !rl.fromList {
			declared, present, ok := toInt(r["level"])
			switch {
			case !present:
				c.add(field+".level", RuleRequired, "level is required and must equal its key %d", k)
			case !ok:
				c.add(field+".level", RuleFormat, "level must be an integer, got %v", r["level"])
			case declared != k:
				c.add(field+".level", RuleLevelMismatch, "level %d does not match its key %d", declared, k)
			}
		}

		var lc models.LevelContent
		if err := decode(r, &lc); err != nil {
			c.add(field, RuleDecode, "%v", err)
		}
		checkLevel(field, lc, c)
		out[k] = lc
	}
	return out
}

func checkLevel(field string, lc models.LevelContent, c *collector) {
	if strings.TrimSpace(lc.Summary) == "" {
		c.add(field+".summary", RuleRequired, "summary is required")
	}
	if strings.TrimSpace(lc.Explanation) == "" {
		c.add(field+".explanation", RuleRequired, "explanation is required")
	}
	for i, kt := range lc.KeyTerms {
		kf := fmt.Sprintf("%s.keyTerms[%d]", field, i)
		if strings.TrimSpace(kt.Term) == "" {
			c.add(kf+".term", RuleRequired, "term is required")
		}
		if strings.TrimSpace(kt.Definition) == "" {
			c.add(kf+".definition", RuleRequired, "definition is required")
		}
	}
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(stringToTimeHook),
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// stringToTimeHook parses RFC 3339 timestamps and bare dates. Every time is
// normalised to UTC, including ones a YAML decoder already produced.
func stringToTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	if t, ok := data.(time.Time); ok {
		return t.UTC(), nil
	}
	if from.Kind() != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(reflect.ValueOf(data).String())
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", s)
}

func withoutKey(m map[string]any, key string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}
