package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// rawLevels is the normalised form of a "levels" value: level number to raw record.
type rawLevels struct {
	records map[int]map[string]any
	// fromList records whether the input was a list; the level number then came
	// from the record itself and cannot disagree with its key.
	fromList bool
}

func (r rawLevels) keys() []int {
	keys := make([]int, 0, len(r.records))
	for k := range r.records {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// normalizeLevels accepts the shapes decoded JSON and YAML produce for "levels":
// a mapping keyed by number or numeric string, or a list of level records.
func normalizeLevels(v any, c *collector) rawLevels {
	out := rawLevels{records: make(map[int]map[string]any)}

	if list, ok := v.([]any); ok {
		out.fromList = true
		for i, item := range list {
			field := fmt.Sprintf("levels[%d]", i)
			rec, ok := stringMap(item)
			if !ok {
				c.add(field, RuleDecode, "level record must be an object, got %T", item)
				continue
			}
			lv, present, ok := toInt(rec["level"])
			switch {
			case !present:
				c.add(field+".level", RuleRequired, "level number is required in list form")
				continue
			case !ok:
				c.add(field+".level", RuleFormat, "level must be an integer, got %v", rec["level"])
				continue
			}
			if _, dup := out.records[lv]; dup {
				c.add(field+".level", RuleDuplicate, "level %d is defined more than once", lv)
				continue
			}
			out.records[lv] = rec
		}
		return out
	}

	m, ok := anyKeyMap(v)
	if !ok {
		c.add("levels", RuleDecode, "levels must be a mapping or a list, got %T", v)
		return out
	}
	for key, item := range m {
		lv, _, ok := toInt(key)
		if !ok {
			c.add(fmt.Sprintf("levels[%v]", key), RuleFormat, "level key must be an integer")
			continue
		}
		rec, ok := stringMap(item)
		if !ok {
			c.add(fmt.Sprintf("levels[%d]", lv), RuleDecode, "level record must be an object, got %T", item)
			continue
		}
		if _, dup := out.records[lv]; dup {
			// "1" and "01" both parse to 1.
			c.add(fmt.Sprintf("levels[%d]", lv), RuleDuplicate, "level %d is defined more than once", lv)
			continue
		}
		out.records[lv] = rec
	}
	return out
}

// maxListedGaps caps how many missing level numbers a contiguity error names.
const maxListedGaps = 10

// checkLadderShape enforces the key set: exactly 1..N in strict mode, positive
// otherwise. keys must be sorted and unique.
func checkLadderShape(keys []int, allowSparse bool, c *collector) {
	var nonPositive []string
	positive := 0
	for _, k := range keys {
		if k < 1 {
			if len(nonPositive) < maxListedGaps {
				nonPositive = append(nonPositive, strconv.Itoa(k))
			}
			continue
		}
		positive++
	}
	if len(nonPositive) > 0 {
		c.add("levels", RuleRange, "level numbers must be >= 1, got %s", strings.Join(nonPositive, ", "))
	}
	if allowSparse || positive == 0 {
		return
	}

	// Keys are unique and sorted, so max-positive is the gap count without
	// walking the range. Only the first few gaps are named.
	top := keys[len(keys)-1]
	gaps := top - positive
	if gaps == 0 {
		return
	}
	have := make(map[int]bool, positive)
	for _, k := range keys {
		if k >= 1 {
			have[k] = true
		}
	}
	listed := make([]string, 0, maxListedGaps)
	for n := 1; n < top && len(listed) < maxListedGaps; n++ {
		if !have[n] {
			listed = append(listed, strconv.Itoa(n))
		}
	}
	if gaps > len(listed) {
		listed = append(listed, "...")
	}
	c.add("levels", RuleContiguous, "levels must be contiguous from 1; missing %d rung(s): %s",
		gaps, strings.Join(listed, ", "))
}

// anyKeyMap returns v as a map with interface keys, accepting the map shapes
// produced by encoding/json and yaml.v3.
func anyKeyMap(v any) (map[any]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		out := make(map[any]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	case map[any]any:
		return m, true
	case map[int]any:
		out := make(map[any]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	}
	return nil, false
}

// stringMap returns v as a map[string]any with every nested interface-keyed map
// rewritten to string keys. The input is never modified.
func stringMap(v any) (map[string]any, bool) {
	switch v.(type) {
	case map[string]any, map[any]any:
		m, _ := normalizeValue(v).(map[string]any)
		return m, true
	}
	return nil, false
}

// normalizeValue deep-copies v, turning map[any]any into map[string]any.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	}
	return v
}

// toInt converts the integer encodings JSON and YAML decoders produce.
// present is false for nil; ok is false when v is not an integral number.
func toInt(v any) (n int, present, ok bool) {
	switch t := v.(type) {
	case nil:
		return 0, false, false
	case int:
		return t, true, true
	case int64:
		return int(t), true, true
	case uint64:
		if t > math.MaxInt32 {
			return 0, true, false
		}
		return int(t), true, true
	case float64:
		// Past 2^53 a float no longer pins down a single integer.
		if t != math.Trunc(t) || math.Abs(t) > 1<<53 {
			return 0, true, false
		}
		return int(t), true, true
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, true, false
		}
		return int(i), true, true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, true, false
		}
		return i, true, true
	}
	return 0, true, false
}
