package permit

import (
	"strings"
	"time"
)

// Match evaluates the condition against request attributes. A missing
// attribute fails the condition regardless of Required; Required only
// controls whether the enclosing permission match may ignore the failure.
func (c *Condition) Match(attrs map[string]any) bool {
	if c.Attribute == "" {
		return false
	}
	val, ok := attrs[c.Attribute]
	if !ok {
		return false
	}

	switch c.Operator {
	case OpEq:
		return len(c.Values) > 0 && valuesEqual(val, c.Values[0])
	case OpNe:
		return len(c.Values) > 0 && !valuesEqual(val, c.Values[0])
	case OpGt:
		cmp, ok := compareOrdered(val, first(c.Values))
		return ok && cmp > 0
	case OpGte:
		cmp, ok := compareOrdered(val, first(c.Values))
		return ok && cmp >= 0
	case OpLt:
		cmp, ok := compareOrdered(val, first(c.Values))
		return ok && cmp < 0
	case OpLte:
		cmp, ok := compareOrdered(val, first(c.Values))
		return ok && cmp <= 0
	case OpIn:
		for _, v := range c.Values {
			if valuesEqual(val, v) {
				return true
			}
		}
		return false
	case OpNotIn:
		for _, v := range c.Values {
			if valuesEqual(val, v) {
				return false
			}
		}
		return true
	case OpContains:
		return containsValue(val, first(c.Values))
	}
	return false
}

// matchConditions applies combine logic over a condition list. An empty
// list matches. Empty logic defaults to AND.
func matchConditions(conds []Condition, attrs map[string]any, logic RuleLogic) bool {
	if len(conds) == 0 {
		return true
	}
	if logic == LogicOr {
		for i := range conds {
			if conds[i].Match(attrs) {
				return true
			}
		}
		return false
	}
	for i := range conds {
		if !conds[i].Match(attrs) {
			return false
		}
	}
	return true
}

// requiredConditionsHold implements permission-level condition semantics:
// every Required condition must hold; a failing non-required condition
// does not block the match.
func requiredConditionsHold(conds []Condition, attrs map[string]any) bool {
	for i := range conds {
		if conds[i].Required && !conds[i].Match(attrs) {
			return false
		}
	}
	return true
}

func first(vals []any) any {
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}

func valuesEqual(a, b any) bool {
	if cmp, ok := compareOrdered(a, b); ok {
		return cmp == 0
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

// compareOrdered compares two values of compatible ordered types. Numbers
// are coerced to float64 so YAML/JSON-decoded ints and floats compare.
func compareOrdered(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := toTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bv):
			return -1, true
		case av.After(bv):
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		return ok && strings.Contains(h, n)
	case []string:
		for _, item := range h {
			if valuesEqual(item, needle) {
				return true
			}
		}
	case []any:
		for _, item := range h {
			if valuesEqual(item, needle) {
				return true
			}
		}
	}
	return false
}
