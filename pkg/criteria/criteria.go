// Package criteria evaluates compiled predicates and sort keys against rows held
// in memory. Related rows are nested under their relation name: a map for a
// to-one relation and a slice of maps for a to-many relation.
package criteria

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/Ramsey-B/thistle/pkg/comparator"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/query"
)

// Matches returns true only if ALL conditions and relation predicates hold (AND logic).
func Matches(row query.Row, p query.Predicate) bool {
	for _, cond := range p.Conditions {
		value, exists := row[cond.Field]
		if !evaluateCondition(value, exists, cond) {
			return false
		}
	}

	for _, rel := range p.Relations {
		if !matchesRelation(row[rel.Relation], rel) {
			return false
		}
	}
	return true
}

// Filter returns the rows matching p, preserving order.
func Filter(rows []query.Row, p query.Predicate) []query.Row {
	out := make([]query.Row, 0, len(rows))
	for _, row := range rows {
		if Matches(row, p) {
			out = append(out, row)
		}
	}
	return out
}

func matchesRelation(value any, rel query.RelationPredicate) bool {
	if rel.Cardinality == entitygraph.ToOne {
		related, ok := toRow(value)
		if !ok {
			return false
		}
		return Matches(related, rel.Where)
	}

	for _, item := range relatedRows(value) {
		if Matches(item, rel.Where) {
			return true
		}
	}
	return false
}

func relatedRows(value any) []query.Row {
	switch v := value.(type) {
	case []query.Row:
		return v
	case []any:
		out := make([]query.Row, 0, len(v))
		for _, item := range v {
			if row, ok := toRow(item); ok {
				out = append(out, row)
			}
		}
		return out
	}
	return nil
}

func toRow(v any) (query.Row, bool) {
	row, ok := v.(map[string]any)
	return row, ok && row != nil
}

// evaluateCondition evaluates a single condition against a field value
func evaluateCondition(value any, exists bool, cond query.Condition) bool {
	if !exists || value == nil {
		switch cond.Comparator {
		case comparator.Eq:
			return cond.Value == nil
		case comparator.Ne:
			return cond.Value != nil
		default:
			return false
		}
	}

	switch cond.Comparator {
	case comparator.Eq:
		return valuesEqual(value, cond.Value)
	case comparator.Ne:
		return !valuesEqual(value, cond.Value)
	case comparator.Contains:
		return strings.Contains(toString(value), toString(cond.Value))
	case comparator.StartsWith:
		return strings.HasPrefix(toString(value), toString(cond.Value))
	case comparator.EndsWith:
		return strings.HasSuffix(toString(value), toString(cond.Value))
	case comparator.In:
		options, ok := cond.Value.([]any)
		if !ok {
			return false
		}
		for _, opt := range options {
			if valuesEqual(value, opt) {
				return true
			}
		}
		return false
	case comparator.Gt, comparator.Gte, comparator.Lt, comparator.Lte:
		cmp, ok := compare(value, cond.Value)
		if !ok {
			return false
		}
		switch cond.Comparator {
		case comparator.Gt:
			return cmp > 0
		case comparator.Gte:
			return cmp >= 0
		case comparator.Lt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	default:
		return false
	}
}

// valuesEqual compares two values with numeric and time coercion
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if cmp, ok := compare(a, b); ok {
		return cmp == 0
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compare orders numbers, times and strings. ok is false when the values are not comparable.
func compare(a, b any) (int, bool) {
	if ai, aok := toInt64(a); aok {
		if bi, bok := toInt64(b); bok {
			return cmpInt(ai, bi), true
		}
	}

	if af, aok := toFloat64(a); aok {
		bf, bok := toFloat64(b)
		if !bok {
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

	if at, aok := toTime(a); aok {
		bt, bok := toTime(b)
		if !bok {
			return 0, false
		}
		return at.Compare(bt), true
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ab == bb:
				return 0, true
			case !ab:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// toInt64 reads signed and unsigned integers that fit in an int64.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

// toFloat64 converts numeric kinds to float64
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int16:
		return float64(n), true
	case int8:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// toTime accepts time values and strings in the layouts the comparator package emits.
func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02", "15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// Sort orders rows in place by keys; earlier keys are primary. Missing values sort first
// in ascending order.
func Sort(rows []query.Row, keys []query.SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			a, aok := lookup(rows[i], key.Path)
			b, bok := lookup(rows[j], key.Path)
			cmp := compareForSort(a, aok, b, bok)
			if cmp == 0 {
				continue
			}
			if key.Direction == query.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareForSort(a any, aok bool, b any, bok bool) int {
	aok = aok && a != nil
	bok = bok && b != nil
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	if cmp, ok := compare(a, b); ok {
		return cmp
	}
	return strings.Compare(toString(a), toString(b))
}

// lookup follows a path of to-one relations to a field value.
func lookup(row query.Row, path []string) (any, bool) {
	current := row
	for i, part := range path {
		value, exists := current[part]
		if !exists {
			return nil, false
		}
		if i == len(path)-1 {
			return value, true
		}
		next, ok := toRow(value)
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}
