package comparator

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
)

var (
	dateLayouts     = []string{"2006-01-02", time.RFC3339Nano, time.RFC3339}
	timeLayouts     = []string{"15:04:05.999999999", "15:04:05", "15:04"}
	dateTimeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}
)

// Normalize checks value against the comparator and field kind and converts it to the
// canonical Go type data stores receive: string, int64, float64, bool, time.Time, or
// []any of those for In. A nil value is only accepted by Eq and Ne.
func Normalize(c Comparator, kind entitygraph.Kind, value any) (any, error) {
	if !c.Accepts(kind) {
		return nil, caperrors.Newf(caperrors.CodeInvalidComparator, "comparator '%s' does not apply to %s fields", c, kind)
	}

	if value == nil {
		if c == Eq || c == Ne {
			return nil, nil
		}
		return nil, caperrors.Newf(caperrors.CodeInvalidFilterValue, "comparator '%s' requires a value", c)
	}

	if c.TakesList() {
		items, ok := toSlice(value)
		if !ok {
			return nil, caperrors.Newf(caperrors.CodeInvalidFilterValue, "comparator '%s' requires a list, got %T", c, value)
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			v, err := normalizeScalar(kind, item)
			if err != nil {
				return nil, caperrors.Newf(caperrors.CodeInvalidFilterValue, "item %d: %s", i, err)
			}
			out = append(out, v)
		}
		return out, nil
	}

	v, err := normalizeScalar(kind, value)
	if err != nil {
		return nil, caperrors.New(caperrors.CodeInvalidFilterValue, err.Error())
	}
	return v, nil
}

func normalizeScalar(kind entitygraph.Kind, value any) (any, error) {
	switch kind {
	case entitygraph.KindText:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case entitygraph.KindID:
		switch v := value.(type) {
		case string:
			return v, nil
		default:
			if n, ok := toInt64(value); ok {
				return n, nil
			}
		}
	case entitygraph.KindInteger:
		if n, ok := toInt64(value); ok {
			return n, nil
		}
	case entitygraph.KindDecimal, entitygraph.KindFloat:
		if f, ok := toFloat64(value); ok {
			return f, nil
		}
	case entitygraph.KindBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case entitygraph.KindDate:
		return parseTime(value, dateLayouts)
	case entitygraph.KindTime:
		return parseTime(value, timeLayouts)
	case entitygraph.KindDateTime:
		return parseTime(value, dateTimeLayouts)
	}

	return nil, fmt.Errorf("expected %s value, got %T", kind, value)
}

func parseTime(value any, layouts []string) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range layouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("cannot parse '%s' as a time value", v)
	}
	return nil, fmt.Errorf("expected time value, got %T", value)
}

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
	case uint:
		return uintToInt(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uintToInt(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func uintToInt(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return int64(f), true
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	if arr, ok := v.([]any); ok {
		return arr, true
	}
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Slice && val.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, val.Len())
	for i := 0; i < val.Len(); i++ {
		out[i] = val.Index(i).Interface()
	}
	return out, true
}
