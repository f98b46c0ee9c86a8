package sorting

import (
	"fmt"
	"reflect"
	"strings"

	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/Ramsey-B/thistle/pkg/query"
)

// ParseTerms reads sort input in its nested-object form: an ordered list whose
// items each name one path, e.g.
//
//	[{"status": "DESC"}, {"customer": {"address": {"city": "ASC"}}}]
//
// Items may also use the dotted form {"field": "customer.name", "direction": "DESC"};
// direction defaults to ASC. A single object is accepted as a one-item list.
func ParseTerms(input any) ([]Term, error) {
	if input == nil {
		return nil, nil
	}

	items, ok := toList(input)
	if !ok {
		items = []any{input}
	}

	terms := make([]Term, 0, len(items))
	for i, item := range items {
		term, ok, err := parseDotted(item)
		if !ok && err == nil {
			term, err = parseTerm(item, nil)
		}
		if err != nil {
			return nil, caperrors.Newf(caperrors.CodeInvalidSortPath, "sort item %d: %s", i, err)
		}
		terms = append(terms, term)
	}
	return terms, nil
}

// parseDotted reports false when item is not in the dotted form. A lone "field"
// key holding a direction is the nested form for a field named field.
func parseDotted(item any) (Term, bool, error) {
	node, ok := toObject(item)
	if !ok {
		return Term{}, false, nil
	}
	raw, hasField := node["field"]
	rawDirection, hasDirection := node["direction"]
	if !hasField || len(node) > 2 || (len(node) == 2 && !hasDirection) {
		return Term{}, false, nil
	}
	field, isString := raw.(string)
	if !hasDirection {
		if _, isDirection := query.ParseDirection(field); !isString || isDirection {
			return Term{}, false, nil
		}
	}
	if !isString || field == "" {
		return Term{}, true, fmt.Errorf("field must be a dotted path, got %v", raw)
	}

	direction := query.Asc
	if hasDirection {
		d, isString := rawDirection.(string)
		parsed, ok := query.ParseDirection(d)
		if !isString || !ok {
			return Term{}, true, fmt.Errorf("invalid direction '%v' for '%s'", rawDirection, field)
		}
		direction = parsed
	}

	path := strings.Split(field, ".")
	for _, segment := range path {
		if segment == "" {
			return Term{}, true, fmt.Errorf("invalid field path '%s'", field)
		}
	}
	return Term{Path: path, Direction: direction}, true, nil
}

func parseTerm(v any, path []string) (Term, error) {
	if s, ok := v.(string); ok {
		if len(path) == 0 {
			return Term{}, fmt.Errorf("expected an object, got '%s'", s)
		}
		direction, ok := query.ParseDirection(s)
		if !ok {
			return Term{}, fmt.Errorf("invalid direction '%s' for '%s'", s, strings.Join(path, "."))
		}
		return Term{Path: path, Direction: direction}, nil
	}

	node, ok := toObject(v)
	if !ok {
		return Term{}, fmt.Errorf("expected an object or direction, got %T", v)
	}
	if len(node) != 1 {
		return Term{}, fmt.Errorf("expected exactly one key, got %d", len(node))
	}
	for key, next := range node {
		return parseTerm(next, append(append([]string(nil), path...), key))
	}
	return Term{}, nil
}

func toList(v any) ([]any, bool) {
	if arr, ok := v.([]any); ok {
		return arr, true
	}
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, val.Len())
	for i := 0; i < val.Len(); i++ {
		out[i] = val.Index(i).Interface()
	}
	return out, true
}

func toObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Map || val.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, val.Len())
	iter := val.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
