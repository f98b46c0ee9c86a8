package filter

import (
	"reflect"
	"sort"
	"strings"

	"github.com/Ramsey-B/thistle/pkg/capability"
	"github.com/Ramsey-B/thistle/pkg/comparator"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/Ramsey-B/thistle/pkg/query"
)

// CustomCondition is a condition on a custom field, applied by its resolver
// rather than emitted as a predicate.
type CustomCondition struct {
	Field      string
	Comparator comparator.Comparator
	Value      any
	resolver   capability.Resolver
}

// Compile validates node against the shape and returns the native predicate and
// the custom conditions, both in shape order.
func (s *Shape) Compile(node map[string]any) (query.Predicate, []CustomCondition, error) {
	return s.compile(node, nil)
}

func (s *Shape) compile(node map[string]any, path []string) (query.Predicate, []CustomCondition, error) {
	var (
		pred   query.Predicate
		custom []CustomCondition
	)

	for _, key := range sortedKeys(node) {
		_, isField := s.fieldIndex[key]
		_, isRelation := s.relationIndex[key]
		if !isField && !isRelation {
			return pred, nil, caperrors.New(caperrors.CodeUnknownFilterField, "field is not filterable").
				AddEntity(s.Entity).AddPath(joinPath(path, key))
		}
	}

	for _, field := range s.fields {
		raw, present := node[field.Name]
		if !present || raw == nil {
			continue
		}
		fieldPath := joinPath(path, field.Name)

		conditions, ok := asNode(raw)
		if !ok {
			return pred, nil, caperrors.New(caperrors.CodeInvalidFilterValue, "expected an object of comparators").
				AddEntity(s.Entity).AddPath(fieldPath)
		}

		for _, op := range sortedKeys(conditions) {
			c, known := comparator.Parse(op)
			if !known || !field.Accepts(c) {
				return pred, nil, caperrors.Newf(caperrors.CodeInvalidComparator, "comparator '%s' is not accepted by %s field", op, field.Kind).
					AddEntity(s.Entity).AddPath(fieldPath)
			}

			value, err := comparator.Normalize(c, field.Kind, conditions[op])
			if err != nil {
				if capErr, ok := caperrors.As(err); ok {
					return pred, nil, capErr.AddEntity(s.Entity).AddPath(fieldPath)
				}
				return pred, nil, err
			}

			if field.IsCustom() {
				custom = append(custom, CustomCondition{Field: field.Name, Comparator: c, Value: value, resolver: field.resolver})
				continue
			}
			pred.Conditions = append(pred.Conditions, query.Condition{Field: field.Name, Comparator: c, Value: value})
		}
	}

	for _, rel := range s.relations {
		raw, present := node[rel.Name]
		if !present || raw == nil {
			continue
		}
		relPath := append(append([]string(nil), path...), rel.Name)

		nested, ok := asNode(raw)
		if !ok {
			return pred, nil, caperrors.New(caperrors.CodeInvalidFilterValue, "expected a nested filter object").
				AddEntity(s.Entity).AddPath(strings.Join(relPath, "."))
		}

		where, _, err := rel.Shape.compile(nested, relPath)
		if err != nil {
			return pred, nil, err
		}
		if where.IsEmpty() {
			continue
		}
		pred.Relations = append(pred.Relations, query.RelationPredicate{
			Relation:    rel.Name,
			Target:      rel.Target,
			Cardinality: rel.Cardinality,
			Where:       where,
		})
	}

	return pred, custom, nil
}

// Apply compiles node and returns base narrowed by it. Native conditions are
// AND-ed into the predicate; each custom condition is then handed to its
// resolver with a copy of the query built so far.
func (s *Shape) Apply(base query.Query, node map[string]any, args capability.Arguments) (query.Query, error) {
	pred, custom, err := s.Compile(node)
	if err != nil {
		return base, err
	}

	q := base.Clone()
	q.Where = q.Where.And(pred)

	for _, cc := range custom {
		next, err := cc.resolver(q.Clone(), args, capability.ResolverContext{
			Entity:     s.Entity,
			Field:      cc.Field,
			Comparator: cc.Comparator,
			Value:      cc.Value,
		})
		if err != nil {
			return base, err
		}
		q = next
	}
	return q, nil
}

func joinPath(path []string, name string) string {
	if len(path) == 0 {
		return name
	}
	return strings.Join(path, ".") + "." + name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// asNode accepts any string-keyed map.
func asNode(v any) (map[string]any, bool) {
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
