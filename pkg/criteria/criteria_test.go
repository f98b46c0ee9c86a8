package criteria

import (
	"testing"
	"time"

	"github.com/Ramsey-B/thistle/pkg/comparator"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/stretchr/testify/assert"
)

func order(id string, status string, total float64, city string, skus ...string) query.Row {
	items := []any{}
	for _, sku := range skus {
		items = append(items, map[string]any{"sku": sku})
	}
	return query.Row{
		"id":     id,
		"status": status,
		"total":  total,
		"customer": map[string]any{
			"name":    "c-" + id,
			"address": map[string]any{"city": city},
		},
		"items": items,
	}
}

func TestMatches(t *testing.T) {
	row := order("1", "open", 42.5, "Denver", "A-1", "B-2")

	tests := []struct {
		name     string
		where    query.Predicate
		expected bool
	}{
		{
			name:     "eq",
			where:    query.Predicate{Conditions: []query.Condition{{Field: "status", Comparator: comparator.Eq, Value: "open"}}},
			expected: true,
		},
		{
			name: "range both bounds",
			where: query.Predicate{Conditions: []query.Condition{
				{Field: "total", Comparator: comparator.Gt, Value: float64(40)},
				{Field: "total", Comparator: comparator.Lte, Value: 42.5},
			}},
			expected: true,
		},
		{
			name: "range fails one bound",
			where: query.Predicate{Conditions: []query.Condition{
				{Field: "total", Comparator: comparator.Gt, Value: float64(40)},
				{Field: "total", Comparator: comparator.Lt, Value: float64(42)},
			}},
			expected: false,
		},
		{
			name:     "in",
			where:    query.Predicate{Conditions: []query.Condition{{Field: "status", Comparator: comparator.In, Value: []any{"closed", "open"}}}},
			expected: true,
		},
		{
			name:     "startswith",
			where:    query.Predicate{Conditions: []query.Condition{{Field: "status", Comparator: comparator.StartsWith, Value: "op"}}},
			expected: true,
		},
		{
			name: "two level to-one",
			where: query.Predicate{Relations: []query.RelationPredicate{{
				Relation:    "customer",
				Cardinality: entitygraph.ToOne,
				Where: query.Predicate{Relations: []query.RelationPredicate{{
					Relation:    "address",
					Cardinality: entitygraph.ToOne,
					Where:       query.Predicate{Conditions: []query.Condition{{Field: "city", Comparator: comparator.Eq, Value: "Denver"}}},
				}}},
			}}},
			expected: true,
		},
		{
			name: "to-many any match",
			where: query.Predicate{Relations: []query.RelationPredicate{{
				Relation:    "items",
				Cardinality: entitygraph.ToMany,
				Where:       query.Predicate{Conditions: []query.Condition{{Field: "sku", Comparator: comparator.EndsWith, Value: "-2"}}},
			}}},
			expected: true,
		},
		{
			name: "to-many no match",
			where: query.Predicate{Relations: []query.RelationPredicate{{
				Relation:    "items",
				Cardinality: entitygraph.ToMany,
				Where:       query.Predicate{Conditions: []query.Condition{{Field: "sku", Comparator: comparator.Eq, Value: "C-3"}}},
			}}},
			expected: false,
		},
		{
			name:     "eq nil on missing field",
			where:    query.Predicate{Conditions: []query.Condition{{Field: "deletedAt", Comparator: comparator.Eq, Value: nil}}},
			expected: true,
		},
		{
			name:     "empty predicate",
			where:    query.Predicate{},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Matches(row, tt.where))
		})
	}
}

func TestMatches_Times(t *testing.T) {
	row := query.Row{"placedAt": "2024-03-10"}
	cond := query.Condition{Field: "placedAt", Comparator: comparator.Gte, Value: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	assert.True(t, Matches(row, query.Predicate{Conditions: []query.Condition{cond}}))
}

func TestSort(t *testing.T) {
	rows := []query.Row{
		order("1", "open", 10, "Denver"),
		order("2", "closed", 30, "Austin"),
		order("3", "open", 20, "Austin"),
		{"id": "4", "status": "open", "total": float64(5)},
	}

	Sort(rows, []query.SortKey{
		{Path: []string{"status"}, Direction: query.Desc},
		{Path: []string{"customer", "address", "city"}, Direction: query.Asc},
	})

	ids := []string{}
	for _, r := range rows {
		ids = append(ids, r["id"].(string))
	}
	assert.Equal(t, []string{"4", "3", "1", "2"}, ids)
}

func TestMatches_NarrowIntegers(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"int8", int8(7)},
		{"int16", int16(7)},
		{"uint8", uint8(7)},
		{"uint16", uint16(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := query.Row{"quantity": tt.value}
			assert.True(t, Matches(row, query.Predicate{Conditions: []query.Condition{{Field: "quantity", Comparator: comparator.Eq, Value: int64(7)}}}))
			assert.True(t, Matches(row, query.Predicate{Conditions: []query.Condition{{Field: "quantity", Comparator: comparator.Gt, Value: int64(6)}}}))
			assert.False(t, Matches(row, query.Predicate{Conditions: []query.Condition{{Field: "quantity", Comparator: comparator.Lt, Value: int64(7)}}}))
		})
	}
}

func TestMatches_LargeIntegersStayExact(t *testing.T) {
	row := query.Row{"quantity": int64(9007199254740993)}

	assert.True(t, Matches(row, query.Predicate{Conditions: []query.Condition{{Field: "quantity", Comparator: comparator.Eq, Value: int64(9007199254740993)}}}))
	assert.False(t, Matches(row, query.Predicate{Conditions: []query.Condition{{Field: "quantity", Comparator: comparator.Eq, Value: int64(9007199254740992)}}}))
	assert.True(t, Matches(row, query.Predicate{Conditions: []query.Condition{{Field: "quantity", Comparator: comparator.Gt, Value: int64(9007199254740992)}}}))
}
