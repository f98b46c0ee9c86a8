package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/comparator"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/entitygraph/entitygraphtest"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	cypher  string
	params  map[string]any
	records []map[string]any
	err     error
}

func (f *fakeReader) ReadRecords(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.cypher = cypher
	f.params = params
	return f.records, f.err
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestCompiler_CountWithNestedRelations(t *testing.T) {
	q := query.New("Order")
	q.Where = query.Predicate{
		Conditions: []query.Condition{{Field: "status", Comparator: comparator.Eq, Value: "open"}},
		Relations: []query.RelationPredicate{{
			Relation:    "customer",
			Target:      "Customer",
			Cardinality: entitygraph.ToOne,
			Where: query.Predicate{Relations: []query.RelationPredicate{{
				Relation:    "address",
				Target:      "Address",
				Cardinality: entitygraph.ToOne,
				Where:       query.Predicate{Conditions: []query.Condition{{Field: "city", Comparator: comparator.Eq, Value: "Denver"}}},
			}}},
		}},
	}

	cypher, params, err := newCompiler(entitygraphtest.Graph()).Count(q)
	require.NoError(t, err)

	assert.Equal(t,
		"MATCH (n:`Order`) WHERE n.`status` = $p0 AND "+
			"EXISTS { MATCH (n)-[:`CUSTOMER`]->(m1:`Customer`) WHERE "+
			"EXISTS { MATCH (m1)-[:`ADDRESS`]->(m2:`Address`) WHERE m2.`city` = $p1 } } "+
			"RETURN count(n) AS total",
		cypher)
	assert.Equal(t, map[string]any{"p0": "open", "p1": "Denver"}, params)
}

func TestCompiler_Comparators(t *testing.T) {
	tests := []struct {
		name     string
		cond     query.Condition
		fragment string
		params   map[string]any
	}{
		{"eq nil", query.Condition{Field: "status", Comparator: comparator.Eq}, "n.`status` IS NULL", map[string]any{}},
		{"ne nil", query.Condition{Field: "status", Comparator: comparator.Ne}, "n.`status` IS NOT NULL", map[string]any{}},
		{"ne", query.Condition{Field: "status", Comparator: comparator.Ne, Value: "open"}, "(n.`status` IS NULL OR n.`status` <> $p0)", map[string]any{"p0": "open"}},
		{"gt", query.Condition{Field: "total", Comparator: comparator.Gt, Value: 10.0}, "n.`total` > $p0", map[string]any{"p0": 10.0}},
		{"lte", query.Condition{Field: "quantity", Comparator: comparator.Lte, Value: int64(3)}, "n.`quantity` <= $p0", map[string]any{"p0": int64(3)}},
		{"contains", query.Condition{Field: "status", Comparator: comparator.Contains, Value: "pe"}, "n.`status` CONTAINS $p0", map[string]any{"p0": "pe"}},
		{"startswith", query.Condition{Field: "status", Comparator: comparator.StartsWith, Value: "op"}, "n.`status` STARTS WITH $p0", map[string]any{"p0": "op"}},
		{"endswith", query.Condition{Field: "status", Comparator: comparator.EndsWith, Value: "en"}, "n.`status` ENDS WITH $p0", map[string]any{"p0": "en"}},
		{"in", query.Condition{Field: "status", Comparator: comparator.In, Value: []any{"a", "b"}}, "n.`status` IN $p0", map[string]any{"p0": []any{"a", "b"}}},
		{"property is field name", query.Condition{Field: "placedAt", Comparator: comparator.Eq, Value: "2024-01-01"}, "n.`placedAt` = $p0", map[string]any{"p0": "2024-01-01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := query.New("Order")
			q.Where = query.Predicate{Conditions: []query.Condition{tt.cond}}

			cypher, params, err := newCompiler(entitygraphtest.Graph()).Count(q)
			require.NoError(t, err)
			assert.Contains(t, cypher, tt.fragment)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCompiler_FetchSortAndWindow(t *testing.T) {
	limit := 10
	q := query.New("Order")
	q.Sort = []query.SortKey{
		{Path: []string{"customer", "address", "city"}, Direction: query.Asc},
		{Path: []string{"customer", "name"}, Direction: query.Desc},
		{Path: []string{"total"}, Direction: query.Desc},
	}
	q.Window = &query.Window{Limit: &limit, Offset: 20}

	cypher, params, err := newCompiler(entitygraphtest.Graph()).Fetch(q)
	require.NoError(t, err)

	assert.Equal(t,
		"MATCH (n:`Order`) "+
			"OPTIONAL MATCH (n)-[:`CUSTOMER`]->(s1:`Customer`) "+
			"OPTIONAL MATCH (s1)-[:`ADDRESS`]->(s2:`Address`) "+
			"WITH n, s2.`city` AS o0, s1.`name` AS o1, n.`total` AS o2 "+
			"ORDER BY o0 IS NULL DESC, o0 ASC, o1 IS NULL ASC, o1 DESC, o2 IS NULL ASC, o2 DESC "+
			"SKIP $p0 LIMIT $p1 RETURN properties(n) AS row",
		cypher)
	assert.Equal(t, map[string]any{"p0": int64(20), "p1": int64(10)}, params)
}

func TestCompiler_MappedLabels(t *testing.T) {
	defs := entitygraphtest.Definitions()
	for i := range defs {
		switch defs[i].Name {
		case "Order":
			defs[i].Label = "PurchaseOrder"
		case "Customer":
			defs[i].Label = "Account"
		}
	}
	g, err := entitygraph.Build(defs)
	require.NoError(t, err)

	q := query.New("Order")
	q.Where = query.Predicate{Relations: []query.RelationPredicate{{
		Relation:    "customer",
		Target:      "Customer",
		Cardinality: entitygraph.ToOne,
		Where:       query.Predicate{Conditions: []query.Condition{{Field: "name", Comparator: comparator.Eq, Value: "Ada"}}},
	}}}

	cypher, _, err := newCompiler(g).Count(q)
	require.NoError(t, err)
	assert.Equal(t,
		"MATCH (n:`PurchaseOrder`) WHERE "+
			"EXISTS { MATCH (n)-[:`CUSTOMER`]->(m1:`Account`) WHERE m1.`name` = $p0 } "+
			"RETURN count(n) AS total",
		cypher)
}

func TestCompiler_Errors(t *testing.T) {
	c := newCompiler(entitygraphtest.Graph())

	_, _, err := c.Count(query.New("Invoice"))
	assert.Error(t, err)

	q := query.New("Order")
	q.Sort = []query.SortKey{{Path: []string{"items", "sku"}, Direction: query.Asc}}
	_, _, err = c.Fetch(q)
	assert.Error(t, err)

	q = query.New("Order")
	q.Where = query.Predicate{Conditions: []query.Condition{{Field: "status", Comparator: comparator.In, Value: "open"}}}
	_, _, err = c.Count(q)
	assert.Error(t, err)
}

func TestStore_Count(t *testing.T) {
	tests := []struct {
		name    string
		records []map[string]any
		err     error
		want    int
		wantErr bool
	}{
		{name: "int64 total", records: []map[string]any{{"total": int64(7)}}, want: 7},
		{name: "no records", records: nil, want: 0},
		{name: "reader error", err: errors.New("connection refused"), wantErr: true},
		{name: "unexpected type", records: []map[string]any{{"total": "7"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeReader{records: tt.records, err: tt.err}
			store := NewStore(reader, entitygraphtest.Graph(), testLogger())

			got, err := store.Count(context.Background(), query.New("Order"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, reader.cypher, "count(n)")
		})
	}
}

func TestStore_FetchNormalizesTemporalValues(t *testing.T) {
	placed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	reader := &fakeReader{records: []map[string]any{
		{"row": map[string]any{"id": "o1", "status": "open", "placedAt": dbtype.Date(placed)}},
	}}
	store := NewStore(reader, entitygraphtest.Graph(), testLogger())

	rows, err := store.Fetch(context.Background(), query.New("Order"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "open", rows[0]["status"])
	got, ok := rows[0]["placedAt"].(time.Time)
	require.True(t, ok)
	assert.True(t, placed.Equal(got))
}

func TestStore_FetchRejectsUnexpectedRow(t *testing.T) {
	reader := &fakeReader{records: []map[string]any{{"row": "nope"}}}
	store := NewStore(reader, entitygraphtest.Graph(), testLogger())

	_, err := store.Fetch(context.Background(), query.New("Order"))
	assert.Error(t, err)
}
