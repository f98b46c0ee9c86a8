package filter

import (
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/capability"
	"github.com/Ramsey-B/thistle/pkg/comparator"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/entitygraph/entitygraphtest"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(cfg capability.Config, resolvers *capability.ResolverRegistry) *Builder {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewBuilder(entitygraphtest.Graph(), cfg, resolvers, logger)
}

func TestBuild_ComparatorsPerKind(t *testing.T) {
	shape, err := newBuilder(capability.NewConfig(), nil).Build("Order", "list")
	require.NoError(t, err)

	tests := []struct {
		field    string
		expected []comparator.Comparator
	}{
		{"id", []comparator.Comparator{comparator.Eq, comparator.Ne, comparator.Contains, comparator.In, comparator.StartsWith, comparator.EndsWith}},
		{"status", []comparator.Comparator{comparator.Eq, comparator.Ne, comparator.Contains, comparator.In, comparator.StartsWith, comparator.EndsWith}},
		{"total", []comparator.Comparator{comparator.Eq, comparator.Ne, comparator.Gt, comparator.Lt, comparator.Gte, comparator.Lte, comparator.In}},
		{"quantity", []comparator.Comparator{comparator.Eq, comparator.Ne, comparator.Gt, comparator.Lt, comparator.Gte, comparator.Lte, comparator.In}},
		{"placedAt", []comparator.Comparator{comparator.Eq, comparator.Ne, comparator.Gt, comparator.Lt, comparator.Gte, comparator.Lte, comparator.In}},
		{"paid", []comparator.Comparator{comparator.Eq, comparator.Ne}},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			field, ok := shape.Field(tt.field)
			require.True(t, ok)
			assert.Equal(t, tt.expected, field.Comparators)
			assert.False(t, field.IsCustom())
		})
	}

	names := []string{}
	for _, f := range shape.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"id", "status", "total", "quantity", "placedAt", "paid"}, names)
	assert.Equal(t, "OrderFilter", shape.TypeName)
}

func TestBuild_CyclesTerminate(t *testing.T) {
	shape, err := newBuilder(capability.NewConfig(), nil).Build("Customer", "list")
	require.NoError(t, err)

	_, ok := shape.Relation("referredBy")
	assert.False(t, ok, "self reference is cut at the root")

	orders, ok := shape.Relation("orders")
	require.True(t, ok)
	assert.Equal(t, entitygraph.ToMany, orders.Cardinality)
	assert.Equal(t, "CustomerOrdersFilter", orders.Shape.TypeName)

	_, ok = orders.Shape.Relation("customer")
	assert.False(t, ok, "back reference to Customer is cut")

	items, ok := orders.Shape.Relation("items")
	require.True(t, ok)
	product, ok := items.Shape.Relation("product")
	require.True(t, ok)
	_, ok = product.Shape.Relation("lineItems")
	assert.False(t, ok, "mutual reference is cut")
	_, ok = product.Shape.Relation("tags")
	assert.True(t, ok)
}

func TestBuild_MaxDepth(t *testing.T) {
	cfg := capability.NewConfig()
	cfg.MaxDepth = 1

	shape, err := newBuilder(cfg, nil).Build("Order", "list")
	require.NoError(t, err)

	customer, ok := shape.Relation("customer")
	require.True(t, ok)
	assert.Empty(t, customer.Shape.Relations())
	_, ok = customer.Shape.Field("name")
	assert.True(t, ok)
}

func TestBuild_FieldSelection(t *testing.T) {
	cfg := capability.NewConfig()
	cfg.Set("Order", "list", capability.PluginFilter, capability.PluginConfig{Fields: capability.FieldSelection{"*": true, "paid": false, "items": false}})

	shape, err := newBuilder(cfg, nil).Build("Order", "list")
	require.NoError(t, err)

	_, ok := shape.Field("paid")
	assert.False(t, ok)
	_, ok = shape.Relation("items")
	assert.False(t, ok)

	_, _, err = shape.Compile(map[string]any{"paid": map[string]any{"eq": true}})
	assert.True(t, caperrors.HasCode(err, caperrors.CodeUnknownFilterField))
}

func TestBuild_MissingResolver(t *testing.T) {
	tests := []struct {
		name  string
		field capability.CustomField
	}{
		{"no hook", capability.CustomField{Name: "hasOrders", Kind: entitygraph.KindBoolean}},
		{"unregistered hook", capability.CustomField{Name: "hasOrders", Kind: entitygraph.KindBoolean, ResolverName: "customerHasOrders"}},
		{"unregistered hook on native field", capability.CustomField{Name: "email", ResolverName: "emailDomain"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := capability.NewConfig()
			cfg.Set("Customer", "list", capability.PluginFilter, capability.PluginConfig{CustomFields: []capability.CustomField{tt.field}})

			_, err := newBuilder(cfg, capability.NewResolverRegistry()).Build("Customer", "list")
			require.Error(t, err)
			assert.ErrorIs(t, err, caperrors.ErrMissingResolver)
		})
	}
}

func TestBuild_Cached(t *testing.T) {
	builder := newBuilder(capability.NewConfig(), nil)
	first, err := builder.Build("Order", "list")
	require.NoError(t, err)
	second, err := builder.Build("Order", "list")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = builder.Build("Invoice", "list")
	assert.ErrorIs(t, err, caperrors.ErrUnknownEntity)
}

func TestCompile(t *testing.T) {
	shape, err := newBuilder(capability.NewConfig(), nil).Build("Order", "list")
	require.NoError(t, err)

	pred, custom, err := shape.Compile(map[string]any{
		"total":  map[string]any{"gte": 10, "lt": 100.5},
		"status": map[string]any{"in": []string{"open", "shipped"}},
		"customer": map[string]any{
			"address": map[string]any{"city": map[string]any{"eq": "Denver"}},
		},
		"items": map[string]any{"sku": map[string]any{"startswith": "A-"}},
	})
	require.NoError(t, err)
	assert.Empty(t, custom)

	assert.Equal(t, []query.Condition{
		{Field: "status", Comparator: comparator.In, Value: []any{"open", "shipped"}},
		{Field: "total", Comparator: comparator.Gte, Value: float64(10)},
		{Field: "total", Comparator: comparator.Lt, Value: 100.5},
	}, pred.Conditions)

	require.Len(t, pred.Relations, 2)
	assert.Equal(t, "customer", pred.Relations[0].Relation)
	assert.Equal(t, "Customer", pred.Relations[0].Target)
	assert.Equal(t, entitygraph.ToOne, pred.Relations[0].Cardinality)
	assert.Equal(t, "items", pred.Relations[1].Relation)
	assert.Equal(t, entitygraph.ToMany, pred.Relations[1].Cardinality)

	leaves := pred.Leaves()
	paths := []string{}
	for _, l := range leaves {
		paths = append(paths, l.FieldPath())
	}
	assert.Equal(t, []string{"status", "total", "total", "customer.address.city", "items.sku"}, paths)
}

func TestCompile_Errors(t *testing.T) {
	shape, err := newBuilder(capability.NewConfig(), nil).Build("Order", "list")
	require.NoError(t, err)

	tests := []struct {
		name string
		node map[string]any
		code caperrors.Code
		path string
	}{
		{"unknown field", map[string]any{"color": map[string]any{"eq": "red"}}, caperrors.CodeUnknownFilterField, "color"},
		{"unknown nested field", map[string]any{"customer": map[string]any{"nickname": map[string]any{"eq": "x"}}}, caperrors.CodeUnknownFilterField, "customer.nickname"},
		{"comparator not for kind", map[string]any{"total": map[string]any{"contains": "1"}}, caperrors.CodeInvalidComparator, "total"},
		{"unknown comparator", map[string]any{"status": map[string]any{"like": "x"}}, caperrors.CodeInvalidComparator, "status"},
		{"boolean range", map[string]any{"paid": map[string]any{"gt": true}}, caperrors.CodeInvalidComparator, "paid"},
		{"bad value", map[string]any{"total": map[string]any{"gt": "lots"}}, caperrors.CodeInvalidFilterValue, "total"},
		{"in without list", map[string]any{"status": map[string]any{"in": "open"}}, caperrors.CodeInvalidFilterValue, "status"},
		{"scalar instead of comparators", map[string]any{"status": "open"}, caperrors.CodeInvalidFilterValue, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := shape.Compile(tt.node)
			require.Error(t, err)
			capErr, ok := caperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, capErr.Code)
			assert.Equal(t, tt.path, capErr.Path)
		})
	}
}

func TestApply_CustomFieldResolver(t *testing.T) {
	var (
		received capability.ResolverContext
		args     capability.Arguments
		calls    int
	)

	cfg := capability.NewConfig()
	cfg.Set("Customer", "list", capability.PluginFilter, capability.PluginConfig{CustomFields: []capability.CustomField{
		{Name: "hasOrders", Kind: entitygraph.KindBoolean, ResolverName: "customerHasOrders"},
	}})

	resolvers := capability.NewResolverRegistry()
	require.NoError(t, resolvers.Register("customerHasOrders", func(base query.Query, a capability.Arguments, rc capability.ResolverContext) (query.Query, error) {
		calls++
		received = rc
		args = a
		base.Where = base.Where.And(query.Predicate{Relations: []query.RelationPredicate{{
			Relation:    "orders",
			Target:      "Order",
			Cardinality: entitygraph.ToMany,
			Where:       query.Predicate{Conditions: []query.Condition{{Field: "id", Comparator: comparator.Ne, Value: nil}}},
		}}})
		return base, nil
	}))

	shape, err := newBuilder(cfg, resolvers).Build("Customer", "list")
	require.NoError(t, err)

	field, ok := shape.Field("hasOrders")
	require.True(t, ok)
	assert.True(t, field.IsCustom())
	assert.Equal(t, []comparator.Comparator{comparator.Eq, comparator.Ne}, field.Comparators)

	requestArgs := capability.Arguments{"filter": map[string]any{"hasOrders": map[string]any{"ne": true}}}
	q, err := shape.Apply(query.New("Customer"), map[string]any{
		"hasOrders": map[string]any{"ne": true},
		"name":      map[string]any{"eq": "Ada"},
	}, requestArgs)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, capability.ResolverContext{Entity: "Customer", Field: "hasOrders", Comparator: comparator.Ne, Value: true}, received)
	assert.Equal(t, requestArgs, args)

	assert.Equal(t, []query.Condition{{Field: "name", Comparator: comparator.Eq, Value: "Ada"}}, q.Where.Conditions)
	require.Len(t, q.Where.Relations, 1)
	assert.Equal(t, "orders", q.Where.Relations[0].Relation)
}

func TestApply_ResolverLeavesBaseUntouched(t *testing.T) {
	cfg := capability.NewConfig()
	cfg.Set("Order", "list", capability.PluginFilter, capability.PluginConfig{CustomFields: []capability.CustomField{
		{Name: "recent", Kind: entitygraph.KindBoolean, Resolve: func(base query.Query, _ capability.Arguments, _ capability.ResolverContext) (query.Query, error) {
			base.Where.Conditions = append(base.Where.Conditions, query.Condition{
				Field:      "placedAt",
				Comparator: comparator.Gte,
				Value:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			})
			return base, nil
		}},
	}})

	shape, err := newBuilder(cfg, nil).Build("Order", "list")
	require.NoError(t, err)

	base := query.New("Order")
	q, err := shape.Apply(base, map[string]any{"recent": map[string]any{"eq": true}}, nil)
	require.NoError(t, err)
	assert.Len(t, q.Where.Conditions, 1)
	assert.True(t, base.Where.IsEmpty())
}
