package entitygraph_test

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/entitygraph/entitygraphtest"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_IndexesEntities(t *testing.T) {
	g, err := entitygraph.Build(entitygraphtest.Definitions())
	require.NoError(t, err)

	order, ok := g.Entity("Order")
	require.True(t, ok)
	assert.Equal(t, "orders", order.Table())
	assert.Equal(t, "Order", order.Label())

	names := []string{}
	for _, f := range order.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"id", "status", "total", "quantity", "placedAt", "paid"}, names)

	placedAt, ok := order.Field("placedAt")
	require.True(t, ok)
	assert.Equal(t, entitygraph.KindDate, placedAt.Kind)
	assert.Equal(t, "placed_at", placedAt.Column)
	assert.True(t, placedAt.Formattable())

	quantity, _ := order.Field("quantity")
	assert.Equal(t, "quantity", quantity.Column)
	assert.False(t, quantity.Formattable())

	customer, ok := order.Relation("customer")
	require.True(t, ok)
	assert.True(t, customer.IsToOne())
	assert.Equal(t, "CUSTOMER", customer.EdgeType)

	target, ok := g.Target(customer)
	require.True(t, ok)
	assert.Equal(t, "Customer", target.Name())
}

func TestBuild_ToleratesCycles(t *testing.T) {
	g := entitygraphtest.Graph()

	customer, _ := g.Entity("Customer")
	self, ok := customer.Relation("referredBy")
	require.True(t, ok)

	target, ok := g.Target(self)
	require.True(t, ok)
	assert.Same(t, customer, target)

	product, _ := g.Entity("Product")
	lineItems, _ := product.Relation("lineItems")
	lineItem, _ := g.Target(lineItems)
	back, _ := lineItem.Relation("product")
	again, _ := g.Target(back)
	assert.Same(t, product, again)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		defs []models.EntityDefinition
	}{
		{
			name: "unknown relation target",
			defs: []models.EntityDefinition{{
				Name:      "A",
				Fields:    []models.FieldDefinition{{Name: "id", Kind: "id"}},
				Relations: []models.RelationDefinition{{Name: "b", Target: "B", Cardinality: "to_one"}},
			}},
		},
		{
			name: "duplicate entity",
			defs: []models.EntityDefinition{
				{Name: "A", Fields: []models.FieldDefinition{{Name: "id", Kind: "id"}}},
				{Name: "A", Fields: []models.FieldDefinition{{Name: "id", Kind: "id"}}},
			},
		},
		{
			name: "duplicate field",
			defs: []models.EntityDefinition{{
				Name:   "A",
				Fields: []models.FieldDefinition{{Name: "id", Kind: "id"}, {Name: "id", Kind: "text"}},
			}},
		},
		{
			name: "unknown kind",
			defs: []models.EntityDefinition{{
				Name:   "A",
				Fields: []models.FieldDefinition{{Name: "id", Kind: "uuid"}},
			}},
		},
		{
			name: "invalid cardinality",
			defs: []models.EntityDefinition{{
				Name:      "A",
				Fields:    []models.FieldDefinition{{Name: "id", Kind: "id"}},
				Relations: []models.RelationDefinition{{Name: "self", Target: "A", Cardinality: "many"}},
			}},
		},
		{
			name: "relation shadows field",
			defs: []models.EntityDefinition{{
				Name:      "A",
				Fields:    []models.FieldDefinition{{Name: "parent", Kind: "id"}},
				Relations: []models.RelationDefinition{{Name: "parent", Target: "A", Cardinality: "to_one"}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := entitygraph.Build(tt.defs)
			assert.Error(t, err)
		})
	}
}

func TestLoad_FromStaticSource(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	g, err := entitygraph.Load(context.Background(), entitygraph.StaticSource(entitygraphtest.Definitions()), logger)
	require.NoError(t, err)
	assert.Len(t, g.Entities(), 6)
	assert.Equal(t, "Customer", g.Entities()[0].Name())
}
