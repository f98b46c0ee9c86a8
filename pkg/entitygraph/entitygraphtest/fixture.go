// Package entitygraphtest provides a small shop-domain entity graph for tests.
//
// Customer -> orders (to many) -> items (to many) -> product (to one)
// Order -> customer (to one) -> address (to one)
// Customer -> referredBy (to one, self reference)
// Product <-> LineItem forms a mutual reference through lineItems/product.
package entitygraphtest

import (
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/models"
)

func Definitions() []models.EntityDefinition {
	return []models.EntityDefinition{
		{
			Name:  "Customer",
			Table: "customers",
			Fields: []models.FieldDefinition{
				{Name: "id", Kind: "id"},
				{Name: "name", Kind: "text", Formats: []models.FormatDefinition{
					{Name: "UPPERCASE"},
					{Name: "LOWERCASE"},
				}},
				{Name: "email", Kind: "text"},
				{Name: "createdAt", Kind: "datetime", Column: "created_at"},
			},
			Relations: []models.RelationDefinition{
				{Name: "orders", Target: "Order", Cardinality: "to_many", LocalKey: "id", ForeignKey: "customer_id"},
				{Name: "address", Target: "Address", Cardinality: "to_one", LocalKey: "address_id", ForeignKey: "id"},
				{Name: "referredBy", Target: "Customer", Cardinality: "to_one", LocalKey: "referred_by_id", ForeignKey: "id"},
			},
		},
		{
			Name:  "Address",
			Table: "addresses",
			Fields: []models.FieldDefinition{
				{Name: "id", Kind: "id"},
				{Name: "city", Kind: "text"},
				{Name: "zip", Kind: "text"},
			},
		},
		{
			Name:  "Order",
			Table: "orders",
			Fields: []models.FieldDefinition{
				{Name: "id", Kind: "id"},
				{Name: "status", Kind: "text", Formats: []models.FormatDefinition{
					{Name: "UPPERCASE"},
					{Name: "LOWERCASE"},
				}},
				{Name: "total", Kind: "decimal"},
				{Name: "quantity", Kind: "integer"},
				{Name: "placedAt", Kind: "date", Column: "placed_at", Formats: []models.FormatDefinition{
					{Name: "ISO"},
					{Name: "CUSTOM", Arguments: []models.FormatArgumentDefinition{
						{Name: "customFormat", Kind: "text", Required: true},
					}},
				}},
				{Name: "paid", Kind: "boolean"},
			},
			Relations: []models.RelationDefinition{
				{Name: "customer", Target: "Customer", Cardinality: "to_one", LocalKey: "customer_id", ForeignKey: "id"},
				{Name: "items", Target: "LineItem", Cardinality: "to_many", LocalKey: "id", ForeignKey: "order_id"},
			},
		},
		{
			Name:  "LineItem",
			Table: "line_items",
			Fields: []models.FieldDefinition{
				{Name: "id", Kind: "id"},
				{Name: "sku", Kind: "text"},
				{Name: "price", Kind: "float"},
			},
			Relations: []models.RelationDefinition{
				{Name: "order", Target: "Order", Cardinality: "to_one", LocalKey: "order_id", ForeignKey: "id"},
				{Name: "product", Target: "Product", Cardinality: "to_one", LocalKey: "product_id", ForeignKey: "id"},
			},
		},
		{
			Name:  "Product",
			Table: "products",
			Fields: []models.FieldDefinition{
				{Name: "id", Kind: "id"},
				{Name: "name", Kind: "text", Formats: []models.FormatDefinition{
					{Name: "UPPERCASE"},
					{Name: "TRUNCATE", Arguments: []models.FormatArgumentDefinition{
						{Name: "limit", Kind: "integer", Required: true},
					}},
				}},
			},
			Relations: []models.RelationDefinition{
				{Name: "lineItems", Target: "LineItem", Cardinality: "to_many", LocalKey: "id", ForeignKey: "product_id"},
				{Name: "tags", Target: "Tag", Cardinality: "to_many", LocalKey: "id", ForeignKey: "id", Through: &models.ThroughDefinition{
					Table: "product_tags", SourceKey: "product_id", TargetKey: "tag_id",
				}},
			},
		},
		{
			Name:  "Tag",
			Table: "tags",
			Fields: []models.FieldDefinition{
				{Name: "id", Kind: "id"},
				{Name: "label", Kind: "text"},
			},
		},
	}
}

// Graph builds the fixture graph and panics on error.
func Graph() *entitygraph.Graph {
	g, err := entitygraph.Build(Definitions())
	if err != nil {
		panic(err)
	}
	return g
}
