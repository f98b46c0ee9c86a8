// Package query is the logical request handed to a data store: a predicate tree,
// ordered sort keys and an optional row window. It says nothing about how a store
// joins or traverses relations.
package query

import (
	"context"
	"strings"

	"github.com/Ramsey-B/thistle/pkg/comparator"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
)

type Row = map[string]any

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

func ParseDirection(s string) (Direction, bool) {
	switch strings.ToUpper(s) {
	case string(Asc):
		return Asc, true
	case string(Desc):
		return Desc, true
	}
	return "", false
}

// Condition is a leaf (field, comparator, value) scoped to the entity of the
// predicate that holds it.
type Condition struct {
	Field      string
	Comparator comparator.Comparator
	Value      any
}

// RelationPredicate scopes a sub-predicate to the target of a relation. For a
// to-many relation it holds when at least one related row satisfies it.
type RelationPredicate struct {
	Relation    string
	Target      string
	Cardinality entitygraph.Cardinality
	Where       Predicate
}

// Predicate is the AND of its conditions and relation predicates.
type Predicate struct {
	Conditions []Condition
	Relations  []RelationPredicate
}

func (p Predicate) IsEmpty() bool {
	return len(p.Conditions) == 0 && len(p.Relations) == 0
}

// And appends other's terms to p.
func (p Predicate) And(other Predicate) Predicate {
	out := p.clone()
	out.Conditions = append(out.Conditions, other.Conditions...)
	out.Relations = append(out.Relations, other.clone().Relations...)
	return out
}

func (p Predicate) clone() Predicate {
	out := Predicate{
		Conditions: append([]Condition(nil), p.Conditions...),
	}
	for _, rel := range p.Relations {
		rel.Where = rel.Where.clone()
		out.Relations = append(out.Relations, rel)
	}
	return out
}

// Leaf is a condition flattened to its full path from the root entity.
type Leaf struct {
	Path       []string
	Comparator comparator.Comparator
	Value      any
}

func (l Leaf) FieldPath() string {
	return strings.Join(l.Path, ".")
}

// Leaves flattens the predicate into (fieldPath, comparator, value) triples.
func (p Predicate) Leaves() []Leaf {
	return p.leaves(nil)
}

func (p Predicate) leaves(prefix []string) []Leaf {
	var out []Leaf
	for _, c := range p.Conditions {
		path := append(append([]string(nil), prefix...), c.Field)
		out = append(out, Leaf{Path: path, Comparator: c.Comparator, Value: c.Value})
	}
	for _, rel := range p.Relations {
		path := append(append([]string(nil), prefix...), rel.Relation)
		out = append(out, rel.Where.leaves(path)...)
	}
	return out
}

// SortKey orders by Path, a chain of to-one relations ending in a field.
type SortKey struct {
	Path      []string
	Direction Direction
}

func (k SortKey) FieldPath() string {
	return strings.Join(k.Path, ".")
}

// Window is a [Offset, Offset+Limit) slice of the ordered result. A nil Limit is open-ended.
type Window struct {
	Limit  *int
	Offset int
}

type Query struct {
	Entity string
	Where  Predicate
	Sort   []SortKey
	Window *Window
}

func New(entity string) Query {
	return Query{Entity: entity}
}

// Clone returns a deep copy safe to hand to a resolver.
func (q Query) Clone() Query {
	out := Query{
		Entity: q.Entity,
		Where:  q.Where.clone(),
		Sort:   append([]SortKey(nil), q.Sort...),
	}
	if q.Window != nil {
		w := *q.Window
		out.Window = &w
	}
	return out
}

// DataStore executes compiled queries.
type DataStore interface {
	// Count returns the number of rows matching q.Where, ignoring sort and window.
	Count(ctx context.Context, q Query) (int, error)
	// Fetch returns the rows matching q.Where ordered by q.Sort within q.Window.
	Fetch(ctx context.Context, q Query) ([]Row, error)
}
