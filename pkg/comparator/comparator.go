// Package comparator defines the fixed vocabulary of filter operators and which
// field kinds each one accepts.
package comparator

import (
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
)

type Comparator string

const (
	Eq         Comparator = "eq"
	Ne         Comparator = "ne"
	Contains   Comparator = "contains"
	Gt         Comparator = "gt"
	Lt         Comparator = "lt"
	Gte        Comparator = "gte"
	Lte        Comparator = "lte"
	In         Comparator = "in"
	StartsWith Comparator = "startswith"
	EndsWith   Comparator = "endswith"
)

// All lists every comparator in the order shapes expose them.
var All = []Comparator{Eq, Ne, Contains, Gt, Lt, Gte, Lte, In, StartsWith, EndsWith}

var rules = map[Comparator]func(entitygraph.Kind) bool{
	Eq:         func(entitygraph.Kind) bool { return true },
	Ne:         func(entitygraph.Kind) bool { return true },
	Contains:   entitygraph.Kind.IsTextual,
	StartsWith: entitygraph.Kind.IsTextual,
	EndsWith:   entitygraph.Kind.IsTextual,
	Gt:         entitygraph.Kind.IsOrdered,
	Lt:         entitygraph.Kind.IsOrdered,
	Gte:        entitygraph.Kind.IsOrdered,
	Lte:        entitygraph.Kind.IsOrdered,
	In:         func(k entitygraph.Kind) bool { return k != entitygraph.KindBoolean },
}

// Parse returns the comparator named s.
func Parse(s string) (Comparator, bool) {
	c := Comparator(s)
	_, ok := rules[c]
	return c, ok
}

// Accepts reports whether c may be applied to a field of kind k.
func (c Comparator) Accepts(k entitygraph.Kind) bool {
	rule, ok := rules[c]
	if !ok {
		return false
	}
	return rule(k)
}

// TakesList reports whether the comparator's value is a sequence of the field's base type.
func (c Comparator) TakesList() bool {
	return c == In
}

// ForKind returns the comparators applicable to k, in the order of All.
func ForKind(k entitygraph.Kind) []Comparator {
	var out []Comparator
	for _, c := range All {
		if c.Accepts(k) {
			out = append(out, c)
		}
	}
	return out
}
