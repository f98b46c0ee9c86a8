package graph

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/thistle/pkg/comparator"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/query"
)

const rootVar = "n"

// compiler turns a logical query into OpenCypher. Entities are node labels,
// fields are node properties and relations are outgoing edges of the relation's
// edge type. An entity's label is its name unless the metadata maps one. Relation predicates become EXISTS subqueries; to-one sort paths
// become OPTIONAL MATCH clauses.
type compiler struct {
	graph  *entitygraph.Graph
	params map[string]any
	vars   int
}

func newCompiler(graph *entitygraph.Graph) *compiler {
	return &compiler{
		graph:  graph,
		params: map[string]any{},
	}
}

func (c *compiler) param(value any) string {
	name := fmt.Sprintf("p%d", len(c.params))
	c.params[name] = value
	return "$" + name
}

func (c *compiler) nextVar(prefix string) string {
	c.vars++
	return fmt.Sprintf("%s%d", prefix, c.vars)
}

func (c *compiler) Count(q query.Query) (string, map[string]any, error) {
	entity, ok := c.graph.Entity(q.Entity)
	if !ok {
		return "", nil, fmt.Errorf("entity '%s' is not in the graph", q.Entity)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "MATCH (%s:%s)", rootVar, escape(entity.Label()))
	if err := c.writeWhere(&sb, entity, rootVar, q.Where); err != nil {
		return "", nil, err
	}
	fmt.Fprintf(&sb, " RETURN count(%s) AS total", rootVar)
	return sb.String(), c.params, nil
}

func (c *compiler) Fetch(q query.Query) (string, map[string]any, error) {
	entity, ok := c.graph.Entity(q.Entity)
	if !ok {
		return "", nil, fmt.Errorf("entity '%s' is not in the graph", q.Entity)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "MATCH (%s:%s)", rootVar, escape(entity.Label()))
	if err := c.writeWhere(&sb, entity, rootVar, q.Where); err != nil {
		return "", nil, err
	}

	keys, err := c.writeSortMatches(&sb, entity, q.Sort)
	if err != nil {
		return "", nil, err
	}

	withVars := []string{rootVar}
	var orderBy []string
	for i, key := range keys {
		alias := fmt.Sprintf("o%d", i)
		withVars = append(withVars, key.expr+" AS "+alias)
		if key.direction == query.Desc {
			orderBy = append(orderBy, alias+" IS NULL ASC", alias+" DESC")
		} else {
			orderBy = append(orderBy, alias+" IS NULL DESC", alias+" ASC")
		}
	}
	fmt.Fprintf(&sb, " WITH %s", strings.Join(withVars, ", "))
	if len(orderBy) > 0 {
		fmt.Fprintf(&sb, " ORDER BY %s", strings.Join(orderBy, ", "))
	}

	if q.Window != nil {
		if q.Window.Offset > 0 {
			fmt.Fprintf(&sb, " SKIP %s", c.param(int64(q.Window.Offset)))
		}
		if q.Window.Limit != nil {
			fmt.Fprintf(&sb, " LIMIT %s", c.param(int64(*q.Window.Limit)))
		}
	}

	fmt.Fprintf(&sb, " RETURN properties(%s) AS row", rootVar)
	return sb.String(), c.params, nil
}

func (c *compiler) writeWhere(sb *strings.Builder, entity *entitygraph.Entity, variable string, p query.Predicate) error {
	exprs, err := c.expressions(entity, variable, p)
	if err != nil {
		return err
	}
	if len(exprs) > 0 {
		fmt.Fprintf(sb, " WHERE %s", strings.Join(exprs, " AND "))
	}
	return nil
}

func (c *compiler) expressions(entity *entitygraph.Entity, variable string, p query.Predicate) ([]string, error) {
	var exprs []string

	for _, condition := range p.Conditions {
		field, ok := entity.Field(condition.Field)
		if !ok {
			return nil, fmt.Errorf("field '%s' is not defined on '%s'", condition.Field, entity.Name())
		}
		expr, err := c.condition(variable+"."+escape(field.Name), condition)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}

	for _, rp := range p.Relations {
		rel, ok := entity.Relation(rp.Relation)
		if !ok {
			return nil, fmt.Errorf("relation '%s' is not defined on '%s'", rp.Relation, entity.Name())
		}
		target, ok := c.graph.Target(rel)
		if !ok {
			return nil, fmt.Errorf("relation '%s' targets unknown entity '%s'", rel.Name, rel.Target)
		}

		related := c.nextVar("m")
		var sub strings.Builder
		fmt.Fprintf(&sub, "EXISTS { MATCH (%s)-[:%s]->(%s:%s)", variable, escape(rel.EdgeType), related, escape(target.Label()))
		if err := c.writeWhere(&sub, target, related, rp.Where); err != nil {
			return nil, err
		}
		sub.WriteString(" }")
		exprs = append(exprs, sub.String())
	}

	return exprs, nil
}

func (c *compiler) condition(property string, condition query.Condition) (string, error) {
	value := condition.Value
	switch condition.Comparator {
	case comparator.Eq:
		if value == nil {
			return property + " IS NULL", nil
		}
		return property + " = " + c.param(value), nil
	case comparator.Ne:
		if value == nil {
			return property + " IS NOT NULL", nil
		}
		return fmt.Sprintf("(%s IS NULL OR %s <> %s)", property, property, c.param(value)), nil
	case comparator.Gt:
		return property + " > " + c.param(value), nil
	case comparator.Gte:
		return property + " >= " + c.param(value), nil
	case comparator.Lt:
		return property + " < " + c.param(value), nil
	case comparator.Lte:
		return property + " <= " + c.param(value), nil
	case comparator.Contains:
		return property + " CONTAINS " + c.param(value), nil
	case comparator.StartsWith:
		return property + " STARTS WITH " + c.param(value), nil
	case comparator.EndsWith:
		return property + " ENDS WITH " + c.param(value), nil
	case comparator.In:
		if _, ok := value.([]any); !ok {
			return "", fmt.Errorf("comparator 'in' requires a list, got %T", value)
		}
		return property + " IN " + c.param(value), nil
	}
	return "", fmt.Errorf("unsupported comparator '%s'", condition.Comparator)
}

type sortExpr struct {
	expr      string
	direction query.Direction
}

// writeSortMatches adds one OPTIONAL MATCH per distinct to-one relation prefix
// of the sort paths and returns the property expression of each key.
func (c *compiler) writeSortMatches(sb *strings.Builder, entity *entitygraph.Entity, keys []query.SortKey) ([]sortExpr, error) {
	matched := map[string]string{}
	out := make([]sortExpr, 0, len(keys))

	for _, key := range keys {
		current := entity
		variable := rootVar
		for i, part := range key.Path {
			if i == len(key.Path)-1 {
				field, ok := current.Field(part)
				if !ok {
					return nil, fmt.Errorf("field '%s' is not defined on '%s'", part, current.Name())
				}
				out = append(out, sortExpr{expr: variable + "." + escape(field.Name), direction: key.Direction})
				break
			}

			rel, ok := current.Relation(part)
			if !ok || !rel.IsToOne() {
				return nil, fmt.Errorf("'%s' is not a to-one relation of '%s'", part, current.Name())
			}
			target, ok := c.graph.Target(rel)
			if !ok {
				return nil, fmt.Errorf("relation '%s' targets unknown entity '%s'", rel.Name, rel.Target)
			}

			prefix := strings.Join(key.Path[:i+1], ".")
			next, exists := matched[prefix]
			if !exists {
				next = c.nextVar("s")
				matched[prefix] = next
				fmt.Fprintf(sb, " OPTIONAL MATCH (%s)-[:%s]->(%s:%s)", variable, escape(rel.EdgeType), next, escape(target.Label()))
			}
			current = target
			variable = next
		}
	}
	return out, nil
}

func escape(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}
