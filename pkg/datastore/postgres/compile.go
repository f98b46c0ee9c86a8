package postgres

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/thistle/pkg/comparator"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/huandu/go-sqlbuilder"
)

const rootAlias = "t0"

// compiler turns a logical query into PostgreSQL. Relation predicates become
// correlated EXISTS subqueries; to-one sort paths become LEFT JOINs.
type compiler struct {
	graph   *entitygraph.Graph
	aliases int
}

func newCompiler(graph *entitygraph.Graph) *compiler {
	return &compiler{graph: graph}
}

func (c *compiler) nextAlias(prefix string) string {
	c.aliases++
	return fmt.Sprintf("%s%d", prefix, c.aliases)
}

// Count builds SELECT COUNT(*) over q.Where. Sort and window are ignored.
func (c *compiler) Count(q query.Query) (string, []any, error) {
	entity, err := c.entity(q.Entity)
	if err != nil {
		return "", nil, err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(fmt.Sprintf("%s AS %s", quote(entity.Table()), rootAlias))

	if err := c.where(sb, &sb.Cond, entity, rootAlias, q.Where); err != nil {
		return "", nil, err
	}

	sql, args := sb.Build()
	return sql, args, nil
}

// Fetch builds the row query: every field of the entity aliased to its field
// name, filtered, ordered and windowed.
func (c *compiler) Fetch(q query.Query) (string, []any, error) {
	entity, err := c.entity(q.Entity)
	if err != nil {
		return "", nil, err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	columns := make([]string, 0, len(entity.Fields()))
	for _, f := range entity.Fields() {
		columns = append(columns, fmt.Sprintf("%s.%s AS %s", rootAlias, quote(f.Column), quote(f.Name)))
	}
	sb.Select(columns...)
	sb.From(fmt.Sprintf("%s AS %s", quote(entity.Table()), rootAlias))

	if err := c.where(sb, &sb.Cond, entity, rootAlias, q.Where); err != nil {
		return "", nil, err
	}

	if err := c.orderBy(sb, entity, q.Sort); err != nil {
		return "", nil, err
	}

	if q.Window != nil {
		if q.Window.Limit != nil {
			sb.Limit(*q.Window.Limit)
		}
		if q.Window.Offset > 0 {
			sb.Offset(q.Window.Offset)
		}
	}

	sql, args := sb.Build()
	return sql, args, nil
}

func (c *compiler) entity(name string) (*entitygraph.Entity, error) {
	entity, ok := c.graph.Entity(name)
	if !ok {
		return nil, fmt.Errorf("entity '%s' is not in the graph", name)
	}
	return entity, nil
}

// where adds the predicate's expressions to sb. cond belongs to sb and creates
// the placeholders.
func (c *compiler) where(sb *sqlbuilder.SelectBuilder, cond *sqlbuilder.Cond, entity *entitygraph.Entity, alias string, p query.Predicate) error {
	exprs, err := c.expressions(cond, entity, alias, p)
	if err != nil {
		return err
	}
	if len(exprs) > 0 {
		sb.Where(exprs...)
	}
	return nil
}

func (c *compiler) expressions(cond *sqlbuilder.Cond, entity *entitygraph.Entity, alias string, p query.Predicate) ([]string, error) {
	var exprs []string

	for _, condition := range p.Conditions {
		field, ok := entity.Field(condition.Field)
		if !ok {
			return nil, fmt.Errorf("field '%s' is not defined on '%s'", condition.Field, entity.Name())
		}
		expr, err := condition2SQL(cond, alias+"."+quote(field.Column), condition)
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

		sub := sqlbuilder.PostgreSQL.NewSelectBuilder()
		targetAlias := c.nextAlias("t")
		sub.Select("1")

		if rel.Through != nil {
			joinAlias := c.nextAlias("j")
			sub.From(fmt.Sprintf("%s AS %s", quote(rel.Through.Table), joinAlias))
			sub.Join(
				fmt.Sprintf("%s AS %s", quote(target.Table()), targetAlias),
				fmt.Sprintf("%s.%s = %s.%s", targetAlias, quote(rel.ForeignKey), joinAlias, quote(rel.Through.TargetKey)),
			)
			sub.Where(fmt.Sprintf("%s.%s = %s.%s", joinAlias, quote(rel.Through.SourceKey), alias, quote(rel.LocalKey)))
		} else {
			sub.From(fmt.Sprintf("%s AS %s", quote(target.Table()), targetAlias))
			sub.Where(fmt.Sprintf("%s.%s = %s.%s", targetAlias, quote(rel.ForeignKey), alias, quote(rel.LocalKey)))
		}

		nested, err := c.expressions(&sub.Cond, target, targetAlias, rp.Where)
		if err != nil {
			return nil, err
		}
		if len(nested) > 0 {
			sub.Where(nested...)
		}
		exprs = append(exprs, cond.Exists(sub))
	}

	return exprs, nil
}

func condition2SQL(cond *sqlbuilder.Cond, column string, condition query.Condition) (string, error) {
	value := condition.Value
	switch condition.Comparator {
	case comparator.Eq:
		if value == nil {
			return cond.IsNull(column), nil
		}
		return cond.Equal(column, value), nil
	case comparator.Ne:
		if value == nil {
			return cond.IsNotNull(column), nil
		}
		return cond.Or(cond.NotEqual(column, value), cond.IsNull(column)), nil
	case comparator.Gt:
		return cond.GreaterThan(column, value), nil
	case comparator.Gte:
		return cond.GreaterEqualThan(column, value), nil
	case comparator.Lt:
		return cond.LessThan(column, value), nil
	case comparator.Lte:
		return cond.LessEqualThan(column, value), nil
	case comparator.Contains:
		return cond.Like(column, "%"+escapeLike(fmt.Sprint(value))+"%"), nil
	case comparator.StartsWith:
		return cond.Like(column, escapeLike(fmt.Sprint(value))+"%"), nil
	case comparator.EndsWith:
		return cond.Like(column, "%"+escapeLike(fmt.Sprint(value))), nil
	case comparator.In:
		values, ok := value.([]any)
		if !ok {
			return "", fmt.Errorf("comparator 'in' requires a list, got %T", value)
		}
		if len(values) == 0 {
			return "FALSE", nil
		}
		return cond.In(column, values...), nil
	}
	return "", fmt.Errorf("unsupported comparator '%s'", condition.Comparator)
}

// orderBy joins the to-one relations named by sort paths and orders by their
// columns. Nulls sort first ascending and last descending.
func (c *compiler) orderBy(sb *sqlbuilder.SelectBuilder, entity *entitygraph.Entity, keys []query.SortKey) error {
	if len(keys) == 0 {
		return nil
	}

	joined := map[string]string{}
	var order []string

	for _, key := range keys {
		current := entity
		alias := rootAlias
		for i, part := range key.Path {
			if i == len(key.Path)-1 {
				field, ok := current.Field(part)
				if !ok {
					return fmt.Errorf("field '%s' is not defined on '%s'", part, current.Name())
				}
				nulls := "NULLS FIRST"
				if key.Direction == query.Desc {
					nulls = "NULLS LAST"
				}
				order = append(order, fmt.Sprintf("%s.%s %s %s", alias, quote(field.Column), key.Direction, nulls))
				break
			}

			rel, ok := current.Relation(part)
			if !ok || !rel.IsToOne() {
				return fmt.Errorf("'%s' is not a to-one relation of '%s'", part, current.Name())
			}
			target, ok := c.graph.Target(rel)
			if !ok {
				return fmt.Errorf("relation '%s' targets unknown entity '%s'", rel.Name, rel.Target)
			}

			joinKey := strings.Join(key.Path[:i+1], ".")
			next, exists := joined[joinKey]
			if !exists {
				next = c.nextAlias("s")
				joined[joinKey] = next
				sb.JoinWithOption(
					sqlbuilder.LeftJoin,
					fmt.Sprintf("%s AS %s", quote(target.Table()), next),
					fmt.Sprintf("%s.%s = %s.%s", next, quote(rel.ForeignKey), alias, quote(rel.LocalKey)),
				)
			}
			current = target
			alias = next
		}
	}

	sb.OrderBy(order...)
	return nil
}

func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
