package entitygraph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
)

var validate = validator.New()

// MetadataSource supplies entity definitions. It is consumed once while the graph is built.
type MetadataSource interface {
	LoadEntities(ctx context.Context) ([]models.EntityDefinition, error)
}

// StaticSource serves definitions held in memory.
type StaticSource []models.EntityDefinition

func (s StaticSource) LoadEntities(_ context.Context) ([]models.EntityDefinition, error) {
	return s, nil
}

// Graph is an index of entities by name.
type Graph struct {
	entities map[string]*Entity
	order    []string
}

// Load reads every definition from the source and builds the graph.
func Load(ctx context.Context, source MetadataSource, logger ectologger.Logger) (*Graph, error) {
	defs, err := source.LoadEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity metadata: %w", err)
	}

	g, err := Build(defs)
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).WithField("entity_count", len(g.order)).Info("built entity graph")
	return g, nil
}

// Build validates the definitions and indexes them. Relation targets must name
// an entity present in defs; cycles are allowed.
func Build(defs []models.EntityDefinition) (*Graph, error) {
	g := &Graph{
		entities: make(map[string]*Entity, len(defs)),
	}

	for _, def := range defs {
		if err := validate.Struct(def); err != nil {
			return nil, fmt.Errorf("invalid entity definition '%s': %w", def.Name, err)
		}
		if _, exists := g.entities[def.Name]; exists {
			return nil, fmt.Errorf("duplicate entity '%s'", def.Name)
		}

		entity, err := newEntity(def)
		if err != nil {
			return nil, err
		}
		g.entities[def.Name] = entity
		g.order = append(g.order, def.Name)
	}

	for _, name := range g.order {
		for _, rel := range g.entities[name].relations {
			if _, ok := g.entities[rel.Target]; !ok {
				return nil, fmt.Errorf("entity '%s' relation '%s' targets unknown entity '%s'", name, rel.Name, rel.Target)
			}
		}
	}

	return g, nil
}

func newEntity(def models.EntityDefinition) (*Entity, error) {
	e := &Entity{
		name:          def.Name,
		table:         def.Table,
		label:         def.Label,
		fieldIndex:    make(map[string]int, len(def.Fields)),
		relationIndex: make(map[string]int, len(def.Relations)),
	}
	if e.table == "" {
		e.table = def.Name
	}
	if e.label == "" {
		e.label = def.Name
	}

	for _, fd := range def.Fields {
		if _, exists := e.fieldIndex[fd.Name]; exists {
			return nil, fmt.Errorf("entity '%s' declares field '%s' twice", def.Name, fd.Name)
		}

		field := Field{
			Name:   fd.Name,
			Kind:   Kind(fd.Kind),
			Column: fd.Column,
		}
		if field.Column == "" {
			field.Column = fd.Name
		}
		seen := map[string]bool{}
		for _, fmtDef := range fd.Formats {
			if seen[fmtDef.Name] {
				return nil, fmt.Errorf("entity '%s' field '%s' declares format '%s' twice", def.Name, fd.Name, fmtDef.Name)
			}
			seen[fmtDef.Name] = true

			opt := FormatOption{Name: fmtDef.Name}
			for _, arg := range fmtDef.Arguments {
				opt.Arguments = append(opt.Arguments, FormatArgument{
					Name:     arg.Name,
					Kind:     Kind(arg.Kind),
					Required: arg.Required,
				})
			}
			field.Formats = append(field.Formats, opt)
		}

		e.fieldIndex[fd.Name] = len(e.fields)
		e.fields = append(e.fields, field)
	}

	for _, rd := range def.Relations {
		if _, exists := e.relationIndex[rd.Name]; exists {
			return nil, fmt.Errorf("entity '%s' declares relation '%s' twice", def.Name, rd.Name)
		}
		if _, exists := e.fieldIndex[rd.Name]; exists {
			return nil, fmt.Errorf("entity '%s' relation '%s' shadows a field", def.Name, rd.Name)
		}

		rel := Relation{
			Name:        rd.Name,
			Target:      rd.Target,
			Cardinality: Cardinality(rd.Cardinality),
			LocalKey:    rd.LocalKey,
			ForeignKey:  rd.ForeignKey,
			EdgeType:    rd.EdgeType,
		}
		if rel.EdgeType == "" {
			rel.EdgeType = strcase.ToScreamingSnake(rd.Name)
		}
		if rd.Through != nil {
			rel.Through = &Through{
				Table:     rd.Through.Table,
				SourceKey: rd.Through.SourceKey,
				TargetKey: rd.Through.TargetKey,
			}
		}

		e.relationIndex[rd.Name] = len(e.relations)
		e.relations = append(e.relations, rel)
	}

	return e, nil
}

func (g *Graph) Entity(name string) (*Entity, bool) {
	e, ok := g.entities[name]
	return e, ok
}

// Entities returns every entity in definition order.
func (g *Graph) Entities() []*Entity {
	out := make([]*Entity, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.entities[name])
	}
	return out
}

// Target resolves the entity a relation points at.
func (g *Graph) Target(rel Relation) (*Entity, bool) {
	return g.Entity(rel.Target)
}
