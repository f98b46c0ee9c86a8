// Package sorting builds the sort argument shape of an entity and compiles sort
// input into ordered sort keys. Only to-one relations are descended; ordering by
// a path through a to-many relation is rejected.
package sorting

import (
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/capability"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/iancoleman/strcase"
)

type FieldShape struct {
	Name string
	Kind entitygraph.Kind
}

type RelationShape struct {
	Name   string
	Target string
	Shape  *Shape
}

type Shape struct {
	Entity        string
	TypeName      string
	entity        *entitygraph.Entity
	fields        []FieldShape
	fieldIndex    map[string]int
	relations     []RelationShape
	relationIndex map[string]int
}

func (s *Shape) Fields() []FieldShape {
	return append([]FieldShape(nil), s.fields...)
}

func (s *Shape) Field(name string) (FieldShape, bool) {
	i, ok := s.fieldIndex[name]
	if !ok {
		return FieldShape{}, false
	}
	return s.fields[i], true
}

func (s *Shape) Relations() []RelationShape {
	return append([]RelationShape(nil), s.relations...)
}

func (s *Shape) Relation(name string) (RelationShape, bool) {
	i, ok := s.relationIndex[name]
	if !ok {
		return RelationShape{}, false
	}
	return s.relations[i], true
}

// Builder builds and caches sort shapes per entity and operation.
type Builder struct {
	graph  *entitygraph.Graph
	config capability.Config
	logger ectologger.Logger

	mu    sync.Mutex
	cache map[string]*Shape
}

func NewBuilder(graph *entitygraph.Graph, config capability.Config, logger ectologger.Logger) *Builder {
	return &Builder{
		graph:  graph,
		config: config,
		logger: logger,
		cache:  map[string]*Shape{},
	}
}

func (b *Builder) Build(entity, operation string) (*Shape, error) {
	key := entity + "/" + operation

	b.mu.Lock()
	defer b.mu.Unlock()
	if shape, ok := b.cache[key]; ok {
		return shape, nil
	}

	root, ok := b.graph.Entity(entity)
	if !ok {
		return nil, caperrors.New(caperrors.CodeUnknownEntity, "entity is not in the graph").AddEntity(entity)
	}

	maxDepth := b.config.For(entity, operation, capability.PluginSort).MaxDepth
	shape := b.build(root, operation, strcase.ToCamel(entity), map[string]bool{}, 0, maxDepth)

	b.logger.WithFields(map[string]any{
		"entity":    entity,
		"operation": operation,
		"fields":    len(shape.fields),
		"relations": len(shape.relations),
	}).Debug("built sort shape")

	b.cache[key] = shape
	return shape, nil
}

func (b *Builder) build(entity *entitygraph.Entity, operation, prefix string, path map[string]bool, depth, maxDepth int) *Shape {
	path[entity.Name()] = true
	defer delete(path, entity.Name())

	selection := b.config.For(entity.Name(), operation, capability.PluginSort).Fields
	shape := &Shape{
		Entity:        entity.Name(),
		TypeName:      prefix + "Sort",
		entity:        entity,
		fieldIndex:    map[string]int{},
		relationIndex: map[string]int{},
	}

	for _, field := range entity.Fields() {
		if !selection.Allows(field.Name) {
			continue
		}
		shape.fieldIndex[field.Name] = len(shape.fields)
		shape.fields = append(shape.fields, FieldShape{Name: field.Name, Kind: field.Kind})
	}

	if maxDepth > 0 && depth >= maxDepth {
		return shape
	}

	for _, rel := range entity.Relations() {
		if !rel.IsToOne() || !selection.Allows(rel.Name) || path[rel.Target] {
			continue
		}
		target, ok := b.graph.Target(rel)
		if !ok {
			continue
		}
		shape.relationIndex[rel.Name] = len(shape.relations)
		shape.relations = append(shape.relations, RelationShape{
			Name:   rel.Name,
			Target: rel.Target,
			Shape:  b.build(target, operation, prefix+strcase.ToCamel(rel.Name), path, depth+1, maxDepth),
		})
	}
	return shape
}

// Term is one requested sort key before validation.
type Term struct {
	Path      []string
	Direction query.Direction
}

// Compile validates terms against the shape and returns sort keys in the given
// order; earlier keys are primary.
func (s *Shape) Compile(terms []Term) ([]query.SortKey, error) {
	keys := make([]query.SortKey, 0, len(terms))
	for _, term := range terms {
		if err := s.validate(term.Path); err != nil {
			return nil, err
		}
		direction := term.Direction
		if direction == "" {
			direction = query.Asc
		}
		keys = append(keys, query.SortKey{
			Path:      append([]string(nil), term.Path...),
			Direction: direction,
		})
	}
	return keys, nil
}

func (s *Shape) validate(path []string) error {
	fullPath := strings.Join(path, ".")
	if len(path) == 0 {
		return caperrors.New(caperrors.CodeInvalidSortPath, "sort path is empty").AddEntity(s.Entity)
	}

	current := s
	for i, part := range path {
		if i == len(path)-1 {
			if _, ok := current.Field(part); !ok {
				return caperrors.Newf(caperrors.CodeInvalidSortPath, "'%s' is not a sortable field of %s", part, current.Entity).
					AddEntity(s.Entity).AddPath(fullPath)
			}
			return nil
		}

		rel, ok := current.Relation(part)
		if ok {
			current = rel.Shape
			continue
		}

		if declared, exists := current.entity.Relation(part); exists && !declared.IsToOne() {
			return caperrors.Newf(caperrors.CodeInvalidSortPath, "'%s' is a to-many relation and cannot be sorted through", part).
				AddEntity(s.Entity).AddPath(fullPath)
		}
		return caperrors.Newf(caperrors.CodeInvalidSortPath, "'%s' is not a sortable relation of %s", part, current.Entity).
			AddEntity(s.Entity).AddPath(fullPath)
	}
	return nil
}
