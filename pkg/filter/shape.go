// Package filter builds the nested filter argument shape of an entity and
// compiles filter input into a predicate a data store can evaluate.
//
// A filter node maps a scalar field to {comparator: value} and a relation to a
// nested node. Sibling conditions are AND-combined; there is no OR.
package filter

import (
	"fmt"
	"sync"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/capability"
	"github.com/Ramsey-B/thistle/pkg/comparator"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/iancoleman/strcase"
)

// FieldShape is a scalar filter field and the comparators it accepts.
type FieldShape struct {
	Name        string
	Kind        entitygraph.Kind
	Comparators []comparator.Comparator
	resolver    capability.Resolver
}

// IsCustom reports whether the field is applied by a resolver.
func (f FieldShape) IsCustom() bool {
	return f.resolver != nil
}

func (f FieldShape) Accepts(c comparator.Comparator) bool {
	return ectolinq.Contains(f.Comparators, c)
}

type RelationShape struct {
	Name        string
	Target      string
	Cardinality entitygraph.Cardinality
	Shape       *Shape
}

// Shape is the filter input accepted for an entity at one position of the
// relation path. Relations whose target already appears on the path are omitted.
type Shape struct {
	Entity        string
	TypeName      string
	fields        []FieldShape
	fieldIndex    map[string]int
	relations     []RelationShape
	relationIndex map[string]int
}

func newShape(entity, typeName string) *Shape {
	return &Shape{
		Entity:        entity,
		TypeName:      typeName,
		fieldIndex:    map[string]int{},
		relationIndex: map[string]int{},
	}
}

func (s *Shape) addField(f FieldShape) {
	if i, exists := s.fieldIndex[f.Name]; exists {
		s.fields[i] = f
		return
	}
	s.fieldIndex[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
}

func (s *Shape) addRelation(r RelationShape) {
	s.relationIndex[r.Name] = len(s.relations)
	s.relations = append(s.relations, r)
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

// Builder builds and caches filter shapes per entity and operation.
type Builder struct {
	graph     *entitygraph.Graph
	config    capability.Config
	resolvers *capability.ResolverRegistry
	logger    ectologger.Logger

	mu    sync.Mutex
	cache map[string]*Shape
}

func NewBuilder(graph *entitygraph.Graph, config capability.Config, resolvers *capability.ResolverRegistry, logger ectologger.Logger) *Builder {
	return &Builder{
		graph:     graph,
		config:    config,
		resolvers: resolvers,
		logger:    logger,
		cache:     map[string]*Shape{},
	}
}

// Build returns the filter shape of entity for operation. Custom fields declared
// without a resolvable hook fail with MissingResolver.
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

	pc := b.config.For(entity, operation, capability.PluginFilter)
	shape := b.build(root, operation, strcase.ToCamel(entity)+"Filter", map[string]bool{}, 0, pc.MaxDepth)

	if err := b.addCustomFields(shape, root, pc.CustomFields); err != nil {
		return nil, err
	}

	b.logger.WithFields(map[string]any{
		"entity":    entity,
		"operation": operation,
		"fields":    len(shape.fields),
		"relations": len(shape.relations),
	}).Debug("built filter shape")

	b.cache[key] = shape
	return shape, nil
}

func (b *Builder) build(entity *entitygraph.Entity, operation, typeName string, path map[string]bool, depth, maxDepth int) *Shape {
	path[entity.Name()] = true
	defer delete(path, entity.Name())

	selection := b.config.For(entity.Name(), operation, capability.PluginFilter).Fields
	shape := newShape(entity.Name(), typeName)

	for _, field := range entity.Fields() {
		if !selection.Allows(field.Name) {
			continue
		}
		shape.addField(FieldShape{
			Name:        field.Name,
			Kind:        field.Kind,
			Comparators: comparator.ForKind(field.Kind),
		})
	}

	if maxDepth > 0 && depth >= maxDepth {
		return shape
	}

	for _, rel := range entity.Relations() {
		if !selection.Allows(rel.Name) || path[rel.Target] {
			continue
		}
		target, ok := b.graph.Target(rel)
		if !ok {
			continue
		}
		shape.addRelation(RelationShape{
			Name:        rel.Name,
			Target:      rel.Target,
			Cardinality: rel.Cardinality,
			Shape:       b.build(target, operation, typeName[:len(typeName)-len("Filter")]+strcase.ToCamel(rel.Name)+"Filter", path, depth+1, maxDepth),
		})
	}
	return shape
}

func (b *Builder) addCustomFields(shape *Shape, entity *entitygraph.Entity, customFields []capability.CustomField) error {
	for _, cf := range customFields {
		if _, isRelation := entity.Relation(cf.Name); isRelation {
			return fmt.Errorf("custom filter field '%s' on '%s' collides with a relation", cf.Name, entity.Name())
		}

		native, isNative := entity.Field(cf.Name)
		resolver, found := b.resolvers.Lookup(cf)
		if !found {
			if isNative && cf.ResolverName == "" {
				continue
			}
			msg := "custom filter field declared without a resolution hook"
			if cf.ResolverName != "" {
				msg = fmt.Sprintf("resolution hook '%s' is not registered", cf.ResolverName)
			}
			return caperrors.New(caperrors.CodeMissingResolver, msg).AddEntity(entity.Name()).AddPath(cf.Name)
		}

		kind := cf.Kind
		if kind == "" && isNative {
			kind = native.Kind
		}
		if !kind.Valid() {
			return fmt.Errorf("custom filter field '%s' on '%s' has invalid kind '%s'", cf.Name, entity.Name(), cf.Kind)
		}

		shape.addField(FieldShape{
			Name:        cf.Name,
			Kind:        kind,
			Comparators: comparator.ForKind(kind),
			resolver:    resolver,
		})
	}
	return nil
}
