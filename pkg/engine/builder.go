// Package engine assembles read operations from the capability plugins active
// for an entity and executes read requests against a data store.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/capability"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/enum"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/Ramsey-B/thistle/pkg/filter"
	"github.com/Ramsey-B/thistle/pkg/format"
	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/pagination"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/Ramsey-B/thistle/pkg/sorting"
)

// DefaultOperation is built for entities without configured operations.
const DefaultOperation = "read"

// Builder builds read operations during the build phase. Call Finish once every
// operation is built; the enumeration registry is read-only afterwards.
type Builder struct {
	graph   *entitygraph.Graph
	config  capability.Config
	enums   *enum.Registry
	formats *format.Registry
	store   query.DataStore
	logger  ectologger.Logger

	filters *filter.Builder
	sorts   *sorting.Builder

	mu         sync.RWMutex
	operations map[string]*ReadOperation
}

func NewBuilder(
	graph *entitygraph.Graph,
	config capability.Config,
	resolvers *capability.ResolverRegistry,
	enums *enum.Registry,
	formats *format.Registry,
	store query.DataStore,
	logger ectologger.Logger,
) *Builder {
	return &Builder{
		graph:      graph,
		config:     config,
		enums:      enums,
		formats:    formats,
		store:      store,
		logger:     logger,
		filters:    filter.NewBuilder(graph, config, resolvers, logger),
		sorts:      sorting.NewBuilder(graph, config, logger),
		operations: map[string]*ReadOperation{},
	}
}

func operationKey(entity, operation string) string {
	return entity + "/" + operation
}

// Build returns the read operation of entity named operation, building it on
// first use.
func (b *Builder) Build(entity, operation string) (*ReadOperation, error) {
	key := operationKey(entity, operation)

	b.mu.Lock()
	defer b.mu.Unlock()
	if op, ok := b.operations[key]; ok {
		return op, nil
	}

	op, err := b.build(entity, operation)
	if err != nil {
		metrics.RecordOperationBuilt(entity, operation, "error")
		return nil, err
	}
	metrics.RecordOperationBuilt(entity, operation, "success")

	b.logger.WithFields(map[string]any{
		"entity":    entity,
		"operation": operation,
		"plugins":   op.Plugins(),
	}).Debug("built read operation")

	b.operations[key] = op
	return op, nil
}

func (b *Builder) build(entityName, operation string) (*ReadOperation, error) {
	entity, ok := b.graph.Entity(entityName)
	if !ok {
		return nil, caperrors.New(caperrors.CodeUnknownEntity, "entity is not in the graph").AddEntity(entityName)
	}

	op := &ReadOperation{
		Entity:    entityName,
		Name:      operation,
		entity:    entity,
		formats:   b.formats,
		store:     b.store,
		logger:    b.logger,
		formatted: map[string]*enum.Enumeration{},
	}

	if b.config.For(entityName, operation, capability.PluginFilter).IsEnabled() {
		shape, err := b.filters.Build(entityName, operation)
		if err != nil {
			return nil, err
		}
		op.filter = shape
	}

	if b.config.For(entityName, operation, capability.PluginSort).IsEnabled() {
		shape, err := b.sorts.Build(entityName, operation)
		if err != nil {
			return nil, err
		}
		op.sort = shape
	}

	if pc := b.config.For(entityName, operation, capability.PluginFormat); pc.IsEnabled() {
		op.formatEnabled = true
		for _, field := range entity.FormattableFields() {
			if !pc.Fields.Allows(field.Name) {
				continue
			}
			e, err := b.enums.ForField(entityName, field, b.config.Enums(entityName))
			if err != nil {
				return nil, err
			}
			if e != nil {
				op.formatted[field.Name] = e
			}
		}
	}

	if pc := b.config.For(entityName, operation, capability.PluginPagination); pc.IsEnabled() {
		op.paginator = pagination.NewPaginator(b.store, pc, b.logger)
	}

	return op, nil
}

// BuildAll builds every configured operation of every entity, or the default
// operation for entities with none configured. It stops at the first failure.
func (b *Builder) BuildAll() error {
	for _, entity := range b.graph.Entities() {
		operations := b.config.Operations(entity.Name())
		if len(operations) == 0 {
			operations = []string{DefaultOperation}
		}
		sort.Strings(operations)

		for _, operation := range operations {
			if _, err := b.Build(entity.Name(), operation); err != nil {
				return fmt.Errorf("failed to build %s.%s: %w", entity.Name(), operation, err)
			}
		}
	}
	return nil
}

// Finish ends the build phase.
func (b *Builder) Finish() {
	b.enums.Freeze()

	b.mu.RLock()
	defer b.mu.RUnlock()
	b.logger.WithFields(map[string]any{
		"operations":   len(b.operations),
		"enumerations": len(b.enums.All()),
	}).Info("read operations built")
}

// Operation returns a previously built operation.
func (b *Builder) Operation(entity, operation string) (*ReadOperation, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	op, ok := b.operations[operationKey(entity, operation)]
	return op, ok
}

// Operations lists the built operations ordered by entity and name.
func (b *Builder) Operations() []*ReadOperation {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.operations))
	for key := range b.operations {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return ectolinq.Map(keys, func(key string) *ReadOperation {
		return b.operations[key]
	})
}

func (b *Builder) Enumerations() []enum.Enumeration {
	return b.enums.All()
}
