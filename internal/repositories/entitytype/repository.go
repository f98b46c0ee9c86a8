package entitytype

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/capability"
	"github.com/Ramsey-B/thistle/pkg/database"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"
)

// EntityTypeRepository reads stored entity definitions and their capabilities.
type EntityTypeRepository interface {
	List(ctx context.Context) ([]models.EntityType, error)
	GetByKey(ctx context.Context, key string) (*models.EntityType, error)
	LoadEntities(ctx context.Context) ([]models.EntityDefinition, error)
	LoadCapabilities(ctx context.Context, cfg *capability.Config) error
}

// Repository implements EntityTypeRepository over the entity_types table.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "entity_types"

var columns = []string{"id", "key", "name", "description", "schema", "capabilities", "version", "created_at", "updated_at", "deleted_at"}

// List returns every live entity type ordered by key.
func (r *Repository) List(ctx context.Context) ([]models.EntityType, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityTypeRepository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.IsNull("deleted_at"))
	sb.OrderBy("key")

	query, args := sb.Build()

	var items []models.EntityType
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list entity types")
		return nil, fmt.Errorf("failed to list entity types: %w", err)
	}
	return items, nil
}

// GetByKey returns nil when no live entity type has key.
func (r *Repository) GetByKey(ctx context.Context, key string) (*models.EntityType, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityTypeRepository.GetByKey")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("key", key),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var et models.EntityType
	if err := r.db.GetContext(ctx, &et, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get entity type by key")
		return nil, fmt.Errorf("failed to get entity type: %w", err)
	}
	return &et, nil
}

// LoadEntities decodes the schema of every live entity type. An entity without a
// name in its schema takes the entity type's name.
func (r *Repository) LoadEntities(ctx context.Context) ([]models.EntityDefinition, error) {
	items, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	defs := make([]models.EntityDefinition, 0, len(items))
	for _, et := range items {
		def, err := definition(et)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	r.logger.WithContext(ctx).WithField("entity_count", len(defs)).Debug("loaded entity definitions")
	return defs, nil
}

// LoadCapabilities merges the capability document of every live entity type into cfg.
func (r *Repository) LoadCapabilities(ctx context.Context, cfg *capability.Config) error {
	items, err := r.List(ctx)
	if err != nil {
		return err
	}

	for _, et := range items {
		def, err := definition(et)
		if err != nil {
			return err
		}
		if err := cfg.ParseEntityCapabilities(def.Name, et.Capabilities); err != nil {
			return err
		}
	}
	return nil
}

func definition(et models.EntityType) (models.EntityDefinition, error) {
	var def models.EntityDefinition
	if len(et.Schema) > 0 {
		if err := json.Unmarshal(et.Schema, &def); err != nil {
			return def, fmt.Errorf("failed to parse schema of entity type '%s': %w", et.Key, err)
		}
	}
	if def.Name == "" {
		def.Name = et.Name
	}
	return def, nil
}
