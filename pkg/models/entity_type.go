package models

import (
	"encoding/json"
	"time"
)

// EntityType is a stored entity definition row. Schema holds an EntityDefinition and
// Capabilities holds the per-operation plugin configuration for the entity.
type EntityType struct {
	ID           string          `json:"id" db:"id"`
	Key          string          `json:"key" db:"key" validate:"required"`
	Name         string          `json:"name" db:"name" validate:"required"`
	Description  string          `json:"description,omitempty" db:"description"`
	Schema       json.RawMessage `json:"schema" db:"schema"`
	Capabilities json.RawMessage `json:"capabilities,omitempty" db:"capabilities"`
	Version      int             `json:"version" db:"version"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

// EntityDefinition describes one entity: its scalar fields and its relations.
type EntityDefinition struct {
	Name      string               `json:"name" validate:"required"`
	Table     string               `json:"table,omitempty"` // defaults to the entity name
	Label     string               `json:"label,omitempty"` // graph node label, defaults to the entity name
	Fields    []FieldDefinition    `json:"fields" validate:"dive"`
	Relations []RelationDefinition `json:"relations,omitempty" validate:"dive"`
}

// FieldDefinition defines a single scalar field
type FieldDefinition struct {
	Name    string             `json:"name" validate:"required"`
	Kind    string             `json:"kind" validate:"required,oneof=text integer decimal float date time datetime boolean id"`
	Column  string             `json:"column,omitempty"`
	Formats []FormatDefinition `json:"formats,omitempty" validate:"dive"`
}

// FormatDefinition is one format option a field supports, e.g. TRUNCATE with a "limit" argument.
type FormatDefinition struct {
	Name      string                     `json:"name" validate:"required"`
	Arguments []FormatArgumentDefinition `json:"arguments,omitempty" validate:"dive"`
}

type FormatArgumentDefinition struct {
	Name     string `json:"name" validate:"required"`
	Kind     string `json:"kind" validate:"required,oneof=text integer decimal float date time datetime boolean id"`
	Required bool   `json:"required,omitempty"`
}

// RelationDefinition references a target entity by name.
type RelationDefinition struct {
	Name        string             `json:"name" validate:"required"`
	Target      string             `json:"target" validate:"required"`
	Cardinality string             `json:"cardinality" validate:"required,oneof=to_one to_many"`
	LocalKey    string             `json:"local_key,omitempty"`
	ForeignKey  string             `json:"foreign_key,omitempty"`
	Through     *ThroughDefinition `json:"through,omitempty"`
	EdgeType    string             `json:"edge_type,omitempty"` // graph relationship type, defaults to SCREAMING_SNAKE of Name
}

// ThroughDefinition is the join table of a many-to-many relation.
type ThroughDefinition struct {
	Table     string `json:"table" validate:"required"`
	SourceKey string `json:"source_key" validate:"required"`
	TargetKey string `json:"target_key" validate:"required"`
}
