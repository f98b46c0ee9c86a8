package models

// EntityCapabilities is the stored capability document of one entity, keyed by
// operation name (e.g. "list", "search").
type EntityCapabilities struct {
	Operations map[string]OperationCapabilities `json:"operations" validate:"dive"`
	Enums      EnumDefinition                   `json:"enums,omitempty"`
}

type OperationCapabilities struct {
	Filter     *PluginDefinition `json:"filter,omitempty"`
	Sort       *PluginDefinition `json:"sort,omitempty"`
	Pagination *PluginDefinition `json:"pagination,omitempty"`
	Format     *PluginDefinition `json:"format,omitempty"`
}

type PluginDefinition struct {
	Enabled      *bool                   `json:"enabled,omitempty"`
	Fields       map[string]bool         `json:"fields,omitempty"`
	CustomFields []CustomFieldDefinition `json:"custom_fields,omitempty" validate:"dive"`
	MaximumLimit int                     `json:"maximum_limit,omitempty" validate:"min=0"`
	DefaultLimit int                     `json:"default_limit,omitempty" validate:"min=0"`
	MaxDepth     int                     `json:"max_depth,omitempty" validate:"min=0"`
}

// CustomFieldDefinition declares a filter field resolved by a named hook.
type CustomFieldDefinition struct {
	Name     string `json:"name" validate:"required"`
	Kind     string `json:"kind" validate:"required,oneof=text integer decimal float date time datetime boolean id"`
	Resolver string `json:"resolver,omitempty"`
}

// EnumDefinition holds enumeration name overrides (field -> enum name) and ignored fields.
type EnumDefinition struct {
	Overrides map[string]string `json:"overrides,omitempty"`
	Ignore    []string          `json:"ignore,omitempty"`
}
