// Package capability holds the per-entity, per-operation configuration that
// decides which read plugins are active and what they expose.
package capability

import (
	"encoding/json"
	"fmt"

	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Plugin string

const (
	PluginFilter     Plugin = "filter"
	PluginSort       Plugin = "sort"
	PluginPagination Plugin = "pagination"
	PluginFormat     Plugin = "format"
)

// All is the order plugins contribute arguments to an operation.
var All = []Plugin{PluginFilter, PluginSort, PluginFormat, PluginPagination}

const wildcard = "*"

// FieldSelection is an allow-list of field and relation names. A nil or empty
// selection allows everything; "*" sets the default for unlisted names.
type FieldSelection map[string]bool

func (s FieldSelection) Allows(name string) bool {
	if len(s) == 0 {
		return true
	}
	if allowed, ok := s[name]; ok {
		return allowed
	}
	return s[wildcard]
}

// CustomField is a filter field that does not exist natively on the entity, or
// overrides a native one, and is applied through a resolver.
type CustomField struct {
	Name         string
	Kind         entitygraph.Kind
	ResolverName string
	Resolve      Resolver
}

type PluginConfig struct {
	Enabled      *bool
	Fields       FieldSelection
	CustomFields []CustomField
	MaximumLimit int
	DefaultLimit int
	MaxDepth     int
}

// IsEnabled defaults to true when the flag is absent.
func (c PluginConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type OperationConfig map[Plugin]PluginConfig

// EnumOptions controls enumeration naming for one entity's formattable fields.
type EnumOptions struct {
	Overrides map[string]string
	Ignore    []string
}

func (o EnumOptions) Override(field string) (string, bool) {
	name, ok := o.Overrides[field]
	return name, ok && name != ""
}

func (o EnumOptions) Ignored(field string) bool {
	for _, f := range o.Ignore {
		if f == field {
			return true
		}
	}
	return false
}

type EntityConfig struct {
	Operations map[string]OperationConfig
	Enums      EnumOptions
}

// Config is keyed by entity name. Lookups for unconfigured entities, operations or
// plugins return a zero PluginConfig, which is enabled with all fields allowed.
type Config struct {
	Entities map[string]EntityConfig
	// MaxDepth bounds relation nesting for plugins that do not set their own.
	MaxDepth int
	// MaximumLimit applies to pagination plugins that do not set their own.
	MaximumLimit int
	// DefaultLimit applies to pagination plugins that do not set their own.
	DefaultLimit int
}

func NewConfig() Config {
	return Config{Entities: map[string]EntityConfig{}}
}

func (c Config) For(entity, operation string, plugin Plugin) PluginConfig {
	pc := c.Entities[entity].Operations[operation][plugin]
	if pc.MaxDepth == 0 {
		pc.MaxDepth = c.MaxDepth
	}
	if pc.MaximumLimit == 0 {
		pc.MaximumLimit = c.MaximumLimit
	}
	if pc.DefaultLimit == 0 {
		pc.DefaultLimit = c.DefaultLimit
	}
	return pc
}

func (c Config) Enums(entity string) EnumOptions {
	return c.Entities[entity].Enums
}

// Operations lists the configured operation names of an entity.
func (c Config) Operations(entity string) []string {
	var out []string
	for name := range c.Entities[entity].Operations {
		out = append(out, name)
	}
	return out
}

// Set replaces the configuration of one plugin.
func (c *Config) Set(entity, operation string, plugin Plugin, pc PluginConfig) {
	if c.Entities == nil {
		c.Entities = map[string]EntityConfig{}
	}
	ec := c.Entities[entity]
	if ec.Operations == nil {
		ec.Operations = map[string]OperationConfig{}
	}
	if ec.Operations[operation] == nil {
		ec.Operations[operation] = OperationConfig{}
	}
	ec.Operations[operation][plugin] = pc
	c.Entities[entity] = ec
}

func (c *Config) SetEnums(entity string, opts EnumOptions) {
	if c.Entities == nil {
		c.Entities = map[string]EntityConfig{}
	}
	ec := c.Entities[entity]
	ec.Enums = opts
	c.Entities[entity] = ec
}

// ParseEntityCapabilities decodes a stored capability document into c for entity.
func (c *Config) ParseEntityCapabilities(entity string, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}

	var doc models.EntityCapabilities
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse capabilities of '%s': %w", entity, err)
	}
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("invalid capabilities of '%s': %w", entity, err)
	}

	for operation, ops := range doc.Operations {
		plugins := map[Plugin]*models.PluginDefinition{
			PluginFilter:     ops.Filter,
			PluginSort:       ops.Sort,
			PluginPagination: ops.Pagination,
			PluginFormat:     ops.Format,
		}
		for plugin, def := range plugins {
			if def == nil {
				continue
			}
			c.Set(entity, operation, plugin, pluginFromDefinition(*def))
		}
	}
	c.SetEnums(entity, EnumOptions{
		Overrides: doc.Enums.Overrides,
		Ignore:    doc.Enums.Ignore,
	})
	return nil
}

func pluginFromDefinition(def models.PluginDefinition) PluginConfig {
	pc := PluginConfig{
		Enabled:      def.Enabled,
		Fields:       FieldSelection(def.Fields),
		MaximumLimit: def.MaximumLimit,
		DefaultLimit: def.DefaultLimit,
		MaxDepth:     def.MaxDepth,
	}
	for _, cf := range def.CustomFields {
		pc.CustomFields = append(pc.CustomFields, CustomField{
			Name:         cf.Name,
			Kind:         entitygraph.Kind(cf.Kind),
			ResolverName: cf.Resolver,
		})
	}
	return pc
}

func Bool(b bool) *bool {
	return &b
}
