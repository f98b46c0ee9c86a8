package capability

import (
	"encoding/json"
	"testing"

	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSelection_Allows(t *testing.T) {
	tests := []struct {
		name      string
		selection FieldSelection
		field     string
		expected  bool
	}{
		{"nil allows all", nil, "status", true},
		{"listed true", FieldSelection{"status": true}, "status", true},
		{"unlisted excluded", FieldSelection{"status": true}, "total", false},
		{"wildcard", FieldSelection{"*": true}, "total", true},
		{"explicit false beats wildcard", FieldSelection{"*": true, "total": false}, "total", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.selection.Allows(tt.field))
		})
	}
}

func TestConfig_For(t *testing.T) {
	cfg := NewConfig()
	cfg.MaxDepth = 3
	cfg.MaximumLimit = 50
	cfg.Set("Order", "list", PluginPagination, PluginConfig{MaximumLimit: 10})
	cfg.Set("Order", "list", PluginSort, PluginConfig{Enabled: Bool(false)})

	pagination := cfg.For("Order", "list", PluginPagination)
	assert.Equal(t, 10, pagination.MaximumLimit)
	assert.Equal(t, 3, pagination.MaxDepth)
	assert.True(t, pagination.IsEnabled())

	assert.False(t, cfg.For("Order", "list", PluginSort).IsEnabled())

	unconfigured := cfg.For("Customer", "list", PluginFilter)
	assert.True(t, unconfigured.IsEnabled())
	assert.Equal(t, 50, unconfigured.MaximumLimit)
}

func TestConfig_ParseEntityCapabilities(t *testing.T) {
	raw := json.RawMessage(`{
		"operations": {
			"list": {
				"filter": {"fields": {"*": true, "email": false}, "custom_fields": [{"name": "hasOrders", "kind": "boolean", "resolver": "customerHasOrders"}]},
				"pagination": {"maximum_limit": 25, "default_limit": 10},
				"format": {"enabled": false}
			}
		},
		"enums": {"overrides": {"name": "CustomerNameFormat"}, "ignore": ["email"]}
	}`)

	cfg := NewConfig()
	require.NoError(t, cfg.ParseEntityCapabilities("Customer", raw))

	filter := cfg.For("Customer", "list", PluginFilter)
	assert.False(t, filter.Fields.Allows("email"))
	assert.True(t, filter.Fields.Allows("name"))
	require.Len(t, filter.CustomFields, 1)
	assert.Equal(t, entitygraph.KindBoolean, filter.CustomFields[0].Kind)
	assert.Equal(t, "customerHasOrders", filter.CustomFields[0].ResolverName)

	assert.Equal(t, 25, cfg.For("Customer", "list", PluginPagination).MaximumLimit)
	assert.False(t, cfg.For("Customer", "list", PluginFormat).IsEnabled())

	name, ok := cfg.Enums("Customer").Override("name")
	assert.True(t, ok)
	assert.Equal(t, "CustomerNameFormat", name)
	assert.True(t, cfg.Enums("Customer").Ignored("email"))
}

func TestConfig_ParseEntityCapabilities_Invalid(t *testing.T) {
	cfg := NewConfig()
	err := cfg.ParseEntityCapabilities("Customer", json.RawMessage(`{"operations": {"list": {"pagination": {"maximum_limit": -1}}}}`))
	assert.Error(t, err)
}

func TestResolverRegistry(t *testing.T) {
	registry := NewResolverRegistry()
	noop := func(base query.Query, _ Arguments, _ ResolverContext) (query.Query, error) { return base, nil }

	require.NoError(t, registry.Register("noop", noop))
	assert.Error(t, registry.Register("noop", noop))
	assert.Error(t, registry.Register("", noop))

	_, ok := registry.Lookup(CustomField{Name: "x", ResolverName: "noop"})
	assert.True(t, ok)

	_, ok = registry.Lookup(CustomField{Name: "x", ResolverName: "missing"})
	assert.False(t, ok)

	_, ok = registry.Lookup(CustomField{Name: "x", Resolve: noop})
	assert.True(t, ok)
}
