package enum

import (
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/pkg/capability"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry() *Registry {
	return NewRegistry(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func field(name string, options ...string) entitygraph.Field {
	f := entitygraph.Field{Name: name, Kind: entitygraph.KindText}
	for _, opt := range options {
		f.Formats = append(f.Formats, entitygraph.FormatOption{Name: opt})
	}
	return f
}

func TestForField_Dedup(t *testing.T) {
	registry := newRegistry()
	none := capability.EnumOptions{}

	first, err := registry.ForField("Order", field("status", "UPPERCASE", "LOWERCASE"), none)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "StatusEnum", first.Name)
	assert.Equal(t, []string{"UPPERCASE", "LOWERCASE"}, first.Values)

	second, err := registry.ForField("Order", field("status", "ISO", "DATE"), none)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "OrderStatusEnum", second.Name)

	third, err := registry.ForField("Invoice", field("status", "UPPERCASE", "LOWERCASE"), none)
	require.NoError(t, err)
	require.NotNil(t, third)
	assert.Equal(t, "StatusEnum", third.Name)

	assert.Len(t, registry.All(), 2)
}

func TestForField_SecondCollision(t *testing.T) {
	registry := newRegistry()
	none := capability.EnumOptions{}

	_, err := registry.ForField("Order", field("status", "UPPERCASE"), none)
	require.NoError(t, err)
	_, err = registry.ForField("Order", field("status", "LOWERCASE"), none)
	require.NoError(t, err)

	_, err = registry.ForField("Order", field("status", "TRUNCATE"), none)
	require.Error(t, err)
	assert.ErrorIs(t, err, caperrors.ErrEnumNameCollision)

	reused, err := registry.ForField("Order", field("status", "LOWERCASE"), none)
	require.NoError(t, err)
	assert.Equal(t, "OrderStatusEnum", reused.Name)
}

func TestForField_ValueOrderMatters(t *testing.T) {
	registry := newRegistry()
	none := capability.EnumOptions{}

	_, err := registry.ForField("Order", field("status", "UPPERCASE", "LOWERCASE"), none)
	require.NoError(t, err)

	reordered, err := registry.ForField("Shipment", field("status", "LOWERCASE", "UPPERCASE"), none)
	require.NoError(t, err)
	assert.Equal(t, "ShipmentStatusEnum", reordered.Name)
}

func TestForField_OverrideAndIgnore(t *testing.T) {
	registry := newRegistry()

	_, err := registry.ForField("Order", field("status", "UPPERCASE"), capability.EnumOptions{})
	require.NoError(t, err)

	opts := capability.EnumOptions{
		Overrides: map[string]string{"status": "OrderStatusFormat"},
		Ignore:    []string{"notes"},
	}

	overridden, err := registry.ForField("Order", field("status", "ISO"), opts)
	require.NoError(t, err)
	assert.Equal(t, "OrderStatusFormat", overridden.Name)

	ignored, err := registry.ForField("Order", field("notes", "UPPERCASE"), opts)
	require.NoError(t, err)
	assert.Nil(t, ignored)

	_, ok := registry.Get("NotesEnum")
	assert.False(t, ok)

	shared, err := registry.ForField("Shipment", field("status", "ISO"), capability.EnumOptions{Overrides: map[string]string{"status": "OrderStatusFormat"}})
	require.NoError(t, err)
	assert.Equal(t, "OrderStatusFormat", shared.Name)

	_, err = registry.ForField("Shipment", field("status", "DATE"), capability.EnumOptions{Overrides: map[string]string{"status": "OrderStatusFormat"}})
	assert.ErrorIs(t, err, caperrors.ErrEnumNameCollision)
}

func TestForField_NotFormattable(t *testing.T) {
	registry := newRegistry()
	e, err := registry.ForField("Order", field("total"), capability.EnumOptions{})
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.Empty(t, registry.All())
}

func TestForField_Frozen(t *testing.T) {
	registry := newRegistry()
	_, err := registry.ForField("Order", field("status", "UPPERCASE"), capability.EnumOptions{})
	require.NoError(t, err)

	registry.Freeze()
	assert.True(t, registry.Frozen())

	reused, err := registry.ForField("Invoice", field("status", "UPPERCASE"), capability.EnumOptions{})
	require.NoError(t, err)
	assert.Equal(t, "StatusEnum", reused.Name)

	_, err = registry.ForField("Order", field("name", "LOWERCASE"), capability.EnumOptions{})
	assert.ErrorIs(t, err, caperrors.ErrRegistryFrozen)
}

func TestRegistries_AreIndependent(t *testing.T) {
	a := newRegistry()
	b := newRegistry()

	_, err := a.ForField("Order", field("status", "UPPERCASE"), capability.EnumOptions{})
	require.NoError(t, err)

	e, err := b.ForField("Order", field("status", "LOWERCASE"), capability.EnumOptions{})
	require.NoError(t, err)
	assert.Equal(t, "StatusEnum", e.Name)
}
