package comparator

import (
	"math"
	"testing"
	"time"

	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	caperrors "github.com/Ramsey-B/thistle/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForKind(t *testing.T) {
	tests := []struct {
		kind     entitygraph.Kind
		expected []Comparator
	}{
		{entitygraph.KindText, []Comparator{Eq, Ne, Contains, In, StartsWith, EndsWith}},
		{entitygraph.KindID, []Comparator{Eq, Ne, Contains, In, StartsWith, EndsWith}},
		{entitygraph.KindInteger, []Comparator{Eq, Ne, Gt, Lt, Gte, Lte, In}},
		{entitygraph.KindDecimal, []Comparator{Eq, Ne, Gt, Lt, Gte, Lte, In}},
		{entitygraph.KindFloat, []Comparator{Eq, Ne, Gt, Lt, Gte, Lte, In}},
		{entitygraph.KindDate, []Comparator{Eq, Ne, Gt, Lt, Gte, Lte, In}},
		{entitygraph.KindTime, []Comparator{Eq, Ne, Gt, Lt, Gte, Lte, In}},
		{entitygraph.KindDateTime, []Comparator{Eq, Ne, Gt, Lt, Gte, Lte, In}},
		{entitygraph.KindBoolean, []Comparator{Eq, Ne}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, ForKind(tt.kind))
		})
	}
}

func TestParse(t *testing.T) {
	c, ok := Parse("startswith")
	assert.True(t, ok)
	assert.Equal(t, StartsWith, c)

	_, ok = Parse("like")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	t.Run("integer from json number", func(t *testing.T) {
		v, err := Normalize(Gt, entitygraph.KindInteger, float64(3))
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
	})

	t.Run("fractional integer rejected", func(t *testing.T) {
		_, err := Normalize(Eq, entitygraph.KindInteger, 3.5)
		assert.ErrorIs(t, err, caperrors.ErrInvalidFilterValue)
	})

	t.Run("integer from unsigned widths", func(t *testing.T) {
		for _, value := range []any{uint8(5), uint16(5), uint32(5), uint64(5), uint(5)} {
			v, err := Normalize(Eq, entitygraph.KindInteger, value)
			require.NoError(t, err, "%T", value)
			assert.Equal(t, int64(5), v)
		}
	})

	t.Run("unsigned overflow rejected", func(t *testing.T) {
		_, err := Normalize(Eq, entitygraph.KindInteger, uint64(math.MaxUint64))
		assert.ErrorIs(t, err, caperrors.ErrInvalidFilterValue)
	})

	t.Run("decimal from narrow ints", func(t *testing.T) {
		for _, value := range []any{int8(2), int16(2), uint8(2), uint16(2)} {
			v, err := Normalize(Gt, entitygraph.KindDecimal, value)
			require.NoError(t, err, "%T", value)
			assert.Equal(t, float64(2), v)
		}
	})

	t.Run("decimal from int", func(t *testing.T) {
		v, err := Normalize(Lte, entitygraph.KindDecimal, 10)
		require.NoError(t, err)
		assert.Equal(t, float64(10), v)
	})

	t.Run("date from string", func(t *testing.T) {
		v, err := Normalize(Gte, entitygraph.KindDate, "2024-03-01")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), v)
	})

	t.Run("in requires list", func(t *testing.T) {
		_, err := Normalize(In, entitygraph.KindText, "open")
		assert.ErrorIs(t, err, caperrors.ErrInvalidFilterValue)
	})

	t.Run("in normalizes items", func(t *testing.T) {
		v, err := Normalize(In, entitygraph.KindInteger, []any{float64(1), 2})
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), int64(2)}, v)
	})

	t.Run("typed slice accepted for in", func(t *testing.T) {
		v, err := Normalize(In, entitygraph.KindText, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, v)
	})

	t.Run("contains on integer is an invalid comparator", func(t *testing.T) {
		_, err := Normalize(Contains, entitygraph.KindInteger, "1")
		assert.ErrorIs(t, err, caperrors.ErrInvalidComparator)
	})

	t.Run("nil only for eq and ne", func(t *testing.T) {
		v, err := Normalize(Eq, entitygraph.KindText, nil)
		require.NoError(t, err)
		assert.Nil(t, v)

		_, err = Normalize(Gt, entitygraph.KindInteger, nil)
		assert.ErrorIs(t, err, caperrors.ErrInvalidFilterValue)
	})

	t.Run("boolean type mismatch", func(t *testing.T) {
		_, err := Normalize(Eq, entitygraph.KindBoolean, "true")
		assert.ErrorIs(t, err, caperrors.ErrInvalidFilterValue)
	})
}
