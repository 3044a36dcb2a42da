package version_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/nbt"
	"github.com/ViaSnake/mcaselector/internal/testutil"
	"github.com/ViaSnake/mcaselector/internal/version"
)

func TestRegistry_ResolveDefaults(t *testing.T) {
	reg := version.Default()

	tests := []struct {
		dataVersion int32
		layout      string
	}{
		{0, "legacy"},
		{100, "legacy"},
		{1343, "legacy"},
		{2843, "legacy"},
		{2844, "flat"},
		{3000, "flat"},
		{math.MaxInt32, "flat"},
	}

	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			first, err := reg.Resolve(tt.dataVersion)
			require.NoError(t, err)
			assert.Equal(t, tt.layout, first.Name())

			// resolution is deterministic
			for i := 0; i < 3; i++ {
				again, err := reg.Resolve(tt.dataVersion)
				require.NoError(t, err)
				assert.Same(t, first, again)
			}
		})
	}
}

func TestRegistry_ResolveOutsideRanges(t *testing.T) {
	reg, err := version.NewRegistry([]version.Range{
		{Min: 100, Max: 199, Layout: "legacy"},
		{Min: 300, Max: 399, Layout: "flat"},
	})
	require.NoError(t, err)

	for _, v := range []int32{-1, 0, 99, 200, 250, 299, 400, math.MaxInt32} {
		_, err := reg.Resolve(v)
		require.Error(t, err, "version %d", v)
		assert.Equal(t, errors.ErrCodeVersionResolution, errors.GetCode(err))

		var coded *errors.Error
		require.ErrorAs(t, err, &coded)
		assert.Equal(t, v, coded.Details["data_version"])
	}

	for _, v := range []int32{100, 150, 199, 300, 399} {
		_, err := reg.Resolve(v)
		assert.NoError(t, err, "version %d", v)
	}
}

func TestNewRegistry_RejectsBadConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		ranges []version.Range
	}{
		{"empty", nil},
		{"inverted", []version.Range{{Min: 10, Max: 5, Layout: "flat"}}},
		{"unknown layout", []version.Range{{Min: 0, Max: 5, Layout: "anvil"}}},
		{"overlap", []version.Range{
			{Min: 0, Max: 2844, Layout: "legacy"},
			{Min: 2844, Max: 4000, Layout: "flat"},
		}},
		{"overlap unsorted", []version.Range{
			{Min: 500, Max: 900, Layout: "flat"},
			{Min: 0, Max: 100, Layout: "legacy"},
			{Min: 50, Max: 60, Layout: "legacy"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := version.NewRegistry(tt.ranges)
			assert.Nil(t, reg)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeFilterConfiguration, errors.GetCode(err))
		})
	}
}

func TestRegistry_Ranges(t *testing.T) {
	reg, err := version.NewRegistry([]version.Range{
		{Min: 3000, Max: 4000, Layout: "FLAT"},
		{Min: 0, Max: 10, Layout: "legacy"},
	})
	require.NoError(t, err)

	ranges := reg.Ranges()
	require.Len(t, ranges, 2)
	assert.Equal(t, int32(0), ranges[0].Min)
	assert.Equal(t, int32(3000), ranges[1].Min)
}

func TestAdapter_GetSet(t *testing.T) {
	legacy, _ := version.Layout("legacy")
	flat, _ := version.Layout("flat")

	t.Run("legacy reads under Level", func(t *testing.T) {
		root := testutil.LegacyTree(1343, 123, 456, "full")
		v, ok := legacy.GetLong(root, version.LastUpdate)
		assert.True(t, ok)
		assert.Equal(t, int64(123), v)

		s, ok := legacy.GetString(root, version.Status)
		assert.True(t, ok)
		assert.Equal(t, "full", s)

		_, ok = legacy.Get(root, version.YPos)
		assert.False(t, ok)
		assert.False(t, legacy.Supports(version.YPos))
	})

	t.Run("flat reads at root", func(t *testing.T) {
		root := testutil.FlatTree(3465, 1, 2, "minecraft:full", -4)
		y, ok := flat.GetInt(root, version.YPos)
		assert.True(t, ok)
		assert.Equal(t, int32(-4), y)

		// the legacy layout finds nothing in a flat tree
		_, ok = legacy.GetLong(root, version.InhabitedTime)
		assert.False(t, ok)
	})

	t.Run("wrong tag type is absent", func(t *testing.T) {
		root := nbt.NewCompound()
		root.Put("LastUpdate", nbt.Int(5))
		_, ok := flat.GetLong(root, version.LastUpdate)
		assert.False(t, ok)
	})

	t.Run("set creates intermediate compounds", func(t *testing.T) {
		root := nbt.NewCompound()
		require.NoError(t, legacy.Set(root, version.InhabitedTime, nbt.Long(5000)))
		v, ok := legacy.GetLong(root, version.InhabitedTime)
		assert.True(t, ok)
		assert.Equal(t, int64(5000), v)
	})

	t.Run("set unsupported attribute", func(t *testing.T) {
		err := legacy.Set(nbt.NewCompound(), version.YPos, nbt.Int(1))
		assert.Equal(t, errors.ErrCodeChunkEdit, errors.GetCode(err))
	})

	t.Run("set wrong type", func(t *testing.T) {
		err := flat.Set(nbt.NewCompound(), version.LastUpdate, nbt.String("x"))
		assert.Equal(t, errors.ErrCodeChunkEdit, errors.GetCode(err))
	})

	t.Run("set through non-compound", func(t *testing.T) {
		root := nbt.NewCompound()
		root.Put("Level", nbt.Int(1))
		err := legacy.Set(root, version.LastUpdate, nbt.Long(1))
		assert.Equal(t, errors.ErrCodeChunkEdit, errors.GetCode(err))
	})

	t.Run("nil tree", func(t *testing.T) {
		_, ok := flat.Get(nil, version.LastUpdate)
		assert.False(t, ok)
		assert.Error(t, flat.Set(nil, version.LastUpdate, nbt.Long(1)))
	})
}

func TestChunkDataVersion(t *testing.T) {
	assert.Equal(t, int32(0), version.ChunkDataVersion(testutil.LegacyTree(0, 1, 2, "full")))
	assert.Equal(t, int32(3465), version.ChunkDataVersion(testutil.FlatTree(3465, 1, 2, "full", 0)))
}
