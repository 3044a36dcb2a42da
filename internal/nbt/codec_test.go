package nbt_test

import (
	"testing"

	"github.com/ViaSnake/mcaselector/internal/nbt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChunk() *nbt.Compound {
	level := nbt.NewCompound()
	level.Put("LastUpdate", nbt.Long(123456))
	level.Put("InhabitedTime", nbt.Long(-1))
	level.Put("Status", nbt.String("full"))

	sections := &nbt.List{}
	for y := int8(-4); y < 0; y++ {
		s := nbt.NewCompound()
		s.Put("Y", nbt.Byte(y))
		s.Put("BlockStates", nbt.LongArray{1, -2, 1 << 40})
		s.Put("SkyLight", nbt.ByteArray{0, 1, 2, 255})
		_ = sections.Append(s)
	}
	level.Put("Sections", sections)
	level.Put("Biomes", nbt.IntArray{1, 2, 3})
	level.Put("Empty", &nbt.List{Elem: nbt.TagString})

	root := nbt.NewCompound()
	root.Put("DataVersion", nbt.Int(1343))
	root.Put("Level", level)
	root.Put("Scale", nbt.Float(0.5))
	root.Put("Ratio", nbt.Double(-2.25))
	root.Put("Height", nbt.Short(384))
	return root
}

func TestEncodeDecode_PreservesTree(t *testing.T) {
	root := sampleChunk()

	data, err := nbt.Encode("", root)
	require.NoError(t, err)

	name, decoded, err := nbt.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "", name)
	assert.Equal(t, root.Keys(), decoded.Keys())
	assert.Equal(t, root, decoded)

	// re-encoding a decoded tree is byte-identical
	again, err := nbt.Encode("", decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestEncodeDecode_ModifiedUTF8(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"ascii", "minecraft:full"},
		{"nul", "a\x00b"},
		{"two byte", "grüße"},
		{"supplementary", "chunk \U0001F600"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := nbt.NewCompound()
			root.Put("s", nbt.String(tt.value))

			data, err := nbt.Encode(tt.value, root)
			require.NoError(t, err)
			assert.NotContains(t, string(data[3:]), "\x00b", "NUL must not be stored as a single zero byte")

			name, decoded, err := nbt.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.value, name)
			got, ok := decoded.GetString("s")
			require.True(t, ok)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	valid, err := nbt.Encode("", sampleChunk())
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not a compound", []byte{byte(nbt.TagInt), 0, 0, 0, 0, 0, 1}},
		{"truncated", valid[:len(valid)/2]},
		{"negative array length", []byte{10, 0, 0, 7, 0, 1, 'a', 0xFF, 0xFF, 0xFF, 0xFF, 0}},
		{"oversized array length", []byte{10, 0, 0, 11, 0, 1, 'a', 0x7F, 0xFF, 0xFF, 0xFF, 0}},
		{"unknown tag", []byte{10, 0, 0, 99, 0, 1, 'a', 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := nbt.Decode(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestDecode_DepthLimit(t *testing.T) {
	// root compound followed by nested compounds named "a"
	data := []byte{10, 0, 0}
	for i := 0; i < nbt.MaxDepth+1; i++ {
		data = append(data, 10, 0, 1, 'a')
	}
	for i := 0; i < nbt.MaxDepth+2; i++ {
		data = append(data, 0)
	}

	_, _, err := nbt.Decode(data)
	assert.ErrorIs(t, err, nbt.ErrTooDeep)
}

func TestCompound_PutRemoveCopy(t *testing.T) {
	c := nbt.NewCompound()
	c.Put("a", nbt.Int(1))
	c.Put("b", nbt.Int(2))
	c.Put("a", nbt.Int(3))
	assert.Equal(t, []string{"a", "b"}, c.Keys())

	v, ok := c.GetInt("a")
	require.True(t, ok)
	assert.Equal(t, int32(3), v)

	_, ok = c.GetLong("a")
	assert.False(t, ok, "type mismatch reads as absent")

	cp := c.Copy()
	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Equal(t, []string{"b"}, c.Keys())
	assert.Equal(t, 2, cp.Len())
}

func TestList_AppendRejectsMixedTypes(t *testing.T) {
	l := &nbt.List{}
	require.NoError(t, l.Append(nbt.Int(1)))
	assert.Error(t, l.Append(nbt.String("x")))
	assert.Equal(t, nbt.TagInt, l.Elem)
}
