package region_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/nbt"
	"github.com/ViaSnake/mcaselector/internal/storage/region"
	"github.com/ViaSnake/mcaselector/internal/testutil"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		path  string
		x, z  int
		valid bool
	}{
		{"r.0.0.mca", 0, 0, true},
		{"/world/region/r.-1.12.mca", -1, 12, true},
		{"r.1.mca", 0, 0, false},
		{"r.a.b.mca", 0, 0, false},
		{"c.1.2.mcc", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			x, z, ok := region.ParseName(tt.path)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.x, x)
			assert.Equal(t, tt.z, z)
		})
	}
}

func TestCompression_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("minecraft:stone "), 4000)

	for _, ct := range []model.CompressionType{
		model.CompressionGZip,
		model.CompressionZlib,
		model.CompressionNone,
		model.CompressionLZ4,
	} {
		t.Run(fmt.Sprintf("type-%d", ct), func(t *testing.T) {
			enc, err := region.Compress(ct, data)
			require.NoError(t, err)

			dec, err := region.Decompress(ct, enc)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, dec))
		})
	}

	_, err := region.Compress(9, data)
	assert.Error(t, err)
	_, err = region.Decompress(9, data)
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name    string
		want    model.CompressionType
		wantErr bool
	}{
		{"", 0, false},
		{"keep", 0, false},
		{"gzip", model.CompressionGZip, false},
		{"zlib", model.CompressionZlib, false},
		{"none", model.CompressionNone, false},
		{"lz4", model.CompressionLZ4, false},
		{"zstd", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := region.ParseCompression(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	legacy := testutil.Chunk(0, 0, testutil.LegacyTree(1343, 100, 200, "full"))
	flat := testutil.Chunk(31, 31, testutil.FlatTree(3465, 300, 400, "minecraft:full", -4))
	flat.Compression = model.CompressionLZ4
	gz := testutil.Chunk(5, 7, testutil.FlatTree(3000, 1, 2, "minecraft:features", 0))
	gz.Compression = model.CompressionGZip

	path := testutil.WriteRegion(t, dir, -1, 2, legacy, flat, gz)
	assert.Equal(t, "r.-1.2.mca", filepath.Base(path))

	c, err := region.Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1, c.RegionX)
	assert.Equal(t, 2, c.RegionZ)
	assert.Equal(t, 3, c.Occupied())

	got := c.Chunk(model.ChunkCoord{X: 31, Z: 31})
	require.NotNil(t, got)
	assert.Equal(t, int32(3465), got.DataVersion)
	assert.Equal(t, model.CompressionLZ4, got.Compression)
	assert.Equal(t, uint32(1700000000), got.Timestamp)
	assert.Equal(t, flat.Data, got.Data)

	got = c.Chunk(model.ChunkCoord{X: 0, Z: 0})
	require.NotNil(t, got)
	assert.Equal(t, int32(1343), got.DataVersion)
	assert.Equal(t, model.CompressionZlib, got.Compression)
	assert.Equal(t, legacy.Data, got.Data)

	got = c.Chunk(model.ChunkCoord{X: 5, Z: 7})
	require.NotNil(t, got)
	assert.Equal(t, model.CompressionGZip, got.Compression)

	assert.Nil(t, c.Chunk(model.ChunkCoord{X: 1, Z: 0}))

	// no temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEncode_CleanChunksKeepPayload(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteRegion(t, dir, 0, 0,
		testutil.Chunk(1, 1, testutil.FlatTree(3465, 10, 20, "full", 0)))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	c, err := region.Load(path)
	require.NoError(t, err)
	img, err := region.Encode(c, region.EncodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, before, img.Data)
}

func TestEncode_DirtyChunkIsStamped(t *testing.T) {
	ch := testutil.Chunk(2, 3, testutil.FlatTree(3465, 10, 20, "full", 0))
	ch.MarkDirty()
	c := testutil.Container("r.0.0.mca", ch)

	now := time.Unix(1800000000, 0)
	img, err := region.Encode(c, region.EncodeOptions{Now: now})
	require.NoError(t, err)

	idx := ch.Coord.Index()
	assert.Equal(t, uint32(now.Unix()), binary.BigEndian.Uint32(img.Data[region.SectorSize+idx*4:]))
	assert.Equal(t, uint32(2<<8|1), binary.BigEndian.Uint32(img.Data[idx*4:]))
	assert.Zero(t, len(img.Data)%region.SectorSize)
}

func TestEncode_ForcedCompression(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteRegion(t, dir, 0, 0,
		testutil.Chunk(0, 0, testutil.FlatTree(3465, 10, 20, "full", 0)))

	c, err := region.Load(path)
	require.NoError(t, err)
	img, err := region.Encode(c, region.EncodeOptions{Compression: model.CompressionLZ4})
	require.NoError(t, err)
	require.NoError(t, region.Save(path, img, region.SaveOptions{}))

	c, err = region.Load(path)
	require.NoError(t, err)
	assert.Equal(t, model.CompressionLZ4, c.Chunk(model.ChunkCoord{}).Compression)
}

func TestSave_OversizedChunkGoesExternal(t *testing.T) {
	dir := t.TempDir()

	big := testutil.FlatTree(3465, 1, 2, "full", 0)
	big.Put("Blob", nbt.ByteArray(bytes.Repeat([]byte{0x5A}, region.MaxInlineSectors*region.SectorSize+1)))
	ch := testutil.Chunk(3, 4, big)
	ch.Compression = model.CompressionNone

	path := testutil.WriteRegion(t, dir, 1, -1, ch)
	ext := filepath.Join(dir, region.ExternalName(32+3, -32+4))
	require.FileExists(t, ext)

	c, err := region.Load(path)
	require.NoError(t, err)
	got := c.Chunk(model.ChunkCoord{X: 3, Z: 4})
	require.NotNil(t, got)
	assert.True(t, got.External)
	assert.Equal(t, model.CompressionNone, got.Compression)
	assert.Equal(t, big, got.Data)

	// shrinking the chunk brings it back inline and drops the .mcc
	got.Data.Remove("Blob")
	got.MarkDirty()
	img, err := region.Encode(c, region.EncodeOptions{})
	require.NoError(t, err)
	require.NoError(t, region.Save(path, img, region.SaveOptions{}))
	assert.NoFileExists(t, ext)

	c, err = region.Load(path)
	require.NoError(t, err)
	assert.False(t, c.Chunk(model.ChunkCoord{X: 3, Z: 4}).External)
}

func oversizedTree(lastUpdate int64) *nbt.Compound {
	root := testutil.FlatTree(3465, lastUpdate, 2, "full", 0)
	root.Put("Blob", nbt.ByteArray(bytes.Repeat([]byte{0x5A}, region.MaxInlineSectors*region.SectorSize+1)))
	return root
}

// failAfter lets n throttle calls through and fails every later one
func failAfter(n int) region.SaveOptions {
	var calls int
	return region.SaveOptions{Throttle: func(int) error {
		calls++
		if calls > n {
			return os.ErrDeadlineExceeded
		}
		return nil
	}}
}

func externalBlocks(img *region.Image) int {
	var n int
	for _, b := range img.External {
		n += (len(b) + 64<<10 - 1) / (64 << 10)
	}
	return n
}

func TestSave_FailedRegionWriteKeepsPreviousContainer(t *testing.T) {
	tests := []struct {
		name          string
		initial       *nbt.Compound
		wantExternal  bool
		wantFileCount int
	}{
		{"replaced external chunk", oversizedTree(111), true, 2},
		{"new external chunk", testutil.FlatTree(3465, 111, 2, "full", 0), false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			ch := testutil.Chunk(3, 4, tt.initial)
			ch.Compression = model.CompressionNone
			path := testutil.WriteRegion(t, dir, 0, 0, ch)
			ext := filepath.Join(dir, region.ExternalName(3, 4))
			before, _ := os.ReadFile(ext)

			c, err := region.Load(path)
			require.NoError(t, err)
			got := c.Chunk(model.ChunkCoord{X: 3, Z: 4})
			got.Data = oversizedTree(999)
			got.MarkDirty()
			img, err := region.Encode(c, region.EncodeOptions{})
			require.NoError(t, err)
			require.Contains(t, img.External, region.ExternalName(3, 4))

			err = region.Save(path, img, failAfter(externalBlocks(img)))
			require.ErrorIs(t, err, os.ErrDeadlineExceeded)

			after, _ := os.ReadFile(ext)
			assert.Equal(t, before, after)

			c, err = region.Load(path)
			require.NoError(t, err)
			got = c.Chunk(model.ChunkCoord{X: 3, Z: 4})
			require.NotNil(t, got)
			assert.Equal(t, tt.wantExternal, got.External)
			lastUpdate, ok := got.Data.GetLong("LastUpdate")
			require.True(t, ok)
			assert.Equal(t, int64(111), lastUpdate)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, tt.wantFileCount, "no temp files are left behind")
		})
	}
}

func TestSave_FailedCommitRestoresExternalChunks(t *testing.T) {
	dir := t.TempDir()
	ch := testutil.Chunk(3, 4, oversizedTree(111))
	ch.Compression = model.CompressionNone
	path := testutil.WriteRegion(t, dir, 0, 0, ch)
	ext := filepath.Join(dir, region.ExternalName(3, 4))
	before, err := os.ReadFile(ext)
	require.NoError(t, err)

	c, err := region.Load(path)
	require.NoError(t, err)
	c.Chunk(model.ChunkCoord{X: 3, Z: 4}).Data = oversizedTree(999)
	c.Chunk(model.ChunkCoord{X: 3, Z: 4}).MarkDirty()
	img, err := region.Encode(c, region.EncodeOptions{})
	require.NoError(t, err)

	// a directory in place of the region file makes the final rename fail
	require.NoError(t, os.Rename(path, path+".moved"))
	require.NoError(t, os.Mkdir(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "keep"), nil, 0o644))

	require.Error(t, region.Save(path, img, region.SaveOptions{}))

	after, err := os.ReadFile(ext)
	require.NoError(t, err)
	assert.Equal(t, before, after, "replaced .mcc is rolled back")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "only the .mcc, the moved region file and the directory remain")
}

func TestExternalChunks_RequireRegionName(t *testing.T) {
	dir := t.TempDir()
	ch := testutil.Chunk(3, 4, oversizedTree(1))
	ch.Compression = model.CompressionNone
	path := testutil.WriteRegion(t, dir, 0, 0, ch)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = region.Decode(filepath.Join(dir, "backup.mca"), data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region coordinates")

	_, err = region.Encode(testutil.Container(filepath.Join(dir, "backup.mca"), ch), region.EncodeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region coordinates")

	// inline chunks do not depend on the name
	small := testutil.Chunk(0, 0, testutil.FlatTree(3465, 1, 2, "full", 0))
	img, err := region.Encode(testutil.Container("backup.mca", small), region.EncodeOptions{})
	require.NoError(t, err)
	c, err := region.Decode("backup.mca", img.Data)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Occupied())
}

func TestDecode_Malformed(t *testing.T) {
	valid := func() []byte {
		img, err := region.Encode(testutil.Container("r.0.0.mca",
			testutil.Chunk(0, 0, testutil.FlatTree(3465, 1, 2, "full", 0))), region.EncodeOptions{})
		require.NoError(t, err)
		return img.Data
	}

	tests := []struct {
		name    string
		corrupt func([]byte) []byte
		wantErr string
	}{
		{"truncated header", func(b []byte) []byte { return b[:100] }, "header truncated"},
		{"offset in header", func(b []byte) []byte {
			binary.BigEndian.PutUint32(b, 1<<8|1)
			return b
		}, "invalid location"},
		{"offset past end", func(b []byte) []byte {
			binary.BigEndian.PutUint32(b, 900<<8|1)
			return b
		}, "beyond end of file"},
		{"bad length", func(b []byte) []byte {
			binary.BigEndian.PutUint32(b[region.HeaderSize:], 1<<30)
			return b
		}, "invalid payload length"},
		{"bad compression", func(b []byte) []byte {
			b[region.HeaderSize+4] = 9
			return b
		}, "unsupported compression"},
		{"garbage payload", func(b []byte) []byte {
			b[region.HeaderSize+6] ^= 0xFF
			b[region.HeaderSize+7] ^= 0xFF
			return b
		}, "chunk 0,0"},
		{"missing external", func(b []byte) []byte {
			b[region.HeaderSize+4] |= byte(model.CompressionExternal)
			return b
		}, "external chunk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := region.Decode(filepath.Join(dir, "r.0.0.mca"), tt.corrupt(valid()))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDecode_EmptyFile(t *testing.T) {
	c, err := region.Decode("r.4.4.mca", nil)
	require.NoError(t, err)
	assert.Zero(t, c.Occupied())
	assert.Equal(t, 4, c.RegionX)
}

func TestWriteAtomic_ThrottleError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.0.0.mca")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o600))

	err := region.WriteAtomic(path, bytes.Repeat([]byte{1}, 1<<17), region.SaveOptions{
		Throttle: func(int) error { return os.ErrDeadlineExceeded },
	})
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is removed on failure")
}

func TestWriteAtomic_KeepsFileMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.0.0.mca")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	var blocks int
	require.NoError(t, region.WriteAtomic(path, bytes.Repeat([]byte{2}, 1<<17), region.SaveOptions{
		Throttle: func(int) error { blocks++; return nil },
	}))
	assert.Equal(t, 2, blocks)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
