// Package testutil builds chunk trees and region files for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/nbt"
	"github.com/ViaSnake/mcaselector/internal/storage/region"
)

// LegacyTree returns a pre-flattening chunk tree with its fields under Level
func LegacyTree(dataVersion int32, lastUpdate, inhabitedTime int64, status string) *nbt.Compound {
	level := nbt.NewCompound()
	level.Put("xPos", nbt.Int(0))
	level.Put("zPos", nbt.Int(0))
	level.Put("LastUpdate", nbt.Long(lastUpdate))
	level.Put("InhabitedTime", nbt.Long(inhabitedTime))
	level.Put("Status", nbt.String(status))
	level.Put("Sections", &nbt.List{Elem: nbt.TagCompound})

	root := nbt.NewCompound()
	if dataVersion != 0 {
		root.Put("DataVersion", nbt.Int(dataVersion))
	}
	root.Put("Level", level)
	return root
}

// FlatTree returns a chunk tree with its fields at the root
func FlatTree(dataVersion int32, lastUpdate, inhabitedTime int64, status string, yPos int32) *nbt.Compound {
	root := nbt.NewCompound()
	root.Put("DataVersion", nbt.Int(dataVersion))
	root.Put("xPos", nbt.Int(0))
	root.Put("zPos", nbt.Int(0))
	root.Put("yPos", nbt.Int(yPos))
	root.Put("LastUpdate", nbt.Long(lastUpdate))
	root.Put("InhabitedTime", nbt.Long(inhabitedTime))
	root.Put("Status", nbt.String(status))
	root.Put("sections", &nbt.List{Elem: nbt.TagCompound})
	return root
}

// Chunk wraps a tree as a chunk at x, z
func Chunk(x, z int, root *nbt.Compound) *model.Chunk {
	ch := model.NewChunk(model.ChunkCoord{X: x, Z: z}, root)
	ch.Timestamp = 1700000000
	return ch
}

// Container assembles chunks into a container for path
func Container(path string, chunks ...*model.Chunk) *model.Container {
	c := &model.Container{Path: path}
	if x, z, ok := region.ParseName(path); ok {
		c.RegionX, c.RegionZ = x, z
	}
	for _, ch := range chunks {
		c.SetChunk(ch)
	}
	return c
}

// WriteRegion saves chunks as the region file r.<x>.<z>.mca in dir and
// returns its path
func WriteRegion(t testing.TB, dir string, x, z int, chunks ...*model.Chunk) string {
	t.Helper()
	path := filepath.Join(dir, region.FileName(x, z))
	img, err := region.Encode(Container(path, chunks...), region.EncodeOptions{})
	require.NoError(t, err)
	require.NoError(t, region.Save(path, img, region.SaveOptions{}))
	return path
}
