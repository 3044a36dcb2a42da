package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/nbt"
)

func TestChunkCoord_Index(t *testing.T) {
	for _, tt := range []struct {
		coord model.ChunkCoord
		index int
	}{
		{model.ChunkCoord{X: 0, Z: 0}, 0},
		{model.ChunkCoord{X: 31, Z: 0}, 31},
		{model.ChunkCoord{X: 0, Z: 1}, 32},
		{model.ChunkCoord{X: 31, Z: 31}, 1023},
	} {
		assert.Equal(t, tt.index, tt.coord.Index())
		assert.Equal(t, tt.coord, model.CoordOf(tt.index))
	}
}

func TestNewChunk_DataVersion(t *testing.T) {
	root := nbt.NewCompound()
	assert.Equal(t, int32(0), model.NewChunk(model.ChunkCoord{}, root).DataVersion, "absent reads as 0")

	root.Put("DataVersion", nbt.Int(3465))
	assert.Equal(t, int32(3465), model.NewChunk(model.ChunkCoord{}, root).DataVersion)
}

func TestContainer_Dirty(t *testing.T) {
	c := &model.Container{}
	assert.False(t, c.Dirty())
	assert.Equal(t, 0, c.Occupied())

	ch := model.NewChunk(model.ChunkCoord{X: 3, Z: 4}, nbt.NewCompound())
	c.SetChunk(ch)
	assert.Equal(t, 1, c.Occupied())
	assert.Same(t, ch, c.Chunk(model.ChunkCoord{X: 3, Z: 4}))
	assert.False(t, c.Dirty())

	ch.MarkDirty()
	assert.True(t, c.Dirty())

	var nilChunk *model.Chunk
	assert.False(t, nilChunk.Dirty())
}

func TestCompressionType_String(t *testing.T) {
	assert.Equal(t, "gzip", model.CompressionGZip.String())
	assert.Equal(t, "lz4", model.CompressionLZ4.String())
	assert.Equal(t, "zlib+external", (model.CompressionZlib | model.CompressionExternal).String())
	assert.Equal(t, "type-9", model.CompressionType(9).String())
}

func TestReport_Add(t *testing.T) {
	r := &model.Report{}
	r.Add(model.ContainerResult{
		Path: "a", Status: model.JobStateDone, Written: true,
		ChunkTally: model.ChunkTally{Chunks: 10, Selected: 4, Edited: 3, Errors: 1},
	})
	r.Add(model.ContainerResult{Path: "b", Status: model.JobStateFailed, ErrorCode: "container_io"})

	assert.Equal(t, model.Totals{
		Containers: 2, Done: 1, Failed: 1, Written: 1,
		Chunks: 10, Selected: 4, Edited: 3, ChunkErrors: 1,
	}, r.Totals)

	res, ok := r.Result("b")
	assert.True(t, ok)
	assert.Equal(t, model.JobStateFailed, res.Status)
	_, ok = r.Result("c")
	assert.False(t, ok)
}

func TestChunkTally_Merge(t *testing.T) {
	a := model.ChunkTally{Chunks: 1, Selected: 1, ChunkErrors: []model.ChunkError{{Code: "x"}}}
	a.Merge(model.ChunkTally{Chunks: 2, Edited: 2, Errors: 1, ChunkErrors: []model.ChunkError{{Code: "y"}}})
	assert.Equal(t, 3, a.Chunks)
	assert.Equal(t, 2, a.Edited)
	assert.Equal(t, 1, a.Errors)
	assert.Len(t, a.ChunkErrors, 2)
	assert.True(t, model.JobStateDone.Terminal())
	assert.False(t, model.JobStateWriting.Terminal())
}
