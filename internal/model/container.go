package model

import (
	"fmt"

	"github.com/ViaSnake/mcaselector/internal/nbt"
)

const (
	// ChunksPerAxis is the width and depth of a region in chunks
	ChunksPerAxis = 32
	// ChunkSlots is the fixed number of chunk slots in a region file
	ChunkSlots = ChunksPerAxis * ChunksPerAxis
)

// CompressionType is the per-chunk compression id stored in the region file
type CompressionType uint8

const (
	CompressionGZip CompressionType = 1
	CompressionZlib CompressionType = 2
	CompressionNone CompressionType = 3
	CompressionLZ4  CompressionType = 4

	// CompressionExternal is or'ed into the type when the payload lives in
	// a separate .mcc file next to the region file
	CompressionExternal CompressionType = 128
)

// String returns the name used in config files and reports
func (t CompressionType) String() string {
	base := t &^ CompressionExternal
	var name string
	switch base {
	case CompressionGZip:
		name = "gzip"
	case CompressionZlib:
		name = "zlib"
	case CompressionNone:
		name = "none"
	case CompressionLZ4:
		name = "lz4"
	default:
		name = fmt.Sprintf("type-%d", uint8(base))
	}
	if t&CompressionExternal != 0 {
		return name + "+external"
	}
	return name
}

// ChunkCoord is an in-container chunk coordinate, both components in [0,32)
type ChunkCoord struct {
	X int
	Z int
}

// Index returns the slot index of the coordinate
func (c ChunkCoord) Index() int {
	return (c.X & 31) + (c.Z&31)*ChunksPerAxis
}

// CoordOf returns the coordinate of a slot index
func CoordOf(index int) ChunkCoord {
	return ChunkCoord{X: index % ChunksPerAxis, Z: index / ChunksPerAxis}
}

// Chunk is one decompressed chunk of a container
type Chunk struct {
	Coord       ChunkCoord
	Timestamp   uint32
	Compression CompressionType
	External    bool
	DataVersion int32
	RootName    string
	Data        *nbt.Compound

	// Payload holds the compressed bytes as read. A clean chunk is written
	// back from it unless recompression was requested.
	Payload []byte

	dirty bool
}

// NewChunk wraps a decoded tag tree and extracts its DataVersion.
// A tree without DataVersion predates the tag and reads as version 0.
func NewChunk(coord ChunkCoord, root *nbt.Compound) *Chunk {
	c := &Chunk{Coord: coord, Data: root, Compression: CompressionZlib}
	if v, ok := root.GetInt("DataVersion"); ok {
		c.DataVersion = v
	}
	return c
}

// MarkDirty flags the chunk for rewrite
func (c *Chunk) MarkDirty() {
	c.dirty = true
}

// Dirty reports whether the chunk was edited since it was loaded
func (c *Chunk) Dirty() bool {
	return c != nil && c.dirty
}

// Container is one region file loaded into memory
type Container struct {
	Path    string
	RegionX int
	RegionZ int
	Chunks  [ChunkSlots]*Chunk
}

// Chunk returns the chunk at coord, or nil for an empty slot
func (c *Container) Chunk(coord ChunkCoord) *Chunk {
	return c.Chunks[coord.Index()]
}

// SetChunk stores ch in its slot
func (c *Container) SetChunk(ch *Chunk) {
	c.Chunks[ch.Coord.Index()] = ch
}

// Occupied returns the number of non-empty slots
func (c *Container) Occupied() int {
	n := 0
	for _, ch := range c.Chunks {
		if ch != nil {
			n++
		}
	}
	return n
}

// Dirty reports whether any chunk needs to be written back
func (c *Container) Dirty() bool {
	for _, ch := range c.Chunks {
		if ch.Dirty() {
			return true
		}
	}
	return false
}
