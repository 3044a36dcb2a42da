package region

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/nbt"
)

const (
	// SectorSize is the allocation unit of a region file
	SectorSize = 4096
	// HeaderSize covers the location and timestamp tables
	HeaderSize = 2 * SectorSize
	// MaxInlineSectors is the largest chunk stored inside the region file
	MaxInlineSectors = 255
)

var regionNamePattern = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.mca$`)

// ParseName extracts the region coordinates from a file name like r.-1.3.mca
func ParseName(path string) (x, z int, ok bool) {
	m := regionNamePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, 0, false
	}
	x, errX := strconv.Atoi(m[1])
	z, errZ := strconv.Atoi(m[2])
	if errX != nil || errZ != nil {
		return 0, 0, false
	}
	return x, z, true
}

// FileName returns the region file name for region coordinates x, z
func FileName(x, z int) string {
	return fmt.Sprintf("r.%d.%d.mca", x, z)
}

// ExternalName is the file holding an oversized chunk at absolute chunk
// coordinates cx, cz
func ExternalName(cx, cz int) string {
	return fmt.Sprintf("c.%d.%d.mcc", cx, cz)
}

// Load reads and decodes the region file at path
func Load(path string) (*model.Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region file: %w", err)
	}
	return Decode(path, data)
}

// Decode parses a region file image. Any malformed chunk fails the whole
// container since it could not be written back intact.
func Decode(path string, data []byte) (*model.Container, error) {
	c := &model.Container{Path: path}
	if x, z, ok := ParseName(path); ok {
		c.RegionX, c.RegionZ = x, z
	}

	// the game leaves zero-length files behind for regions it never filled
	if len(data) == 0 {
		return c, nil
	}
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("region header truncated: %d bytes", len(data))
	}

	for i := 0; i < model.ChunkSlots; i++ {
		loc := binary.BigEndian.Uint32(data[i*4:])
		if loc == 0 {
			continue
		}
		coord := model.CoordOf(i)
		ch, err := decodeChunk(c, data, coord, loc)
		if err != nil {
			return nil, fmt.Errorf("chunk %d,%d: %w", coord.X, coord.Z, err)
		}
		ch.Timestamp = binary.BigEndian.Uint32(data[SectorSize+i*4:])
		c.SetChunk(ch)
	}
	return c, nil
}

func decodeChunk(c *model.Container, data []byte, coord model.ChunkCoord, loc uint32) (*model.Chunk, error) {
	offset := int(loc >> 8)
	sectors := int(loc & 0xFF)
	if offset < 2 || sectors == 0 {
		return nil, fmt.Errorf("invalid location %d/%d", offset, sectors)
	}

	start := offset * SectorSize
	if start+5 > len(data) {
		return nil, fmt.Errorf("location %d beyond end of file", offset)
	}
	length := int(binary.BigEndian.Uint32(data[start:]))
	if length < 1 || start+4+length > len(data) {
		return nil, fmt.Errorf("invalid payload length %d", length)
	}

	ct := model.CompressionType(data[start+4])
	payload := data[start+5 : start+4+length]
	external := ct&model.CompressionExternal != 0
	if external {
		ct &^= model.CompressionExternal
		if _, _, ok := ParseName(c.Path); !ok {
			return nil, fmt.Errorf("external chunk in %q: file name carries no region coordinates", filepath.Base(c.Path))
		}
		name := ExternalName(c.RegionX*model.ChunksPerAxis+coord.X, c.RegionZ*model.ChunksPerAxis+coord.Z)
		ext, err := os.ReadFile(filepath.Join(filepath.Dir(c.Path), name))
		if err != nil {
			return nil, fmt.Errorf("failed to read external chunk: %w", err)
		}
		payload = ext
	}

	raw, err := Decompress(ct, payload)
	if err != nil {
		return nil, err
	}
	name, root, err := nbt.Decode(raw)
	if err != nil {
		return nil, err
	}

	ch := model.NewChunk(coord, root)
	ch.RootName = name
	ch.Compression = ct
	ch.External = external
	ch.Payload = append([]byte(nil), payload...)
	return ch, nil
}
