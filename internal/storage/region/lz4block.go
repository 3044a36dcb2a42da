package region

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/OneOfOne/xxhash"
	"github.com/pierrec/lz4/v4"
)

// LZ4 chunks use the block stream framing of lz4-java:
//
//	magic "LZ4Block" | token | compressed len (LE) | original len (LE) | checksum (LE) | data
//
// The token's high nibble is the method (raw or lz4), the low nibble is
// log2(block size)-10. A block with both lengths zero ends the stream.
// Checksums are xxhash32 of the original bytes, masked to 28 bits.

var lz4Magic = []byte("LZ4Block")

const (
	lz4HeaderLen    = len("LZ4Block") + 13
	lz4MethodRaw    = 0x10
	lz4MethodLZ4    = 0x20
	lz4BlockSize    = 1 << 16
	lz4Level        = 6 // log2(lz4BlockSize) - 10
	lz4ChecksumSeed = 0x9747b28c
	lz4ChecksumMask = 0x0FFFFFFF
)

var errLZ4Truncated = errors.New("lz4: truncated block stream")

func decompressLZ4Blocks(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)*3)
	off := 0
	for off < len(data) {
		if len(data)-off < lz4HeaderLen {
			return nil, errLZ4Truncated
		}
		if !bytes.Equal(data[off:off+len(lz4Magic)], lz4Magic) {
			return nil, fmt.Errorf("lz4: bad block magic at offset %d", off)
		}
		h := data[off+len(lz4Magic):]
		method := h[0] & 0xF0
		level := int(h[0] & 0x0F)
		compLen := int(int32(binary.LittleEndian.Uint32(h[1:])))
		origLen := int(int32(binary.LittleEndian.Uint32(h[5:])))
		check := binary.LittleEndian.Uint32(h[9:])
		off += lz4HeaderLen

		if origLen == 0 && compLen == 0 {
			return out, nil
		}
		maxBlock := 1 << (10 + level)
		if compLen < 0 || origLen < 0 || origLen > maxBlock || compLen > len(data)-off {
			return nil, fmt.Errorf("lz4: invalid block lengths %d/%d", compLen, origLen)
		}
		if len(out)+origLen > maxChunkSize {
			return nil, fmt.Errorf("decompressed chunk exceeds %d bytes", maxChunkSize)
		}

		src := data[off : off+compLen]
		var block []byte
		switch method {
		case lz4MethodRaw:
			if compLen != origLen {
				return nil, fmt.Errorf("lz4: raw block length mismatch %d/%d", compLen, origLen)
			}
			block = src
		case lz4MethodLZ4:
			block = make([]byte, origLen)
			n, err := lz4.UncompressBlock(src, block)
			if err != nil {
				return nil, fmt.Errorf("lz4: %w", err)
			}
			if n != origLen {
				return nil, fmt.Errorf("lz4: decompressed %d bytes, expected %d", n, origLen)
			}
		default:
			return nil, fmt.Errorf("lz4: unknown block method 0x%x", method)
		}

		if xxh32(block, lz4ChecksumSeed)&lz4ChecksumMask != check {
			return nil, fmt.Errorf("lz4: block checksum mismatch at offset %d", off-lz4HeaderLen)
		}
		out = append(out, block...)
		off += compLen
	}
	return out, nil
}

func compressLZ4Blocks(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)/2+2*lz4HeaderLen)
	dst := make([]byte, lz4.CompressBlockBound(lz4BlockSize))

	for start := 0; start < len(data); start += lz4BlockSize {
		end := min(start+lz4BlockSize, len(data))
		src := data[start:end]

		n, err := lz4.CompressBlock(src, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		method, payload := byte(lz4MethodLZ4), dst[:n]
		if n == 0 || n >= len(src) {
			method, payload = lz4MethodRaw, src
		}
		out = appendLZ4Header(out, method, len(payload), len(src), xxh32(src, lz4ChecksumSeed)&lz4ChecksumMask)
		out = append(out, payload...)
	}
	return appendLZ4Header(out, lz4MethodRaw, 0, 0, 0), nil
}

func appendLZ4Header(b []byte, method byte, compLen, origLen int, check uint32) []byte {
	b = append(b, lz4Magic...)
	b = append(b, method|lz4Level)
	b = binary.LittleEndian.AppendUint32(b, uint32(compLen))
	b = binary.LittleEndian.AppendUint32(b, uint32(origLen))
	return binary.LittleEndian.AppendUint32(b, check)
}

// xxh32 is the seeded 32-bit xxHash used by the lz4 block checksums
func xxh32(b []byte, seed uint32) uint32 {
	h := xxhash.NewS32(seed)
	h.Write(b)
	return h.Sum32()
}
