package region

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/ViaSnake/mcaselector/internal/model"
)

// maxChunkSize caps decompressed chunk data so a corrupt stream cannot
// exhaust memory
const maxChunkSize = 64 << 20

var (
	zlibWriterPool sync.Pool
	gzipWriterPool sync.Pool
)

func getZlibWriter(w io.Writer) *zlib.Writer {
	if v := zlibWriterPool.Get(); v != nil {
		zw := v.(*zlib.Writer)
		zw.Reset(w)
		return zw
	}
	return zlib.NewWriter(w)
}

func getGzipWriter(w io.Writer) *gzip.Writer {
	if v := gzipWriterPool.Get(); v != nil {
		gw := v.(*gzip.Writer)
		gw.Reset(w)
		return gw
	}
	return gzip.NewWriter(w)
}

// ParseCompression maps a configuration name to a compression type.
// The empty string means "keep each chunk's own compression".
func ParseCompression(name string) (model.CompressionType, error) {
	switch name {
	case "", "keep":
		return 0, nil
	case "gzip":
		return model.CompressionGZip, nil
	case "zlib":
		return model.CompressionZlib, nil
	case "none", "uncompressed":
		return model.CompressionNone, nil
	case "lz4":
		return model.CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// Decompress decodes a chunk payload of the given type
func Decompress(ct model.CompressionType, data []byte) ([]byte, error) {
	switch ct {
	case model.CompressionGZip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer r.Close()
		return readLimited(r)
	case model.CompressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		defer r.Close()
		return readLimited(r)
	case model.CompressionNone:
		return data, nil
	case model.CompressionLZ4:
		return decompressLZ4Blocks(data)
	default:
		return nil, fmt.Errorf("unsupported compression type %d", ct)
	}
}

// Compress encodes chunk data with the given type
func Compress(ct model.CompressionType, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch ct {
	case model.CompressionGZip:
		gw := getGzipWriter(&buf)
		defer gzipWriterPool.Put(gw)
		if _, err := gw.Write(data); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return buf.Bytes(), nil
	case model.CompressionZlib:
		zw := getZlibWriter(&buf)
		defer zlibWriterPool.Put(zw)
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		return buf.Bytes(), nil
	case model.CompressionNone:
		return data, nil
	case model.CompressionLZ4:
		return compressLZ4Blocks(data)
	default:
		return nil, fmt.Errorf("unsupported compression type %d", ct)
	}
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxChunkSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxChunkSize {
		return nil, fmt.Errorf("decompressed chunk exceeds %d bytes", maxChunkSize)
	}
	return data, nil
}
