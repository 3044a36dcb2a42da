package util

import (
	"io"

	"github.com/zeebo/xxh3"
)

// Checksum utilities for verifying written container files.
// Uses xxh3 (64-bit) which is fast enough to rehash a whole region file
// after every write.

// ComputeChecksum computes an xxh3 checksum for the given data
func ComputeChecksum(data []byte) uint64 {
	return xxh3.Hash(data)
}

// ValidateChecksum validates data against an expected checksum
func ValidateChecksum(data []byte, expected uint64) bool {
	return ComputeChecksum(data) == expected
}

// ChecksumReader streams r through xxh3 and returns the checksum and the
// number of bytes read
func ChecksumReader(r io.Reader) (uint64, int64, error) {
	h := xxh3.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return 0, n, err
	}
	return h.Sum64(), n, nil
}
