package util_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViaSnake/mcaselector/internal/util"
)

func TestComputeChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"small", []byte("hello world")},
		{"sector", bytes.Repeat([]byte{0xAB}, 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := util.ComputeChecksum(tt.data)
			assert.Equal(t, sum, util.ComputeChecksum(tt.data), "checksum must be deterministic")
			assert.True(t, util.ValidateChecksum(tt.data, sum))
		})
	}
}

func TestValidateChecksum_DetectsCorruption(t *testing.T) {
	data := bytes.Repeat([]byte("region"), 1000)
	sum := util.ComputeChecksum(data)

	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)/2] ^= 0x01

	assert.False(t, util.ValidateChecksum(corrupted, sum))
}

func TestChecksumReader(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 20000)

	sum, n, err := util.ChecksumReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, util.ComputeChecksum(data), sum)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestChecksumReader_Error(t *testing.T) {
	_, _, err := util.ChecksumReader(failingReader{})
	assert.Error(t, err)
}
