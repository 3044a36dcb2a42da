package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViaSnake/mcaselector/internal/util"
)

func TestParseTicks(t *testing.T) {
	tests := []struct {
		text    string
		want    int64
		wantErr bool
	}{
		{"90s", 90 * 20, false},
		{"1d 2h 30m", (86400 + 2*3600 + 30*60) * 20, false},
		{"2 years 3 days", (2*365 + 3) * 86400 * 20, false},
		{"1h, 5 ticks", 3600*20 + 5, false},
		{"  1W  ", 7 * 86400 * 20, false},
		{"1mo", 30 * 86400 * 20, false},
		{"", 0, true},
		{"5", 0, true},
		{"5 fortnights", 0, true},
		{"1h x", 0, true},
		{"-1h", 0, true},
		{"99999999999999999999y", 0, true},
		{"500000000000y", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := util.ParseTicks(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTicks(t *testing.T) {
	tests := []struct {
		ticks int64
		want  string
	}{
		{0, "0s"},
		{5, "5t"},
		{20, "1s"},
		{(86400 + 2*3600 + 30*60) * 20, "1d 2h 30m"},
		{-3600 * 20, "-1h"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, util.FormatTicks(tt.ticks))
		})
	}
}

func TestFormatTicks_RoundTrip(t *testing.T) {
	for _, ticks := range []int64{1, 21, 72000, 1728000 + 7, 365 * 86400 * 20 * 3} {
		got, err := util.ParseTicks(util.FormatTicks(ticks))
		require.NoError(t, err)
		assert.Equal(t, ticks, got)
	}
}
