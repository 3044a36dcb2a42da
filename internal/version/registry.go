package version

import (
	"fmt"
	"math"
	"sort"

	"github.com/ViaSnake/mcaselector/internal/errors"
)

// Range maps an inclusive DataVersion range to a layout name
type Range struct {
	Min    int32
	Max    int32
	Layout string
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d] -> %s", r.Min, r.Max, r.Layout)
}

// DefaultRanges splits at the 21w43a snapshot, where chunk fields moved out
// of the Level compound
func DefaultRanges() []Range {
	return []Range{
		{Min: 0, Max: 2843, Layout: "legacy"},
		{Min: 2844, Max: math.MaxInt32, Layout: "flat"},
	}
}

type entry struct {
	Range
	adapter *Adapter
}

// Registry resolves DataVersions to adapters. It is immutable after
// NewRegistry and safe for concurrent use.
type Registry struct {
	entries []entry
}

// NewRegistry validates ranges and builds the lookup table. Overlapping or
// inverted ranges and unknown layouts are rejected.
func NewRegistry(ranges []Range) (*Registry, error) {
	if len(ranges) == 0 {
		return nil, errors.FilterConfiguration("no version ranges configured", nil)
	}

	entries := make([]entry, 0, len(ranges))
	for _, r := range ranges {
		if r.Min > r.Max {
			return nil, errors.FilterConfiguration(fmt.Sprintf("inverted version range %s", r), nil)
		}
		a, ok := Layout(r.Layout)
		if !ok {
			return nil, errors.FilterConfiguration(fmt.Sprintf("unknown layout %q in range %s", r.Layout, r), nil).
				WithDetail("layouts", LayoutNames())
		}
		entries = append(entries, entry{Range: r, adapter: a})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Min < entries[j].Min })
	for i := 1; i < len(entries); i++ {
		if entries[i].Min <= entries[i-1].Max {
			return nil, errors.FilterConfiguration(
				fmt.Sprintf("version ranges %s and %s overlap", entries[i-1].Range, entries[i].Range), nil)
		}
	}

	return &Registry{entries: entries}, nil
}

// Default returns the registry built from DefaultRanges
func Default() *Registry {
	r, err := NewRegistry(DefaultRanges())
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the adapter whose range contains dataVersion
func (r *Registry) Resolve(dataVersion int32) (*Adapter, error) {
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].Max >= dataVersion })
	if i < len(r.entries) && r.entries[i].Min <= dataVersion {
		return r.entries[i].adapter, nil
	}
	return nil, errors.VersionResolution(dataVersion)
}

// Ranges returns the configured ranges in ascending order
func (r *Registry) Ranges() []Range {
	out := make([]Range, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Range
	}
	return out
}
