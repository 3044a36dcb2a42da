package filter

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/field"
	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/util"
	"github.com/ViaSnake/mcaselector/internal/version"
)

// Type identifies the attribute a filter inspects
type Type int

const (
	TypeYPos Type = iota
	TypeInhabitedTime
	TypeLastUpdate
	TypeStatus
	TypeDataVersion
)

var typeNames = map[Type]string{
	TypeYPos:          "yPos",
	TypeInhabitedTime: "InhabitedTime",
	TypeLastUpdate:    "LastUpdate",
	TypeStatus:        "Status",
	TypeDataVersion:   "DataVersion",
}

var typeAliases = map[string]Type{
	"ypos":           TypeYPos,
	"y-pos":          TypeYPos,
	"section":        TypeYPos,
	"inhabitedtime":  TypeInhabitedTime,
	"inhabited-time": TypeInhabitedTime,
	"time-inhabited": TypeInhabitedTime,
	"lastupdate":     TypeLastUpdate,
	"last-update":    TypeLastUpdate,
	"status":         TypeStatus,
	"dataversion":    TypeDataVersion,
	"data-version":   TypeDataVersion,
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// supports reports whether the comparator applies to the type's values
func (t Type) supports(c Comparator) bool {
	if t == TypeStatus {
		return c == Equal || c == NotEqual
	}
	return true
}

// ParseType maps a filter name to its type, ignoring case
func ParseType(name string) (Type, error) {
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return 0, errors.FilterConfiguration(fmt.Sprintf("unknown filter %q", name), nil)
}

// policy is the attribute-local behavior of a filter: where the value comes
// from, what absence means, and how literals are parsed
type policy[T cmp.Ordered] struct {
	extract func(reg *version.Registry, c *model.Chunk) (T, bool)
	parse   func(text string) (T, error)
	format  func(T) string
}

func resolve(reg *version.Registry, c *model.Chunk) (*version.Adapter, bool) {
	if c == nil || c.Data == nil {
		return nil, false
	}
	a, err := reg.Resolve(c.DataVersion)
	return a, err == nil
}

// yPos defaults to 0 when the tree exists but carries no yPos tag, which is
// every chunk written before the tag was introduced
var yPosPolicy = &policy[int64]{
	extract: func(reg *version.Registry, c *model.Chunk) (int64, bool) {
		a, ok := resolve(reg, c)
		if !ok {
			return 0, false
		}
		y, _ := a.GetInt(c.Data, version.YPos)
		return int64(y), true
	},
	parse:  parseInt32,
	format: formatInt,
}

func longPolicy(attr version.Attribute) *policy[int64] {
	return &policy[int64]{
		extract: func(reg *version.Registry, c *model.Chunk) (int64, bool) {
			a, ok := resolve(reg, c)
			if !ok {
				return 0, false
			}
			return a.GetLong(c.Data, attr)
		},
		parse:  parseTicks,
		format: formatInt,
	}
}

var (
	inhabitedTimePolicy = longPolicy(version.InhabitedTime)
	lastUpdatePolicy    = longPolicy(version.LastUpdate)
)

var statusPolicy = &policy[string]{
	extract: func(reg *version.Registry, c *model.Chunk) (string, bool) {
		a, ok := resolve(reg, c)
		if !ok {
			return "", false
		}
		s, ok := a.GetString(c.Data, version.Status)
		return field.NormalizeStatus(s), ok
	},
	parse: func(text string) (string, error) {
		s, ok := field.ParseStatus(strings.Trim(text, `"'`))
		if !ok {
			return "", fmt.Errorf("malformed status %q", text)
		}
		return s, nil
	},
	format: func(s string) string { return s },
}

// DataVersion is read straight from the root and needs no adapter
var dataVersionPolicy = &policy[int64]{
	extract: func(_ *version.Registry, c *model.Chunk) (int64, bool) {
		if c == nil || c.Data == nil {
			return 0, false
		}
		v, ok := c.Data.GetInt("DataVersion")
		return int64(v), ok
	},
	parse:  parseInt32,
	format: formatInt,
}

func parseInt32(text string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(text), 10, 32)
}

func parseTicks(text string) (int64, error) {
	if v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
		return v, nil
	}
	return util.ParseTicks(text)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
