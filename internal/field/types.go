package field

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/nbt"
	"github.com/ViaSnake/mcaselector/internal/util"
	"github.com/ViaSnake/mcaselector/internal/version"
)

// Type identifies an editable attribute
type Type int

const (
	TypeLastUpdate Type = iota
	TypeInhabitedTime
	TypeStatus
)

var typeNames = map[Type]string{
	TypeLastUpdate:    "LastUpdate",
	TypeInhabitedTime: "InhabitedTime",
	TypeStatus:        "Status",
}

var typeAliases = map[string]Type{
	"lastupdate":     TypeLastUpdate,
	"last-update":    TypeLastUpdate,
	"inhabitedtime":  TypeInhabitedTime,
	"inhabited-time": TypeInhabitedTime,
	"time-inhabited": TypeInhabitedTime,
	"status":         TypeStatus,
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Types lists every field type in declaration order
func Types() []Type {
	return []Type{TypeLastUpdate, TypeInhabitedTime, TypeStatus}
}

// ParseType maps a field name to its type, ignoring case
func ParseType(name string) (Type, error) {
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return 0, errors.InvalidArgument(fmt.Sprintf("unknown field %q", name), nil)
}

// Editor is the type-erased view of a Field used by the pipeline
type Editor interface {
	Type() Type
	ParseNewValue(text string) bool
	Parsed() bool
	NewValueString() string
	OldValueString(reg *version.Registry, c *model.Chunk) (string, bool)
	Change(reg *version.Registry, c *model.Chunk) (bool, error)
	Force(reg *version.Registry, c *model.Chunk) (bool, error)
}

// New creates an unparsed field of type t
func New(t Type) (Editor, error) {
	switch t {
	case TypeLastUpdate:
		return NewLastUpdate(), nil
	case TypeInhabitedTime:
		return NewInhabitedTime(), nil
	case TypeStatus:
		return NewStatus(), nil
	default:
		return nil, errors.InvalidArgument(fmt.Sprintf("unknown field type %d", int(t)), nil)
	}
}

// Parse creates a field of type t holding the value parsed from text
func Parse(t Type, text string) (Editor, error) {
	f, err := New(t)
	if err != nil {
		return nil, err
	}
	if !f.ParseNewValue(text) {
		return nil, errors.FieldParse(t.String(), text)
	}
	return f, nil
}

func parseInt64(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}

func parseDuration(s string) (int64, bool) {
	v, err := util.ParseTicks(s)
	return v, err == nil
}

func longCodec(attr version.Attribute) *codec[int64] {
	return &codec[int64]{
		attr: attr,
		get: func(a *version.Adapter, root *nbt.Compound) (int64, bool) {
			return a.GetLong(root, attr)
		},
		tag:     func(v int64) nbt.Tag { return nbt.Long(v) },
		format:  func(v int64) string { return strconv.FormatInt(v, 10) },
		parsers: []func(string) (int64, bool){parseInt64, parseDuration},
	}
}

var (
	lastUpdateCodec    = longCodec(version.LastUpdate)
	inhabitedTimeCodec = longCodec(version.InhabitedTime)
)

// NewLastUpdate creates a field for the tick of the chunk's last save
func NewLastUpdate() *Field[int64] {
	return &Field[int64]{typ: TypeLastUpdate, codec: lastUpdateCodec}
}

// NewInhabitedTime creates a field for the ticks players spent in the chunk
func NewInhabitedTime() *Field[int64] {
	return &Field[int64]{typ: TypeInhabitedTime, codec: inhabitedTimeCodec}
}

const statusNamespace = "minecraft:"

var statusPattern = regexp.MustCompile(`^[a-z_]+$`)

// NormalizeStatus strips the default namespace from a status name
func NormalizeStatus(s string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), statusNamespace)
}

// ParseStatus normalizes a status name and reports whether it is well formed
func ParseStatus(s string) (string, bool) {
	n := NormalizeStatus(s)
	return n, statusPattern.MatchString(n)
}

var statusCodec = &codec[string]{
	attr: version.Status,
	get: func(a *version.Adapter, root *nbt.Compound) (string, bool) {
		return a.GetString(root, version.Status)
	},
	tag:     func(v string) nbt.Tag { return nbt.String(v) },
	format:  func(v string) string { return v },
	parsers: []func(string) (string, bool){ParseStatus},
}

// NewStatus creates a field for the chunk's generation status
func NewStatus() *Field[string] {
	return &Field[string]{typ: TypeStatus, codec: statusCodec}
}
