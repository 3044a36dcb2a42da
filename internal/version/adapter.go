// Package version maps chunk DataVersions to the tag layout of their schema
// generation.
package version

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/nbt"
)

// Attribute is a semantic chunk attribute with a version-specific location
type Attribute int

const (
	LastUpdate Attribute = iota
	InhabitedTime
	YPos
	Status
)

var attributeNames = map[Attribute]string{
	LastUpdate:    "LastUpdate",
	InhabitedTime: "InhabitedTime",
	YPos:          "YPos",
	Status:        "Status",
}

func (a Attribute) String() string {
	if n, ok := attributeNames[a]; ok {
		return n
	}
	return fmt.Sprintf("Attribute(%d)", int(a))
}

// accessor locates one attribute inside a chunk tree
type accessor struct {
	path []string
	kind nbt.TagType
}

// Adapter is the get/set capability set of one schema generation. It holds
// no state besides its layout table.
type Adapter struct {
	name  string
	attrs map[Attribute]accessor
}

// Name returns the layout name the adapter was registered under
func (a *Adapter) Name() string {
	return a.name
}

// Supports reports whether the layout carries attr
func (a *Adapter) Supports(attr Attribute) bool {
	_, ok := a.attrs[attr]
	return ok
}

// Get reads attr from root. A missing tag, or one of the wrong type, is
// reported absent.
func (a *Adapter) Get(root *nbt.Compound, attr Attribute) (nbt.Tag, bool) {
	acc, ok := a.attrs[attr]
	if !ok || root == nil {
		return nil, false
	}
	parent := root
	for _, name := range acc.path[:len(acc.path)-1] {
		if parent, ok = parent.GetCompound(name); !ok {
			return nil, false
		}
	}
	t, ok := parent.Get(acc.path[len(acc.path)-1])
	if !ok || t.Type() != acc.kind {
		return nil, false
	}
	return t, true
}

// GetLong reads a long attribute
func (a *Adapter) GetLong(root *nbt.Compound, attr Attribute) (int64, bool) {
	t, ok := a.Get(root, attr)
	if !ok {
		return 0, false
	}
	v, ok := t.(nbt.Long)
	return int64(v), ok
}

// GetInt reads an int attribute
func (a *Adapter) GetInt(root *nbt.Compound, attr Attribute) (int32, bool) {
	t, ok := a.Get(root, attr)
	if !ok {
		return 0, false
	}
	v, ok := t.(nbt.Int)
	return int32(v), ok
}

// GetString reads a string attribute
func (a *Adapter) GetString(root *nbt.Compound, attr Attribute) (string, bool) {
	t, ok := a.Get(root, attr)
	if !ok {
		return "", false
	}
	v, ok := t.(nbt.String)
	return string(v), ok
}

// Set writes attr into root in place, creating intermediate compounds
func (a *Adapter) Set(root *nbt.Compound, attr Attribute, t nbt.Tag) error {
	acc, ok := a.attrs[attr]
	if !ok {
		return errors.ChunkEdit(fmt.Sprintf("layout %s has no %s", a.name, attr), nil).
			WithDetail("attribute", attr.String())
	}
	if root == nil {
		return errors.ChunkEdit("chunk has no data", nil)
	}
	if t.Type() != acc.kind {
		return errors.ChunkEdit(fmt.Sprintf("%s expects %s, got %s", attr, acc.kind, t.Type()), nil).
			WithDetail("attribute", attr.String())
	}

	parent := root
	for _, name := range acc.path[:len(acc.path)-1] {
		existing, present := parent.Get(name)
		if !present {
			child := nbt.NewCompound()
			parent.Put(name, child)
			parent = child
			continue
		}
		child, isCompound := existing.(*nbt.Compound)
		if !isCompound {
			return errors.ChunkEdit(fmt.Sprintf("%s is %s, not a compound", name, existing.Type()), nil).
				WithDetail("attribute", attr.String())
		}
		parent = child
	}
	parent.Put(acc.path[len(acc.path)-1], t)
	return nil
}

// ChunkDataVersion reads the root DataVersion, 0 when absent
func ChunkDataVersion(root *nbt.Compound) int32 {
	v, _ := root.GetInt("DataVersion")
	return v
}

var layouts = map[string]*Adapter{
	"legacy": {
		name: "legacy",
		attrs: map[Attribute]accessor{
			LastUpdate:    {path: []string{"Level", "LastUpdate"}, kind: nbt.TagLong},
			InhabitedTime: {path: []string{"Level", "InhabitedTime"}, kind: nbt.TagLong},
			Status:        {path: []string{"Level", "Status"}, kind: nbt.TagString},
		},
	},
	"flat": {
		name: "flat",
		attrs: map[Attribute]accessor{
			LastUpdate:    {path: []string{"LastUpdate"}, kind: nbt.TagLong},
			InhabitedTime: {path: []string{"InhabitedTime"}, kind: nbt.TagLong},
			Status:        {path: []string{"Status"}, kind: nbt.TagString},
			YPos:          {path: []string{"yPos"}, kind: nbt.TagInt},
		},
	},
}

// Layout returns the built-in adapter registered under name
func Layout(name string) (*Adapter, bool) {
	a, ok := layouts[strings.ToLower(name)]
	return a, ok
}

// LayoutNames lists the built-in layouts
func LayoutNames() []string {
	names := make([]string, 0, len(layouts))
	for n := range layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
