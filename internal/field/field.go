// Package field implements typed edit directives over chunk attributes.
package field

import (
	"fmt"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/nbt"
	"github.com/ViaSnake/mcaselector/internal/version"
)

// codec binds a Go value type to one attribute: how to read it through an
// adapter, how to turn it into a tag, and which parsers accept user text.
type codec[T comparable] struct {
	attr    version.Attribute
	get     func(a *version.Adapter, root *nbt.Compound) (T, bool)
	tag     func(T) nbt.Tag
	format  func(T) string
	parsers []func(string) (T, bool)
}

// Field is an edit directive for one attribute. Once parsed it is read-only
// and may be shared by every worker.
type Field[T comparable] struct {
	typ    Type
	codec  *codec[T]
	value  T
	parsed bool
}

// Type returns the field type
func (f *Field[T]) Type() Type {
	return f.typ
}

// NewValue returns the parsed value
func (f *Field[T]) NewValue() (T, bool) {
	return f.value, f.parsed
}

// SetNewValue stores v directly, bypassing the parsers
func (f *Field[T]) SetNewValue(v T) {
	f.value = v
	f.parsed = true
}

// ParseNewValue tries each parser in order and keeps the first success
func (f *Field[T]) ParseNewValue(text string) bool {
	for _, parse := range f.codec.parsers {
		if v, ok := parse(text); ok {
			f.SetNewValue(v)
			return true
		}
	}
	return false
}

// Parsed reports whether a new value is set
func (f *Field[T]) Parsed() bool {
	return f.parsed
}

// GetOldValue reads the attribute from a chunk. Missing data, an absent
// attribute and an unresolvable DataVersion all read as absent.
func (f *Field[T]) GetOldValue(reg *version.Registry, c *model.Chunk) (T, bool) {
	var zero T
	if c == nil || c.Data == nil {
		return zero, false
	}
	a, err := reg.Resolve(c.DataVersion)
	if err != nil {
		return zero, false
	}
	return f.codec.get(a, c.Data)
}

// OldValueString formats the current value of the attribute
func (f *Field[T]) OldValueString(reg *version.Registry, c *model.Chunk) (string, bool) {
	v, ok := f.GetOldValue(reg, c)
	if !ok {
		return "", false
	}
	return f.codec.format(v), true
}

// NewValueString formats the parsed value
func (f *Field[T]) NewValueString() string {
	if !f.parsed {
		return ""
	}
	return f.codec.format(f.value)
}

// Change sets the attribute only where the chunk already carries it
func (f *Field[T]) Change(reg *version.Registry, c *model.Chunk) (bool, error) {
	return f.apply(reg, c, false)
}

// Force sets the attribute, creating it if needed
func (f *Field[T]) Force(reg *version.Registry, c *model.Chunk) (bool, error) {
	return f.apply(reg, c, true)
}

func (f *Field[T]) apply(reg *version.Registry, c *model.Chunk, force bool) (bool, error) {
	if !f.parsed {
		return false, errors.InvalidArgument(fmt.Sprintf("field %s has no new value", f.typ), nil)
	}
	if c == nil || c.Data == nil {
		if force {
			return false, errors.ChunkEdit(fmt.Sprintf("cannot force %s: chunk has no data", f.typ), nil)
		}
		return false, nil
	}

	a, err := reg.Resolve(c.DataVersion)
	if err != nil {
		return false, err
	}
	if !force {
		if _, ok := a.Get(c.Data, f.codec.attr); !ok {
			return false, nil
		}
	}
	if err := a.Set(c.Data, f.codec.attr, f.codec.tag(f.value)); err != nil {
		return false, err
	}
	c.MarkDirty()
	return true, nil
}
