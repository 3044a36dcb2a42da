// Package nbt models the named binary tag tree stored in every chunk and
// provides its big-endian binary codec.
package nbt

import "fmt"

// TagType is the one-byte type id written before every tag payload
type TagType byte

const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var tagNames = [...]string{
	"End", "Byte", "Short", "Int", "Long", "Float", "Double",
	"ByteArray", "String", "List", "Compound", "IntArray", "LongArray",
}

func (t TagType) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("TagType(%d)", byte(t))
}

// Tag is implemented by every tag value
type Tag interface {
	Type() TagType
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	ByteArray []byte
	String    string
	IntArray  []int32
	LongArray []int64
)

func (Byte) Type() TagType      { return TagByte }
func (Short) Type() TagType     { return TagShort }
func (Int) Type() TagType       { return TagInt }
func (Long) Type() TagType      { return TagLong }
func (Float) Type() TagType     { return TagFloat }
func (Double) Type() TagType    { return TagDouble }
func (ByteArray) Type() TagType { return TagByteArray }
func (String) Type() TagType    { return TagString }
func (IntArray) Type() TagType  { return TagIntArray }
func (LongArray) Type() TagType { return TagLongArray }

// List is a homogeneous sequence of tags. An empty list keeps its element
// type so it round-trips unchanged.
type List struct {
	Elem  TagType
	Items []Tag
}

func (*List) Type() TagType { return TagList }

// Append adds a tag, fixing the element type on first use
func (l *List) Append(t Tag) error {
	if len(l.Items) == 0 && (l.Elem == TagEnd || l.Elem == t.Type()) {
		l.Elem = t.Type()
	}
	if t.Type() != l.Elem {
		return fmt.Errorf("list of %s cannot hold %s", l.Elem, t.Type())
	}
	l.Items = append(l.Items, t)
	return nil
}

// Compound is a named tag map that preserves insertion order, so a decoded
// tree re-encodes with its entries in the original order.
type Compound struct {
	keys   []string
	values map[string]Tag
}

// NewCompound returns an empty compound
func NewCompound() *Compound {
	return &Compound{values: make(map[string]Tag)}
}

func (*Compound) Type() TagType { return TagCompound }

// Len returns the number of entries
func (c *Compound) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Keys returns entry names in order
func (c *Compound) Keys() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Get returns the entry with the given name
func (c *Compound) Get(name string) (Tag, bool) {
	if c == nil {
		return nil, false
	}
	t, ok := c.values[name]
	return t, ok
}

// Put sets an entry, replacing any existing value in place
func (c *Compound) Put(name string, t Tag) {
	if c.values == nil {
		c.values = make(map[string]Tag)
	}
	if _, ok := c.values[name]; !ok {
		c.keys = append(c.keys, name)
	}
	c.values[name] = t
}

// Remove deletes an entry and reports whether it existed
func (c *Compound) Remove(name string) bool {
	if c == nil {
		return false
	}
	if _, ok := c.values[name]; !ok {
		return false
	}
	delete(c.values, name)
	for i, k := range c.keys {
		if k == name {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return true
}

// GetCompound returns a nested compound
func (c *Compound) GetCompound(name string) (*Compound, bool) {
	t, ok := c.Get(name)
	if !ok {
		return nil, false
	}
	v, ok := t.(*Compound)
	return v, ok
}

// GetInt returns an Int entry
func (c *Compound) GetInt(name string) (int32, bool) {
	t, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	v, ok := t.(Int)
	return int32(v), ok
}

// GetLong returns a Long entry
func (c *Compound) GetLong(name string) (int64, bool) {
	t, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	v, ok := t.(Long)
	return int64(v), ok
}

// GetString returns a String entry
func (c *Compound) GetString(name string) (string, bool) {
	t, ok := c.Get(name)
	if !ok {
		return "", false
	}
	v, ok := t.(String)
	return string(v), ok
}

// Copy returns a deep copy of the compound
func (c *Compound) Copy() *Compound {
	if c == nil {
		return nil
	}
	out := &Compound{
		keys:   make([]string, len(c.keys)),
		values: make(map[string]Tag, len(c.values)),
	}
	copy(out.keys, c.keys)
	for k, v := range c.values {
		out.values[k] = copyTag(v)
	}
	return out
}

func copyTag(t Tag) Tag {
	switch v := t.(type) {
	case *Compound:
		return v.Copy()
	case *List:
		items := make([]Tag, len(v.Items))
		for i, it := range v.Items {
			items[i] = copyTag(it)
		}
		return &List{Elem: v.Elem, Items: items}
	case ByteArray:
		return append(ByteArray(nil), v...)
	case IntArray:
		return append(IntArray(nil), v...)
	case LongArray:
		return append(LongArray(nil), v...)
	default:
		return t
	}
}
