package nbt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// MaxDepth bounds compound/list nesting when decoding
const MaxDepth = 512

var (
	ErrTruncated   = errors.New("nbt: unexpected end of data")
	ErrNotCompound = errors.New("nbt: root tag is not a compound")
	ErrTooDeep     = errors.New("nbt: nesting exceeds maximum depth")
)

// Decode parses a root named compound from data. Trailing bytes are ignored.
func Decode(data []byte) (string, *Compound, error) {
	d := &decoder{buf: data}
	id, err := d.u8()
	if err != nil {
		return "", nil, err
	}
	if TagType(id) != TagCompound {
		return "", nil, fmt.Errorf("%w: got %s", ErrNotCompound, TagType(id))
	}
	name, err := d.str()
	if err != nil {
		return "", nil, fmt.Errorf("root name: %w", err)
	}
	root, err := d.compound(0)
	if err != nil {
		return "", nil, err
	}
	return name, root, nil
}

// Encode serializes root as a named compound
func Encode(name string, root *Compound) ([]byte, error) {
	e := &encoder{buf: make([]byte, 0, 4096)}
	e.buf = append(e.buf, byte(TagCompound))
	if err := e.str(name); err != nil {
		return nil, err
	}
	if err := e.compound(root); err != nil {
		return nil, err
	}
	return e.buf, nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) need(n int) ([]byte, error) {
	if n < 0 || len(d.buf)-d.off < n {
		return nil, ErrTruncated
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) u8() (byte, error) {
	b, err := d.need(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.need(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.need(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.need(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) str() (string, error) {
	n, err := d.u16()
	if err != nil {
		return "", err
	}
	b, err := d.need(int(n))
	if err != nil {
		return "", err
	}
	return decodeMUTF8(b)
}

// arrayLen reads a signed length and checks it against the remaining bytes
func (d *decoder) arrayLen(elemSize int) (int, error) {
	v, err := d.u32()
	if err != nil {
		return 0, err
	}
	n := int(int32(v))
	if n < 0 {
		return 0, fmt.Errorf("nbt: negative array length %d", n)
	}
	if n > (len(d.buf)-d.off)/elemSize {
		return 0, ErrTruncated
	}
	return n, nil
}

func (d *decoder) compound(depth int) (*Compound, error) {
	if depth >= MaxDepth {
		return nil, ErrTooDeep
	}
	c := NewCompound()
	for {
		id, err := d.u8()
		if err != nil {
			return nil, err
		}
		if TagType(id) == TagEnd {
			return c, nil
		}
		name, err := d.str()
		if err != nil {
			return nil, err
		}
		t, err := d.payload(TagType(id), depth+1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		c.Put(name, t)
	}
}

func (d *decoder) payload(id TagType, depth int) (Tag, error) {
	switch id {
	case TagByte:
		v, err := d.u8()
		return Byte(int8(v)), err
	case TagShort:
		v, err := d.u16()
		return Short(int16(v)), err
	case TagInt:
		v, err := d.u32()
		return Int(int32(v)), err
	case TagLong:
		v, err := d.u64()
		return Long(int64(v)), err
	case TagFloat:
		v, err := d.u32()
		return Float(math.Float32frombits(v)), err
	case TagDouble:
		v, err := d.u64()
		return Double(math.Float64frombits(v)), err
	case TagByteArray:
		n, err := d.arrayLen(1)
		if err != nil {
			return nil, err
		}
		b, _ := d.need(n)
		return append(ByteArray(nil), b...), nil
	case TagString:
		s, err := d.str()
		return String(s), err
	case TagList:
		return d.list(depth)
	case TagCompound:
		return d.compound(depth)
	case TagIntArray:
		n, err := d.arrayLen(4)
		if err != nil {
			return nil, err
		}
		out := make(IntArray, n)
		for i := range out {
			v, _ := d.u32()
			out[i] = int32(v)
		}
		return out, nil
	case TagLongArray:
		n, err := d.arrayLen(8)
		if err != nil {
			return nil, err
		}
		out := make(LongArray, n)
		for i := range out {
			v, _ := d.u64()
			out[i] = int64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("nbt: unknown tag type %d", byte(id))
	}
}

func (d *decoder) list(depth int) (*List, error) {
	if depth >= MaxDepth {
		return nil, ErrTooDeep
	}
	elem, err := d.u8()
	if err != nil {
		return nil, err
	}
	n, err := d.arrayLen(1)
	if err != nil {
		return nil, err
	}
	l := &List{Elem: TagType(elem)}
	if n == 0 {
		return l, nil
	}
	if l.Elem == TagEnd {
		return nil, fmt.Errorf("nbt: non-empty list of End tags")
	}
	l.Items = make([]Tag, 0, n)
	for i := 0; i < n; i++ {
		t, err := d.payload(l.Elem, depth+1)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		l.Items = append(l.Items, t)
	}
	return l, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) str(s string) error {
	b := encodeMUTF8(s)
	if len(b) > math.MaxUint16 {
		return fmt.Errorf("nbt: string of %d bytes exceeds 65535", len(b))
	}
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(len(b)))
	e.buf = append(e.buf, b...)
	return nil
}

func (e *encoder) compound(c *Compound) error {
	for _, k := range c.Keys() {
		t := c.values[k]
		e.buf = append(e.buf, byte(t.Type()))
		if err := e.str(k); err != nil {
			return err
		}
		if err := e.payload(t); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	e.buf = append(e.buf, byte(TagEnd))
	return nil
}

func (e *encoder) payload(t Tag) error {
	switch v := t.(type) {
	case Byte:
		e.buf = append(e.buf, byte(v))
	case Short:
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(v))
	case Int:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
	case Long:
		e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
	case Float:
		e.buf = binary.BigEndian.AppendUint32(e.buf, math.Float32bits(float32(v)))
	case Double:
		e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(float64(v)))
	case ByteArray:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v)))
		e.buf = append(e.buf, v...)
	case String:
		return e.str(string(v))
	case *List:
		elem := v.Elem
		e.buf = append(e.buf, byte(elem))
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v.Items)))
		for i, it := range v.Items {
			if it.Type() != elem {
				return fmt.Errorf("[%d]: list of %s holds %s", i, elem, it.Type())
			}
			if err := e.payload(it); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case *Compound:
		return e.compound(v)
	case IntArray:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v)))
		for _, x := range v {
			e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(x))
		}
	case LongArray:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v)))
		for _, x := range v {
			e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(x))
		}
	default:
		return fmt.Errorf("nbt: cannot encode %T", t)
	}
	return nil
}
