package nbt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrMalformed = errors.New("nbt: malformed tree")

// Decode parses a complete tree from data in a single forward pass.
// The root must be a named compound; its name and body are returned.
// Failures wrap ErrMalformed and carry the byte offset they occurred at.
func Decode(data []byte) (string, Compound, error) {
	d := &decoder{data: data}

	tag, err := d.readTag()
	if err != nil {
		return "", nil, err
	}
	if tag != TagCompound {
		return "", nil, d.errorf("root tag is %v, not Compound", tag)
	}
	name, err := d.readString()
	if err != nil {
		return "", nil, err
	}
	root, err := d.readCompound()
	if err != nil {
		return "", nil, err
	}
	return name, root, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", ErrMalformed, fmt.Sprintf(format, args...), d.pos)
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 {
		return nil, d.errorf("negative length %d", n)
	}
	if n > len(d.data)-d.pos {
		return nil, d.errorf("length %d exceeds remaining %d bytes", n, len(d.data)-d.pos)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readTag() (Tag, error) {
	b, err := d.take(1)
	if err != nil {
		return TagEnd, err
	}
	tag := Tag(b[0])
	if tag > TagLongArray {
		return TagEnd, d.errorf("unknown tag type %d", b[0])
	}
	return tag, nil
}

func (d *decoder) readInt16() (int16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (d *decoder) readInt32() (int32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (d *decoder) readInt64() (int64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (d *decoder) readString() (string, error) {
	b, err := d.take(2)
	if err != nil {
		return "", err
	}
	s, err := d.take(int(binary.BigEndian.Uint16(b)))
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// readCount reads an i32 element count and rejects values that cannot fit
// in the remaining input, bounding allocations before they happen.
func (d *decoder) readCount(elemSize int) (int, error) {
	n, err := d.readInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, d.errorf("negative count %d", n)
	}
	if int(n)*elemSize > len(d.data)-d.pos {
		return 0, d.errorf("count %d exceeds remaining %d bytes", n, len(d.data)-d.pos)
	}
	return int(n), nil
}

func (d *decoder) readCompound() (Compound, error) {
	c := make(Compound)
	for {
		tag, err := d.readTag()
		if err != nil {
			return nil, err
		}
		if tag == TagEnd {
			return c, nil
		}
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		value, err := d.readValue(tag)
		if err != nil {
			return nil, err
		}
		c[name] = value
	}
}

func (d *decoder) readList() (List, error) {
	elem, err := d.readTag()
	if err != nil {
		return List{}, err
	}
	count, err := d.readCount(1)
	if err != nil {
		return List{}, err
	}
	if elem == TagEnd && count > 0 {
		return List{}, d.errorf("list of %d End elements", count)
	}
	list := List{Element: elem, Items: make([]any, count)}
	for i := range list.Items {
		if list.Items[i], err = d.readValue(elem); err != nil {
			return List{}, err
		}
	}
	return list, nil
}

func (d *decoder) readValue(tag Tag) (any, error) {
	switch tag {
	case TagByte:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		return int8(b[0]), nil
	case TagShort:
		return d.readInt16()
	case TagInt:
		return d.readInt32()
	case TagLong:
		return d.readInt64()
	case TagFloat:
		v, err := d.readInt32()
		return math.Float32frombits(uint32(v)), err
	case TagDouble:
		v, err := d.readInt64()
		return math.Float64frombits(uint64(v)), err
	case TagByteArray:
		n, err := d.readCount(1)
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		return bytes.Clone(b), nil
	case TagString:
		return d.readString()
	case TagList:
		return d.readList()
	case TagCompound:
		return d.readCompound()
	case TagIntArray:
		n, err := d.readCount(4)
		if err != nil {
			return nil, err
		}
		values := make([]int32, n)
		for i := range values {
			if values[i], err = d.readInt32(); err != nil {
				return nil, err
			}
		}
		return values, nil
	case TagLongArray:
		n, err := d.readCount(8)
		if err != nil {
			return nil, err
		}
		values := make([]int64, n)
		for i := range values {
			if values[i], err = d.readInt64(); err != nil {
				return nil, err
			}
		}
		return values, nil
	default:
		return nil, d.errorf("unexpected tag %v", tag)
	}
}
