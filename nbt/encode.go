package nbt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

var ErrUnsupportedValue = errors.New("nbt: unsupported value type")

// Encode serializes a tree with the same wire convention Decode reads,
// making the pair a structural round trip. Compound children are written
// in sorted name order so output bytes are deterministic.
func Encode(name string, root Compound) ([]byte, error) {
	buf := []byte{byte(TagCompound)}
	buf = appendString(buf, name)
	return appendCompound(buf, root)
}

func tagOf(v any) (Tag, error) {
	switch v.(type) {
	case int8:
		return TagByte, nil
	case int16:
		return TagShort, nil
	case int32:
		return TagInt, nil
	case int64:
		return TagLong, nil
	case float32:
		return TagFloat, nil
	case float64:
		return TagDouble, nil
	case []byte:
		return TagByteArray, nil
	case string:
		return TagString, nil
	case List:
		return TagList, nil
	case Compound:
		return TagCompound, nil
	case []int32:
		return TagIntArray, nil
	case []int64:
		return TagLongArray, nil
	}
	return TagEnd, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func appendCompound(buf []byte, c Compound) ([]byte, error) {
	var err error
	for _, name := range slices.Sorted(maps.Keys(c)) {
		tag, tagErr := tagOf(c[name])
		if tagErr != nil {
			return nil, fmt.Errorf("%w (name %q)", tagErr, name)
		}
		buf = append(buf, byte(tag))
		buf = appendString(buf, name)
		if buf, err = appendValue(buf, c[name]); err != nil {
			return nil, err
		}
	}
	return append(buf, byte(TagEnd)), nil
}

func appendValue(buf []byte, v any) ([]byte, error) {
	switch v := v.(type) {
	case int8:
		return append(buf, byte(v)), nil
	case int16:
		return binary.BigEndian.AppendUint16(buf, uint16(v)), nil
	case int32:
		return binary.BigEndian.AppendUint32(buf, uint32(v)), nil
	case int64:
		return binary.BigEndian.AppendUint64(buf, uint64(v)), nil
	case float32:
		return binary.BigEndian.AppendUint32(buf, math.Float32bits(v)), nil
	case float64:
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(v)), nil
	case []byte:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		return append(buf, v...), nil
	case string:
		return appendString(buf, v), nil
	case List:
		return appendList(buf, v)
	case Compound:
		return appendCompound(buf, v)
	case []int32:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		for _, e := range v {
			buf = binary.BigEndian.AppendUint32(buf, uint32(e))
		}
		return buf, nil
	case []int64:
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		for _, e := range v {
			buf = binary.BigEndian.AppendUint64(buf, uint64(e))
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func appendList(buf []byte, list List) ([]byte, error) {
	element := list.Element
	if len(list.Items) > 0 {
		// trust the items over a stale Element tag
		tag, err := tagOf(list.Items[0])
		if err != nil {
			return nil, err
		}
		element = tag
	}
	buf = append(buf, byte(element))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(list.Items)))
	var err error
	for _, item := range list.Items {
		tag, tagErr := tagOf(item)
		if tagErr != nil {
			return nil, tagErr
		}
		if tag != element {
			return nil, fmt.Errorf("%w: %v item in %v list", ErrUnsupportedValue, tag, element)
		}
		if buf, err = appendValue(buf, item); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
