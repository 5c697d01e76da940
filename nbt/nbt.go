// Package nbt implements the self-describing tagged binary tree format
// used for structured chunk data in voxel-world save files.
//
// A tree is built from thirteen node kinds: End, Byte, Short, Int, Long,
// Float, Double, ByteArray, String, List, Compound, IntArray and LongArray.
// Numerics are fixed-width big-endian. Names and strings are u16
// length-prefixed byte sequences; they are treated as raw bytes, which is
// byte-exact for the ASCII keys and identifiers chunk data carries.
// Decoded values map onto Go types as follows:
//
//	Byte      int8          ByteArray  []byte
//	Short     int16         IntArray   []int32
//	Int       int32         LongArray  []int64
//	Long      int64         String     string
//	Float     float32       List       nbt.List
//	Double    float64       Compound   nbt.Compound
package nbt

import "fmt"

type Tag byte

const (
	TagEnd Tag = iota
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

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", byte(t))
}

// Compound is a mapping of unique names to child nodes.
// A Compound exclusively owns its children; the format is a strict tree.
type Compound map[string]any

// List holds a homogeneous sequence of unnamed nodes.
// Element is the tag of every item; an empty list may carry TagEnd.
type List struct {
	Element Tag
	Items   []any
}

// Compound returns the named child compound.
func (c Compound) Compound(name string) (Compound, bool) {
	v, ok := c[name].(Compound)
	return v, ok
}

// List returns the named child list.
func (c Compound) List(name string) (List, bool) {
	v, ok := c[name].(List)
	return v, ok
}

// String returns the named string child.
func (c Compound) String(name string) (string, bool) {
	v, ok := c[name].(string)
	return v, ok
}

// Int returns the named integer child widened to int64.
// It accepts any of the four integer node kinds.
func (c Compound) Int(name string) (int64, bool) {
	switch v := c[name].(type) {
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// Float returns the named floating-point child widened to float64.
func (c Compound) Float(name string) (float64, bool) {
	switch v := c[name].(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func (c Compound) ByteArray(name string) ([]byte, bool) {
	v, ok := c[name].([]byte)
	return v, ok
}

func (c Compound) IntArray(name string) ([]int32, bool) {
	v, ok := c[name].([]int32)
	return v, ok
}

func (c Compound) LongArray(name string) ([]int64, bool) {
	v, ok := c[name].([]int64)
	return v, ok
}
