package nbt

import (
	"fmt"
	"io"
	"maps"
	"slices"
)

// Dump writes an indented, human-readable rendering of a decoded tree.
// Primitive arrays are summarized by length with a short value prefix.
func Dump(w io.Writer, name string, root Compound) {
	dumpNamed(w, 0, name, root)
}

func dumpNamed(w io.Writer, depth int, name string, v any) {
	indent := ""
	for range depth {
		indent += "  "
	}
	label := fmt.Sprintf("%s%q", indent, name)
	if name == "" {
		label = indent + "-"
	}

	switch v := v.(type) {
	case Compound:
		fmt.Fprintf(w, "%s: Compound(%d)\n", label, len(v))
		for _, childName := range slices.Sorted(maps.Keys(v)) {
			dumpNamed(w, depth+1, childName, v[childName])
		}
	case List:
		fmt.Fprintf(w, "%s: List<%v>(%d)\n", label, v.Element, len(v.Items))
		for _, item := range v.Items {
			dumpNamed(w, depth+1, "", item)
		}
	case []byte:
		fmt.Fprintf(w, "%s: byte[%d]%s\n", label, len(v), arrayPrefix(v))
	case []int32:
		fmt.Fprintf(w, "%s: int[%d]%s\n", label, len(v), arrayPrefix(v))
	case []int64:
		fmt.Fprintf(w, "%s: long[%d]%s\n", label, len(v), arrayPrefix(v))
	case string:
		fmt.Fprintf(w, "%s: %q\n", label, v)
	default:
		fmt.Fprintf(w, "%s: %v\n", label, v)
	}
}

func arrayPrefix[T any](values []T) string {
	const limit = 8
	if len(values) == 0 {
		return ""
	}
	if len(values) <= limit {
		return fmt.Sprintf(" %v", values)
	}
	return fmt.Sprintf(" %v...", values[:limit])
}
