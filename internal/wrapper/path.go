package wrapper

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Segment is one step of a data path: either a mapping key or a sequence index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path is the typed form of a dotted/indexed data path such as
// "lines[0].quantity[1].value". Paths are parsed once and reused; the string
// form is bijective with the tree structure of the data object.
type Path []Segment

// ParsePath parses the canonical dotted/indexed path syntax.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("parse path: empty path")
	}
	var p Path
	rest := s
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			if len(p) == 0 {
				return nil, fmt.Errorf("parse path %q: leading dot", s)
			}
			rest = rest[1:]
			if rest == "" {
				return nil, fmt.Errorf("parse path %q: trailing dot", s)
			}
		case '[':
			close := strings.IndexByte(rest, ']')
			if close < 0 {
				return nil, fmt.Errorf("parse path %q: unterminated index", s)
			}
			idx, err := strconv.Atoi(rest[1:close])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("parse path %q: bad index %q", s, rest[1:close])
			}
			p = append(p, Segment{Index: idx, IsIndex: true})
			rest = rest[close+1:]
		default:
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			p = append(p, Segment{Key: rest[:end]})
			rest = rest[end:]
		}
	}
	return p, nil
}

// String renders the canonical path form.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if seg.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Key)
	}
	return b.String()
}

// TerminalKey returns the last key segment's name, skipping trailing indexes.
// The sentinel-default table is keyed by terminal field name.
func (p Path) TerminalKey() string {
	for i := len(p) - 1; i >= 0; i-- {
		if !p[i].IsIndex {
			return p[i].Key
		}
	}
	return ""
}

// Lookup walks data along p. The second return is false when any segment does
// not resolve.
func Lookup(data any, p Path) (any, bool) {
	cur := data
	for _, seg := range p {
		if seg.IsIndex {
			arr, ok := cur.([]any)
			if !ok || seg.Index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.Index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg.Key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// NonNullLeafPaths returns the canonical path of every non-null leaf value in
// data, depth-first, sorted for determinism.
func NonNullLeafPaths(data any) []string {
	var out []string
	var walk func(v any, prefix Path)
	walk = func(v any, prefix Path) {
		switch t := v.(type) {
		case map[string]any:
			for k, child := range t {
				walk(child, append(prefix, Segment{Key: k}))
			}
		case []any:
			for i, child := range t {
				walk(child, append(prefix, Segment{Index: i, IsIndex: true}))
			}
		default:
			if t == nil {
				return
			}
			out = append(out, prefix.String())
		}
	}
	walk(data, nil)
	sort.Strings(out)
	return out
}
