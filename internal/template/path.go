package template

import (
	"strconv"
	"strings"
)

// pathSegment is one step of a dotted/bracketed path.
// Either Key is set (field lookup) or Index is set (array index).
type pathSegment struct {
	Key     string
	Index   int
	IsIndex bool
}

// parsePath splits a path expression into segments. Supported forms:
//
//	a.b.c          field lookups
//	items[0].name  array index
//	a['x.y']       quoted key (allows dots inside keys)
//	a["x"]         double-quoted key
//
// A malformed path returns ok=false; callers treat that as a miss.
func parsePath(expr string) ([]pathSegment, bool) {
	var segs []pathSegment
	i := 0
	n := len(expr)

	for i < n {
		switch expr[i] {
		case '.':
			i++
			if i >= n || expr[i] == '.' {
				return nil, false // trailing dot or empty segment
			}
		case '[':
			i++
			if i >= n {
				return nil, false
			}
			if expr[i] == '\'' || expr[i] == '"' {
				quote := expr[i]
				i++
				end := strings.IndexByte(expr[i:], quote)
				if end < 0 {
					return nil, false
				}
				key := expr[i : i+end]
				i += end + 1
				if i >= n || expr[i] != ']' {
					return nil, false
				}
				i++
				segs = append(segs, pathSegment{Key: key})
				continue
			}
			end := strings.IndexByte(expr[i:], ']')
			if end < 0 {
				return nil, false
			}
			idx, err := strconv.Atoi(expr[i : i+end])
			if err != nil || idx < 0 {
				return nil, false
			}
			i += end + 1
			segs = append(segs, pathSegment{Index: idx, IsIndex: true})
		default:
			start := i
			for i < n && expr[i] != '.' && expr[i] != '[' {
				i++
			}
			key := expr[start:i]
			if key == "" {
				return nil, false
			}
			segs = append(segs, pathSegment{Key: key})
		}
	}

	if len(segs) == 0 {
		return nil, false
	}
	return segs, true
}

// navigate applies segments to a value. Any miss - nil container, absent
// key, index out of range, type mismatch - yields nil.
func navigate(value any, segs []pathSegment) any {
	cur := value
	for _, s := range segs {
		if cur == nil {
			return nil
		}
		if s.IsIndex {
			arr, ok := cur.([]any)
			if !ok || s.Index >= len(arr) {
				return nil
			}
			cur = arr[s.Index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[s.Key]
		if !ok {
			return nil
		}
	}
	return cur
}

// ExtractPath evaluates a dotted/bracketed path against a raw value with no
// surrounding context. Used by the data-source field mapper; shares the path
// grammar with template resolution. Returns nil on any miss.
func ExtractPath(value any, path string) any {
	segs, ok := parsePath(path)
	if !ok {
		return nil
	}
	return navigate(value, segs)
}
