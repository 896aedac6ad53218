// Package template implements {{path}} token resolution over a data context.
//
// Resolution is a pure function: the same string and context always produce
// the same output, and no failure escapes - a missing path, an index out of
// range, or a type mismatch all resolve to the empty string.
package template

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// DefaultItemAlias and DefaultIndexAlias are the root identifiers a repeater
// binds unless its iterator config overrides them.
const (
	DefaultItemAlias  = "item"
	DefaultIndexAlias = "index"
)

var tokenRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// DataContext carries the bindings visible to template expressions.
type DataContext struct {
	Item        any            // current repeater element, if any
	Index       int            // current repeater index
	DataSources map[string]any // fetched data keyed by source name
	SharedData  map[string]any // ambient page-level values

	// Aliases for the repeater bindings. Empty means the defaults.
	ItemAlias  string
	IndexAlias string
}

func (c *DataContext) itemAlias() string {
	if c.ItemAlias != "" {
		return c.ItemAlias
	}
	return DefaultItemAlias
}

func (c *DataContext) indexAlias() string {
	if c.IndexAlias != "" {
		return c.IndexAlias
	}
	return DefaultIndexAlias
}

// Resolve substitutes every {{ expression }} token in s against ctx.
// Strings without tokens pass through unchanged.
func Resolve(s string, ctx *DataContext) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return tokenRe.ReplaceAllStringFunc(s, func(tok string) string {
		inner := strings.TrimSpace(tok[2 : len(tok)-2])
		return Stringify(evaluate(inner, ctx))
	})
}

// ResolveValue walks props recursively: strings are resolved, arrays
// element-wise, nested maps per-key. Non-string scalars pass through.
func ResolveValue(v any, ctx *DataContext) any {
	switch val := v.(type) {
	case string:
		return Resolve(val, ctx)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ResolveValue(e, ctx)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = ResolveValue(e, ctx)
		}
		return out
	default:
		return v
	}
}

// evaluate resolves one expression against the context per the root order:
// item alias, index alias, named data source, then the
// dataSources/sharedData/item fallback chain.
func evaluate(expr string, ctx *DataContext) any {
	if ctx == nil {
		return nil
	}

	segs, ok := parsePath(expr)
	if !ok {
		return nil
	}
	root := segs[0]
	rest := segs[1:]

	if !root.IsIndex {
		if root.Key == ctx.itemAlias() {
			if len(rest) == 0 {
				return ctx.Item
			}
			return navigate(ctx.Item, rest)
		}
		if root.Key == ctx.indexAlias() {
			if len(rest) != 0 {
				return nil
			}
			return ctx.Index
		}
		if ctx.DataSources != nil {
			if v, ok := ctx.DataSources[root.Key]; ok {
				if len(rest) == 0 {
					return v
				}
				return navigate(v, rest)
			}
		}
	}

	// Fallback chain: dataSources, sharedData, then the item itself.
	if v := navigateMap(ctx.DataSources, segs); v != nil {
		return v
	}
	if v := navigateMap(ctx.SharedData, segs); v != nil {
		return v
	}
	return navigate(ctx.Item, segs)
}

func navigateMap(m map[string]any, segs []pathSegment) any {
	if m == nil {
		return nil
	}
	return navigate(map[string]any(m), segs)
}

// Stringify renders a resolved value the way the frontend expects:
// numbers without trailing zeros, booleans as true/false, composites as
// JSON, nil as the empty string.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
