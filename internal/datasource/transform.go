package datasource

import (
	"strconv"
	"strings"

	"github.com/sitekit/siteforge/internal/template"
)

// applyMapping projects the raw value through a field mapping. Each target
// evaluates its path, applies the optional transform, and falls back when
// the result is null.
func applyMapping(raw any, mapping map[string]FieldSpec) map[string]any {
	out := make(map[string]any, len(mapping))
	for target, spec := range mapping {
		v := template.ExtractPath(raw, spec.Path)
		if spec.Transform != "" {
			v = applyTransform(v, spec.Transform)
		}
		if v == nil && spec.Fallback != nil {
			v = spec.Fallback
		}
		out[target] = v
	}
	return out
}

// applyTransform converts a mapped value. Unknown transforms are a no-op;
// nil input stays nil so fallbacks still apply.
func applyTransform(v any, transform string) any {
	if v == nil {
		return nil
	}
	switch transform {
	case "uppercase":
		if s, ok := v.(string); ok {
			return strings.ToUpper(s)
		}
		return v
	case "lowercase":
		if s, ok := v.(string); ok {
			return strings.ToLower(s)
		}
		return v
	case "trim":
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return v
	case "number":
		return toNumber(v)
	case "integer":
		if n := toNumber(v); n != nil {
			return int64(n.(float64))
		}
		return nil
	case "boolean":
		return toBoolean(v)
	case "string":
		return template.Stringify(v)
	default:
		return v
	}
}

func toNumber(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case bool:
		if n {
			return float64(1)
		}
		return float64(0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return nil
	}
}

func toBoolean(v any) any {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no", "":
			return false
		}
		return true
	default:
		return v != nil
	}
}
