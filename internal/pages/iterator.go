package pages

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sitekit/siteforge/internal/template"
)

// ExpandRepeater clones a repeater's children once per element of its
// data-source value. The value is the already-fetched source; dataPath
// navigates into it, and a non-array result expands to nothing with a
// warning. Each clone's string props resolve against a per-element context.
func ExpandRepeater(repeater *ComponentInstance, value any, logger *slog.Logger) []*ComponentInstance {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := repeater.IteratorConfig
	if cfg == nil {
		cfg = &IteratorConfig{}
	}

	target := value
	if cfg.DataPath != "" {
		target = template.ExtractPath(value, cfg.DataPath)
	}

	arr, ok := target.([]any)
	if !ok {
		logger.Warn("repeater data is not an array",
			"instance", repeater.InstanceID, "dataPath", cfg.DataPath)
		return nil
	}

	var out []*ComponentInstance
	for i, element := range arr {
		ctx := &template.DataContext{
			Item:       element,
			Index:      i,
			ItemAlias:  cfg.ItemAlias,
			IndexAlias: cfg.IndexAlias,
		}

		key := fmt.Sprintf("%d", i)
		if cfg.KeyPath != "" {
			if kv := template.ExtractPath(element, cfg.KeyPath); kv != nil {
				key = template.Stringify(kv)
			}
		}

		for _, child := range repeater.Children {
			clone := cloneInstance(child)
			if clone == nil {
				continue
			}
			resolveInstanceProps(clone, ctx)
			suffixInstanceIDs(clone, key, true)
			clone.Key = key
			out = append(out, clone)
		}
	}
	return out
}

// cloneInstance deep-copies a subtree through its JSON form, the same shape
// it is persisted in.
func cloneInstance(n *ComponentInstance) *ComponentInstance {
	data, err := json.Marshal(n)
	if err != nil {
		return nil
	}
	var clone ComponentInstance
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil
	}
	return &clone
}

// resolveInstanceProps applies the template resolver to every prop value in
// the subtree, recursively.
func resolveInstanceProps(n *ComponentInstance, ctx *template.DataContext) {
	if n.Props != nil {
		resolved := template.ResolveValue(n.Props, ctx)
		if m, ok := resolved.(map[string]any); ok {
			n.Props = m
		}
	}
	for _, child := range n.Children {
		resolveInstanceProps(child, ctx)
	}
}

// suffixInstanceIDs rewrites the clone's instance ids so expanded rows do
// not collide with each other or the template subtree. The root clone keeps
// its parentId - it still hangs off the repeater.
func suffixInstanceIDs(n *ComponentInstance, key string, isRoot bool) {
	n.InstanceID = n.InstanceID + "-" + key
	if !isRoot && n.ParentID != "" {
		n.ParentID = n.ParentID + "-" + key
	}
	for _, child := range n.Children {
		suffixInstanceIDs(child, key, false)
	}
}
