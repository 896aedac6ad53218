// Package pages owns page metadata, the append-only version store, the
// component-instance tree, and the render orchestrator that assembles a
// page response.
package pages

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sitekit/siteforge/internal/datasource"
	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

// ComponentInstance is one node in a page's component tree. The persisted
// form is one JSON blob per version; in memory the tree is parent-to-child
// only, with ParentID kept on children for validation.
type ComponentInstance struct {
	InstanceID  string `json:"instanceId"`
	PluginID    string `json:"pluginId"`
	ComponentID string `json:"componentId"`

	ParentID     string `json:"parentId,omitempty"` // empty for root children
	DisplayOrder int    `json:"displayOrder"`

	Position string `json:"position,omitempty"` // CSS strings
	Size     string `json:"size,omitempty"`

	Props  map[string]any    `json:"props,omitempty"`
	Styles map[string]string `json:"styles,omitempty"`

	Children []*ComponentInstance `json:"children,omitempty"`

	DataSource     *datasource.Config `json:"dataSource,omitempty"`
	IteratorConfig *IteratorConfig    `json:"iteratorConfig,omitempty"`

	// Events are persisted as opaque JSON; the server never interprets them.
	Events json.RawMessage `json:"events,omitempty"`

	// Slot routes the instance into a PageLayout region.
	Slot string `json:"slot,omitempty"`

	// Key carries the per-element diffing identity on repeater clones.
	Key string `json:"key,omitempty"`
}

// IteratorConfig configures a repeater instance.
type IteratorConfig struct {
	DataPath   string `json:"dataPath,omitempty"`
	ItemAlias  string `json:"itemAlias,omitempty"`  // default "item"
	IndexAlias string `json:"indexAlias,omitempty"` // default "index"
	KeyPath    string `json:"keyPath,omitempty"`
}

// Tree is the root of a page definition.
type Tree struct {
	Children []*ComponentInstance `json:"children"`
}

// ParseTree decodes a page definition blob.
func ParseTree(blob string) (*Tree, error) {
	var tree Tree
	if err := json.Unmarshal([]byte(blob), &tree); err != nil {
		return nil, fmt.Errorf("parse page definition: %w", err)
	}
	return &tree, nil
}

// Serialize encodes the tree back to its persisted form.
func (t *Tree) Serialize() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("serialize page definition: %w", err)
	}
	return string(data), nil
}

// Walk visits every instance depth-first, parents before children.
func (t *Tree) Walk(visit func(*ComponentInstance)) {
	var rec func(nodes []*ComponentInstance)
	rec = func(nodes []*ComponentInstance) {
		for _, n := range nodes {
			visit(n)
			rec(n.Children)
		}
	}
	rec(t.Children)
}

// References returns the distinct (pluginId, componentId) pairs the tree
// uses, in first-seen order.
func (t *Tree) References() [][2]string {
	seen := make(map[[2]string]bool)
	var refs [][2]string
	t.Walk(func(n *ComponentInstance) {
		key := [2]string{n.PluginID, n.ComponentID}
		if !seen[key] {
			seen[key] = true
			refs = append(refs, key)
		}
	})
	return refs
}

// SortSiblings orders a sibling slice by (displayOrder, instanceId). The
// pair gives siblings a total order even when display orders collide.
func SortSiblings(nodes []*ComponentInstance) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].DisplayOrder != nodes[j].DisplayOrder {
			return nodes[i].DisplayOrder < nodes[j].DisplayOrder
		}
		return nodes[i].InstanceID < nodes[j].InstanceID
	})
}

// ManifestLookup resolves a component's manifest for tree validation.
// Returning nil means the component is unknown.
type ManifestLookup func(pluginID, componentID string) *pkgplugin.ComponentManifest

// Validate checks the structural invariants of the tree:
// instance ids unique (which also rules out cycles in the decoded form),
// every child's parentId matching its parent's instanceId, and - when a
// manifest lookup is supplied - capability and child-category rules.
func (t *Tree) Validate(lookup ManifestLookup) error {
	ids := make(map[string]bool)

	var rec func(parent *ComponentInstance, nodes []*ComponentInstance) error
	rec = func(parent *ComponentInstance, nodes []*ComponentInstance) error {
		for _, n := range nodes {
			if n.InstanceID == "" {
				return fmt.Errorf("instance without instanceId (component %s/%s)", n.PluginID, n.ComponentID)
			}
			if ids[n.InstanceID] {
				return fmt.Errorf("duplicate instanceId %q", n.InstanceID)
			}
			ids[n.InstanceID] = true

			if parent == nil {
				if n.ParentID != "" {
					return fmt.Errorf("root instance %q carries parentId %q", n.InstanceID, n.ParentID)
				}
			} else if n.ParentID != parent.InstanceID {
				return fmt.Errorf("instance %q has parentId %q, want %q", n.InstanceID, n.ParentID, parent.InstanceID)
			}

			if lookup != nil {
				if err := validateCapabilities(n, lookup); err != nil {
					return err
				}
			}

			if err := rec(n, n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	return rec(nil, t.Children)
}

func validateCapabilities(n *ComponentInstance, lookup ManifestLookup) error {
	m := lookup(n.PluginID, n.ComponentID)
	if m == nil {
		// Unknown components are tolerated here; the render orchestrator
		// reports them as warnings instead of failing the tree.
		return nil
	}

	if !m.Capabilities.CanHaveChildren && len(n.Children) > 0 {
		return fmt.Errorf("instance %q: component %s cannot have children", n.InstanceID, m.Key())
	}

	if m.AllowedChildTypes != nil {
		allowed := make(map[string]bool, len(m.AllowedChildTypes))
		for _, c := range m.AllowedChildTypes {
			allowed[c] = true
		}
		for _, child := range n.Children {
			cm := lookup(child.PluginID, child.ComponentID)
			if cm == nil {
				continue
			}
			if !allowed[cm.Category] {
				return fmt.Errorf("instance %q: child category %q not allowed under %s",
					child.InstanceID, cm.Category, m.Key())
			}
		}
	}
	return nil
}
