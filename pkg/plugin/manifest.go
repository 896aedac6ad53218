package plugin

import (
	"fmt"
)

// Component categories. Every manifest must declare exactly one.
const (
	CategoryUI     = "ui"
	CategoryLayout = "layout"
	CategoryForm   = "form"
	CategoryWidget = "widget"
	CategoryNavbar = "navbar"
	CategoryData   = "data"
)

// Categories is the fixed set of valid component categories.
var Categories = []string{
	CategoryUI, CategoryLayout, CategoryForm, CategoryWidget, CategoryNavbar, CategoryData,
}

// ValidCategory reports whether c is one of the fixed component categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Prop types for configurable props.
const (
	PropString   = "STRING"
	PropNumber   = "NUMBER"
	PropBoolean  = "BOOLEAN"
	PropSelect   = "SELECT"
	PropColor    = "COLOR"
	PropURL      = "URL"
	PropImage    = "IMAGE"
	PropRichText = "RICH_TEXT"
	PropJSON     = "JSON"
)

// Style types for configurable styles.
const (
	StyleSize    = "SIZE"
	StyleColor   = "COLOR"
	StyleSelect  = "SELECT"
	StyleNumber  = "NUMBER"
	StyleShadow  = "SHADOW"
	StyleBorder  = "BORDER"
	StyleSpacing = "SPACING"
)

var propTypes = map[string]bool{
	PropString: true, PropNumber: true, PropBoolean: true, PropSelect: true,
	PropColor: true, PropURL: true, PropImage: true, PropRichText: true, PropJSON: true,
}

var styleTypes = map[string]bool{
	StyleSize: true, StyleColor: true, StyleSelect: true, StyleNumber: true,
	StyleShadow: true, StyleBorder: true, StyleSpacing: true,
}

// ComponentManifest describes one component type contributed by a plugin.
// Manifests are immutable per plugin version; the registry persists them
// as a serialized blob keyed by (pluginId, componentId).
type ComponentManifest struct {
	// Identity
	PluginID      string `json:"pluginId"`      // stable plugin identifier
	PluginVersion string `json:"pluginVersion"` // semver, e.g. "1.2.0"
	ComponentID   string `json:"componentId"`   // unique within the plugin
	DisplayName   string `json:"displayName"`
	Category      string `json:"category"` // one of ui|layout|form|widget|navbar|data
	Icon          string `json:"icon,omitempty"`
	Description   string `json:"description,omitempty"`

	// Defaults applied to new instances
	DefaultProps  map[string]any    `json:"defaultProps,omitempty"`
	DefaultStyles map[string]string `json:"defaultStyles,omitempty"`

	// Editor configuration - ordered
	ConfigurableProps  []PropDefinition  `json:"configurableProps,omitempty"`
	ConfigurableStyles []StyleDefinition `json:"configurableStyles,omitempty"`

	SizeConstraints SizeConstraints `json:"sizeConstraints"`
	Capabilities    Capabilities    `json:"capabilities"`

	// AllowedChildTypes restricts child categories. nil means any.
	AllowedChildTypes []string `json:"allowedChildTypes,omitempty"`

	// Frontend artifacts - opaque to the host, consumed by the renderer.
	ReactComponentPath string `json:"reactComponentPath,omitempty"`
	Thumbnail          string `json:"thumbnail,omitempty"`
}

// Key returns the registry key "pluginId/componentId".
func (m *ComponentManifest) Key() string {
	return m.PluginID + "/" + m.ComponentID
}

// Validate checks the structural invariants of a manifest.
func (m *ComponentManifest) Validate() error {
	if m.PluginID == "" {
		return fmt.Errorf("manifest missing required 'pluginId' field")
	}
	if m.ComponentID == "" {
		return fmt.Errorf("manifest missing required 'componentId' field")
	}
	if !ValidCategory(m.Category) {
		return fmt.Errorf("manifest %s has invalid category %q", m.Key(), m.Category)
	}
	for _, p := range m.ConfigurableProps {
		if p.Name == "" {
			return fmt.Errorf("manifest %s has a prop definition without a name", m.Key())
		}
		if !propTypes[p.Type] {
			return fmt.Errorf("prop %q has invalid type %q", p.Name, p.Type)
		}
		if p.Type == PropSelect && len(p.Options) == 0 {
			return fmt.Errorf("prop %q is SELECT but declares no options", p.Name)
		}
	}
	for _, s := range m.ConfigurableStyles {
		if s.Property == "" {
			return fmt.Errorf("manifest %s has a style definition without a property", m.Key())
		}
		if !styleTypes[s.Type] {
			return fmt.Errorf("style %q has invalid type %q", s.Property, s.Type)
		}
	}
	for _, c := range m.AllowedChildTypes {
		if !ValidCategory(c) {
			return fmt.Errorf("manifest %s allows unknown child category %q", m.Key(), c)
		}
	}
	return nil
}

// PropDefinition describes one configurable prop exposed in the editor.
type PropDefinition struct {
	Name         string         `json:"name"`
	Type         string         `json:"type"` // STRING, NUMBER, BOOLEAN, SELECT, ...
	Label        string         `json:"label"`
	DefaultValue any            `json:"defaultValue,omitempty"`
	Required     bool           `json:"required,omitempty"`
	Options      []SelectOption `json:"options,omitempty"` // required iff type=SELECT
	HelpText     string         `json:"helpText,omitempty"`
}

// SelectOption is one choice of a SELECT prop.
type SelectOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StyleDefinition describes one configurable style property.
type StyleDefinition struct {
	Property     string   `json:"property"`
	Type         string   `json:"type"` // SIZE, COLOR, SELECT, NUMBER, SHADOW, BORDER, SPACING
	Label        string   `json:"label"`
	DefaultValue string   `json:"defaultValue,omitempty"`
	AllowedUnits []string `json:"allowedUnits,omitempty"`
	Category     string   `json:"category,omitempty"` // editor grouping, e.g. "typography"
}

// SizeConstraints bounds how instances of the component may be sized.
// All values are CSS length strings ("100px", "50%", "auto").
type SizeConstraints struct {
	Resizable           bool   `json:"resizable"`
	DefaultWidth        string `json:"defaultWidth,omitempty"`
	DefaultHeight       string `json:"defaultHeight,omitempty"`
	MinWidth            string `json:"minWidth,omitempty"`
	MaxWidth            string `json:"maxWidth,omitempty"`
	MinHeight           string `json:"minHeight,omitempty"`
	MaxHeight           string `json:"maxHeight,omitempty"`
	WidthLocked         bool   `json:"widthLocked,omitempty"`
	HeightLocked        bool   `json:"heightLocked,omitempty"`
	MaintainAspectRatio bool   `json:"maintainAspectRatio,omitempty"`
}

// Capabilities declares what the component can do at edit and render time.
type Capabilities struct {
	CanHaveChildren          bool `json:"canHaveChildren"`
	IsContainer              bool `json:"isContainer"`
	HasDataSource            bool `json:"hasDataSource"`
	AutoHeight               bool `json:"autoHeight"`
	IsResizable              bool `json:"isResizable"`
	SupportsTemplateBindings bool `json:"supportsTemplateBindings"`
}
