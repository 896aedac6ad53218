// Package models holds the persisted row types shared by the repositories.
package models

import (
	"encoding/json"
	"time"

	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

// RegistryEntry is the persistent projection of a component manifest.
// Entries outlive the plugin files that produced them: removing a plugin
// from disk deactivates its entries but never deletes rows that pages
// still reference.
type RegistryEntry struct {
	ID              string    `db:"id" json:"id"`
	PluginID        string    `db:"plugin_id" json:"pluginId"`
	ComponentID     string    `db:"component_id" json:"componentId"`
	ComponentName   string    `db:"component_name" json:"componentName"`
	Category        string    `db:"category" json:"category"`
	Icon            *string   `db:"icon" json:"icon,omitempty"`
	ManifestJSON    string    `db:"component_manifest" json:"-"`
	ReactBundlePath *string   `db:"react_bundle_path" json:"reactBundlePath,omitempty"`
	IsActive        bool      `db:"is_active" json:"isActive"`
	RegisteredAt    time.Time `db:"registered_at" json:"registeredAt"`
}

// Manifest deserializes the stored manifest blob.
func (e *RegistryEntry) Manifest() (*pkgplugin.ComponentManifest, error) {
	var m pkgplugin.ComponentManifest
	if err := json.Unmarshal([]byte(e.ManifestJSON), &m); err != nil {
		return nil, err
	}
	return &m, nil
}
