// Package plugin defines the published API surface for SiteForge plugins.
//
// Plugin packages can be implemented as either:
//   - script entry objects (portable, isolated, via goja)
//   - native factories (compiled into the host, registered at startup)
//
// The host doesn't care which runtime backs a plugin - both produce an
// entry object implementing this interface and are driven uniformly by
// the lifecycle manager.
package plugin

import (
	"context"
	"log/slog"
)

// Plugin is the entry object every plugin package provides.
//
// The lifecycle manager calls the four hooks in state-machine order:
// OnLoad when the package transitions Discovered->Loaded, OnActivate for
// Loaded->Active, OnDeactivate for Active->Loaded, OnUninstall on teardown.
// A plugin may contribute several components; single-component plugins
// return a one-element slice from Manifests.
type Plugin interface {
	// Manifests returns the component manifests this plugin contributes.
	// Called after OnLoad succeeds; results are registered in the catalog.
	Manifests() []ComponentManifest

	OnLoad(ctx context.Context, pc *Context) error
	OnActivate(ctx context.Context, pc *Context) error
	OnDeactivate(ctx context.Context, pc *Context) error
	OnUninstall(ctx context.Context, pc *Context) error
}

// Context carries the per-plugin environment passed to every hook.
type Context struct {
	// PluginID and Version identify the package being driven.
	PluginID string
	Version  string

	// DataDir is a directory private to this plugin for its own state.
	DataDir string

	// Config holds the per-plugin configuration mapping from the host.
	Config map[string]string

	// Logger is namespaced to the plugin.
	Logger *slog.Logger
}

// ConfigValue returns a config entry or the given default.
func (c *Context) ConfigValue(key, def string) string {
	if c.Config == nil {
		return def
	}
	if v, ok := c.Config[key]; ok {
		return v
	}
	return def
}
