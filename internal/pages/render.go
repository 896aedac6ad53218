package pages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sitekit/siteforge/internal/datasource"
)

// RegistryChecker is the slice of the component registry the orchestrator
// needs: existence and activation of referenced components.
type RegistryChecker interface {
	Exists(ctx context.Context, pluginID, componentID string) (exists, active bool, err error)
}

// RenderResult is the bundle the frontend renderer consumes: the unresolved
// tree plus the resolved data. Template tokens are evaluated client-side.
type RenderResult struct {
	Tree        *Tree               `json:"tree"`
	Data        map[string]any      `json:"data"`
	Errors      map[string]string   `json:"errors"`
	Warnings    []string            `json:"warnings,omitempty"`
	PageMeta    datasource.PageMeta `json:"pageMeta"`
	FetchTimeMs int64               `json:"fetchTimeMs"`
}

// Orchestrator assembles a page response: active version, reference check,
// data aggregation.
type Orchestrator struct {
	pages    *Store
	versions *VersionStore
	registry RegistryChecker
	engine   *datasource.Engine
	logger   *slog.Logger
}

// NewOrchestrator wires the long-lived collaborators created at startup.
func NewOrchestrator(pages *Store, versions *VersionStore, registry RegistryChecker, engine *datasource.Engine, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{pages: pages, versions: versions, registry: registry, engine: engine, logger: logger}
}

// Render loads the page's active tree, verifies component references, and
// aggregates its data sources. Unknown or inactive references produce
// warnings, never failures.
func (o *Orchestrator) Render(ctx context.Context, pageID string, params map[string]string) (*RenderResult, error) {
	page, err := o.pages.Get(ctx, pageID)
	if err != nil {
		return nil, err
	}

	version, err := o.versions.GetActive(ctx, pageID)
	if err != nil {
		return nil, err
	}

	tree, err := ParseTree(version.PageDefinition)
	if err != nil {
		return nil, err
	}

	warnings := o.checkReferences(ctx, tree)

	meta := datasource.PageMeta{
		PageID:   page.ID,
		PageName: page.PageName,
	}
	if page.Title != nil {
		meta.Title = *page.Title
	}
	if page.Description != nil {
		meta.Description = *page.Description
	}
	if page.Path != nil {
		meta.Path = *page.Path
	}

	start := time.Now()
	data := map[string]any{}
	errors := map[string]string{}
	fetchTime := int64(0)

	configs, err := o.pageConfigs(page.DataSourcesJSON)
	if err != nil {
		warnings = append(warnings, err.Error())
	} else if len(configs) > 0 {
		result := o.engine.FetchAll(ctx, configs, params)
		data = result.Data
		errors = result.Errors
		fetchTime = result.FetchTimeMs
	} else {
		fetchTime = time.Since(start).Milliseconds()
	}

	return &RenderResult{
		Tree:        tree,
		Data:        data,
		Errors:      errors,
		Warnings:    warnings,
		PageMeta:    meta,
		FetchTimeMs: fetchTime,
	}, nil
}

// PageConfigs exposes a page's parsed data-source configs for the per-key
// fetch endpoints.
func (o *Orchestrator) PageConfigs(ctx context.Context, pageID string) (map[string]datasource.Config, datasource.PageMeta, error) {
	page, err := o.pages.Get(ctx, pageID)
	if err != nil {
		return nil, datasource.PageMeta{}, err
	}
	configs, err := o.pageConfigs(page.DataSourcesJSON)
	if err != nil {
		return nil, datasource.PageMeta{}, err
	}
	meta := datasource.PageMeta{PageID: page.ID, PageName: page.PageName}
	if page.Title != nil {
		meta.Title = *page.Title
	}
	if page.Path != nil {
		meta.Path = *page.Path
	}
	return configs, meta, nil
}

func (o *Orchestrator) pageConfigs(blob *string) (map[string]datasource.Config, error) {
	if blob == nil {
		return map[string]datasource.Config{}, nil
	}
	configs, err := datasource.ParseConfigs(*blob)
	if err != nil {
		return nil, fmt.Errorf("page data sources unparseable: %w", err)
	}
	return configs, nil
}

// checkReferences verifies every (pluginId, componentId) the tree uses.
func (o *Orchestrator) checkReferences(ctx context.Context, tree *Tree) []string {
	var warnings []string
	for _, ref := range tree.References() {
		exists, active, err := o.registry.Exists(ctx, ref[0], ref[1])
		if err != nil {
			o.logger.Error("reference check failed", "plugin", ref[0], "component", ref[1], "error", err)
			continue
		}
		switch {
		case !exists:
			warnings = append(warnings, fmt.Sprintf("component %s/%s is not registered", ref[0], ref[1]))
		case !active:
			warnings = append(warnings, fmt.Sprintf("component %s/%s is inactive", ref[0], ref[1]))
		}
	}
	return warnings
}
