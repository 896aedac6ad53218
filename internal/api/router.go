// Package api exposes the host's HTTP surface: the component catalog, admin
// plugin operations, site and page CRUD, the version store, and page data
// aggregation. Authentication happens at the edge in front of this process;
// handlers read the caller identity from the X-User-ID header.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sitekit/siteforge/internal/datasource"
	"github.com/sitekit/siteforge/internal/pages"
	"github.com/sitekit/siteforge/internal/plugin"
	"github.com/sitekit/siteforge/internal/registry"
	"github.com/sitekit/siteforge/internal/sites"
)

// Handlers bundles the long-lived services the routes close over. All of
// them are created once at startup and injected here - no container magic.
type Handlers struct {
	Registry     *registry.Store
	Lifecycle    *plugin.Manager
	Sites        *sites.Store
	Pages        *pages.Store
	Versions     *pages.VersionStore
	Engine       *datasource.Engine
	Orchestrator *pages.Orchestrator
	Logger       *slog.Logger
}

// Router builds the gin engine with every route mounted.
func Router(h *Handlers) *gin.Engine {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Component catalog
	r.GET("/components", h.listComponents)
	r.GET("/components/category/:category", h.componentsByCategory)
	r.GET("/components/:pluginId/:componentId", h.getComponent)
	r.GET("/components/:pluginId/:componentId/manifest", h.getComponentManifest)

	// Admin: registry and plugin lifecycle
	admin := r.Group("/admin")
	{
		admin.POST("/components/register", h.registerComponent)
		admin.POST("/components/upload", h.uploadPlugin)
		admin.PATCH("/components/:pluginId/:componentId/activate", h.activateComponent)
		admin.PATCH("/components/:pluginId/:componentId/deactivate", h.deactivateComponent)
		admin.DELETE("/components/:pluginId/:componentId", h.deleteComponent)

		admin.GET("/plugins", h.listPlugins)
		admin.POST("/plugins/:pluginId/activate", h.activatePlugin)
		admin.POST("/plugins/:pluginId/deactivate", h.deactivatePlugin)
		admin.POST("/plugins/:pluginId/uninstall", h.uninstallPlugin)
		admin.GET("/plugins/:pluginId/logs", h.pluginLogs)

		admin.POST("/datasource/cache/clear", h.clearCache)
		admin.GET("/errors", h.listErrorCodes)
	}

	// Sites
	r.GET("/sites", h.listSites)
	r.POST("/sites", h.createSite)
	r.GET("/sites/:siteId", h.getSite)
	r.PUT("/sites/:siteId", h.updateSite)
	r.DELETE("/sites/:siteId", h.deleteSite)
	r.POST("/sites/:siteId/publish", h.publishSite)
	r.POST("/sites/:siteId/unpublish", h.unpublishSite)

	// Pages
	r.GET("/sites/:siteId/pages", h.listPages)
	r.POST("/sites/:siteId/pages", h.createPage)
	r.PUT("/sites/:siteId/pages/reorder", h.reorderPages)
	r.GET("/pages/:pageId", h.getPage)
	r.PUT("/pages/:pageId", h.updatePage)
	r.DELETE("/pages/:pageId", h.deletePage)

	// Versions
	r.POST("/pages/:pageId/versions", h.saveVersion)
	r.GET("/pages/:pageId/versions", h.listVersions)
	r.POST("/pages/:pageId/versions/:versionId/restore", h.restoreVersion)
	r.DELETE("/pages/:pageId/versions/:versionId", h.deleteVersion)

	// Page rendering and data aggregation
	r.GET("/pages/:pageId/render", h.renderPage)
	r.GET("/pages/:pageId/data", h.pageData)
	r.GET("/pages/:pageId/data/batch", h.pageDataBatch)
	r.GET("/pages/:pageId/data/:key", h.pageDataKey)
	r.POST("/pages/data/validate", h.validateDataSource)

	return r
}

// userID extracts the authenticated caller set by the edge. Empty means
// anonymous; ownership checks then reject mutations.
func userID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

// queryParams flattens the request query into the params mapping data
// sources merge into their fetches.
func queryParams(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for k, vs := range c.Request.URL.Query() {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	return params
}
