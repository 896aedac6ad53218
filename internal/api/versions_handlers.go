package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitekit/siteforge/internal/apierrors"
	"github.com/sitekit/siteforge/internal/pages"
	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

type saveVersionRequest struct {
	PageDefinition    json.RawMessage `json:"pageDefinition"`
	ChangeDescription string          `json:"changeDescription"`
}

func (h *Handlers) saveVersion(c *gin.Context) {
	page, err := h.Pages.Get(c.Request.Context(), c.Param("pageId"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	if !h.requireSiteOwner(c, page.SiteID) {
		return
	}

	var req saveVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FailWith(c, apierrors.InvalidRequest, err.Error(), nil)
		return
	}
	if len(req.PageDefinition) == 0 {
		apierrors.FailWith(c, apierrors.ValidationFailed, "pageDefinition is required", nil)
		return
	}

	// The tree must parse and satisfy its structural invariants before a
	// version lands. Capability rules run against the current catalog.
	tree, err := pages.ParseTree(string(req.PageDefinition))
	if err != nil {
		apierrors.FailWith(c, apierrors.InvalidTree, err.Error(), nil)
		return
	}
	if err := tree.Validate(h.manifestLookup(c)); err != nil {
		apierrors.FailWith(c, apierrors.InvalidTree, err.Error(), nil)
		return
	}

	version, err := h.Versions.SaveVersion(c.Request.Context(),
		page.SiteID, page.ID, string(req.PageDefinition), req.ChangeDescription, userID(c))
	if err != nil {
		h.pageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, version)
}

func (h *Handlers) manifestLookup(c *gin.Context) pages.ManifestLookup {
	ctx := c.Request.Context()
	return func(pluginID, componentID string) *pkgplugin.ComponentManifest {
		m, err := h.Registry.GetManifest(ctx, pluginID, componentID)
		if err != nil {
			return nil
		}
		return m
	}
}

func (h *Handlers) listVersions(c *gin.Context) {
	history, err := h.Versions.History(c.Request.Context(), c.Param("pageId"))
	if err != nil {
		h.Logger.Error("list versions failed", "error", err)
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handlers) restoreVersion(c *gin.Context) {
	page, err := h.Pages.Get(c.Request.Context(), c.Param("pageId"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	if !h.requireSiteOwner(c, page.SiteID) {
		return
	}

	version, err := h.Versions.Restore(c.Request.Context(), page.ID, c.Param("versionId"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	c.JSON(http.StatusCreated, version)
}

func (h *Handlers) deleteVersion(c *gin.Context) {
	page, err := h.Pages.Get(c.Request.Context(), c.Param("pageId"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	if !h.requireSiteOwner(c, page.SiteID) {
		return
	}

	if err := h.Versions.DeleteVersion(c.Request.Context(), c.Param("versionId")); err != nil {
		if errors.Is(err, pages.ErrActiveVersion) {
			apierrors.Fail(c, apierrors.VersionActive)
			return
		}
		h.pageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
