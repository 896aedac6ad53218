package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitekit/siteforge/internal/apierrors"
	"github.com/sitekit/siteforge/internal/pages"
	"github.com/sitekit/siteforge/internal/sites"
)

// requireSiteOwner checks the acting user owns the page's site before a
// mutation. Reads stay open - published pages are served to anyone.
func (h *Handlers) requireSiteOwner(c *gin.Context, siteID string) bool {
	uid := userID(c)
	if uid == "" {
		apierrors.Fail(c, apierrors.Unauthorized)
		return false
	}
	site, err := h.Sites.Get(c.Request.Context(), siteID)
	if err != nil {
		h.siteError(c, err)
		return false
	}
	if site.OwnerUserID != uid {
		apierrors.Fail(c, apierrors.Forbidden)
		return false
	}
	return true
}

func (h *Handlers) listPages(c *gin.Context) {
	list, err := h.Pages.ListBySite(c.Request.Context(), c.Param("siteId"))
	if err != nil {
		h.Logger.Error("list pages failed", "error", err)
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	c.JSON(http.StatusOK, list)
}

type pageRequest struct {
	PageName     string `json:"pageName"`
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Path         string `json:"path"`
	DataSources  string `json:"dataSources"`
	LayoutID     string `json:"layoutId"`
	ParentPageID string `json:"parentPageId"`
	DisplayOrder int    `json:"displayOrder"`
}

func (h *Handlers) createPage(c *gin.Context) {
	siteID := c.Param("siteId")
	if !h.requireSiteOwner(c, siteID) {
		return
	}

	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FailWith(c, apierrors.InvalidRequest, err.Error(), nil)
		return
	}
	if req.PageName == "" {
		apierrors.FailWith(c, apierrors.ValidationFailed, "pageName is required", nil)
		return
	}

	page, err := h.Pages.Create(c.Request.Context(), pages.CreateInput{
		SiteID:       siteID,
		PageName:     req.PageName,
		Slug:         req.Slug,
		Title:        req.Title,
		Description:  req.Description,
		Path:         req.Path,
		DataSources:  req.DataSources,
		LayoutID:     req.LayoutID,
		ParentPageID: req.ParentPageID,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		if errors.Is(err, pages.ErrSlugConflict) {
			apierrors.FailWith(c, apierrors.SlugConflict, err.Error(), nil)
			return
		}
		h.Logger.Error("create page failed", "error", err)
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	c.JSON(http.StatusCreated, page)
}

func (h *Handlers) getPage(c *gin.Context) {
	page, err := h.Pages.Get(c.Request.Context(), c.Param("pageId"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handlers) updatePage(c *gin.Context) {
	page, err := h.Pages.Get(c.Request.Context(), c.Param("pageId"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	if !h.requireSiteOwner(c, page.SiteID) {
		return
	}

	var req struct {
		PageName    *string `json:"pageName"`
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Path        *string `json:"path"`
		DataSources *string `json:"dataSources"`
		LayoutID    *string `json:"layoutId"`
		Published   *bool   `json:"published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FailWith(c, apierrors.InvalidRequest, err.Error(), nil)
		return
	}

	updated, err := h.Pages.Update(c.Request.Context(), page.ID, pages.UpdateInput{
		PageName:    req.PageName,
		Title:       req.Title,
		Description: req.Description,
		Path:        req.Path,
		DataSources: req.DataSources,
		LayoutID:    req.LayoutID,
		Published:   req.Published,
	})
	if err != nil {
		h.pageError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handlers) deletePage(c *gin.Context) {
	page, err := h.Pages.Get(c.Request.Context(), c.Param("pageId"))
	if err != nil {
		h.pageError(c, err)
		return
	}
	if !h.requireSiteOwner(c, page.SiteID) {
		return
	}

	if err := h.Pages.Delete(c.Request.Context(), page.ID); err != nil {
		h.pageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) reorderPages(c *gin.Context) {
	siteID := c.Param("siteId")
	if !h.requireSiteOwner(c, siteID) {
		return
	}

	var req struct {
		PageIDs []string `json:"pageIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FailWith(c, apierrors.InvalidRequest, err.Error(), nil)
		return
	}

	if err := h.Pages.Reorder(c.Request.Context(), siteID, req.PageIDs); err != nil {
		h.pageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reordered": len(req.PageIDs)})
}

func (h *Handlers) pageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pages.ErrNotFound):
		apierrors.Fail(c, apierrors.NotFound)
	case errors.Is(err, sites.ErrNotFound):
		apierrors.Fail(c, apierrors.NotFound)
	default:
		h.Logger.Error("page operation failed", "error", err)
		apierrors.Fail(c, apierrors.InternalError)
	}
}
