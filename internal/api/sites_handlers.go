package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitekit/siteforge/internal/apierrors"
	"github.com/sitekit/siteforge/internal/sites"
)

type siteRequest struct {
	SiteName   string `json:"siteName"`
	SiteSlug   string `json:"siteSlug"`
	SiteMode   string `json:"siteMode"`
	DomainName string `json:"domainName"`
	FaviconURL string `json:"faviconUrl"`
}

func (h *Handlers) listSites(c *gin.Context) {
	list, err := h.Sites.List(c.Request.Context(), userID(c))
	if err != nil {
		h.Logger.Error("list sites failed", "error", err)
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handlers) createSite(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		apierrors.Fail(c, apierrors.Unauthorized)
		return
	}

	var req siteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FailWith(c, apierrors.InvalidRequest, err.Error(), nil)
		return
	}
	if req.SiteName == "" {
		apierrors.FailWith(c, apierrors.ValidationFailed, "siteName is required", nil)
		return
	}

	site, err := h.Sites.Create(c.Request.Context(), sites.CreateInput{
		SiteName:    req.SiteName,
		SiteSlug:    req.SiteSlug,
		SiteMode:    req.SiteMode,
		OwnerUserID: uid,
		DomainName:  req.DomainName,
		FaviconURL:  req.FaviconURL,
	})
	if err != nil {
		if errors.Is(err, sites.ErrSlugTaken) {
			apierrors.FailWith(c, apierrors.Conflict, err.Error(), nil)
			return
		}
		h.Logger.Error("create site failed", "error", err)
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	c.JSON(http.StatusCreated, site)
}

func (h *Handlers) getSite(c *gin.Context) {
	site, err := h.Sites.Get(c.Request.Context(), c.Param("siteId"))
	if err != nil {
		h.siteError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

func (h *Handlers) updateSite(c *gin.Context) {
	var req struct {
		SiteName   *string `json:"siteName"`
		SiteMode   *string `json:"siteMode"`
		DomainName *string `json:"domainName"`
		FaviconURL *string `json:"faviconUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FailWith(c, apierrors.InvalidRequest, err.Error(), nil)
		return
	}

	site, err := h.Sites.Update(c.Request.Context(), c.Param("siteId"), userID(c), sites.UpdateInput{
		SiteName:   req.SiteName,
		SiteMode:   req.SiteMode,
		DomainName: req.DomainName,
		FaviconURL: req.FaviconURL,
	})
	if err != nil {
		h.siteError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

func (h *Handlers) deleteSite(c *gin.Context) {
	if err := h.Sites.Delete(c.Request.Context(), c.Param("siteId"), userID(c)); err != nil {
		h.siteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) publishSite(c *gin.Context) {
	h.setSitePublished(c, true)
}

func (h *Handlers) unpublishSite(c *gin.Context) {
	h.setSitePublished(c, false)
}

func (h *Handlers) setSitePublished(c *gin.Context, published bool) {
	site, err := h.Sites.SetPublished(c.Request.Context(), c.Param("siteId"), userID(c), published)
	if err != nil {
		h.siteError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

func (h *Handlers) siteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sites.ErrNotFound):
		apierrors.Fail(c, apierrors.NotFound)
	case errors.Is(err, sites.ErrForbidden):
		apierrors.Fail(c, apierrors.Forbidden)
	default:
		h.Logger.Error("site operation failed", "error", err)
		apierrors.Fail(c, apierrors.InternalError)
	}
}
