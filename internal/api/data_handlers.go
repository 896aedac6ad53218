package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitekit/siteforge/internal/apierrors"
	"github.com/sitekit/siteforge/internal/datasource"
)

// renderPage returns the full render bundle: unresolved tree, aggregated
// data, warnings. Template tokens are the frontend's job.
func (h *Handlers) renderPage(c *gin.Context) {
	result, err := h.Orchestrator.Render(c.Request.Context(), c.Param("pageId"), queryParams(c))
	if err != nil {
		h.pageError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// pageData aggregates every configured source for the page. Partial
// failures still return 200 with the errors mapping populated.
func (h *Handlers) pageData(c *gin.Context) {
	ctx := c.Request.Context()
	pageID := c.Param("pageId")

	configs, meta, err := h.Orchestrator.PageConfigs(ctx, pageID)
	if err != nil {
		h.pageError(c, err)
		return
	}

	result := h.Engine.FetchAll(ctx, configs, queryParams(c))
	result.PageMeta = meta
	c.JSON(http.StatusOK, result)
}

// pageDataBatch runs only the sources named in ?keys=a,b.
func (h *Handlers) pageDataBatch(c *gin.Context) {
	ctx := c.Request.Context()
	pageID := c.Param("pageId")

	keysParam := c.Query("keys")
	if keysParam == "" {
		apierrors.FailWith(c, apierrors.InvalidRequest, "query parameter 'keys' is required", nil)
		return
	}
	keys := strings.Split(keysParam, ",")
	for i := range keys {
		keys[i] = strings.TrimSpace(keys[i])
	}

	configs, meta, err := h.Orchestrator.PageConfigs(ctx, pageID)
	if err != nil {
		h.pageError(c, err)
		return
	}

	params := queryParams(c)
	delete(params, "keys")

	result := h.Engine.FetchBatch(ctx, configs, keys, params)
	result.PageMeta = meta
	c.JSON(http.StatusOK, result)
}

// pageDataKey runs a single source and reports its individual result.
func (h *Handlers) pageDataKey(c *gin.Context) {
	ctx := c.Request.Context()
	pageID := c.Param("pageId")
	key := c.Param("key")

	configs, _, err := h.Orchestrator.PageConfigs(ctx, pageID)
	if err != nil {
		h.pageError(c, err)
		return
	}

	cfg, ok := configs[key]
	if !ok {
		apierrors.FailWith(c, apierrors.NotFound, "data source "+key+" is not configured", nil)
		return
	}

	result := h.Engine.FetchBatch(ctx, map[string]datasource.Config{key: cfg}, []string{key}, queryParams(c))
	if msg, failed := result.Errors[key]; failed {
		c.JSON(http.StatusOK, datasource.Result{Success: false, Message: msg})
		return
	}
	c.JSON(http.StatusOK, datasource.Result{Success: true, StatusCode: http.StatusOK, Data: result.Data[key]})
}

// validateDataSource runs a posted config once with empty params.
func (h *Handlers) validateDataSource(c *gin.Context) {
	var cfg datasource.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		apierrors.FailWith(c, apierrors.InvalidRequest, err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, h.Engine.TestDataSource(c.Request.Context(), cfg))
}
