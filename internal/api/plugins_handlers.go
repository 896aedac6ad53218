package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitekit/siteforge/internal/apierrors"
)

func (h *Handlers) listPlugins(c *gin.Context) {
	c.JSON(http.StatusOK, h.Lifecycle.List())
}

func (h *Handlers) activatePlugin(c *gin.Context) {
	id := c.Param("pluginId")
	if _, ok := h.Lifecycle.Status(id); !ok {
		apierrors.Fail(c, apierrors.PluginNotFound)
		return
	}
	if err := h.Lifecycle.Activate(c.Request.Context(), id); err != nil {
		apierrors.FailWith(c, apierrors.ActivateFailed, err.Error(), nil)
		return
	}
	status, _ := h.Lifecycle.Status(id)
	c.JSON(http.StatusOK, status)
}

func (h *Handlers) deactivatePlugin(c *gin.Context) {
	id := c.Param("pluginId")
	if _, ok := h.Lifecycle.Status(id); !ok {
		apierrors.Fail(c, apierrors.PluginNotFound)
		return
	}
	if err := h.Lifecycle.Deactivate(c.Request.Context(), id); err != nil {
		// Best-effort shutdown: the state advanced, report it with the error.
		status, _ := h.Lifecycle.Status(id)
		c.JSON(http.StatusOK, gin.H{"status": status, "warning": err.Error()})
		return
	}
	status, _ := h.Lifecycle.Status(id)
	c.JSON(http.StatusOK, status)
}

func (h *Handlers) uninstallPlugin(c *gin.Context) {
	id := c.Param("pluginId")
	if _, ok := h.Lifecycle.Status(id); !ok {
		apierrors.Fail(c, apierrors.PluginNotFound)
		return
	}
	if err := h.Lifecycle.Uninstall(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusOK, gin.H{"uninstalled": true, "warning": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uninstalled": true})
}

func (h *Handlers) pluginLogs(c *gin.Context) {
	id := c.Param("pluginId")
	c.JSON(http.StatusOK, h.Lifecycle.Logs().ByPlugin(id))
}

// listErrorCodes serves the fixed error-code table so admin UIs can map
// codes to their own copy.
func (h *Handlers) listErrorCodes(c *gin.Context) {
	c.JSON(http.StatusOK, apierrors.List())
}

func (h *Handlers) clearCache(c *gin.Context) {
	if key := c.Query("key"); key != "" {
		h.Engine.Cache().ClearKey(key)
	} else {
		h.Engine.Cache().Clear()
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
