package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/sitekit/siteforge/internal/apierrors"
	"github.com/sitekit/siteforge/internal/plugin/isolation"
	"github.com/sitekit/siteforge/internal/plugin/packaging"
	"github.com/sitekit/siteforge/internal/registry"
	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

func (h *Handlers) listComponents(c *gin.Context) {
	entries, err := h.Registry.ListActive(c.Request.Context())
	if err != nil {
		h.Logger.Error("list components failed", "error", err)
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handlers) componentsByCategory(c *gin.Context) {
	entries, err := h.Registry.ByCategory(c.Request.Context(), c.Param("category"))
	if err != nil {
		apierrors.FailWith(c, apierrors.InvalidCategory, err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handlers) getComponent(c *gin.Context) {
	entry, err := h.Registry.Get(c.Request.Context(), c.Param("pluginId"), c.Param("componentId"))
	if err != nil {
		var nf *registry.NotFoundError
		if errors.As(err, &nf) {
			apierrors.Fail(c, apierrors.ComponentMissing)
			return
		}
		h.Logger.Error("get component failed", "error", err)
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handlers) getComponentManifest(c *gin.Context) {
	manifest, err := h.Registry.GetManifest(c.Request.Context(), c.Param("pluginId"), c.Param("componentId"))
	if err != nil {
		var nf *registry.NotFoundError
		if errors.As(err, &nf) {
			apierrors.Fail(c, apierrors.ComponentMissing)
			return
		}
		h.Logger.Error("get manifest failed", "error", err)
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	c.JSON(http.StatusOK, manifest)
}

// registerComponent registers a manifest posted directly as JSON, without a
// plugin package. Used by the admin UI for host-provided components.
func (h *Handlers) registerComponent(c *gin.Context) {
	var manifest pkgplugin.ComponentManifest
	if err := c.ShouldBindJSON(&manifest); err != nil {
		apierrors.FailWith(c, apierrors.InvalidRequest, err.Error(), nil)
		return
	}
	if err := manifest.Validate(); err != nil {
		apierrors.FailWith(c, apierrors.InvalidManifest, err.Error(), nil)
		return
	}

	entry, err := h.Registry.Register(c.Request.Context(), &manifest)
	if err != nil {
		h.Logger.Error("register component failed", "error", err)
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// uploadPlugin accepts a multipart archive upload and installs it.
func (h *Handlers) uploadPlugin(c *gin.Context) {
	file, err := c.FormFile("archive")
	if err != nil {
		apierrors.FailWith(c, apierrors.InvalidRequest, "multipart field 'archive' is required", nil)
		return
	}

	tmpDir, err := os.MkdirTemp("", "siteforge-upload-*")
	if err != nil {
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		apierrors.Fail(c, apierrors.InternalError)
		return
	}

	status, err := h.Lifecycle.InstallAndActivate(c.Request.Context(), tmpPath)
	if err != nil {
		switch {
		case errors.Is(err, packaging.ErrMalformedPackage):
			apierrors.FailWith(c, apierrors.MalformedPackage, err.Error(), nil)
		case errors.Is(err, packaging.ErrSchemaViolation):
			apierrors.FailWith(c, apierrors.SchemaViolation, err.Error(), nil)
		case errors.Is(err, packaging.ErrUnsupportedType):
			apierrors.FailWith(c, apierrors.UnsupportedType, err.Error(), nil)
		case errors.Is(err, isolation.ErrIsolationInit):
			apierrors.FailWith(c, apierrors.IsolationInitFailed, err.Error(), nil)
		default:
			apierrors.FailWith(c, apierrors.LoadFailed, err.Error(), nil)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"pluginId": status.PluginID, "version": status.Version})
}

func (h *Handlers) activateComponent(c *gin.Context) {
	entry, err := h.Registry.Activate(c.Request.Context(), c.Param("pluginId"), c.Param("componentId"))
	if err != nil {
		var nf *registry.NotFoundError
		if errors.As(err, &nf) {
			apierrors.Fail(c, apierrors.ComponentMissing)
			return
		}
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// deactivateComponent flips the entry inactive and reports the pages still
// using it so the UI can warn.
func (h *Handlers) deactivateComponent(c *gin.Context) {
	ctx := c.Request.Context()
	pluginID, componentID := c.Param("pluginId"), c.Param("componentId")

	entry, err := h.Registry.Deactivate(ctx, pluginID, componentID)
	if err != nil {
		var nf *registry.NotFoundError
		if errors.As(err, &nf) {
			apierrors.Fail(c, apierrors.ComponentMissing)
			return
		}
		apierrors.Fail(c, apierrors.InternalError)
		return
	}

	affected, err := h.Registry.FindPagesUsing(ctx, pluginID, componentID)
	if err != nil {
		h.Logger.Error("usage scan failed", "error", err)
		affected = nil
	}

	c.JSON(http.StatusOK, gin.H{"entry": entry, "affectedPages": affected})
}

func (h *Handlers) deleteComponent(c *gin.Context) {
	err := h.Registry.Unregister(c.Request.Context(), c.Param("pluginId"), c.Param("componentId"))
	if err != nil {
		var inUse *registry.ComponentInUseError
		if errors.As(err, &inUse) {
			apierrors.FailWith(c, apierrors.ComponentInUse, inUse.Error(),
				gin.H{"affectedPages": inUse.Pages})
			return
		}
		var nf *registry.NotFoundError
		if errors.As(err, &nf) {
			apierrors.Fail(c, apierrors.ComponentMissing)
			return
		}
		apierrors.Fail(c, apierrors.InternalError)
		return
	}
	c.Status(http.StatusNoContent)
}
