package apierrors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound.Status())
	assert.Equal(t, http.StatusBadRequest, ComponentInUse.Status())
	assert.Equal(t, http.StatusConflict, SlugConflict.Status())

	// Unknown codes fall back to 500 rather than panicking.
	assert.Equal(t, http.StatusInternalServerError, Code("nope:missing").Status())
}

func TestCodeMessage(t *testing.T) {
	assert.NotEmpty(t, MalformedPackage.Message())

	// Unknown codes echo themselves so a missing table entry is visible.
	assert.Equal(t, "nope:missing", Code("nope:missing").Message())
}

func TestCodeNamespace(t *testing.T) {
	assert.Equal(t, "plugin", LoadFailed.Namespace())
	assert.Equal(t, "pages", VersionActive.Namespace())
	assert.Equal(t, "core", Code("bare").Namespace())
}

func TestList(t *testing.T) {
	infos := List()
	assert.Len(t, infos, len(table))

	// Sorted by code, and every row is complete.
	for i, info := range infos {
		if i > 0 {
			assert.Less(t, infos[i-1].Code, info.Code)
		}
		assert.NotEmpty(t, info.Message)
		assert.NotZero(t, info.HTTPStatus)
	}
}
