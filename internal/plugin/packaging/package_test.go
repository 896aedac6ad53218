package packaging

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeArchive builds a zip at a temp path from name -> content pairs.
func writeArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin.zip")
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return path
}

const validDescriptor = `
pluginId: flashcards
version: 1.2.0
author: Example Org
mainClass: FlashcardsPlugin
pluginType: component
entry: main.js
`

func TestReadMetadata(t *testing.T) {
	t.Run("valid package", func(t *testing.T) {
		path := writeArchive(t, map[string]string{
			"plugin.yaml":          validDescriptor,
			"main.js":              "// entry",
			"bundles/cards.js":     "// renderer",
			"thumbnails/cards.png": "png",
		})

		meta, err := ReadMetadata(path)
		require.NoError(t, err)
		assert.Equal(t, "flashcards", meta.PluginID)
		assert.Equal(t, "1.2.0", meta.Version)
		assert.Equal(t, "FlashcardsPlugin", meta.MainClass)
		assert.Equal(t, TypeComponent, meta.PluginType)
		assert.Equal(t, "main.js", meta.Entry)
		assert.Len(t, meta.Resources, 3)
	})

	t.Run("missing descriptor", func(t *testing.T) {
		path := writeArchive(t, map[string]string{"main.js": "//"})
		_, err := ReadMetadata(path)
		assert.ErrorIs(t, err, ErrMalformedPackage)
	})

	t.Run("not a zip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.zip")
		require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0644))
		_, err := ReadMetadata(path)
		assert.ErrorIs(t, err, ErrMalformedPackage)
	})

	t.Run("missing required fields", func(t *testing.T) {
		path := writeArchive(t, map[string]string{
			"plugin.yaml": "pluginId: x\n",
		})
		_, err := ReadMetadata(path)
		require.ErrorIs(t, err, ErrSchemaViolation)
		assert.Contains(t, err.Error(), "version")
		assert.Contains(t, err.Error(), "mainClass")
	})

	t.Run("unsupported type", func(t *testing.T) {
		path := writeArchive(t, map[string]string{
			"plugin.yaml": "pluginId: x\nversion: 1.0.0\nmainClass: X\npluginType: daemon\n",
		})
		_, err := ReadMetadata(path)
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("type defaults to component", func(t *testing.T) {
		path := writeArchive(t, map[string]string{
			"plugin.yaml": "pluginId: x\nversion: 1.0.0\nmainClass: X\n",
		})
		meta, err := ReadMetadata(path)
		require.NoError(t, err)
		assert.Equal(t, TypeComponent, meta.PluginType)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeArchive(t, map[string]string{
			"plugin.yaml": "pluginId: [broken",
		})
		_, err := ReadMetadata(path)
		assert.ErrorIs(t, err, ErrMalformedPackage)
	})
}

func TestExtract(t *testing.T) {
	path := writeArchive(t, map[string]string{
		"plugin.yaml":      validDescriptor,
		"main.js":          "// entry",
		"../escape.txt":    "nope",
		"bundles/cards.js": "// renderer",
	})

	target := t.TempDir()
	root, meta, err := Extract(path, target)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(target, "flashcards"), root)
	assert.Equal(t, "flashcards", meta.PluginID)

	// Extracted files are in place
	assert.FileExists(t, filepath.Join(root, "main.js"))
	assert.FileExists(t, filepath.Join(root, "bundles", "cards.js"))

	// Path traversal entries were skipped
	assert.NoFileExists(t, filepath.Join(target, "escape.txt"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(target), "escape.txt"))
}

func TestPackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(validDescriptor), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte("// entry"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("skip me"), 0644))

	out := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, Pack(dir, out))

	meta, err := ReadMetadata(out)
	require.NoError(t, err)
	assert.Equal(t, "flashcards", meta.PluginID)
	assert.Equal(t, []string{"main.js"}, meta.Resources)
}

func TestPackRejectsBadDescriptor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte("pluginId: only\n"), 0644))
	err := Pack(dir, filepath.Join(t.TempDir(), "out.zip"))
	assert.ErrorIs(t, err, ErrSchemaViolation)
}
