package loader

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitekit/siteforge/internal/plugin"
	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

type nopRegistry struct{}

func (nopRegistry) RegisterBatch(context.Context, []pkgplugin.ComponentManifest) error { return nil }
func (nopRegistry) DeactivatePlugin(context.Context, string) error                     { return nil }

const watcherScript = `
function TestPlugin() {}
TestPlugin.prototype.manifests = function() { return []; };
`

func writeArchive(t *testing.T, dir, id string) {
	t.Helper()
	path := filepath.Join(dir, id+".zip")
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)

	w, err := zw.Create("plugin.yaml")
	require.NoError(t, err)
	_, err = w.Write([]byte("pluginId: " + id + "\nversion: 1.0.0\nmainClass: TestPlugin\nentry: main.js\n"))
	require.NoError(t, err)

	w, err = zw.Create("main.js")
	require.NoError(t, err)
	_, err = w.Write([]byte(watcherScript))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}

func TestWatcherPicksUpNewArchive(t *testing.T) {
	dir := t.TempDir()
	mgr := plugin.NewManager(dir, nopRegistry{})

	w := NewWatcher(mgr)
	require.NoError(t, w.Start(context.Background(), time.Hour))
	defer w.Stop()

	writeArchive(t, dir, "late-arrival")

	require.Eventually(t, func() bool {
		st, ok := mgr.Status("late-arrival")
		return ok && st.State == plugin.StateActive
	}, 5*time.Second, 100*time.Millisecond)
}

func TestWatcherIgnoresRemovals(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "keeper")

	mgr := plugin.NewManager(dir, nopRegistry{})
	_, errs := mgr.DiscoverAndLoadAll(context.Background())
	require.Empty(t, errs)

	w := NewWatcher(mgr)
	require.NoError(t, w.Start(context.Background(), time.Hour))
	defer w.Stop()

	// Removing the archive must not uninstall the plugin.
	require.NoError(t, os.Remove(filepath.Join(dir, "keeper.zip")))
	time.Sleep(time.Second)

	st, ok := mgr.Status("keeper")
	require.True(t, ok)
	assert.Equal(t, plugin.StateActive, st.State)
}

func TestRescanLoadsDirectly(t *testing.T) {
	dir := t.TempDir()
	mgr := plugin.NewManager(dir, nopRegistry{})

	w := NewWatcher(mgr)
	require.NoError(t, w.Start(context.Background(), time.Hour))
	defer w.Stop()

	writeArchive(t, dir, "swept")
	w.rescan()

	st, ok := mgr.Status("swept")
	require.True(t, ok)
	assert.Equal(t, plugin.StateActive, st.State)
}
