package pages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitekit/siteforge/internal/datasource"
)

// fakeChecker marks a fixed set of components as registered.
type fakeChecker struct {
	known    map[[2]string]bool // key -> registered
	inactive map[[2]string]bool
}

func (f *fakeChecker) Exists(_ context.Context, pluginID, componentID string) (bool, bool, error) {
	key := [2]string{pluginID, componentID}
	if !f.known[key] {
		return false, false, nil
	}
	return true, !f.inactive[key], nil
}

func TestRenderHappyPath(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, nil)
	versions := NewVersionStore(db, nil)
	ctx := context.Background()
	siteID := seedSite(t, db)

	page, err := store.Create(ctx, CreateInput{
		SiteID:   siteID,
		PageName: "Home",
		Title:    "Welcome",
		DataSources: `{
			"greeting": {"type": "STATIC", "staticData": {"text": "hi"}},
			"visitor": {"type": "CONTEXT", "contextKey": "user"}
		}`,
	})
	require.NoError(t, err)

	tree := `{"children":[{"instanceId":"r1","pluginId":"test","componentId":"Row","props":{}}]}`
	_, err = versions.SaveVersion(ctx, siteID, page.ID, tree, "", "u1")
	require.NoError(t, err)

	checker := &fakeChecker{known: map[[2]string]bool{{"test", "Row"}: true}}
	orch := NewOrchestrator(store, versions, checker, datasource.NewEngine(), nil)

	result, err := orch.Render(ctx, page.ID, map[string]string{"user": "ada"})
	require.NoError(t, err)

	require.Len(t, result.Tree.Children, 1)
	assert.Equal(t, "r1", result.Tree.Children[0].InstanceID)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Errors)
	assert.Equal(t, map[string]any{"text": "hi"}, result.Data["greeting"])
	assert.Equal(t, "ada", result.Data["visitor"])
	assert.Equal(t, "Welcome", result.PageMeta.Title)
	assert.Equal(t, page.ID, result.PageMeta.PageID)
}

func TestRenderWarnsOnUnknownAndInactive(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, nil)
	versions := NewVersionStore(db, nil)
	ctx := context.Background()
	siteID := seedSite(t, db)

	page, err := store.Create(ctx, CreateInput{SiteID: siteID, PageName: "Home"})
	require.NoError(t, err)

	tree := `{"children":[
		{"instanceId":"a","pluginId":"ghost","componentId":"Gone"},
		{"instanceId":"b","pluginId":"test","componentId":"Sleepy"}
	]}`
	_, err = versions.SaveVersion(ctx, siteID, page.ID, tree, "", "")
	require.NoError(t, err)

	checker := &fakeChecker{
		known:    map[[2]string]bool{{"test", "Sleepy"}: true},
		inactive: map[[2]string]bool{{"test", "Sleepy"}: true},
	}
	orch := NewOrchestrator(store, versions, checker, datasource.NewEngine(), nil)

	result, err := orch.Render(ctx, page.ID, nil)
	require.NoError(t, err)

	// Unknown and inactive references warn but do not fail the render.
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "not registered")
	assert.Contains(t, result.Warnings[1], "inactive")
}

func TestRenderPartialDataFailure(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer bad.Close()

	db := testDB(t)
	store := NewStore(db, nil)
	versions := NewVersionStore(db, nil)
	ctx := context.Background()
	siteID := seedSite(t, db)

	page, err := store.Create(ctx, CreateInput{
		SiteID:   siteID,
		PageName: "Home",
		DataSources: `{
			"good": {"type": "STATIC", "staticData": [1, 2]},
			"bad": {"type": "API", "endpoint": "` + bad.URL + `"}
		}`,
	})
	require.NoError(t, err)

	_, err = versions.SaveVersion(ctx, siteID, page.ID, `{"children":[]}`, "", "")
	require.NoError(t, err)

	orch := NewOrchestrator(store, versions, &fakeChecker{}, datasource.NewEngine(), nil)
	result, err := orch.Render(ctx, page.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, []any{float64(1), float64(2)}, result.Data["good"])
	assert.Contains(t, result.Errors["bad"], "HTTP 502")
	assert.Greater(t, result.FetchTimeMs, int64(0))
}

func TestRenderMissingPage(t *testing.T) {
	db := testDB(t)
	orch := NewOrchestrator(NewStore(db, nil), NewVersionStore(db, nil), &fakeChecker{}, datasource.NewEngine(), nil)

	_, err := orch.Render(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPageConfigs(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, nil)
	ctx := context.Background()
	siteID := seedSite(t, db)

	page, err := store.Create(ctx, CreateInput{
		SiteID: siteID, PageName: "Home",
		DataSources: `{"a":{"type":"STATIC","staticData":1}}`,
	})
	require.NoError(t, err)

	orch := NewOrchestrator(store, NewVersionStore(db, nil), &fakeChecker{}, datasource.NewEngine(), nil)
	configs, meta, err := orch.PageConfigs(ctx, page.ID)
	require.NoError(t, err)
	assert.Len(t, configs, 1)
	assert.Equal(t, page.ID, meta.PageID)
}
