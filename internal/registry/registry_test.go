package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitekit/siteforge/internal/database"
	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func manifest(pluginID, componentID, category string) pkgplugin.ComponentManifest {
	return pkgplugin.ComponentManifest{
		PluginID:      pluginID,
		PluginVersion: "1.0.0",
		ComponentID:   componentID,
		DisplayName:   componentID,
		Category:      category,
		Capabilities:  pkgplugin.Capabilities{CanHaveChildren: true},
	}
}

// seedPageWithTree inserts a site, page, and one version whose definition
// references the given component identity.
func seedPageWithTree(t *testing.T, db *sqlx.DB, pluginID, componentID string) (pageID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	siteID := uuid.NewString()
	pageID = uuid.NewString()

	_, err := db.ExecContext(ctx, `INSERT INTO site
		(id, site_name, site_slug, site_mode, owner_user_id, published, created_at, updated_at)
		VALUES (?, ?, ?, 'standard', 'u1', FALSE, ?, ?)`,
		siteID, "Site", "site-"+siteID[:8], now, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO page
		(id, site_id, page_name, slug, display_order, published, created_at, updated_at)
		VALUES (?, ?, 'Home', ?, 0, FALSE, ?, ?)`,
		pageID, siteID, "home-"+pageID[:8], now, now)
	require.NoError(t, err)

	tree := fmt.Sprintf(`{"children":[{"instanceId":"i1","pluginId":%q,"componentId":%q,"props":{}}]}`,
		pluginID, componentID)
	_, err = db.ExecContext(ctx, `INSERT INTO page_version
		(id, page_id, version_number, page_definition, created_at, is_active)
		VALUES (?, ?, 1, ?, ?, TRUE)`,
		uuid.NewString(), pageID, tree, now)
	require.NoError(t, err)

	return pageID
}

func TestRegisterAndGet(t *testing.T) {
	store := NewStore(testDB(t), nil)
	ctx := context.Background()

	m := manifest("test", "HorizontalRow", pkgplugin.CategoryUI)
	entry, err := store.Register(ctx, &m)
	require.NoError(t, err)
	assert.True(t, entry.IsActive)
	assert.Equal(t, "test", entry.PluginID)

	got, err := store.Get(ctx, "test", "HorizontalRow")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)

	back, err := got.Manifest()
	require.NoError(t, err)
	assert.Equal(t, m, *back)
}

func TestRegisterIdempotent(t *testing.T) {
	store := NewStore(testDB(t), nil)
	ctx := context.Background()

	m := manifest("test", "Card", pkgplugin.CategoryUI)
	first, err := store.Register(ctx, &m)
	require.NoError(t, err)

	// Deactivate, then re-register: same row, active again.
	_, err = store.Deactivate(ctx, "test", "Card")
	require.NoError(t, err)

	second, err := store.Register(ctx, &m)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsActive)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRegisterRejectsInvalid(t *testing.T) {
	store := NewStore(testDB(t), nil)
	m := manifest("test", "Bad", "not-a-category")
	_, err := store.Register(context.Background(), &m)
	assert.Error(t, err)
}

func TestRegisterBatchAtomic(t *testing.T) {
	store := NewStore(testDB(t), nil)
	ctx := context.Background()

	good := manifest("test", "A", pkgplugin.CategoryUI)
	bad := manifest("test", "", pkgplugin.CategoryUI) // invalid: empty component id

	_, err := store.RegisterBatch(ctx, []pkgplugin.ComponentManifest{good, bad})
	require.Error(t, err)

	// Nothing from the failed batch landed.
	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestListingAndCategories(t *testing.T) {
	store := NewStore(testDB(t), nil)
	ctx := context.Background()

	for _, m := range []pkgplugin.ComponentManifest{
		manifest("p1", "Row", pkgplugin.CategoryUI),
		manifest("p1", "Grid", pkgplugin.CategoryLayout),
		manifest("p2", "Menu", pkgplugin.CategoryNavbar),
	} {
		_, err := store.Register(ctx, &m)
		require.NoError(t, err)
	}
	_, err := store.Deactivate(ctx, "p2", "Menu")
	require.NoError(t, err)

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	layout, err := store.ByCategory(ctx, pkgplugin.CategoryLayout)
	require.NoError(t, err)
	require.Len(t, layout, 1)
	assert.Equal(t, "Grid", layout[0].ComponentID)

	// Inactive entries are excluded from category listings.
	navbar, err := store.ByCategory(ctx, pkgplugin.CategoryNavbar)
	require.NoError(t, err)
	assert.Empty(t, navbar)

	_, err = store.ByCategory(ctx, "bogus")
	assert.Error(t, err)

	p1, err := store.ByPlugin(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, p1, 2)
}

func TestActivateDeactivate(t *testing.T) {
	store := NewStore(testDB(t), nil)
	ctx := context.Background()

	m := manifest("test", "Row", pkgplugin.CategoryUI)
	_, err := store.Register(ctx, &m)
	require.NoError(t, err)

	entry, err := store.Deactivate(ctx, "test", "Row")
	require.NoError(t, err)
	assert.False(t, entry.IsActive)

	entry, err = store.Activate(ctx, "test", "Row")
	require.NoError(t, err)
	assert.True(t, entry.IsActive)

	_, err = store.Activate(ctx, "test", "Nope")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestUnregisterBlockedByUsage(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, nil)
	ctx := context.Background()

	m := manifest("test", "HorizontalRow", pkgplugin.CategoryUI)
	_, err := store.Register(ctx, &m)
	require.NoError(t, err)

	pageID := seedPageWithTree(t, db, "test", "HorizontalRow")

	err = store.Unregister(ctx, "test", "HorizontalRow")
	var inUse *ComponentInUseError
	require.ErrorAs(t, err, &inUse)
	require.Len(t, inUse.Pages, 1)
	assert.Equal(t, pageID, inUse.Pages[0].PageID)

	// Entry still exists.
	_, err = store.Get(ctx, "test", "HorizontalRow")
	assert.NoError(t, err)
}

func TestUnregisterRemovesUnused(t *testing.T) {
	store := NewStore(testDB(t), nil)
	ctx := context.Background()

	m := manifest("test", "Unused", pkgplugin.CategoryUI)
	_, err := store.Register(ctx, &m)
	require.NoError(t, err)

	require.NoError(t, store.Unregister(ctx, "test", "Unused"))

	_, err = store.Get(ctx, "test", "Unused")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestUnregisterPlugin(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, nil)
	ctx := context.Background()

	a := manifest("p", "A", pkgplugin.CategoryUI)
	b := manifest("p", "B", pkgplugin.CategoryUI)
	for _, m := range []pkgplugin.ComponentManifest{a, b} {
		mm := m
		_, err := store.Register(ctx, &mm)
		require.NoError(t, err)
	}

	seedPageWithTree(t, db, "p", "B")

	err := store.UnregisterPlugin(ctx, "p")
	var inUse *ComponentInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, "B", inUse.ComponentID)

	// Neither entry was removed - the operation is all-or-nothing.
	entries, err := store.ByPlugin(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFindPagesUsing(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, nil)
	ctx := context.Background()

	pageID := seedPageWithTree(t, db, "test", "Row")

	refs, err := store.FindPagesUsing(ctx, "test", "Row")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, pageID, refs[0].PageID)
	assert.Equal(t, "Home", refs[0].PageName)

	refs, err = store.FindPagesUsing(ctx, "test", "Other")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestExists(t *testing.T) {
	store := NewStore(testDB(t), nil)
	ctx := context.Background()

	m := manifest("test", "Row", pkgplugin.CategoryUI)
	_, err := store.Register(ctx, &m)
	require.NoError(t, err)

	exists, active, err := store.Exists(ctx, "test", "Row")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, active)

	_, err = store.Deactivate(ctx, "test", "Row")
	require.NoError(t, err)

	exists, active, err = store.Exists(ctx, "test", "Row")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.False(t, active)

	exists, _, err = store.Exists(ctx, "nope", "Row")
	require.NoError(t, err)
	assert.False(t, exists)
}
