package sites

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitekit/siteforge/internal/database"
	"github.com/sitekit/siteforge/internal/pages"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func TestSiteCreate(t *testing.T) {
	store := NewStore(testDB(t), nil)
	ctx := context.Background()

	site, err := store.Create(ctx, CreateInput{SiteName: "My Shop!", OwnerUserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "my-shop", site.SiteSlug)
	assert.Equal(t, "standard", site.SiteMode)
	assert.False(t, site.Published)

	// Derived slug collision gets suffixed.
	second, err := store.Create(ctx, CreateInput{SiteName: "My Shop!", OwnerUserID: "u2"})
	require.NoError(t, err)
	assert.Equal(t, "my-shop-1", second.SiteSlug)

	// Explicit slug collision errors.
	_, err = store.Create(ctx, CreateInput{SiteName: "Third", SiteSlug: "my-shop", OwnerUserID: "u3"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	// Owner is required.
	_, err = store.Create(ctx, CreateInput{SiteName: "Ownerless"})
	assert.Error(t, err)
}

func TestSiteOwnership(t *testing.T) {
	store := NewStore(testDB(t), nil)
	ctx := context.Background()

	site, err := store.Create(ctx, CreateInput{SiteName: "Mine", OwnerUserID: "owner"})
	require.NoError(t, err)

	name := "Renamed"
	_, err = store.Update(ctx, site.ID, "intruder", UpdateInput{SiteName: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := store.Update(ctx, site.ID, "owner", UpdateInput{SiteName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.SiteName)

	assert.ErrorIs(t, store.Delete(ctx, site.ID, "intruder"), ErrForbidden)
}

func TestSitePublish(t *testing.T) {
	store := NewStore(testDB(t), nil)
	ctx := context.Background()

	site, err := store.Create(ctx, CreateInput{SiteName: "Launch", OwnerUserID: "u1"})
	require.NoError(t, err)

	published, err := store.SetPublished(ctx, site.ID, "u1", true)
	require.NoError(t, err)
	assert.True(t, published.Published)
	assert.NotNil(t, published.PublishedAt)

	unpublished, err := store.SetPublished(ctx, site.ID, "u1", false)
	require.NoError(t, err)
	assert.False(t, unpublished.Published)
}

func TestSiteCascadeDelete(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, nil)
	pageStore := pages.NewStore(db, nil)
	versions := pages.NewVersionStore(db, nil)
	ctx := context.Background()

	site, err := store.Create(ctx, CreateInput{SiteName: "Doomed", OwnerUserID: "u1"})
	require.NoError(t, err)

	page, err := pageStore.Create(ctx, pages.CreateInput{SiteID: site.ID, PageName: "Home"})
	require.NoError(t, err)
	_, err = versions.SaveVersion(ctx, site.ID, page.ID, `{"children":[]}`, "", "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, site.ID, "u1"))

	var nPages, nVersions int
	require.NoError(t, db.Get(&nPages, `SELECT COUNT(*) FROM page`))
	require.NoError(t, db.Get(&nVersions, `SELECT COUNT(*) FROM page_version`))
	assert.Zero(t, nPages)
	assert.Zero(t, nVersions)

	_, err = store.Get(ctx, site.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSiteList(t *testing.T) {
	store := NewStore(testDB(t), nil)
	ctx := context.Background()

	for _, in := range []CreateInput{
		{SiteName: "B Site", OwnerUserID: "u1"},
		{SiteName: "A Site", OwnerUserID: "u1"},
		{SiteName: "C Site", OwnerUserID: "u2"},
	} {
		_, err := store.Create(ctx, in)
		require.NoError(t, err)
	}

	mine, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "A Site", mine[0].SiteName)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
