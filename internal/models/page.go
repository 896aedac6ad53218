package models

import "time"

// Page holds page metadata only. The authoritative component tree lives in
// the active PageVersion row; editing a page always appends a version.
type Page struct {
	ID              string     `db:"id" json:"id"`
	SiteID          string     `db:"site_id" json:"siteId"`
	PageName        string     `db:"page_name" json:"pageName"`
	Slug            string     `db:"slug" json:"slug"`
	Title           *string    `db:"title" json:"title,omitempty"`
	Description     *string    `db:"description" json:"description,omitempty"`
	Path            *string    `db:"path" json:"path,omitempty"`
	DataSourcesJSON *string    `db:"data_sources" json:"dataSources,omitempty"`
	LayoutID        *string    `db:"layout_id" json:"layoutId,omitempty"`
	ParentPageID    *string    `db:"parent_page_id" json:"parentPageId,omitempty"`
	DisplayOrder    int        `db:"display_order" json:"displayOrder"`
	Published       bool       `db:"published" json:"published"`
	PublishedAt     *time.Time `db:"published_at" json:"publishedAt,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// PageVersion is one append-only snapshot of a page's tree. For each page
// at most one row has IsActive=true; restoring re-appends, never rewrites.
type PageVersion struct {
	ID                string    `db:"id" json:"id"`
	PageID            string    `db:"page_id" json:"pageId"`
	VersionNumber     int       `db:"version_number" json:"versionNumber"`
	PageDefinition    string    `db:"page_definition" json:"pageDefinition"`
	ChangeDescription *string   `db:"change_description" json:"changeDescription,omitempty"`
	CreatedByUserID   *string   `db:"created_by_user_id" json:"createdByUserId,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	IsActive          bool      `db:"is_active" json:"isActive"`
}
