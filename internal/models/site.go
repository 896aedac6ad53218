package models

import "time"

// Site is the top-level ownership root: sites own pages, pages own versions.
type Site struct {
	ID          string     `db:"id" json:"id"`
	SiteName    string     `db:"site_name" json:"siteName"`
	SiteSlug    string     `db:"site_slug" json:"siteSlug"`
	SiteMode    string     `db:"site_mode" json:"siteMode"`
	OwnerUserID string     `db:"owner_user_id" json:"ownerUserId"`
	Published   bool       `db:"published" json:"published"`
	PublishedAt *time.Time `db:"published_at" json:"publishedAt,omitempty"`
	DomainName  *string    `db:"domain_name" json:"domainName,omitempty"`
	FaviconURL  *string    `db:"favicon_url" json:"faviconUrl,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}
