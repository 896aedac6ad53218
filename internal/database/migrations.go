package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema statements are written in the portable subset all three supported
// drivers accept. IDs are UUID strings so the DDL avoids per-driver
// auto-increment syntax; JSON columns are stored as TEXT blobs.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS component_registry (
		id TEXT PRIMARY KEY,
		plugin_id VARCHAR(190) NOT NULL,
		component_id VARCHAR(190) NOT NULL,
		component_name VARCHAR(255) NOT NULL,
		category VARCHAR(32) NOT NULL,
		icon VARCHAR(255),
		component_manifest TEXT NOT NULL,
		react_bundle_path VARCHAR(512),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		registered_at TIMESTAMP NOT NULL,
		CONSTRAINT uq_registry_key UNIQUE (plugin_id, component_id)
	)`,

	`CREATE TABLE IF NOT EXISTS site (
		id TEXT PRIMARY KEY,
		site_name VARCHAR(255) NOT NULL,
		site_slug VARCHAR(255) NOT NULL,
		site_mode VARCHAR(32) NOT NULL DEFAULT 'standard',
		owner_user_id VARCHAR(190) NOT NULL,
		published BOOLEAN NOT NULL DEFAULT FALSE,
		published_at TIMESTAMP,
		domain_name VARCHAR(255),
		favicon_url VARCHAR(512),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CONSTRAINT uq_site_slug UNIQUE (site_slug)
	)`,

	`CREATE TABLE IF NOT EXISTS page (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL,
		page_name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL,
		title VARCHAR(255),
		description TEXT,
		path VARCHAR(512),
		data_sources TEXT,
		layout_id VARCHAR(190),
		parent_page_id TEXT,
		display_order INTEGER NOT NULL DEFAULT 0,
		published BOOLEAN NOT NULL DEFAULT FALSE,
		published_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CONSTRAINT uq_page_slug UNIQUE (site_id, slug),
		CONSTRAINT fk_page_site FOREIGN KEY (site_id) REFERENCES site(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS page_version (
		id TEXT PRIMARY KEY,
		page_id TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		page_definition TEXT NOT NULL,
		change_description VARCHAR(512),
		created_by_user_id VARCHAR(190),
		created_at TIMESTAMP NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		CONSTRAINT uq_version_number UNIQUE (page_id, version_number),
		CONSTRAINT fk_version_page FOREIGN KEY (page_id) REFERENCES page(id) ON DELETE CASCADE
	)`,

	`CREATE INDEX IF NOT EXISTS idx_registry_category ON component_registry (category)`,
	`CREATE INDEX IF NOT EXISTS idx_registry_plugin ON component_registry (plugin_id)`,
	`CREATE INDEX IF NOT EXISTS idx_page_site ON page (site_id)`,
	`CREATE INDEX IF NOT EXISTS idx_version_page ON page_version (page_id)`,
}

// Migrate creates the persisted tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
