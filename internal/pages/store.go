package pages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sitekit/siteforge/internal/database"
	"github.com/sitekit/siteforge/internal/models"
)

// ErrNotFound is returned for missing pages and versions.
var ErrNotFound = errors.New("not found")

// ErrSlugConflict is returned when an explicit slug is already taken.
var ErrSlugConflict = errors.New("slug already in use")

// Store persists page metadata rows. The component tree itself lives in
// the version store.
type Store struct {
	db     *sqlx.DB
	q      database.Rebinder
	logger *slog.Logger
}

// NewStore creates a page store on the shared database handle.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, q: database.Rebinder{Driver: db.DriverName()}, logger: logger}
}

const pageColumns = `id, site_id, page_name, slug, title, description, path,
	data_sources, layout_id, parent_page_id, display_order, published,
	published_at, created_at, updated_at`

// CreateInput is the caller-supplied part of a new page.
type CreateInput struct {
	SiteID       string
	PageName     string
	Slug         string // empty derives from PageName
	Title        string
	Description  string
	Path         string
	DataSources  string // JSON mapping, may be empty
	LayoutID     string
	ParentPageID string
	DisplayOrder int
}

// Create inserts a page, deriving and de-duplicating the slug within the
// site. An explicitly supplied slug that collides is an error rather than
// silently suffixed.
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.Page, error) {
	slug := in.Slug
	explicit := slug != ""
	if !explicit {
		slug = Slugify(in.PageName)
	}

	taken := func(candidate string) (bool, error) {
		var n int
		err := s.db.GetContext(ctx, &n,
			s.q.Q(`SELECT COUNT(*) FROM page WHERE site_id = ? AND slug = ?`), in.SiteID, candidate)
		return n > 0, err
	}

	if explicit {
		inUse, err := taken(slug)
		if err != nil {
			return nil, fmt.Errorf("check slug: %w", err)
		}
		if inUse {
			return nil, fmt.Errorf("%w: %s", ErrSlugConflict, slug)
		}
	} else {
		var err error
		slug, err = UniqueSlug(slug, taken)
		if err != nil {
			return nil, fmt.Errorf("derive slug: %w", err)
		}
	}

	now := time.Now().UTC()
	page := &models.Page{
		ID:           uuid.NewString(),
		SiteID:       in.SiteID,
		PageName:     in.PageName,
		Slug:         slug,
		DisplayOrder: in.DisplayOrder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	page.Title = optional(in.Title)
	page.Description = optional(in.Description)
	page.Path = optional(in.Path)
	page.DataSourcesJSON = optional(in.DataSources)
	page.LayoutID = optional(in.LayoutID)
	page.ParentPageID = optional(in.ParentPageID)

	_, err := s.db.ExecContext(ctx, s.q.Q(`
		INSERT INTO page (`+pageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, NULL, ?, ?)`),
		page.ID, page.SiteID, page.PageName, page.Slug, page.Title, page.Description,
		page.Path, page.DataSourcesJSON, page.LayoutID, page.ParentPageID,
		page.DisplayOrder, page.CreatedAt, page.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert page: %w", err)
	}

	s.logger.Info("page created", "page", page.ID, "site", page.SiteID, "slug", page.Slug)
	return page, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Get returns one page.
func (s *Store) Get(ctx context.Context, pageID string) (*models.Page, error) {
	var page models.Page
	err := s.db.GetContext(ctx, &page,
		s.q.Q(`SELECT `+pageColumns+` FROM page WHERE id = ?`), pageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	return &page, nil
}

// GetBySlug returns one page by (siteID, slug).
func (s *Store) GetBySlug(ctx context.Context, siteID, slug string) (*models.Page, error) {
	var page models.Page
	err := s.db.GetContext(ctx, &page,
		s.q.Q(`SELECT `+pageColumns+` FROM page WHERE site_id = ? AND slug = ?`), siteID, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %s/%s: %w", siteID, slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page by slug: %w", err)
	}
	return &page, nil
}

// ListBySite returns a site's pages ordered for navigation.
func (s *Store) ListBySite(ctx context.Context, siteID string) ([]*models.Page, error) {
	var out []*models.Page
	err := s.db.SelectContext(ctx, &out,
		s.q.Q(`SELECT `+pageColumns+` FROM page WHERE site_id = ? ORDER BY display_order, page_name`), siteID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return out, nil
}

// UpdateInput carries updatable metadata fields. Nil pointers leave the
// column untouched.
type UpdateInput struct {
	PageName    *string
	Title       *string
	Description *string
	Path        *string
	DataSources *string
	LayoutID    *string
	Published   *bool
}

// Update patches page metadata. Renaming does not re-derive the slug; the
// slug is stable once assigned.
func (s *Store) Update(ctx context.Context, pageID string, in UpdateInput) (*models.Page, error) {
	page, err := s.Get(ctx, pageID)
	if err != nil {
		return nil, err
	}

	if in.PageName != nil {
		page.PageName = *in.PageName
	}
	if in.Title != nil {
		page.Title = optional(*in.Title)
	}
	if in.Description != nil {
		page.Description = optional(*in.Description)
	}
	if in.Path != nil {
		page.Path = optional(*in.Path)
	}
	if in.DataSources != nil {
		page.DataSourcesJSON = optional(*in.DataSources)
	}
	if in.LayoutID != nil {
		page.LayoutID = optional(*in.LayoutID)
	}
	if in.Published != nil {
		page.Published = *in.Published
		if *in.Published {
			now := time.Now().UTC()
			page.PublishedAt = &now
		}
	}
	page.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, s.q.Q(`
		UPDATE page SET page_name = ?, title = ?, description = ?, path = ?,
			data_sources = ?, layout_id = ?, published = ?, published_at = ?, updated_at = ?
		WHERE id = ?`),
		page.PageName, page.Title, page.Description, page.Path,
		page.DataSourcesJSON, page.LayoutID, page.Published, page.PublishedAt,
		page.UpdatedAt, page.ID)
	if err != nil {
		return nil, fmt.Errorf("update page: %w", err)
	}
	return page, nil
}

// Reorder rewrites display orders for a site's pages in the given id order.
func (s *Store) Reorder(ctx context.Context, siteID string, pageIDs []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder tx: %w", err)
	}
	defer tx.Rollback()

	for i, id := range pageIDs {
		res, err := tx.ExecContext(ctx,
			s.q.Q(`UPDATE page SET display_order = ?, updated_at = ? WHERE id = ? AND site_id = ?`),
			i, time.Now().UTC(), id, siteID)
		if err != nil {
			return fmt.Errorf("reorder page %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("page %s: %w", id, ErrNotFound)
		}
	}
	return tx.Commit()
}

// Delete removes a page; its versions cascade.
func (s *Store) Delete(ctx context.Context, pageID string) error {
	// Explicit version delete keeps sqlite deployments without foreign_keys
	// pragma honest about the cascade.
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q.Q(`DELETE FROM page_version WHERE page_id = ?`), pageID); err != nil {
		return fmt.Errorf("delete page versions: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.q.Q(`DELETE FROM page WHERE id = ?`), pageID)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	return tx.Commit()
}
