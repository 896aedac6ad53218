// Package sites persists the site rows that own pages and their versions.
package sites

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
	"github.com/sitekit/siteforge/internal/pages"
)

// ErrNotFound is returned for missing sites.
var ErrNotFound = errors.New("site not found")

// ErrForbidden is returned when a caller acts on a site they do not own.
var ErrForbidden = errors.New("not the site owner")

// ErrSlugTaken is returned when a site slug is already in use.
var ErrSlugTaken = errors.New("site slug already in use")

// Store persists sites.
type Store struct {
	db     *sqlx.DB
	q      database.Rebinder
	logger *slog.Logger
}

// NewStore creates a site store on the shared database handle.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, q: database.Rebinder{Driver: db.DriverName()}, logger: logger}
}

const siteColumns = `id, site_name, site_slug, site_mode, owner_user_id,
	published, published_at, domain_name, favicon_url, created_at, updated_at`

// CreateInput is the caller-supplied part of a new site.
type CreateInput struct {
	SiteName    string
	SiteSlug    string // empty derives from SiteName
	SiteMode    string
	OwnerUserID string
	DomainName  string
	FaviconURL  string
}

// Create inserts a site. Slugs are globally unique; a derived slug is
// suffixed on collision, an explicit one errors.
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.Site, error) {
	if in.OwnerUserID == "" {
		return nil, fmt.Errorf("site requires an owner")
	}

	slug := in.SiteSlug
	explicit := slug != ""
	if !explicit {
		slug = pages.Slugify(in.SiteName)
	}

	taken := func(candidate string) (bool, error) {
		var n int
		err := s.db.GetContext(ctx, &n,
			s.q.Q(`SELECT COUNT(*) FROM site WHERE site_slug = ?`), candidate)
		return n > 0, err
	}

	if explicit {
		inUse, err := taken(slug)
		if err != nil {
			return nil, fmt.Errorf("check slug: %w", err)
		}
		if inUse {
			return nil, fmt.Errorf("%w: %s", ErrSlugTaken, slug)
		}
	} else {
		var err error
		slug, err = pages.UniqueSlug(slug, taken)
		if err != nil {
			return nil, fmt.Errorf("derive slug: %w", err)
		}
	}

	mode := in.SiteMode
	if mode == "" {
		mode = "standard"
	}

	now := time.Now().UTC()
	site := &models.Site{
		ID:          uuid.NewString(),
		SiteName:    in.SiteName,
		SiteSlug:    slug,
		SiteMode:    mode,
		OwnerUserID: in.OwnerUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.DomainName != "" {
		site.DomainName = &in.DomainName
	}
	if in.FaviconURL != "" {
		site.FaviconURL = &in.FaviconURL
	}

	_, err := s.db.ExecContext(ctx, s.q.Q(`
		INSERT INTO site (`+siteColumns+`)
		VALUES (?, ?, ?, ?, ?, FALSE, NULL, ?, ?, ?, ?)`),
		site.ID, site.SiteName, site.SiteSlug, site.SiteMode, site.OwnerUserID,
		site.DomainName, site.FaviconURL, site.CreatedAt, site.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert site: %w", err)
	}

	s.logger.Info("site created", "site", site.ID, "slug", site.SiteSlug)
	return site, nil
}

// Get returns one site.
func (s *Store) Get(ctx context.Context, siteID string) (*models.Site, error) {
	var site models.Site
	err := s.db.GetContext(ctx, &site,
		s.q.Q(`SELECT `+siteColumns+` FROM site WHERE id = ?`), siteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %s: %w", siteID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return &site, nil
}

// List returns the sites owned by one user, or all sites when ownerUserID
// is empty.
func (s *Store) List(ctx context.Context, ownerUserID string) ([]*models.Site, error) {
	var out []*models.Site
	var err error
	if ownerUserID == "" {
		err = s.db.SelectContext(ctx, &out,
			`SELECT `+siteColumns+` FROM site ORDER BY site_name`)
	} else {
		err = s.db.SelectContext(ctx, &out,
			s.q.Q(`SELECT `+siteColumns+` FROM site WHERE owner_user_id = ? ORDER BY site_name`), ownerUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return out, nil
}

// requireOwner loads a site and checks ownership. An empty actingUserID
// bypasses the check (internal callers).
func (s *Store) requireOwner(ctx context.Context, siteID, actingUserID string) (*models.Site, error) {
	site, err := s.Get(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if actingUserID != "" && site.OwnerUserID != actingUserID {
		return nil, fmt.Errorf("site %s: %w", siteID, ErrForbidden)
	}
	return site, nil
}

// UpdateInput carries the updatable site fields.
type UpdateInput struct {
	SiteName   *string
	SiteMode   *string
	DomainName *string
	FaviconURL *string
}

// Update patches site metadata, enforcing ownership.
func (s *Store) Update(ctx context.Context, siteID, actingUserID string, in UpdateInput) (*models.Site, error) {
	site, err := s.requireOwner(ctx, siteID, actingUserID)
	if err != nil {
		return nil, err
	}

	if in.SiteName != nil {
		site.SiteName = *in.SiteName
	}
	if in.SiteMode != nil {
		site.SiteMode = *in.SiteMode
	}
	if in.DomainName != nil {
		if *in.DomainName == "" {
			site.DomainName = nil
		} else {
			site.DomainName = in.DomainName
		}
	}
	if in.FaviconURL != nil {
		if *in.FaviconURL == "" {
			site.FaviconURL = nil
		} else {
			site.FaviconURL = in.FaviconURL
		}
	}
	site.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, s.q.Q(`
		UPDATE site SET site_name = ?, site_mode = ?, domain_name = ?, favicon_url = ?, updated_at = ?
		WHERE id = ?`),
		site.SiteName, site.SiteMode, site.DomainName, site.FaviconURL, site.UpdatedAt, site.ID)
	if err != nil {
		return nil, fmt.Errorf("update site: %w", err)
	}
	return site, nil
}

// SetPublished flips the published flag, stamping publishedAt on publish.
func (s *Store) SetPublished(ctx context.Context, siteID, actingUserID string, published bool) (*models.Site, error) {
	site, err := s.requireOwner(ctx, siteID, actingUserID)
	if err != nil {
		return nil, err
	}

	site.Published = published
	if published {
		now := time.Now().UTC()
		site.PublishedAt = &now
	}
	site.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, s.q.Q(`
		UPDATE site SET published = ?, published_at = ?, updated_at = ? WHERE id = ?`),
		site.Published, site.PublishedAt, site.UpdatedAt, site.ID)
	if err != nil {
		return nil, fmt.Errorf("publish site: %w", err)
	}
	return site, nil
}

// Delete removes a site; pages and their versions cascade.
func (s *Store) Delete(ctx context.Context, siteID, actingUserID string) error {
	if _, err := s.requireOwner(ctx, siteID, actingUserID); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	// Explicit cascade keeps sqlite without foreign_keys pragma honest.
	if _, err := tx.ExecContext(ctx, s.q.Q(`
		DELETE FROM page_version WHERE page_id IN (SELECT id FROM page WHERE site_id = ?)`), siteID); err != nil {
		return fmt.Errorf("delete site versions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q.Q(`DELETE FROM page WHERE site_id = ?`), siteID); err != nil {
		return fmt.Errorf("delete site pages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q.Q(`DELETE FROM site WHERE id = ?`), siteID); err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	return tx.Commit()
}
