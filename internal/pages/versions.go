package pages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sitekit/siteforge/internal/database"
	"github.com/sitekit/siteforge/internal/models"
)

// ErrActiveVersion is returned when deleting the active version of a page.
var ErrActiveVersion = errors.New("cannot delete the active version")

// VersionStore is the append-only history of page trees. Saving always
// appends a new row and flips the active flag; existing versions are never
// mutated.
type VersionStore struct {
	db     *sqlx.DB
	q      database.Rebinder
	logger *slog.Logger

	// Per-page write serialization on top of the transaction, so readers
	// never observe two active rows and version numbers never collide.
	locks sync.Map // pageID -> *sync.Mutex
}

// NewVersionStore creates a version store on the shared database handle.
func NewVersionStore(db *sqlx.DB, logger *slog.Logger) *VersionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &VersionStore{db: db, q: database.Rebinder{Driver: db.DriverName()}, logger: logger}
}

func (s *VersionStore) pageLock(pageID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(pageID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

const versionColumns = `id, page_id, version_number, page_definition,
	change_description, created_by_user_id, created_at, is_active`

// SaveVersion appends a new version of the page's tree and makes it the
// single active one. Version numbers start at 1 and strictly increase.
func (s *VersionStore) SaveVersion(ctx context.Context, siteID, pageID, treeJSON, description, userID string) (*models.PageVersion, error) {
	mu := s.pageLock(pageID)
	mu.Lock()
	defer mu.Unlock()

	// The page must exist and belong to the site.
	var n int
	err := s.db.GetContext(ctx, &n,
		s.q.Q(`SELECT COUNT(*) FROM page WHERE id = ? AND site_id = ?`), pageID, siteID)
	if err != nil {
		return nil, fmt.Errorf("verify page: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("page %s in site %s: %w", pageID, siteID, ErrNotFound)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save tx: %w", err)
	}
	defer tx.Rollback()

	var maxVersion sql.NullInt64
	if err := tx.GetContext(ctx, &maxVersion,
		s.q.Q(`SELECT MAX(version_number) FROM page_version WHERE page_id = ?`), pageID); err != nil {
		return nil, fmt.Errorf("read max version: %w", err)
	}

	version := &models.PageVersion{
		ID:             uuid.NewString(),
		PageID:         pageID,
		VersionNumber:  int(maxVersion.Int64) + 1,
		PageDefinition: treeJSON,
		CreatedAt:      time.Now().UTC(),
		IsActive:       true,
	}
	if description != "" {
		version.ChangeDescription = &description
	}
	if userID != "" {
		version.CreatedByUserID = &userID
	}

	if _, err := tx.ExecContext(ctx,
		s.q.Q(`UPDATE page_version SET is_active = FALSE WHERE page_id = ?`), pageID); err != nil {
		return nil, fmt.Errorf("deactivate versions: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q.Q(`
		INSERT INTO page_version (`+versionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, TRUE)`),
		version.ID, version.PageID, version.VersionNumber, version.PageDefinition,
		version.ChangeDescription, version.CreatedByUserID, version.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save: %w", err)
	}

	s.logger.Info("page version saved", "page", pageID, "version", version.VersionNumber)
	return version, nil
}

// Restore re-appends the target version's tree as a new active version.
// Historical rows are untouched.
func (s *VersionStore) Restore(ctx context.Context, pageID, versionID string) (*models.PageVersion, error) {
	target, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if target.PageID != pageID {
		return nil, fmt.Errorf("version %s does not belong to page %s: %w", versionID, pageID, ErrNotFound)
	}

	var siteID string
	if err := s.db.GetContext(ctx, &siteID,
		s.q.Q(`SELECT site_id FROM page WHERE id = ?`), pageID); err != nil {
		return nil, fmt.Errorf("resolve site: %w", err)
	}

	description := fmt.Sprintf("Restored from version %d", target.VersionNumber)
	return s.SaveVersion(ctx, siteID, pageID, target.PageDefinition, description, "")
}

// GetVersion returns one version row.
func (s *VersionStore) GetVersion(ctx context.Context, versionID string) (*models.PageVersion, error) {
	var v models.PageVersion
	err := s.db.GetContext(ctx, &v,
		s.q.Q(`SELECT `+versionColumns+` FROM page_version WHERE id = ?`), versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %s: %w", versionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &v, nil
}

// GetActive returns the page's active version, falling back to the highest
// version number when no row is flagged (legacy data).
func (s *VersionStore) GetActive(ctx context.Context, pageID string) (*models.PageVersion, error) {
	var v models.PageVersion
	err := s.db.GetContext(ctx, &v,
		s.q.Q(`SELECT `+versionColumns+` FROM page_version WHERE page_id = ? AND is_active = TRUE`), pageID)
	if err == nil {
		return &v, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get active version: %w", err)
	}

	err = s.db.GetContext(ctx, &v, s.q.Q(`
		SELECT `+versionColumns+` FROM page_version
		WHERE page_id = ? ORDER BY version_number DESC LIMIT 1`), pageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %s has no versions: %w", pageID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest version: %w", err)
	}
	return &v, nil
}

// History returns a page's versions, newest first.
func (s *VersionStore) History(ctx context.Context, pageID string) ([]*models.PageVersion, error) {
	var out []*models.PageVersion
	err := s.db.SelectContext(ctx, &out, s.q.Q(`
		SELECT `+versionColumns+` FROM page_version
		WHERE page_id = ? ORDER BY version_number DESC`), pageID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return out, nil
}

// DeleteVersion removes a historical version. Deleting the active one is
// forbidden.
func (s *VersionStore) DeleteVersion(ctx context.Context, versionID string) error {
	v, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if v.IsActive {
		return ErrActiveVersion
	}

	mu := s.pageLock(v.PageID)
	mu.Lock()
	defer mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		s.q.Q(`DELETE FROM page_version WHERE id = ? AND is_active = FALSE`), versionID)
	if err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	return nil
}
