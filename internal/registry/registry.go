// Package registry maintains the durable catalog of component manifests.
//
// Entries are keyed by (pluginId, componentId) and survive the plugin files
// that produced them: removing a plugin deactivates its entries, and rows are
// deleted only when no page version references the component.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sitekit/siteforge/internal/database"
	"github.com/sitekit/siteforge/internal/models"
	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

// Store is the DB-backed component registry.
type Store struct {
	db     *sqlx.DB
	q      database.Rebinder
	logger *slog.Logger
}

// NewStore creates a registry store on the shared database handle.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, q: database.Rebinder{Driver: db.DriverName()}, logger: logger}
}

const entryColumns = `id, plugin_id, component_id, component_name, category, icon,
	component_manifest, react_bundle_path, is_active, registered_at`

// Register upserts a manifest by (pluginId, componentId) and activates it.
// Registering the same manifest twice is equivalent to registering it once.
func (s *Store) Register(ctx context.Context, m *pkgplugin.ComponentManifest) (*models.RegistryEntry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin register tx: %w", err)
	}
	defer tx.Rollback()

	entry, err := s.registerTx(ctx, tx, m)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit register: %w", err)
	}
	return entry, nil
}

// RegisterBatch registers several manifests inside one storage transaction.
// Either all entries land or none do.
func (s *Store) RegisterBatch(ctx context.Context, manifests []pkgplugin.ComponentManifest) ([]*models.RegistryEntry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch tx: %w", err)
	}
	defer tx.Rollback()

	entries := make([]*models.RegistryEntry, 0, len(manifests))
	for i := range manifests {
		entry, err := s.registerTx(ctx, tx, &manifests[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return entries, nil
}

func (s *Store) registerTx(ctx context.Context, tx *sqlx.Tx, m *pkgplugin.ComponentManifest) (*models.RegistryEntry, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	blob, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("serialize manifest %s: %w", m.Key(), err)
	}

	now := time.Now().UTC()

	var icon, bundle *string
	if m.Icon != "" {
		icon = &m.Icon
	}
	if m.ReactComponentPath != "" {
		bundle = &m.ReactComponentPath
	}

	// Upsert: same key updates in place (last writer wins), new key inserts.
	var existingID string
	err = tx.QueryRowContext(ctx,
		s.q.Q(`SELECT id FROM component_registry WHERE plugin_id = ? AND component_id = ?`),
		m.PluginID, m.ComponentID,
	).Scan(&existingID)

	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, s.q.Q(`
			UPDATE component_registry
			SET component_name = ?, category = ?, icon = ?, component_manifest = ?,
			    react_bundle_path = ?, is_active = TRUE, registered_at = ?
			WHERE id = ?`),
			m.DisplayName, m.Category, icon, string(blob), bundle, now, existingID)
		if err != nil {
			return nil, fmt.Errorf("update entry %s: %w", m.Key(), err)
		}
	case errors.Is(err, sql.ErrNoRows):
		existingID = uuid.NewString()
		_, err = tx.ExecContext(ctx, s.q.Q(`
			INSERT INTO component_registry
			(`+entryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?)`),
			existingID, m.PluginID, m.ComponentID, m.DisplayName, m.Category,
			icon, string(blob), bundle, now)
		if err != nil {
			return nil, fmt.Errorf("insert entry %s: %w", m.Key(), err)
		}
	default:
		return nil, fmt.Errorf("lookup entry %s: %w", m.Key(), err)
	}

	s.logger.Debug("component registered", "plugin", m.PluginID, "component", m.ComponentID)

	return &models.RegistryEntry{
		ID:              existingID,
		PluginID:        m.PluginID,
		ComponentID:     m.ComponentID,
		ComponentName:   m.DisplayName,
		Category:        m.Category,
		Icon:            icon,
		ManifestJSON:    string(blob),
		ReactBundlePath: bundle,
		IsActive:        true,
		RegisteredAt:    now,
	}, nil
}

// Get returns one entry or a NotFoundError.
func (s *Store) Get(ctx context.Context, pluginID, componentID string) (*models.RegistryEntry, error) {
	var entry models.RegistryEntry
	err := s.db.GetContext(ctx, &entry,
		s.q.Q(`SELECT `+entryColumns+` FROM component_registry WHERE plugin_id = ? AND component_id = ?`),
		pluginID, componentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{PluginID: pluginID, ComponentID: componentID}
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &entry, nil
}

// GetManifest returns the deserialized manifest for one entry.
func (s *Store) GetManifest(ctx context.Context, pluginID, componentID string) (*pkgplugin.ComponentManifest, error) {
	entry, err := s.Get(ctx, pluginID, componentID)
	if err != nil {
		return nil, err
	}
	m, err := entry.Manifest()
	if err != nil {
		return nil, fmt.Errorf("parse stored manifest %s/%s: %w", pluginID, componentID, err)
	}
	return m, nil
}

// Exists reports whether an entry for the key exists, and if so whether it
// is active. Used by the render orchestrator's reference check.
func (s *Store) Exists(ctx context.Context, pluginID, componentID string) (exists, active bool, err error) {
	var isActive bool
	err = s.db.GetContext(ctx, &isActive,
		s.q.Q(`SELECT is_active FROM component_registry WHERE plugin_id = ? AND component_id = ?`),
		pluginID, componentID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("check entry: %w", err)
	}
	return true, isActive, nil
}

// ListActive returns all active entries.
func (s *Store) ListActive(ctx context.Context) ([]*models.RegistryEntry, error) {
	return s.list(ctx, `WHERE is_active = TRUE`)
}

// ListAll returns every entry regardless of activation state.
func (s *Store) ListAll(ctx context.Context) ([]*models.RegistryEntry, error) {
	return s.list(ctx, ``)
}

// ByCategory returns active entries in the given category.
func (s *Store) ByCategory(ctx context.Context, category string) ([]*models.RegistryEntry, error) {
	if !pkgplugin.ValidCategory(category) {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	var entries []*models.RegistryEntry
	err := s.db.SelectContext(ctx, &entries,
		s.q.Q(`SELECT `+entryColumns+` FROM component_registry
			WHERE category = ? AND is_active = TRUE
			ORDER BY plugin_id, component_id`), category)
	if err != nil {
		return nil, fmt.Errorf("list by category: %w", err)
	}
	return entries, nil
}

// ByPlugin returns every entry contributed by one plugin.
func (s *Store) ByPlugin(ctx context.Context, pluginID string) ([]*models.RegistryEntry, error) {
	var entries []*models.RegistryEntry
	err := s.db.SelectContext(ctx, &entries,
		s.q.Q(`SELECT `+entryColumns+` FROM component_registry
			WHERE plugin_id = ? ORDER BY component_id`), pluginID)
	if err != nil {
		return nil, fmt.Errorf("list by plugin: %w", err)
	}
	return entries, nil
}

func (s *Store) list(ctx context.Context, where string) ([]*models.RegistryEntry, error) {
	var entries []*models.RegistryEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT `+entryColumns+` FROM component_registry `+where+` ORDER BY plugin_id, component_id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// Activate marks one entry active.
func (s *Store) Activate(ctx context.Context, pluginID, componentID string) (*models.RegistryEntry, error) {
	return s.setActive(ctx, pluginID, componentID, true)
}

// Deactivate marks one entry inactive. Pages referencing it keep rendering
// with a warning; new instances cannot be placed.
func (s *Store) Deactivate(ctx context.Context, pluginID, componentID string) (*models.RegistryEntry, error) {
	return s.setActive(ctx, pluginID, componentID, false)
}

func (s *Store) setActive(ctx context.Context, pluginID, componentID string, active bool) (*models.RegistryEntry, error) {
	res, err := s.db.ExecContext(ctx,
		s.q.Q(`UPDATE component_registry SET is_active = ? WHERE plugin_id = ? AND component_id = ?`),
		active, pluginID, componentID)
	if err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &NotFoundError{PluginID: pluginID, ComponentID: componentID}
	}
	return s.Get(ctx, pluginID, componentID)
}

// DeactivatePlugin marks every entry of a plugin inactive. Called on
// uninstall; referenced rows are preserved.
func (s *Store) DeactivatePlugin(ctx context.Context, pluginID string) error {
	_, err := s.db.ExecContext(ctx,
		s.q.Q(`UPDATE component_registry SET is_active = FALSE WHERE plugin_id = ?`), pluginID)
	if err != nil {
		return fmt.Errorf("deactivate plugin %s: %w", pluginID, err)
	}
	return nil
}

// Unregister removes one entry, failing with ComponentInUseError while any
// page version still references the component.
func (s *Store) Unregister(ctx context.Context, pluginID, componentID string) error {
	pages, err := s.FindPagesUsing(ctx, pluginID, componentID)
	if err != nil {
		return err
	}
	if len(pages) > 0 {
		return &ComponentInUseError{PluginID: pluginID, ComponentID: componentID, Pages: pages}
	}

	res, err := s.db.ExecContext(ctx,
		s.q.Q(`DELETE FROM component_registry WHERE plugin_id = ? AND component_id = ?`),
		pluginID, componentID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{PluginID: pluginID, ComponentID: componentID}
	}
	return nil
}

// UnregisterPlugin removes every entry of a plugin, failing like Unregister
// if any of its components is in use.
func (s *Store) UnregisterPlugin(ctx context.Context, pluginID string) error {
	entries, err := s.ByPlugin(ctx, pluginID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		pages, err := s.FindPagesUsing(ctx, pluginID, e.ComponentID)
		if err != nil {
			return err
		}
		if len(pages) > 0 {
			return &ComponentInUseError{PluginID: pluginID, ComponentID: e.ComponentID, Pages: pages}
		}
	}
	_, err = s.db.ExecContext(ctx,
		s.q.Q(`DELETE FROM component_registry WHERE plugin_id = ?`), pluginID)
	if err != nil {
		return fmt.Errorf("delete plugin entries: %w", err)
	}
	return nil
}
