// Package plugin drives the lifecycle of installed plugin packages:
// discovery, isolated loading, activation, and teardown, with component
// registration as a load side-effect.
package plugin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sitekit/siteforge/internal/plugin/isolation"
	"github.com/sitekit/siteforge/internal/plugin/packaging"
	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

// ComponentRegistry is the slice of the registry the lifecycle manager
// drives: batch registration on load and plugin-wide deactivation on
// uninstall.
type ComponentRegistry interface {
	RegisterBatch(ctx context.Context, manifests []pkgplugin.ComponentManifest) error
	DeactivatePlugin(ctx context.Context, pluginID string) error
}

// PluginStatus is one row of the lifecycle snapshot.
type PluginStatus struct {
	PluginID string    `json:"pluginId"`
	State    State     `json:"state"`
	Version  string    `json:"version"`
	LoadedAt time.Time `json:"loadedAt,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// lifecycleEntry tracks one plugin. Its own mutex serializes that plugin's
// transitions; different plugins transition independently.
type lifecycleEntry struct {
	mu sync.Mutex

	meta        *packaging.PackageMetadata
	archivePath string // the .zip this entry came from, if any
	pluginDir   string // extracted or exploded package directory

	state     State
	domain    isolation.Domain
	plugin    pkgplugin.Plugin
	manifests []pkgplugin.ComponentManifest
	loadedAt  time.Time
	lastErr   string
}

// Manager owns the lifecycle map and the plugin directory.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*lifecycleEntry

	registry   ComponentRegistry
	dir        string
	validation bool
	logger     *slog.Logger
	logBuffer  *LogBuffer
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithValidation toggles manifest schema validation on load.
func WithValidation(enabled bool) ManagerOption {
	return func(m *Manager) { m.validation = enabled }
}

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a lifecycle manager over the given plugin directory.
func NewManager(dir string, reg ComponentRegistry, opts ...ManagerOption) *Manager {
	m := &Manager{
		entries:    make(map[string]*lifecycleEntry),
		registry:   reg,
		dir:        dir,
		validation: true,
		logger:     slog.Default(),
		logBuffer:  NewLogBuffer(1000),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Logs returns the lifecycle log buffer.
func (m *Manager) Logs() *LogBuffer { return m.logBuffer }

// Dir returns the managed plugin directory.
func (m *Manager) Dir() string { return m.dir }

// unpackedDir is where archives are extracted; dataDir holds per-plugin
// private state. Both live under the plugin directory but are skipped by
// discovery.
func (m *Manager) unpackedDir() string { return filepath.Join(m.dir, ".unpacked") }
func (m *Manager) dataDir() string     { return filepath.Join(m.dir, ".data") }

// Discover scans the plugin directory sequentially and records every
// package it can read metadata for. Already-known plugins are left alone.
// Returns the ids discovered in this pass; per-package read failures are
// logged and skipped.
func (m *Manager) Discover() ([]string, error) {
	if _, err := os.Stat(m.dir); os.IsNotExist(err) {
		m.logger.Info("plugin directory does not exist, creating", "path", m.dir)
		if err := os.MkdirAll(m.dir, 0755); err != nil {
			return nil, fmt.Errorf("create plugin dir: %w", err)
		}
		return nil, nil
	}

	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read plugin dir: %w", err)
	}

	var discovered []string
	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		var meta *packaging.PackageMetadata
		var archivePath, pluginDir string

		switch {
		case !de.IsDir() && strings.EqualFold(filepath.Ext(name), ".zip"):
			archivePath = filepath.Join(m.dir, name)
			meta, err = packaging.ReadMetadata(archivePath)
		case de.IsDir():
			// Exploded package: a directory with a descriptor at its root.
			descriptor := filepath.Join(m.dir, name, packaging.DescriptorName)
			data, readErr := os.ReadFile(descriptor)
			if readErr != nil {
				continue // not a plugin directory
			}
			meta, err = packaging.ParseDescriptor(data)
			pluginDir = filepath.Join(m.dir, name)
		default:
			continue
		}

		if err != nil {
			m.logger.Warn("skipping unreadable package", "name", name, "error", err)
			m.logBuffer.Log(name, "warn", fmt.Sprintf("Package unreadable: %v", err), nil)
			continue
		}

		if m.track(meta, archivePath, pluginDir) {
			discovered = append(discovered, meta.PluginID)
			m.logger.Debug("discovered plugin", "plugin", meta.PluginID, "version", meta.Version)
			m.logBuffer.Log(meta.PluginID, "info", "Plugin discovered", nil)
		}
	}
	return discovered, nil
}

// track records a discovered package unless its id is already known.
// Returns whether a new entry was created.
func (m *Manager) track(meta *packaging.PackageMetadata, archivePath, pluginDir string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[meta.PluginID]; exists {
		return false
	}
	m.entries[meta.PluginID] = &lifecycleEntry{
		meta:        meta,
		archivePath: archivePath,
		pluginDir:   pluginDir,
		state:       StateDiscovered,
	}
	return true
}

// DiscoverAndLoadAll scans the directory and drives every discovered
// plugin to Active. Individual loads proceed in parallel; a failing plugin
// is recorded and never aborts the rest.
func (m *Manager) DiscoverAndLoadAll(ctx context.Context) (loaded int, errs []error) {
	discovered, err := m.Discover()
	if err != nil {
		return 0, []error{err}
	}

	// Include anything discovered earlier but not yet active (e.g. a
	// prior pass failed load, or hot reload found it first).
	m.mu.RLock()
	pending := make([]string, 0, len(m.entries))
	seen := make(map[string]bool, len(discovered))
	for _, id := range discovered {
		seen[id] = true
	}
	for id, e := range m.entries {
		if seen[id] {
			continue
		}
		e.mu.Lock()
		if e.state == StateDiscovered {
			pending = append(pending, id)
		}
		e.mu.Unlock()
	}
	m.mu.RUnlock()
	all := append(discovered, pending...)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, id := range all {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := m.loadAndActivate(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("plugin %s: %w", id, err))
				return
			}
			loaded++
		}(id)
	}
	wg.Wait()
	return loaded, errs
}

func (m *Manager) loadAndActivate(ctx context.Context, id string) error {
	if err := m.Load(ctx, id); err != nil {
		return err
	}
	return m.Activate(ctx, id)
}

func (m *Manager) entry(id string) (*lifecycleEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

// Load drives a plugin from Discovered to Loaded: extract, create the
// isolation domain, instantiate the entry object, run OnLoad, and register
// its manifests. On failure the domain is torn down and the state stays
// Discovered.
func (m *Manager) Load(ctx context.Context, id string) error {
	e, ok := m.entry(id)
	if !ok {
		return fmt.Errorf("plugin %q not discovered", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateLoaded || e.state == StateActive {
		return nil
	}
	if !CanTransition(e.state, StateLoaded) {
		return fmt.Errorf("plugin %q cannot load from state %s", id, e.state)
	}

	if err := m.loadLocked(ctx, e); err != nil {
		e.lastErr = err.Error()
		m.logBuffer.Log(id, "error", fmt.Sprintf("Load failed: %v", err), nil)
		return err
	}

	e.state = StateLoaded
	e.loadedAt = time.Now()
	e.lastErr = ""
	m.logger.Info("plugin loaded", "plugin", id, "version", e.meta.Version, "components", len(e.manifests))
	m.logBuffer.Log(id, "info", "Plugin loaded", map[string]any{"components": len(e.manifests)})
	return nil
}

func (m *Manager) loadLocked(ctx context.Context, e *lifecycleEntry) error {
	id := e.meta.PluginID

	// Extract the archive unless the package is already exploded on disk.
	pluginDir := e.pluginDir
	if pluginDir == "" {
		root, _, err := packaging.Extract(e.archivePath, m.unpackedDir())
		if err != nil {
			return err
		}
		pluginDir = root
		e.pluginDir = root
	}

	domain, err := m.openDomain(e, pluginDir)
	if err != nil {
		return err
	}

	entryObj, err := domain.Instantiate(e.meta.MainClass)
	if err != nil {
		domain.Close()
		return err
	}

	pc, err := m.pluginContext(e)
	if err != nil {
		domain.Close()
		return err
	}

	if err := entryObj.OnLoad(ctx, pc); err != nil {
		domain.Close()
		return &pkgplugin.HookError{Kind: pkgplugin.KindLoadFailed, Hook: "OnLoad", PluginID: id, Err: err}
	}

	manifests := entryObj.Manifests()
	if m.validation {
		for i := range manifests {
			if err := ValidateManifest(&manifests[i]); err != nil {
				domain.Close()
				return &pkgplugin.HookError{Kind: pkgplugin.KindLoadFailed, Hook: "OnLoad", PluginID: id, Err: err}
			}
		}
	}

	if m.registry != nil && len(manifests) > 0 {
		if err := m.registry.RegisterBatch(ctx, manifests); err != nil {
			domain.Close()
			return fmt.Errorf("register components: %w", err)
		}
	}

	e.domain = domain
	e.plugin = entryObj
	e.manifests = manifests
	return nil
}

func (m *Manager) openDomain(e *lifecycleEntry, pluginDir string) (isolation.Domain, error) {
	if e.meta.Entry != "" {
		script := filepath.Join(pluginDir, filepath.Clean(e.meta.Entry))
		return isolation.NewScriptDomain(script, m.logger.With("plugin", e.meta.PluginID))
	}
	return isolation.NewNativeDomain(), nil
}

func (m *Manager) pluginContext(e *lifecycleEntry) (*pkgplugin.Context, error) {
	dataDir := filepath.Join(m.dataDir(), e.meta.PluginID)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create plugin data dir: %w", err)
	}
	return &pkgplugin.Context{
		PluginID: e.meta.PluginID,
		Version:  e.meta.Version,
		DataDir:  dataDir,
		Config:   e.meta.Config,
		Logger:   m.logger.With("plugin", e.meta.PluginID),
	}, nil
}

// Activate drives Loaded to Active. An OnActivate failure rolls the state
// back to Loaded; registrations made during load are retained so a retry
// does not re-register.
func (m *Manager) Activate(ctx context.Context, id string) error {
	e, ok := m.entry(id)
	if !ok {
		return fmt.Errorf("plugin %q not found", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateActive {
		return nil
	}
	if !CanTransition(e.state, StateActive) {
		return fmt.Errorf("plugin %q cannot activate from state %s", id, e.state)
	}

	pc, err := m.pluginContext(e)
	if err != nil {
		return err
	}

	if err := e.plugin.OnActivate(ctx, pc); err != nil {
		hookErr := &pkgplugin.HookError{Kind: pkgplugin.KindActivateFailed, Hook: "OnActivate", PluginID: id, Err: err}
		e.lastErr = hookErr.Error()
		m.logBuffer.Log(id, "error", fmt.Sprintf("Activate failed: %v", err), nil)
		return hookErr
	}

	e.state = StateActive
	e.lastErr = ""
	m.logger.Info("plugin activated", "plugin", id)
	m.logBuffer.Log(id, "info", "Plugin activated", nil)
	return nil
}

// Deactivate drives Active back to Loaded. A failing OnDeactivate is
// recorded but the state still advances - shutdown is best-effort.
func (m *Manager) Deactivate(ctx context.Context, id string) error {
	e, ok := m.entry(id)
	if !ok {
		return fmt.Errorf("plugin %q not found", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive {
		return fmt.Errorf("plugin %q is not active", id)
	}

	var hookErr error
	if err := e.plugin.OnDeactivate(ctx, mustContext(m, e)); err != nil {
		hookErr = &pkgplugin.HookError{Kind: pkgplugin.KindDeactivateFailed, Hook: "OnDeactivate", PluginID: id, Err: err}
		e.lastErr = hookErr.Error()
		m.logger.Warn("plugin deactivate hook failed", "plugin", id, "error", err)
		m.logBuffer.Log(id, "warn", fmt.Sprintf("Deactivate hook failed: %v", err), nil)
	}

	e.state = StateLoaded
	m.logBuffer.Log(id, "info", "Plugin deactivated", nil)
	return hookErr
}

// Uninstall tears a plugin down: best-effort OnDeactivate/OnUninstall,
// registry entries deactivated (never deleted while pages reference them),
// isolation domain closed, lifecycle entry cleared.
func (m *Manager) Uninstall(ctx context.Context, id string) error {
	e, ok := m.entry(id)
	if !ok {
		return fmt.Errorf("plugin %q not found", id)
	}

	e.mu.Lock()

	var hookErr error
	if e.state == StateActive {
		if err := e.plugin.OnDeactivate(ctx, mustContext(m, e)); err != nil {
			m.logger.Warn("plugin deactivate hook failed during uninstall", "plugin", id, "error", err)
		}
		e.state = StateLoaded
	}

	if e.state == StateLoaded && e.plugin != nil {
		if err := e.plugin.OnUninstall(ctx, mustContext(m, e)); err != nil {
			hookErr = &pkgplugin.HookError{Kind: pkgplugin.KindUninstallFailed, Hook: "OnUninstall", PluginID: id, Err: err}
			m.logger.Warn("plugin uninstall hook failed", "plugin", id, "error", err)
			m.logBuffer.Log(id, "warn", fmt.Sprintf("Uninstall hook failed: %v", err), nil)
		}
	}

	if e.domain != nil {
		e.domain.Close()
		e.domain = nil
	}
	e.plugin = nil
	e.state = StateUninstalled
	e.mu.Unlock()

	// Registry work happens outside the entry lock per the locking order:
	// lifecycle entry lock, then registry transaction.
	if m.registry != nil {
		if err := m.registry.DeactivatePlugin(ctx, id); err != nil {
			m.logger.Error("failed to deactivate registry entries", "plugin", id, "error", err)
			if hookErr == nil {
				hookErr = err
			}
		}
	}

	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()

	m.logger.Info("plugin uninstalled", "plugin", id)
	m.logBuffer.Log(id, "info", "Plugin uninstalled", nil)
	return hookErr
}

// mustContext builds a plugin context, falling back to a minimal one if the
// data dir cannot be created mid-teardown.
func mustContext(m *Manager, e *lifecycleEntry) *pkgplugin.Context {
	pc, err := m.pluginContext(e)
	if err != nil {
		return &pkgplugin.Context{
			PluginID: e.meta.PluginID,
			Version:  e.meta.Version,
			Config:   e.meta.Config,
			Logger:   m.logger.With("plugin", e.meta.PluginID),
		}
	}
	return pc
}

// InstallAndActivate copies an archive into the plugin directory with an
// atomic rename, then drives it to Active. If load or activation fails the
// copied archive is removed and the error returned.
func (m *Manager) InstallAndActivate(ctx context.Context, archivePath string) (*PluginStatus, error) {
	meta, err := packaging.ReadMetadata(archivePath)
	if err != nil {
		return nil, err
	}

	if _, exists := m.entry(meta.PluginID); exists {
		return nil, fmt.Errorf("plugin %q is already installed", meta.PluginID)
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("create plugin dir: %w", err)
	}

	destPath := filepath.Join(m.dir, meta.PluginID+".zip")
	if err := copyAtomic(archivePath, destPath); err != nil {
		return nil, fmt.Errorf("install archive: %w", err)
	}

	cleanup := func() {
		os.Remove(destPath)
		os.RemoveAll(filepath.Join(m.unpackedDir(), meta.PluginID))
		m.mu.Lock()
		delete(m.entries, meta.PluginID)
		m.mu.Unlock()
	}

	m.track(meta, destPath, "")

	if err := m.loadAndActivate(ctx, meta.PluginID); err != nil {
		cleanup()
		return nil, err
	}

	status := m.status(meta.PluginID)
	return &status, nil
}

// copyAtomic copies src next to dest and renames it into place.
func copyAtomic(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".install-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dest)
}

// List returns a snapshot of every tracked plugin, sorted by id.
func (m *Manager) List() []PluginStatus {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	statuses := make([]PluginStatus, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, m.status(id))
	}
	return statuses
}

// Status returns the snapshot row for one plugin.
func (m *Manager) Status(id string) (PluginStatus, bool) {
	if _, ok := m.entry(id); !ok {
		return PluginStatus{}, false
	}
	return m.status(id), true
}

func (m *Manager) status(id string) PluginStatus {
	e, ok := m.entry(id)
	if !ok {
		return PluginStatus{PluginID: id, State: StateUninstalled}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return PluginStatus{
		PluginID: id,
		State:    e.state,
		Version:  e.meta.Version,
		LoadedAt: e.loadedAt,
		Error:    e.lastErr,
	}
}

// Manifests returns the manifests a loaded plugin contributed.
func (m *Manager) Manifests(id string) []pkgplugin.ComponentManifest {
	e, ok := m.entry(id)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]pkgplugin.ComponentManifest, len(e.manifests))
	copy(out, e.manifests)
	return out
}

// ShutdownAll deactivates every active plugin. Used on host shutdown;
// errors are logged, not returned.
func (m *Manager) ShutdownAll(ctx context.Context) {
	for _, st := range m.List() {
		if st.State == StateActive {
			if err := m.Deactivate(ctx, st.PluginID); err != nil {
				m.logger.Warn("shutdown deactivate failed", "plugin", st.PluginID, "error", err)
			}
		}
	}
}
