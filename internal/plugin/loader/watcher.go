// Package loader keeps the lifecycle manager in sync with the plugin
// directory when hot reload is enabled: an fsnotify watcher reacts to new
// archives within moments, and a cron rescan sweeps up anything the watcher
// missed. Removed archives are deliberately NOT auto-uninstalled; an admin
// uninstalls explicitly.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/sitekit/siteforge/internal/plugin"
	"github.com/sitekit/siteforge/internal/plugin/packaging"
)

// Watcher rescans the plugin directory for newly present packages.
type Watcher struct {
	manager *plugin.Manager
	logger  *slog.Logger

	watcher *fsnotify.Watcher
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	debounce map[string]*time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger injects a logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher for the manager's plugin directory.
func NewWatcher(manager *plugin.Manager, opts ...Option) *Watcher {
	w := &Watcher{
		manager:  manager,
		logger:   slog.Default(),
		debounce: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching the directory and schedules the periodic rescan.
func (w *Watcher) Start(ctx context.Context, rescanEvery time.Duration) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.manager.Dir()); err != nil {
		fsw.Close()
		return fmt.Errorf("watch plugin dir: %w", err)
	}

	w.watcher = fsw
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.cron = cron.New()
	if rescanEvery <= 0 {
		rescanEvery = time.Minute
	}
	_, err = w.cron.AddFunc(fmt.Sprintf("@every %s", rescanEvery), func() {
		w.rescan()
	})
	if err != nil {
		fsw.Close()
		return fmt.Errorf("schedule rescan: %w", err)
	}
	w.cron.Start()

	w.logger.Info("plugin hot reload enabled", "path", w.manager.Dir(), "rescan", rescanEvery.String())

	go w.loop()
	return nil
}

// Stop halts the watcher and the rescan schedule.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.cron != nil {
		w.cron.Stop()
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// handleEvent reacts to archive or descriptor changes with debouncing so a
// package mid-copy loads only once it settles.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	base := filepath.Base(event.Name)
	isArchive := strings.EqualFold(filepath.Ext(base), ".zip")
	isDescriptor := base == packaging.DescriptorName
	if !isArchive && !isDescriptor {
		return
	}
	if strings.HasPrefix(base, ".") {
		return
	}

	w.mu.Lock()
	if timer, exists := w.debounce[event.Name]; exists {
		timer.Stop()
	}
	w.debounce[event.Name] = time.AfterFunc(500*time.Millisecond, func() {
		w.mu.Lock()
		delete(w.debounce, event.Name)
		w.mu.Unlock()
		w.rescan()
	})
	w.mu.Unlock()
}

// rescan discovers and loads any packages not yet tracked. Packages whose
// archives vanished are left as-is.
func (w *Watcher) rescan() {
	select {
	case <-w.ctx.Done():
		return
	default:
	}

	loaded, errs := w.manager.DiscoverAndLoadAll(w.ctx)
	if loaded > 0 {
		w.logger.Info("hot reload loaded plugins", "count", loaded)
	}
	for _, err := range errs {
		w.logger.Error("hot reload load failed", "error", err)
	}
}
