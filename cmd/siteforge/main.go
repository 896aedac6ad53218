// Command siteforge runs the plugin host and page-render server.
//
// Exit codes: 0 on normal shutdown, 1 on fatal startup (bad configuration,
// storage unreachable), 2 when the plugin directory is unreadable.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitekit/siteforge/internal/api"
	"github.com/sitekit/siteforge/internal/config"
	"github.com/sitekit/siteforge/internal/database"
	"github.com/sitekit/siteforge/internal/datasource"
	"github.com/sitekit/siteforge/internal/pages"
	"github.com/sitekit/siteforge/internal/plugin"
	"github.com/sitekit/siteforge/internal/plugin/loader"
	"github.com/sitekit/siteforge/internal/registry"
	"github.com/sitekit/siteforge/internal/sites"
	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

const (
	exitFatalStartup      = 1
	exitPluginDirUnusable = 2
)

func main() {
	var cfgFile string

	root := &cobra.Command{
		Use:          "siteforge",
		Short:        "Plugin-hosting site platform",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default siteforge.yaml)")

	if err := root.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(exitFatalStartup)
	}
}

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func run(cfgFile string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		return &exitError{code: exitFatalStartup, err: err}
	}

	db, err := database.Connect(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("storage unreachable", "error", err)
		return &exitError{code: exitFatalStartup, err: err}
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Error("schema migration failed", "error", err)
		return &exitError{code: exitFatalStartup, err: err}
	}

	// Long-lived services, created once and handed to the router.
	reg := registry.NewStore(db, logger)
	pageStore := pages.NewStore(db, logger)
	versionStore := pages.NewVersionStore(db, logger)
	siteStore := sites.NewStore(db, logger)
	engine := datasource.NewEngine(
		datasource.WithTimeout(cfg.FetchTimeout()),
		datasource.WithDefaultTTL(cfg.DefaultCacheTTL()),
		datasource.WithLogger(logger),
	)
	orchestrator := pages.NewOrchestrator(pageStore, versionStore, reg, engine, logger)

	manager := plugin.NewManager(cfg.Plugin.Directory, lifecycleRegistry{reg},
		plugin.WithValidation(cfg.Plugin.Validation.Enabled),
		plugin.WithLogger(logger),
	)

	if _, err := manager.Discover(); err != nil {
		logger.Error("plugin directory unreadable", "path", cfg.Plugin.Directory, "error", err)
		return &exitError{code: exitPluginDirUnusable, err: err}
	}
	loaded, errs := manager.DiscoverAndLoadAll(ctx)
	for _, err := range errs {
		logger.Error("plugin failed to start", "error", err)
	}
	logger.Info("plugins started", "loaded", loaded, "failed", len(errs))

	var watcher *loader.Watcher
	if cfg.Plugin.HotReload.Enabled {
		watcher = loader.NewWatcher(manager, loader.WithLogger(logger))
		if err := watcher.Start(ctx, time.Minute); err != nil {
			logger.Error("hot reload unavailable", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	router := api.Router(&api.Handlers{
		Registry:     reg,
		Lifecycle:    manager,
		Sites:        siteStore,
		Pages:        pageStore,
		Versions:     versionStore,
		Engine:       engine,
		Orchestrator: orchestrator,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Error("server failed", "error", err)
		return &exitError{code: exitFatalStartup, err: err}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", "error", err)
	}
	manager.ShutdownAll(shutdownCtx)
	return nil
}

// lifecycleRegistry narrows the registry store to the interface the
// lifecycle manager drives.
type lifecycleRegistry struct {
	store *registry.Store
}

func (r lifecycleRegistry) RegisterBatch(ctx context.Context, manifests []pkgplugin.ComponentManifest) error {
	_, err := r.store.RegisterBatch(ctx, manifests)
	return err
}

func (r lifecycleRegistry) DeactivatePlugin(ctx context.Context, pluginID string) error {
	return r.store.DeactivatePlugin(ctx, pluginID)
}
