package isolation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dop251/goja"

	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

// ScriptDomain hosts one package's entry script in its own goja runtime.
// The runtime sees the published host surface (console, host info) and
// nothing else; dropping the domain drops the runtime and everything the
// script allocated.
type ScriptDomain struct {
	mu     sync.Mutex
	rt     *goja.Runtime
	logger *slog.Logger
	closed bool
}

// NewScriptDomain creates a runtime and evaluates the package's entry
// script. The script is expected to define the declared main class as a
// global constructor or factory function.
func NewScriptDomain(scriptPath string, logger *slog.Logger) (*ScriptDomain, error) {
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("read entry script: %w", err)
	}
	return NewScriptDomainFromSource(string(src), logger)
}

// NewScriptDomainFromSource is NewScriptDomain over in-memory source.
func NewScriptDomainFromSource(src string, logger *slog.Logger) (*ScriptDomain, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := &ScriptDomain{rt: goja.New(), logger: logger}
	d.installHostSurface()

	if _, err := d.rt.RunString(src); err != nil {
		return nil, fmt.Errorf("%w: evaluate entry script: %v", ErrIsolationInit, err)
	}
	return d, nil
}

// installHostSurface publishes the API scripts may use. Only these names
// are visible from the host side.
func (d *ScriptDomain) installHostSurface() {
	console := d.rt.NewObject()
	console.Set("log", func(args ...any) { d.logger.Info(consoleLine(args)) })
	console.Set("warn", func(args ...any) { d.logger.Warn(consoleLine(args)) })
	console.Set("error", func(args ...any) { d.logger.Error(consoleLine(args)) })
	d.rt.Set("console", console)

	host := d.rt.NewObject()
	host.Set("categories", pkgplugin.Categories)
	d.rt.Set("host", host)
}

func consoleLine(args []any) string {
	line := ""
	for i, a := range args {
		if i > 0 {
			line += " "
		}
		line += fmt.Sprintf("%v", a)
	}
	return line
}

// Instantiate constructs the entry object named mainClass and wraps it as a
// host-side Plugin.
func (d *ScriptDomain) Instantiate(mainClass string) (p pkgplugin.Plugin, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, initError(mainClass, fmt.Errorf("domain is closed"))
	}

	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = initError(mainClass, fmt.Errorf("constructor panicked: %v", r))
		}
	}()

	v := d.rt.Get(mainClass)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, initError(mainClass, fmt.Errorf("not defined by entry script"))
	}

	obj, newErr := d.rt.New(v)
	if newErr != nil {
		// Not a constructor - try calling it as a factory.
		fn, ok := goja.AssertFunction(v)
		if !ok {
			return nil, initError(mainClass, newErr)
		}
		res, callErr := fn(goja.Undefined())
		if callErr != nil {
			return nil, initError(mainClass, callErr)
		}
		obj = res.ToObject(d.rt)
	}
	if obj == nil {
		return nil, initError(mainClass, fmt.Errorf("constructor returned nothing"))
	}

	return &scriptPlugin{domain: d, obj: obj}, nil
}

// Close drops the runtime. The script's globals become unreachable from the
// host once the lifecycle entry is cleared.
func (d *ScriptDomain) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.rt = nil
	return nil
}

// scriptPlugin adapts a goja entry object to the Plugin interface. All
// runtime access is serialized through the domain lock - goja runtimes are
// single-threaded.
type scriptPlugin struct {
	domain *ScriptDomain
	obj    *goja.Object
}

// Manifests calls the entry object's manifests() function and decodes the
// result through JSON into host manifest types.
func (p *scriptPlugin) Manifests() []pkgplugin.ComponentManifest {
	p.domain.mu.Lock()
	defer p.domain.mu.Unlock()
	if p.domain.closed {
		return nil
	}

	fn, ok := goja.AssertFunction(p.obj.Get("manifests"))
	if !ok {
		return nil
	}
	res, err := fn(p.obj)
	if err != nil {
		p.domain.logger.Error("plugin manifests() failed", "error", err)
		return nil
	}

	data, err := json.Marshal(res.Export())
	if err != nil {
		p.domain.logger.Error("plugin manifests() returned unserializable value", "error", err)
		return nil
	}
	var manifests []pkgplugin.ComponentManifest
	if err := json.Unmarshal(data, &manifests); err != nil {
		p.domain.logger.Error("plugin manifests() shape mismatch", "error", err)
		return nil
	}
	return manifests
}

func (p *scriptPlugin) OnLoad(ctx context.Context, pc *pkgplugin.Context) error {
	return p.callHook("onLoad", pc)
}

func (p *scriptPlugin) OnActivate(ctx context.Context, pc *pkgplugin.Context) error {
	return p.callHook("onActivate", pc)
}

func (p *scriptPlugin) OnDeactivate(ctx context.Context, pc *pkgplugin.Context) error {
	return p.callHook("onDeactivate", pc)
}

func (p *scriptPlugin) OnUninstall(ctx context.Context, pc *pkgplugin.Context) error {
	return p.callHook("onUninstall", pc)
}

// callHook invokes the named hook if the entry object defines it. A missing
// hook is a no-op; a JS exception becomes the hook's error.
func (p *scriptPlugin) callHook(name string, pc *pkgplugin.Context) error {
	p.domain.mu.Lock()
	defer p.domain.mu.Unlock()
	if p.domain.closed {
		return fmt.Errorf("hook %s: domain is closed", name)
	}

	fn, ok := goja.AssertFunction(p.obj.Get(name))
	if !ok {
		return nil
	}

	jsCtx := p.domain.rt.NewObject()
	jsCtx.Set("pluginId", pc.PluginID)
	jsCtx.Set("version", pc.Version)
	jsCtx.Set("dataDir", pc.DataDir)
	jsCtx.Set("config", pc.Config)
	logger := pc.Logger
	if logger == nil {
		logger = p.domain.logger
	}
	jsCtx.Set("log", func(msg string) { logger.Info(msg) })

	if _, err := fn(p.obj, jsCtx); err != nil {
		return fmt.Errorf("hook %s: %w", name, err)
	}
	return nil
}
