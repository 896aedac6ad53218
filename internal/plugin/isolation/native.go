package isolation

import (
	"fmt"
	"sync"

	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

// factories is the process-wide table of native entry-object constructors.
// Built-in plugins register themselves at startup under their mainClass
// name; there is no reflective scan.
var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]func() pkgplugin.Plugin)
)

// RegisterFactory adds a native plugin constructor under its mainClass name.
// Later registrations of the same name replace earlier ones.
func RegisterFactory(mainClass string, factory func() pkgplugin.Plugin) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[mainClass] = factory
}

// UnregisterFactory removes a native constructor. Intended for tests.
func UnregisterFactory(mainClass string) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	delete(factories, mainClass)
}

// NativeDomain resolves entry objects from the factory table. Each domain
// instantiates its own entry object; the table itself holds only
// constructors, so no state leaks between packages.
type NativeDomain struct {
	mu     sync.Mutex
	closed bool
}

// NewNativeDomain creates a domain over the process factory table.
func NewNativeDomain() *NativeDomain {
	return &NativeDomain{}
}

// Instantiate looks up mainClass and constructs the entry object.
func (d *NativeDomain) Instantiate(mainClass string) (p pkgplugin.Plugin, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, initError(mainClass, fmt.Errorf("domain is closed"))
	}

	factoriesMu.RLock()
	factory, ok := factories[mainClass]
	factoriesMu.RUnlock()
	if !ok {
		return nil, initError(mainClass, fmt.Errorf("no registered factory"))
	}

	// A panicking constructor is an init failure, not a host crash.
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = initError(mainClass, fmt.Errorf("constructor panicked: %v", r))
		}
	}()
	return factory(), nil
}

// Close marks the domain unusable.
func (d *NativeDomain) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
