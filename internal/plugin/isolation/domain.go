// Package isolation provides per-package code-loading domains.
//
// A domain can resolve the host's published API surface and nothing else;
// two domains never share mutable state through common holders. Closing a
// domain drops every reference the host holds into the package, so its
// loaded code is collectable once the lifecycle map entry is cleared.
//
// Two implementations back the same interface, the way the host treats
// script and native plugins uniformly elsewhere: a goja runtime per script
// package, and a factory table for plugins compiled into the host.
package isolation

import (
	"errors"
	"fmt"

	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

// ErrIsolationInit wraps failures to locate or construct the declared entry
// class inside a domain.
var ErrIsolationInit = errors.New("isolation domain init failed")

// Domain is one package's isolated code-loading scope.
type Domain interface {
	// Instantiate resolves mainClass and constructs the package's entry
	// object. Constructor failures surface as ErrIsolationInit.
	Instantiate(mainClass string) (pkgplugin.Plugin, error)

	// Close tears the domain down. After Close the entry object must not
	// be invoked again.
	Close() error
}

// initError builds the standard wrapped init failure.
func initError(mainClass string, cause error) error {
	return fmt.Errorf("%w: entry class %q: %v", ErrIsolationInit, mainClass, cause)
}
