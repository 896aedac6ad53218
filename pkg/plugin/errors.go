package plugin

import "fmt"

// Hook error kinds. The lifecycle manager tags each hook failure with the
// kind of the hook that raised it: load failures abort, activate failures
// roll back, deactivate/uninstall failures are recorded while the state
// still advances.
const (
	KindLoadFailed       = "load_failed"
	KindActivateFailed   = "activate_failed"
	KindDeactivateFailed = "deactivate_failed"
	KindUninstallFailed  = "uninstall_failed"
)

// HookError wraps a failure raised by a lifecycle hook with its typed kind.
type HookError struct {
	Kind     string // one of the Kind* constants
	Hook     string // hook name, e.g. "OnActivate"
	PluginID string
	Err      error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("plugin %q %s: %v", e.PluginID, e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }
