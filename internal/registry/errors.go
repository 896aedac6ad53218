package registry

import "fmt"

// PageRef identifies a page that references a component.
type PageRef struct {
	PageID   string `json:"pageId"`
	PageName string `json:"pageName"`
	SiteID   string `json:"siteId"`
}

// ComponentInUseError is returned when unregistering a component that page
// versions still reference. The caller surfaces Pages so the UI can prompt.
type ComponentInUseError struct {
	PluginID    string
	ComponentID string
	Pages       []PageRef
}

func (e *ComponentInUseError) Error() string {
	return fmt.Sprintf("component %s/%s is referenced by %d page(s)",
		e.PluginID, e.ComponentID, len(e.Pages))
}

// NotFoundError is returned when a registry entry does not exist.
type NotFoundError struct {
	PluginID    string
	ComponentID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("component %s/%s not registered", e.PluginID, e.ComponentID)
}
