// Package apierrors maps the host's typed failure kinds onto the HTTP
// boundary. Every failure a handler can surface has a Code; the code owns
// its status and default message, and handlers never hand-pick statuses.
package apierrors

import (
	"net/http"
	"sort"
	"strings"
)

// Code identifies one API failure kind, namespaced by subsystem
// ("core:not_found", "plugin:malformed_package").
type Code string

// Request and resource failures shared across handlers.
const (
	Unauthorized     Code = "core:unauthorized"
	Forbidden        Code = "core:forbidden"
	InvalidRequest   Code = "core:invalid_request"
	ValidationFailed Code = "core:validation_failed"
	NotFound         Code = "core:not_found"
	Conflict         Code = "core:conflict"
	InternalError    Code = "core:internal_error"
)

// Plugin subsystem failures.
const (
	MalformedPackage    Code = "plugin:malformed_package"
	SchemaViolation     Code = "plugin:schema_violation"
	UnsupportedType     Code = "plugin:unsupported_type"
	IsolationInitFailed Code = "plugin:isolation_init_failed"
	LoadFailed          Code = "plugin:load_failed"
	ActivateFailed      Code = "plugin:activate_failed"
	PluginNotFound      Code = "plugin:not_found"
)

// Registry subsystem failures.
const (
	ComponentInUse   Code = "registry:component_in_use"
	InvalidManifest  Code = "registry:invalid_manifest"
	InvalidCategory  Code = "registry:invalid_category"
	ComponentMissing Code = "registry:component_not_found"
)

// Page subsystem failures.
const (
	VersionActive Code = "pages:version_active"
	SlugConflict  Code = "pages:slug_conflict"
	InvalidTree   Code = "pages:invalid_tree"
)

// def pairs a code with its HTTP status and default message. The table is
// fixed at compile time; the host has no dynamic code registration.
type def struct {
	status  int
	message string
}

var table = map[Code]def{
	Unauthorized:     {http.StatusUnauthorized, "Authentication required"},
	Forbidden:        {http.StatusForbidden, "You do not own this resource"},
	InvalidRequest:   {http.StatusBadRequest, "Request body could not be parsed"},
	ValidationFailed: {http.StatusBadRequest, "Request failed validation"},
	NotFound:         {http.StatusNotFound, "No such resource"},
	Conflict:         {http.StatusConflict, "Conflicts with an existing resource"},
	InternalError:    {http.StatusInternalServerError, "Something went wrong on our side"},

	MalformedPackage:    {http.StatusBadRequest, "Archive is not a readable plugin package"},
	SchemaViolation:     {http.StatusBadRequest, "Package descriptor is incomplete"},
	UnsupportedType:     {http.StatusBadRequest, "Package declares a plugin type this host cannot run"},
	IsolationInitFailed: {http.StatusInternalServerError, "Plugin entry object could not be constructed"},
	LoadFailed:          {http.StatusInternalServerError, "Plugin load hook failed"},
	ActivateFailed:      {http.StatusInternalServerError, "Plugin activation hook failed"},
	PluginNotFound:      {http.StatusNotFound, "No such plugin"},

	ComponentInUse:   {http.StatusBadRequest, "Pages still reference this component"},
	InvalidManifest:  {http.StatusBadRequest, "Component manifest failed validation"},
	InvalidCategory:  {http.StatusBadRequest, "No such component category"},
	ComponentMissing: {http.StatusNotFound, "No such component"},

	VersionActive: {http.StatusBadRequest, "The active version cannot be deleted"},
	SlugConflict:  {http.StatusConflict, "Slug already in use within this site"},
	InvalidTree:   {http.StatusBadRequest, "Page definition tree failed validation"},
}

// Status returns the HTTP status for the code, 500 for unknown codes.
func (c Code) Status() int {
	if d, ok := table[c]; ok {
		return d.status
	}
	return http.StatusInternalServerError
}

// Message returns the code's default message. Unknown codes echo the code
// itself so a missing table entry is visible rather than silent.
func (c Code) Message() string {
	if d, ok := table[c]; ok {
		return d.message
	}
	return string(c)
}

// Namespace returns the subsystem prefix of the code.
func (c Code) Namespace() string {
	if i := strings.IndexByte(string(c), ':'); i > 0 {
		return string(c)[:i]
	}
	return "core"
}

// Info is one row of the code listing served to the admin UI.
type Info struct {
	Code       Code   `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"httpStatus"`
}

// List returns every known code sorted by code string. Served by the admin
// API so UIs can map codes to their own copy.
func List() []Info {
	out := make([]Info, 0, len(table))
	for c, d := range table {
		out = append(out, Info{Code: c, Message: d.message, HTTPStatus: d.status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
