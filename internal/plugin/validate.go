package plugin

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	pkgplugin "github.com/sitekit/siteforge/pkg/plugin"
)

// manifestSchema is the JSON schema manifests are checked against when
// plugin.validation.enabled is on. It mirrors the structural rules of
// ComponentManifest.Validate and additionally pins value shapes.
//
//go:embed manifest_schema.json
var manifestSchema string

var compiledManifestSchema = gojsonschema.NewStringLoader(manifestSchema)

// ValidateManifest runs both the structural Go-side checks and the JSON
// schema over a manifest. Used by the lifecycle manager before registering
// plugin-supplied manifests.
func ValidateManifest(m *pkgplugin.ComponentManifest) error {
	if err := m.Validate(); err != nil {
		return err
	}

	blob, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("serialize manifest %s: %w", m.Key(), err)
	}

	result, err := gojsonschema.Validate(compiledManifestSchema, gojsonschema.NewBytesLoader(blob))
	if err != nil {
		return fmt.Errorf("schema validation of %s: %w", m.Key(), err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("manifest %s violates schema: %s", m.Key(), strings.Join(problems, "; "))
	}
	return nil
}
