// Package packaging reads, validates, and extracts ZIP plugin packages.
//
// A package is a self-contained archive carrying a plugin.yaml descriptor at
// its root, the entry script or native reference it declares, optional
// renderer bundles, and an optional thumbnails/ subtree. Reading metadata
// never loads code.
package packaging

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for the pre-load failure taxonomy. The HTTP boundary maps
// all three to 400.
var (
	ErrMalformedPackage = errors.New("malformed package")
	ErrSchemaViolation  = errors.New("package descriptor schema violation")
	ErrUnsupportedType  = errors.New("unsupported plugin type")
)

// Plugin types a package may declare.
const (
	TypeComponent = "component"
	TypeHandler   = "handler"
	TypeStorage   = "storage"
)

// DescriptorName is the declarative descriptor path inside the archive.
const DescriptorName = "plugin.yaml"

// PackageMetadata is the parsed descriptor plus the archive's resource
// listing. It identifies the entry object without loading any code.
type PackageMetadata struct {
	PluginID     string            `yaml:"pluginId" json:"pluginId"`
	Version      string            `yaml:"version" json:"version"`
	Author       string            `yaml:"author,omitempty" json:"author,omitempty"`
	Description  string            `yaml:"description,omitempty" json:"description,omitempty"`
	MainClass    string            `yaml:"mainClass" json:"mainClass"`
	PluginType   string            `yaml:"pluginType" json:"pluginType"`
	Dependencies []string          `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Config       map[string]string `yaml:"config,omitempty" json:"config,omitempty"`

	// Entry is the script file implementing mainClass, relative to the
	// archive root. Empty for native plugins resolved from the factory table.
	Entry string `yaml:"entry,omitempty" json:"entry,omitempty"`

	// Resources lists every non-descriptor path in the archive: entry
	// scripts, renderer bundles, thumbnails. Paths are opaque to the host.
	Resources []string `yaml:"-" json:"resources,omitempty"`
}

// ReadMetadata opens an archive and parses its descriptor.
func ReadMetadata(archivePath string) (*PackageMetadata, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a readable archive: %v", ErrMalformedPackage, filepath.Base(archivePath), err)
	}
	defer reader.Close()

	var descriptor *zip.File
	var resources []string
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		clean := filepath.Clean(f.Name)
		if clean == DescriptorName {
			descriptor = f
			continue
		}
		resources = append(resources, clean)
	}

	if descriptor == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedPackage, DescriptorName)
	}

	rc, err := descriptor.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read descriptor: %v", ErrMalformedPackage, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read descriptor: %v", ErrMalformedPackage, err)
	}

	meta, err := ParseDescriptor(data)
	if err != nil {
		return nil, err
	}
	meta.Resources = resources
	return meta, nil
}

// ParseDescriptor parses and validates descriptor bytes.
func ParseDescriptor(data []byte) (*PackageMetadata, error) {
	var meta PackageMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: invalid descriptor: %v", ErrMalformedPackage, err)
	}

	var missing []string
	if meta.PluginID == "" {
		missing = append(missing, "pluginId")
	}
	if meta.Version == "" {
		missing = append(missing, "version")
	}
	if meta.MainClass == "" {
		missing = append(missing, "mainClass")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields %s", ErrSchemaViolation, strings.Join(missing, ", "))
	}

	switch meta.PluginType {
	case TypeComponent, TypeHandler, TypeStorage:
	case "":
		meta.PluginType = TypeComponent
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, meta.PluginType)
	}

	return &meta, nil
}

// Extract unpacks an archive into targetDir/<pluginId> and returns the
// extraction root. Entries escaping the target via path traversal are
// skipped.
func Extract(archivePath, targetDir string) (string, *PackageMetadata, error) {
	meta, err := ReadMetadata(archivePath)
	if err != nil {
		return "", nil, err
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}
	defer reader.Close()

	root := filepath.Join(targetDir, meta.PluginID)
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", nil, fmt.Errorf("create plugin directory: %w", err)
	}

	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}

		clean := filepath.Clean(f.Name)
		if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
			continue
		}

		destPath := filepath.Join(root, clean)
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return "", nil, fmt.Errorf("create directory: %w", err)
		}
		if err := extractFile(f, destPath); err != nil {
			return "", nil, fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}

	return root, meta, nil
}

// Pack creates a plugin archive from a directory containing plugin.yaml.
// Used by the sfkit development CLI.
func Pack(pluginDir, outputPath string) error {
	data, err := os.ReadFile(filepath.Join(pluginDir, DescriptorName))
	if err != nil {
		return fmt.Errorf("read %s: %w", DescriptorName, err)
	}
	if _, err := ParseDescriptor(data); err != nil {
		return err
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer outFile.Close()

	zw := zip.NewWriter(outFile)
	defer zw.Close()

	return filepath.Walk(pluginDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(pluginDir, path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(filepath.Base(relPath), ".") {
			return nil
		}
		return addFileToZip(zw, path, filepath.ToSlash(relPath))
	})
}

func addFileToZip(w *zip.Writer, srcPath, zipPath string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = zipPath
	header.Method = zip.Deflate

	writer, err := w.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, file)
	return err
}

func extractFile(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer outFile.Close()

	_, err = io.Copy(outFile, rc)
	return err
}
