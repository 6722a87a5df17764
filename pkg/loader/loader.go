// Package loader reads FHIR NPM packages from the local package cache or from local
// .tgz files. It never downloads.
package loader

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultPackagePath returns the default FHIR package cache path.
func DefaultPackagePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fhir", "packages")
}

// DefaultConcurrency is the number of files read in parallel.
const DefaultConcurrency = 8

// PackageRef represents a reference to a FHIR package.
type PackageRef struct {
	Name    string
	Version string
}

// String returns the package spec in "name#version" format.
func (p PackageRef) String() string {
	return fmt.Sprintf("%s#%s", p.Name, p.Version)
}

// ParsePackageSpec parses "name#version" into a PackageRef.
func ParsePackageSpec(spec string) PackageRef {
	parts := strings.SplitN(spec, "#", 2)
	if len(parts) == 2 {
		return PackageRef{Name: parts[0], Version: parts[1]}
	}
	return PackageRef{Name: spec}
}

// PackageManifest represents the package.json of a FHIR NPM package.
type PackageManifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	FHIRVersion  string            `json:"fhirVersion,omitempty"`
	FHIRVersions []string          `json:"fhirVersions,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Resource is one JSON resource of a package.
type Resource struct {
	File string
	Type string
	ID   string
	URL  string
	Data json.RawMessage
}

// Key returns the canonical URL, or "type/id" when the resource has none.
func (r Resource) Key() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Type + "/" + r.ID
}

// Package represents a loaded FHIR package.
type Package struct {
	Name        string
	Version     string
	Path        string
	FHIRVersion string
	Resources   []Resource
}

// StructureDefinitions returns the raw StructureDefinitions of the package keyed by
// canonical URL.
func (p *Package) StructureDefinitions() map[string][]byte {
	out := make(map[string][]byte)
	for _, r := range p.Resources {
		if r.Type == "StructureDefinition" {
			out[r.Key()] = r.Data
		}
	}
	return out
}

// Option configures a Loader.
type Option func(*Loader)

// WithConcurrency sets how many files are read in parallel.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// Loader loads FHIR packages from disk.
type Loader struct {
	basePath    string
	concurrency int
}

// NewLoader creates a new Loader with the given cache path. An empty path means
// DefaultPackagePath.
func NewLoader(basePath string, opts ...Option) *Loader {
	if basePath == "" {
		basePath = DefaultPackagePath()
	}
	l := &Loader{basePath: basePath, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BasePath returns the base path for packages.
func (l *Loader) BasePath() string {
	return l.basePath
}

// LoadPackage loads a package of the cache by name and version.
func (l *Loader) LoadPackage(ctx context.Context, ref PackageRef) (*Package, error) {
	pkgDir := filepath.Join(l.basePath, ref.String())
	if _, err := os.Stat(pkgDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("package %s not found at %s", ref, pkgDir)
	}
	return l.LoadDir(ctx, filepath.Join(pkgDir, "package"))
}

// LoadDir loads an unpacked package directory containing package.json and the resource
// files.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*Package, error) {
	manifestData, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read package manifest: %w", err)
	}
	pkg, err := newPackage(manifestData, dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !isResourceFile(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}

	resources := make([]*Resource, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, name := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return nil
			}
			resources[i] = parseResource(name, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range resources {
		if r != nil {
			pkg.Resources = append(pkg.Resources, *r)
		}
	}
	return pkg, nil
}

// ListPackages returns all packages in the cache as "name#version".
func (l *Loader) ListPackages() ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, err
	}

	var packages []string
	for _, entry := range entries {
		if entry.IsDir() && strings.Contains(entry.Name(), "#") {
			packages = append(packages, entry.Name())
		}
	}
	sort.Strings(packages)
	return packages, nil
}

// LoadFromTgz loads a FHIR package from a local .tgz file.
func (l *Loader) LoadFromTgz(tgzPath string) (*Package, error) {
	file, err := os.Open(tgzPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open tgz file: %w", err)
	}
	defer file.Close()

	return loadFromTgzReader(file, tgzPath)
}

func loadFromTgzReader(reader io.Reader, source string) (*Package, error) {
	gzReader, err := gzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	var manifestData []byte
	var resources []Resource

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}

		name := strings.TrimPrefix(header.Name, "package/")
		if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := io.ReadAll(tarReader)
		if err != nil {
			continue
		}

		if name == "package.json" {
			manifestData = data
			continue
		}
		if !isResourceFile(name) {
			continue
		}
		if r := parseResource(name, data); r != nil {
			resources = append(resources, *r)
		}
	}

	if manifestData == nil {
		return nil, fmt.Errorf("package.json not found in %s", source)
	}
	pkg, err := newPackage(manifestData, source)
	if err != nil {
		return nil, err
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].File < resources[j].File })
	pkg.Resources = resources
	return pkg, nil
}

func newPackage(manifestData []byte, path string) (*Package, error) {
	data, err := Decode(manifestData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode package manifest: %w", err)
	}
	var manifest PackageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse package manifest: %w", err)
	}

	fhirVersion := manifest.FHIRVersion
	if fhirVersion == "" && len(manifest.FHIRVersions) > 0 {
		fhirVersion = manifest.FHIRVersions[0]
	}
	return &Package{
		Name:        manifest.Name,
		Version:     manifest.Version,
		Path:        path,
		FHIRVersion: fhirVersion,
	}, nil
}

func isResourceFile(name string) bool {
	return strings.HasSuffix(name, ".json") && name != "package.json" && name != ".index.json"
}

// parseResource decodes the resource header of one file. Files that are not FHIR
// resources yield nil.
func parseResource(name string, raw []byte) *Resource {
	data, err := Decode(raw)
	if err != nil {
		return nil
	}
	var header struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
		URL          string `json:"url"`
	}
	if err := json.Unmarshal(data, &header); err != nil || header.ResourceType == "" {
		return nil
	}
	return &Resource{
		File: name,
		Type: header.ResourceType,
		ID:   header.ID,
		URL:  header.URL,
		Data: data,
	}
}

// Decode returns data as UTF-8 without byte order mark. UTF-16 documents with a BOM are
// transcoded.
func Decode(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	return out, err
}
