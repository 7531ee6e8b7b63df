package gis

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MemoryWorkspace is the path prefix of transient scratch datasets.
const MemoryWorkspace = "memory"

// StandaloneExt is the extension of a feature class stored as a single file
// outside any container.
const StandaloneExt = ".geojson"

// ShapefileExt is the extension of a standalone Esri shapefile.
const ShapefileExt = ".shp"

// GeoPackageSuffix is the container suffix of a read-only GeoPackage.
const GeoPackageSuffix = ".gpkg"

// StandaloneExts lists the single-file feature class formats.
var StandaloneExts = []string{StandaloneExt, ShapefileExt}

// DefaultContainerSuffixes lists the container suffixes recognised when no
// configuration overrides them.
var DefaultContainerSuffixes = []string{".gdb", ".gpkg"}

// Kind distinguishes where a feature class lives.
type Kind int

const (
	// KindContainer is a feature class inside a container, optionally in a dataset.
	KindContainer Kind = iota

	// KindStandalone is a single-file feature class.
	KindStandalone

	// KindMemory is a transient scratch dataset.
	KindMemory
)

// Ref identifies a feature class: (container path, optional dataset, name).
type Ref struct {
	Kind      Kind   `json:"-"`
	Container string `json:"container,omitempty"`
	Dataset   string `json:"dataset,omitempty"`
	Name      string `json:"name"`

	// Ext is the file extension of a standalone feature class. Empty means
	// StandaloneExt.
	Ext string `json:"ext,omitempty"`
}

// Path returns the fully qualified path of the feature class.
func (r Ref) Path() string {
	switch r.Kind {
	case KindMemory:
		return MemoryWorkspace + "/" + r.Name
	case KindStandalone:
		return filepath.Join(r.Container, r.Name+r.FileExt())
	}
	if r.Dataset != "" {
		return filepath.Join(r.Container, r.Dataset, r.Name)
	}
	return filepath.Join(r.Container, r.Name)
}

// FileExt returns the extension of a standalone feature class.
func (r Ref) FileExt() string {
	if r.Ext == "" {
		return StandaloneExt
	}
	return r.Ext
}

// IsShapefile reports whether the reference names a standalone shapefile.
func (r Ref) IsShapefile() bool {
	return r.Kind == KindStandalone && strings.EqualFold(r.Ext, ShapefileExt)
}

// String implements fmt.Stringer.
func (r Ref) String() string {
	return r.Path()
}

// Depth is the number of path levels below the container: 1 for a feature
// class held directly in the container, 2 for one inside a feature dataset.
func (r Ref) Depth() int {
	if r.Kind != KindContainer {
		return 0
	}
	if r.Dataset != "" {
		return 2
	}
	return 1
}

// Workspace returns the workspace that lists this feature class.
func (r Ref) Workspace() Workspace {
	return Workspace{Container: r.Container, Dataset: r.Dataset}
}

// MemoryRef returns a reference to a scratch dataset.
func MemoryRef(name string) Ref {
	return Ref{Kind: KindMemory, Container: MemoryWorkspace, Name: name}
}

// Workspace is the scope of a listing call: a container, or a feature dataset
// inside a container.
type Workspace struct {
	Container string
	Dataset   string
}

// Path returns the filesystem path of the workspace.
func (w Workspace) Path() string {
	if w.Dataset != "" {
		return filepath.Join(w.Container, w.Dataset)
	}
	return w.Container
}

// Ref returns a reference to the named feature class within the workspace.
func (w Workspace) Ref(name string) Ref {
	return Ref{Kind: KindContainer, Container: w.Container, Dataset: w.Dataset, Name: name}
}

// HasContainerSuffix reports whether name ends in one of the container suffixes.
func HasContainerSuffix(name string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if suffix != "" && strings.HasSuffix(strings.ToLower(name), strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// IsGeoPackage reports whether a container path is a GeoPackage.
func IsGeoPackage(container string) bool {
	return strings.HasSuffix(strings.ToLower(container), GeoPackageSuffix)
}

// ParseRef parses a feature class path. Accepted forms:
//
//	memory/<name>
//	<dir>/<name>.geojson
//	<dir>/<name>.shp
//	<dir>/<container><suffix>/<name>
//	<dir>/<container><suffix>/<dataset>/<name>
func ParseRef(path string, suffixes []string) (Ref, error) {
	slashed := filepath.ToSlash(path)
	if name, ok := strings.CutPrefix(slashed, MemoryWorkspace+"/"); ok {
		if name == "" || strings.Contains(name, "/") {
			return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, path)
		}
		return MemoryRef(name), nil
	}

	cleaned := filepath.ToSlash(filepath.Clean(path))
	parts := strings.Split(cleaned, "/")
	for i, part := range parts {
		if !HasContainerSuffix(part, suffixes) {
			continue
		}
		container := filepath.FromSlash(strings.Join(parts[:i+1], "/"))
		rest := parts[i+1:]
		switch len(rest) {
		case 1:
			return Ref{Kind: KindContainer, Container: container, Name: rest[0]}, nil
		case 2:
			return Ref{Kind: KindContainer, Container: container, Dataset: rest[0], Name: rest[1]}, nil
		default:
			return Ref{}, fmt.Errorf("%w: %q must name a feature class at most two levels below its container", ErrInvalidRef, path)
		}
	}

	for _, ext := range StandaloneExts {
		if !strings.HasSuffix(strings.ToLower(cleaned), ext) {
			continue
		}
		base := filepath.Base(filepath.FromSlash(cleaned))
		if len(base) == len(ext) {
			break
		}
		return Ref{
			Kind:      KindStandalone,
			Container: filepath.Dir(filepath.FromSlash(cleaned)),
			Name:      base[:len(base)-len(ext)],
			Ext:       ext,
		}, nil
	}

	return Ref{}, fmt.Errorf("%w: %q is not inside a container", ErrInvalidRef, path)
}

// ParseWorkspace parses a container or container/dataset path.
func ParseWorkspace(path string, suffixes []string) (Workspace, error) {
	cleaned := filepath.ToSlash(filepath.Clean(path))
	parts := strings.Split(cleaned, "/")
	for i, part := range parts {
		if !HasContainerSuffix(part, suffixes) {
			continue
		}
		container := filepath.FromSlash(strings.Join(parts[:i+1], "/"))
		switch rest := parts[i+1:]; len(rest) {
		case 0:
			return Workspace{Container: container}, nil
		case 1:
			return Workspace{Container: container, Dataset: rest[0]}, nil
		default:
			return Workspace{}, fmt.Errorf("%w: %q is nested too deeply below its container", ErrInvalidRef, path)
		}
	}
	return Workspace{}, fmt.Errorf("%w: %q is not a container or feature dataset", ErrInvalidRef, path)
}
