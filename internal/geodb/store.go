// Package geodb persists feature classes in the container formats gridprep
// understands.
//
// Three backends sit behind Store:
//   - Directory geodatabase (".gdb" by default): a directory whose feature
//     classes are GeoJSON files, optionally grouped in feature dataset
//     subdirectories. Read-write; writes are atomic.
//   - GeoPackage (".gpkg"): an SQLite file, read-only. Has no feature datasets.
//   - Memory workspace ("memory/<name>"): transient scratch results.
//
// Standalone "*.geojson" files outside any container are read and written like
// a directory geodatabase member. Standalone "*.shp" files are Esri shapefiles.
//
// Esri File Geodatabases (binary .gdbtable files) are recognised and rejected
// with gis.ErrUnsupportedContainer rather than read as empty.
package geodb

import (
	"fmt"

	"github.com/danieljhkim/gridprep/internal/fsops"
	"github.com/danieljhkim/gridprep/internal/gis"
)

// Store reads and writes feature classes, dispatching on the container format.
type Store struct {
	fs       fsops.FS
	suffixes []string
	gdb      *fileGDB
	gpkg     *geoPackage
	shp      *shapefile
	memory   *Memory
}

// NewStore creates a Store recognising the given container suffixes.
// Suffix ".gpkg" selects the GeoPackage backend; every other suffix is a
// directory geodatabase.
func NewStore(fs fsops.FS, suffixes []string) *Store {
	if len(suffixes) == 0 {
		suffixes = gis.DefaultContainerSuffixes
	}
	return &Store{
		fs:       fs,
		suffixes: suffixes,
		gdb:      &fileGDB{fs: fs},
		gpkg:     &geoPackage{fs: fs},
		shp:      &shapefile{fs: fs},
		memory:   NewMemory(),
	}
}

// Suffixes returns the recognised container suffixes.
func (s *Store) Suffixes() []string {
	return s.suffixes
}

// Memory returns the scratch workspace.
func (s *Store) Memory() *Memory {
	return s.memory
}

// ParseRef parses a feature class path using the store's container suffixes.
func (s *Store) ParseRef(path string) (gis.Ref, error) {
	return gis.ParseRef(path, s.suffixes)
}

// ParseWorkspace parses a workspace path using the store's container suffixes.
func (s *Store) ParseWorkspace(path string) (gis.Workspace, error) {
	return gis.ParseWorkspace(path, s.suffixes)
}

// IsGeoPackage reports whether a container path is a GeoPackage.
func IsGeoPackage(container string) bool {
	return gis.IsGeoPackage(container)
}

// ListFeatureClasses lists feature classes held directly in ws, sorted by name.
func (s *Store) ListFeatureClasses(ws gis.Workspace) ([]string, error) {
	if IsGeoPackage(ws.Container) {
		if ws.Dataset != "" {
			return nil, fmt.Errorf("%w: geopackage %s has no feature datasets", gis.ErrNotFound, ws.Container)
		}
		return s.gpkg.listFeatureClasses(ws.Container)
	}
	return s.gdb.listFeatureClasses(ws)
}

// ListDatasets lists the feature datasets of a container, sorted by name.
func (s *Store) ListDatasets(ws gis.Workspace) ([]string, error) {
	if IsGeoPackage(ws.Container) {
		if _, err := s.gpkg.listFeatureClasses(ws.Container); err != nil {
			return nil, err
		}
		return []string{}, nil
	}
	return s.gdb.listDatasets(ws)
}

// Load reads a feature class.
func (s *Store) Load(ref gis.Ref) (*gis.FeatureClass, error) {
	switch {
	case ref.Kind == gis.KindMemory:
		return s.memory.Load(ref.Name)
	case ref.Kind == gis.KindContainer && IsGeoPackage(ref.Container):
		return s.gpkg.load(ref)
	case ref.IsShapefile():
		return s.shp.load(ref)
	default:
		return s.gdb.load(ref)
	}
}

// Save writes a feature class, replacing any existing one of the same name.
func (s *Store) Save(ref gis.Ref, fc *gis.FeatureClass) error {
	switch {
	case ref.Kind == gis.KindMemory:
		s.memory.Save(ref.Name, fc)
		return nil
	case ref.Kind == gis.KindContainer && IsGeoPackage(ref.Container):
		return fmt.Errorf("%w: %s", gis.ErrReadOnly, ref.Container)
	case ref.IsShapefile():
		return s.shp.save(ref, fc)
	default:
		return s.gdb.save(ref, fc)
	}
}

// Delete removes a feature class. Missing feature classes are ignored.
func (s *Store) Delete(ref gis.Ref) error {
	switch {
	case ref.Kind == gis.KindMemory:
		s.memory.Delete(ref.Name)
		return nil
	case ref.Kind == gis.KindContainer && IsGeoPackage(ref.Container):
		return fmt.Errorf("%w: %s", gis.ErrReadOnly, ref.Container)
	case ref.IsShapefile():
		return s.shp.delete(ref)
	default:
		return s.gdb.delete(ref)
	}
}

// Exists reports whether a feature class exists.
func (s *Store) Exists(ref gis.Ref) (bool, error) {
	switch {
	case ref.Kind == gis.KindMemory:
		return s.memory.Exists(ref.Name), nil
	case ref.Kind == gis.KindContainer && IsGeoPackage(ref.Container):
		names, err := s.gpkg.listFeatureClasses(ref.Container)
		if err != nil {
			if isNotFound(err) {
				return false, nil
			}
			return false, err
		}
		for _, name := range names {
			if name == ref.Name {
				return true, nil
			}
		}
		return false, nil
	case ref.IsShapefile():
		return s.shp.exists(ref)
	default:
		return s.gdb.exists(ref)
	}
}

// ContainerExists reports whether a container exists.
func (s *Store) ContainerExists(path string) (bool, error) {
	return s.fs.Exists(path)
}

// CreateContainer creates an empty directory geodatabase if it is absent.
func (s *Store) CreateContainer(path string) error {
	if !gis.HasContainerSuffix(path, s.suffixes) {
		return fmt.Errorf("%w: %s does not end in a container suffix %v", gis.ErrUnsupportedContainer, path, s.suffixes)
	}
	if IsGeoPackage(path) {
		return fmt.Errorf("%w: cannot create geopackage %s", gis.ErrReadOnly, path)
	}
	return s.gdb.createContainer(path)
}
