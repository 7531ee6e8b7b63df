package geodb

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/danieljhkim/gridprep/internal/fsops"
	"github.com/danieljhkim/gridprep/internal/gis"
)

// Foreign members written at the top level of every feature class file.
const (
	memberName         = "name"
	memberGeometryType = "geometryType"
)

// esriMarker is the file at the root of every Esri File Geodatabase.
const esriMarker = "gdb"

// fileGDB is a directory geodatabase: <container>/<fc>.geojson and
// <container>/<dataset>/<fc>.geojson.
type fileGDB struct {
	fs fsops.FS
}

// isEsriLayout reports whether directory entries belong to an Esri File
// Geodatabase, whose tables are binary .gdbtable files.
func isEsriLayout(entries []os.DirEntry) bool {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if name == esriMarker || strings.HasSuffix(name, ".gdbtable") {
			return true
		}
	}
	return false
}

func esriError(container string) error {
	return fmt.Errorf("%w: %s is an Esri File Geodatabase; export its feature classes to GeoJSON, GeoPackage or shapefile first", gis.ErrUnsupportedContainer, container)
}

// checkLayout rejects an Esri File Geodatabase container. A missing
// container passes; callers report it themselves.
func (g *fileGDB) checkLayout(container string) error {
	entries, err := g.fs.ReadDir(container)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to list container %s: %w", container, err)
	}
	if isEsriLayout(entries) {
		return esriError(container)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gis.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}

// featureFile returns the file backing a feature class.
func featureFile(ref gis.Ref) string {
	if ref.Kind == gis.KindStandalone {
		return ref.Path()
	}
	return ref.Path() + gis.StandaloneExt
}

func (g *fileGDB) requireDir(path string) error {
	isDir, err := g.fs.IsDir(path)
	if err != nil {
		return fmt.Errorf("failed to stat workspace %s: %w", path, err)
	}
	if !isDir {
		return fmt.Errorf("workspace %s: %w", path, gis.ErrNotFound)
	}
	return nil
}

func (g *fileGDB) listFeatureClasses(ws gis.Workspace) ([]string, error) {
	dir := ws.Path()
	if err := g.requireDir(dir); err != nil {
		return nil, err
	}

	entries, err := g.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace %s: %w", dir, err)
	}
	if ws.Dataset == "" && isEsriLayout(entries) {
		return nil, esriError(dir)
	}

	names := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if stem, ok := strings.CutSuffix(name, gis.StandaloneExt); ok && stem != "" {
			names = append(names, stem)
		}
	}
	return names, nil
}

func (g *fileGDB) listDatasets(ws gis.Workspace) ([]string, error) {
	if err := g.requireDir(ws.Path()); err != nil {
		return nil, err
	}
	// Feature datasets do not nest.
	if ws.Dataset != "" {
		return []string{}, nil
	}

	entries, err := g.fs.ReadDir(ws.Container)
	if err != nil {
		return nil, fmt.Errorf("failed to list container %s: %w", ws.Container, err)
	}
	if isEsriLayout(entries) {
		return nil, esriError(ws.Container)
	}

	datasets := []string{}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			datasets = append(datasets, entry.Name())
		}
	}
	return datasets, nil
}

func (g *fileGDB) load(ref gis.Ref) (*gis.FeatureClass, error) {
	if ref.Kind == gis.KindContainer {
		if err := g.checkLayout(ref.Container); err != nil {
			return nil, err
		}
	}
	path := featureFile(ref)
	data, err := g.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("feature class %s: %w", ref, gis.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read feature class %s: %w", ref, err)
	}

	fc, err := decodeFeatureCollection(ref.Name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode feature class %s: %w", ref, err)
	}
	return fc, nil
}

func (g *fileGDB) save(ref gis.Ref, fc *gis.FeatureClass) error {
	if err := g.fs.ValidateIdentifier(ref.Name); err != nil {
		return fmt.Errorf("invalid feature class name: %w", err)
	}
	if ref.Dataset != "" {
		if err := g.fs.ValidateIdentifier(ref.Dataset); err != nil {
			return fmt.Errorf("invalid dataset name: %w", err)
		}
	}
	if ref.Kind == gis.KindContainer {
		if err := g.requireDir(ref.Container); err != nil {
			return err
		}
		if err := g.checkLayout(ref.Container); err != nil {
			return err
		}
	}

	data, err := encodeFeatureCollection(ref.Name, fc)
	if err != nil {
		return fmt.Errorf("failed to encode feature class %s: %w", ref, err)
	}
	if err := g.fs.AtomicWrite(featureFile(ref), data, 0644); err != nil {
		return fmt.Errorf("failed to write feature class %s: %w", ref, err)
	}
	return nil
}

func (g *fileGDB) delete(ref gis.Ref) error {
	path := featureFile(ref)
	exists, err := g.fs.Exists(path)
	if err != nil {
		return fmt.Errorf("failed to check feature class %s: %w", ref, err)
	}
	if !exists {
		return nil
	}
	if err := g.fs.Remove(path); err != nil {
		return fmt.Errorf("failed to delete feature class %s: %w", ref, err)
	}
	return nil
}

func (g *fileGDB) exists(ref gis.Ref) (bool, error) {
	return g.fs.Exists(featureFile(ref))
}

func (g *fileGDB) createContainer(path string) error {
	exists, err := g.fs.Exists(path)
	if err != nil {
		return fmt.Errorf("failed to check container %s: %w", path, err)
	}
	if exists {
		isDir, err := g.fs.IsDir(path)
		if err != nil {
			return fmt.Errorf("failed to stat container %s: %w", path, err)
		}
		if !isDir {
			return fmt.Errorf("%w: %s exists and is not a directory", gis.ErrUnsupportedContainer, path)
		}
		return g.checkLayout(path)
	}
	if err := g.fs.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create container %s: %w", path, err)
	}
	return nil
}

func decodeFeatureCollection(name string, data []byte) (*gis.FeatureClass, error) {
	collection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	fc := &gis.FeatureClass{
		Name:         name,
		GeometryType: gis.GeometryUnknown,
		Features:     make([]gis.Feature, 0, len(collection.Features)),
	}
	if declared, ok := collection.ExtraMembers[memberGeometryType].(string); ok {
		fc.GeometryType = gis.ParseGeometryType(declared)
	}

	for i, f := range collection.Features {
		fid := int64(i + 1)
		switch id := f.ID.(type) {
		case float64:
			fid = int64(id)
		case int64:
			fid = id
		case int:
			fid = int64(id)
		}

		props := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}

		fc.Features = append(fc.Features, gis.Feature{
			FID:        fid,
			Geometry:   f.Geometry,
			Properties: props,
		})
		if fc.GeometryType == gis.GeometryUnknown {
			fc.GeometryType = gis.GeometryTypeOf(f.Geometry)
		}
	}
	return fc, nil
}

func encodeFeatureCollection(name string, fc *gis.FeatureClass) ([]byte, error) {
	collection := geojson.NewFeatureCollection()
	collection.ExtraMembers = geojson.Properties{
		memberName:         name,
		memberGeometryType: string(fc.GeometryType),
	}

	for _, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature %d has no geometry", f.FID)
		}
		feature := geojson.NewFeature(f.Geometry)
		feature.ID = f.FID
		for k, v := range f.Properties {
			feature.Properties[k] = v
		}
		collection.Append(feature)
	}
	return collection.MarshalJSON()
}
