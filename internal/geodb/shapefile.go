package geodb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/danieljhkim/gridprep/internal/fsops"
	"github.com/danieljhkim/gridprep/internal/gis"
)

// Shapefile attribute limits imposed by the dBASE format.
const (
	dbfNameLength   = 10
	dbfStringLength = 254
	idField         = "Id"
)

// sidecarExts are the files that make up one shapefile besides the .shp.
var sidecarExts = []string{".shx", ".dbf", ".prj", ".cpg", ".sbn", ".sbx"}

// shapefile reads and writes standalone Esri shapefiles.
type shapefile struct {
	fs fsops.FS
}

func (s *shapefile) exists(ref gis.Ref) (bool, error) {
	return s.fs.Exists(ref.Path())
}

func (s *shapefile) load(ref gis.Ref) (*gis.FeatureClass, error) {
	path := ref.Path()
	exists, err := s.fs.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to check shapefile %s: %w", path, err)
	}
	if !exists {
		return nil, fmt.Errorf("feature class %s: %w", ref, gis.ErrNotFound)
	}

	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}
	defer r.Close()

	fc := &gis.FeatureClass{
		Name:         ref.Name,
		GeometryType: shapeGeometryType(r.GeometryType),
		Features:     []gis.Feature{},
	}
	fields := r.Fields()

	for r.Next() {
		n, shape := r.Shape()
		geom, err := shapeToOrb(shape)
		if err != nil {
			return nil, fmt.Errorf("failed to decode shapefile %s record %d: %w", path, n, err)
		}
		// Null shapes carry no geometry to overlay.
		if geom == nil {
			continue
		}

		props := make(map[string]any, len(fields))
		for i, field := range fields {
			props[field.String()] = attributeValue(field, r.ReadAttribute(n, i))
		}
		fc.Features = append(fc.Features, gis.Feature{
			FID:        int64(n),
			Geometry:   geom,
			Properties: props,
		})
		if fc.GeometryType == gis.GeometryUnknown {
			fc.GeometryType = gis.GeometryTypeOf(geom)
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile %s: %w", path, err)
	}
	return fc, nil
}

func (s *shapefile) save(ref gis.Ref, fc *gis.FeatureClass) error {
	if err := s.fs.ValidateIdentifier(ref.Name); err != nil {
		return fmt.Errorf("invalid feature class name: %w", err)
	}
	if err := s.fs.MkdirAll(ref.Container, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ref.Container, err)
	}

	shapeType, err := writerShapeType(fc)
	if err != nil {
		return fmt.Errorf("failed to write shapefile %s: %w", ref, err)
	}
	shapes := make([]shp.Shape, len(fc.Features))
	for i, f := range fc.Features {
		shape, err := orbToShape(f.Geometry, shapeType)
		if err != nil {
			return fmt.Errorf("failed to encode feature %d of %s: %w", f.FID, ref, err)
		}
		shapes[i] = shape
	}

	if err := writeShapefile(ref, shapeType, shapes, fc); err != nil {
		return err
	}
	return s.fixDbfName(ref)
}

func writeShapefile(ref gis.Ref, shapeType shp.ShapeType, shapes []shp.Shape, fc *gis.FeatureClass) error {
	w, err := shp.Create(ref.Path(), shapeType)
	if err != nil {
		return fmt.Errorf("failed to create shapefile %s: %w", ref, err)
	}
	defer w.Close()

	columns := attributeColumns(fc)
	fields := make([]shp.Field, len(columns))
	for i, col := range columns {
		fields[i] = col.field
	}
	if err := w.SetFields(fields); err != nil {
		return fmt.Errorf("failed to write attribute table of %s: %w", ref, err)
	}

	for i, shape := range shapes {
		row := int(w.Write(shape))
		f := fc.Features[i]
		for j, col := range columns {
			value := col.value(f)
			if value == nil {
				continue
			}
			if err := w.WriteAttribute(row, j, value); err != nil {
				return fmt.Errorf("failed to write attribute %s of feature %d: %w", col.key, f.FID, err)
			}
		}
	}
	return nil
}

// fixDbfName moves the attribute table next to the .shp. go-shp v0.1.1
// writes it to "<base>dbf" without the dot, where no reader looks for it.
func (s *shapefile) fixDbfName(ref gis.Ref) error {
	base := strings.TrimSuffix(ref.Path(), ref.FileExt())
	misnamed := base + "dbf"
	exists, err := s.fs.Exists(misnamed)
	if err != nil || !exists {
		return err
	}
	if err := s.fs.Rename(misnamed, base+".dbf"); err != nil {
		return fmt.Errorf("failed to move attribute table of %s: %w", ref, err)
	}
	return nil
}

func (s *shapefile) delete(ref gis.Ref) error {
	base := strings.TrimSuffix(ref.Path(), ref.FileExt())
	for _, ext := range append([]string{ref.FileExt()}, sidecarExts...) {
		path := base + ext
		exists, err := s.fs.Exists(path)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", path, err)
		}
		if !exists {
			continue
		}
		if err := s.fs.Remove(path); err != nil {
			return fmt.Errorf("failed to delete %s: %w", path, err)
		}
	}
	return nil
}

func shapeGeometryType(t shp.ShapeType) gis.GeometryType {
	switch t {
	case shp.POINT, shp.POINTZ, shp.POINTM, shp.MULTIPOINT, shp.MULTIPOINTZ, shp.MULTIPOINTM:
		return gis.GeometryPoint
	case shp.POLYLINE, shp.POLYLINEZ, shp.POLYLINEM:
		return gis.GeometryPolyline
	case shp.POLYGON, shp.POLYGONZ, shp.POLYGONM:
		return gis.GeometryPolygon
	default:
		return gis.GeometryUnknown
	}
}

// shapeToOrb converts a shapefile record. Z and M values are dropped.
func shapeToOrb(shape shp.Shape) (orb.Geometry, error) {
	switch s := shape.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return orb.Point{s.X, s.Y}, nil
	case *shp.PointZ:
		return orb.Point{s.X, s.Y}, nil
	case *shp.PointM:
		return orb.Point{s.X, s.Y}, nil
	case *shp.MultiPoint:
		return orb.MultiPoint(toOrbPoints(s.Points)), nil
	case *shp.PolyLine:
		return lines(s.Parts, s.Points), nil
	case *shp.PolyLineZ:
		return lines(s.Parts, s.Points), nil
	case *shp.PolyLineM:
		return lines(s.Parts, s.Points), nil
	case *shp.Polygon:
		return polygons(s.Parts, s.Points), nil
	case *shp.PolygonZ:
		return polygons(s.Parts, s.Points), nil
	case *shp.PolygonM:
		return polygons(s.Parts, s.Points), nil
	default:
		return nil, fmt.Errorf("%w: unsupported shape %T", gis.ErrGeometry, shape)
	}
}

func toOrbPoints(points []shp.Point) []orb.Point {
	out := make([]orb.Point, len(points))
	for i, p := range points {
		out[i] = orb.Point{p.X, p.Y}
	}
	return out
}

// splitParts cuts a point array at the part start offsets.
func splitParts(parts []int32, points []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if int(start) >= end || end > len(points) {
			continue
		}
		out = append(out, toOrbPoints(points[start:end]))
	}
	return out
}

func lines(parts []int32, points []shp.Point) orb.Geometry {
	split := splitParts(parts, points)
	switch len(split) {
	case 0:
		return nil
	case 1:
		return orb.LineString(split[0])
	}
	ml := make(orb.MultiLineString, len(split))
	for i, part := range split {
		ml[i] = orb.LineString(part)
	}
	return ml
}

// polygons groups rings into polygons: a clockwise ring starts a polygon and
// the counter-clockwise rings after it are its holes.
func polygons(parts []int32, points []shp.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for _, part := range splitParts(parts, points) {
		ring := orb.Ring(part)
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			mp[last] = append(mp[last], ring)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}
	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}

func writerShapeType(fc *gis.FeatureClass) (shp.ShapeType, error) {
	switch fc.GeometryType {
	case gis.GeometryPoint:
		for _, f := range fc.Features {
			if _, ok := f.Geometry.(orb.MultiPoint); ok {
				return shp.MULTIPOINT, nil
			}
		}
		return shp.POINT, nil
	case gis.GeometryPolyline:
		return shp.POLYLINE, nil
	case gis.GeometryPolygon:
		return shp.POLYGON, nil
	}
	if fc.Len() == 0 {
		return shp.NULL, nil
	}
	return shp.NULL, fmt.Errorf("%w: feature class %s has unknown geometry type", gis.ErrGeometry, fc.Name)
}

func toShpPoints(points []orb.Point) []shp.Point {
	out := make([]shp.Point, len(points))
	for i, p := range points {
		out[i] = shp.Point{X: p[0], Y: p[1]}
	}
	return out
}

// orientRing returns the ring in the given orientation without touching the input.
func orientRing(r orb.Ring, want orb.Orientation) []shp.Point {
	if r.Orientation() == want {
		return toShpPoints(r)
	}
	reversed := r.Clone()
	reversed.Reverse()
	return toShpPoints(reversed)
}

func polygonRings(p orb.Polygon) [][]shp.Point {
	rings := make([][]shp.Point, 0, len(p))
	for i, ring := range p {
		// Outer rings are clockwise, holes counter-clockwise.
		want := orb.CCW
		if i == 0 {
			want = orb.CW
		}
		rings = append(rings, orientRing(ring, want))
	}
	return rings
}

func orbToShape(g orb.Geometry, shapeType shp.ShapeType) (shp.Shape, error) {
	switch g := g.(type) {
	case orb.Point:
		if shapeType == shp.MULTIPOINT {
			pts := toShpPoints([]orb.Point{g})
			return &shp.MultiPoint{Box: shp.BBoxFromPoints(pts), NumPoints: 1, Points: pts}, nil
		}
		return &shp.Point{X: g[0], Y: g[1]}, nil
	case orb.MultiPoint:
		pts := toShpPoints(g)
		return &shp.MultiPoint{Box: shp.BBoxFromPoints(pts), NumPoints: int32(len(pts)), Points: pts}, nil
	case orb.LineString:
		return shp.NewPolyLine([][]shp.Point{toShpPoints(g)}), nil
	case orb.MultiLineString:
		parts := make([][]shp.Point, len(g))
		for i, ls := range g {
			parts[i] = toShpPoints(ls)
		}
		return shp.NewPolyLine(parts), nil
	case orb.Polygon:
		poly := shp.Polygon(*shp.NewPolyLine(polygonRings(g)))
		return &poly, nil
	case orb.MultiPolygon:
		var rings [][]shp.Point
		for _, p := range g {
			rings = append(rings, polygonRings(p)...)
		}
		poly := shp.Polygon(*shp.NewPolyLine(rings))
		return &poly, nil
	default:
		return nil, fmt.Errorf("%w: cannot store %T in a shapefile", gis.ErrGeometry, g)
	}
}

// column is one dBASE attribute of a shapefile being written.
type column struct {
	key   string
	field shp.Field
	value func(gis.Feature) any
}

// attributeColumns derives the attribute table: an Id column holding the FID,
// then one column per property key in name order. Numeric properties become
// float columns, everything else text. Keys are cut to the dBASE name limit;
// a key that collides after cutting is dropped.
func attributeColumns(fc *gis.FeatureClass) []column {
	columns := []column{{
		key:   idField,
		field: shp.NumberField(idField, 10),
		value: func(f gis.Feature) any {
			if id, ok := toInt(f.Properties[idField]); ok {
				return id
			}
			return int(f.FID)
		},
	}}
	taken := map[string]bool{strings.ToLower(idField): true}

	keySet := make(map[string]bool)
	for _, f := range fc.Features {
		for k := range f.Properties {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name := key
		if len(name) > dbfNameLength {
			name = name[:dbfNameLength]
		}
		if taken[strings.ToLower(name)] {
			continue
		}
		taken[strings.ToLower(name)] = true

		numeric, width := true, 1
		for _, f := range fc.Features {
			v, ok := f.Properties[key]
			if !ok || v == nil {
				continue
			}
			if _, isNum := toFloat(v); !isNum {
				numeric = false
			}
			width = max(width, len(fmt.Sprint(v)))
		}

		if numeric {
			columns = append(columns, column{
				key:   key,
				field: shp.FloatField(name, 24, 8),
				value: func(f gis.Feature) any {
					if v, ok := toFloat(f.Properties[key]); ok {
						return v
					}
					return nil
				},
			})
			continue
		}
		columns = append(columns, column{
			key:   key,
			field: shp.StringField(name, uint8(min(width, dbfStringLength))),
			value: func(f gis.Feature) any {
				v, ok := f.Properties[key]
				if !ok || v == nil {
					return nil
				}
				text := fmt.Sprint(v)
				if len(text) > dbfStringLength {
					text = text[:dbfStringLength]
				}
				return text
			},
		})
	}
	return columns
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// attributeValue converts a dBASE cell. Numeric columns decode to float64
// like GeoJSON numbers; blank cells decode to nil.
func attributeValue(field shp.Field, raw string) any {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if raw == "" {
		return nil
	}
	switch field.Fieldtype {
	case 'N', 'F':
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return raw
}
