// Package overlay runs overlay analysis on feature classes using GEOS.
//
// All geometric work (intersection, union, measures) is done by GEOS through
// github.com/twpayne/go-geos. This package only pairs features, carries
// attributes across and keeps results of the right dimension.
package overlay

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/twpayne/go-geos"

	"github.com/danieljhkim/gridprep/internal/gis"
)

// layer is a feature class with its geometries converted for GEOS.
type layer struct {
	fc    *gis.FeatureClass
	geoms []*geos.Geom
}

func prepare(fc *gis.FeatureClass) (*layer, error) {
	l := &layer{
		fc:    fc,
		geoms: make([]*geos.Geom, len(fc.Features)),
	}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		g, err := toGEOS(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("%w: layer %s feature %d: %v", gis.ErrGeometry, fc.Name, f.FID, err)
		}
		l.geoms[i] = g
	}
	return l, nil
}

// Index is a prepared layer with an STR-tree over the envelopes of its
// features. Building it once lets many layers be intersected with the same
// planning unit grid without converting the grid again.
type Index struct {
	layer *layer
	tree  *geos.STRtree
}

// NewIndex prepares fc for repeated overlay.
func NewIndex(fc *gis.FeatureClass) (*Index, error) {
	var idx *Index
	err := guard("index "+fc.Name, func() error {
		l, err := prepare(fc)
		if err != nil {
			return err
		}
		tree := geos.NewSTRtree(10)
		for i, g := range l.geoms {
			if g == nil {
				continue
			}
			if err := tree.Insert(g, i); err != nil {
				return fmt.Errorf("%w: layer %s feature %d: %v", gis.ErrGeometry, fc.Name, fc.Features[i].FID, err)
			}
		}
		idx = &Index{layer: l, tree: tree}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// FeatureClass returns the indexed feature class.
func (x *Index) FeatureClass() *gis.FeatureClass {
	return x.layer.fc
}

// candidates returns the features whose envelope meets the envelope of g,
// in feature order.
func (x *Index) candidates(g *geos.Geom) []int {
	var hits []int
	x.tree.Query(g, func(value any) {
		hits = append(hits, value.(int))
	})
	sort.Ints(hits)
	return hits
}

func toGEOS(g orb.Geometry) (*geos.Geom, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, err
	}
	return geos.NewGeomFromWKB(data)
}

func fromGEOS(g *geos.Geom) (orb.Geometry, error) {
	return wkb.Unmarshal(g.ToWKB())
}

// guard turns a GEOS panic into an error wrapping gis.ErrGeometry.
func guard(what string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", gis.ErrGeometry, what, r)
		}
	}()
	return fn()
}

// leafDimension returns the dimension of a single-part GEOS geometry, or -1
// for collections.
func leafDimension(g *geos.Geom) int {
	switch g.TypeID() {
	case geos.TypeIDPoint:
		return 0
	case geos.TypeIDLineString, geos.TypeIDLinearRing:
		return 1
	case geos.TypeIDPolygon:
		return 2
	default:
		return -1
	}
}

// keepDimension extracts the parts of g with the given dimension and a
// positive measure in it. It returns nil when nothing remains: two polygons
// that only touch along an edge yield no polygon part.
func keepDimension(g *geos.Geom, dim int) (orb.Geometry, error) {
	var parts []orb.Geometry
	var walk func(*geos.Geom) error
	walk = func(g *geos.Geom) error {
		if g == nil || g.IsEmpty() {
			return nil
		}
		leaf := leafDimension(g)
		if leaf < 0 {
			for i := 0; i < g.NumGeometries(); i++ {
				if err := walk(g.Geometry(i)); err != nil {
					return err
				}
			}
			return nil
		}
		if leaf != dim {
			return nil
		}
		switch dim {
		case 2:
			if g.Area() <= 0 {
				return nil
			}
		case 1:
			if g.Length() <= 0 {
				return nil
			}
		}
		part, err := fromGEOS(g)
		if err != nil {
			return err
		}
		parts = append(parts, part)
		return nil
	}
	if err := walk(g); err != nil {
		return nil, err
	}
	return assemble(parts, dim), nil
}

// assemble merges single-part geometries into one geometry of dimension dim.
func assemble(parts []orb.Geometry, dim int) orb.Geometry {
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	switch dim {
	case 0:
		mp := make(orb.MultiPoint, 0, len(parts))
		for _, p := range parts {
			if pt, ok := p.(orb.Point); ok {
				mp = append(mp, pt)
			}
		}
		return mp
	case 1:
		ml := make(orb.MultiLineString, 0, len(parts))
		for _, p := range parts {
			if ls, ok := p.(orb.LineString); ok {
				ml = append(ml, ls)
			}
		}
		return ml
	default:
		mp := make(orb.MultiPolygon, 0, len(parts))
		for _, p := range parts {
			if poly, ok := p.(orb.Polygon); ok {
				mp = append(mp, poly)
			}
		}
		return mp
	}
}

// fidField is the attribute carrying the source FID of a layer.
func fidField(name string) string {
	return "FID_" + name
}

// putUnique sets key in props, appending _1, _2, ... if it is taken.
func putUnique(props map[string]any, key string, value any) {
	candidate := key
	for n := 1; ; n++ {
		if _, taken := props[candidate]; !taken {
			props[candidate] = value
			return
		}
		candidate = fmt.Sprintf("%s_%d", key, n)
	}
}

func joinAttributes(props map[string]any, layerName string, f gis.Feature, output gis.OutputType) {
	putUnique(props, fidField(layerName), f.FID)
	if output == gis.OutputOnlyFID {
		return
	}
	for k, v := range f.Properties {
		putUnique(props, k, v)
	}
}

func resultDimension(a, b *gis.FeatureClass) (int, error) {
	da, db := a.GeometryType.Dimension(), b.GeometryType.Dimension()
	switch {
	case da < 0 && a.Len() > 0:
		return -1, fmt.Errorf("%w: layer %s has unknown geometry type", gis.ErrGeometry, a.Name)
	case db < 0 && b.Len() > 0:
		return -1, fmt.Errorf("%w: layer %s has unknown geometry type", gis.ErrGeometry, b.Name)
	case da < 0:
		return db, nil
	case db < 0:
		return da, nil
	}
	return min(da, db), nil
}

// Intersect intersects every feature of a with every feature of b. The result
// has the lower dimension of the two inputs; each output feature carries the
// FIDs (and, with OutputAll, attributes) of the pair it came from.
func Intersect(a, b *gis.FeatureClass, name string, output gis.OutputType) (*gis.FeatureClass, error) {
	if _, err := resultDimension(a, b); err != nil {
		return nil, err
	}
	idx, err := NewIndex(a)
	if err != nil {
		return nil, err
	}
	return IntersectIndex(idx, b, name, output)
}

// IntersectIndex is Intersect with the first input already indexed. Output
// features are ordered by the indexed feature, then by the feature of b.
func IntersectIndex(idx *Index, b *gis.FeatureClass, name string, output gis.OutputType) (*gis.FeatureClass, error) {
	a := idx.FeatureClass()
	dim, err := resultDimension(a, b)
	if err != nil {
		return nil, err
	}
	result := &gis.FeatureClass{
		Name:         name,
		GeometryType: gis.GeometryTypeForDimension(dim),
		Features:     []gis.Feature{},
	}
	if a.Len() == 0 || b.Len() == 0 {
		return result, nil
	}

	err = guard(fmt.Sprintf("intersect %s with %s", a.Name, b.Name), func() error {
		lb, err := prepare(b)
		if err != nil {
			return err
		}

		// pairs[i] lists the features of b whose envelope meets feature i.
		pairs := make([][]int, len(idx.layer.geoms))
		for j, gb := range lb.geoms {
			if gb == nil {
				continue
			}
			for _, i := range idx.candidates(gb) {
				pairs[i] = append(pairs[i], j)
			}
		}

		for i, js := range pairs {
			ga := idx.layer.geoms[i]
			for _, j := range js {
				gb := lb.geoms[j]
				if !ga.Intersects(gb) {
					continue
				}
				geom, err := keepDimension(ga.Intersection(gb), dim)
				if err != nil {
					return err
				}
				if geom == nil {
					continue
				}
				props := make(map[string]any)
				joinAttributes(props, a.Name, a.Features[i], output)
				joinAttributes(props, b.Name, b.Features[j], output)
				result.Features = append(result.Features, gis.Feature{
					FID:        int64(len(result.Features) + 1),
					Geometry:   geom,
					Properties: props,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SelfIntersect finds the overlaps between features of a single layer. Each
// overlapping pair (i < j) yields one record; pairs that only touch at a
// lower dimension do not count.
func SelfIntersect(fc *gis.FeatureClass, name string, output gis.OutputType) (*gis.FeatureClass, error) {
	dim := fc.GeometryType.Dimension()
	if dim < 0 && fc.Len() > 0 {
		return nil, fmt.Errorf("%w: layer %s has unknown geometry type", gis.ErrGeometry, fc.Name)
	}
	result := &gis.FeatureClass{
		Name:         name,
		GeometryType: fc.GeometryType,
		Features:     []gis.Feature{},
	}
	if fc.Len() < 2 {
		return result, nil
	}

	idx, err := NewIndex(fc)
	if err != nil {
		return nil, err
	}
	geoms := idx.layer.geoms

	err = guard("self-intersect "+fc.Name, func() error {
		for i, gi := range geoms {
			if gi == nil {
				continue
			}
			for _, j := range idx.candidates(gi) {
				if j <= i {
					continue
				}
				if !gi.Intersects(geoms[j]) {
					continue
				}
				geom, err := keepDimension(gi.Intersection(geoms[j]), dim)
				if err != nil {
					return err
				}
				if geom == nil {
					continue
				}
				props := make(map[string]any)
				joinAttributes(props, fc.Name, fc.Features[i], output)
				joinAttributes(props, fc.Name, fc.Features[j], output)
				result.Features = append(result.Features, gis.Feature{
					FID:        int64(len(result.Features) + 1),
					Geometry:   geom,
					Properties: props,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Dissolve unions all features of a line or polygon layer into one feature
// without attributes. Point layers are returned unchanged.
func Dissolve(fc *gis.FeatureClass, name string) (*gis.FeatureClass, error) {
	dim := fc.GeometryType.Dimension()
	result := &gis.FeatureClass{
		Name:         name,
		GeometryType: fc.GeometryType,
		Features:     []gis.Feature{},
	}
	if dim == 0 || fc.Len() == 0 {
		result.Features = append(result.Features, fc.Features...)
		return result, nil
	}
	if dim < 0 {
		return nil, fmt.Errorf("%w: layer %s has unknown geometry type", gis.ErrGeometry, fc.Name)
	}

	err := guard("dissolve "+fc.Name, func() error {
		l, err := prepare(fc)
		if err != nil {
			return err
		}
		var merged *geos.Geom
		for _, g := range l.geoms {
			if g == nil {
				continue
			}
			if merged == nil {
				merged = g
				continue
			}
			merged = merged.Union(g)
		}
		if merged == nil {
			return nil
		}
		geom, err := keepDimension(merged, dim)
		if err != nil {
			return err
		}
		if geom != nil {
			result.Features = append(result.Features, gis.Feature{
				FID:        1,
				Geometry:   geom,
				Properties: map[string]any{},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
