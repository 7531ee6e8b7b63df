package gis

import (
	"strings"

	"github.com/paulmach/orb"
)

// GeometryType is the shape type shared by every feature of a feature class.
type GeometryType string

const (
	GeometryUnknown  GeometryType = "Unknown"
	GeometryPoint    GeometryType = "Point"
	GeometryPolyline GeometryType = "Polyline"
	GeometryPolygon  GeometryType = "Polygon"
)

// Dimension returns 0 for points, 1 for lines, 2 for polygons and -1 otherwise.
func (g GeometryType) Dimension() int {
	switch g {
	case GeometryPoint:
		return 0
	case GeometryPolyline:
		return 1
	case GeometryPolygon:
		return 2
	default:
		return -1
	}
}

// GeometryTypeForDimension is the inverse of Dimension.
func GeometryTypeForDimension(dim int) GeometryType {
	switch dim {
	case 0:
		return GeometryPoint
	case 1:
		return GeometryPolyline
	case 2:
		return GeometryPolygon
	default:
		return GeometryUnknown
	}
}

// ParseGeometryType maps GeoJSON, OGC and Esri geometry type names onto a
// GeometryType. Multi-part variants map onto their single-part type.
func ParseGeometryType(name string) GeometryType {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "POINT", "MULTIPOINT":
		return GeometryPoint
	case "LINESTRING", "MULTILINESTRING", "POLYLINE", "LINE":
		return GeometryPolyline
	case "POLYGON", "MULTIPOLYGON":
		return GeometryPolygon
	default:
		return GeometryUnknown
	}
}

// GeometryTypeOf returns the GeometryType of an orb geometry.
func GeometryTypeOf(g orb.Geometry) GeometryType {
	if g == nil {
		return GeometryUnknown
	}
	if _, ok := g.(orb.Collection); ok {
		return GeometryUnknown
	}
	return GeometryTypeForDimension(g.Dimensions())
}

// Feature is one record of a feature class.
type Feature struct {
	FID        int64
	Geometry   orb.Geometry
	Properties map[string]any
}

// FeatureClass is a named set of features sharing one geometry type.
type FeatureClass struct {
	Name         string
	GeometryType GeometryType
	Features     []Feature
}

// Len returns the number of features.
func (fc *FeatureClass) Len() int {
	return len(fc.Features)
}

// Description is what Describe reports about a feature class.
type Description struct {
	Name         string       `json:"name"`
	Path         string       `json:"path"`
	GeometryType GeometryType `json:"geometryType"`
	FeatureCount int          `json:"featureCount"`
}

// OutputType selects which attributes an intersect writes.
type OutputType int

const (
	// OutputAll carries FIDs and all attributes of every input.
	OutputAll OutputType = iota

	// OutputOnlyFID carries only the FIDs of the contributing features.
	OutputOnlyFID
)

// IntersectOptions configures Engine.Intersect.
type IntersectOptions struct {
	Output OutputType
}
