package geodb

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/danieljhkim/gridprep/internal/fsops"
	"github.com/danieljhkim/gridprep/internal/gis"
)

// geoPackage reads feature classes from an OGC GeoPackage.
type geoPackage struct {
	fs fsops.FS
}

// ErrBadGeometryBlob indicates a geometry column value that is not a
// GeoPackage binary geometry.
var ErrBadGeometryBlob = errors.New("invalid geopackage geometry blob")

func (g *geoPackage) open(path string) (*sql.DB, error) {
	// sql.Open on a missing path would create an empty database.
	exists, err := g.fs.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to check geopackage %s: %w", path, err)
	}
	if !exists {
		return nil, fmt.Errorf("geopackage %s: %w", path, gis.ErrNotFound)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geopackage %s: %w", path, err)
	}
	// query_only is per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open geopackage %s read-only: %w", path, err)
	}
	return db, nil
}

func (g *geoPackage) listFeatureClasses(path string) ([]string, error) {
	db, err := g.open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.Query(`SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature tables in %s: %w", path, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan feature table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (g *geoPackage) load(ref gis.Ref) (*gis.FeatureClass, error) {
	db, err := g.open(ref.Container)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = db.Close()
	}()

	var geomColumn, geomTypeName string
	err = db.QueryRow(
		`SELECT column_name, geometry_type_name FROM gpkg_geometry_columns WHERE table_name = ?`,
		ref.Name,
	).Scan(&geomColumn, &geomTypeName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feature class %s: %w", ref, gis.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read geometry column of %s: %w", ref, err)
	}

	pkColumn, err := primaryKey(db, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", ref, err)
	}

	rows, err := db.Query("SELECT * FROM " + quoteIdent(ref.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to read features of %s: %w", ref, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", ref, err)
	}

	fc := &gis.FeatureClass{
		Name:         ref.Name,
		GeometryType: gis.ParseGeometryType(geomTypeName),
		Features:     []gis.Feature{},
	}

	for n := int64(1); rows.Next(); n++ {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan feature of %s: %w", ref, err)
		}

		feature := gis.Feature{FID: n, Properties: map[string]any{}}
		for i, column := range columns {
			switch {
			case strings.EqualFold(column, geomColumn):
				blob, _ := values[i].([]byte)
				if blob == nil {
					continue
				}
				geom, err := decodeGeometryBlob(blob)
				if err != nil {
					return nil, fmt.Errorf("feature %d of %s: %w", n, ref, err)
				}
				feature.Geometry = geom
			case strings.EqualFold(column, pkColumn):
				if id, ok := values[i].(int64); ok {
					feature.FID = id
				}
			default:
				if b, ok := values[i].([]byte); ok {
					feature.Properties[column] = string(b)
				} else {
					feature.Properties[column] = values[i]
				}
			}
		}
		fc.Features = append(fc.Features, feature)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read features of %s: %w", ref, err)
	}

	if fc.GeometryType == gis.GeometryUnknown {
		for _, f := range fc.Features {
			if t := gis.GeometryTypeOf(f.Geometry); t != gis.GeometryUnknown {
				fc.GeometryType = t
				break
			}
		}
	}
	return fc, nil
}

// primaryKey returns the integer primary key column of a feature table, or ""
// if it has none.
func primaryKey(db *sql.DB, table string) (string, error) {
	rows, err := db.Query("PRAGMA table_info(" + quoteIdent(table) + ")")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return "", err
		}
		if pk == 1 && strings.EqualFold(colType, "INTEGER") {
			return name, nil
		}
	}
	return "", rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// decodeGeometryBlob decodes a GeoPackage binary geometry: the "GP" header,
// an optional envelope, then standard WKB.
func decodeGeometryBlob(blob []byte) (orb.Geometry, error) {
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, ErrBadGeometryBlob
	}
	flags := blob[3]
	if flags&0x20 != 0 {
		return nil, fmt.Errorf("%w: extended geometry types are not supported", ErrBadGeometryBlob)
	}

	var envelope int
	switch (flags >> 1) & 0x07 {
	case 0:
		envelope = 0
	case 1:
		envelope = 32
	case 2, 3:
		envelope = 48
	case 4:
		envelope = 64
	default:
		return nil, fmt.Errorf("%w: bad envelope indicator", ErrBadGeometryBlob)
	}

	offset := 8 + envelope
	if len(blob) < offset {
		return nil, fmt.Errorf("%w: truncated header", ErrBadGeometryBlob)
	}
	if flags&0x10 != 0 {
		return nil, nil
	}

	geom, err := wkb.Unmarshal(blob[offset:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadGeometryBlob, err)
	}
	return geom, nil
}

// EncodeGeometryBlob encodes geom as a GeoPackage binary geometry without an
// envelope, little-endian.
func EncodeGeometryBlob(geom orb.Geometry, srsID int32) ([]byte, error) {
	body, err := wkb.Marshal(geom, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	header := make([]byte, 8, 8+len(body))
	header[0], header[1] = 'G', 'P'
	header[2] = 0
	header[3] = 0x01
	binary.LittleEndian.PutUint32(header[4:], uint32(srsID))
	return append(header, body...), nil
}
