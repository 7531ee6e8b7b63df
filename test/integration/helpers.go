package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/danieljhkim/gridprep/internal/clock"
	"github.com/danieljhkim/gridprep/internal/config"
	"github.com/danieljhkim/gridprep/internal/discovery"
	"github.com/danieljhkim/gridprep/internal/engine"
	"github.com/danieljhkim/gridprep/internal/fsops"
	"github.com/danieljhkim/gridprep/internal/geodb"
	"github.com/danieljhkim/gridprep/internal/gis"
	"github.com/danieljhkim/gridprep/internal/toolbox"
)

// env is a data root on disk processed by real components.
type env struct {
	cfg    *config.Config
	fs     *fsops.RealFS
	store  *geodb.Store
	tb     *toolbox.Local
	eng    *engine.Engine
	logger *zap.Logger
}

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

// setupEnv lays out:
//
//	PU/PU.shp                              two unit squares side by side
//	data/Themes/Species/species.gdb/koala  two overlapping squares
//	data/Themes/Species/species.gdb/birds/owl
//	data/Themes/Forest/                    no containers
//	data/Includes/parks.gpkg (parks)       one square outside the grid
//	data/Weights/roads.gdb/roads           one line across the grid
func setupEnv(t *testing.T) *env {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "data")

	fs := fsops.NewRealFS()
	store := geodb.NewStore(fs, nil)

	grid, err := store.ParseRef(filepath.Join(base, "PU", "PU.shp"))
	if err != nil {
		t.Fatalf("failed to parse grid path: %v", err)
	}
	savePolygons(t, store, grid, square(0, 0, 1), square(1, 0, 1))

	species := filepath.Join(root, "Themes", "Species", "species.gdb")
	createContainer(t, store, species)
	savePolygons(t, store, gis.Workspace{Container: species}.Ref("koala"), square(0.5, 0, 1), square(0.75, 0, 1))
	savePolygons(t, store, gis.Workspace{Container: species, Dataset: "birds"}.Ref("owl"), square(0.2, 0.2, 0.3))

	if err := os.MkdirAll(filepath.Join(root, "Themes", "Forest"), 0755); err != nil {
		t.Fatalf("failed to create Forest: %v", err)
	}

	if err := os.MkdirAll(filepath.Join(root, "Includes"), 0755); err != nil {
		t.Fatalf("failed to create Includes: %v", err)
	}
	writeGeoPackage(t, filepath.Join(root, "Includes", "parks.gpkg"), "parks", square(5, 0, 1))

	roads := filepath.Join(root, "Weights", "roads.gdb")
	createContainer(t, store, roads)
	if err := store.Save(gis.Workspace{Container: roads}.Ref("roads"), &gis.FeatureClass{
		GeometryType: gis.GeometryPolyline,
		Features:     []gis.Feature{{FID: 1, Geometry: orb.LineString{{0, 0.5}, {2, 0.5}}}},
	}); err != nil {
		t.Fatalf("failed to save roads: %v", err)
	}

	cfg := config.Default()
	cfg.Root = root

	e := &env{cfg: cfg, fs: fs, store: store, logger: zaptest.NewLogger(t)}
	e.tb, e.eng = e.newEngine()
	return e
}

// newEngine wires a toolbox and engine over the environment's store.
func (e *env) newEngine(opts ...toolbox.Option) (*toolbox.Local, *engine.Engine) {
	tb := toolbox.New(e.store, append([]toolbox.Option{toolbox.WithLogger(e.logger)}, opts...)...)
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	return tb, engine.New(e.fs, tb, discovery.New(e.fs, tb, e.cfg.Suffixes()), clk, e.logger)
}

func createContainer(t *testing.T, store *geodb.Store, path string) {
	t.Helper()
	if err := store.CreateContainer(path); err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
}

func savePolygons(t *testing.T, store *geodb.Store, ref gis.Ref, polys ...orb.Polygon) {
	t.Helper()
	fc := &gis.FeatureClass{GeometryType: gis.GeometryPolygon}
	for i, p := range polys {
		fc.Features = append(fc.Features, gis.Feature{FID: int64(i + 1), Geometry: p})
	}
	if err := store.Save(ref, fc); err != nil {
		t.Fatalf("failed to save %s: %v", ref, err)
	}
}

// writeGeoPackage creates a GeoPackage with one polygon table.
func writeGeoPackage(t *testing.T, path, table string, polys ...orb.Polygon) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE gpkg_contents (table_name TEXT NOT NULL PRIMARY KEY, data_type TEXT NOT NULL, identifier TEXT)`,
		`CREATE TABLE gpkg_geometry_columns (table_name TEXT NOT NULL, column_name TEXT NOT NULL, geometry_type_name TEXT NOT NULL, srs_id INTEGER NOT NULL, z TINYINT NOT NULL, m TINYINT NOT NULL)`,
		`CREATE TABLE ` + table + ` (fid INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL, geom BLOB)`,
		`INSERT INTO gpkg_contents VALUES ('` + table + `', 'features', '` + table + `')`,
		`INSERT INTO gpkg_geometry_columns VALUES ('` + table + `', 'geom', 'POLYGON', 4326, 0, 0)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to run %q: %v", stmt, err)
		}
	}
	for _, p := range polys {
		blob, err := geodb.EncodeGeometryBlob(p, 4326)
		if err != nil {
			t.Fatalf("failed to encode geometry: %v", err)
		}
		if _, err := db.Exec(`INSERT INTO `+table+` (geom) VALUES (?)`, blob); err != nil {
			t.Fatalf("failed to insert feature: %v", err)
		}
	}
}

// describe returns the description of an output feature class.
func (e *env) describe(t *testing.T, path string) *gis.Description {
	t.Helper()
	desc, err := e.tb.Describe(context.Background(), path)
	if err != nil {
		t.Fatalf("Describe(%s) error = %v", path, err)
	}
	return desc
}
