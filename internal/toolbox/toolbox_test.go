package toolbox

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/danieljhkim/gridprep/internal/fsops"
	"github.com/danieljhkim/gridprep/internal/geodb"
	"github.com/danieljhkim/gridprep/internal/gis"
)

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

type fixture struct {
	ctx    context.Context
	store  *geodb.Store
	tb     *Local
	grid   string
	layer  string
	output string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	store := geodb.NewStore(fsops.NewRealFS(), nil)

	gridRef, err := store.ParseRef(filepath.Join(dir, "PU", "PU.geojson"))
	require.NoError(t, err)
	require.NoError(t, store.Save(gridRef, &gis.FeatureClass{
		GeometryType: gis.GeometryPolygon,
		Features: []gis.Feature{
			{FID: 1, Geometry: square(0, 0, 1)},
			{FID: 2, Geometry: square(1, 0, 1)},
		},
	}))

	container := filepath.Join(dir, "Themes", "Species", "species.gdb")
	require.NoError(t, store.CreateContainer(container))
	layerRef := gis.Workspace{Container: container}.Ref("a")
	require.NoError(t, store.Save(layerRef, &gis.FeatureClass{
		GeometryType: gis.GeometryPolygon,
		Features: []gis.Feature{
			{FID: 1, Geometry: square(0.5, 0, 1)},
			{FID: 2, Geometry: square(0.75, 0, 1)},
		},
	}))

	return &fixture{
		ctx:    context.Background(),
		store:  store,
		tb:     New(store, opts...),
		grid:   gridRef.Path(),
		layer:  layerRef.Path(),
		output: filepath.Join(dir, "Intersections.gdb"),
	}
}

func TestLocal_IntersectWritesOutput(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tb.CreateContainer(f.ctx, f.output))

	out := filepath.Join(f.output, "T_a")
	require.NoError(t, f.tb.Intersect(f.ctx, []string{f.grid, f.layer}, out, gis.IntersectOptions{}))

	desc, err := f.tb.Describe(f.ctx, out)
	require.NoError(t, err)
	assert.Equal(t, "T_a", desc.Name)
	assert.Equal(t, gis.GeometryPolygon, desc.GeometryType)
	assert.Equal(t, 4, desc.FeatureCount)

	// Overwrite is on by default, so a second run replaces the output.
	require.NoError(t, f.tb.Intersect(f.ctx, []string{f.grid, f.layer}, out, gis.IntersectOptions{}))
	count, err := f.tb.GetCount(f.ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	names, err := f.tb.ListFeatureClasses(f.ctx, gis.Workspace{Container: f.output})
	require.NoError(t, err)
	assert.Equal(t, []string{"T_a"}, names)
}

func TestLocal_IntersectIndexesGridOnce(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	f := newFixture(t, WithLogger(zap.New(core)))
	require.NoError(t, f.tb.CreateContainer(f.ctx, f.output))

	second := gis.Workspace{Container: filepath.Dir(f.layer)}.Ref("b")
	require.NoError(t, f.store.Save(second, &gis.FeatureClass{
		GeometryType: gis.GeometryPolygon,
		Features:     []gis.Feature{{FID: 1, Geometry: square(1.25, 0.25, 0.5)}},
	}))

	require.NoError(t, f.tb.Intersect(f.ctx, []string{f.grid, f.layer}, filepath.Join(f.output, "T_a"), gis.IntersectOptions{}))
	require.NoError(t, f.tb.Intersect(f.ctx, []string{f.grid, second.Path()}, filepath.Join(f.output, "T_b"), gis.IntersectOptions{}))
	assert.Equal(t, 1, logs.FilterMessage("indexed overlay input").Len())

	count, err := f.tb.GetCount(f.ctx, filepath.Join(f.output, "T_b"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Deleting the grid drops its index, so the next run sees it is gone.
	require.NoError(t, f.tb.Delete(f.ctx, f.grid))
	err = f.tb.Intersect(f.ctx, []string{f.grid, f.layer}, filepath.Join(f.output, "T_c"), gis.IntersectOptions{})
	assert.ErrorIs(t, err, gis.ErrNotFound)
}

func TestLocal_NoOverwrite(t *testing.T) {
	f := newFixture(t, WithOverwrite(false))
	require.NoError(t, f.tb.CreateContainer(f.ctx, f.output))
	assert.False(t, f.tb.Overwrite())

	out := filepath.Join(f.output, "T_a")
	require.NoError(t, f.tb.Intersect(f.ctx, []string{f.grid, f.layer}, out, gis.IntersectOptions{}))
	err := f.tb.Intersect(f.ctx, []string{f.grid, f.layer}, out, gis.IntersectOptions{})
	assert.ErrorIs(t, err, gis.ErrOutputExists)
}

func TestLocal_SelfIntersectCountDelete(t *testing.T) {
	f := newFixture(t)
	scratch := "memory/intersects"

	require.NoError(t, f.tb.Intersect(f.ctx, []string{f.layer}, scratch, gis.IntersectOptions{Output: gis.OutputOnlyFID}))
	count, err := f.tb.GetCount(f.ctx, scratch)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, f.tb.Delete(f.ctx, scratch))
	exists, err := f.tb.Exists(f.ctx, scratch)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, f.store.Memory().Names())
}

func TestLocal_Dissolve(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tb.Dissolve(f.ctx, f.layer, "memory/a_dissolved"))
	count, err := f.tb.GetCount(f.ctx, "memory/a_dissolved")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLocal_Errors(t *testing.T) {
	f := newFixture(t)

	err := f.tb.Intersect(f.ctx, []string{f.grid, f.layer, f.layer}, "memory/x", gis.IntersectOptions{})
	assert.Error(t, err)

	_, err = f.tb.Describe(f.ctx, filepath.Join(filepath.Dir(f.layer), "missing"))
	assert.ErrorIs(t, err, gis.ErrNotFound)

	_, err = f.tb.Describe(f.ctx, "not/a/container/path")
	assert.ErrorIs(t, err, gis.ErrInvalidRef)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = f.tb.Intersect(ctx, []string{f.grid, f.layer}, "memory/x", gis.IntersectOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocal_ExistsContainer(t *testing.T) {
	f := newFixture(t)

	exists, err := f.tb.Exists(f.ctx, f.output)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.tb.CreateContainer(f.ctx, f.output))
	exists, err = f.tb.Exists(f.ctx, f.output)
	require.NoError(t, err)
	assert.True(t, exists)
}
