package engine

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/gridprep/internal/gis"
)

func TestCheck_WarnsOnOverlap(t *testing.T) {
	f := newFixture(t)
	overlapping := f.geo.addLayer(t, f.path("Themes", "Forest", "forest.gdb"), "", "old_growth")
	clean := f.geo.addLayer(t, f.path("Weights", "w.gdb"), "", "roads")
	f.geo.overlaps[overlapping] = 3

	rec := &recorder{}
	result, err := f.eng.Check(context.Background(), &CheckRequest{Config: f.cfg, Observer: rec})
	require.NoError(t, err)

	assert.Equal(t, []string{overlapping, clean}, result.Checked)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, OverlapWarning{Category: "Themes", Layer: "old_growth", Path: overlapping, Count: 3}, result.Warnings[0])
	assert.Equal(t, []string{
		"group Theme: Forest", "layer old_growth", "overlap old_growth 3",
		"group Weights", "layer roads",
	}, rec.lines)

	// Each check self-intersects into its own scratch dataset with FIDs only.
	require.Len(t, f.geo.intersects, 2)
	assert.Equal(t, []string{overlapping}, f.geo.intersects[0].inputs)
	assert.Equal(t, "memory/intersects_0001", f.geo.intersects[0].out)
	assert.Equal(t, gis.OutputOnlyFID, f.geo.intersects[0].opts.Output)
	assert.Equal(t, "memory/intersects_0002", f.geo.intersects[1].out)

	// Scratch never outlives the call; no output container is touched.
	assert.Equal(t, []string{"memory/intersects_0001", "memory/intersects_0002"}, f.geo.deletes)
	assert.Empty(t, f.geo.scratch)
	assert.Empty(t, f.geo.created)
}

func TestCheck_DisjointLayerHasNoWarning(t *testing.T) {
	f := newFixture(t)
	f.geo.addLayer(t, f.path("Themes", "Species", "s.gdb"), "", "a")

	result, err := f.eng.Check(context.Background(), &CheckRequest{Config: f.cfg})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Len(t, result.Checked, 1)
}

func TestCheck_ScratchDeletedWhenCountFails(t *testing.T) {
	f := newFixture(t)
	f.geo.addLayer(t, f.path("Themes", "Species", "s.gdb"), "", "a")
	f.geo.failCount = errors.New("count failed")

	result, err := f.eng.Check(context.Background(), &CheckRequest{Config: f.cfg})
	require.Error(t, err)
	var layerErr *LayerError
	require.ErrorAs(t, err, &layerErr)
	assert.Equal(t, "check", layerErr.Op)

	assert.Equal(t, []string{"memory/intersects_0001"}, f.geo.deletes)
	assert.Empty(t, f.geo.scratch)
	assert.Empty(t, result.Checked)
}

func TestCheck_FailedSelfIntersectCreatesNothing(t *testing.T) {
	f := newFixture(t)
	bad := f.geo.addLayer(t, f.path("Themes", "Species", "s.gdb"), "", "a")
	f.geo.addLayer(t, f.path("Themes", "Species", "s.gdb"), "", "b")
	f.geo.failIntersect[bad] = gis.ErrGeometry

	_, err := f.eng.Check(context.Background(), &CheckRequest{Config: f.cfg})
	assert.ErrorIs(t, err, gis.ErrGeometry)
	assert.Empty(t, f.geo.deletes)
	// The batch stops at the failing layer.
	assert.Len(t, f.geo.intersects, 1)
}

func TestCheck_DeleteFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.geo.addLayer(t, f.path("Themes", "Species", "s.gdb"), "", "a")
	f.geo.failDelete = errors.New("locked")

	_, err := f.eng.Check(context.Background(), &CheckRequest{Config: f.cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete scratch")
}

func TestCheck_MissingThemes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.path("Themes")))

	_, err := f.eng.Check(context.Background(), &CheckRequest{Config: f.cfg})
	assert.ErrorIs(t, err, ErrCategoryDirNotFound)
}

func TestCheck_DoesNotNeedGrid(t *testing.T) {
	f := newFixture(t)
	f.cfg.Grid = ""
	f.geo.addLayer(t, f.path("Includes", "inc.gdb"), "", "parks")

	result, err := f.eng.Check(context.Background(), &CheckRequest{Config: f.cfg})
	require.NoError(t, err)
	assert.Len(t, result.Checked, 1)
}

func TestCheck_Duration(t *testing.T) {
	f := newFixture(t)
	f.clock.SetStep(time.Second)

	result, err := f.eng.Check(context.Background(), &CheckRequest{Config: f.cfg})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), result.StartedAt)
	assert.Equal(t, time.Second, result.Duration)
}
