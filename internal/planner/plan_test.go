package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danieljhkim/gridprep/internal/config"
	"github.com/danieljhkim/gridprep/internal/fsops"
	"github.com/danieljhkim/gridprep/internal/gis"
)

// mockDiscoverer returns fixed layers per directory.
type mockDiscoverer struct {
	layers map[string][]gis.Ref
	err    error
	dirs   []string
}

func (m *mockDiscoverer) Discover(_ context.Context, dir string) ([]gis.Ref, error) {
	m.dirs = append(m.dirs, dir)
	if m.err != nil {
		return nil, m.err
	}
	return m.layers[dir], nil
}

// mockEngine answers Exists from a set of paths.
type mockEngine struct {
	gis.Engine
	existing map[string]bool
}

func (m *mockEngine) Exists(_ context.Context, path string) (bool, error) {
	return m.existing[path], nil
}

func testConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Root = root
	return cfg
}

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
}

func TestNewPlan(t *testing.T) {
	plan := NewPlan(OpCheck)
	if plan.Op != OpCheck {
		t.Errorf("expected op check, got %q", plan.Op)
	}
	if plan.Steps == nil || plan.Conflicts == nil || plan.Skipped == nil {
		t.Error("expected slices to be initialized")
	}
	if plan.HasConflicts() {
		t.Error("new plan should have no conflicts")
	}
}

func TestPlan_Batches(t *testing.T) {
	plan := NewPlan(OpCheck)
	plan.AddStep(Step{Category: "Themes", Group: "Forest", Layer: gis.Ref{Name: "a"}})
	plan.AddStep(Step{Category: "Themes", Group: "Forest", Layer: gis.Ref{Name: "b"}})
	plan.AddStep(Step{Category: "Themes", Group: "Species", Layer: gis.Ref{Name: "c"}})
	plan.AddStep(Step{Category: "Includes", Layer: gis.Ref{Name: "d"}})

	batches := plan.Batches()
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if batches[0].Group != "Forest" || len(batches[0].Steps) != 2 {
		t.Errorf("unexpected first batch: %+v", batches[0])
	}
	if batches[2].Category != "Includes" || batches[2].Group != "" {
		t.Errorf("unexpected last batch: %+v", batches[2])
	}
}

func TestBuild_ThemesWithEmptyGroup(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "Themes/Species", "Themes/Forest")

	speciesDir := filepath.Join(root, "Themes", "Species")
	container := filepath.Join(speciesDir, "species.gdb")
	disc := &mockDiscoverer{layers: map[string][]gis.Ref{
		speciesDir: {gis.Workspace{Container: container}.Ref("a")},
	}}

	cfg := testConfig(root)
	plan, err := NewBuilder(fsops.NewRealFS(), disc, &mockEngine{}).Build(context.Background(), cfg, OpIntersect)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []Step{{
		Category: "Themes",
		Group:    "Species",
		Prefix:   "T_",
		Layer:    gis.Workspace{Container: container}.Ref("a"),
		Output:   filepath.Join(root, "Intersections.gdb", "T_a"),
	}}
	if diff := cmp.Diff(want, plan.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	wantSkipped := []Skip{
		{Category: "Themes", Group: "Forest", Dir: filepath.Join(root, "Themes", "Forest"), Reason: SkipEmpty},
		{Category: "Includes", Dir: filepath.Join(root, "Includes"), Reason: SkipMissing},
		{Category: "Weights", Dir: filepath.Join(root, "Weights"), Reason: SkipMissing},
		{Category: "Excludes", Dir: filepath.Join(root, "Excludes"), Reason: SkipMissing},
	}
	if diff := cmp.Diff(wantSkipped, plan.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}

	// Groups are visited in name order.
	wantDirs := []string{filepath.Join(root, "Themes", "Forest"), speciesDir}
	if diff := cmp.Diff(wantDirs, disc.dirs); diff != "" {
		t.Errorf("discovery order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_FlatCategories(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "Themes", "Includes", "Weights", "Excludes")

	inc := filepath.Join(root, "Includes", "inc.gdb")
	wts := filepath.Join(root, "Weights", "w.gdb")
	disc := &mockDiscoverer{layers: map[string][]gis.Ref{
		filepath.Join(root, "Includes"): {gis.Workspace{Container: inc}.Ref("parks")},
		filepath.Join(root, "Weights"): {
			gis.Workspace{Container: wts}.Ref("roads"),
			gis.Workspace{Container: wts, Dataset: "ds"}.Ref("rail"),
		},
	}}

	plan, err := NewBuilder(fsops.NewRealFS(), disc, &mockEngine{}).Build(context.Background(), testConfig(root), OpCheck)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var got []string
	for _, step := range plan.Steps {
		got = append(got, step.Prefix+step.Layer.Name)
		if step.Output != "" {
			t.Errorf("check steps have no output, got %s", step.Output)
		}
	}
	if diff := cmp.Diff([]string{"I_parks", "W_roads", "W_rail"}, got); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	// Themes has no groups, Excludes has no layers.
	if len(plan.Skipped) != 2 {
		t.Fatalf("expected 2 skips, got %+v", plan.Skipped)
	}
	for _, skip := range plan.Skipped {
		if skip.Reason != SkipEmpty {
			t.Errorf("expected empty skip, got %+v", skip)
		}
	}
}

func TestBuild_MissingRequiredCategory(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "Includes")

	_, err := NewBuilder(fsops.NewRealFS(), &mockDiscoverer{}, &mockEngine{}).Build(context.Background(), testConfig(root), OpIntersect)
	if !errors.Is(err, ErrCategoryDirNotFound) {
		t.Errorf("expected ErrCategoryDirNotFound, got %v", err)
	}
}

func TestBuild_DiscoveryError(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "Themes/Species")

	disc := &mockDiscoverer{err: errors.New("listing failed")}
	_, err := NewBuilder(fsops.NewRealFS(), disc, &mockEngine{}).Build(context.Background(), testConfig(root), OpCheck)
	if err == nil {
		t.Fatal("expected discovery error")
	}
}

func TestBuild_Cancelled(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "Themes")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(fsops.NewRealFS(), &mockDiscoverer{}, &mockEngine{}).Build(ctx, testConfig(root), OpCheck)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBuild_Conflicts(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "Themes/Species", "Themes/Forest")

	out := filepath.Join(root, "Intersections.gdb")
	disc := &mockDiscoverer{layers: map[string][]gis.Ref{
		filepath.Join(root, "Themes", "Forest"):  {gis.Workspace{Container: filepath.Join(root, "Themes", "Forest", "f.gdb")}.Ref("a")},
		filepath.Join(root, "Themes", "Species"): {gis.Workspace{Container: filepath.Join(root, "Themes", "Species", "s.gdb")}.Ref("a")},
	}}
	engine := &mockEngine{existing: map[string]bool{filepath.Join(out, "T_a"): true}}

	plan, err := NewBuilder(fsops.NewRealFS(), disc, engine).Build(context.Background(), testConfig(root), OpIntersect)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Both layers still run; the later one wins under the overwrite policy.
	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(plan.Steps))
	}
	if len(plan.Conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %+v", plan.Conflicts)
	}
	if plan.Conflicts[0].Kind != ConflictExists {
		t.Errorf("expected exists conflict first, got %q", plan.Conflicts[0].Kind)
	}
	if plan.Conflicts[1].Kind != ConflictDuplicate {
		t.Errorf("expected duplicate conflict second, got %q", plan.Conflicts[1].Kind)
	}
}
