package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danieljhkim/gridprep/internal/gis"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	want := []Category{
		{Name: "Themes", Prefix: "T_", Dir: "Themes", SubGroups: true, Required: true, GroupLabel: "Theme"},
		{Name: "Includes", Prefix: "I_", Dir: "Includes"},
		{Name: "Weights", Prefix: "W_", Dir: "Weights"},
		{Name: "Excludes", Prefix: "E_", Dir: "Excludes"},
	}
	if diff := cmp.Diff(want, cfg.Categories); diff != "" {
		t.Errorf("default categories mismatch (-want +got):\n%s", diff)
	}
	if cfg.Dissolve {
		t.Error("dissolve should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if err := cfg.ValidateGrid(); err != nil {
		t.Errorf("default config should have a grid and output: %v", err)
	}
}

func TestCategory_Label(t *testing.T) {
	cfg := Default()
	if got := cfg.Categories[0].Label(); got != "Theme" {
		t.Errorf("expected Theme, got %s", got)
	}
	if got := (Category{Name: "Features"}).Label(); got != "Feature" {
		t.Errorf("expected Feature, got %s", got)
	}

	cat, ok := cfg.Lookup("Weights")
	if !ok || cat.Prefix != "W_" {
		t.Errorf("Lookup(Weights) = %+v, %v", cat, ok)
	}
	if _, ok := cfg.Lookup("Nope"); ok {
		t.Error("Lookup should miss unknown categories")
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing keys keep defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "grid: PU/grid.geojson\ndissolve: true\n")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Root != dir {
			t.Errorf("expected root %s, got %s", dir, cfg.Root)
		}
		if cfg.GridPath() != filepath.Join(dir, "PU", "grid.geojson") {
			t.Errorf("unexpected grid path: %s", cfg.GridPath())
		}
		if cfg.OutputPath() != filepath.Join(dir, "Intersections.gdb") {
			t.Errorf("unexpected output path: %s", cfg.OutputPath())
		}
		if !cfg.Dissolve {
			t.Error("expected dissolve to be enabled")
		}
		if len(cfg.Categories) != 4 {
			t.Errorf("expected default categories, got %d", len(cfg.Categories))
		}
		if cfg.Source != path {
			t.Errorf("expected source %s, got %s", path, cfg.Source)
		}
	})

	t.Run("relative root resolves against the file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, `
root: ../Regional
categories:
  - name: Features
    prefix: F_
    dir: Features
    sub_groups: true
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Root != filepath.Join(filepath.Dir(dir), "Regional") {
			t.Errorf("unexpected root: %s", cfg.Root)
		}
		want := []Category{{Name: "Features", Prefix: "F_", Dir: "Features", SubGroups: true}}
		if diff := cmp.Diff(want, cfg.Categories); diff != "" {
			t.Errorf("categories mismatch (-want +got):\n%s", diff)
		}
		if got := cfg.Categories[0].Path(cfg.Root); got != filepath.Join(cfg.Root, "Features") {
			t.Errorf("unexpected category path: %s", got)
		}
	})

	t.Run("absolute paths are kept", func(t *testing.T) {
		dir := t.TempDir()
		grid := filepath.Join(dir, "elsewhere", "PU.geojson")
		path := writeConfig(t, dir, "grid: "+grid+"\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.GridPath() != grid {
			t.Errorf("expected %s, got %s", grid, cfg.GridPath())
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "categories: [\n")
		if _, err := Load(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestResolve(t *testing.T) {
	t.Run("falls back to defaults rooted at dir", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		t.Setenv(EnvRoot, "")
		dir := t.TempDir()

		cfg, err := Resolve("", dir)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if cfg.Root != dir {
			t.Errorf("expected root %s, got %s", dir, cfg.Root)
		}
		if cfg.Source != "" {
			t.Errorf("expected no source, got %s", cfg.Source)
		}
	})

	t.Run("uses gridprep.yaml in dir", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		t.Setenv(EnvRoot, "")
		dir := t.TempDir()
		path := writeConfig(t, dir, "output: Out.gdb\n")

		cfg, err := Resolve("", dir)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if cfg.Source != path || cfg.Output != "Out.gdb" {
			t.Errorf("expected config from %s, got %+v", path, cfg)
		}
	})

	t.Run("GRIDPREP_CONFIG beats the local file", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "output: Local.gdb\n")
		other := t.TempDir()
		envPath := writeConfig(t, other, "output: Env.gdb\n")
		t.Setenv(EnvConfig, envPath)
		t.Setenv(EnvRoot, "")

		cfg, err := Resolve("", dir)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if cfg.Output != "Env.gdb" {
			t.Errorf("expected env config, got output %s", cfg.Output)
		}
	})

	t.Run("explicit path beats GRIDPREP_CONFIG", func(t *testing.T) {
		envPath := writeConfig(t, t.TempDir(), "output: Env.gdb\n")
		flagPath := writeConfig(t, t.TempDir(), "output: Flag.gdb\n")
		t.Setenv(EnvConfig, envPath)
		t.Setenv(EnvRoot, "")

		cfg, err := Resolve(flagPath, t.TempDir())
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if cfg.Output != "Flag.gdb" {
			t.Errorf("expected flag config, got output %s", cfg.Output)
		}
	})

	t.Run("GRIDPREP_ROOT overrides root", func(t *testing.T) {
		customRoot := filepath.Join(t.TempDir(), "custom")
		t.Setenv(EnvConfig, "")
		t.Setenv(EnvRoot, customRoot)

		cfg, err := Resolve("", t.TempDir())
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if cfg.Root != customRoot {
			t.Errorf("expected root %s, got %s", customRoot, cfg.Root)
		}
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		t.Setenv(EnvConfig, "")
		_, err := Resolve(filepath.Join(t.TempDir(), "nope.yaml"), t.TempDir())
		if err == nil {
			t.Error("expected error for missing explicit config")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no categories", func(c *Config) { c.Categories = nil }},
		{"empty name", func(c *Config) { c.Categories[1].Name = "" }},
		{"empty prefix", func(c *Config) { c.Categories[1].Prefix = "" }},
		{"empty dir", func(c *Config) { c.Categories[1].Dir = "" }},
		{"duplicate name", func(c *Config) { c.Categories[1].Name = "Themes" }},
		{"duplicate prefix", func(c *Config) { c.Categories[2].Prefix = "T_" }},
		{"bad suffix", func(c *Config) { c.ContainerSuffixes = []string{"gdb"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidateGrid(t *testing.T) {
	cfg := Default()
	cfg.Grid = ""
	if err := cfg.ValidateGrid(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for missing grid, got %v", err)
	}

	cfg = Default()
	cfg.Output = "Intersections"
	if err := cfg.ValidateGrid(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for non-container output, got %v", err)
	}

	cfg = Default()
	cfg.Output = "Intersections.GPKG"
	err := cfg.ValidateGrid()
	if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), "read-only") {
		t.Errorf("expected read-only error for GeoPackage output, got %v", err)
	}

	if err := Default().ValidateGrid(); err != nil {
		t.Errorf("default config should pass ValidateGrid, got %v", err)
	}
}

func TestDefault_GridIsShapefile(t *testing.T) {
	cfg := Default()
	if want := filepath.Join("..", "PU", "PU.shp"); cfg.Grid != want {
		t.Errorf("Grid = %q, want %q", cfg.Grid, want)
	}
	if _, err := gis.ParseRef(cfg.Grid, cfg.Suffixes()); err != nil {
		t.Errorf("default grid does not parse: %v", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	dir := t.TempDir()
	path := writeConfig(t, dir, string(data))

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(cfg.Categories, loaded.Categories); diff != "" {
		t.Errorf("categories changed across marshal (-want +got):\n%s", diff)
	}
}
