// Package config manages gridprep configuration.
//
// A configuration names the data root, the planning-unit grid, the output
// container and the categories of input layers. It is read from a YAML file
// and can be overridden via environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/gridprep/internal/gis"
)

const (
	// EnvConfig names a configuration file to load.
	EnvConfig = "GRIDPREP_CONFIG"

	// EnvRoot overrides the data root.
	EnvRoot = "GRIDPREP_ROOT"

	// FileName is the configuration file looked up in the working directory.
	FileName = "gridprep.yaml"
)

var (
	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Category is a group of input layers sharing an output prefix.
type Category struct {
	// Name is shown in progress output, e.g. "Themes".
	Name string `yaml:"name" json:"name"`

	// Prefix is prepended to every output name, e.g. "T_".
	Prefix string `yaml:"prefix" json:"prefix"`

	// Dir is the category directory, relative to the root unless absolute.
	Dir string `yaml:"dir" json:"dir"`

	// SubGroups means the directory holds one sub-directory per group and
	// the containers live inside those.
	SubGroups bool `yaml:"sub_groups,omitempty" json:"sub_groups,omitempty"`

	// Required makes a missing directory an error instead of a skip.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// GroupLabel names one sub-group in progress output, e.g. "Theme".
	GroupLabel string `yaml:"group_label,omitempty" json:"group_label,omitempty"`
}

// Label returns the name used for one sub-group of the category.
func (c Category) Label() string {
	if c.GroupLabel != "" {
		return c.GroupLabel
	}
	return strings.TrimSuffix(c.Name, "s")
}

// Path resolves the category directory against root.
func (c Category) Path(root string) string {
	return resolve(root, c.Dir)
}

// Config is the effective gridprep configuration.
type Config struct {
	// Root is the data root. Relative category, grid and output paths
	// resolve against it.
	Root string `yaml:"root" json:"root"`

	// Grid is the planning-unit feature class.
	Grid string `yaml:"grid" json:"grid"`

	// Output is the container the intersect workflow writes into.
	Output string `yaml:"output" json:"output"`

	// ContainerSuffixes are the directory suffixes searched for layers.
	ContainerSuffixes []string `yaml:"container_suffixes" json:"container_suffixes"`

	// Dissolve merges line and polygon layers before intersecting them.
	Dissolve bool `yaml:"dissolve" json:"dissolve"`

	// Categories are processed in order.
	Categories []Category `yaml:"categories" json:"categories"`

	// Source is the file the configuration was loaded from, empty for
	// built-in defaults.
	Source string `yaml:"-" json:"source,omitempty"`
}

// DefaultCategories returns the four standard categories in processing order.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Themes", Prefix: "T_", Dir: "Themes", SubGroups: true, Required: true, GroupLabel: "Theme"},
		{Name: "Includes", Prefix: "I_", Dir: "Includes"},
		{Name: "Weights", Prefix: "W_", Dir: "Weights"},
		{Name: "Excludes", Prefix: "E_", Dir: "Excludes"},
	}
}

// Default returns the built-in configuration rooted at the working directory.
func Default() *Config {
	return &Config{
		Root:              ".",
		Grid:              filepath.Join("..", "PU", "PU"+gis.ShapefileExt),
		Output:            "Intersections.gdb",
		ContainerSuffixes: append([]string(nil), gis.DefaultContainerSuffixes...),
		Categories:        DefaultCategories(),
	}
}

// Load reads a YAML configuration file. Keys absent from the file keep
// their default values. A relative root resolves against the file's
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	cfg.Categories = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories()
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}
	cfg.Source = path
	return cfg, nil
}

// Resolve finds and loads the effective configuration. Lookup order:
//   - explicit path (the --config flag)
//   - GRIDPREP_CONFIG
//   - gridprep.yaml in dir
//   - Default(), rooted at dir
//
// GRIDPREP_ROOT, when set, replaces the root in every case.
func Resolve(explicit, dir string) (*Config, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	var cfg *Config
	switch {
	case path != "":
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	default:
		local := filepath.Join(dir, FileName)
		loaded, err := Load(local)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
			cfg = Default()
			cfg.Root = dir
		default:
			return nil, err
		}
	}

	if root := os.Getenv(EnvRoot); root != "" {
		cfg.Root = root
	}
	return cfg, nil
}

// Lookup returns the category with the given name.
func (c *Config) Lookup(name string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// Validate checks the configuration for structural errors. The grid is only
// needed by the intersect workflow and is checked by ValidateGrid.
func (c *Config) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalidConfig)
	}
	names := make(map[string]bool)
	prefixes := make(map[string]bool)
	for i, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("%w: category %d has no name", ErrInvalidConfig, i)
		}
		if cat.Prefix == "" {
			return fmt.Errorf("%w: category %s has no prefix", ErrInvalidConfig, cat.Name)
		}
		if cat.Dir == "" {
			return fmt.Errorf("%w: category %s has no dir", ErrInvalidConfig, cat.Name)
		}
		if names[cat.Name] {
			return fmt.Errorf("%w: duplicate category name %s", ErrInvalidConfig, cat.Name)
		}
		if prefixes[cat.Prefix] {
			return fmt.Errorf("%w: duplicate category prefix %s", ErrInvalidConfig, cat.Prefix)
		}
		names[cat.Name] = true
		prefixes[cat.Prefix] = true
	}
	for _, suffix := range c.ContainerSuffixes {
		if !strings.HasPrefix(suffix, ".") || len(suffix) < 2 {
			return fmt.Errorf("%w: container suffix %q must start with '.'", ErrInvalidConfig, suffix)
		}
	}
	return nil
}

// ValidateGrid checks the settings the intersect workflow needs.
func (c *Config) ValidateGrid() error {
	if c.Grid == "" {
		return fmt.Errorf("%w: grid is required", ErrInvalidConfig)
	}
	if c.Output == "" {
		return fmt.Errorf("%w: output is required", ErrInvalidConfig)
	}
	if !gis.HasContainerSuffix(c.Output, c.Suffixes()) {
		return fmt.Errorf("%w: output %s is not a container (suffixes %v)", ErrInvalidConfig, c.Output, c.Suffixes())
	}
	if gis.IsGeoPackage(c.Output) {
		return fmt.Errorf("%w: output %s is a GeoPackage, which is read-only", ErrInvalidConfig, c.Output)
	}
	return nil
}

// Suffixes returns the configured container suffixes or the defaults.
func (c *Config) Suffixes() []string {
	if len(c.ContainerSuffixes) == 0 {
		return gis.DefaultContainerSuffixes
	}
	return c.ContainerSuffixes
}

// GridPath resolves the grid against the root.
func (c *Config) GridPath() string {
	return resolve(c.Root, c.Grid)
}

// OutputPath resolves the output container against the root.
func (c *Config) OutputPath() string {
	return resolve(c.Root, c.Output)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
