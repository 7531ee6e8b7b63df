package planner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/gridprep/internal/config"
	"github.com/danieljhkim/gridprep/internal/fsops"
	"github.com/danieljhkim/gridprep/internal/gis"
)

// Discoverer finds the feature classes in the containers of a directory.
type Discoverer interface {
	Discover(ctx context.Context, dir string) ([]gis.Ref, error)
}

// Builder generates plans from a configuration.
type Builder struct {
	fs         fsops.FS
	discoverer Discoverer
	engine     gis.Engine
}

// NewBuilder creates a new Builder.
func NewBuilder(fs fsops.FS, discoverer Discoverer, engine gis.Engine) *Builder {
	return &Builder{
		fs:         fs,
		discoverer: discoverer,
		engine:     engine,
	}
}

// Build walks the categories of cfg in order and generates a deterministic
// plan applying op to every discovered layer.
func (b *Builder) Build(ctx context.Context, cfg *config.Config, op Op) (*Plan, error) {
	plan := NewPlan(op)
	checker := NewConflictChecker(b.engine)
	root := cfg.Root

	for _, cat := range cfg.Categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := cat.Path(root)
		isDir, err := b.fs.IsDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to check category %s: %w", cat.Name, err)
		}
		if !isDir {
			if cat.Required {
				return nil, fmt.Errorf("%w: %s (%s)", ErrCategoryDirNotFound, cat.Name, dir)
			}
			plan.AddSkip(Skip{Category: cat.Name, Dir: dir, Reason: SkipMissing})
			continue
		}

		groups := []string{""}
		if cat.SubGroups {
			groups, err = b.subGroups(dir)
			if err != nil {
				return nil, fmt.Errorf("failed to list groups of %s: %w", cat.Name, err)
			}
			if len(groups) == 0 {
				plan.AddSkip(Skip{Category: cat.Name, Dir: dir, Reason: SkipEmpty})
				continue
			}
		}

		for _, group := range groups {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			groupDir := dir
			if group != "" {
				groupDir = filepath.Join(dir, group)
			}

			layers, err := b.discoverer.Discover(ctx, groupDir)
			if err != nil {
				return nil, fmt.Errorf("failed to discover layers in %s: %w", groupDir, err)
			}
			if len(layers) == 0 {
				plan.AddSkip(Skip{Category: cat.Name, Group: group, Dir: groupDir, Reason: SkipEmpty})
				continue
			}

			for _, layer := range layers {
				step := Step{
					Category: cat.Name,
					Group:    group,
					Prefix:   cat.Prefix,
					Layer:    layer,
				}
				if op == OpIntersect {
					step.Output = filepath.Join(cfg.OutputPath(), cat.Prefix+layer.Name)
					if conflict := checker.CheckOutput(ctx, step.Output, layer); conflict != nil {
						plan.AddConflict(*conflict)
					}
				}
				plan.AddStep(step)
			}
		}
	}

	return plan, nil
}

// subGroups returns the visible sub-directories of dir in name order.
func (b *Builder) subGroups(dir string) ([]string, error) {
	entries, err := b.fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var groups []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		groups = append(groups, entry.Name())
	}
	return groups, nil
}
