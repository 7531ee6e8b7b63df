// Package discovery finds the feature classes inside the containers of a
// directory.
//
// A container holds feature classes directly or inside feature datasets, and
// feature datasets do not nest, so a feature class is found at most two
// levels below its container.
package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/gridprep/internal/fsops"
	"github.com/danieljhkim/gridprep/internal/gis"
)

// Discoverer lists feature classes through the geometry engine.
type Discoverer struct {
	fs       fsops.FS
	engine   gis.Engine
	suffixes []string
}

// New creates a Discoverer. An empty suffixes list means
// gis.DefaultContainerSuffixes.
func New(fs fsops.FS, engine gis.Engine, suffixes []string) *Discoverer {
	if len(suffixes) == 0 {
		suffixes = gis.DefaultContainerSuffixes
	}
	return &Discoverer{
		fs:       fs,
		engine:   engine,
		suffixes: suffixes,
	}
}

// Containers returns the paths of the containers directly inside dir, in
// name order. Hidden entries such as macOS "._" resource forks are skipped.
func (d *Discoverer) Containers(dir string) ([]string, error) {
	entries, err := d.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var containers []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if gis.HasContainerSuffix(entry.Name(), d.suffixes) {
			containers = append(containers, filepath.Join(dir, entry.Name()))
		}
	}
	return containers, nil
}

// Discover returns every feature class in the containers of dir: first the
// ones held directly in each container, then the ones inside its feature
// datasets. A directory without containers yields an empty slice.
func (d *Discoverer) Discover(ctx context.Context, dir string) ([]gis.Ref, error) {
	containers, err := d.Containers(dir)
	if err != nil {
		return nil, err
	}

	refs := []gis.Ref{}
	for _, container := range containers {
		found, err := d.discoverContainer(ctx, container)
		if err != nil {
			return nil, err
		}
		refs = append(refs, found...)
	}
	return refs, nil
}

func (d *Discoverer) discoverContainer(ctx context.Context, container string) ([]gis.Ref, error) {
	ws := gis.Workspace{Container: container}

	names, err := d.engine.ListFeatureClasses(ctx, ws)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature classes in %s: %w", container, err)
	}
	refs := make([]gis.Ref, 0, len(names))
	for _, name := range names {
		refs = append(refs, ws.Ref(name))
	}

	datasets, err := d.engine.ListDatasets(ctx, ws)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature datasets in %s: %w", container, err)
	}
	for _, dataset := range datasets {
		dsws := gis.Workspace{Container: container, Dataset: dataset}
		names, err := d.engine.ListFeatureClasses(ctx, dsws)
		if err != nil {
			return nil, fmt.Errorf("failed to list feature classes in %s: %w", dsws.Path(), err)
		}
		for _, name := range names {
			refs = append(refs, dsws.Ref(name))
		}
	}
	return refs, nil
}
