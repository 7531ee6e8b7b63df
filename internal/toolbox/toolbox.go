// Package toolbox implements gis.Engine on top of the geodb container store
// and the GEOS-backed overlay package.
//
// It plays the part of a desktop GIS toolbox: list, describe, intersect,
// dissolve, count and delete, with a process-wide overwrite policy.
package toolbox

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/danieljhkim/gridprep/internal/geodb"
	"github.com/danieljhkim/gridprep/internal/gis"
	"github.com/danieljhkim/gridprep/internal/overlay"
)

// Local is an in-process geoprocessing toolbox.
//
// The first input of a two-way Intersect is indexed once and kept for the
// life of the toolbox, so a run that intersects many layers with one grid
// loads the grid a single time. Writing or deleting that dataset through the
// toolbox drops the cached index.
type Local struct {
	store     *geodb.Store
	logger    *zap.Logger
	overwrite bool

	mu      sync.Mutex
	indexes map[string]*overlay.Index
}

var _ gis.Engine = (*Local)(nil)

// Option configures a Local toolbox.
type Option func(*Local)

// WithOverwrite sets the overwrite-output policy. It is enabled by default.
func WithOverwrite(overwrite bool) Option {
	return func(l *Local) {
		l.overwrite = overwrite
	}
}

// WithLogger sets the logger used for tool call diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Local) {
		l.logger = logger
	}
}

// New creates a toolbox over store.
func New(store *geodb.Store, opts ...Option) *Local {
	l := &Local{
		store:     store,
		logger:    zap.NewNop(),
		overwrite: true,
		indexes:   make(map[string]*overlay.Index),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Overwrite reports whether existing outputs are replaced.
func (l *Local) Overwrite() bool {
	return l.overwrite
}

// ListFeatureClasses lists feature classes held directly in ws.
func (l *Local) ListFeatureClasses(ctx context.Context, ws gis.Workspace) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := l.store.ListFeatureClasses(ws)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("listed feature classes", zap.String("workspace", ws.Path()), zap.Int("count", len(names)))
	return names, nil
}

// ListDatasets lists the feature datasets of a container.
func (l *Local) ListDatasets(ctx context.Context, ws gis.Workspace) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := l.store.ListDatasets(ws)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("listed feature datasets", zap.String("workspace", ws.Path()), zap.Int("count", len(names)))
	return names, nil
}

func (l *Local) load(path string) (gis.Ref, *gis.FeatureClass, error) {
	ref, err := l.store.ParseRef(path)
	if err != nil {
		return gis.Ref{}, nil, err
	}
	fc, err := l.store.Load(ref)
	if err != nil {
		return gis.Ref{}, nil, err
	}
	return ref, fc, nil
}

// index returns the overlay index of the dataset at path, building it on
// first use.
func (l *Local) index(path string) (*overlay.Index, error) {
	ref, err := l.store.ParseRef(path)
	if err != nil {
		return nil, err
	}
	key := ref.Path()

	l.mu.Lock()
	defer l.mu.Unlock()
	if idx, ok := l.indexes[key]; ok {
		return idx, nil
	}
	fc, err := l.store.Load(ref)
	if err != nil {
		return nil, err
	}
	idx, err := overlay.NewIndex(fc)
	if err != nil {
		return nil, err
	}
	l.indexes[key] = idx
	l.logger.Debug("indexed overlay input", zap.String("path", key), zap.Int("features", fc.Len()))
	return idx, nil
}

func (l *Local) forget(ref gis.Ref) {
	l.mu.Lock()
	delete(l.indexes, ref.Path())
	l.mu.Unlock()
}

// save writes fc and drops any cached index of the same dataset.
func (l *Local) save(ref gis.Ref, fc *gis.FeatureClass) error {
	l.forget(ref)
	return l.store.Save(ref, fc)
}

// Describe reports the name, geometry type and size of a feature class.
func (l *Local) Describe(ctx context.Context, path string) (*gis.Description, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref, fc, err := l.load(path)
	if err != nil {
		return nil, err
	}
	return &gis.Description{
		Name:         ref.Name,
		Path:         ref.Path(),
		GeometryType: fc.GeometryType,
		FeatureCount: fc.Len(),
	}, nil
}

// prepareOutput parses out and enforces the overwrite policy.
func (l *Local) prepareOutput(out string) (gis.Ref, error) {
	ref, err := l.store.ParseRef(out)
	if err != nil {
		return gis.Ref{}, err
	}
	exists, err := l.store.Exists(ref)
	if err != nil {
		return gis.Ref{}, fmt.Errorf("failed to check output %s: %w", out, err)
	}
	if exists && !l.overwrite {
		return gis.Ref{}, fmt.Errorf("%w: %s", gis.ErrOutputExists, out)
	}
	return ref, nil
}

// Intersect intersects the inputs and writes the result to out. Two inputs
// are intersected pairwise; a single input is intersected with itself.
func (l *Local) Intersect(ctx context.Context, inputs []string, out string, opts gis.IntersectOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	outRef, err := l.prepareOutput(out)
	if err != nil {
		return err
	}

	var result *gis.FeatureClass
	switch len(inputs) {
	case 1:
		_, fc, err := l.load(inputs[0])
		if err != nil {
			return err
		}
		result, err = overlay.SelfIntersect(fc, outRef.Name, opts.Output)
		if err != nil {
			return err
		}
	case 2:
		idx, err := l.index(inputs[0])
		if err != nil {
			return err
		}
		_, b, err := l.load(inputs[1])
		if err != nil {
			return err
		}
		result, err = overlay.IntersectIndex(idx, b, outRef.Name, opts.Output)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("intersect takes one or two inputs, got %d", len(inputs))
	}

	if err := l.save(outRef, result); err != nil {
		return err
	}
	l.logger.Debug("intersect",
		zap.Strings("inputs", inputs),
		zap.String("output", outRef.Path()),
		zap.Int("features", result.Len()))
	return nil
}

// Dissolve merges every feature of in into a single feature written to out.
func (l *Local) Dissolve(ctx context.Context, in, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	outRef, err := l.prepareOutput(out)
	if err != nil {
		return err
	}
	_, fc, err := l.load(in)
	if err != nil {
		return err
	}
	result, err := overlay.Dissolve(fc, outRef.Name)
	if err != nil {
		return err
	}
	if err := l.save(outRef, result); err != nil {
		return err
	}
	l.logger.Debug("dissolve", zap.String("input", in), zap.String("output", outRef.Path()), zap.Int("features", result.Len()))
	return nil
}

// GetCount returns the number of records in a dataset.
func (l *Local) GetCount(ctx context.Context, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	_, fc, err := l.load(path)
	if err != nil {
		return 0, err
	}
	return fc.Len(), nil
}

// Delete removes a dataset. Deleting a missing dataset is not an error.
func (l *Local) Delete(ctx context.Context, path string) error {
	ref, err := l.store.ParseRef(path)
	if err != nil {
		return err
	}
	l.forget(ref)
	if err := l.store.Delete(ref); err != nil {
		return err
	}
	l.logger.Debug("delete", zap.String("path", ref.Path()))
	return nil
}

// Exists reports whether a container or feature class exists.
func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if ref, err := l.store.ParseRef(path); err == nil {
		return l.store.Exists(ref)
	}
	if _, err := l.store.ParseWorkspace(path); err == nil {
		return l.store.ContainerExists(path)
	}
	return false, fmt.Errorf("%w: %q", gis.ErrInvalidRef, path)
}

// CreateContainer creates an empty output container if it is absent.
func (l *Local) CreateContainer(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.store.CreateContainer(path); err != nil {
		return err
	}
	l.logger.Debug("container ready", zap.String("path", path))
	return nil
}
