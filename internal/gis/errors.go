package gis

import "errors"

var (
	// ErrNotFound indicates a container, dataset or feature class does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRef indicates a path that does not name a feature class or workspace.
	ErrInvalidRef = errors.New("invalid feature class path")

	// ErrUnsupportedContainer indicates a container format the engine cannot handle.
	ErrUnsupportedContainer = errors.New("unsupported container")

	// ErrReadOnly indicates a write to a container opened read-only.
	ErrReadOnly = errors.New("container is read-only")

	// ErrGeometry indicates the geometry engine rejected an input geometry.
	ErrGeometry = errors.New("geometry error")

	// ErrOutputExists indicates an output already exists and overwriting is disabled.
	ErrOutputExists = errors.New("output already exists")
)
