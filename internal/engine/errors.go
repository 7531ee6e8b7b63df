package engine

import (
	"errors"
	"fmt"

	"github.com/danieljhkim/gridprep/internal/planner"
)

var (
	// ErrValidation indicates a validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrGridNotFound indicates the planning-unit grid does not exist.
	ErrGridNotFound = errors.New("grid not found")

	// ErrCategoryDirNotFound indicates a required category directory is missing.
	ErrCategoryDirNotFound = planner.ErrCategoryDirNotFound
)

// LayerError is returned when the geometry engine fails on a layer. The
// batch stops at that layer; earlier outputs are left in place.
type LayerError struct {
	Op       string
	Category string
	Group    string
	Layer    string
	Err      error
}

func (e *LayerError) Error() string {
	where := e.Category
	if e.Group != "" {
		where += "/" + e.Group
	}
	return fmt.Sprintf("%s failed for layer %s (%s): %v", e.Op, e.Layer, where, e.Err)
}

func (e *LayerError) Unwrap() error {
	return e.Err
}
