package gis

import "context"

// Engine is the boundary to the geometry engine. Every call names its
// workspace or dataset explicitly; implementations hold no "current
// workspace" between calls.
//
// Calls block until the engine returns. Implementations may check ctx before
// starting work but are not required to interrupt a running operation.
type Engine interface {
	// ListFeatureClasses lists feature classes held directly in ws.
	ListFeatureClasses(ctx context.Context, ws Workspace) ([]string, error)

	// ListDatasets lists the feature datasets of a container workspace.
	ListDatasets(ctx context.Context, ws Workspace) ([]string, error)

	// Describe reports the name, geometry type and size of a feature class.
	Describe(ctx context.Context, path string) (*Description, error)

	// Intersect intersects the inputs and writes the result to out. With a
	// single input, the features of that input are intersected with each other.
	Intersect(ctx context.Context, inputs []string, out string, opts IntersectOptions) error

	// Dissolve merges every feature of in into a single feature written to out.
	Dissolve(ctx context.Context, in, out string) error

	// GetCount returns the number of records in a dataset.
	GetCount(ctx context.Context, path string) (int, error)

	// Delete removes a dataset. Deleting a missing dataset is not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether a container or feature class exists.
	Exists(ctx context.Context, path string) (bool, error)

	// CreateContainer creates an empty output container if it is absent.
	CreateContainer(ctx context.Context, path string) error
}
