package engine

import "github.com/danieljhkim/gridprep/internal/config"

// IntersectRequest represents a request to intersect every layer with the grid.
type IntersectRequest struct {
	// Config is the effective configuration
	Config *config.Config

	// Dissolve merges line and polygon layers before intersecting them
	Dissolve bool

	// DryRun performs planning only without making changes
	DryRun bool

	// Observer receives progress events (optional)
	Observer Observer
}

// CheckRequest represents a request to check every layer for self-overlaps.
type CheckRequest struct {
	// Config is the effective configuration
	Config *config.Config

	// Observer receives progress events (optional)
	Observer Observer
}

// LayersRequest represents a request to list the discovered layers.
type LayersRequest struct {
	// Config is the effective configuration
	Config *config.Config

	// Describe fetches geometry type and feature count for every layer
	Describe bool
}
