package engine

import (
	"time"

	"github.com/danieljhkim/gridprep/internal/gis"
	"github.com/danieljhkim/gridprep/internal/planner"
)

// IntersectResult represents the result of the intersect workflow.
type IntersectResult struct {
	// Plan is the generated plan
	Plan *planner.Plan `json:"plan"`

	// Grid is the resolved grid path
	Grid string `json:"grid"`

	// Output is the resolved output container
	Output string `json:"output"`

	// CreatedOutput is true if the output container was created by this run
	CreatedOutput bool `json:"created_output"`

	// Written lists the outputs produced, in order (empty if DryRun)
	Written []WrittenOutput `json:"written"`

	// DryRun echoes the request
	DryRun bool `json:"dry_run"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// WrittenOutput is one intersect output.
type WrittenOutput struct {
	Category  string `json:"category"`
	Layer     string `json:"layer"`
	Output    string `json:"output"`
	Dissolved bool   `json:"dissolved,omitempty"`
}

// CheckResult represents the result of the overlap-check workflow.
type CheckResult struct {
	// Plan is the generated plan
	Plan *planner.Plan `json:"plan"`

	// Checked lists the layers checked, in order
	Checked []string `json:"checked"`

	// Warnings lists the layers that overlap themselves
	Warnings []OverlapWarning `json:"warnings"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// OverlapWarning reports a layer whose features overlap each other.
type OverlapWarning struct {
	Category string `json:"category"`
	Layer    string `json:"layer"`
	Path     string `json:"path"`

	// Count is the number of overlapping feature pairs
	Count int `json:"count"`
}

// LayersResult represents the discovered layers.
type LayersResult struct {
	// Plan is the discovery plan
	Plan *planner.Plan `json:"plan"`

	// Layers lists every discovered layer, in processing order
	Layers []LayerInfo `json:"layers"`
}

// LayerInfo describes one discovered layer.
type LayerInfo struct {
	Category    string           `json:"category"`
	Group       string           `json:"group,omitempty"`
	Path        string           `json:"path"`
	Name        string           `json:"name"`
	Depth       int              `json:"depth"`
	Description *gis.Description `json:"description,omitempty"`
}
