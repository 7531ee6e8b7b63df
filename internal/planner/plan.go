package planner

import (
	"errors"

	"github.com/danieljhkim/gridprep/internal/gis"
)

// Op is the operation a plan applies to each layer.
type Op string

// Operation constants
const (
	OpIntersect Op = "intersect"
	OpCheck     Op = "check"
	OpDiscover  Op = "discover"
)

// Skip reasons
const (
	SkipMissing = "missing"
	SkipEmpty   = "empty"
)

// ErrCategoryDirNotFound is returned when a required category directory
// does not exist.
var ErrCategoryDirNotFound = errors.New("category directory not found")

// Plan is an ordered set of per-layer steps.
type Plan struct {
	// Op is the operation every step applies
	Op Op `json:"op"`

	// Steps are executed in order
	Steps []Step `json:"steps"`

	// Conflicts are output collisions detected while planning
	Conflicts []Conflict `json:"conflicts"`

	// Skipped lists categories and groups that produced no steps
	Skipped []Skip `json:"skipped"`
}

// Step applies the plan operation to one layer.
type Step struct {
	// Category is the category name, e.g. "Themes"
	Category string `json:"category"`

	// Group is the sub-group name, empty for flat categories
	Group string `json:"group,omitempty"`

	// Prefix is the category output prefix
	Prefix string `json:"prefix"`

	// Layer is the discovered feature class
	Layer gis.Ref `json:"layer"`

	// Output is the intersect output path, empty for other operations
	Output string `json:"output,omitempty"`
}

// Skip records a category or group that produced no steps.
type Skip struct {
	Category string `json:"category"`
	Group    string `json:"group,omitempty"`
	Dir      string `json:"dir"`
	Reason   string `json:"reason"`
}

// Batch is a run of consecutive steps sharing a category and group.
type Batch struct {
	Category string
	Group    string
	Steps    []Step
}

// NewPlan creates a new empty Plan.
func NewPlan(op Op) *Plan {
	return &Plan{
		Op:        op,
		Steps:     []Step{},
		Conflicts: []Conflict{},
		Skipped:   []Skip{},
	}
}

// HasConflicts returns true if the plan has any conflicts.
func (p *Plan) HasConflicts() bool {
	return len(p.Conflicts) > 0
}

// AddStep adds a step to the plan.
func (p *Plan) AddStep(step Step) {
	p.Steps = append(p.Steps, step)
}

// AddConflict adds a conflict to the plan.
func (p *Plan) AddConflict(conflict Conflict) {
	p.Conflicts = append(p.Conflicts, conflict)
}

// AddSkip records a skipped category or group.
func (p *Plan) AddSkip(skip Skip) {
	p.Skipped = append(p.Skipped, skip)
}

// Batches groups consecutive steps by category and group, in plan order.
func (p *Plan) Batches() []Batch {
	var batches []Batch
	for _, step := range p.Steps {
		n := len(batches)
		if n > 0 && batches[n-1].Category == step.Category && batches[n-1].Group == step.Group {
			batches[n-1].Steps = append(batches[n-1].Steps, step)
			continue
		}
		batches = append(batches, Batch{Category: step.Category, Group: step.Group, Steps: []Step{step}})
	}
	return batches
}
