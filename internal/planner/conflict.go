package planner

import (
	"context"
	"fmt"

	"github.com/danieljhkim/gridprep/internal/gis"
)

// Conflict kinds
const (
	ConflictDuplicate = "duplicate"
	ConflictExists    = "exists"
)

// Conflict represents an output collision detected during planning.
type Conflict struct {
	// Path is the output path where the conflict was detected
	Path string `json:"path"`

	// Kind is ConflictDuplicate or ConflictExists
	Kind string `json:"kind"`

	// Reason is a human-readable explanation of the conflict
	Reason string `json:"reason"`

	// Existing describes what currently claims the output
	Existing string `json:"existing"`

	// Incoming is the layer the plan wants to write there
	Incoming string `json:"incoming"`
}

// ConflictChecker checks intersect outputs for collisions.
type ConflictChecker struct {
	engine gis.Engine
	owners map[string]string
}

// NewConflictChecker creates a new ConflictChecker.
func NewConflictChecker(engine gis.Engine) *ConflictChecker {
	return &ConflictChecker{
		engine: engine,
		owners: make(map[string]string),
	}
}

// CheckOutput checks whether writing layer to output collides with an
// earlier step or with an existing feature class. Returns nil if the output
// is free. Either way the output is claimed by layer.
func (c *ConflictChecker) CheckOutput(ctx context.Context, output string, layer gis.Ref) *Conflict {
	incoming := layer.Path()

	if owner, claimed := c.owners[output]; claimed {
		return &Conflict{
			Path:     output,
			Kind:     ConflictDuplicate,
			Reason:   fmt.Sprintf("Output is also produced by %s; the later layer wins", owner),
			Existing: owner,
			Incoming: incoming,
		}
	}
	c.owners[output] = incoming

	exists, err := c.engine.Exists(ctx, output)
	if err != nil {
		return &Conflict{
			Path:     output,
			Kind:     ConflictExists,
			Reason:   fmt.Sprintf("Failed to check output: %v", err),
			Existing: "unknown",
			Incoming: incoming,
		}
	}
	if exists {
		return &Conflict{
			Path:     output,
			Kind:     ConflictExists,
			Reason:   "Output exists and will be overwritten",
			Existing: "feature class",
			Incoming: incoming,
		}
	}
	return nil
}
