// Package engine provides the core batch workflows of gridprep.
//
// The engine package acts as the orchestration layer between CLI commands and
// the geometry engine. It builds a plan from the configured categories, then
// walks it layer by layer, calling the geometry engine for each one.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Intersect: Intersects every layer with the planning-unit grid
//   - Check: Self-intersects every layer and warns about overlaps
//   - Layers: Lists what a run would touch
//
// Execution is strictly sequential and the first geometry-engine error
// aborts the batch.
package engine

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danieljhkim/gridprep/internal/clock"
	"github.com/danieljhkim/gridprep/internal/fsops"
	"github.com/danieljhkim/gridprep/internal/gis"
	"github.com/danieljhkim/gridprep/internal/planner"
)

// Engine orchestrates all gridprep operations.
// It is the main API surface called by the CLI.
type Engine struct {
	fs      fsops.FS
	gis     gis.Engine
	planner *planner.Builder
	clock   clock.Clock
	logger  *zap.Logger
	newID   func() string
}

// New creates a new Engine with the given dependencies.
func New(
	fs fsops.FS,
	geo gis.Engine,
	discoverer planner.Discoverer,
	clk clock.Clock,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		fs:      fs,
		gis:     geo,
		planner: planner.NewBuilder(fs, discoverer, geo),
		clock:   clk,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// scratch returns a fresh memory-workspace path.
func (e *Engine) scratch(prefix string) string {
	return gis.MemoryRef(prefix + "_" + e.newID()).Path()
}
