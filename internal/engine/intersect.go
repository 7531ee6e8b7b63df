package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danieljhkim/gridprep/internal/clock"
	"github.com/danieljhkim/gridprep/internal/gis"
	"github.com/danieljhkim/gridprep/internal/planner"
)

// Intersect intersects every discovered layer with the planning-unit grid
// and writes each result to the output container as <prefix><layer name>.
//
// Algorithm steps:
// 1. Validate configuration and check the grid exists
// 2. Ensure the output container exists (skipped on DryRun)
// 3. Build the plan
// 4. Run the intersect for every step (if not DryRun)
// 5. Return result
//
// On a geometry-engine error the batch stops and the partial result is
// returned with a *LayerError.
func (e *Engine) Intersect(ctx context.Context, req *IntersectRequest) (*IntersectResult, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := cfg.ValidateGrid(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	observer := observerOrNop(req.Observer)

	result := &IntersectResult{
		Grid:      cfg.GridPath(),
		Output:    cfg.OutputPath(),
		Written:   []WrittenOutput{},
		DryRun:    req.DryRun,
		StartedAt: e.clock.Now(),
	}
	defer func() {
		result.Duration = clock.Since(e.clock, result.StartedAt)
	}()

	gridExists, err := e.gis.Exists(ctx, result.Grid)
	if err != nil {
		return nil, fmt.Errorf("failed to check grid: %w", err)
	}
	if !gridExists {
		return nil, fmt.Errorf("%w: %s", ErrGridNotFound, result.Grid)
	}

	if !req.DryRun {
		created, err := e.ensureOutput(ctx, result.Output)
		if err != nil {
			return nil, err
		}
		result.CreatedOutput = created
	}

	plan, err := e.planner.Build(ctx, cfg, planner.OpIntersect)
	if err != nil {
		return nil, fmt.Errorf("failed to build intersect plan: %w", err)
	}
	result.Plan = plan

	if req.DryRun {
		return result, nil
	}

	for _, batch := range plan.Batches() {
		cat, _ := cfg.Lookup(batch.Category)
		observer.GroupStarted(cat, batch.Group)

		for _, step := range batch.Steps {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			written, err := e.intersectLayer(ctx, step, result.Grid, req.Dissolve, observer)
			if err != nil {
				return result, &LayerError{
					Op:       string(planner.OpIntersect),
					Category: step.Category,
					Group:    step.Group,
					Layer:    step.Layer.Path(),
					Err:      err,
				}
			}
			result.Written = append(result.Written, *written)
		}
	}

	e.logger.Info("intersect complete",
		zap.Int("layers", len(result.Written)),
		zap.String("output", result.Output),
		zap.Int("skipped", len(plan.Skipped)))
	return result, nil
}

// ensureOutput creates the output container once if it is absent.
func (e *Engine) ensureOutput(ctx context.Context, output string) (bool, error) {
	exists, err := e.gis.Exists(ctx, output)
	if err != nil {
		return false, fmt.Errorf("failed to check output container: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := e.gis.CreateContainer(ctx, output); err != nil {
		return false, fmt.Errorf("failed to create output container: %w", err)
	}
	e.logger.Info("created output container", zap.String("path", output))
	return true, nil
}

// intersectLayer intersects one layer with the grid. With dissolve enabled,
// line and polygon layers are first dissolved into a scratch dataset that is
// deleted afterwards.
func (e *Engine) intersectLayer(ctx context.Context, step planner.Step, grid string, dissolve bool, observer Observer) (_ *WrittenOutput, err error) {
	layer := step.Layer.Path()
	desc, err := e.gis.Describe(ctx, layer)
	if err != nil {
		return nil, fmt.Errorf("failed to describe layer: %w", err)
	}
	observer.LayerStarted(step, desc)

	written := &WrittenOutput{
		Category: step.Category,
		Layer:    layer,
		Output:   step.Output,
	}

	input := layer
	if dissolve && desc.GeometryType.Dimension() > 0 {
		scratch := e.scratch("dissolved")
		if err := e.gis.Dissolve(ctx, layer, scratch); err != nil {
			return nil, fmt.Errorf("failed to dissolve layer: %w", err)
		}
		defer func() {
			if delErr := e.gis.Delete(context.WithoutCancel(ctx), scratch); delErr != nil && err == nil {
				err = fmt.Errorf("failed to delete scratch %s: %w", scratch, delErr)
			}
		}()
		input = scratch
		written.Dissolved = true
	}

	opts := gis.IntersectOptions{Output: gis.OutputAll}
	if err := e.gis.Intersect(ctx, []string{grid, input}, step.Output, opts); err != nil {
		return nil, fmt.Errorf("failed to intersect with grid: %w", err)
	}
	e.logger.Debug("intersected layer",
		zap.String("layer", layer),
		zap.String("output", step.Output),
		zap.Bool("dissolved", written.Dissolved))
	return written, nil
}
