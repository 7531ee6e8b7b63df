package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danieljhkim/gridprep/internal/clock"
	"github.com/danieljhkim/gridprep/internal/gis"
	"github.com/danieljhkim/gridprep/internal/planner"
)

// Check self-intersects every discovered layer and reports the layers whose
// features overlap each other. No output container is touched.
func (e *Engine) Check(ctx context.Context, req *CheckRequest) (*CheckResult, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	observer := observerOrNop(req.Observer)

	result := &CheckResult{
		Checked:   []string{},
		Warnings:  []OverlapWarning{},
		StartedAt: e.clock.Now(),
	}
	defer func() {
		result.Duration = clock.Since(e.clock, result.StartedAt)
	}()

	plan, err := e.planner.Build(ctx, cfg, planner.OpCheck)
	if err != nil {
		return nil, fmt.Errorf("failed to build check plan: %w", err)
	}
	result.Plan = plan

	for _, batch := range plan.Batches() {
		cat, _ := cfg.Lookup(batch.Category)
		observer.GroupStarted(cat, batch.Group)

		for _, step := range batch.Steps {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			warning, err := e.checkLayer(ctx, step, observer)
			if err != nil {
				return result, &LayerError{
					Op:       string(planner.OpCheck),
					Category: step.Category,
					Group:    step.Group,
					Layer:    step.Layer.Path(),
					Err:      err,
				}
			}
			result.Checked = append(result.Checked, step.Layer.Path())
			if warning != nil {
				observer.OverlapFound(*warning)
				result.Warnings = append(result.Warnings, *warning)
			}
		}
	}

	e.logger.Info("check complete",
		zap.Int("layers", len(result.Checked)),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

func (e *Engine) checkLayer(ctx context.Context, step planner.Step, observer Observer) (*OverlapWarning, error) {
	layer := step.Layer.Path()
	desc, err := e.gis.Describe(ctx, layer)
	if err != nil {
		return nil, fmt.Errorf("failed to describe layer: %w", err)
	}
	observer.LayerStarted(step, desc)

	count, err := e.checkOverlap(ctx, layer)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return &OverlapWarning{
		Category: step.Category,
		Layer:    desc.Name,
		Path:     layer,
		Count:    count,
	}, nil
}

// checkOverlap self-intersects layer into a scratch dataset and returns the
// number of overlapping pairs. The scratch dataset never outlives the call.
func (e *Engine) checkOverlap(ctx context.Context, layer string) (count int, err error) {
	scratch := e.scratch("intersects")
	opts := gis.IntersectOptions{Output: gis.OutputOnlyFID}
	if err := e.gis.Intersect(ctx, []string{layer}, scratch, opts); err != nil {
		return 0, fmt.Errorf("failed to self-intersect: %w", err)
	}
	defer func() {
		if delErr := e.gis.Delete(context.WithoutCancel(ctx), scratch); delErr != nil && err == nil {
			err = fmt.Errorf("failed to delete scratch %s: %w", scratch, delErr)
		}
	}()

	count, err = e.gis.GetCount(ctx, scratch)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlaps: %w", err)
	}
	e.logger.Debug("checked layer", zap.String("layer", layer), zap.Int("overlaps", count))
	return count, nil
}
