package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/gridprep/internal/planner"
)

// Layers lists the layers a run would process, in processing order, without
// invoking any geometry operation beyond listing (and Describe if asked).
func (e *Engine) Layers(ctx context.Context, req *LayersRequest) (*LayersResult, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	plan, err := e.planner.Build(ctx, cfg, planner.OpDiscover)
	if err != nil {
		return nil, fmt.Errorf("failed to discover layers: %w", err)
	}

	result := &LayersResult{
		Plan:   plan,
		Layers: make([]LayerInfo, 0, len(plan.Steps)),
	}
	for _, step := range plan.Steps {
		info := LayerInfo{
			Category: step.Category,
			Group:    step.Group,
			Path:     step.Layer.Path(),
			Name:     step.Layer.Name,
			Depth:    step.Layer.Depth(),
		}
		if req.Describe {
			desc, err := e.gis.Describe(ctx, info.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to describe %s: %w", info.Path, err)
			}
			info.Description = desc
		}
		result.Layers = append(result.Layers, info)
	}
	return result, nil
}
