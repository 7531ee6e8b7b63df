package engine

import (
	"github.com/danieljhkim/gridprep/internal/config"
	"github.com/danieljhkim/gridprep/internal/gis"
	"github.com/danieljhkim/gridprep/internal/planner"
)

// Observer receives progress events while a batch runs.
type Observer interface {
	// GroupStarted is called before the first layer of a category, or of a
	// sub-group for categories with sub-groups. Groups without layers are
	// never started.
	GroupStarted(cat config.Category, group string)

	// LayerStarted is called before the operation runs on a layer.
	LayerStarted(step planner.Step, desc *gis.Description)

	// OverlapFound is called when a checked layer overlaps itself.
	OverlapFound(warning OverlapWarning)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) GroupStarted(config.Category, string)        {}
func (NopObserver) LayerStarted(planner.Step, *gis.Description) {}
func (NopObserver) OverlapFound(OverlapWarning)                 {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return NopObserver{}
	}
	return o
}
