// Package planner handles the planning phase of the batch workflows.
//
// The planner walks the configured categories and turns the directory
// convention into a deterministic, ordered list of steps, one per discovered
// layer. Nothing is written while planning, so a plan can be shown as a dry
// run before any geometry operation runs.
//
// Key responsibilities:
//   - Walk categories in configuration order, sub-groups in name order
//   - Skip missing optional and empty category directories
//   - Fail on a missing required category directory
//   - Name intersect outputs with the category prefix
//   - Detect output conflicts (duplicate names, existing outputs)
package planner
