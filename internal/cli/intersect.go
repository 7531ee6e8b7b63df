package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gridprep/internal/engine"
	"github.com/danieljhkim/gridprep/internal/planner"
	"github.com/danieljhkim/gridprep/internal/toolbox"
)

var (
	intersectDryRun      bool
	intersectDissolve    bool
	intersectNoOverwrite bool
)

var intersectCmd = &cobra.Command{
	Use:   "intersect",
	Short: "Intersect every layer with the planning-unit grid",
	Long: `Intersect every discovered layer with the planning-unit grid.

Each result is written to the output container as <prefix><layer name>, e.g.
T_koala for layer koala under Themes. The output container is created if it
does not exist, and existing outputs are overwritten unless --no-overwrite is
given. The first failing layer stops the run; earlier outputs are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var opts []toolbox.Option
		if intersectNoOverwrite {
			opts = append(opts, toolbox.WithOverwrite(false))
		}
		eng := newEngine(cfg, opts...)

		ctx, stop := commandContext(cmd)
		defer stop()

		result, err := eng.Intersect(ctx, &engine.IntersectRequest{
			Config:   cfg,
			Dissolve: cfg.Dissolve || intersectDissolve,
			DryRun:   intersectDryRun,
			Observer: observer("Intersecting"),
		})
		if jsonOutput && result != nil {
			if jerr := outputJSON(result); jerr != nil {
				return jerr
			}
			return err
		}
		if err != nil {
			if result != nil && len(result.Written) > 0 {
				fmt.Fprintln(stdout)
				PrintWarning(fmt.Sprintf("Stopped after %s", PrintCount(len(result.Written), "output", "outputs")))
			}
			return err
		}

		if intersectDryRun {
			printIntersectPlan(result)
			return nil
		}

		printDuplicateConflicts(result.Plan)
		fmt.Fprintln(stdout)
		if result.CreatedOutput {
			PrintLabelValue("Created", result.Output)
		}
		PrintSuccess(fmt.Sprintf("Intersected %s into %s", PrintCount(len(result.Written), "layer", "layers"), result.Output))
		return nil
	},
}

func printIntersectPlan(result *engine.IntersectResult) {
	PrintSection("Dry Run")
	PrintLabelValue("Grid", result.Grid)
	PrintLabelValue("Output", result.Output)
	PrintInfo(fmt.Sprintf("Would intersect %s", PrintCount(len(result.Plan.Steps), "layer", "layers")))

	if len(result.Plan.Steps) > 0 {
		rows := make([][]string, 0, len(result.Plan.Steps))
		for _, step := range result.Plan.Steps {
			rows = append(rows, []string{step.Category, step.Group, step.Layer.Path(), step.Prefix + step.Layer.Name})
		}
		fmt.Fprintln(stdout)
		PrintTable([]string{"CATEGORY", "GROUP", "LAYER", "OUTPUT"}, rows)
	}

	printSkipped(result.Plan)

	if result.Plan.HasConflicts() {
		PrintSection("Conflicts")
		for _, c := range result.Plan.Conflicts {
			PrintWarning(fmt.Sprintf("%s: %s", c.Path, c.Reason))
		}
	}
}

// printDuplicateConflicts warns about outputs written by more than one layer.
func printDuplicateConflicts(plan *planner.Plan) {
	for _, c := range plan.Conflicts {
		if c.Kind == planner.ConflictDuplicate {
			PrintWarning(fmt.Sprintf("%s: %s", c.Path, c.Reason))
		}
	}
}

func printSkipped(plan *planner.Plan) {
	if len(plan.Skipped) == 0 {
		return
	}
	PrintSubsection("Skipped:")
	items := make([]string, 0, len(plan.Skipped))
	for _, s := range plan.Skipped {
		name := s.Category
		if s.Group != "" {
			name += "/" + s.Group
		}
		items = append(items, fmt.Sprintf("%s (%s)", name, s.Reason))
	}
	PrintList(items, 1)
}

func init() {
	intersectCmd.Flags().BoolVar(&intersectDryRun, "dry-run", false, "Show what would be intersected without running")
	intersectCmd.Flags().BoolVar(&intersectDissolve, "dissolve", false, "Dissolve line and polygon layers before intersecting")
	intersectCmd.Flags().BoolVar(&intersectNoOverwrite, "no-overwrite", false, "Fail instead of replacing existing outputs")
}
