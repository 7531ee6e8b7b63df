package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gridprep/internal/engine"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check every layer for overlapping features",
	Long: `Check every discovered layer for features that overlap each other.

Overlaps lead to double counting when areas, lengths or counts are summarized
per planning unit. Each layer is intersected with itself into a scratch
dataset that is deleted right after its features are counted. Overlaps can be
fixed by dissolving the layer, or with 'gridprep intersect --dissolve'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		eng := newEngine(cfg)

		ctx, stop := commandContext(cmd)
		defer stop()

		result, err := eng.Check(ctx, &engine.CheckRequest{
			Config:   cfg,
			Observer: observer("checking"),
		})
		if jsonOutput && result != nil {
			if jerr := outputJSON(result); jerr != nil {
				return jerr
			}
			return err
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(stdout)
		if len(result.Warnings) == 0 {
			PrintSuccess(fmt.Sprintf("Checked %s, no overlaps found", PrintCount(len(result.Checked), "layer", "layers")))
			return nil
		}
		PrintWarning(fmt.Sprintf("Checked %s, %s with overlaps",
			PrintCount(len(result.Checked), "layer", "layers"),
			PrintCount(len(result.Warnings), "layer", "layers")))
		return nil
	},
}
