package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gridprep/internal/engine"
)

var layersDescribe bool

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List the layers discovered in every category",
	Long: `List the feature classes a run would process, in processing order.

With --describe, the geometry type and feature count of every layer are
shown as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		eng := newEngine(cfg)

		ctx, stop := commandContext(cmd)
		defer stop()

		result, err := eng.Layers(ctx, &engine.LayersRequest{Config: cfg, Describe: layersDescribe})
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(result)
		}

		PrintSection("Layers")
		if len(result.Layers) == 0 {
			PrintEmptyState("No layers found under " + cfg.Root)
		} else {
			headers := []string{"CATEGORY", "GROUP", "NAME", "PATH"}
			if layersDescribe {
				headers = append(headers, "TYPE", "FEATURES")
			}
			rows := make([][]string, 0, len(result.Layers))
			for _, l := range result.Layers {
				row := []string{l.Category, l.Group, l.Name, l.Path}
				if l.Description != nil {
					row = append(row, string(l.Description.GeometryType), strconv.Itoa(l.Description.FeatureCount))
				}
				rows = append(rows, row)
			}
			PrintTable(headers, rows)
		}

		fmt.Fprintln(stdout)
		printSkipped(result.Plan)
		PrintInfo(PrintCount(len(result.Layers), "layer", "layers"))
		return nil
	},
}

func init() {
	layersCmd.Flags().BoolVarP(&layersDescribe, "describe", "d", false, "Show geometry type and feature count")
}
