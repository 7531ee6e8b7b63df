package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gridprep/internal/config"
	"github.com/danieljhkim/gridprep/internal/fsops"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration as YAML.

The configuration is read from --config, $GRIDPREP_CONFIG or ./gridprep.yaml,
in that order. Without a file the built-in defaults apply: the four standard
categories under the working directory, the grid at ../PU/PU.shp and the
output container Intersections.gdb.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cfg)
		}

		data, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}
		source := cfg.Source
		if source == "" {
			source = "built-in defaults"
		}
		PrintLabelValue("Source", source)
		fmt.Fprintln(stdout)
		fmt.Fprint(stdout, string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long: `Write the built-in configuration to gridprep.yaml, or to the given path.

An existing file is kept unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.FileName
		if len(args) == 1 {
			path = args[0]
		}

		fs := fsops.NewRealFS()
		exists, err := fs.Exists(path)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", path, err)
		}
		if exists && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		data, err := config.Default().Marshal()
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}
		if err := fs.AtomicWrite(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if jsonOutput {
			return outputJSON(map[string]string{"path": abs})
		}
		PrintSuccess("Wrote " + abs)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}
