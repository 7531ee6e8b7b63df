package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/gridprep/internal/clock"
	"github.com/danieljhkim/gridprep/internal/config"
	"github.com/danieljhkim/gridprep/internal/discovery"
	"github.com/danieljhkim/gridprep/internal/engine"
	"github.com/danieljhkim/gridprep/internal/fsops"
	"github.com/danieljhkim/gridprep/internal/geodb"
	"github.com/danieljhkim/gridprep/internal/gis"
	"github.com/danieljhkim/gridprep/internal/planner"
	"github.com/danieljhkim/gridprep/internal/toolbox"
)

// loadConfig resolves the effective configuration from the global flags.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	cfg, err := config.Resolve(configPath, cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if rootDir != "" {
		cfg.Root = rootDir
	}
	return cfg, nil
}

// newEngine creates a new engine with real implementations of all dependencies.
func newEngine(cfg *config.Config, opts ...toolbox.Option) *engine.Engine {
	fs := fsops.NewRealFS()
	store := geodb.NewStore(fs, cfg.Suffixes())
	tb := toolbox.New(store, append([]toolbox.Option{toolbox.WithLogger(logger)}, opts...)...)
	disc := discovery.New(fs, tb, cfg.Suffixes())
	return engine.New(fs, tb, disc, &clock.RealClock{}, logger)
}

// commandContext returns the command context, cancelled on Ctrl-C.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}

// consoleObserver prints progress lines as a batch runs.
type consoleObserver struct {
	verb string
}

func (o *consoleObserver) GroupStarted(cat config.Category, group string) {
	if group != "" {
		PrintProgress(fmt.Sprintf("Processing %s: %s", cat.Label(), group))
		return
	}
	PrintProgress("Processing " + cat.Name)
}

func (o *consoleObserver) LayerStarted(step planner.Step, desc *gis.Description) {
	PrintInfo(o.verb + ": " + desc.Name)
}

func (o *consoleObserver) OverlapFound(w engine.OverlapWarning) {
	PrintAlert(overlapMessage(w.Layer))
}

func overlapMessage(layer string) string {
	return "WARNING: Layer " + layer + " has overlapping features, see them using Intersect(layer)."
}

// observer returns the console observer, or nil in JSON mode.
func observer(verb string) engine.Observer {
	if jsonOutput {
		return nil
	}
	return &consoleObserver{verb: verb}
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
