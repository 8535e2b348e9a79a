package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/boxrender/pkg/pipeline"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	frame    int
	format   string
	output   string // empty derives <scene>.frame<N>.<format>
	detailed bool
	noCache  bool
	refresh  bool
}

// graphCommand creates the graph command, which exports the task graph of
// a single frame.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: pipeline.FormatSVG}

	cmd := &cobra.Command{
		Use:   "graph <scene.toml>",
		Short: "Export the task graph of one frame",
		Long: `Graph renders one frame with tracing enabled and exports the tasks and
their dependencies as a node-link diagram. Edges point from a task to the
tasks it waits on.`,
		Example: `  boxrender graph scene.toml --frame 12
  boxrender graph scene.toml --frame 12 --format dot -o frame12.dot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.frame, "frame", 0, "frame to trace")
	cmd.Flags().StringVar(&opts.format, "format", opts.format, "output format: dot, svg, png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <scene>.frame<N>.<format>)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "label nodes with sequence and state")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-trace even when cached")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, path string, opts graphOpts) error {
	logger := loggerFromContext(ctx)
	format := strings.ToLower(opts.format)
	if err := pipeline.ValidateGraphFormat(format); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(logger)
	data, cached, err := runner.GraphWithCacheInfo(ctx, pipeline.Options{
		ScenePath:   path,
		GraphFormat: format,
		Detailed:    opts.detailed,
		Refresh:     opts.refresh,
		Logger:      logger,
	}, opts.frame)
	if err != nil {
		return err
	}

	out := opts.output
	if out == "" {
		out = graphFileName(path, opts.frame, format)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	prog.done(fmt.Sprintf("Traced frame %d", opts.frame))

	printSuccess("Task graph written")
	printFile(out)
	if cached {
		printDetail("from cache")
	}
	return nil
}

// graphFileName derives the default output path next to the scene file.
func graphFileName(scenePath string, frame int, format string) string {
	base := strings.TrimSuffix(scenePath, filepath.Ext(scenePath))
	return fmt.Sprintf("%s.frame%d.%s", base, frame, format)
}
