package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/boxrender/pkg/server"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr    string
	baseDir string
	workers int
	timeout time.Duration
	maxBody int64
	noCache bool
}

// serveCommand creates the serve command running the HTTP render API.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{
		addr:    ":8080",
		baseDir: ".",
		timeout: server.DefaultTimeout,
		maxBody: server.DefaultMaxBody,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve renders over HTTP",
		Long: `Serve runs the HTTP render API:

  GET  /healthz         liveness
  POST /render?frame=N  render one frame of the posted scene to PNG
  POST /graph?frame=N   export the task graph of one frame
  GET  /history         recent renders (needs ` + envMongoURI + `)
  GET  /history/{id}    one render record

Scenes are posted as TOML or as JSON render options. The frame cache is
shared with the CLI, or with every instance when ` + envRedisAddr + ` is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Config.applyServe(cmd, &opts)
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVar(&opts.baseDir, "base-dir", opts.baseDir, "directory for relative image paths in posted scenes")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "scheduler workers per request (default: CPU count)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", opts.timeout, "per-request render timeout")
	cmd.Flags().Int64Var(&opts.maxBody, "max-body", opts.maxBody, "maximum request body in bytes")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the frame cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	store, err := c.newHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close(context.WithoutCancel(ctx))

	srv := server.New(server.Config{
		Runner:  runner,
		History: store,
		Logger:  logger.WithPrefix("http"),
		BaseDir: opts.baseDir,
		Workers: opts.workers,
		MaxBody: opts.maxBody,
		Timeout: opts.timeout,
	})
	return srv.ListenAndServe(ctx, opts.addr)
}
