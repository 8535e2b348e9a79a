package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/boxrender/pkg/history"
	"github.com/matzehuels/boxrender/pkg/pipeline"
	"github.com/matzehuels/boxrender/pkg/raster"
	"github.com/matzehuels/boxrender/pkg/task"
)

const (
	defaultOutputDir = "frames"
	maxTableRows     = 16
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output      string  // output directory
	frames      string  // frame spec, e.g. "0-10,12"; empty renders the scene range
	resolution  float64 // pixel scale; 0 keeps the scene setting
	skipOpacity float64 // negative keeps the default threshold
	workers     int
	parallel    int
	noCache     bool
	refresh     bool
	layers      bool // also write one PNG per root box
	tui         bool // interactive progress view
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{
		output:      defaultOutputDir,
		skipOpacity: -1,
	}

	cmd := &cobra.Command{
		Use:   "render <scene.toml>",
		Short: "Render scene frames to PNG files",
		Long: `Render loads a scene file and renders the requested frames to PNG.

Frames are written as frame_0000.png, frame_0001.png, ... into the output
directory. Rendered frames are cached by scene content, so re-running an
unchanged scene is fast. Use --refresh to bypass the cache.`,
		Example: `  boxrender render scene.toml
  boxrender render scene.toml --frames 0-23 -o out
  boxrender render scene.toml --frames 12 --layers --resolution 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Config.applyRender(cmd, &opts)
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output directory")
	cmd.Flags().StringVarP(&opts.frames, "frames", "f", "", "frames to render, e.g. 0-10,12 (default: scene range)")
	cmd.Flags().Float64Var(&opts.resolution, "resolution", 0, "pixel scale (default: scene setting)")
	cmd.Flags().Float64Var(&opts.skipOpacity, "skip-opacity", opts.skipOpacity, "skip boxes at or below this opacity, 0 to 1 (default: 0.001)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "scheduler worker goroutines (default: CPU count)")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 0, "frames rendered concurrently")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the frame cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render even when cached")
	cmd.Flags().BoolVar(&opts.layers, "layers", false, "also write one PNG per root box")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "show an interactive progress view")

	return cmd
}

// runRender renders the frames of one scene file and writes them to disk.
func (c *CLI) runRender(ctx context.Context, path string, opts renderOpts) error {
	logger := loggerFromContext(ctx)

	frames, err := parseFrames(opts.frames)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	store, err := c.newHistory(ctx)
	if err != nil {
		logger.Warn("history disabled", "err", err)
		store = history.NewNullStore()
	}
	defer store.Close(context.WithoutCancel(ctx))

	popts := pipeline.Options{
		ScenePath:  path,
		Frames:     frames,
		Resolution: opts.resolution,
		Workers:    opts.workers,
		Parallel:   opts.parallel,
		Layers:     opts.layers,
		Refresh:    opts.refresh,
		Logger:     logger,
	}
	if opts.skipOpacity >= 0 {
		popts.SkipOpacity = &opts.skipOpacity
	}

	prog := newProgress(logger)
	var res *pipeline.Result
	if opts.tui {
		res, err = runRenderTUI(ctx, runner, popts)
	} else {
		res, err = runner.Render(ctx, popts)
	}
	if err != nil {
		return err
	}

	files, err := writeFrames(opts.output, res)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Rendered %d frames", len(res.Frames)))

	if err := store.Save(ctx, history.NewRecord(path, res)); err != nil {
		logger.Warn("could not save history", "err", err)
	}

	printRenderSummary(res, files, opts.output)
	return nil
}

// writeFrames writes each frame and its layers into dir. It returns the
// frame file names keyed by frame number.
func writeFrames(dir string, res *pipeline.Result) (map[int]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	files := make(map[int]string, len(res.Frames))
	for _, f := range res.Frames {
		name := frameFileName(f.Number)
		if err := os.WriteFile(filepath.Join(dir, name), f.PNG, 0o644); err != nil {
			return nil, fmt.Errorf("write frame %d: %w", f.Number, err)
		}
		files[f.Number] = name

		for i, layer := range f.Layers {
			data, err := raster.PNGBytes(layer.Image())
			if err != nil {
				return nil, fmt.Errorf("encode layer %d of frame %d: %w", i, f.Number, err)
			}
			lname := layerFileName(f.Number, i, layer)
			if err := os.WriteFile(filepath.Join(dir, lname), data, 0o644); err != nil {
				return nil, fmt.Errorf("write layer: %w", err)
			}
		}
	}
	return files, nil
}

func frameFileName(frame int) string {
	return fmt.Sprintf("frame_%04d.png", frame)
}

// layerFileName names a layer after its box when the box still exists.
func layerFileName(frame, index int, t *task.Task) string {
	name := strconv.Itoa(index)
	if o, ok := t.Owner().Resolve(); ok {
		if n, ok := o.(interface{ Name() string }); ok {
			name = fmt.Sprintf("%02d_%s", index, sanitize(n.Name()))
		}
	}
	return fmt.Sprintf("frame_%04d_layer_%s.png", frame, name)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

func printRenderSummary(res *pipeline.Result, files map[int]string, dir string) {
	fmt.Println()
	fmt.Println(frameTable(res, files, maxTableRows))
	fmt.Println(statsLine(res))
	for _, w := range res.Warnings {
		printWarning("%s", w)
	}
	fmt.Println()
	printSuccess("Wrote %d frames", len(res.Frames))
	printFile(dir)
}

// parseFrames parses a comma separated list of frames and inclusive ranges,
// e.g. "0-3,7". The result is sorted with duplicates removed. An empty spec
// returns nil.
func parseFrames(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	var frames []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || start < 0 {
			return nil, fmt.Errorf("invalid frame %q", part)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start {
				return nil, fmt.Errorf("invalid frame range %q", part)
			}
		}
		if end-start >= pipeline.MaxFrames {
			return nil, fmt.Errorf("frame range %q exceeds %d frames", part, pipeline.MaxFrames)
		}
		for f := start; f <= end; f++ {
			frames = append(frames, f)
		}
	}
	slices.Sort(frames)
	return slices.Compact(frames), nil
}
