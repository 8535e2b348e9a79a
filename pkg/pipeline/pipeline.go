// Package pipeline provides the scene → frames pipeline for boxrender.
//
// The CLI and the HTTP API both render through a [Runner], so caching,
// hooks and defaults behave the same everywhere.
//
// # Architecture
//
// A run has three stages:
//
//  1. Load: decode the TOML scene and hash it together with every image it
//     references
//  2. Render: request each frame's root tasks on a shared scheduler and wait
//     for them to finish
//  3. Encode: composite the finished outputs onto the canvas and encode PNG
//
// Encoded frames are cached per frame. The cache key includes the scene hash,
// the render settings and the state id of every box, so any edit produces a
// new key.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Render(ctx, pipeline.Options{
//	    ScenePath: "scene.toml",
//	    Frames:    []int{0, 1, 2},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	png := result.Frames[0].PNG
//
// The task graph of a frame can be exported for inspection:
//
//	dot, err := runner.Graph(ctx, opts, 12)
package pipeline

import (
	"fmt"
	"image"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/boxrender/pkg/cache"
	"github.com/matzehuels/boxrender/pkg/errors"
	"github.com/matzehuels/boxrender/pkg/task"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultParallel is the number of frames rendered concurrently.
	DefaultParallel = 2

	// MaxFrames bounds a single run.
	MaxFrames = 10000
)

// Format constants for graph exports.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// ValidGraphFormats is the set of supported graph export formats.
var ValidGraphFormats = map[string]bool{
	FormatDOT: true,
	FormatSVG: true,
	FormatPNG: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Scene options
	Scene     string `json:"scene,omitempty"` // TOML source; wins over ScenePath
	ScenePath string `json:"-"`
	BaseDir   string `json:"-"` // resolves relative image paths of Scene

	// Render options
	Frames      []int    `json:"frames,omitempty"` // empty renders the scene's range; repeats are dropped
	Resolution  float64  `json:"resolution,omitempty"`
	SkipOpacity *float64 `json:"skip_opacity,omitempty"`
	Workers     int      `json:"workers,omitempty"`
	Parallel    int      `json:"parallel,omitempty"`
	Layers      bool     `json:"layers,omitempty"` // keep per-box copies of each frame
	Refresh     bool     `json:"refresh,omitempty"`

	// Graph options
	GraphFormat string `json:"graph_format,omitempty"`
	Detailed    bool   `json:"detailed,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a render run.
type Result struct {
	// SceneHash is the content hash of the scene and its images.
	SceneHash string

	// Frames are in the order they were first requested.
	Frames []Frame

	// Stats contains timing and task counts.
	Stats Stats

	// CacheInfo counts frame cache lookups.
	CacheInfo CacheInfo

	// Warnings collects task failures. A failed task still finishes the
	// frame, with the box missing or drawn without its image.
	Warnings []string
}

// Frame is one encoded frame.
type Frame struct {
	Number int
	PNG    []byte
	Cached bool

	// Image is the composited canvas. It is nil for cached frames.
	Image *image.NRGBA

	// Layers are finished copies of the root outputs, in paint order. Only
	// set when Options.Layers is true.
	Layers []*task.Task
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Boxes      int
	Frames     int
	Tasks      int
	Finished   int
	Canceled   int
	Failed     int
	LoadTime   time.Duration
	RenderTime time.Duration
}

// CacheInfo counts frame cache lookups.
type CacheInfo struct {
	Hits   int
	Misses int
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateGraphFormat checks that a graph format is valid.
func ValidateGraphFormat(format string) error {
	if !ValidGraphFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid graph format: %q (must be one of: dot, svg, png)", format)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Scene == "" && o.ScenePath == "" {
		return errors.New(errors.ErrCodeInvalidInput, "scene or scene path is required")
	}
	if o.Resolution != 0 {
		if err := errors.ValidateResolution(o.Resolution); err != nil {
			return err
		}
	}
	if o.SkipOpacity != nil && (*o.SkipOpacity < 0 || *o.SkipOpacity >= 1) {
		return errors.New(errors.ErrCodeInvalidInput, "skip opacity must be in [0, 1) (got %v)", *o.SkipOpacity)
	}
	if len(o.Frames) > MaxFrames {
		return errors.New(errors.ErrCodeInvalidInput, "too many frames (max %d, got %d)", MaxFrames, len(o.Frames))
	}
	o.Frames = uniqueFrames(o.Frames)
	if o.Workers < 0 || o.Parallel < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "workers and parallel must not be negative")
	}
	if o.Parallel == 0 {
		o.Parallel = DefaultParallel
	}
	if o.GraphFormat == "" {
		o.GraphFormat = FormatDOT
	}
	if err := ValidateGraphFormat(o.GraphFormat); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// uniqueFrames drops repeated frames, keeping first occurrences in order. A
// box holds one render per frame, so a frame requested twice in one run
// would cancel its own render.
func uniqueFrames(frames []int) []int {
	seen := make(map[int]bool, len(frames))
	out := frames[:0:0]
	for _, f := range frames {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// TaskConfig returns the processing configuration for the scheduler. An
// explicit SkipOpacity, zero included, replaces the default.
func (o *Options) TaskConfig() *task.Config {
	cfg := task.DefaultConfig()
	if o.SkipOpacity != nil {
		cfg.SkipOpacity = *o.SkipOpacity
	}
	return &cfg
}

// FrameKeyOpts returns cache key options for an encoded frame.
func (o *Options) FrameKeyOpts(resolution float64, states map[string]uint64) cache.FrameKeyOpts {
	return cache.FrameKeyOpts{
		Resolution:  resolution,
		SkipOpacity: o.TaskConfig().SkipOpacity,
		BoxStates:   states,
	}
}

// String summarizes the options for logs.
func (o *Options) String() string {
	src := o.ScenePath
	if o.Scene != "" {
		src = "<inline>"
	}
	return fmt.Sprintf("scene=%s frames=%d parallel=%d", src, len(o.Frames), o.Parallel)
}
