package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/boxrender/pkg/errors"
	"github.com/matzehuels/boxrender/pkg/observability"
	"github.com/matzehuels/boxrender/pkg/raster"
	"github.com/matzehuels/boxrender/pkg/scene"
	"github.com/matzehuels/boxrender/pkg/scheduler"
	"github.com/matzehuels/boxrender/pkg/task"
)

// Render runs the complete load → render → encode pipeline with caching.
//
// Frames render concurrently, up to opts.Parallel at a time, on one shared
// scheduler. Task failures do not fail the run; they are reported in
// Result.Warnings.
func (r *Runner) Render(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	// Stage 1: Load
	loadStart := time.Now()
	l, err := r.Load(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result := &Result{SceneHash: l.Hash}
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.Boxes = len(l.Scene.Boxes())

	frames, err := frameList(l.Scene.Settings(), opts.Frames)
	if err != nil {
		return nil, err
	}

	// Stage 2 and 3: Render and encode
	sch := scheduler.New(scheduler.Options{
		Workers: opts.Workers,
		Config:  opts.TaskConfig(),
		Logger:  opts.Logger,
		Label:   l.Scene.Label,
	})
	defer sch.Close()
	l.Scene.Attach(sch)

	renderStart := time.Now()
	result.Frames = make([]Frame, len(frames))
	hits := make([]bool, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallel)
	for i, f := range frames {
		g.Go(func() error {
			fr, hit, err := r.RenderFrameWithCacheInfo(gctx, l, f, opts)
			if err != nil {
				return fmt.Errorf("frame %d: %w", f, err)
			}
			result.Frames[i] = fr
			hits[i] = hit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		sch.CancelAll()
		return nil, err
	}
	if err := sch.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeCanceled, err, "render")
		}
		result.Warnings = splitErrors(err)
	}
	result.Stats.RenderTime = time.Since(renderStart)

	for _, hit := range hits {
		if hit {
			result.CacheInfo.Hits++
		} else {
			result.CacheInfo.Misses++
		}
	}
	st := sch.Stats()
	result.Stats.Frames = len(frames)
	result.Stats.Tasks = st.Submitted
	result.Stats.Finished = st.Finished
	result.Stats.Canceled = st.Canceled
	result.Stats.Failed = st.Failed

	for _, w := range result.Warnings {
		opts.Logger.Warn("task failed", "err", w)
	}
	opts.Logger.Info("rendered frames",
		"frames", len(frames),
		"cached", result.CacheInfo.Hits,
		"tasks", st.Submitted,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// RenderFrameWithCacheInfo encodes one frame of a loaded scene and reports
// whether it came from the cache. The scene must be attached to a
// scheduler.
//
// Frames requested with Options.Layers always render, since cached frames
// carry no layers.
func (r *Runner) RenderFrameWithCacheInfo(ctx context.Context, l *Loaded, frame int, opts Options) (Frame, bool, error) {
	r.applyLogger(&opts)
	sc := l.Scene
	key := r.Keyer.FrameKey(l.Hash, frame, opts.FrameKeyOpts(sc.Settings().Resolution, sc.StateIDs()))

	if !opts.Refresh && !opts.Layers {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "frame")
			return Frame{Number: frame, PNG: data, Cached: true}, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "frame")
	}

	observability.Pipeline().OnRenderStart(ctx, frame)
	start := time.Now()
	fr, err := drawFrame(ctx, sc, frame, opts.Layers)
	observability.Pipeline().OnRenderComplete(ctx, frame, time.Since(start), err)
	if err != nil {
		return Frame{}, false, err
	}
	opts.Logger.Debug("rendered frame", "frame", frame, "bytes", len(fr.PNG), "duration", time.Since(start))

	if err := r.Cache.Set(ctx, key, fr.PNG, r.FrameTTL); err == nil {
		observability.Cache().OnCacheSet(ctx, "frame", len(fr.PNG))
	}
	return fr, false, nil
}

// RenderFrame is a convenience wrapper that renders a single frame.
func (r *Runner) RenderFrame(ctx context.Context, opts Options, frame int) (*Frame, error) {
	opts.Frames = []int{frame}
	result, err := r.Render(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &result.Frames[0], nil
}

// drawFrame requests the visible roots at frame, waits until every root
// (and everything it depends on) is terminal, then composites copies of
// the finished outputs.
func drawFrame(ctx context.Context, sc *scene.Scene, frame int, layers bool) (Frame, error) {
	tasks := sc.RequestFrame(frame, task.ReasonFrameChange)
	for _, t := range tasks {
		select {
		case <-t.Done():
		case <-ctx.Done():
			for _, t := range tasks {
				t.Cancel()
			}
			return Frame{}, errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "frame %d", frame)
		}
	}

	copies := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if c := t.Copy(); c != nil {
			copies = append(copies, c)
		}
	}
	img := sc.Compose(copies)
	data, err := raster.PNGBytes(img)
	if err != nil {
		return Frame{}, errors.Wrap(errors.ErrCodeRender, err, "encode frame %d", frame)
	}

	f := Frame{Number: frame, PNG: data, Image: img}
	if layers {
		f.Layers = copies
	}
	return f, nil
}

// frameList returns the requested frames, or the whole scene range when
// none are given. Every frame must lie inside the range.
func frameList(s scene.Settings, frames []int) ([]int, error) {
	if len(frames) == 0 {
		n := s.End - s.Start + 1
		if n > MaxFrames {
			return nil, errors.New(errors.ErrCodeInvalidFrame, "scene range has %d frames (max %d)", n, MaxFrames)
		}
		frames = make([]int, 0, n)
		for f := s.Start; f <= s.End; f++ {
			frames = append(frames, f)
		}
		return frames, nil
	}
	for _, f := range frames {
		if err := errors.ValidateFrame(f, s.Start, s.End); err != nil {
			return nil, err
		}
	}
	return frames, nil
}

// splitErrors flattens a joined error into messages.
func splitErrors(err error) []string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		out := make([]string, 0, len(j.Unwrap()))
		for _, e := range j.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
