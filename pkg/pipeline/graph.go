package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/boxrender/pkg/cache"
	"github.com/matzehuels/boxrender/pkg/dag"
	"github.com/matzehuels/boxrender/pkg/errors"
	"github.com/matzehuels/boxrender/pkg/observability"
	"github.com/matzehuels/boxrender/pkg/render/nodelink"
	"github.com/matzehuels/boxrender/pkg/scheduler"
	"github.com/matzehuels/boxrender/pkg/task"
)

// GraphWithCacheInfo renders frame with tracing on and exports the task
// graph in opts.GraphFormat. It reports whether the export came from the
// cache.
func (r *Runner) GraphWithCacheInfo(ctx context.Context, opts Options, frame int) ([]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	l, err := r.Load(ctx, opts)
	if err != nil {
		return nil, false, fmt.Errorf("load: %w", err)
	}
	s := l.Scene.Settings()
	if err := errors.ValidateFrame(frame, s.Start, s.End); err != nil {
		return nil, false, err
	}

	key := r.Keyer.GraphKey(l.Hash, frame, cache.GraphKeyOpts{
		Format:   opts.GraphFormat,
		Detailed: opts.Detailed,
	})
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "graph")
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "graph")
	}

	g, err := r.TraceFrame(ctx, l, frame, opts)
	if err != nil {
		return nil, false, err
	}
	data, err := ExportGraph(g, opts.GraphFormat, opts.Detailed)
	if err != nil {
		return nil, false, err
	}

	if err := r.Cache.Set(ctx, key, data, r.GraphTTL); err == nil {
		observability.Cache().OnCacheSet(ctx, "graph", len(data))
	}
	return data, false, nil
}

// Graph is a convenience wrapper that calls GraphWithCacheInfo and discards
// the cache hit info.
func (r *Runner) Graph(ctx context.Context, opts Options, frame int) ([]byte, error) {
	data, _, err := r.GraphWithCacheInfo(ctx, opts, frame)
	return data, err
}

// TraceFrame renders frame of l on a tracing scheduler and returns the
// task graph. Edges point from each task to the tasks it waited on.
func (r *Runner) TraceFrame(ctx context.Context, l *Loaded, frame int, opts Options) (*dag.DAG, error) {
	r.applyLogger(&opts)
	sch := scheduler.New(scheduler.Options{
		Workers: opts.Workers,
		Config:  opts.TaskConfig(),
		Logger:  opts.Logger,
		Label:   l.Scene.Label,
		Trace:   true,
	})
	defer sch.Close()
	l.Scene.Attach(sch)

	l.Scene.RequestFrame(frame, task.ReasonFrameChange)
	if err := sch.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeCanceled, err, "trace frame %d", frame)
		}
		opts.Logger.Warn("task failures while tracing", "frame", frame, "err", err)
	}

	g, err := sch.Trace().DAG()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "build task graph")
	}
	opts.Logger.Debug("traced frame",
		"frame", frame,
		"tasks", g.NodeCount(),
		"edges", g.EdgeCount(),
		"roots", len(g.Sources()),
		"critical_path", len(g.CriticalPath()))
	return g, nil
}

// ExportGraph encodes a task graph as DOT, SVG or PNG.
func ExportGraph(g *dag.DAG, format string, detailed bool) ([]byte, error) {
	if err := ValidateGraphFormat(format); err != nil {
		return nil, err
	}
	dot := nodelink.ToDOT(g, nodelink.Options{Detailed: detailed})
	switch format {
	case FormatSVG:
		return nodelink.RenderSVG(dot)
	case FormatPNG:
		return nodelink.RenderPNG(dot)
	default:
		return []byte(dot), nil
	}
}
