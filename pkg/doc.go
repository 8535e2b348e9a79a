// Package pkg holds the libraries behind boxrender.
//
// # Overview
//
// boxrender renders scenes of animated boxes (shapes, images, image
// sequences, text and groups) to PNG frames. Every box turns a frame into a
// render task; tasks capture their parameters up front, wait for the tasks
// they depend on, rasterize on a worker pool and are delivered back to
// their box. The packages split that work as follows:
//
//  1. [geom] - Matrices, rectangles and the global rect computation
//  2. [raster] - Paths, paints, blend modes, effects and PNG I/O
//  3. [task] - The render task: lifecycle, dependencies, customizers
//  4. [scheduler] - Worker pool, readiness tracking and task tracing
//  5. [scene] - Boxes, animation curves, image sources and TOML scenes
//  6. [pipeline] - Orchestration (load → schedule → composite → encode)
//
// Around the pipeline sit [cache] (file, Redis), [history] (MongoDB),
// [server] (HTTP API), [dag] with [render/nodelink] (task graph export),
// [fonts], [errors], [observability] and [buildinfo].
//
// # Architecture
//
// The data flow for one frame:
//
//	scene.toml
//	     ↓
//	[scene] package (decode boxes, hash sources)
//	     ↓
//	[task] package (one task per visible box, dependencies wired)
//	     ↓
//	[scheduler] package (run ready tasks on workers)
//	     ↓
//	[scene] package (composite delivered results)
//	     ↓
//	PNG
//
// # Quick Start
//
// Render the frames of a scene file:
//
//	import (
//	    "context"
//	    "os"
//	    "github.com/matzehuels/boxrender/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	defer runner.Close()
//
//	res, err := runner.Render(context.Background(), pipeline.Options{
//	    ScenePath: "scene.toml",
//	    Frames:    []int{0, 1, 2},
//	})
//	if err != nil {
//	    return err
//	}
//	for _, f := range res.Frames {
//	    os.WriteFile(fmt.Sprintf("frame_%04d.png", f.Number), f.PNG, 0o644)
//	}
//
// Export the task graph of a frame instead:
//
//	svg, err := runner.Graph(ctx, pipeline.Options{
//	    ScenePath:   "scene.toml",
//	    GraphFormat: pipeline.FormatSVG,
//	}, 12)
//
// # Concurrency
//
// A [scheduler.Scheduler] is safe for concurrent use and is shared by all
// frames of a render. Boxes and tasks guard their own state; a task's
// parameters are frozen once it is queued, so workers never read a box
// while it is being edited.
//
// [geom]: github.com/matzehuels/boxrender/pkg/geom
// [raster]: github.com/matzehuels/boxrender/pkg/raster
// [task]: github.com/matzehuels/boxrender/pkg/task
// [scheduler]: github.com/matzehuels/boxrender/pkg/scheduler
// [scheduler.Scheduler]: github.com/matzehuels/boxrender/pkg/scheduler#Scheduler
// [scene]: github.com/matzehuels/boxrender/pkg/scene
// [pipeline]: github.com/matzehuels/boxrender/pkg/pipeline
// [cache]: github.com/matzehuels/boxrender/pkg/cache
// [history]: github.com/matzehuels/boxrender/pkg/history
// [server]: github.com/matzehuels/boxrender/pkg/server
// [dag]: github.com/matzehuels/boxrender/pkg/dag
// [render/nodelink]: github.com/matzehuels/boxrender/pkg/render/nodelink
// [fonts]: github.com/matzehuels/boxrender/pkg/fonts
// [errors]: github.com/matzehuels/boxrender/pkg/errors
// [observability]: github.com/matzehuels/boxrender/pkg/observability
// [buildinfo]: github.com/matzehuels/boxrender/pkg/buildinfo
package pkg
