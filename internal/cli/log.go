// Package cli implements the boxrender command-line interface.
//
// This package provides commands for rendering scenes to PNG frames,
// exporting task graphs, serving renders over HTTP and managing the frame
// cache. The CLI is built using cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - render: Render a frame range to PNG files
//   - graph: Export the task graph of one frame as DOT, SVG or PNG
//   - serve: Run the HTTP render API
//   - history: List recent renders (MongoDB)
//   - cache: Manage the frame cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. At debug
// level the scheduler, cache and pipeline hooks are logged too. Loggers are
// passed through context.Context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/boxrender/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Rendered 48 frames (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// ctxKey is the type for context keys used in this package.
type ctxKey int

// loggerKey is the context key for storing a logger.
const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// =============================================================================
// Logging Hooks
// =============================================================================

// logHooks writes observability events to a logger at debug level.
type logHooks struct {
	logger *log.Logger
}

var (
	_ observability.TaskHooks     = logHooks{}
	_ observability.PipelineHooks = logHooks{}
	_ observability.CacheHooks    = logHooks{}
)

// registerLogHooks routes task, pipeline and cache events to l.
func registerLogHooks(l *log.Logger) {
	h := logHooks{logger: l.WithPrefix("hooks")}
	observability.SetTaskHooks(h)
	observability.SetPipelineHooks(h)
	observability.SetCacheHooks(h)
}

func (h logHooks) OnTaskQueued(_ context.Context, info observability.TaskInfo, deps int) {
	h.logger.Debug("task queued", "box", info.Box, "frame", info.Frame, "deps", deps)
}

func (h logHooks) OnTaskStart(_ context.Context, info observability.TaskInfo) {
	h.logger.Debug("task start", "box", info.Box, "frame", info.Frame)
}

func (h logHooks) OnTaskComplete(_ context.Context, info observability.TaskInfo, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("task failed", "box", info.Box, "frame", info.Frame, "duration", d, "err", err)
		return
	}
	h.logger.Debug("task done", "box", info.Box, "frame", info.Frame, "duration", d)
}

func (h logHooks) OnTaskCanceled(_ context.Context, info observability.TaskInfo) {
	h.logger.Debug("task canceled", "box", info.Box, "frame", info.Frame)
}

func (h logHooks) OnLoadStart(_ context.Context, source string) {
	h.logger.Debug("load start", "source", source)
}

func (h logHooks) OnLoadComplete(_ context.Context, source string, boxes int, d time.Duration, err error) {
	h.logger.Debug("load done", "source", source, "boxes", boxes, "duration", d, "err", err)
}

func (h logHooks) OnRenderStart(_ context.Context, frame int) {
	h.logger.Debug("frame start", "frame", frame)
}

func (h logHooks) OnRenderComplete(_ context.Context, frame int, d time.Duration, err error) {
	h.logger.Debug("frame done", "frame", frame, "duration", d, "err", err)
}

func (h logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}
