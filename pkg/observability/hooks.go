// Package observability provides hooks for metrics, tracing, and logging.
//
// Render code calls these hooks without depending on a particular backend.
// The CLI registers logging implementations at startup; everything else sees
// the no-op defaults.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetTaskHooks(&myTaskHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Set functions return the hooks they replace, so a caller can install
// hooks for the duration of one operation:
//
//	prev := observability.SetCacheHooks(observability.TeeCacheHooks(observability.Cache(), mine))
//	defer observability.SetCacheHooks(prev)
//
// Libraries call hooks to emit events:
//
//	observability.Tasks().OnTaskStart(ctx, info)
//	// ... process ...
//	observability.Tasks().OnTaskComplete(ctx, info, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Task Hooks
// =============================================================================

// TaskInfo identifies a render task in hook calls.
type TaskInfo struct {
	ID    string
	Box   string
	Frame int
}

// TaskHooks receives events from the task scheduler.
type TaskHooks interface {
	// OnTaskQueued fires after a task has been captured.
	OnTaskQueued(ctx context.Context, info TaskInfo, dependencies int)

	// OnTaskStart fires when a worker begins processing.
	OnTaskStart(ctx context.Context, info TaskInfo)

	// OnTaskComplete fires after processing, with the processing error if any.
	OnTaskComplete(ctx context.Context, info TaskInfo, duration time.Duration, err error)

	// OnTaskCanceled fires when a task is canceled before finishing.
	OnTaskCanceled(ctx context.Context, info TaskInfo)
}

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the render pipeline.
type PipelineHooks interface {
	// Scene load events
	OnLoadStart(ctx context.Context, source string)
	OnLoadComplete(ctx context.Context, source string, boxes int, duration time.Duration, err error)

	// Frame render events
	OnRenderStart(ctx context.Context, frame int)
	OnRenderComplete(ctx context.Context, frame int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP render API.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records the response status and handling time.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopTaskHooks is a no-op implementation of TaskHooks.
type NoopTaskHooks struct{}

func (NoopTaskHooks) OnTaskQueued(context.Context, TaskInfo, int)                    {}
func (NoopTaskHooks) OnTaskStart(context.Context, TaskInfo)                          {}
func (NoopTaskHooks) OnTaskComplete(context.Context, TaskInfo, time.Duration, error) {}
func (NoopTaskHooks) OnTaskCanceled(context.Context, TaskInfo)                       {}

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnLoadStart(context.Context, string)                               {}
func (NoopPipelineHooks) OnLoadComplete(context.Context, string, int, time.Duration, error) {}
func (NoopPipelineHooks) OnRenderStart(context.Context, int)                                {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, int, time.Duration, error)       {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Fan-out
// =============================================================================

// TeePipelineHooks returns PipelineHooks that forward every event to each of
// hs in order.
func TeePipelineHooks(hs ...PipelineHooks) PipelineHooks { return pipelineTee(hs) }

// TeeCacheHooks returns CacheHooks that forward every event to each of hs in
// order.
func TeeCacheHooks(hs ...CacheHooks) CacheHooks { return cacheTee(hs) }

type pipelineTee []PipelineHooks

func (t pipelineTee) OnLoadStart(ctx context.Context, source string) {
	for _, h := range t {
		h.OnLoadStart(ctx, source)
	}
}

func (t pipelineTee) OnLoadComplete(ctx context.Context, source string, boxes int, d time.Duration, err error) {
	for _, h := range t {
		h.OnLoadComplete(ctx, source, boxes, d, err)
	}
}

func (t pipelineTee) OnRenderStart(ctx context.Context, frame int) {
	for _, h := range t {
		h.OnRenderStart(ctx, frame)
	}
}

func (t pipelineTee) OnRenderComplete(ctx context.Context, frame int, d time.Duration, err error) {
	for _, h := range t {
		h.OnRenderComplete(ctx, frame, d, err)
	}
}

type cacheTee []CacheHooks

func (t cacheTee) OnCacheHit(ctx context.Context, keyType string) {
	for _, h := range t {
		h.OnCacheHit(ctx, keyType)
	}
}

func (t cacheTee) OnCacheMiss(ctx context.Context, keyType string) {
	for _, h := range t {
		h.OnCacheMiss(ctx, keyType)
	}
}

func (t cacheTee) OnCacheSet(ctx context.Context, keyType string, size int) {
	for _, h := range t {
		h.OnCacheSet(ctx, keyType, size)
	}
}

// =============================================================================
// Global Hook Registry
// =============================================================================

// slot holds one registered hook implementation.
type slot[T comparable] struct {
	mu   sync.RWMutex
	cur  T
	noop T
}

func newSlot[T comparable](noop T) *slot[T] { return &slot[T]{cur: noop, noop: noop} }

func (s *slot[T]) get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// swap installs h and returns the previous hooks. A nil h is ignored.
func (s *slot[T]) swap(h T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cur
	var zero T
	if h != zero {
		s.cur = h
	}
	return prev
}

func (s *slot[T]) reset() {
	s.mu.Lock()
	s.cur = s.noop
	s.mu.Unlock()
}

var (
	taskHooks     = newSlot[TaskHooks](NoopTaskHooks{})
	pipelineHooks = newSlot[PipelineHooks](NoopPipelineHooks{})
	cacheHooks    = newSlot[CacheHooks](NoopCacheHooks{})
	httpHooks     = newSlot[HTTPHooks](NoopHTTPHooks{})
)

// SetTaskHooks registers task hooks and returns the ones they replace.
// Nil is ignored.
func SetTaskHooks(h TaskHooks) TaskHooks { return taskHooks.swap(h) }

// SetPipelineHooks registers pipeline hooks and returns the ones they
// replace. Nil is ignored.
func SetPipelineHooks(h PipelineHooks) PipelineHooks { return pipelineHooks.swap(h) }

// SetCacheHooks registers cache hooks and returns the ones they replace.
// Nil is ignored.
func SetCacheHooks(h CacheHooks) CacheHooks { return cacheHooks.swap(h) }

// SetHTTPHooks registers HTTP hooks and returns the ones they replace.
// Nil is ignored.
func SetHTTPHooks(h HTTPHooks) HTTPHooks { return httpHooks.swap(h) }

// Tasks returns the registered task hooks. Pipeline, Cache and HTTP do the
// same for their kinds.
func Tasks() TaskHooks        { return taskHooks.get() }
func Pipeline() PipelineHooks { return pipelineHooks.get() }
func Cache() CacheHooks       { return cacheHooks.get() }
func HTTP() HTTPHooks         { return httpHooks.get() }

// Reset restores all hooks to their no-op defaults.
func Reset() {
	taskHooks.reset()
	pipelineHooks.reset()
	cacheHooks.reset()
	httpHooks.reset()
}
