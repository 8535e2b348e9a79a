// Package scheduler runs render tasks on a worker pool.
//
// Capture is synchronous: [Scheduler.Submit] queues the task on the calling
// goroutine, so the owning box is only read there. Workers run the
// processing half (BeforeProcessing, Process, Finish) on captured data once
// the task's dependencies have signalled. [Scheduler.Wait] blocks until every
// submitted task is terminal.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/boxrender/pkg/observability"
	"github.com/matzehuels/boxrender/pkg/task"
)

// Labeler names a task for logs, hooks and traces.
type Labeler func(t *task.Task) string

// Options configures a Scheduler.
type Options struct {
	// Workers is the pool size. Zero uses GOMAXPROCS.
	Workers int
	// Config is passed to Task.Process. Nil uses task.DefaultConfig.
	Config *task.Config
	// Logger receives debug output. Nil discards.
	Logger *log.Logger
	// Trace records every submitted task and its dependencies.
	Trace bool
	// Label names tasks. Nil uses the task id.
	Label Labeler
}

// Scheduler owns submitted tasks until they reach a terminal state.
type Scheduler struct {
	pool   *pool
	cfg    task.Config
	logger *log.Logger
	label  Labeler
	trace  *Trace

	mu    sync.Mutex
	live  map[uuid.UUID]*task.Task
	idle  chan struct{}
	errs  []error
	stats Stats
}

// Stats counts task outcomes.
type Stats struct {
	Submitted int
	Finished  int
	Canceled  int
	Failed    int
}

// New starts a scheduler.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	label := opts.Label
	if label == nil {
		label = func(t *task.Task) string { return t.ID().String()[:8] }
	}
	cfg := task.DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	s := &Scheduler{
		pool:   newPool(opts.Workers),
		cfg:    cfg,
		logger: logger,
		label:  label,
		live:   make(map[uuid.UUID]*task.Task),
		idle:   make(chan struct{}),
	}
	close(s.idle)
	if opts.Trace {
		s.trace = &Trace{}
	}
	return s
}

func (s *Scheduler) info(t *task.Task) observability.TaskInfo {
	return observability.TaskInfo{
		ID:    t.ID().String(),
		Box:   s.label(t),
		Frame: t.Frame(),
	}
}

// ErrAlreadySubmitted is returned when a task is submitted twice.
var ErrAlreadySubmitted = errors.New("task already submitted")

// Submit captures t and schedules it once its dependencies signal. The
// task is tracked from here until it is terminal, even if queuing fails.
func (s *Scheduler) Submit(t *task.Task) error {
	if !s.track(t) {
		return fmt.Errorf("%w: %s", ErrAlreadySubmitted, s.label(t))
	}
	if err := t.Queue(s.ready); err != nil {
		return fmt.Errorf("queue %s: %w", s.label(t), err)
	}
	deps := t.Dependencies()
	if s.trace != nil {
		s.trace.add(t, s.label(t), deps)
	}
	s.logger.Debug("task queued", "box", s.label(t), "frame", t.Frame(), "deps", len(deps))
	observability.Tasks().OnTaskQueued(context.Background(), s.info(t), len(deps))
	return nil
}

func (s *Scheduler) track(t *task.Task) bool {
	s.mu.Lock()
	if _, ok := s.live[t.ID()]; ok {
		s.mu.Unlock()
		return false
	}
	if len(s.live) == 0 {
		s.idle = make(chan struct{})
	}
	s.live[t.ID()] = t
	s.stats.Submitted++
	s.mu.Unlock()

	t.AddDependent(task.Dependent{
		Finished: func() { s.untrack(t, false) },
		Canceled: func() { s.untrack(t, true) },
	})
	return true
}

func (s *Scheduler) untrack(t *task.Task, canceled bool) {
	if canceled {
		observability.Tasks().OnTaskCanceled(context.Background(), s.info(t))
	}
	if s.trace != nil {
		s.trace.finish(t.ID(), t.State())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[t.ID()]; !ok {
		return
	}
	if canceled {
		s.stats.Canceled++
	} else {
		s.stats.Finished++
	}
	delete(s.live, t.ID())
	if len(s.live) == 0 {
		close(s.idle)
	}
}

// ready is the task's ready callback; it may run on any goroutine.
func (s *Scheduler) ready(t *task.Task) {
	if !s.pool.submit(func() { s.run(t) }) {
		t.Cancel()
	}
}

func (s *Scheduler) run(t *task.Task) {
	if err := t.BeforeProcessing(); err != nil {
		if !errors.Is(err, task.ErrCanceled) {
			s.fail(t, err)
		}
		return
	}

	ctx := context.Background()
	info := s.info(t)
	observability.Tasks().OnTaskStart(ctx, info)
	start := time.Now()
	err := s.process(t)
	observability.Tasks().OnTaskComplete(ctx, info, time.Since(start), err)

	switch {
	case errors.Is(err, task.ErrCanceled):
		return
	case err != nil:
		s.fail(t, err)
		return
	}
	if err := t.Finish(); err != nil && !errors.Is(err, task.ErrCanceled) {
		s.fail(t, err)
	}
	s.logger.Debug("task finished", "box", info.Box, "frame", info.Frame, "took", time.Since(start))
}

// process runs Task.Process, turning a drawer panic into an error.
func (s *Scheduler) process(t *task.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing: %v", r)
		}
	}()
	return t.Process(s.cfg)
}

// fail records err and cancels t so that its dependents proceed.
func (s *Scheduler) fail(t *task.Task, err error) {
	s.logger.Error("task failed", "box", s.label(t), "frame", t.Frame(), "err", err)
	s.mu.Lock()
	s.errs = append(s.errs, fmt.Errorf("%s frame %d: %w", s.label(t), t.Frame(), err))
	s.stats.Failed++
	s.mu.Unlock()
	t.Cancel()
}

// Wait blocks until every submitted task is terminal or ctx is done. It
// returns the processing errors collected so far, joined.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.Err()
}

// Err returns the processing errors collected so far.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errs...)
}

// Stats returns a snapshot of the outcome counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Trace returns the recorded trace, or nil if tracing is off.
func (s *Scheduler) Trace() *Trace { return s.trace }

// CancelAll cancels every live task.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	live := make([]*task.Task, 0, len(s.live))
	for _, t := range s.live {
		live = append(live, t)
	}
	s.mu.Unlock()

	for _, t := range live {
		t.Cancel()
	}
}

// Close stops the workers. Tasks that can no longer run are canceled.
func (s *Scheduler) Close() {
	s.pool.close()
	s.CancelAll()
}

// Workers returns the pool size.
func (s *Scheduler) Workers() int { return s.pool.workers }
