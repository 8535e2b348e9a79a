package task

import (
	"fmt"
	"image"

	"github.com/google/uuid"

	"github.com/matzehuels/boxrender/pkg/geom"
	"github.com/matzehuels/boxrender/pkg/raster"
)

func (t *Task) transitionLocked(to State) error {
	if t.state == StateCanceled && to != StateCanceled {
		return ErrCanceled
	}
	if !CanTransition(t.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.state, to)
	}
	t.state = to
	return nil
}

// Queue captures the task. It resolves the owner, lets it set up the task
// for the render frame, applies customizers in order and, unless data-set is
// delayed, publishes preview data. When all dependencies have signalled,
// ready is called exactly once with t; it may run before Queue returns.
func (t *Task) Queue(ready func(*Task)) error {
	t.mu.Lock()
	if err := t.transitionLocked(StateQueued); err != nil {
		t.mu.Unlock()
		return err
	}
	t.seq = seqCounter.Add(1)
	t.ready = ready
	frame := t.renderFrameLocked()
	t.mu.Unlock()

	owner, ok := t.owner.Resolve()
	if !ok {
		t.Cancel()
		return ErrOwnerGone
	}
	owner.SetupRenderData(frame, t)

	t.mu.Lock()
	if !t.customized {
		t.params = Customize(t.params, t.customizers...)
		t.customized = true
	}
	notify := !t.delayDataSet && t.state == StateQueued
	t.mu.Unlock()

	if notify {
		owner.UpdateCurrentPreviewDataFromRenderData(t)
	}
	t.release()
	return nil
}

// DataSet publishes preview data for a task queued with a delayed data set.
func (t *Task) DataSet() {
	if t.State() == StateCanceled {
		return
	}
	if owner, ok := t.owner.Resolve(); ok {
		owner.UpdateCurrentPreviewDataFromRenderData(t)
	}
}

// BeforeProcessing moves the task to Processing. For frame-change renders
// the owner's current slot is released first so that a playhead move does
// not pin stale data.
func (t *Task) BeforeProcessing() error {
	t.mu.Lock()
	if err := t.transitionLocked(StateProcessing); err != nil {
		t.mu.Unlock()
		return err
	}
	nullify := t.reason == ReasonFrameChange && t.refInOwner
	if nullify {
		t.refInOwner = false
	}
	frame := t.frame
	t.mu.Unlock()

	if nullify {
		if owner, ok := t.owner.Resolve(); ok {
			owner.NullifyCurrentRenderData(frame)
		}
	}
	return nil
}

// Process renders the task. It runs the job if one is set, computes the
// global rectangle (covering finished underlays), allocates a buffer of
// that size, clears it with the erase colour, composites underlays, runs
// the drawer and applies effects. Tasks whose opacity is at
// or below cfg.SkipOpacity still get a global rectangle but no image.
//
// If the task is canceled while processing, the output is discarded and
// ErrCanceled is returned.
func (t *Task) Process(cfg Config) error {
	t.mu.Lock()
	if t.state != StateProcessing {
		s := t.state
		t.mu.Unlock()
		if s == StateCanceled {
			return ErrCanceled
		}
		return fmt.Errorf("%w: process in state %s", ErrInvalidTransition, s)
	}
	p := t.params
	others := append([]geom.Rect(nil), t.otherRects...)
	drawer := t.drawer
	job := t.job
	effects := append([]raster.Effect(nil), t.effects...)
	underlays := append([]*Task(nil), t.underlays...)
	t.mu.Unlock()

	if job != nil {
		if err := job(); err != nil {
			return err
		}
	}
	// Finished underlays must fit in the buffer they are composited into.
	for _, u := range underlays {
		if u.State() == StateFinished {
			others = append(others, u.GlobalRect())
		}
	}

	res := p.Resolution
	if res <= 0 {
		res = 1
	}
	margin := p.Margin.Add(geom.Uniform(raster.EffectsMargin(res, effects)))
	rect, px := geom.GlobalRect(geom.GlobalRectInput{
		Relative:   p.Relative,
		Resolution: res,
		Transform:  p.Transform,
		Others:     others,
		Margin:     margin,
		MaxBounds:  p.MaxBounds,
	})

	if !raster.FitsSurface(rect.Width(), rect.Height()) {
		return fmt.Errorf("%w: %.0fx%.0f", ErrTooLarge, rect.Width(), rect.Height())
	}

	var img *image.NRGBA
	if !px.IsEmpty() && p.Opacity > cfg.SkipOpacity {
		s := raster.NewSurface(px)
		s.Clear(p.Erase)
		for _, u := range underlays {
			u.compositeOnto(s)
		}
		if drawer != nil {
			drawer.Draw(s, p, p.ScaledTransform())
		}
		img = raster.ApplyEffects(s.Snapshot(), res, effects)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateCanceled {
		return ErrCanceled
	}
	t.globalRect = rect
	t.pixelRect = px
	t.image = img
	return nil
}

// compositeOnto draws t's output onto s with t's opacity and blend mode.
func (t *Task) compositeOnto(s *raster.Surface) {
	t.mu.Lock()
	img, px, p, st := t.image, t.pixelRect, t.params, t.state
	t.mu.Unlock()
	if st != StateFinished || img == nil {
		return
	}
	s.Composite(img, px.Min(), p.Opacity, p.Blend)
}

// Finish completes a processed task. The global rectangle is added to the
// motion-blur target, the task is delivered to its owner when the owner is
// the target, and dependents are released.
func (t *Task) Finish() error {
	t.mu.Lock()
	if err := t.transitionLocked(StateFinished); err != nil {
		t.mu.Unlock()
		return err
	}
	target := t.motionBlurTarget
	rect := t.globalRect
	deliver := t.ownerIsTarget
	deps := t.takeDependentsLocked()
	t.mu.Unlock()

	if target != nil && !rect.IsEmpty() {
		target.addOtherRect(rect)
	}
	if deliver {
		if owner, ok := t.owner.Resolve(); ok {
			owner.RenderDataFinished(t)
		}
	}
	for _, d := range deps {
		if d.Finished != nil {
			d.Finished()
		}
	}
	close(t.done)
	return nil
}

// Cancel aborts the task. It is a no-op on terminal tasks. A task holding a
// reference in its owner releases the owner's slot exactly once; the output
// buffer is dropped and nothing is delivered.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.state.IsTerminal() {
		t.mu.Unlock()
		return
	}
	t.state = StateCanceled
	nullify := t.refInOwner
	t.refInOwner = false
	t.image = nil
	frame := t.frame
	deps := t.takeDependentsLocked()
	t.mu.Unlock()

	if nullify {
		if owner, ok := t.owner.Resolve(); ok {
			owner.NullifyCurrentRenderData(frame)
		}
	}
	for _, d := range deps {
		if d.Canceled != nil {
			d.Canceled()
		}
	}
	close(t.done)
}

// ScheduleNow hands the task to its owner's scheduler. It reports false if
// the owner is gone, in which case the task is canceled.
func (t *Task) ScheduleNow() bool {
	owner, ok := t.owner.Resolve()
	if !ok {
		t.Cancel()
		return false
	}
	owner.ScheduleTask(t)
	return true
}

// Copy returns a finished snapshot of t that can be consumed without
// re-rendering. The copy has its own id and is not delivered to the
// owner. Pixels are deep-copied. It returns nil if t has not
// finished or its owner no longer resolves.
func (t *Task) Copy() *Task {
	if !t.owner.Valid() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateFinished {
		return nil
	}
	c := &Task{
		id:            uuid.New(),
		owner:         t.owner,
		state:         StateFinished,
		seq:           t.seq,
		frame:         t.frame,
		customFrame:   t.customFrame,
		reason:        t.reason,
		boxStateID:    t.boxStateID,
		ownerIsTarget: false,
		customized:    true,
		copied:        true,
		params:        t.params,
		readyFired:    true,
		done:          make(chan struct{}),
		globalRect:    t.globalRect,
		pixelRect:     t.pixelRect,
		image:         raster.Clone(t.image),
	}
	close(c.done)
	return c
}
