package task

import (
	"fmt"

	"github.com/matzehuels/boxrender/pkg/geom"
)

// Dependent is a one-shot completion callback pair. Exactly one of the two
// functions is called, once. Either may be nil.
type Dependent struct {
	Finished func()
	Canceled func()
}

// AddDependent registers d. If t is already terminal, the matching callback
// runs immediately on the calling goroutine.
func (t *Task) AddDependent(d Dependent) {
	t.mu.Lock()
	switch t.state {
	case StateFinished:
		t.mu.Unlock()
		if d.Finished != nil {
			d.Finished()
		}
		return
	case StateCanceled:
		t.mu.Unlock()
		if d.Canceled != nil {
			d.Canceled()
		}
		return
	}
	t.dependents = append(t.dependents, d)
	t.mu.Unlock()
}

// DependOn makes t wait for dep. Finishing or canceling dep each release
// the edge; a canceled dependency does not cancel t.
func (t *Task) DependOn(dep *Task) error {
	if dep == nil {
		return nil
	}
	if dep == t {
		return ErrSelfDependency
	}
	t.mu.Lock()
	if !t.capturing() {
		s := t.state
		t.mu.Unlock()
		return fmt.Errorf("%w: depend in state %s", ErrInvalidTransition, s)
	}
	t.pending++
	t.deps = append(t.deps, dep.id)
	t.mu.Unlock()

	dep.AddDependent(Dependent{Finished: t.release, Canceled: t.release})
	return nil
}

// AddUnderlay makes t depend on u and composite u's output beneath its own
// drawing, using u's opacity and blend mode.
func (t *Task) AddUnderlay(u *Task) error {
	if err := t.DependOn(u); err != nil {
		return err
	}
	t.mu.Lock()
	t.underlays = append(t.underlays, u)
	t.mu.Unlock()
	return nil
}

// AddMotionSample registers sample as a motion-blur sample of t. The sample
// contributes its global rectangle to t when it finishes and is composited
// as an underlay. The sample is not delivered to its owner.
func (t *Task) AddMotionSample(sample *Task) error {
	sample.mu.Lock()
	sample.motionBlurTarget = t
	sample.ownerIsTarget = false
	sample.refInOwner = false
	sample.mu.Unlock()
	return t.AddUnderlay(sample)
}

func (t *Task) addOtherRect(r geom.Rect) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() {
		t.otherRects = append(t.otherRects, r)
	}
}

// release drops one pending reference and fires the ready callback when
// none remain.
func (t *Task) release() {
	t.mu.Lock()
	t.pending--
	fire := t.pending == 0 && t.state == StateQueued && !t.readyFired
	if fire {
		t.readyFired = true
	}
	ready := t.ready
	t.mu.Unlock()

	if fire && ready != nil {
		ready(t)
	}
}

// takeDependentsLocked detaches the registered dependents.
func (t *Task) takeDependentsLocked() []Dependent {
	ds := t.dependents
	t.dependents = nil
	return ds
}
