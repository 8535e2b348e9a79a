package task

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a life-cycle method is called in
	// a state that does not allow it, e.g. queuing a task twice.
	ErrInvalidTransition = errors.New("invalid task state transition")

	// ErrCanceled is returned by [Task.Process] and [Task.Finish] when the
	// task was canceled concurrently. The output, if any, was discarded.
	ErrCanceled = errors.New("task canceled")

	// ErrTooLarge is returned by [Task.Process] when the task's device
	// bounds exceed [raster.MaxSurfaceSide] on either side.
	ErrTooLarge = errors.New("task bounds exceed maximum surface size")

	// ErrOwnerGone is returned by [Task.Queue] when the owning box no longer
	// resolves. The task is canceled.
	ErrOwnerGone = errors.New("task owner no longer exists")

	// ErrSelfDependency is returned by [Task.DependOn] for a self edge.
	ErrSelfDependency = errors.New("task cannot depend on itself")
)

// State is a task's life-cycle state.
type State int32

const (
	StateCreated State = iota
	StateQueued
	StateProcessing
	StateFinished
	StateCanceled
)

var stateNames = [...]string{
	StateCreated:    "created",
	StateQueued:     "queued",
	StateProcessing: "processing",
	StateFinished:   "finished",
	StateCanceled:   "canceled",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// IsTerminal reports whether s is Finished or Canceled.
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateCanceled
}

// allowed lists the legal successor states. Terminal states have none.
var allowed = map[State][]State{
	StateCreated:    {StateQueued, StateCanceled},
	StateQueued:     {StateProcessing, StateCanceled},
	StateProcessing: {StateFinished, StateCanceled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Reason records why a render was requested.
type Reason int

const (
	// ReasonUserChange is an edit to the box; any existing current render
	// data stays referenced until the new task finishes.
	ReasonUserChange Reason = iota
	// ReasonFrameChange is a playhead move. The box's current slot is
	// released as soon as processing starts.
	ReasonFrameChange
)

func (r Reason) String() string {
	switch r {
	case ReasonFrameChange:
		return "frame-change"
	case ReasonUserChange:
		return "user-change"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}
