package task

import "github.com/google/uuid"

// Owner is the box side of the render protocol.
type Owner interface {
	// CreateRenderData returns a fresh task for this box.
	CreateRenderData() *Task
	// SetupRenderData fills in t's parameters for the given relative frame.
	// It runs synchronously inside [Task.Queue] and may add dependencies,
	// underlays, effects and customizers.
	SetupRenderData(frame int, t *Task)
	// RenderDataFinished delivers a finished task whose owner is its target.
	RenderDataFinished(t *Task)
	// NullifyCurrentRenderData releases the box's current-render slot for
	// frame if the task occupying it has dropped its reference.
	NullifyCurrentRenderData(frame int)
	// UpdateCurrentPreviewDataFromRenderData publishes t's captured
	// parameters as the box's preview data.
	UpdateCurrentPreviewDataFromRenderData(t *Task)
	// ScheduleTask hands t to the scheduler.
	ScheduleTask(t *Task)
}

// Resolver maps box ids to live owners.
type Resolver interface {
	Resolve(id uuid.UUID) (Owner, bool)
}

// Handle is a non-owning reference to a box.
type Handle struct {
	ID       uuid.UUID
	Resolver Resolver
}

// Resolve returns the owner if it still exists.
func (h Handle) Resolve() (Owner, bool) {
	if h.Resolver == nil || h.ID == uuid.Nil {
		return nil, false
	}
	return h.Resolver.Resolve(h.ID)
}

// Valid reports whether the handle currently resolves.
func (h Handle) Valid() bool {
	_, ok := h.Resolve()
	return ok
}
