package task

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/matzehuels/boxrender/pkg/geom"
	"github.com/matzehuels/boxrender/pkg/raster"
)

// seqCounter orders tasks by the time they were queued.
var seqCounter atomic.Uint64

// Task is a deferred render of one box at one relative frame.
//
// All methods are safe for concurrent use. Setters are meant for the
// capture phase (before and during [Task.Queue]); later calls are ignored
// once the task is processing.
type Task struct {
	id    uuid.UUID
	owner Handle

	mu    sync.Mutex
	state State
	seq   uint64

	frame       int
	customFrame *int
	reason      Reason
	boxStateID  uint64

	ownerIsTarget bool
	refInOwner    bool
	delayDataSet  bool
	customized    bool
	copied        bool

	params      Params
	customizers []Customizer
	drawer      Drawer
	job         func() error
	effects     []raster.Effect
	underlays   []*Task

	motionBlurTarget *Task
	otherRects       []geom.Rect

	pending    int
	ready      func(*Task)
	readyFired bool
	dependents []Dependent
	deps       []uuid.UUID
	done       chan struct{}

	globalRect geom.Rect
	pixelRect  geom.IRect
	image      *image.NRGBA
}

// New returns a task in the Created state owned by h. The task starts with
// default parameters, delivers to its owner and holds a reference in the
// owner's current-render slot.
func New(h Handle) *Task {
	return &Task{
		id:            uuid.New(),
		owner:         h,
		params:        DefaultParams(),
		ownerIsTarget: true,
		refInOwner:    true,
		// The guard keeps the task from becoming ready while Queue is
		// still adding dependencies.
		pending: 1,
		done:    make(chan struct{}),
	}
}

// ============================================================================
// Accessors
// ============================================================================

func (t *Task) ID() uuid.UUID { return t.id }

func (t *Task) Owner() Handle { return t.owner }

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Seq is the queue sequence number. It is zero until the task is queued.
func (t *Task) Seq() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Frame is the relative frame the task was requested for.
func (t *Task) Frame() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frame
}

// RenderFrame is the frame passed to SetupRenderData: the custom frame if
// one is set, the requested frame otherwise.
func (t *Task) RenderFrame() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.renderFrameLocked()
}

func (t *Task) renderFrameLocked() int {
	if t.customFrame != nil {
		return *t.customFrame
	}
	return t.frame
}

func (t *Task) Reason() Reason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

func (t *Task) BoxStateID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.boxStateID
}

// Params returns the captured parameters.
func (t *Task) Params() Params {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.params
}

// Image returns the rendered output, or nil if the task has not finished,
// was canceled, or drew nothing. The image must not be modified.
func (t *Task) Image() *image.NRGBA {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.image
}

// GlobalRect returns the real-valued device rectangle of the output.
func (t *Task) GlobalRect() geom.Rect {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.globalRect
}

// PixelRect returns the integer device rectangle the image covers.
func (t *Task) PixelRect() geom.IRect {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pixelRect
}

// IsCopy reports whether the task was produced by [Task.Copy].
func (t *Task) IsCopy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.copied
}

// RefInOwner reports whether the task still occupies its owner's slot.
func (t *Task) RefInOwner() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refInOwner
}

// Dependencies returns the ids of the tasks t waits on, in order added.
func (t *Task) Dependencies() []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]uuid.UUID(nil), t.deps...)
}

// Underlays returns the tasks composited beneath t's own drawing.
func (t *Task) Underlays() []*Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Task(nil), t.underlays...)
}

// Done is closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// ============================================================================
// Capture-phase setters
// ============================================================================

// capturing reports whether setters still apply.
func (t *Task) capturing() bool {
	return t.state == StateCreated || t.state == StateQueued
}

func (t *Task) SetFrame(frame int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateCreated {
		t.frame = frame
	}
}

// SetCustomFrame makes SetupRenderData see frame instead of the requested
// frame. Motion-blur samples use this to render earlier sub-frames.
func (t *Task) SetCustomFrame(frame int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateCreated {
		t.customFrame = &frame
	}
}

func (t *Task) SetReason(r Reason) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() {
		t.reason = r
	}
}

func (t *Task) SetBoxStateID(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() {
		t.boxStateID = id
	}
}

// SetOwnerIsTarget controls whether the finished task is delivered to its
// owner. Helper tasks such as motion-blur samples set it to false.
func (t *Task) SetOwnerIsTarget(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() {
		t.ownerIsTarget = v
	}
}

// SetRefInOwner records whether the task occupies the owner's slot.
func (t *Task) SetRefInOwner(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() {
		t.refInOwner = v
	}
}

// SetDelayDataSet suppresses the preview signal at queue time. The caller
// must invoke [Task.DataSet] later.
func (t *Task) SetDelayDataSet(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() {
		t.delayDataSet = v
	}
}

func (t *Task) SetParams(p Params) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() {
		t.params = p
	}
}

// UpdateParams edits the parameters in place.
func (t *Task) UpdateParams(fn func(*Params)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() {
		fn(&t.params)
	}
}

func (t *Task) SetDrawer(d Drawer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() {
		t.drawer = d
	}
}

// SetJob installs non-raster work, such as decoding a source file, that
// runs at the start of Process. A failing job fails the task.
func (t *Task) SetJob(job func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() {
		t.job = job
	}
}

func (t *Task) AddEffect(e raster.Effect) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() && e != nil {
		t.effects = append(t.effects, e)
	}
}

// AddCustomizer registers c. Customizers added after they have been
// applied are ignored.
func (t *Task) AddCustomizer(c Customizer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.capturing() && !t.customized && c != nil {
		t.customizers = append(t.customizers, c)
	}
}
