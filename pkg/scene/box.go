package scene

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/matzehuels/boxrender/pkg/geom"
	"github.com/matzehuels/boxrender/pkg/raster"
	"github.com/matzehuels/boxrender/pkg/task"
)

// Kind is the closed set of box kinds.
type Kind int

const (
	KindRect Kind = iota
	KindEllipse
	KindPath
	KindImage
	KindSequence
	KindGroup
	KindText
)

var kindNames = map[Kind]string{
	KindRect:     "rect",
	KindEllipse:  "ellipse",
	KindPath:     "path",
	KindImage:    "image",
	KindSequence: "sequence",
	KindGroup:    "group",
	KindText:     "text",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown box kind %q", s)
}

// MotionBlur renders Samples earlier frames beneath the box. Sample k
// (1-based) shows frame-k*Step with opacity Opacity*(1-k/(Samples+1)).
type MotionBlur struct {
	Samples int
	Step    int
	Opacity float64
}

// Echo is a duplicate of the box drawn beneath it, offset in box
// coordinates.
type Echo struct {
	Dx, Dy   float64
	Rotation float64 // degrees
	Scale    float64
	Opacity  float64
}

// Matrix returns the echo's box-local transform.
func (e Echo) Matrix() geom.Matrix {
	s := e.Scale
	if s == 0 {
		s = 1
	}
	return geom.Scale(s, s).
		Then(geom.Rotate(e.Rotation * math.Pi / 180)).
		Then(geom.Translate(e.Dx, e.Dy))
}

// Range limits the frames on which a box is visible. The zero value is
// always visible.
type Range struct {
	Start, End int
	Set        bool
}

// Contains reports whether frame is inside the range.
func (r Range) Contains(frame int) bool {
	return !r.Set || (frame >= r.Start && frame <= r.End)
}

// Props are a box's editable properties.
type Props struct {
	X, Y           Animated
	ScaleX, ScaleY Animated
	Rotation       Animated // degrees
	PivotX, PivotY Animated
	Opacity        Animated

	Width, Height Animated
	Radius        Animated
	Points        []geom.Point
	Closed        bool

	Fill        raster.Paint
	Stroke      raster.Paint
	StrokeWidth Animated

	// Text is drawn with the fill colour at FontSize box units.
	Text     string
	FontSize Animated

	// Source is an image path; Sequence lists one path per frame.
	Source   string
	Sequence []string

	Blend      raster.BlendMode
	Effects    []raster.Effect
	MotionBlur MotionBlur
	Echoes     []Echo
	Pin        *geom.Point
	Range      Range
}

// DefaultProps returns unit scale and full opacity.
func DefaultProps() Props {
	return Props{
		ScaleX:  Const(1),
		ScaleY:  Const(1),
		Opacity: Const(1),
	}
}

// role distinguishes tasks a box creates for itself.
type role int

const (
	// roleMain tasks occupy the box's slot and are delivered.
	roleMain role = iota
	// roleOverlay tasks (motion samples, echoes) are composited into a main
	// task, which already carries the box's opacity and effects.
	roleOverlay
	// roleDetached tasks render normally but are not delivered; children of
	// overlay groups use them.
	roleDetached
)

// Box is a scene entity. It implements [task.Owner].
type Box struct {
	id    uuid.UUID
	name  string
	kind  Kind
	scene *Scene

	parent   *Box
	children []*Box

	mu       sync.Mutex
	props    Props
	stateID  uint64
	current  map[int]*task.Task
	accepted map[int]uint64
	results  map[int]*task.Task
	preview  map[int]task.Params
	roles    map[uuid.UUID]role
}

var _ task.Owner = (*Box)(nil)

func (b *Box) ID() uuid.UUID { return b.id }
func (b *Box) Name() string  { return b.name }
func (b *Box) Kind() Kind    { return b.kind }
func (b *Box) Parent() *Box  { return b.parent }
func (b *Box) Handle() task.Handle {
	return task.Handle{ID: b.id, Resolver: b.scene}
}

// Children returns the box's children in z-order, bottom first.
func (b *Box) Children() []*Box {
	b.scene.mu.RLock()
	defer b.scene.mu.RUnlock()
	return append([]*Box(nil), b.children...)
}

// Props returns a copy of the properties.
func (b *Box) Props() Props {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.props
}

// Edit changes properties and bumps the box state id.
func (b *Box) Edit(fn func(p *Props)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.props)
	b.stateID++
}

// StateID changes whenever the box is edited.
func (b *Box) StateID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateID
}

// Visible reports whether the box and its ancestors show at frame.
func (b *Box) Visible(frame int) bool {
	for x := b; x != nil; x = x.parent {
		if !x.Props().Range.Contains(frame) {
			return false
		}
	}
	return true
}

// LocalTransform maps box coordinates to the parent's coordinates: scale
// and rotate about the pivot, then translate by the position.
func (b *Box) LocalTransform(frame int) geom.Matrix {
	p := b.Props()
	px, py := p.PivotX.At(frame), p.PivotY.At(frame)
	return geom.Translate(-px, -py).
		Then(geom.Scale(p.ScaleX.At(frame), p.ScaleY.At(frame))).
		Then(geom.Rotate(p.Rotation.At(frame) * math.Pi / 180)).
		Then(geom.Translate(px+p.X.At(frame), py+p.Y.At(frame)))
}

// Transform maps box coordinates to canvas coordinates.
func (b *Box) Transform(frame int) geom.Matrix {
	m := b.LocalTransform(frame)
	for x := b.parent; x != nil; x = x.parent {
		m = m.Then(x.LocalTransform(frame))
	}
	return m
}

// ============================================================================
// Render requests
// ============================================================================

// RequestRender creates, installs and schedules the box's task for frame.
// A task already occupying the frame's slot is canceled first.
func (b *Box) RequestRender(frame int, reason task.Reason) *task.Task {
	return b.render(frame, reason, roleMain)
}

func (b *Box) render(frame int, reason task.Reason, r role) *task.Task {
	t := b.newTask(frame, reason, r)
	helpers := b.addHelpers(t, frame, reason)
	if r == roleMain {
		b.install(frame, t)
	}
	t.ScheduleNow()
	for _, h := range helpers {
		h.ScheduleNow()
	}
	return t
}

func (b *Box) newTask(frame int, reason task.Reason, r role) *task.Task {
	t := b.CreateRenderData()
	t.SetFrame(frame)
	t.SetReason(reason)
	if r != roleMain {
		t.SetOwnerIsTarget(false)
		t.SetRefInOwner(false)
		b.mu.Lock()
		b.roles[t.ID()] = r
		b.mu.Unlock()
	}
	return t
}

// addHelpers attaches motion-blur samples and echoes to main.
func (b *Box) addHelpers(main *task.Task, frame int, reason task.Reason) []*task.Task {
	p := b.Props()
	var helpers []*task.Task

	mb := p.MotionBlur
	step := max(mb.Step, 1)
	for k := 1; k <= mb.Samples; k++ {
		h := b.newTask(frame, reason, roleOverlay)
		h.SetCustomFrame(frame - k*step)
		h.AddCustomizer(task.MultiplyOpacity{
			Opacity: mb.Opacity * (1 - float64(k)/float64(mb.Samples+1)),
		})
		if err := main.AddMotionSample(h); err != nil {
			h.Cancel()
			continue
		}
		helpers = append(helpers, h)
	}

	if b.kind != KindGroup {
		for _, e := range p.Echoes {
			h := b.newTask(frame, reason, roleOverlay)
			h.AddCustomizer(task.MultiplyTransform{Matrix: e.Matrix(), Opacity: e.Opacity})
			if err := main.AddUnderlay(h); err != nil {
				h.Cancel()
				continue
			}
			helpers = append(helpers, h)
		}
	}
	return helpers
}

// install puts t in the frame's slot, canceling the previous occupant.
func (b *Box) install(frame int, t *task.Task) {
	b.mu.Lock()
	old := b.current[frame]
	b.mu.Unlock()
	if old != nil && old != t {
		old.Cancel()
	}
	b.mu.Lock()
	b.current[frame] = t
	b.mu.Unlock()
}

// Current returns the task occupying the frame's slot.
func (b *Box) Current(frame int) *task.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current[frame]
}

// Result returns the latest delivered task for frame.
func (b *Box) Result(frame int) *task.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.results[frame]
}

// Preview returns the parameters published for frame at queue time.
func (b *Box) Preview(frame int) (task.Params, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.preview[frame]
	return p, ok
}

// ============================================================================
// task.Owner
// ============================================================================

func (b *Box) CreateRenderData() *task.Task {
	t := task.New(b.Handle())
	b.mu.Lock()
	id, pin := b.stateID, b.props.Pin
	b.mu.Unlock()
	t.SetBoxStateID(id)
	if pin != nil {
		t.AddCustomizer(task.ReplaceDisplacement{Dx: pin.X, Dy: pin.Y})
	}
	return t
}

func (b *Box) SetupRenderData(frame int, t *task.Task) {
	b.mu.Lock()
	p := b.props
	r := b.roles[t.ID()]
	delete(b.roles, t.ID())
	b.mu.Unlock()

	settings := b.scene.Settings()
	params := task.DefaultParams()
	params.Transform = b.Transform(frame)
	params.Resolution = settings.Resolution
	params.Opacity = clamp01(p.Opacity.At(frame))
	params.Blend = p.Blend
	if settings.Clip {
		params.MaxBounds = geom.RectXYWH(0, 0, float64(settings.Width), float64(settings.Height))
	}
	if r == roleOverlay {
		params.Opacity = 1
		params.Blend = raster.BlendNormal
	}

	switch b.kind {
	case KindGroup:
		childRole := roleMain
		if r != roleMain {
			childRole = roleDetached
		}
		for _, c := range b.Children() {
			if !c.Visible(frame) {
				continue
			}
			if err := t.AddUnderlay(c.render(frame, t.Reason(), childRole)); err != nil {
				b.scene.logger.Warn("group child dropped", "box", b.name, "child", c.name, "err", err)
			}
		}
	case KindImage, KindSequence:
		path := p.Source
		if b.kind == KindSequence {
			path = sequenceFrame(p, frame)
		}
		src, err := b.scene.sources.Get(path)
		if err != nil {
			b.scene.logger.Warn("image source unavailable", "box", b.name, "path", path, "err", err)
			break
		}
		if err := t.DependOn(src.Task()); err != nil {
			break
		}
		w, h := src.Size()
		params.Relative = geom.RectXYWH(0, 0, float64(w), float64(h))
		t.SetDrawer(imageDrawer{src: src})
	case KindText:
		d, err := newTextDrawer(p, frame)
		if err != nil {
			b.scene.logger.Warn("text unavailable", "box", b.name, "err", err)
			break
		}
		params.Relative = d.bounds()
		t.SetDrawer(d)
	default:
		d := newShapeDrawer(b.kind, p, frame)
		params.Relative = d.bounds()
		t.SetDrawer(d)
	}

	t.SetParams(params)
	if r != roleOverlay {
		for _, e := range p.Effects {
			t.AddEffect(e)
		}
	}
}

// RenderDataFinished accepts t unless a later-queued task for the same
// frame has already been accepted.
func (b *Box) RenderDataFinished(t *task.Task) {
	frame, seq := t.Frame(), t.Seq()
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq < b.accepted[frame] {
		b.scene.logger.Debug("stale render dropped", "box", b.name, "frame", frame, "seq", seq)
		return
	}
	b.accepted[frame] = seq
	b.results[frame] = t
}

// NullifyCurrentRenderData empties the frame's slot if its occupant has
// dropped its reference. A newer occupant is left alone.
func (b *Box) NullifyCurrentRenderData(frame int) {
	b.mu.Lock()
	cur := b.current[frame]
	b.mu.Unlock()
	if cur == nil || cur.RefInOwner() {
		return
	}
	b.mu.Lock()
	if b.current[frame] == cur {
		delete(b.current, frame)
	}
	b.mu.Unlock()
}

func (b *Box) UpdateCurrentPreviewDataFromRenderData(t *task.Task) {
	params := t.Params()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.preview[t.Frame()] = params
}

func (b *Box) ScheduleTask(t *task.Task) {
	b.scene.schedule(t)
}

func clamp01(v float64) float64 { return min(max(v, 0), 1) }

// sequenceFrame picks the sequence entry for frame, looping.
func sequenceFrame(p Props, frame int) string {
	n := len(p.Sequence)
	if n == 0 {
		return ""
	}
	start := 0
	if p.Range.Set {
		start = p.Range.Start
	}
	i := (frame - start) % n
	if i < 0 {
		i += n
	}
	return p.Sequence[i]
}
