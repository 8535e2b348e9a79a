// Package scene holds the boxes of an animated 2D scene and turns frame
// requests into render tasks.
//
// A [Scene] is a registry of [Box] values keyed by id; it implements
// [task.Resolver], so tasks refer to their box through a handle that stops
// resolving once the box is removed. Boxes implement [task.Owner]: they
// fill in task parameters at capture time, keep one current-render slot per
// frame and accept finished tasks in queue order.
//
// Scenes are usually loaded from TOML with [Load] or [Decode].
package scene

import (
	"image"
	"image/color"
	"io"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/boxrender/pkg/errors"
	"github.com/matzehuels/boxrender/pkg/geom"
	"github.com/matzehuels/boxrender/pkg/raster"
	"github.com/matzehuels/boxrender/pkg/task"
)

// Settings are scene-wide render settings.
type Settings struct {
	Width, Height int
	// Resolution scales canvas units to output pixels.
	Resolution float64
	Background color.NRGBA
	FPS        float64
	Start, End int
	// Clip limits every task to the canvas.
	Clip bool
}

// DefaultSettings returns a 640x360 canvas at 24 fps with a single frame.
func DefaultSettings() Settings {
	return Settings{
		Width:      640,
		Height:     360,
		Resolution: 1,
		FPS:        24,
		Clip:       true,
	}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return errors.New(errors.ErrCodeInvalidScene, "canvas size must be positive (got %dx%d)", s.Width, s.Height)
	}
	if err := errors.ValidateResolution(s.Resolution); err != nil {
		return err
	}
	if err := s.validateCanvas(s.Resolution); err != nil {
		return err
	}
	return errors.ValidateFrameRange(s.Start, s.End)
}

// validateCanvas checks that the canvas fits a surface at resolution res.
func (s Settings) validateCanvas(res float64) error {
	w, h := float64(s.Width)*res, float64(s.Height)*res
	if !raster.FitsSurface(w, h) {
		return errors.New(errors.ErrCodeInvalidScene,
			"canvas %dx%d at resolution %g exceeds %d device pixels per side",
			s.Width, s.Height, res, raster.MaxSurfaceSide)
	}
	return nil
}

// Submitter accepts tasks for execution; *scheduler.Scheduler satisfies it.
type Submitter interface {
	Submit(t *task.Task) error
}

// Scene is a tree of boxes plus the resources they share.
type Scene struct {
	settings Settings
	logger   *log.Logger
	sources  *SourceCache

	mu        sync.RWMutex
	owners    map[uuid.UUID]task.Owner
	byName    map[string]*Box
	roots     []*Box
	submitter Submitter
}

var _ task.Resolver = (*Scene)(nil)

// New returns an empty scene.
func New(settings Settings) *Scene {
	s := &Scene{
		settings: settings,
		logger:   log.New(io.Discard),
		owners:   make(map[uuid.UUID]task.Owner),
		byName:   make(map[string]*Box),
	}
	s.sources = newSourceCache(s)
	s.owners[s.sources.id] = s.sources
	return s
}

// SetLogger sets the logger used for warnings during capture.
func (s *Scene) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Attach routes scheduled tasks to sub. Without a submitter, scheduled
// tasks are canceled.
func (s *Scene) Attach(sub Submitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitter = sub
}

func (s *Scene) Settings() Settings { return s.settings }

// SetResolution overrides the resolution before any task is requested.
func (s *Scene) SetResolution(res float64) error {
	if err := errors.ValidateResolution(res); err != nil {
		return err
	}
	if err := s.settings.validateCanvas(res); err != nil {
		return err
	}
	s.settings.Resolution = res
	return nil
}

// Label names t by its owning box, for logs and traces. Loader tasks are
// labelled "source".
func (s *Scene) Label(t *task.Task) string {
	o, ok := s.Resolve(t.Owner().ID)
	if !ok {
		return "removed"
	}
	switch o := o.(type) {
	case *Box:
		return o.name
	case *SourceCache:
		return "source"
	}
	return "unknown"
}

// StateIDs maps every box name to its state id.
func (s *Scene) StateIDs() map[string]uint64 {
	out := make(map[string]uint64)
	for _, b := range s.Boxes() {
		out[b.name] = b.StateID()
	}
	return out
}

// SourcePaths lists every image file the scene references, sorted.
func (s *Scene) SourcePaths() []string {
	seen := make(map[string]struct{})
	for _, b := range s.Boxes() {
		p := b.Props()
		if p.Source != "" {
			seen[p.Source] = struct{}{}
		}
		for _, f := range p.Sequence {
			seen[f] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Sources returns the scene's image source cache.
func (s *Scene) Sources() *SourceCache { return s.sources }

// Resolve implements task.Resolver.
func (s *Scene) Resolve(id uuid.UUID) (task.Owner, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[id]
	return o, ok
}

// NewBox adds a box on top of parent's children, or of the roots when
// parent is nil. Names must be unique and parents must be groups.
func (s *Scene) NewBox(name string, kind Kind, parent *Box) (*Box, error) {
	if err := errors.ValidateBoxName(name); err != nil {
		return nil, err
	}
	if parent != nil && parent.kind != KindGroup {
		return nil, errors.New(errors.ErrCodeInvalidBox, "parent %q is not a group", parent.name).ForBox(name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byName[name]; dup {
		return nil, errors.New(errors.ErrCodeInvalidBox, "duplicate name").ForBox(name)
	}
	b := &Box{
		id:       uuid.New(),
		name:     name,
		kind:     kind,
		scene:    s,
		parent:   parent,
		props:    DefaultProps(),
		current:  make(map[int]*task.Task),
		accepted: make(map[int]uint64),
		results:  make(map[int]*task.Task),
		preview:  make(map[int]task.Params),
		roles:    make(map[uuid.UUID]role),
	}
	s.owners[b.id] = b
	s.byName[name] = b
	if parent != nil {
		parent.children = append(parent.children, b)
	} else {
		s.roots = append(s.roots, b)
	}
	return b, nil
}

// Remove unregisters b and its descendants. Their tasks stay valid, but
// their handles stop resolving, so late deliveries and copies are no-ops.
func (s *Scene) Remove(b *Box) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var drop func(x *Box)
	drop = func(x *Box) {
		delete(s.owners, x.id)
		delete(s.byName, x.name)
		for _, c := range x.children {
			drop(c)
		}
	}
	drop(b)
	if b.parent != nil {
		b.parent.children = removeBox(b.parent.children, b)
	} else {
		s.roots = removeBox(s.roots, b)
	}
}

func removeBox(list []*Box, b *Box) []*Box {
	out := list[:0]
	for _, x := range list {
		if x != b {
			out = append(out, x)
		}
	}
	return out
}

// Box looks a box up by name.
func (s *Scene) Box(name string) (*Box, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.byName[name]
	return b, ok
}

// Roots returns the top-level boxes in z-order, bottom first.
func (s *Scene) Roots() []*Box {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Box(nil), s.roots...)
}

// Boxes returns every box, depth first in z-order.
func (s *Scene) Boxes() []*Box {
	var out []*Box
	var walk func(list []*Box)
	walk = func(list []*Box) {
		for _, b := range list {
			out = append(out, b)
			walk(b.Children())
		}
	}
	walk(s.Roots())
	return out
}

func (s *Scene) schedule(t *task.Task) {
	s.mu.RLock()
	sub := s.submitter
	s.mu.RUnlock()
	if sub == nil {
		t.Cancel()
		return
	}
	if err := sub.Submit(t); err != nil {
		s.logger.Warn("task not scheduled", "err", err)
		t.Cancel()
	}
}

// RequestFrame requests a render of every visible root box and returns
// their main tasks in z-order.
func (s *Scene) RequestFrame(frame int, reason task.Reason) []*task.Task {
	var tasks []*task.Task
	for _, b := range s.Roots() {
		if b.Visible(frame) {
			tasks = append(tasks, b.RequestRender(frame, reason))
		}
	}
	return tasks
}

// FrameResults returns the delivered results of the visible roots for
// frame, in z-order. Roots without a result are skipped.
func (s *Scene) FrameResults(frame int) []*task.Task {
	var out []*task.Task
	for _, b := range s.Roots() {
		if !b.Visible(frame) {
			continue
		}
		if t := b.Result(frame); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// CanvasRect is the output image rectangle in device pixels.
func (s *Scene) CanvasRect() geom.IRect {
	res := s.settings.Resolution
	if res <= 0 {
		res = 1
	}
	return geom.IRect{
		Width:  int(math.Ceil(float64(s.settings.Width) * res)),
		Height: int(math.Ceil(float64(s.settings.Height) * res)),
	}
}

// Compose composites finished tasks over the background, bottom first,
// each with its own opacity and blend mode.
func (s *Scene) Compose(tasks []*task.Task) *image.NRGBA {
	canvas := raster.NewSurface(s.CanvasRect())
	canvas.Clear(s.settings.Background)
	for _, t := range tasks {
		if t == nil || t.State() != task.StateFinished {
			continue
		}
		img := t.Image()
		if img == nil {
			continue
		}
		p := t.Params()
		canvas.Composite(img, t.PixelRect().Min(), p.Opacity, p.Blend)
	}
	return canvas.Snapshot()
}
