package scene

import (
	"image"
	"sync"

	"github.com/google/uuid"

	"github.com/matzehuels/boxrender/pkg/errors"
	"github.com/matzehuels/boxrender/pkg/raster"
	"github.com/matzehuels/boxrender/pkg/task"
)

// Source is a decoded image shared by every box that references the same
// file. Decoding runs in a loader task; boxes depend on that task.
type Source struct {
	path          string
	width, height int
	task          *task.Task

	mu  sync.Mutex
	img *image.NRGBA
	err error
}

// Path returns the file path.
func (s *Source) Path() string { return s.path }

// Size returns the pixel size read from the file header.
func (s *Source) Size() (int, int) { return s.width, s.height }

// Task returns the loader task.
func (s *Source) Task() *task.Task { return s.task }

// Image returns the decoded image, or nil before loading or on error.
func (s *Source) Image() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img
}

// Err returns the decode error, if any.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Source) load() error {
	img, err := raster.Load(s.path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img, s.err = img, err
	return err
}

// SourceCache deduplicates image sources for a scene. It owns the loader
// tasks and is registered in the scene's resolver like a box.
type SourceCache struct {
	id    uuid.UUID
	scene *Scene

	mu      sync.Mutex
	sources map[string]*Source
}

var _ task.Owner = (*SourceCache)(nil)

func newSourceCache(s *Scene) *SourceCache {
	return &SourceCache{
		id:      uuid.New(),
		scene:   s,
		sources: make(map[string]*Source),
	}
}

// Get returns the source for path, scheduling its loader task on first
// use. The header is read synchronously so that the size is known at
// capture time.
func (c *SourceCache) Get(path string) (*Source, error) {
	c.mu.Lock()
	if src, ok := c.sources[path]; ok {
		c.mu.Unlock()
		return src, nil
	}
	w, h, err := raster.Size(path)
	if err != nil {
		c.mu.Unlock()
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "image source %s", path)
	}
	src := &Source{path: path, width: w, height: h}
	t := c.CreateRenderData()
	t.SetJob(src.load)
	src.task = t
	c.sources[path] = src
	c.mu.Unlock()

	t.ScheduleNow()
	return src, nil
}

// Len returns the number of known sources.
func (c *SourceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}

func (c *SourceCache) CreateRenderData() *task.Task {
	t := task.New(task.Handle{ID: c.id, Resolver: c.scene})
	t.SetOwnerIsTarget(false)
	t.SetRefInOwner(false)
	return t
}

func (c *SourceCache) SetupRenderData(int, *task.Task)                   {}
func (c *SourceCache) RenderDataFinished(*task.Task)                     {}
func (c *SourceCache) NullifyCurrentRenderData(int)                      {}
func (c *SourceCache) UpdateCurrentPreviewDataFromRenderData(*task.Task) {}
func (c *SourceCache) ScheduleTask(t *task.Task)                         { c.scene.schedule(t) }
