package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matzehuels/boxrender/pkg/cache"
	"github.com/matzehuels/boxrender/pkg/errors"
	"github.com/matzehuels/boxrender/pkg/observability"
	"github.com/matzehuels/boxrender/pkg/scene"
)

// Loaded is a decoded scene with its content hash.
type Loaded struct {
	Scene *scene.Scene
	Hash  string
}

// Load decodes the scene named by opts and hashes it. Unreadable images
// hash as missing so that fixing them changes the key; rendering reports
// them as task failures.
func (r *Runner) Load(ctx context.Context, opts Options) (*Loaded, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	source := opts.ScenePath
	if opts.Scene != "" {
		source = "inline"
	}
	observability.Pipeline().OnLoadStart(ctx, source)
	start := time.Now()

	l, err := r.load(opts)
	boxes := 0
	if l != nil {
		boxes = len(l.Scene.Boxes())
	}
	observability.Pipeline().OnLoadComplete(ctx, source, boxes, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	l.Scene.SetLogger(opts.Logger)
	opts.Logger.Debug("loaded scene", "source", source, "boxes", boxes, "hash", l.Hash[:12])
	return l, nil
}

func (r *Runner) load(opts Options) (*Loaded, error) {
	text := opts.Scene
	baseDir := opts.BaseDir
	if text == "" {
		data, err := os.ReadFile(opts.ScenePath)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read scene %s", opts.ScenePath)
		}
		text = string(data)
		baseDir = filepath.Dir(opts.ScenePath)
	}

	sc, err := scene.Decode(strings.NewReader(text), &scene.ImportContext{BaseDir: baseDir})
	if err != nil {
		return nil, err
	}
	if opts.Resolution != 0 {
		if err := sc.SetResolution(opts.Resolution); err != nil {
			return nil, err
		}
	}
	return &Loaded{Scene: sc, Hash: hashScene(text, sc.SourcePaths())}, nil
}

// hashScene digests the scene text and, for each image path, the path and
// the file's contents. Unreadable files hash as "missing" so the render
// still gets a stable key.
func hashScene(text string, paths []string) string {
	parts := [][]byte{[]byte(text)}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			data = []byte("missing")
		}
		parts = append(parts, []byte(p), data)
	}
	return cache.Digest(parts...)
}
