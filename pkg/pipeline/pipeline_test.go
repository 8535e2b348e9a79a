package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/boxrender/pkg/cache"
	"github.com/matzehuels/boxrender/pkg/errors"
	"github.com/matzehuels/boxrender/pkg/raster"
	"github.com/matzehuels/boxrender/pkg/scene"
)

// A 10x10 red square sliding from x=0 at frame 0 to x=30 at frame 3.
const slideScene = `
[scene]
width = 40
height = 20
background = "#ffffff"
start = 0
end = 3

[[box]]
name = "red"
kind = "rect"
x = [[0, 0], [3, 30]]
width = 10
height = 10
fill = "#ff0000"
`

var (
	white = color.NRGBA{255, 255, 255, 255}
	red   = color.NRGBA{255, 0, 0, 255}
)

func newTestRunner(t *testing.T, c cache.Cache) *Runner {
	t.Helper()
	return NewRunner(c, nil, log.New(io.Discard))
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func assertPixel(t *testing.T, img image.Image, x, y int, want color.NRGBA) {
	t.Helper()
	got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	if got != want {
		t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
	}
}

func TestValidateGraphFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"dot", false},
		{"svg", false},
		{"png", false},
		{"pdf", true},
		{"DOT", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateGraphFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateGraphFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	if _, ok := r.Cache.(cache.NullCache); !ok {
		t.Errorf("Cache = %T, want NullCache", r.Cache)
	}
	if _, ok := r.Keyer.(cache.DefaultKeyer); !ok {
		t.Errorf("Keyer = %T, want DefaultKeyer", r.Keyer)
	}
	if r.Logger == nil {
		t.Error("Logger should default")
	}
	if r.FrameTTL != cache.TTLFrame || r.GraphTTL != cache.TTLGraph {
		t.Errorf("TTLs = %v/%v", r.FrameTTL, r.GraphTTL)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{Scene: slideScene}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if opts.Parallel != DefaultParallel {
		t.Errorf("Parallel = %d, want %d", opts.Parallel, DefaultParallel)
	}
	if opts.GraphFormat != FormatDOT {
		t.Errorf("GraphFormat = %q, want %q", opts.GraphFormat, FormatDOT)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}
}

func TestOptionsValidation(t *testing.T) {
	half, one := 0.5, 1.0
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"inline scene", Options{Scene: slideScene}, false},
		{"scene path", Options{ScenePath: "scene.toml"}, false},
		{"no scene", Options{}, true},
		{"resolution", Options{Scene: slideScene, Resolution: 2}, false},
		{"negative resolution", Options{Scene: slideScene, Resolution: -1}, true},
		{"skip opacity", Options{Scene: slideScene, SkipOpacity: &half}, false},
		{"skip opacity one", Options{Scene: slideScene, SkipOpacity: &one}, true},
		{"negative workers", Options{Scene: slideScene, Workers: -1}, true},
		{"bad graph format", Options{Scene: slideScene, GraphFormat: "gif"}, true},
		{"too many frames", Options{Scene: slideScene, Frames: make([]int, MaxFrames+1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOptionsValidateAndSetDefaultsIdempotent(t *testing.T) {
	opts := Options{Scene: slideScene, Parallel: 3}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	opts.Parallel = 7
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Parallel != 7 {
		t.Errorf("second call changed Parallel to %d", opts.Parallel)
	}
}

func TestTaskConfig(t *testing.T) {
	opts := Options{}
	if got := opts.TaskConfig().SkipOpacity; got != 0.001 {
		t.Errorf("default SkipOpacity = %v", got)
	}
	v := 0.25
	opts.SkipOpacity = &v
	if got := opts.TaskConfig().SkipOpacity; got != 0.25 {
		t.Errorf("SkipOpacity = %v, want 0.25", got)
	}
	zero := 0.0
	opts.SkipOpacity = &zero
	if got := opts.TaskConfig().SkipOpacity; got != 0 {
		t.Errorf("explicit zero SkipOpacity = %v, want 0", got)
	}
	if got := opts.FrameKeyOpts(1, nil).SkipOpacity; got != 0 {
		t.Errorf("key SkipOpacity = %v, want 0", got)
	}
}

func TestOptionsDropsRepeatedFrames(t *testing.T) {
	tests := []struct {
		name   string
		frames []int
		want   []int
	}{
		{"none", nil, nil},
		{"distinct", []int{3, 1, 2}, []int{3, 1, 2}},
		{"all same", []int{0, 0, 0, 0, 0, 0, 0, 0}, []int{0}},
		{"first occurrence kept", []int{2, 0, 2, 1, 0}, []int{2, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{Scene: slideScene, Frames: tt.frames}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				t.Fatalf("ValidateAndSetDefaults: %v", err)
			}
			if !slices.Equal(opts.Frames, tt.want) {
				t.Errorf("Frames = %v, want %v", opts.Frames, tt.want)
			}
		})
	}
}

func TestRenderRepeatedFrame(t *testing.T) {
	r := newTestRunner(t, nil)
	result, err := r.Render(context.Background(), Options{
		Scene:    slideScene,
		Frames:   []int{0, 0, 0, 0, 0, 0, 0, 0},
		Workers:  1,
		Parallel: 8,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(result.Frames) != 1 || result.Frames[0].Number != 0 {
		t.Fatalf("frames = %d, want frame 0 once", len(result.Frames))
	}
	if result.Stats.Canceled != 0 || result.Stats.Failed != 0 {
		t.Errorf("task stats = %+v", result.Stats)
	}
	img := decodePNG(t, result.Frames[0].PNG)
	assertPixel(t, img, 5, 5, red)
}

func TestFrameList(t *testing.T) {
	s := scene.DefaultSettings()
	s.Start, s.End = 2, 5

	tests := []struct {
		name    string
		frames  []int
		want    []int
		wantErr bool
	}{
		{"whole range", nil, []int{2, 3, 4, 5}, false},
		{"explicit", []int{5, 2}, []int{5, 2}, false},
		{"before start", []int{1}, nil, true},
		{"after end", []int{2, 6}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := frameList(s, tt.frames)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !slices.Equal(got, tt.want) {
				t.Errorf("frames = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	r := newTestRunner(t, nil)
	result, err := r.Render(context.Background(), Options{Scene: slideScene, Workers: 2})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if len(result.Frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(result.Frames))
	}
	if result.Stats.Frames != 4 || result.Stats.Boxes != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
	if result.Stats.Finished == 0 || result.Stats.Failed != 0 {
		t.Errorf("task stats = %+v", result.Stats)
	}
	if result.CacheInfo.Misses != 4 || result.CacheInfo.Hits != 0 {
		t.Errorf("cache info = %+v", result.CacheInfo)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("warnings = %v", result.Warnings)
	}

	for i, fr := range result.Frames {
		if fr.Number != i {
			t.Errorf("frame %d has number %d", i, fr.Number)
		}
	}

	first := decodePNG(t, result.Frames[0].PNG)
	if b := first.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Fatalf("bounds = %v, want 40x20", b)
	}
	assertPixel(t, first, 5, 5, red)
	assertPixel(t, first, 35, 5, white)
	assertPixel(t, first, 5, 15, white)

	last := decodePNG(t, result.Frames[3].PNG)
	assertPixel(t, last, 5, 5, white)
	assertPixel(t, last, 35, 5, red)
}

func TestRenderResolution(t *testing.T) {
	r := newTestRunner(t, nil)
	fr, err := r.RenderFrame(context.Background(), Options{Scene: slideScene, Resolution: 2}, 0)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	img := decodePNG(t, fr.PNG)
	if b := img.Bounds(); b.Dx() != 80 || b.Dy() != 40 {
		t.Errorf("bounds = %v, want 80x40", b)
	}
	assertPixel(t, img, 15, 15, red)
	assertPixel(t, img, 25, 15, white)
}

func TestRenderCache(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRunner(t, c)
	ctx := context.Background()
	opts := Options{Scene: slideScene, Frames: []int{1, 2}}

	first, err := r.Render(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.Misses != 2 {
		t.Errorf("first run cache info = %+v", first.CacheInfo)
	}

	second, err := r.Render(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if second.CacheInfo.Hits != 2 {
		t.Errorf("second run cache info = %+v", second.CacheInfo)
	}
	for i, fr := range second.Frames {
		if !fr.Cached {
			t.Errorf("frame %d not cached", fr.Number)
		}
		if !bytes.Equal(fr.PNG, first.Frames[i].PNG) {
			t.Errorf("frame %d differs from the rendered one", fr.Number)
		}
	}
	if second.Stats.Tasks != 0 {
		t.Errorf("cached run submitted %d tasks", second.Stats.Tasks)
	}

	opts.Refresh = true
	third, err := r.Render(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.Hits != 0 {
		t.Errorf("refresh run cache info = %+v", third.CacheInfo)
	}

	// A different scene misses.
	edited := strings.Replace(slideScene, "#ff0000", "#00ff00", 1)
	fourth, err := r.Render(ctx, Options{Scene: edited, Frames: []int{1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if fourth.CacheInfo.Hits != 0 {
		t.Errorf("edited scene cache info = %+v", fourth.CacheInfo)
	}
}

func TestRenderLayers(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRunner(t, c)
	ctx := context.Background()
	opts := Options{Scene: slideScene, Frames: []int{0}, Layers: true}

	for run := range 2 {
		result, err := r.Render(ctx, opts)
		if err != nil {
			t.Fatal(err)
		}
		if result.CacheInfo.Hits != 0 {
			t.Errorf("run %d: layered render hit the cache", run)
		}
		fr := result.Frames[0]
		if len(fr.Layers) != 1 {
			t.Fatalf("run %d: got %d layers, want 1", run, len(fr.Layers))
		}
		layer := fr.Layers[0]
		if !layer.IsCopy() {
			t.Error("layer should be a copy")
		}
		if layer.Image() == nil {
			t.Fatal("layer has no image")
		}
		if got := layer.PixelRect(); got.Width != 10 || got.Height != 10 {
			t.Errorf("layer rect = %+v, want 10x10", got)
		}
		if fr.Image == nil {
			t.Error("rendered frame should keep its canvas")
		}
	}
}

func TestRenderFrameOutOfRange(t *testing.T) {
	r := newTestRunner(t, nil)
	_, err := r.Render(context.Background(), Options{Scene: slideScene, Frames: []int{9}})
	if err == nil {
		t.Fatal("expected an error for a frame outside the range")
	}
	var fre *errors.FrameRangeError
	if !stderrors.As(err, &fre) || fre.Frame != 9 {
		t.Errorf("error = %v, want FrameRangeError for 9", err)
	}
}

func TestRenderInvalidScene(t *testing.T) {
	r := newTestRunner(t, nil)
	_, err := r.Render(context.Background(), Options{Scene: "[scene]\nwidth = -1\n"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "load") {
		t.Errorf("error = %v, want load stage", err)
	}
}

func TestRenderMissingImageWarns(t *testing.T) {
	dir := t.TempDir()
	text := `
[scene]
width = 20
height = 20
end = 0

[[box]]
name = "photo"
kind = "image"
source = "missing.png"
`
	r := newTestRunner(t, nil)
	result, err := r.Render(context.Background(), Options{Scene: text, BaseDir: dir})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(result.Frames) != 1 || len(result.Frames[0].PNG) == 0 {
		t.Fatal("frame should still be encoded")
	}
	if len(result.Warnings) == 0 || result.Stats.Failed == 0 {
		t.Errorf("expected a failed loader, got warnings=%v stats=%+v", result.Warnings, result.Stats)
	}
}

func TestLoadHashesImages(t *testing.T) {
	dir := t.TempDir()
	writeImage := func(c color.NRGBA) {
		img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
		}
		data, err := raster.PNGBytes(img)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "a.png"), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(dir, "scene.toml")
	text := "[[box]]\nname = \"photo\"\nkind = \"image\"\nsource = \"a.png\"\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newTestRunner(t, nil)
	ctx := context.Background()

	writeImage(red)
	a, err := r.Load(ctx, Options{ScenePath: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := r.Load(ctx, Options{ScenePath: path})
	if err != nil {
		t.Fatal(err)
	}
	if a.Hash != b.Hash {
		t.Error("hash should be stable")
	}

	writeImage(white)
	c, err := r.Load(ctx, Options{ScenePath: path})
	if err != nil {
		t.Fatal(err)
	}
	if c.Hash == a.Hash {
		t.Error("hash should change with image contents")
	}
}

func TestGraph(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRunner(t, c)
	ctx := context.Background()
	opts := Options{Scene: slideScene}

	dot, hit, err := r.GraphWithCacheInfo(ctx, opts, 2)
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if hit {
		t.Error("first export should miss")
	}
	s := string(dot)
	if !strings.HasPrefix(s, "digraph") {
		t.Errorf("not a DOT graph:\n%s", s)
	}
	if !strings.Contains(s, `label="red @2"`) {
		t.Errorf("missing root task node:\n%s", s)
	}

	again, hit, err := r.GraphWithCacheInfo(ctx, opts, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !hit || !bytes.Equal(again, dot) {
		t.Error("second export should hit the cache")
	}

	if _, err := r.Graph(ctx, opts, 10); err == nil {
		t.Error("expected an error for a frame outside the range")
	}
}

func TestTraceFrameMotionBlur(t *testing.T) {
	text := slideScene + "motion_blur = {samples = 2, step = 1}\n"
	r := newTestRunner(t, nil)
	ctx := context.Background()
	opts := Options{Scene: text}

	l, err := r.Load(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	g, err := r.TraceFrame(ctx, l, 3, opts)
	if err != nil {
		t.Fatalf("TraceFrame: %v", err)
	}
	// The root waits on one task per sample.
	if g.NodeCount() != 3 || g.EdgeCount() != 2 {
		t.Errorf("graph has %d nodes and %d edges, want 3 and 2", g.NodeCount(), g.EdgeCount())
	}
	if len(g.Sources()) != 1 {
		t.Errorf("sources = %d, want 1", len(g.Sources()))
	}
}

func TestExportGraphInvalidFormat(t *testing.T) {
	if _, err := ExportGraph(nil, "gif", false); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
