package scene

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/boxrender/pkg/geom"
	"github.com/matzehuels/boxrender/pkg/raster"
	"github.com/matzehuels/boxrender/pkg/task"
)

func writePNG(t *testing.T, dir, name string, w, h int, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := raster.EncodePNG(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImageBoxesShareSource(t *testing.T) {
	green := color.NRGBA{0, 255, 0, 255}
	path := writePNG(t, t.TempDir(), "pic.png", 4, 4, green)

	s := newTestScene(t, 50, 20)
	for i, name := range []string{"a", "b"} {
		b, err := s.NewBox(name, KindImage, nil)
		if err != nil {
			t.Fatal(err)
		}
		x := float64(10 + 20*i)
		b.Edit(func(p *Props) {
			p.Source = path
			p.X = Const(x)
		})
	}

	tasks := render(t, s, 0, task.ReasonUserChange)
	if got := s.Sources().Len(); got != 1 {
		t.Errorf("sources = %d, want 1", got)
	}
	src, err := s.Sources().Get(path)
	if err != nil {
		t.Fatal(err)
	}
	if src.Task().State() != task.StateFinished || src.Image() == nil {
		t.Fatalf("loader state = %s, err = %v", src.Task().State(), src.Err())
	}
	if w, h := src.Size(); w != 4 || h != 4 {
		t.Errorf("size = %dx%d", w, h)
	}
	if got, want := tasks[0].PixelRect(), (geom.IRect{X: 10, Width: 4, Height: 4}); got != want {
		t.Errorf("PixelRect = %+v, want %+v", got, want)
	}

	img := s.Compose(tasks)
	for _, x := range []int{11, 31} {
		if got := img.NRGBAAt(x, 1); !sameColor(got, green) {
			t.Errorf("pixel (%d,1) = %v, want green", x, got)
		}
	}
}

func TestLoadedSourceFiresImmediately(t *testing.T) {
	path := writePNG(t, t.TempDir(), "pic.png", 2, 2, red)
	s := newTestScene(t, 20, 20)
	b, _ := s.NewBox("a", KindImage, nil)
	b.Edit(func(p *Props) { p.Source = path })

	render(t, s, 0, task.ReasonUserChange)

	fired := false
	src, _ := s.Sources().Get(path)
	src.Task().AddDependent(task.Dependent{Finished: func() { fired = true }})
	if !fired {
		t.Error("dependent on a loaded source did not fire immediately")
	}
}

func TestMissingSourceStillFinishes(t *testing.T) {
	s := newTestScene(t, 20, 20)
	b, _ := s.NewBox("a", KindImage, nil)
	b.Edit(func(p *Props) { p.Source = filepath.Join(t.TempDir(), "nope.png") })

	tasks := render(t, s, 0, task.ReasonUserChange)
	if tasks[0].State() != task.StateFinished {
		t.Errorf("state = %s, want finished", tasks[0].State())
	}
	if tasks[0].Image() != nil {
		t.Error("missing source produced an image")
	}
	if s.Sources().Len() != 0 {
		t.Error("missing source was cached")
	}
}
