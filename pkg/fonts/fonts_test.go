package fonts

import (
	"image/color"
	"testing"
)

func TestMeasure(t *testing.T) {
	w1, h1, err := Measure("Hello", 16)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if w1 <= 0 || h1 <= 0 {
		t.Fatalf("Measure = %g x %g, want positive", w1, h1)
	}

	w2, h2, _ := Measure("Hello", 32)
	if w2 <= w1*1.9 || h2 <= h1*1.9 {
		t.Errorf("doubling the size should double the extent: %gx%g vs %gx%g", w1, h1, w2, h2)
	}

	w3, h3, _ := Measure("Hello\nHi", 16)
	if w3 != w1 {
		t.Errorf("widest line should win: got %g, want %g", w3, w1)
	}
	if h3 != 2*h1 {
		t.Errorf("two lines height = %g, want %g", h3, 2*h1)
	}
}

func TestRender(t *testing.T) {
	red := color.NRGBA{255, 0, 0, 255}
	img, err := Render("Hi", 24, red)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	w, h, _ := Measure("Hi", 24)
	b := img.Bounds()
	if b.Dx() < int(w) || b.Dy() < int(h) {
		t.Errorf("image %v smaller than measured %gx%g", b, w, h)
	}

	var inked int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			inked++
			if c.R == 0 || c.G != 0 || c.B != 0 {
				t.Fatalf("pixel (%d,%d) = %v, want red", x, y, c)
			}
		}
	}
	if inked == 0 {
		t.Error("no glyph pixels drawn")
	}
}

func TestRenderEmpty(t *testing.T) {
	img, err := Render("", 16, color.Black)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !img.Bounds().Empty() {
		t.Errorf("empty text should give an empty image, got %v", img.Bounds())
	}
}
