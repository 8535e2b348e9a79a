package geom

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestMultiplyOrder(t *testing.T) {
	m := Translate(10, 0).Multiply(Scale(2, 2))
	p := m.Apply(Pt(1, 1))
	if !near(p.X, 12) || !near(p.Y, 2) {
		t.Errorf("Translate*Scale applied to (1,1) = %v, want (12,2)", p)
	}

	then := Scale(2, 2).Then(Translate(10, 0))
	if then != m {
		t.Errorf("Then should equal Multiply in reverse order: %v != %v", then, m)
	}
}

func TestWithTranslationKeepsLinearPart(t *testing.T) {
	m := Rotate(math.Pi / 3).Multiply(Scale(2, 3)).Then(Translate(7, -4))
	r := m.WithTranslation(5, 6)

	if r.A != m.A || r.B != m.B || r.D != m.D || r.E != m.E {
		t.Errorf("linear part changed: %v -> %v", m, r)
	}
	if x, y := r.Translation(); x != 5 || y != 6 {
		t.Errorf("Translation() = (%v,%v), want (5,6)", x, y)
	}
}

func TestInvert(t *testing.T) {
	m := Translate(3, 4).Multiply(Rotate(0.7)).Multiply(Scale(2, 0.5))
	inv, ok := m.Invert()
	if !ok {
		t.Fatal("matrix should be invertible")
	}
	p := inv.Apply(m.Apply(Pt(5, -2)))
	if !near(p.X, 5) || !near(p.Y, -2) {
		t.Errorf("round trip = %v, want (5,-2)", p)
	}

	if _, ok := Scale(0, 1).Invert(); ok {
		t.Error("singular matrix should not invert")
	}
}

func TestMapRect(t *testing.T) {
	r := RectXYWH(0, 0, 10, 20)
	got := Rotate(math.Pi / 2).MapRect(r)
	if !near(got.X0, -20) || !near(got.X1, 0) || !near(got.Y0, 0) || !near(got.Y1, 10) {
		t.Errorf("rotated rect = %+v", got)
	}

	if !Identity().MapRect(Rect{}).IsEmpty() {
		t.Error("mapping an empty rect should stay empty")
	}
}

func TestRectUnionIntersect(t *testing.T) {
	a := RectXYWH(0, 0, 10, 10)
	b := RectXYWH(5, 5, 10, 10)

	if u := a.Union(b); u != (Rect{0, 0, 15, 15}) {
		t.Errorf("Union = %+v", u)
	}
	if u := a.Union(Rect{}); u != a {
		t.Errorf("Union with empty = %+v, want %+v", u, a)
	}
	if i := a.Intersect(b); i != (Rect{5, 5, 10, 10}) {
		t.Errorf("Intersect = %+v", i)
	}
	if i := a.Intersect(RectXYWH(20, 20, 1, 1)); !i.IsEmpty() {
		t.Errorf("disjoint Intersect = %+v, want empty", i)
	}
}

func TestPixelRect(t *testing.T) {
	tests := []struct {
		name string
		in   Rect
		want IRect
	}{
		{"fractional size", Rect{0, 0, 10.2, 10.2}, IRect{0, 0, 11, 11}},
		{"integral", RectXYWH(2, 3, 4, 5), IRect{2, 3, 4, 5}},
		{"negative origin", RectXYWH(-0.5, -1.5, 3, 3), IRect{-1, -2, 3, 3}},
		{"empty", Rect{}, IRect{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PixelRect(tt.in); got != tt.want {
				t.Errorf("PixelRect(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestGlobalRectRounding(t *testing.T) {
	f, px := GlobalRect(GlobalRectInput{
		Relative:   Rect{0, 0, 10.2, 10.2},
		Resolution: 1,
		Transform:  Identity(),
	})
	if px != (IRect{X: 0, Y: 0, Width: 11, Height: 11}) {
		t.Errorf("pixel rect = %+v, want origin (0,0) size (11,11)", px)
	}
	if !near(f.Width(), 10.2) {
		t.Errorf("real width = %v, want 10.2", f.Width())
	}
}

func TestGlobalRectPipeline(t *testing.T) {
	in := GlobalRectInput{
		Relative:   RectXYWH(0, 0, 10, 10),
		Resolution: 2,
		Transform:  Translate(5, 5),
		Others:     []Rect{RectXYWH(0, 0, 4, 4)},
		Margin:     Uniform(1),
		MaxBounds:  RectXYWH(0, 0, 100, 12),
	}
	f, px := GlobalRect(in)

	// (5..15) scaled by 2 -> (10..30); union (0..4) -> (0..30); margin -> (-1..31);
	// clip x to (0..200), y to (0..24).
	want := Rect{X0: 0, Y0: 0, X1: 31, Y1: 24}
	if f != want {
		t.Errorf("global rect = %+v, want %+v", f, want)
	}
	if px != (IRect{0, 0, 31, 24}) {
		t.Errorf("pixel rect = %+v", px)
	}
}

func TestGlobalRectZeroResolutionDefaultsToOne(t *testing.T) {
	_, px := GlobalRect(GlobalRectInput{Relative: RectXYWH(1, 1, 3, 3), Transform: Identity()})
	if px != (IRect{1, 1, 3, 3}) {
		t.Errorf("pixel rect = %+v", px)
	}
}
