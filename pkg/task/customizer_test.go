package task

import (
	"math"
	"testing"

	"github.com/matzehuels/boxrender/pkg/geom"
)

func TestCustomizers(t *testing.T) {
	base := DefaultParams()
	base.Transform = geom.Scale(2, 2).Then(geom.Translate(10, 20))
	base.Opacity = 0.8

	tests := []struct {
		name        string
		cs          []Customizer
		probe       geom.Point
		want        geom.Point
		wantOpacity float64
	}{
		{
			name:        "replace displacement keeps scale",
			cs:          []Customizer{ReplaceDisplacement{Dx: 1, Dy: 2}},
			probe:       geom.Pt(1, 1),
			want:        geom.Pt(3, 4),
			wantOpacity: 0.8,
		},
		{
			name:        "multiply transform acts first",
			cs:          []Customizer{MultiplyTransform{Matrix: geom.Translate(1, 0), Opacity: 0.5}},
			probe:       geom.Pt(0, 0),
			want:        geom.Pt(12, 20),
			wantOpacity: 0.4,
		},
		{
			name:        "multiply opacity",
			cs:          []Customizer{MultiplyOpacity{Opacity: 0.5}, MultiplyOpacity{Opacity: 0.5}},
			probe:       geom.Pt(0, 0),
			want:        geom.Pt(10, 20),
			wantOpacity: 0.2,
		},
		{
			name: "order matters: multiply then replace",
			cs: []Customizer{
				NewMultiplyTransform(geom.Translate(1, 0)),
				ReplaceDisplacement{},
			},
			probe:       geom.Pt(1, 0),
			want:        geom.Pt(2, 0),
			wantOpacity: 0.8,
		},
		{
			name: "order matters: replace then multiply",
			cs: []Customizer{
				ReplaceDisplacement{},
				NewMultiplyTransform(geom.Translate(1, 0)),
			},
			probe:       geom.Pt(1, 0),
			want:        geom.Pt(4, 0),
			wantOpacity: 0.8,
		},
		{
			name: "func adapter",
			cs: []Customizer{CustomizerFunc(func(p Params) Params {
				p.Opacity = 1
				return p
			})},
			probe:       geom.Pt(0, 0),
			want:        geom.Pt(10, 20),
			wantOpacity: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Customize(base, tt.cs...)
			p := got.Transform.Apply(tt.probe)
			if math.Abs(p.X-tt.want.X) > 1e-9 || math.Abs(p.Y-tt.want.Y) > 1e-9 {
				t.Errorf("mapped %v to %v, want %v", tt.probe, p, tt.want)
			}
			if math.Abs(got.Opacity-tt.wantOpacity) > 1e-9 {
				t.Errorf("opacity = %v, want %v", got.Opacity, tt.wantOpacity)
			}
		})
	}
}

func TestCustomizersAppliedOnceAtQueue(t *testing.T) {
	o := newOwner()
	var applied int
	o.setup = func(_ int, tk *Task) {
		tk.AddCustomizer(CustomizerFunc(func(p Params) Params {
			applied++
			p.Opacity *= 0.5
			return p
		}))
	}
	tk := o.CreateRenderData()
	_ = tk.Queue(nil)
	tk.AddCustomizer(MultiplyOpacity{Opacity: 0})
	process(t, tk)

	if applied != 1 {
		t.Errorf("customizer applied %d times, want 1", applied)
	}
	if tk.Params().Opacity != 0.5 {
		t.Errorf("opacity = %v, want 0.5", tk.Params().Opacity)
	}
}
