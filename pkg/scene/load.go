package scene

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/boxrender/pkg/errors"
	"github.com/matzehuels/boxrender/pkg/fonts"
	"github.com/matzehuels/boxrender/pkg/geom"
	"github.com/matzehuels/boxrender/pkg/raster"
)

// ImportContext carries state that is scoped to one import: the base
// directory sources are resolved against and the named gradients that
// fills refer to as "gradient:<name>".
type ImportContext struct {
	BaseDir   string
	Gradients map[string]*raster.Gradient
}

// sceneFile is the on-disk layout of a scene.
type sceneFile struct {
	Scene     settingsFile            `toml:"scene"`
	Gradients map[string]gradientFile `toml:"gradients"`
	Boxes     []boxFile               `toml:"box"`
}

type settingsFile struct {
	Width      int     `toml:"width"`
	Height     int     `toml:"height"`
	Resolution float64 `toml:"resolution"`
	Background string  `toml:"background"`
	FPS        float64 `toml:"fps"`
	Start      int     `toml:"start"`
	End        int     `toml:"end"`
	Clip       *bool   `toml:"clip"`
}

type gradientFile struct {
	Kind  string     `toml:"kind"`
	From  []float64  `toml:"from"`
	To    []float64  `toml:"to"`
	R     float64    `toml:"r"`
	Stops []stopFile `toml:"stops"`
}

type stopFile struct {
	Offset float64 `toml:"offset"`
	Color  string  `toml:"color"`
}

type boxFile struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`

	X        Animated `toml:"x"`
	Y        Animated `toml:"y"`
	ScaleX   Animated `toml:"scale_x"`
	ScaleY   Animated `toml:"scale_y"`
	Rotation Animated `toml:"rotation"`
	PivotX   Animated `toml:"pivot_x"`
	PivotY   Animated `toml:"pivot_y"`
	Opacity  Animated `toml:"opacity"`

	Width  Animated    `toml:"width"`
	Height Animated    `toml:"height"`
	Radius Animated    `toml:"radius"`
	Points [][]float64 `toml:"points"`
	Closed bool        `toml:"closed"`

	Fill        string   `toml:"fill"`
	Stroke      string   `toml:"stroke"`
	StrokeWidth Animated `toml:"stroke_width"`

	Text     string   `toml:"text"`
	FontSize Animated `toml:"font_size"`

	Source   string   `toml:"source"`
	Sequence []string `toml:"sequence"`

	Blend      raster.BlendMode `toml:"blend"`
	Effects    []effectFile     `toml:"effects"`
	MotionBlur *motionBlurFile  `toml:"motion_blur"`
	Echoes     []echoFile       `toml:"echoes"`
	Pin        []float64        `toml:"pin"`
	Range      []int            `toml:"range"`

	Children []boxFile `toml:"children"`
}

type effectFile struct {
	Type    string  `toml:"type"`
	Radius  float64 `toml:"radius"`
	Percent float64 `toml:"percent"`
}

type motionBlurFile struct {
	Samples int     `toml:"samples"`
	Step    int     `toml:"step"`
	Opacity float64 `toml:"opacity"`
}

type echoFile struct {
	Dx       float64  `toml:"dx"`
	Dy       float64  `toml:"dy"`
	Rotation float64  `toml:"rotation"`
	Scale    float64  `toml:"scale"`
	Opacity  *float64 `toml:"opacity"`
}

// Load reads a scene file. Image sources are resolved relative to the
// file's directory.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read scene %s", path)
	}
	return Decode(bytes.NewReader(data), &ImportContext{BaseDir: filepath.Dir(path)})
}

// Decode parses a scene from r. A nil ic resolves sources against the
// working directory.
func Decode(r io.Reader, ic *ImportContext) (*Scene, error) {
	if ic == nil {
		ic = &ImportContext{}
	}
	var f sceneFile
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse scene")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown keys: %s", strings.Join(keys, ", "))
	}

	settings, err := f.Scene.settings()
	if err != nil {
		return nil, err
	}
	if ic.Gradients == nil {
		ic.Gradients = make(map[string]*raster.Gradient, len(f.Gradients))
	}
	for name, g := range f.Gradients {
		grad, err := g.gradient()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidScene, err, "gradient %q", name)
		}
		ic.Gradients[name] = grad
	}

	s := New(settings)
	for _, bf := range f.Boxes {
		if err := ic.addBox(s, bf, nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (f settingsFile) settings() (Settings, error) {
	s := DefaultSettings()
	if f.Width != 0 {
		s.Width = f.Width
	}
	if f.Height != 0 {
		s.Height = f.Height
	}
	if f.Resolution != 0 {
		s.Resolution = f.Resolution
	}
	if f.FPS != 0 {
		s.FPS = f.FPS
	}
	s.Start, s.End = f.Start, f.End
	if f.Clip != nil {
		s.Clip = *f.Clip
	}
	if f.Background != "" {
		c, err := raster.ParseColor(f.Background)
		if err != nil {
			return s, errors.Wrap(errors.ErrCodeInvalidScene, err, "background")
		}
		s.Background = c
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (g gradientFile) gradient() (*raster.Gradient, error) {
	out := &raster.Gradient{R: g.R}
	switch g.Kind {
	case "", "linear":
		out.Kind = raster.GradientLinear
	case "radial":
		out.Kind = raster.GradientRadial
	default:
		return nil, fmt.Errorf("unknown gradient kind %q", g.Kind)
	}
	var err error
	if out.X0, out.Y0, err = pair(g.From, "from"); err != nil {
		return nil, err
	}
	if out.Kind == raster.GradientLinear {
		if out.X1, out.Y1, err = pair(g.To, "to"); err != nil {
			return nil, err
		}
	}
	if len(g.Stops) == 0 {
		return nil, fmt.Errorf("no colour stops")
	}
	for _, st := range g.Stops {
		c, err := raster.ParseColor(st.Color)
		if err != nil {
			return nil, err
		}
		out.Stops = append(out.Stops, raster.Stop{Offset: st.Offset, Color: c})
	}
	return out, nil
}

func pair(v []float64, what string) (float64, float64, error) {
	if len(v) != 2 {
		return 0, 0, fmt.Errorf("%s: want [x, y], got %d values", what, len(v))
	}
	return v[0], v[1], nil
}

// paint resolves a fill or stroke: a colour, "none" or "gradient:<name>".
func (ic *ImportContext) paint(s string) (raster.Paint, error) {
	if name, ok := strings.CutPrefix(s, "gradient:"); ok {
		g, ok := ic.Gradients[name]
		if !ok {
			return raster.Paint{}, fmt.Errorf("unknown gradient %q", name)
		}
		return raster.Paint{Gradient: g}, nil
	}
	c, err := raster.ParseColor(s)
	if err != nil {
		return raster.Paint{}, err
	}
	return raster.Solid(c), nil
}

func (ic *ImportContext) source(p string) (string, error) {
	if err := errors.ValidatePath(p); err != nil {
		return "", err
	}
	return filepath.Join(ic.BaseDir, filepath.FromSlash(p)), nil
}

func (ic *ImportContext) addBox(s *Scene, f boxFile, parent *Box) error {
	kind, err := ParseKind(f.Kind)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidBox, err, "kind").ForBox(f.Name)
	}
	props, err := ic.props(f, kind)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidBox, err, "properties").ForBox(f.Name)
	}
	b, err := s.NewBox(f.Name, kind, parent)
	if err != nil {
		return err
	}
	b.props = props
	for _, c := range f.Children {
		if err := ic.addBox(s, c, b); err != nil {
			return err
		}
	}
	return nil
}

func (ic *ImportContext) props(f boxFile, kind Kind) (Props, error) {
	p := DefaultProps()
	p.X, p.Y = f.X, f.Y
	p.ScaleX = f.ScaleX.Or(1)
	p.ScaleY = f.ScaleY.Or(1)
	p.Rotation = f.Rotation
	p.PivotX, p.PivotY = f.PivotX, f.PivotY
	p.Opacity = f.Opacity.Or(1)
	p.Width, p.Height, p.Radius = f.Width, f.Height, f.Radius
	p.Closed = f.Closed
	p.StrokeWidth = f.StrokeWidth.Or(1)
	p.Blend = f.Blend

	for i, pt := range f.Points {
		if len(pt) != 2 {
			return p, fmt.Errorf("point %d: want [x, y]", i)
		}
		p.Points = append(p.Points, geom.Pt(pt[0], pt[1]))
	}
	if kind == KindPath && len(p.Points) < 2 {
		return p, fmt.Errorf("path needs at least two points")
	}

	var err error
	if f.Fill != "" {
		if p.Fill, err = ic.paint(f.Fill); err != nil {
			return p, fmt.Errorf("fill: %w", err)
		}
	}
	if f.Stroke != "" {
		if p.Stroke, err = ic.paint(f.Stroke); err != nil {
			return p, fmt.Errorf("stroke: %w", err)
		}
	}

	switch kind {
	case KindText:
		if f.Text == "" {
			return p, fmt.Errorf("text box has no text")
		}
		p.Text = f.Text
		p.FontSize = f.FontSize.Or(fonts.DefaultSize)
	case KindImage:
		if p.Source, err = ic.source(f.Source); err != nil {
			return p, err
		}
	case KindSequence:
		if len(f.Sequence) == 0 {
			return p, fmt.Errorf("sequence has no frames")
		}
		for _, sp := range f.Sequence {
			full, err := ic.source(sp)
			if err != nil {
				return p, err
			}
			p.Sequence = append(p.Sequence, full)
		}
	}

	for _, e := range f.Effects {
		switch e.Type {
		case "blur":
			p.Effects = append(p.Effects, raster.Blur{Radius: e.Radius})
		case "brightness":
			p.Effects = append(p.Effects, raster.Brightness{Percent: e.Percent})
		default:
			return p, fmt.Errorf("unknown effect %q", e.Type)
		}
	}

	if mb := f.MotionBlur; mb != nil {
		if mb.Samples < 0 {
			return p, fmt.Errorf("motion_blur: negative sample count")
		}
		p.MotionBlur = MotionBlur{Samples: mb.Samples, Step: max(mb.Step, 1), Opacity: mb.Opacity}
		if p.MotionBlur.Opacity == 0 {
			p.MotionBlur.Opacity = 1
		}
	}

	if kind == KindGroup && (len(f.Echoes) > 0 || f.Pin != nil) {
		return p, fmt.Errorf("groups cannot have echoes or a pin")
	}
	for _, e := range f.Echoes {
		echo := Echo{Dx: e.Dx, Dy: e.Dy, Rotation: e.Rotation, Scale: e.Scale, Opacity: 1}
		if e.Opacity != nil {
			echo.Opacity = *e.Opacity
		}
		p.Echoes = append(p.Echoes, echo)
	}
	if f.Pin != nil {
		x, y, err := pair(f.Pin, "pin")
		if err != nil {
			return p, err
		}
		p.Pin = &geom.Point{X: x, Y: y}
	}
	if f.Range != nil {
		if len(f.Range) != 2 {
			return p, fmt.Errorf("range: want [start, end]")
		}
		if err := errors.ValidateFrameRange(f.Range[0], f.Range[1]); err != nil {
			return p, err
		}
		p.Range = Range{Start: f.Range[0], End: f.Range[1], Set: true}
	}
	return p, nil
}
