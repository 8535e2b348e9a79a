// Package fonts provides the embedded font used by text boxes.
//
// The face is Go Regular from golang.org/x/image/font/gofont, so scenes
// render the same on every machine without system fonts. The font is
// parsed once; faces are created per call because a font.Face must not be
// shared between goroutines.
package fonts

import (
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultSize is the font size in box units when a scene gives none.
const DefaultSize = 16

// Cache for the parsed font (computed once on first access).
var (
	regular     *opentype.Font
	regularErr  error
	regularOnce sync.Once
)

func parsed() (*opentype.Font, error) {
	regularOnce.Do(func() {
		regular, regularErr = opentype.Parse(goregular.TTF)
	})
	return regular, regularErr
}

// NewFace returns a face whose em square is size pixels.
func NewFace(size float64) (font.Face, error) {
	f, err := parsed()
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Measure returns the width of the widest line and the total height of
// text set at size. Lines are separated by "\n".
func Measure(text string, size float64) (w, h float64, err error) {
	face, err := NewFace(size)
	if err != nil {
		return 0, 0, err
	}
	defer face.Close()
	return measure(face, strings.Split(text, "\n"))
}

func measure(face font.Face, lines []string) (w, h float64, err error) {
	for _, line := range lines {
		adv := font.MeasureString(face, line)
		w = math.Max(w, float64(adv)/64)
	}
	h = lineHeight(face) * float64(len(lines))
	return w, h, nil
}

func lineHeight(face font.Face) float64 {
	return float64(face.Metrics().Height) / 64
}

// Render rasterizes text at size in colour c. The image's top-left corner
// is the top-left of the first line; its size matches Measure rounded up.
func Render(text string, size float64, c color.Color) (*image.NRGBA, error) {
	face, err := NewFace(size)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	lines := strings.Split(text, "\n")
	w, h, _ := measure(face, lines)
	if w <= 0 || h <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0)), nil
	}

	dc := gg.NewContext(int(math.Ceil(w)), int(math.Ceil(h)))
	dc.SetFontFace(face)
	dc.SetColor(c)
	ascent := float64(face.Metrics().Ascent) / 64
	lh := lineHeight(face)
	for i, line := range lines {
		dc.DrawString(line, 0, ascent+float64(i)*lh)
	}
	return imaging.Clone(dc.Image()), nil
}
