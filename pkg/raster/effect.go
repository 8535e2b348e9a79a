package raster

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Effect is a raster post-process applied to a task's output. Effects run
// in registration order after drawing.
type Effect interface {
	// Apply returns the processed image. resolution is the task's pixel
	// scale so that radii given in canvas units stay resolution independent.
	Apply(img *image.NRGBA, resolution float64) *image.NRGBA
	// Margin is how far, in device pixels, the effect bleeds past the
	// drawn shape.
	Margin(resolution float64) float64
}

// Blur is a Gaussian blur. Radius is the standard deviation in canvas units.
type Blur struct {
	Radius float64
}

func (b Blur) Apply(img *image.NRGBA, resolution float64) *image.NRGBA {
	sigma := b.Radius * resolution
	if sigma <= 0 {
		return img
	}
	return imaging.Blur(img, sigma)
}

// Margin covers three standard deviations.
func (b Blur) Margin(resolution float64) float64 {
	return math.Ceil(3 * max(b.Radius, 0) * resolution)
}

func (b Blur) String() string { return fmt.Sprintf("blur(%g)", b.Radius) }

// Brightness shifts brightness by Percent in [-100, 100].
type Brightness struct {
	Percent float64
}

func (b Brightness) Apply(img *image.NRGBA, _ float64) *image.NRGBA {
	if b.Percent == 0 {
		return img
	}
	return imaging.AdjustBrightness(img, b.Percent)
}

func (Brightness) Margin(float64) float64 { return 0 }

func (b Brightness) String() string { return fmt.Sprintf("brightness(%g)", b.Percent) }

// ApplyEffects runs effects in order.
func ApplyEffects(img *image.NRGBA, resolution float64, effects []Effect) *image.NRGBA {
	for _, e := range effects {
		img = e.Apply(img, resolution)
	}
	return img
}

// EffectsMargin sums the margins of effects.
func EffectsMargin(resolution float64, effects []Effect) float64 {
	var m float64
	for _, e := range effects {
		m += e.Margin(resolution)
	}
	return m
}
