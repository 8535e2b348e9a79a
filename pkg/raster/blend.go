package raster

import (
	"fmt"
	"strings"
)

// BlendMode selects how a composited image combines with the destination.
type BlendMode int

const (
	// BlendNormal is source-over.
	BlendNormal BlendMode = iota
	// BlendSource replaces the destination inside the source rectangle.
	BlendSource
	// BlendMultiply darkens: s*(1-da) + d*(1-sa) + s*d.
	BlendMultiply
	// BlendScreen lightens: s + d - s*d.
	BlendScreen
	// BlendDstIn keeps the destination only where the source is opaque.
	// Destination pixels outside the source rectangle are cleared.
	BlendDstIn
)

var blendNames = map[BlendMode]string{
	BlendNormal:   "normal",
	BlendSource:   "source",
	BlendMultiply: "multiply",
	BlendScreen:   "screen",
	BlendDstIn:    "dst-in",
}

func (m BlendMode) String() string {
	if s, ok := blendNames[m]; ok {
		return s
	}
	return fmt.Sprintf("BlendMode(%d)", int(m))
}

// ParseBlendMode parses a blend mode name. The empty string is BlendNormal.
func ParseBlendMode(s string) (BlendMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return BlendNormal, nil
	}
	for m, name := range blendNames {
		if name == s {
			return m, nil
		}
	}
	return BlendNormal, fmt.Errorf("unknown blend mode: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m BlendMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler so blend modes can be
// written by name in scene files.
func (m *BlendMode) UnmarshalText(b []byte) error {
	v, err := ParseBlendMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// blendChannel combines premultiplied 8-bit channel values (scaled to 0..1)
// for the separable modes.
func blendChannel(mode BlendMode, s, sa, d, da float64) float64 {
	switch mode {
	case BlendMultiply:
		return s*(1-da) + d*(1-sa) + s*d
	case BlendScreen:
		return s + d - s*d
	case BlendDstIn:
		return d * sa
	default:
		return s + d*(1-sa)
	}
}

func blendAlpha(mode BlendMode, sa, da float64) float64 {
	if mode == BlendDstIn {
		return da * sa
	}
	return sa + da - sa*da
}
