package scene

import (
	"fmt"
	"slices"
	"strings"
)

// Interp selects how a keyframe interpolates towards the next one.
type Interp int

const (
	InterpLinear Interp = iota
	InterpHold
)

// Key is one keyframe.
type Key struct {
	Frame  int
	Value  float64
	Interp Interp
}

// Animated is a property value: either a constant or a keyframe track.
// The zero value is the constant 0 and reports IsSet() == false.
type Animated struct {
	value float64
	keys  []Key
	set   bool
}

// Const returns a constant value.
func Const(v float64) Animated {
	return Animated{value: v, set: true}
}

// Keyframes returns a keyframe track. Keys are sorted by frame.
func Keyframes(keys ...Key) Animated {
	ks := slices.Clone(keys)
	slices.SortStableFunc(ks, func(a, b Key) int { return a.Frame - b.Frame })
	return Animated{keys: ks, set: true}
}

// IsSet reports whether the value was given explicitly.
func (a Animated) IsSet() bool { return a.set }

// IsAnimated reports whether the value has keyframes.
func (a Animated) IsAnimated() bool { return len(a.keys) > 0 }

// Or returns a if set, otherwise the constant def.
func (a Animated) Or(def float64) Animated {
	if a.set {
		return a
	}
	return Const(def)
}

// At evaluates the value at frame. Before the first key the first value
// holds; after the last key the last value holds.
func (a Animated) At(frame int) float64 {
	ks := a.keys
	if len(ks) == 0 {
		return a.value
	}
	if frame <= ks[0].Frame {
		return ks[0].Value
	}
	last := ks[len(ks)-1]
	if frame >= last.Frame {
		return last.Value
	}
	i, _ := slices.BinarySearchFunc(ks, frame, func(k Key, f int) int { return k.Frame - f })
	// ks[i-1].Frame < frame <= ks[i].Frame
	if ks[i].Frame == frame {
		return ks[i].Value
	}
	prev, next := ks[i-1], ks[i]
	if prev.Interp == InterpHold {
		return prev.Value
	}
	t := float64(frame-prev.Frame) / float64(next.Frame-prev.Frame)
	return prev.Value + (next.Value-prev.Value)*t
}

// UnmarshalTOML accepts a number, or an array of keyframes written either
// as tables ({frame = 0, value = 1, interp = "hold"}) or as [frame, value]
// pairs.
func (a *Animated) UnmarshalTOML(v any) error {
	if f, ok := number(v); ok {
		*a = Const(f)
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("animated value: want number or array, got %T", v)
	}
	keys := make([]Key, 0, len(items))
	for i, item := range items {
		k, err := parseKey(item)
		if err != nil {
			return fmt.Errorf("keyframe %d: %w", i, err)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return fmt.Errorf("animated value: empty keyframe list")
	}
	*a = Keyframes(keys...)
	return nil
}

func parseKey(v any) (Key, error) {
	switch kv := v.(type) {
	case map[string]any:
		frame, ok := number(kv["frame"])
		if !ok {
			return Key{}, fmt.Errorf("missing numeric frame")
		}
		value, ok := number(kv["value"])
		if !ok {
			return Key{}, fmt.Errorf("missing numeric value")
		}
		k := Key{Frame: int(frame), Value: value}
		if s, ok := kv["interp"].(string); ok {
			interp, err := parseInterp(s)
			if err != nil {
				return Key{}, err
			}
			k.Interp = interp
		}
		return k, nil
	case []any:
		if len(kv) != 2 {
			return Key{}, fmt.Errorf("want [frame, value], got %d elements", len(kv))
		}
		frame, ok1 := number(kv[0])
		value, ok2 := number(kv[1])
		if !ok1 || !ok2 {
			return Key{}, fmt.Errorf("[frame, value] must be numbers")
		}
		return Key{Frame: int(frame), Value: value}, nil
	}
	return Key{}, fmt.Errorf("unsupported keyframe %T", v)
}

func parseInterp(s string) (Interp, error) {
	switch strings.ToLower(s) {
	case "", "linear":
		return InterpLinear, nil
	case "hold", "step":
		return InterpHold, nil
	}
	return InterpLinear, fmt.Errorf("unknown interpolation %q", s)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
