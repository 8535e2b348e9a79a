package cache

import "fmt"

// Keyer derives cache keys.
type Keyer interface {
	// FrameKey is the key of an encoded frame of a scene.
	FrameKey(sceneHash string, frame int, opts FrameKeyOpts) string
	// GraphKey is the key of an exported task graph.
	GraphKey(sceneHash string, frame int, opts GraphKeyOpts) string
}

// FrameKeyOpts are the render settings that change a frame's pixels.
type FrameKeyOpts struct {
	Resolution  float64           `json:"resolution"`
	SkipOpacity float64           `json:"skip_opacity"`
	BoxStates   map[string]uint64 `json:"box_states,omitempty"`
}

// GraphKeyOpts select the graph export.
type GraphKeyOpts struct {
	Format   string `json:"format"`
	Detailed bool   `json:"detailed,omitempty"`
}

// DefaultKeyer hashes key components into "<kind>:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

func (DefaultKeyer) FrameKey(sceneHash string, frame int, opts FrameKeyOpts) string {
	return hashKey("frame", sceneHash, fmt.Sprint(frame), opts)
}

func (DefaultKeyer) GraphKey(sceneHash string, frame int, opts GraphKeyOpts) string {
	return hashKey("graph", sceneHash, fmt.Sprint(frame), opts)
}
