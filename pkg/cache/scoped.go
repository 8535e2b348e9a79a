package cache

// ScopedKeyer wraps a Keyer with a prefix so that several deployments can
// share one Redis instance without seeing each other's entries.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// FrameKey generates a prefixed frame key.
func (k *ScopedKeyer) FrameKey(sceneHash string, frame int, opts FrameKeyOpts) string {
	return k.prefix + k.inner.FrameKey(sceneHash, frame, opts)
}

// GraphKey generates a prefixed graph key.
func (k *ScopedKeyer) GraphKey(sceneHash string, frame int, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(sceneHash, frame, opts)
}
