package pipeline

import (
	"cmp"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/boxrender/pkg/cache"
)

// Runner renders scenes through a cache. The CLI and the HTTP server both
// go through it, so cache keys and hooks agree everywhere.
//
// A Runner holds no per-render state; one value serves concurrent renders
// with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// FrameTTL and GraphTTL bound how long results stay cached.
	FrameTTL time.Duration
	GraphTTL time.Duration
}

// NewRunner returns a runner. Nil arguments fall back to a NullCache (no
// caching), the DefaultKeyer and the default logger.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	return &Runner{
		Cache:    cmp.Or(c, cache.NewNullCache()),
		Keyer:    cmp.Or(keyer, cache.NewDefaultKeyer()),
		Logger:   cmp.Or(logger, log.Default()),
		FrameTTL: cache.TTLFrame,
		GraphTTL: cache.TTLGraph,
	}
}

// Close closes the cache.
func (r *Runner) Close() error {
	if r.Cache == nil {
		return nil
	}
	return r.Cache.Close()
}

// applyLogger defaults opts.Logger to the runner's logger.
func (r *Runner) applyLogger(opts *Options) {
	opts.Logger = cmp.Or(opts.Logger, r.Logger)
}
