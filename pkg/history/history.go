// Package history keeps a log of render runs.
//
// A [Store] saves one [Record] per pipeline run: which scene was rendered,
// which frames, how many came from the cache and which tasks failed. The
// CLI writes to a [MongoStore] when BOXRENDER_MONGO_URI is set and to a
// [NullStore] otherwise.
package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/boxrender/pkg/pipeline"
)

// ErrNotFound is returned by [Store.Get] for an unknown record id.
var ErrNotFound = errors.New("history record not found")

// DefaultLimit is the number of records List returns when limit <= 0.
const DefaultLimit = 20

// Record describes one render run.
type Record struct {
	ID        string    `bson:"_id" json:"id"`
	Source    string    `bson:"source" json:"source"`
	SceneHash string    `bson:"scene_hash" json:"scene_hash"`
	Frames    []int     `bson:"frames" json:"frames"`
	Cached    int       `bson:"cached" json:"cached"`
	Tasks     int       `bson:"tasks" json:"tasks"`
	Failed    int       `bson:"failed" json:"failed"`
	Warnings  []string  `bson:"warnings,omitempty" json:"warnings,omitempty"`
	Duration  Millis    `bson:"duration_ms" json:"duration_ms"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Millis is a duration stored as whole milliseconds.
type Millis int64

// Duration converts m back to a time.Duration.
func (m Millis) Duration() time.Duration { return time.Duration(m) * time.Millisecond }

// NewRecord summarizes a pipeline result.
func NewRecord(source string, res *pipeline.Result) *Record {
	frames := make([]int, len(res.Frames))
	for i, f := range res.Frames {
		frames[i] = f.Number
	}
	return &Record{
		ID:        uuid.NewString(),
		Source:    source,
		SceneHash: res.SceneHash,
		Frames:    frames,
		Cached:    res.CacheInfo.Hits,
		Tasks:     res.Stats.Tasks,
		Failed:    res.Stats.Failed,
		Warnings:  res.Warnings,
		Duration:  Millis((res.Stats.LoadTime + res.Stats.RenderTime).Milliseconds()),
		CreatedAt: time.Now().UTC(),
	}
}

// Store persists render records.
type Store interface {
	// Save stores r.
	Save(ctx context.Context, r *Record) error
	// List returns the most recent records, newest first.
	List(ctx context.Context, limit int) ([]Record, error)
	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// Close releases the backend connection.
	Close(ctx context.Context) error
}

// =============================================================================
// NullStore
// =============================================================================

// NullStore discards records.
type NullStore struct{}

// NewNullStore returns a store that keeps nothing.
func NewNullStore() Store { return NullStore{} }

func (NullStore) Save(context.Context, *Record) error          { return nil }
func (NullStore) List(context.Context, int) ([]Record, error)  { return nil, nil }
func (NullStore) Get(context.Context, string) (*Record, error) { return nil, ErrNotFound }
func (NullStore) Close(context.Context) error                  { return nil }

// =============================================================================
// MemoryStore
// =============================================================================

// MemoryStore keeps records in process memory. It is safe for concurrent
// use.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Save(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *r)
	return nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, min(limit, len(s.records)))
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			r := s.records[i]
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Close(context.Context) error { return nil }
