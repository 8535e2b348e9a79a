package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestHash(t *testing.T) {
	// Test determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Test different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// Test hash length (SHA-256 produces 64 hex chars)
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("ab"), []byte("c"))
	if a != Digest([]byte("ab"), []byte("c")) {
		t.Error("Digest should be deterministic")
	}
	if a == Digest([]byte("a"), []byte("bc")) {
		t.Error("Digest should separate parts")
	}
	if Digest() == Digest([]byte{}) {
		t.Error("an empty part should change the digest")
	}
	if len(a) != 64 {
		t.Errorf("Digest length = %d, want 64", len(a))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	// FrameKey depends on every component
	base := k.FrameKey("abc", 3, FrameKeyOpts{Resolution: 1})
	if !strings.HasPrefix(base, "frame:") || len(base) != len("frame:")+64 {
		t.Errorf("FrameKey unexpected: %s", base)
	}
	variants := []string{
		k.FrameKey("abd", 3, FrameKeyOpts{Resolution: 1}),
		k.FrameKey("abc", 4, FrameKeyOpts{Resolution: 1}),
		k.FrameKey("abc", 3, FrameKeyOpts{Resolution: 2}),
		k.FrameKey("abc", 3, FrameKeyOpts{Resolution: 1, BoxStates: map[string]uint64{"ball": 1}}),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d should produce a different key", i)
		}
	}

	// Deterministic, including map ordering
	states := map[string]uint64{"a": 1, "b": 2, "c": 3}
	if k.FrameKey("x", 0, FrameKeyOpts{BoxStates: states}) != k.FrameKey("x", 0, FrameKeyOpts{BoxStates: states}) {
		t.Error("FrameKey should be deterministic")
	}

	// GraphKey
	gk1 := k.GraphKey("abc", 0, GraphKeyOpts{Format: "dot"})
	gk2 := k.GraphKey("abc", 0, GraphKeyOpts{Format: "svg"})
	if gk1 == gk2 {
		t.Error("Different GraphKeyOpts should produce different keys")
	}
	if !strings.HasPrefix(gk1, "graph:") {
		t.Errorf("GraphKey unexpected: %s", gk1)
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "staging:")

	frameKey := scoped.FrameKey("abc", 1, FrameKeyOpts{})
	if frameKey != "staging:"+inner.FrameKey("abc", 1, FrameKeyOpts{}) {
		t.Errorf("ScopedKeyer FrameKey unexpected: %s", frameKey)
	}

	graphKey := scoped.GraphKey("abc", 1, GraphKeyOpts{})
	if !strings.HasPrefix(graphKey, "staging:graph:") {
		t.Errorf("ScopedKeyer GraphKey should be prefixed: %s", graphKey)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	// Should use DefaultKeyer when inner is nil
	scoped := NewScopedKeyer(nil, "prefix:")
	key := scoped.FrameKey("abc", 0, FrameKeyOpts{})
	if !strings.HasPrefix(key, "prefix:frame:") {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Errorf("Get(missing) = hit %v, err %v", hit, err)
	}

	if err := c.Set(ctx, "k", []byte("png"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "png" {
		t.Errorf("Get(k) = %q, %v, %v", data, hit, err)
	}

	// Expired entries are misses and get removed
	if err := c.Set(ctx, "old", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := c.Get(ctx, "old"); hit {
		t.Error("expired entry returned as hit")
	}

	// Corrupt entries are misses
	fc := c.(*FileCache)
	if err := os.WriteFile(fc.path("k"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("corrupt entry returned as hit")
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of removed key: %v", err)
	}
	if !strings.HasPrefix(fc.path("k"), dir) {
		t.Errorf("path %s outside %s", fc.path("k"), dir)
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("BOXRENDER_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOXRENDER_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, RedisConfig{Addr: addr, Prefix: "boxrender-test:"})
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()

	key := "frame:" + Hash([]byte(t.Name()))
	defer c.Delete(ctx, key)

	if _, hit, err := c.Get(ctx, key); err != nil || hit {
		t.Fatalf("Get before Set = hit %v, err %v", hit, err)
	}
	if err := c.Set(ctx, key, []byte("data"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "data" {
		t.Errorf("Get = %q, %v, %v", data, hit, err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("hit after Delete")
	}
}

func TestRedisConfigOptions(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RedisConfig
		addr    string
		db      int
		wantErr bool
	}{
		{"default", RedisConfig{}, "localhost:6379", 0, false},
		{"addr", RedisConfig{Addr: "cache:7000"}, "cache:7000", 0, false},
		{"url", RedisConfig{URL: "redis://cache:6380/2", Addr: "ignored:1"}, "cache:6380", 2, false},
		{"bad url", RedisConfig{URL: "http://cache"}, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := tt.cfg.options()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if opts.Addr != tt.addr || opts.DB != tt.db {
				t.Errorf("options = %s db %d, want %s db %d", opts.Addr, opts.DB, tt.addr, tt.db)
			}
		})
	}
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("err = %v, want ErrNetwork", err)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(ErrNetwork)
	if !IsRetryable(err) {
		t.Error("marked error should be retryable")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Error("marked error should wrap the cause")
	}
	if err.Error() != ErrNetwork.Error() {
		t.Errorf("message = %q", err.Error())
	}
	if !IsRetryable(fmt.Errorf("get: %w", err)) {
		t.Error("wrapping should keep the mark")
	}
	if IsRetryable(ErrNetwork) {
		t.Error("unmarked error should not be retryable")
	}
}

func TestBackoff(t *testing.T) {
	ctx := context.Background()
	b := Backoff{Attempts: 3, Delay: time.Millisecond}
	permanent := errors.New("bad key")

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{name: "first try", failures: 0, wantCalls: 1},
		{name: "permanent error", failures: 3, err: permanent, wantCalls: 1, wantErr: permanent},
		{name: "recovers", failures: 1, err: Retryable(ErrNetwork), wantCalls: 2},
		{name: "gives up", failures: 5, err: Retryable(ErrNetwork), wantCalls: 3, wantErr: ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := b.Do(ctx, func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Backoff{Attempts: 3, Delay: time.Hour}.Do(ctx, func() error {
		calls++
		return Retryable(ErrNetwork)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
