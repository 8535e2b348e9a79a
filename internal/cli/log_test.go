package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/boxrender/pkg/observability"
)

func TestNewLoggerFiltersByLevel(t *testing.T) {
	tests := []struct {
		name  string
		level log.Level
		emit  func(*log.Logger)
		want  bool
	}{
		{"info passes info", log.InfoLevel, func(l *log.Logger) { l.Info("frame written") }, true},
		{"info drops debug", log.InfoLevel, func(l *log.Logger) { l.Debug("task queued") }, false},
		{"debug passes debug", log.DebugLevel, func(l *log.Logger) { l.Debug("task queued") }, true},
		{"warn drops info", log.WarnLevel, func(l *log.Logger) { l.Info("frame written") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.emit(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("wrote output = %v, want %v (%q)", got, tt.want, buf.String())
			}
		})
	}
}

func TestProgressDoneReportsElapsed(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.InfoLevel))
	prog.start = prog.start.Add(-1500 * time.Millisecond)

	prog.done("Rendered 3 frames")

	out := buf.String()
	if !strings.Contains(out, "Rendered 3 frames (1.5") {
		t.Errorf("progress output = %q, want message with elapsed time", out)
	}
}

func TestLoggerContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("empty context should yield log.Default()")
	}

	var buf bytes.Buffer
	l := newLogger(&buf, log.InfoLevel)
	ctx := withLogger(context.Background(), l)
	if got := loggerFromContext(ctx); got != l {
		t.Fatalf("loggerFromContext() = %p, want %p", got, l)
	}

	// A child context keeps the logger.
	child, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	loggerFromContext(child).Info("scene loaded")
	if !strings.Contains(buf.String(), "scene loaded") {
		t.Errorf("attached logger did not receive output: %q", buf.String())
	}
}

func TestLogHooks(t *testing.T) {
	defer observability.Reset()

	var buf bytes.Buffer
	c := &CLI{Logger: newLogger(&buf, log.DebugLevel)}
	c.SetLogLevel(log.DebugLevel)

	ctx := context.Background()
	info := observability.TaskInfo{ID: "t1", Box: "title", Frame: 4}
	observability.Tasks().OnTaskQueued(ctx, info, 2)
	observability.Tasks().OnTaskComplete(ctx, info, time.Millisecond, errors.New("decode failed"))
	observability.Cache().OnCacheHit(ctx, "frame")
	observability.Pipeline().OnRenderComplete(ctx, 4, time.Millisecond, nil)

	out := buf.String()
	for _, want := range []string{"hooks", "task queued", "box=title", "task failed", "decode failed", "cache hit", "frame done"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestSetLogLevelInfoKeepsNoopHooks(t *testing.T) {
	defer observability.Reset()
	observability.Reset()

	var buf bytes.Buffer
	c := &CLI{Logger: newLogger(&buf, log.InfoLevel)}
	c.SetLogLevel(log.InfoLevel)

	observability.Cache().OnCacheHit(context.Background(), "frame")
	if buf.Len() != 0 {
		t.Errorf("hooks should not log at info level: %s", buf.String())
	}
}
