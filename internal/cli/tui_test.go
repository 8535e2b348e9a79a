package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/boxrender/pkg/observability"
	"github.com/matzehuels/boxrender/pkg/pipeline"
)

func TestRenderModelProgress(t *testing.T) {
	m := newRenderModel("scene.toml", 4, func() {})

	updates := []tea.Msg{
		frameDoneMsg{frame: 0},
		frameDoneMsg{frame: -1, cached: true},
		frameDoneMsg{frame: 2, err: errors.New("boom")},
	}
	for _, msg := range updates {
		next, _ := m.Update(msg)
		m = next.(renderModel)
	}

	if m.done != 3 || m.cached != 1 || m.failed != 1 {
		t.Errorf("done=%d cached=%d failed=%d, want 3/1/1", m.done, m.cached, m.failed)
	}
	if m.last != 2 {
		t.Errorf("last = %d, want 2", m.last)
	}

	view := m.View()
	for _, want := range []string{"scene.toml", "3/4", "1 cached", "1 failed", "last 2"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestRenderModelDone(t *testing.T) {
	m := newRenderModel("scene.toml", 1, func() {})
	res := &pipeline.Result{SceneHash: "abc"}

	next, cmd := m.Update(renderDoneMsg{res: res})
	m = next.(renderModel)
	if !m.finished || m.res != res {
		t.Fatal("model should hold the result")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if m.View() != "" {
		t.Error("finished model should render nothing")
	}

	// Ticks stop once finished.
	if _, cmd := m.Update(tickMsg{}); cmd != nil {
		t.Error("tick after finish should not reschedule")
	}
}

func TestRenderModelCancel(t *testing.T) {
	calls := 0
	m := newRenderModel("scene.toml", 2, func() { calls++ })

	for range 2 {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		m = next.(renderModel)
	}
	if calls != 1 {
		t.Errorf("cancel called %d times, want 1", calls)
	}
	if !strings.Contains(m.View(), "Canceling") {
		t.Error("view should show canceling state")
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		done, total int
		filled      int
	}{
		{0, 10, 0},
		{5, 10, 5},
		{10, 10, 10},
		{12, 10, 10},
		{3, 0, 0},
	}
	for _, tt := range tests {
		bar := progressBar(tt.done, tt.total, 10)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("progressBar(%d, %d) filled %d, want %d", tt.done, tt.total, got, tt.filled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("progressBar(%d, %d) width %d, want 10", tt.done, tt.total, got)
		}
	}
}

func TestProgressHooks(t *testing.T) {
	defer observability.Reset()

	var msgs []tea.Msg
	restore := swapHooks(progressHooks{send: func(m tea.Msg) { msgs = append(msgs, m) }})

	ctx := context.Background()
	observability.Pipeline().OnRenderComplete(ctx, 3, 0, nil)
	observability.Cache().OnCacheHit(ctx, "frame")
	observability.Cache().OnCacheHit(ctx, "graph")
	observability.Cache().OnCacheMiss(ctx, "frame")

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if m := msgs[0].(frameDoneMsg); m.frame != 3 || m.cached {
		t.Errorf("first message = %+v", m)
	}
	if m := msgs[1].(frameDoneMsg); !m.cached {
		t.Errorf("second message = %+v", m)
	}

	restore()
	observability.Pipeline().OnRenderComplete(ctx, 4, 0, nil)
	if len(msgs) != 2 {
		t.Error("hooks should be restored")
	}
}
