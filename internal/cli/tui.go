package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/boxrender/pkg/observability"
	"github.com/matzehuels/boxrender/pkg/pipeline"
)

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const (
	barWidth     = 30
	tickInterval = 80 * time.Millisecond
)

// =============================================================================
// Messages
// =============================================================================

// frameDoneMsg reports one frame, rendered or served from the cache.
type frameDoneMsg struct {
	frame  int
	cached bool
	err    error
}

// renderDoneMsg carries the outcome of the whole render.
type renderDoneMsg struct {
	res *pipeline.Result
	err error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// =============================================================================
// renderModel - Render progress view
// =============================================================================

// renderModel is the bubbletea model showing render progress.
type renderModel struct {
	title    string
	total    int
	done     int
	cached   int
	failed   int
	last     int
	spin     int
	start    time.Time
	cancel   context.CancelFunc
	canceled bool
	finished bool

	res *pipeline.Result
	err error
}

func newRenderModel(title string, total int, cancel context.CancelFunc) renderModel {
	return renderModel{
		title:  title,
		total:  total,
		last:   -1,
		start:  time.Now(),
		cancel: cancel,
	}
}

func (m renderModel) Init() tea.Cmd {
	return tick()
}

func (m renderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.canceled {
				m.canceled = true
				m.cancel()
			}
		}
		return m, nil

	case frameDoneMsg:
		m.done++
		if msg.frame >= 0 {
			m.last = msg.frame
		}
		if msg.cached {
			m.cached++
		}
		if msg.err != nil {
			m.failed++
		}
		return m, nil

	case renderDoneMsg:
		m.finished = true
		m.res, m.err = msg.res, msg.err
		return m, tea.Quit

	case tickMsg:
		if m.finished {
			return m, nil
		}
		m.spin = (m.spin + 1) % len(spinnerFrames)
		return m, tick()
	}
	return m, nil
}

func (m renderModel) View() string {
	if m.finished {
		return ""
	}

	var b strings.Builder
	b.WriteString(styleIconSpinner.Render(spinnerFrames[m.spin]))
	b.WriteString(" ")
	if m.canceled {
		b.WriteString(StyleWarning.Render("Canceling..."))
	} else {
		b.WriteString(StyleTitle.Render("Rendering"))
		b.WriteString(" " + StyleValue.Render(m.title))
	}
	b.WriteString("\n\n  ")
	b.WriteString(progressBar(m.done, m.total, barWidth))
	b.WriteString(" " + StyleNumber.Render(fmt.Sprintf("%d/%d", m.done, m.total)) + " frames")

	details := []string{fmt.Sprintf("%d cached", m.cached)}
	if m.failed > 0 {
		details = append(details, StyleWarning.Render(fmt.Sprintf("%d failed", m.failed)))
	}
	if m.last >= 0 {
		details = append(details, fmt.Sprintf("last %d", m.last))
	}
	details = append(details, time.Since(m.start).Round(100*time.Millisecond).String())
	b.WriteString("\n  " + StyleDim.Render(strings.Join(details, " · ")))
	b.WriteString("\n\n" + StyleDim.Render("  ctrl+c to cancel") + "\n")
	return b.String()
}

// progressBar draws a fixed-width bar for done out of total.
func progressBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = min(width, done*width/total)
	}
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// =============================================================================
// Progress Hooks
// =============================================================================

// progressHooks forwards frame events to the running program.
type progressHooks struct {
	observability.NoopPipelineHooks
	observability.NoopCacheHooks
	send func(tea.Msg)
}

func (h progressHooks) OnRenderComplete(_ context.Context, frame int, _ time.Duration, err error) {
	h.send(frameDoneMsg{frame: frame, err: err})
}

// OnCacheHit counts cached frames. The hook carries no frame number.
func (h progressHooks) OnCacheHit(_ context.Context, keyType string) {
	if keyType == "frame" {
		h.send(frameDoneMsg{frame: -1, cached: true})
	}
}

// swapHooks adds h next to the registered hooks and returns a function
// restoring the previous ones.
func swapHooks(h progressHooks) func() {
	prevPipeline := observability.SetPipelineHooks(observability.TeePipelineHooks(observability.Pipeline(), h))
	prevCache := observability.SetCacheHooks(observability.TeeCacheHooks(observability.Cache(), h))
	return func() {
		observability.SetPipelineHooks(prevPipeline)
		observability.SetCacheHooks(prevCache)
	}
}

// runRenderTUI runs the render behind the progress view.
func runRenderTUI(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*pipeline.Result, error) {
	l, err := runner.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	total := len(opts.Frames)
	if total == 0 {
		s := l.Scene.Settings()
		total = s.End - s.Start + 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newRenderModel(opts.ScenePath, total, cancel))
	restore := swapHooks(progressHooks{send: p.Send})
	defer restore()

	go func() {
		res, err := runner.Render(ctx, opts)
		p.Send(renderDoneMsg{res: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress view: %w", err)
	}
	m := final.(renderModel)
	return m.res, m.err
}
