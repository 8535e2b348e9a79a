package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/boxrender/pkg/history"
	"github.com/matzehuels/boxrender/pkg/pipeline"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)
	styleHeader   = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Render Summary
// =============================================================================

// statsLine summarizes a render on a single line.
func statsLine(res *pipeline.Result) string {
	parts := []string{
		fmt.Sprintf("%d boxes", res.Stats.Boxes),
		fmt.Sprintf("%d tasks", res.Stats.Tasks),
	}
	if res.Stats.Canceled > 0 {
		parts = append(parts, fmt.Sprintf("%d canceled", res.Stats.Canceled))
	}
	if res.Stats.Failed > 0 {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("%d failed", res.Stats.Failed)))
	}
	parts = append(parts, styleCached.Render(fmt.Sprintf("%d %s", res.CacheInfo.Hits, iconCached)))
	parts = append(parts, styleComputed.Render(fmt.Sprintf("%d %s", res.CacheInfo.Misses, iconFresh)))
	return "  " + strings.Join(parts, StyleDim.Render(" · "))
}

// frameTable renders one row per frame. Long runs are cut to the first and
// last rows.
func frameTable(res *pipeline.Result, files map[int]string, maxRows int) string {
	frames := res.Frames
	var skipped int
	if maxRows > 0 && len(frames) > maxRows {
		skipped = len(frames) - maxRows
		head := frames[:maxRows/2]
		tail := frames[len(frames)-(maxRows-maxRows/2):]
		frames = append(append([]pipeline.Frame{}, head...), tail...)
	}

	rows := make([][]string, 0, len(frames))
	for _, f := range frames {
		source := iconFresh
		if f.Cached {
			source = iconCached
		}
		layers := "-"
		if len(f.Layers) > 0 {
			layers = strconv.Itoa(len(f.Layers))
		}
		rows = append(rows, []string{strconv.Itoa(f.Number), formatBytes(len(f.PNG)), source, layers, files[f.Number]})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Frame", "Size", "Source", "Layers", "File").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if col == 2 && rows[row][2] == iconCached {
				return styleCached
			}
			if col == 0 {
				return StyleNumber
			}
			return styleComputed
		})

	out := t.Render()
	if skipped > 0 {
		out += "\n" + StyleDim.Render(fmt.Sprintf("  … %d more frames", skipped))
	}
	return out
}

// historyTable renders history records newest first.
func historyTable(records []history.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Source,
			formatFrames(r.Frames),
			strconv.Itoa(r.Cached),
			strconv.Itoa(r.Failed),
			r.Duration.Duration().String(),
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "When", "Source", "Frames", "Cached", "Failed", "Took").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if col == 5 && rows[row][5] != "0" {
				return StyleWarning
			}
			return StyleValue
		}).
		Render()
}

// =============================================================================
// Formatting
// =============================================================================

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// formatFrames prints a frame list compactly, e.g. "0-3,7".
func formatFrames(frames []int) string {
	var parts []string
	for i := 0; i < len(frames); {
		j := i
		for j+1 < len(frames) && frames[j+1] == frames[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d-%d", frames[i], frames[j]))
		} else {
			parts = append(parts, strconv.Itoa(frames[i]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}
