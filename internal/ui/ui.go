// Package ui renders opsctl terminal output.
package ui

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/seniorcare/opscentre/internal/schema"
)

var (
	mu      sync.RWMutex
	current = newTheme(lipgloss.NewRenderer(os.Stdout))
)

type theme struct {
	renderer *lipgloss.Renderer
	accent   lipgloss.Style
	pass     lipgloss.Style
	warn     lipgloss.Style
	fail     lipgloss.Style
	muted    lipgloss.Style
	bold     lipgloss.Style
	header   lipgloss.Style
	cell     lipgloss.Style
}

func newTheme(r *lipgloss.Renderer) *theme {
	return &theme{
		renderer: r,
		accent:   r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0b5cad", Dark: "#5fafff"}),
		pass:     r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#56d364"}),
		warn:     r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#e3b341"}),
		fail:     r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}).Bold(true),
		muted:    r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6e7781", Dark: "#8b949e"}),
		bold:     r.NewStyle().Bold(true),
		header:   r.NewStyle().Bold(true).PaddingRight(2),
		cell:     r.NewStyle().PaddingRight(2),
	}
}

func styles() *theme {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetOutput points rendering at w. Colour is enabled only when w is a
// terminal with a colour profile, and never when NO_COLOR is set.
func SetOutput(w io.Writer) {
	r := lipgloss.NewRenderer(w)
	if os.Getenv("NO_COLOR") != "" {
		r.SetColorProfile(termenv.Ascii)
	}
	mu.Lock()
	current = newTheme(r)
	mu.Unlock()
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

func RenderAccent(s string) string { return styles().accent.Render(s) }
func RenderPass(s string) string   { return styles().pass.Render(s) }
func RenderWarn(s string) string   { return styles().warn.Render(s) }
func RenderFail(s string) string   { return styles().fail.Render(s) }
func RenderMuted(s string) string  { return styles().muted.Render(s) }
func RenderBold(s string) string   { return styles().bold.Render(s) }

// RenderStatus colours a task status by urgency.
func RenderStatus(s schema.Status) string {
	switch s {
	case schema.StatusCompleted:
		return RenderPass(string(s))
	case schema.StatusStuck:
		return RenderFail(string(s))
	case schema.StatusInProgress:
		return RenderAccent(string(s))
	}
	return string(s)
}

// RenderPriority colours a task priority.
func RenderPriority(p schema.Priority) string {
	switch p {
	case schema.PriorityEmergency:
		return RenderFail(string(p))
	case schema.PriorityLow:
		return RenderMuted(string(p))
	}
	return string(p)
}

// Table renders rows under headers with aligned columns and no borders.
func Table(headers []string, rows [][]string) string {
	th := styles()
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return th.header
			}
			return th.cell
		})
	return t.String()
}

// Ago renders t relative to now, e.g. "3 minutes ago".
// The zero time renders as "never".
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Bytes renders a size, e.g. "1.2 kB".
func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// Count renders n with thousands separators.
func Count(n int) string {
	return humanize.Comma(int64(n))
}
