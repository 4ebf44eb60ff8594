package demo

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/wippyai/memsafe/errors"
)

// Color selects how a Narrator styles its output.
type Color int

const (
	ColorNever Color = iota
	ColorAuto
	ColorAlways
)

// ParseColor maps "never", "auto" and "always" to a Color.
func ParseColor(s string) (Color, error) {
	switch s {
	case "never":
		return ColorNever, nil
	case "auto", "":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	}
	return ColorNever, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path("color").
		Value(s).
		Detail("valid: auto, always, never").
		Build()
}

type styles struct {
	section lipgloss.Style
	example lipgloss.Style
	ok      lipgloss.Style
	reject  lipgloss.Style
	note    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		section: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		example: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB")),
		ok: r.NewStyle().
			Foreground(lipgloss.Color("#90EE90")),
		reject: r.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")),
		note: r.NewStyle().
			Foreground(lipgloss.Color("#666666")),
	}
}

// Narrator prints demonstration output. Write errors are sticky: after the
// first one nothing more is written and Err reports it.
type Narrator struct {
	w      io.Writer
	styles styles
	err    error
	styled bool
}

// NewNarrator returns a Narrator writing to w. With ColorAuto the renderer
// decides from w whether to emit colors.
func NewNarrator(w io.Writer, color Color) *Narrator {
	n := &Narrator{w: w, styled: color != ColorNever}
	if n.styled {
		r := lipgloss.NewRenderer(w)
		if color == ColorAlways {
			r.SetColorProfile(termenv.ANSI256)
		}
		n.styles = newStyles(r)
	}
	return n
}

func (n *Narrator) render(s lipgloss.Style, text string) string {
	if !n.styled {
		return text
	}
	return s.Render(text)
}

func (n *Narrator) line(text string) {
	if n.err != nil {
		return
	}
	_, n.err = fmt.Fprintln(n.w, text)
}

// Section starts a section.
func (n *Narrator) Section(title string) {
	n.line("")
	n.line(n.render(n.styles.section, title))
}

// Example starts an example inside a section.
func (n *Narrator) Example(title string) {
	n.line("")
	n.line(n.render(n.styles.example, title))
}

// Printf prints one line of narration.
func (n *Narrator) Printf(format string, args ...any) {
	n.line(fmt.Sprintf(format, args...))
}

// OK prints a ✓ line.
func (n *Narrator) OK(format string, args ...any) {
	n.line(n.render(n.styles.ok, "✓ "+fmt.Sprintf(format, args...)))
}

// Rejected prints the fault an unsafe operation was stopped with.
func (n *Narrator) Rejected(err error) {
	n.line(n.render(n.styles.reject, fmt.Sprintf("✗ rejected (%s): %v", errors.KindOf(err), err)))
}

// Note prints a dimmed aside.
func (n *Narrator) Note(format string, args ...any) {
	n.line(n.render(n.styles.note, "  "+fmt.Sprintf(format, args...)))
}

// Err returns the first write error.
func (n *Narrator) Err() error {
	return n.err
}
