// Package output renders run progress: ANSI markup expansion, the
// colourised run listener, and failure reports.
package output

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// markupRe matches "@|style[,style...] text|@" markup spans.
var markupRe = regexp.MustCompile(`@\|([\w,]+) (.*?)\|@`)

// stripRe removes markup delimiters only, for width calculations.
var stripRe = regexp.MustCompile(`@\|[\w,]+\s|\|@`)

var styleTokens = map[string]func(lipgloss.Style) lipgloss.Style{
	"red":       func(s lipgloss.Style) lipgloss.Style { return s.Foreground(lipgloss.Color("1")) },
	"green":     func(s lipgloss.Style) lipgloss.Style { return s.Foreground(lipgloss.Color("2")) },
	"yellow":    func(s lipgloss.Style) lipgloss.Style { return s.Foreground(lipgloss.Color("3")) },
	"blue":      func(s lipgloss.Style) lipgloss.Style { return s.Foreground(lipgloss.Color("4")) },
	"bg_red":    func(s lipgloss.Style) lipgloss.Style { return s.Background(lipgloss.Color("1")) },
	"bg_green":  func(s lipgloss.Style) lipgloss.Style { return s.Background(lipgloss.Color("2")) },
	"bg_yellow": func(s lipgloss.Style) lipgloss.Style { return s.Background(lipgloss.Color("3")) },
	"bold":      func(s lipgloss.Style) lipgloss.Style { return s.Bold(true) },
}

// Expand converts "@|style text|@" markup into ANSI escape sequences.
// Unknown style tokens are ignored; the text always survives.
func Expand(s string) string {
	return markupRe.ReplaceAllStringFunc(s, func(span string) string {
		m := markupRe.FindStringSubmatch(span)
		style := lipgloss.NewStyle()
		for _, token := range strings.Split(m[1], ",") {
			if apply, ok := styleTokens[token]; ok {
				style = apply(style)
			}
		}
		return style.Render(m[2])
	})
}

// Expandf formats like fmt.Sprintf, then expands markup in the result.
func Expandf(format string, args ...any) string {
	return Expand(fmt.Sprintf(format, args...))
}

// Strip removes markup delimiters, leaving plain text. Used for width
// calculations before a span is expanded.
func Strip(s string) string {
	return stripRe.ReplaceAllString(s, "")
}

// Width returns the terminal cell width of the markup-stripped string.
func Width(s string) int {
	return runewidth.StringWidth(Strip(s))
}

// TerminalWidth probes the terminal width of f, returning 0 when f is not
// a terminal. A width of zero disables padding in width-sensitive layout.
func TerminalWidth(f *os.File) int {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w < 0 {
		return 0
	}
	return w
}

// AlignLeftRight pads between left and right markup strings so the right
// one lands against the terminal's right edge. Width zero yields a single
// joining space.
func AlignLeftRight(left, right string, width int) string {
	spaces := 1
	if width > 0 {
		leftover := (Width(left) + Width(right)) % width
		spaces = width - leftover
	}
	return left + strings.Repeat(" ", spaces) + right
}
