// Package display renders CLI output, styled when writing to a terminal.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// IsTerminal reports whether w is a TTY.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func render(w io.Writer, style lipgloss.Style, s string) string {
	if IsTerminal(w) {
		return style.Render(s)
	}
	return s
}

// Error prints an error line prefixed with the program name.
func Error(w io.Writer, msg string) {
	fmt.Fprintln(w, render(w, ErrorStyle, "ai-pp3: "+msg))
}

// Success prints a success line.
func Success(w io.Writer, msg string) {
	fmt.Fprintln(w, render(w, SuccessStyle, "✓ "+msg))
}

// Warn prints a warning line.
func Warn(w io.Writer, msg string) {
	fmt.Fprintln(w, render(w, WarnStyle, "! "+msg))
}

// Dim prints a de-emphasized line.
func Dim(w io.Writer, msg string) {
	fmt.Fprintln(w, render(w, DimStyle, msg))
}

// Header prints a bold heading.
func Header(w io.Writer, title string) {
	fmt.Fprintln(w, render(w, HeaderStyle, title))
}

// Table writes headers and rows as an aligned table.
func Table(w io.Writer, headers []string, rows [][]string) {
	out := FormatTable(headers, rows)
	if out == "" {
		return
	}
	if IsTerminal(w) {
		first, rest, _ := strings.Cut(out, "\n")
		out = HeaderStyle.Render(first) + "\n" + rest
	}
	fmt.Fprint(w, out)
}

// FormatTable formats data as a simple aligned table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i := range widths {
			if i > 0 {
				b.WriteString("  ")
			}
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(cell)
			if i < len(widths)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)))
			}
		}
		b.WriteString("\n")
	}

	writeRow(headers)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}
