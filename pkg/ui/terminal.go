// Package ui prints styled status lines for the command line.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes styled lines to one writer
type Printer struct {
	mu    sync.Mutex
	out   io.Writer
	st    styles
	quiet bool
}

// NewPrinter creates a Printer whose color profile follows w
func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w, st: newStyles(lipgloss.NewRenderer(w))}
}

var (
	defaultMu      sync.RWMutex
	defaultPrinter = NewPrinter(os.Stdout)
)

// Default returns the process-wide printer
func Default() *Printer {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultPrinter
}

// SetDefault replaces the process-wide printer
func SetDefault(p *Printer) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultPrinter = p
}

// SetQuiet suppresses everything except errors
func (p *Printer) SetQuiet(quiet bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quiet = quiet
}

func (p *Printer) println(force bool, s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet && !force {
		return
	}
	fmt.Fprintln(p.out, s)
}

// Info prints "label: value"
func (p *Printer) Info(label, value string) {
	p.println(false, p.st.label.Render(label+":")+" "+p.st.value.Render(value))
}

// Success prints a green line
func (p *Printer) Success(msg string) {
	p.println(false, p.st.success.Render(msg))
}

// Highlight prints a magenta line
func (p *Printer) Highlight(msg string) {
	p.println(false, p.st.highlight.Render(msg))
}

// Warning prints a yellow line with an optional detail
func (p *Printer) Warning(msg string, detail ...interface{}) {
	p.println(false, p.st.warning.Render(withDetail(msg, detail)))
}

// Error prints a red line with an optional detail. Quiet mode does not hide it.
func (p *Printer) Error(msg string, detail ...interface{}) {
	p.println(true, p.st.failure.Render(withDetail(msg, detail)))
}

// Table prints rows under a header inside a rounded panel
func (p *Printer) Table(title string, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := range headers {
			if i < len(row) && lipgloss.Width(row[i]) > widths[i] {
				widths[i] = lipgloss.Width(row[i])
			}
		}
	}

	lines := []string{p.st.header.Render(title), p.st.label.Render(joinCells(headers, widths))}
	for _, row := range rows {
		lines = append(lines, joinCells(row, widths))
	}
	if len(rows) == 0 {
		lines = append(lines, p.st.muted.Render("no rows"))
	}

	p.println(false, p.st.panel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func joinCells(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = cell + strings.Repeat(" ", w-lipgloss.Width(cell))
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

func withDetail(msg string, detail []interface{}) string {
	if len(detail) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, detail[0])
}

// PrintInfo prints through the default printer
func PrintInfo(label, value string) { Default().Info(label, value) }

// PrintSuccess prints through the default printer
func PrintSuccess(msg string) { Default().Success(msg) }

// PrintHighlight prints through the default printer
func PrintHighlight(msg string) { Default().Highlight(msg) }

// PrintWarning prints through the default printer
func PrintWarning(msg string, detail ...interface{}) { Default().Warning(msg, detail...) }

// PrintError prints through the default printer
func PrintError(msg string, detail ...interface{}) { Default().Error(msg, detail...) }

// FormatBytes renders a byte count with a binary unit
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
