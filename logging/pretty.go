package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// PrettyLogger provides pretty formatted console output
type PrettyLogger struct {
	writer io.Writer
	styles PrettyStyles
}

// PrettyStyles contains lipgloss styles for different log types
type PrettyStyles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Path    lipgloss.Style
	Kind    lipgloss.Style
}

// DefaultPrettyStyles returns the default styling for pretty logs
func DefaultPrettyStyles() PrettyStyles {
	return stylesFor(lipgloss.DefaultRenderer())
}

func stylesFor(r *lipgloss.Renderer) PrettyStyles {
	return PrettyStyles{
		Success: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),  // Green
		Info:    r.NewStyle().Foreground(lipgloss.Color("12")),             // Blue
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),             // Yellow
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),   // Red
		Key:     r.NewStyle().Foreground(lipgloss.Color("8")),              // Gray
		Value:   r.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),  // Cyan
		Path:    r.NewStyle().Foreground(lipgloss.Color("6")).Italic(true), // Dark cyan
		Kind:    r.NewStyle().Foreground(lipgloss.Color("5")).Width(7),     // Magenta
	}
}

// rendererFor returns a renderer bound to w. Anything that is not a terminal
// gets plain ASCII so piped output carries no escape codes.
func rendererFor(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		r.SetColorProfile(termenv.Ascii)
	}
	return r
}

// NewPrettyLogger creates a pretty logger writing to stderr.
func NewPrettyLogger() *PrettyLogger {
	return &PrettyLogger{
		writer: os.Stderr,
		styles: stylesFor(rendererFor(os.Stderr)),
	}
}

// WithWriter sets a custom writer for pretty output
func (p *PrettyLogger) WithWriter(w io.Writer) *PrettyLogger {
	p.writer = w
	p.styles = stylesFor(rendererFor(w))
	return p
}

// Writer returns the destination of pretty output.
func (p *PrettyLogger) Writer() io.Writer {
	return p.writer
}

// Styles returns the styles bound to the current writer.
func (p *PrettyLogger) Styles() PrettyStyles {
	return p.styles
}

// Success logs a success message with a checkmark
func (p *PrettyLogger) Success(message string) {
	fmt.Fprintf(p.writer, "%s %s\n",
		p.styles.Success.Render("✓"),
		p.styles.Success.Render(message))
}

// InfoPretty logs an info message with pretty formatting
func (p *PrettyLogger) InfoPretty(message string) {
	fmt.Fprintf(p.writer, "%s\n", p.styles.Info.Render(message))
}

// WarnPretty logs a warning with pretty formatting
func (p *PrettyLogger) WarnPretty(message string) {
	fmt.Fprintf(p.writer, "%s %s\n",
		p.styles.Warning.Render("⚠"),
		p.styles.Warning.Render(message))
}

// ErrorPretty logs an error with pretty formatting
func (p *PrettyLogger) ErrorPretty(message string, err error) {
	fmt.Fprintf(p.writer, "%s %s",
		p.styles.Error.Render("✗"),
		p.styles.Error.Render(message))
	if err != nil {
		fmt.Fprintf(p.writer, ": %s", p.styles.Error.Render(err.Error()))
	}
	fmt.Fprintln(p.writer)
}

// Field logs a key-value pair with pretty formatting
func (p *PrettyLogger) Field(key string, value interface{}) {
	fmt.Fprintf(p.writer, "%s: %s\n",
		p.styles.Key.Render(key),
		p.styles.Value.Render(fmt.Sprint(value)))
}

// Path logs a file path with special formatting
func (p *PrettyLogger) Path(label string, path string) {
	fmt.Fprintf(p.writer, "%s: %s\n",
		p.styles.Key.Render(label),
		p.styles.Path.Render(path))
}

// Change logs a single file change, e.g. "change  src/app.js".
func (p *PrettyLogger) Change(kind, path string) {
	fmt.Fprintf(p.writer, "%s %s\n",
		p.styles.Kind.Render(kind),
		p.styles.Path.Render(path))
}

// Divider prints a visual divider
func (p *PrettyLogger) Divider() {
	fmt.Fprintln(p.writer, p.styles.Key.Render(strings.Repeat("─", 60)))
}

// Blank prints a blank line
func (p *PrettyLogger) Blank() {
	fmt.Fprintln(p.writer)
}
