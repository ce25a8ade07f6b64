// Package output provides terminal status output for CLI commands.
package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// ANSI color codes used when the output is an interactive terminal.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorDim    = "\033[2m"
)

// Writer prints status lines for CLI commands. Color is applied only when
// the destination is a terminal and color has not been disabled.
type Writer struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
	quiet bool
}

// Option modifies a Writer.
type Option func(*Writer)

// WithColor overrides color auto-detection.
func WithColor(enabled bool) Option {
	return func(w *Writer) {
		w.color = enabled
	}
}

// WithQuiet suppresses status and progress lines. Warnings and errors are
// still printed.
func WithQuiet(quiet bool) Option {
	return func(w *Writer) {
		w.quiet = quiet
	}
}

// NewWriter creates a Writer for out. Color defaults to on for interactive
// terminals outside CI, off otherwise.
func NewWriter(out io.Writer, opts ...Option) *Writer {
	w := &Writer{
		out:   out,
		color: IsTTY(out) && !DetectNoColor() && !DetectCI(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Status prints a neutral progress line.
func (w *Writer) Status(format string, args ...any) {
	if w.quiet {
		return
	}
	w.printf(colorDim, format, args...)
}

// Success prints a completion line.
func (w *Writer) Success(format string, args ...any) {
	if w.quiet {
		return
	}
	w.printf(colorGreen, format, args...)
}

// Warning prints a warning line.
func (w *Writer) Warning(format string, args ...any) {
	w.printf(colorYellow, "warning: "+format, args...)
}

// Error prints an error line.
func (w *Writer) Error(format string, args ...any) {
	w.printf(colorRed, "error: "+format, args...)
}

// Progress prints a counter line in the form "message current/total".
func (w *Writer) Progress(message string, current, total int) {
	if w.quiet {
		return
	}
	w.printf(colorDim, "%s %d/%d", message, current, total)
}

func (w *Writer) printf(color, format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()

	line := fmt.Sprintf(format, args...)
	if w.color {
		_, _ = fmt.Fprintf(w.out, "%s%s%s\n", color, line, colorReset)
	} else {
		_, _ = fmt.Fprintln(w.out, line)
	}
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
