package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dl-alexandre/ghmirror/internal/sync/diff"
	"github.com/mattn/go-isatty"
)

// progressReporter prints one line per mirror action
type progressReporter struct {
	w           io.Writer
	showSkipped bool
	styles      map[string]lipgloss.Style
}

func newProgressReporter(w io.Writer, showSkipped, color bool) *progressReporter {
	r := &progressReporter{w: w, showSkipped: showSkipped}
	if color && isTerminal(w) {
		r.styles = map[string]lipgloss.Style{
			"SKIP":   lipgloss.NewStyle().Faint(true),
			"UPDATE": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
			"CREATE": lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
			"DELETE": lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
			"ERROR":  lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		}
	}
	return r
}

func (r *progressReporter) Report(kind diff.ActionKind, path string, err error) {
	if err != nil {
		fmt.Fprintf(r.w, "%s %s: %v\n", r.tag("ERROR"), path, err)
		return
	}
	if kind == diff.ActionSkip && !r.showSkipped {
		return
	}
	fmt.Fprintf(r.w, "%s %s\n", r.tag(strings.ToUpper(string(kind))), path)
}

func (r *progressReporter) tag(label string) string {
	text := "[" + label + "]"
	if style, ok := r.styles[label]; ok {
		return style.Render(text)
	}
	return text
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
