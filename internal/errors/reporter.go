// Package errors renders dgeval's compiler diagnostics (ast.Message) to a
// colorized terminal report.
package errors

import (
	"fmt"
	"io"

	"github.com/sarowish/dgeval/internal/ast"
)

// Reporter writes a Program's sorted diagnostics to a writer, one line per
// message: "Line Number N [Severity]: text." when located, or
// "Severity: text" for compiler-internal messages like "Completed
// compilation".
type Reporter struct {
	w io.Writer
}

func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

func (r *Reporter) Report(program *ast.Program) {
	for _, m := range program.Messages {
		r.reportOne(m)
	}
}

func (r *Reporter) reportOne(m ast.Message) {
	label := severityLabel(m.Severity)
	if !m.HasLoc {
		fmt.Fprintf(r.w, "%s: %s\n", label, m.Text)
		return
	}
	fmt.Fprintf(r.w, "Line Number %d [%s]: %s.\n", m.Loc.Line, label, m.Text)
}

func severityLabel(s ast.Severity) string {
	switch s {
	case ast.SeverityError:
		return colorize(ColorRed, "Error")
	case ast.SeverityWarning:
		return colorize(ColorYellow, "Warning")
	default:
		return colorize(ColorBlue, "Info")
	}
}
