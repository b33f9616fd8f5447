package errors

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sarowish/dgeval/internal/ast"
	"github.com/sarowish/dgeval/internal/token"
)

func TestReportLocatedMessage(t *testing.T) {
	program := &ast.Program{}
	program.AddMessage(ast.NewLocatedMessage(token.Position{Line: 7}, ast.SeverityError, "undefined symbol"))

	var buf bytes.Buffer
	NewReporter(&buf).Report(program)

	out := buf.String()
	if !strings.Contains(out, "Line Number 7") {
		t.Errorf("expected line number in output, got %q", out)
	}
	if !strings.Contains(out, "Error") {
		t.Errorf("expected severity label in output, got %q", out)
	}
	if !strings.Contains(out, "undefined symbol") {
		t.Errorf("expected message text in output, got %q", out)
	}
}

func TestReportUnlocatedMessage(t *testing.T) {
	program := &ast.Program{}
	program.AddMessage(ast.NewMessage(ast.SeverityInfo, "Completed compilation"))

	var buf bytes.Buffer
	NewReporter(&buf).Report(program)

	out := buf.String()
	if strings.Contains(out, "Line Number") {
		t.Errorf("unlocated message should not carry a line number, got %q", out)
	}
	if !strings.Contains(out, "Completed compilation") {
		t.Errorf("expected message text in output, got %q", out)
	}
}

func TestReportMultipleMessagesOneLinePerMessage(t *testing.T) {
	program := &ast.Program{}
	program.AddMessage(ast.NewLocatedMessage(token.Position{Line: 1}, ast.SeverityWarning, "first"))
	program.AddMessage(ast.NewLocatedMessage(token.Position{Line: 2}, ast.SeverityError, "second"))

	var buf bytes.Buffer
	NewReporter(&buf).Report(program)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 report lines, got %d: %v", len(lines), lines)
	}
}
