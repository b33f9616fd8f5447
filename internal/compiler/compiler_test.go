package compiler

import (
	"testing"

	"github.com/sarowish/dgeval/internal/ast"
	"github.com/sarowish/dgeval/internal/parser"
)

func compile(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := parser.New(src, "test")
	prog := p.Parse()
	if p.HasErrors() {
		for _, e := range p.Errors() {
			t.Fatalf("parse error: %v", e)
		}
	}
	symbols := NewSymbolTable()
	DependencySort(prog, symbols)
	TypeCheck(prog, symbols)
	return prog
}

func TestDependencySortReordersByDefineUse(t *testing.T) {
	// b is used before it's defined in source order; DependencySort must
	// schedule "b = 2;" before "a = b + 1;".
	prog := compile(t, "a = b + 1; b = 2;")
	if prog.HasErrors() {
		t.Fatalf("unexpected errors: %v", prog.Messages)
	}
	firstDefinesB := false
	for _, stmt := range prog.Statements {
		es := stmt.(*ast.ExpressionStatement)
		bin := es.Expression.(*ast.BinaryExpression)
		if id, ok := bin.Left.(*ast.Identifier); ok && id.Name == "b" {
			firstDefinesB = true
			break
		}
		if id, ok := bin.Left.(*ast.Identifier); ok && id.Name == "a" {
			t.Fatal("a = b + 1 scheduled before b's definition")
		}
	}
	if !firstDefinesB {
		t.Fatal("expected b's definition to appear in the sorted statement list")
	}
}

func TestDependencySortDetectsCircular(t *testing.T) {
	prog := compile(t, "a = b + 1; b = a + 1;")
	if len(prog.CircularStatements) == 0 {
		t.Fatal("expected a and b's mutual dependency to be flagged circular")
	}
}

func TestDependencySortAssignsDenseSlots(t *testing.T) {
	prog := compile(t, "a = 1; b = 2;")
	seen := make(map[int]bool)
	for _, name := range prog.SymbolOrder {
		slot := prog.SymbolTable[name].SlotIndex
		if seen[slot] {
			t.Fatalf("duplicate slot index %d", slot)
		}
		seen[slot] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 distinct slots, got %d", len(seen))
	}
}

func TestTypeCheckRejectsTypeMismatch(t *testing.T) {
	prog := compile(t, `a = 1 + true;`)
	if !prog.HasErrors() {
		t.Fatal("expected a type error adding a Number and a Boolean")
	}
}

func TestTypeCheckUndefinedWaitVariable(t *testing.T) {
	prog := compile(t, "wait(nope) 1;")
	if !prog.HasErrors() {
		t.Fatal("expected an undefined-symbol error from the wait list")
	}
}

func TestTypeCheckUndefinedFunctionCallEmitsOneError(t *testing.T) {
	prog := compile(t, "a = bogus(1);")
	errCount := 0
	for _, m := range prog.Messages {
		if m.Severity == ast.SeverityError {
			errCount++
		}
	}
	if errCount != 1 {
		t.Fatalf("expected exactly one error for an undefined function call, got %d: %v", errCount, prog.Messages)
	}
}

func TestTypeCheckFunctionArityMismatch(t *testing.T) {
	prog := compile(t, `a = len("x", "y");`)
	if !prog.HasErrors() {
		t.Fatal("expected an argument-count error calling len with two arguments")
	}
}

func TestTypeCheckFunctionArgTypeMismatch(t *testing.T) {
	prog := compile(t, `a = len(1);`)
	if !prog.HasErrors() {
		t.Fatal("expected an argument-type error passing a number where len wants a string")
	}
}

func TestFoldConstantArithmetic(t *testing.T) {
	prog := compile(t, "a = 1 + 2 * 3;")
	Fold(prog)
	es := prog.Statements[0].(*ast.ExpressionStatement)
	bin := es.Expression.(*ast.BinaryExpression)
	lit, ok := bin.Right.(*ast.NumberLiteral)
	if !ok {
		t.Fatalf("expected folded literal, got %#v", bin.Right)
	}
	if lit.Value != 7 {
		t.Errorf("got %v, want 7", lit.Value)
	}
}

func TestFoldDivisionByZeroWarns(t *testing.T) {
	prog := compile(t, "a = 1 / 0;")
	Fold(prog)
	foundWarning := false
	for _, m := range prog.Messages {
		if m.Severity == ast.SeverityWarning {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatal("expected a warning when folding division by a literal zero")
	}
	es := prog.Statements[0].(*ast.ExpressionStatement)
	bin := es.Expression.(*ast.BinaryExpression)
	lit, ok := bin.Right.(*ast.NumberLiteral)
	if !ok || lit.Value != 0 {
		t.Fatalf("expected n/0 to fold to the literal 0, got %#v", bin.Right)
	}
}

func TestSymbolTableIsLibraryFunction(t *testing.T) {
	st := NewSymbolTable()
	for _, name := range []string{"stddev", "mean", "sin", "pi", "print", "random", "len", "right", "left"} {
		if !st.IsLibraryFunction(name) {
			t.Errorf("expected %q to be a registered library function", name)
		}
	}
	if st.IsLibraryFunction("not_a_builtin") {
		t.Error("unexpected library function match")
	}
}
