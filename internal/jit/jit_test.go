//go:build amd64

package jit

import (
	"testing"

	"github.com/sarowish/dgeval/internal/ast"
	"github.com/sarowish/dgeval/internal/bytecode"
	"github.com/sarowish/dgeval/internal/compiler"
	"github.com/sarowish/dgeval/internal/parser"
	"github.com/sarowish/dgeval/internal/runtime"
)

// buildProgram runs the full compile pipeline (short of CodeGen itself) the
// way cmd/dgeval does, returning the pieces Program.Run needs.
func buildProgram(t *testing.T, src string) (inst []bytecode.Instruction, bounds []int, boolSlot []bool, prog *ast.Program) {
	t.Helper()
	p := parser.New(src, "test")
	prog = p.Parse()
	if p.HasErrors() {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	symbols := compiler.NewSymbolTable()
	compiler.DependencySort(prog, symbols)
	compiler.TypeCheck(prog, symbols)
	if prog.HasErrors() {
		t.Fatalf("compile errors: %v", prog.Messages)
	}
	compiler.Fold(prog)
	inst, bounds = bytecode.Generate(prog, bytecode.AllFlags)

	boolSlot = make([]bool, len(prog.SymbolTable))
	for _, sym := range prog.SymbolTable {
		if sym.Type.IsScalar(ast.TBoolean) {
			boolSlot[sym.SlotIndex] = true
		}
	}
	return
}

// TestBooleanSlotSurvivesNativeWriteBack exercises the exact two-statement
// shape that used to panic: a Boolean assigned by a natively compiled
// statement has to come back out of callNative as a Go bool, not a bare
// float64, or the very next statement's Interp.pop().(bool) (consuming it
// through OpAnd, a library call forces this statement off the fast path)
// blows up with an interface-conversion panic.
func TestBooleanSlotSurvivesNativeWriteBack(t *testing.T) {
	inst, bounds, boolSlot, prog := buildProgram(t, `c = 5 > 3; x = c && (len("x") > 0);`)

	rt := runtime.New()
	p := New(rt, inst, bounds, boolSlot)
	defer p.Close()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Run panicked: %v", r)
		}
	}()
	p.Run()

	xSlot := prog.SymbolTable["x"].SlotIndex
	v, ok := p.interp.Slots()[xSlot].(bool)
	if !ok {
		t.Fatalf("expected x's slot to hold a bool, got %#v", p.interp.Slots()[xSlot])
	}
	if !v {
		t.Errorf("expected x = true, got false")
	}
}
