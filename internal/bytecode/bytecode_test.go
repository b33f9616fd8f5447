package bytecode_test

import (
	"testing"

	"github.com/sarowish/dgeval/internal/ast"
	"github.com/sarowish/dgeval/internal/bytecode"
	"github.com/sarowish/dgeval/internal/compiler"
	"github.com/sarowish/dgeval/internal/parser"
)

func generate(t *testing.T, src string, flags bytecode.Flags) ([]bytecode.Instruction, []int) {
	t.Helper()
	p := parser.New(src, "test")
	prog := p.Parse()
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
	return bytecode.Generate(prog, flags)
}

func TestGenerateBoundsLocateEachStatement(t *testing.T) {
	inst, bounds := generate(t, "a = 1; b = 2;", bytecode.AllFlags)
	if len(bounds) != 2 {
		t.Fatalf("expected 2 statement bounds, got %d", len(bounds))
	}
	if bounds[0] != 0 {
		t.Errorf("expected first statement to start at 0, got %d", bounds[0])
	}
	if bounds[1] <= bounds[0] {
		t.Errorf("expected second statement to start after the first, got %d", bounds[1])
	}
	// trailing post-exec-cleanup CallLRT must follow every statement's code.
	last := inst[len(inst)-1]
	if last.Op != ast.OpCallLRT || last.Parameter != bytecode.LRTPostExecClean {
		t.Errorf("expected trailing post-exec-clean CallLRT, got %#v", last)
	}
}

func TestGenerateAssignEmitsLiteralThenAssign(t *testing.T) {
	inst, bounds := generate(t, "a = 1;", bytecode.AllFlags)
	stmt := inst[bounds[0]:]
	if stmt[0].Op != ast.OpLiteral {
		t.Fatalf("expected first instruction OpLiteral, got %s", stmt[0].Op)
	}
	if stmt[1].Op != ast.OpAssign {
		t.Fatalf("expected second instruction OpAssign, got %s", stmt[1].Op)
	}
}

func TestPeepholeOffloadDropsReloadAfterAssign(t *testing.T) {
	inst := []bytecode.Instruction{
		{Op: ast.OpLiteral, Value: bytecode.NumberValue(5)},
		{Op: ast.OpAssign, Parameter: 0},
		{Op: ast.OpPop, Parameter: 1},
		{Op: ast.OpIdentifier, Parameter: 0},
		{Op: ast.OpPop, Parameter: 1},
	}
	out := bytecode.Peephole(inst, bytecode.FlagPeepholeOffload)
	if len(out) != 3 {
		t.Fatalf("expected only the redundant Pop+Identifier dropped, got %d instructions: %v", len(out), out)
	}
	if out[0].Op != ast.OpLiteral || out[1].Op != ast.OpAssign || out[2].Op != ast.OpPop {
		t.Fatalf("unexpected surviving instructions: %v", out)
	}
}

func TestPeepholeConstsinkDropsPushedThenPoppedLiteral(t *testing.T) {
	inst := []bytecode.Instruction{
		{Op: ast.OpLiteral, Value: bytecode.NumberValue(1)},
		{Op: ast.OpPop, Parameter: 1},
	}
	out := bytecode.Peephole(inst, bytecode.FlagPeepholeConstsink)
	if len(out) != 0 {
		t.Fatalf("expected both instructions elided, got %v", out)
	}
}

func TestPeepholeConstsinkDecrementsMultiPop(t *testing.T) {
	inst := []bytecode.Instruction{
		{Op: ast.OpLiteral, Value: bytecode.NumberValue(1)},
		{Op: ast.OpPop, Parameter: 2},
	}
	out := bytecode.Peephole(inst, bytecode.FlagPeepholeConstsink)
	if len(out) != 1 || out[0].Op != ast.OpPop || out[0].Parameter != 1 {
		t.Fatalf("expected a single Pop(1) survivor, got %v", out)
	}
}

func TestPeepholeWithBoundsRemapsAfterElision(t *testing.T) {
	// Statement 0: Literal/Assign/Pop/Identifier/Pop (collapses under offload).
	// Statement 1 begins at index 5, a bare Literal/Pop.
	inst := []bytecode.Instruction{
		{Op: ast.OpLiteral, Value: bytecode.NumberValue(5)},
		{Op: ast.OpAssign, Parameter: 0},
		{Op: ast.OpPop, Parameter: 1},
		{Op: ast.OpIdentifier, Parameter: 0},
		{Op: ast.OpPop, Parameter: 1},
		{Op: ast.OpLiteral, Value: bytecode.NumberValue(9)},
		{Op: ast.OpPop, Parameter: 1},
	}
	bounds := []int{0, 5}
	out, newBounds := bytecode.PeepholeWithBounds(inst, bounds, bytecode.FlagPeepholeOffload)
	if newBounds[0] != 0 {
		t.Errorf("expected statement 0 to still start at 0, got %d", newBounds[0])
	}
	if newBounds[1] != 3 {
		t.Fatalf("expected statement 1 to start at the compacted index 3, got %d (out=%v)", newBounds[1], out)
	}
	if out[newBounds[1]].Op != ast.OpLiteral {
		t.Errorf("expected statement 1's first surviving instruction to be OpLiteral, got %s", out[newBounds[1]].Op)
	}
}

func TestGenerateBareStringComparisonPopsExactlyOne(t *testing.T) {
	// a<b; as a bare statement folds to a single strcmp CallLRT whose
	// comparison kind (here 3, "less than") used to leak into the
	// statement-level Pop count instead of the one value the call
	// actually leaves on the stack.
	inst, bounds := generate(t, `a = "x"; b = "y"; a<b;`, 0)
	last := inst[bounds[2] : len(inst)-1] // exclude the trailing post-exec-cleanup CallLRT
	if len(last) < 2 {
		t.Fatalf("expected the comparison statement to emit at least a CallLRT and a Pop, got %v", last)
	}
	pop := last[len(last)-1]
	if pop.Op != ast.OpPop {
		t.Fatalf("expected the comparison statement to end in a Pop, got %s", pop.Op)
	}
	if pop.Parameter != 1 {
		t.Fatalf("expected Pop(1) for a bare comparison statement, got Pop(%d)", pop.Parameter)
	}
}

func TestCompactRemapsJumpTargets(t *testing.T) {
	inst := []bytecode.Instruction{
		{Op: ast.OpLiteral, Value: bytecode.NumberValue(1)},
		{Op: ast.OpPop, Parameter: 1}, // elided by constsink, shifting everything after it
		{Op: ast.OpJumpFalse, Parameter: 4},
		{Op: ast.OpLiteral, Value: bytecode.BoolValue(true)},
		{Op: ast.OpLiteral, Value: bytecode.BoolValue(false)},
	}
	full := bytecode.Peephole(inst, bytecode.FlagPeepholeConstsink)
	var jf bytecode.Instruction
	for _, in := range full {
		if in.Op == ast.OpJumpFalse {
			jf = in
		}
	}
	if jf.Op == ast.OpNone {
		t.Fatal("expected the JumpFalse to survive compaction")
	}
	if jf.Parameter < 0 || jf.Parameter >= len(full) {
		t.Fatalf("JumpFalse target %d out of range after compaction (len=%d)", jf.Parameter, len(full))
	}
}
