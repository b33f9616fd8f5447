// Package bytecode flattens the dgeval AST into a linear, stack-machine
// instruction stream and peephole-optimises it.
package bytecode

import (
	"fmt"

	"github.com/sarowish/dgeval/internal/ast"
)

// LRT sub-op indices for the CallLRT trampoline table. These are the
// single source of truth for the sub-op immediates; compiler/fold.go
// references them rather than keeping its own copy.
const (
	LRTAllocateArray  = 0
	LRTArrayElement   = 1
	LRTAppendElement  = 2
	LRTAllocateString = 3
	LRTCatString      = 4
	LRTNumberToString = 5
	LRTStrcmp         = 6
	LRTArrcmp         = 7
	LRTPostExecClean  = 8
)

// ValueKind tags the payload carried by an Instruction.
type ValueKind int

const (
	VNone ValueKind = iota
	VNumber
	VString
	VBool
)

// Value is the IR-level immediate: either absent, a double, a string, or a
// bool, matching the data model's `None | double | string | bool`.
type Value struct {
	Kind   ValueKind
	Number float64
	Str    string
	Bool   bool
}

func NumberValue(n float64) Value { return Value{Kind: VNumber, Number: n} }
func StringValue(s string) Value  { return Value{Kind: VString, Str: s} }
func BoolValue(b bool) Value      { return Value{Kind: VBool, Bool: b} }

func (v Value) String() string {
	switch v.Kind {
	case VNumber:
		return fmt.Sprintf("%g", v.Number)
	case VString:
		return fmt.Sprintf("%q", v.Str)
	case VBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return ""
	}
}

// Instruction is one linear IR instruction. Parameter is reused by opcode:
// symbol slot (Identifier/Assign), jump target instruction index
// (Jump/JumpFalse), pop count (Pop), call arity (Call), or LRT sub-op
// (CallLRT). CodeOffset is filled in by the code generator once byte
// offsets are known.
type Instruction struct {
	Op         ast.Opcode
	Parameter  int
	CodeOffset int
	Type       ast.TypeDescriptor
	Value      Value
}

func (in Instruction) String() string {
	return fmt.Sprintf("%-8s %-4d %s %s", in.Op, in.Parameter, in.Type, in.Value)
}

// Flags enables/disables the four optimisations: bit 0 dead-statement
// elision, bit 1 dead-comma-part elision, bit 2 peephole ineffective
// store/load, bit 3 peephole constant-sink.
type Flags int

const (
	FlagDeadStatement Flags = 1 << iota
	FlagDeadExpressionPart
	FlagPeepholeOffload
	FlagPeepholeConstsink
)

const AllFlags Flags = FlagDeadStatement | FlagDeadExpressionPart | FlagPeepholeOffload | FlagPeepholeConstsink

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// builder accumulates the instruction stream for one program.
type builder struct {
	flags Flags
	inst  []Instruction
	// inCallContext is not set or read by any emitter; argument context
	// travels as emitExpr's argContext parameter instead.
	inCallContext bool
}

func (b *builder) emit(in Instruction) int {
	b.inst = append(b.inst, in)
	return len(b.inst) - 1
}

// Generate lowers program (after DependencySort, TypeCheck, and Fold) into
// a flat instruction stream. bounds[i] is the index of the first
// instruction emitted for program.Statements[i], so a caller driving
// statements individually (the JIT dispatcher, a per-statement
// interpreter loop) can slice inst without re-walking the AST.
func Generate(program *ast.Program, flags Flags) (inst []Instruction, bounds []int) {
	b := &builder{flags: flags}
	bounds = make([]int, len(program.Statements))
	for i, stmt := range program.Statements {
		bounds[i] = len(b.inst)
		b.emitStatement(stmt)
	}
	b.emit(Instruction{Op: ast.OpCallLRT, Parameter: 8, Value: NumberValue(0)})
	return b.inst, bounds
}

func isEffective(expr ast.Expression) bool {
	info := expr.Info()
	return info.FunctionCallCount > 0 || info.AssignmentCount > 0
}

func (b *builder) emitStatement(stmt ast.Statement) {
	expr := stmt.Expr()
	if b.flags.has(FlagDeadStatement) && !isEffective(expr) {
		return
	}
	b.emitExpr(expr, false)
	load := stackContribution(expr)
	if load > 0 {
		b.emit(Instruction{Op: ast.OpPop, Parameter: load})
	}
}

// stackContribution is how many values expr actually leaves on the stack.
// This is expr.Info().StackLoad for everything except a folded
// string/array comparison: Fold repurposes StackLoad on those nodes to
// carry the strcmp/arrcmp comparison kind (0-5, see BinaryExpression.SubOp's
// doc comment), and that value is unrelated to how many results the node
// actually leaves — always exactly one, the CallLRT's return.
func stackContribution(expr ast.Expression) int {
	if b, ok := expr.(*ast.BinaryExpression); ok && b.Opcode == ast.OpCallLRT && (b.SubOp == LRTStrcmp || b.SubOp == LRTArrcmp) {
		return 1
	}
	return expr.Info().StackLoad
}

// emitExpr lowers expr for its value; argContext means expr is one item of
// a Call or ArrayLiteral argument list (every item must land on the stack,
// so dead-part elision and Comma rebalancing are suppressed).
func (b *builder) emitExpr(expr ast.Expression, argContext bool) {
	switch e := expr.(type) {
	case *ast.NumberLiteral:
		b.emit(Instruction{Op: ast.OpLiteral, Type: e.TypeDesc, Value: NumberValue(e.Value)})
	case *ast.BooleanLiteral:
		b.emit(Instruction{Op: ast.OpLiteral, Type: e.TypeDesc, Value: BoolValue(e.Value)})
	case *ast.StringLiteral:
		b.emit(Instruction{Op: ast.OpCallLRT, Parameter: 3, Type: e.TypeDesc, Value: StringValue(e.Value)})
	case *ast.ArrayLiteral:
		b.emitArrayLiteral(e, argContext)
	case *ast.Identifier:
		b.emit(Instruction{Op: ast.OpIdentifier, Parameter: e.IdNdx, Type: e.TypeDesc})
	case *ast.UnaryExpression:
		b.emitExpr(e.Left, false)
		if e.Opcode == ast.OpCallLRT {
			b.emit(Instruction{Op: ast.OpCallLRT, Parameter: e.SubOp, Type: e.TypeDesc})
		} else {
			b.emit(Instruction{Op: e.Opcode, Type: e.TypeDesc})
		}
	case *ast.BinaryExpression:
		b.emitBinary(e, argContext)
	}
}

func (b *builder) emitArrayLiteral(lit *ast.ArrayLiteral, argContext bool) {
	b.emitCommaArgs(lit.Items)
	b.emit(Instruction{
		Op: ast.OpCallLRT, Parameter: 0,
		Type: lit.TypeDesc, Value: NumberValue(float64(lit.ItemCount)),
	})
}

// emitCommaArgs emits every item of a right-leaning Comma chain so each
// lands on the stack, in left-to-right order, without any rebalancing Pop.
func (b *builder) emitCommaArgs(expr ast.Expression) {
	if expr == nil {
		return
	}
	if c, ok := expr.(*ast.BinaryExpression); ok && c.Opcode == ast.OpComma {
		b.emitExpr(c.Left, true)
		b.emitCommaArgs(c.Right)
		return
	}
	b.emitExpr(expr, true)
}

func (b *builder) emitBinary(e *ast.BinaryExpression, argContext bool) {
	switch e.Opcode {
	case ast.OpAssign:
		b.emitExpr(e.Right, false)
		id := e.Left.(*ast.Identifier)
		b.emit(Instruction{Op: ast.OpAssign, Parameter: id.IdNdx, Type: e.TypeDesc, Value: Value{Kind: VString, Str: id.Name}})
	case ast.OpComma:
		leftDead := !argContext && b.flags.has(FlagDeadExpressionPart) && !isEffective(e.Left)
		left := 0
		if leftDead {
			// Left contributes no code, and so nothing to the StackLoad
			// recomputed below.
		} else {
			b.emitExpr(e.Left, argContext)
			if !argContext {
				left = stackContribution(e.Left)
				if left > 1 {
					b.emit(Instruction{Op: ast.OpPop, Parameter: left - 1})
					left = 1
				}
			}
		}
		b.emitExpr(e.Right, argContext)
		if !argContext {
			// Count only what this Comma really leaves, so the enclosing
			// statement's Pop matches the stack.
			e.StackLoad = left + stackContribution(e.Right)
		}
	case ast.OpConditional:
		b.emitConditional(e)
	case ast.OpCall:
		id := e.Left.(*ast.Identifier)
		arity := 0
		for _, item := range flattenForCount(e.Right) {
			b.emitExpr(item, true)
			arity++
		}
		b.emit(Instruction{Op: ast.OpCall, Parameter: arity, Type: e.TypeDesc, Value: Value{Kind: VString, Str: id.Name}})
	case ast.OpCallLRT:
		b.emitExpr(e.Left, false)
		b.emitExpr(e.Right, false)
		b.emit(Instruction{Op: ast.OpCallLRT, Parameter: e.SubOp, Type: e.TypeDesc, Value: NumberValue(float64(e.StackLoad))})
	default:
		b.emitExpr(e.Left, false)
		b.emitExpr(e.Right, false)
		b.emit(Instruction{Op: e.Opcode, Type: e.TypeDesc})
	}
}

func flattenForCount(expr ast.Expression) []ast.Expression {
	if expr == nil {
		return nil
	}
	if c, ok := expr.(*ast.BinaryExpression); ok && c.Opcode == ast.OpComma {
		return append([]ast.Expression{c.Left}, flattenForCount(c.Right)...)
	}
	return []ast.Expression{expr}
}

// emitConditional lowers `cond ? a : b` (Conditional holding Left=cond,
// Right=Alt{Left:a, Right:b}) into JumpFalse/Jump with index-based
// backpatching, resolved to byte offsets later by the code generator.
func (b *builder) emitConditional(e *ast.BinaryExpression) {
	alt := e.Right.(*ast.BinaryExpression) // Opcode == OpAlt

	b.emitExpr(e.Left, false)
	jfIdx := b.emit(Instruction{Op: ast.OpJumpFalse, Type: e.TypeDesc})

	b.emitExpr(alt.Left, false)
	jIdx := b.emit(Instruction{Op: ast.OpJump})

	b.inst[jfIdx].Parameter = len(b.inst)
	b.emitExpr(alt.Right, false)

	b.inst[jIdx].Parameter = len(b.inst)
}
