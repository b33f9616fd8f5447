package bytecode

import (
	"github.com/sarowish/dgeval/internal/ast"
	"github.com/sarowish/dgeval/internal/runtime"
)

// Interp executes one instruction slice against an explicit value stack and
// the symbol slots in slots. It is the always-correct reference executor:
// internal/jit compiles the pure-Number/Boolean fast path natively and
// falls back to Interp for anything touching strings, arrays, or calls.
type Interp struct {
	rt    *runtime.Runtime
	slots []interface{}
	stack []interface{}
}

func NewInterp(rt *runtime.Runtime, slotCount int) *Interp {
	return &Interp{rt: rt, slots: make([]interface{}, slotCount)}
}

// Slots exposes the interpreter's symbol-slot storage directly, so a
// caller driving some statements through native code (internal/jit) can
// read and write the same slots Interp itself uses for the rest.
func (ip *Interp) Slots() []interface{} { return ip.slots }

func (ip *Interp) push(v interface{}) { ip.stack = append(ip.stack, v) }
func (ip *Interp) pop() interface{} {
	n := len(ip.stack) - 1
	v := ip.stack[n]
	ip.stack = ip.stack[:n]
	return v
}
func (ip *Interp) popN(n int) []interface{} {
	out := make([]interface{}, n)
	copy(out, ip.stack[len(ip.stack)-n:])
	ip.stack = ip.stack[:len(ip.stack)-n]
	return out
}

// Run executes inst starting at instruction 0, honoring Jump/JumpFalse
// targets as post-Peephole live indices into inst itself. If an LRT call
// raises the runtime's exception flag (an out-of-bounds array_element),
// Run stops short of the remaining instructions in inst — the caller is
// responsible for routing to post_exec_cleanup instead of continuing on
// to later statements.
func (ip *Interp) Run(inst []Instruction) {
	pc := 0
	for pc < len(inst) {
		in := inst[pc]
		switch in.Op {
		case ast.OpLiteral:
			ip.push(literalValue(in.Value))
		case ast.OpIdentifier:
			ip.push(ip.slots[in.Parameter])
		case ast.OpAssign:
			v := ip.pop()
			ip.slots[in.Parameter] = v
			ip.push(v)
		case ast.OpPop:
			for i := 0; i < in.Parameter; i++ {
				ip.pop()
			}
		case ast.OpJump:
			pc = in.Parameter
			continue
		case ast.OpJumpFalse:
			if !ip.pop().(bool) {
				pc = in.Parameter
				continue
			}
		case ast.OpAnd:
			r, l := ip.pop().(bool), ip.pop().(bool)
			ip.push(l && r)
		case ast.OpOr:
			r, l := ip.pop().(bool), ip.pop().(bool)
			ip.push(l || r)
		case ast.OpNot:
			ip.push(!ip.pop().(bool))
		case ast.OpNegate:
			ip.push(-ip.pop().(float64))
		case ast.OpEqual, ast.OpNotEqual, ast.OpLess, ast.OpLessEqual, ast.OpGreater, ast.OpGreaterEqual:
			r, l := ip.pop().(float64), ip.pop().(float64)
			ip.push(numericCompare(in.Op, l, r))
		case ast.OpPlus:
			r, l := ip.pop(), ip.pop()
			ip.push(l.(float64) + r.(float64))
		case ast.OpMinus:
			r, l := ip.pop().(float64), ip.pop().(float64)
			ip.push(l - r)
		case ast.OpStar:
			r, l := ip.pop().(float64), ip.pop().(float64)
			ip.push(l * r)
		case ast.OpSlash:
			r, l := ip.pop().(float64), ip.pop().(float64)
			ip.push(l / r)
		case ast.OpCall:
			ip.runCall(in)
		case ast.OpCallLRT:
			ip.runCallLRT(in)
			if ip.rt.Exception {
				return
			}
		}
		pc++
	}
}

func literalValue(v Value) interface{} {
	switch v.Kind {
	case VNumber:
		return v.Number
	case VString:
		return v.Str
	case VBool:
		return v.Bool
	default:
		return nil
	}
}

func numericCompare(op ast.Opcode, l, r float64) bool {
	switch op {
	case ast.OpEqual:
		return l == r
	case ast.OpNotEqual:
		return l != r
	case ast.OpLess:
		return l < r
	case ast.OpLessEqual:
		return l <= r
	case ast.OpGreater:
		return l > r
	case ast.OpGreaterEqual:
		return l >= r
	default:
		return false
	}
}

// runCallLRT dispatches the fixed set of runtime-library trampolines by
// sub-op.
func (ip *Interp) runCallLRT(in Instruction) {
	switch in.Parameter {
	case LRTAllocateArray:
		count := int(in.Value.Number)
		items := ip.popN(count)
		arr := ip.rt.AllocateArray(in.Type.ItemType(), count, items)
		ip.push(arr)
	case LRTArrayElement:
		idx := ip.pop().(float64)
		arr := ip.pop().(*runtime.Array)
		ip.push(ip.rt.ArrayElement(arr, idx))
	case LRTAppendElement:
		v := ip.pop()
		arr := ip.pop().(*runtime.Array)
		ip.push(ip.rt.AppendElement(arr, v))
	case LRTAllocateString:
		ip.push(ip.rt.AllocateString(in.Value.Str))
	case LRTCatString:
		r := ip.pop()
		l := ip.pop()
		ip.push(ip.rt.CatString(toStr(l), toStr(r)))
	case LRTNumberToString:
		ip.push(ip.rt.AllocateString(runtime.NumberToString(ip.pop().(float64))))
	case LRTStrcmp:
		kind := int(in.Value.Number)
		r := ip.pop().(string)
		l := ip.pop().(string)
		ip.push(runtime.Strcmp(l, r, kind))
	case LRTArrcmp:
		kind := int(in.Value.Number)
		r := ip.pop().(*runtime.Array)
		l := ip.pop().(*runtime.Array)
		ip.push(runtime.Arrcmp(l, r, kind))
	case LRTPostExecClean:
		ip.rt.PostExecCleanup()
	}
}

func toStr(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return runtime.NumberToString(v.(float64))
}

// runCall dispatches a runtime-library function call by name, matching the
// fixed 19-entry signature table in compiler/symbol_table.go.
func (ip *Interp) runCall(in Instruction) {
	name := in.Value.Str
	arity := in.Parameter
	args := ip.popN(arity)

	switch name {
	case "stddev":
		ip.push(runtime.Stddev(args[0].(*runtime.Array)))
	case "mean":
		ip.push(runtime.Mean(args[0].(*runtime.Array)))
	case "count":
		ip.push(runtime.Count(args[0].(*runtime.Array)))
	case "min":
		ip.push(runtime.Min(args[0].(*runtime.Array)))
	case "max":
		ip.push(runtime.Max(args[0].(*runtime.Array)))
	case "sin":
		ip.push(runtime.Sin(argOr0(args)))
	case "cos":
		ip.push(runtime.Cos(argOr0(args)))
	case "tan":
		ip.push(runtime.Tan(argOr0(args)))
	case "pi":
		ip.push(runtime.Pi())
	case "atan":
		ip.push(runtime.Atan(argOr0(args)))
	case "asin":
		ip.push(runtime.Asin(argOr0(args)))
	case "acos":
		ip.push(runtime.Acos(argOr0(args)))
	case "exp":
		ip.push(runtime.Exp(argOr0(args)))
	case "ln":
		ip.push(runtime.Ln(argOr0(args)))
	case "right":
		ip.push(runtime.Right(args[0].(string), args[1].(float64)))
	case "left":
		ip.push(runtime.Left(args[0].(string), args[1].(float64)))
	case "len":
		ip.push(runtime.Len(args[0].(string)))
	case "print":
		ip.push(runtime.Print(args[0].(string)))
	case "random":
		ip.push(runtime.Random(args[0].(float64)))
	}
}

func argOr0(args []interface{}) float64 {
	if len(args) == 0 {
		return 0
	}
	return args[0].(float64)
}
