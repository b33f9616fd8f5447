package compiler

import (
	"github.com/sarowish/dgeval/internal/ast"
	"github.com/sarowish/dgeval/internal/bytecode"
)

// CallLRT sub-op indices. Defined once in internal/bytecode; aliased here
// so fold.go's rewrites read naturally.
const (
	LRTAllocateArray  = bytecode.LRTAllocateArray
	LRTArrayElement   = bytecode.LRTArrayElement
	LRTAppendElement  = bytecode.LRTAppendElement
	LRTAllocateString = bytecode.LRTAllocateString
	LRTCatString      = bytecode.LRTCatString
	LRTNumberToString = bytecode.LRTNumberToString
	LRTStrcmp         = bytecode.LRTStrcmp
	LRTArrcmp         = bytecode.LRTArrcmp
	LRTPostExecClean  = bytecode.LRTPostExecClean
)

// comparisonKind maps a comparison opcode to the strcmp/arrcmp sub-op
// immediate (0=eq,1=ne,2=gt,3=lt,4=ge,5=le).
func comparisonKind(op ast.Opcode) int {
	switch op {
	case ast.OpEqual:
		return 0
	case ast.OpNotEqual:
		return 1
	case ast.OpGreater:
		return 2
	case ast.OpLess:
		return 3
	case ast.OpGreaterEqual:
		return 4
	case ast.OpLessEqual:
		return 5
	default:
		return -1
	}
}

// Fold walks every statement's expression tree, constant-folding literal
// sub-expressions and rewriting string/array/comparison operators into
// CallLRT trampolines. It only runs when the program has no errors.
func Fold(program *ast.Program) {
	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *ast.ExpressionStatement:
			s.Expression = fold(program, s.Expression)
		case *ast.WaitStatement:
			s.Expression = fold(program, s.Expression)
		}
	}
}

// fold returns a possibly-different expression to splice in place of expr.
// Children are folded first (bottom-up), then lowering rewrites and
// algebraic identities are applied to the (already-folded) node.
func fold(program *ast.Program, expr ast.Expression) ast.Expression {
	switch e := expr.(type) {
	case *ast.StringLiteral:
		return e
	case *ast.NumberLiteral, *ast.BooleanLiteral:
		return expr
	case *ast.ArrayLiteral:
		e.Items = foldCommaChain(program, e.Items)
		return e
	case *ast.Identifier:
		return e
	case *ast.UnaryExpression:
		e.Left = fold(program, e.Left)
		return foldUnary(e)
	case *ast.BinaryExpression:
		if e.Opcode != ast.OpCall {
			e.Left = fold(program, e.Left)
		} else {
			// callee identifier is never folded
		}
		e.Right = fold(program, e.Right)
		return foldBinary(program, e)
	default:
		return expr
	}
}

// foldCommaChain folds each item of a right-leaning Comma chain in place.
func foldCommaChain(program *ast.Program, expr ast.Expression) ast.Expression {
	if expr == nil {
		return nil
	}
	if b, ok := expr.(*ast.BinaryExpression); ok && b.Opcode == ast.OpComma {
		b.Left = fold(program, b.Left)
		b.Right = foldCommaChain(program, b.Right)
		return b
	}
	return fold(program, expr)
}

func foldUnary(u *ast.UnaryExpression) ast.Expression {
	switch u.Opcode {
	case ast.OpNegate:
		if n, ok := u.Left.(*ast.NumberLiteral); ok {
			lit := ast.NewNumberLiteral(u.Loc, -n.Value)
			lit.TypeDesc = ast.NumberType
			return lit
		}
	case ast.OpNot:
		if b, ok := u.Left.(*ast.BooleanLiteral); ok {
			lit := ast.NewBooleanLiteral(u.Loc, !b.Value)
			lit.TypeDesc = ast.BooleanType
			return lit
		}
	}
	return u
}

func foldBinary(program *ast.Program, b *ast.BinaryExpression) ast.Expression {
	switch b.Opcode {
	case ast.OpPlus:
		return foldAdd(program, b)
	case ast.OpMinus, ast.OpStar, ast.OpSlash:
		return foldArith(program, b)
	case ast.OpEqual, ast.OpNotEqual, ast.OpLess, ast.OpLessEqual, ast.OpGreater, ast.OpGreaterEqual:
		return foldComparison(b)
	case ast.OpAnd:
		return foldAnd(b)
	case ast.OpOr:
		return foldOr(b)
	case ast.OpConditional:
		return foldConditional(b)
	case ast.OpArrayAccess:
		b.Opcode = ast.OpCallLRT
		b.SubOp = LRTArrayElement
		return b
	default:
		return b
	}
}

func asNumber(e ast.Expression) (float64, bool) {
	n, ok := e.(*ast.NumberLiteral)
	if !ok {
		return 0, false
	}
	return n.Value, true
}

func asString(e ast.Expression) (string, bool) {
	s, ok := e.(*ast.StringLiteral)
	if !ok {
		return "", false
	}
	return s.Value, true
}

func numberLit(pos ast.Expression, v float64) *ast.NumberLiteral {
	lit := ast.NewNumberLiteral(pos.Pos(), v)
	lit.TypeDesc = ast.NumberType
	return lit
}

func foldArith(program *ast.Program, b *ast.BinaryExpression) ast.Expression {
	ln, lok := asNumber(b.Left)
	rn, rok := asNumber(b.Right)
	if lok && rok {
		switch b.Opcode {
		case ast.OpMinus:
			return numberLit(b, ln-rn)
		case ast.OpStar:
			return numberLit(b, ln*rn)
		case ast.OpSlash:
			if rn == 0 {
				// Folds to 0 rather than propagating Inf/NaN; flagged
				// rather than silent.
				program.Warnf(b.Loc, "division by zero constant folds to 0")
				return numberLit(b, 0)
			}
			return numberLit(b, ln/rn)
		}
	}
	switch b.Opcode {
	case ast.OpMinus:
		if lok && ln == 0 {
			return ast.NewUnaryExpression(b.Loc, ast.OpNegate, b.Right)
		}
		if rok && rn == 0 {
			return b.Left
		}
	case ast.OpStar:
		if (lok && ln == 0) || (rok && rn == 0) {
			return numberLit(b, 0)
		}
	case ast.OpSlash:
		if rok && rn == 1 {
			return b.Left
		}
	}
	return b
}

func foldAdd(program *ast.Program, b *ast.BinaryExpression) ast.Expression {
	lt, rt := b.Left.Info().TypeDesc, b.Right.Info().TypeDesc

	if lt.IsScalar(ast.TNumber) && rt.IsScalar(ast.TNumber) {
		ln, lok := asNumber(b.Left)
		rn, rok := asNumber(b.Right)
		if lok && rok {
			return numberLit(b, ln+rn)
		}
		if lok && ln == 0 {
			return b.Right
		}
		if rok && rn == 0 {
			return b.Left
		}
		return b
	}

	if lt.IsScalar(ast.TString) && rt.IsScalar(ast.TString) {
		ls, lok := asString(b.Left)
		rs, rok := asString(b.Right)
		if lok && rok {
			lit := ast.NewStringLiteral(b.Loc, ls+rs, ls+rs)
			lit.TypeDesc = ast.StringType
			return lit
		}
		if lok && ls == "" {
			return b.Right
		}
		if rok && rs == "" {
			return b.Left
		}
		b.Opcode = ast.OpCallLRT
		b.SubOp = LRTCatString
		return b
	}

	if lt.IsScalar(ast.TString) && rt.IsScalar(ast.TNumber) {
		b.Right = wrapNumberToString(b.Right)
		b.Opcode = ast.OpCallLRT
		b.SubOp = LRTCatString
		return b
	}
	if lt.IsScalar(ast.TNumber) && rt.IsScalar(ast.TString) {
		b.Left = wrapNumberToString(b.Left)
		b.Opcode = ast.OpCallLRT
		b.SubOp = LRTCatString
		return b
	}

	if lt.IsArray() && rt.Equal(lt.ItemType()) {
		b.Opcode = ast.OpCallLRT
		b.SubOp = LRTAppendElement
		return b
	}

	return b
}

func wrapNumberToString(e ast.Expression) ast.Expression {
	u := ast.NewUnaryExpression(e.Pos(), ast.OpCallLRT, e)
	u.SubOp = LRTNumberToString
	u.TypeDesc = ast.StringType
	return u
}

func foldComparison(b *ast.BinaryExpression) ast.Expression {
	lt := b.Left.Info().TypeDesc

	if lt.IsScalar(ast.TNumber) {
		if ln, lok := asNumber(b.Left); lok {
			if rn, rok := asNumber(b.Right); rok {
				return numericCompareLit(b, ln, rn)
			}
		}
		return b
	}
	if lt.IsScalar(ast.TBoolean) {
		if lbv, lok := b.Left.(*ast.BooleanLiteral); lok {
			if rbv, rok := b.Right.(*ast.BooleanLiteral); rok {
				switch b.Opcode {
				case ast.OpEqual:
					return boolLit(b, lbv.Value == rbv.Value)
				case ast.OpNotEqual:
					return boolLit(b, lbv.Value != rbv.Value)
				}
			}
		}
		return b
	}
	if lt.IsScalar(ast.TString) {
		if ls, lok := asString(b.Left); lok {
			if rs, rok := asString(b.Right); rok {
				return stringCompareLit(b, ls, rs)
			}
		}
		kind := comparisonKind(b.Opcode)
		b.Opcode = ast.OpCallLRT
		b.SubOp = LRTStrcmp
		b.StackLoad = kind
		return b
	}
	if lt.IsArray() {
		// The checker only admits Equal/NotEqual for arrays.
		kind := comparisonKind(b.Opcode)
		b.Opcode = ast.OpCallLRT
		b.SubOp = LRTArrcmp
		b.StackLoad = kind
		return b
	}
	return b
}

func numericCompareLit(b *ast.BinaryExpression, ln, rn float64) ast.Expression {
	switch b.Opcode {
	case ast.OpEqual:
		return boolLit(b, ln == rn)
	case ast.OpNotEqual:
		return boolLit(b, ln != rn)
	case ast.OpLess:
		return boolLit(b, ln < rn)
	case ast.OpLessEqual:
		return boolLit(b, ln <= rn)
	case ast.OpGreater:
		return boolLit(b, ln > rn)
	case ast.OpGreaterEqual:
		return boolLit(b, ln >= rn)
	default:
		return b
	}
}

func stringCompareLit(b *ast.BinaryExpression, ls, rs string) ast.Expression {
	switch b.Opcode {
	case ast.OpEqual:
		return boolLit(b, ls == rs)
	case ast.OpNotEqual:
		return boolLit(b, ls != rs)
	case ast.OpLess:
		return boolLit(b, ls < rs)
	case ast.OpLessEqual:
		return boolLit(b, ls <= rs)
	case ast.OpGreater:
		return boolLit(b, ls > rs)
	case ast.OpGreaterEqual:
		return boolLit(b, ls >= rs)
	default:
		return b
	}
}

func boolLit(pos ast.Expression, v bool) *ast.BooleanLiteral {
	lit := ast.NewBooleanLiteral(pos.Pos(), v)
	lit.TypeDesc = ast.BooleanType
	return lit
}

func foldAnd(b *ast.BinaryExpression) ast.Expression {
	if lb, ok := b.Left.(*ast.BooleanLiteral); ok {
		if !lb.Value {
			return boolLit(b, false)
		}
		return b.Right
	}
	if rb, ok := b.Right.(*ast.BooleanLiteral); ok {
		if !rb.Value {
			return boolLit(b, false)
		}
		return b.Left
	}
	return b
}

func foldOr(b *ast.BinaryExpression) ast.Expression {
	if lb, ok := b.Left.(*ast.BooleanLiteral); ok {
		if lb.Value {
			return boolLit(b, true)
		}
		return b.Right
	}
	if rb, ok := b.Right.(*ast.BooleanLiteral); ok {
		if rb.Value {
			return boolLit(b, true)
		}
		return b.Left
	}
	return b
}

// foldConditional folds `cond ? a : b` when cond is a literal. b.Right must
// be the Alt node holding the two branches.
func foldConditional(b *ast.BinaryExpression) ast.Expression {
	alt, ok := b.Right.(*ast.BinaryExpression)
	if !ok || alt.Opcode != ast.OpAlt {
		return b
	}
	if cond, ok := b.Left.(*ast.BooleanLiteral); ok {
		if cond.Value {
			return alt.Left
		}
		return alt.Right
	}
	return b
}
