package compiler

import (
	"github.com/sarowish/dgeval/internal/ast"
)

// TypeChecker assigns a TypeDescriptor to every expression, rejects
// ill-typed programs, and records the symbol slot of every identifier
// reference. It runs after DependencySort; circular statements are skipped
// (DependencySort has already reported them).
type TypeChecker struct {
	program *ast.Program
	symbols *SymbolTable
}

func TypeCheck(program *ast.Program, symbols *SymbolTable) {
	tc := &TypeChecker{program: program, symbols: symbols}
	for _, stmt := range program.Statements {
		tc.checkStatement(stmt)
	}
}

func (tc *TypeChecker) checkStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		tc.check(s.Expression, ast.OpNone)
	case *ast.WaitStatement:
		for _, name := range s.IdList {
			if _, ok := tc.program.SymbolTable[name]; !ok {
				tc.program.Errorf(s.Loc, "The variable `%s` is not defined", name)
			}
		}
		tc.check(s.Expression, ast.OpNone)
	}
}

// check resolves expr's type. enclosingOp is the opcode of the nearest
// enclosing binary/call node, needed to disambiguate identifier resolution
// (definition vs. use vs. callee) the same way DependencySort's walk does.
func (tc *TypeChecker) check(expr ast.Expression, enclosingOp ast.Opcode) ast.TypeDescriptor {
	if expr == nil {
		return ast.NoneType
	}
	info := expr.Info()

	switch e := expr.(type) {
	case *ast.NumberLiteral:
		info.TypeDesc = ast.NumberType
	case *ast.StringLiteral:
		info.TypeDesc = ast.StringType
	case *ast.BooleanLiteral:
		info.TypeDesc = ast.BooleanType
	case *ast.ArrayLiteral:
		info.TypeDesc = tc.checkArrayLiteral(e)
	case *ast.Identifier:
		info.TypeDesc = tc.checkIdentifier(e, enclosingOp)
	case *ast.UnaryExpression:
		info.TypeDesc = tc.checkUnary(e)
	case *ast.BinaryExpression:
		info.TypeDesc = tc.checkBinary(e)
	}
	return info.TypeDesc
}

func (tc *TypeChecker) checkIdentifier(id *ast.Identifier, enclosingOp ast.Opcode) ast.TypeDescriptor {
	switch enclosingOp {
	case ast.OpAssign:
		if tc.symbols.IsLibraryFunction(id.Name) {
			tc.program.Errorf(id.Loc, "Cannot redefine runtime library function name `%s` as a variable name", id.Name)
			return ast.NoneType
		}
		sym := tc.program.SymbolTable[id.Name]
		if sym == nil {
			// Defined only inside the circular set, or otherwise never
			// reached by DependencySort's define pass.
			tc.program.Errorf(id.Loc, "The variable `%s` is not defined", id.Name)
			return ast.NoneType
		}
		if !sym.Type.IsNone() {
			tc.program.Errorf(id.Loc, "The variable `%s` has already been defined", id.Name)
			return ast.NoneType
		}
		id.IdNdx = sym.SlotIndex
		return ast.NoneType // caller (Assign) fills this in from the RHS
	case ast.OpCall:
		sig, ok := tc.symbols.Lookup(id.Name)
		if !ok {
			tc.program.Errorf(id.Loc, "The variable `%s` is not defined", id.Name)
			return ast.NoneType
		}
		id.IdNdx = sig.LibraryIndex
		return sig.ReturnType
	default:
		if sig, ok := tc.symbols.Lookup(id.Name); ok {
			id.IdNdx = sig.LibraryIndex
			return sig.ReturnType
		}
		sym := tc.program.SymbolTable[id.Name]
		if sym == nil {
			tc.program.Errorf(id.Loc, "The variable `%s` is not defined", id.Name)
			return ast.NoneType
		}
		id.IdNdx = sym.SlotIndex
		return sym.Type
	}
}

func (tc *TypeChecker) checkArrayLiteral(lit *ast.ArrayLiteral) ast.TypeDescriptor {
	items := flattenComma(lit.Items)
	if len(items) == 0 {
		return ast.TypeDescriptor{Type: ast.TNumber, Dimension: 1}
	}
	var itemType ast.TypeDescriptor
	for i, item := range items {
		t := tc.check(item, ast.OpComma)
		if i == 0 {
			itemType = t
			continue
		}
		if !t.IsNone() && !itemType.IsNone() && !t.Equal(itemType) {
			tc.program.Errorf(lit.Loc, "All items of an array should be of the same type")
		}
	}
	return itemType.ArrayOf()
}

func (tc *TypeChecker) checkUnary(u *ast.UnaryExpression) ast.TypeDescriptor {
	lt := tc.check(u.Left, ast.OpNone)
	switch u.Opcode {
	case ast.OpNot:
		if lt.IsNone() {
			return ast.NoneType
		}
		if !lt.IsScalar(ast.TBoolean) {
			tc.program.Errorf(u.Loc, "cannot apply unary `!` operator to `%s`", lt)
			return ast.NoneType
		}
		return ast.BooleanType
	case ast.OpNegate:
		if lt.IsNone() {
			return ast.NoneType
		}
		if !lt.IsScalar(ast.TNumber) {
			tc.program.Errorf(u.Loc, "cannot apply unary `-` operator to `%s`", lt)
			return ast.NoneType
		}
		return ast.NumberType
	default:
		return lt
	}
}

func (tc *TypeChecker) checkBinary(b *ast.BinaryExpression) ast.TypeDescriptor {
	switch b.Opcode {
	case ast.OpAssign:
		rt := tc.check(b.Right, ast.OpNone)
		tc.check(b.Left, ast.OpAssign)
		id, ok := b.Left.(*ast.Identifier)
		if !ok {
			tc.program.Errorf(b.Loc, "cannot assign to a non-identifier")
			return ast.NoneType
		}
		if sym := tc.program.SymbolTable[id.Name]; sym != nil && sym.Type.IsNone() {
			sym.Type = rt
		}
		b.Left.Info().AssignmentCount++
		b.AssignmentCount = 1 + b.Right.Info().AssignmentCount
		b.FunctionCallCount = b.Right.Info().FunctionCallCount
		return rt

	case ast.OpConditional:
		ct := tc.check(b.Left, ast.OpNone)
		if !ct.IsNone() && !ct.IsScalar(ast.TBoolean) {
			tc.program.Errorf(b.Loc, "The first operand of the ternary operator should be `bool`")
		}
		return tc.check(b.Right, ast.OpNone) // Right is the Alt node

	case ast.OpAlt:
		lt := tc.check(b.Left, ast.OpNone)
		rt := tc.check(b.Right, ast.OpNone)
		if lt.IsNone() || rt.IsNone() {
			return ast.NoneType
		}
		if !lt.Equal(rt) {
			tc.program.Errorf(b.Loc, "Operator `%s` requires its operands to be of the same type", ast.OperatorSymbol(b.Opcode))
			return ast.NoneType
		}
		return lt

	case ast.OpAnd, ast.OpOr:
		lt := tc.check(b.Left, ast.OpNone)
		rt := tc.check(b.Right, ast.OpNone)
		if lt.IsNone() || rt.IsNone() {
			return ast.NoneType
		}
		if !lt.IsScalar(ast.TBoolean) || !rt.IsScalar(ast.TBoolean) {
			tc.program.Errorf(b.Loc, "Boolean operators can only be applied to `boolean` types")
			return ast.NoneType
		}
		return ast.BooleanType

	case ast.OpStar, ast.OpSlash, ast.OpMinus:
		lt := tc.check(b.Left, ast.OpNone)
		rt := tc.check(b.Right, ast.OpNone)
		if lt.IsNone() || rt.IsNone() {
			return ast.NoneType
		}
		if !lt.IsScalar(ast.TNumber) || !rt.IsScalar(ast.TNumber) {
			tc.program.Errorf(b.Loc, "Operator `%s` requires its operands to be of type `number`", ast.OperatorSymbol(b.Opcode))
			return ast.NoneType
		}
		return ast.NumberType

	case ast.OpPlus:
		return tc.checkAdd(b)

	case ast.OpEqual, ast.OpNotEqual:
		lt := tc.check(b.Left, ast.OpNone)
		rt := tc.check(b.Right, ast.OpNone)
		if lt.IsNone() || rt.IsNone() {
			return ast.NoneType
		}
		if !lt.Equal(rt) {
			tc.program.Errorf(b.Loc, "Operator `%s` requires its operands to be of the same type", ast.OperatorSymbol(b.Opcode))
			return ast.NoneType
		}
		return ast.BooleanType

	case ast.OpLess, ast.OpLessEqual, ast.OpGreater, ast.OpGreaterEqual:
		lt := tc.check(b.Left, ast.OpNone)
		rt := tc.check(b.Right, ast.OpNone)
		if lt.IsNone() || rt.IsNone() {
			return ast.NoneType
		}
		if !lt.Equal(rt) {
			tc.program.Errorf(b.Loc, "Operator `%s` requires its operands to be of the same type", ast.OperatorSymbol(b.Opcode))
			return ast.NoneType
		}
		if lt.IsScalar(ast.TBoolean) || lt.IsArray() {
			tc.program.Errorf(b.Loc, "Operator `%s` is not supported for `%s`", ast.OperatorSymbol(b.Opcode), lt)
			return ast.NoneType
		}
		return ast.BooleanType

	case ast.OpArrayAccess:
		return tc.checkArrayAccess(b)

	case ast.OpCall:
		return tc.checkCall(b)

	case ast.OpComma:
		lt := tc.check(b.Left, ast.OpComma)
		tc.check(b.Right, ast.OpComma)
		b.StackLoad = b.Left.Info().StackLoad + b.Right.Info().StackLoad
		b.FunctionCallCount = b.Left.Info().FunctionCallCount + b.Right.Info().FunctionCallCount
		b.AssignmentCount = b.Left.Info().AssignmentCount + b.Right.Info().AssignmentCount
		return lt

	default:
		return ast.NoneType
	}
}

func (tc *TypeChecker) checkAdd(b *ast.BinaryExpression) ast.TypeDescriptor {
	lt := tc.check(b.Left, ast.OpNone)
	rt := tc.check(b.Right, ast.OpNone)
	if lt.IsNone() || rt.IsNone() {
		return ast.NoneType
	}
	switch {
	case lt.IsScalar(ast.TNumber) && rt.IsScalar(ast.TNumber):
		return ast.NumberType
	case lt.IsScalar(ast.TString) && (rt.IsScalar(ast.TString) || rt.IsScalar(ast.TNumber)):
		return ast.StringType
	case lt.IsScalar(ast.TNumber) && rt.IsScalar(ast.TString):
		return ast.StringType
	case lt.IsArray() && rt.Equal(lt.ItemType()):
		return lt
	default:
		tc.program.Errorf(b.Loc, "cannot add a `%s` to a `%s`", rt, lt)
		return ast.NoneType
	}
}

func (tc *TypeChecker) checkArrayAccess(b *ast.BinaryExpression) ast.TypeDescriptor {
	lt := tc.check(b.Left, ast.OpNone)
	if lt.IsNone() {
		tc.check(b.Right, ast.OpNone)
		return ast.NoneType
	}
	if !lt.IsArray() {
		tc.program.Errorf(b.Loc, "cannot index a `%s`", lt)
		tc.check(b.Right, ast.OpNone)
		return ast.NoneType
	}
	if be, ok := b.Right.(*ast.BinaryExpression); ok && be.Opcode == ast.OpComma {
		tc.program.Errorf(b.Loc, "cannot index an array by a list of expressions")
		tc.check(b.Right, ast.OpComma)
		return ast.NoneType
	}
	it := tc.check(b.Right, ast.OpNone)
	if !it.IsNone() && !it.IsScalar(ast.TNumber) {
		tc.program.Errorf(b.Loc, "cannot index an array by a `%s`", it)
		return ast.NoneType
	}
	return lt.ItemType()
}

func (tc *TypeChecker) checkCall(b *ast.BinaryExpression) ast.TypeDescriptor {
	id, ok := b.Left.(*ast.Identifier)
	if !ok {
		lt := tc.check(b.Left, ast.OpNone)
		tc.program.Errorf(b.Loc, "cannot call a `%s`", lt)
		return ast.NoneType
	}
	sig, ok := tc.symbols.Lookup(id.Name)
	if !ok {
		tc.program.Errorf(id.Loc, "undefined function `%s`", id.Name)
		return ast.NoneType
	}
	id.IdNdx = sig.LibraryIndex
	id.Info().TypeDesc = sig.ReturnType

	args := flattenComma(b.Right)
	argTypes := make([]ast.TypeDescriptor, 0, len(args))
	for _, a := range args {
		argTypes = append(argTypes, tc.check(a, ast.OpComma))
	}

	expectedArity := sig.Arity()
	if !ArgsMatch(sig, argTypes) {
		if sig.Variadic0to1 {
			if len(args) > 1 {
				tc.program.Errorf(b.Loc, "Mismatch in function argument count: expected `%d`, received `%d`", 1, len(args))
				return ast.NoneType
			}
		} else if len(args) != expectedArity {
			tc.program.Errorf(b.Loc, "Mismatch in function argument count: expected `%d`, received `%d`", expectedArity, len(args))
			return ast.NoneType
		}
		for i, t := range argTypes {
			if t.IsNone() {
				return ast.NoneType
			}
			want := sig.ParameterTypes[0]
			if !sig.Variadic0to1 {
				want = sig.ParameterTypes[i]
			}
			if !t.Equal(want) {
				tc.program.Errorf(b.Loc, "Mismatch in function argument types: expected `%s`, received `%s`", want, t)
				return ast.NoneType
			}
		}
	}
	id.Info().FunctionCallCount++
	b.FunctionCallCount = 1
	for _, a := range args {
		b.FunctionCallCount += a.Info().FunctionCallCount
		b.AssignmentCount += a.Info().AssignmentCount
	}
	return sig.ReturnType
}

// flattenComma expands a right-leaning Comma chain into call/array order.
func flattenComma(expr ast.Expression) []ast.Expression {
	if expr == nil {
		return nil
	}
	if b, ok := expr.(*ast.BinaryExpression); ok && b.Opcode == ast.OpComma {
		return append([]ast.Expression{b.Left}, flattenComma(b.Right)...)
	}
	return []ast.Expression{expr}
}
