// Package compiler implements the middle-end passes: dependency ordering,
// type checking, and constant folding/lowering.
package compiler

import "github.com/sarowish/dgeval/internal/ast"

// SymbolTable holds the fixed runtime-library function signatures. User
// symbols and the dense slots the dependency sorter assigns them live in
// ast.Program.SymbolTable, not here.
//
// The library is indexed by LibraryIndex: 0-4 stddev/mean/count/min/max,
// 5-13 sin/cos/tan/pi/atan/asin/acos/exp/ln, 14 print, 15 random, 16 len,
// 17 right, 18 left.
type SymbolTable struct {
	Library    map[string]*ast.FunctionSignature
	LibraryIdx []*ast.FunctionSignature
}

func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{Library: make(map[string]*ast.FunctionSignature)}
	st.registerLibrary()
	return st
}

func (st *SymbolTable) register(sig *ast.FunctionSignature) {
	sig.LibraryIndex = len(st.LibraryIdx)
	st.LibraryIdx = append(st.LibraryIdx, sig)
	st.Library[sig.Name] = sig
}

func (st *SymbolTable) registerLibrary() {
	numArr := ast.TypeDescriptor{Type: ast.TNumber, Dimension: 1}
	num := ast.NumberType
	str := ast.StringType

	for _, name := range []string{"stddev", "mean", "count", "min", "max"} {
		st.register(&ast.FunctionSignature{
			Name: name, ReturnType: num,
			ParameterTypes: []ast.TypeDescriptor{numArr},
		})
	}
	for _, name := range []string{"sin", "cos", "tan"} {
		st.register(&ast.FunctionSignature{
			Name: name, ReturnType: num,
			ParameterTypes: []ast.TypeDescriptor{num}, Variadic0to1: true,
		})
	}
	st.register(&ast.FunctionSignature{Name: "pi", ReturnType: num})
	for _, name := range []string{"atan", "asin", "acos", "exp", "ln"} {
		st.register(&ast.FunctionSignature{
			Name: name, ReturnType: num,
			ParameterTypes: []ast.TypeDescriptor{num}, Variadic0to1: true,
		})
	}
	st.register(&ast.FunctionSignature{
		Name: "print", ReturnType: num,
		ParameterTypes: []ast.TypeDescriptor{str},
	})
	st.register(&ast.FunctionSignature{
		Name: "random", ReturnType: num,
		ParameterTypes: []ast.TypeDescriptor{num},
	})
	st.register(&ast.FunctionSignature{
		Name: "len", ReturnType: num,
		ParameterTypes: []ast.TypeDescriptor{str},
	})
	st.register(&ast.FunctionSignature{
		Name: "right", ReturnType: str,
		ParameterTypes: []ast.TypeDescriptor{str, num},
	})
	st.register(&ast.FunctionSignature{
		Name: "left", ReturnType: str,
		ParameterTypes: []ast.TypeDescriptor{str, num},
	})
}

// IsLibraryFunction reports whether name is a runtime-library function;
// such names cannot be redefined as variables.
func (st *SymbolTable) IsLibraryFunction(name string) bool {
	_, ok := st.Library[name]
	return ok
}

// Lookup returns the signature for a runtime-library call target.
func (st *SymbolTable) Lookup(name string) (*ast.FunctionSignature, bool) {
	sig, ok := st.Library[name]
	return sig, ok
}

// ArgsMatch reports whether the supplied argument types satisfy sig exactly,
// honoring the Number?-style zero-or-one-argument signatures (e.g. sin, cos).
func ArgsMatch(sig *ast.FunctionSignature, args []ast.TypeDescriptor) bool {
	if sig.Variadic0to1 {
		if len(args) == 0 {
			return true
		}
		if len(args) != 1 {
			return false
		}
		return args[0].Equal(sig.ParameterTypes[0])
	}
	if len(args) != sig.Arity() {
		return false
	}
	for i, p := range sig.ParameterTypes {
		if !args[i].Equal(p) {
			return false
		}
	}
	return true
}
