package compiler

import (
	"github.com/sarowish/dgeval/internal/ast"
)

// relations is the per-statement define/use set collected by the AST walk.
type relations struct {
	defines map[string]bool
	depends map[string]bool
}

func newRelations() *relations {
	return &relations{defines: make(map[string]bool), depends: make(map[string]bool)}
}

// DependencySort reorders program.Statements into a valid execution
// schedule by data dependency (Kahn's algorithm, FIFO tie-break) and moves
// statements that never reach in-degree zero into CircularStatements. It
// then assigns dense slot indices to every symbol defined by a sorted
// (non-circular) statement, in the order each symbol first appears.
func DependencySort(program *ast.Program, symbols *SymbolTable) {
	n := len(program.Statements)
	rels := make([]*relations, n)
	for i, stmt := range program.Statements {
		r := newRelations()
		collectRelations(stmt.Expr(), ast.OpNone, r, symbols)
		if ws, ok := stmt.(*ast.WaitStatement); ok {
			for _, id := range ws.IdList {
				r.depends[id] = true
			}
		}
		rels[i] = r
	}

	// symbol -> {defining statement indices, using statement indices}
	definedBy := make(map[string][]int)
	usedBy := make(map[string][]int)
	for i, r := range rels {
		for name := range r.defines {
			definedBy[name] = append(definedBy[name], i)
		}
		for name := range r.depends {
			usedBy[name] = append(usedBy[name], i)
		}
	}

	inDegree := make([]int, n)
	// successors[i] = statement indices that depend on i's defined symbols
	successors := make([][]int, n)
	for name, defs := range definedBy {
		for _, d := range defs {
			for _, u := range usedBy[name] {
				successors[d] = append(successors[d], u)
				inDegree[u]++
			}
		}
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	visited := make([]bool, n)
	var sortedIdx []int
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		visited[i] = true
		sortedIdx = append(sortedIdx, i)
		for _, succ := range successors[i] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	sorted := make([]ast.Statement, 0, len(sortedIdx))
	for _, i := range sortedIdx {
		sorted = append(sorted, program.Statements[i])
	}
	var circular []ast.Statement
	for i := 0; i < n; i++ {
		if !visited[i] {
			circular = append(circular, program.Statements[i])
			program.Errorf(program.Statements[i].Pos(), "Statement is in circular dependency")
		}
	}

	program.Statements = sorted
	program.CircularStatements = circular

	// Assign dense slot indices in first-appearance order among the sorted
	// (non-circular) statements.
	for _, idx := range sortedIdx {
		r := rels[idx]
		for name := range r.defines {
			assignSlot(program, name)
		}
	}
}

func assignSlot(program *ast.Program, name string) {
	if _, ok := program.SymbolTable[name]; ok {
		return
	}
	slot := len(program.SymbolOrder)
	program.SymbolTable[name] = &ast.SymbolDescriptor{Type: ast.NoneType, SlotIndex: slot}
	program.SymbolOrder = append(program.SymbolOrder, name)
}

// collectRelations walks expr, recording identifier defines/depends into r.
// enclosingOp tracks the opcode of the nearest enclosing binary node: under
// Assign the left identifier is a definition; under Call the callee
// identifier is neither a definition nor a use.
func collectRelations(expr ast.Expression, enclosingOp ast.Opcode, r *relations, symbols *SymbolTable) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *ast.Identifier:
		if symbols.IsLibraryFunction(e.Name) {
			return
		}
		switch enclosingOp {
		case ast.OpAssign:
			r.defines[e.Name] = true
		case ast.OpCall:
			// callee name is neither a definition nor a use
		default:
			r.depends[e.Name] = true
		}
	case *ast.NumberLiteral, *ast.StringLiteral, *ast.BooleanLiteral:
		// no identifiers
	case *ast.ArrayLiteral:
		collectRelations(e.Items, ast.OpComma, r, symbols)
	case *ast.UnaryExpression:
		collectRelations(e.Left, ast.OpNone, r, symbols)
	case *ast.BinaryExpression:
		switch e.Opcode {
		case ast.OpAssign:
			collectRelations(e.Left, ast.OpAssign, r, symbols)
			collectRelations(e.Right, ast.OpNone, r, symbols)
		case ast.OpCall:
			collectRelations(e.Left, ast.OpCall, r, symbols)
			collectRelations(e.Right, ast.OpComma, r, symbols)
		default:
			collectRelations(e.Left, ast.OpNone, r, symbols)
			collectRelations(e.Right, ast.OpNone, r, symbols)
		}
	}
}
