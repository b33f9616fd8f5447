// Package printer serialises a compiled Program and its IR into two
// human/machine-readable artifacts: a JSON dump and a plain-text IR
// listing.
package printer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sarowish/dgeval/internal/ast"
	"github.com/sarowish/dgeval/internal/bytecode"
)

type dump struct {
	CircularStatements []interface{} `json:"circularStatements"`
	Symbols            []symbolDump  `json:"symbols"`
	ExecutableStmts    []interface{} `json:"executablestatements"`
	IC                 []icDump      `json:"ic"`
	Messages           []string      `json:"messages"`
}

type symbolDump struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Dim  int    `json:"dim"`
}

type icDump struct {
	Mnemonic string      `json:"mnemonic"`
	OpCode   int         `json:"opCode"`
	Type     string      `json:"type"`
	P1       int         `json:"p1"`
	Dim      int         `json:"dim"`
	Value    interface{} `json:"value,omitempty"`
}

// DumpJSON renders program (and its IR, if code generation ran) into the
// <module>.json shape: circularStatements, symbols sorted by slot index,
// executablestatements (AST), ic (IR), and sorted diagnostics.
func DumpJSON(program *ast.Program, ir []bytecode.Instruction) ([]byte, error) {
	d := dump{}

	for _, s := range program.CircularStatements {
		d.CircularStatements = append(d.CircularStatements, statementNode(s))
	}

	symbolsBySlot := make([]symbolDump, len(program.SymbolOrder))
	for name, sym := range program.SymbolTable {
		if sym.SlotIndex < 0 || sym.SlotIndex >= len(symbolsBySlot) {
			continue
		}
		symbolsBySlot[sym.SlotIndex] = symbolDump{Name: name, Type: sym.Type.Type.String(), Dim: sym.Type.Dimension}
	}
	d.Symbols = symbolsBySlot

	for _, s := range program.Statements {
		d.ExecutableStmts = append(d.ExecutableStmts, statementNode(s))
	}

	for _, in := range ir {
		d.IC = append(d.IC, icDump{
			Mnemonic: in.Op.String(),
			OpCode:   int(in.Op),
			Type:     in.Type.Type.String(),
			P1:       in.Parameter,
			Dim:      in.Type.Dimension,
			Value:    valueJSON(in.Value),
		})
	}

	for _, m := range program.Messages {
		d.Messages = append(d.Messages, formatMessage(m))
	}

	return json.MarshalIndent(d, "", "  ")
}

func valueJSON(v bytecode.Value) interface{} {
	switch v.Kind {
	case bytecode.VNumber:
		return v.Number
	case bytecode.VString:
		return v.Str
	case bytecode.VBool:
		return v.Bool
	default:
		return nil
	}
}

func formatMessage(m ast.Message) string {
	if !m.HasLoc {
		return m.Text
	}
	return fmt.Sprintf("Line Number %d [%s]: %s.", m.Loc.Line, m.Severity, m.Text)
}

func statementNode(s ast.Statement) map[string]interface{} {
	node := map[string]interface{}{
		"lineNumber": s.Pos().Line,
	}
	switch st := s.(type) {
	case *ast.ExpressionStatement:
		node["nodeType"] = "ExpressionStatement"
		node["expression"] = exprNode(st.Expression)
	case *ast.WaitStatement:
		node["nodeType"] = "WaitStatement"
		node["idList"] = st.IdList
		node["expression"] = exprNode(st.Expression)
	}
	return node
}

func exprNode(e ast.Expression) map[string]interface{} {
	if e == nil {
		return nil
	}
	info := e.Info()
	node := map[string]interface{}{
		"lineNumber": e.Pos().Line,
		"typeCode":   int(info.TypeDesc.Type),
		"type":       info.TypeDesc.Type.String(),
		"dim":        info.TypeDesc.Dimension,
		"idNdx":      info.IdNdx,
	}
	switch n := e.(type) {
	case *ast.NumberLiteral:
		node["nodeType"] = "NumberLiteral"
		node["numberValue"] = n.Value
	case *ast.StringLiteral:
		node["nodeType"] = "StringLiteral"
		node["stringValue"] = n.Value
	case *ast.BooleanLiteral:
		node["nodeType"] = "BooleanLiteral"
		node["boolValue"] = n.Value
	case *ast.ArrayLiteral:
		node["nodeType"] = "ArrayLiteral"
		node["itemCount"] = n.ItemCount
		node["items"] = exprNode(n.Items)
	case *ast.Identifier:
		node["nodeType"] = "Identifier"
		node["id"] = n.Name
	case *ast.UnaryExpression:
		node["nodeType"] = "UnaryExpression"
		node["opCode"] = int(n.Opcode)
		node["mnemonic"] = n.Opcode.String()
		node["left"] = exprNode(n.Left)
	case *ast.BinaryExpression:
		node["nodeType"] = "BinaryExpression"
		node["opCode"] = int(n.Opcode)
		node["mnemonic"] = n.Opcode.String()
		node["left"] = exprNode(n.Left)
		node["right"] = exprNode(n.Right)
	}
	return node
}

// DumpIR renders the IR as the <module>-IC.txt text format: one
// instruction per line, "NNNNN mnemonic parameter type:[type:dim] value".
func DumpIR(ir []bytecode.Instruction) string {
	var sb strings.Builder
	for i, in := range ir {
		fmt.Fprintf(&sb, "%05d %-8s %-4d %s:%d %s\n",
			i, in.Op, in.Parameter, in.Type.Type, in.Type.Dimension, in.Value)
	}
	return sb.String()
}
