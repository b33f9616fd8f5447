// Package parser builds a dgeval *ast.Program from a token stream using
// recursive descent with precedence climbing: a panicMode flag suppresses
// cascading diagnostics and synchronize resumes at the next statement
// boundary.
package parser

import (
	"fmt"
	"strconv"

	"github.com/sarowish/dgeval/internal/ast"
	"github.com/sarowish/dgeval/internal/lexer"
	"github.com/sarowish/dgeval/internal/token"
)

// Error is a syntax error with its source location.
type Error struct {
	Pos     token.Position
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// maxParseErrors bounds the diagnostic list so a badly malformed file can't
// produce an unbounded cascade.
const maxParseErrors = 50

// Parser turns a dgeval source file into a Program. Parse errors are
// recorded on the Program that Parse returns as SeverityError Messages, the same
// diagnostic channel every later compiler stage uses.
type Parser struct {
	tokens    []token.Token
	current   int
	errors    []Error
	panicMode bool
}

func New(source, filename string) *Parser {
	l := lexer.New(source, filename)
	tokens := l.ScanTokens()
	return &Parser{tokens: tokens}
}

func (p *Parser) Errors() []Error { return p.errors }
func (p *Parser) HasErrors() bool { return len(p.errors) > 0 }

// Parse consumes the token stream and returns the resulting Program.
// Statements are collected in source order; DependencySort reorders them.
func (p *Parser) Parse() *ast.Program {
	program := ast.NewProgram()
	for !p.isAtEnd() {
		p.panicMode = false
		if stmt := p.parseStatement(); stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		if p.panicMode {
			p.synchronize()
		}
	}
	for _, e := range p.errors {
		program.AddMessage(ast.NewLocatedMessage(e.Pos, ast.SeverityError, e.Message))
	}
	return program
}

// ----------------------------------------------------------------------
// token-stream helpers
// ----------------------------------------------------------------------

func (p *Parser) isAtEnd() bool        { return p.peek().Type == token.EOF }
func (p *Parser) peek() token.Token    { return p.tokens[p.current] }
func (p *Parser) previous() token.Token { return p.tokens[p.current-1] }

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) check(t token.Type) bool {
	return !p.isAtEnd() && p.peek().Type == t
}

func (p *Parser) match(types ...token.Type) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(t token.Type, message string) token.Token {
	if p.check(t) {
		return p.advance()
	}
	p.error(message)
	return token.Token{}
}

func (p *Parser) error(message string) {
	if p.panicMode {
		return
	}
	if len(p.errors) >= maxParseErrors {
		p.errors = append(p.errors, Error{Pos: p.peek().Pos, Message: "too many errors, aborting"})
		p.panicMode = true
		return
	}
	p.errors = append(p.errors, Error{Pos: p.peek().Pos, Message: message})
	p.panicMode = true
}

// synchronize discards tokens until the next statement boundary (past a
// SEMI, or at a token that can start a new statement), so one malformed
// statement doesn't cascade into spurious errors for the rest of the file.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.previous().Type == token.SEMI {
			return
		}
		switch p.peek().Type {
		case token.WAIT:
			return
		}
		p.advance()
	}
}

// ----------------------------------------------------------------------
// statements
// ----------------------------------------------------------------------

func (p *Parser) parseStatement() ast.Statement {
	if p.check(token.WAIT) {
		return p.parseWaitStatement()
	}
	return p.parseExpressionStatement()
}

func (p *Parser) parseWaitStatement() ast.Statement {
	pos := p.advance().Pos // 'wait'
	p.consume(token.LPAREN, "expected `(` after `wait`")
	var ids []string
	if !p.check(token.RPAREN) {
		for {
			id := p.consume(token.IDENT, "expected an identifier in `wait` list")
			ids = append(ids, id.Literal)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected `)` to close `wait` list")
	expr := p.parseExpr()
	p.consume(token.SEMI, "expected `;` after statement")
	return &ast.WaitStatement{Loc: pos, IdList: ids, Expression: expr}
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	pos := p.peek().Pos
	expr := p.parseExpr()
	p.consume(token.SEMI, "expected `;` after statement")
	return &ast.ExpressionStatement{Loc: pos, Expression: expr}
}

// ----------------------------------------------------------------------
// expressions, lowest to highest precedence:
// comma > assign > conditional > or > and > equality > relational >
// additive > multiplicative > unary > postfix > primary
// ----------------------------------------------------------------------

// parseExpr is the entry point for a full expression, including a
// top-level comma sequence (e.g. `a = 1, b = 2`), used for statement bodies
// and parenthesized groups.
func (p *Parser) parseExpr() ast.Expression {
	left := p.parseAssign()
	for p.check(token.COMMA) {
		pos := p.advance().Pos
		right := p.parseAssign()
		left = ast.NewBinaryExpression(pos, ast.OpComma, left, right)
	}
	return left
}

func (p *Parser) parseAssign() ast.Expression {
	left := p.parseConditional()
	if p.check(token.ASSIGN) {
		pos := p.advance().Pos
		right := p.parseAssign() // right-associative
		return ast.NewBinaryExpression(pos, ast.OpAssign, left, right)
	}
	return left
}

func (p *Parser) parseConditional() ast.Expression {
	cond := p.parseOr()
	if p.check(token.QUESTION) {
		pos := p.advance().Pos
		thenExpr := p.parseExpr()
		p.consume(token.COLON, "expected `:` in ternary expression")
		elseExpr := p.parseConditional() // right-associative
		alt := ast.NewBinaryExpression(pos, ast.OpAlt, thenExpr, elseExpr)
		return ast.NewBinaryExpression(pos, ast.OpConditional, cond, alt)
	}
	return cond
}

func (p *Parser) parseOr() ast.Expression {
	left := p.parseAnd()
	for p.check(token.OR) {
		pos := p.advance().Pos
		right := p.parseAnd()
		left = ast.NewBinaryExpression(pos, ast.OpOr, left, right)
	}
	return left
}

func (p *Parser) parseAnd() ast.Expression {
	left := p.parseEquality()
	for p.check(token.AND) {
		pos := p.advance().Pos
		right := p.parseEquality()
		left = ast.NewBinaryExpression(pos, ast.OpAnd, left, right)
	}
	return left
}

func (p *Parser) parseEquality() ast.Expression {
	left := p.parseRelational()
	for p.check(token.EQ) || p.check(token.NEQ) {
		op := opFromToken(p.advance().Type)
		pos := p.previous().Pos
		right := p.parseRelational()
		left = ast.NewBinaryExpression(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseRelational() ast.Expression {
	left := p.parseAdditive()
	for p.check(token.LT) || p.check(token.LE) || p.check(token.GT) || p.check(token.GE) {
		op := opFromToken(p.advance().Type)
		pos := p.previous().Pos
		right := p.parseAdditive()
		left = ast.NewBinaryExpression(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for p.check(token.PLUS) || p.check(token.MINUS) {
		op := opFromToken(p.advance().Type)
		pos := p.previous().Pos
		right := p.parseMultiplicative()
		left = ast.NewBinaryExpression(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expression {
	left := p.parseUnary()
	for p.check(token.STAR) || p.check(token.SLASH) {
		op := opFromToken(p.advance().Type)
		pos := p.previous().Pos
		right := p.parseUnary()
		left = ast.NewBinaryExpression(pos, op, left, right)
	}
	return left
}

func (p *Parser) parseUnary() ast.Expression {
	if p.check(token.MINUS) || p.check(token.BANG) {
		t := p.advance()
		op := ast.OpNegate
		if t.Type == token.BANG {
			op = ast.OpNot
		}
		operand := p.parseUnary()
		return ast.NewUnaryExpression(t.Pos, op, operand)
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expression {
	expr := p.parsePrimary()
	for {
		switch {
		case p.check(token.LBRACKET):
			pos := p.advance().Pos
			index := p.parseExpr()
			p.consume(token.RBRACKET, "expected `]` after array index")
			expr = ast.NewBinaryExpression(pos, ast.OpArrayAccess, expr, index)
		case p.check(token.LPAREN):
			if _, ok := expr.(*ast.Identifier); !ok {
				return expr
			}
			pos := p.advance().Pos
			args := p.parseArgList()
			p.consume(token.RPAREN, "expected `)` after call arguments")
			expr = ast.NewBinaryExpression(pos, ast.OpCall, expr, args)
		default:
			return expr
		}
	}
}

// parseArgList parses a comma-delimited list of assignment-level
// expressions (no embedded comma operator, since a literal `,` here always
// separates list items) into a right-leaning Comma chain, or nil for an
// empty list.
func (p *Parser) parseArgList() ast.Expression {
	if p.check(token.RPAREN) {
		return nil
	}
	return p.parseItemList(token.RPAREN)
}

func (p *Parser) parseItemList(closing token.Type) ast.Expression {
	first := p.parseAssign()
	if !p.check(token.COMMA) {
		return first
	}
	pos := p.advance().Pos
	rest := p.parseItemList(closing)
	return ast.NewBinaryExpression(pos, ast.OpComma, first, rest)
}

func (p *Parser) parsePrimary() ast.Expression {
	switch {
	case p.check(token.NUMBER):
		t := p.advance()
		v, err := strconv.ParseFloat(t.Literal, 64)
		if err != nil {
			p.error(fmt.Sprintf("invalid number literal %q", t.Literal))
			v = 0
		}
		return ast.NewNumberLiteral(t.Pos, v)
	case p.check(token.STRING):
		t := p.advance()
		return ast.NewStringLiteral(t.Pos, t.Literal, t.Literal)
	case p.check(token.TRUE):
		t := p.advance()
		return ast.NewBooleanLiteral(t.Pos, true)
	case p.check(token.FALSE):
		t := p.advance()
		return ast.NewBooleanLiteral(t.Pos, false)
	case p.check(token.IDENT):
		t := p.advance()
		return ast.NewIdentifier(t.Pos, t.Literal)
	case p.check(token.LPAREN):
		p.advance()
		expr := p.parseExpr()
		p.consume(token.RPAREN, "expected `)` to close grouped expression")
		return expr
	case p.check(token.LBRACKET):
		return p.parseArrayLiteral()
	default:
		pos := p.peek().Pos
		p.error(fmt.Sprintf("unexpected token %q", p.peek().Literal))
		p.advance()
		return ast.NewNumberLiteral(pos, 0)
	}
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	pos := p.advance().Pos // '['
	if p.check(token.RBRACKET) {
		p.advance()
		return ast.NewArrayLiteral(pos, nil, 0)
	}
	items := p.parseItemList(token.RBRACKET)
	count := len(flattenCount(items))
	p.consume(token.RBRACKET, "expected `]` to close array literal")
	return ast.NewArrayLiteral(pos, items, count)
}

// flattenCount counts the items of a right-leaning Comma chain without
// pulling in the compiler package, which would create an import cycle.
func flattenCount(expr ast.Expression) []ast.Expression {
	if expr == nil {
		return nil
	}
	if b, ok := expr.(*ast.BinaryExpression); ok && b.Opcode == ast.OpComma {
		return append([]ast.Expression{b.Left}, flattenCount(b.Right)...)
	}
	return []ast.Expression{expr}
}

func opFromToken(t token.Type) ast.Opcode {
	switch t {
	case token.EQ:
		return ast.OpEqual
	case token.NEQ:
		return ast.OpNotEqual
	case token.LT:
		return ast.OpLess
	case token.LE:
		return ast.OpLessEqual
	case token.GT:
		return ast.OpGreater
	case token.GE:
		return ast.OpGreaterEqual
	case token.PLUS:
		return ast.OpPlus
	case token.MINUS:
		return ast.OpMinus
	case token.STAR:
		return ast.OpStar
	case token.SLASH:
		return ast.OpSlash
	default:
		return ast.OpNone
	}
}
