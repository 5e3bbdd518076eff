// Package parser implements MainStage's recursive-descent parser: a
// precedence-climbing expression parser plus a statement parser for the
// workspace/project/stage declaration grammar, producing the internal/ast
// tree the analyzer consumes. It performs no semantic validation.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"mainstage/internal/ast"
	"mainstage/internal/diag"
	"mainstage/internal/lexer"
)

// precedence ranks binary operators for the precedence-climbing
// expression parser; higher binds tighter.
var precedence = map[lexer.TokenType]int{
	lexer.TokenOr:          1,
	lexer.TokenAnd:         2,
	lexer.TokenDoubleEqual: 3,
	lexer.TokenNotEqual:    3,
	lexer.TokenLT:          3,
	lexer.TokenGT:          3,
	lexer.TokenLE:          3,
	lexer.TokenGE:          3,
	lexer.TokenPlus:        4,
	lexer.TokenMinus:       4,
	lexer.TokenStar:        5,
	lexer.TokenSlash:       5,
	lexer.TokenPercent:     5,
}

// parseError unwinds the recursive descent back to Parse on the first
// syntax error, mirroring the teacher's panic/recover style; Parse is the
// only place that catches it.
type parseError struct {
	d *diag.Diagnostic
}

type Parser struct {
	tokens      []lexer.Token
	current     int
	file        string
	sourceLines []string
}

func NewParser(tokens []lexer.Token, file, source string) *Parser {
	return &Parser{
		tokens:      tokens,
		file:        file,
		sourceLines: strings.Split(source, "\n"),
	}
}

// Parse consumes the full token stream into a Script. On the first syntax
// error it stops and returns a single diagnostic; the parser does not
// attempt statement-level recovery, since the analyzer downstream assumes
// a structurally complete tree.
func (p *Parser) Parse() (script *ast.Script, d *diag.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(parseError)
			if !ok {
				panic(r)
			}
			script, d = nil, pe.d
		}
	}()

	pos := p.posAt(p.peek())
	var body []ast.Stmt
	for !p.isAtEnd() {
		body = append(body, p.topLevelStmt())
	}
	return ast.NewScript(pos, body), nil
}

// topLevelStmt parses the three declaration kinds, plus include/import;
// anything else is forwarded to the general statement parser so a bare
// expression or assignment at script scope is still accepted (mirroring
// the teacher's permissive top level).
func (p *Parser) topLevelStmt() ast.Stmt {
	var attrs []ast.Attribute
	for p.check(lexer.TokenAt) {
		p.advance()
		name := p.consume(lexer.TokenIdent, "expected attribute name after '@'")
		attrs = append(attrs, ast.Attribute{Name: name.Lexeme})
	}

	switch {
	case p.match(lexer.TokenWorkspace):
		return p.workspaceDecl(attrs)
	case p.match(lexer.TokenProject):
		return p.projectDecl()
	case p.match(lexer.TokenStage):
		return p.stageDecl()
	case p.match(lexer.TokenInclude):
		return p.includeStmt()
	case p.match(lexer.TokenImport):
		return p.importStmt()
	default:
		return p.statement()
	}
}

func (p *Parser) workspaceDecl(attrs []ast.Attribute) ast.Stmt {
	pos := p.posAt(p.previous())
	name := p.consume(lexer.TokenIdent, "expected workspace name").Lexeme
	p.consume(lexer.TokenLBrace, "expected '{' after workspace name")
	body := p.declBody()
	p.consume(lexer.TokenRBrace, "expected '}' after workspace body")
	return ast.NewWorkspace(pos, name, attrs, body)
}

func (p *Parser) projectDecl() ast.Stmt {
	pos := p.posAt(p.previous())
	name := p.consume(lexer.TokenIdent, "expected project name").Lexeme
	p.consume(lexer.TokenLBrace, "expected '{' after project name")
	body := p.declBody()
	p.consume(lexer.TokenRBrace, "expected '}' after project body")
	return ast.NewProject(pos, name, body)
}

func (p *Parser) stageDecl() ast.Stmt {
	pos := p.posAt(p.previous())
	name := p.consume(lexer.TokenIdent, "expected stage name").Lexeme
	p.consume(lexer.TokenLParen, "expected '(' after stage name")

	var params []string
	if !p.check(lexer.TokenRParen) {
		params = append(params, p.consume(lexer.TokenIdent, "expected parameter name").Lexeme)
		for p.match(lexer.TokenComma) {
			params = append(params, p.consume(lexer.TokenIdent, "expected parameter name").Lexeme)
		}
	}
	p.consume(lexer.TokenRParen, "expected ')' after stage parameters")
	p.consume(lexer.TokenLBrace, "expected '{' before stage body")
	body := p.blockBody()
	p.consume(lexer.TokenRBrace, "expected '}' after stage body")
	return ast.NewStage(pos, name, params, body)
}

// declBody parses a workspace/project body: nested declarations, property
// assignments, or plain statements, stopping at the closing brace.
func (p *Parser) declBody() []ast.Stmt {
	var body []ast.Stmt
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		body = append(body, p.topLevelStmt())
	}
	return body
}

func (p *Parser) blockBody() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		stmts = append(stmts, p.statement())
	}
	return stmts
}

func (p *Parser) includeStmt() ast.Stmt {
	pos := p.posAt(p.previous())
	path := p.consume(lexer.TokenString, "expected a string path after 'include'").Lexeme
	p.matchSemicolon()
	return ast.NewInclude(pos, path)
}

func (p *Parser) importStmt() ast.Stmt {
	pos := p.posAt(p.previous())
	name := p.consume(lexer.TokenIdent, "expected a plugin name after 'import'").Lexeme
	p.matchSemicolon()
	return ast.NewImport(pos, name)
}

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.match(lexer.TokenIf):
		return p.ifStatement()
	case p.match(lexer.TokenWhile):
		return p.whileStatement()
	case p.match(lexer.TokenFor):
		return p.forStatement()
	case p.match(lexer.TokenReturn):
		return p.returnStatement()
	case p.check(lexer.TokenLBrace):
		return p.blockStatement()
	}

	// Either an assignment (Target = Value) or a bare expression
	// statement; both start with the same expression grammar, so parse
	// the left-hand side first and check for '=' before committing.
	pos := p.posAt(p.peek())
	expr := p.expression()
	if p.match(lexer.TokenEqual) {
		value := p.expression()
		p.matchSemicolon()
		return ast.NewAssignment(pos, expr, value)
	}
	p.matchSemicolon()
	return ast.NewExprStmt(pos, expr)
}

func (p *Parser) blockStatement() ast.Stmt {
	pos := p.posAt(p.peek())
	p.consume(lexer.TokenLBrace, "expected '{'")
	body := p.blockBody()
	p.consume(lexer.TokenRBrace, "expected '}'")
	return ast.NewBlock(pos, body)
}

func (p *Parser) ifStatement() ast.Stmt {
	pos := p.posAt(p.previous())
	cond := p.expression()
	p.consume(lexer.TokenLBrace, "expected '{' before if body")
	then := p.blockBody()
	p.consume(lexer.TokenRBrace, "expected '}' after if body")

	if !p.match(lexer.TokenElse) {
		return ast.NewIf(pos, cond, then)
	}
	if p.check(lexer.TokenIf) {
		p.advance()
		return ast.NewIfElse(pos, cond, then, []ast.Stmt{p.ifStatement()})
	}
	p.consume(lexer.TokenLBrace, "expected '{' before else body")
	els := p.blockBody()
	p.consume(lexer.TokenRBrace, "expected '}' after else body")
	return ast.NewIfElse(pos, cond, then, els)
}

func (p *Parser) whileStatement() ast.Stmt {
	pos := p.posAt(p.previous())
	cond := p.expression()
	p.consume(lexer.TokenLBrace, "expected '{' before while body")
	body := p.blockBody()
	p.consume(lexer.TokenRBrace, "expected '}' after while body")
	return ast.NewWhile(pos, cond, body)
}

// forStatement parses both `for x in expr { }` and the C-style
// `for init; cond; step { }` form. A lookahead on the second token
// disambiguates them, since both start with 'for' IDENT.
func (p *Parser) forStatement() ast.Stmt {
	pos := p.posAt(p.previous())
	if p.check(lexer.TokenIdent) && p.checkNext(lexer.TokenIn) {
		iterator := p.advance().Lexeme
		p.consume(lexer.TokenIn, "expected 'in'")
		iterable := p.expression()
		p.consume(lexer.TokenLBrace, "expected '{' before for body")
		body := p.blockBody()
		p.consume(lexer.TokenRBrace, "expected '}' after for body")
		return ast.NewForIn(pos, iterator, iterable, body)
	}

	initPos := p.posAt(p.peek())
	name := p.consume(lexer.TokenIdent, "expected loop variable name").Lexeme
	p.consume(lexer.TokenEqual, "expected '=' after loop variable name")
	start := p.expression()
	init := ast.NewAssignment(initPos, ast.NewIdent(initPos, name), start)
	p.consume(lexer.TokenSemicolon, "expected ';' after for-loop initializer")
	limit := p.expression()
	if p.check(lexer.TokenSemicolon) {
		p.advance()
		if !p.check(lexer.TokenLBrace) {
			// The optional step clause is parsed and discarded; the
			// loop always steps by 1 through the VM's Inc op.
			p.statement()
		}
	}
	p.consume(lexer.TokenLBrace, "expected '{' before for body")
	body := p.blockBody()
	p.consume(lexer.TokenRBrace, "expected '}' after for body")
	return ast.NewForTo(pos, init, limit, body)
}

func (p *Parser) returnStatement() ast.Stmt {
	pos := p.posAt(p.previous())
	var value ast.Expr
	if !p.check(lexer.TokenRBrace) && !p.check(lexer.TokenSemicolon) && !p.isAtEnd() {
		value = p.expression()
	}
	p.matchSemicolon()
	return ast.NewReturn(pos, value)
}

func (p *Parser) matchSemicolon() {
	p.match(lexer.TokenSemicolon)
}

// --- Expressions ---

func (p *Parser) expression() ast.Expr {
	return p.parseBinary(0)
}

func (p *Parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseUnary()
	for {
		tok := p.peek()
		prec, ok := precedence[tok.Type]
		if !ok || prec < minPrec {
			break
		}
		p.advance()
		right := p.parseBinary(prec + 1)
		left = ast.NewBinaryOp(p.posAt(tok), left, tok.Lexeme, right)
	}
	return left
}

func (p *Parser) parseUnary() ast.Expr {
	if p.check(lexer.TokenNot) || p.check(lexer.TokenMinus) {
		tok := p.advance()
		operand := p.parseUnary()
		return ast.NewUnaryOp(p.posAt(tok), tok.Lexeme, operand)
	}
	return p.parseCallOrIndex()
}

func (p *Parser) parseCallOrIndex() ast.Expr {
	expr := p.primary()
	for {
		switch {
		case p.match(lexer.TokenLParen):
			expr = p.finishCall(expr)
		case p.match(lexer.TokenLBracket):
			pos := p.posAt(p.previous())
			idx := p.expression()
			p.consume(lexer.TokenRBracket, "expected ']' after index expression")
			expr = ast.NewIndex(pos, expr, idx)
		case p.match(lexer.TokenDot):
			pos := p.posAt(p.previous())
			prop := p.consume(lexer.TokenIdent, "expected property name after '.'").Lexeme
			expr = ast.NewMember(pos, expr, prop)
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee ast.Expr) ast.Expr {
	pos := p.posAt(p.previous())
	var args []ast.Expr
	if !p.check(lexer.TokenRParen) {
		args = append(args, p.expression())
		for p.match(lexer.TokenComma) {
			args = append(args, p.expression())
		}
	}
	p.consume(lexer.TokenRParen, "expected ')' after call arguments")
	return ast.NewCall(pos, callee, args)
}

func (p *Parser) primary() ast.Expr {
	tok := p.advance()
	pos := p.posAt(tok)
	switch tok.Type {
	case lexer.TokenString:
		return ast.NewStrLit(pos, tok.Lexeme)
	case lexer.TokenInt:
		n, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			p.fail(pos, fmt.Sprintf("invalid integer literal %q", tok.Lexeme))
		}
		return ast.NewIntLit(pos, n)
	case lexer.TokenFloat:
		f, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.fail(pos, fmt.Sprintf("invalid float literal %q", tok.Lexeme))
		}
		return ast.NewFloatLit(pos, f)
	case lexer.TokenTrue:
		return ast.NewBoolLit(pos, true)
	case lexer.TokenFalse:
		return ast.NewBoolLit(pos, false)
	case lexer.TokenNull:
		return ast.NewNullLit(pos)
	case lexer.TokenIdent:
		return ast.NewIdent(pos, tok.Lexeme)
	case lexer.TokenLBracket:
		return p.listLiteral(pos)
	case lexer.TokenLParen:
		expr := p.expression()
		p.consume(lexer.TokenRParen, "expected ')' after parenthesized expression")
		return expr
	default:
		p.fail(pos, fmt.Sprintf("unexpected token %q in expression", tok.Lexeme))
		return nil // unreachable: fail panics
	}
}

func (p *Parser) listLiteral(pos ast.Pos) ast.Expr {
	var elems []ast.Expr
	if !p.check(lexer.TokenRBracket) {
		elems = append(elems, p.expression())
		for p.match(lexer.TokenComma) {
			elems = append(elems, p.expression())
		}
	}
	p.consume(lexer.TokenRBracket, "expected ']' after list elements")
	return ast.NewList(pos, elems)
}

// --- Token-stream plumbing ---

func (p *Parser) posAt(tok lexer.Token) ast.Pos {
	return ast.Pos{File: p.file, Line: tok.Line, Span: len(tok.Lexeme)}
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	tok := p.peek()
	p.fail(p.posAt(tok), fmt.Sprintf("%s (got %q)", msg, tok.Lexeme))
	return lexer.Token{}
}

func (p *Parser) fail(pos ast.Pos, msg string) {
	d := diag.NewSyntaxError(msg, pos.File, pos.Line, 0)
	if pos.Line > 0 && pos.Line <= len(p.sourceLines) {
		d = d.WithSource(p.sourceLines[pos.Line-1])
	}
	panic(parseError{d: d})
}

func (p *Parser) check(t lexer.TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == t
}

func (p *Parser) checkNext(t lexer.TokenType) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Type == t
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) previous() lexer.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}
