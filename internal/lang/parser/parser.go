// Package parser implements the Pratt-style recursive-descent parser that
// turns a token stream into an *ast.File.
package parser

import (
	"fmt"

	"github.com/ehrlich-b/mudcore/internal/lang/ast"
	"github.com/ehrlich-b/mudcore/internal/lang/lexer"
	"github.com/ehrlich-b/mudcore/internal/lang/token"
)

// ParseError is one recorded parse failure, carrying the source line so
// callers can print "LINE: MESSAGE" as required by the authoring workflow.
type ParseError struct {
	Line    int
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%d: %s", e.Line, e.Message)
}

// Parser consumes a token stream and builds an ast.File, recovering from
// malformed top-level forms so a single mistake doesn't stop the whole
// module from being checked.
type Parser struct {
	lex    *lexer.Lexer
	cur    token.Token
	peek   token.Token
	errors []ParseError
}

// New constructs a Parser over src.
func New(src string) *Parser {
	p := &Parser{lex: lexer.New(src)}
	p.cur = p.lex.Next()
	p.peek = p.lex.Next()
	return p
}

func (p *Parser) advance() {
	p.cur = p.peek
	if p.cur.Kind != token.EOF {
		p.peek = p.lex.Next()
	}
}

func (p *Parser) errorf(line int, format string, args ...any) {
	p.errors = append(p.errors, ParseError{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (p *Parser) expect(k token.Kind) bool {
	if p.cur.Kind == k {
		p.advance()
		return true
	}
	p.errorf(p.cur.Line, "expected %s, got %s", k, p.cur.Kind)
	return false
}

func (p *Parser) expectIdent() (string, int) {
	if p.cur.Kind != token.Ident {
		p.errorf(p.cur.Line, "expected identifier, got %s", p.cur.Kind)
		return "", p.cur.Line
	}
	name, line := p.cur.Literal, p.cur.Line
	p.advance()
	return name, line
}

// Errors returns every parse error recorded so far.
func (p *Parser) Errors() []ParseError { return p.errors }

// ParseFile parses src as a complete module file of top-level forms,
// recovering after a malformed form to continue checking the rest of the
// file. It returns the partial (or complete) result alongside any errors;
// callers treat a non-empty error slice as failure per the authoring tool's
// contract.
func ParseFile(src string) (*ast.File, []ParseError) {
	p := New(src)
	file := &ast.File{}
	for p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Error {
			p.errorf(p.cur.Line, "%s", p.cur.Literal)
			break
		}
		decl := p.parseTopLevel()
		if decl != nil {
			file.Decls = append(file.Decls, decl)
		} else {
			p.synchronize()
		}
	}
	return file, p.errors
}

func (p *Parser) atTopLevelStart() bool {
	if p.cur.Kind == token.KwDef {
		return true
	}
	if p.cur.Kind == token.Ident {
		switch p.cur.Literal {
		case "deflocation", "defquest", "defrace":
			return true
		}
	}
	return false
}

func (p *Parser) synchronize() {
	p.advance()
	for p.cur.Kind != token.EOF && !p.atTopLevelStart() {
		p.advance()
	}
}

func (p *Parser) parseTopLevel() ast.TopLevel {
	switch {
	case p.cur.Kind == token.KwDef:
		return p.parseEntityDef("def")
	case p.cur.Kind == token.Ident && p.cur.Literal == "deflocation":
		return p.parseEntityDef("deflocation")
	case p.cur.Kind == token.Ident && p.cur.Literal == "defquest":
		return p.parseQuestDef()
	case p.cur.Kind == token.Ident && p.cur.Literal == "defrace":
		return p.parseRaceDef()
	default:
		p.errorf(p.cur.Line, "expected top-level form, got %s", p.cur.Kind)
		return nil
	}
}

// ---- Entity / quest / race definitions ----

func (p *Parser) parseEntityDef(kind string) *ast.EntityDef {
	line := p.cur.Line
	p.advance() // "def" or "deflocation"
	name, _ := p.expectIdent()
	p.expect(token.Colon)
	proto := p.parseRef()
	p.expect(token.LBrace)

	def := &ast.EntityDef{Kind: kind, Name: name}
	def.Pos = line
	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		switch p.cur.Kind {
		case token.KwAllow, token.KwBefore, token.KwWhen, token.KwAfter:
			def.Handlers = append(def.Handlers, p.parseEventHandler())
		case token.KwFunc:
			def.Methods = append(def.Methods, p.parseMethod())
		case token.Ident:
			def.Members = append(def.Members, p.parseMemberInit())
		default:
			p.errorf(p.cur.Line, "unexpected token %s in entity body", p.cur.Kind)
			p.advance()
		}
	}
	p.expect(token.RBrace)
	def.Proto = proto
	return def
}

func (p *Parser) parseQuestDef() *ast.QuestDef {
	line := p.cur.Line
	p.advance() // "defquest"
	name, _ := p.expectIdent()
	p.expect(token.LBrace)

	def := &ast.QuestDef{Name: name}
	def.Pos = line
	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		if p.cur.Kind == token.KwPhase {
			def.Phases = append(def.Phases, p.parsePhaseDef())
			continue
		}
		if p.cur.Kind == token.Ident {
			def.Members = append(def.Members, p.parseMemberInit())
			continue
		}
		p.errorf(p.cur.Line, "unexpected token %s in quest body", p.cur.Kind)
		p.advance()
	}
	p.expect(token.RBrace)
	return def
}

func (p *Parser) parsePhaseDef() ast.PhaseDef {
	line := p.cur.Line
	p.advance() // "phase"
	name, _ := p.expectIdent()
	p.expect(token.LBrace)
	phase := ast.PhaseDef{Name: name}
	phase.Pos = line
	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Ident {
			phase.Members = append(phase.Members, p.parseMemberInit())
			continue
		}
		p.errorf(p.cur.Line, "unexpected token %s in phase body", p.cur.Kind)
		p.advance()
	}
	p.expect(token.RBrace)
	return phase
}

func (p *Parser) parseRaceDef() *ast.RaceDef {
	line := p.cur.Line
	p.advance() // "defrace"
	name, _ := p.expectIdent()
	p.expect(token.LBrace)
	def := &ast.RaceDef{Name: name}
	def.Pos = line
	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Ident {
			def.Members = append(def.Members, p.parseMemberInit())
			continue
		}
		p.errorf(p.cur.Line, "unexpected token %s in race body", p.cur.Kind)
		p.advance()
	}
	p.expect(token.RBrace)
	return def
}

func (p *Parser) parseMemberInit() ast.MemberInit {
	line := p.cur.Line
	name, _ := p.expectIdent()
	p.expect(token.Assign)
	value := p.parseExpression()
	m := ast.MemberInit{Name: name, Init: value}
	m.Pos = line
	return m
}

func (p *Parser) parseEventHandler() ast.EventHandler {
	line := p.cur.Line
	phase := p.cur.Kind.String()
	p.advance() // phase keyword
	event, _ := p.expectIdent()
	params := p.parseParamList()
	body := p.parseBlock()
	h := ast.EventHandler{Phase: phase, Event: event, Params: params, Body: body}
	h.Pos = line
	return h
}

func (p *Parser) parseMethod() ast.Method {
	line := p.cur.Line
	p.advance() // "func"
	name, _ := p.expectIdent()
	params := p.parseParamList()
	body := p.parseBlock()
	m := ast.Method{Name: name, Params: params, Body: body}
	m.Pos = line
	return m
}

func (p *Parser) parseParamList() []ast.Param {
	p.expect(token.LParen)
	var params []ast.Param
	for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
		params = append(params, p.parseParam())
		if p.cur.Kind == token.Comma {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RParen)
	return params
}

func (p *Parser) parseParam() ast.Param {
	name, _ := p.expectIdent()
	param := ast.Param{Name: name}
	if name == "self" {
		param.Name = ""
		param.Constraint = ast.Constraint{Kind: ast.ConstraintSelf}
	}
	if p.cur.Kind == token.Colon {
		p.advance()
		param.Constraint = p.parseConstraint()
	}
	return param
}

func (p *Parser) parseConstraint() ast.Constraint {
	if p.cur.Kind == token.Dot {
		p.advance()
		kindName, _ := p.expectIdent()
		p.expect(token.LParen)
		ref := p.parseRef()
		var kind ast.ConstraintKind
		var phase string
		switch kindName {
		case "quest":
			kind = ast.ConstraintQuest
			if p.cur.Kind == token.Comma {
				p.advance()
				if p.cur.Kind == token.Symbol {
					phase = p.cur.Literal
					p.advance()
				} else {
					p.errorf(p.cur.Line, "expected phase symbol, got %s", p.cur.Kind)
				}
			}
		case "race":
			kind = ast.ConstraintRace
		case "equipped":
			kind = ast.ConstraintEquipped
		default:
			p.errorf(p.cur.Line, "unknown constraint kind %q", kindName)
		}
		p.expect(token.RParen)
		return ast.Constraint{Kind: kind, Ref: ref, PhaseName: phase}
	}
	if p.cur.Kind == token.Ident && p.cur.Literal == "self" {
		p.advance()
		return ast.Constraint{Kind: ast.ConstraintSelf}
	}
	ref := p.parseRef()
	return ast.Constraint{Kind: ast.ConstraintPrototype, Ref: ref}
}

func (p *Parser) parseRef() ast.Ref {
	first, _ := p.expectIdent()
	if p.cur.Kind == token.Dot {
		p.advance()
		second, _ := p.expectIdent()
		return ast.Ref{Module: first, Name: second}
	}
	return ast.Ref{Name: first}
}

// ---- Statements ----

func (p *Parser) parseBlock() *ast.Block {
	line := p.cur.Line
	p.expect(token.LBrace)
	block := &ast.Block{}
	block.Pos = line
	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		block.Stmts = append(block.Stmts, p.parseStatement())
	}
	p.expect(token.RBrace)
	return block
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.cur.Kind {
	case token.KwLet, token.KwVar:
		return p.parseVarDecl()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwFor:
		return p.parseFor()
	case token.KwReturn:
		return p.parseReturn()
	case token.KwAwait:
		return p.parseAwaitStmt()
	case token.KwFallthrough:
		line := p.cur.Line
		p.advance()
		s := &ast.FallthroughStmt{}
		s.Pos = line
		return s
	case token.LBrace:
		return p.parseBlock()
	default:
		line := p.cur.Line
		expr := p.parseExpression()
		s := &ast.ExprStmt{Expr: expr}
		s.Pos = line
		return s
	}
}

func (p *Parser) parseVarDecl() ast.Stmt {
	line := p.cur.Line
	p.advance() // let | var
	name, _ := p.expectIdent()
	decl := &ast.VarDecl{Name: name}
	decl.Pos = line
	if p.cur.Kind == token.Assign {
		p.advance()
		decl.Init = p.parseExpression()
	}
	return decl
}

func (p *Parser) parseIf() ast.Stmt {
	line := p.cur.Line
	p.advance() // if
	cond := p.parseExpression()
	then := p.parseBlock()
	s := &ast.IfStmt{Cond: cond, Then: then}
	s.Pos = line
	if p.cur.Kind == token.KwElse {
		p.advance()
		if p.cur.Kind == token.KwIf {
			s.Else = p.parseIf()
		} else {
			s.Else = p.parseBlock()
		}
	}
	return s
}

func (p *Parser) parseWhile() ast.Stmt {
	line := p.cur.Line
	p.advance() // while
	cond := p.parseExpression()
	body := p.parseBlock()
	s := &ast.WhileStmt{Cond: cond, Body: body}
	s.Pos = line
	return s
}

func (p *Parser) parseFor() ast.Stmt {
	line := p.cur.Line
	p.advance() // for
	name, _ := p.expectIdent()
	p.expect(token.KwIn)
	seq := p.parseExpression()
	body := p.parseBlock()
	s := &ast.ForStmt{Var: name, Seq: seq, Body: body}
	s.Pos = line
	return s
}

func (p *Parser) parseReturn() ast.Stmt {
	line := p.cur.Line
	p.advance() // return
	s := &ast.ReturnStmt{}
	s.Pos = line
	if p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		s.Value = p.parseExpression()
	}
	return s
}

func (p *Parser) parseAwaitStmt() ast.Stmt {
	line := p.cur.Line
	p.advance() // await
	expr := p.parseExpression()
	s := &ast.AwaitStmt{Expr: expr}
	s.Pos = line
	return s
}

// ---- Expressions ----
//
// Precedence climbs: assign < or < and < equality < comparison < term <
// factor < unary < call.

func (p *Parser) parseExpression() ast.Expr {
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() ast.Expr {
	expr := p.parseOr()
	switch p.cur.Kind {
	case token.Assign, token.PlusEq, token.MinusEq, token.StarEq, token.SlashEq, token.PercentEq:
		line := p.cur.Line
		op := p.cur.Kind.String()
		p.advance()
		value := p.parseAssignment()
		switch expr.(type) {
		case *ast.Ident, *ast.MemberAccess, *ast.IndexAccess:
		default:
			p.errorf(line, "invalid assignment target")
		}
		a := &ast.Assign{Op: op, Target: expr, Value: value}
		a.Pos = line
		return a
	}
	return expr
}

func (p *Parser) parseOr() ast.Expr {
	expr := p.parseAnd()
	for p.cur.Kind == token.KwOr {
		line := p.cur.Line
		p.advance()
		right := p.parseAnd()
		l := &ast.Logical{Op: "or", Left: expr, Right: right}
		l.Pos = line
		expr = l
	}
	return expr
}

func (p *Parser) parseAnd() ast.Expr {
	expr := p.parseEquality()
	for p.cur.Kind == token.KwAnd {
		line := p.cur.Line
		p.advance()
		right := p.parseEquality()
		l := &ast.Logical{Op: "and", Left: expr, Right: right}
		l.Pos = line
		expr = l
	}
	return expr
}

func (p *Parser) parseEquality() ast.Expr {
	expr := p.parseComparison()
	for p.cur.Kind == token.Eq || p.cur.Kind == token.NotEq {
		line := p.cur.Line
		op := p.cur.Kind.String()
		p.advance()
		right := p.parseComparison()
		b := &ast.Binary{Op: op, Left: expr, Right: right}
		b.Pos = line
		expr = b
	}
	return expr
}

func (p *Parser) parseComparison() ast.Expr {
	expr := p.parseTerm()
	for p.cur.Kind == token.Lt || p.cur.Kind == token.LtEq || p.cur.Kind == token.Gt || p.cur.Kind == token.GtEq {
		line := p.cur.Line
		op := p.cur.Kind.String()
		p.advance()
		right := p.parseTerm()
		b := &ast.Binary{Op: op, Left: expr, Right: right}
		b.Pos = line
		expr = b
	}
	return expr
}

func (p *Parser) parseTerm() ast.Expr {
	expr := p.parseFactor()
	for p.cur.Kind == token.Plus || p.cur.Kind == token.Minus {
		line := p.cur.Line
		op := p.cur.Kind.String()
		p.advance()
		right := p.parseFactor()
		b := &ast.Binary{Op: op, Left: expr, Right: right}
		b.Pos = line
		expr = b
	}
	return expr
}

func (p *Parser) parseFactor() ast.Expr {
	expr := p.parseUnary()
	for p.cur.Kind == token.Star || p.cur.Kind == token.Slash || p.cur.Kind == token.Percent {
		line := p.cur.Line
		op := p.cur.Kind.String()
		p.advance()
		right := p.parseUnary()
		b := &ast.Binary{Op: op, Left: expr, Right: right}
		b.Pos = line
		expr = b
	}
	return expr
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.cur.Kind {
	case token.Minus, token.Bang, token.Star:
		line := p.cur.Line
		op := p.cur.Kind.String()
		p.advance()
		operand := p.parseUnary()
		u := &ast.Unary{Op: op, Expr: operand}
		u.Pos = line
		return u
	}
	return p.parseCall()
}

func (p *Parser) parseCall() ast.Expr {
	expr := p.parsePrimary()
	for {
		switch p.cur.Kind {
		case token.LParen:
			expr = p.finishCall(expr)
		case token.Dot:
			line := p.cur.Line
			p.advance()
			name, _ := p.expectIdent()
			m := &ast.MemberAccess{Object: expr, Name: name}
			m.Pos = line
			expr = m
		case token.LBracket:
			line := p.cur.Line
			p.advance()
			idx := p.parseExpression()
			p.expect(token.RBracket)
			ix := &ast.IndexAccess{Object: expr, Index: idx}
			ix.Pos = line
			expr = ix
		case token.Arrow:
			expr = p.finishPortal(expr)
		default:
			return expr
		}
	}
}

func (p *Parser) finishCall(callee ast.Expr) ast.Expr {
	line := p.cur.Line
	p.advance() // (
	var args []ast.Expr
	for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
		args = append(args, p.parseExpression())
		if p.cur.Kind == token.Comma {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RParen)
	// A trailing string literal becomes an additional argument, for
	// multi-line prose following a call's parenthesized arguments.
	if p.cur.Kind == token.String {
		args = append(args, p.parseStringLiteral())
	}
	c := &ast.Call{Callee: callee, Args: args}
	c.Pos = line
	return c
}

func (p *Parser) finishPortal(portal ast.Expr) ast.Expr {
	line := p.cur.Line
	p.advance() // ->
	direction, _ := p.expectIdent()
	oneway := false
	if p.cur.Kind == token.KwOneway {
		oneway = true
		p.advance()
	}
	p.expect(token.KwTo)
	dest := p.parseCall()
	pe := &ast.PortalExpr{Portal: portal, Direction: direction, Oneway: oneway, Destination: dest}
	pe.Pos = line
	return pe
}

func (p *Parser) parsePrimary() ast.Expr {
	line := p.cur.Line
	switch p.cur.Kind {
	case token.KwNil:
		p.advance()
		n := &ast.NilLit{}
		n.Pos = line
		return n
	case token.KwTrue:
		p.advance()
		b := &ast.BoolLit{Value: true}
		b.Pos = line
		return b
	case token.KwFalse:
		p.advance()
		b := &ast.BoolLit{Value: false}
		b.Pos = line
		return b
	case token.Number:
		n := &ast.NumberLit{Value: p.cur.Num}
		n.Pos = line
		p.advance()
		return n
	case token.String:
		return p.parseStringLiteral()
	case token.Symbol:
		s := &ast.SymbolLit{Name: p.cur.Literal}
		s.Pos = line
		p.advance()
		return s
	case token.Ident:
		id := &ast.Ident{Name: p.cur.Literal}
		id.Pos = line
		p.advance()
		return id
	case token.LParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(token.RParen)
		return expr
	case token.LBracket:
		return p.parseListOrComprehension()
	default:
		p.errorf(line, "unexpected token %s in expression", p.cur.Kind)
		p.advance()
		n := &ast.NilLit{}
		n.Pos = line
		return n
	}
}

func (p *Parser) parseListOrComprehension() ast.Expr {
	line := p.cur.Line
	p.advance() // [
	if p.cur.Kind == token.RBracket {
		p.advance()
		l := &ast.ListLit{}
		l.Pos = line
		return l
	}
	first := p.parseExpression()
	if p.cur.Kind == token.KwFor {
		p.advance()
		varName, _ := p.expectIdent()
		p.expect(token.KwIn)
		seq := p.parseExpression()
		var cond ast.Expr
		if p.cur.Kind == token.KwIf {
			p.advance()
			cond = p.parseExpression()
		}
		p.expect(token.RBracket)
		c := &ast.ListComp{Elem: first, Var: varName, Seq: seq, Cond: cond}
		c.Pos = line
		return c
	}
	elems := []ast.Expr{first}
	for p.cur.Kind == token.Comma {
		p.advance()
		if p.cur.Kind == token.RBracket {
			break
		}
		elems = append(elems, p.parseExpression())
	}
	p.expect(token.RBracket)
	l := &ast.ListLit{Elems: elems}
	l.Pos = line
	return l
}

// parseStringLiteral splits the current String token's raw text into
// literal/expression segments, recursively parsing each `{expr}` or
// `{expr:fmt}` marker with a fresh sub-lexer per the lexer's reentrant
// design, then advances past the token.
func (p *Parser) parseStringLiteral() *ast.StringLit {
	line := p.cur.Line
	raw := p.cur.Literal
	p.advance()

	lit := &ast.StringLit{}
	lit.Pos = line

	var literalBuf []byte
	i := 0
	for i < len(raw) {
		if raw[i] != '{' {
			literalBuf = append(literalBuf, raw[i])
			i++
			continue
		}
		if len(literalBuf) > 0 {
			lit.Segments = append(lit.Segments, ast.StringSegment{Literal: string(literalBuf)})
			literalBuf = nil
		}
		depth := 1
		j := i + 1
		for j < len(raw) && depth > 0 {
			switch raw[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth == 0 {
				break
			}
			j++
		}
		if j >= len(raw) {
			p.errorf(line, "unterminated interpolation in string literal")
			break
		}
		inner := raw[i+1 : j]
		var format byte
		if n := len(inner); n >= 2 && inner[n-2] == ':' {
			c := inner[n-1]
			switch c {
			case 'i', 'I', 'd', 'D', 'n', 'N':
				format = c
				inner = inner[:n-2]
			}
		}
		sub := New(inner)
		expr := sub.parseExpression()
		lit.Segments = append(lit.Segments, ast.StringSegment{Expr: expr, Format: format})
		p.errors = append(p.errors, sub.errors...)
		i = j + 1
	}
	if len(literalBuf) > 0 {
		lit.Segments = append(lit.Segments, ast.StringSegment{Literal: string(literalBuf)})
	}
	if len(lit.Segments) == 0 {
		lit.Segments = []ast.StringSegment{{Literal: ""}}
	}
	return lit
}
