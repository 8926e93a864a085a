// Copyright 2024 cc64 Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package parser builds a typed-free AST from the preprocessed token
// stream, by recursive descent. It enforces the grammar and records source
// spans; it never consults the type checker, and it halts at the first
// syntax mismatch rather than attempting panic-mode recovery.
package parser

import (
	"github.com/ajroetker/cc64/internal/ast"
	"github.com/ajroetker/cc64/internal/diag"
	"github.com/ajroetker/cc64/internal/token"
	"github.com/ajroetker/cc64/internal/types"
)

// Parser holds the token cursor over one already-preprocessed translation
// unit.
type Parser struct {
	toks []token.Token
	pos  int
}

// New returns a Parser over toks, which must be terminated by a token.EOF.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse preprocesses nothing further and parses toks into a TranslationUnit:
// a sequence of function definitions and global declarations.
func Parse(toks []token.Token) (*ast.TranslationUnit, error) {
	p := New(toks)
	return p.parseTranslationUnit()
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}
func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errorf(format string, args ...any) error {
	return diag.New(diag.CategoryParse, p.cur().Pos, format, args...)
}

// expect consumes the current token if it has kind k, else returns a
// "expected X, got Y" diagnostic describing the expected-token set as k.
func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if p.cur().Kind != k {
		return token.Token{}, p.errorf("expected %s, got %s %q", k, p.cur().Kind, p.cur().Lexeme)
	}
	return p.advance(), nil
}

func isTypeKeyword(k token.Kind) bool {
	return k == token.VOID || k == token.CHAR || k == token.INT || k == token.LONG
}

func baseTypeFromKeyword(k token.Kind) *types.Type {
	switch k {
	case token.VOID:
		return types.VoidT
	case token.CHAR:
		return types.CharT
	case token.INT:
		return types.IntT
	case token.LONG:
		return types.LongT
	default:
		return nil
	}
}

// parseTranslationUnit parses a sequence of external declarations: function
// definitions and global variable declarations, distinguished by whether a
// '{' or a ';'/',' follows the declarator.
func (p *Parser) parseTranslationUnit() (*ast.TranslationUnit, error) {
	tu := &ast.TranslationUnit{}
	for p.cur().Kind != token.EOF {
		decl, err := p.parseExternalDeclaration()
		if err != nil {
			return nil, err
		}
		tu.Decls = append(tu.Decls, decl)
	}
	return tu, nil
}

func (p *Parser) parseExternalDeclaration() (ast.Stmt, error) {
	pos := p.cur().Pos
	if !isTypeKeyword(p.cur().Kind) {
		return nil, p.errorf("expected a declaration specifier (void, char, int, long), got %s %q", p.cur().Kind, p.cur().Lexeme)
	}
	base := baseTypeFromKeyword(p.advance().Kind)

	name, derived, isFunc, params, variadic, err := p.parseDeclarator(base)
	if err != nil {
		return nil, err
	}

	if isFunc && p.cur().Kind == token.LBRACE {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return ast.NewFuncDef(pos, name, derived, params, variadic, body), nil
	}

	// Global declaration (optionally a forward declaration of a function,
	// when isFunc is true but no '{' follows).
	first := &ast.Declarator{Name: name, Type: derived}
	if isFunc {
		fnType := types.NewFunction(derived, paramTypesOf(params), variadic)
		first.Type = fnType
	} else if p.cur().Kind == token.ASSIGN {
		p.advance()
		init, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		first.Init = init
	}
	decls := []*ast.Declarator{first}
	for p.cur().Kind == token.COMMA {
		p.advance()
		d, err := p.parseAdditionalDeclarator(base)
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	// Only a function forward declaration (no body) is extern; a plain
	// variable declaration with no initialiser is still a definition, zero
	// -initialised in .data.
	return ast.NewGlobalDecl(pos, decls, isFunc), nil
}

func paramTypesOf(params []*ast.Param) []*types.Type {
	out := make([]*types.Type, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

// parseDeclarator parses pointer derivations, the identifier, and then
// either an array suffix or a function-parameter suffix. It returns the
// identifier name, its full derived type (for a non-function declarator),
// and — when a function suffix was present — the parameter list and
// variadic flag.
func (p *Parser) parseDeclarator(base *types.Type) (name string, derived *types.Type, isFunc bool, params []*ast.Param, variadic bool, err error) {
	typ := base
	for p.cur().Kind == token.STAR {
		p.advance()
		typ = types.NewPointer(typ)
	}
	id, err := p.expect(token.IDENT)
	if err != nil {
		return "", nil, false, nil, false, err
	}
	name = id.Lexeme

	switch p.cur().Kind {
	case token.LBRACKET:
		p.advance()
		lenTok, err := p.expect(token.INT_LIT)
		if err != nil {
			return "", nil, false, nil, false, err
		}
		if _, err := p.expect(token.RBRACKET); err != nil {
			return "", nil, false, nil, false, err
		}
		return name, types.NewArray(typ, lenTok.IntValue), false, nil, false, nil
	case token.LPAREN:
		p.advance()
		params, variadic, err = p.parseParameterList()
		if err != nil {
			return "", nil, false, nil, false, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return "", nil, false, nil, false, err
		}
		return name, typ, true, params, variadic, nil
	default:
		return name, typ, false, nil, false, nil
	}
}

// parseAdditionalDeclarator parses one more comma-separated declarator in a
// declaration statement that shares base's declaration specifier.
func (p *Parser) parseAdditionalDeclarator(base *types.Type) (*ast.Declarator, error) {
	name, derived, isFunc, _, _, err := p.parseDeclarator(base)
	if err != nil {
		return nil, err
	}
	if isFunc {
		return nil, p.errorf("function declarator not permitted here")
	}
	d := &ast.Declarator{Name: name, Type: derived}
	if p.cur().Kind == token.ASSIGN {
		p.advance()
		init, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		d.Init = init
	}
	return d, nil
}

func (p *Parser) parseParameterList() ([]*ast.Param, bool, error) {
	var params []*ast.Param
	if p.cur().Kind == token.RPAREN {
		return nil, false, nil
	}
	if p.cur().Kind == token.VOID && p.peek().Kind == token.RPAREN {
		p.advance()
		return nil, false, nil
	}
	for {
		if p.cur().Kind == token.ELLIPSIS {
			p.advance()
			return params, true, nil
		}
		if !isTypeKeyword(p.cur().Kind) {
			return nil, false, p.errorf("expected a parameter type, got %s %q", p.cur().Kind, p.cur().Lexeme)
		}
		base := baseTypeFromKeyword(p.advance().Kind)
		typ := base
		for p.cur().Kind == token.STAR {
			p.advance()
			typ = types.NewPointer(typ)
		}
		name := ""
		if p.cur().Kind == token.IDENT {
			name = p.advance().Lexeme
		}
		if p.cur().Kind == token.LBRACKET {
			// Array parameter decays to pointer, per usual C rules.
			p.advance()
			if p.cur().Kind != token.RBRACKET {
				if _, err := p.expect(token.INT_LIT); err != nil {
					return nil, false, err
				}
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return nil, false, err
			}
			typ = types.NewPointer(typ)
		}
		params = append(params, &ast.Param{Name: name, Type: typ})
		if p.cur().Kind != token.COMMA {
			break
		}
		p.advance()
	}
	return params, false, nil
}

// parseStatement dispatches on the current token's kind to the right
// statement production.
func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.cur().Kind {
	case token.LBRACE:
		return p.parseBlock()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseFor()
	case token.RETURN:
		return p.parseReturn()
	case token.SEMI:
		pos := p.advance().Pos
		return ast.NewExprStmt(pos, nil), nil
	default:
		if isTypeKeyword(p.cur().Kind) {
			return p.parseDeclStmt()
		}
		return p.parseExprStmt()
	}
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	open, err := p.expect(token.LBRACE)
	if err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for p.cur().Kind != token.RBRACE {
		if p.cur().Kind == token.EOF {
			return nil, p.errorf("expected %s, got eof", token.RBRACE)
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	p.advance()
	return ast.NewBlock(open.Pos, stmts), nil
}

func (p *Parser) parseDeclStmt() (*ast.DeclStmt, error) {
	pos := p.cur().Pos
	base := baseTypeFromKeyword(p.advance().Kind)
	var decls []*ast.Declarator
	d, err := p.parseAdditionalDeclarator(base)
	if err != nil {
		return nil, err
	}
	decls = append(decls, d)
	for p.cur().Kind == token.COMMA {
		p.advance()
		d, err := p.parseAdditionalDeclarator(base)
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return ast.NewDeclStmt(pos, decls), nil
}

func (p *Parser) parseIf() (*ast.If, error) {
	pos := p.advance().Pos
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	var els ast.Stmt
	if p.cur().Kind == token.ELSE {
		p.advance()
		els, err = p.parseStatement()
		if err != nil {
			return nil, err
		}
	}
	return ast.NewIf(pos, cond, then, els), nil
}

func (p *Parser) parseWhile() (*ast.While, error) {
	pos := p.advance().Pos
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return ast.NewWhile(pos, cond, body), nil
}

func (p *Parser) parseFor() (*ast.For, error) {
	pos := p.advance().Pos
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var init ast.Stmt
	if p.cur().Kind != token.SEMI {
		if isTypeKeyword(p.cur().Kind) {
			var err error
			init, err = p.parseDeclStmt()
			if err != nil {
				return nil, err
			}
		} else {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.SEMI); err != nil {
				return nil, err
			}
			init = ast.NewExprStmt(e.Pos(), e)
		}
	} else {
		p.advance()
	}
	var cond ast.Expr
	if p.cur().Kind != token.SEMI {
		var err error
		cond, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	var step ast.Expr
	if p.cur().Kind != token.RPAREN {
		var err error
		step, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return ast.NewFor(pos, init, cond, step, body), nil
}

func (p *Parser) parseReturn() (*ast.Return, error) {
	pos := p.advance().Pos
	if p.cur().Kind == token.SEMI {
		p.advance()
		return ast.NewReturn(pos, nil), nil
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return ast.NewReturn(pos, value), nil
}

func (p *Parser) parseExprStmt() (*ast.ExprStmt, error) {
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return ast.NewExprStmt(e.Pos(), e), nil
}

// --- Expressions, by descending precedence ---
// assignment < conditional < logical-or < logical-and < bitwise-or <
// bitwise-xor < bitwise-and < equality < relational < shift < additive <
// multiplicative < unary < postfix < primary.

// parseExpression parses a full (possibly comma-) expression.
func (p *Parser) parseExpression() (ast.Expr, error) {
	e, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == token.COMMA {
		pos := p.advance().Pos
		rhs, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		e = ast.NewComma(pos, e, rhs)
	}
	return e, nil
}

var assignOps = map[token.Kind]ast.AssignOp{
	token.ASSIGN:    ast.Assign,
	token.PLUSEQ:    ast.AddAssign,
	token.MINUSEQ:   ast.SubAssign,
	token.STAREQ:    ast.MulAssign,
	token.SLASHEQ:   ast.DivAssign,
	token.PERCENTEQ: ast.ModAssign,
}

// parseAssignment is right-associative.
func (p *Parser) parseAssignment() (ast.Expr, error) {
	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if op, ok := assignOps[p.cur().Kind]; ok {
		pos := p.advance().Pos
		right, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return ast.NewAssignment(pos, op, left, right), nil
	}
	return left, nil
}

// parseConditional is right-associative.
func (p *Parser) parseConditional() (ast.Expr, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != token.QUESTION {
		return cond, nil
	}
	pos := p.advance().Pos
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	els, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	return ast.NewTernary(pos, cond, then, els), nil
}

func (p *Parser) parseLeftAssocBinary(next func() (ast.Expr, error), ops map[token.Kind]ast.BinaryOp) (ast.Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := ops[p.cur().Kind]
		if !ok {
			return left, nil
		}
		pos := p.advance().Pos
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(pos, op, left, right)
	}
}

var logOrOps = map[token.Kind]ast.BinaryOp{token.OROR: ast.LogOr}
var logAndOps = map[token.Kind]ast.BinaryOp{token.ANDAND: ast.LogAnd}
var bitOrOps = map[token.Kind]ast.BinaryOp{token.PIPE: ast.BitOr}
var bitXorOps = map[token.Kind]ast.BinaryOp{token.CARET: ast.BitXor}
var bitAndOps = map[token.Kind]ast.BinaryOp{token.AMP: ast.BitAnd}
var equalityOps = map[token.Kind]ast.BinaryOp{token.EQ: ast.Eq, token.NEQ: ast.Ne}
var relationalOps = map[token.Kind]ast.BinaryOp{
	token.LT: ast.Lt, token.LE: ast.Le, token.GT: ast.Gt, token.GE: ast.Ge,
}
var shiftOps = map[token.Kind]ast.BinaryOp{token.SHL: ast.Shl, token.SHR: ast.Shr}
var additiveOps = map[token.Kind]ast.BinaryOp{token.PLUS: ast.Add, token.MINUS: ast.Sub}
var multiplicativeOps = map[token.Kind]ast.BinaryOp{token.STAR: ast.Mul, token.SLASH: ast.Div, token.PERCENT: ast.Mod}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	return p.parseLeftAssocBinary(p.parseLogicalAnd, logOrOps)
}
func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	return p.parseLeftAssocBinary(p.parseBitOr, logAndOps)
}
func (p *Parser) parseBitOr() (ast.Expr, error) { return p.parseLeftAssocBinary(p.parseBitXor, bitOrOps) }
func (p *Parser) parseBitXor() (ast.Expr, error) {
	return p.parseLeftAssocBinary(p.parseBitAnd, bitXorOps)
}
func (p *Parser) parseBitAnd() (ast.Expr, error) {
	return p.parseLeftAssocBinary(p.parseEquality, bitAndOps)
}
func (p *Parser) parseEquality() (ast.Expr, error) {
	return p.parseLeftAssocBinary(p.parseRelational, equalityOps)
}
func (p *Parser) parseRelational() (ast.Expr, error) {
	return p.parseLeftAssocBinary(p.parseShift, relationalOps)
}
func (p *Parser) parseShift() (ast.Expr, error) {
	return p.parseLeftAssocBinary(p.parseAdditive, shiftOps)
}
func (p *Parser) parseAdditive() (ast.Expr, error) {
	return p.parseLeftAssocBinary(p.parseMultiplicative, additiveOps)
}
func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	return p.parseLeftAssocBinary(p.parseUnary, multiplicativeOps)
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.cur().Kind {
	case token.MINUS:
		pos := p.advance().Pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(pos, ast.Neg, operand), nil
	case token.NOT:
		pos := p.advance().Pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(pos, ast.Not, operand), nil
	case token.TILDE:
		pos := p.advance().Pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(pos, ast.BitNot, operand), nil
	case token.STAR:
		pos := p.advance().Pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(pos, ast.Deref, operand), nil
	case token.AMP:
		pos := p.advance().Pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(pos, ast.Addr, operand), nil
	case token.INC:
		pos := p.advance().Pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(pos, ast.PreInc, operand), nil
	case token.DEC:
		pos := p.advance().Pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(pos, ast.PreDec, operand), nil
	case token.SIZEOF:
		return p.parseSizeof()
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parseSizeof() (ast.Expr, error) {
	pos := p.advance().Pos
	if p.cur().Kind == token.LPAREN && isTypeKeyword(p.peek().Kind) {
		p.advance()
		base := baseTypeFromKeyword(p.advance().Kind)
		for p.cur().Kind == token.STAR {
			p.advance()
			base = types.NewPointer(base)
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		u := ast.NewUnary(pos, ast.SizeofExpr, nil)
		u.SizeofType = base
		return u, nil
	}
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return ast.NewUnary(pos, ast.SizeofExpr, operand), nil
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case token.LBRACKET:
			pos := p.advance().Pos
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return nil, err
			}
			e = ast.NewIndex(pos, e, idx)
		case token.LPAREN:
			pos := p.advance().Pos
			var args []ast.Expr
			if p.cur().Kind != token.RPAREN {
				for {
					arg, err := p.parseAssignment()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.cur().Kind != token.COMMA {
						break
					}
					p.advance()
				}
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			e = ast.NewCall(pos, e, args)
		case token.INC:
			pos := p.advance().Pos
			e = ast.NewUnary(pos, ast.PostInc, e)
		case token.DEC:
			pos := p.advance().Pos
			e = ast.NewUnary(pos, ast.PostDec, e)
		default:
			return e, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case token.INT_LIT:
		p.advance()
		return ast.NewIntLit(tok.Pos, tok.IntValue), nil
	case token.CHAR_LIT:
		p.advance()
		return ast.NewCharLit(tok.Pos, tok.IntValue), nil
	case token.STRING_LIT:
		p.advance()
		return ast.NewStringLit(tok.Pos, tok.Bytes), nil
	case token.IDENT:
		p.advance()
		return ast.NewIdent(tok.Pos, tok.Lexeme), nil
	case token.LPAREN:
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, p.errorf("expected an expression, got %s %q", tok.Kind, tok.Lexeme)
	}
}

