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

package ast

import (
	"github.com/ajroetker/cc64/internal/diag"
	"github.com/ajroetker/cc64/internal/types"
)

// Stmt is any statement node.
type Stmt interface {
	Pos() diag.Position
}

type stmtBase struct {
	pos diag.Position
}

func (s *stmtBase) Pos() diag.Position { return s.pos }

// ExprStmt is an expression evaluated for its side effect.
type ExprStmt struct {
	stmtBase
	X Expr
}

// NewExprStmt constructs an ExprStmt at pos.
func NewExprStmt(pos diag.Position, x Expr) *ExprStmt {
	return &ExprStmt{stmtBase: stmtBase{pos: pos}, X: x}
}

// Block is a compound statement, introducing a new lexical scope.
type Block struct {
	stmtBase
	Stmts []Stmt
}

// NewBlock constructs a Block at pos.
func NewBlock(pos diag.Position, stmts []Stmt) *Block {
	return &Block{stmtBase: stmtBase{pos: pos}, Stmts: stmts}
}

// Declarator is one name in a declaration statement, with its derived type
// and optional initialiser.
type Declarator struct {
	Name string
	Type *types.Type
	Init Expr // nil if uninitialised

	Symbol types.SymbolID // bound by sema
}

// DeclStmt declares one or more typed locals (or, at top level, globals);
// semantic analysis types each declarator's Init, and the code generator
// stores its value into the local's frame slot in place.
type DeclStmt struct {
	stmtBase
	Decls []*Declarator
}

// NewDeclStmt constructs a DeclStmt at pos.
func NewDeclStmt(pos diag.Position, decls []*Declarator) *DeclStmt {
	return &DeclStmt{stmtBase: stmtBase{pos: pos}, Decls: decls}
}

// If is an if/else statement; Else is nil when there is no else-branch.
type If struct {
	stmtBase
	Cond       Expr
	Then, Else Stmt
}

// NewIf constructs an If at pos.
func NewIf(pos diag.Position, cond Expr, then, els Stmt) *If {
	return &If{stmtBase: stmtBase{pos: pos}, Cond: cond, Then: then, Else: els}
}

// While is a while-loop.
type While struct {
	stmtBase
	Cond Expr
	Body Stmt
}

// NewWhile constructs a While at pos.
func NewWhile(pos diag.Position, cond Expr, body Stmt) *While {
	return &While{stmtBase: stmtBase{pos: pos}, Cond: cond, Body: body}
}

// For is a for-loop; Init, Cond and Step are nil when omitted from source.
type For struct {
	stmtBase
	Init Stmt
	Cond Expr
	Step Expr
	Body Stmt
}

// NewFor constructs a For at pos.
func NewFor(pos diag.Position, init Stmt, cond, step Expr, body Stmt) *For {
	return &For{stmtBase: stmtBase{pos: pos}, Init: init, Cond: cond, Step: step, Body: body}
}

// Return is a return statement; Value is nil for a bare `return;`.
type Return struct {
	stmtBase
	Value Expr
}

// NewReturn constructs a Return at pos.
func NewReturn(pos diag.Position, value Expr) *Return {
	return &Return{stmtBase: stmtBase{pos: pos}, Value: value}
}

// Param is one parameter of a function definition or declaration.
type Param struct {
	Name string
	Type *types.Type

	Symbol types.SymbolID // bound by sema
}

// FuncDef is a top-level function definition.
type FuncDef struct {
	stmtBase
	Name       string
	Return     *types.Type
	Params     []*Param
	Variadic   bool
	Body       *Block

	Symbol    types.SymbolID // bound by sema
	FrameSize int64          // finalised by sema: total local size, 16-byte rounded
	IsLeaf    bool           // finalised by sema: no calls in the body
}

// NewFuncDef constructs a FuncDef at pos.
func NewFuncDef(pos diag.Position, name string, ret *types.Type, params []*Param, variadic bool, body *Block) *FuncDef {
	return &FuncDef{stmtBase: stmtBase{pos: pos}, Name: name, Return: ret, Params: params, Variadic: variadic, Body: body}
}

// GlobalDecl is a top-level variable declaration (possibly a forward
// declaration of an externally-defined function, when Type.Kind is
// types.Function and there is no FuncDef for the same name).
type GlobalDecl struct {
	stmtBase
	Decls []*Declarator
	// Extern marks a function forward declaration (a function declarator
	// with no body); variable declarations are never Extern. The code
	// generator emits an .extern directive for it unless a FuncDef for the
	// same name appears in this translation unit.
	Extern bool
}

// NewGlobalDecl constructs a GlobalDecl at pos.
func NewGlobalDecl(pos diag.Position, decls []*Declarator, extern bool) *GlobalDecl {
	return &GlobalDecl{stmtBase: stmtBase{pos: pos}, Decls: decls, Extern: extern}
}

// TranslationUnit is the root AST node: a sequence of external declarations.
type TranslationUnit struct {
	Decls []Stmt // *FuncDef or *GlobalDecl
}
