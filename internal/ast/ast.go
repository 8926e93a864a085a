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

// Package ast defines the two node families the parser produces and the
// semantic analyser annotates: expressions and statements. Both are closed
// sum types enumerated as Go interfaces with a small, fixed set of
// implementations — no open-ended dispatch.
package ast

import (
	"github.com/ajroetker/cc64/internal/diag"
	"github.com/ajroetker/cc64/internal/types"
)

// Expr is any expression node. Every Expr's Type() is nil until semantic
// analysis fills it in; after that pass, invariant (i) holds: every
// expression node has a non-null type.
type Expr interface {
	Pos() diag.Position
	Type() *types.Type
	SetType(*types.Type)
}

type exprBase struct {
	pos diag.Position
	typ *types.Type
}

func (e *exprBase) Pos() diag.Position   { return e.pos }
func (e *exprBase) Type() *types.Type    { return e.typ }
func (e *exprBase) SetType(t *types.Type) { e.typ = t }

// IntLit is an integer or character constant; FromChar distinguishes a
// character-literal origin ('a') from a numeric one (97), since sema types
// the two differently (char vs int).
type IntLit struct {
	exprBase
	Value    int64
	FromChar bool
}

// NewIntLit constructs a numeric IntLit at pos.
func NewIntLit(pos diag.Position, value int64) *IntLit {
	return &IntLit{exprBase: exprBase{pos: pos}, Value: value}
}

// NewCharLit constructs an IntLit at pos with FromChar set.
func NewCharLit(pos diag.Position, value int64) *IntLit {
	return &IntLit{exprBase: exprBase{pos: pos}, Value: value, FromChar: true}
}

// StringLit is a reference to a (possibly shared) string-literal symbol.
type StringLit struct {
	exprBase
	Bytes  []byte
	Symbol types.SymbolID // bound by sema to the deduplicated literal's symbol
}

// NewStringLit constructs a StringLit at pos.
func NewStringLit(pos diag.Position, bytes []byte) *StringLit {
	return &StringLit{exprBase: exprBase{pos: pos}, Bytes: bytes}
}

// Ident is an identifier reference, resolved by sema to a symbol.
type Ident struct {
	exprBase
	Name   string
	Symbol types.SymbolID
}

// NewIdent constructs an unresolved Ident at pos.
func NewIdent(pos diag.Position, name string) *Ident {
	return &Ident{exprBase: exprBase{pos: pos}, Name: name}
}

// UnaryOp enumerates the unary operators.
type UnaryOp int

const (
	Neg UnaryOp = iota
	Not
	BitNot
	Deref
	Addr
	PreInc
	PreDec
	PostInc
	PostDec
	SizeofExpr
)

// Unary is a unary-operator expression: - ! ~ * & ++ -- sizeof, plus the
// postfix forms of ++/--.
type Unary struct {
	exprBase
	Op      UnaryOp
	Operand Expr
	// SizeofType is set instead of Operand when sizeof is applied to a type
	// name (e.g. sizeof(int)) rather than an expression.
	SizeofType *types.Type
}

// NewUnary constructs a Unary at pos.
func NewUnary(pos diag.Position, op UnaryOp, operand Expr) *Unary {
	return &Unary{exprBase: exprBase{pos: pos}, Op: op, Operand: operand}
}

// BinaryOp enumerates the binary operators.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	LogAnd
	LogOr
	BitAnd
	BitOr
	BitXor
	Shl
	Shr
)

// Binary is a binary-operator expression.
type Binary struct {
	exprBase
	Op          BinaryOp
	Left, Right Expr
}

// NewBinary constructs a Binary at pos.
func NewBinary(pos diag.Position, op BinaryOp, left, right Expr) *Binary {
	return &Binary{exprBase: exprBase{pos: pos}, Op: op, Left: left, Right: right}
}

// AssignOp enumerates the assignment operators.
type AssignOp int

const (
	Assign AssignOp = iota
	AddAssign
	SubAssign
	MulAssign
	DivAssign
	ModAssign
)

// Assignment is e.g. `x = e`, `x += e`. Target must be an lvalue.
type Assignment struct {
	exprBase
	Op     AssignOp
	Target Expr
	Value  Expr
}

// NewAssignment constructs an Assignment at pos.
func NewAssignment(pos diag.Position, op AssignOp, target, value Expr) *Assignment {
	return &Assignment{exprBase: exprBase{pos: pos}, Op: op, Target: target, Value: value}
}

// Index is an array subscript expression `base[index]`.
type Index struct {
	exprBase
	Base, Index Expr
}

// NewIndex constructs an Index at pos.
func NewIndex(pos diag.Position, base, index Expr) *Index {
	return &Index{exprBase: exprBase{pos: pos}, Base: base, Index: index}
}

// Call is a function-call expression.
type Call struct {
	exprBase
	Callee Expr
	Args   []Expr
}

// NewCall constructs a Call at pos.
func NewCall(pos diag.Position, callee Expr, args []Expr) *Call {
	return &Call{exprBase: exprBase{pos: pos}, Callee: callee, Args: args}
}

// Comma is a comma expression `a, b`, evaluating to b's type and value.
type Comma struct {
	exprBase
	Left, Right Expr
}

// NewComma constructs a Comma at pos.
func NewComma(pos diag.Position, left, right Expr) *Comma {
	return &Comma{exprBase: exprBase{pos: pos}, Left: left, Right: right}
}

// Ternary is the conditional expression `cond ? then : els`, right
// associative. The grammar reserves it; this implementation exercises it.
type Ternary struct {
	exprBase
	Cond, Then, Else Expr
}

// NewTernary constructs a Ternary at pos.
func NewTernary(pos diag.Position, cond, then, els Expr) *Ternary {
	return &Ternary{exprBase: exprBase{pos: pos}, Cond: cond, Then: then, Else: els}
}

// Cast is reserved for a future cast expression; the documented feature set
// does not require it, but the AST carries the node so the grammar hook in
// the parser has somewhere to attach.
type Cast struct {
	exprBase
	Target  *types.Type
	Operand Expr
}

// NewCast constructs a Cast at pos.
func NewCast(pos diag.Position, target *types.Type, operand Expr) *Cast {
	return &Cast{exprBase: exprBase{pos: pos}, Target: target, Operand: operand}
}
