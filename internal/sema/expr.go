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

package sema

import (
	"strconv"

	"github.com/samber/lo"

	"github.com/ajroetker/cc64/internal/ast"
	"github.com/ajroetker/cc64/internal/types"
)

// valueType returns e's type decayed for use as a value: Array(T,n) decays
// to Pointer(T) everywhere except as the direct operand of & or sizeof,
// which call e.Type() themselves instead of this helper.
func valueType(e ast.Expr) *types.Type {
	return e.Type().Decay()
}

// assignable reports whether a value of type src may be used where dst is
// expected: integer-to-integer conversions are always permitted, as is
// pointer-to-T <-> pointer-to-void; every other pointer mismatch is
// rejected.
func assignable(dst, src *types.Type) bool {
	if dst.IsInteger() && src.IsInteger() {
		return true
	}
	if dst.Kind == types.Pointer && src.Kind == types.Pointer {
		if dst.Elem.Kind == types.Void || src.Elem.Kind == types.Void {
			return true
		}
		return dst.Elem.Equal(src.Elem)
	}
	return dst.Equal(src)
}

func isLvalue(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.Ident:
		return true
	case *ast.Unary:
		return x.Op == ast.Deref
	case *ast.Index:
		return true
	default:
		return false
	}
}

// checkExpr types e in place (via Expr.SetType) and resolves every Ident it
// contains to a symbol, recursing into subexpressions first so that by the
// time a node's own type is computed every operand already has one.
func (a *analyzer) checkExpr(e ast.Expr) error {
	switch x := e.(type) {
	case *ast.IntLit:
		if x.FromChar {
			x.SetType(types.CharT)
		} else {
			x.SetType(types.IntT)
		}
		return nil

	case *ast.StringLit:
		name := a.internString(x.Bytes)
		id, _ := a.symbols.Lookup(name) // string symbols live in a reserved namespace, see internString
		x.Symbol = id
		x.SetType(types.NewPointer(types.CharT))
		return nil

	case *ast.Ident:
		return a.checkIdent(x)

	case *ast.Unary:
		return a.checkUnary(x)

	case *ast.Binary:
		return a.checkBinary(x)

	case *ast.Assignment:
		return a.checkAssignment(x)

	case *ast.Index:
		return a.checkIndex(x)

	case *ast.Call:
		return a.checkCall(x)

	case *ast.Comma:
		if err := a.checkExpr(x.Left); err != nil {
			return err
		}
		if err := a.checkExpr(x.Right); err != nil {
			return err
		}
		x.SetType(valueType(x.Right))
		return nil

	case *ast.Ternary:
		return a.checkTernary(x)

	case *ast.Cast:
		if err := a.checkExpr(x.Operand); err != nil {
			return err
		}
		x.SetType(x.Target)
		return nil

	default:
		return a.errorf(e.Pos(), "internal error: unhandled expression node %T", e)
	}
}

// internString deduplicates a string literal by exact byte content and
// returns a stable pseudo-name ("$str$<label>") under which a GlobalScope
// symbol with StringLiteral storage is registered, satisfying invariant
// (iii) — one label per unique value — while reusing the existing
// SymbolTable/arena machinery instead of a second side table.
func (a *analyzer) internString(bytes []byte) string {
	key := string(bytes)
	if label, ok := a.stringLabel[key]; ok {
		return "$str$" + label
	}
	label := labelForStringIndex(len(a.strings))
	a.stringLabel[key] = label
	a.strings = append(a.strings, StringLiteralInfo{Label: label, Bytes: bytes})

	name := "$str$" + label
	a.symbols.DeclareGlobalString(name, label, bytes)
	return name
}

func labelForStringIndex(i int) string {
	return ".LC" + strconv.Itoa(i)
}

func (a *analyzer) checkIdent(x *ast.Ident) error {
	id, ok := a.symbols.Lookup(x.Name)
	if !ok {
		return a.errorf(x.Pos(), "undefined symbol %q", x.Name)
	}
	x.Symbol = id
	x.SetType(a.symbols.Get(id).Type)
	return nil
}

func (a *analyzer) checkUnary(x *ast.Unary) error {
	if x.Op == ast.SizeofExpr {
		if x.SizeofType != nil {
			x.SetType(types.LongT)
			return nil
		}
		if err := a.checkExpr(x.Operand); err != nil {
			return err
		}
		x.SetType(types.LongT)
		return nil
	}

	if err := a.checkExpr(x.Operand); err != nil {
		return err
	}
	operandType := x.Operand.Type()

	switch x.Op {
	case ast.Neg, ast.BitNot:
		if !operandType.IsInteger() {
			return a.errorf(x.Pos(), "operator requires an integer operand, got %s", operandType)
		}
		x.SetType(promoteUnary(operandType))
	case ast.Not:
		if !valueType(x.Operand).IsScalar() {
			return a.errorf(x.Pos(), "operator ! requires a scalar operand, got %s", operandType)
		}
		x.SetType(types.IntT)
	case ast.Deref:
		vt := valueType(x.Operand)
		if vt.Kind != types.Pointer {
			return a.errorf(x.Pos(), "cannot dereference non-pointer type %s", vt)
		}
		x.SetType(vt.Elem)
	case ast.Addr:
		if !isLvalue(x.Operand) {
			return a.errorf(x.Pos(), "cannot take the address of a non-lvalue")
		}
		x.SetType(types.NewPointer(operandType))
	case ast.PreInc, ast.PreDec, ast.PostInc, ast.PostDec:
		if !isLvalue(x.Operand) {
			return a.errorf(x.Pos(), "increment/decrement requires an lvalue operand")
		}
		if !valueType(x.Operand).IsScalar() {
			return a.errorf(x.Pos(), "increment/decrement requires a scalar operand, got %s", operandType)
		}
		x.SetType(valueType(x.Operand))
	default:
		return a.errorf(x.Pos(), "internal error: unhandled unary operator")
	}
	return nil
}

func promoteUnary(t *types.Type) *types.Type {
	if t.Kind == types.Char {
		return types.IntT
	}
	return t
}

func (a *analyzer) checkBinary(x *ast.Binary) error {
	if err := a.checkExpr(x.Left); err != nil {
		return err
	}
	if err := a.checkExpr(x.Right); err != nil {
		return err
	}
	lt, rt := valueType(x.Left), valueType(x.Right)

	switch x.Op {
	case ast.LogAnd, ast.LogOr:
		if !lt.IsScalar() || !rt.IsScalar() {
			return a.errorf(x.Pos(), "logical operator requires scalar operands")
		}
		x.SetType(types.IntT)
		return nil
	case ast.Eq, ast.Ne, ast.Lt, ast.Le, ast.Gt, ast.Ge:
		if lt.Kind == types.Pointer && rt.Kind == types.Pointer {
			// pointer comparisons fall through to IntT below
		} else if !lt.IsInteger() || !rt.IsInteger() {
			return a.errorf(x.Pos(), "comparison requires matching integer or pointer operands, got %s and %s", lt, rt)
		}
		x.SetType(types.IntT)
		return nil
	case ast.BitAnd, ast.BitOr, ast.BitXor, ast.Shl, ast.Shr:
		if !lt.IsInteger() || !rt.IsInteger() {
			return a.errorf(x.Pos(), "bitwise operator requires integer operands, got %s and %s", lt, rt)
		}
		x.SetType(types.Promote(lt, rt))
		return nil
	case ast.Add:
		return a.checkAdditive(x, lt, rt, true)
	case ast.Sub:
		return a.checkAdditive(x, lt, rt, false)
	case ast.Mul, ast.Div, ast.Mod:
		if !lt.IsInteger() || !rt.IsInteger() {
			return a.errorf(x.Pos(), "arithmetic operator requires integer operands, got %s and %s", lt, rt)
		}
		if (x.Op == ast.Div || x.Op == ast.Mod) && isLiteralZero(x.Right) {
			return a.errorf(x.Right.Pos(), "division by the literal zero")
		}
		x.SetType(types.Promote(lt, rt))
		return nil
	default:
		return a.errorf(x.Pos(), "internal error: unhandled binary operator")
	}
}

// checkAdditive implements pointer/integer scaling for + and -, plus
// pointer-minus-pointer yielding a scaled long.
func (a *analyzer) checkAdditive(x *ast.Binary, lt, rt *types.Type, isAdd bool) error {
	switch {
	case lt.IsInteger() && rt.IsInteger():
		x.SetType(types.Promote(lt, rt))
		return nil
	case lt.Kind == types.Pointer && rt.IsInteger():
		x.SetType(lt)
		return nil
	case isAdd && lt.IsInteger() && rt.Kind == types.Pointer:
		x.SetType(rt)
		return nil
	case !isAdd && lt.Kind == types.Pointer && rt.Kind == types.Pointer:
		if !lt.Elem.Equal(rt.Elem) {
			return a.errorf(x.Pos(), "pointer subtraction requires matching pointee types, got %s and %s", lt, rt)
		}
		x.SetType(types.LongT)
		return nil
	default:
		op := "+"
		if !isAdd {
			op = "-"
		}
		return a.errorf(x.Pos(), "invalid operands to binary %s: %s and %s", op, lt, rt)
	}
}

func isLiteralZero(e ast.Expr) bool {
	lit, ok := e.(*ast.IntLit)
	return ok && lit.Value == 0
}

func (a *analyzer) checkAssignment(x *ast.Assignment) error {
	if err := a.checkExpr(x.Target); err != nil {
		return err
	}
	if err := a.checkExpr(x.Value); err != nil {
		return err
	}
	if !isLvalue(x.Target) {
		return a.errorf(x.Target.Pos(), "assignment target must be an lvalue")
	}
	dst := x.Target.Type()
	src := valueType(x.Value)
	if x.Op != ast.Assign && !(dst.IsInteger() && src.IsInteger()) && !(dst.Kind == types.Pointer && src.IsInteger()) {
		return a.errorf(x.Pos(), "compound assignment requires numeric operands, got %s and %s", dst, src)
	}
	if !assignable(dst, src) {
		return a.errorf(x.Pos(), "cannot assign %s to %s", src, dst)
	}
	x.SetType(dst)
	return nil
}

func (a *analyzer) checkIndex(x *ast.Index) error {
	if err := a.checkExpr(x.Base); err != nil {
		return err
	}
	if err := a.checkExpr(x.Index); err != nil {
		return err
	}
	bt := valueType(x.Base)
	if bt.Kind != types.Pointer {
		return a.errorf(x.Pos(), "subscript requires a pointer or array, got %s", x.Base.Type())
	}
	if !valueType(x.Index).IsInteger() {
		return a.errorf(x.Index.Pos(), "array subscript must be an integer, got %s", valueType(x.Index))
	}
	x.SetType(bt.Elem)
	return nil
}

func (a *analyzer) checkCall(x *ast.Call) error {
	a.sawCall = true
	callee, ok := x.Callee.(*ast.Ident)
	if !ok {
		return a.errorf(x.Callee.Pos(), "call target must be a declared function")
	}
	if err := a.checkExpr(callee); err != nil {
		return err
	}
	fnType := callee.Type()
	if fnType.Kind != types.Function {
		return a.errorf(x.Pos(), "%q is not a function", callee.Name)
	}

	for _, arg := range x.Args {
		if err := a.checkExpr(arg); err != nil {
			return err
		}
	}

	if !fnType.Var && len(x.Args) != len(fnType.Params) {
		return a.errorf(x.Pos(), "call to %q has %d arguments, want %d", callee.Name, len(x.Args), len(fnType.Params))
	}
	if fnType.Var && len(x.Args) < len(fnType.Params) {
		return a.errorf(x.Pos(), "call to %q has %d arguments, want at least %d", callee.Name, len(x.Args), len(fnType.Params))
	}
	type paramArg struct {
		index int
		arg   ast.Expr
		param *types.Type
	}
	pairs := lo.Map(fnType.Params, func(param *types.Type, i int) paramArg {
		return paramArg{index: i, arg: x.Args[i], param: param}
	})
	mismatches := lo.Filter(pairs, func(p paramArg, _ int) bool {
		return !assignable(p.param, valueType(p.arg))
	})
	if len(mismatches) > 0 {
		m := mismatches[0]
		return a.errorf(m.arg.Pos(), "argument %d to %q: cannot use %s as %s", m.index+1, callee.Name, valueType(m.arg), m.param)
	}

	x.SetType(fnType.Return)
	return nil
}

func (a *analyzer) checkTernary(x *ast.Ternary) error {
	if err := a.checkExpr(x.Cond); err != nil {
		return err
	}
	if !valueType(x.Cond).IsScalar() {
		return a.errorf(x.Cond.Pos(), "ternary condition must be scalar, got %s", valueType(x.Cond))
	}
	if err := a.checkExpr(x.Then); err != nil {
		return err
	}
	if err := a.checkExpr(x.Else); err != nil {
		return err
	}
	tt, et := valueType(x.Then), valueType(x.Else)
	if tt.IsInteger() && et.IsInteger() {
		x.SetType(types.Promote(tt, et))
		return nil
	}
	if !assignable(tt, et) && !assignable(et, tt) {
		return a.errorf(x.Pos(), "ternary branches have incompatible types: %s and %s", tt, et)
	}
	x.SetType(tt)
	return nil
}
