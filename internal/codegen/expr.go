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

package codegen

import (
	"fmt"

	"github.com/ajroetker/cc64/internal/ast"
	"github.com/ajroetker/cc64/internal/diag"
	"github.com/ajroetker/cc64/internal/types"
)

// push spills rax onto the evaluation stack and tracks depth for call-site
// alignment decisions.
func (g *generator) push() {
	g.emit("  push rax")
	g.stackDepth++
}

// pop restores the top of the evaluation stack into reg.
func (g *generator) pop(reg string) {
	g.emit("  pop %s", reg)
	g.stackDepth--
}

// genExpr evaluates e, leaving its value in rax.
func (g *generator) genExpr(e ast.Expr) error {
	switch x := e.(type) {
	case *ast.IntLit:
		g.emit("  mov  rax, %d", x.Value)
		return nil

	case *ast.StringLit:
		sym := g.symbols.Get(x.Symbol)
		g.emit("  lea  rax, [rip+%s]", sym.Storage.Label)
		return nil

	case *ast.Ident:
		return g.genIdentLoad(x)

	case *ast.Unary:
		return g.genUnary(x)

	case *ast.Binary:
		return g.genBinary(x)

	case *ast.Assignment:
		return g.genAssignment(x)

	case *ast.Index:
		if err := g.genAddr(x); err != nil {
			return err
		}
		g.emitLoad(x.Type())
		return nil

	case *ast.Call:
		return g.genCall(x)

	case *ast.Comma:
		if err := g.genExpr(x.Left); err != nil {
			return err
		}
		return g.genExpr(x.Right)

	case *ast.Ternary:
		return g.genTernary(x)

	case *ast.Cast:
		return g.genExpr(x.Operand)

	default:
		return diag.New(diag.CategoryInternal, e.Pos(), "codegen: unhandled expression node %T", e)
	}
}

func (g *generator) genIdentLoad(x *ast.Ident) error {
	sym := g.symbols.Get(x.Symbol)
	switch sym.Storage.Kind {
	case types.Local, types.Parameter:
		if sym.Type.Kind == types.Array {
			g.emit("  lea  rax, [rbp%+d]", sym.Storage.FrameOffset)
			return nil
		}
		g.emitLoadFrom(fmt.Sprintf("[rbp%+d]", sym.Storage.FrameOffset), sym.Type)
		return nil
	case types.Global, types.FunctionStorage:
		if sym.Type.Kind == types.Array || sym.Type.Kind == types.Function {
			g.emit("  lea  rax, [rip+%s]", sym.Storage.Label)
			return nil
		}
		g.emitLoadFrom(fmt.Sprintf("[rip+%s]", sym.Storage.Label), sym.Type)
		return nil
	default:
		return diag.New(diag.CategoryInternal, x.Pos(), "codegen: identifier %q has unexpected storage kind", x.Name)
	}
}

// emitLoadFrom loads the value at addr into rax with the width- and
// signedness-appropriate instruction for t.
func (g *generator) emitLoadFrom(addr string, t *types.Type) {
	switch t.Size() {
	case 1:
		g.emit("  movsx rax, byte ptr %s", addr)
	case 4:
		g.emit("  movsx rax, dword ptr %s", addr)
	default:
		g.emit("  mov  rax, %s", addr)
	}
}

// emitLoad dereferences the address currently in rax, loading the pointee
// of type t into rax.
func (g *generator) emitLoad(t *types.Type) {
	switch t.Size() {
	case 1:
		g.emit("  movsx rax, byte ptr [rax]")
	case 4:
		g.emit("  movsx rax, dword ptr [rax]")
	default:
		g.emit("  mov  rax, [rax]")
	}
}

// emitStore stores rax into the address held in dstReg, sized for t.
func (g *generator) emitStore(dstReg string, t *types.Type) {
	g.emit("  mov  [%s], %s", dstReg, narrowReg("rax", t))
}

// genAddr computes the address of the lvalue e into rax. Only the lvalue
// forms sema accepts (Ident, Deref, Index) are handled.
func (g *generator) genAddr(e ast.Expr) error {
	switch x := e.(type) {
	case *ast.Ident:
		sym := g.symbols.Get(x.Symbol)
		switch sym.Storage.Kind {
		case types.Local, types.Parameter:
			g.emit("  lea  rax, [rbp%+d]", sym.Storage.FrameOffset)
		default:
			g.emit("  lea  rax, [rip+%s]", sym.Storage.Label)
		}
		return nil

	case *ast.Unary: // Deref
		return g.genExpr(x.Operand)

	case *ast.Index:
		if err := g.genExpr(x.Base); err != nil {
			return err
		}
		g.push()
		if err := g.genExpr(x.Index); err != nil {
			return err
		}
		elemSize := x.Type().Size()
		if elemSize > 1 {
			g.emit("  imul rax, rax, %d", elemSize)
		}
		g.pop("r10")
		g.emit("  add  rax, r10")
		return nil

	default:
		return diag.New(diag.CategoryInternal, e.Pos(), "codegen: %T is not an lvalue", e)
	}
}

func (g *generator) genUnary(x *ast.Unary) error {
	if x.Op == ast.SizeofExpr {
		if x.SizeofType != nil {
			g.emit("  mov  rax, %d", x.SizeofType.Size())
		} else {
			g.emit("  mov  rax, %d", x.Operand.Type().Size())
		}
		return nil
	}

	switch x.Op {
	case ast.Addr:
		return g.genAddr(x.Operand)

	case ast.Deref:
		if err := g.genExpr(x.Operand); err != nil {
			return err
		}
		g.emitLoad(x.Type())
		return nil

	case ast.Neg:
		if err := g.genExpr(x.Operand); err != nil {
			return err
		}
		g.emit("  neg  rax")
		return nil

	case ast.BitNot:
		if err := g.genExpr(x.Operand); err != nil {
			return err
		}
		g.emit("  not  rax")
		return nil

	case ast.Not:
		if err := g.genExpr(x.Operand); err != nil {
			return err
		}
		g.emit("  cmp  rax, 0")
		g.emit("  sete al")
		g.emit("  movzx rax, al")
		return nil

	case ast.PreInc, ast.PreDec, ast.PostInc, ast.PostDec:
		return g.genIncDec(x)

	default:
		return diag.New(diag.CategoryInternal, x.Pos(), "codegen: unhandled unary operator")
	}
}

func (g *generator) genIncDec(x *ast.Unary) error {
	step := int64(1)
	t := x.Operand.Type()
	if t.Kind == types.Pointer {
		step = t.Elem.Size()
	}
	op := "add"
	if x.Op == ast.PreDec || x.Op == ast.PostDec {
		op = "sub"
	}

	if err := g.genAddr(x.Operand); err != nil {
		return err
	}
	g.emit("  mov  r10, rax") // r10 = address
	g.emitLoadFrom("[r10]", t)
	g.emit("  mov  r11, rax") // r11 = original value

	g.emit("  %s  rax, %d", op, step)
	g.emitStore("r10", t)

	if x.Op == ast.PostInc || x.Op == ast.PostDec {
		g.emit("  mov  rax, r11") // postfix yields the pre-update value
	}
	return nil
}

func (g *generator) genBinary(x *ast.Binary) error {
	switch x.Op {
	case ast.LogAnd:
		return g.genLogical(x, true)
	case ast.LogOr:
		return g.genLogical(x, false)
	}

	if err := g.genExpr(x.Left); err != nil {
		return err
	}
	g.push()
	if err := g.genExpr(x.Right); err != nil {
		return err
	}
	g.pop("r10") // r10 = left, rax = right

	lt, rt := x.Left.Type().Decay(), x.Right.Type().Decay()
	switch x.Op {
	case ast.Add:
		return g.genAdditive(lt, rt, "add")
	case ast.Sub:
		return g.genSubtractive(lt, rt)
	case ast.Mul:
		g.emit("  imul rax, r10")
		return nil
	case ast.Div, ast.Mod:
		return g.genDivMod(x.Op)
	case ast.BitAnd:
		g.emit("  and  rax, r10")
		return nil
	case ast.BitOr:
		g.emit("  or   rax, r10")
		return nil
	case ast.BitXor:
		g.emit("  xor  rax, r10")
		return nil
	case ast.Shl:
		g.emit("  mov  rcx, rax")
		g.emit("  mov  rax, r10")
		g.emit("  shl  rax, cl")
		return nil
	case ast.Shr:
		g.emit("  mov  rcx, rax")
		g.emit("  mov  rax, r10")
		g.emit("  sar  rax, cl")
		return nil
	case ast.Eq, ast.Ne, ast.Lt, ast.Le, ast.Gt, ast.Ge:
		g.emit("  cmp  r10, rax")
		g.emit("  %s %s", setccFor(x.Op), "al")
		g.emit("  movzx rax, al")
		return nil
	default:
		return diag.New(diag.CategoryInternal, x.Pos(), "codegen: unhandled binary operator")
	}
}

func setccFor(op ast.BinaryOp) string {
	switch op {
	case ast.Eq:
		return "sete"
	case ast.Ne:
		return "setne"
	case ast.Lt:
		return "setl"
	case ast.Le:
		return "setle"
	case ast.Gt:
		return "setg"
	default: // Ge
		return "setge"
	}
}

// genAdditive implements + with pointer/integer scaling: r10 holds the
// left operand, rax the right, per genBinary's calling convention.
func (g *generator) genAdditive(lt, rt *types.Type, op string) error {
	switch {
	case lt.Kind == types.Pointer && rt.IsInteger():
		if sz := lt.Elem.Size(); sz > 1 {
			g.emit("  imul rax, rax, %d", sz)
		}
		g.emit("  %s  rax, r10", op)
		return nil
	case lt.IsInteger() && rt.Kind == types.Pointer:
		if sz := rt.Elem.Size(); sz > 1 {
			g.emit("  imul r10, r10, %d", sz)
		}
		g.emit("  %s  rax, r10", op)
		return nil
	default:
		g.emit("  %s  rax, r10", op)
		return nil
	}
}

func (g *generator) genSubtractive(lt, rt *types.Type) error {
	if lt.Kind == types.Pointer && rt.Kind == types.Pointer {
		// r10 = left address, rax = right address; result = (left-right)/elemSize.
		g.emit("  sub  r10, rax")
		g.emit("  mov  rax, r10")
		if sz := lt.Elem.Size(); sz > 1 {
			g.emit("  mov  rcx, %d", sz)
			g.emit("  cqo")
			g.emit("  idiv rcx")
		}
		return nil
	}
	if lt.Kind == types.Pointer && rt.IsInteger() {
		if sz := lt.Elem.Size(); sz > 1 {
			g.emit("  imul rax, rax, %d", sz)
		}
		g.emit("  mov  rcx, rax")
		g.emit("  mov  rax, r10")
		g.emit("  sub  rax, rcx")
		return nil
	}
	// r10 - rax, result in rax.
	g.emit("  sub  r10, rax")
	g.emit("  mov  rax, r10")
	return nil
}

func (g *generator) genDivMod(op ast.BinaryOp) error {
	g.emit("  mov  rcx, rax") // divisor
	g.emit("  mov  rax, r10") // dividend
	g.emit("  cqo")
	g.emit("  idiv rcx")
	if op == ast.Mod {
		g.emit("  mov  rax, rdx")
	}
	return nil
}

func (g *generator) genLogical(x *ast.Binary, isAnd bool) error {
	end := g.newLabel()
	if err := g.genExpr(x.Left); err != nil {
		return err
	}
	g.emit("  cmp  rax, 0")
	if isAnd {
		g.emit("  je   %s", end)
	} else {
		g.emit("  jne  %s", end)
	}
	if err := g.genExpr(x.Right); err != nil {
		return err
	}
	g.emit("  cmp  rax, 0")
	g.emit("  setne al")
	g.emit("  movzx rax, al")
	g.emit("  jmp  %s_done", end)
	g.emit("%s:", end)
	if isAnd {
		g.emit("  mov  rax, 0")
	} else {
		g.emit("  mov  rax, 1")
	}
	g.emit("%s_done:", end)
	return nil
}

func (g *generator) genAssignment(x *ast.Assignment) error {
	if err := g.genAddr(x.Target); err != nil {
		return err
	}
	g.push() // save target address

	if x.Op == ast.Assign {
		if err := g.genExpr(x.Value); err != nil {
			return err
		}
		g.pop("r10")
		g.emitStore("r10", x.Target.Type())
		return nil
	}

	// Compound assignment: reload the current value through the saved
	// address, then apply the arithmetic op before storing back.
	g.emit("  mov  r10, [rsp]") // address, without popping yet
	g.emitLoadFrom("[r10]", x.Target.Type())
	g.push() // save current value; stack: [addr, current]

	if err := g.genExpr(x.Value); err != nil {
		return err
	}
	g.pop("r10") // r10 = current value, rax = new operand
	lt, rt := x.Target.Type(), x.Value.Type().Decay()
	switch x.Op {
	case ast.AddAssign:
		if err := g.genAdditive(lt, rt, "add"); err != nil {
			return err
		}
	case ast.SubAssign:
		if err := g.genSubtractive(lt, rt); err != nil {
			return err
		}
	case ast.MulAssign:
		g.emit("  imul rax, r10")
	case ast.DivAssign:
		if err := g.genDivMod(ast.Div); err != nil {
			return err
		}
	case ast.ModAssign:
		if err := g.genDivMod(ast.Mod); err != nil {
			return err
		}
	}

	g.pop("r10") // r10 = target address
	g.emitStore("r10", x.Target.Type())
	return nil
}

func (g *generator) genTernary(x *ast.Ternary) error {
	elseLabel := g.newLabel()
	doneLabel := g.newLabel()

	if err := g.genExpr(x.Cond); err != nil {
		return err
	}
	g.emit("  cmp  rax, 0")
	g.emit("  je   %s", elseLabel)
	if err := g.genExpr(x.Then); err != nil {
		return err
	}
	g.emit("  jmp  %s", doneLabel)
	g.emit("%s:", elseLabel)
	if err := g.genExpr(x.Else); err != nil {
		return err
	}
	g.emit("%s:", doneLabel)
	return nil
}

// genCall evaluates every argument onto the explicit evaluation stack
// before touching a single argument register, so that evaluating a later
// argument (which may itself call a function) never clobbers an earlier
// argument already placed in rcx/rdx/r8/r9.
func (g *generator) genCall(x *ast.Call) error {
	callee := x.Callee.(*ast.Ident)
	sym := g.symbols.Get(callee.Symbol)

	regArgs := x.Args
	var stackArgs []ast.Expr
	if len(x.Args) > 4 {
		regArgs, stackArgs = x.Args[:4], x.Args[4:]
	}

	// Pad to a 16-byte boundary if the current evaluation depth plus this
	// call's stack arguments would otherwise leave rsp misaligned.
	pad := (g.stackDepth + len(stackArgs)) % 2
	if pad != 0 {
		g.emit("  sub  rsp, 8")
		g.stackDepth++
	}

	for i := len(stackArgs) - 1; i >= 0; i-- {
		if err := g.genExpr(stackArgs[i]); err != nil {
			return err
		}
		g.push()
	}

	for _, arg := range regArgs {
		if err := g.genExpr(arg); err != nil {
			return err
		}
		g.push()
	}
	for i := len(regArgs) - 1; i >= 0; i-- {
		g.pop(argRegs64[i])
	}

	g.emit("  sub  rsp, 32")
	g.emit("  call %s", sym.Storage.Label)
	g.emit("  add  rsp, 32")

	if n := len(stackArgs); n > 0 {
		g.emit("  add  rsp, %d", n*8)
		g.stackDepth -= n
	}
	if pad != 0 {
		g.emit("  add  rsp, 8")
		g.stackDepth--
	}
	return nil
}
