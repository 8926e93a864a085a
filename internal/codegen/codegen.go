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

// Package codegen is the single-pass tree-walking code generator: it
// consumes an annotated AST from internal/sema and emits Intel-syntax
// assembly text for the Microsoft x64 calling convention via
// internal/asmwriter.
package codegen

import (
	"fmt"
	"strings"

	"github.com/ajroetker/cc64/internal/ast"
	"github.com/ajroetker/cc64/internal/asmwriter"
	"github.com/ajroetker/cc64/internal/diag"
	"github.com/ajroetker/cc64/internal/sema"
	"github.com/ajroetker/cc64/internal/types"
)

// argRegs8/32/64 are the first four integer-argument registers at byte,
// dword and qword width, in MS x64 parameter order.
var (
	argRegs8  = [4]string{"cl", "dl", "r8b", "r9b"}
	argRegs32 = [4]string{"ecx", "edx", "r8d", "r9d"}
	argRegs64 = [4]string{"rcx", "rdx", "r8", "r9"}
)

// generator carries the state threaded through one Generate call: the
// fragment sink, the symbol table sema already populated, the enclosing
// function's name (for its .Lreturn_name label), the monotonic label
// counter, and the current evaluation-stack depth used to decide call-site
// alignment padding.
type generator struct {
	w       *asmwriter.Writer
	symbols *types.SymbolTable

	fnName     string
	labelN     int
	stackDepth int // words currently pushed mid-expression

	defined map[string]bool // function labels defined by a FuncDef in this unit
}

// Generate walks res and returns the final .s text.
func Generate(res *sema.Result) (string, error) {
	g := &generator{w: asmwriter.New(), symbols: res.Symbols}

	for _, lit := range res.Strings {
		g.w.Data(fmt.Sprintf("%s: .byte %s", lit.Label, byteList(lit.Bytes)))
	}

	g.defined = make(map[string]bool)
	for _, decl := range res.TU.Decls {
		if fn, ok := decl.(*ast.FuncDef); ok {
			sym := res.Symbols.Get(fn.Symbol)
			g.defined[sym.Storage.Label] = true
		}
	}

	for _, decl := range res.TU.Decls {
		switch d := decl.(type) {
		case *ast.FuncDef:
			if err := g.genFuncDef(d); err != nil {
				return "", err
			}
		case *ast.GlobalDecl:
			g.genGlobalDecl(d)
		default:
			return "", diag.New(diag.CategoryInternal, decl.Pos(), "codegen: unhandled top-level declaration %T", decl)
		}
	}

	return g.w.String(), nil
}

func byteList(b []byte) string {
	parts := make([]string, 0, len(b)+1)
	for _, c := range b {
		parts = append(parts, fmt.Sprintf("%d", c))
	}
	parts = append(parts, "0") // null terminator
	return strings.Join(parts, ", ")
}

// dataDirective returns the GAS directive that reserves storage of t's
// size: .byte for char, .long for int, .quad for long and pointer.
func dataDirective(t *types.Type) string {
	switch t.Kind {
	case types.Char:
		return ".byte"
	case types.Int:
		return ".long"
	default:
		return ".quad"
	}
}

func (g *generator) genGlobalDecl(d *ast.GlobalDecl) {
	for _, decl := range d.Decls {
		sym := g.symbols.Get(decl.Symbol)
		if d.Extern {
			if sym.Type.Kind != types.Function || !g.defined[sym.Storage.Label] {
				g.w.Extern(sym.Storage.Label)
			}
			continue
		}
		if sym.Type.Kind == types.Function {
			// Declared but defined later as a FuncDef in this unit; that
			// definition emits the .text symbol, nothing to do here.
			continue
		}
		g.w.Global(sym.Storage.Label)
		if decl.Init == nil {
			g.w.Data(fmt.Sprintf("%s: .zero %d", sym.Storage.Label, sym.Type.Size()))
			continue
		}
		lit, ok := decl.Init.(*ast.IntLit)
		if !ok {
			// Non-constant global initialisers are outside the documented
			// subset; fall back to zero-init rather than fail the whole
			// translation unit.
			g.w.Data(fmt.Sprintf("%s: .zero %d", sym.Storage.Label, sym.Type.Size()))
			continue
		}
		g.w.Data(fmt.Sprintf("%s: %s %d", sym.Storage.Label, dataDirective(sym.Type), lit.Value))
	}
}

func (g *generator) newLabel() string {
	g.labelN++
	return fmt.Sprintf(".L%d", g.labelN)
}

func (g *generator) emit(format string, args ...any) {
	g.w.Text(fmt.Sprintf(format, args...))
}

func (g *generator) genFuncDef(fn *ast.FuncDef) error {
	sym := g.symbols.Get(fn.Symbol)
	g.w.Global(sym.Storage.Label)
	g.fnName = fn.Name

	g.w.Text(sym.Storage.Label + ":")
	g.emit("  push rbp")
	g.emit("  mov  rbp, rsp")
	if fn.FrameSize > 0 {
		g.emit("  sub  rsp, %d", fn.FrameSize)
	}

	if err := g.spillParams(fn); err != nil {
		return err
	}

	if err := g.genStmtList(fn.Body.Stmts); err != nil {
		return err
	}

	g.emit(".Lreturn_%s:", fn.Name)
	g.emit("  mov rsp, rbp")
	g.emit("  pop rbp")
	g.emit("  ret")
	return nil
}

// spillParams copies each incoming argument (register or stack) into the
// local frame slot sema assigned it, so every later reference to a
// parameter reads an ordinary local (spec.md 4.5, "Parameter passing").
func (g *generator) spillParams(fn *ast.FuncDef) error {
	for i, p := range fn.Params {
		if p.Name == "" {
			continue
		}
		sym := g.symbols.Get(p.Symbol)
		offset := sym.Storage.FrameOffset

		if i < 4 {
			g.emit("  mov  [rbp%+d], %s", offset, g.sizedArgReg(i, p.Type))
			continue
		}

		// Stack argument: incoming slots begin at rbp+48 (8 bytes return
		// address + 32 bytes caller shadow space + push rbp), one 8-byte
		// slot per argument beyond the fourth.
		srcOffset := 48 + 8*(i-4)
		g.emit("  mov  rax, [rbp+%d]", srcOffset)
		g.emit("  mov  [rbp%+d], %s", offset, narrowReg("rax", p.Type))
	}
	return nil
}

func (g *generator) sizedArgReg(index int, t *types.Type) string {
	switch t.Size() {
	case 1:
		return argRegs8[index]
	case 4:
		return argRegs32[index]
	default:
		return argRegs64[index]
	}
}

// narrowReg returns the name of rax's sub-register matching t's width:
// al/eax/rax for char/int/long-or-pointer. Every emitStore site writes
// through rax, so that is the only register this needs to narrow.
func narrowReg(reg string, t *types.Type) string {
	switch t.Size() {
	case 1:
		return "al"
	case 4:
		return "eax"
	default:
		return reg
	}
}
