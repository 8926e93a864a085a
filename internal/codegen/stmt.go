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
	"github.com/ajroetker/cc64/internal/ast"
	"github.com/ajroetker/cc64/internal/diag"
	"github.com/ajroetker/cc64/internal/types"
)

func (g *generator) genStmtList(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := g.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) genStmt(s ast.Stmt) error {
	switch x := s.(type) {
	case *ast.ExprStmt:
		return g.genExpr(x.X)

	case *ast.Block:
		return g.genStmtList(x.Stmts)

	case *ast.DeclStmt:
		return g.genDeclStmt(x)

	case *ast.If:
		return g.genIf(x)

	case *ast.While:
		return g.genWhile(x)

	case *ast.For:
		return g.genFor(x)

	case *ast.Return:
		return g.genReturn(x)

	default:
		return diag.New(diag.CategoryInternal, s.Pos(), "codegen: unhandled statement node %T", s)
	}
}

func (g *generator) genDeclStmt(d *ast.DeclStmt) error {
	for _, decl := range d.Decls {
		if decl.Init == nil {
			continue
		}
		sym := g.symbols.Get(decl.Symbol)
		if err := g.genExpr(decl.Init); err != nil {
			return err
		}
		g.emitStoreFrame(sym.Storage.FrameOffset, decl.Type)
	}
	return nil
}

// emitStoreFrame stores rax into the local frame slot at offset, sized
// for t. A declarator's target is always a known frame offset rather than
// an address held in a register, unlike emitStore's assignment case.
func (g *generator) emitStoreFrame(offset int64, t *types.Type) {
	g.emit("  mov  [rbp%+d], %s", offset, narrowReg("rax", t))
}

func (g *generator) genIf(x *ast.If) error {
	if err := g.genExpr(x.Cond); err != nil {
		return err
	}
	g.emit("  cmp  rax, 0")

	if x.Else == nil {
		end := g.newLabel()
		g.emit("  je   %s", end)
		if err := g.genStmt(x.Then); err != nil {
			return err
		}
		g.emit("%s:", end)
		return nil
	}

	elseLabel := g.newLabel()
	end := g.newLabel()
	g.emit("  je   %s", elseLabel)
	if err := g.genStmt(x.Then); err != nil {
		return err
	}
	g.emit("  jmp  %s", end)
	g.emit("%s:", elseLabel)
	if err := g.genStmt(x.Else); err != nil {
		return err
	}
	g.emit("%s:", end)
	return nil
}

func (g *generator) genWhile(x *ast.While) error {
	top := g.newLabel()
	end := g.newLabel()
	g.emit("%s:", top)
	if err := g.genExpr(x.Cond); err != nil {
		return err
	}
	g.emit("  cmp  rax, 0")
	g.emit("  je   %s", end)
	if err := g.genStmt(x.Body); err != nil {
		return err
	}
	g.emit("  jmp  %s", top)
	g.emit("%s:", end)
	return nil
}

func (g *generator) genFor(x *ast.For) error {
	if x.Init != nil {
		if err := g.genStmt(x.Init); err != nil {
			return err
		}
	}
	top := g.newLabel()
	end := g.newLabel()
	g.emit("%s:", top)
	if x.Cond != nil {
		if err := g.genExpr(x.Cond); err != nil {
			return err
		}
		g.emit("  cmp  rax, 0")
		g.emit("  je   %s", end)
	}
	if err := g.genStmt(x.Body); err != nil {
		return err
	}
	if x.Step != nil {
		if err := g.genExpr(x.Step); err != nil {
			return err
		}
	}
	g.emit("  jmp  %s", top)
	g.emit("%s:", end)
	return nil
}

func (g *generator) genReturn(x *ast.Return) error {
	if x.Value != nil {
		if err := g.genExpr(x.Value); err != nil {
			return err
		}
	}
	g.emit("  jmp  .Lreturn_%s", g.fnName)
	return nil
}
