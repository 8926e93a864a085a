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
	"sort"
	"strings"

	"github.com/ajroetker/cc64/internal/ast"
	"github.com/ajroetker/cc64/internal/types"
)

// analyzeBlockStmts types every statement in block.Stmts in its own new
// scope, laying out any locals it declares into the enclosing function's
// frame.
func (a *analyzer) analyzeBlockStmts(block *ast.Block) error {
	a.symbols.PushScope()
	defer a.symbols.PopScope()
	return a.analyzeStmtList(block.Stmts)
}

func (a *analyzer) analyzeStmtList(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := a.analyzeStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) analyzeStmt(s ast.Stmt) error {
	switch x := s.(type) {
	case *ast.ExprStmt:
		return a.checkExpr(x.X)

	case *ast.Block:
		return a.analyzeBlockStmts(x)

	case *ast.DeclStmt:
		return a.analyzeDeclStmt(x)

	case *ast.If:
		return a.analyzeIf(x)

	case *ast.While:
		return a.analyzeWhile(x)

	case *ast.For:
		return a.analyzeFor(x)

	case *ast.Return:
		return a.analyzeReturn(x)

	default:
		return a.errorf(s.Pos(), "internal error: unhandled statement node %T", s)
	}
}

// analyzeDeclStmt allocates frame space for each declared local in the
// enclosing function and types its initialiser, if any. A local declared
// with the same name as one already bound in the current block is a
// redeclaration error; shadowing an outer block's local is permitted.
func (a *analyzer) analyzeDeclStmt(d *ast.DeclStmt) error {
	for _, decl := range d.Decls {
		if _, ok := a.symbols.LookupLocal(decl.Name); ok {
			names := a.symbols.InnermostNames()
			sort.Strings(names)
			return a.errorf(d.Pos(), "redeclaration of %q in the same scope (already declared: %s)", decl.Name, strings.Join(names, ", "))
		}
		offset := a.allocLocal(decl.Type)
		decl.Symbol = a.symbols.Declare(decl.Name, decl.Type, types.Storage{Kind: types.Local, FrameOffset: offset})

		if decl.Init != nil {
			if err := a.checkExpr(decl.Init); err != nil {
				return err
			}
			if !assignable(decl.Type, valueType(decl.Init)) {
				return a.errorf(decl.Init.Pos(), "cannot initialise %s with %s", decl.Type, valueType(decl.Init))
			}
		}
	}
	return nil
}

func (a *analyzer) analyzeIf(x *ast.If) error {
	if err := a.checkExpr(x.Cond); err != nil {
		return err
	}
	if !valueType(x.Cond).IsScalar() {
		return a.errorf(x.Cond.Pos(), "if condition must be scalar, got %s", valueType(x.Cond))
	}
	if err := a.analyzeStmt(x.Then); err != nil {
		return err
	}
	if x.Else != nil {
		return a.analyzeStmt(x.Else)
	}
	return nil
}

func (a *analyzer) analyzeWhile(x *ast.While) error {
	if err := a.checkExpr(x.Cond); err != nil {
		return err
	}
	if !valueType(x.Cond).IsScalar() {
		return a.errorf(x.Cond.Pos(), "while condition must be scalar, got %s", valueType(x.Cond))
	}
	return a.analyzeStmt(x.Body)
}

func (a *analyzer) analyzeFor(x *ast.For) error {
	a.symbols.PushScope()
	defer a.symbols.PopScope()

	if x.Init != nil {
		if err := a.analyzeStmt(x.Init); err != nil {
			return err
		}
	}
	if x.Cond != nil {
		if err := a.checkExpr(x.Cond); err != nil {
			return err
		}
		if !valueType(x.Cond).IsScalar() {
			return a.errorf(x.Cond.Pos(), "for condition must be scalar, got %s", valueType(x.Cond))
		}
	}
	if x.Step != nil {
		if err := a.checkExpr(x.Step); err != nil {
			return err
		}
	}
	return a.analyzeStmt(x.Body)
}

func (a *analyzer) analyzeReturn(x *ast.Return) error {
	want := a.fn.Return
	if x.Value == nil {
		if want.Kind != types.Void {
			return a.errorf(x.Pos(), "function %q must return a value of type %s", a.fn.Name, want)
		}
		return nil
	}
	if err := a.checkExpr(x.Value); err != nil {
		return err
	}
	if want.Kind == types.Void {
		return a.errorf(x.Pos(), "function %q is void and cannot return a value", a.fn.Name)
	}
	if !assignable(want, valueType(x.Value)) {
		return a.errorf(x.Value.Pos(), "cannot return %s from function declared to return %s", valueType(x.Value), want)
	}
	return nil
}
