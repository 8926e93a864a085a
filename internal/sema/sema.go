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

// Package sema walks the AST once, resolving identifiers, typing every
// expression, and laying out local storage. After Analyze succeeds, every
// expression node in the tree has a non-null type and every identifier is
// bound to a symbol (invariant i of the data model).
package sema

import (
	"github.com/ajroetker/cc64/internal/ast"
	"github.com/ajroetker/cc64/internal/diag"
	"github.com/ajroetker/cc64/internal/types"
)

// StringLiteralInfo is one deduplicated string literal: label plus bytes,
// in first-use order, for the assembly writer's .data section.
type StringLiteralInfo struct {
	Label string
	Bytes []byte
}

// Result is the annotated-AST output of semantic analysis.
type Result struct {
	TU      *ast.TranslationUnit
	Symbols *types.SymbolTable
	Strings []StringLiteralInfo
}

// analyzer carries the mutable state threaded through one Analyze call. It
// must not be reused across translation units.
type analyzer struct {
	symbols *types.SymbolTable

	stringLabel map[string]string // byte content -> .LC label, for dedup
	strings     []StringLiteralInfo

	fn         *ast.FuncDef // enclosing function, nil at global scope
	frameUsed  int64        // bytes of the local frame allocated so far
	sawCall    bool         // set when the current function body contains a call
}

// Analyze runs semantic analysis over tu and returns the annotated result,
// or the first diagnostic encountered.
func Analyze(tu *ast.TranslationUnit) (*Result, error) {
	a := &analyzer{
		symbols:     types.NewSymbolTable(),
		stringLabel: make(map[string]string),
	}
	for _, decl := range tu.Decls {
		if err := a.analyzeExternalDecl(decl); err != nil {
			return nil, err
		}
	}
	return &Result{TU: tu, Symbols: a.symbols, Strings: a.strings}, nil
}

func (a *analyzer) errorf(pos diag.Position, format string, args ...any) error {
	return diag.New(diag.CategoryType, pos, format, args...)
}

func (a *analyzer) analyzeExternalDecl(decl ast.Stmt) error {
	switch d := decl.(type) {
	case *ast.FuncDef:
		return a.analyzeFuncDef(d)
	case *ast.GlobalDecl:
		return a.analyzeGlobalDecl(d)
	default:
		return a.errorf(decl.Pos(), "unsupported top-level declaration")
	}
}

func (a *analyzer) declareGlobal(pos diag.Position, name string, typ *types.Type) (types.SymbolID, error) {
	if existing, ok := a.symbols.LookupLocal(name); ok {
		sym := a.symbols.Get(existing)
		if !sym.Type.Equal(typ) {
			return 0, a.errorf(pos, "redeclaration of %q with incompatible type: %s vs %s", name, typ, sym.Type)
		}
		return existing, nil
	}
	storage := types.Storage{Kind: types.Global, Label: "_" + name}
	if typ.Kind == types.Function {
		storage.Kind = types.FunctionStorage
	}
	return a.symbols.Declare(name, typ, storage), nil
}

func (a *analyzer) analyzeGlobalDecl(d *ast.GlobalDecl) error {
	for _, decl := range d.Decls {
		id, err := a.declareGlobal(d.Pos(), decl.Name, decl.Type)
		if err != nil {
			return err
		}
		decl.Symbol = id
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

func (a *analyzer) analyzeFuncDef(fn *ast.FuncDef) error {
	paramTypes := make([]*types.Type, len(fn.Params))
	for i, p := range fn.Params {
		paramTypes[i] = p.Type
	}
	fnType := types.NewFunction(fn.Return, paramTypes, fn.Variadic)
	id, err := a.declareGlobal(fn.Pos(), fn.Name, fnType)
	if err != nil {
		return err
	}
	fn.Symbol = id

	prevFn, prevUsed, prevSaw := a.fn, a.frameUsed, a.sawCall
	a.fn, a.frameUsed, a.sawCall = fn, 0, false
	defer func() { a.fn, a.frameUsed, a.sawCall = prevFn, prevUsed, prevSaw }()

	a.symbols.PushScope()
	defer a.symbols.PopScope()

	for _, p := range fn.Params {
		if p.Name == "" {
			continue
		}
		offset := a.allocLocal(p.Type)
		p.Symbol = a.symbols.Declare(p.Name, p.Type, types.Storage{Kind: types.Parameter, FrameOffset: offset})
	}

	if err := a.analyzeBlockStmts(fn.Body); err != nil {
		return err
	}

	fn.FrameSize = alignUp(a.frameUsed, 16)
	fn.IsLeaf = !a.sawCall
	return nil
}

// allocLocal reserves frame space for typ and returns its (negative) frame
// offset from rbp, maintaining distinct, correctly aligned slots per
// invariant (ii): each slot starts at a multiple of typ's alignment and is
// large enough to hold typ.
func (a *analyzer) allocLocal(typ *types.Type) int64 {
	size := typ.Size()
	align := typ.Align()
	if align < 1 {
		align = 1
	}
	a.frameUsed = alignUp(a.frameUsed+size, align)
	return -a.frameUsed
}

func alignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
