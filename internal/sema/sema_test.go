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
	"testing"

	"github.com/ajroetker/cc64/internal/ast"
	"github.com/ajroetker/cc64/internal/lexer"
	"github.com/ajroetker/cc64/internal/parser"
)

func mustAnalyze(t *testing.T, src string) *Result {
	t.Helper()
	toks, err := lexer.Tokenize(1, []byte(src))
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	tu, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	res, err := Analyze(tu)
	if err != nil {
		t.Fatalf("Analyze(%q): %v", src, err)
	}
	return res
}

func wantAnalyzeError(t *testing.T, src string) error {
	t.Helper()
	toks, err := lexer.Tokenize(1, []byte(src))
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	tu, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Analyze(tu)
	if err == nil {
		t.Fatalf("Analyze(%q): expected an error, got nil", src)
	}
	return err
}

func TestAnalyze_EveryExprTyped(t *testing.T) {
	res := mustAnalyze(t, "int main(){int x=1; return x+2*3;}")
	fn := res.TU.Decls[0].(*ast.FuncDef)
	decl := fn.Body.Stmts[0].(*ast.DeclStmt)
	if decl.Decls[0].Init.Type() == nil {
		t.Error("declarator initialiser has no type after analysis")
	}
	ret := fn.Body.Stmts[1].(*ast.Return)
	if ret.Value.Type() == nil {
		t.Error("return value has no type after analysis")
	}
}

func TestAnalyze_FrameLayout(t *testing.T) {
	res := mustAnalyze(t, "int main(){char c; int i; long l; return 0;}")
	fn := res.TU.Decls[0].(*ast.FuncDef)
	if fn.FrameSize%16 != 0 {
		t.Errorf("FrameSize = %d, not 16-byte aligned", fn.FrameSize)
	}
	if fn.FrameSize == 0 {
		t.Error("FrameSize should be nonzero with three locals declared")
	}

	offsets := map[string]int64{}
	for _, s := range fn.Body.Stmts {
		d, ok := s.(*ast.DeclStmt)
		if !ok {
			continue
		}
		for _, decl := range d.Decls {
			sym := res.Symbols.Get(decl.Symbol)
			offsets[decl.Name] = sym.Storage.FrameOffset
			if offsets[decl.Name] >= 0 {
				t.Errorf("local %q has non-negative frame offset %d", decl.Name, offsets[decl.Name])
			}
		}
	}
	if len(offsets) != 3 {
		t.Fatalf("got %d local offsets, want 3", len(offsets))
	}
	if offsets["c"] == offsets["i"] || offsets["i"] == offsets["l"] {
		t.Error("locals must have distinct frame slots")
	}
}

func TestAnalyze_IsLeaf(t *testing.T) {
	res := mustAnalyze(t, "int f(){return 1;} int main(){return f();}")
	leaf := res.TU.Decls[0].(*ast.FuncDef)
	if !leaf.IsLeaf {
		t.Error("f should be a leaf function")
	}
	caller := res.TU.Decls[1].(*ast.FuncDef)
	if caller.IsLeaf {
		t.Error("main calls f and should not be a leaf")
	}
}

func TestAnalyze_StringLiteralDedup(t *testing.T) {
	res := mustAnalyze(t, `
		int puts(char*);
		int main(){
			puts("hi");
			puts("hi");
			puts("bye");
			return 0;
		}
	`)
	if len(res.Strings) != 2 {
		t.Fatalf("got %d deduplicated strings, want 2", len(res.Strings))
	}
	if res.Strings[0].Label == res.Strings[1].Label {
		t.Error("distinct string literals must get distinct labels")
	}
}

func TestAnalyze_PointerArithmeticScaling(t *testing.T) {
	res := mustAnalyze(t, "int main(){int a[4]; int*p; p=a; p=p+1; return *p;}")
	fn := res.TU.Decls[0].(*ast.FuncDef)
	assignStmt := fn.Body.Stmts[3].(*ast.ExprStmt)
	assign := assignStmt.X.(*ast.Assignment)
	if got := assign.Value.Type().String(); got != "int*" {
		t.Errorf("p+1 has type %s, want int*", got)
	}
}

func TestAnalyze_PointerDifferenceIsLong(t *testing.T) {
	res := mustAnalyze(t, "int main(){int a[4]; int*p; int*q; p=a; q=a+2; return q-p;}")
	fn := res.TU.Decls[0].(*ast.FuncDef)
	ret := fn.Body.Stmts[len(fn.Body.Stmts)-1].(*ast.Return)
	if got := ret.Value.Type().String(); got != "long" {
		t.Errorf("pointer difference has type %s, want long", got)
	}
}

func TestAnalyze_DivisionByLiteralZeroIsRejected(t *testing.T) {
	wantAnalyzeError(t, "int main(){return 1/0;}")
}

func TestAnalyze_UndefinedIdentifierIsRejected(t *testing.T) {
	wantAnalyzeError(t, "int main(){return x;}")
}

func TestAnalyze_AssignmentToNonLvalueIsRejected(t *testing.T) {
	wantAnalyzeError(t, "int main(){1 = 2; return 0;}")
}

func TestAnalyze_CallArityMismatchIsRejected(t *testing.T) {
	wantAnalyzeError(t, "int f(int a,int b){return a+b;} int main(){return f(1);}")
}

func TestAnalyze_VariadicCallAcceptsExtraArgs(t *testing.T) {
	mustAnalyze(t, `int printf(char*fmt,...); int main(){printf("%d %d",1,2); return 0;}`)
}

func TestAnalyze_ReturnTypeMismatchIsRejected(t *testing.T) {
	wantAnalyzeError(t, "void f(){return 1;}")
}

func TestAnalyze_RedeclarationInSameScopeIsRejected(t *testing.T) {
	wantAnalyzeError(t, "int main(){int x; int x; return 0;}")
}

func TestAnalyze_ShadowingInNestedBlockIsAllowed(t *testing.T) {
	mustAnalyze(t, "int main(){int x=1; { int x=2; } return x;}")
}
