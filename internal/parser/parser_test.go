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

package parser

import (
	"testing"

	"github.com/ajroetker/cc64/internal/ast"
	"github.com/ajroetker/cc64/internal/lexer"
)

func mustParse(t *testing.T, src string) *ast.TranslationUnit {
	t.Helper()
	toks, err := lexer.Tokenize(1, []byte(src))
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	tu, err := Parse(toks)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return tu
}

func TestParse_EmptyMain(t *testing.T) {
	tu := mustParse(t, "int main(){return 0;}")
	if len(tu.Decls) != 1 {
		t.Fatalf("got %d decls, want 1", len(tu.Decls))
	}
	fn, ok := tu.Decls[0].(*ast.FuncDef)
	if !ok {
		t.Fatalf("decl is %T, want *ast.FuncDef", tu.Decls[0])
	}
	if fn.Name != "main" {
		t.Errorf("Name = %q, want main", fn.Name)
	}
	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("got %d body stmts, want 1", len(fn.Body.Stmts))
	}
	if _, ok := fn.Body.Stmts[0].(*ast.Return); !ok {
		t.Errorf("stmt is %T, want *ast.Return", fn.Body.Stmts[0])
	}
}

func TestParse_Declarations(t *testing.T) {
	tu := mustParse(t, "int main(){int x=1,y;char*p;int a[10];return x;}")
	fn := tu.Decls[0].(*ast.FuncDef)
	if len(fn.Body.Stmts) != 4 {
		t.Fatalf("got %d stmts, want 4", len(fn.Body.Stmts))
	}
	decl := fn.Body.Stmts[0].(*ast.DeclStmt)
	if len(decl.Decls) != 2 {
		t.Fatalf("got %d declarators, want 2", len(decl.Decls))
	}
	if decl.Decls[0].Init == nil {
		t.Error("x should have an initialiser")
	}
	if decl.Decls[1].Init != nil {
		t.Error("y should not have an initialiser")
	}
}

func TestParse_IfWhileFor(t *testing.T) {
	tu := mustParse(t, `int main(){
		if (1) { return 1; } else { return 2; }
		while (1) { return 0; }
		for (int i=0; i<10; i=i+1) { return i; }
		return 0;
	}`)
	fn := tu.Decls[0].(*ast.FuncDef)
	if _, ok := fn.Body.Stmts[0].(*ast.If); !ok {
		t.Errorf("stmt 0 is %T, want *ast.If", fn.Body.Stmts[0])
	}
	if _, ok := fn.Body.Stmts[1].(*ast.While); !ok {
		t.Errorf("stmt 1 is %T, want *ast.While", fn.Body.Stmts[1])
	}
	if _, ok := fn.Body.Stmts[2].(*ast.For); !ok {
		t.Errorf("stmt 2 is %T, want *ast.For", fn.Body.Stmts[2])
	}
}

func TestParse_VariadicFunctionDeclaration(t *testing.T) {
	tu := mustParse(t, "int printf(char*fmt,...);")
	decl := tu.Decls[0].(*ast.GlobalDecl)
	if !decl.Extern {
		t.Error("forward declaration should be marked Extern")
	}
}

func TestParse_CallWithArgs(t *testing.T) {
	tu := mustParse(t, `int printf(char*,...); int main(){printf("hi %d", 1+2); return 0;}`)
	fn := tu.Decls[1].(*ast.FuncDef)
	exprStmt := fn.Body.Stmts[0].(*ast.ExprStmt)
	call := exprStmt.X.(*ast.Call)
	if len(call.Args) != 2 {
		t.Fatalf("got %d args, want 2", len(call.Args))
	}
	if _, ok := call.Args[1].(*ast.Binary); !ok {
		t.Errorf("arg 1 is %T, want *ast.Binary", call.Args[1])
	}
}

func TestParse_PrecedenceAndAssociativity(t *testing.T) {
	tu := mustParse(t, "int main(){return 1+2*3;}")
	fn := tu.Decls[0].(*ast.FuncDef)
	ret := fn.Body.Stmts[0].(*ast.Return)
	bin := ret.Value.(*ast.Binary)
	if bin.Op != ast.Add {
		t.Fatalf("top operator = %v, want Add", bin.Op)
	}
	rhs, ok := bin.Right.(*ast.Binary)
	if !ok || rhs.Op != ast.Mul {
		t.Errorf("right operand should be the Mul subtree, got %#v", bin.Right)
	}
}

func TestParse_PointerAndAddrOf(t *testing.T) {
	tu := mustParse(t, "int main(){int x;int*p;p=&x;*p=1;return *p;}")
	fn := tu.Decls[0].(*ast.FuncDef)
	assignStmt := fn.Body.Stmts[2].(*ast.ExprStmt)
	assign := assignStmt.X.(*ast.Assignment)
	if _, ok := assign.Value.(*ast.Unary); !ok {
		t.Errorf("rhs is %T, want *ast.Unary (address-of)", assign.Value)
	}
}

func TestParse_SizeofType(t *testing.T) {
	tu := mustParse(t, "int main(){return sizeof(int);}")
	fn := tu.Decls[0].(*ast.FuncDef)
	ret := fn.Body.Stmts[0].(*ast.Return)
	u := ret.Value.(*ast.Unary)
	if u.Op != ast.SizeofExpr || u.SizeofType == nil {
		t.Errorf("expected sizeof(type), got %#v", u)
	}
}

func TestParse_Ternary(t *testing.T) {
	tu := mustParse(t, "int main(){return 1?2:3;}")
	fn := tu.Decls[0].(*ast.FuncDef)
	ret := fn.Body.Stmts[0].(*ast.Return)
	if _, ok := ret.Value.(*ast.Ternary); !ok {
		t.Errorf("got %T, want *ast.Ternary", ret.Value)
	}
}

func TestParse_UnexpectedTokenFailsFast(t *testing.T) {
	toks, err := lexer.Tokenize(1, []byte("int main() { return }"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(toks); err == nil {
		t.Fatal("expected parse error for missing return value before '}'")
	}
}
