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
	"strings"
	"testing"

	"github.com/ajroetker/cc64/internal/lexer"
	"github.com/ajroetker/cc64/internal/parser"
	"github.com/ajroetker/cc64/internal/sema"
)

func mustGenerate(t *testing.T, src string) string {
	t.Helper()
	toks, err := lexer.Tokenize(1, []byte(src))
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	tu, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	res, err := sema.Analyze(tu)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	out, err := Generate(res)
	if err != nil {
		t.Fatalf("Generate(%q): %v", src, err)
	}
	return out
}

func TestGenerate_PrologueEpilogueShape(t *testing.T) {
	out := mustGenerate(t, "int main(){return 0;}")
	if !strings.Contains(out, "_main:\n  push rbp\n  mov  rbp, rsp\n") {
		t.Errorf("missing prologue shape:\n%s", out)
	}
	if !strings.Contains(out, ".Lreturn_main:\n  mov rsp, rbp\n  pop rbp\n  ret\n") {
		t.Errorf("missing epilogue shape:\n%s", out)
	}
	if !strings.Contains(out, ".globl _main") {
		t.Errorf("missing .globl _main:\n%s", out)
	}
}

func TestGenerate_LeafFunctionOmitsFrameWhenEmpty(t *testing.T) {
	out := mustGenerate(t, "int main(){return 0;}")
	if strings.Contains(out, "sub  rsp, 0") {
		t.Errorf("should not emit a zero-size frame adjustment:\n%s", out)
	}
}

func TestGenerate_RegisterParamsSpilledToFrame(t *testing.T) {
	out := mustGenerate(t, "int add(int a, int b){return a+b;}")
	if !strings.Contains(out, "mov  [rbp") {
		t.Errorf("expected parameters spilled into frame slots:\n%s", out)
	}
	if !strings.Contains(out, "ecx") || !strings.Contains(out, "edx") {
		t.Errorf("expected the first two int params read from ecx/edx:\n%s", out)
	}
}

func TestGenerate_FifthParamReadFromCallerStack(t *testing.T) {
	out := mustGenerate(t, "int sum5(int a,int b,int c,int d,int e){return a+e;}")
	if !strings.Contains(out, "mov  rax, [rbp+48]") {
		t.Errorf("expected the fifth parameter read from [rbp+48]:\n%s", out)
	}
}

func TestGenerate_PointerArithmeticScaling(t *testing.T) {
	out := mustGenerate(t, "int main(){int*p;p=p+1;return 0;}")
	if !strings.Contains(out, "imul") {
		t.Errorf("expected pointer increment to scale by element size:\n%s", out)
	}
}

func TestGenerate_ShortCircuitAndEmitsConditionalJump(t *testing.T) {
	out := mustGenerate(t, "int main(){int a;int b;a=1&&b;return a;}")
	if !strings.Contains(out, "je   ") && !strings.Contains(out, "jz   ") {
		t.Errorf("expected a conditional jump for short-circuit &&:\n%s", out)
	}
}

func TestGenerate_ShortCircuitOrEmitsConditionalJump(t *testing.T) {
	out := mustGenerate(t, "int main(){int a;int b;a=1||b;return a;}")
	if !strings.Contains(out, "jne  ") && !strings.Contains(out, "jnz  ") {
		t.Errorf("expected a conditional jump for short-circuit ||:\n%s", out)
	}
}

func TestGenerate_CallSiteReservesShadowSpace(t *testing.T) {
	out := mustGenerate(t, "int f(int x);int main(){return f(1);}")
	if !strings.Contains(out, "sub  rsp, 32") && !strings.Contains(out, "sub rsp, 32") {
		t.Errorf("expected a 32-byte shadow-space reservation around the call:\n%s", out)
	}
	if !strings.Contains(out, "call _f") {
		t.Errorf("expected a call to the extern symbol:\n%s", out)
	}
}

func TestGenerate_StringLiteralEmittedToData(t *testing.T) {
	out := mustGenerate(t, `int puts(char*s);int main(){puts("hi");return 0;}`)
	if !strings.Contains(out, ".data") {
		t.Errorf("expected a .data section for the string literal:\n%s", out)
	}
	if !strings.Contains(out, ".LC0: .byte") {
		t.Errorf("expected the string literal under label .LC0:\n%s", out)
	}
}

func TestGenerate_GlobalWithInitialiser(t *testing.T) {
	out := mustGenerate(t, "int counter=5;int main(){return counter;}")
	if !strings.Contains(out, "_counter: .long 5") {
		t.Errorf("expected the global emitted with its initialiser:\n%s", out)
	}
	if !strings.Contains(out, ".globl _counter") {
		t.Errorf("expected the global exported via .globl:\n%s", out)
	}
}

func TestGenerate_UninitialisedGlobalIsZeroed(t *testing.T) {
	out := mustGenerate(t, "int counter;int main(){return counter;}")
	if !strings.Contains(out, "_counter: .zero 4") {
		t.Errorf("expected the global reserved via .zero:\n%s", out)
	}
}

func TestGenerate_ExternDeclaredFunctionIsExtern(t *testing.T) {
	out := mustGenerate(t, "int printf(char*fmt);int main(){return 0;}")
	if !strings.Contains(out, ".extern _printf") {
		t.Errorf("expected a declared-but-undefined function to be an extern:\n%s", out)
	}
}

func TestGenerate_LabelsAreUniqueAndMonotonic(t *testing.T) {
	out := mustGenerate(t, `int main(){
		if (1) { return 1; } else { return 2; }
		if (0) { return 3; } else { return 4; }
		return 0;
	}`)
	if strings.Count(out, ".L1:") != 1 || strings.Count(out, ".L2:") != 1 {
		t.Errorf("expected each generated label to appear exactly once:\n%s", out)
	}
}

func TestGenerate_CallArgumentsEvaluatedBeforeRegisterPlacement(t *testing.T) {
	// g(f(), 2): f() must be fully evaluated (and its call executed) before
	// rcx/rdx are populated, since f() itself clobbers rax/rcx/rdx.
	out := mustGenerate(t, "int f();int g(int a,int b);int main(){return g(f(),2);}")
	callF := strings.Index(out, "call _f")
	popRcx := strings.LastIndex(out, "pop rcx")
	if callF == -1 || popRcx == -1 || callF > popRcx {
		t.Errorf("expected call _f to precede the final pop into rcx:\n%s", out)
	}
}
