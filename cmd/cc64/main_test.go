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

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ajroetker/cc64/internal/diag"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.c")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestCompile_EmptyMain(t *testing.T) {
	out, _, err := compile(writeSource(t, "int main(){return 0;}"), nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if exitCode(err) != 0 {
		t.Errorf("exitCode = %d, want 0", exitCode(err))
	}
	if !strings.Contains(out, "_main:") {
		t.Errorf(".s does not define _main:\n%s", out)
	}
}

func TestCompile_IterativeFactorial(t *testing.T) {
	src := `int main(){
		int n; int result;
		n = 5; result = 1;
		while (n > 0) { result = result * n; n = n - 1; }
		return result;
	}`
	out, _, err := compile(writeSource(t, src), nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, "imul") {
		t.Errorf("expected a multiplication in the iterative factorial:\n%s", out)
	}
}

func TestCompile_RecursiveFactorial(t *testing.T) {
	src := `int fact(int n){
		if (n <= 1) { return 1; }
		return n * fact(n - 1);
	}
	int main(){ return fact(5); }`
	out, _, err := compile(writeSource(t, src), nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, "call _fact") {
		t.Errorf("expected a recursive call to _fact:\n%s", out)
	}
}

func TestCompile_ArgvAtoi(t *testing.T) {
	src := `int atoi(char*s);int main(int argc, char**argv){return atoi(argv[1]);}`
	out, _, err := compile(writeSource(t, src), nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, ".extern _atoi") {
		t.Errorf("expected atoi declared extern:\n%s", out)
	}
	if !strings.Contains(out, "call _atoi") {
		t.Errorf("expected a call to _atoi:\n%s", out)
	}
}

func TestCompile_VariadicPrintf(t *testing.T) {
	src := `int printf(char*,...); int main(){printf("Hello, %s! The answer is %d.\n","World",42);return 0;}`
	out, _, err := compile(writeSource(t, src), nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, ".LC0: .byte") {
		t.Errorf("expected the format string under .LC0:\n%s", out)
	}
	if !strings.Contains(out, ".LC1: .byte") {
		t.Errorf("expected the %%s argument string under .LC1:\n%s", out)
	}
	if !strings.Contains(out, "call _printf") {
		t.Errorf("expected a call to _printf:\n%s", out)
	}
}

func TestCompile_PointerAliasing(t *testing.T) {
	src := "int main(){int x=42;int y=100;int*p=&x;int*q=&y;p=q;*p=200;return *p+*q;}"
	out, _, err := compile(writeSource(t, src), nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, "_main:") {
		t.Errorf(".s does not define _main:\n%s", out)
	}
}

func TestCompile_UnreadableSourceIsUserDiagnostic(t *testing.T) {
	source := filepath.Join(t.TempDir(), "missing.c")
	_, files, err := compile(source, nil)
	if err == nil {
		t.Fatal("expected an error for a missing source file")
	}
	if exitCode(err) != 1 {
		t.Errorf("exitCode = %d, want 1 for a user diagnostic", exitCode(err))
	}
	if got := formatErr(err, files); !strings.Contains(got, "io error") {
		t.Errorf("formatErr = %q, want it to name the io error category", got)
	}
}

func TestCompile_SyntaxErrorIsUserDiagnostic(t *testing.T) {
	source := writeSource(t, "int main( { return 0; }")
	_, files, err := compile(source, nil)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if exitCode(err) != 1 {
		t.Errorf("exitCode = %d, want 1 for a parse error", exitCode(err))
	}
	got := formatErr(err, files)
	want := fmt.Sprintf("%s:1:", source)
	if !strings.HasPrefix(got, want) {
		t.Errorf("formatErr = %q, want it to start with %q (file:line:col)", got, want)
	}
	if !strings.Contains(got, "parse error") {
		t.Errorf("formatErr = %q, want it to name the parse error category", got)
	}
}

func TestFormatErr_PlainErrorPrintsMessageOnly(t *testing.T) {
	err := errors.New("boom")
	if got := formatErr(err, diag.NewFileTable()); got != "boom" {
		t.Errorf("formatErr = %q, want %q", got, "boom")
	}
}

func TestOutputName_DefaultsToSourceBase(t *testing.T) {
	if got := outputName("/tmp/foo.c", []string{"/tmp/foo.c"}); got != "foo" {
		t.Errorf("outputName = %q, want %q", got, "foo")
	}
}

func TestOutputName_ExplicitOverridesDefault(t *testing.T) {
	if got := outputName("/tmp/foo.c", []string{"/tmp/foo.c", "bar"}); got != "bar" {
		t.Errorf("outputName = %q, want %q", got, "bar")
	}
}

func TestCompile_IncludesBundledStdio(t *testing.T) {
	src := `#include <stdio.h>
	int main(){printf("hi\n");return 0;}`
	out, _, err := compile(writeSource(t, src), []string{filepath.Join("..", "..", "include")})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, "call _printf") {
		t.Errorf("expected a call to _printf after including stdio.h:\n%s", out)
	}
}
