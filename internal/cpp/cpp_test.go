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

package cpp

import (
	"fmt"
	"testing"

	"github.com/ajroetker/cc64/internal/diag"
	"github.com/ajroetker/cc64/internal/token"
)

type fakeReader map[string][]byte

func (f fakeReader) ReadFile(path string) ([]byte, error) {
	data, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return data, nil
}

func lexemes(toks []token.Token) []string {
	var out []string
	for _, t := range toks {
		if t.Kind == token.EOF {
			continue
		}
		out = append(out, t.Lexeme)
	}
	return out
}

func assertLexemes(t *testing.T, got []token.Token, want []string) {
	t.Helper()
	gotLex := lexemes(got)
	if len(gotLex) != len(want) {
		t.Fatalf("got %v, want %v", gotLex, want)
	}
	for i := range want {
		if gotLex[i] != want[i] {
			t.Errorf("token %d: got %q, want %q", i, gotLex[i], want[i])
		}
	}
}

func TestExpand_ObjectMacro(t *testing.T) {
	files := diag.NewFileTable()
	p := New(files, fakeReader{}, nil)
	file := files.Intern("main.c")
	toks, err := p.Expand(file, "main.c", []byte("#define N 10\nint x = N;"))
	if err != nil {
		t.Fatal(err)
	}
	assertLexemes(t, toks, []string{"int", "x", "=", "10", ";"})
}

func TestExpand_Undef(t *testing.T) {
	files := diag.NewFileTable()
	p := New(files, fakeReader{}, nil)
	file := files.Intern("main.c")
	toks, err := p.Expand(file, "main.c", []byte("#define N 10\n#undef N\nint x = N;"))
	if err != nil {
		t.Fatal(err)
	}
	// N is no longer a macro, so it passes through as a plain identifier.
	assertLexemes(t, toks, []string{"int", "x", "=", "N", ";"})
}

func TestExpand_RecursiveMacroBlocked(t *testing.T) {
	files := diag.NewFileTable()
	p := New(files, fakeReader{}, nil)
	file := files.Intern("main.c")
	toks, err := p.Expand(file, "main.c", []byte("#define A A\nA;"))
	if err != nil {
		t.Fatal(err)
	}
	assertLexemes(t, toks, []string{"A", ";"})
}

func TestExpand_NestedMacro(t *testing.T) {
	files := diag.NewFileTable()
	p := New(files, fakeReader{}, nil)
	file := files.Intern("main.c")
	toks, err := p.Expand(file, "main.c", []byte("#define A B\n#define B 1\nA;"))
	if err != nil {
		t.Fatal(err)
	}
	assertLexemes(t, toks, []string{"1", ";"})
}

func TestExpand_QuotedInclude(t *testing.T) {
	files := diag.NewFileTable()
	reader := fakeReader{
		"/src/util.h": []byte("int helper();"),
	}
	p := New(files, reader, nil)
	file := files.Intern("/src/main.c")
	toks, err := p.Expand(file, "/src/main.c", []byte(`#include "util.h"` + "\nint main();"))
	if err != nil {
		t.Fatal(err)
	}
	assertLexemes(t, toks, []string{"int", "helper", "(", ")", ";", "int", "main", "(", ")", ";"})
}

func TestExpand_AngleIncludeSearchesBuiltinDir(t *testing.T) {
	files := diag.NewFileTable()
	reader := fakeReader{
		"/usr/include/stdio.h": []byte("int printf();"),
	}
	p := New(files, reader, []string{"/usr/include"})
	file := files.Intern("/src/main.c")
	toks, err := p.Expand(file, "/src/main.c", []byte("#include <stdio.h>\n"))
	if err != nil {
		t.Fatal(err)
	}
	assertLexemes(t, toks, []string{"int", "printf", "(", ")", ";"})
}

func TestExpand_MissingIncludeErrors(t *testing.T) {
	files := diag.NewFileTable()
	p := New(files, fakeReader{}, nil)
	file := files.Intern("main.c")
	_, err := p.Expand(file, "main.c", []byte(`#include "missing.h"` + "\n"))
	if err == nil {
		t.Fatal("expected error for missing include")
	}
}

func TestExpand_UnknownDirectiveSkipped(t *testing.T) {
	files := diag.NewFileTable()
	p := New(files, fakeReader{}, nil)
	file := files.Intern("main.c")
	toks, err := p.Expand(file, "main.c", []byte("#pragma once\nint x;"))
	if err != nil {
		t.Fatal(err)
	}
	assertLexemes(t, toks, []string{"int", "x", ";"})
}

func TestExpand_MacroNotExpandedInsideString(t *testing.T) {
	files := diag.NewFileTable()
	p := New(files, fakeReader{}, nil)
	file := files.Intern("main.c")
	toks, err := p.Expand(file, "main.c", []byte("#define N 10\nchar*s=\"N\";"))
	if err != nil {
		t.Fatal(err)
	}
	if toks[4].Kind != token.STRING_LIT || string(toks[4].Bytes) != "N\x00" {
		t.Errorf("string literal contents were altered: %+v", toks[4])
	}
}
