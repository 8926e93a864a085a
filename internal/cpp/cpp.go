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

// Package cpp is a single-pass textual expander over the token stream: it
// resolves #include against a two-tier search path and expands object-like
// #define macros.
package cpp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/ajroetker/cc64/internal/diag"
	"github.com/ajroetker/cc64/internal/lexer"
	"github.com/ajroetker/cc64/internal/token"
)

// MaxIncludeDepth bounds #include recursion so a file that (directly or
// transitively) includes itself fails with a diagnostic instead of
// recursing until the host stack overflows.
const MaxIncludeDepth = 64

// Reader abstracts reading a source file from disk, so the preprocessor can
// be driven against an in-memory fixture in tests without touching the
// filesystem.
type Reader interface {
	ReadFile(path string) ([]byte, error)
}

// OSReader reads files via the OS filesystem.
type OSReader struct{}

// ReadFile implements Reader.
func (OSReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Preprocessor expands #include and object-like #define directives. Macro
// definitions and the file table are shared across every file pulled in
// transitively by #include, but a Preprocessor value itself must not be
// reused between independent compilations (construct a fresh one per run,
// per spec.md's "must not leak between runs in a library setting").
type Preprocessor struct {
	files        *diag.FileTable
	reader       Reader
	includeDirs  []string // searched after the including file's own directory
	macros       map[string][]token.Token
}

// New returns a Preprocessor that resolves #include first against the
// directory of the file being processed, then against builtinIncludeDirs in
// order.
func New(files *diag.FileTable, reader Reader, builtinIncludeDirs []string) *Preprocessor {
	return &Preprocessor{
		files:       files,
		reader:      reader,
		includeDirs: builtinIncludeDirs,
		macros:      make(map[string][]token.Token),
	}
}

// Expand preprocesses the translation unit rooted at path (already read into
// src and interned as file) and returns the fully expanded token stream,
// terminated by a single token.EOF.
func (p *Preprocessor) Expand(file diag.FileID, path string, src []byte) ([]token.Token, error) {
	out, err := p.processFile(file, path, src, 0, map[string]bool{})
	if err != nil {
		return nil, err
	}
	out = append(out, token.Token{Kind: token.EOF})
	return out, nil
}

func (p *Preprocessor) processFile(file diag.FileID, path string, src []byte, depth int, inFlight map[string]bool) ([]token.Token, error) {
	toks, err := lexer.Tokenize(file, src)
	if err != nil {
		if le := lexer.AsDiag(err); le != nil {
			return nil, le
		}
		return nil, err
	}

	var out []token.Token
	i := 0
	for i < len(toks) && toks[i].Kind != token.EOF {
		tok := toks[i]
		if tok.Kind == token.HASH {
			line := directiveLine(toks, i)
			expanded, consumed, err := p.handleDirective(line, filepath.Dir(path), depth, inFlight)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
			i += consumed
			continue
		}
		if tok.Kind == token.IDENT {
			if repl, ok := p.macros[tok.Lexeme]; ok {
				out = append(out, p.expandMacro(tok.Lexeme, repl, map[string]bool{tok.Lexeme: true})...)
				i++
				continue
			}
		}
		out = append(out, tok)
		i++
	}
	return out, nil
}

// directiveLine collects the run of tokens starting at toks[start] (a HASH)
// that share its source line: a directive ends at end of line, which is the
// only delimiter the grammar gives it once the lexer has discarded the
// newline bytes themselves.
func directiveLine(toks []token.Token, start int) []token.Token {
	line := toks[start].Pos.Line
	end := start
	for end < len(toks) && toks[end].Pos.Line == line && toks[end].Kind != token.EOF {
		end++
	}
	return toks[start:end]
}

// handleDirective processes one #-line and returns the tokens it spliced in
// (possibly none) plus how many tokens of the line (HASH included) it
// consumed from the caller's perspective.
func (p *Preprocessor) handleDirective(line []token.Token, baseDir string, depth int, inFlight map[string]bool) ([]token.Token, int, error) {
	consumed := len(line)
	if len(line) < 2 {
		return nil, consumed, nil // bare '#' on a line: no-op
	}
	directive := line[1]
	switch {
	case directive.Kind == token.IDENT && directive.Lexeme == "include":
		toks, err := p.handleInclude(line[2:], baseDir, depth, inFlight, directive.Pos)
		return toks, consumed, err
	case directive.Kind == token.IDENT && directive.Lexeme == "define":
		return nil, consumed, p.handleDefine(line[2:], directive.Pos)
	case directive.Kind == token.IDENT && directive.Lexeme == "undef":
		return nil, consumed, p.handleUndef(line[2:], directive.Pos)
	default:
		// Unknown directive: skipped to end of line; no diagnostic is produced.
		return nil, consumed, nil
	}
}

func (p *Preprocessor) handleInclude(rest []token.Token, baseDir string, depth int, inFlight map[string]bool, pos diag.Position) ([]token.Token, error) {
	if depth+1 > MaxIncludeDepth {
		return nil, diag.New(diag.CategoryPreproc, pos, "include depth exceeded (max %d)", MaxIncludeDepth)
	}
	if len(rest) == 0 {
		return nil, diag.New(diag.CategoryPreproc, pos, "#include expects \"FILENAME\" or <FILENAME>")
	}

	var name string
	switch {
	case rest[0].Kind == token.STRING_LIT:
		name = strings.TrimSuffix(string(rest[0].Bytes), "\x00")
	case rest[0].Kind == token.LT:
		name = reconstructAngleInclude(rest)
	default:
		return nil, diag.New(diag.CategoryPreproc, pos, "malformed #include directive")
	}
	if name == "" {
		return nil, diag.New(diag.CategoryPreproc, pos, "malformed #include directive")
	}

	resolved, data, err := p.resolve(name, baseDir)
	if err != nil {
		return nil, diag.New(diag.CategoryPreproc, pos, "cannot find include file %q", name)
	}

	includedFile := p.files.Intern(resolved)
	return p.processFile(includedFile, resolved, data, depth+1, inFlight)
}

// reconstructAngleInclude rebuilds "name.h" out of the '<', identifier/punct
// pieces, and '>' tokens the lexer produced for <name.h>, since the lexer
// has no dedicated angle-include-header token kind.
func reconstructAngleInclude(rest []token.Token) string {
	var b strings.Builder
	for _, t := range rest[1:] {
		if t.Kind == token.GT {
			break
		}
		b.WriteString(t.Lexeme)
	}
	return b.String()
}

// resolve tries name against the including file's own directory, then
// against the builtin include directories, in that order, reading through
// p.reader so the search never touches the real filesystem in tests.
func (p *Preprocessor) resolve(name, baseDir string) (path string, data []byte, err error) {
	candidates := append([]string{baseDir}, p.includeDirs...)
	if filepath.IsAbs(name) {
		candidates = append([]string{""}, candidates...)
	}
	for _, dir := range candidates {
		candidate := name
		if dir != "" {
			candidate = filepath.Join(dir, name)
		}
		if data, err := p.reader.ReadFile(candidate); err == nil {
			return candidate, data, nil
		}
	}
	return "", nil, fmt.Errorf("include file %q not found", name)
}

func (p *Preprocessor) handleDefine(rest []token.Token, pos diag.Position) error {
	if len(rest) == 0 || rest[0].Kind != token.IDENT {
		return diag.New(diag.CategoryPreproc, pos, "#define expects a macro name")
	}
	name := rest[0].Lexeme
	p.macros[name] = append([]token.Token(nil), rest[1:]...)
	return nil
}

func (p *Preprocessor) handleUndef(rest []token.Token, pos diag.Position) error {
	if len(rest) == 0 || rest[0].Kind != token.IDENT {
		return diag.New(diag.CategoryPreproc, pos, "#undef expects a macro name")
	}
	delete(p.macros, rest[0].Lexeme)
	return nil
}

// expandMacro substitutes name's replacement list, re-scanning the result
// for further macro references. inFlight blocks recursion through the same
// macro name within this one expansion chain (it is scoped per top-level
// use site, not shared across sibling expansions).
func (p *Preprocessor) expandMacro(name string, repl []token.Token, inFlight map[string]bool) []token.Token {
	var out []token.Token
	for _, t := range repl {
		if t.Kind == token.IDENT {
			if nested, ok := p.macros[t.Lexeme]; ok && !inFlight[t.Lexeme] {
				nextInFlight := lo.Assign(map[string]bool{}, inFlight, map[string]bool{t.Lexeme: true})
				out = append(out, p.expandMacro(t.Lexeme, nested, nextInFlight)...)
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
