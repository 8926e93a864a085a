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

package types

import "github.com/samber/lo"

// StorageKind tags how a symbol's storage is realised.
type StorageKind int

const (
	Global StorageKind = iota
	Local
	Parameter
	FunctionStorage
	StringLiteral
)

// Storage describes where a symbol lives. Exactly the fields relevant to
// Kind are meaningful; the rest are zero.
type Storage struct {
	Kind         StorageKind
	FrameOffset  int64  // Local, Parameter: signed displacement from rbp
	Label        string // Global, FunctionStorage, StringLiteral
	Bytes        []byte // StringLiteral: the deduplicated literal content
}

// Symbol is (name, type, storage). Symbols never hold a pointer back into
// the AST or into another symbol: per the "cyclic references" design note,
// cross-references run through the stable SymbolID an arena hands out, so a
// symbol table can be copied, arena-grown, or garbage collected without
// invalidating references held by AST nodes.
type Symbol struct {
	Name    string
	Type    *Type
	Storage Storage
}

// SymbolID addresses a Symbol in a SymbolTable's arena. The zero value
// never addresses a real symbol.
type SymbolID int

// SymbolTable is an arena of symbols addressed by stable integer index, plus
// a stack of scopes mapping name -> SymbolID. The global scope is the
// outermost and is never popped.
type SymbolTable struct {
	arena  []Symbol
	scopes []map[string]SymbolID
}

// NewSymbolTable returns a table with just the global scope pushed.
func NewSymbolTable() *SymbolTable {
	t := &SymbolTable{}
	t.scopes = append(t.scopes, map[string]SymbolID{})
	return t
}

// PushScope opens a new, innermost lexical scope (a compound statement or a
// function's parameter list).
func (t *SymbolTable) PushScope() {
	t.scopes = append(t.scopes, map[string]SymbolID{})
}

// PopScope closes the innermost scope. It must not be called on the global
// scope; callers are expected to balance every PushScope with exactly one
// PopScope.
func (t *SymbolTable) PopScope() {
	t.scopes = t.scopes[:len(t.scopes)-1]
}

// AtGlobalScope reports whether the table currently has only the global
// scope open.
func (t *SymbolTable) AtGlobalScope() bool {
	return len(t.scopes) == 1
}

// Declare adds name to the innermost scope, returning its new SymbolID.
// Declare does not check for redeclaration; callers that need the
// "redeclaration in the same scope with an incompatible type is an error"
// rule must call LookupLocal first.
func (t *SymbolTable) Declare(name string, typ *Type, storage Storage) SymbolID {
	t.arena = append(t.arena, Symbol{Name: name, Type: typ, Storage: storage})
	id := SymbolID(len(t.arena))
	t.scopes[len(t.scopes)-1][name] = id
	return id
}

// Lookup searches the scope stack innermost-first and returns the bound
// SymbolID, or ok=false if name is unresolved in any enclosing scope.
func (t *SymbolTable) Lookup(name string) (SymbolID, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if id, ok := t.scopes[i][name]; ok {
			return id, true
		}
	}
	return 0, false
}

// LookupLocal reports whether name is already bound in the innermost scope
// only, the check a redeclaration diagnostic is built on.
func (t *SymbolTable) LookupLocal(name string) (SymbolID, bool) {
	id, ok := t.scopes[len(t.scopes)-1][name]
	return id, ok
}

// Get dereferences id into the Symbol it addresses.
func (t *SymbolTable) Get(id SymbolID) *Symbol {
	return &t.arena[id-1]
}

// DeclareGlobalString registers a deduplicated string-literal symbol
// directly into the global scope, rather than the innermost scope Declare
// binds ordinary identifiers into — string literals live in their own
// namespace and are never shadowed or redeclared.
func (t *SymbolTable) DeclareGlobalString(name, label string, bytes []byte) SymbolID {
	t.arena = append(t.arena, Symbol{
		Name:    name,
		Type:    NewPointer(CharT),
		Storage: Storage{Kind: StringLiteral, Label: label, Bytes: bytes},
	})
	id := SymbolID(len(t.arena))
	t.scopes[0][name] = id
	return id
}

// InnermostNames returns the names bound in the current innermost scope,
// in no particular order — used by the redeclaration diagnostic to list the
// names already declared in this block.
func (t *SymbolTable) InnermostNames() []string {
	return lo.Keys(t.scopes[len(t.scopes)-1])
}
