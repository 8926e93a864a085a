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

// Package diag provides source-position tracking and error reporting shared
// by every later compiler stage.
package diag

import "fmt"

// Category classifies a diagnostic. The zero value is never produced.
type Category int

const (
	// CategoryIO covers unreadable source files and missing include paths.
	CategoryIO Category = iota + 1
	// CategoryLex covers unknown bytes, unterminated strings and comments.
	CategoryLex
	// CategoryPreproc covers include-depth overruns, missing includes and
	// malformed directives.
	CategoryPreproc
	// CategoryParse covers grammar mismatches.
	CategoryParse
	// CategoryType covers name resolution and type-checking failures.
	CategoryType
	// CategoryInternal marks invariant violations: compiler bugs, not user
	// errors. The driver maps these to a distinct exit status.
	CategoryInternal
)

// String renders the category the way it appears in a diagnostic line.
func (c Category) String() string {
	switch c {
	case CategoryIO:
		return "io error"
	case CategoryLex:
		return "lex error"
	case CategoryPreproc:
		return "preprocessor error"
	case CategoryParse:
		return "parse error"
	case CategoryType:
		return "type error"
	case CategoryInternal:
		return "internal error"
	default:
		return "error"
	}
}

// FileID identifies an interned source file. FileID zero is never assigned
// to a real file; it is used as a sentinel for synthetic positions.
type FileID int

// Position is a (file, line, column) triple attached to every token and AST
// node. Lines and columns are 1-based.
type Position struct {
	File   FileID
	Line   int
	Column int
}

// FileTable interns source files by name and hands back stable FileIDs. It
// is append-only and is the one piece of state threaded through every
// compiler stage; it must not be a package-level global so that library
// callers can run independent compilations concurrently.
type FileTable struct {
	names []string
}

// NewFileTable returns an empty, ready-to-use file table.
func NewFileTable() *FileTable {
	return &FileTable{}
}

// Intern registers name (if not already present under this exact string)
// and returns its stable FileID. Re-interning the same name returns the
// same ID; two different names always get distinct IDs, even if they
// resolve to the same file on disk, since the table works on the strings
// the caller presents (e.g. as passed to #include).
func (t *FileTable) Intern(name string) FileID {
	for i, n := range t.names {
		if n == name {
			return FileID(i + 1)
		}
	}
	t.names = append(t.names, name)
	return FileID(len(t.names))
}

// Name returns the file name registered under id, or "<unknown>" if id was
// never interned by this table.
func (t *FileTable) Name(id FileID) string {
	if id <= 0 || int(id) > len(t.names) {
		return "<unknown>"
	}
	return t.names[id-1]
}

// Error is the one error type every compiler stage returns. It carries a
// position (zero Position if the diagnostic is not location-specific, e.g.
// a missing command-line argument) and a human-readable message.
type Error struct {
	Category Category
	Pos      Position
	Message  string
}

// New constructs an Error.
func New(category Category, pos Position, format string, args ...any) *Error {
	return &Error{Category: category, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface and returns the bare message; Format
// renders the full "<file>:<line>:<col>: <category>: <message>" line.
func (e *Error) Error() string {
	return e.Message
}

// Format renders e against files for the stderr-facing diagnostic line.
func (e *Error) Format(files *FileTable) string {
	if e.Pos.File == 0 {
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", files.Name(e.Pos.File), e.Pos.Line, e.Pos.Column, e.Category, e.Message)
}

// IsInternal reports whether err is an *Error in CategoryInternal, which the
// driver maps to a distinct exit status from ordinary user diagnostics.
func IsInternal(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Category == CategoryInternal
}
