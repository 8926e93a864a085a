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

// Package asmwriter accumulates the .data and .text fragments the code
// generator emits and assembles them into one Intel-syntax .s file for the
// Windows x64 target.
package asmwriter

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Writer collects assembly fragments in emission order and renders the
// final file on String. It holds no knowledge of the source language; the
// code generator is the only caller.
type Writer struct {
	data    []string
	text    []string
	externs []string
	globals []string
}

// New returns an empty Writer.
func New() *Writer {
	return &Writer{}
}

// Data appends one line to the .data section, in emission order.
func (w *Writer) Data(line string) {
	w.data = append(w.data, line)
}

// Text appends one line to the .text section, in emission order.
func (w *Writer) Text(line string) {
	w.text = append(w.text, line)
}

// Extern records name as referenced but not defined in this translation
// unit; it is deduplicated, since the same external symbol (e.g. printf)
// is typically called more than once.
func (w *Writer) Extern(name string) {
	if !lo.Contains(w.externs, name) {
		w.externs = append(w.externs, name)
	}
}

// Global records name as defined in this translation unit and exported via
// .globl, for functions and globals with external linkage.
func (w *Writer) Global(name string) {
	if !lo.Contains(w.globals, name) {
		w.globals = append(w.globals, name)
	}
}

// String assembles the accumulated fragments into the final .s text: the
// Intel-syntax directive, sorted .extern/.globl declarations for
// determinism, then .data and .text verbatim in emission order.
func (w *Writer) String() string {
	var b strings.Builder
	b.WriteString(".intel_syntax noprefix\n")

	externs := append([]string(nil), w.externs...)
	sort.Strings(externs)
	for _, name := range externs {
		b.WriteString(".extern " + name + "\n")
	}

	globals := append([]string(nil), w.globals...)
	sort.Strings(globals)
	for _, name := range globals {
		b.WriteString(".globl " + name + "\n")
	}

	if len(w.data) > 0 {
		b.WriteString(".data\n")
		for _, line := range w.data {
			b.WriteString(line + "\n")
		}
	}

	b.WriteString(".text\n")
	for _, line := range w.text {
		b.WriteString(line + "\n")
	}

	return b.String()
}
