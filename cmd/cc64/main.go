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

// Command cc64 drives the compiler end to end: it reads a single C source
// file, runs it through preprocessing, parsing, semantic analysis and code
// generation, writes the resulting assembly under an asm output directory,
// and (unless --emit-asm-only is set) hands the assembly to an external
// assembler/linker to produce a native executable under a bin output
// directory.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ajroetker/cc64/internal/codegen"
	"github.com/ajroetker/cc64/internal/cpp"
	"github.com/ajroetker/cc64/internal/diag"
	"github.com/ajroetker/cc64/internal/parser"
	"github.com/ajroetker/cc64/internal/sema"
)

var verbose bool

// compile runs every in-process stage (preprocess through codegen) against
// source and returns the generated assembly text plus the file table used
// to resolve diagnostic positions, or the first diagnostic encountered.
func compile(source string, includeDirs []string) (string, *diag.FileTable, error) {
	files := diag.NewFileTable()
	fileID := files.Intern(source)

	src, err := os.ReadFile(source)
	if err != nil {
		return "", files, diag.New(diag.CategoryIO, diag.Position{}, "%s: %v", source, err)
	}

	pre := cpp.New(files, cpp.OSReader{}, includeDirs)
	toks, err := pre.Expand(fileID, source, src)
	if err != nil {
		return "", files, err
	}

	tu, err := parser.Parse(toks)
	if err != nil {
		return "", files, err
	}

	res, err := sema.Analyze(tu)
	if err != nil {
		return "", files, err
	}

	asm, err := codegen.Generate(res)
	return asm, files, err
}

// outputName derives the base name (no extension) used for the generated
// .s/.o/.exe files: the explicit second argument if given, otherwise the
// source file's own base name.
func outputName(source string, args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	ext := filepath.Ext(source)
	return filepath.Base(source[:len(source)-len(ext)])
}

// assemble invokes the external assembler and linker against asmPath,
// producing a Windows x64 executable at exePath. This is scaffolding
// outside the compiler core (spec.md "out of scope: external
// collaborators"); the core's contract ends at emitting the .s text.
func assemble(assembler, asmPath, exePath string) error {
	_, err := runCommand(assembler, asmPath, "-o", exePath)
	return err
}

// runCommand runs a command and returns its combined output.
func runCommand(name string, arg ...string) (string, error) {
	if verbose {
		_, _ = fmt.Fprintf(os.Stderr, "running %v\n", append([]string{name}, arg...))
	}
	cmd := exec.Command(name, arg...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			return "", errors.New(string(output))
		}
		return "", err
	}
	return string(output), nil
}

// exitCode maps a diagnostic to the driver's documented exit status: success
// 0, an ordinary user diagnostic 1, an internal (compiler-bug) diagnostic 2.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if diag.IsInternal(err) {
		return 2
	}
	return 1
}

var command = &cobra.Command{
	Use:  "cc64 source.c [output_name]",
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		source := args[0]
		name := outputName(source, args)

		includePaths, _ := cmd.PersistentFlags().GetStringSlice("include-path")
		bundledInclude, _ := cmd.PersistentFlags().GetString("include-dir")
		includeDirs := append(append([]string(nil), includePaths...), bundledInclude)

		asmDir, _ := cmd.PersistentFlags().GetString("asm-dir")
		binDir, _ := cmd.PersistentFlags().GetString("bin-dir")
		emitAsmOnly, _ := cmd.PersistentFlags().GetBool("emit-asm-only")
		assembler, _ := cmd.PersistentFlags().GetString("assembler")

		asmText, files, err := compile(source, includeDirs)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, formatErr(err, files))
			os.Exit(exitCode(err))
		}

		if err := os.MkdirAll(asmDir, 0o755); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		asmPath := filepath.Join(asmDir, name+".s")
		if err := os.WriteFile(asmPath, []byte(asmText), 0o644); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		if emitAsmOnly {
			return
		}

		if err := os.MkdirAll(binDir, 0o755); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		exePath := filepath.Join(binDir, name+".exe")
		if err := assemble(assembler, asmPath, exePath); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

// formatErr renders err the way the CLI documents its diagnostics:
// "<file>:<line>:<col>: <category>: <message>". A *diag.Error formats itself
// against files; anything else prints as a plain message.
func formatErr(err error, files *diag.FileTable) string {
	if e, ok := err.(*diag.Error); ok {
		return e.Format(files)
	}
	return err.Error()
}

func init() {
	command.PersistentFlags().StringSliceP("include-path", "I", nil, "additional #include search directory, searched before the bundled headers")
	command.PersistentFlags().String("include-dir", defaultIncludeDir(), "bundled include directory (stdio.h and friends)")
	command.PersistentFlags().String("asm-dir", filepath.Join("output", "asm"), "directory the generated .s file is written to")
	command.PersistentFlags().String("bin-dir", filepath.Join("output", "bin"), "directory the linked executable is written to")
	command.PersistentFlags().Bool("emit-asm-only", false, "stop after writing the .s file, without invoking an assembler")
	command.PersistentFlags().String("assembler", "as", "external assembler/linker to invoke on the generated .s file")
	command.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "if set, increase verbosity level")
}

// defaultIncludeDir resolves the bundled include/ directory relative to the
// running binary, falling back to "include" in the working directory when
// the binary's own location can't be determined (e.g. under `go run`).
func defaultIncludeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "include"
	}
	dir := filepath.Join(filepath.Dir(exe), "include")
	if _, err := os.Stat(dir); err != nil {
		return "include"
	}
	return dir
}

func main() {
	if err := command.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
