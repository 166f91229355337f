// Command ink is the CLI entry point for the ink toolchain.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/docopt/docopt-go"
	"github.com/mattn/go-isatty"

	"github.com/MoonMountain2k/inkparse/internal/ast"
	"github.com/MoonMountain2k/inkparse/internal/lexer"
	"github.com/MoonMountain2k/inkparse/internal/parser"
	"github.com/MoonMountain2k/inkparse/internal/runtime"
)

const usage = `ink

Usage:
  ink run <file>
  ink tokens <file> [--json]
  ink parse <file>
  ink repl
  ink [<file>]
  ink -h | --help

Commands:
  run      Run a source file.
  tokens   Tokenize a source file and print the tokens.
  parse    Parse a source file and print the AST as JSON.
  repl     Start the interactive REPL.

Options:
  --json     Emit tokens as JSON.
  -h --help  Display this help.

With no command, ink runs the given file, or starts the REPL when stdin
is a TTY, or runs a program read from stdin otherwise.
`

func main() {
	opts, err := docopt.ParseDoc(usage)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	file, _ := opts.String("<file>")

	switch {
	case mustBool(opts, "tokens"):
		cmdTokens(readFile(file), file, mustBool(opts, "--json"))
	case mustBool(opts, "parse"):
		cmdParse(readFile(file), file)
	case mustBool(opts, "run"):
		cmdRun(readFile(file), file)
	case mustBool(opts, "repl"):
		cmdRepl()
	case file != "":
		cmdRun(readFile(file), file)
	case isatty.IsTerminal(os.Stdin.Fd()):
		cmdRepl()
	default:
		source, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: cannot read stdin: %v\n", err)
			os.Exit(1)
		}
		cmdRun(string(source), "<stdin>")
	}
}

func mustBool(opts docopt.Opts, key string) bool {
	v, _ := opts.Bool(key)
	return v
}

func readFile(filename string) string {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot read file %s: %v\n", filename, err)
		os.Exit(1)
	}
	return string(source)
}

// ---- tokens command ----

func cmdTokens(source, filename string, jsonMode bool) {
	l := lexer.New(source, filename)
	tokens, diags := l.Tokenize()

	if jsonMode {
		printTokensJSON(tokens, diags)
	} else {
		printTokensText(tokens, diags)
	}

	if len(diags) > 0 {
		os.Exit(1)
	}
}

// ---- parse command ----

func cmdParse(source, filename string) {
	l := lexer.New(source, filename)
	tokens, lexDiags := l.Tokenize()

	p := parser.New(tokens)
	file, parseDiags := p.ParseFile()

	allDiags := append(lexDiags, parseDiags...)

	output := map[string]interface{}{
		"ast":         ast.NodeToMap(file),
		"diagnostics": diagsToSlice(allDiags),
	}
	printJSON(output)

	if len(allDiags) > 0 {
		os.Exit(1)
	}
}

// ---- run command ----

func cmdRun(source, filename string) {
	l := lexer.New(source, filename)
	tokens, lexDiags := l.Tokenize()
	if len(lexDiags) > 0 {
		printDiagsText(lexDiags)
		os.Exit(1)
	}

	p := parser.New(tokens)
	file, parseDiags := p.ParseFile()
	if len(parseDiags) > 0 {
		printDiagsText(parseDiags)
		os.Exit(1)
	}

	interp := runtime.NewInterpreter(os.Stdout)
	if _, err := interp.Run(file); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
