// Command mainstage is the MainStage build-orchestration DSL's CLI
// driver: it turns a .stage script into MSBC bytecode and can execute
// that bytecode directly, wiring the lexer/parser/analyzer/lowering/
// optimizer/bytecode/VM pipeline together the way cmd/sentra wires its
// own scanner/parser/compiler/VM pipeline.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"mainstage/internal/analyzer"
	"mainstage/internal/ast"
	"mainstage/internal/bytecode"
	"mainstage/internal/diag"
	"mainstage/internal/ir"
	"mainstage/internal/lexer"
	"mainstage/internal/optimize"
	"mainstage/internal/parser"
	"mainstage/internal/plugin"
	"mainstage/internal/vm"
)

const version = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Println("mainstage " + version)
	case "build":
		os.Exit(buildCommand(args[1:]))
	case "run":
		os.Exit(runCommand(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "mainstage: unknown command %q\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`mainstage - MainStage build orchestration DSL

Usage:
  mainstage build <file> [-d ast] [-o out.msbc]   compile a .stage script to MSBC
  mainstage run <file>                            compile and execute a .stage script
  mainstage help                                  show this message
  mainstage version                               show the version`)
}

// buildArgs holds the parsed options for `mainstage build`, mirroring
// the flat string-comparison argument scan the teacher's own command
// parsing uses instead of reaching for a flag-parsing library.
type buildArgs struct {
	file   string
	dump   string
	output string
}

func parseBuildArgs(args []string) (buildArgs, error) {
	var b buildArgs
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-d":
			i++
			if i >= len(args) {
				return b, fmt.Errorf("-d requires a value (e.g. -d ast)")
			}
			b.dump = args[i]
		case "-o":
			i++
			if i >= len(args) {
				return b, fmt.Errorf("-o requires an output path")
			}
			b.output = args[i]
		default:
			if b.file != "" {
				return b, fmt.Errorf("unexpected argument %q", args[i])
			}
			b.file = args[i]
		}
	}
	if b.file == "" {
		return b, fmt.Errorf("no input file given")
	}
	return b, nil
}

func buildCommand(args []string) int {
	ba, err := parseBuildArgs(args)
	if err != nil {
		log.Printf("mainstage build: %v", err)
		return 1
	}

	script, source, code := parseFile(ba.file)
	if script == nil {
		return code
	}

	if ba.dump == "ast" {
		dumpScript(os.Stdout, script)
		return 0
	}

	module, diags, code := compileModule(script, ba.file)
	reportDiagnostics(diags)
	if code != 0 {
		return code
	}

	out := ba.output
	if out == "" {
		out = strings.TrimSuffix(ba.file, filepath.Ext(ba.file)) + ".msbc"
	}
	if err := os.WriteFile(out, bytecode.Encode(module), 0o644); err != nil {
		log.Printf("mainstage build: writing %s: %v", out, err)
		return 2
	}
	fmt.Printf("wrote %s (%d ops)\n", out, len(module.Ops))
	_ = source
	return 0
}

func runCommand(args []string) int {
	if len(args) == 0 {
		log.Print("mainstage run: no input file given")
		return 1
	}
	file := args[len(args)-1]

	script, _, code := parseFile(file)
	if script == nil {
		return code
	}

	module, diags, code := compileModule(script, file)
	reportDiagnostics(diags)
	if code != 0 {
		return code
	}

	encoded := bytecode.Encode(module)
	ops, err := bytecode.Decode(encoded)
	if err != nil {
		log.Printf("mainstage run: decode: %v", err)
		return 2
	}

	registry := plugin.NewRegistry()
	if err := plugin.LoadAll(registry, "./plugins"); err != nil {
		log.Printf("mainstage run: loading plugins: %v", err)
		return 2
	}

	machine := vm.New(ops, vm.Options{Plugins: registry})
	if err := machine.Run(); err != nil {
		log.Printf("mainstage run: %v", err)
		return 2
	}
	return 0
}

// parseFile reads file, lexes and parses it, reports any scan/syntax
// diagnostics, and returns the parsed script plus the raw source (nil
// script, non-zero code on failure).
func parseFile(file string) (*ast.Script, string, int) {
	data, err := os.ReadFile(file)
	if err != nil {
		log.Printf("mainstage: reading %s: %v", file, err)
		return nil, "", 2
	}
	source := string(data)

	scanner := lexer.NewScanner(source)
	tokens := scanner.ScanTokens()
	if errs := scanner.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "%v\n", e)
		}
		return nil, "", 1
	}

	ast.ResetIDs()
	p := parser.NewParser(tokens, file, source)
	script, d := p.Parse()
	if d != nil {
		fmt.Fprintln(os.Stderr, d.Error())
		return nil, "", 1
	}
	return script, source, 0
}

// compileModule runs the analyzer, acyclic check, lowering, and
// optimizer over an already-parsed script. It returns every diagnostic
// collected along the way and the worst exit code they imply, per
// spec.md §6: 0 clean, 1 errors, 2 fatal/lowering failure.
func compileModule(script *ast.Script, file string) (*ir.Module, []*diag.Diagnostic, int) {
	entrypointName, out, err := analyzer.Analyze(script, file, nil)
	diags := append([]*diag.Diagnostic{}, out.Diagnostics...)
	if err != nil {
		return nil, diags, 2
	}
	if cycle := analyzer.CheckAcyclic(script, file); cycle != nil {
		diags = append(diags, cycle)
	}
	if diag.HasErrors(diags) {
		return nil, diags, diag.ExitCode(diags)
	}

	module, err := ir.Lower(script, out.EntrypointNodeID, out.HasEntrypoint)
	if err != nil {
		diags = append(diags, diag.NewRuntimeError(fmt.Sprintf("lowering: %v", err)))
		return nil, diags, 2
	}

	optimize.Default().Run(module)

	_ = entrypointName
	return module, diags, 0
}

func reportDiagnostics(diags []*diag.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, d.Error())
	}
}
