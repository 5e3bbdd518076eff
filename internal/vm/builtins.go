package vm

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"mainstage/internal/ir"
)

var stdinReader = bufio.NewReader(os.Stdin)

// callBuiltin dispatches Call: func must resolve to Symbol(name) naming
// a host builtin. Any other target, including an unresolved stage name,
// is a hard error per spec.md §4.7.
func (v *VM) callBuiltin(op ir.Op) (ir.Value, error) {
	funcVal := v.reg(op.FuncReg)
	if funcVal.Kind != ir.VSymbol {
		return ir.Value{}, &RuntimeError{Op: "Call", Msg: "call target is not a host-builtin symbol"}
	}
	args := make([]ir.Value, len(op.Args))
	for i, r := range op.Args {
		args[i] = v.reg(r)
	}
	switch funcVal.S {
	case "say":
		return builtinSay(args)
	case "ask":
		return builtinAsk(args)
	case "read":
		return builtinRead(args)
	case "write":
		return builtinWrite(args)
	case "fmt":
		return builtinFmt(args)
	default:
		return ir.Value{}, &RuntimeError{Op: "Call", Msg: fmt.Sprintf("unknown host function %q", funcVal.S)}
	}
}

func builtinSay(args []ir.Value) (ir.Value, error) {
	for _, a := range args {
		fmt.Println(a.ToString())
	}
	return ir.Null(), nil
}

// builtinAsk reads one line from stdin and auto-coerces it to Bool, Int,
// Float, or falls back to Str.
func builtinAsk(args []ir.Value) (ir.Value, error) {
	if len(args) > 0 {
		fmt.Print(args[0].ToString())
	}
	line, err := stdinReader.ReadString('\n')
	if err != nil && line == "" {
		return ir.Str(""), nil
	}
	line = trimNewline(line)
	return coerceInput(line), nil
}

func coerceInput(s string) ir.Value {
	if s == "true" {
		return ir.Bool(true)
	}
	if s == "false" {
		return ir.Bool(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ir.Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return ir.Float(f)
	}
	return ir.Str(s)
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// builtinRead returns an Array of file contents matched by a glob
// pattern.
func builtinRead(args []ir.Value) (ir.Value, error) {
	if len(args) < 1 || args[0].Kind != ir.VStr {
		return ir.Null(), &RuntimeError{Op: "read", Msg: "expected a glob pattern string"}
	}
	matches, err := filepath.Glob(args[0].S)
	if err != nil {
		return ir.Null(), &RuntimeError{Op: "read", Msg: err.Error()}
	}
	out := make([]ir.Value, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		out = append(out, ir.Str(string(data)))
	}
	return ir.Array(out), nil
}

// builtinWrite writes content to path, returning Bool success.
func builtinWrite(args []ir.Value) (ir.Value, error) {
	if len(args) < 2 || args[0].Kind != ir.VStr {
		return ir.Bool(false), &RuntimeError{Op: "write", Msg: "expected (path: Str, content)"}
	}
	err := os.WriteFile(args[0].S, []byte(args[1].ToString()), 0o644)
	return ir.Bool(err == nil), nil
}
