package main

import (
	"fmt"
	"io"
	"strings"

	"mainstage/internal/ast"
)

// dumpScript prints a parsed Script as an indented tree, for
// `mainstage build -d ast`. It is a plain type-switch over the node
// family rather than a visitor, since its only job is human-readable
// debug output, not dispatch correctness the rest of the pipeline
// depends on.
func dumpScript(w io.Writer, script *ast.Script) {
	dumpStmts(w, script.Body, 0)
}

func indent(w io.Writer, depth int, format string, a ...any) {
	fmt.Fprint(w, strings.Repeat("  ", depth))
	fmt.Fprintf(w, format, a...)
	fmt.Fprintln(w)
}

func dumpStmts(w io.Writer, stmts []ast.Stmt, depth int) {
	for _, s := range stmts {
		dumpStmt(w, s, depth)
	}
}

func dumpStmt(w io.Writer, s ast.Stmt, depth int) {
	switch n := s.(type) {
	case *ast.Workspace:
		tag := "workspace"
		if n.IsEntrypoint() {
			tag = "workspace @entrypoint"
		}
		indent(w, depth, "%s %s", tag, n.Name)
		dumpStmts(w, n.Body, depth+1)
	case *ast.Project:
		indent(w, depth, "project %s", n.Name)
		dumpStmts(w, n.Body, depth+1)
	case *ast.Stage:
		indent(w, depth, "stage %s(%s)", n.Name, strings.Join(n.Params, ", "))
		dumpStmts(w, n.Body, depth+1)
	case *ast.Block:
		indent(w, depth, "block")
		dumpStmts(w, n.Statements, depth+1)
	case *ast.If:
		indent(w, depth, "if %s", dumpExpr(n.Cond))
		dumpStmts(w, n.Then, depth+1)
	case *ast.IfElse:
		indent(w, depth, "if %s", dumpExpr(n.Cond))
		dumpStmts(w, n.Then, depth+1)
		indent(w, depth, "else")
		dumpStmts(w, n.Else, depth+1)
	case *ast.While:
		indent(w, depth, "while %s", dumpExpr(n.Cond))
		dumpStmts(w, n.Body, depth+1)
	case *ast.ForIn:
		indent(w, depth, "for %s in %s", n.Iterator, dumpExpr(n.Iterable))
		dumpStmts(w, n.Body, depth+1)
	case *ast.ForTo:
		indent(w, depth, "for ...; %s", dumpExpr(n.Limit))
		dumpStmts(w, n.Body, depth+1)
	case *ast.Return:
		if n.Value == nil {
			indent(w, depth, "return")
		} else {
			indent(w, depth, "return %s", dumpExpr(n.Value))
		}
	case *ast.Assignment:
		indent(w, depth, "%s = %s", dumpExpr(n.Target), dumpExpr(n.Value))
	case *ast.ExprStmt:
		indent(w, depth, "%s", dumpExpr(n.X))
	case *ast.Include:
		indent(w, depth, "include %q", n.Path)
	case *ast.Import:
		indent(w, depth, "import %s", n.Name)
	default:
		indent(w, depth, "<unknown stmt %T>", n)
	}
}

func dumpExpr(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name
	case *ast.IntLit:
		return fmt.Sprintf("%d", n.Value)
	case *ast.FloatLit:
		return fmt.Sprintf("%g", n.Value)
	case *ast.BoolLit:
		return fmt.Sprintf("%t", n.Value)
	case *ast.StrLit:
		return fmt.Sprintf("%q", n.Value)
	case *ast.NullLit:
		return "null"
	case *ast.BinaryOp:
		return fmt.Sprintf("(%s %s %s)", dumpExpr(n.Left), n.Op, dumpExpr(n.Right))
	case *ast.UnaryOp:
		return fmt.Sprintf("(%s%s)", n.Op, dumpExpr(n.Operand))
	case *ast.Call:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = dumpExpr(a)
		}
		return fmt.Sprintf("%s(%s)", dumpExpr(n.Callee), strings.Join(args, ", "))
	case *ast.Member:
		return fmt.Sprintf("%s.%s", dumpExpr(n.Object), n.Property)
	case *ast.Index:
		return fmt.Sprintf("%s[%s]", dumpExpr(n.Object), dumpExpr(n.IndexE))
	case *ast.List:
		elems := make([]string, len(n.Elements))
		for i, el := range n.Elements {
			elems[i] = dumpExpr(el)
		}
		return "[" + strings.Join(elems, ", ") + "]"
	default:
		return fmt.Sprintf("<unknown expr %T>", n)
	}
}
