package parser

import (
	"testing"

	"mainstage/internal/ast"
	"mainstage/internal/lexer"
)

func parse(t *testing.T, src string) *ast.Script {
	t.Helper()
	ast.ResetIDs()
	toks := lexer.NewScanner(src).ScanTokens()
	script, d := NewParser(toks, "test.stage", src).Parse()
	if d != nil {
		t.Fatalf("unexpected parse error: %v", d)
	}
	return script
}

func TestParseEmptyWorkspace(t *testing.T) {
	script := parse(t, `workspace Build { }`)
	if len(script.Body) != 1 {
		t.Fatalf("body len = %d, want 1", len(script.Body))
	}
	ws, ok := script.Body[0].(*ast.Workspace)
	if !ok {
		t.Fatalf("body[0] = %T, want *ast.Workspace", script.Body[0])
	}
	if ws.Name != "Build" {
		t.Fatalf("workspace name = %q, want Build", ws.Name)
	}
	if ws.IsEntrypoint() {
		t.Fatalf("workspace should not be entrypoint")
	}
}

func TestParseEntrypointAttribute(t *testing.T) {
	script := parse(t, `@entrypoint workspace Main { }`)
	ws := script.Body[0].(*ast.Workspace)
	if !ws.IsEntrypoint() {
		t.Fatalf("expected @entrypoint workspace to report IsEntrypoint")
	}
}

func TestParseStageWithParamsAndBody(t *testing.T) {
	script := parse(t, `
		stage compile(src, out) {
			x = 1
			return x
		}
	`)
	stage := script.Body[0].(*ast.Stage)
	if stage.Name != "compile" {
		t.Fatalf("stage name = %q", stage.Name)
	}
	if len(stage.Params) != 2 || stage.Params[0] != "src" || stage.Params[1] != "out" {
		t.Fatalf("params = %v, want [src out]", stage.Params)
	}
	if len(stage.Body) != 2 {
		t.Fatalf("body len = %d, want 2", len(stage.Body))
	}
	assign, ok := stage.Body[0].(*ast.Assignment)
	if !ok {
		t.Fatalf("body[0] = %T, want *ast.Assignment", stage.Body[0])
	}
	if target, ok := assign.Target.(*ast.Ident); !ok || target.Name != "x" {
		t.Fatalf("assignment target = %#v", assign.Target)
	}
	ret, ok := stage.Body[1].(*ast.Return)
	if !ok {
		t.Fatalf("body[1] = %T, want *ast.Return", stage.Body[1])
	}
	if _, ok := ret.Value.(*ast.Ident); !ok {
		t.Fatalf("return value = %#v, want *ast.Ident", ret.Value)
	}
}

func TestParseProjectWithProperties(t *testing.T) {
	script := parse(t, `
		project Site {
			name = "docs"
			version = 2
		}
	`)
	proj := script.Body[0].(*ast.Project)
	if proj.Name != "Site" {
		t.Fatalf("project name = %q", proj.Name)
	}
	if len(proj.Body) != 2 {
		t.Fatalf("project body len = %d, want 2", len(proj.Body))
	}
}

func TestParseBinaryPrecedence(t *testing.T) {
	script := parse(t, `stage s() { x = 1 + 2 * 3 }`)
	stage := script.Body[0].(*ast.Stage)
	assign := stage.Body[0].(*ast.Assignment)
	bin, ok := assign.Value.(*ast.BinaryOp)
	if !ok {
		t.Fatalf("value = %T, want *ast.BinaryOp", assign.Value)
	}
	if bin.Op != "+" {
		t.Fatalf("top operator = %q, want +", bin.Op)
	}
	right, ok := bin.Right.(*ast.BinaryOp)
	if !ok || right.Op != "*" {
		t.Fatalf("right side should be a nested '*' op, got %#v", bin.Right)
	}
}

func TestParseLogicalAndComparison(t *testing.T) {
	script := parse(t, `stage s() { x = a == 1 && b != 2 }`)
	stage := script.Body[0].(*ast.Stage)
	assign := stage.Body[0].(*ast.Assignment)
	bin := assign.Value.(*ast.BinaryOp)
	if bin.Op != "&&" {
		t.Fatalf("top operator = %q, want &&", bin.Op)
	}
}

func TestParseUnaryNotAndMinus(t *testing.T) {
	script := parse(t, `stage s() { x = !ok && -1 == y }`)
	stage := script.Body[0].(*ast.Stage)
	assign := stage.Body[0].(*ast.Assignment)
	bin := assign.Value.(*ast.BinaryOp)
	left, ok := bin.Left.(*ast.UnaryOp)
	if !ok || left.Op != "!" {
		t.Fatalf("left = %#v, want unary !", bin.Left)
	}
}

func TestParseCallMemberAndIndex(t *testing.T) {
	script := parse(t, `stage s() { x = db.query(id, "select 1")[0] }`)
	stage := script.Body[0].(*ast.Stage)
	assign := stage.Body[0].(*ast.Assignment)
	idx, ok := assign.Value.(*ast.Index)
	if !ok {
		t.Fatalf("value = %T, want *ast.Index", assign.Value)
	}
	call, ok := idx.Object.(*ast.Call)
	if !ok {
		t.Fatalf("index object = %T, want *ast.Call", idx.Object)
	}
	if len(call.Args) != 2 {
		t.Fatalf("call args len = %d, want 2", len(call.Args))
	}
	member, ok := call.Callee.(*ast.Member)
	if !ok {
		t.Fatalf("callee = %T, want *ast.Member", call.Callee)
	}
	if member.Property != "query" {
		t.Fatalf("member property = %q, want query", member.Property)
	}
	obj, ok := member.Object.(*ast.Ident)
	if !ok || obj.Name != "db" {
		t.Fatalf("member object = %#v, want ident db", member.Object)
	}
}

func TestParseListLiteral(t *testing.T) {
	script := parse(t, `stage s() { x = [1, 2, 3] }`)
	stage := script.Body[0].(*ast.Stage)
	assign := stage.Body[0].(*ast.Assignment)
	list, ok := assign.Value.(*ast.List)
	if !ok {
		t.Fatalf("value = %T, want *ast.List", assign.Value)
	}
	if len(list.Elements) != 3 {
		t.Fatalf("elements len = %d, want 3", len(list.Elements))
	}
}

func TestParseIfElseIfChain(t *testing.T) {
	script := parse(t, `
		stage s() {
			if a {
				x = 1
			} else if b {
				x = 2
			} else {
				x = 3
			}
		}
	`)
	stage := script.Body[0].(*ast.Stage)
	ifElse, ok := stage.Body[0].(*ast.IfElse)
	if !ok {
		t.Fatalf("body[0] = %T, want *ast.IfElse", stage.Body[0])
	}
	if len(ifElse.Else) != 1 {
		t.Fatalf("else body len = %d, want 1 (nested if-else)", len(ifElse.Else))
	}
	if _, ok := ifElse.Else[0].(*ast.IfElse); !ok {
		t.Fatalf("nested else = %T, want *ast.IfElse", ifElse.Else[0])
	}
}

func TestParseWhileLoop(t *testing.T) {
	script := parse(t, `stage s() { while x < 10 { x = x + 1 } }`)
	stage := script.Body[0].(*ast.Stage)
	wh, ok := stage.Body[0].(*ast.While)
	if !ok {
		t.Fatalf("body[0] = %T, want *ast.While", stage.Body[0])
	}
	if len(wh.Body) != 1 {
		t.Fatalf("while body len = %d, want 1", len(wh.Body))
	}
}

func TestParseForIn(t *testing.T) {
	script := parse(t, `stage s() { for item in items { say(item) } }`)
	stage := script.Body[0].(*ast.Stage)
	forIn, ok := stage.Body[0].(*ast.ForIn)
	if !ok {
		t.Fatalf("body[0] = %T, want *ast.ForIn", stage.Body[0])
	}
	if forIn.Iterator != "item" {
		t.Fatalf("iterator = %q, want item", forIn.Iterator)
	}
	if _, ok := forIn.Iterable.(*ast.Ident); !ok {
		t.Fatalf("iterable = %#v, want ident", forIn.Iterable)
	}
}

func TestParseForToCounted(t *testing.T) {
	script := parse(t, `stage s() { for i = 0; i < 10 { say(i) } }`)
	stage := script.Body[0].(*ast.Stage)
	forTo, ok := stage.Body[0].(*ast.ForTo)
	if !ok {
		t.Fatalf("body[0] = %T, want *ast.ForTo", stage.Body[0])
	}
	init, ok := forTo.Initializer.(*ast.Assignment)
	if !ok {
		t.Fatalf("initializer = %T, want *ast.Assignment", forTo.Initializer)
	}
	if target, ok := init.Target.(*ast.Ident); !ok || target.Name != "i" {
		t.Fatalf("initializer target = %#v", init.Target)
	}
	if _, ok := forTo.Limit.(*ast.BinaryOp); !ok {
		t.Fatalf("limit = %#v, want *ast.BinaryOp", forTo.Limit)
	}
}

func TestParseIncludeAndImport(t *testing.T) {
	script := parse(t, `
		include "common.stage"
		import db
	`)
	inc, ok := script.Body[0].(*ast.Include)
	if !ok || inc.Path != "common.stage" {
		t.Fatalf("body[0] = %#v, want include common.stage", script.Body[0])
	}
	imp, ok := script.Body[1].(*ast.Import)
	if !ok || imp.Name != "db" {
		t.Fatalf("body[1] = %#v, want import db", script.Body[1])
	}
}

func TestParseExprStatement(t *testing.T) {
	script := parse(t, `stage s() { say("hi") }`)
	stage := script.Body[0].(*ast.Stage)
	exprStmt, ok := stage.Body[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("body[0] = %T, want *ast.ExprStmt", stage.Body[0])
	}
	if _, ok := exprStmt.X.(*ast.Call); !ok {
		t.Fatalf("expr = %T, want *ast.Call", exprStmt.X)
	}
}

func TestParseMissingBraceReportsSyntaxError(t *testing.T) {
	toks := lexer.NewScanner(`workspace Build {`).ScanTokens()
	_, d := NewParser(toks, "bad.stage", `workspace Build {`).Parse()
	if d == nil {
		t.Fatalf("expected a syntax error for an unterminated workspace body")
	}
	if d.Kind != "SyntaxError" {
		t.Fatalf("diagnostic kind = %q, want SyntaxError", d.Kind)
	}
}

func TestParseReturnWithNoValue(t *testing.T) {
	script := parse(t, `stage s() { return }`)
	stage := script.Body[0].(*ast.Stage)
	ret := stage.Body[0].(*ast.Return)
	if ret.Value != nil {
		t.Fatalf("expected nil return value, got %#v", ret.Value)
	}
}

func TestParseNestedWorkspaceContainsProjectAndStage(t *testing.T) {
	script := parse(t, `
		workspace Build {
			project Site { name = "docs" }
			stage compile() { return 1 }
		}
	`)
	ws := script.Body[0].(*ast.Workspace)
	if len(ws.Body) != 2 {
		t.Fatalf("workspace body len = %d, want 2", len(ws.Body))
	}
	if _, ok := ws.Body[0].(*ast.Project); !ok {
		t.Fatalf("body[0] = %T, want *ast.Project", ws.Body[0])
	}
	if _, ok := ws.Body[1].(*ast.Stage); !ok {
		t.Fatalf("body[1] = %T, want *ast.Stage", ws.Body[1])
	}
}
