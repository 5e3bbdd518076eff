package ir

import (
	"testing"

	"mainstage/internal/ast"
)

func p() ast.Pos { return ast.Pos{} }

func TestLowerForInOverStaticList(t *testing.T) {
	ast.ResetIDs()
	project := ast.NewProject(p(), "proj", []ast.Stmt{
		ast.NewAssignment(p(), ast.NewIdent(p(), "sources"), ast.NewList(p(), []ast.Expr{ast.NewStrLit(p(), "a")})),
	})
	stage := ast.NewStage(p(), "f", []string{"prj"}, []ast.Stmt{
		ast.NewReturn(p(), nil),
	})
	workspace := ast.NewWorkspace(p(), "w", []ast.Attribute{{Name: "entrypoint"}}, []ast.Stmt{
		ast.NewAssignment(p(), ast.NewIdent(p(), "items"), ast.NewList(p(), []ast.Expr{ast.NewIdent(p(), "proj")})),
		ast.NewForIn(p(), "x", ast.NewIdent(p(), "items"), []ast.Stmt{
			ast.NewExprStmt(p(), ast.NewCall(p(), ast.NewIdent(p(), "f"), []ast.Expr{ast.NewIdent(p(), "x")})),
		}),
	})
	script := ast.NewScript(p(), []ast.Stmt{project, stage, workspace})

	m, err := Lower(script, workspace.ID(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawArrayNew, sawGetLen, sawCallLabel, sawArrayGet bool
	for _, op := range m.Ops {
		switch op.Code {
		case OpArrayNew:
			sawArrayNew = true
		case OpGetProp:
			sawGetLen = true
		case OpCallLabel:
			sawCallLabel = true
		case OpArrayGet:
			sawArrayGet = true
		}
	}
	if !sawArrayNew || !sawGetLen || !sawCallLabel || !sawArrayGet {
		t.Fatalf("expected ArrayNew+GetProp+ArrayGet+CallLabel in lowered ops, got %d ops", len(m.Ops))
	}

	for i, op := range m.Ops {
		if op.IsBranch() {
			if int(op.Target) < 0 || int(op.Target) >= len(m.Ops) {
				t.Fatalf("op %d: branch target %d out of range [0,%d)", i, op.Target, len(m.Ops))
			}
		}
		if op.Code == OpCallLabel {
			name := "L" + itoa(int(op.LabelIndex))
			if _, ok := m.LabelIndex(name); !ok {
				t.Fatalf("CallLabel target %q has no emitted Label", name)
			}
		}
	}
}

func TestLowerStageWithWhileLoop(t *testing.T) {
	ast.ResetIDs()
	stage := ast.NewStage(p(), "count", nil, []ast.Stmt{
		ast.NewAssignment(p(), ast.NewIdent(p(), "i"), ast.NewIntLit(p(), 0)),
		ast.NewWhile(p(), ast.NewBinaryOp(p(), ast.NewIdent(p(), "i"), "<", ast.NewIntLit(p(), 3)), []ast.Stmt{
			ast.NewAssignment(p(), ast.NewIdent(p(), "i"), ast.NewBinaryOp(p(), ast.NewIdent(p(), "i"), "+", ast.NewIntLit(p(), 1))),
		}),
		ast.NewReturn(p(), ast.NewIdent(p(), "i")),
	})
	script := ast.NewScript(p(), []ast.Stmt{stage})

	m, err := Lower(script, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawBrFalse, sawJump, sawRet bool
	for _, op := range m.Ops {
		switch op.Code {
		case OpBrFalse:
			sawBrFalse = true
		case OpJump:
			sawJump = true
		case OpRet:
			sawRet = true
		}
	}
	if !sawBrFalse || !sawJump || !sawRet {
		t.Fatalf("expected a while loop to lower to BrFalse/Jump/Ret, got brFalse=%v jump=%v ret=%v", sawBrFalse, sawJump, sawRet)
	}
	for i, op := range m.Ops {
		if op.IsBranch() && int(op.Target) >= len(m.Ops) {
			t.Fatalf("op %d: branch target %d out of range (len %d)", i, op.Target, len(m.Ops))
		}
	}
}

func TestLowerStageWithIfElse(t *testing.T) {
	ast.ResetIDs()
	stage := ast.NewStage(p(), "pick", []string{"x"}, []ast.Stmt{
		ast.NewIfElse(p(),
			ast.NewBinaryOp(p(), ast.NewIdent(p(), "x"), ">", ast.NewIntLit(p(), 0)),
			[]ast.Stmt{ast.NewReturn(p(), ast.NewIntLit(p(), 1))},
			[]ast.Stmt{ast.NewReturn(p(), ast.NewIntLit(p(), -1))},
		),
	})
	script := ast.NewScript(p(), []ast.Stmt{stage})

	m, err := Lower(script, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	retCount := 0
	for _, op := range m.Ops {
		if op.Code == OpRet {
			retCount++
		}
	}
	if retCount != 2 {
		t.Fatalf("expected both if/else branches to lower their own Ret, got %d", retCount)
	}
}

func TestLowerStageWithForTo(t *testing.T) {
	ast.ResetIDs()
	init := ast.NewAssignment(p(), ast.NewIdent(p(), "i"), ast.NewIntLit(p(), 0))
	stage := ast.NewStage(p(), "loop", nil, []ast.Stmt{
		ast.NewForTo(p(), init, ast.NewBinaryOp(p(), ast.NewIdent(p(), "i"), "<", ast.NewIntLit(p(), 5)), []ast.Stmt{
			ast.NewExprStmt(p(), ast.NewCall(p(), ast.NewIdent(p(), "say"), []ast.Expr{ast.NewIdent(p(), "i")})),
		}),
	})
	script := ast.NewScript(p(), []ast.Stmt{stage})

	m, err := Lower(script, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sawInc bool
	for _, op := range m.Ops {
		if op.Code == OpInc {
			sawInc = true
		}
	}
	if !sawInc {
		t.Fatalf("expected ForTo to lower its implicit increment to OpInc")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
