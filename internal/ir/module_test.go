package ir

import "testing"

func TestAllocRegMonotonic(t *testing.T) {
	m := NewModule()
	a := m.AllocReg()
	b := m.AllocReg()
	if b != a+1 {
		t.Fatalf("expected monotonic registers, got %d then %d", a, b)
	}
}

func TestDeclareFunctionDenseOneBased(t *testing.T) {
	m := NewModule()
	id := m.DeclareFunction("f")
	if id != 1 {
		t.Fatalf("expected first function id 1, got %d", id)
	}
	if m.FunctionNames[id-1] != "f" {
		t.Fatalf("expected name at index id-1, got %q", m.FunctionNames[id-1])
	}
}

func TestPatchUnresolvedBranches(t *testing.T) {
	m := NewModule()
	jumpIdx := m.EmitOp(Jump(0))
	m.RecordUnresolvedBranch(jumpIdx, "after")
	m.EmitOp(Label("after"))
	m.PatchUnresolvedBranches()

	if m.Ops[jumpIdx].Target != 1 {
		t.Fatalf("expected jump target 1, got %d", m.Ops[jumpIdx].Target)
	}
}

func TestPatchFallbackScansForward(t *testing.T) {
	m := NewModule()
	jumpIdx := m.EmitOp(BrFalse(0, 0)) // target left at zero, not recorded
	m.EmitOp(LConst(0, Int(1)))
	m.EmitOp(Label("after"))
	m.PatchUnresolvedBranches()

	if m.Ops[jumpIdx].Target != 2 {
		t.Fatalf("expected fallback target 2, got %d", m.Ops[jumpIdx].Target)
	}
}

func TestMarkExternal(t *testing.T) {
	m := NewModule()
	m.MarkExternal(3)
	if !m.External[3] {
		t.Fatal("expected register 3 marked external")
	}
}
