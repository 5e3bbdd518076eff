package vm

import (
	"testing"

	"mainstage/internal/ir"
	"mainstage/internal/plugin"
)

func TestCallLabelRetRoundTrip(t *testing.T) {
	// Function L0: arg0 + 1, returned. Caller: r0=41, r1=CallLabel(L0,[r0]), Halt.
	fn := []ir.Op{
		ir.Label("L0"),
		ir.LLocal(10, 0),
		ir.LConst(11, ir.Int(1)),
		ir.Add(12, 10, 11),
		ir.Ret(12),
	}
	ops := []ir.Op{
		ir.LConst(0, ir.Int(41)),
		ir.CallLabel(1, 0, []uint32{0}),
		ir.Halt(),
	}
	ops = append(ops, fn...)

	m := New(ops, Options{})
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.reg(1); got.Kind != ir.VInt || got.I != 42 {
		t.Fatalf("r1 = %+v, want Int(42)", got)
	}
}

func TestBranchingLoopSumsToTen(t *testing.T) {
	// r0 = 0 (sum), r1 = 0 (i), r2 = 10 (limit)
	// loop: if i >= limit goto end; sum += i; i++; goto loop
	// end: halt
	ops := []ir.Op{
		ir.LConst(0, ir.Int(0)), // 0 sum
		ir.LConst(1, ir.Int(0)), // 1 i
		ir.LConst(2, ir.Int(10)), // 2 limit
		ir.Label("loop"), // 3
		ir.Gte(3, 1, 2),  // 4 r3 = i >= limit
		ir.BrTrue(3, 9),  // 5 -> end (index 9)
		ir.Add(0, 0, 1),  // 6 sum += i
		ir.Inc(1),        // 7 i++
		ir.Jump(3),       // 8 -> loop
		ir.Label("end"),  // 9
		ir.Halt(),        // 10
	}
	m := New(ops, Options{})
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.reg(0); got.Kind != ir.VInt || got.I != 45 {
		t.Fatalf("sum = %+v, want Int(45)", got)
	}
}

type stubPlugin struct{}

func (stubPlugin) Name() string        { return "stub" }
func (stubPlugin) Manifest() *plugin.Manifest { return &plugin.Manifest{Name: "stub"} }
func (stubPlugin) Call(funcName string, args []ir.Value) (ir.Value, error) {
	if funcName == "double" && len(args) == 1 {
		return ir.Int(args[0].I * 2), nil
	}
	return ir.Null(), nil
}

func TestPluginCallDispatchesThroughRegistry(t *testing.T) {
	reg := plugin.NewRegistry()
	reg.Register(stubPlugin{})

	ops := []ir.Op{
		ir.LConst(0, ir.Int(21)),
		ir.PluginCall(1, true, "stub", "double", []uint32{0}),
		ir.Halt(),
	}
	m := New(ops, Options{Plugins: reg})
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.reg(1); got.Kind != ir.VInt || got.I != 42 {
		t.Fatalf("r1 = %+v, want Int(42)", got)
	}
}

func TestPluginCallUnknownPluginIsHardError(t *testing.T) {
	ops := []ir.Op{
		ir.PluginCall(0, true, "nope", "whatever", nil),
		ir.Halt(),
	}
	m := New(ops, Options{Plugins: plugin.NewRegistry()})
	if err := m.Run(); err == nil {
		t.Fatalf("expected error calling unregistered plugin")
	}
}

func TestCallUnknownHostFunctionIsHardError(t *testing.T) {
	ops := []ir.Op{
		ir.LConst(0, ir.Symbol("nonexistent")),
		ir.Call(1, 0, nil),
		ir.Halt(),
	}
	m := New(ops, Options{})
	if err := m.Run(); err == nil {
		t.Fatalf("expected error calling an unknown host function")
	}
}

func TestStepLimitExceeded(t *testing.T) {
	ops := []ir.Op{
		ir.Label("loop"),
		ir.Jump(0),
	}
	m := New(ops, Options{MaxSteps: 5})
	err := m.Run()
	if err == nil {
		t.Fatalf("expected step-limit error")
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("err = %T, want *RuntimeError", err)
	}
}

func TestAddStringConcatenation(t *testing.T) {
	ops := []ir.Op{
		ir.LConst(0, ir.Str("foo")),
		ir.LConst(1, ir.Str("bar")),
		ir.Add(2, 0, 1),
		ir.Halt(),
	}
	m := New(ops, Options{})
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.reg(2); got.S != "foobar" {
		t.Fatalf("r2 = %+v, want Str(foobar)", got)
	}
}

func TestGetPropSetPropPromotion(t *testing.T) {
	ops := []ir.Op{
		ir.LConst(0, ir.Null()),  // r0: starts Null, promoted to object by SetProp
		ir.LConst(1, ir.Str("name")),
		ir.LConst(2, ir.Str("build")),
		ir.SetProp(0, 1, 2), // r0.name = "build"
		ir.GetProp(3, 0, 1), // r3 = r0.name
		ir.Halt(),
	}
	m := New(ops, Options{})
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.reg(3); got.S != "build" {
		t.Fatalf("r3 = %+v, want Str(build)", got)
	}
}

func TestArrayGetSetPromotionAndPadding(t *testing.T) {
	ops := []ir.Op{
		ir.LConst(0, ir.Null()),
		ir.LConst(1, ir.Int(2)),
		ir.LConst(2, ir.Str("third")),
		ir.LConst(5, ir.Int(1)),
		ir.ArraySet(0, 1, 2), // r0[r1=2] = "third", padding indices 0,1 with Null
		ir.ArrayGet(3, 0, 5), // r3 = r0[r5=1] (should be Null, padded)
		ir.ArrayGet(4, 0, 1), // r4 = r0[r1=2] ("third")
		ir.Halt(),
	}
	m := New(ops, Options{})
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.reg(3); got.Kind != ir.VNull {
		t.Fatalf("r3 = %+v, want Null (padding)", got)
	}
	if got := m.reg(4); got.S != "third" {
		t.Fatalf("r4 = %+v, want Str(third)", got)
	}
}

func TestArrayGetOutOfRangeReturnsNull(t *testing.T) {
	ops := []ir.Op{
		ir.ArrayNew(0, nil),
		ir.LConst(1, ir.Int(5)),
		ir.ArrayGet(2, 0, 1),
		ir.Halt(),
	}
	m := New(ops, Options{})
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := m.reg(2); got.Kind != ir.VNull {
		t.Fatalf("out-of-range ArrayGet = %+v, want Null", got)
	}
}
