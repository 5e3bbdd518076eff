package bytecode

import (
	"reflect"
	"testing"

	"mainstage/internal/ir"
)

func buildSampleModule() *ir.Module {
	m := ir.NewModule()
	m.EmitOp(ir.LConst(0, ir.Int(42)))
	m.EmitOp(ir.LConst(1, ir.Float(3.5)))
	m.EmitOp(ir.LConst(2, ir.Str("hi")))
	m.EmitOp(ir.LConst(3, ir.Bool(true)))
	m.EmitOp(ir.LConst(4, ir.Null()))
	arr := ir.Array([]ir.Value{ir.Int(1), ir.Str("x")})
	m.EmitOp(ir.LConst(5, arr))
	obj := ir.NewObject()
	obj.SetProp("k", ir.Int(7))
	m.EmitOp(ir.LConst(6, obj))
	m.EmitOp(ir.Add(7, 0, 0))
	m.EmitOp(ir.Label("loop"))
	m.EmitOp(ir.Jump(9))
	m.EmitOp(ir.BrFalse(7, 11))
	m.EmitOp(ir.ArrayNew(8, []uint32{0, 1}))
	m.EmitOp(ir.GetProp(9, 6, 2))
	m.EmitOp(ir.SetProp(6, 2, 0))
	m.EmitOp(ir.PluginCall(10, true, "db", "query", []uint32{0}))
	m.EmitOp(ir.Call(11, 0, []uint32{1, 2}))
	m.EmitOp(ir.CallLabel(12, 1, []uint32{0}))
	m.EmitOp(ir.Ret(0))
	m.EmitOp(ir.Halt())
	m.PatchUnresolvedBranches()
	return m
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := buildSampleModule()
	encoded := Encode(m)

	if string(encoded[:4]) != "MSBC" {
		t.Fatalf("expected magic MSBC, got %q", encoded[:4])
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if !reflect.DeepEqual(decoded, m.Ops) {
		t.Fatalf("round-trip mismatch:\n got  %+v\n want %+v", decoded, m.Ops)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte("XXXX\x01\x00\x00\x00\x00\x00\x00\x00"))
	if err == nil {
		t.Fatalf("expected bad-magic error")
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	m := ir.NewModule()
	m.EmitOp(ir.Halt())
	encoded := Encode(m)
	// Corrupt the version field (bytes 4..8).
	encoded[4] = 9
	_, err := Decode(encoded)
	if err == nil {
		t.Fatalf("expected unsupported-version error")
	}
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	m := ir.NewModule()
	m.EmitOp(ir.Label("ok"))
	encoded := Encode(m)
	// Flip a byte inside the label's name payload to an invalid UTF-8
	// continuation byte; offset 17 is the first string byte, after the
	// 12-byte header, 1-byte opcode tag, and 4-byte length prefix.
	encoded[17] = 0xFF
	_, err := Decode(encoded)
	if err == nil {
		t.Fatalf("expected invalid-UTF-8 decode error")
	}
}

func TestDecodeRejectsUnknownOpcode(t *testing.T) {
	m := ir.NewModule()
	m.EmitOp(ir.Halt())
	encoded := Encode(m)
	encoded[12] = 0xEE // overwrite the Halt opcode tag with a bogus value
	_, err := Decode(encoded)
	if err == nil {
		t.Fatalf("expected unknown-opcode decode error")
	}
}
