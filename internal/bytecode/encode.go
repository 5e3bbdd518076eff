// Package bytecode implements the MSBC binary codec: a little-endian,
// tagged encoding of an ir.Module's op stream, and its inverse decode.
package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"mainstage/internal/ir"
)

const (
	magic         = "MSBC"
	formatVersion = uint32(1)
)

// Encode serializes m's op stream into the MSBC wire format. Callers must
// run m.PatchUnresolvedBranches() first; Encode does not patch branches
// itself, it only writes whatever Target/LabelIndex values are already on
// each op.
func Encode(m *ir.Module) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	writeU32(&buf, formatVersion)
	writeU32(&buf, uint32(len(m.Ops)))

	for _, op := range m.Ops {
		encodeOp(&buf, op)
	}
	return buf.Bytes()
}

func encodeOp(buf *bytes.Buffer, op ir.Op) {
	buf.WriteByte(byte(op.Code))

	switch op.Code {
	case ir.OpLConst:
		writeU32(buf, op.Dest)
		encodeValue(buf, op.Const)

	case ir.OpLLocal:
		writeU32(buf, op.Dest)
		writeU32(buf, op.Local)
	case ir.OpSLocal:
		writeU32(buf, op.Src)
		writeU32(buf, op.Local)

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte, ir.OpAnd, ir.OpOr:
		writeU32(buf, op.Dest)
		writeU32(buf, op.Src)
		writeU32(buf, op.Src2)

	case ir.OpNot:
		writeU32(buf, op.Dest)
		writeU32(buf, op.Src)
	case ir.OpInc, ir.OpDec:
		writeU32(buf, op.Dest)

	case ir.OpLabel:
		writeString(buf, op.Name)
	case ir.OpJump:
		writeU32(buf, op.Target)
	case ir.OpBrTrue, ir.OpBrFalse:
		writeU32(buf, op.Src)
		writeU32(buf, op.Target)

	case ir.OpHalt:
		// no payload

	case ir.OpCall:
		writeU32(buf, op.Dest)
		writeU32(buf, op.FuncReg)
		writeU32(buf, uint32(len(op.Args)))
		for _, a := range op.Args {
			writeU32(buf, a)
		}
	case ir.OpCallLabel:
		writeU32(buf, op.Dest)
		writeU32(buf, op.LabelIndex)
		writeU32(buf, uint32(len(op.Args)))
		for _, a := range op.Args {
			writeU32(buf, a)
		}
	case ir.OpPluginCall:
		writeString(buf, op.PluginName)
		writeString(buf, op.FuncName)
		writeU32(buf, uint32(len(op.Args)))
		for _, a := range op.Args {
			writeU32(buf, a)
		}
		if op.HasDest {
			writeU32(buf, 1)
			writeU32(buf, op.Dest)
		} else {
			writeU32(buf, 0)
		}

	case ir.OpRet:
		writeU32(buf, op.Src)

	case ir.OpArrayNew:
		writeU32(buf, op.Dest)
		writeU32(buf, uint32(len(op.Elems)))
		for _, e := range op.Elems {
			writeU32(buf, e)
		}
	case ir.OpArrayGet:
		writeU32(buf, op.Dest)
		writeU32(buf, op.Src)
		writeU32(buf, op.Src2)
	case ir.OpArraySet:
		writeU32(buf, op.Dest)
		writeU32(buf, op.Src2)
		writeU32(buf, op.Src)
	case ir.OpGetProp:
		writeU32(buf, op.Dest)
		writeU32(buf, op.Src)
		writeU32(buf, op.Src2)
	case ir.OpSetProp:
		writeU32(buf, op.Dest)
		writeU32(buf, op.Src2)
		writeU32(buf, op.Src)
	case ir.OpLoadGlobal:
		writeU32(buf, op.Dest)
		writeU32(buf, op.Src)

	default:
		panic(fmt.Sprintf("bytecode: encode: unhandled opcode 0x%02x", byte(op.Code)))
	}
}

func encodeValue(buf *bytes.Buffer, v ir.Value) {
	switch v.Kind {
	case ir.VInt:
		buf.WriteByte(0x01)
		writeU64(buf, uint64(v.I))
	case ir.VFloat:
		buf.WriteByte(0x02)
		writeU64(buf, math.Float64bits(v.F))
	case ir.VBool:
		buf.WriteByte(0x03)
		if v.B {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case ir.VStr:
		buf.WriteByte(0x04)
		writeString(buf, v.S)
	case ir.VSymbol:
		buf.WriteByte(0x05)
		writeString(buf, v.S)
	case ir.VArray:
		buf.WriteByte(0x06)
		writeU32(buf, uint32(len(v.Arr)))
		for _, e := range v.Arr {
			encodeValue(buf, e)
		}
	case ir.VNull:
		buf.WriteByte(0x07)
	case ir.VObject:
		buf.WriteByte(0x08)
		writeU32(buf, uint32(len(v.ObjOrder)))
		for _, k := range v.ObjOrder {
			writeString(buf, k)
			encodeValue(buf, v.Obj[k])
		}
	default:
		panic(fmt.Sprintf("bytecode: encode: unhandled value kind %d", v.Kind))
	}
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}
