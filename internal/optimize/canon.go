package optimize

import (
	"fmt"

	"mainstage/internal/ir"
)

// ConstCanon merges duplicate LConst loads of an equal scalar value into a
// single canonical register. Only registers written exactly once take
// part, so once a duplicate's uses are remapped to the canonical register
// that remapping holds for the rest of the module. Like ConstProp, it
// starts a fresh scope at every Label. Array and Object constants are
// never merged: their Go-side backing storage is mutable, and
// canonicalizing them would let a SetProp or ArraySet through one alias
// bleed into the other.
func ConstCanon(m *ir.Module) {
	seen := make(map[string]uint32)
	remap := make(map[uint32]uint32)
	drop := make([]bool, len(m.Ops))

	writes := make(map[uint32]int)
	for _, op := range m.Ops {
		if dest, ok := op.WritesReg(); ok {
			writes[dest]++
		}
		switch op.Code {
		case ir.OpInc, ir.OpDec, ir.OpSetProp, ir.OpArraySet:
			writes[op.Dest]++
		}
	}

	for i, op := range m.Ops {
		if op.Code == ir.OpLabel {
			// Constants loaded in one function must not canonicalize
			// against constants loaded in another; registers are
			// function-local after FunctionBuilder.FinalizeInto, so a
			// fresh canon scope starts at every label boundary.
			seen = make(map[string]uint32)
		}
		if op.Code != ir.OpLConst || writes[op.Dest] > 1 {
			continue
		}
		key, ok := canonKey(op.Const)
		if !ok {
			continue
		}
		if canonical, dup := seen[key]; dup {
			remap[op.Dest] = canonical
			drop[i] = true
			continue
		}
		seen[key] = op.Dest
	}

	if len(remap) == 0 {
		return
	}
	for i, op := range m.Ops {
		m.Ops[i] = remapUses(op, remap)
	}
	for reg, canonical := range remap {
		if m.External[reg] {
			m.External[canonical] = true
			delete(m.External, reg)
		}
	}
	m.CompactRemoving(drop)
}

// canonKey returns a comparable key for scalar constant values eligible
// for canonicalization, and false for Array/Object values.
func canonKey(v ir.Value) (string, bool) {
	switch v.Kind {
	case ir.VNull:
		return "null", true
	case ir.VBool:
		return fmt.Sprintf("b:%v", v.B), true
	case ir.VInt:
		return fmt.Sprintf("i:%d", v.I), true
	case ir.VFloat:
		return fmt.Sprintf("f:%g", v.F), true
	case ir.VStr:
		return "s:" + v.S, true
	case ir.VSymbol:
		return "y:" + v.S, true
	default:
		return "", false
	}
}

// remapUses rewrites every register an op reads through remap. Write
// destinations are left untouched; ArraySet/SetProp's Dest field is a
// read of the target container, so it is remapped alongside Src/Src2.
func remapUses(op ir.Op, remap map[uint32]uint32) ir.Op {
	get := func(r uint32) uint32 {
		if n, ok := remap[r]; ok {
			return n
		}
		return r
	}
	switch op.Code {
	case ir.OpSLocal:
		op.Src = get(op.Src)
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte, ir.OpAnd, ir.OpOr:
		op.Src = get(op.Src)
		op.Src2 = get(op.Src2)
	case ir.OpNot:
		op.Src = get(op.Src)
	case ir.OpBrTrue, ir.OpBrFalse:
		op.Src = get(op.Src)
	case ir.OpRet:
		op.Src = get(op.Src)
	case ir.OpCall:
		op.FuncReg = get(op.FuncReg)
		op.Args = remapSlice(op.Args, remap)
	case ir.OpCallLabel, ir.OpPluginCall:
		op.Args = remapSlice(op.Args, remap)
	case ir.OpArrayNew:
		op.Elems = remapSlice(op.Elems, remap)
	case ir.OpArrayGet:
		op.Src = get(op.Src)
		op.Src2 = get(op.Src2)
	case ir.OpArraySet:
		op.Dest = get(op.Dest)
		op.Src2 = get(op.Src2)
		op.Src = get(op.Src)
	case ir.OpGetProp:
		op.Src = get(op.Src)
		op.Src2 = get(op.Src2)
	case ir.OpSetProp:
		op.Dest = get(op.Dest)
		op.Src2 = get(op.Src2)
		op.Src = get(op.Src)
	case ir.OpLoadGlobal:
		op.Src = get(op.Src)
	}
	return op
}

func remapSlice(regs []uint32, remap map[uint32]uint32) []uint32 {
	if len(regs) == 0 {
		return regs
	}
	out := make([]uint32, len(regs))
	for i, r := range regs {
		if n, ok := remap[r]; ok {
			out[i] = n
		} else {
			out[i] = r
		}
	}
	return out
}
