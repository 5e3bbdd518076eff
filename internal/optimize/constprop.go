package optimize

import "mainstage/internal/ir"

// ConstProp is a single forward pass tracking reg->constant and
// local->constant maps. It replaces LLocal loads of a known-constant
// local with LConst, folds binary ops and Not over known-constant
// operands, and folds GetProp/ArrayGet when both container and key/index
// are compile-time constants. Mappings are invalidated on unknown writes
// or at Label ops (function boundaries). Self-referential updates
// (`r = r op c`) are never folded — they are loop-carried. A trailing
// liveness scan removes LConst ops whose destinations are never read.
func ConstProp(m *ir.Module) {
	regConst := make(map[uint32]ir.Value)
	localConst := make(map[uint32]ir.Value)

	for i, op := range m.Ops {
		switch op.Code {
		case ir.OpLabel:
			regConst = make(map[uint32]ir.Value)
			localConst = make(map[uint32]ir.Value)

		case ir.OpLConst:
			regConst[op.Dest] = op.Const

		case ir.OpLLocal:
			if v, ok := localConst[op.Local]; ok {
				m.Ops[i] = ir.LConst(op.Dest, v)
				regConst[op.Dest] = v
			} else {
				delete(regConst, op.Dest)
			}

		case ir.OpSLocal:
			if v, ok := regConst[op.Src]; ok {
				localConst[op.Local] = v
			} else {
				delete(localConst, op.Local)
			}

		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
			ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte, ir.OpAnd, ir.OpOr:
			if op.Dest == op.Src || op.Dest == op.Src2 {
				// Self-referential update; never folded here.
				delete(regConst, op.Dest)
				continue
			}
			v1, ok1 := regConst[op.Src]
			v2, ok2 := regConst[op.Src2]
			if ok1 && ok2 {
				if folded, ok := foldBinary(op.Code, v1, v2); ok {
					m.Ops[i] = ir.LConst(op.Dest, folded)
					regConst[op.Dest] = folded
					continue
				}
			}
			delete(regConst, op.Dest)

		case ir.OpNot:
			if v, ok := regConst[op.Src]; ok && op.Dest != op.Src {
				folded := ir.Bool(!v.IsTruthy())
				m.Ops[i] = ir.LConst(op.Dest, folded)
				regConst[op.Dest] = folded
				continue
			}
			delete(regConst, op.Dest)

		case ir.OpGetProp:
			if container, ok := regConst[op.Src]; ok && container.Kind == ir.VObject {
				if key, ok2 := regConst[op.Src2]; ok2 && (key.Kind == ir.VSymbol || key.Kind == ir.VStr) {
					folded := container.GetProp(key.S)
					m.Ops[i] = ir.LConst(op.Dest, folded)
					regConst[op.Dest] = folded
					continue
				}
			}
			delete(regConst, op.Dest)

		case ir.OpArrayGet:
			if arr, ok := regConst[op.Src]; ok && arr.Kind == ir.VArray {
				if idx, ok2 := regConst[op.Src2]; ok2 && idx.Kind == ir.VInt {
					var folded ir.Value
					if idx.I >= 0 && int(idx.I) < len(arr.Arr) {
						folded = arr.Arr[idx.I]
					} else {
						folded = ir.Null()
					}
					m.Ops[i] = ir.LConst(op.Dest, folded)
					regConst[op.Dest] = folded
					continue
				}
			}
			delete(regConst, op.Dest)

		default:
			if dest, ok := op.WritesReg(); ok {
				delete(regConst, dest)
			}
		}
	}

	removeDeadLConsts(m)
}

func foldBinary(code ir.OpCode, a, b ir.Value) (ir.Value, bool) {
	switch code {
	case ir.OpAdd:
		return foldAdd(a, b)
	case ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod:
		return foldArith(code, a, b)
	case ir.OpEq:
		return ir.Bool(ir.ValuesEqual(a, b)), true
	case ir.OpNeq:
		return ir.Bool(!ir.ValuesEqual(a, b)), true
	case ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte:
		return foldCompare(code, a, b)
	case ir.OpAnd:
		return ir.Bool(a.IsTruthy() && b.IsTruthy()), true
	case ir.OpOr:
		return ir.Bool(a.IsTruthy() || b.IsTruthy()), true
	default:
		return ir.Value{}, false
	}
}

func foldAdd(a, b ir.Value) (ir.Value, bool) {
	if a.Kind == ir.VStr || b.Kind == ir.VStr {
		return ir.Str(a.ToString() + b.ToString()), true
	}
	if a.Kind == ir.VInt && b.Kind == ir.VInt {
		return ir.Int(a.I + b.I), true
	}
	af, aok := a.ToNumber()
	bf, bok := b.ToNumber()
	if aok && bok {
		return ir.Float(af + bf), true
	}
	return ir.Value{}, false
}

func foldArith(code ir.OpCode, a, b ir.Value) (ir.Value, bool) {
	if code == ir.OpMod {
		if a.Kind == ir.VInt && b.Kind == ir.VInt {
			if b.I == 0 {
				return ir.Null(), true
			}
			return ir.Int(a.I % b.I), true
		}
		return ir.Null(), true
	}
	if a.Kind == ir.VInt && b.Kind == ir.VInt {
		switch code {
		case ir.OpSub:
			return ir.Int(a.I - b.I), true
		case ir.OpMul:
			return ir.Int(a.I * b.I), true
		case ir.OpDiv:
			if b.I == 0 {
				return ir.Null(), true
			}
			if a.I%b.I == 0 {
				return ir.Int(a.I / b.I), true
			}
			return ir.Float(float64(a.I) / float64(b.I)), true
		}
	}
	af, aok := a.ToNumber()
	bf, bok := b.ToNumber()
	if !aok || !bok {
		return ir.Value{}, false
	}
	switch code {
	case ir.OpSub:
		return ir.Float(af - bf), true
	case ir.OpMul:
		return ir.Float(af * bf), true
	case ir.OpDiv:
		if bf == 0 {
			return ir.Null(), true
		}
		return ir.Float(af / bf), true
	default:
		return ir.Value{}, false
	}
}

func foldCompare(code ir.OpCode, a, b ir.Value) (ir.Value, bool) {
	af, aok := a.ToNumber()
	bf, bok := b.ToNumber()
	if !aok || !bok {
		return ir.Bool(false), true
	}
	switch code {
	case ir.OpLt:
		return ir.Bool(af < bf), true
	case ir.OpLte:
		return ir.Bool(af <= bf), true
	case ir.OpGt:
		return ir.Bool(af > bf), true
	case ir.OpGte:
		return ir.Bool(af >= bf), true
	default:
		return ir.Bool(false), true
	}
}

// removeDeadLConsts drops LConst ops whose destination register is never
// read anywhere else in the module and is not externally visible. Branch
// targets are remapped through CompactRemoving so the module stays
// internally consistent after ops shift.
func removeDeadLConsts(m *ir.Module) {
	read := make(map[uint32]bool)
	for _, op := range m.Ops {
		for _, r := range op.ReadsRegs() {
			read[r] = true
		}
	}
	drop := make([]bool, len(m.Ops))
	for i, op := range m.Ops {
		if op.Code == ir.OpLConst && !read[op.Dest] && !m.External[op.Dest] {
			drop[i] = true
		}
	}
	m.CompactRemoving(drop)
}
