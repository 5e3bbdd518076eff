package optimize

import "mainstage/internal/ir"

// ConstFold is a second, narrower propagation pass run after ConstProp.
// It repeats ConstProp's register-constant forward folding (binary ops,
// Not, GetProp, ArrayGet) over the ops ConstProp already rewrote, without
// tracking local slots, and forgets every known constant at each Label;
// it then drops LConsts whose destinations are never read.
func ConstFold(m *ir.Module) {
	regConst := make(map[uint32]ir.Value)

	for i, op := range m.Ops {
		switch op.Code {
		case ir.OpLabel:
			regConst = make(map[uint32]ir.Value)

		case ir.OpLConst:
			regConst[op.Dest] = op.Const

		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
			ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte, ir.OpAnd, ir.OpOr:
			if op.Dest == op.Src || op.Dest == op.Src2 {
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
