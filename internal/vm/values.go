package vm

import "mainstage/internal/ir"

// addValues implements Add: Str on either side concatenates (other
// operand stringified); Int+Int stays Int; otherwise coerces through f64.
func addValues(a, b ir.Value) ir.Value {
	if a.Kind == ir.VStr || b.Kind == ir.VStr {
		return ir.Str(a.ToString() + b.ToString())
	}
	if a.Kind == ir.VInt && b.Kind == ir.VInt {
		return ir.Int(a.I + b.I)
	}
	af, aok := a.ToNumber()
	bf, bok := b.ToNumber()
	if aok && bok {
		return ir.Float(af + bf)
	}
	return ir.Null()
}

// arithValues implements Sub/Mul/Div/Mod. Div on two Ints stays Int only
// when evenly divisible, else promotes to Float. Mod requires both Int
// and a non-zero divisor, else Null.
func arithValues(code ir.OpCode, a, b ir.Value) ir.Value {
	if code == ir.OpMod {
		if a.Kind == ir.VInt && b.Kind == ir.VInt && b.I != 0 {
			return ir.Int(a.I % b.I)
		}
		return ir.Null()
	}
	if a.Kind == ir.VInt && b.Kind == ir.VInt {
		switch code {
		case ir.OpSub:
			return ir.Int(a.I - b.I)
		case ir.OpMul:
			return ir.Int(a.I * b.I)
		case ir.OpDiv:
			if b.I == 0 {
				return ir.Null()
			}
			if a.I%b.I == 0 {
				return ir.Int(a.I / b.I)
			}
			return ir.Float(float64(a.I) / float64(b.I))
		}
	}
	af, aok := a.ToNumber()
	bf, bok := b.ToNumber()
	if !aok || !bok {
		return ir.Null()
	}
	switch code {
	case ir.OpSub:
		return ir.Float(af - bf)
	case ir.OpMul:
		return ir.Float(af * bf)
	case ir.OpDiv:
		if bf == 0 {
			return ir.Null()
		}
		return ir.Float(af / bf)
	default:
		return ir.Null()
	}
}

// compareValues implements Lt/Lte/Gt/Gte: numeric ordering when both
// sides coerce to a number, else Bool(false).
func compareValues(code ir.OpCode, a, b ir.Value) ir.Value {
	af, aok := a.ToNumber()
	bf, bok := b.ToNumber()
	if !aok || !bok {
		return ir.Bool(false)
	}
	switch code {
	case ir.OpLt:
		return ir.Bool(af < bf)
	case ir.OpLte:
		return ir.Bool(af <= bf)
	case ir.OpGt:
		return ir.Bool(af > bf)
	case ir.OpGte:
		return ir.Bool(af >= bf)
	default:
		return ir.Bool(false)
	}
}

// getProp implements GetProp: Object lookup by key, Array/Str "length",
// Null otherwise.
func getProp(container, key ir.Value) ir.Value {
	switch container.Kind {
	case ir.VObject:
		return container.GetProp(key.S)
	case ir.VArray:
		if key.S == "length" {
			return ir.Int(int64(len(container.Arr)))
		}
		return ir.Null()
	case ir.VStr:
		if key.S == "length" {
			return ir.Int(int64(len([]rune(container.S))))
		}
		return ir.Null()
	default:
		return ir.Null()
	}
}

// setProp implements SetProp: a non-Object target is promoted in place
// to an Object holding the single key/value being assigned.
func setProp(target, key, val ir.Value) ir.Value {
	if target.Kind != ir.VObject {
		target = ir.NewObject()
	}
	target.SetProp(key.S, val)
	return target
}

// arrayGet implements ArrayGet: an out-of-range Int index is non-fatal,
// returning Null.
func arrayGet(arr, idx ir.Value) ir.Value {
	if arr.Kind != ir.VArray || idx.Kind != ir.VInt {
		return ir.Null()
	}
	if idx.I < 0 || int(idx.I) >= len(arr.Arr) {
		return ir.Null()
	}
	return arr.Arr[idx.I]
}

// arraySet implements ArraySet: a non-Array target is promoted to an
// Array, and the backing slice grows (Null-padded) to fit idx.
func arraySet(target, idx, val ir.Value) ir.Value {
	if target.Kind != ir.VArray {
		target = ir.Array(nil)
	}
	if idx.Kind != ir.VInt || idx.I < 0 {
		return target
	}
	for int64(len(target.Arr)) <= idx.I {
		target.Arr = append(target.Arr, ir.Null())
	}
	target.Arr[idx.I] = val
	return target
}
