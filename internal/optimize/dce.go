package optimize

import "mainstage/internal/ir"

// DCE is a single backward liveness pass. A register is live if it is
// externally visible (plugin-call boundary) or read by some op later in
// program order; an op whose only effect is writing a dead register, and
// which is not side-effecting in its own right (Call, CallLabel,
// PluginCall, SetProp, ArraySet, CStore, branches, Ret, Halt, Label,
// Inc/Dec), is dropped. An SLocal is kept when some LLocal in the module
// reads its slot.
//
// Liveness is computed as a single linear backward scan rather than a
// fixed-point over a control-flow graph: MainStage's register allocator
// never hands out a destination twice, so a register's liveness window
// is contiguous from its last read back to its definition regardless of
// intervening branches, and one backward pass already sees every later
// read before it reaches the defining op. A register that is written
// more than once (an in-place loop update such as Add(idx, idx, one))
// can be read earlier in program order by a loop head, so every op
// writing such a register is kept.
func DCE(m *ir.Module) {
	live := make(map[uint32]bool, len(m.External))
	for r := range m.External {
		live[r] = true
	}

	writes := make(map[uint32]int)
	readSlots := make(map[uint32]bool)
	for _, op := range m.Ops {
		if dest, ok := op.WritesReg(); ok {
			writes[dest]++
		}
		if op.Code == ir.OpLLocal {
			readSlots[op.Local] = true
		}
	}

	drop := make([]bool, len(m.Ops))
	for i := len(m.Ops) - 1; i >= 0; i-- {
		op := m.Ops[i]
		dest, hasDest := op.WritesReg()

		keep := op.IsSideEffecting() ||
			(hasDest && (live[dest] || writes[dest] > 1)) ||
			(op.Code == ir.OpSLocal && readSlots[op.Local])
		if !keep {
			drop[i] = true
			continue
		}
		if hasDest {
			delete(live, dest)
		}
		for _, r := range op.ReadsRegs() {
			live[r] = true
		}
	}

	m.CompactRemoving(drop)
}
