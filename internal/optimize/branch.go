package optimize

import "mainstage/internal/ir"

// BranchCompact removes noop branches, then compacts the op stream.
// A Jump, BrTrue, or BrFalse whose Target is exactly the following op's
// index has no effect: a Jump to pc+1 falls through anyway, and a
// conditional branch to pc+1 reaches the same next instruction whichever
// way the condition resolves. Dropping them shrinks every function that
// carries loop-exit scaffolding the earlier passes didn't need to touch.
// CompactRemoving does the index-remapping compaction step in the same
// call, so the pipeline never carries stale targets between passes.
func BranchCompact(m *ir.Module) {
	drop := make([]bool, len(m.Ops))
	for i, op := range m.Ops {
		if op.IsBranch() && int(op.Target) == i+1 {
			drop[i] = true
		}
	}
	m.CompactRemoving(drop)
}
