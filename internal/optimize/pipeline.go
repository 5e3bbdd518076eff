// Package optimize implements MainStage's IR optimizer pipeline: forward
// constant propagation, a narrower constant-folding pass, backward
// dead-code elimination, constant canonicalization, and noop-branch
// elision/target compaction. Every pass is re-entrant and must leave the
// module patched and consistent (branch targets resolved, in range).
package optimize

import "mainstage/internal/ir"

// Pass is one optimization stage. It mutates m in place.
type Pass struct {
	Name string
	Run  func(m *ir.Module)
}

// Pipeline runs its Passes in order.
type Pipeline struct {
	Passes []Pass
}

// Default returns the pipeline spec.md §4.5 describes, in order.
func Default() Pipeline {
	return Pipeline{Passes: []Pass{
		{Name: "const_prop", Run: ConstProp},
		{Name: "const_fold", Run: ConstFold},
		{Name: "dce", Run: DCE},
		{Name: "const_canon", Run: ConstCanon},
		{Name: "branch_compact", Run: BranchCompact},
	}}
}

// Run applies every pass to m in order.
func (p Pipeline) Run(m *ir.Module) {
	for _, pass := range p.Passes {
		pass.Run(m)
	}
}
