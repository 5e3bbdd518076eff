package analyzer

import (
	"mainstage/internal/ast"
	"mainstage/internal/diag"
	"mainstage/internal/types"
)

// ObjectInfo describes one discovered Workspace or Project.
type ObjectInfo struct {
	NodeID  ast.NodeID
	Name    string
	Members []string
	Parent  *ast.NodeID
}

// FunctionInfo describes one discovered Stage (or entrypoint Workspace,
// which is also compiled into a callable function).
type FunctionInfo struct {
	NodeID     ast.NodeID
	Name       string
	Params     []string
	ReturnKind types.InferredKind
	Captures   []string // always empty: MainStage stages have no closures
}

// ScopeInfo describes one lexical scope discovered during analysis.
type ScopeInfo struct {
	ID       int
	ParentID int // -1 for the root scope
	Owner    string
	Symbols  []string
}

// Edge is one caller->callee relationship in the stage call graph.
type Edge struct {
	Caller string
	Callee string
}

// SchemaVersion is bumped whenever AnalyzerOutput's shape changes in a
// way lowering needs to know about.
const SchemaVersion = 1

// Output is the structured summary passed from the analyzer to lowering.
type Output struct {
	Objects          []ObjectInfo
	Functions        []FunctionInfo
	Scopes           []ScopeInfo
	Edges            []Edge
	EntrypointNodeID ast.NodeID
	HasEntrypoint    bool
	Diagnostics      []*diag.Diagnostic
	SchemaVersion    int
}
