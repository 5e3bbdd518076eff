// Package analyzer implements MainStage's semantic analysis: it walks a
// parsed Script, builds a scoped symbol table, infers kinds, validates
// structural invariants, and produces the Output lowering consumes.
package analyzer

import (
	"mainstage/internal/ast"
	"mainstage/internal/diag"
	"mainstage/internal/symtab"
	"mainstage/internal/types"
)

// Analyzer walks a Script and accumulates symbols, diagnostics, and the
// descriptive Output lowering needs. It implements both ast.ExprVisitor
// and ast.StmtVisitor.
type Analyzer struct {
	table *symtab.Table
	file  string

	objects   []ObjectInfo
	functions []FunctionInfo
	edges     []Edge

	scopes     []ScopeInfo
	scopeIDSeq int
	scopeStack []int

	// currentCaller names the enclosing Stage/entrypoint Workspace while
	// walking its body, for call-graph edge collection. Empty outside any
	// such body (e.g. while analyzing a Project).
	currentCaller string

	// returnCollectors is a stack of accumulators; VisitReturn appends the
	// kind of its value to the top entry, if any is active.
	returnCollectors [][]types.InferredKind

	entrypointNodeID ast.NodeID
	hasEntrypoint    bool

	firstErr error
}

// Analyze walks root and returns the chosen entrypoint name (empty if
// none) together with the structured Output. optionalTable lets a caller
// reuse a pre-seeded table (e.g. with builtins already inserted); a nil
// table gets a fresh one.
func Analyze(root *ast.Script, file string, optionalTable *symtab.Table) (string, *Output, error) {
	tab := optionalTable
	if tab == nil {
		tab = symtab.New()
	}
	a := &Analyzer{table: tab, file: file}
	a.pushScope("", -1)

	for _, stmt := range root.Body {
		switch n := stmt.(type) {
		case *ast.Workspace, *ast.Project, *ast.Stage:
			if err := n.AcceptStmt(a); err != nil {
				return "", nil, err
			}
		default:
			a.table.Diagnose(diag.NewSemanticError(
				"top-level statement must be a workspace, project, or stage", file, 0, 0))
		}
	}

	a.popScope()

	entrypointName, _ := a.table.Entrypoint()

	out := &Output{
		Objects:          a.objects,
		Functions:        a.functions,
		Scopes:           a.scopes,
		Edges:            a.edges,
		EntrypointNodeID: a.entrypointNodeID,
		HasEntrypoint:    a.hasEntrypoint,
		Diagnostics:      append(a.table.TakeDiagnostics()),
		SchemaVersion:    SchemaVersion,
	}
	return entrypointName, out, a.firstErr
}

func (a *Analyzer) pushScope(owner string, parent int) int {
	id := a.scopeIDSeq
	a.scopeIDSeq++
	a.scopes = append(a.scopes, ScopeInfo{ID: id, ParentID: parent, Owner: owner})
	a.scopeStack = append(a.scopeStack, id)
	a.table.EnterScope()
	return id
}

func (a *Analyzer) pushObjectScope(name string) int {
	id := a.scopeIDSeq
	a.scopeIDSeq++
	parent := -1
	if len(a.scopeStack) > 0 {
		parent = a.scopeStack[len(a.scopeStack)-1]
	}
	a.scopes = append(a.scopes, ScopeInfo{ID: id, ParentID: parent, Owner: name})
	a.scopeStack = append(a.scopeStack, id)
	a.table.EnterObjectScope(name)
	return id
}

func (a *Analyzer) popScope() {
	if len(a.scopeStack) == 0 {
		return
	}
	a.scopeStack = a.scopeStack[:len(a.scopeStack)-1]
	a.table.ExitScope(a.file)
}

func (a *Analyzer) recordScopeSymbol(name string) {
	if len(a.scopes) == 0 {
		return
	}
	top := &a.scopes[len(a.scopes)-1]
	top.Symbols = append(top.Symbols, name)
}

// analyzeExpr runs e through the visitor and type-asserts the result back
// to an InferredKind, defaulting to Dynamic on a nil result.
func (a *Analyzer) analyzeExpr(e ast.Expr) (types.InferredKind, error) {
	if e == nil {
		return types.New(types.Null), nil
	}
	res, err := e.AcceptExpr(a)
	if err != nil {
		return types.DynamicKind, err
	}
	if k, ok := res.(types.InferredKind); ok {
		return k, nil
	}
	return types.DynamicKind, nil
}

func (a *Analyzer) analyzeStmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := s.AcceptStmt(a); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) errorf(loc ast.Pos, msg string) error {
	d := diag.NewSemanticError(msg, a.file, loc.Line, loc.Column)
	a.table.Diagnose(d)
	return nil
}

func (a *Analyzer) fatalf(loc ast.Pos, msg string) error {
	d := diag.NewSemanticError(msg, a.file, loc.Line, loc.Column)
	a.table.Diagnose(d)
	return d
}
