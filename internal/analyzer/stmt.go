package analyzer

import (
	"mainstage/internal/ast"
	"mainstage/internal/diag"
	"mainstage/internal/symtab"
	"mainstage/internal/types"
)

func (a *Analyzer) VisitScript(n *ast.Script) error {
	return a.analyzeStmts(n.Body)
}

func (a *Analyzer) VisitWorkspace(n *ast.Workspace) error {
	if len(n.Body) == 0 {
		a.table.Diagnose(diag.NewSemanticError("workspace \""+n.Name+"\" has an empty body", a.file, n.Position().Line, n.Position().Column))
	}

	sym := symtab.NewSymbol(n.Name, symtab.Object, symtab.Global)
	a.table.Insert(sym)
	nodeID := n.ID()
	isEntry := n.IsEntrypoint()
	if isEntry || !a.hasEntrypoint {
		a.entrypointNodeID = nodeID
		a.hasEntrypoint = true
		a.table.SetEntrypoint(n.Name)
	}

	prevCaller := a.currentCaller
	a.currentCaller = n.Name
	a.pushObjectScope(n.Name)
	err := a.analyzeStmts(n.Body)
	a.popScope()
	a.currentCaller = prevCaller
	if err != nil {
		return err
	}

	members := make([]string, 0, len(sym.Properties()))
	for _, p := range sym.Properties() {
		members = append(members, p.Name)
	}
	a.objects = append(a.objects, ObjectInfo{NodeID: nodeID, Name: n.Name, Members: members})

	// Entrypoint workspaces are also compiled into a callable function.
	if isEntry || a.entrypointNodeID == nodeID {
		a.functions = append(a.functions, FunctionInfo{
			NodeID:     nodeID,
			Name:       n.Name,
			ReturnKind: types.New(types.Void),
		})
	}
	return nil
}

func (a *Analyzer) VisitProject(n *ast.Project) error {
	if len(n.Body) == 0 {
		a.table.Diagnose(diag.NewSemanticError("project \""+n.Name+"\" has an empty body", a.file, n.Position().Line, n.Position().Column))
	}

	sym := symtab.NewSymbol(n.Name, symtab.Object, symtab.Global)
	a.table.Insert(sym)

	a.pushObjectScope(n.Name)
	for _, stmt := range n.Body {
		if _, ok := stmt.(*ast.Assignment); !ok {
			a.table.Diagnose(diag.NewSemanticError(
				"project body may only contain property assignments", a.file, stmt.Position().Line, stmt.Position().Column))
			continue
		}
		if err := stmt.AcceptStmt(a); err != nil {
			a.popScope()
			return err
		}
	}
	a.popScope()

	members := make([]string, 0, len(sym.Properties()))
	for _, p := range sym.Properties() {
		members = append(members, p.Name)
	}
	a.objects = append(a.objects, ObjectInfo{NodeID: n.ID(), Name: n.Name, Members: members})
	return nil
}

func (a *Analyzer) VisitStage(n *ast.Stage) error {
	if len(n.Body) == 0 {
		a.table.Diagnose(diag.NewSemanticError("stage \""+n.Name+"\" has an empty body", a.file, n.Position().Line, n.Position().Column))
	}

	fnSym := symtab.NewSymbol(n.Name, symtab.Function, symtab.Global)
	fnSym.Params = make([]*symtab.Symbol, 0, len(n.Params))
	for _, p := range n.Params {
		fnSym.Params = append(fnSym.Params, symtab.NewSymbol(p, symtab.Variable, symtab.Local))
	}
	a.table.Insert(fnSym)

	prevCaller := a.currentCaller
	a.currentCaller = n.Name
	a.pushScope(n.Name, a.currentScopeID())
	for _, p := range n.Params {
		a.table.Insert(symtab.NewSymbol(p, symtab.Variable, symtab.Local))
		a.recordScopeSymbol(p)
	}

	a.returnCollectors = append(a.returnCollectors, nil)
	err := a.analyzeStmts(n.Body)
	collected := a.returnCollectors[len(a.returnCollectors)-1]
	a.returnCollectors = a.returnCollectors[:len(a.returnCollectors)-1]

	a.popScope()
	a.currentCaller = prevCaller
	if err != nil {
		return err
	}

	returnKind := types.New(types.Void)
	if len(collected) > 0 {
		returnKind = types.UnifyAll(collected)
	}
	fnSym.ReturnKind = &returnKind

	a.functions = append(a.functions, FunctionInfo{
		NodeID:     n.ID(),
		Name:       n.Name,
		Params:     n.Params,
		ReturnKind: returnKind,
	})
	return nil
}

func (a *Analyzer) currentScopeID() int {
	if len(a.scopeStack) == 0 {
		return -1
	}
	return a.scopeStack[len(a.scopeStack)-1]
}

func (a *Analyzer) VisitBlock(n *ast.Block) error {
	if len(n.Statements) == 0 {
		a.table.Diagnose(diag.NewSemanticError("empty block", a.file, n.Position().Line, n.Position().Column))
	}
	a.pushScope("", a.currentScopeID())
	err := a.analyzeStmts(n.Statements)
	a.popScope()
	return err
}

func (a *Analyzer) VisitIf(n *ast.If) error {
	if err := a.checkCondition(n.Cond); err != nil {
		return err
	}
	if len(n.Then) == 0 {
		a.table.Diagnose(diag.NewSemanticError("empty if body", a.file, n.Position().Line, n.Position().Column))
	}
	a.pushScope("", a.currentScopeID())
	err := a.analyzeStmts(n.Then)
	a.popScope()
	return err
}

func (a *Analyzer) VisitIfElse(n *ast.IfElse) error {
	if err := a.checkCondition(n.Cond); err != nil {
		return err
	}
	if len(n.Then) == 0 || len(n.Else) == 0 {
		a.table.Diagnose(diag.NewSemanticError("empty if/else body", a.file, n.Position().Line, n.Position().Column))
	}
	a.pushScope("", a.currentScopeID())
	err := a.analyzeStmts(n.Then)
	a.popScope()
	if err != nil {
		return err
	}
	a.pushScope("", a.currentScopeID())
	err = a.analyzeStmts(n.Else)
	a.popScope()
	return err
}

func (a *Analyzer) VisitWhile(n *ast.While) error {
	if err := a.checkCondition(n.Cond); err != nil {
		return err
	}
	if len(n.Body) == 0 {
		a.table.Diagnose(diag.NewSemanticError("empty while body", a.file, n.Position().Line, n.Position().Column))
	}
	a.pushScope("", a.currentScopeID())
	err := a.analyzeStmts(n.Body)
	a.popScope()
	return err
}

func (a *Analyzer) checkCondition(cond ast.Expr) error {
	k, err := a.analyzeExpr(cond)
	if err != nil {
		return err
	}
	if k.Kind != types.Boolean && k.Kind != types.Dynamic {
		a.table.Diagnose(diag.NewSemanticError("condition must be Boolean", a.file, 0, 0))
	}
	return nil
}

func (a *Analyzer) VisitForIn(n *ast.ForIn) error {
	iterableKind, err := a.analyzeExpr(n.Iterable)
	if err != nil {
		return err
	}
	elemKind := types.DynamicKind
	if iterableKind.Kind == types.Array && iterableKind.Element != nil {
		elemKind = *iterableKind.Element
	}
	if len(n.Body) == 0 {
		a.table.Diagnose(diag.NewSemanticError("empty for-in body", a.file, n.Position().Line, n.Position().Column))
	}
	a.pushScope("", a.currentScopeID())
	iterSym := symtab.NewSymbol(n.Iterator, symtab.Variable, symtab.Local)
	iterSym.Inferred = &elemKind
	a.table.Insert(iterSym)
	a.recordScopeSymbol(n.Iterator)
	err = a.analyzeStmts(n.Body)
	a.popScope()
	return err
}

func (a *Analyzer) VisitForTo(n *ast.ForTo) error {
	a.pushScope("", a.currentScopeID())
	if n.Initializer != nil {
		if err := n.Initializer.AcceptStmt(a); err != nil {
			a.popScope()
			return err
		}
	}
	limitKind, err := a.analyzeExpr(n.Limit)
	if err != nil {
		a.popScope()
		return err
	}
	if !types.IsNumeric(limitKind.Kind) {
		a.table.Diagnose(diag.NewSemanticError("for-to limit must be numeric", a.file, n.Position().Line, n.Position().Column))
	}
	if len(n.Body) == 0 {
		a.table.Diagnose(diag.NewSemanticError("empty for-to body", a.file, n.Position().Line, n.Position().Column))
	}
	err = a.analyzeStmts(n.Body)
	a.popScope()
	return err
}

func (a *Analyzer) VisitReturn(n *ast.Return) error {
	var kind types.InferredKind
	if n.Value != nil {
		k, err := a.analyzeExpr(n.Value)
		if err != nil {
			return err
		}
		kind = k
	} else {
		kind = types.New(types.Void)
	}
	if len(a.returnCollectors) > 0 {
		top := len(a.returnCollectors) - 1
		a.returnCollectors[top] = append(a.returnCollectors[top], kind)
	}
	return nil
}

func (a *Analyzer) VisitAssignment(n *ast.Assignment) error {
	valueKind, err := a.analyzeExpr(n.Value)
	if err != nil {
		return err
	}

	switch target := n.Target.(type) {
	case *ast.Ident:
		if objName, ok := a.table.CurrentObjectName(); ok {
			objSym := a.table.Latest(objName)
			if objSym != nil {
				a.assignProperty(objSym, target.Name, valueKind)
				return nil
			}
		}
		existing := a.table.Latest(target.Name)
		if existing == nil {
			sym := symtab.NewSymbol(target.Name, symtab.Variable, symtab.Local)
			sym.Inferred = &valueKind
			a.table.Insert(sym)
			a.recordScopeSymbol(target.Name)
			return nil
		}
		if existing.Inferred == nil || existing.Inferred.Kind == types.Dynamic {
			existing.Inferred = &valueKind
			return nil
		}
		if !types.Compatible(*existing.Inferred, valueKind) {
			a.table.Diagnose(diag.NewSemanticError(
				"incompatible assignment to \""+target.Name+"\"", a.file, n.Position().Line, n.Position().Column))
		}
		return nil
	case *ast.Member:
		if _, err := a.analyzeExpr(target.Object); err != nil {
			return err
		}
		if ident, ok := target.Object.(*ast.Ident); ok {
			if objSym := a.table.Latest(ident.Name); objSym != nil && objSym.SymKind == symtab.Object {
				a.assignProperty(objSym, target.Property, valueKind)
			}
		}
		return nil
	case *ast.Index:
		_, err := a.analyzeExpr(target.Object)
		return err
	default:
		a.table.Diagnose(diag.NewSemanticError("invalid assignment target", a.file, n.Position().Line, n.Position().Column))
		return nil
	}
}

func (a *Analyzer) assignProperty(obj *symtab.Symbol, name string, kind types.InferredKind) {
	existing := obj.Property(name)
	if existing == nil {
		sym := symtab.NewSymbol(name, symtab.Variable, symtab.Local)
		sym.Inferred = &kind
		obj.SetProperty(name, sym)
		return
	}
	if existing.Inferred == nil || existing.Inferred.Kind == types.Dynamic {
		existing.Inferred = &kind
		return
	}
	if !types.Compatible(*existing.Inferred, kind) {
		a.table.Diagnose(diag.NewSemanticError("incompatible property assignment to \""+name+"\"", a.file, 0, 0))
	}
}

func (a *Analyzer) VisitExprStmt(n *ast.ExprStmt) error {
	_, err := a.analyzeExpr(n.X)
	return err
}

func (a *Analyzer) VisitInclude(n *ast.Include) error { return nil }

func (a *Analyzer) VisitImport(n *ast.Import) error {
	sym := symtab.NewSymbol(n.Name, symtab.Variable, symtab.Global)
	dyn := types.DynamicKind
	sym.Inferred = &dyn
	a.table.Insert(sym)
	return nil
}
