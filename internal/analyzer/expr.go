package analyzer

import (
	"mainstage/internal/ast"
	"mainstage/internal/diag"
	"mainstage/internal/symtab"
	"mainstage/internal/types"
)

func (a *Analyzer) VisitIdent(n *ast.Ident) (any, error) {
	sym := a.table.Latest(n.Name)
	if sym == nil {
		return types.DynamicKind, nil
	}
	a.table.RecordUsage(n.Name, a.file, n.Position().Line, n.Position().Column, n.Position().Span)
	if sym.Inferred != nil {
		return *sym.Inferred, nil
	}
	if sym.SymKind == symtab.Object {
		return types.New(types.Object), nil
	}
	if sym.SymKind == symtab.Function {
		if sym.ReturnKind != nil {
			return *sym.ReturnKind, nil
		}
	}
	return types.DynamicKind, nil
}

func (a *Analyzer) VisitIntLit(n *ast.IntLit) (any, error) {
	return types.New(types.Integer), nil
}

func (a *Analyzer) VisitFloatLit(n *ast.FloatLit) (any, error) {
	return types.New(types.Float), nil
}

func (a *Analyzer) VisitBoolLit(n *ast.BoolLit) (any, error) {
	return types.New(types.Boolean), nil
}

func (a *Analyzer) VisitStrLit(n *ast.StrLit) (any, error) {
	return types.New(types.String), nil
}

func (a *Analyzer) VisitNullLit(n *ast.NullLit) (any, error) {
	return types.New(types.Null), nil
}

func (a *Analyzer) VisitList(n *ast.List) (any, error) {
	var elemKind types.InferredKind
	first := true
	for _, e := range n.Elements {
		k, err := a.analyzeExpr(e)
		if err != nil {
			return types.DynamicKind, err
		}
		if first {
			elemKind = k
			first = false
			continue
		}
		unified := types.Unify(elemKind, k)
		if unified.Kind == types.Dynamic && elemKind.Kind != types.Dynamic && k.Kind != types.Dynamic {
			a.table.Diagnose(diag.NewSemanticError("list elements must be homogeneous", a.file, n.Position().Line, n.Position().Column))
		}
		elemKind = unified
	}
	if first {
		return types.NewArray(types.DynamicKind), nil
	}
	return types.NewArray(elemKind), nil
}

func (a *Analyzer) VisitBinaryOp(n *ast.BinaryOp) (any, error) {
	lk, err := a.analyzeExpr(n.Left)
	if err != nil {
		return types.DynamicKind, err
	}
	rk, err := a.analyzeExpr(n.Right)
	if err != nil {
		return types.DynamicKind, err
	}
	switch n.Op {
	case "==", "!=", "<", "<=", ">", ">=":
		return types.New(types.Boolean), nil
	case "&&", "||":
		return types.New(types.Boolean), nil
	default:
		unified := types.Unify(lk, rk)
		if unified.Kind == types.Dynamic && lk.Kind != types.Dynamic && rk.Kind != types.Dynamic {
			// Str + anything is valid (concatenation); anything else
			// non-unifiable and concrete is an error.
			if lk.Kind == types.String || rk.Kind == types.String {
				return types.New(types.String), nil
			}
			a.table.Diagnose(diag.NewSemanticError("incompatible operand kinds for \""+n.Op+"\"", a.file, n.Position().Line, n.Position().Column))
		}
		return unified, nil
	}
}

func (a *Analyzer) VisitUnaryOp(n *ast.UnaryOp) (any, error) {
	k, err := a.analyzeExpr(n.Operand)
	if err != nil {
		return types.DynamicKind, err
	}
	if n.Op == "!" {
		return types.New(types.Boolean), nil
	}
	if !types.IsNumeric(k.Kind) {
		a.table.Diagnose(diag.NewSemanticError("unary \""+n.Op+"\" requires a numeric operand", a.file, n.Position().Line, n.Position().Column))
	}
	return k, nil
}

func (a *Analyzer) VisitCall(n *ast.Call) (any, error) {
	var calleeName string
	if ident, ok := n.Callee.(*ast.Ident); ok {
		calleeName = ident.Name
	}

	if calleeName != "" {
		sym := a.table.Latest(calleeName)
		if sym == nil {
			sym = symtab.NewSymbol(calleeName, symtab.Function, symtab.Global)
			a.table.Insert(sym)
		} else {
			a.table.RecordUsage(calleeName, a.file, n.Position().Line, n.Position().Column, n.Position().Span)
		}
		if a.currentCaller != "" {
			a.edges = append(a.edges, Edge{Caller: a.currentCaller, Callee: calleeName})
		}
		for _, arg := range n.Args {
			if _, err := a.analyzeExpr(arg); err != nil {
				return types.DynamicKind, err
			}
		}
		if sym.ReturnKind != nil {
			return *sym.ReturnKind, nil
		}
		return types.DynamicKind, nil
	}

	if _, err := a.analyzeExpr(n.Callee); err != nil {
		return types.DynamicKind, err
	}
	for _, arg := range n.Args {
		if _, err := a.analyzeExpr(arg); err != nil {
			return types.DynamicKind, err
		}
	}
	return types.DynamicKind, nil
}

func (a *Analyzer) VisitMember(n *ast.Member) (any, error) {
	if ident, ok := n.Object.(*ast.Ident); ok {
		sym := a.table.Latest(ident.Name)
		if sym != nil && sym.SymKind == symtab.Object {
			a.table.RecordUsage(ident.Name, a.file, n.Position().Line, n.Position().Column, n.Position().Span)
			prop := sym.Property(n.Property)
			if prop == nil {
				dyn := types.DynamicKind
				prop = symtab.NewSymbol(n.Property, symtab.Variable, symtab.Local)
				prop.Inferred = &dyn
				sym.SetProperty(n.Property, prop)
				return dyn, nil
			}
			if prop.Inferred != nil {
				return *prop.Inferred, nil
			}
			return types.DynamicKind, nil
		}
	}
	if _, err := a.analyzeExpr(n.Object); err != nil {
		return types.DynamicKind, err
	}
	return types.DynamicKind, nil
}

func (a *Analyzer) VisitIndex(n *ast.Index) (any, error) {
	objKind, err := a.analyzeExpr(n.Object)
	if err != nil {
		return types.DynamicKind, err
	}
	if _, err := a.analyzeExpr(n.IndexE); err != nil {
		return types.DynamicKind, err
	}
	if objKind.Kind == types.Array {
		if objKind.Element != nil {
			return *objKind.Element, nil
		}
		return types.DynamicKind, nil
	}
	return types.DynamicKind, nil
}
