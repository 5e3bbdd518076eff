package ir

import (
	"fmt"

	"mainstage/internal/ast"
)

var hostBuiltins = map[string]bool{
	"say": true, "read": true, "ask": true, "write": true, "fmt": true,
}

// LoweringContext carries the bookkeeping Lower needs across its passes:
// node-id -> function/object id maps, name -> register bindings for
// declared objects, and bound-list bindings used while desugaring
// module-level ForIn loops.
type LoweringContext struct {
	module *Module

	funcIDs map[ast.NodeID]int
	objIDs  map[ast.NodeID]int

	funcNameToID map[string]int
	objNameToReg map[string]uint32

	listArrays map[ast.NodeID]uint32 // node id (assignment target) -> bound register

	importNames map[string]bool // names declared via `import` — Member calls on these lower to PluginCall
}

func newLoweringContext(m *Module) *LoweringContext {
	return &LoweringContext{
		module:       m,
		funcIDs:      make(map[ast.NodeID]int),
		objIDs:       make(map[ast.NodeID]int),
		funcNameToID: make(map[string]int),
		objNameToReg: make(map[string]uint32),
		listArrays:   make(map[ast.NodeID]uint32),
		importNames:  make(map[string]bool),
	}
}

// Lower translates a validated Script into a finalized IR Module.
// entrypointNodeID/hasEntrypoint identify the workspace chosen by the
// analyzer as the program's entry, matching AnalyzerOutput's fields.
func Lower(script *ast.Script, entrypointNodeID ast.NodeID, hasEntrypoint bool) (*Module, error) {
	m := NewModule()
	lc := newLoweringContext(m)

	for _, stmt := range script.Body {
		if imp, ok := stmt.(*ast.Import); ok {
			lc.importNames[imp.Name] = true
		}
	}

	// Pass 1: projects.
	for _, stmt := range script.Body {
		p, ok := stmt.(*ast.Project)
		if !ok {
			continue
		}
		if err := lc.lowerProject(p); err != nil {
			return nil, err
		}
	}

	// Pass 2: declare stages.
	for _, stmt := range script.Body {
		s, ok := stmt.(*ast.Stage)
		if !ok {
			continue
		}
		id := m.DeclareFunction(s.Name)
		lc.funcIDs[s.ID()] = id
		lc.funcNameToID[s.Name] = id
	}

	// Pass 3: declare the entrypoint workspace as a function too, and give
	// every workspace its own property-bag object register.
	for _, stmt := range script.Body {
		w, ok := stmt.(*ast.Workspace)
		if !ok {
			continue
		}
		objID := m.DeclareObject(w.Name)
		reg := m.AllocReg()
		lc.objIDs[w.ID()] = objID
		lc.objNameToReg[w.Name] = reg
		m.EmitOp(LConst(reg, NewObject()))

		if hasEntrypoint && w.ID() == entrypointNodeID {
			id := m.DeclareFunction(w.Name)
			lc.funcIDs[w.ID()] = id
			lc.funcNameToID[w.Name] = id
		}
	}

	// Stage bodies are emitted ahead of the entrypoint body and the VM
	// starts at op 0, so jump over them to the entrypoint's Label.
	if id, ok := lc.funcIDs[entrypointNodeID]; hasEntrypoint && ok {
		j := m.EmitOp(Jump(0))
		m.RecordUnresolvedBranch(j, fmt.Sprintf("L%d", id-1))
	}

	// Pass 4: lower stage bodies.
	for _, stmt := range script.Body {
		s, ok := stmt.(*ast.Stage)
		if !ok {
			continue
		}
		if err := lc.lowerStage(s); err != nil {
			return nil, err
		}
	}

	// Pass 5: lower the entrypoint workspace body, directly at module
	// level (it runs exactly once, at module start).
	for _, stmt := range script.Body {
		w, ok := stmt.(*ast.Workspace)
		if !ok || !hasEntrypoint || w.ID() != entrypointNodeID {
			continue
		}
		funcID := lc.funcIDs[w.ID()]
		m.EmitOp(Label(fmt.Sprintf("L%d", funcID-1)))
		if err := lc.lowerWorkspaceBody(w); err != nil {
			return nil, err
		}
		m.EmitOp(Halt())
	}

	m.PatchUnresolvedBranches()
	m.EmitOp(Halt())
	return m, nil
}

func (lc *LoweringContext) lowerProject(p *ast.Project) error {
	m := lc.module
	objID := m.DeclareObject(p.Name)
	reg := m.AllocReg()
	lc.objIDs[p.ID()] = objID
	lc.objNameToReg[p.Name] = reg
	m.EmitOp(LConst(reg, NewObject()))

	for _, stmt := range p.Body {
		assign, ok := stmt.(*ast.Assignment)
		if !ok {
			continue
		}
		ident, ok := assign.Target.(*ast.Ident)
		if !ok {
			continue
		}
		valReg, err := lc.lowerModuleExpr(assign.Value)
		if err != nil {
			return err
		}
		keyReg := m.AllocReg()
		m.EmitOp(LConst(keyReg, Symbol(ident.Name)))
		m.EmitOp(SetProp(reg, keyReg, valReg))
	}
	return nil
}

// lowerModuleExpr lowers an expression directly at module level (used by
// project bodies and the entrypoint workspace body, both of which run
// once and share the module's flat register space).
func (lc *LoweringContext) lowerModuleExpr(e ast.Expr) (uint32, error) {
	m := lc.module
	switch n := e.(type) {
	case *ast.IntLit:
		r := m.AllocReg()
		m.EmitOp(LConst(r, Int(n.Value)))
		return r, nil
	case *ast.FloatLit:
		r := m.AllocReg()
		m.EmitOp(LConst(r, Float(n.Value)))
		return r, nil
	case *ast.BoolLit:
		r := m.AllocReg()
		m.EmitOp(LConst(r, Bool(n.Value)))
		return r, nil
	case *ast.StrLit:
		r := m.AllocReg()
		m.EmitOp(LConst(r, Str(n.Value)))
		return r, nil
	case *ast.NullLit:
		r := m.AllocReg()
		m.EmitOp(LConst(r, Null()))
		return r, nil
	case *ast.Ident:
		if reg, ok := lc.objNameToReg[n.Name]; ok {
			return reg, nil
		}
		r := m.AllocReg()
		m.EmitOp(LConst(r, Symbol(n.Name)))
		return r, nil
	case *ast.List:
		return lc.lowerModuleList(n)
	case *ast.BinaryOp:
		l, err := lc.lowerModuleExpr(n.Left)
		if err != nil {
			return 0, err
		}
		r, err := lc.lowerModuleExpr(n.Right)
		if err != nil {
			return 0, err
		}
		dest := m.AllocReg()
		m.EmitOp(binaryOpOf(n.Op, dest, l, r))
		return dest, nil
	case *ast.Member:
		objReg, err := lc.lowerModuleExpr(n.Object)
		if err != nil {
			return 0, err
		}
		keyReg := m.AllocReg()
		m.EmitOp(LConst(keyReg, Symbol(n.Property)))
		dest := m.AllocReg()
		m.EmitOp(GetProp(dest, objReg, keyReg))
		return dest, nil
	case *ast.Index:
		objReg, err := lc.lowerModuleExpr(n.Object)
		if err != nil {
			return 0, err
		}
		idxReg, err := lc.lowerModuleExpr(n.IndexE)
		if err != nil {
			return 0, err
		}
		dest := m.AllocReg()
		m.EmitOp(ArrayGet(dest, objReg, idxReg))
		return dest, nil
	case *ast.Call:
		return lc.lowerModuleCall(n)
	default:
		r := m.AllocReg()
		m.EmitOp(LConst(r, Null()))
		return r, nil
	}
}

func (lc *LoweringContext) lowerModuleList(n *ast.List) (uint32, error) {
	m := lc.module
	elemRegs := make([]uint32, 0, len(n.Elements))
	allConst := true
	for _, el := range n.Elements {
		switch el.(type) {
		case *ast.IntLit, *ast.FloatLit, *ast.BoolLit, *ast.StrLit, *ast.NullLit:
		default:
			allConst = false
		}
		r, err := lc.lowerModuleExpr(el)
		if err != nil {
			return 0, err
		}
		elemRegs = append(elemRegs, r)
	}
	dest := m.AllocReg()
	if allConst {
		// The constant values already live behind LConst ops; ArrayNew
		// is still used to assemble them into one array value since our
		// Value representation has no separate "known-constant register"
		// bookkeeping at this stage (the optimizer's const-prop pass adds
		// that later).
		m.EmitOp(ArrayNew(dest, elemRegs))
		return dest, nil
	}
	m.EmitOp(ArrayNew(dest, elemRegs))
	return dest, nil
}

func (lc *LoweringContext) lowerModuleCall(n *ast.Call) (uint32, error) {
	m := lc.module
	if member, ok := n.Callee.(*ast.Member); ok {
		if ident, ok2 := member.Object.(*ast.Ident); ok2 && lc.importNames[ident.Name] {
			return lc.lowerPluginCall(ident.Name, member.Property, n.Args)
		}
	}
	ident, ok := n.Callee.(*ast.Ident)
	if !ok {
		dest := m.AllocReg()
		m.EmitOp(LConst(dest, Null()))
		return dest, nil
	}
	args := make([]uint32, 0, len(n.Args))
	for _, a := range n.Args {
		r, err := lc.lowerModuleExpr(a)
		if err != nil {
			return 0, err
		}
		args = append(args, r)
	}
	dest := m.AllocReg()
	if hostBuiltins[ident.Name] {
		funcReg := m.AllocReg()
		m.EmitOp(LConst(funcReg, Symbol(ident.Name)))
		m.EmitOp(Call(dest, funcReg, args))
		return dest, nil
	}
	if id, ok := lc.funcNameToID[ident.Name]; ok {
		m.EmitOp(CallLabel(dest, uint32(id-1), args))
		return dest, nil
	}
	// Any other name is neither a host builtin nor a stage declared so
	// far, so it goes out as a host-style Call; the VM rejects a name that
	// is not a host builtin at run time.
	funcReg := m.AllocReg()
	m.EmitOp(LConst(funcReg, Symbol(ident.Name)))
	m.EmitOp(Call(dest, funcReg, args))
	return dest, nil
}

func (lc *LoweringContext) lowerPluginCall(pluginName, funcName string, argExprs []ast.Expr) (uint32, error) {
	m := lc.module
	args := make([]uint32, 0, len(argExprs))
	for _, a := range argExprs {
		r, err := lc.lowerModuleExpr(a)
		if err != nil {
			return 0, err
		}
		m.MarkExternal(r)
		args = append(args, r)
	}
	dest := m.AllocReg()
	m.MarkExternal(dest)
	m.EmitOp(PluginCall(dest, true, pluginName, funcName, args))
	return dest, nil
}

func binaryOpOf(op string, dest, l, r uint32) Op {
	switch op {
	case "+":
		return Add(dest, l, r)
	case "-":
		return Sub(dest, l, r)
	case "*":
		return Mul(dest, l, r)
	case "/":
		return Div(dest, l, r)
	case "%":
		return Mod(dest, l, r)
	case "==":
		return Eq(dest, l, r)
	case "!=":
		return Neq(dest, l, r)
	case "<":
		return Lt(dest, l, r)
	case "<=":
		return Lte(dest, l, r)
	case ">":
		return Gt(dest, l, r)
	case ">=":
		return Gte(dest, l, r)
	case "&&":
		return And(dest, l, r)
	case "||":
		return Or(dest, l, r)
	default:
		return Add(dest, l, r)
	}
}

// lowerWorkspaceBody lowers the entrypoint workspace's statements,
// directly into the module's flat op stream. Direct `ident = expr`
// assignments are treated as the workspace's own properties (matching
// the analyzer's object-declaration-body rule); `ident = [idents...]`
// bindings to already-declared objects are recorded for ForIn desugaring.
func (lc *LoweringContext) lowerWorkspaceBody(w *ast.Workspace) error {
	objReg := lc.objNameToReg[w.Name]
	vars := make(map[string]uint32)

	var lowerStmts func(stmts []ast.Stmt) error
	var lowerExpr func(e ast.Expr) (uint32, error)

	lowerExpr = func(e ast.Expr) (uint32, error) {
		if ident, ok := e.(*ast.Ident); ok {
			if reg, ok2 := vars[ident.Name]; ok2 {
				return reg, nil
			}
		}
		return lc.lowerModuleExpr(e)
	}

	lowerStmts = func(stmts []ast.Stmt) error {
		m := lc.module
		for _, stmt := range stmts {
			switch n := stmt.(type) {
			case *ast.Assignment:
				ident, ok := n.Target.(*ast.Ident)
				if !ok {
					if _, err := lowerExpr(n.Value); err != nil {
						return err
					}
					continue
				}
				if list, ok := n.Value.(*ast.List); ok && isIdentList(list) {
					reg, err := lc.bindIdentList(list)
					if err != nil {
						return err
					}
					lc.listArrays[n.ID()] = reg
					vars[ident.Name] = reg
					continue
				}
				valReg, err := lowerExpr(n.Value)
				if err != nil {
					return err
				}
				if _, isVar := vars[ident.Name]; isVar {
					vars[ident.Name] = valReg
					continue
				}
				keyReg := m.AllocReg()
				m.EmitOp(LConst(keyReg, Symbol(ident.Name)))
				m.EmitOp(SetProp(objReg, keyReg, valReg))
				vars[ident.Name] = valReg
			case *ast.ExprStmt:
				if _, err := lowerExpr(n.X); err != nil {
					return err
				}
			case *ast.ForIn:
				if err := lc.lowerModuleForIn(n, vars); err != nil {
					return err
				}
			case *ast.If:
				condReg, err := lowerExpr(n.Cond)
				if err != nil {
					return err
				}
				afterLabel := fmt.Sprintf("if_after_%d", m.labelSeq)
				m.labelSeq++
				idx := m.EmitOp(BrFalse(condReg, 0))
				m.RecordUnresolvedBranch(idx, afterLabel)
				if err := lowerStmts(n.Then); err != nil {
					return err
				}
				m.EmitOp(Label(afterLabel))
			case *ast.IfElse:
				condReg, err := lowerExpr(n.Cond)
				if err != nil {
					return err
				}
				elseLabel := fmt.Sprintf("if_else_%d", m.labelSeq)
				afterLabel := fmt.Sprintf("if_after_%d", m.labelSeq)
				m.labelSeq++
				idx := m.EmitOp(BrFalse(condReg, 0))
				m.RecordUnresolvedBranch(idx, elseLabel)
				if err := lowerStmts(n.Then); err != nil {
					return err
				}
				jidx := m.EmitOp(Jump(0))
				m.RecordUnresolvedBranch(jidx, afterLabel)
				m.EmitOp(Label(elseLabel))
				if err := lowerStmts(n.Else); err != nil {
					return err
				}
				m.EmitOp(Label(afterLabel))
			case *ast.While:
				headLabel := fmt.Sprintf("while_head_%d", m.labelSeq)
				afterLabel := fmt.Sprintf("while_after_%d", m.labelSeq)
				m.labelSeq++
				m.EmitOp(Label(headLabel))
				condReg, err := lowerExpr(n.Cond)
				if err != nil {
					return err
				}
				idx := m.EmitOp(BrFalse(condReg, 0))
				m.RecordUnresolvedBranch(idx, afterLabel)
				if err := lowerStmts(n.Body); err != nil {
					return err
				}
				jidx := m.EmitOp(Jump(0))
				m.RecordUnresolvedBranch(jidx, headLabel)
				m.EmitOp(Label(afterLabel))
			case *ast.ForTo:
				if err := lowerStmts([]ast.Stmt{n.Initializer}); err != nil {
					return err
				}
				headLabel := fmt.Sprintf("forto_head_%d", m.labelSeq)
				afterLabel := fmt.Sprintf("forto_after_%d", m.labelSeq)
				m.labelSeq++
				m.EmitOp(Label(headLabel))
				limitReg, err := lowerExpr(n.Limit)
				if err != nil {
					return err
				}
				idx := m.EmitOp(BrFalse(limitReg, 0))
				m.RecordUnresolvedBranch(idx, afterLabel)
				if err := lowerStmts(n.Body); err != nil {
					return err
				}
				if ident, ok := assignmentIdent(n.Initializer); ok {
					if reg, ok2 := vars[ident]; ok2 {
						m.EmitOp(Inc(reg))
					}
				}
				jidx := m.EmitOp(Jump(0))
				m.RecordUnresolvedBranch(jidx, headLabel)
				m.EmitOp(Label(afterLabel))
			default:
				// Return/Include/Import/etc. have no effect at workspace
				// scope; nothing to lower.
			}
		}
		return nil
	}

	return lowerStmts(w.Body)
}

// assignmentIdent extracts the target identifier name from a bare
// `ident = expr` statement, used by ForTo to find its loop variable for
// the implicit per-iteration increment.
func assignmentIdent(s ast.Stmt) (string, bool) {
	assign, ok := s.(*ast.Assignment)
	if !ok {
		return "", false
	}
	ident, ok := assign.Target.(*ast.Ident)
	if !ok {
		return "", false
	}
	return ident.Name, true
}

func isIdentList(list *ast.List) bool {
	for _, e := range list.Elements {
		if _, ok := e.(*ast.Ident); !ok {
			return false
		}
	}
	return true
}

func (lc *LoweringContext) bindIdentList(list *ast.List) (uint32, error) {
	m := lc.module
	elemRegs := make([]uint32, 0, len(list.Elements))
	for _, e := range list.Elements {
		ident := e.(*ast.Ident)
		if reg, ok := lc.objNameToReg[ident.Name]; ok {
			elemRegs = append(elemRegs, reg)
			continue
		}
		r := m.AllocReg()
		m.EmitOp(LConst(r, Symbol(ident.Name)))
		elemRegs = append(elemRegs, r)
	}
	dest := m.AllocReg()
	m.EmitOp(ArrayNew(dest, elemRegs))
	return dest, nil
}

// lowerModuleForIn desugars `for x in arr { body }` at module level into
// an index-based loop over a bound array register, calling a synthesized
// wrapper function once per element.
func (lc *LoweringContext) lowerModuleForIn(n *ast.ForIn, vars map[string]uint32) error {
	m := lc.module

	var arrReg uint32
	if ident, ok := n.Iterable.(*ast.Ident); ok {
		if reg, ok2 := vars[ident.Name]; ok2 {
			arrReg = reg
		} else if reg, ok2 := lc.objNameToReg[ident.Name]; ok2 {
			arrReg = reg
		} else {
			r, err := lc.lowerModuleExpr(n.Iterable)
			if err != nil {
				return err
			}
			arrReg = r
		}
	} else {
		r, err := lc.lowerModuleExpr(n.Iterable)
		if err != nil {
			return err
		}
		arrReg = r
	}

	wrapperName := fmt.Sprintf("__forin_wrapper_%d", m.labelSeq)
	m.labelSeq++
	wrapperID := m.DeclareFunction(wrapperName)

	// The wrapper body is emitted inline; jump over it so it only runs
	// through the CallLabel below.
	skipLabel := wrapperName + "_skip"
	skip := m.EmitOp(Jump(0))
	m.RecordUnresolvedBranch(skip, skipLabel)

	fb := NewFunctionBuilder(m)
	fb.DeclareLocal(n.Iterator)
	fb.EmitOp(Label(fmt.Sprintf("L%d", wrapperID-1)))
	if err := lowerWrapperBody(fb, n.Body, lc.funcNameToID); err != nil {
		return err
	}
	nullReg := fb.AllocReg()
	fb.EmitOp(LConst(nullReg, Null()))
	fb.EmitOp(Ret(nullReg))
	fb.FinalizeInto(m)
	m.EmitOp(Label(skipLabel))

	idxReg := m.AllocReg()
	m.EmitOp(LConst(idxReg, Int(0)))
	lenKeyReg := m.AllocReg()
	m.EmitOp(LConst(lenKeyReg, Symbol("length")))
	lenReg := m.AllocReg()
	m.EmitOp(GetProp(lenReg, arrReg, lenKeyReg))

	loopLabel := fmt.Sprintf("forin_loop_%d", m.labelSeq)
	afterLabel := fmt.Sprintf("forin_after_%d", m.labelSeq)
	m.labelSeq++

	m.EmitOp(Label(loopLabel))
	cmpReg := m.AllocReg()
	m.EmitOp(Lt(cmpReg, idxReg, lenReg))
	brIdx := m.EmitOp(BrFalse(cmpReg, 0))
	m.RecordUnresolvedBranch(brIdx, afterLabel)

	itemReg := m.AllocReg()
	m.EmitOp(ArrayGet(itemReg, arrReg, idxReg))
	dest := m.AllocReg()
	m.EmitOp(CallLabel(dest, uint32(wrapperID-1), []uint32{itemReg}))

	oneReg := m.AllocReg()
	m.EmitOp(LConst(oneReg, Int(1)))
	m.EmitOp(Add(idxReg, idxReg, oneReg))

	jidx := m.EmitOp(Jump(0))
	m.RecordUnresolvedBranch(jidx, loopLabel)
	m.EmitOp(Label(afterLabel))
	return nil
}

// lowerWrapperBody lowers a stage body or a for-in wrapper body into fb.
// Names the caller bound with fb.DeclareLocal (stage parameters, the
// for-in iterator) emit LLocal when referenced.
func lowerWrapperBody(fb *FunctionBuilder, body []ast.Stmt, funcNameToID map[string]int) error {
	var lowerStmts func(stmts []ast.Stmt) error
	var lowerExpr func(e ast.Expr) (uint32, error)

	lowerExpr = func(e ast.Expr) (uint32, error) {
		switch n := e.(type) {
		case *ast.IntLit:
			r := fb.AllocReg()
			fb.EmitOp(LConst(r, Int(n.Value)))
			return r, nil
		case *ast.FloatLit:
			r := fb.AllocReg()
			fb.EmitOp(LConst(r, Float(n.Value)))
			return r, nil
		case *ast.BoolLit:
			r := fb.AllocReg()
			fb.EmitOp(LConst(r, Bool(n.Value)))
			return r, nil
		case *ast.StrLit:
			r := fb.AllocReg()
			fb.EmitOp(LConst(r, Str(n.Value)))
			return r, nil
		case *ast.NullLit:
			r := fb.AllocReg()
			fb.EmitOp(LConst(r, Null()))
			return r, nil
		case *ast.Ident:
			if slot, ok := fb.LookupLocal(n.Name); ok {
				r := fb.AllocReg()
				fb.EmitOp(LLocal(r, slot))
				return r, nil
			}
			r := fb.AllocReg()
			fb.EmitOp(LConst(r, Symbol(n.Name)))
			return r, nil
		case *ast.BinaryOp:
			l, err := lowerExpr(n.Left)
			if err != nil {
				return 0, err
			}
			r, err := lowerExpr(n.Right)
			if err != nil {
				return 0, err
			}
			dest := fb.AllocReg()
			fb.EmitOp(binaryOpOf(n.Op, dest, l, r))
			return dest, nil
		case *ast.Call:
			return lowerWrapperCall(fb, n, lowerExpr, funcNameToID)
		default:
			r := fb.AllocReg()
			fb.EmitOp(LConst(r, Null()))
			return r, nil
		}
	}

	lowerStmts = func(stmts []ast.Stmt) error {
		for _, stmt := range stmts {
			switch n := stmt.(type) {
			case *ast.Return:
				if n.Value != nil {
					r, err := lowerExpr(n.Value)
					if err != nil {
						return err
					}
					fb.EmitOp(Ret(r))
				} else {
					r := fb.AllocReg()
					fb.EmitOp(LConst(r, Null()))
					fb.EmitOp(Ret(r))
				}
			case *ast.ExprStmt:
				if _, err := lowerExpr(n.X); err != nil {
					return err
				}
			case *ast.Assignment:
				if ident, ok := n.Target.(*ast.Ident); ok {
					valReg, err := lowerExpr(n.Value)
					if err != nil {
						return err
					}
					slot := fb.DeclareLocal(ident.Name)
					fb.EmitOp(SLocal(valReg, slot))
				}
			case *ast.If:
				condReg, err := lowerExpr(n.Cond)
				if err != nil {
					return err
				}
				afterLabel := fb.NewLabel("if_after")
				idx := fb.EmitOp(BrFalse(condReg, 0))
				fb.RecordBranch(idx, afterLabel)
				if err := lowerStmts(n.Then); err != nil {
					return err
				}
				fb.EmitOp(Label(afterLabel))
			case *ast.IfElse:
				condReg, err := lowerExpr(n.Cond)
				if err != nil {
					return err
				}
				elseLabel := fb.NewLabel("if_else")
				afterLabel := fb.NewLabel("if_after")
				idx := fb.EmitOp(BrFalse(condReg, 0))
				fb.RecordBranch(idx, elseLabel)
				if err := lowerStmts(n.Then); err != nil {
					return err
				}
				jidx := fb.EmitOp(Jump(0))
				fb.RecordBranch(jidx, afterLabel)
				fb.EmitOp(Label(elseLabel))
				if err := lowerStmts(n.Else); err != nil {
					return err
				}
				fb.EmitOp(Label(afterLabel))
			case *ast.While:
				headLabel := fb.NewLabel("while_head")
				afterLabel := fb.NewLabel("while_after")
				fb.EmitOp(Label(headLabel))
				condReg, err := lowerExpr(n.Cond)
				if err != nil {
					return err
				}
				idx := fb.EmitOp(BrFalse(condReg, 0))
				fb.RecordBranch(idx, afterLabel)
				if err := lowerStmts(n.Body); err != nil {
					return err
				}
				jidx := fb.EmitOp(Jump(0))
				fb.RecordBranch(jidx, headLabel)
				fb.EmitOp(Label(afterLabel))
			case *ast.ForTo:
				if err := lowerStmts([]ast.Stmt{n.Initializer}); err != nil {
					return err
				}
				headLabel := fb.NewLabel("forto_head")
				afterLabel := fb.NewLabel("forto_after")
				fb.EmitOp(Label(headLabel))
				limitReg, err := lowerExpr(n.Limit)
				if err != nil {
					return err
				}
				idx := fb.EmitOp(BrFalse(limitReg, 0))
				fb.RecordBranch(idx, afterLabel)
				if err := lowerStmts(n.Body); err != nil {
					return err
				}
				if ident, ok := assignmentIdent(n.Initializer); ok {
					if slot, ok2 := fb.LookupLocal(ident); ok2 {
						cur := fb.AllocReg()
						fb.EmitOp(LLocal(cur, slot))
						fb.EmitOp(Inc(cur))
						fb.EmitOp(SLocal(cur, slot))
					}
				}
				jidx := fb.EmitOp(Jump(0))
				fb.RecordBranch(jidx, headLabel)
				fb.EmitOp(Label(afterLabel))
			case *ast.ForIn:
				arrReg, err := lowerExpr(n.Iterable)
				if err != nil {
					return err
				}
				idxSlot := fb.DeclareLocal(fb.NewLabel("__forin_idx"))
				zeroReg := fb.AllocReg()
				fb.EmitOp(LConst(zeroReg, Int(0)))
				fb.EmitOp(SLocal(zeroReg, idxSlot))

				lenKeyReg := fb.AllocReg()
				fb.EmitOp(LConst(lenKeyReg, Symbol("length")))
				lenReg := fb.AllocReg()
				fb.EmitOp(GetProp(lenReg, arrReg, lenKeyReg))

				headLabel := fb.NewLabel("forin_head")
				afterLabel := fb.NewLabel("forin_after")
				fb.EmitOp(Label(headLabel))
				idxReg := fb.AllocReg()
				fb.EmitOp(LLocal(idxReg, idxSlot))
				cmpReg := fb.AllocReg()
				fb.EmitOp(Lt(cmpReg, idxReg, lenReg))
				idx := fb.EmitOp(BrFalse(cmpReg, 0))
				fb.RecordBranch(idx, afterLabel)

				itemReg := fb.AllocReg()
				fb.EmitOp(ArrayGet(itemReg, arrReg, idxReg))
				itemSlot := fb.DeclareLocal(n.Iterator)
				fb.EmitOp(SLocal(itemReg, itemSlot))

				if err := lowerStmts(n.Body); err != nil {
					return err
				}

				oneReg := fb.AllocReg()
				fb.EmitOp(LConst(oneReg, Int(1)))
				nextReg := fb.AllocReg()
				fb.EmitOp(Add(nextReg, idxReg, oneReg))
				fb.EmitOp(SLocal(nextReg, idxSlot))

				jidx := fb.EmitOp(Jump(0))
				fb.RecordBranch(jidx, headLabel)
				fb.EmitOp(Label(afterLabel))
			default:
				// Include/Import have no effect inside a stage body.
			}
		}
		return nil
	}

	return lowerStmts(body)
}

func lowerWrapperCall(fb *FunctionBuilder, n *ast.Call, lowerExpr func(ast.Expr) (uint32, error), funcNameToID map[string]int) (uint32, error) {
	ident, ok := n.Callee.(*ast.Ident)
	if !ok {
		r := fb.AllocReg()
		fb.EmitOp(LConst(r, Null()))
		return r, nil
	}
	args := make([]uint32, 0, len(n.Args))
	for _, a := range n.Args {
		r, err := lowerExpr(a)
		if err != nil {
			return 0, err
		}
		args = append(args, r)
	}
	dest := fb.AllocReg()
	// A call to a declared stage from inside another stage or a for-in
	// wrapper must resolve the same way a module-level call does: Call
	// only dispatches host builtins (spec §4.7), so a stage name has to
	// go out as CallLabel, not Symbol+Call.
	if id, ok := funcNameToID[ident.Name]; ok && !hostBuiltins[ident.Name] {
		fb.EmitOp(CallLabel(dest, uint32(id-1), args))
		return dest, nil
	}
	funcReg := fb.AllocReg()
	fb.EmitOp(LConst(funcReg, Symbol(ident.Name)))
	fb.EmitOp(Call(dest, funcReg, args))
	return dest, nil
}

func (lc *LoweringContext) lowerStage(s *ast.Stage) error {
	m := lc.module
	funcID := lc.funcIDs[s.ID()]
	fb := NewFunctionBuilder(m)
	for _, p := range s.Params {
		fb.DeclareLocal(p)
	}
	fb.EmitOp(Label(fmt.Sprintf("L%d", funcID-1)))
	if err := lowerWrapperBody(fb, s.Body, lc.funcNameToID); err != nil {
		return err
	}
	fb.FinalizeInto(m)
	return nil
}
