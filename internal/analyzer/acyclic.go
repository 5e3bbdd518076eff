package analyzer

import (
	"mainstage/internal/ast"
	"mainstage/internal/diag"
)

type color int

const (
	unseen color = iota
	visiting
	done
)

// graphBuilder walks a Script collecting stage_name -> set(callee_name)
// by tracking the current enclosing stage.
type graphBuilder struct {
	edges   map[string]map[string]bool
	order   []string
	pos     map[string]ast.Pos
	current string
}

func (g *graphBuilder) ensure(name string) {
	if _, ok := g.edges[name]; !ok {
		g.edges[name] = make(map[string]bool)
		g.order = append(g.order, name)
	}
}

func (g *graphBuilder) ensureAt(name string, pos ast.Pos) {
	g.ensure(name)
	if _, ok := g.pos[name]; !ok {
		g.pos[name] = pos
	}
}

func (g *graphBuilder) addCallee(name string) {
	if g.current == "" {
		return
	}
	g.ensure(g.current)
	g.ensure(name)
	g.edges[g.current][name] = true
}

func (g *graphBuilder) walkStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		g.walkStmt(s)
	}
}

func (g *graphBuilder) walkStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Script:
		g.walkStmts(n.Body)
	case *ast.Workspace:
		prev := g.current
		g.current = n.Name
		g.ensureAt(n.Name, n.Position())
		g.walkStmts(n.Body)
		g.current = prev
	case *ast.Project:
		// Projects hold no call-graph edges.
	case *ast.Stage:
		prev := g.current
		g.current = n.Name
		g.ensureAt(n.Name, n.Position())
		g.walkStmts(n.Body)
		g.current = prev
	case *ast.Block:
		g.walkStmts(n.Statements)
	case *ast.If:
		g.walkExpr(n.Cond)
		g.walkStmts(n.Then)
	case *ast.IfElse:
		g.walkExpr(n.Cond)
		g.walkStmts(n.Then)
		g.walkStmts(n.Else)
	case *ast.While:
		g.walkExpr(n.Cond)
		g.walkStmts(n.Body)
	case *ast.ForIn:
		g.walkExpr(n.Iterable)
		g.walkStmts(n.Body)
	case *ast.ForTo:
		if n.Initializer != nil {
			g.walkStmt(n.Initializer)
		}
		g.walkExpr(n.Limit)
		g.walkStmts(n.Body)
	case *ast.Return:
		if n.Value != nil {
			g.walkExpr(n.Value)
		}
	case *ast.Assignment:
		g.walkExpr(n.Value)
	case *ast.ExprStmt:
		g.walkExpr(n.X)
	}
}

func (g *graphBuilder) walkExpr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Call:
		if ident, ok := n.Callee.(*ast.Ident); ok {
			g.addCallee(ident.Name)
		}
		for _, arg := range n.Args {
			g.walkExpr(arg)
		}
	case *ast.BinaryOp:
		g.walkExpr(n.Left)
		g.walkExpr(n.Right)
	case *ast.UnaryOp:
		g.walkExpr(n.Operand)
	case *ast.Member:
		g.walkExpr(n.Object)
	case *ast.Index:
		g.walkExpr(n.Object)
		g.walkExpr(n.IndexE)
	case *ast.List:
		for _, el := range n.Elements {
			g.walkExpr(el)
		}
	}
}

// CheckAcyclic builds the stage call graph from root and reports the
// first cycle found via a three-color DFS, or nil if none exists.
func CheckAcyclic(root *ast.Script, file string) *diag.Diagnostic {
	g := &graphBuilder{edges: make(map[string]map[string]bool), pos: make(map[string]ast.Pos)}
	g.walkStmts(root.Body)

	colors := make(map[string]color, len(g.order))
	var stack []string

	var visit func(name string) *diag.Diagnostic
	visit = func(name string) *diag.Diagnostic {
		colors[name] = visiting
		stack = append(stack, name)
		for callee := range g.edges[name] {
			switch colors[callee] {
			case unseen:
				if d := visit(callee); d != nil {
					return d
				}
			case visiting:
				cycleStart := 0
				for i, s := range stack {
					if s == callee {
						cycleStart = i
						break
					}
				}
				cycle := append([]string{}, stack[cycleStart:]...)
				cycle = append(cycle, callee)
				msg := "cycle detected in stage call graph: " + joinNames(cycle)
				first := g.pos[cycle[0]]
				return diag.NewSemanticError(msg, file, first.Line, first.Column)
			}
		}
		stack = stack[:len(stack)-1]
		colors[name] = done
		return nil
	}

	for _, name := range g.order {
		if colors[name] == unseen {
			if d := visit(name); d != nil {
				return d
			}
		}
	}
	return nil
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += " -> "
		}
		out += n
	}
	return out
}
