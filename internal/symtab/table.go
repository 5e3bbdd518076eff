package symtab

import "mainstage/internal/diag"

// scope is one level of the scope stack: an overload stack per name, plus
// insertion order so unused-variable scanning is deterministic.
type scope struct {
	names     []string
	overloads map[string][]*Symbol
	isObject  bool
	objectName string
}

func newScope() *scope {
	return &scope{overloads: make(map[string][]*Symbol)}
}

// Table is the scoped symbol table the analyzer mutates while walking a
// script. A global scope is always present from construction.
type Table struct {
	scopes     []*scope
	diags      []*diag.Diagnostic
	entrypoint string
	hasEntry   bool
}

// New constructs a Table with its global scope already pushed.
func New() *Table {
	t := &Table{}
	t.scopes = append(t.scopes, newScope())
	return t
}

// EnterScope pushes an ordinary lexical scope.
func (t *Table) EnterScope() {
	t.scopes = append(t.scopes, newScope())
}

// EnterObjectScope pushes a scope marked as an object-declaration body, so
// ExitScope skips unused-variable warnings for names declared in it (they
// are object properties, referenced through property access elsewhere).
func (t *Table) EnterObjectScope(name string) {
	s := newScope()
	s.isObject = true
	s.objectName = name
	t.scopes = append(t.scopes, s)
}

// ExitScope pops the innermost scope, raising a Warning diagnostic for
// every local declared there with zero recorded usages — unless the
// scope is an object-declaration body.
func (t *Table) ExitScope(file string) {
	n := len(t.scopes)
	if n == 0 {
		return
	}
	top := t.scopes[n-1]
	t.scopes = t.scopes[:n-1]
	if top.isObject {
		return
	}
	for _, name := range top.names {
		stack := top.overloads[name]
		if len(stack) == 0 {
			continue
		}
		sym := stack[len(stack)-1]
		if sym.SymKind == Variable && sym.UsageCount == 0 {
			t.diags = append(t.diags, diag.NewWarning(
				"unused variable \""+name+"\"", file, 0, 0))
		}
	}
}

// CurrentObjectName reports the enclosing object-body name, if the
// innermost scope is one.
func (t *Table) CurrentObjectName() (string, bool) {
	if len(t.scopes) == 0 {
		return "", false
	}
	top := t.scopes[len(t.scopes)-1]
	if !top.isObject {
		return "", false
	}
	return top.objectName, true
}

// Insert adds sym to the innermost scope's overload stack for its name.
func (t *Table) Insert(sym *Symbol) {
	top := t.scopes[len(t.scopes)-1]
	if _, seen := top.overloads[sym.Name]; !seen {
		top.names = append(top.names, sym.Name)
	}
	top.overloads[sym.Name] = append(top.overloads[sym.Name], sym)
}

// Latest searches outward from the innermost scope for the most recent
// symbol bound to name, returning nil if none is found.
func (t *Table) Latest(name string) *Symbol {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		stack := t.scopes[i].overloads[name]
		if len(stack) > 0 {
			return stack[len(stack)-1]
		}
	}
	return nil
}

// RecordUsage marks one reference to name, if it resolves to a known
// symbol. Unknown names are silently ignored here; the analyzer is
// responsible for surfacing an "unknown identifier" situation itself.
func (t *Table) RecordUsage(name, file string, line, column, span int) {
	if sym := t.Latest(name); sym != nil {
		sym.RecordUsage(file, line, column, span)
	}
}

// Diagnose appends a diagnostic produced outside ExitScope's automatic
// unused-variable check (e.g. from the analyzer).
func (t *Table) Diagnose(d *diag.Diagnostic) {
	t.diags = append(t.diags, d)
}

// TakeDiagnostics drains and returns all diagnostics accumulated so far.
func (t *Table) TakeDiagnostics() []*diag.Diagnostic {
	out := t.diags
	t.diags = nil
	return out
}

// SetEntrypoint records the workspace name chosen as the program's entry.
func (t *Table) SetEntrypoint(name string) {
	t.entrypoint = name
	t.hasEntry = true
}

// Entrypoint returns the recorded entrypoint name, if any.
func (t *Table) Entrypoint() (string, bool) {
	return t.entrypoint, t.hasEntry
}

// Depth reports the current scope-stack depth, mostly useful in tests to
// assert enter/exit pairing.
func (t *Table) Depth() int {
	return len(t.scopes)
}
