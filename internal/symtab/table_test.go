package symtab

import "testing"

func TestEnterExitScopeUnusedWarning(t *testing.T) {
	tab := New()
	tab.EnterScope()
	tab.Insert(NewSymbol("tmp", Variable, Local))
	tab.ExitScope("script.stage")
	diags := tab.TakeDiagnostics()
	if len(diags) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(diags))
	}
	if diags[0].Severity != "Warning" {
		t.Fatalf("expected Warning severity, got %v", diags[0].Severity)
	}
}

func TestUsedVariableNoWarning(t *testing.T) {
	tab := New()
	tab.EnterScope()
	tab.Insert(NewSymbol("x", Variable, Local))
	tab.RecordUsage("x", "f", 1, 1, 1)
	tab.ExitScope("f")
	if diags := tab.TakeDiagnostics(); len(diags) != 0 {
		t.Fatalf("expected no warnings, got %d", len(diags))
	}
}

func TestObjectBodyExemptFromUnusedWarning(t *testing.T) {
	tab := New()
	tab.EnterObjectScope("p")
	tab.Insert(NewSymbol("sources", Variable, Local))
	tab.ExitScope("p")
	if diags := tab.TakeDiagnostics(); len(diags) != 0 {
		t.Fatalf("expected no warnings for object body members, got %d", len(diags))
	}
}

func TestLatestSearchesOutward(t *testing.T) {
	tab := New()
	outer := NewSymbol("x", Variable, Global)
	tab.Insert(outer)
	tab.EnterScope()
	inner := NewSymbol("x", Variable, Local)
	tab.Insert(inner)
	if got := tab.Latest("x"); got != inner {
		t.Fatal("expected innermost shadow to win")
	}
	tab.ExitScope("f")
	if got := tab.Latest("x"); got != outer {
		t.Fatal("expected outer symbol after exiting inner scope")
	}
}

func TestCurrentObjectName(t *testing.T) {
	tab := New()
	if _, ok := tab.CurrentObjectName(); ok {
		t.Fatal("expected no object body at global scope")
	}
	tab.EnterObjectScope("p")
	name, ok := tab.CurrentObjectName()
	if !ok || name != "p" {
		t.Fatalf("expected object body \"p\", got %q %v", name, ok)
	}
}

func TestEntrypoint(t *testing.T) {
	tab := New()
	if _, ok := tab.Entrypoint(); ok {
		t.Fatal("expected no entrypoint by default")
	}
	tab.SetEntrypoint("main")
	name, ok := tab.Entrypoint()
	if !ok || name != "main" {
		t.Fatalf("expected entrypoint \"main\", got %q %v", name, ok)
	}
}
