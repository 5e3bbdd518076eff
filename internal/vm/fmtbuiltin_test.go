package vm

import (
	"testing"

	"mainstage/internal/ir"
)

func TestBuiltinFmtRightAlignWidth(t *testing.T) {
	got, err := builtinFmt([]ir.Value{ir.Str("{:>5}"), ir.Int(3)})
	if err != nil {
		t.Fatalf("builtinFmt: %v", err)
	}
	if got.S != "    3" {
		t.Fatalf("fmt(%q) = %q, want %q", "{:>5}", got.S, "    3")
	}
}

func TestBuiltinFmtZeroFillAndPlainPlaceholder(t *testing.T) {
	got, err := builtinFmt([]ir.Value{ir.Str("{:0>3}{}"), ir.Int(7), ir.Str("!")})
	if err != nil {
		t.Fatalf("builtinFmt: %v", err)
	}
	if got.S != "007!" {
		t.Fatalf("fmt(...) = %q, want %q", got.S, "007!")
	}
}

func TestBuiltinFmtPrecision(t *testing.T) {
	got, err := builtinFmt([]ir.Value{ir.Str("{:.2}"), ir.Int(1)})
	if err != nil {
		t.Fatalf("builtinFmt: %v", err)
	}
	if got.S != "1.00" {
		t.Fatalf("fmt(%q) = %q, want %q", "{:.2}", got.S, "1.00")
	}
}

func TestBuiltinFmtEscapedBraces(t *testing.T) {
	got, err := builtinFmt([]ir.Value{ir.Str("{{}}"), ir.Int(1)})
	if err != nil {
		t.Fatalf("builtinFmt: %v", err)
	}
	if got.S != "{}" {
		t.Fatalf("fmt(%q) = %q, want literal braces", "{{}}", got.S)
	}
}

func TestBuiltinFmtExhaustedArgsReuseLast(t *testing.T) {
	got, err := builtinFmt([]ir.Value{ir.Str("{} {}"), ir.Int(1)})
	if err != nil {
		t.Fatalf("builtinFmt: %v", err)
	}
	if got.S != "1 1" {
		t.Fatalf("fmt(%q) = %q, want %q", "{} {}", got.S, "1 1")
	}
}

func TestBuiltinFmtNoArgsRendersNull(t *testing.T) {
	got, err := builtinFmt([]ir.Value{ir.Str("{}")})
	if err != nil {
		t.Fatalf("builtinFmt: %v", err)
	}
	if got.S != "null" {
		t.Fatalf("fmt(%q) = %q, want %q", "{}", got.S, "null")
	}
}

func TestBuiltinFmtLeftAndCenterAlign(t *testing.T) {
	got, err := builtinFmt([]ir.Value{ir.Str("{:<4}|{:^5}"), ir.Int(1), ir.Str("x")})
	if err != nil {
		t.Fatalf("builtinFmt: %v", err)
	}
	if got.S != "1   |  x  " {
		t.Fatalf("fmt(...) = %q, want %q", got.S, "1   |  x  ")
	}
}
