package vm

import (
	"os"
	"path/filepath"
	"testing"

	"mainstage/internal/ir"
)

func TestCoerceInputBoolIntFloatStr(t *testing.T) {
	cases := []struct {
		in   string
		kind ir.ValueKind
	}{
		{"true", ir.VBool},
		{"false", ir.VBool},
		{"42", ir.VInt},
		{"3.5", ir.VFloat},
		{"hello", ir.VStr},
	}
	for _, c := range cases {
		got := coerceInput(c.in)
		if got.Kind != c.kind {
			t.Errorf("coerceInput(%q).Kind = %v, want %v", c.in, got.Kind, c.kind)
		}
	}
}

func TestTrimNewlineHandlesCRLFAndLF(t *testing.T) {
	if got := trimNewline("hi\r\n"); got != "hi" {
		t.Fatalf("trimNewline(CRLF) = %q, want %q", got, "hi")
	}
	if got := trimNewline("hi\n"); got != "hi" {
		t.Fatalf("trimNewline(LF) = %q, want %q", got, "hi")
	}
	if got := trimNewline("hi"); got != "hi" {
		t.Fatalf("trimNewline(none) = %q, want %q", got, "hi")
	}
}

func TestBuiltinWriteAndReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	res, err := builtinWrite([]ir.Value{ir.Str(path), ir.Str("hello")})
	if err != nil {
		t.Fatalf("builtinWrite: %v", err)
	}
	if !res.B {
		t.Fatalf("builtinWrite returned false success")
	}

	res, err = builtinRead([]ir.Value{ir.Str(filepath.Join(dir, "*.txt"))})
	if err != nil {
		t.Fatalf("builtinRead: %v", err)
	}
	if res.Kind != ir.VArray || len(res.Arr) != 1 || res.Arr[0].S != "hello" {
		t.Fatalf("builtinRead() = %+v, want one-element array [hello]", res)
	}
}

func TestBuiltinReadSkipsUnreadableMatches(t *testing.T) {
	dir := t.TempDir()
	okPath := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(okPath, []byte("ok"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	// A glob matching a directory entry (unreadable as file content) should
	// be silently skipped rather than erroring the whole call.
	subdir := filepath.Join(dir, "b.txt")
	if err := os.Mkdir(subdir, 0o755); err != nil {
		t.Fatalf("setup mkdir: %v", err)
	}

	res, err := builtinRead([]ir.Value{ir.Str(filepath.Join(dir, "*.txt"))})
	if err != nil {
		t.Fatalf("builtinRead: %v", err)
	}
	if len(res.Arr) != 1 || res.Arr[0].S != "ok" {
		t.Fatalf("builtinRead() = %+v, want only the readable file's contents", res)
	}
}
