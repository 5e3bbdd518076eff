package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"mainstage/internal/ast"
)

func writeScript(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writeScript: %v", err)
	}
	return path
}

func TestParseBuildArgsDefaults(t *testing.T) {
	b, err := parseBuildArgs([]string{"foo.stage"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.file != "foo.stage" || b.dump != "" || b.output != "" {
		t.Fatalf("parsed args = %#v", b)
	}
}

func TestParseBuildArgsDumpAndOutput(t *testing.T) {
	b, err := parseBuildArgs([]string{"-d", "ast", "-o", "out.msbc", "foo.stage"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.file != "foo.stage" || b.dump != "ast" || b.output != "out.msbc" {
		t.Fatalf("parsed args = %#v", b)
	}
}

func TestParseBuildArgsRejectsSecondPositional(t *testing.T) {
	_, err := parseBuildArgs([]string{"a.stage", "b.stage"})
	if err == nil {
		t.Fatalf("expected an error for a second positional argument")
	}
}

func TestParseBuildArgsRequiresFile(t *testing.T) {
	_, err := parseBuildArgs(nil)
	if err == nil {
		t.Fatalf("expected an error when no file is given")
	}
}

func TestBuildCommandEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := `
		@entrypoint
		workspace Main {
			x = 1 + 2
		}
	`
	path := writeScript(t, dir, "main.stage", src)
	out := filepath.Join(dir, "main.msbc")

	code := buildCommand([]string{"-o", out, path})
	if code != 0 {
		t.Fatalf("buildCommand exit code = %d, want 0", code)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading compiled output: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "MSBC" {
		t.Fatalf("output does not start with MSBC magic: %v", data[:4])
	}
}

func TestBuildCommandReportsSyntaxError(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "bad.stage", `workspace Main {`)
	code := buildCommand([]string{path})
	if code != 1 {
		t.Fatalf("buildCommand exit code = %d, want 1", code)
	}
}

func TestBuildCommandDumpASTDoesNotWriteOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "main.stage", `workspace Main { }`)
	code := buildCommand([]string{"-d", "ast", path})
	if code != 0 {
		t.Fatalf("buildCommand exit code = %d, want 0", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "main.msbc")); err == nil {
		t.Fatalf("expected no .msbc file to be written when dumping the AST")
	}
}

func TestRunCommandExecutesEntrypoint(t *testing.T) {
	dir := t.TempDir()
	src := `
		@entrypoint
		workspace Main {
			x = 1 + 2
		}
	`
	path := writeScript(t, dir, "main.stage", src)
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	os.Chdir(dir)

	code := runCommand([]string{path})
	if code != 0 {
		t.Fatalf("runCommand exit code = %d, want 0", code)
	}
}

func TestDumpScriptPrintsStageHeader(t *testing.T) {
	ast.ResetIDs()
	script, source, code := parseFile(writeScript(t, t.TempDir(), "x.stage", `
		stage build() {
			return 1
		}
	`))
	if script == nil {
		t.Fatalf("parseFile failed with code %d", code)
	}
	_ = source
	var buf bytes.Buffer
	dumpScript(&buf, script)
	got := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte("stage build()")) {
		t.Fatalf("dump output missing stage header: %q", got)
	}
}
