// Package diag carries source-located diagnostics produced anywhere in the
// MainStage pipeline: the analyzer, the acyclic checker, lowering, the
// bytecode codec and the VM all report through this one type.
package diag

import (
	"fmt"
	"strings"
)

// Severity ranks a Diagnostic's impact on the pipeline's exit code.
type Severity string

const (
	Warning Severity = "Warning"
	Error   Severity = "Error"
	Fatal   Severity = "Fatal"
)

// Kind names the taxonomy from spec §7. Kind is informational; Severity
// drives control flow.
type Kind string

const (
	SyntaxError   Kind = "SyntaxError"
	SemanticError Kind = "SemanticError"
	UnusedWarning Kind = "Warning"
	LoweringError Kind = "LoweringError"
	RuntimeError  Kind = "RuntimeError"
)

// Location pinpoints a diagnostic in source text.
type Location struct {
	File   string
	Line   int
	Column int
}

// Span covers a range of source starting at a Location.
type Span struct {
	Length int // number of characters/bytes covered, starting at Location.Column
}

// Diagnostic is the single carrier type for every user-visible failure or
// warning in the pipeline.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Message  string
	Code     string // optional machine-readable code, e.g. "E0042"
	Loc      *Location
	Span     *Span
	Source   string // optional source line, for caret rendering
}

func New(sev Severity, kind Kind, message string) *Diagnostic {
	return &Diagnostic{Severity: sev, Kind: kind, Message: message}
}

func NewSyntaxError(message string, file string, line, column int) *Diagnostic {
	return New(Error, SyntaxError, message).At(file, line, column)
}

func NewSemanticError(message string, file string, line, column int) *Diagnostic {
	return New(Error, SemanticError, message).At(file, line, column)
}

func NewWarning(message string, file string, line, column int) *Diagnostic {
	return New(Warning, UnusedWarning, message).At(file, line, column)
}

func NewRuntimeError(message string) *Diagnostic {
	return New(Error, RuntimeError, message)
}

// At attaches a source location, returning the receiver for chaining.
func (d *Diagnostic) At(file string, line, column int) *Diagnostic {
	d.Loc = &Location{File: file, Line: line, Column: column}
	return d
}

// WithSpan attaches a span length, returning the receiver for chaining.
func (d *Diagnostic) WithSpan(length int) *Diagnostic {
	d.Span = &Span{Length: length}
	return d
}

// WithSource attaches the source line for caret rendering.
func (d *Diagnostic) WithSource(source string) *Diagnostic {
	d.Source = source
	return d
}

// WithCode attaches a machine-readable diagnostic code.
func (d *Diagnostic) WithCode(code string) *Diagnostic {
	d.Code = code
	return d
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s(%s): %s", d.Severity, d.Kind, d.Message))
	if d.Loc != nil {
		sb.WriteString(fmt.Sprintf("\n  at %s:%d:%d", d.Loc.File, d.Loc.Line, d.Loc.Column))
		if d.Source != "" {
			prefix := fmt.Sprintf("  %d | ", d.Loc.Line)
			sb.WriteString(fmt.Sprintf("\n%s%s\n", prefix, d.Source))
			pad := strings.Repeat(" ", len(prefix))
			if d.Loc.Column > 0 {
				pad += strings.Repeat(" ", d.Loc.Column-1)
			}
			sb.WriteString(pad + "^")
		}
	}
	return sb.String()
}

// ExitCode implements spec §6's rule: 0 if nothing worse than Warning, 1 if
// the worst diagnostic is an Error, 2 if any diagnostic is Fatal.
func ExitCode(diags []*Diagnostic) int {
	code := 0
	for _, d := range diags {
		switch d.Severity {
		case Fatal:
			return 2
		case Error:
			if code < 1 {
				code = 1
			}
		}
	}
	return code
}

// HasErrors reports whether diags contains anything at Error severity or
// worse.
func HasErrors(diags []*Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error || d.Severity == Fatal {
			return true
		}
	}
	return false
}
