// Package symtab implements the scoped symbol table the analyzer builds
// while walking a script: a stack of scopes, each an overload stack per
// name for shadowing, plus the object-declaration-body tracking and
// diagnostics sink spec.md §4.1 describes.
package symtab

import (
	"mainstage/internal/types"
)

// SymbolKind distinguishes what a Symbol names.
type SymbolKind int

const (
	Variable SymbolKind = iota
	Function
	Object
)

// ScopeTag records where a Symbol lives.
type ScopeTag int

const (
	Global ScopeTag = iota
	Local
	Builtin
)

// Usage is one recorded reference to a Symbol.
type Usage struct {
	File   string
	Line   int
	Column int
	Span   int
}

// Symbol is a named entity: a variable, function, or object.
type Symbol struct {
	Name         string
	SymKind      SymbolKind
	Scope        ScopeTag
	Inferred     *types.InferredKind
	ReturnKind   *types.InferredKind
	Params       []*Symbol
	propOrder    []string
	properties   map[string]*Symbol
	UsageCount   int
	Usages       []Usage
}

// NewSymbol constructs a Symbol with no inferred kind set yet.
func NewSymbol(name string, kind SymbolKind, scope ScopeTag) *Symbol {
	return &Symbol{Name: name, SymKind: kind, Scope: scope}
}

// Property looks up an object property by name, or nil if absent.
func (s *Symbol) Property(name string) *Symbol {
	if s.properties == nil {
		return nil
	}
	return s.properties[name]
}

// SetProperty installs or replaces a property, preserving insertion order
// for first-seen names.
func (s *Symbol) SetProperty(name string, sym *Symbol) {
	if s.properties == nil {
		s.properties = make(map[string]*Symbol)
	}
	if _, exists := s.properties[name]; !exists {
		s.propOrder = append(s.propOrder, name)
	}
	s.properties[name] = sym
}

// Properties returns properties in insertion order.
func (s *Symbol) Properties() []*Symbol {
	out := make([]*Symbol, 0, len(s.propOrder))
	for _, name := range s.propOrder {
		out = append(out, s.properties[name])
	}
	return out
}

// RecordUsage increments the usage counter and appends a Usage record.
func (s *Symbol) RecordUsage(file string, line, column, span int) {
	s.UsageCount++
	s.Usages = append(s.Usages, Usage{File: file, Line: line, Column: column, Span: span})
}
