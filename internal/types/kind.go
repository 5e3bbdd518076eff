// Package types implements MainStage's gradual-typing surface: the kind
// lattice the analyzer infers over, compatibility checks for assignment,
// and unification for branch-merging and list homogeneity.
package types

// Kind enumerates the primitive and structural kinds the analyzer can
// infer. Dynamic means "unconstrained" — arithmetic and comparison over
// Dynamic operands fall back to runtime coercion rather than a type error.
type Kind int

const (
	Integer Kind = iota
	Float
	String
	Boolean
	Void
	Null
	Object
	Array
	Dynamic
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case String:
		return "String"
	case Boolean:
		return "Boolean"
	case Void:
		return "Void"
	case Null:
		return "Null"
	case Object:
		return "Object"
	case Array:
		return "Array"
	case Dynamic:
		return "Dynamic"
	default:
		return "Unknown"
	}
}

// Origin records why an InferredKind holds the value it does.
type Origin int

const (
	Expression Origin = iota
	Coerced
	Unknown
)

// Loc is a minimal source pin, independent of the diag package to avoid an
// import cycle; analyzer code translates to/from diag.Location at the
// boundary.
type Loc struct {
	File   string
	Line   int
	Column int
}

// InferredKind is the analyzer's best-effort type for an expression or
// symbol. Element is only meaningful when Kind == Array; a nil Element
// means "unknown element kind" (still distinct from Array(Dynamic)).
type InferredKind struct {
	Kind    Kind
	Element *InferredKind
	Origin  Origin
	Loc     *Loc
	Span    int
}

func New(kind Kind) InferredKind {
	return InferredKind{Kind: kind, Origin: Expression}
}

func NewArray(element InferredKind) InferredKind {
	e := element
	return InferredKind{Kind: Array, Element: &e, Origin: Expression}
}

func NewAt(kind Kind, origin Origin, loc *Loc, span int) InferredKind {
	return InferredKind{Kind: kind, Origin: origin, Loc: loc, Span: span}
}

// DynamicKind is the canonical "unconstrained" value, handy as a zero-ish
// default when inference gives up.
var DynamicKind = InferredKind{Kind: Dynamic, Origin: Unknown}

// Compatible reports whether a value of kind `from` may be assigned where
// `to` is expected, per spec: Dynamic matches anything; identical kinds
// match; Null matches any non-primitive expectation; Integer is
// assignable to Float.
func Compatible(to, from InferredKind) bool {
	if to.Kind == Dynamic || from.Kind == Dynamic {
		return true
	}
	if to.Kind == from.Kind {
		if to.Kind == Array {
			if to.Element == nil || from.Element == nil {
				return true
			}
			return Compatible(*to.Element, *from.Element)
		}
		return true
	}
	if from.Kind == Null && (to.Kind == Object || to.Kind == Array) {
		return true
	}
	if from.Kind == Integer && to.Kind == Float {
		return true
	}
	return false
}

// Unify combines two kinds per spec's rule: identical -> same; Integer x
// Float -> Float; Null x X -> X; otherwise Dynamic.
func Unify(a, b InferredKind) InferredKind {
	if a.Kind == b.Kind {
		if a.Kind == Array {
			if a.Element == nil {
				return b
			}
			if b.Element == nil {
				return a
			}
			el := Unify(*a.Element, *b.Element)
			return NewArray(el)
		}
		return a
	}
	if a.Kind == Null {
		return b
	}
	if b.Kind == Null {
		return a
	}
	if (a.Kind == Integer && b.Kind == Float) || (a.Kind == Float && b.Kind == Integer) {
		return New(Float)
	}
	return InferredKind{Kind: Dynamic, Origin: Unknown}
}

// UnifyAll folds Unify across a slice, returning DynamicKind for an empty
// input (callers that need a different empty-case default, e.g. Void for
// no-return stages, should special-case len(kinds)==0 themselves).
func UnifyAll(kinds []InferredKind) InferredKind {
	if len(kinds) == 0 {
		return DynamicKind
	}
	result := kinds[0]
	for _, k := range kinds[1:] {
		result = Unify(result, k)
	}
	return result
}

// IsNumeric reports whether k participates in numeric coercion.
func IsNumeric(k Kind) bool {
	return k == Integer || k == Float || k == Dynamic
}
