package ast

// Expr is any node that evaluates to a value. It embeds Node and accepts
// an ExprVisitor, mirroring the teacher's Expr/Accept split.
type Expr interface {
	Node
	AcceptExpr(v ExprVisitor) (any, error)
}

// ExprVisitor dispatches over every concrete Expr kind. Adding a case to
// Expr means adding a method here and at every implementation.
type ExprVisitor interface {
	VisitIdent(*Ident) (any, error)
	VisitIntLit(*IntLit) (any, error)
	VisitFloatLit(*FloatLit) (any, error)
	VisitBoolLit(*BoolLit) (any, error)
	VisitStrLit(*StrLit) (any, error)
	VisitNullLit(*NullLit) (any, error)
	VisitBinaryOp(*BinaryOp) (any, error)
	VisitUnaryOp(*UnaryOp) (any, error)
	VisitCall(*Call) (any, error)
	VisitMember(*Member) (any, error)
	VisitIndex(*Index) (any, error)
	VisitList(*List) (any, error)
}

// Ident is a bare name reference.
type Ident struct {
	base
	Name string
}

func NewIdent(pos Pos, name string) *Ident {
	return &Ident{base: newBase(KIdent, pos), Name: name}
}
func (n *Ident) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitIdent(n) }

// IntLit is an integer literal.
type IntLit struct {
	base
	Value int64
}

func NewIntLit(pos Pos, value int64) *IntLit {
	return &IntLit{base: newBase(KIntLit, pos), Value: value}
}
func (n *IntLit) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitIntLit(n) }

// FloatLit is a floating-point literal.
type FloatLit struct {
	base
	Value float64
}

func NewFloatLit(pos Pos, value float64) *FloatLit {
	return &FloatLit{base: newBase(KFloatLit, pos), Value: value}
}
func (n *FloatLit) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitFloatLit(n) }

// BoolLit is a boolean literal.
type BoolLit struct {
	base
	Value bool
}

func NewBoolLit(pos Pos, value bool) *BoolLit {
	return &BoolLit{base: newBase(KBoolLit, pos), Value: value}
}
func (n *BoolLit) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitBoolLit(n) }

// StrLit is a string literal.
type StrLit struct {
	base
	Value string
}

func NewStrLit(pos Pos, value string) *StrLit {
	return &StrLit{base: newBase(KStrLit, pos), Value: value}
}
func (n *StrLit) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitStrLit(n) }

// NullLit is the null literal.
type NullLit struct {
	base
}

func NewNullLit(pos Pos) *NullLit { return &NullLit{base: newBase(KNullLit, pos)} }
func (n *NullLit) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitNullLit(n) }

// BinaryOp is `left op right`.
type BinaryOp struct {
	base
	Left  Expr
	Op    string
	Right Expr
}

func NewBinaryOp(pos Pos, left Expr, op string, right Expr) *BinaryOp {
	return &BinaryOp{base: newBase(KBinaryOp, pos), Left: left, Op: op, Right: right}
}
func (n *BinaryOp) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitBinaryOp(n) }

// UnaryOp is `op operand` (`-`, `+`, `!`).
type UnaryOp struct {
	base
	Op      string
	Operand Expr
}

func NewUnaryOp(pos Pos, op string, operand Expr) *UnaryOp {
	return &UnaryOp{base: newBase(KUnaryOp, pos), Op: op, Operand: operand}
}
func (n *UnaryOp) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitUnaryOp(n) }

// Call is `callee(args...)`.
type Call struct {
	base
	Callee Expr
	Args   []Expr
}

func NewCall(pos Pos, callee Expr, args []Expr) *Call {
	return &Call{base: newBase(KCall, pos), Callee: callee, Args: args}
}
func (n *Call) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitCall(n) }

// Member is `object.property`.
type Member struct {
	base
	Object   Expr
	Property string
}

func NewMember(pos Pos, object Expr, property string) *Member {
	return &Member{base: newBase(KMember, pos), Object: object, Property: property}
}
func (n *Member) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitMember(n) }

// Index is `object[index]`.
type Index struct {
	base
	Object Expr
	IndexE Expr
}

func NewIndex(pos Pos, object, index Expr) *Index {
	return &Index{base: newBase(KIndex, pos), Object: object, IndexE: index}
}
func (n *Index) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitIndex(n) }

// List is a `[elem, elem, ...]` literal.
type List struct {
	base
	Elements []Expr
}

func NewList(pos Pos, elements []Expr) *List {
	return &List{base: newBase(KList, pos), Elements: elements}
}
func (n *List) AcceptExpr(v ExprVisitor) (any, error) { return v.VisitList(n) }
