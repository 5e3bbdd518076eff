package ir

// OpCode tags one of IR's three-address instructions. The numeric values
// deliberately mirror the MSBC wire opcodes (see internal/bytecode) so
// encode/decode is a direct mapping.
type OpCode uint8

const (
	OpLConst OpCode = 0x01
	OpLLocal OpCode = 0x02
	OpSLocal OpCode = 0x03

	OpAdd OpCode = 0x10
	OpSub OpCode = 0x11
	OpMul OpCode = 0x12
	OpDiv OpCode = 0x13
	OpMod OpCode = 0x14

	OpEq  OpCode = 0x20
	OpNeq OpCode = 0x21
	OpLt  OpCode = 0x22
	OpLte OpCode = 0x23
	OpGt  OpCode = 0x24
	OpGte OpCode = 0x25
	OpAnd OpCode = 0x26
	OpOr  OpCode = 0x27

	OpNot OpCode = 0x28
	OpInc OpCode = 0x30
	OpDec OpCode = 0x31

	OpLabel   OpCode = 0x40
	OpJump    OpCode = 0x41
	OpBrTrue  OpCode = 0x42
	OpBrFalse OpCode = 0x43

	OpHalt OpCode = 0x50

	OpAllocClosure OpCode = 0x60
	OpCStore       OpCode = 0x61
	OpCLoad        OpCode = 0x62

	OpCall       OpCode = 0x70
	OpCallLabel  OpCode = 0x71
	OpPluginCall OpCode = 0x72

	OpRet OpCode = 0x80

	OpArrayNew  OpCode = 0x90
	OpArrayGet  OpCode = 0x91
	OpArraySet  OpCode = 0x92
	OpGetProp   OpCode = 0x93
	OpSetProp   OpCode = 0x94
	OpLoadGlobal OpCode = 0x95
)

// Op is a single IR instruction. It is a flat struct rather than one Go
// type per opcode so the bytecode codec can encode/decode it uniformly;
// which fields are meaningful is determined entirely by Code.
type Op struct {
	Code OpCode

	Dest  uint32
	Src   uint32
	Src2  uint32
	Local uint32

	Const Value

	Name   string // Label name
	Target uint32 // Jump/BrTrue/BrFalse op-index target

	FuncReg    uint32 // Call: register holding Symbol(name)
	LabelIndex uint32 // CallLabel: target function's label index
	Args       []uint32

	PluginName string
	FuncName   string
	HasDest    bool // PluginCall: whether Dest is meaningful

	Elems []uint32 // ArrayNew element registers
}

func LConst(dest uint32, v Value) Op        { return Op{Code: OpLConst, Dest: dest, Const: v} }
func LLocal(dest, local uint32) Op          { return Op{Code: OpLLocal, Dest: dest, Local: local} }
func SLocal(src, local uint32) Op           { return Op{Code: OpSLocal, Src: src, Local: local} }
func LoadGlobal(dest, src uint32) Op        { return Op{Code: OpLoadGlobal, Dest: dest, Src: src} }

func binOp(code OpCode, dest, s1, s2 uint32) Op {
	return Op{Code: code, Dest: dest, Src: s1, Src2: s2}
}

func Add(dest, s1, s2 uint32) Op  { return binOp(OpAdd, dest, s1, s2) }
func Sub(dest, s1, s2 uint32) Op  { return binOp(OpSub, dest, s1, s2) }
func Mul(dest, s1, s2 uint32) Op  { return binOp(OpMul, dest, s1, s2) }
func Div(dest, s1, s2 uint32) Op  { return binOp(OpDiv, dest, s1, s2) }
func Mod(dest, s1, s2 uint32) Op  { return binOp(OpMod, dest, s1, s2) }
func Eq(dest, s1, s2 uint32) Op   { return binOp(OpEq, dest, s1, s2) }
func Neq(dest, s1, s2 uint32) Op  { return binOp(OpNeq, dest, s1, s2) }
func Lt(dest, s1, s2 uint32) Op   { return binOp(OpLt, dest, s1, s2) }
func Lte(dest, s1, s2 uint32) Op  { return binOp(OpLte, dest, s1, s2) }
func Gt(dest, s1, s2 uint32) Op   { return binOp(OpGt, dest, s1, s2) }
func Gte(dest, s1, s2 uint32) Op  { return binOp(OpGte, dest, s1, s2) }
func And(dest, s1, s2 uint32) Op  { return binOp(OpAnd, dest, s1, s2) }
func Or(dest, s1, s2 uint32) Op   { return binOp(OpOr, dest, s1, s2) }

func Not(dest, src uint32) Op { return Op{Code: OpNot, Dest: dest, Src: src} }
func Inc(reg uint32) Op       { return Op{Code: OpInc, Dest: reg} }
func Dec(reg uint32) Op       { return Op{Code: OpDec, Dest: reg} }

func Label(name string) Op             { return Op{Code: OpLabel, Name: name} }
func Jump(target uint32) Op            { return Op{Code: OpJump, Target: target} }
func BrTrue(cond, target uint32) Op    { return Op{Code: OpBrTrue, Src: cond, Target: target} }
func BrFalse(cond, target uint32) Op   { return Op{Code: OpBrFalse, Src: cond, Target: target} }
func Halt() Op                         { return Op{Code: OpHalt} }
func Ret(src uint32) Op                { return Op{Code: OpRet, Src: src} }

func Call(dest, funcReg uint32, args []uint32) Op {
	return Op{Code: OpCall, Dest: dest, FuncReg: funcReg, Args: args}
}
func CallLabel(dest, labelIndex uint32, args []uint32) Op {
	return Op{Code: OpCallLabel, Dest: dest, LabelIndex: labelIndex, Args: args}
}
func PluginCall(dest uint32, hasDest bool, pluginName, funcName string, args []uint32) Op {
	return Op{Code: OpPluginCall, Dest: dest, HasDest: hasDest, PluginName: pluginName, FuncName: funcName, Args: args}
}

func ArrayNew(dest uint32, elems []uint32) Op { return Op{Code: OpArrayNew, Dest: dest, Elems: elems} }
func ArrayGet(dest, obj, idx uint32) Op       { return Op{Code: OpArrayGet, Dest: dest, Src: obj, Src2: idx} }
func ArraySet(obj, idx, src uint32) Op        { return Op{Code: OpArraySet, Dest: obj, Src2: idx, Src: src} }
func GetProp(dest, obj, key uint32) Op        { return Op{Code: OpGetProp, Dest: dest, Src: obj, Src2: key} }
func SetProp(obj, key, src uint32) Op         { return Op{Code: OpSetProp, Dest: obj, Src2: key, Src: src} }

// IsBranch reports whether the op carries a numeric op-index Target that
// branch patching and compaction must rewrite.
func (op Op) IsBranch() bool {
	return op.Code == OpJump || op.Code == OpBrTrue || op.Code == OpBrFalse
}

// WritesReg reports whether the op has a single well-defined destination
// register, and returns it. Multi-write or no-write ops return false.
func (op Op) WritesReg() (uint32, bool) {
	switch op.Code {
	case OpLConst, OpLLocal, OpLoadGlobal, OpAdd, OpSub, OpMul, OpDiv, OpMod,
		OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpAnd, OpOr, OpNot,
		OpArrayNew, OpArrayGet, OpGetProp:
		return op.Dest, true
	case OpCall, OpCallLabel:
		return op.Dest, true
	case OpPluginCall:
		return op.Dest, op.HasDest
	default:
		return 0, false
	}
}

// ReadsRegs returns every register this op reads, for liveness analysis.
func (op Op) ReadsRegs() []uint32 {
	var regs []uint32
	switch op.Code {
	case OpSLocal:
		regs = append(regs, op.Src)
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpAnd, OpOr:
		regs = append(regs, op.Src, op.Src2)
	case OpNot:
		regs = append(regs, op.Src)
	case OpInc, OpDec:
		regs = append(regs, op.Dest)
	case OpBrTrue, OpBrFalse:
		regs = append(regs, op.Src)
	case OpRet:
		regs = append(regs, op.Src)
	case OpCall:
		regs = append(regs, op.FuncReg)
		regs = append(regs, op.Args...)
	case OpCallLabel, OpPluginCall:
		regs = append(regs, op.Args...)
	case OpArrayNew:
		regs = append(regs, op.Elems...)
	case OpArrayGet:
		regs = append(regs, op.Src, op.Src2)
	case OpArraySet:
		regs = append(regs, op.Dest, op.Src2, op.Src)
	case OpGetProp:
		regs = append(regs, op.Src, op.Src2)
	case OpSetProp:
		regs = append(regs, op.Dest, op.Src2, op.Src)
	case OpLoadGlobal:
		regs = append(regs, op.Src)
	}
	return regs
}

// IsSideEffecting reports whether the op must be kept by DCE regardless
// of whether its destination (if any) is live.
func (op Op) IsSideEffecting() bool {
	switch op.Code {
	case OpCall, OpCallLabel, OpPluginCall, OpSetProp, OpArraySet, OpCStore,
		OpJump, OpBrTrue, OpBrFalse, OpRet, OpHalt, OpLabel, OpInc, OpDec:
		return true
	default:
		return false
	}
}
