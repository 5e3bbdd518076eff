// Package vm implements MainStage's register-based bytecode interpreter:
// a grow-on-demand register file, a call-frame stack rooted at a
// returnless frame, a step-counted fuel valve against runaway loops, host
// builtins, and the plugin-call boundary.
package vm

import (
	"fmt"

	"mainstage/internal/ir"
	"mainstage/internal/plugin"
)

// DefaultMaxSteps bounds execution against infinite loops absent an
// explicit Options.MaxSteps. Ten million single ops is generous for any
// MainStage workspace while still failing fast on a runaway.
const DefaultMaxSteps = 10_000_000

// Options configures a VM run.
type Options struct {
	MaxSteps int
	Trace    bool
	Plugins  *plugin.Registry
}

// frame is one call-frame: its local-slot array, where to resume the
// caller, and which register receives the return value.
type frame struct {
	locals    []ir.Value
	returnPC  int
	returnReg uint32
	hasReturn bool // false only for the root frame
}

// VM executes a decoded op vector.
type VM struct {
	ops   []ir.Op
	labelIndexToPC map[uint32]int // function label_index -> op-index of its Label
	labelNameToPC  map[string]int

	registers []ir.Value
	frames    []*frame

	pc    int
	steps int

	opts    Options
	plugins *plugin.Registry
}

// New builds a VM over a decoded op vector, indexing every Label by name
// and by the "L{n}" convention lowering uses for function entry points.
func New(ops []ir.Op, opts Options) *VM {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	v := &VM{
		ops:            ops,
		labelIndexToPC: make(map[uint32]int),
		labelNameToPC:  make(map[string]int),
		opts:           opts,
		plugins:        opts.Plugins,
	}
	for i, op := range ops {
		if op.Code == ir.OpLabel {
			v.labelNameToPC[op.Name] = i
			if n, ok := parseLabelFuncIndex(op.Name); ok {
				v.labelIndexToPC[n] = i
			}
		}
	}
	v.frames = []*frame{{hasReturn: false}}
	return v
}

// parseLabelFuncIndex recognizes the "L{n}" label-name convention
// lowering uses for function entry points (see internal/ir lowerStage),
// returning n.
func parseLabelFuncIndex(name string) (uint32, bool) {
	if len(name) < 2 || name[0] != 'L' {
		return 0, false
	}
	var n uint32
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint32(c-'0')
	}
	return n, true
}

func (v *VM) reg(i uint32) ir.Value {
	if int(i) >= len(v.registers) {
		return ir.Null()
	}
	return v.registers[i]
}

func (v *VM) setReg(i uint32, val ir.Value) {
	for uint32(len(v.registers)) <= i {
		v.registers = append(v.registers, ir.Null())
	}
	v.registers[i] = val
}

func (v *VM) curFrame() *frame { return v.frames[len(v.frames)-1] }

func (v *VM) local(slot uint32) ir.Value {
	f := v.curFrame()
	if int(slot) >= len(f.locals) {
		return ir.Null()
	}
	return f.locals[slot]
}

func (v *VM) setLocal(slot uint32, val ir.Value) {
	f := v.curFrame()
	for uint32(len(f.locals)) <= slot {
		f.locals = append(f.locals, ir.Null())
	}
	f.locals[slot] = val
}

// Run executes from op 0 until Halt or a return past the root frame.
func (v *VM) Run() error {
	for {
		if v.pc < 0 || v.pc >= len(v.ops) {
			return nil
		}
		v.steps++
		if v.steps > v.opts.MaxSteps {
			return &RuntimeError{Op: "step-limit", Msg: fmt.Sprintf("exceeded %d steps", v.opts.MaxSteps)}
		}
		op := v.ops[v.pc]
		if v.opts.Trace {
			fmt.Printf("[%04d] %s\n", v.pc, traceOp(op))
		}
		halted, err := v.step(op)
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// step executes one op, returning true if execution should stop.
func (v *VM) step(op ir.Op) (bool, error) {
	next := v.pc + 1
	switch op.Code {
	case ir.OpLConst:
		v.setReg(op.Dest, op.Const)
	case ir.OpLLocal:
		v.setReg(op.Dest, v.local(op.Local))
	case ir.OpSLocal:
		v.setLocal(op.Local, v.reg(op.Src))

	case ir.OpAdd:
		v.setReg(op.Dest, addValues(v.reg(op.Src), v.reg(op.Src2)))
	case ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod:
		v.setReg(op.Dest, arithValues(op.Code, v.reg(op.Src), v.reg(op.Src2)))
	case ir.OpEq:
		v.setReg(op.Dest, ir.Bool(ir.ValuesEqual(v.reg(op.Src), v.reg(op.Src2))))
	case ir.OpNeq:
		v.setReg(op.Dest, ir.Bool(!ir.ValuesEqual(v.reg(op.Src), v.reg(op.Src2))))
	case ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte:
		v.setReg(op.Dest, compareValues(op.Code, v.reg(op.Src), v.reg(op.Src2)))
	case ir.OpAnd:
		v.setReg(op.Dest, ir.Bool(v.reg(op.Src).IsTruthy() && v.reg(op.Src2).IsTruthy()))
	case ir.OpOr:
		v.setReg(op.Dest, ir.Bool(v.reg(op.Src).IsTruthy() || v.reg(op.Src2).IsTruthy()))
	case ir.OpNot:
		v.setReg(op.Dest, ir.Bool(!v.reg(op.Src).IsTruthy()))
	case ir.OpInc:
		v.setReg(op.Dest, addValues(v.reg(op.Dest), ir.Int(1)))
	case ir.OpDec:
		v.setReg(op.Dest, arithValues(ir.OpSub, v.reg(op.Dest), ir.Int(1)))

	case ir.OpLabel:
		// no-op marker

	case ir.OpJump:
		next = int(op.Target)
	case ir.OpBrTrue:
		if v.reg(op.Src).IsTruthy() {
			next = int(op.Target)
		}
	case ir.OpBrFalse:
		if !v.reg(op.Src).IsTruthy() {
			next = int(op.Target)
		}

	case ir.OpHalt:
		return true, nil

	case ir.OpCall:
		res, err := v.callBuiltin(op)
		if err != nil {
			return false, err
		}
		v.setReg(op.Dest, res)

	case ir.OpCallLabel:
		entry, ok := v.labelIndexToPC[op.LabelIndex]
		if !ok {
			return false, &RuntimeError{Op: "CallLabel", Msg: fmt.Sprintf("no Label for function id %d", op.LabelIndex)}
		}
		args := make([]ir.Value, len(op.Args))
		for i, r := range op.Args {
			args[i] = v.reg(r)
		}
		v.frames = append(v.frames, &frame{
			locals:    args,
			returnPC:  next,
			returnReg: op.Dest,
			hasReturn: true,
		})
		next = entry + 1

	case ir.OpPluginCall:
		res, err := v.pluginCall(op)
		if err != nil {
			return false, err
		}
		if op.HasDest {
			v.setReg(op.Dest, res)
		}

	case ir.OpRet:
		val := v.reg(op.Src)
		f := v.frames[len(v.frames)-1]
		if !f.hasReturn {
			return true, nil
		}
		v.frames = v.frames[:len(v.frames)-1]
		v.setReg(f.returnReg, val)
		next = f.returnPC

	case ir.OpArrayNew:
		elems := make([]ir.Value, len(op.Elems))
		for i, r := range op.Elems {
			elems[i] = v.reg(r)
		}
		v.setReg(op.Dest, ir.Array(elems))
	case ir.OpArrayGet:
		v.setReg(op.Dest, arrayGet(v.reg(op.Src), v.reg(op.Src2)))
	case ir.OpArraySet:
		v.setReg(op.Dest, arraySet(v.reg(op.Dest), v.reg(op.Src2), v.reg(op.Src)))
	case ir.OpGetProp:
		v.setReg(op.Dest, getProp(v.reg(op.Src), v.reg(op.Src2)))
	case ir.OpSetProp:
		v.setReg(op.Dest, setProp(v.reg(op.Dest), v.reg(op.Src2), v.reg(op.Src)))
	case ir.OpLoadGlobal:
		v.setReg(op.Dest, v.reg(op.Src))

	default:
		return false, &RuntimeError{Op: "decode", Msg: fmt.Sprintf("unhandled opcode 0x%02x", byte(op.Code))}
	}
	v.pc = next
	return false, nil
}

func (v *VM) pluginCall(op ir.Op) (ir.Value, error) {
	if v.plugins == nil {
		return ir.Value{}, &RuntimeError{Op: "PluginCall", Msg: "no plugin registry configured"}
	}
	args := make([]ir.Value, len(op.Args))
	for i, r := range op.Args {
		args[i] = v.reg(r)
	}
	res, err := v.plugins.Call(op.PluginName, op.FuncName, args)
	if err != nil {
		return ir.Value{}, &RuntimeError{Op: "PluginCall", Msg: fmt.Sprintf("%s.%s: %v", op.PluginName, op.FuncName, err)}
	}
	return res, nil
}

func traceOp(op ir.Op) string {
	return fmt.Sprintf("%+v", op)
}

// RuntimeError is the VM's uniform error type for host/plugin failures,
// bad call targets, and the step-limit valve.
type RuntimeError struct {
	Op  string
	Msg string
}

func (e *RuntimeError) Error() string { return fmt.Sprintf("runtime error in %s: %s", e.Op, e.Msg) }
