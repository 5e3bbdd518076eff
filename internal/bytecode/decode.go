package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"mainstage/internal/ir"
)

// DecodeError wraps a decode failure with the byte offset it was found at.
type DecodeError struct {
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bytecode: decode error at offset %d: %s", e.Offset, e.Msg)
}

// Decode parses an MSBC stream back into an ordered op slice. It does not
// reconstruct a full ir.Module (register/function/object allocators have
// no wire representation); callers that need a Module wrap the returned
// ops directly, as the VM does.
func Decode(data []byte) ([]ir.Op, error) {
	d := &decoder{data: data}
	if err := d.readMagic(); err != nil {
		return nil, err
	}
	version, err := d.u32()
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, &DecodeError{Offset: d.pos, Msg: fmt.Sprintf("unsupported version %d", version)}
	}
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	ops := make([]ir.Op, 0, count)
	for i := uint32(0); i < count; i++ {
		op, err := d.decodeOp()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) readMagic() error {
	if len(d.data) < 4 || string(d.data[:4]) != magic {
		return &DecodeError{Offset: 0, Msg: "bad magic: not an MSBC stream"}
	}
	d.pos = 4
	return nil
}

func (d *decoder) need(n int) error {
	if d.pos+n > len(d.data) {
		return &DecodeError{Offset: d.pos, Msg: "unexpected end of stream"}
	}
	return nil
}

func (d *decoder) byte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) u32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) string() (string, error) {
	n, err := d.u32()
	if err != nil {
		return "", err
	}
	if err := d.need(int(n)); err != nil {
		return "", err
	}
	s := d.data[d.pos : d.pos+int(n)]
	d.pos += int(n)
	if !utf8.Valid(s) {
		return "", &DecodeError{Offset: d.pos - int(n), Msg: "invalid UTF-8 in length-prefixed string"}
	}
	return string(s), nil
}

func (d *decoder) u32Slice(n uint32) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		v, err := d.u32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (d *decoder) decodeOp() (ir.Op, error) {
	start := d.pos
	codeByte, err := d.byte()
	if err != nil {
		return ir.Op{}, err
	}
	code := ir.OpCode(codeByte)
	op := ir.Op{Code: code}

	switch code {
	case ir.OpLConst:
		op.Dest, err = d.u32()
		if err != nil {
			return op, err
		}
		op.Const, err = d.decodeValue()

	case ir.OpLLocal:
		op.Dest, err = d.u32()
		if err == nil {
			op.Local, err = d.u32()
		}
	case ir.OpSLocal:
		op.Src, err = d.u32()
		if err == nil {
			op.Local, err = d.u32()
		}

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte, ir.OpAnd, ir.OpOr:
		op.Dest, err = d.u32()
		if err == nil {
			op.Src, err = d.u32()
		}
		if err == nil {
			op.Src2, err = d.u32()
		}

	case ir.OpNot:
		op.Dest, err = d.u32()
		if err == nil {
			op.Src, err = d.u32()
		}
	case ir.OpInc, ir.OpDec:
		op.Dest, err = d.u32()

	case ir.OpLabel:
		op.Name, err = d.string()
	case ir.OpJump:
		op.Target, err = d.u32()
	case ir.OpBrTrue, ir.OpBrFalse:
		op.Src, err = d.u32()
		if err == nil {
			op.Target, err = d.u32()
		}

	case ir.OpHalt:
		// no payload

	case ir.OpCall:
		op.Dest, err = d.u32()
		if err == nil {
			op.FuncReg, err = d.u32()
		}
		if err == nil {
			var n uint32
			n, err = d.u32()
			if err == nil {
				op.Args, err = d.u32Slice(n)
			}
		}
	case ir.OpCallLabel:
		op.Dest, err = d.u32()
		if err == nil {
			op.LabelIndex, err = d.u32()
		}
		if err == nil {
			var n uint32
			n, err = d.u32()
			if err == nil {
				op.Args, err = d.u32Slice(n)
			}
		}
	case ir.OpPluginCall:
		op.PluginName, err = d.string()
		if err == nil {
			op.FuncName, err = d.string()
		}
		if err == nil {
			var n uint32
			n, err = d.u32()
			if err == nil {
				op.Args, err = d.u32Slice(n)
			}
		}
		if err == nil {
			var hasDest uint32
			hasDest, err = d.u32()
			if err == nil && hasDest != 0 {
				op.HasDest = true
				op.Dest, err = d.u32()
			}
		}

	case ir.OpRet:
		op.Src, err = d.u32()

	case ir.OpArrayNew:
		op.Dest, err = d.u32()
		if err == nil {
			var n uint32
			n, err = d.u32()
			if err == nil {
				op.Elems, err = d.u32Slice(n)
			}
		}
	case ir.OpArrayGet:
		op.Dest, err = d.u32()
		if err == nil {
			op.Src, err = d.u32()
		}
		if err == nil {
			op.Src2, err = d.u32()
		}
	case ir.OpArraySet:
		op.Dest, err = d.u32()
		if err == nil {
			op.Src2, err = d.u32()
		}
		if err == nil {
			op.Src, err = d.u32()
		}
	case ir.OpGetProp:
		op.Dest, err = d.u32()
		if err == nil {
			op.Src, err = d.u32()
		}
		if err == nil {
			op.Src2, err = d.u32()
		}
	case ir.OpSetProp:
		op.Dest, err = d.u32()
		if err == nil {
			op.Src2, err = d.u32()
		}
		if err == nil {
			op.Src, err = d.u32()
		}
	case ir.OpLoadGlobal:
		op.Dest, err = d.u32()
		if err == nil {
			op.Src, err = d.u32()
		}

	default:
		return op, &DecodeError{Offset: start, Msg: fmt.Sprintf("unknown opcode tag 0x%02x", codeByte)}
	}
	return op, err
}

func (d *decoder) decodeValue() (ir.Value, error) {
	tag, err := d.byte()
	if err != nil {
		return ir.Value{}, err
	}
	switch tag {
	case 0x01:
		bits, err := d.u64()
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Int(int64(bits)), nil
	case 0x02:
		bits, err := d.u64()
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Float(math.Float64frombits(bits)), nil
	case 0x03:
		b, err := d.byte()
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Bool(b != 0), nil
	case 0x04:
		s, err := d.string()
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Str(s), nil
	case 0x05:
		s, err := d.string()
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Symbol(s), nil
	case 0x06:
		n, err := d.u32()
		if err != nil {
			return ir.Value{}, err
		}
		elems := make([]ir.Value, n)
		for i := range elems {
			elems[i], err = d.decodeValue()
			if err != nil {
				return ir.Value{}, err
			}
		}
		return ir.Array(elems), nil
	case 0x07:
		return ir.Null(), nil
	case 0x08:
		n, err := d.u32()
		if err != nil {
			return ir.Value{}, err
		}
		obj := ir.NewObject()
		for i := uint32(0); i < n; i++ {
			key, err := d.string()
			if err != nil {
				return ir.Value{}, err
			}
			val, err := d.decodeValue()
			if err != nil {
				return ir.Value{}, err
			}
			obj.SetProp(key, val)
		}
		return obj, nil
	default:
		return ir.Value{}, &DecodeError{Offset: d.pos - 1, Msg: fmt.Sprintf("unknown value tag 0x%02x", tag)}
	}
}
