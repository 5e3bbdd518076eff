package plugin

import (
	"encoding/json"
	"fmt"

	"mainstage/internal/ir"
)

// toJSON converts a VM Value into a plain Go value encodable by
// encoding/json, for the in-process and external adapters' wire format.
func toJSON(v ir.Value) (any, error) {
	switch v.Kind {
	case ir.VInt:
		return v.I, nil
	case ir.VFloat:
		return v.F, nil
	case ir.VBool:
		return v.B, nil
	case ir.VStr, ir.VSymbol:
		return v.S, nil
	case ir.VNull:
		return nil, nil
	case ir.VArray:
		out := make([]any, len(v.Arr))
		for i, e := range v.Arr {
			je, err := toJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = je
		}
		return out, nil
	case ir.VObject:
		out := make(map[string]any, len(v.ObjOrder))
		for _, k := range v.ObjOrder {
			je, err := toJSON(v.Obj[k])
			if err != nil {
				return nil, err
			}
			out[k] = je
		}
		return out, nil
	default:
		return nil, fmt.Errorf("plugin: cannot encode value kind %d to JSON", v.Kind)
	}
}

// fromJSON converts an already-decoded JSON value (the output of
// encoding/json.Unmarshal into an `any`) into a VM Value.
func fromJSON(j any) ir.Value {
	switch x := j.(type) {
	case nil:
		return ir.Null()
	case bool:
		return ir.Bool(x)
	case float64:
		if x == float64(int64(x)) {
			return ir.Int(int64(x))
		}
		return ir.Float(x)
	case string:
		return ir.Str(x)
	case []any:
		elems := make([]ir.Value, len(x))
		for i, e := range x {
			elems[i] = fromJSON(e)
		}
		return ir.Array(elems)
	case map[string]any:
		obj := ir.NewObject()
		for k, v := range x {
			obj.SetProp(k, fromJSON(v))
		}
		return obj
	default:
		return ir.Null()
	}
}

// marshalArgs encodes an argument list as a JSON array, the wire shape
// both boundary-crossing adapters send.
func marshalArgs(args []ir.Value) ([]byte, error) {
	jargs := make([]any, len(args))
	for i, a := range args {
		j, err := toJSON(a)
		if err != nil {
			return nil, err
		}
		jargs[i] = j
	}
	return json.Marshal(jargs)
}

// unmarshalResult decodes a plugin's JSON response back into a Value.
func unmarshalResult(data []byte) (ir.Value, error) {
	if len(data) == 0 {
		return ir.Null(), nil
	}
	var j any
	if err := json.Unmarshal(data, &j); err != nil {
		return ir.Value{}, fmt.Errorf("plugin: decode response: %w", err)
	}
	return fromJSON(j), nil
}
