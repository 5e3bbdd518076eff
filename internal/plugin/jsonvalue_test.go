package plugin

import (
	"testing"

	"mainstage/internal/ir"
)

func TestMarshalArgsRoundTrip(t *testing.T) {
	args := []ir.Value{ir.Int(3), ir.Str("hi"), ir.Bool(true), ir.Null()}
	data, err := marshalArgs(args)
	if err != nil {
		t.Fatalf("marshalArgs: %v", err)
	}

	got, err := unmarshalResult(data)
	if err != nil {
		t.Fatalf("unmarshalResult: %v", err)
	}
	if got.Kind != ir.VArray || len(got.Arr) != 4 {
		t.Fatalf("round trip = %+v, want 4-element array", got)
	}
	if got.Arr[0].Kind != ir.VInt || got.Arr[0].I != 3 {
		t.Fatalf("arg0 = %+v, want Int(3)", got.Arr[0])
	}
	if got.Arr[1].S != "hi" {
		t.Fatalf("arg1 = %+v, want Str(hi)", got.Arr[1])
	}
}

func TestUnmarshalResultEmptyIsNull(t *testing.T) {
	got, err := unmarshalResult(nil)
	if err != nil {
		t.Fatalf("unmarshalResult(nil): %v", err)
	}
	if got.Kind != ir.VNull {
		t.Fatalf("unmarshalResult(nil) = %+v, want Null", got)
	}
}

func TestFromJSONIntegralFloatBecomesInt(t *testing.T) {
	v := fromJSON(float64(42))
	if v.Kind != ir.VInt || v.I != 42 {
		t.Fatalf("fromJSON(42.0) = %+v, want Int(42)", v)
	}
}

func TestFromJSONFractionalFloatStaysFloat(t *testing.T) {
	v := fromJSON(float64(4.5))
	if v.Kind != ir.VFloat || v.F != 4.5 {
		t.Fatalf("fromJSON(4.5) = %+v, want Float(4.5)", v)
	}
}

func TestToJSONObjectPreservesOrder(t *testing.T) {
	obj := ir.NewObject()
	obj.SetProp("b", ir.Int(2))
	obj.SetProp("a", ir.Int(1))

	j, err := toJSON(obj)
	if err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	m, ok := j.(map[string]any)
	if !ok || len(m) != 2 {
		t.Fatalf("toJSON(object) = %+v, want 2-entry map", j)
	}
}
