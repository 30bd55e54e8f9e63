package replica

import (
	"math/big"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	buf := NewArrayBuffer(make([]byte, 8))
	f64, _ := NewTypedArray(Float64, buf, 0, 1)
	dv, _ := NewDataView(buf, 0, 8)
	re, _ := NewRegExp("x", "")
	secret, _ := NewSecret([]byte("k"), "HMAC")

	tests := []struct {
		name string
		v    Value
		want Tag
	}{
		{"nil", nil, TagNull},
		{"nil object", (*Object)(nil), TagNull},
		{"undefined", Undefined, TagUndefined},
		{"bool", false, TagBool},
		{"float", 1.5, TagNum},
		{"int", 3, TagNum},
		{"string", "s", TagStr},
		{"symbol", NewSymbol("s"), TagSym},
		{"bigint", big.NewInt(1), TagBig},
		{"opaque", struct{}{}, TagOpaque},
		{"object", NewObject(), TagObject},
		{"array", NewArray(), TagArray},
		{"function", NewFunction("f", nil), TagFunction},
		{"boxed string", NewString("s"), TagString},
		{"boxed bigint", NewBigIntObject(big.NewInt(1)), TagBigInt},
		{"date", NewDate(time.Now()), TagDate},
		{"regexp", re, TagRegExp},
		{"error", NewError("TypeError", "x"), TagError},
		{"map", NewMap(), TagMap},
		{"set", NewSet(), TagSet},
		{"weak map", NewWeakMap(), TagWeakMap},
		{"weak set", NewWeakSet(), TagWeakSet},
		{"buffer", buf, TagArrayBuffer},
		{"typed array", f64, TagFloat64Array},
		{"data view", dv, TagDataView},
		{"exception", NewException("m", "AbortError"), TagException},
		{"secret", secret, TagSecret},
		{"resource", NewAsyncResource("r", nil), TagAsyncResource},
		{"host struct", &struct{ A int }{}, TagHostStruct},
		{"host slice", []string{"a"}, TagHostSlice},
		{"host map", map[string]int{}, TagHostMap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.v, false); got != tt.want {
				t.Errorf("Classify(fast) = %s, want %s", got, tt.want)
			}
			if got := Classify(tt.v, true); got != tt.want {
				t.Errorf("Classify(robust) = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify_Spoofed(t *testing.T) {
	m := NewMap()
	_ = m.DefineOwnProperty(SymbolKey(SymbolToStringTag), Descriptor{Value: "Object"})
	if got := Classify(m, false); got != TagObject {
		t.Errorf("fast Classify() = %s, want the spoofed tag", got)
	}
	if got := Classify(m, true); got != TagMap {
		t.Errorf("robust Classify() = %s, want Map", got)
	}

	plain := NewObject()
	_ = plain.DefineOwnProperty(SymbolKey(SymbolToStringTag), Descriptor{Value: "Custom"})
	if got := Classify(plain, true); got != "Custom" {
		t.Errorf("robust Classify() = %s, want the fast fallback", got)
	}
}

func TestClassify_AggregateError(t *testing.T) {
	agg := NewAggregateError(nil, "x")
	if got := Classify(agg, false); got != TagError {
		t.Errorf("fast Classify() = %s, want Error", got)
	}
	if got := Classify(agg, true); got != TagAggregateError {
		t.Errorf("robust Classify() = %s, want AggregateError", got)
	}
}

func TestClassify_TagGetterNotRun(t *testing.T) {
	ran := false
	getter := NewFunction("tag", func(Value, ...Value) (Value, error) {
		ran = true
		return "Map", nil
	})
	o := NewObject()
	_ = o.DefineAccessor(SymbolKey(SymbolToStringTag), getter, nil, false, true)

	if got := Classify(o, false); got != TagObject {
		t.Errorf("Classify() = %s, want Object", got)
	}
	if ran {
		t.Error("tag getter should not run")
	}
}

func TestClassify_DetachedPrototype(t *testing.T) {
	d := NewDate(time.Now())
	_ = d.SetPrototype(nil)
	if got := Classify(d, true); got != TagDate {
		t.Errorf("robust Classify() = %s, want the slot fallback", got)
	}
}
