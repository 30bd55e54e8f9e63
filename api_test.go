package replica

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"
	"time"
)

// quiet records diagnostics instead of emitting signals.
func quiet() (*Recorder, Option) {
	rec := &Recorder{}
	return rec, WithLogger(rec)
}

func mustClone(t *testing.T, v Value, opts ...Option) Value {
	t.Helper()
	c, err := Clone(v, opts...)
	if err != nil {
		t.Fatalf("Clone() error: %v", err)
	}
	return c
}

func mustObject(t *testing.T, v Value) *Object {
	t.Helper()
	o, ok := v.(*Object)
	if !ok || o == nil {
		t.Fatalf("value %v (%T) is not an object", v, v)
	}
	return o
}

func TestClone_Primitives(t *testing.T) {
	sym := NewSymbol("s")
	n := big.NewInt(99)
	tests := []struct {
		name string
		v    Value
	}{
		{"null", nil},
		{"undefined", Undefined},
		{"bool", true},
		{"float", 3.5},
		{"int", 7},
		{"string", "text"},
		{"symbol", sym},
		{"bigint", n},
		{"opaque", struct{ A int }{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, opt := quiet()
			got := mustClone(t, tt.v, opt)
			if !sameValue(got, tt.v) && !primitiveEqual(got, tt.v) {
				t.Errorf("Clone(%v) = %v, want the same value", tt.v, got)
			}
			if len(rec.Diagnostics()) != 0 {
				t.Errorf("unexpected diagnostics: %v", rec.Diagnostics())
			}
		})
	}

	t.Run("NaN", func(t *testing.T) {
		got := mustClone(t, math.NaN())
		if f, ok := got.(float64); !ok || !math.IsNaN(f) {
			t.Errorf("Clone(NaN) = %v", got)
		}
	})

	t.Run("symbol identity", func(t *testing.T) {
		if mustClone(t, sym) != Value(sym) {
			t.Error("symbols should be returned as-is")
		}
	})
}

func TestClone_NestedPlainData(t *testing.T) {
	nested := NewObject().SetString("b", 2.0)
	orig := NewObject().SetString("a", 1.0).SetString("nested", nested)

	clone := mustObject(t, mustClone(t, orig))

	if clone == orig {
		t.Fatal("clone should be a new object")
	}
	if !Equal(orig, clone) {
		t.Error("clone should be structurally equal to the original")
	}
	if clone.GetString("nested") == Value(nested) {
		t.Error("nested object should be cloned, not shared")
	}
	if clone.Prototype() != ObjectPrototype {
		t.Error("clone should keep the object prototype")
	}
}

func TestClone_CircularReference(t *testing.T) {
	a := NewObject()
	a.SetString("self", a)
	b := NewObject().SetString("back", a)
	a.SetString("b", b)

	clone := mustObject(t, mustClone(t, a))

	if clone.GetString("self") != Value(clone) {
		t.Error("self reference should point at the clone")
	}
	cb := mustObject(t, clone.GetString("b"))
	if cb.GetString("back") != Value(clone) {
		t.Error("indirect cycle should close on the clone")
	}
	if cb == b {
		t.Error("cycle member should be cloned")
	}
}

func TestClone_SharedReference(t *testing.T) {
	s := NewObject()
	a := NewObject().SetString("x", s).SetString("y", s)

	clone := mustObject(t, mustClone(t, a))

	x, y := clone.GetString("x"), clone.GetString("y")
	if x != y {
		t.Error("shared target should clone to one shared clone")
	}
	if x == Value(s) {
		t.Error("shared target should be cloned")
	}
}

func TestClone_Idempotent(t *testing.T) {
	orig := NewArray(
		NewObject().SetString("k", "v"),
		NewMap("a", NewSet(1.0, 2.0)),
		NewDate(time.Unix(1700000000, 0)),
	)
	once := mustClone(t, orig)
	twice := mustClone(t, once)
	if !Equal(once, twice) {
		t.Error("clone of a clone should equal the clone")
	}
}

func TestClone_Descriptors(t *testing.T) {
	orig := NewObject()
	flags := []Descriptor{
		{Value: 1.0},
		{Value: 2.0, Writable: true},
		{Value: 3.0, Enumerable: true},
		{Value: 4.0, Configurable: true},
		{Value: 5.0, Writable: true, Enumerable: true, Configurable: true},
	}
	for i, d := range flags {
		if err := orig.DefineOwnProperty(IndexKey(i), d); err != nil {
			t.Fatalf("DefineOwnProperty() error: %v", err)
		}
	}
	sym := NewSymbol("hidden")
	if err := orig.DefineOwnProperty(SymbolKey(sym), Descriptor{Value: "s"}); err != nil {
		t.Fatalf("DefineOwnProperty() error: %v", err)
	}

	clone := mustObject(t, mustClone(t, orig))

	for i, want := range flags {
		got, ok := clone.GetOwnProperty(IndexKey(i))
		if !ok {
			t.Fatalf("property %d missing", i)
		}
		if got.Writable != want.Writable || got.Enumerable != want.Enumerable || got.Configurable != want.Configurable {
			t.Errorf("property %d flags = %+v, want %+v", i, got, want)
		}
		if got.Value != want.Value {
			t.Errorf("property %d value = %v, want %v", i, got.Value, want.Value)
		}
	}
	if d, ok := clone.GetOwnProperty(SymbolKey(sym)); !ok || d.Value != "s" || d.Enumerable {
		t.Errorf("symbol property = %+v, %v", d, ok)
	}
}

func TestClone_AccessorsRelocated(t *testing.T) {
	getter := NewFunction("get", func(Value, ...Value) (Value, error) { return 42.0, nil })
	orig := NewObject()
	if err := orig.DefineAccessor(StringKey("answer"), getter, nil, true, true); err != nil {
		t.Fatalf("DefineAccessor() error: %v", err)
	}

	rec, opt := quiet()
	clone := mustObject(t, mustClone(t, orig, opt))

	d, ok := clone.GetOwnProperty(StringKey("answer"))
	if !ok || d.Get != getter {
		t.Error("accessor should be copied by reference")
	}
	if clone.GetString("answer") != 42.0 {
		t.Error("relocated getter should still work")
	}
	if !rec.Has(DiagAccessor) {
		t.Error("expected an accessor diagnostic")
	}
}

func TestClone_Integrity(t *testing.T) {
	tests := []struct {
		name  string
		apply func(o *Object)
	}{
		{"frozen", func(o *Object) { o.Freeze() }},
		{"sealed", func(o *Object) { o.Seal() }},
		{"non-extensible", func(o *Object) { o.PreventExtensions() }},
		{"open", func(*Object) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := NewObject().SetString("leaf", true)
			orig := NewObject().SetString("a", 1.0).SetString("inner", inner)
			tt.apply(inner)
			tt.apply(orig)

			clone := mustObject(t, mustClone(t, orig))
			ci := mustObject(t, clone.GetString("inner"))

			for _, pair := range [][2]*Object{{orig, clone}, {inner, ci}} {
				o, c := pair[0], pair[1]
				if o.IsFrozen() != c.IsFrozen() || o.IsSealed() != c.IsSealed() || o.IsExtensible() != c.IsExtensible() {
					t.Errorf("integrity mismatch: frozen %v/%v sealed %v/%v extensible %v/%v",
						o.IsFrozen(), c.IsFrozen(), o.IsSealed(), c.IsSealed(), o.IsExtensible(), c.IsExtensible())
				}
			}
			if clone.GetString("a") != 1.0 {
				t.Error("properties should be populated before finalization")
			}
		})
	}
}

func TestClone_Map(t *testing.T) {
	inner := NewObject().SetString("v", 1.0)
	orig := NewMap("prim", 5.0, "obj", inner)

	clone := mustObject(t, mustClone(t, orig))
	m, ok := clone.MapData()
	if !ok {
		t.Fatal("clone should be a map")
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	if v, _ := m.Get("prim"); v != 5.0 {
		t.Errorf("primitive entry = %v, want 5", v)
	}
	v, _ := m.Get("obj")
	if v == Value(inner) {
		t.Error("container entry should be cloned")
	}
	if !Equal(inner, v) {
		t.Error("container entry should be equal to the original")
	}
}

func TestClone_MapOrderAndCycles(t *testing.T) {
	m := NewMap()
	data, _ := m.MapData()
	key := NewObject()
	data.Set("first", 1.0)
	data.Set(key, m)
	data.Set("last", key)

	clone := mustObject(t, mustClone(t, m))
	cd, _ := clone.MapData()

	var keys []Value
	cd.Range(func(k, v Value) bool {
		keys = append(keys, k)
		return true
	})
	if len(keys) != 3 || keys[0] != "first" || keys[2] != "last" {
		t.Fatalf("keys = %v, want insertion order", keys)
	}
	ck := mustObject(t, keys[1])
	if ck == key {
		t.Error("object key should be cloned")
	}
	if v, _ := cd.Get(ck); v != Value(clone) {
		t.Error("map value cycle should point at the cloned map")
	}
	if v, _ := cd.Get("last"); v != Value(ck) {
		t.Error("shared key object should clone once")
	}
}

func TestClone_Set(t *testing.T) {
	member := NewObject()
	orig := NewSet("a", member, 2.0)

	clone := mustObject(t, mustClone(t, orig))
	s, ok := clone.SetData()
	if !ok {
		t.Fatal("clone should be a set")
	}
	vals := s.Values()
	if len(vals) != 3 || vals[0] != "a" || vals[2] != 2.0 {
		t.Fatalf("members = %v", vals)
	}
	if vals[1] == Value(member) {
		t.Error("object member should be cloned")
	}
}

func TestClone_ErrorWithCause(t *testing.T) {
	cause := NewObject().SetString("code", 7.0)
	orig := NewErrorWithCause("RangeError", "out of range", cause)

	clone := mustObject(t, mustClone(t, orig))

	if !IsError(clone) {
		t.Fatal("clone should carry error data")
	}
	if clone.Prototype() != errorPrototypes["RangeError"] {
		t.Error("clone should use the RangeError family")
	}
	if clone.GetString("message") != "out of range" {
		t.Errorf("message = %v", clone.GetString("message"))
	}
	cc := clone.GetString("cause")
	if cc == Value(cause) {
		t.Error("cause should be cloned, not shared")
	}
	if !Equal(cause, cc) {
		t.Error("cause should equal the original cause")
	}
	if clone.GetString("stack") != orig.GetString("stack") {
		t.Error("stack text should be preserved")
	}
	d, _ := clone.GetOwnProperty(StringKey("stack"))
	if !d.IsAccessor() || d.Enumerable {
		t.Error("stack should be installed as a non-enumerable getter")
	}
}

func TestClone_ErrorFamilies(t *testing.T) {
	t.Run("unknown family", func(t *testing.T) {
		rec, opt := quiet()
		orig := NewError("ValidationError", "bad")
		clone := mustObject(t, mustClone(t, orig, opt))
		if clone.Prototype() != ErrorPrototype {
			t.Error("unknown family should fall back to Error")
		}
		if clone.GetString("name") != "ValidationError" {
			t.Error("own name should travel with the walk")
		}
		if !rec.Has(DiagErrorFamily) {
			t.Error("expected an error family diagnostic")
		}
	})

	t.Run("aggregate", func(t *testing.T) {
		inner := NewError("TypeError", "inner")
		orig := NewAggregateError([]Value{inner}, "many")
		clone := mustObject(t, mustClone(t, orig))
		errs := mustObject(t, clone.GetString("errors"))
		if errs.Len() != 1 || errs.Index(0) == Value(inner) {
			t.Error("nested errors should be cloned")
		}
	})

	t.Run("aggregate not iterable", func(t *testing.T) {
		rec, opt := quiet()
		orig := NewAggregateError(nil, "many")
		defineHidden(orig, "errors", 3.0)
		clone := mustObject(t, mustClone(t, orig, opt))
		errs := mustObject(t, clone.GetString("errors"))
		if !IsArray(errs) || errs.Len() != 0 {
			t.Error("non-iterable errors should become an empty list")
		}
		if !rec.Has(DiagNotIterable) {
			t.Error("expected a not-iterable diagnostic")
		}
	})
}

func TestClone_FunctionRoot(t *testing.T) {
	fn := NewFunction("f", func(Value, ...Value) (Value, error) { return 1.0, nil })
	fn.SetString("extra", "x")

	rec, opt := quiet()
	clone := mustObject(t, mustClone(t, fn, opt))

	if clone == fn {
		t.Fatal("root callable should be replaced")
	}
	if len(clone.OwnKeys()) != 0 {
		t.Errorf("replacement should have no own properties, got %v", clone.OwnKeys())
	}
	if clone.Prototype() != FunctionPrototype {
		t.Error("replacement should inherit the function prototype")
	}
	if !rec.Has(DiagCallable) {
		t.Error("expected a callable diagnostic")
	}
}

func TestClone_NestedFunctionShared(t *testing.T) {
	fn := NewFunction("f", func(Value, ...Value) (Value, error) { return 1.0, nil })
	orig := NewObject().SetString("method", fn)

	rec, opt := quiet()
	clone := mustObject(t, mustClone(t, orig, opt))
	if clone.GetString("method") != Value(fn) {
		t.Error("nested callable should be copied by reference")
	}
	if !rec.Has(DiagCallable) {
		t.Error("expected a callable diagnostic")
	}
}

func TestClone_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		v    *Object
		code DiagnosticCode
	}{
		{"weak map", NewWeakMap(), DiagDisallowed},
		{"weak set", NewWeakSet(), DiagDisallowed},
		{"async resource in sync mode", NewAsyncResource("db", nil), DiagAsyncOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, opt := quiet()
			tt.v.SetString("note", "kept")
			orig := NewObject().SetString("field", tt.v).SetString("sibling", 1.0)

			clone := mustObject(t, mustClone(t, orig, opt))
			sub := mustObject(t, clone.GetString("field"))

			if sub.Prototype() != ObjectPrototype {
				t.Error("substitute should be an ordinary empty object")
			}
			if sub.GetString("note") != "kept" {
				t.Error("substitute should still receive own properties")
			}
			if clone.GetString("sibling") != 1.0 {
				t.Error("sibling should clone normally")
			}
			if !rec.Has(tt.code) {
				t.Errorf("expected diagnostic %s, got %v", tt.code, rec.Diagnostics())
			}
			for _, d := range rec.Diagnostics() {
				if d.Code == tt.code && d.Severity != SeverityError {
					t.Errorf("%s severity = %s, want error", d.Code, d.Severity)
				}
			}
		})
	}
}

func TestClone_CustomizerIgnore(t *testing.T) {
	skip := NewObject().SetString("secret", "x")
	orig := NewObject().SetString("skip", skip).SetString("keep", NewObject().SetString("v", 1.0))

	customizer := func(v Value) (*Override, error) {
		if v == Value(skip) {
			return &Override{Ignore: true}, nil
		}
		return nil, nil
	}
	clone := mustObject(t, mustClone(t, orig, WithCustomizer(customizer)))

	if clone.HasOwn(StringKey("skip")) {
		t.Error("ignored value should not be committed")
	}
	keep := mustObject(t, clone.GetString("keep"))
	if keep.GetString("v") != 1.0 {
		t.Error("siblings should clone normally")
	}
}

func TestClone_CustomizerPrimitives(t *testing.T) {
	creds := NewObject().SetString("user", "ada").SetString("password", "hunter2")
	orig := NewObject().SetString("creds", creds).SetString("count", 3.0)

	t.Run("ignore nested string", func(t *testing.T) {
		seen := 0
		c := func(v Value) (*Override, error) {
			if IsPrimitive(v) {
				seen++
			}
			if v == Value("hunter2") {
				return &Override{Ignore: true}, nil
			}
			return nil, nil
		}
		clone := mustObject(t, mustClone(t, orig, WithCustomizer(c)))
		got := mustObject(t, clone.GetString("creds"))
		if got.HasOwn(StringKey("password")) {
			t.Error("ignored string should not be committed")
		}
		if got.GetString("user") != "ada" {
			t.Error("other strings should clone as-is")
		}
		if seen != 3 {
			t.Errorf("customizer saw %d primitives, want 3", seen)
		}
	})

	t.Run("replace number", func(t *testing.T) {
		c := func(v Value) (*Override, error) {
			if v == Value(3.0) {
				return &Override{Clone: 4.0}, nil
			}
			return nil, nil
		}
		clone := mustObject(t, mustClone(t, orig, WithCustomizer(c)))
		if clone.GetString("count") != 4.0 {
			t.Errorf("count = %v, want 4", clone.GetString("count"))
		}
	})

	t.Run("replace primitive with object", func(t *testing.T) {
		box := NewObject().SetString("masked", true)
		c := func(v Value) (*Override, error) {
			if v == Value("hunter2") {
				return &Override{Clone: box, IgnoreProps: true}, nil
			}
			return nil, nil
		}
		clone := mustObject(t, mustClone(t, orig, WithCustomizer(c)))
		got := mustObject(t, clone.GetString("creds"))
		if got.GetString("password") != Value(box) {
			t.Error("primitive should be replaced by the customizer's object")
		}
	})
}

func TestClone_CustomizerOverride(t *testing.T) {
	special := NewObject().SetString("a", 1.0).SetString("b", 2.0)
	orig := NewObject().SetString("special", special)

	t.Run("replace and ignore props", func(t *testing.T) {
		replacement := NewObject().SetString("replaced", true)
		c := func(v Value) (*Override, error) {
			if v == Value(special) {
				return &Override{Clone: replacement, IgnoreProps: true}, nil
			}
			return nil, nil
		}
		clone := mustObject(t, mustClone(t, orig, WithCustomizer(c)))
		got := mustObject(t, clone.GetString("special"))
		if got != replacement {
			t.Fatal("customizer clone should be committed")
		}
		if got.HasOwn(StringKey("a")) {
			t.Error("IgnoreProps should skip the walk")
		}
	})

	t.Run("props to ignore", func(t *testing.T) {
		c := func(v Value) (*Override, error) {
			if v == Value(special) {
				return &Override{Clone: NewObject(), PropsToIgnore: []Key{StringKey("b")}}, nil
			}
			return nil, nil
		}
		clone := mustObject(t, mustClone(t, orig, WithCustomizer(c)))
		got := mustObject(t, clone.GetString("special"))
		if got.GetString("a") != 1.0 || got.HasOwn(StringKey("b")) {
			t.Error("only listed props should be skipped")
		}
	})

	t.Run("prototype relink", func(t *testing.T) {
		proto := NewObject()
		withProto := NewObjectWithProto(proto)
		c := func(v Value) (*Override, error) {
			if v == Value(withProto) {
				return &Override{Clone: NewObject()}, nil
			}
			return nil, nil
		}
		clone := mustObject(t, mustClone(t, withProto, WithCustomizer(c)))
		if clone.Prototype() != proto {
			t.Error("clone prototype should be relinked to the original's")
		}

		c2 := func(v Value) (*Override, error) {
			if v == Value(withProto) {
				return &Override{Clone: NewObject(), IgnoreProto: true}, nil
			}
			return nil, nil
		}
		clone = mustObject(t, mustClone(t, withProto, WithCustomizer(c2)))
		if clone.Prototype() != ObjectPrototype {
			t.Error("IgnoreProto should keep the constructed prototype")
		}
	})

	t.Run("additional values", func(t *testing.T) {
		extra := NewObject().SetString("x", 1.0)
		var got Value
		c := func(v Value) (*Override, error) {
			if v == Value(special) {
				return &Override{
					Clone:            NewObject(),
					AdditionalValues: []AdditionalValue{{Value: extra, Assign: func(cv Value) { got = cv }}},
				}, nil
			}
			return nil, nil
		}
		mustClone(t, orig, WithCustomizer(c))
		if got == nil || got == Value(extra) || !Equal(extra, got) {
			t.Errorf("additional value clone = %v", got)
		}
	})

	t.Run("additional value without assign", func(t *testing.T) {
		rec, opt := quiet()
		c := func(v Value) (*Override, error) {
			if v == Value(special) {
				return &Override{Clone: NewObject(), AdditionalValues: []AdditionalValue{{Value: 1.0}}}, nil
			}
			return nil, nil
		}
		mustClone(t, orig, WithCustomizer(c), opt)
		if !rec.Has(DiagMalformedResult) {
			t.Error("expected a malformed result diagnostic")
		}
	})
}

func TestClone_CustomizerErrors(t *testing.T) {
	boom := errors.New("boom")
	orig := NewObject().SetString("a", NewObject().SetString("b", 1.0))
	failing := func(Value) (*Override, error) { return nil, boom }
	panicking := func(Value) (*Override, error) { panic("kaboom") }

	t.Run("swallowed", func(t *testing.T) {
		for _, c := range []Customizer{failing, panicking} {
			rec, opt := quiet()
			clone := mustClone(t, orig, WithCustomizer(c), opt)
			if !Equal(orig, clone) {
				t.Error("failed customizer should fall through to default dispatch")
			}
			if !rec.Has(DiagHookError) {
				t.Error("expected a hook error diagnostic")
			}
		}
	})

	t.Run("thrown", func(t *testing.T) {
		_, err := Clone(orig, WithCustomizer(failing), WithLetCustomizerThrow(true))
		if !errors.Is(err, ErrHook) || !errors.Is(err, boom) {
			t.Errorf("Clone() error = %v, want hook error wrapping boom", err)
		}
		var he *HookError
		if !errors.As(err, &he) || he.Hook != "customizer" {
			t.Errorf("HookError = %+v", he)
		}
	})

	t.Run("thrown panic", func(t *testing.T) {
		_, err := Clone(orig, WithCustomizer(panicking), WithLetCustomizerThrow(true))
		if !errors.Is(err, ErrHook) {
			t.Errorf("Clone() error = %v, want ErrHook", err)
		}
	})
}

func TestUseCustomizers(t *testing.T) {
	t.Run("misuse", func(t *testing.T) {
		if _, err := UseCustomizers(nil); !errors.Is(err, ErrMisuse) {
			t.Errorf("nil list error = %v, want ErrMisuse", err)
		}
		if _, err := UseCustomizers([]Customizer{nil}); !errors.Is(err, ErrMisuse) {
			t.Errorf("nil element error = %v, want ErrMisuse", err)
		}
	})

	t.Run("first override wins", func(t *testing.T) {
		var calls []string
		a := func(v Value) (*Override, error) {
			calls = append(calls, "a")
			return nil, nil
		}
		b := func(v Value) (*Override, error) {
			calls = append(calls, "b")
			return &Override{Clone: "from b"}, nil
		}
		c := func(v Value) (*Override, error) {
			calls = append(calls, "c")
			return &Override{Clone: "from c"}, nil
		}
		composed, err := UseCustomizers([]Customizer{a, b, c})
		if err != nil {
			t.Fatalf("UseCustomizers() error: %v", err)
		}
		got := mustClone(t, NewObject(), WithCustomizer(composed))
		if got != "from b" {
			t.Errorf("Clone() = %v, want %q", got, "from b")
		}
		if len(calls) != 2 {
			t.Errorf("calls = %v, want [a b]", calls)
		}
	})

	t.Run("error stops chain", func(t *testing.T) {
		boom := errors.New("boom")
		composed, err := UseCustomizers([]Customizer{
			func(Value) (*Override, error) { return nil, boom },
			func(Value) (*Override, error) { t.Error("second customizer should not run"); return nil, nil },
		})
		if err != nil {
			t.Fatalf("UseCustomizers() error: %v", err)
		}
		_, err = Clone(NewObject(), WithCustomizer(composed), WithLetCustomizerThrow(true))
		if !errors.Is(err, boom) {
			t.Errorf("Clone() error = %v, want boom", err)
		}
	})
}

func TestClone_CloneMethod(t *testing.T) {
	proto := NewObject()
	calls := 0
	if err := proto.SetCloneMethod(func(self *Object) (*Override, error) {
		calls++
		return &Override{Clone: NewObject().SetString("custom", true), IgnoreProps: true}, nil
	}); err != nil {
		t.Fatalf("SetCloneMethod() error: %v", err)
	}
	orig := NewObjectWithProto(proto).SetString("data", 1.0)

	t.Run("invoked", func(t *testing.T) {
		calls = 0
		clone := mustObject(t, mustClone(t, orig))
		if clone.GetString("custom") != true || clone.HasOwn(StringKey("data")) {
			t.Error("clone method result should be honored")
		}
		if clone.Prototype() != proto {
			t.Error("clone should be relinked to the original prototype")
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("ignored", func(t *testing.T) {
		calls = 0
		clone := mustObject(t, mustClone(t, orig, WithIgnoreCloningMethods(true)))
		if calls != 0 {
			t.Error("clone method should not run")
		}
		if clone.GetString("data") != 1.0 {
			t.Error("default dispatch should copy properties")
		}
	})

	t.Run("customizer first", func(t *testing.T) {
		calls = 0
		c := func(v Value) (*Override, error) {
			if v == Value(orig) {
				return &Override{Clone: "customized"}, nil
			}
			return nil, nil
		}
		if got := mustClone(t, orig, WithCustomizer(c)); got != "customized" {
			t.Errorf("Clone() = %v", got)
		}
		if calls != 0 {
			t.Error("clone method should not run after a customizer override")
		}
	})
}

func TestClone_CloneMethodMalformed(t *testing.T) {
	o := NewObject().SetString("x", 1.0)
	if err := o.SetCloneMethod(func(self *Object) (*Override, error) {
		return &Override{Clone: NewObject(), Ignore: true}, nil
	}); err != nil {
		t.Fatalf("SetCloneMethod() error: %v", err)
	}

	rec, opt := quiet()
	clone := mustObject(t, mustClone(t, o, opt))
	if !rec.Has(DiagMalformedResult) {
		t.Error("expected a malformed result diagnostic")
	}
	if clone.GetString("x") != 1.0 {
		t.Error("the rest of the result should be honored")
	}
}

func TestClone_CloneMethodError(t *testing.T) {
	o := NewObject().SetString("x", 1.0)
	boom := errors.New("boom")
	_ = o.SetCloneMethod(func(*Object) (*Override, error) { return nil, boom })

	rec, opt := quiet()
	clone := mustClone(t, o, opt)
	if !Equal(o, clone) || !rec.Has(DiagHookError) {
		t.Error("failed clone method should fall through with a diagnostic")
	}

	_, err := Clone(o, WithLetCustomizerThrow(true))
	var he *HookError
	if !errors.As(err, &he) || he.Hook != "clone method" {
		t.Errorf("Clone() error = %v, want clone method HookError", err)
	}
}

type counter struct {
	N     int
	Items *[]int
}

func (c *counter) CloneSelf() (*Override, error) {
	return &Override{Clone: &counter{N: c.N + 100}}, nil
}

func TestClone_SelfCloner(t *testing.T) {
	orig := &counter{N: 1}
	got, ok := mustClone(t, orig).(*counter)
	if !ok || got == orig || got.N != 101 {
		t.Errorf("Clone() = %+v, want CloneSelf result", got)
	}
}

func TestClone_Spoofing(t *testing.T) {
	orig := NewMap("k", "v")
	if err := orig.DefineOwnProperty(SymbolKey(SymbolToStringTag), Descriptor{Value: "Object"}); err != nil {
		t.Fatalf("DefineOwnProperty() error: %v", err)
	}

	fast := mustObject(t, mustClone(t, orig))
	if _, ok := fast.MapData(); ok {
		t.Error("fast mode should trust the spoofed tag")
	}

	robust := mustObject(t, mustClone(t, orig, WithRobustTypeChecking(true)))
	m, ok := robust.MapData()
	if !ok {
		t.Fatal("robust mode should see through the spoofed tag")
	}
	if v, _ := m.Get("k"); v != "v" {
		t.Error("robust clone should keep entries")
	}
}

func TestClone_SpoofedAsBuiltin(t *testing.T) {
	fake := NewObject().SetString("x", 1.0)
	_ = fake.DefineOwnProperty(SymbolKey(SymbolToStringTag), Descriptor{Value: "Date"})

	rec, opt := quiet()
	clone := mustObject(t, mustClone(t, fake, opt))
	if clone.GetString("x") != 1.0 {
		t.Error("fallback should keep the property walk")
	}
	if !rec.Has(DiagUnsupported) {
		t.Error("expected an unsupported diagnostic for a spoofed tag")
	}
}

func TestClone_BinaryViews(t *testing.T) {
	buf := NewArrayBuffer([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	a, err := NewTypedArray(Uint8, buf, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewTypedArray(Uint16, buf, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	dv, err := NewDataView(buf, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	orig := NewArray(a, b, dv)

	clone := mustObject(t, mustClone(t, orig))
	ca, cb, cdv := mustObject(t, clone.Index(0)), mustObject(t, clone.Index(1)), mustObject(t, clone.Index(2))

	bufA, _, _, _ := ca.View()
	bufB, _, _, _ := cb.View()
	bufDV, off, n, _ := cdv.View()
	if bufA == nil || bufA != bufB || bufA != bufDV {
		t.Fatal("views sharing a buffer should share its clone")
	}
	if bufA == buf {
		t.Error("buffer should be cloned")
	}
	if off != 2 || n != 4 {
		t.Errorf("data view span = %d,%d", off, n)
	}

	data, _ := bufA.Bytes()
	data[0] = 99
	orig0, _ := buf.Bytes()
	if orig0[0] == 99 {
		t.Error("cloned buffer should not alias the original bytes")
	}
	if ca.Index(0) != 99.0 {
		t.Error("typed view should read the cloned buffer")
	}
	for _, k := range ca.OwnKeys() {
		if _, ok := ca.props[k]; ok {
			t.Errorf("typed index %v should not be copied as a property", k)
		}
	}
}

func TestClone_NativeKinds(t *testing.T) {
	re, err := NewRegExp(`h(i)+`, "gi")
	if err != nil {
		t.Fatal(err)
	}
	_ = re.SetOwn(StringKey("lastIndex"), 3.0)

	tests := []struct {
		name string
		v    *Object
	}{
		{"boolean box", NewBoolean(true)},
		{"number box", NewNumber(2.5)},
		{"string box", NewString("s")},
		{"bigint box", NewBigIntObject(big.NewInt(12))},
		{"date", NewDate(time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC))},
		{"invalid date", NewInvalidDate()},
		{"regexp", re},
		{"blob", NewBlob([]byte("abc"), "text/plain")},
		{"exception", NewException("quota", "QuotaExceededError")},
		{"point", NewPoint(1, 2, 3, 4)},
		{"rect", NewRect(0, 0, 10, 20)},
		{"matrix 2d", NewMatrix2D(1, 2, 3, 4, 5, 6)},
		{"matrix 3d", NewMatrix3D([16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 7, 8, 9, 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, robust := range []bool{false, true} {
				rec, opt := quiet()
				clone := mustObject(t, mustClone(t, tt.v, opt, WithRobustTypeChecking(robust)))
				if clone == tt.v {
					t.Fatal("clone should be a new object")
				}
				if !Equal(tt.v, clone) {
					t.Errorf("robust=%v: clone not equal to original", robust)
				}
				if clone.Prototype() != tt.v.Prototype() {
					t.Error("prototype should match")
				}
				if len(rec.Diagnostics()) != 0 {
					t.Errorf("unexpected diagnostics: %v", rec.Diagnostics())
				}
			}
		})
	}
}

func TestClone_Geometry(t *testing.T) {
	p := NewPoint(1, 1, 0, 1)
	q, err := NewQuad(p, p, nil, NewPoint(5, 5, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	img, err := NewImageData(2, 2, "")
	if err != nil {
		t.Fatal(err)
	}

	cq := mustObject(t, mustClone(t, q))
	pts, ok := cq.Quad()
	if !ok || pts[0] == p || pts[0] != pts[1] {
		t.Error("quad corners should be cloned with sharing preserved")
	}
	if !Equal(q, cq) {
		t.Error("quad clone should equal the original")
	}

	ci := mustObject(t, mustClone(t, img))
	_, _, space, px, ok := ci.ImageData()
	_, _, _, opx, _ := img.ImageData()
	if !ok || px == nil || px == opx || space != "srgb" {
		t.Error("image pixels should be cloned")
	}
}

func TestClone_DeepChain(t *testing.T) {
	head := NewObject()
	cur := head
	for i := 0; i < 200000; i++ {
		next := NewObject()
		cur.SetString("next", next)
		cur = next
	}

	clone := mustObject(t, mustClone(t, head, WithLogMode("SILENT")))
	depth := 0
	for v := Value(clone); ; depth++ {
		o, ok := v.(*Object)
		if !ok {
			break
		}
		v = o.GetString("next")
	}
	if depth != 200001 {
		t.Errorf("depth = %d, want 200001", depth)
	}
}

func TestCloneAsync_Resource(t *testing.T) {
	dup := NewObject().SetString("handle", "copy")
	res := NewAsyncResource("conn", func(ctx context.Context) (Value, error) {
		return dup, nil
	})
	plain := NewObject().SetString("n", 1.0)
	orig := NewObject().SetString("res", res).SetString("plain", plain)

	rec, opt := quiet()
	r, err := CloneAsync(context.Background(), orig, opt)
	if err != nil {
		t.Fatalf("CloneAsync() error: %v", err)
	}
	clone := mustObject(t, r.Clone)
	if clone.GetString("res") != Value(dup) {
		t.Error("resource field should hold the duplicated resource")
	}
	cp := mustObject(t, clone.GetString("plain"))
	if cp == plain || cp.GetString("n") != 1.0 {
		t.Error("plain sibling should clone in the same call")
	}
	if len(rec.Diagnostics()) != 0 {
		t.Errorf("unexpected diagnostics: %v", rec.Diagnostics())
	}
}

func TestCloneAsync_RejectionIsolated(t *testing.T) {
	good := NewAsyncResource("good", func(context.Context) (Value, error) { return "dup", nil })
	bad := NewAsyncResource("bad", func(context.Context) (Value, error) { return nil, errors.New("refused") })
	panics := NewAsyncResource("panics", func(context.Context) (Value, error) { panic("broken") })
	orig := NewObject().SetString("good", good).SetString("bad", bad).SetString("panics", panics)

	rec, opt := quiet()
	r, err := CloneAsync(context.Background(), orig, opt)
	if err != nil {
		t.Fatalf("CloneAsync() error: %v", err)
	}
	clone := mustObject(t, r.Clone)
	if clone.GetString("good") != "dup" {
		t.Error("successful sibling should be committed")
	}
	for _, k := range []string{"bad", "panics"} {
		sub := mustObject(t, clone.GetString(k))
		if len(sub.OwnKeys()) != 0 || sub.Prototype() != ObjectPrototype {
			t.Errorf("%s should degrade to an empty object", k)
		}
	}
	n := 0
	for _, d := range rec.Diagnostics() {
		if d.Code == DiagAsyncRejected {
			n++
			if !errors.Is(d.Err, ErrAsyncRejected) {
				t.Errorf("diagnostic error = %v, want ErrAsyncRejected", d.Err)
			}
		}
	}
	if n != 2 {
		t.Errorf("async rejected diagnostics = %d, want 2", n)
	}
}

func TestCloneAsync_Dedupe(t *testing.T) {
	calls := 0
	res := NewAsyncResource("shared", func(context.Context) (Value, error) {
		calls++
		return NewObject(), nil
	})
	orig := NewObject().SetString("a", res).SetString("b", res).SetString("c", NewArray(res))

	r, err := CloneAsync(context.Background(), orig)
	if err != nil {
		t.Fatalf("CloneAsync() error: %v", err)
	}
	clone := mustObject(t, r.Clone)
	a := clone.GetString("a")
	if a != clone.GetString("b") || a != mustObject(t, clone.GetString("c")).Index(0) {
		t.Error("every reference should receive the same duplicate")
	}
	if calls != 1 {
		t.Errorf("duplicator calls = %d, want 1", calls)
	}
}

func TestCloneAsync_Secret(t *testing.T) {
	secret, err := NewSecret([]byte("material"), "AES-GCM", "encrypt")
	if err != nil {
		t.Fatalf("NewSecret() error: %v", err)
	}

	rec, opt := quiet()
	syncClone := mustObject(t, mustClone(t, secret, opt))
	if _, _, _, err := syncClone.Reveal(); err == nil {
		t.Error("sync clone of a secret should not be a secret")
	}
	if !rec.Has(DiagAsyncOnly) {
		t.Error("expected an async-only diagnostic")
	}

	r, err := CloneAsync(context.Background(), secret)
	if err != nil {
		t.Fatalf("CloneAsync() error: %v", err)
	}
	clone := mustObject(t, r.Clone)
	plain, alg, usages, err := clone.Reveal()
	if err != nil {
		t.Fatalf("Reveal() error: %v", err)
	}
	if string(plain) != "material" || alg != "AES-GCM" || len(usages) != 1 {
		t.Errorf("Reveal() = %q %q %v", plain, alg, usages)
	}
	if string(clone.sealedBytes()) == string(secret.sealedBytes()) {
		t.Error("duplicate should be resealed under fresh material")
	}
	if clone.Prototype() != SecretPrototype {
		t.Error("duplicate should keep the secret prototype")
	}
}

func TestCloneAsync_OverrideAsync(t *testing.T) {
	target := NewObject().SetString("x", 1.0)
	orig := NewObject().SetString("t", target)
	c := func(v Value) (*Override, error) {
		if v == Value(target) {
			return &Override{Async: func(context.Context) (Value, error) { return "awaited", nil }}, nil
		}
		return nil, nil
	}

	r, err := CloneAsync(context.Background(), orig, WithCustomizer(c))
	if err != nil {
		t.Fatalf("CloneAsync() error: %v", err)
	}
	if mustObject(t, r.Clone).GetString("t") != "awaited" {
		t.Error("async override should be awaited")
	}

	rec, opt := quiet()
	clone := mustObject(t, mustClone(t, orig, WithCustomizer(c), opt))
	if !Equal(target, clone.GetString("t")) {
		t.Error("sync mode should fall through to default dispatch")
	}
	if !rec.Has(DiagAsyncOnly) {
		t.Error("expected an async-only diagnostic")
	}
}

func TestCloneAsync_ChainedPumps(t *testing.T) {
	inner := NewAsyncResource("inner", func(context.Context) (Value, error) { return "inner-dup", nil })
	holder := NewAsyncResource("holder", func(context.Context) (Value, error) { return NewObject(), nil })
	holder.SetString("child", inner)

	r, err := CloneAsync(context.Background(), holder)
	if err != nil {
		t.Fatalf("CloneAsync() error: %v", err)
	}
	if mustObject(t, r.Clone).GetString("child") != "inner-dup" {
		t.Error("properties of an awaited clone should run a second pump")
	}
}

func TestClone_LogModes(t *testing.T) {
	rec, opt := quiet()
	mustClone(t, NewWeakMap(), opt, WithLogMode("Silent"))
	if len(rec.Diagnostics()) != 0 {
		t.Error("silent mode should drop diagnostics")
	}

	var lines []Diagnostic
	mustClone(t, NewWeakMap(), WithLogger(LogFunc(func(d Diagnostic) { lines = append(lines, d) })))
	if len(lines) != 1 || lines[0].Code != DiagDisallowed {
		t.Errorf("LogFunc diagnostics = %v", lines)
	}
}
