// Package testing provides fixtures and assertions for replica tests.
package testing

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/zoobzio/replica"
)

// Nested returns {a: 1, nested: {b: 2}}.
func Nested() *replica.Object {
	return replica.NewObject().
		SetString("a", 1.0).
		SetString("nested", replica.NewObject().SetString("b", 2.0))
}

// Cyclic returns an object whose "self" property points back at it.
func Cyclic() *replica.Object {
	o := replica.NewObject()
	o.SetString("self", o)
	return o
}

// Shared returns {x: s, y: s} together with s.
func Shared() (*replica.Object, *replica.Object) {
	s := replica.NewObject().SetString("id", "shared")
	return replica.NewObject().SetString("x", s).SetString("y", s), s
}

// Chain returns a linked list of n nodes, each holding "next".
func Chain(n int) *replica.Object {
	head := replica.NewObject()
	cur := head
	for i := 0; i < n; i++ {
		next := replica.NewObject().SetString("i", float64(i))
		cur.SetString("next", next)
		cur = next
	}
	return head
}

// Wide returns an object with n properties, each holding a small object.
func Wide(n int) *replica.Object {
	o := replica.NewObject()
	for i := 0; i < n; i++ {
		o.SetString(fmt.Sprintf("k%d", i), replica.NewObject().SetString("v", float64(i)))
	}
	return o
}

// Mixed returns a graph touching every synchronously clonable built-in kind,
// with shared references and a cycle through a map.
func Mixed(tb testing.TB) *replica.Object {
	tb.Helper()

	root := replica.NewObject()
	shared := replica.NewArray(1.0, "two", big.NewInt(3))

	re, err := replica.NewRegExp(`a+b`, "gi")
	if err != nil {
		tb.Fatalf("NewRegExp() error: %v", err)
	}
	buf := replica.NewArrayBuffer([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	view, err := replica.NewTypedArray(replica.Uint16, buf, 2, 2)
	if err != nil {
		tb.Fatalf("NewTypedArray() error: %v", err)
	}
	dv, err := replica.NewDataView(buf, 0, 4)
	if err != nil {
		tb.Fatalf("NewDataView() error: %v", err)
	}

	root.SetString("shared", shared).
		SetString("again", shared).
		SetString("map", replica.NewMap("root", root, 1.0, shared)).
		SetString("set", replica.NewSet(shared, "x")).
		SetString("date", replica.NewDate(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))).
		SetString("pattern", re).
		SetString("error", replica.NewErrorWithCause("TypeError", "bad input", replica.NewObject().SetString("field", "name"))).
		SetString("buffer", buf).
		SetString("view", view).
		SetString("dataView", dv).
		SetString("boxed", replica.NewString("boxed")).
		SetString("blob", replica.NewBlob([]byte("payload"), "text/plain")).
		SetString("point", replica.NewPoint(1, 2, 3, 1)).
		SetString("matrix", replica.NewMatrix2D(1, 0, 0, 1, 10, 20))
	return root
}

// Account is a host struct exercising the clone tag.
type Account struct {
	ID      string
	Owner   *Person
	Tags    []string
	Limits  map[string]int
	Cache   *Person `clone:"shallow"`
	Session *Person `clone:"-"`
}

// Person is a host struct that may reference itself.
type Person struct {
	Name    string
	Friends []*Person
	Manager *Person
}

// AssertEqual fails when a and b are not structurally equal.
func AssertEqual(tb testing.TB, a, b replica.Value) {
	tb.Helper()
	if !replica.Equal(a, b) {
		tb.Errorf("values are not structurally equal:\n  got:  %v\n  want: %v", b, a)
	}
}

// AssertIsolated fails when any object reachable from clone is also
// reachable from original. Intrinsic prototypes and callables are allowed
// to be shared.
func AssertIsolated(tb testing.TB, original, clone replica.Value) {
	tb.Helper()
	seen := Reachable(original)
	for o := range Reachable(clone) {
		if o.IsIntrinsic() || replica.IsCallable(o) {
			continue
		}
		if _, ok := seen[o]; ok {
			tb.Errorf("clone shares object %p with the original", o)
			return
		}
	}
}

// Reachable returns every object reachable from v through own properties,
// prototypes, collection entries and view buffers.
func Reachable(v replica.Value) map[*replica.Object]struct{} {
	out := make(map[*replica.Object]struct{})
	var stack []replica.Value
	push := func(x replica.Value) {
		if o, ok := x.(*replica.Object); ok && o != nil {
			if _, dup := out[o]; !dup {
				out[o] = struct{}{}
				stack = append(stack, o)
			}
		}
	}
	push(v)
	for len(stack) > 0 {
		o := stack[len(stack)-1].(*replica.Object)
		stack = stack[:len(stack)-1]
		if p := o.Prototype(); p != nil && !p.IsIntrinsic() {
			push(p)
		}
		for _, k := range o.OwnKeys() {
			d, _ := o.GetOwnProperty(k)
			push(d.Value)
			if d.Get != nil {
				push(d.Get)
			}
			if d.Set != nil {
				push(d.Set)
			}
		}
		if m, ok := o.MapData(); ok {
			m.Range(func(k, val replica.Value) bool {
				push(k)
				push(val)
				return true
			})
		}
		if s, ok := o.SetData(); ok {
			for _, m := range s.Values() {
				push(m)
			}
		}
		if buf, _, _, ok := o.View(); ok && buf != nil {
			push(buf)
		}
	}
	return out
}
