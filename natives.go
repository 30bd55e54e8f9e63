package replica

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"
)

type dateSlot struct {
	at      time.Time
	invalid bool
}

// NewDate creates a date object.
func NewDate(t time.Time) *Object {
	return newObject(DatePrototype, &dateSlot{at: t})
}

// NewInvalidDate creates a date object holding no valid time.
func NewInvalidDate() *Object {
	return newObject(DatePrototype, &dateSlot{invalid: true})
}

// Time returns the time of a date object. ok is false for non-dates and
// invalid dates.
func (o *Object) Time() (t time.Time, ok bool) {
	d, isDate := o.slot.(*dateSlot)
	if !isDate || d.invalid {
		return time.Time{}, false
	}
	return d.at, true
}

type regexpSlot struct {
	source string
	flags  string
	re     *regexp.Regexp
}

// NewRegExp compiles a pattern object. Flags i, m and s change matching;
// g, y, u, d and v are recorded only.
func NewRegExp(source, flags string) (*Object, error) {
	o, err := newRegExpObject(source, flags)
	if err != nil {
		return nil, err
	}
	_ = o.DefineOwnProperty(StringKey("lastIndex"), Descriptor{Value: 0.0, Writable: true})
	return o, nil
}

func newRegExpObject(source, flags string) (*Object, error) {
	var prefix strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			prefix.WriteRune(f)
		case 'g', 'y', 'u', 'd', 'v':
		default:
			return nil, fmt.Errorf("invalid pattern flag %q", f)
		}
	}
	expr := source
	if prefix.Len() > 0 {
		expr = "(?" + prefix.String() + ")" + source
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return newObject(RegExpPrototype, &regexpSlot{source: source, flags: flags, re: re}), nil
}

// Pattern returns the source, flags and compiled expression of a pattern object.
func (o *Object) Pattern() (source, flags string, re *regexp.Regexp, ok bool) {
	r, isPattern := o.slot.(*regexpSlot)
	if !isPattern {
		return "", "", nil, false
	}
	return r.source, r.flags, r.re, true
}

type errorSlot struct{}

// NewError creates an error of the named family with a message and a textual
// stack trace. Names outside the allow-list use the generic Error prototype
// and keep their name as an own property.
func NewError(name, message string) *Object {
	proto, ok := errorPrototypes[name]
	if !ok {
		proto = ErrorPrototype
	}
	o := newObject(proto, &errorSlot{})
	if !ok {
		defineHidden(o, "name", name)
	}
	defineHidden(o, "message", message)
	defineHidden(o, "stack", captureStack(name, message))
	return o
}

// NewErrorWithCause creates an error carrying a chained cause.
func NewErrorWithCause(name, message string, cause Value) *Object {
	o := NewError(name, message)
	defineHidden(o, "cause", cause)
	return o
}

// NewAggregateError creates an aggregate error over errs.
func NewAggregateError(errs []Value, message string) *Object {
	o := NewError("AggregateError", message)
	defineHidden(o, "errors", NewArray(errs...))
	return o
}

// newErrorShell creates an error of a family without any own properties.
func newErrorShell(proto *Object) *Object {
	return newObject(proto, &errorSlot{})
}

// IsError reports whether v carries error data.
func IsError(v Value) bool {
	o, ok := v.(*Object)
	if !ok {
		return false
	}
	_, ok = o.slot.(*errorSlot)
	return ok
}

// captureStack renders a trace of the Go callers that created the error.
func captureStack(name, message string) string {
	var b strings.Builder
	b.WriteString(name)
	if message != "" {
		b.WriteString(": ")
		b.WriteString(message)
	}
	pcs := make([]uintptr, 8)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if f.Function != "" {
			fmt.Fprintf(&b, "\n    at %s (%s:%d)", f.Function, f.File, f.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}
