package replica

import (
	"fmt"
	"reflect"

	"github.com/zoobzio/sentinel"
)

// cloneTag is the struct tag controlling host field cloning:
//
//	clone:"-"        zero the field in the clone
//	clone:"shallow"  share the field's reference
//	clone:"deep"     clone the field (the default)
const cloneTag = "clone"

func init() {
	sentinel.Tag(cloneTag)
}

type cloneMode uint8

const (
	modeDeep cloneMode = iota
	modeShallow
	modeSkip
)

func parseCloneMode(v string) (cloneMode, error) {
	switch v {
	case "", "deep":
		return modeDeep, nil
	case "shallow":
		return modeShallow, nil
	case "-":
		return modeSkip, nil
	}
	return 0, fmt.Errorf("invalid clone tag %q: %w", v, ErrMisuse)
}

// hostFieldPlan describes how to clone a single exported field.
type hostFieldPlan struct {
	index []int // reflect.Value.FieldByIndex access path
	name  string
	mode  cloneMode
}

// hostPlan lists the fields of a struct type that need work beyond the
// initial shallow copy. By-value nested structs are flattened into paths.
type hostPlan struct {
	typeName string
	fields   []hostFieldPlan
}

func buildHostPlan(root reflect.Type, meta sentinel.Metadata) (*hostPlan, error) {
	plan := &hostPlan{typeName: meta.TypeName}
	if err := buildHostFields(plan, root, meta, nil, ""); err != nil {
		return nil, fmt.Errorf("plan %s: %w", root, err)
	}
	return plan, nil
}

func buildHostFields(plan *hostPlan, root reflect.Type, meta sentinel.Metadata, parentIndex []int, namePrefix string) error {
	for _, field := range meta.Fields {
		fullIndex := append(append([]int{}, parentIndex...), field.Index...)
		fullName := field.Name
		if namePrefix != "" {
			fullName = namePrefix + "." + field.Name
		}
		if !root.FieldByIndex(fullIndex).IsExported() {
			continue
		}

		mode, err := parseCloneMode(field.Tags[cloneTag])
		if err != nil {
			return fmt.Errorf("field %s: %w", fullName, err)
		}
		if mode == modeShallow {
			continue
		}

		kind := field.Kind
		if kind == "" {
			kind = hostKind(field.ReflectType)
		}
		if mode == modeDeep {
			if kind == sentinel.KindStruct {
				if nested := scanHostType(field.ReflectType); nested != nil {
					if err := buildHostFields(plan, root, *nested, fullIndex, fullName); err != nil {
						return err
					}
				}
				continue
			}
			if !needsWork(field.ReflectType) {
				continue
			}
		}
		plan.fields = append(plan.fields, hostFieldPlan{index: fullIndex, name: fullName, mode: mode})
	}
	return nil
}

// scanHostType returns sentinel metadata for a struct type. Types sentinel
// has not cached are read field by field, keeping only the clone tag.
func scanHostType(rt reflect.Type) *sentinel.Metadata {
	if meta, ok := sentinel.Lookup(rt.String()); ok {
		return &meta
	}
	if rt.Kind() != reflect.Struct {
		return nil
	}

	meta := sentinel.Metadata{TypeName: rt.Name(), PackageName: rt.PkgPath()}
	for _, sf := range reflect.VisibleFields(rt) {
		if len(sf.Index) != 1 || !sf.IsExported() {
			continue
		}
		tags := map[string]string{}
		if v, ok := sf.Tag.Lookup(cloneTag); ok {
			tags[cloneTag] = v
		}
		meta.Fields = append(meta.Fields, sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Kind:        hostKind(sf.Type),
			Tags:        tags,
		})
	}
	return &meta
}

// hostKind files a Go type under sentinel's field kinds. Arrays count as
// slices, as they do in sentinel.
func hostKind(t reflect.Type) sentinel.FieldKind {
	switch t.Kind() {
	case reflect.Struct:
		return sentinel.KindStruct
	case reflect.Pointer:
		return sentinel.KindPointer
	case reflect.Slice, reflect.Array:
		return sentinel.KindSlice
	case reflect.Map:
		return sentinel.KindMap
	case reflect.Interface:
		return sentinel.KindInterface
	}
	return sentinel.KindScalar
}

// needsWork reports whether a shallow copy of a t value can still share
// clonable references with the original.
func needsWork(t reflect.Type) bool {
	switch hostKind(t) {
	case sentinel.KindScalar:
		return false
	case sentinel.KindStruct:
		for i := 0; i < t.NumField(); i++ {
			if sf := t.Field(i); sf.IsExported() && needsWork(sf.Type) {
				return true
			}
		}
		return false
	case sentinel.KindSlice:
		if t.Kind() == reflect.Array {
			return t.Len() > 0 && needsWork(t.Elem())
		}
	}
	return true
}

func isNilRef(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func reconstructHostStruct(v Value, c *adapterContext) (outcome, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return outcome{}, newKindError(ErrUnsupported, c.tag, fmt.Errorf("%T is not a struct pointer", v))
	}
	plan, err := planFor(rv.Elem().Type())
	if err != nil {
		return outcome{}, newKindError(ErrUnsupported, c.tag, err)
	}
	dst := reflect.New(rv.Elem().Type())
	dst.Elem().Set(rv.Elem())
	fillStruct(dst.Elem(), plan, c, nil)
	return outcome{clone: dst.Interface()}, nil
}

// fillStruct applies a plan to an addressable struct that already holds a
// shallow copy of the original.
func fillStruct(dst reflect.Value, plan *hostPlan, c *adapterContext, commit func()) {
	for _, f := range plan.fields {
		fv := dst.FieldByIndex(f.index)
		switch f.mode {
		case modeSkip:
			fv.Set(reflect.Zero(fv.Type()))
		case modeDeep:
			fillHost(fv, f.name, c, commit)
		}
	}
}

// fillHost deep-clones, in place, whatever an addressable slot holds.
// Arrays and by-value structs are walked; references are enqueued. commit,
// when set, runs after every later write into the slot.
func fillHost(slot reflect.Value, name string, c *adapterContext, commit func()) {
	switch hostKind(slot.Type()) {
	case sentinel.KindScalar:
		return
	case sentinel.KindStruct:
		plan, err := planFor(slot.Type())
		if err != nil {
			c.warn(DiagUnsupported, fmt.Sprintf("%s kept shallow", name), err)
			return
		}
		fillStruct(slot, plan, c, commit)
		return
	case sentinel.KindSlice:
		if slot.Kind() == reflect.Array {
			if !needsWork(slot.Type().Elem()) {
				return
			}
			for i := 0; i < slot.Len(); i++ {
				fillHost(slot.Index(i), fmt.Sprintf("%s[%d]", name, i), c, commit)
			}
			return
		}
	}
	enqueueHost(slot, name, c, commit)
}

// enqueueHost clones the reference held in an addressable slot and writes
// the clone back into it.
func enqueueHost(slot reflect.Value, name string, c *adapterContext, commit func()) {
	if isNilRef(slot) {
		return
	}
	c.Enqueue(slot.Interface(), func(cv Value) {
		if cv == nil {
			slot.Set(reflect.Zero(slot.Type()))
		} else {
			rv := reflect.ValueOf(cv)
			if !rv.Type().AssignableTo(slot.Type()) {
				c.warn(DiagAssignFailed, fmt.Sprintf("clone of %s is %T, want %s", name, cv, slot.Type()), nil)
				return
			}
			slot.Set(rv)
		}
		if commit != nil {
			commit()
		}
	})
}

// elemPlanError rejects containers whose struct elements carry invalid tags.
func elemPlanError(elem reflect.Type, c *adapterContext) error {
	for elem.Kind() == reflect.Array {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return nil
	}
	if _, err := planFor(elem); err != nil {
		return newKindError(ErrUnsupported, c.tag, err)
	}
	return nil
}

func reconstructHostSlice(v Value, c *adapterContext) (outcome, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.IsNil() {
		return outcome{}, newKindError(ErrUnsupported, c.tag, fmt.Errorf("%T is not a slice", v))
	}
	dst := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Cap())
	reflect.Copy(dst, rv)

	elem := rv.Type().Elem()
	if !needsWork(elem) {
		return outcome{clone: dst.Interface()}, nil
	}
	if err := elemPlanError(elem, c); err != nil {
		return outcome{}, err
	}
	for i := 0; i < dst.Len(); i++ {
		fillHost(dst.Index(i), fmt.Sprintf("[%d]", i), c, nil)
	}
	return outcome{clone: dst.Interface()}, nil
}

// reconstructHostMap shares keys and deep-clones values. Map entries are not
// addressable, so each value is filled in a private copy that is written
// back to the map after every change.
func reconstructHostMap(v Value, c *adapterContext) (outcome, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.IsNil() {
		return outcome{}, newKindError(ErrUnsupported, c.tag, fmt.Errorf("%T is not a map", v))
	}
	dst := reflect.MakeMapWithSize(rv.Type(), rv.Len())
	elem := rv.Type().Elem()
	work := needsWork(elem)
	if work {
		if err := elemPlanError(elem, c); err != nil {
			return outcome{}, err
		}
	}

	iter := rv.MapRange()
	for iter.Next() {
		k, val := iter.Key(), iter.Value()
		if !work {
			dst.SetMapIndex(k, val)
			continue
		}
		cp := reflect.New(elem).Elem()
		cp.Set(val)
		fillHost(cp, fmt.Sprintf("[%v]", k), c, func() { dst.SetMapIndex(k, cp) })
		dst.SetMapIndex(k, cp)
	}
	return outcome{clone: dst.Interface()}, nil
}
