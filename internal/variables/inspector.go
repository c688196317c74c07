// Package variables implements the Variable Inspector (C9, spec.md §4.9):
// rendering a frame's locals and `this`, and lazily expanding objects,
// arrays, and well-known collection types into their children.
package variables

import (
	"fmt"
	"strings"

	"github.com/dontbug-kt/ktdbg/internal/logx"
	"github.com/dontbug-kt/ktdbg/internal/proto"
)

const (
	// collectionNamespacePrefix identifies "well-known collection types"
	// per spec.md §4.9: classes whose fully-qualified name starts with the
	// platform's collection namespace.
	collectionNamespacePrefix = "java.util."

	maxArraySlice    = 10
	maxStringDisplay = 100
)

// Variable is the user-facing record of spec.md §3's "Variable record":
// (name, type_name, display_value, is_local, children_fetcher?). Ref is the
// zero value when the variable is a plain, non-expandable value; Registry
// never issues ref 0, so Ref != 0 doubles as Expandable's check.
type Variable struct {
	Name       string
	TypeName   string
	Display    string
	IsLocal    bool
	Ref        Ref
	Expandable bool
}

// Inspector renders remote values through vm, assigning expandable values a
// stable reference via reg.
type Inspector struct {
	vm  proto.VM
	reg *Registry
}

// NewInspector builds an Inspector backed by vm and reg.
func NewInspector(vm proto.VM, reg *Registry) *Inspector {
	return &Inspector{vm: vm, reg: reg}
}

// LocalVariables implements `getLocalVariables`: `this` first when present,
// then every visible local in declaration order — both already ordered by
// the VM's own reporting per spec.md §4.9.
func (ins *Inspector) LocalVariables(thread proto.ThreadID, frame int) ([]Variable, error) {
	var out []Variable

	if obj, ok, err := ins.vm.ThisObject(thread, frame); err != nil {
		return nil, fmt.Errorf("variables: fetching this: %w", err)
	} else if ok {
		out = append(out, ins.toVariable("this", proto.Value{IsObject: true, Object: obj, TypeName: "this", Display: string(obj)}, true))
	}

	locals, err := ins.vm.LocalVariables(thread, frame)
	if err != nil {
		return nil, fmt.Errorf("variables: fetching local variables: %w", err)
	}
	for _, l := range locals {
		out = append(out, ins.toVariable(l.Name, l.Value, true))
	}
	return out, nil
}

// ExpandObject implements the object-expansion rule: every declared field of
// typeName, plus a synthetic "size" entry — computed via a single-threaded
// invocation of the nullary size() method — for well-known collection types.
func (ins *Inspector) ExpandObject(object proto.ObjectID, typeName string) ([]Variable, error) {
	fields, err := ins.vm.Fields(object)
	if err != nil {
		return nil, fmt.Errorf("variables: fetching fields of %s: %w", typeName, err)
	}

	out := make([]Variable, 0, len(fields)+1)
	for _, f := range fields {
		v, err := ins.vm.FieldValue(object, f.Name)
		if err != nil {
			logx.Warn("variables: reading field %s.%s: %v", typeName, f.Name, err)
			continue
		}
		out = append(out, ins.toVariable(f.Name, v, false))
	}

	if strings.HasPrefix(typeName, collectionNamespacePrefix) {
		if sz, err := ins.vm.InvokeMethod(object, "size", nil); err != nil {
			logx.Warn("variables: invoking %s.size(): %v", typeName, err)
		} else {
			sz.TypeName = "int"
			out = append(out, ins.toVariable("size", sz, false))
		}
	}
	return out, nil
}

// ExpandArray implements array-slice expansion: elements [start, start+count),
// capped at 10 when count is 0 (no explicit range requested).
func (ins *Inspector) ExpandArray(array proto.ObjectID, start, count int) ([]Variable, error) {
	if count <= 0 {
		count = maxArraySlice
	}
	elems, err := ins.vm.ArrayElements(array, start, count)
	if err != nil {
		return nil, fmt.Errorf("variables: fetching array elements: %w", err)
	}
	out := make([]Variable, 0, len(elems))
	for i, v := range elems {
		out = append(out, ins.toVariable(fmt.Sprintf("[%d]", start+i), v, false))
	}
	return out, nil
}

// Expand resolves a reference previously handed out in a Variable and
// returns its children, dispatching to ExpandObject or ExpandArray by
// whichever kind the registry recorded for ref.
func (ins *Inspector) Expand(ref Ref) ([]Variable, error) {
	entry, ok := ins.reg.Lookup(ref)
	if !ok {
		return nil, fmt.Errorf("variables: reference %d is no longer valid", ref)
	}
	switch e := entry.(type) {
	case objectRef:
		return ins.ExpandObject(proto.ObjectID(e.object), e.typeName)
	case arraySliceRef:
		return ins.ExpandArray(proto.ObjectID(e.array), e.start, e.count)
	default:
		return nil, fmt.Errorf("variables: reference %d is not expandable", ref)
	}
}

// SetLocalVariable implements the setVariable half of §4.9 for a frame's
// locals: assigns literal to name in frame and returns the freshly rendered
// Variable the target reports back.
func (ins *Inspector) SetLocalVariable(thread proto.ThreadID, frame int, name, literal string) (Variable, error) {
	v, err := ins.vm.SetLocalVariable(thread, frame, name, literal)
	if err != nil {
		return Variable{}, fmt.Errorf("variables: setting local %s: %w", name, err)
	}
	return ins.toVariable(name, v, true), nil
}

// SetField implements the setVariable half of §4.9 for an object's fields:
// ref must have been issued by ObjectRef (via a prior Expand/LocalVariables
// call that surfaced the object).
func (ins *Inspector) SetField(ref Ref, field, literal string) (Variable, error) {
	entry, ok := ins.reg.Lookup(ref)
	if !ok {
		return Variable{}, fmt.Errorf("variables: reference %d is no longer valid", ref)
	}
	obj, ok := entry.(objectRef)
	if !ok {
		return Variable{}, fmt.Errorf("variables: reference %d is not an object", ref)
	}
	v, err := ins.vm.SetFieldValue(proto.ObjectID(obj.object), field, literal)
	if err != nil {
		return Variable{}, fmt.Errorf("variables: setting field %s.%s: %w", obj.typeName, field, err)
	}
	return ins.toVariable(field, v, false), nil
}

// toVariable renders a proto.Value into a Variable, truncating string
// display values and assigning a reference to expandable values.
func (ins *Inspector) toVariable(name string, v proto.Value, isLocal bool) Variable {
	display := v.Display
	if strings.Contains(strings.ToLower(v.TypeName), "string") && len(display) > maxStringDisplay {
		display = display[:maxStringDisplay] + "…"
	}

	vr := Variable{Name: name, TypeName: v.TypeName, Display: display, IsLocal: isLocal}
	switch {
	case v.IsObject:
		vr.Ref = ins.reg.ObjectRef(string(v.Object), v.TypeName)
		vr.Expandable = true
	case v.IsArray:
		vr.Ref = ins.reg.ArraySliceRef(string(v.Object), 0, min(v.ArrayCount, maxArraySlice))
		vr.Expandable = true
	}
	return vr
}
