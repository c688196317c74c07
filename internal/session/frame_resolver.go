package session

import (
	"strconv"

	"github.com/dontbug-kt/ktdbg/internal/breakpoint/condition"
	"github.com/dontbug-kt/ktdbg/internal/proto"
)

// frameResolver implements condition.Resolver against a thread's real frame,
// fetching values directly from the VM — never through the Variable
// Inspector's display-oriented rendering, which truncates strings and
// discards a primitive's native type. Resolution order follows spec.md
// §4.5.1: current-frame locals first, then `this`'s own fields, then each
// further path segment as a field access on the previous result.
type frameResolver struct {
	vm       proto.VM
	thread   proto.ThreadID
	rawFrame int
}

func (r frameResolver) Resolve(parts []string) (condition.Value, error) {
	locals, err := r.vm.LocalVariables(r.thread, r.rawFrame)
	if err != nil {
		return condition.Value{}, err
	}
	for _, l := range locals {
		if l.Name == parts[0] {
			return resolveFieldPath(r.vm, toConditionValue(l.Value), parts[1:])
		}
	}

	this, ok, err := r.vm.ThisObject(r.thread, r.rawFrame)
	if err != nil {
		return condition.Value{}, err
	}
	if ok {
		if parts[0] == "this" {
			return resolveFieldPath(r.vm, condition.Value{Kind: condition.KindObject, ObjectID: string(this)}, parts[1:])
		}
		if fv, err := r.vm.FieldValue(this, parts[0]); err == nil {
			return resolveFieldPath(r.vm, toConditionValue(fv), parts[1:])
		}
	}

	return condition.Value{}, condition.ErrUnresolvedName
}

func resolveFieldPath(vm proto.VM, v condition.Value, rest []string) (condition.Value, error) {
	for _, seg := range rest {
		if v.Kind != condition.KindObject {
			return condition.Value{}, condition.ErrUnresolvedName
		}
		fv, err := vm.FieldValue(proto.ObjectID(v.ObjectID), seg)
		if err != nil {
			return condition.Value{}, condition.ErrUnresolvedName
		}
		v = toConditionValue(fv)
	}
	return v, nil
}

// toConditionValue converts a wire-reported proto.Value — always rendered to
// a display string for primitives — into a condition.Value, parsing the
// display string back to a native type using the VM's reported type name.
func toConditionValue(v proto.Value) condition.Value {
	if v.IsObject {
		return condition.Value{Kind: condition.KindObject, ObjectID: string(v.Object)}
	}

	switch v.TypeName {
	case "boolean", "bool":
		b, _ := strconv.ParseBool(v.Display)
		return condition.Value{Kind: condition.KindBool, Bool: b}
	case "byte", "short", "int", "long", "char":
		i, _ := strconv.ParseInt(v.Display, 10, 64)
		return condition.Value{Kind: condition.KindInt, Int: i}
	case "float", "double":
		f, _ := strconv.ParseFloat(v.Display, 64)
		return condition.Value{Kind: condition.KindFloat, Float: f}
	case "null", "":
		if v.Display == "null" || v.Display == "" {
			return condition.Value{Kind: condition.KindNull}
		}
		return condition.Value{Kind: condition.KindString, Str: v.Display}
	default:
		return condition.Value{Kind: condition.KindString, Str: v.Display}
	}
}
