package variables

import (
	"strings"
	"testing"

	"github.com/dontbug-kt/ktdbg/internal/proto"
)

type fakeInspectorVM struct {
	thisObj       proto.ObjectID
	hasThis       bool
	locals        []proto.LocalVarInfo
	fields        []proto.FieldInfo
	fieldValues   map[string]proto.Value
	invokedMethod string
	sizeValue     proto.Value
	arrayElems    []proto.Value

	setLocalName   string
	setLocalValue  string
	setFieldObject proto.ObjectID
	setFieldName   string
}

func (f *fakeInspectorVM) Threads() ([]proto.ThreadSnapshot, error)          { return nil, nil }
func (f *fakeInspectorVM) Classes() ([]proto.ClassInfo, error)               { return nil, nil }
func (f *fakeInspectorVM) ClassesByName(string) ([]proto.ClassInfo, error)   { return nil, nil }
func (f *fakeInspectorVM) LineTable(proto.ClassID, string) ([]proto.RemoteLocation, error) {
	return nil, nil
}
func (f *fakeInspectorVM) AllLocations(proto.ClassID) ([]proto.RemoteLocation, error) {
	return nil, nil
}
func (f *fakeInspectorVM) CreateBreakpointRequest(proto.RemoteLocation) (proto.RequestHandle, error) {
	return "", nil
}
func (f *fakeInspectorVM) CreateStepRequest(proto.ThreadID, proto.StepDepth) (proto.RequestHandle, error) {
	return "", nil
}
func (f *fakeInspectorVM) CreateExceptionRequest(proto.ExceptionRequestOptions) (proto.RequestHandle, error) {
	return "", nil
}
func (f *fakeInspectorVM) CreateClassPrepareRequest(string) (proto.RequestHandle, error) {
	return "", nil
}
func (f *fakeInspectorVM) ClearRequest(proto.RequestHandle) error { return nil }
func (f *fakeInspectorVM) Resume() error                          { return nil }
func (f *fakeInspectorVM) ResumeThread(proto.ThreadID) error      { return nil }
func (f *fakeInspectorVM) Suspend() error                         { return nil }
func (f *fakeInspectorVM) Frames(proto.ThreadID) ([]proto.RawFrame, error) { return nil, nil }

func (f *fakeInspectorVM) Fields(proto.ObjectID) ([]proto.FieldInfo, error) { return f.fields, nil }

func (f *fakeInspectorVM) FieldValue(_ proto.ObjectID, field string) (proto.Value, error) {
	return f.fieldValues[field], nil
}

func (f *fakeInspectorVM) ArrayElements(_ proto.ObjectID, start, count int) ([]proto.Value, error) {
	end := start + count
	if end > len(f.arrayElems) {
		end = len(f.arrayElems)
	}
	return f.arrayElems[start:end], nil
}

func (f *fakeInspectorVM) LocalVariables(proto.ThreadID, int) ([]proto.LocalVarInfo, error) {
	return f.locals, nil
}

func (f *fakeInspectorVM) ThisObject(proto.ThreadID, int) (proto.ObjectID, bool, error) {
	return f.thisObj, f.hasThis, nil
}

func (f *fakeInspectorVM) InvokeMethod(_ proto.ObjectID, method string, _ []proto.Value) (proto.Value, error) {
	f.invokedMethod = method
	return f.sizeValue, nil
}

func (f *fakeInspectorVM) SetLocalVariable(_ proto.ThreadID, _ int, name, literal string) (proto.Value, error) {
	f.setLocalName, f.setLocalValue = name, literal
	return proto.Value{TypeName: "int", Display: literal}, nil
}

func (f *fakeInspectorVM) SetFieldValue(o proto.ObjectID, field, literal string) (proto.Value, error) {
	f.setFieldObject, f.setFieldName = o, field
	return proto.Value{TypeName: "int", Display: literal}, nil
}

func (f *fakeInspectorVM) Events() <-chan proto.Event { return nil }
func (f *fakeInspectorVM) Dispose() error             { return nil }

func TestLocalVariablesIncludesThisFirst(t *testing.T) {
	vm := &fakeInspectorVM{
		thisObj: "obj-1",
		hasThis: true,
		locals: []proto.LocalVarInfo{
			{Name: "x", Value: proto.Value{TypeName: "int", Display: "3"}},
		},
	}
	ins := NewInspector(vm, NewRegistry())

	vars, err := ins.LocalVariables("t1", 0)
	if err != nil {
		t.Fatalf("LocalVariables: %v", err)
	}
	if len(vars) != 2 {
		t.Fatalf("expected 2 variables (this + x), got %d", len(vars))
	}
	if vars[0].Name != "this" {
		t.Fatalf("expected this first, got %q", vars[0].Name)
	}
	if vars[1].Name != "x" || vars[1].Display != "3" {
		t.Fatalf("unexpected second variable: %+v", vars[1])
	}
}

func TestLocalVariablesOmitsThisWhenAbsent(t *testing.T) {
	vm := &fakeInspectorVM{hasThis: false}
	ins := NewInspector(vm, NewRegistry())

	vars, err := ins.LocalVariables("t1", 0)
	if err != nil {
		t.Fatalf("LocalVariables: %v", err)
	}
	if len(vars) != 0 {
		t.Fatalf("expected no variables, got %d", len(vars))
	}
}

func TestExpandObjectIncludesCollectionSize(t *testing.T) {
	vm := &fakeInspectorVM{
		fields: []proto.FieldInfo{{Name: "count", TypeName: "int"}},
		fieldValues: map[string]proto.Value{
			"count": {TypeName: "int", Display: "2"},
		},
		sizeValue: proto.Value{Display: "2"},
	}
	ins := NewInspector(vm, NewRegistry())

	vars, err := ins.ExpandObject("obj-1", "java.util.ArrayList")
	if err != nil {
		t.Fatalf("ExpandObject: %v", err)
	}
	if vm.invokedMethod != "size" {
		t.Fatal("expected size() invoked for a collection type")
	}
	found := false
	for _, v := range vars {
		if v.Name == "size" && v.Display == "2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a synthetic size entry, got %+v", vars)
	}
}

func TestExpandObjectSkipsSizeForNonCollection(t *testing.T) {
	vm := &fakeInspectorVM{
		fields: []proto.FieldInfo{{Name: "name", TypeName: "java.lang.String"}},
		fieldValues: map[string]proto.Value{
			"name": {TypeName: "java.lang.String", Display: "alice"},
		},
	}
	ins := NewInspector(vm, NewRegistry())

	vars, err := ins.ExpandObject("obj-2", "com.example.Account")
	if err != nil {
		t.Fatalf("ExpandObject: %v", err)
	}
	if vm.invokedMethod != "" {
		t.Fatal("expected no size() invocation for a non-collection type")
	}
	if len(vars) != 1 || vars[0].Name != "name" {
		t.Fatalf("unexpected fields: %+v", vars)
	}
}

func TestExpandThroughRegistryIncludesCollectionSize(t *testing.T) {
	vm := &fakeInspectorVM{
		locals: []proto.LocalVarInfo{
			{Name: "items", Value: proto.Value{IsObject: true, Object: "obj-1", TypeName: "java.util.ArrayList"}},
		},
		fields:    []proto.FieldInfo{{Name: "count", TypeName: "int"}},
		sizeValue: proto.Value{Display: "2"},
		fieldValues: map[string]proto.Value{
			"count": {TypeName: "int", Display: "2"},
		},
	}
	reg := NewRegistry()
	ins := NewInspector(vm, reg)

	locals, err := ins.LocalVariables("t1", 0)
	if err != nil {
		t.Fatalf("LocalVariables: %v", err)
	}
	if len(locals) != 1 || !locals[0].Expandable {
		t.Fatalf("expected one expandable local, got %+v", locals)
	}

	// Exercise Expand itself, the path the real Session.ExpandVariable uses,
	// rather than calling ExpandObject directly — this is the path that
	// previously lost the object's declared type name.
	children, err := ins.Expand(locals[0].Ref)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if vm.invokedMethod != "size" {
		t.Fatal("expected size() invoked for a collection type reached via Expand")
	}
	found := false
	for _, v := range children {
		if v.Name == "size" && v.Display == "2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a synthetic size entry via Expand, got %+v", children)
	}
}

func TestExpandArrayCapsAtTenWithoutExplicitRange(t *testing.T) {
	elems := make([]proto.Value, 20)
	for i := range elems {
		elems[i] = proto.Value{TypeName: "int", Display: "0"}
	}
	vm := &fakeInspectorVM{arrayElems: elems}
	ins := NewInspector(vm, NewRegistry())

	vars, err := ins.ExpandArray("arr-1", 0, 0)
	if err != nil {
		t.Fatalf("ExpandArray: %v", err)
	}
	if len(vars) != 10 {
		t.Fatalf("expected 10 elements capped, got %d", len(vars))
	}
}

func TestStringDisplayTruncatedAt100(t *testing.T) {
	long := strings.Repeat("a", 200)
	vm := &fakeInspectorVM{
		locals: []proto.LocalVarInfo{
			{Name: "s", Value: proto.Value{TypeName: "java.lang.String", Display: long}},
		},
	}
	ins := NewInspector(vm, NewRegistry())

	vars, err := ins.LocalVariables("t1", 0)
	if err != nil {
		t.Fatalf("LocalVariables: %v", err)
	}
	wantLen := maxStringDisplay + len("…")
	if len(vars[0].Display) != wantLen {
		t.Fatalf("expected truncated display of byte length %d, got %d", wantLen, len(vars[0].Display))
	}
	if !strings.HasSuffix(vars[0].Display, "…") {
		t.Fatalf("expected an ellipsis marker, got %q", vars[0].Display)
	}
}

func TestObjectAndArrayValuesGetExpandableRefs(t *testing.T) {
	vm := &fakeInspectorVM{
		locals: []proto.LocalVarInfo{
			{Name: "obj", Value: proto.Value{IsObject: true, Object: "o1", TypeName: "com.example.Foo"}},
			{Name: "arr", Value: proto.Value{IsArray: true, Object: "a1", ArrayCount: 3, TypeName: "int[]"}},
		},
	}
	reg := NewRegistry()
	ins := NewInspector(vm, reg)

	vars, err := ins.LocalVariables("t1", 0)
	if err != nil {
		t.Fatalf("LocalVariables: %v", err)
	}
	for _, v := range vars {
		if !v.Expandable || v.Ref == 0 {
			t.Fatalf("expected %q to be expandable with a nonzero ref, got %+v", v.Name, v)
		}
		if _, ok := reg.Lookup(v.Ref); !ok {
			t.Fatalf("expected ref %d to resolve in the registry", v.Ref)
		}
	}
}

func TestSetLocalVariableReturnsRenderedValue(t *testing.T) {
	vm := &fakeInspectorVM{}
	ins := NewInspector(vm, NewRegistry())

	v, err := ins.SetLocalVariable("t1", 0, "count", "7")
	if err != nil {
		t.Fatalf("SetLocalVariable: %v", err)
	}
	if vm.setLocalName != "count" || vm.setLocalValue != "7" {
		t.Fatalf("expected SetLocalVariable(count, 7) on the VM, got %q=%q", vm.setLocalName, vm.setLocalValue)
	}
	if v.Name != "count" || v.Display != "7" {
		t.Fatalf("unexpected variable: %+v", v)
	}
}

func TestSetFieldOnObjectReference(t *testing.T) {
	vm := &fakeInspectorVM{
		locals: []proto.LocalVarInfo{
			{Name: "acct", Value: proto.Value{IsObject: true, Object: "obj-9", TypeName: "com.example.Account"}},
		},
	}
	reg := NewRegistry()
	ins := NewInspector(vm, reg)

	locals, err := ins.LocalVariables("t1", 0)
	if err != nil {
		t.Fatalf("LocalVariables: %v", err)
	}

	v, err := ins.SetField(locals[0].Ref, "balance", "100")
	if err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if vm.setFieldObject != "obj-9" || vm.setFieldName != "balance" {
		t.Fatalf("expected SetFieldValue(obj-9, balance), got %q/%q", vm.setFieldObject, vm.setFieldName)
	}
	if v.Name != "balance" || v.Display != "100" {
		t.Fatalf("unexpected variable: %+v", v)
	}
}

func TestSetFieldRejectsNonObjectReference(t *testing.T) {
	vm := &fakeInspectorVM{arrayElems: []proto.Value{{TypeName: "int", Display: "0"}}}
	reg := NewRegistry()
	ins := NewInspector(vm, reg)

	ref := reg.ArraySliceRef("arr-1", 0, 1)
	if _, err := ins.SetField(ref, "x", "1"); err == nil {
		t.Fatal("expected an error setting a field on an array-slice reference")
	}
}

func TestRegistryClearDropsAllReferences(t *testing.T) {
	reg := NewRegistry()
	ref := reg.ObjectRef("o1", "com.example.Foo")
	reg.Clear()
	if _, ok := reg.Lookup(ref); ok {
		t.Fatal("expected the reference to be gone after Clear")
	}
}
