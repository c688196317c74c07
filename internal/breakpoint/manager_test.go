package breakpoint

import (
	"fmt"
	"sync"
	"testing"

	"github.com/dontbug-kt/ktdbg/internal/breakpoint/condition"
	"github.com/dontbug-kt/ktdbg/internal/position"
	"github.com/dontbug-kt/ktdbg/internal/proto"
	"github.com/dontbug-kt/ktdbg/internal/smap"
)

// fakeVM is a configurable proto.VM: classes and their locations can be
// changed between calls, to simulate a class loading after a breakpoint was
// requested against it.
type fakeVM struct {
	mu            sync.Mutex
	classes       []proto.ClassInfo
	locsByClass   map[string][]proto.RemoteLocation
	bpSeq         int
	cpSeq         int
	cleared       []proto.RequestHandle
	createdCP     []proto.RequestHandle
	createdBP     []proto.RemoteLocation
	exceptionReqs []proto.ExceptionRequestOptions
}

func newFakeVM() *fakeVM {
	return &fakeVM{locsByClass: make(map[string][]proto.RemoteLocation)}
}

func (f *fakeVM) Threads() ([]proto.ThreadSnapshot, error) { return nil, nil }

func (f *fakeVM) Classes() ([]proto.ClassInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]proto.ClassInfo, len(f.classes))
	copy(out, f.classes)
	return out, nil
}

func (f *fakeVM) ClassesByName(name string) ([]proto.ClassInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []proto.ClassInfo
	for _, c := range f.classes {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeVM) LineTable(proto.ClassID, string) ([]proto.RemoteLocation, error) { return nil, nil }

func (f *fakeVM) AllLocations(class proto.ClassID) ([]proto.RemoteLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locsByClass[string(class)], nil
}

func (f *fakeVM) CreateBreakpointRequest(loc proto.RemoteLocation) (proto.RequestHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bpSeq++
	f.createdBP = append(f.createdBP, loc)
	return proto.RequestHandle(fmt.Sprintf("bpreq%d", f.bpSeq)), nil
}

func (f *fakeVM) CreateStepRequest(proto.ThreadID, proto.StepDepth) (proto.RequestHandle, error) {
	return "", nil
}

func (f *fakeVM) CreateExceptionRequest(opts proto.ExceptionRequestOptions) (proto.RequestHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exceptionReqs = append(f.exceptionReqs, opts)
	return proto.RequestHandle("excreq1"), nil
}

func (f *fakeVM) CreateClassPrepareRequest(filter string) (proto.RequestHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cpSeq++
	h := proto.RequestHandle(fmt.Sprintf("cpreq%d", f.cpSeq))
	f.createdCP = append(f.createdCP, h)
	return h, nil
}

func (f *fakeVM) ClearRequest(h proto.RequestHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, h)
	return nil
}

func (f *fakeVM) Resume() error                                    { return nil }
func (f *fakeVM) ResumeThread(proto.ThreadID) error                { return nil }
func (f *fakeVM) Suspend() error                                   { return nil }
func (f *fakeVM) Frames(proto.ThreadID) ([]proto.RawFrame, error)  { return nil, nil }
func (f *fakeVM) Fields(proto.ObjectID) ([]proto.FieldInfo, error) { return nil, nil }
func (f *fakeVM) FieldValue(proto.ObjectID, string) (proto.Value, error) {
	return proto.Value{}, nil
}
func (f *fakeVM) ArrayElements(proto.ObjectID, int, int) ([]proto.Value, error) { return nil, nil }
func (f *fakeVM) LocalVariables(proto.ThreadID, int) ([]proto.LocalVarInfo, error) {
	return nil, nil
}
func (f *fakeVM) ThisObject(proto.ThreadID, int) (proto.ObjectID, bool, error) {
	return "", false, nil
}
func (f *fakeVM) InvokeMethod(proto.ObjectID, string, []proto.Value) (proto.Value, error) {
	return proto.Value{}, nil
}
func (f *fakeVM) SetLocalVariable(proto.ThreadID, int, string, string) (proto.Value, error) {
	return proto.Value{}, nil
}
func (f *fakeVM) SetFieldValue(proto.ObjectID, string, string) (proto.Value, error) {
	return proto.Value{}, nil
}
func (f *fakeVM) Events() <-chan proto.Event { return nil }
func (f *fakeVM) Dispose() error             { return nil }

func newManager(vm *fakeVM) *Manager {
	return New(vm, position.New(vm, smap.NewCache()))
}

func TestAddResolvesEagerlyWhenClassAlreadyLoaded(t *testing.T) {
	vm := newFakeVM()
	vm.classes = []proto.ClassInfo{{Name: "MainKt", SourceName: "Main.kt"}}
	vm.locsByClass["MainKt"] = []proto.RemoteLocation{
		proto.NewRemoteLocation("l1", "MainKt", "main", 15, "MainKt.class"),
	}

	m := newManager(vm)
	rec, err := m.AddLineBreakpoint("Main.kt", 15, "")
	if err != nil {
		t.Fatalf("AddLineBreakpoint: %v", err)
	}
	if rec.Pending {
		t.Fatal("expected immediate resolution, got Pending=true")
	}
	if len(vm.createdBP) != 1 {
		t.Fatalf("expected one wire breakpoint request, got %d", len(vm.createdBP))
	}
}

func TestDeferredBreakpointResolvesOnClassPrepared(t *testing.T) {
	vm := newFakeVM() // no classes loaded yet

	m := newManager(vm)
	rec, err := m.AddLineBreakpoint("NotYet.kt", 7, "")
	if err != nil {
		t.Fatalf("AddLineBreakpoint: %v", err)
	}
	if !rec.Pending {
		t.Fatal("expected Pending=true before the class loads")
	}
	if len(vm.createdCP) != 1 {
		t.Fatalf("expected one class-prepare watch, got %d", len(vm.createdCP))
	}

	list := m.List()
	if len(list) != 1 || list[0].State != StateEnabled {
		t.Fatalf("a pending breakpoint must still list as enabled, got %+v", list)
	}

	// The class loads.
	vm.classes = []proto.ClassInfo{{Name: "NotYetKt", SourceName: "NotYet.kt"}}
	vm.locsByClass["NotYetKt"] = []proto.RemoteLocation{
		proto.NewRemoteLocation("l1", "NotYetKt", "main", 7, "NotYetKt.class"),
	}

	m.OnEvent(proto.ClassPreparedEvent{Request: vm.createdCP[0], Class: "NotYetKt", Name: "NotYetKt"})

	list = m.List()
	if list[0].Pending {
		t.Fatal("expected resolution after ClassPrepared")
	}
	if len(vm.createdBP) != 1 {
		t.Fatalf("expected one wire breakpoint request after resolution, got %d", len(vm.createdBP))
	}
}

func TestDeleteNeverReissuesID(t *testing.T) {
	vm := newFakeVM()
	vm.classes = []proto.ClassInfo{{Name: "MainKt", SourceName: "Main.kt"}}
	vm.locsByClass["MainKt"] = []proto.RemoteLocation{
		proto.NewRemoteLocation("l1", "MainKt", "main", 1, "MainKt.class"),
	}

	m := newManager(vm)
	rec1, _ := m.AddLineBreakpoint("Main.kt", 1, "")
	m.Delete(rec1.ID)
	rec2, _ := m.AddLineBreakpoint("Main.kt", 1, "")

	if rec2.ID == rec1.ID {
		t.Fatalf("breakpoint id %d reissued after deletion", rec1.ID)
	}
}

// fixedResolver always resolves to the same value, regardless of name.
type fixedResolver struct{ v condition.Value }

func (r fixedResolver) Resolve([]string) (condition.Value, error) { return r.v, nil }

func TestConditionalBreakpointSwallowsFalseHit(t *testing.T) {
	vm := newFakeVM()
	vm.classes = []proto.ClassInfo{{Name: "MainKt", SourceName: "Main.kt"}}
	loc := proto.NewRemoteLocation("l1", "MainKt", "main", 20, "MainKt.class")
	vm.locsByClass["MainKt"] = []proto.RemoteLocation{loc}

	m := newManager(vm)
	m.SetFrameResolver(func(proto.ThreadID) (condition.Resolver, error) {
		return fixedResolver{v: condition.Value{Kind: condition.KindInt, Int: 3}}, nil
	})

	rec, err := m.AddLineBreakpoint("Main.kt", 20, "x == 99")
	if err != nil {
		t.Fatalf("AddLineBreakpoint: %v", err)
	}

	hit := proto.BreakpointHitEvent{Request: "bpreq1", Thread: "t1", Location: loc}
	if !m.Filter(hit) {
		t.Fatal("expected the hit to be swallowed: x == 99 is false when x is 3")
	}

	id, ok := m.ResolveHitID("bpreq1")
	if !ok || id != rec.ID {
		t.Fatalf("ResolveHitID = (%d, %v), want (%d, true)", id, ok, rec.ID)
	}
}

func TestConditionalBreakpointPassesTrueHit(t *testing.T) {
	vm := newFakeVM()
	vm.classes = []proto.ClassInfo{{Name: "MainKt", SourceName: "Main.kt"}}
	loc := proto.NewRemoteLocation("l1", "MainKt", "main", 20, "MainKt.class")
	vm.locsByClass["MainKt"] = []proto.RemoteLocation{loc}

	m := newManager(vm)
	m.SetFrameResolver(func(proto.ThreadID) (condition.Resolver, error) {
		return fixedResolver{v: condition.Value{Kind: condition.KindInt, Int: 3}}, nil
	})

	_, err := m.AddLineBreakpoint("Main.kt", 20, "x == 3")
	if err != nil {
		t.Fatalf("AddLineBreakpoint: %v", err)
	}

	hit := proto.BreakpointHitEvent{Request: "bpreq1", Thread: "t1", Location: loc}
	if m.Filter(hit) {
		t.Fatal("expected the hit to pass through: x == 3 is true when x is 3")
	}
}

func TestExceptionManagerFiltersByFilterSet(t *testing.T) {
	vm := newFakeVM()
	em := NewExceptionManager(vm, "Throwable")

	if err := em.SetFilters([]string{"uncaught"}); err != nil {
		t.Fatalf("SetFilters: %v", err)
	}
	if len(vm.exceptionReqs) != 1 {
		t.Fatalf("expected one exception request installed, got %d", len(vm.exceptionReqs))
	}
	if !em.ShouldStopOnException(false) {
		t.Fatal("uncaught filter should stop on an uncaught exception")
	}
	if em.ShouldStopOnException(true) {
		t.Fatal("uncaught-only filter should not stop on a caught exception")
	}

	caughtEv := proto.ExceptionThrownEvent{Caught: true}
	if !em.Filter(caughtEv) {
		t.Fatal("a caught exception should be swallowed when only 'uncaught' is active")
	}
}
