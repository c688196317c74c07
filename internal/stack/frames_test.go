package stack

import (
	"testing"

	"github.com/dontbug-kt/ktdbg/internal/position"
	"github.com/dontbug-kt/ktdbg/internal/proto"
	"github.com/dontbug-kt/ktdbg/internal/smap"
)

type stubVM struct {
	frames []proto.RawFrame
	class  proto.ClassInfo
}

func (s *stubVM) Threads() ([]proto.ThreadSnapshot, error) { return nil, nil }
func (s *stubVM) Classes() ([]proto.ClassInfo, error)       { return []proto.ClassInfo{s.class}, nil }
func (s *stubVM) ClassesByName(name string) ([]proto.ClassInfo, error) {
	if name == s.class.Name {
		return []proto.ClassInfo{s.class}, nil
	}
	return nil, nil
}
func (s *stubVM) LineTable(proto.ClassID, string) ([]proto.RemoteLocation, error) { return nil, nil }
func (s *stubVM) AllLocations(proto.ClassID) ([]proto.RemoteLocation, error)      { return nil, nil }
func (s *stubVM) CreateBreakpointRequest(proto.RemoteLocation) (proto.RequestHandle, error) {
	return "", nil
}
func (s *stubVM) CreateStepRequest(proto.ThreadID, proto.StepDepth) (proto.RequestHandle, error) {
	return "", nil
}
func (s *stubVM) CreateExceptionRequest(proto.ExceptionRequestOptions) (proto.RequestHandle, error) {
	return "", nil
}
func (s *stubVM) CreateClassPrepareRequest(string) (proto.RequestHandle, error) { return "", nil }
func (s *stubVM) ClearRequest(proto.RequestHandle) error                       { return nil }
func (s *stubVM) Resume() error                                                { return nil }
func (s *stubVM) ResumeThread(proto.ThreadID) error                            { return nil }
func (s *stubVM) Suspend() error                                               { return nil }
func (s *stubVM) Frames(proto.ThreadID) ([]proto.RawFrame, error)              { return s.frames, nil }
func (s *stubVM) Fields(proto.ObjectID) ([]proto.FieldInfo, error)             { return nil, nil }
func (s *stubVM) FieldValue(proto.ObjectID, string) (proto.Value, error)       { return proto.Value{}, nil }
func (s *stubVM) ArrayElements(proto.ObjectID, int, int) ([]proto.Value, error) {
	return nil, nil
}
func (s *stubVM) LocalVariables(proto.ThreadID, int) ([]proto.LocalVarInfo, error) {
	return nil, nil
}
func (s *stubVM) ThisObject(proto.ThreadID, int) (proto.ObjectID, bool, error) {
	return "", false, nil
}
func (s *stubVM) InvokeMethod(proto.ObjectID, string, []proto.Value) (proto.Value, error) {
	return proto.Value{}, nil
}
func (s *stubVM) SetLocalVariable(proto.ThreadID, int, string, string) (proto.Value, error) {
	return proto.Value{}, nil
}
func (s *stubVM) SetFieldValue(proto.ObjectID, string, string) (proto.Value, error) {
	return proto.Value{}, nil
}
func (s *stubVM) Events() <-chan proto.Event { return nil }
func (s *stubVM) Dispose() error             { return nil }

const inlineSMAP = `SMAP
Inline.kt
Kotlin
*S Kotlin
*F
+ 1 Inline.kt
kotlin/Inline.kt
*L
11#1:7
*S KotlinDebug
*F
+ 1 Inline.kt
kotlin/Inline.kt
*L
11#1:7
*E`

func TestFramesForSplicesInlineFrame(t *testing.T) {
	loc := proto.NewRemoteLocation("l1", "InlineKt", "main", 7, "Inline.kt")
	vm := &stubVM{
		frames: []proto.RawFrame{{ThreadID: "t1", Index: 0, Location: loc}},
		class:  proto.ClassInfo{Name: "InlineKt", SourceName: "Main.kt", DebugExtension: inlineSMAP},
	}
	m := New(vm, position.New(vm, smap.NewCache()))

	frames, err := m.FramesFor("t1")
	if err != nil {
		t.Fatalf("FramesFor: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames (1 virtual inline + 1 real), got %d", len(frames))
	}
	if !frames[0].IsInline {
		t.Fatal("expected frame 0 to be the virtual inline frame")
	}
	if frames[0].Position == nil || frames[0].Position.Line != 11 {
		t.Fatalf("expected inline frame at source line 11, got %+v", frames[0].Position)
	}
	if frames[1].IsInline {
		t.Fatal("expected frame 1 to be the real frame")
	}
	if frames[0].Index != 0 || frames[1].Index != 1 {
		t.Fatal("expected contiguous re-indexing across the combined sequence")
	}
}

func TestSelectUpDownClampAtEnds(t *testing.T) {
	loc := proto.NewRemoteLocation("l1", "MainKt", "main", 5, "Main.kt")
	vm := &stubVM{
		frames: []proto.RawFrame{
			{ThreadID: "t1", Index: 0, Location: loc},
			{ThreadID: "t1", Index: 1, Location: loc},
		},
		class: proto.ClassInfo{Name: "MainKt", SourceName: "Main.kt"},
	}
	m := New(vm, position.New(vm, smap.NewCache()))

	if _, err := m.FramesFor("t1"); err != nil {
		t.Fatalf("FramesFor: %v", err)
	}

	if _, err := m.Up("t1"); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if _, err := m.Up("t1"); err != nil {
		t.Fatalf("Up: %v", err)
	}
	cur, _ := m.CurrentFrame("t1")
	if cur.Index != 1 {
		t.Fatalf("expected Up to clamp at the outermost frame (index 1), got %d", cur.Index)
	}

	if _, err := m.Down("t1"); err != nil {
		t.Fatalf("Down: %v", err)
	}
	if _, err := m.Down("t1"); err != nil {
		t.Fatalf("Down: %v", err)
	}
	cur, _ = m.CurrentFrame("t1")
	if cur.Index != 0 {
		t.Fatalf("expected Down to clamp at index 0, got %d", cur.Index)
	}
}

func TestSelectFrameOutOfRange(t *testing.T) {
	loc := proto.NewRemoteLocation("l1", "MainKt", "main", 5, "Main.kt")
	vm := &stubVM{
		frames: []proto.RawFrame{{ThreadID: "t1", Index: 0, Location: loc}},
		class:  proto.ClassInfo{Name: "MainKt", SourceName: "Main.kt"},
	}
	m := New(vm, position.New(vm, smap.NewCache()))
	if _, err := m.FramesFor("t1"); err != nil {
		t.Fatalf("FramesFor: %v", err)
	}
	if _, err := m.SelectFrame("t1", 5); err != ErrFrameIndexOutOfRange {
		t.Fatalf("SelectFrame(5) error = %v, want ErrFrameIndexOutOfRange", err)
	}
}
