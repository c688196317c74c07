// Package proto models the wire protocol boundary to the target VM (C1, §4.1).
// The protocol itself is a collaborator: ktdbg consumes it, it does not define
// it (spec.md §6). What this package fixes is the shape every caller in the
// core relies on — an opaque, comparable RemoteLocation, a VM handle that is
// safe to call from any goroutine, and a single Events() channel the event
// pump drains.
package proto

import "fmt"

// SourcePosition is (file_name, line, column?) per the data model in spec.md
// §3. file_name is always the leaf name the compiler embedded, never an
// absolute path.
type SourcePosition struct {
	File   string
	Line   int
	Column *int
}

func (p SourcePosition) String() string {
	if p.Column != nil {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, *p.Column)
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Equal implements the file+line+column equality spec.md §3 requires.
func (p SourcePosition) Equal(o SourcePosition) bool {
	if p.File != o.File || p.Line != o.Line {
		return false
	}
	if (p.Column == nil) != (o.Column == nil) {
		return false
	}
	return p.Column == nil || *p.Column == *o.Column
}

// ThreadID identifies a target-VM thread. Opaque, assigned by the target.
type ThreadID string

// ObjectID identifies a remote object. Opaque, assigned by the target.
type ObjectID string

// ClassID identifies a loaded class in the target VM.
type ClassID string

// RequestHandle identifies a wire-level request (breakpoint, step, exception,
// or class-prepare) installed in the target VM. Its validity spans the
// lifetime of the connection, like RemoteLocation's.
type RequestHandle string

// RemoteLocation is the opaque handle described in spec.md §3: "carrying
// declaring class name, method reference, code-unit line number, generated
// source name." Two locations are equal iff their id is equal; id is
// assigned by the target and is stable for the connection's lifetime.
type RemoteLocation struct {
	id              string
	ClassName       string
	Method          string
	CodeLine        int
	GeneratedSource string
}

// NewRemoteLocation builds a RemoteLocation from wire fields. Exported for use
// by internal/proto's own decoders and by tests that need to construct
// locations without a live connection.
func NewRemoteLocation(id, className, method string, codeLine int, generatedSource string) RemoteLocation {
	return RemoteLocation{id: id, ClassName: className, Method: method, CodeLine: codeLine, GeneratedSource: generatedSource}
}

// ID returns the location's stable wire identity.
func (l RemoteLocation) ID() string { return l.id }

func (l RemoteLocation) Equal(o RemoteLocation) bool { return l.id == o.id }

func (l RemoteLocation) String() string {
	return fmt.Sprintf("%s.%s@%s:%d", l.ClassName, l.Method, l.GeneratedSource, l.CodeLine)
}

// ThreadStatus is the VM-reported run state of a thread (spec.md §3).
type ThreadStatus string

const (
	ThreadRunning    ThreadStatus = "running"
	ThreadSleeping   ThreadStatus = "sleeping"
	ThreadWaiting    ThreadStatus = "waiting"
	ThreadMonitor    ThreadStatus = "monitor"
	ThreadZombie     ThreadStatus = "zombie"
	ThreadNotStarted ThreadStatus = "not_started"
	ThreadUnknown    ThreadStatus = "unknown"
)

// ThreadSnapshot is only valid while captured; callers must re-fetch after
// any resume (spec.md §3).
type ThreadSnapshot struct {
	ID          ThreadID
	Name        string
	Status      ThreadStatus
	IsSuspended bool
}

// ClassInfo describes a loaded class as far as the core needs to know: its
// name, the source file name the compiler recorded, and the raw SMAP text
// embedded in its debug-extension attribute (empty if the class carries none).
type ClassInfo struct {
	Name           string
	SourceName     string
	DebugExtension string
}

// RawFrame is one frame as reported directly by the target VM, before the
// Stack Frame Manager (C8) splices in virtual inline frames.
type RawFrame struct {
	ThreadID ThreadID
	Index    int
	Location RemoteLocation
	IsNative bool
}

// FieldInfo describes one declared field of an object's declared type.
type FieldInfo struct {
	Name     string
	TypeName string
	Static   bool
}

// Value is a remote value as reported by the target: either a primitive
// rendered to its display string, or a reference to an object/array that the
// Variable Inspector (C9) can later expand.
type Value struct {
	TypeName   string
	Display    string
	IsObject   bool
	IsArray    bool
	Object     ObjectID
	ArrayCount int
}

// LocalVarInfo describes one visible local variable in a frame, in
// declaration order, as spec.md §4.9 requires.
type LocalVarInfo struct {
	Name  string
	Value Value
}

// StepDepth selects step granularity per spec.md §4.7.
type StepDepth int

const (
	StepInto StepDepth = iota
	StepOver
	StepOut
)

// ExceptionRequestOptions configures the exception filter installed by C6.
type ExceptionRequestOptions struct {
	ClassName      string
	NotifyCaught   bool
	NotifyUncaught bool
}
