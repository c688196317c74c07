package proto

import (
	"encoding/json"
	"fmt"
)

// The wire payload shapes below are internal to this package's framing; VM
// callers never see them, only the typed Event/RemoteLocation/etc. values.

type wireLocation struct {
	ID              string `json:"id"`
	ClassName       string `json:"class_name"`
	Method          string `json:"method"`
	CodeLine        int    `json:"code_line"`
	GeneratedSource string `json:"generated_source"`
}

func (l wireLocation) toRemoteLocation() RemoteLocation {
	return NewRemoteLocation(l.ID, l.ClassName, l.Method, l.CodeLine, l.GeneratedSource)
}

func fromRemoteLocation(l RemoteLocation) wireLocation {
	return wireLocation{ID: l.id, ClassName: l.ClassName, Method: l.Method, CodeLine: l.CodeLine, GeneratedSource: l.GeneratedSource}
}

type breakpointHitBody struct {
	Request  string       `json:"request"`
	Thread   string       `json:"thread"`
	Location wireLocation `json:"location"`
}

type stepCompletedBody struct {
	Request  string       `json:"request"`
	Thread   string       `json:"thread"`
	Location wireLocation `json:"location"`
}

type exceptionThrownBody struct {
	Request  string       `json:"request"`
	Class    string       `json:"class"`
	Message  string       `json:"message"`
	Thread   string       `json:"thread"`
	Location wireLocation `json:"location"`
	Caught   bool         `json:"caught"`
}

type threadEventBody struct {
	Thread string `json:"thread"`
}

type vmStartedBody struct {
	MainThread string `json:"main_thread"`
}

type vmDeathBody struct {
	ExitCode int `json:"exit_code"`
}

type classPreparedBody struct {
	Request string `json:"request"`
	Class   string `json:"class"`
	Name    string `json:"name"`
}

func decodeEvent(kind string, body json.RawMessage) (Event, error) {
	switch EventKind(kind) {
	case EventBreakpointHit:
		var b breakpointHitBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return BreakpointHitEvent{Request: RequestHandle(b.Request), Thread: ThreadID(b.Thread), Location: b.Location.toRemoteLocation()}, nil
	case EventStepCompleted:
		var b stepCompletedBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return StepCompletedEvent{Request: RequestHandle(b.Request), Thread: ThreadID(b.Thread), Location: b.Location.toRemoteLocation()}, nil
	case EventExceptionThrown:
		var b exceptionThrownBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return ExceptionThrownEvent{
			Request: RequestHandle(b.Request), Class: b.Class, Message: b.Message,
			Thread: ThreadID(b.Thread), Location: b.Location.toRemoteLocation(), Caught: b.Caught,
		}, nil
	case EventThreadStarted:
		var b threadEventBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return ThreadStartedEvent{Thread: ThreadID(b.Thread)}, nil
	case EventThreadDied:
		var b threadEventBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return ThreadDiedEvent{Thread: ThreadID(b.Thread)}, nil
	case EventVMStarted:
		var b vmStartedBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return VMStartedEvent{MainThread: ThreadID(b.MainThread)}, nil
	case EventVMDeath:
		var b vmDeathBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return VMDeathEvent{ExitCode: b.ExitCode}, nil
	case EventVMDisconnected:
		return VMDisconnectedEvent{}, nil
	case EventClassPrepared:
		var b classPreparedBody
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, err
		}
		return ClassPreparedEvent{Request: RequestHandle(b.Request), Class: ClassID(b.Class), Name: b.Name}, nil
	default:
		return nil, fmt.Errorf("proto: unknown event kind %q", kind)
	}
}

// EncodeEvent renders ev back to its wire envelope. Exported so tests (and
// the in-memory fake target used by internal/proto's own test suite) can
// synthesize events without reaching into package-private wire types.
func EncodeEvent(ev Event) (kind string, body json.RawMessage, err error) {
	switch e := ev.(type) {
	case BreakpointHitEvent:
		body, err = json.Marshal(breakpointHitBody{Request: string(e.Request), Thread: string(e.Thread), Location: fromRemoteLocation(e.Location)})
	case StepCompletedEvent:
		body, err = json.Marshal(stepCompletedBody{Request: string(e.Request), Thread: string(e.Thread), Location: fromRemoteLocation(e.Location)})
	case ExceptionThrownEvent:
		body, err = json.Marshal(exceptionThrownBody{Request: string(e.Request), Class: e.Class, Message: e.Message, Thread: string(e.Thread), Location: fromRemoteLocation(e.Location), Caught: e.Caught})
	case ThreadStartedEvent:
		body, err = json.Marshal(threadEventBody{Thread: string(e.Thread)})
	case ThreadDiedEvent:
		body, err = json.Marshal(threadEventBody{Thread: string(e.Thread)})
	case VMStartedEvent:
		body, err = json.Marshal(vmStartedBody{MainThread: string(e.MainThread)})
	case VMDeathEvent:
		body, err = json.Marshal(vmDeathBody{ExitCode: e.ExitCode})
	case VMDisconnectedEvent:
		body, err = json.Marshal(struct{}{})
	case ClassPreparedEvent:
		body, err = json.Marshal(classPreparedBody{Request: string(e.Request), Class: string(e.Class), Name: e.Name})
	default:
		return "", nil, fmt.Errorf("proto: unknown event type %T", ev)
	}
	if err != nil {
		return "", nil, err
	}
	return string(ev.Kind()), body, nil
}
