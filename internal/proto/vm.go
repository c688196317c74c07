package proto

import (
	"encoding/json"
)

// VM is the handle the Connector (C1) returns: "an opaque VM handle that
// supports: listing threads, listing loaded classes, listing classes by name,
// querying line tables, creating breakpoint/step/exception/class-prepare
// requests, disposing" (spec.md §4.1). It is safe to call from any goroutine;
// the underlying wireConn serializes writes and correlates responses.
type VM interface {
	Threads() ([]ThreadSnapshot, error)
	Classes() ([]ClassInfo, error)
	ClassesByName(name string) ([]ClassInfo, error)
	LineTable(class ClassID, method string) ([]RemoteLocation, error)
	// AllLocations returns every executable location in class across all of
	// its methods, for queries that need to search a whole class's line
	// table rather than one method's (the Position Manager's findLocations).
	AllLocations(class ClassID) ([]RemoteLocation, error)

	CreateBreakpointRequest(loc RemoteLocation) (RequestHandle, error)
	CreateStepRequest(thread ThreadID, depth StepDepth) (RequestHandle, error)
	CreateExceptionRequest(opts ExceptionRequestOptions) (RequestHandle, error)
	CreateClassPrepareRequest(filter string) (RequestHandle, error)
	ClearRequest(h RequestHandle) error

	Resume() error
	ResumeThread(t ThreadID) error
	Suspend() error

	Frames(t ThreadID) ([]RawFrame, error)
	Fields(o ObjectID) ([]FieldInfo, error)
	FieldValue(o ObjectID, field string) (Value, error)
	ArrayElements(o ObjectID, start, count int) ([]Value, error)
	LocalVariables(t ThreadID, frame int) ([]LocalVarInfo, error)
	ThisObject(t ThreadID, frame int) (ObjectID, bool, error)
	InvokeMethod(o ObjectID, method string, args []Value) (Value, error)
	// SetLocalVariable and SetFieldValue implement the mutation half of
	// setVariable (spec.md §6): literal is the assigned value exactly as the
	// client typed it, parsed and coerced to the variable's static type by the
	// target VM, not by this package. Both return the freshly rendered Value
	// so the caller can report back what actually got stored.
	SetLocalVariable(t ThreadID, frame int, name, literal string) (Value, error)
	SetFieldValue(o ObjectID, field, literal string) (Value, error)

	// Events delivers unsolicited notifications (breakpoint hits, steps,
	// thread lifecycle, class-prepared, VM death/disconnect). The event pump
	// (C4) is the sole reader.
	Events() <-chan Event

	Dispose() error
}

// connection is the concrete VM implementation over a wireConn.
type connection struct {
	wc *wireConn
}

func (c *connection) Events() <-chan Event { return c.wc.events }

func (c *connection) Dispose() error {
	_, _ = c.wc.send("dispose", struct{}{})
	return c.wc.Close()
}

func (c *connection) Threads() ([]ThreadSnapshot, error) {
	raw, err := c.wc.send("threads", struct{}{})
	if err != nil {
		return nil, err
	}
	var wire []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Status      string `json:"status"`
		IsSuspended bool   `json:"is_suspended"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	out := make([]ThreadSnapshot, len(wire))
	for i, w := range wire {
		out[i] = ThreadSnapshot{ID: ThreadID(w.ID), Name: w.Name, Status: ThreadStatus(w.Status), IsSuspended: w.IsSuspended}
	}
	return out, nil
}

func (c *connection) Classes() ([]ClassInfo, error) {
	return c.classes("classes", struct{}{})
}

func (c *connection) ClassesByName(name string) ([]ClassInfo, error) {
	return c.classes("classes_by_name", struct {
		Name string `json:"name"`
	}{Name: name})
}

func (c *connection) classes(method string, params interface{}) ([]ClassInfo, error) {
	raw, err := c.wc.send(method, params)
	if err != nil {
		return nil, err
	}
	var wire []struct {
		Name           string `json:"name"`
		SourceName     string `json:"source_name"`
		DebugExtension string `json:"debug_extension"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	out := make([]ClassInfo, len(wire))
	for i, w := range wire {
		out[i] = ClassInfo{Name: w.Name, SourceName: w.SourceName, DebugExtension: w.DebugExtension}
	}
	return out, nil
}

func (c *connection) LineTable(class ClassID, method string) ([]RemoteLocation, error) {
	raw, err := c.wc.send("line_table", struct {
		Class  string `json:"class"`
		Method string `json:"method"`
	}{Class: string(class), Method: method})
	if err != nil {
		return nil, err
	}
	var wire []wireLocation
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	out := make([]RemoteLocation, len(wire))
	for i, w := range wire {
		out[i] = w.toRemoteLocation()
	}
	return out, nil
}

func (c *connection) AllLocations(class ClassID) ([]RemoteLocation, error) {
	raw, err := c.wc.send("all_locations", struct {
		Class string `json:"class"`
	}{Class: string(class)})
	if err != nil {
		return nil, err
	}
	var wire []wireLocation
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	out := make([]RemoteLocation, len(wire))
	for i, w := range wire {
		out[i] = w.toRemoteLocation()
	}
	return out, nil
}

func (c *connection) CreateBreakpointRequest(loc RemoteLocation) (RequestHandle, error) {
	raw, err := c.wc.send("create_breakpoint_request", fromRemoteLocation(loc))
	if err != nil {
		return "", err
	}
	return decodeHandle(raw)
}

func (c *connection) CreateStepRequest(thread ThreadID, depth StepDepth) (RequestHandle, error) {
	raw, err := c.wc.send("create_step_request", struct {
		Thread string `json:"thread"`
		Depth  int    `json:"depth"`
	}{Thread: string(thread), Depth: int(depth)})
	if err != nil {
		return "", err
	}
	return decodeHandle(raw)
}

func (c *connection) CreateExceptionRequest(opts ExceptionRequestOptions) (RequestHandle, error) {
	raw, err := c.wc.send("create_exception_request", struct {
		ClassName      string `json:"class_name"`
		NotifyCaught   bool   `json:"notify_caught"`
		NotifyUncaught bool   `json:"notify_uncaught"`
	}{ClassName: opts.ClassName, NotifyCaught: opts.NotifyCaught, NotifyUncaught: opts.NotifyUncaught})
	if err != nil {
		return "", err
	}
	return decodeHandle(raw)
}

func (c *connection) CreateClassPrepareRequest(filter string) (RequestHandle, error) {
	raw, err := c.wc.send("create_class_prepare_request", struct {
		Filter string `json:"filter"`
	}{Filter: filter})
	if err != nil {
		return "", err
	}
	return decodeHandle(raw)
}

func (c *connection) ClearRequest(h RequestHandle) error {
	_, err := c.wc.send("clear_request", struct {
		Handle string `json:"handle"`
	}{Handle: string(h)})
	return err
}

func (c *connection) Resume() error {
	_, err := c.wc.send("resume", struct{}{})
	return err
}

func (c *connection) ResumeThread(t ThreadID) error {
	_, err := c.wc.send("resume_thread", struct {
		Thread string `json:"thread"`
	}{Thread: string(t)})
	return err
}

func (c *connection) Suspend() error {
	_, err := c.wc.send("suspend", struct{}{})
	return err
}

func (c *connection) Frames(t ThreadID) ([]RawFrame, error) {
	raw, err := c.wc.send("frames", struct {
		Thread string `json:"thread"`
	}{Thread: string(t)})
	if err != nil {
		return nil, err
	}
	var wire []struct {
		Index    int          `json:"index"`
		Location wireLocation `json:"location"`
		IsNative bool         `json:"is_native"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	out := make([]RawFrame, len(wire))
	for i, w := range wire {
		out[i] = RawFrame{ThreadID: t, Index: w.Index, Location: w.Location.toRemoteLocation(), IsNative: w.IsNative}
	}
	return out, nil
}

func (c *connection) Fields(o ObjectID) ([]FieldInfo, error) {
	raw, err := c.wc.send("fields", struct {
		Object string `json:"object"`
	}{Object: string(o)})
	if err != nil {
		return nil, err
	}
	var wire []FieldInfo
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	return wire, nil
}

func (c *connection) FieldValue(o ObjectID, field string) (Value, error) {
	raw, err := c.wc.send("field_value", struct {
		Object string `json:"object"`
		Field  string `json:"field"`
	}{Object: string(o), Field: field})
	if err != nil {
		return Value{}, err
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

func (c *connection) ArrayElements(o ObjectID, start, count int) ([]Value, error) {
	raw, err := c.wc.send("array_elements", struct {
		Object string `json:"object"`
		Start  int    `json:"start"`
		Count  int    `json:"count"`
	}{Object: string(o), Start: start, Count: count})
	if err != nil {
		return nil, err
	}
	var vs []Value
	if err := json.Unmarshal(raw, &vs); err != nil {
		return nil, err
	}
	return vs, nil
}

func (c *connection) LocalVariables(t ThreadID, frame int) ([]LocalVarInfo, error) {
	raw, err := c.wc.send("local_variables", struct {
		Thread string `json:"thread"`
		Frame  int    `json:"frame"`
	}{Thread: string(t), Frame: frame})
	if err != nil {
		return nil, err
	}
	var wire []LocalVarInfo
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	return wire, nil
}

func (c *connection) ThisObject(t ThreadID, frame int) (ObjectID, bool, error) {
	raw, err := c.wc.send("this_object", struct {
		Thread string `json:"thread"`
		Frame  int    `json:"frame"`
	}{Thread: string(t), Frame: frame})
	if err != nil {
		return "", false, err
	}
	var wire struct {
		Object string `json:"object"`
		Ok     bool   `json:"ok"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return "", false, err
	}
	return ObjectID(wire.Object), wire.Ok, nil
}

func (c *connection) InvokeMethod(o ObjectID, method string, args []Value) (Value, error) {
	raw, err := c.wc.send("invoke_method", struct {
		Object string  `json:"object"`
		Method string  `json:"method"`
		Args   []Value `json:"args"`
	}{Object: string(o), Method: method, Args: args})
	if err != nil {
		return Value{}, err
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

func (c *connection) SetLocalVariable(t ThreadID, frame int, name, literal string) (Value, error) {
	raw, err := c.wc.send("set_local_variable", struct {
		Thread string `json:"thread"`
		Frame  int    `json:"frame"`
		Name   string `json:"name"`
		Value  string `json:"value"`
	}{Thread: string(t), Frame: frame, Name: name, Value: literal})
	if err != nil {
		return Value{}, err
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

func (c *connection) SetFieldValue(o ObjectID, field, literal string) (Value, error) {
	raw, err := c.wc.send("set_field_value", struct {
		Object string `json:"object"`
		Field  string `json:"field"`
		Value  string `json:"value"`
	}{Object: string(o), Field: field, Value: literal})
	if err != nil {
		return Value{}, err
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

func decodeHandle(raw json.RawMessage) (RequestHandle, error) {
	var wire struct {
		Handle string `json:"handle"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return "", err
	}
	return RequestHandle(wire.Handle), nil
}
