package adapter

import (
	"errors"

	dap "github.com/google/go-dap"

	"github.com/dontbug-kt/ktdbg/internal/session"
	"github.com/dontbug-kt/ktdbg/internal/variables"
)

func (c *conn) onInitializeRequest(req *dap.InitializeRequest) error {
	c.send(&dap.InitializeResponse{
		Response: c.newResponse(req.Request),
		Body: dap.Capabilities{
			SupportsConfigurationDoneRequest: true,
			SupportsConditionalBreakpoints:   true,
			SupportsExceptionOptions:         false,
			SupportsEvaluateForHovers:        true,
			SupportsSetVariable:              true,
			SupportsValueFormattingOptions:   true,
			SupportsTerminateRequest:         false,
			ExceptionBreakpointFilters: []dap.ExceptionBreakpointsFilter{
				{Filter: "caught", Label: "Caught Exceptions"},
				{Filter: "uncaught", Label: "Uncaught Exceptions", Default: true},
			},
		},
	})
	c.send(&dap.InitializedEvent{Event: c.newEvent("initialized")})
	return nil
}

// onLaunchRequest/onAttachRequest only acknowledge: the target VM was
// already dialed or spawned, and the Session already started, before the
// adapter began listening — cmd/launch.go and cmd/attach.go do that wiring,
// per spec.md §6's "the adapter is a client of an already-started session."
func (c *conn) onLaunchRequest(req *dap.LaunchRequest) error {
	c.send(&dap.LaunchResponse{Response: c.newResponse(req.Request)})
	return nil
}

func (c *conn) onAttachRequest(req *dap.AttachRequest) error {
	c.send(&dap.AttachResponse{Response: c.newResponse(req.Request)})
	return nil
}

func (c *conn) onSetBreakpointsRequest(req *dap.SetBreakpointsRequest) error {
	path := req.Arguments.Source.Path

	for _, id := range c.prevBreakpoints[path] {
		_ = c.sess.RemoveBreakpoint(id)
	}
	c.prevBreakpoints[path] = nil

	out := make([]dap.Breakpoint, len(req.Arguments.Breakpoints))
	for i, bp := range req.Arguments.Breakpoints {
		rec, err := c.sess.AddBreakpoint(path, bp.Line, bp.Condition)
		if err != nil {
			out[i] = dap.Breakpoint{Verified: false, Message: err.Error(), Line: bp.Line}
			continue
		}
		c.prevBreakpoints[path] = append(c.prevBreakpoints[path], rec.ID)
		out[i] = dap.Breakpoint{
			Id:       rec.ID,
			Verified: !rec.Pending,
			Line:     rec.Line,
			Source:   &req.Arguments.Source,
		}
	}

	c.send(&dap.SetBreakpointsResponse{
		Response: c.newResponse(req.Request),
		Body:     dap.SetBreakpointsResponseBody{Breakpoints: out},
	})
	return nil
}

func (c *conn) onSetExceptionBreakpointsRequest(req *dap.SetExceptionBreakpointsRequest) error {
	if err := c.sess.SetExceptionBreakpoints(req.Arguments.Filters); err != nil {
		return err
	}
	c.send(&dap.SetExceptionBreakpointsResponse{Response: c.newResponse(req.Request)})
	return nil
}

func (c *conn) onConfigurationDoneRequest(req *dap.ConfigurationDoneRequest) error {
	c.send(&dap.ConfigurationDoneResponse{Response: c.newResponse(req.Request)})
	return nil
}

func (c *conn) onThreadsRequest(req *dap.ThreadsRequest) error {
	threads, err := c.sess.GetThreads()
	if err != nil {
		return err
	}
	out := make([]dap.Thread, len(threads))
	for i, t := range threads {
		out[i] = dap.Thread{Id: c.threads.id(t.ID), Name: t.Name}
	}
	c.send(&dap.ThreadsResponse{
		Response: c.newResponse(req.Request),
		Body:     dap.ThreadsResponseBody{Threads: out},
	})
	return nil
}

func (c *conn) onStackTraceRequest(req *dap.StackTraceRequest) error {
	native, ok := c.threads.native(req.Arguments.ThreadId)
	if ok {
		if err := c.sess.SelectThread(native); err != nil && !errors.Is(err, session.ErrUnknownThread) {
			return err
		}
	}

	frames, err := c.sess.GetStackFrames()
	if err != nil {
		return err
	}

	start := req.Arguments.StartFrame
	if start < 0 || start > len(frames) {
		start = 0
	}
	frames = frames[start:]
	if levels := req.Arguments.Levels; levels > 0 && levels < len(frames) {
		frames = frames[:levels]
	}

	out := make([]dap.StackFrame, len(frames))
	for i, f := range frames {
		name := f.ClassName + "." + f.Method
		if f.IsInline {
			name += " (inline)"
		}
		sf := dap.StackFrame{Id: f.Index, Name: name}
		if f.Position != nil {
			sf.Source = &dap.Source{Name: f.Position.File, Path: f.Position.File}
			sf.Line = f.Position.Line
			if f.Position.Column != nil {
				sf.Column = *f.Position.Column
			}
		}
		out[i] = sf
	}

	c.send(&dap.StackTraceResponse{
		Response: c.newResponse(req.Request),
		Body:     dap.StackTraceResponseBody{StackFrames: out, TotalFrames: len(out)},
	})
	return nil
}

func (c *conn) onScopesRequest(req *dap.ScopesRequest) error {
	if _, err := c.sess.SelectFrame(req.Arguments.FrameId); err != nil {
		return err
	}
	c.send(&dap.ScopesResponse{
		Response: c.newResponse(req.Request),
		Body: dap.ScopesResponseBody{
			Scopes: []dap.Scope{{
				Name:               "Locals",
				VariablesReference: scopeRef(req.Arguments.FrameId),
				Expensive:          false,
			}},
		},
	})
	return nil
}

func (c *conn) onVariablesRequest(req *dap.VariablesRequest) error {
	ref := req.Arguments.VariablesReference

	var vars []variables.Variable
	var err error
	if isScopeRef(ref) {
		if _, serr := c.sess.SelectFrame(frameIndexFromScopeRef(ref)); serr != nil {
			return serr
		}
		vars, err = c.sess.GetLocalVariables()
	} else {
		vars, err = c.sess.ExpandVariable(variables.Ref(ref))
	}
	if err != nil {
		return err
	}

	out := make([]dap.Variable, len(vars))
	for i, v := range vars {
		dv := dap.Variable{Name: v.Name, Value: v.Display, Type: v.TypeName}
		if v.Expandable {
			dv.VariablesReference = int(v.Ref)
		}
		out[i] = dv
	}

	c.send(&dap.VariablesResponse{
		Response: c.newResponse(req.Request),
		Body:     dap.VariablesResponseBody{Variables: out},
	})
	return nil
}

func (c *conn) onContinueRequest(req *dap.ContinueRequest) error {
	if err := c.sess.Resume(); err != nil {
		return err
	}
	c.send(&dap.ContinueResponse{
		Response: c.newResponse(req.Request),
		Body:     dap.ContinueResponseBody{AllThreadsContinued: true},
	})
	return nil
}

func (c *conn) onPauseRequest(req *dap.PauseRequest) error {
	if err := c.sess.Suspend(); err != nil {
		return err
	}
	c.send(&dap.PauseResponse{Response: c.newResponse(req.Request)})

	thread, err := c.sess.GetCurrentThread()
	threadID := 0
	if err == nil {
		threadID = c.threads.id(thread.ID)
	}
	c.send(&dap.StoppedEvent{
		Event: c.newEvent("stopped"),
		Body: dap.StoppedEventBody{
			Reason:            "pause",
			ThreadId:          threadID,
			AllThreadsStopped: true,
		},
	})
	return nil
}

func (c *conn) onNextRequest(req *dap.NextRequest) error {
	if err := c.sess.StepOver(); err != nil {
		return err
	}
	c.send(&dap.NextResponse{Response: c.newResponse(req.Request)})
	return nil
}

func (c *conn) onStepInRequest(req *dap.StepInRequest) error {
	if err := c.sess.StepInto(); err != nil {
		return err
	}
	c.send(&dap.StepInResponse{Response: c.newResponse(req.Request)})
	return nil
}

func (c *conn) onStepOutRequest(req *dap.StepOutRequest) error {
	if err := c.sess.StepOut(); err != nil {
		return err
	}
	c.send(&dap.StepOutResponse{Response: c.newResponse(req.Request)})
	return nil
}

func (c *conn) onEvaluateRequest(req *dap.EvaluateRequest) error {
	if req.Arguments.FrameId != 0 {
		if _, err := c.sess.SelectFrame(req.Arguments.FrameId); err != nil {
			return err
		}
	}
	v, err := c.sess.GetVariable(req.Arguments.Expression)
	if err != nil {
		return err
	}
	body := dap.EvaluateResponseBody{Result: v.Display, Type: v.TypeName}
	if v.Expandable {
		body.VariablesReference = int(v.Ref)
	}
	c.send(&dap.EvaluateResponse{
		Response: c.newResponse(req.Request),
		Body:     body,
	})
	return nil
}

func (c *conn) onSetVariableRequest(req *dap.SetVariableRequest) error {
	ref := req.Arguments.VariablesReference

	var (
		v   variables.Variable
		err error
	)
	if isScopeRef(ref) {
		if _, serr := c.sess.SelectFrame(frameIndexFromScopeRef(ref)); serr != nil {
			return serr
		}
		v, err = c.sess.SetVariable(0, req.Arguments.Name, req.Arguments.Value)
	} else {
		v, err = c.sess.SetVariable(variables.Ref(ref), req.Arguments.Name, req.Arguments.Value)
	}
	if err != nil {
		return err
	}

	body := dap.SetVariableResponseBody{Value: v.Display, Type: v.TypeName}
	if v.Expandable {
		body.VariablesReference = int(v.Ref)
	}
	c.send(&dap.SetVariableResponse{
		Response: c.newResponse(req.Request),
		Body:     body,
	})
	return nil
}

func (c *conn) onDisconnectRequest(req *dap.DisconnectRequest) error {
	c.send(&dap.DisconnectResponse{Response: c.newResponse(req.Request)})
	if req.Arguments.TerminateDebuggee {
		if err := c.sess.Stop(); err != nil {
			c.log.Warnf("stopping session on disconnect: %v", err)
		}
	}
	c.stop()
	return nil
}
