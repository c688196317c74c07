package session

import (
	"errors"
	"fmt"

	"github.com/dontbug-kt/ktdbg/internal/breakpoint"
	"github.com/dontbug-kt/ktdbg/internal/proto"
	"github.com/dontbug-kt/ktdbg/internal/stack"
	"github.com/dontbug-kt/ktdbg/internal/variables"
)

// AddBreakpoint implements `addBreakpoint`: legal in Running or Suspended.
func (s *Session) AddBreakpoint(file string, line int, cond string) (breakpoint.Record, error) {
	switch s.getState() {
	case Running, Suspended:
		return s.bp.AddLineBreakpoint(file, line, cond)
	case Terminated:
		return breakpoint.Record{}, ErrTerminated
	default:
		return breakpoint.Record{}, ErrNotRunning
	}
}

// RemoveBreakpoint implements `removeBreakpoint`.
func (s *Session) RemoveBreakpoint(id int) error {
	if err := s.requireNotTerminated(); err != nil {
		return err
	}
	if !s.bp.Delete(id) {
		return ErrUnknownBreakpoint
	}
	return nil
}

// ListBreakpoints implements `listBreakpoints`.
func (s *Session) ListBreakpoints() []breakpoint.Record {
	return s.bp.List()
}

// EnableBreakpoint / DisableBreakpoint implement `enable`/`disable`.
func (s *Session) EnableBreakpoint(id int) error {
	if err := s.requireNotTerminated(); err != nil {
		return err
	}
	if !s.bp.Enable(id) {
		return ErrUnknownBreakpoint
	}
	return nil
}

func (s *Session) DisableBreakpoint(id int) error {
	if err := s.requireNotTerminated(); err != nil {
		return err
	}
	if !s.bp.Disable(id) {
		return ErrUnknownBreakpoint
	}
	return nil
}

// SetExceptionBreakpoints implements `setExceptionBreakpoints`.
func (s *Session) SetExceptionBreakpoints(filters []string) error {
	if err := s.requireNotTerminated(); err != nil {
		return err
	}
	return s.exc.SetFilters(filters)
}

// IsExceptionBreakpointEnabled implements `isExceptionBreakpointsEnabled`.
func (s *Session) IsExceptionBreakpointEnabled(caught bool) bool {
	return s.exc.ShouldStopOnException(caught)
}

// Resume implements `resume`: Suspended → Running.
func (s *Session) Resume() error {
	if err := s.requireSuspended(); err != nil {
		return err
	}
	s.frames.ForgetAll()
	s.refs.Clear()
	if err := s.vm.Resume(); err != nil {
		return fmt.Errorf("session: resume: %w", err)
	}
	s.setState(Running)
	return nil
}

// Suspend implements `suspend`: Running → Suspended, selecting the first
// suspended thread as current.
func (s *Session) Suspend() error {
	if err := s.requireRunning(); err != nil {
		return err
	}
	if err := s.vm.Suspend(); err != nil {
		return fmt.Errorf("session: suspend: %w", err)
	}

	threads, err := s.vm.Threads()
	if err != nil {
		return fmt.Errorf("session: listing threads after suspend: %w", err)
	}
	for _, t := range threads {
		if t.IsSuspended {
			s.mu.Lock()
			s.currentThread = t.ID
			s.mu.Unlock()
			break
		}
	}
	s.frames.ForgetAll()
	s.refs.Clear()
	s.setState(Suspended)
	return nil
}

// StepInto / StepOver / StepOut implement the stepping operations: require
// Suspended, then resume the current thread so the step can take effect.
func (s *Session) StepInto() error { return s.doStep(s.step.StepInto) }
func (s *Session) StepOver() error { return s.doStep(s.step.StepOver) }
func (s *Session) StepOut() error  { return s.doStep(s.step.StepOut) }

func (s *Session) doStep(issue func(proto.ThreadID) error) error {
	if err := s.requireSuspended(); err != nil {
		return err
	}
	thread := s.currentThreadID()
	if err := issue(thread); err != nil {
		return fmt.Errorf("session: issuing step: %w", err)
	}
	s.frames.ForgetAll()
	s.refs.Clear()
	if err := s.vm.ResumeThread(thread); err != nil {
		return fmt.Errorf("session: resuming thread for step: %w", err)
	}
	s.setState(Running)
	return nil
}

func (s *Session) currentThreadID() proto.ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentThread
}

// GetThreads implements `getThreads`: always refetched, never cached.
func (s *Session) GetThreads() ([]proto.ThreadSnapshot, error) {
	return s.vm.Threads()
}

// SelectThread implements `selectThread`.
func (s *Session) SelectThread(id proto.ThreadID) error {
	if err := s.requireNotTerminated(); err != nil {
		return err
	}
	threads, err := s.vm.Threads()
	if err != nil {
		return fmt.Errorf("session: listing threads: %w", err)
	}
	for _, t := range threads {
		if t.ID == id {
			s.mu.Lock()
			s.currentThread = id
			s.mu.Unlock()
			return nil
		}
	}
	return ErrUnknownThread
}

// GetCurrentThread implements `getCurrentThread`: refetched from the VM.
func (s *Session) GetCurrentThread() (proto.ThreadSnapshot, error) {
	id := s.currentThreadID()
	threads, err := s.vm.Threads()
	if err != nil {
		return proto.ThreadSnapshot{}, fmt.Errorf("session: listing threads: %w", err)
	}
	for _, t := range threads {
		if t.ID == id {
			return t, nil
		}
	}
	return proto.ThreadSnapshot{}, ErrUnknownThread
}

// GetStackFrames implements `getStackFrames`, scoped to the current thread.
func (s *Session) GetStackFrames() ([]stack.Frame, error) {
	if err := s.requireSuspended(); err != nil {
		return nil, err
	}
	return s.frames.FramesFor(s.currentThreadID())
}

// SelectFrame implements `selectFrame`.
func (s *Session) SelectFrame(index int) (stack.Frame, error) {
	if err := s.requireSuspended(); err != nil {
		return stack.Frame{}, err
	}
	thread := s.currentThreadID()
	if _, err := s.ensureFramesCached(thread); err != nil {
		return stack.Frame{}, err
	}
	f, err := s.frames.SelectFrame(thread, index)
	if errors.Is(err, stack.ErrFrameIndexOutOfRange) {
		return stack.Frame{}, ErrInvalidFrameIndex
	}
	return f, err
}

// GetCurrentFrame implements `getCurrentFrame`.
func (s *Session) GetCurrentFrame() (stack.Frame, error) {
	if err := s.requireSuspended(); err != nil {
		return stack.Frame{}, err
	}
	return s.ensureFramesCached(s.currentThreadID())
}

// ensureFramesCached returns the current frame for thread, lazily calling
// FramesFor the first time a query lands on a freshly suspended thread.
func (s *Session) ensureFramesCached(thread proto.ThreadID) (stack.Frame, error) {
	f, err := s.frames.CurrentFrame(thread)
	if errors.Is(err, stack.ErrNoFrames) {
		if _, ferr := s.frames.FramesFor(thread); ferr != nil {
			return stack.Frame{}, ferr
		}
		return s.frames.CurrentFrame(thread)
	}
	return f, err
}

// GetLocalVariables implements `getLocalVariables`, scoped to the current
// frame.
func (s *Session) GetLocalVariables() ([]variables.Variable, error) {
	if err := s.requireSuspended(); err != nil {
		return nil, err
	}
	thread := s.currentThreadID()
	frame, err := s.ensureFramesCached(thread)
	if err != nil {
		return nil, err
	}
	return s.vars.LocalVariables(thread, frame.RawIndex)
}

// GetVariable implements `getVariable(name)`.
func (s *Session) GetVariable(name string) (variables.Variable, error) {
	vars, err := s.GetLocalVariables()
	if err != nil {
		return variables.Variable{}, err
	}
	for _, v := range vars {
		if v.Name == name {
			return v, nil
		}
	}
	return variables.Variable{}, fmt.Errorf("session: no variable named %q in the current frame", name)
}

// ExpandVariable resolves a variable reference into its children, via
// whichever expansion (object fields or array slice) the reference names.
func (s *Session) ExpandVariable(ref variables.Ref) ([]variables.Variable, error) {
	if err := s.requireSuspended(); err != nil {
		return nil, err
	}
	vars, err := s.vars.Expand(ref)
	if err != nil {
		return nil, ErrStaleReference
	}
	return vars, nil
}

// SetVariable implements `setVariable`. ref == 0 assigns a local in the
// current frame; any other ref must name an object reference a prior
// GetLocalVariables/ExpandVariable call handed out, and assigns one of that
// object's fields.
func (s *Session) SetVariable(ref variables.Ref, name, literal string) (variables.Variable, error) {
	if err := s.requireSuspended(); err != nil {
		return variables.Variable{}, err
	}
	if ref == 0 {
		thread := s.currentThreadID()
		frame, err := s.ensureFramesCached(thread)
		if err != nil {
			return variables.Variable{}, err
		}
		return s.vars.SetLocalVariable(thread, frame.RawIndex, name, literal)
	}
	return s.vars.SetField(ref, name, literal)
}

// GetCurrentPosition implements `getCurrentPosition`, via the Position
// Manager through the current frame's location.
func (s *Session) GetCurrentPosition() (proto.SourcePosition, bool, error) {
	frame, err := s.GetCurrentFrame()
	if err != nil {
		return proto.SourcePosition{}, false, err
	}
	if frame.Position == nil {
		return proto.SourcePosition{}, false, nil
	}
	return *frame.Position, true, nil
}
