// Package session implements the Session Coordinator (C10, spec.md §4.10):
// the public API that aggregates every other subsystem, enforces the
// NotStarted → Running ⇄ Suspended → Terminated state machine at the
// boundary, and fans out target-VM events to external listeners.
package session

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dontbug-kt/ktdbg/internal/breakpoint"
	"github.com/dontbug-kt/ktdbg/internal/breakpoint/condition"
	"github.com/dontbug-kt/ktdbg/internal/logx"
	"github.com/dontbug-kt/ktdbg/internal/position"
	"github.com/dontbug-kt/ktdbg/internal/proto"
	"github.com/dontbug-kt/ktdbg/internal/pump"
	"github.com/dontbug-kt/ktdbg/internal/smap"
	"github.com/dontbug-kt/ktdbg/internal/stack"
	"github.com/dontbug-kt/ktdbg/internal/stepping"
	"github.com/dontbug-kt/ktdbg/internal/variables"
)

// OutputEvent is a diagnostic or notification line queued for whichever
// front end (console or adapter) is attached, the way the teacher's
// BreakStopNotify channel relayed one string at a time rather than handing
// callers a batch.
type OutputEvent struct {
	Category string
	Text     string
}

// ListenerID identifies an external subscription registered via AddListener,
// so RemoveListener can drop it without requiring pump.Listener values to be
// comparable.
type ListenerID int

// Session aggregates C1–C9 and owns every sub-component instance, per
// spec.md §3's "Ownership" note.
type Session struct {
	vm proto.VM

	pos    *position.Manager
	bp     *breakpoint.Manager
	exc    *breakpoint.ExceptionManager
	step   *stepping.Controller
	frames *stack.Manager
	vars   *variables.Inspector
	refs   *variables.Registry
	pump   *pump.Pump

	mu            sync.Mutex
	state         State
	currentThread proto.ThreadID

	listenersMu    sync.Mutex
	listeners      map[ListenerID]pump.Listener
	nextListenerID ListenerID

	output chan OutputEvent

	cancel context.CancelFunc
	eg     *errgroup.Group
}

// New builds a Session around an already-connected VM handle (the result of
// proto.Dial or proto.Launch). Sub-components are wired but the pump isn't
// running yet; call Start to begin draining events.
func New(vm proto.VM) *Session {
	cache := smap.NewCache()
	pos := position.New(vm, cache)
	frames := stack.New(vm, pos)
	refs := variables.NewRegistry()

	s := &Session{
		vm:        vm,
		pos:       pos,
		bp:        breakpoint.New(vm, pos),
		exc:       breakpoint.NewExceptionManager(vm, "java.lang.Throwable"),
		step:      stepping.New(vm),
		frames:    frames,
		vars:      variables.NewInspector(vm, refs),
		refs:      refs,
		pump:      pump.New(vm),
		state:     NotStarted,
		listeners: make(map[ListenerID]pump.Listener),
		output:    make(chan OutputEvent, 256),
	}

	s.bp.SetFrameResolver(func(thread proto.ThreadID) (condition.Resolver, error) {
		frame, err := s.frames.CurrentFrame(thread)
		if err != nil {
			if _, ferr := s.frames.FramesFor(thread); ferr != nil {
				return nil, ferr
			}
			frame, err = s.frames.CurrentFrame(thread)
			if err != nil {
				return nil, err
			}
		}
		return frameResolver{vm: s.vm, thread: thread, rawFrame: frame.RawIndex}, nil
	})
	return s
}

// Output returns the channel console/adapter front ends drain on their own
// goroutine, per spec.md §5's "listeners run on the pump thread and must not
// block" — output is queued here instead of ever invoked directly from the
// pump.
func (s *Session) Output() <-chan OutputEvent {
	return s.output
}

func (s *Session) post(category, text string) {
	select {
	case s.output <- OutputEvent{Category: category, Text: text}:
	default:
		logx.Warn("session: output queue full, dropping %s event", category)
	}
}

// AddListener registers l to receive every event the pump dispatches.
func (s *Session) AddListener(l pump.Listener) ListenerID {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.nextListenerID++
	id := s.nextListenerID
	s.listeners[id] = l
	return id
}

// RemoveListener drops a previously registered listener.
func (s *Session) RemoveListener(id ListenerID) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	delete(s.listeners, id)
}

func (s *Session) dispatchToListeners(ev proto.Event) {
	s.listenersMu.Lock()
	snapshot := make([]pump.Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		snapshot = append(snapshot, l)
	}
	s.listenersMu.Unlock()
	for _, l := range snapshot {
		l.OnEvent(ev)
	}
}

func (s *Session) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// requireNotTerminated gates the mutating delegate methods that have no
// Running/Suspended requirement of their own — enable/disable, exception
// filters, thread selection — per spec.md §8's universal invariant that
// every mutating operation fails with Terminated once the session has ended.
func (s *Session) requireNotTerminated() error {
	if s.getState() == Terminated {
		return ErrTerminated
	}
	return nil
}

func (s *Session) requireSuspended() error {
	switch st := s.getState(); st {
	case Suspended:
		return nil
	case Terminated:
		return ErrTerminated
	default:
		return ErrNotSuspended
	}
}

func (s *Session) requireRunning() error {
	switch st := s.getState(); st {
	case Running:
		return nil
	case Terminated:
		return ErrTerminated
	default:
		return ErrNotRunning
	}
}

// Start implements `start()`: wires the pump's filters/listeners, begins
// draining events under an errgroup, and resumes once unless the target VM
// started suspended.
func (s *Session) Start(ctx context.Context, suspendOnStart bool) error {
	s.pump.AddFilter(s.bp.Filter)
	s.pump.AddFilter(s.exc.Filter)
	s.pump.AddFilter(s.step.Filter)
	s.pump.AddListener(s.bp)
	s.pump.AddListener(listenerFunc(s.onEvent))
	s.pump.OnTerminate(func(ev proto.Event) {
		s.setState(Terminated)
	})

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	eg, egCtx := errgroup.WithContext(runCtx)
	s.eg = eg
	eg.Go(func() error {
		return s.pump.Run(egCtx)
	})

	s.setState(Running)
	if !suspendOnStart {
		if err := s.vm.Resume(); err != nil {
			return fmt.Errorf("session: resuming after start: %w", err)
		}
	}
	return nil
}

// Stop implements `stop()`: idempotent teardown of every sub-component and
// the connection.
func (s *Session) Stop() error {
	if s.getState() == Terminated {
		return nil
	}
	s.setState(Terminated)
	if s.cancel != nil {
		s.cancel()
	}
	err := s.vm.Dispose()
	if s.eg != nil {
		_ = s.eg.Wait()
	}
	return err
}

// onEvent updates session-local state from every dispatched event before
// fanning it out to external listeners — the Session Coordinator's own
// pump.Listener registration.
func (s *Session) onEvent(ev proto.Event) {
	switch e := ev.(type) {
	case proto.BreakpointHitEvent:
		s.setState(Suspended)
		s.currentThread = e.Thread
		s.frames.ForgetAll()
		s.refs.Clear()
	case proto.StepCompletedEvent:
		s.setState(Suspended)
		s.currentThread = e.Thread
		s.frames.ForgetAll()
		s.refs.Clear()
	case proto.ExceptionThrownEvent:
		s.setState(Suspended)
		s.currentThread = e.Thread
		s.frames.ForgetAll()
		s.refs.Clear()
		s.post("exception", e.Message)
	case proto.VMStartedEvent:
		s.currentThread = e.MainThread
	case proto.VMDeathEvent, proto.VMDisconnectedEvent:
		s.setState(Terminated)
	}
	s.dispatchToListeners(ev)
}

// listenerFunc adapts a plain function to pump.Listener.
type listenerFunc func(ev proto.Event)

func (f listenerFunc) OnEvent(ev proto.Event) { f(ev) }
