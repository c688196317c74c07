// Package pump implements the Event Pump (C4, spec.md §4.4): the single
// dedicated goroutine per session that drains the target VM's event
// channel, runs each event past any installed filters, fans it out to
// listeners, and decides whether the event set leaves the VM suspended or
// should be resumed transparently.
package pump

import (
	"context"
	"sync"

	"github.com/dontbug-kt/ktdbg/internal/logx"
	"github.com/dontbug-kt/ktdbg/internal/proto"
)

// Filter lets a component intercept an event before listeners see it and
// swallow it — resume transparently, without notifying anyone or leaving
// the session suspended. Session.Start installs three: the Breakpoint
// Manager's, for conditional-breakpoint swallowing (§4.5 step 3); the
// Exception Breakpoint Manager's, for its NotifyCaught/NotifyUncaught
// filtering (§4.6); and the Stepping Controller's, for re-stepping past
// generated code.
type Filter func(ev proto.Event) (swallow bool)

// TerminateFunc is invoked once, from the pump goroutine, the moment a
// VMDeath or VMDisconnected event is observed — before the pump exits — so
// the Session Coordinator can transition state to Terminated ahead of any
// caller racing to query it.
type TerminateFunc func(ev proto.Event)

// Pump owns listener and filter registration and the drain loop. The VM's
// Events() channel is read from nowhere else; every other component only
// ever reacts to what Pump hands it.
type Pump struct {
	vm        proto.VM
	listeners listenerTable

	filterMu sync.Mutex
	filters  []Filter

	onTerminate TerminateFunc
}

func New(vm proto.VM) *Pump {
	return &Pump{vm: vm}
}

// AddListener registers l to receive every event this pump dispatches. Safe
// to call before or after Run starts.
func (p *Pump) AddListener(l Listener) {
	p.listeners.add(l)
}

// AddFilter registers f to run, in registration order, ahead of listener
// dispatch. The first filter to return true swallows the event: no later
// filter or listener runs, and the pump resumes the VM as if the event
// never carried a suspend requirement.
func (p *Pump) AddFilter(f Filter) {
	p.filterMu.Lock()
	defer p.filterMu.Unlock()
	p.filters = append(p.filters, f)
}

// OnTerminate registers the callback Run invokes when the underlying VM
// reports death or disconnection, immediately before the pump stops.
func (p *Pump) OnTerminate(fn TerminateFunc) {
	p.onTerminate = fn
}

func (p *Pump) snapshotFilters() []Filter {
	p.filterMu.Lock()
	defer p.filterMu.Unlock()
	out := make([]Filter, len(p.filters))
	copy(out, p.filters)
	return out
}

// Run drains events until the VM disconnects, the context is canceled, or
// the VM's event channel is closed. Session.Start runs it as the one
// goroutine of the session's errgroup, for the lifetime of the session.
//
// The pump goroutine itself never runs a listener callback that might
// block on further VM I/O beyond what the listener itself chooses to
// do — §4.4 requires listener callbacks "return promptly"; it is each
// listener's responsibility to hand long work off to the output queue
// instead of blocking the pump here.
func (p *Pump) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-p.vm.Events():
			if !ok {
				return nil
			}
			if terminal := p.handle(ev); terminal {
				return nil
			}
		}
	}
}

// handle processes a single event, treating it as a singleton "event set"
// per §4.4's algorithm (our wire protocol decodes and delivers one event at
// a time, never a batch, so should_resume collapses to this one event's
// own suspension policy). It reports whether the pump should now stop.
func (p *Pump) handle(ev proto.Event) (terminal bool) {
	for _, f := range p.snapshotFilters() {
		if f(ev) {
			if err := p.vm.Resume(); err != nil {
				logx.Warn("pump: resume after swallowed event failed: %v", err)
			}
			return false
		}
	}

	p.listeners.dispatch(ev)

	switch ev.Kind() {
	case proto.EventVMDeath, proto.EventVMDisconnected:
		if p.onTerminate != nil {
			p.onTerminate(ev)
		}
		return true
	}

	if !ev.Kind().LeavesSuspended() {
		if err := p.vm.Resume(); err != nil {
			logx.Warn("pump: auto-resume failed: %v", err)
		}
	}
	return false
}
