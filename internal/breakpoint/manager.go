// Package breakpoint implements the Breakpoint Manager (C5, spec.md §4.5)
// and the Exception Breakpoint Manager (C6, §4.6): ownership of the line
// breakpoint table, eager and class-load-deferred resolution against the
// Position Manager, conditional-breakpoint evaluation, and the exception
// filter pair DAP expects.
package breakpoint

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dontbug-kt/ktdbg/internal/breakpoint/condition"
	"github.com/dontbug-kt/ktdbg/internal/logx"
	"github.com/dontbug-kt/ktdbg/internal/position"
	"github.com/dontbug-kt/ktdbg/internal/proto"
)

// State is the user-facing enabled/disabled toggle (§4.5's add/enable/
// disable ops). It is independent of whether a breakpoint has resolved to a
// wire request yet; a pending breakpoint still reports State Enabled.
type State string

const (
	StateEnabled  State = "enabled"
	StateDisabled State = "disabled"
)

// Record is the public, immutable-snapshot view of one line breakpoint.
type Record struct {
	ID        int
	File      string
	Line      int
	Condition string
	State     State
	Pending   bool
}

// FrameResolverFunc builds a condition.Resolver scoped to thread's current
// (innermost) frame, the context §4.5.1 evaluates conditions against. The
// Stack Frame Manager and Variable Inspector (C8/C9) supply the concrete
// implementation once the session wires them in; a Manager with none wired
// treats every conditional hit as unevaluable and swallows it, logging once.
type FrameResolverFunc func(thread proto.ThreadID) (condition.Resolver, error)

// Manager owns the line breakpoint table: it is both a pump.Listener (to
// re-resolve pending breakpoints on ClassPrepared) and a pump.Filter (to
// swallow conditional hits before any other listener sees them). Neither
// interface is imported here — Go interfaces are satisfied structurally —
// to keep this package from depending on internal/pump.
type Manager struct {
	mu  sync.Mutex
	vm  proto.VM
	pos *position.Manager

	frameResolver FrameResolverFunc

	nextID  int
	records map[int]*Record

	conditions map[int]condition.Expr
	warned     map[int]bool

	// installedLocs[id][locID] is the wire request standing in for one
	// resolved RemoteLocation of breakpoint id; together with wireToBreakpoint
	// this enforces "at most one wire request per (remote location,
	// breakpoint id) pair" (§4.5's invariant).
	installedLocs map[int]map[string]proto.RequestHandle
	wireToBreakpoint map[proto.RequestHandle]int

	classPrepareHandles map[int]proto.RequestHandle
}

// New builds a Manager that resolves breakpoints through pos and installs
// wire requests through vm.
func New(vm proto.VM, pos *position.Manager) *Manager {
	return &Manager{
		vm:                  vm,
		pos:                 pos,
		records:             make(map[int]*Record),
		conditions:          make(map[int]condition.Expr),
		warned:              make(map[int]bool),
		installedLocs:       make(map[int]map[string]proto.RequestHandle),
		wireToBreakpoint:    make(map[proto.RequestHandle]int),
		classPrepareHandles: make(map[int]proto.RequestHandle),
	}
}

// SetFrameResolver wires the frame-context source conditional breakpoints
// evaluate against. Called once during session setup.
func (m *Manager) SetFrameResolver(fn FrameResolverFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frameResolver = fn
}

// AddLineBreakpoint implements the "add line bp" operation: assigns a fresh
// id, then attempts resolution immediately (§4.5's resolution algorithm).
func (m *Manager) AddLineBreakpoint(file string, line int, cond string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	rec := &Record{ID: id, File: file, Line: line, Condition: cond, State: StateEnabled}
	m.records[id] = rec
	m.installedLocs[id] = make(map[string]proto.RequestHandle)

	if err := m.resolveLocked(rec); err != nil {
		return Record{}, err
	}
	return *rec, nil
}

// Delete implements "delete": clears every wire request owned by id,
// including any outstanding class-prepare watch, and drops the record. Per
// §8's test property, the id is never reissued.
func (m *Manager) Delete(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return false
	}
	m.clearWireLocked(rec)
	delete(m.records, id)
	delete(m.installedLocs, id)
	delete(m.conditions, id)
	delete(m.warned, id)
	return true
}

// List implements "list": a snapshot of every record, ordered by id.
func (m *Manager) List() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Enable implements "enable": re-attempts resolution if the breakpoint was
// disabled (and thus had no wire requests installed).
func (m *Manager) Enable(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return false
	}
	if rec.State == StateEnabled {
		return true
	}
	rec.State = StateEnabled
	if err := m.resolveLocked(rec); err != nil {
		logx.Warn("breakpoint %d: re-enable failed: %v", id, err)
	}
	return true
}

// Disable implements "disable": clears any installed wire requests and
// outstanding class-prepare watch, keeping the record itself.
func (m *Manager) Disable(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return false
	}
	rec.State = StateDisabled
	rec.Pending = false
	m.clearWireLocked(rec)
	return true
}

// UpdateCondition implements "update condition". The cached parsed
// expression is dropped so the next hit re-parses the new source.
func (m *Manager) UpdateCondition(id int, cond string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return false
	}
	rec.Condition = cond
	delete(m.conditions, id)
	delete(m.warned, id)
	return true
}

// ResolveHitID maps a wire-level request handle back to the source
// breakpoint id it was installed for — what `BreakpointHit.bp` reports even
// when several wire requests resolved from one source breakpoint (§4.5's
// hit semantics).
func (m *Manager) ResolveHitID(req proto.RequestHandle) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.wireToBreakpoint[req]
	return id, ok
}

// resolveLocked runs the resolution algorithm for rec. Caller must hold m.mu.
func (m *Manager) resolveLocked(rec *Record) error {
	locs, err := m.pos.FindLocations(rec.File, rec.Line)
	if err != nil {
		return fmt.Errorf("breakpoint %d: finding locations for %s:%d: %w", rec.ID, rec.File, rec.Line, err)
	}

	if len(locs) == 0 {
		if _, exists := m.classPrepareHandles[rec.ID]; !exists {
			h, err := m.vm.CreateClassPrepareRequest(classPrepareFilter(rec.File))
			if err != nil {
				return fmt.Errorf("breakpoint %d: installing class-prepare watch for %s: %w", rec.ID, rec.File, err)
			}
			m.classPrepareHandles[rec.ID] = h
		}
		rec.Pending = true
		return nil
	}

	if h, ok := m.classPrepareHandles[rec.ID]; ok {
		_ = m.vm.ClearRequest(h)
		delete(m.classPrepareHandles, rec.ID)
	}

	if rec.State == StateDisabled {
		rec.Pending = false
		return nil
	}

	installed := m.installedLocs[rec.ID]
	for _, loc := range locs {
		if _, already := installed[loc.ID()]; already {
			continue
		}
		h, err := m.vm.CreateBreakpointRequest(loc)
		if err != nil {
			logx.Warn("breakpoint %d: failed to install wire request at %v: %v", rec.ID, loc, err)
			continue
		}
		installed[loc.ID()] = h
		m.wireToBreakpoint[h] = rec.ID
	}
	rec.Pending = false
	return nil
}

// clearWireLocked removes every wire request (and class-prepare watch)
// owned by rec. Caller must hold m.mu.
func (m *Manager) clearWireLocked(rec *Record) {
	for locID, h := range m.installedLocs[rec.ID] {
		_ = m.vm.ClearRequest(h)
		delete(m.wireToBreakpoint, h)
		delete(m.installedLocs[rec.ID], locID)
	}
	if h, ok := m.classPrepareHandles[rec.ID]; ok {
		_ = m.vm.ClearRequest(h)
		delete(m.classPrepareHandles, rec.ID)
	}
}

// classPrepareFilter derives a class-name pattern from a source file name
// when the declaring class can't yet be known — e.g. "Main.kt" becomes
// "Main*", which also matches the Kotlin compiler's synthesized file-level
// class name "MainKt".
func classPrepareFilter(file string) string {
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return base + "*"
}

// OnEvent implements pump.Listener: on ClassPrepared, re-run resolution for
// every breakpoint still pending on that class-prepare watch.
func (m *Manager) OnEvent(ev proto.Event) {
	cp, ok := ev.(proto.ClassPreparedEvent)
	if !ok {
		return
	}

	m.mu.Lock()
	var pending []*Record
	for id, rec := range m.records {
		if rec.Pending && m.classPrepareHandles[id] == cp.Request {
			pending = append(pending, rec)
		}
	}
	m.mu.Unlock()

	for _, rec := range pending {
		m.mu.Lock()
		err := m.resolveLocked(rec)
		m.mu.Unlock()
		if err != nil {
			logx.Warn("breakpoint %d: re-resolution after class-prepared failed: %v", rec.ID, err)
		}
	}
}

// Filter implements pump.Filter: evaluates a conditional breakpoint's
// condition ahead of listener dispatch and swallows the hit — §4.5 step 3 —
// when the condition is false or fails to evaluate.
func (m *Manager) Filter(ev proto.Event) bool {
	hit, ok := ev.(proto.BreakpointHitEvent)
	if !ok {
		return false
	}

	m.mu.Lock()
	id, known := m.wireToBreakpoint[hit.Request]
	var rec Record
	if known {
		rec = *m.records[id]
	}
	m.mu.Unlock()

	if !known || rec.Condition == "" {
		return false
	}

	expr, err := m.conditionFor(id, rec.Condition)
	if err != nil {
		m.warnOnce(id, fmt.Errorf("parsing condition: %w", err))
		return true
	}

	m.mu.Lock()
	resolve := m.frameResolver
	m.mu.Unlock()
	if resolve == nil {
		m.warnOnce(id, errors.New("no frame context available to evaluate condition"))
		return true
	}

	resolver, err := resolve(hit.Thread)
	if err != nil {
		m.warnOnce(id, fmt.Errorf("resolving frame: %w", err))
		return true
	}

	pass, err := condition.Eval(expr, resolver)
	if err != nil {
		m.warnOnce(id, fmt.Errorf("evaluating condition: %w", err))
		return true
	}
	return !pass
}

func (m *Manager) conditionFor(id int, src string) (condition.Expr, error) {
	m.mu.Lock()
	if e, ok := m.conditions[id]; ok {
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	e, err := condition.Parse(src)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.conditions[id] = e
	m.mu.Unlock()
	return e, nil
}

func (m *Manager) warnOnce(id int, err error) {
	m.mu.Lock()
	already := m.warned[id]
	m.warned[id] = true
	m.mu.Unlock()
	if !already {
		logx.Warn("breakpoint %d: condition error, treating as false: %v", id, err)
	}
}
