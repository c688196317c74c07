// Package stack implements the Stack Frame Manager (C8, spec.md §4.8):
// building the user-visible call stack for a thread, splicing in virtual
// inline frames the Position Manager recovers from SMAP range nesting.
package stack

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dontbug-kt/ktdbg/internal/position"
	"github.com/dontbug-kt/ktdbg/internal/proto"
)

// ErrNoFrames reports that currentFrame/selectFrame/up/down was called for
// a thread with no cached frames — the caller must fetch framesFor first.
var ErrNoFrames = errors.New("stack: no frames cached for thread")

// ErrFrameIndexOutOfRange reports selectFrame(index) outside [0, len).
var ErrFrameIndexOutOfRange = errors.New("stack: frame index out of range")

// Frame is the logical, user-visible stack frame spec.md §3 describes:
// "(index, class, method, position?, is_inline, is_native, inline_depth)".
type Frame struct {
	Index       int
	ClassName   string
	Method      string
	Position    *proto.SourcePosition
	IsInline    bool
	IsNative    bool
	InlineDepth int

	// RawIndex is the index of the real VM frame this logical frame resolves
	// to for operations that need one (variable lookup) — itself for a real
	// frame, the enclosing real frame's index for a virtual inline frame.
	RawIndex int
}

type threadState struct {
	frames   []Frame
	selected int
}

// Manager builds and caches per-thread logical call stacks.
type Manager struct {
	vm  proto.VM
	pos *position.Manager

	mu      sync.Mutex
	threads map[proto.ThreadID]*threadState
}

// New builds a Manager resolving inline frames through pos.
func New(vm proto.VM, pos *position.Manager) *Manager {
	return &Manager{vm: vm, pos: pos, threads: make(map[proto.ThreadID]*threadState)}
}

// FramesFor implements `framesFor(thread)`: fetches raw frames (index 0 =
// innermost) and, for each, prepends one virtual inline frame per SMAP range
// nested around its generated line, innermost-first, before re-indexing the
// combined sequence contiguously.
func (m *Manager) FramesFor(thread proto.ThreadID) ([]Frame, error) {
	raw, err := m.vm.Frames(thread)
	if err != nil {
		return nil, fmt.Errorf("stack: fetching raw frames: %w", err)
	}

	var out []Frame
	for rawIdx, rf := range raw {
		if !rf.IsNative {
			inlined, err := m.pos.InlinedPositionsAt(rf.Location)
			if err != nil {
				return nil, fmt.Errorf("stack: resolving inline positions for frame %d: %w", rawIdx, err)
			}
			for depth, p := range inlined {
				pos := p
				out = append(out, Frame{
					ClassName:   rf.Location.ClassName,
					Method:      inlineMethodName(rf.Location, p),
					Position:    &pos,
					IsInline:    true,
					InlineDepth: depth,
					RawIndex:    rawIdx,
				})
			}
		}

		var pos *proto.SourcePosition
		if !rf.IsNative {
			if p, ok, err := m.pos.LocationToPosition(rf.Location); err != nil {
				return nil, fmt.Errorf("stack: resolving position for frame %d: %w", rawIdx, err)
			} else if ok {
				pos = &p
			}
		}
		out = append(out, Frame{
			ClassName: rf.Location.ClassName,
			Method:    rf.Location.Method,
			Position:  pos,
			IsNative:  rf.IsNative,
			RawIndex:  rawIdx,
		})
	}

	for i := range out {
		out[i].Index = i
	}

	m.mu.Lock()
	m.threads[thread] = &threadState{frames: out, selected: 0}
	m.mu.Unlock()

	return out, nil
}

// CurrentFrame implements `currentFrame()`: the currently selected frame for
// thread, defaulting to the innermost frame immediately after FramesFor.
func (m *Manager) CurrentFrame(thread proto.ThreadID) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.threads[thread]
	if !ok || len(st.frames) == 0 {
		return Frame{}, ErrNoFrames
	}
	return st.frames[st.selected], nil
}

// SelectFrame implements `selectFrame(index)`.
func (m *Manager) SelectFrame(thread proto.ThreadID, index int) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.threads[thread]
	if !ok || len(st.frames) == 0 {
		return Frame{}, ErrNoFrames
	}
	if index < 0 || index >= len(st.frames) {
		return Frame{}, ErrFrameIndexOutOfRange
	}
	st.selected = index
	return st.frames[index], nil
}

// Up implements `up()`: selects one frame further from the innermost,
// clamped at the outermost frame.
func (m *Manager) Up(thread proto.ThreadID) (Frame, error) {
	return m.move(thread, 1)
}

// Down implements `down()`: selects one frame closer to the innermost,
// clamped at index 0.
func (m *Manager) Down(thread proto.ThreadID) (Frame, error) {
	return m.move(thread, -1)
}

func (m *Manager) move(thread proto.ThreadID, delta int) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.threads[thread]
	if !ok || len(st.frames) == 0 {
		return Frame{}, ErrNoFrames
	}
	next := st.selected + delta
	if next < 0 {
		next = 0
	}
	if next >= len(st.frames) {
		next = len(st.frames) - 1
	}
	st.selected = next
	return st.frames[next], nil
}

// Forget drops cached frames for thread. Raw frame indices are invalidated
// the moment the VM runs again; the session clears every thread's cache with
// ForgetAll on each resume.
func (m *Manager) Forget(thread proto.ThreadID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, thread)
}

// ForgetAll drops every thread's cached frames.
func (m *Manager) ForgetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads = make(map[proto.ThreadID]*threadState)
}

// inlineMethodName names a virtual inline frame after the enclosing raw
// frame's method, suffixed " (inline)" when the SMAP range resolved to a
// source file. No inlined function name is recovered; the SourcePosition is
// used only to decide whether to add the suffix.
func inlineMethodName(enclosing proto.RemoteLocation, pos proto.SourcePosition) string {
	if pos.File != "" {
		return fmt.Sprintf("%s (inline)", enclosing.Method)
	}
	return enclosing.Method
}
