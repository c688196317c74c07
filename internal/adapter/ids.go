package adapter

import (
	"sync"

	"github.com/dontbug-kt/ktdbg/internal/proto"
)

// scopeRefBase marks the range of variablesReference values this package
// mints itself for a frame's "Locals" scope, distinct from the
// internal/variables.Registry range (which starts at 1000 and grows
// unboundedly for the lifetime of one suspension — spec.md never bounds it,
// so this base sits far enough above typical per-suspension variable counts
// that a collision would need tens of thousands of expandable values live at
// once).
const scopeRefBase = 1 << 20

func scopeRef(frameIndex int) int { return scopeRefBase + frameIndex }

func isScopeRef(ref int) bool { return ref >= scopeRefBase }

func frameIndexFromScopeRef(ref int) int { return ref - scopeRefBase }

// threadIDs maps the VM's opaque proto.ThreadID values to the small integer
// ids the Debug Adapter Protocol requires, assigning one the first time a
// thread is seen and remembering it for the rest of the connection.
type threadIDs struct {
	mu       sync.Mutex
	toDAP    map[proto.ThreadID]int
	toNative map[int]proto.ThreadID
	next     int
}

func newThreadIDs() *threadIDs {
	return &threadIDs{
		toDAP:    make(map[proto.ThreadID]int),
		toNative: make(map[int]proto.ThreadID),
		next:     1,
	}
}

func (t *threadIDs) id(native proto.ThreadID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.toDAP[native]; ok {
		return id
	}
	id := t.next
	t.next++
	t.toDAP[native] = id
	t.toNative[id] = native
	return id
}

func (t *threadIDs) native(id int) (proto.ThreadID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.toNative[id]
	return n, ok
}
