package pump

import (
	"sync"

	"github.com/dontbug-kt/ktdbg/internal/proto"
)

// Listener receives every event the pump dispatches, after filters (see
// filter.go) have had a chance to swallow it.
type Listener interface {
	OnEvent(ev proto.Event)
}

// listenerTable is a concurrency-safe, ordered set of listeners. Dispatch
// takes a local copy of the slice before invoking callbacks, the same
// pattern krotik-ecal's EventPump.PostEvent uses to post without holding the
// lock across listener code — a listener registering or dropping itself
// from inside a callback must never deadlock or race the table.
type listenerTable struct {
	mu        sync.Mutex
	listeners []Listener
}

func (t *listenerTable) add(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

func (t *listenerTable) snapshot() []Listener {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Listener, len(t.listeners))
	copy(out, t.listeners)
	return out
}

func (t *listenerTable) dispatch(ev proto.Event) {
	for _, l := range t.snapshot() {
		l.OnEvent(ev)
	}
}
