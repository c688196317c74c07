package variables

import "sync"

// Ref is a stable integer handle the registry assigns for any expandable
// value, valid for the lifetime of one suspension (spec.md §3: "stable
// within one suspension; the registry is cleared on every resume").
type Ref int

// objectRef and arraySliceRef are the two expandable variable-reference
// variants the registry tracks (spec.md §3); a stack frame's Locals scope
// reference is minted by internal/adapter itself (scopeRef), distinct from
// this registry's range, so there is no frameRef variant here.
type objectRef struct {
	object   string
	typeName string
}

type arraySliceRef struct {
	array string
	start int
	count int
}

// Registry assigns and resolves variable references, the way
// arturoeanton-goja's Debugger maps DAP variablesReference ids to live
// scopes/objects via a counter starting above its frame-id range.
type Registry struct {
	mu      sync.Mutex
	next    Ref
	entries map[Ref]any
}

// NewRegistry builds an empty Registry. Reference ids start at 1000 to stay
// clear of any small fixed ids a caller (e.g. the DAP adapter) assigns frames
// directly.
func NewRegistry() *Registry {
	return &Registry{next: 1000, entries: make(map[Ref]any)}
}

func (r *Registry) alloc(v any) Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := r.next
	r.next++
	r.entries[ref] = v
	return ref
}

// ObjectRef allocates a reference for an expandable remote object, recording
// its declared type so a later Expand can still tell a well-known collection
// type from a plain object.
func (r *Registry) ObjectRef(object, typeName string) Ref {
	return r.alloc(objectRef{object: object, typeName: typeName})
}

// ArraySliceRef allocates a reference for one slice of an array.
func (r *Registry) ArraySliceRef(array string, start, count int) Ref {
	return r.alloc(arraySliceRef{array: array, start: start, count: count})
}

// Lookup returns the registered value for ref, if any.
func (r *Registry) Lookup(ref Ref) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[ref]
	return v, ok
}

// Clear drops every registered reference — called on every resume, before
// listeners observe the resulting "continued" notification (spec.md §4.9).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[Ref]any)
}
