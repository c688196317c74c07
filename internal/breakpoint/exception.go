package breakpoint

import (
	"sync"

	"github.com/dontbug-kt/ktdbg/internal/proto"
)

// ExceptionManager implements C6 (§4.6): the two named exception filters,
// "caught" and "uncaught", each backed by a single wire exception request
// against the target's root exception type. A single combined request
// carrying both notifyCaught/notifyUncaught flags is equivalent to — and
// cheaper than — installing one request per active filter name, since both
// would otherwise cover the identical class.
type ExceptionManager struct {
	mu       sync.Mutex
	vm       proto.VM
	rootType string

	caught   bool
	uncaught bool
	handle   *proto.RequestHandle
}

// NewExceptionManager builds a manager whose requests target rootType (the
// target VM's root exception/throwable type).
func NewExceptionManager(vm proto.VM, rootType string) *ExceptionManager {
	return &ExceptionManager{vm: vm, rootType: rootType}
}

// SetFilters implements `setExceptionBreakpoints(filters)`: removes any
// request this manager previously installed, then installs a fresh one
// reflecting the new filter set (empty filters installs nothing).
func (e *ExceptionManager) SetFilters(filters []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle != nil {
		_ = e.vm.ClearRequest(*e.handle)
		e.handle = nil
	}

	caught, uncaught := false, false
	for _, f := range filters {
		switch f {
		case "caught":
			caught = true
		case "uncaught":
			uncaught = true
		}
	}
	e.caught, e.uncaught = caught, uncaught

	if !caught && !uncaught {
		return nil
	}

	h, err := e.vm.CreateExceptionRequest(proto.ExceptionRequestOptions{
		ClassName:      e.rootType,
		NotifyCaught:   caught,
		NotifyUncaught: uncaught,
	})
	if err != nil {
		return err
	}
	e.handle = &h
	return nil
}

// ShouldStopOnException implements the query of the same name: true iff the
// matching caught/uncaught filter is currently active.
func (e *ExceptionManager) ShouldStopOnException(isCaught bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if isCaught {
		return e.caught
	}
	return e.uncaught
}

// Filter implements pump.Filter: swallows an ExceptionThrown event whose
// caught/uncaught status isn't covered by the active filter set.
func (e *ExceptionManager) Filter(ev proto.Event) bool {
	exc, ok := ev.(proto.ExceptionThrownEvent)
	if !ok {
		return false
	}
	return !e.ShouldStopOnException(exc.Caught)
}
