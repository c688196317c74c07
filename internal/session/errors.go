package session

import "errors"

// Error kinds surfaced at the core boundary (spec.md §7). Propagation policy:
// ConditionError is contained inside the Breakpoint Manager and never
// reaches here; every other kind propagates to the public API caller
// verbatim, wrapped with errors.Is-compatible context where useful.
var (
	ErrNotSuspended             = errors.New("session: operation requires the Suspended state")
	ErrNotRunning               = errors.New("session: operation requires the Running state")
	ErrUnknownBreakpoint        = errors.New("session: unknown breakpoint id")
	ErrUnknownThread            = errors.New("session: unknown thread id")
	ErrInvalidFrameIndex        = errors.New("session: invalid frame index")
	ErrUnresolvedSourcePosition = errors.New("session: no class maps to the requested source position")
	ErrStaleReference           = errors.New("session: variable reference invalidated by a resume")
	ErrInvocationFailed         = errors.New("session: remote method invocation failed")
	ErrVMDisconnected           = errors.New("session: target VM disconnected")
	ErrTerminated               = errors.New("session: session already terminated")
)
