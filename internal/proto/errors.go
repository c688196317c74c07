package proto

import "errors"

// Connector failures, per spec.md §4.1.
var (
	// ErrConnectRefused means no listener was found at the target address.
	ErrConnectRefused = errors.New("proto: connect refused")
	// ErrHandshakeFailed means the target's protocol handshake didn't match
	// what this connector understands.
	ErrHandshakeFailed = errors.New("proto: handshake failed")
	// ErrLaunchFailed means the child process could not be started, or
	// exited before accepting a connection.
	ErrLaunchFailed = errors.New("proto: launch failed")
	// ErrDisposed means an operation was attempted on a VM handle whose
	// connection has already been torn down.
	ErrDisposed = errors.New("proto: vm handle disposed")
)
