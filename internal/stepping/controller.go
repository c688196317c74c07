// Package stepping implements the Stepping Controller (C7, spec.md §4.7):
// issuing into/over/out step requests, enforcing the single-active-step
// invariant, and skipping past generated code a step would otherwise stop
// inside.
package stepping

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/dontbug-kt/ktdbg/internal/logx"
	"github.com/dontbug-kt/ktdbg/internal/proto"
)

// generated-code class-name patterns a step must never stop inside — matched
// with path.Match, which treats '*' exactly as these glob patterns need.
var generatedClassPatterns = []string{
	"*$Lambda$*",
	"*$inlined$*",
	"*$lambda$*",
}

// generated-code method names a step must never stop inside: Kotlin
// coroutine machinery synthesized around every suspend function.
var generatedMethodNames = map[string]bool{
	"invokeSuspend": true,
	"resumeWith":    true,
	"create":        true,
}

// Controller owns the single outstanding step request a session may have at
// any time. It is a pump.Filter: it intercepts StepCompleted events for its
// own request before any listener sees them, silently re-stepping through
// generated code instead of letting the session stop there.
type Controller struct {
	mu     sync.Mutex
	vm     proto.VM
	active *proto.RequestHandle
	thread proto.ThreadID
	depth  proto.StepDepth
}

// New builds a Controller issuing step requests through vm.
func New(vm proto.VM) *Controller {
	return &Controller{vm: vm}
}

// StepInto implements `stepInto(thread)`.
func (c *Controller) StepInto(thread proto.ThreadID) error {
	return c.step(thread, proto.StepInto)
}

// StepOver implements `stepOver(thread)`.
func (c *Controller) StepOver(thread proto.ThreadID) error {
	return c.step(thread, proto.StepOver)
}

// StepOut implements `stepOut(thread)`: depth OUT, line granularity still
// applies, so the controller stops at the first line in the caller.
func (c *Controller) StepOut(thread proto.ThreadID) error {
	return c.step(thread, proto.StepOut)
}

func (c *Controller) step(thread proto.ThreadID, depth proto.StepDepth) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.issueLocked(thread, depth)
}

// issueLocked clears any prior outstanding step request before installing
// the new one — "exactly one step request may be active per session."
// Caller must hold c.mu.
func (c *Controller) issueLocked(thread proto.ThreadID, depth proto.StepDepth) error {
	if c.active != nil {
		if err := c.vm.ClearRequest(*c.active); err != nil {
			logx.Warn("stepping: clearing prior step request: %v", err)
		}
		c.active = nil
	}

	h, err := c.vm.CreateStepRequest(thread, depth)
	if err != nil {
		return fmt.Errorf("stepping: issuing step request: %w", err)
	}
	c.active = &h
	c.thread = thread
	c.depth = depth
	return nil
}

// Filter implements pump.Filter: swallows a StepCompleted event landing in
// generated code by silently re-issuing the same step, so the session never
// observes a stop there.
func (c *Controller) Filter(ev proto.Event) bool {
	sc, ok := ev.(proto.StepCompletedEvent)
	if !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || sc.Request != *c.active {
		return false
	}

	if !isGeneratedCode(sc.Location) {
		c.active = nil
		return false
	}

	if err := c.issueLocked(sc.Thread, c.depth); err != nil {
		logx.Warn("stepping: re-stepping past generated code: %v", err)
		c.active = nil
		return false
	}
	return true
}

// Cancel clears any outstanding step request without issuing a replacement.
// The session does not call it: termination or a stop elsewhere (e.g. a
// breakpoint hit) leaves the step request installed until the next step
// replaces it.
func (c *Controller) Cancel(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	err := c.vm.ClearRequest(*c.active)
	c.active = nil
	return err
}

func isGeneratedCode(loc proto.RemoteLocation) bool {
	for _, pat := range generatedClassPatterns {
		if ok, _ := path.Match(pat, loc.ClassName); ok {
			return true
		}
	}
	return generatedMethodNames[loc.Method]
}
