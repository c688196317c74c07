package adapter

import (
	dap "github.com/google/go-dap"

	"github.com/dontbug-kt/ktdbg/internal/proto"
)

// OnEvent implements pump.Listener, letting conn register itself directly
// with the Session instead of polling — the suspend-causing events translate
// straight into a DAP StoppedEvent; everything else that needs translating
// (manual pause, resume/step continuation) is emitted by the handler that
// caused it, since those never arrive as a proto.Event on this protocol.
func (c *conn) OnEvent(ev proto.Event) {
	switch e := ev.(type) {
	case proto.BreakpointHitEvent:
		c.send(&dap.StoppedEvent{
			Event: c.newEvent("stopped"),
			Body: dap.StoppedEventBody{
				Reason:            "breakpoint",
				ThreadId:          c.threads.id(e.Thread),
				AllThreadsStopped: true,
			},
		})
	case proto.StepCompletedEvent:
		c.send(&dap.StoppedEvent{
			Event: c.newEvent("stopped"),
			Body: dap.StoppedEventBody{
				Reason:            "step",
				ThreadId:          c.threads.id(e.Thread),
				AllThreadsStopped: true,
			},
		})
	case proto.ExceptionThrownEvent:
		c.send(&dap.StoppedEvent{
			Event: c.newEvent("stopped"),
			Body: dap.StoppedEventBody{
				Reason:            "exception",
				Description:       e.Class,
				Text:              e.Message,
				ThreadId:          c.threads.id(e.Thread),
				AllThreadsStopped: true,
			},
		})
	case proto.ThreadStartedEvent:
		c.send(&dap.ThreadEvent{
			Event: c.newEvent("thread"),
			Body:  dap.ThreadEventBody{Reason: "started", ThreadId: c.threads.id(e.Thread)},
		})
	case proto.ThreadDiedEvent:
		c.send(&dap.ThreadEvent{
			Event: c.newEvent("thread"),
			Body:  dap.ThreadEventBody{Reason: "exited", ThreadId: c.threads.id(e.Thread)},
		})
	case proto.VMDeathEvent:
		c.send(
			&dap.ExitedEvent{Event: c.newEvent("exited"), Body: dap.ExitedEventBody{ExitCode: 0}},
			&dap.TerminatedEvent{Event: c.newEvent("terminated")},
		)
	case proto.VMDisconnectedEvent:
		c.send(&dap.TerminatedEvent{Event: c.newEvent("terminated")})
	}
}

// relayOutput forwards the Session's diagnostic/notification queue onto the
// DAP OutputEvent channel, the adapter's equivalent of internal/console's
// drainOutput goroutine.
func (c *conn) relayOutput() {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.sess.Output():
			if !ok {
				return
			}
			c.send(&dap.OutputEvent{
				Event: c.newEvent("output"),
				Body: dap.OutputEventBody{
					Category: ev.Category,
					Output:   ev.Text + "\n",
				},
			})
		}
	}
}
