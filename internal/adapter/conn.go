package adapter

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"

	dap "github.com/google/go-dap"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dontbug-kt/ktdbg/internal/session"
)

// conn drives one DAP client connection against a shared Session, following
// the openllb/hlb dapserver.Session shape: a blocking read loop dispatching
// onto per-command handlers, and a single writer goroutine draining a send
// queue so responses and asynchronously-emitted events never interleave
// their JSON on the wire.
type conn struct {
	id      string
	sess    *session.Session
	netConn net.Conn
	bufrw   *bufio.ReadWriter
	log     *logrus.Entry

	sendQueue chan dap.Message
	done      chan struct{}
	closeOnce sync.Once

	seq     int64
	threads *threadIDs

	prevBreakpoints map[string][]int

	listenerID session.ListenerID
}

func newConn(sess *session.Session, nc net.Conn, log *logrus.Entry) *conn {
	id := uuid.NewString()
	return &conn{
		id:              id,
		sess:            sess,
		netConn:         nc,
		bufrw:           newBufRW(nc),
		log:             log.WithField("conn", id),
		sendQueue:       make(chan dap.Message, 64),
		done:            make(chan struct{}),
		threads:         newThreadIDs(),
		prevBreakpoints: make(map[string][]int),
	}
}

func (c *conn) nextSeq() int {
	return int(atomic.AddInt64(&c.seq, 1))
}

// stop signals every goroutine reading c.done to exit. Safe to call more
// than once — a client disconnect request and a subsequent context
// cancellation can both race to end the same connection.
func (c *conn) stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *conn) run(ctx context.Context) error {
	c.listenerID = c.sess.AddListener(c)
	defer c.sess.RemoveListener(c.listenerID)

	go c.sendFromQueue()
	go c.relayOutput()

	for {
		select {
		case <-ctx.Done():
			c.stop()
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		msg, err := dap.ReadProtocolMessage(c.bufrw.Reader)
		if err != nil {
			c.stop()
			return err
		}
		req, ok := msg.(dap.RequestMessage)
		if !ok {
			continue
		}
		c.dispatch(ctx, req)
		if c.closed() {
			return nil
		}
	}
}

func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *conn) send(messages ...dap.Message) {
	for _, m := range messages {
		select {
		case c.sendQueue <- m:
		case <-c.done:
			return
		}
	}
}

func (c *conn) sendFromQueue() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendQueue:
			if err := dap.WriteProtocolMessage(c.bufrw.Writer, msg); err != nil {
				c.log.Warnf("writing message: %v", err)
				return
			}
			if err := c.bufrw.Flush(); err != nil {
				c.log.Warnf("flushing: %v", err)
				return
			}
		}
	}
}

func (c *conn) newResponse(req dap.Request) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: c.nextSeq(), Type: "response"},
		RequestSeq:      req.Seq,
		Success:         true,
		Command:         req.Command,
	}
}

func (c *conn) newEvent(event string) dap.Event {
	return dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: c.nextSeq(), Type: "event"},
		Event:           event,
	}
}

func (c *conn) sendError(req dap.Request, err error) {
	resp := c.newResponse(req)
	resp.Success = false
	resp.Message = err.Error()
	c.send(&dap.ErrorResponse{
		Response: resp,
		Body: dap.ErrorResponseBody{
			Error: &dap.ErrorMessage{Format: err.Error(), ShowUser: true},
		},
	})
}

// dispatch runs one request to completion, sending either the handler's own
// response (already queued by the handler itself) or a translated error
// response if the handler returned one instead of sending its own success.
func (c *conn) dispatch(ctx context.Context, msg dap.RequestMessage) {
	var err error
	var base dap.Request

	switch req := msg.(type) {
	case *dap.InitializeRequest:
		base = req.Request
		err = c.onInitializeRequest(req)
	case *dap.LaunchRequest:
		base = req.Request
		err = c.onLaunchRequest(req)
	case *dap.AttachRequest:
		base = req.Request
		err = c.onAttachRequest(req)
	case *dap.SetBreakpointsRequest:
		base = req.Request
		err = c.onSetBreakpointsRequest(req)
	case *dap.SetExceptionBreakpointsRequest:
		base = req.Request
		err = c.onSetExceptionBreakpointsRequest(req)
	case *dap.ConfigurationDoneRequest:
		base = req.Request
		err = c.onConfigurationDoneRequest(req)
	case *dap.ThreadsRequest:
		base = req.Request
		err = c.onThreadsRequest(req)
	case *dap.StackTraceRequest:
		base = req.Request
		err = c.onStackTraceRequest(req)
	case *dap.ScopesRequest:
		base = req.Request
		err = c.onScopesRequest(req)
	case *dap.VariablesRequest:
		base = req.Request
		err = c.onVariablesRequest(req)
	case *dap.ContinueRequest:
		base = req.Request
		err = c.onContinueRequest(req)
	case *dap.PauseRequest:
		base = req.Request
		err = c.onPauseRequest(req)
	case *dap.NextRequest:
		base = req.Request
		err = c.onNextRequest(req)
	case *dap.StepInRequest:
		base = req.Request
		err = c.onStepInRequest(req)
	case *dap.StepOutRequest:
		base = req.Request
		err = c.onStepOutRequest(req)
	case *dap.EvaluateRequest:
		base = req.Request
		err = c.onEvaluateRequest(req)
	case *dap.SetVariableRequest:
		base = req.Request
		err = c.onSetVariableRequest(req)
	case *dap.DisconnectRequest:
		base = req.Request
		err = c.onDisconnectRequest(req)
	default:
		c.log.Warnf("unsupported request type %T", msg)
		return
	}

	if err != nil {
		c.sendError(base, err)
	}
}
