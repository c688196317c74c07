package proto

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// wireConn is the low-level framing layer underneath VM. Its shape — a
// background reader goroutine that demultiplexes incoming frames into either
// a correlated response (by sequence number) or an unsolicited notification —
// is the same request/async-notification architecture the teacher's gdb
// session uses (sendGdbCommand correlates a command to its MI response while
// a separate notification callback drains asynchronous stop events). The
// wire format itself can't reuse gdb/MI's text protocol, since the target
// here speaks an abstract binary envelope (spec.md §6), so framing is
// reimplemented over a plain net.Conn.
//
// Frame layout: 4-byte big-endian length (covers everything after it), 1-byte
// tag (frameResponse or frameEvent), then a JSON payload.
type wireConn struct {
	conn net.Conn
	r    *bufio.Reader

	writeMu sync.Mutex

	seq     uint32
	pendMu  sync.Mutex
	pending map[uint32]chan wireResponse

	events chan Event

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type frameKind uint8

const (
	frameResponse frameKind = iota
	frameEvent
)

type wireRequest struct {
	Seq    uint32          `json:"seq"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type wireResponse struct {
	Seq    uint32          `json:"seq"`
	Result json.RawMessage `json:"result,omitempty"`
	Err    string          `json:"error,omitempty"`
}

type wireEventEnvelope struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

func newWireConn(conn net.Conn) *wireConn {
	wc := &wireConn{
		conn:    conn,
		r:       bufio.NewReader(conn),
		pending: make(map[uint32]chan wireResponse),
		events:  make(chan Event, 64),
		closed:  make(chan struct{}),
	}
	go wc.readLoop()
	return wc
}

func (wc *wireConn) readLoop() {
	for {
		kind, payload, err := wc.readFrame()
		if err != nil {
			wc.shutdown(err)
			return
		}

		switch kind {
		case frameResponse:
			var resp wireResponse
			if err := json.Unmarshal(payload, &resp); err != nil {
				continue // malformed frame from target: dropped, never fatal to the pump
			}
			wc.pendMu.Lock()
			ch, ok := wc.pending[resp.Seq]
			if ok {
				delete(wc.pending, resp.Seq)
			}
			wc.pendMu.Unlock()
			if ok {
				ch <- resp
			}
		case frameEvent:
			var env wireEventEnvelope
			if err := json.Unmarshal(payload, &env); err != nil {
				continue
			}
			ev, err := decodeEvent(env.Kind, env.Body)
			if err != nil {
				continue
			}
			select {
			case wc.events <- ev:
			case <-wc.closed:
				return
			}
		}
	}
}

func (wc *wireConn) readFrame() (frameKind, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(wc.r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return 0, nil, fmt.Errorf("proto: empty frame")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(wc.r, buf); err != nil {
		return 0, nil, err
	}
	return frameKind(buf[0]), buf[1:], nil
}

func (wc *wireConn) writeFrame(kind frameKind, payload []byte) error {
	wc.writeMu.Lock()
	defer wc.writeMu.Unlock()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)+1))
	if _, err := wc.conn.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := wc.conn.Write([]byte{byte(kind)}); err != nil {
		return err
	}
	_, err := wc.conn.Write(payload)
	return err
}

// send issues a request and blocks for its correlated response, or returns
// early if the connection is closed.
func (wc *wireConn) send(method string, params interface{}) (json.RawMessage, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	seq := atomic.AddUint32(&wc.seq, 1)
	ch := make(chan wireResponse, 1)
	wc.pendMu.Lock()
	wc.pending[seq] = ch
	wc.pendMu.Unlock()

	reqJSON, err := json.Marshal(wireRequest{Seq: seq, Method: method, Params: paramsJSON})
	if err != nil {
		return nil, err
	}

	if err := wc.writeFrame(frameResponse, reqJSON); err != nil {
		wc.pendMu.Lock()
		delete(wc.pending, seq)
		wc.pendMu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Err != "" {
			return nil, fmt.Errorf("proto: %s: %s", method, resp.Err)
		}
		return resp.Result, nil
	case <-wc.closed:
		return nil, wc.closeErrOrDisposed()
	}
}

func (wc *wireConn) closeErrOrDisposed() error {
	if wc.closeErr != nil {
		return wc.closeErr
	}
	return ErrDisposed
}

func (wc *wireConn) shutdown(err error) {
	wc.closeOnce.Do(func() {
		wc.closeErr = err
		close(wc.closed)
		wc.conn.Close()
	})
}

func (wc *wireConn) Close() error {
	wc.shutdown(io.EOF)
	return nil
}
