// Package adapter implements the Debug Adapter Protocol front end (A3,
// SPEC_FULL.md §6): the repository's editor-facing client of
// internal/session, alongside internal/console's REPL. It speaks
// length-prefixed JSON over whatever net.Conn it is handed, following the
// docker-buildx dap adapter's framing choice of github.com/google/go-dap
// directly rather than rolling its own codec.
package adapter

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/dontbug-kt/ktdbg/internal/session"
)

// Server accepts DAP client connections against one already-started Session.
// Only one connection is serviced at a time, matching the one-VM-per-process
// shape cmd/attach.go and cmd/launch.go build: a second client is not
// accepted until the first connection has closed.
type Server struct {
	sess *session.Session
	log  *logrus.Entry
}

// New builds a Server around an already-started Session.
func New(sess *session.Session) *Server {
	return &Server{
		sess: sess,
		log:  logrus.WithField("component", "dap"),
	}
}

// ListenAndServe listens on addr and services DAP connections one at a time
// until ctx is cancelled or the listener errors.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("adapter: listening on %s: %w", addr, err)
	}
	defer lis.Close()

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	s.log.Infof("listening on %s", addr)
	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("adapter: accept: %w", err)
			}
		}
		if err := s.Serve(ctx, conn); err != nil {
			s.log.Warnf("connection closed: %v", err)
		}
	}
}

// Serve runs one DAP session over conn to completion, blocking the caller.
func (s *Server) Serve(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	c := newConn(s.sess, conn, s.log)
	return c.run(ctx)
}

func newBufRW(conn net.Conn) *bufio.ReadWriter {
	return bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
}
