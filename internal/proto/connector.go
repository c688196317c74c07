package proto

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Masterminds/semver"
	"github.com/kr/pty"

	"github.com/dontbug-kt/ktdbg/internal/logx"
)

// supportedProtocol is the range of target-VM wire-protocol versions this
// connector understands, checked during the handshake the same way the
// teacher gates external tool versions (checkPhpExecutable/CheckRRExecutable/
// CheckGdbExecutable all build a semver.Constraint and reject anything
// outside it) — generalized here from "is the external binary new enough" to
// "did the target announce a protocol version we speak."
const supportedProtocol = ">= 1.0.0, < 2.0.0"

// LaunchConfig configures Launch (spec.md §4.1).
type LaunchConfig struct {
	MainClass      string
	Classpath      []string
	Args           []string
	SuspendOnStart bool

	// Command and ListenPrefix let callers customize how the target VM is
	// spawned and how its "I'm listening" line is recognized, without the
	// Connector needing to know about any particular language toolchain.
	Command      string        // defaults to "java" when empty
	ListenPrefix string        // substring that marks the accept-ready line in the child's stdout
	DialTimeout  time.Duration // defaults to 10s
}

// Dial attaches to a target VM already listening at host:port (spec.md
// §4.1's Attach operation).
func Dial(ctx context.Context, host string, port int) (VM, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectRefused, err)
	}
	return handshake(conn)
}

// Launch spawns cfg.Command with the classpath, main class, and program
// arguments, waits for a line of the child's output containing ListenPrefix,
// and attaches to the host:port that follows it (spec.md §4.1's Launch
// operation). It adds no debugging-agent options to the command line and
// does not pass SuspendOnStart to the child. The child is started under a
// pty, mirroring the teacher's use of github.com/kr/pty to start `rr replay`
// and scan its output for the gdb connection string; the pty's output is read
// only until the listen line is found and is not relayed anywhere.
func Launch(ctx context.Context, cfg LaunchConfig) (VM, error) {
	command := cfg.Command
	if command == "" {
		command = "java"
	}
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	args := buildLaunchArgs(cfg)
	cmd := exec.CommandContext(ctx, command, args...)

	f, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}

	addrCh := make(chan string, 1)
	exitCh := make(chan error, 1)
	go func() {
		exitCh <- cmd.Wait()
	}()
	go scanForListenAddr(f, cfg.ListenPrefix, addrCh)

	select {
	case addr := <-addrCh:
		logx.Info("ktdbg: target VM listening at %v", addr)
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed listen address %q", ErrLaunchFailed, addr)
		}
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
			return nil, fmt.Errorf("%w: malformed listen port %q", ErrLaunchFailed, portStr)
		}
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return Dial(dialCtx, host, port)
	case err := <-exitCh:
		return nil, fmt.Errorf("%w: target exited before it started listening: %v", ErrLaunchFailed, err)
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: timed out waiting for target VM to listen", ErrLaunchFailed)
	}
}

func buildLaunchArgs(cfg LaunchConfig) []string {
	var args []string
	if len(cfg.Classpath) > 0 {
		args = append(args, "-cp", strings.Join(cfg.Classpath, ":"))
	}
	args = append(args, cfg.MainClass)
	args = append(args, cfg.Args...)
	return args
}

func scanForListenAddr(r *os.File, prefix string, out chan<- string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, prefix); idx >= 0 {
			out <- strings.TrimSpace(line[idx+len(prefix):])
			return
		}
	}
}

// handshakeRequest/Response are the first frame exchanged over a fresh
// connection, before any VM method may be called.
type handshakeRequest struct {
	Client string `json:"client"`
}

type handshakeResponse struct {
	Protocol string `json:"protocol"`
}

func handshake(conn net.Conn) (VM, error) {
	wc := newWireConn(conn)

	constraint, err := semver.NewConstraint(supportedProtocol)
	logx.PanicIf(err) // supportedProtocol is a compile-time constant; a bad constraint is a bug in ktdbg

	raw, err := wc.send("handshake", handshakeRequest{Client: "ktdbg"})
	if err != nil {
		wc.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	var resp handshakeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		wc.Close()
		return nil, fmt.Errorf("%w: malformed handshake response", ErrHandshakeFailed)
	}

	ver, err := semver.NewVersion(resp.Protocol)
	if err != nil {
		wc.Close()
		return nil, fmt.Errorf("%w: unparseable protocol version %q", ErrHandshakeFailed, resp.Protocol)
	}
	if !constraint.Check(ver) {
		wc.Close()
		return nil, fmt.Errorf("%w: target speaks protocol %v, ktdbg supports %v", ErrHandshakeFailed, ver, supportedProtocol)
	}

	return &connection{wc: wc}, nil
}
