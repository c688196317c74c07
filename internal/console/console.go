// Package console implements a line-oriented REPL front end for
// internal/session — the repository's second client of the Session
// Coordinator, alongside internal/adapter, present so ktdbg is runnable
// end-to-end without an editor. Its command loop generalizes the teacher's
// DebuggerIdeCmdLoop prompt loop (replay.go) into a small verb table, built
// on the same github.com/chzyer/readline dependency instead of the teacher's
// raw prefix-matching on whatever the user typed.
package console

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/dontbug-kt/ktdbg/internal/logx"
	"github.com/dontbug-kt/ktdbg/internal/proto"
	"github.com/dontbug-kt/ktdbg/internal/session"
)

// Console drives one REPL loop against a Session until the user quits or
// input closes.
type Console struct {
	sess *session.Session
	rl   *readline.Instance
}

// New builds a Console around an already-started Session.
func New(sess *session.Session) (*Console, error) {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = home + "/.ktdbg.history"
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "(ktdbg) ",
		HistoryFile: historyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("console: initializing readline: %w", err)
	}
	return &Console{sess: sess, rl: rl}, nil
}

// Close releases the underlying readline instance.
func (c *Console) Close() error { return c.rl.Close() }

// Run drains listener output onto stdout on its own goroutine and blocks the
// calling goroutine reading commands until EOF, interrupt, or "quit".
func (c *Console) Run() {
	go c.drainOutput()

	color.Yellow("h <enter> for help")
	for {
		line, err := c.rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			color.Yellow("ktdbg: exiting")
			return
		}
		if err != nil {
			logx.Warn("console: reading input: %v", err)
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if quit := c.dispatch(line); quit {
			return
		}
	}
}

func (c *Console) drainOutput() {
	for ev := range c.sess.Output() {
		color.Cyan("[%s] %s", ev.Category, ev.Text)
	}
}

// dispatch runs one command line, reporting whether the REPL should exit.
func (c *Console) dispatch(line string) (quit bool) {
	fields := strings.Fields(line)
	verb, args := fields[0], fields[1:]

	cmd, ok := commands[verb]
	if !ok {
		cmd, ok = commands[aliases[verb]]
	}
	if !ok {
		color.Red("ktdbg: unknown command %q (h for help)", verb)
		return false
	}
	return cmd(c, args)
}

type commandFunc func(c *Console, args []string) (quit bool)

var aliases = map[string]string{
	"b": "break", "d": "delete", "c": "continue", "n": "next",
	"s": "step", "o": "finish", "bt": "where", "p": "print",
	"l": "locals", "q": "quit", "?": "help",
}

var commands map[string]commandFunc

func init() {
	commands = map[string]commandFunc{
		"break":     cmdBreak,
		"delete":    cmdDelete,
		"enable":    cmdEnable,
		"disable":   cmdDisable,
		"condition": cmdCondition,
		"catch":     cmdCatch,
		"continue":  cmdContinue,
		"pause":     cmdPause,
		"next":      cmdNext,
		"step":      cmdStep,
		"finish":    cmdFinish,
		"threads":   cmdThreads,
		"thread":    cmdThread,
		"where":     cmdWhere,
		"frame":     cmdFrame,
		"up":        cmdUp,
		"down":      cmdDown,
		"locals":    cmdLocals,
		"print":     cmdPrint,
		"help":      cmdHelp,
		"quit":      cmdQuit,
	}
}

func cmdBreak(c *Console, args []string) bool {
	if len(args) < 2 {
		color.Red("usage: break <file> <line> [condition...]")
		return false
	}
	line, err := strconv.Atoi(args[1])
	if err != nil {
		color.Red("ktdbg: invalid line number %q", args[1])
		return false
	}
	cond := strings.Join(args[2:], " ")
	rec, err := c.sess.AddBreakpoint(args[0], line, cond)
	if err != nil {
		color.Red("ktdbg: %v", err)
		return false
	}
	color.Green("breakpoint %d at %s:%d", rec.ID, args[0], line)
	return false
}

func cmdDelete(c *Console, args []string) bool {
	withID(c, args, "delete", c.sess.RemoveBreakpoint)
	return false
}

func cmdEnable(c *Console, args []string) bool {
	withID(c, args, "enable", c.sess.EnableBreakpoint)
	return false
}

func cmdDisable(c *Console, args []string) bool {
	withID(c, args, "disable", c.sess.DisableBreakpoint)
	return false
}

func withID(c *Console, args []string, verb string, fn func(int) error) {
	if len(args) < 1 {
		color.Red("usage: %s <breakpoint-id>", verb)
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		color.Red("ktdbg: invalid breakpoint id %q", args[0])
		return
	}
	if err := fn(id); err != nil {
		color.Red("ktdbg: %v", err)
	}
}

func cmdCondition(c *Console, args []string) bool {
	if len(args) < 1 {
		color.Red("usage: condition <breakpoint-id> [expr...]")
		return false
	}
	color.Yellow("ktdbg: use `delete` then re-`break` with a condition to change one")
	return false
}

func cmdCatch(c *Console, args []string) bool {
	if err := c.sess.SetExceptionBreakpoints(args); err != nil {
		color.Red("ktdbg: %v", err)
		return false
	}
	color.Green("breaking on: %s", strings.Join(args, ", "))
	return false
}

func cmdContinue(c *Console, _ []string) bool {
	if err := c.sess.Resume(); err != nil {
		color.Red("ktdbg: %v", err)
	}
	return false
}

func cmdPause(c *Console, _ []string) bool {
	if err := c.sess.Suspend(); err != nil {
		color.Red("ktdbg: %v", err)
	}
	return false
}

func cmdNext(c *Console, _ []string) bool {
	if err := c.sess.StepOver(); err != nil {
		color.Red("ktdbg: %v", err)
	}
	return false
}

func cmdStep(c *Console, _ []string) bool {
	if err := c.sess.StepInto(); err != nil {
		color.Red("ktdbg: %v", err)
	}
	return false
}

func cmdFinish(c *Console, _ []string) bool {
	if err := c.sess.StepOut(); err != nil {
		color.Red("ktdbg: %v", err)
	}
	return false
}

func cmdThreads(c *Console, _ []string) bool {
	threads, err := c.sess.GetThreads()
	if err != nil {
		color.Red("ktdbg: %v", err)
		return false
	}
	for _, t := range threads {
		fmt.Printf("  %s\t%s\t%s\tsuspended=%v\n", t.ID, t.Name, t.Status, t.IsSuspended)
	}
	return false
}

func cmdThread(c *Console, args []string) bool {
	if len(args) < 1 {
		color.Red("usage: thread <id>")
		return false
	}
	if err := c.sess.SelectThread(proto.ThreadID(args[0])); err != nil {
		color.Red("ktdbg: %v", err)
	}
	return false
}

func cmdWhere(c *Console, _ []string) bool {
	frames, err := c.sess.GetStackFrames()
	if err != nil {
		color.Red("ktdbg: %v", err)
		return false
	}
	for _, f := range frames {
		loc := "?"
		if f.Position != nil {
			loc = f.Position.String()
		}
		marker := ""
		if f.IsInline {
			marker = " (inline)"
		}
		fmt.Printf("  #%d %s.%s at %s%s\n", f.Index, f.ClassName, f.Method, loc, marker)
	}
	return false
}

func cmdFrame(c *Console, args []string) bool {
	if len(args) < 1 {
		color.Red("usage: frame <index>")
		return false
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		color.Red("ktdbg: invalid frame index %q", args[0])
		return false
	}
	if _, err := c.sess.SelectFrame(idx); err != nil {
		color.Red("ktdbg: %v", err)
	}
	return false
}

func cmdUp(c *Console, _ []string) bool {
	color.Yellow("ktdbg: use `frame <index>` to change the selected frame")
	return false
}

func cmdDown(c *Console, _ []string) bool {
	color.Yellow("ktdbg: use `frame <index>` to change the selected frame")
	return false
}

func cmdLocals(c *Console, _ []string) bool {
	vars, err := c.sess.GetLocalVariables()
	if err != nil {
		color.Red("ktdbg: %v", err)
		return false
	}
	for _, v := range vars {
		fmt.Printf("  %s (%s) = %s\n", v.Name, v.TypeName, v.Display)
	}
	return false
}

func cmdPrint(c *Console, args []string) bool {
	if len(args) < 1 {
		color.Red("usage: print <name>")
		return false
	}
	v, err := c.sess.GetVariable(args[0])
	if err != nil {
		color.Red("ktdbg: %v", err)
		return false
	}
	fmt.Printf("  %s (%s) = %s\n", v.Name, v.TypeName, v.Display)
	return false
}

func cmdHelp(c *Console, _ []string) bool {
	fmt.Println(helpText)
	return false
}

func cmdQuit(c *Console, _ []string) bool {
	color.Yellow("ktdbg: exiting")
	return true
}

const helpText = `
break <file> <line> [cond]   set a breakpoint, optionally conditional
delete <id>                  remove a breakpoint
enable/disable <id>          toggle a breakpoint without removing it
catch [caught] [uncaught]    break on caught and/or uncaught exceptions
continue                     resume the suspended VM
pause                        suspend the running VM
next / step / finish         step over / into / out
threads                      list threads
thread <id>                  select a thread
where                        print the current thread's call stack
frame <index>                select a stack frame
locals                       print the current frame's locals
print <name>                 print one local by name
quit                         exit the console
`
