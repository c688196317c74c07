// Package logx provides the diagnostic logging helpers shared by every
// package in ktdbg. It mirrors the verbosity-gated, color-prefixed style the
// teacher project uses throughout its engine package.
package logx

import (
	"fmt"
	"log"
	"os"
	"runtime/debug"

	"github.com/fatih/color"
)

// Verbose, when true, makes Verboseln/Verbosef print. It is a
// package-level switch rather than a per-logger field because every
// subsystem in the core shares one verbosity knob, set once from the CLI's
// --verbose flag.
var Verbose bool

func init() {
	log.SetFlags(log.Lshortfile)
	log.SetPrefix("ktdbg: \x1b[101mfatal error:\x1b[0m ")
}

// Verboseln prints a to stdout when Verbose is set.
func Verboseln(a ...interface{}) {
	if Verbose {
		fmt.Println(a...)
	}
}

// Verbosef prints a formatted message to stdout when Verbose is set.
func Verbosef(format string, a ...interface{}) {
	if Verbose {
		fmt.Printf(format, a...)
	}
}

// Warn prints a yellow warning unconditionally.
func Warn(format string, a ...interface{}) {
	color.Yellow(format, a...)
}

// Info prints a green informational message unconditionally.
func Info(format string, a ...interface{}) {
	color.Green(format, a...)
}

// PanicIf panics with a stack trace if err is non-nil. Used for invariant
// violations that indicate a bug in ktdbg itself, not a user error.
func PanicIf(err error) {
	if err != nil {
		panic(fmt.Sprintf("ktdbg: \x1b[101minternal error:\x1b[0m %v\n%s\n", err, debug.Stack()))
	}
}

// FatalIf terminates the process if err is non-nil. Reserved for startup
// failures (bad flags, unreachable target) where there is no sensible way
// to continue.
func FatalIf(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
